package reduce

import (
	"sort"
	"strings"

	"github.com/poiesic/convoflow/core"
	"github.com/poiesic/convoflow/window"
)

// Reduce folds one closed window's message multiset into a single
// Conversation record.
//
// Messages are deduplicated by (chat_id, id), sorted ascending by event time
// (ties broken by message id so the fold is deterministic), formatted as
// "sender: text" lines and joined by newline. The conversation identity is
// derived from the chat and the window's earliest surviving timestamp, so
// reprocessing the same logical window after a crash-and-replay yields the
// same id and an idempotent overwrite downstream.
//
// A window with zero surviving messages reduces to (nil, false) — silently
// discarded, not an error.
func Reduce(w *window.Window) (*core.Conversation, bool) {
	if w == nil || len(w.Messages) == 0 {
		return nil, false
	}

	seen := make(map[core.MessageKey]struct{}, len(w.Messages))
	msgs := make([]core.Message, 0, len(w.Messages))
	for _, msg := range w.Messages {
		key := msg.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		msgs = append(msgs, msg)
	}

	if len(msgs) == 0 {
		return nil, false
	}

	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].ID < msgs[j].ID
	})

	lines := make([]string, len(msgs))
	for i := range msgs {
		lines[i] = msgs[i].Line()
	}

	start := msgs[0].Timestamp
	end := msgs[len(msgs)-1].Timestamp

	return &core.Conversation{
		ChatID:         w.ChatID,
		ID:             core.ConversationID(w.ChatID, start),
		StartTimestamp: start,
		EndTimestamp:   end,
		Texts:          strings.Join(lines, "\n"),
	}, true
}

// ReduceAll reduces a burst of closed windows, skipping any that reduce to
// nothing.
func ReduceAll(windows []*window.Window) []*core.Conversation {
	convs := make([]*core.Conversation, 0, len(windows))
	for _, w := range windows {
		if conv, ok := Reduce(w); ok {
			convs = append(convs, conv)
		}
	}
	return convs
}
