package reduce

import (
	"testing"

	"github.com/poiesic/convoflow/core"
	"github.com/poiesic/convoflow/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWindow(chatID int64, msgs ...core.Message) *window.Window {
	w := &window.Window{ChatID: chatID}
	for i, msg := range msgs {
		if i == 0 {
			w.Start = msg.Timestamp
			w.LastEvent = msg.Timestamp
		}
		if msg.Timestamp < w.Start {
			w.Start = msg.Timestamp
		}
		if msg.Timestamp > w.LastEvent {
			w.LastEvent = msg.Timestamp
		}
		w.Messages = append(w.Messages, msg)
	}
	return w
}

func TestReduce_OrdersByEventTime(t *testing.T) {
	w := testWindow(1,
		core.Message{ChatID: 1, ID: 2, Timestamp: 200, Text: "second", Sender: "bea"},
		core.Message{ChatID: 1, ID: 1, Timestamp: 100, Text: "first", Sender: "ann"},
		core.Message{ChatID: 1, ID: 3, Timestamp: 300, Text: "third", Sender: "ann"},
	)

	conv, ok := Reduce(w)
	require.True(t, ok)
	assert.Equal(t, "ann: first\nbea: second\nann: third", conv.Texts)
	assert.Equal(t, int64(100), conv.StartTimestamp)
	assert.Equal(t, int64(300), conv.EndTimestamp)
	assert.Equal(t, int64(1), conv.ChatID)
}

func TestReduce_RemovesDuplicates(t *testing.T) {
	dup := core.Message{ChatID: 1, ID: 5, Timestamp: 10, Text: "hi", Sender: "ann"}
	w := testWindow(1, dup, dup, dup)

	conv, ok := Reduce(w)
	require.True(t, ok)
	assert.Equal(t, "ann: hi", conv.Texts)
}

func TestReduce_TimestampTiesBreakOnID(t *testing.T) {
	w := testWindow(1,
		core.Message{ChatID: 1, ID: 9, Timestamp: 100, Text: "later id", Sender: "ann"},
		core.Message{ChatID: 1, ID: 3, Timestamp: 100, Text: "earlier id", Sender: "bea"},
	)

	conv, ok := Reduce(w)
	require.True(t, ok)
	assert.Equal(t, "bea: earlier id\nann: later id", conv.Texts)
}

func TestReduce_Deterministic(t *testing.T) {
	msgs := []core.Message{
		{ChatID: 7, ID: 1, Timestamp: 50, Text: "a", Sender: "ann"},
		{ChatID: 7, ID: 2, Timestamp: 60, Text: "b", Sender: "bea"},
		{ChatID: 7, ID: 1, Timestamp: 50, Text: "a", Sender: "ann"}, // duplicate
	}

	first, ok := Reduce(testWindow(7, msgs...))
	require.True(t, ok)

	// Reversed arrival order reduces to the identical record.
	second, ok := Reduce(testWindow(7, msgs[2], msgs[1], msgs[0]))
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, first.ID, core.ConversationID(7, 50))
}

func TestReduce_EmptyWindow(t *testing.T) {
	_, ok := Reduce(nil)
	assert.False(t, ok)

	_, ok = Reduce(&window.Window{ChatID: 1})
	assert.False(t, ok)
}

func TestReduceAll_SkipsEmpty(t *testing.T) {
	windows := []*window.Window{
		testWindow(1, core.Message{ChatID: 1, ID: 1, Timestamp: 10, Text: "a", Sender: "ann"}),
		{ChatID: 2},
		testWindow(3, core.Message{ChatID: 3, ID: 1, Timestamp: 20, Text: "b", Sender: "bea"}),
	}

	convs := ReduceAll(windows)
	require.Len(t, convs, 2)
	assert.Equal(t, int64(1), convs[0].ChatID)
	assert.Equal(t, int64(3), convs[1].ChatID)
}
