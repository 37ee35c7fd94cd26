package source

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/convoflow/core"
)

// archiveEntry is one record of a chat platform export file. Exports store
// timestamps as decimal strings and message text either as a plain string or
// as a list of rich-text fragments.
type archiveEntry struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	DateUnixtime string          `json:"date_unixtime"`
	From         string          `json:"from"`
	Text         json.RawMessage `json:"text"`
}

type archiveFile struct {
	Messages []archiveEntry `json:"messages"`
}

// ReadArchive parses a historical chat export file into canonical messages
// for the given chat. It is the one-shot counterpart of the live poller:
// the same validation applies, and records that fail it — service entries,
// bot commands, empty text — are dropped silently rather than failing the
// batch.
func ReadArchive(chatID int64, path string) ([]core.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}

	var export archiveFile
	if err := json.Unmarshal(raw, &export); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", path, err)
	}

	logger := slog.Default().With("component", "archive-source", "path", path)

	msgs := make([]core.Message, 0, len(export.Messages))
	for _, entry := range export.Messages {
		if entry.Type != "message" {
			continue
		}
		text := flattenText(entry.Text)
		if text == "" {
			continue
		}
		ts, err := strconv.ParseInt(entry.DateUnixtime, 10, 64)
		if err != nil {
			logger.Debug("dropping record with bad timestamp", "id", entry.ID, "err", err)
			continue
		}

		msg := core.Message{
			ChatID:    chatID,
			ID:        entry.ID,
			Timestamp: ts,
			Text:      text,
			Sender:    entry.From,
		}
		msg.Normalize()
		if err := core.ValidateMessage(&msg); err != nil {
			logger.Debug("dropping invalid record", "id", entry.ID, "err", err)
			continue
		}
		msgs = append(msgs, msg)
	}

	logger.Debug("parsed archive", "records", len(export.Messages), "messages", len(msgs))
	return msgs, nil
}

// flattenText joins the text of an export record. Plain strings pass
// through; fragment lists are concatenated, except that a bot_command
// fragment drops the whole message (commands are noise, not conversation).
func flattenText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var fragments []json.RawMessage
	if err := json.Unmarshal(raw, &fragments); err != nil {
		return ""
	}

	var sb strings.Builder
	for _, fragment := range fragments {
		var s string
		if err := json.Unmarshal(fragment, &s); err == nil {
			sb.WriteString(s)
			continue
		}
		var rich struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(fragment, &rich); err != nil {
			continue
		}
		if rich.Type == "bot_command" {
			return ""
		}
		sb.WriteString(rich.Text)
	}
	return sb.String()
}
