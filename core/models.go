package core

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated by content-based hashing so that reprocessing the same
// logical entity always yields the same identity.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// UUIDFromContent generates a deterministic UUID-formatted string from text
// content. Vector indexes that require UUID object ids get a stable identity
// for the same content, so repeated writes overwrite rather than duplicate.
func UUIDFromContent(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	sum := h.Sum(nil)
	// Stamp version and variant bits so the result parses as RFC 4122.
	sum[6] = (sum[6] & 0x0f) | 0x40
	sum[8] = (sum[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}

// Message represents a single chat utterance as delivered by a producer.
// The (ChatID, ID) pair is unique per logical message; at-least-once delivery
// means duplicates may arrive and must be removed before aggregation.
type Message struct {
	ChatID    int64  `json:"chat_id"`
	ID        int64  `json:"id"`
	Timestamp int64  `json:"timestamp"` // Event time, seconds since epoch
	Text      string `json:"text"`
	Sender    string `json:"from"` // Display name, used only for formatting
}

// MessageKey identifies a logical message. Duplicate deliveries share a key.
type MessageKey struct {
	ChatID int64
	ID     int64
}

// Key returns the logical identity of the message.
func (m *Message) Key() MessageKey {
	return MessageKey{ChatID: m.ChatID, ID: m.ID}
}

// Normalize brings the message into canonical form.
// Chat identities are always stored as positive values; some chat platforms
// report group chats with negated ids.
func (m *Message) Normalize() {
	if m.ChatID < 0 {
		m.ChatID = -m.ChatID
	}
}

// Line formats the message as a single conversation transcript line.
func (m *Message) Line() string {
	return m.Sender + ": " + m.Text
}

// Conversation is the aggregate of all messages in one session window for one
// chat. It is immutable once created; its terminal state is an idempotent
// upsert into the vector index.
type Conversation struct {
	ChatID         int64  `json:"chat_id"`
	ID             ID     `json:"conversation_id"`
	StartTimestamp int64  `json:"start_timestamp"`
	EndTimestamp   int64  `json:"end_timestamp"`
	Texts          string `json:"texts"`
}

// ConversationID derives the deterministic identity of a session window from
// its chat and start timestamp. Replays of the same window hash to the same
// ID, so downstream writes overwrite instead of duplicating.
func ConversationID(chatID, startTimestamp int64) ID {
	return IDFromContent(conversationSeed(chatID, startTimestamp))
}

// UUID returns the conversation identity formatted as a deterministic UUID
// string, suitable as a vector index object id.
func (c *Conversation) UUID() string {
	return UUIDFromContent(conversationSeed(c.ChatID, c.StartTimestamp))
}

func conversationSeed(chatID, startTimestamp int64) string {
	return strconv.FormatInt(chatID, 10) + "-" + strconv.FormatInt(startTimestamp, 10)
}
