package core

import (
	"errors"
	"testing"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     *Message
		wantErr error
	}{
		{
			name:    "valid message",
			msg:     &Message{ChatID: 1, ID: 5, Timestamp: 100, Text: "hello", Sender: "ann"},
			wantErr: nil,
		},
		{
			name:    "valid message without sender",
			msg:     &Message{ChatID: 1, ID: 5, Timestamp: 100, Text: "hello"},
			wantErr: nil,
		},
		{
			name:    "nil message",
			msg:     nil,
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "empty text",
			msg:     &Message{ChatID: 1, ID: 5, Timestamp: 100, Text: ""},
			wantErr: ErrEmptyText,
		},
		{
			name:    "zero message id",
			msg:     &Message{ChatID: 1, ID: 0, Timestamp: 100, Text: "hello"},
			wantErr: ErrInvalidMessageID,
		},
		{
			name:    "negative message id",
			msg:     &Message{ChatID: 1, ID: -3, Timestamp: 100, Text: "hello"},
			wantErr: ErrInvalidMessageID,
		},
		{
			name:    "zero chat id",
			msg:     &Message{ChatID: 0, ID: 5, Timestamp: 100, Text: "hello"},
			wantErr: ErrInvalidChatID,
		},
		{
			name:    "zero timestamp",
			msg:     &Message{ChatID: 1, ID: 5, Timestamp: 0, Text: "hello"},
			wantErr: ErrInvalidTimestamp,
		},
		{
			name:    "negative timestamp",
			msg:     &Message{ChatID: 1, ID: 5, Timestamp: -1, Text: "hello"},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.msg)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateMessage() unexpected error: %v", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("ValidateMessage() error should wrap ErrInvalidMessage, got %v", err)
			}
		})
	}
}
