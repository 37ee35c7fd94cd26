// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "fmt"

// ValidateMessage validates a Message according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - ID must be positive (platform-assigned, unique within a chat)
//   - ChatID must not be zero (negative values are normalized, not rejected)
//   - Timestamp must be positive
//
// Sender is NOT validated: it is used only for transcript formatting and an
// empty display name is tolerated.
func ValidateMessage(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}

	if msg.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyText)
	}

	if msg.ID <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrInvalidMessageID)
	}

	if msg.ChatID == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrInvalidChatID)
	}

	if msg.Timestamp <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrInvalidTimestamp)
	}

	return nil
}
