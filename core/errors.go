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

import "errors"

// Domain validation errors
var (
	// ErrInvalidMessage indicates a Message failed validation.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrEmptyText indicates the Text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidMessageID indicates a non-positive message id.
	ErrInvalidMessageID = errors.New("message id must be positive")

	// ErrInvalidChatID indicates a zero chat id.
	ErrInvalidChatID = errors.New("chat id cannot be zero")

	// ErrInvalidTimestamp indicates a non-positive event timestamp.
	ErrInvalidTimestamp = errors.New("timestamp must be positive")
)
