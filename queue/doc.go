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


// Package queue defines the durable queue contract sitting between message
// producers (chat adapters, historical importers) and the windowing pipeline.
//
// Two backends implement the contract:
//
//   - queue/redis: a Redis list shared across producer processes. This is the
//     deployment default; chat adapters RPUSH into the same list.
//   - queue/badger: an embedded BadgerDB list for single-process deployments
//     and tests, with identical drain semantics.
//
// Both store entries as JSON documents with fields chat_id, id, timestamp,
// text and from, and both retain drained entries in a processed side-list as
// an audit channel. The processed list is not part of the correctness
// contract; it exists so that a conversation which failed to upsert can be
// rebuilt by replaying the raw messages.
package queue
