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


// Package window implements event-time session windowing for chat streams.
//
// Messages are keyed by chat identity and grouped into session windows
// bounded by inactivity gaps: consecutive messages at most one session gap
// apart belong to the same session, a strictly larger gap starts a new one.
//
// Each chat carries its own watermark, the frontier below which no more
// events are expected. The watermark is the newest event time observed for
// that chat, advanced by the wall-clock time elapsed since it was observed,
// so windows in chats that go quiet still close. Messages arriving behind
// the watermark by up to a configurable grace period are admitted into the
// session they would have joined; beyond that they are dropped, a bounded
// and intentional loss that keeps the assigner from buffering history.
//
// A window fires exactly once, when its chat's watermark passes
// last event + session gap + grace. The emitted window is an unordered
// multiset: duplicates survive until the reducer, which keeps this package
// stateless with respect to full message history.
package window
