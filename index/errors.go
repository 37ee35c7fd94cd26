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


package index

import "errors"

var (
	// ErrEmbedderRequired is returned when an index is constructed without
	// an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIndexUnavailable indicates the index is not reachable.
	ErrIndexUnavailable = errors.New("vector index is not available")

	// ErrPartialBatch indicates some objects in a batch upsert were rejected.
	ErrPartialBatch = errors.New("batch upsert partially failed")
)
