package index

import (
	"context"

	"github.com/poiesic/convoflow/core"
)

// Row is one conversation prepared for upsert: a deterministic UUID identity,
// the transcript to embed, and the full conversation as metadata.
type Row struct {
	ID    string
	Texts string
	Meta  core.Conversation
}

// Match is one similarity search hit.
type Match struct {
	Texts string
	Meta  core.Conversation
	Score float32
}

// Index is the vector index collaborator. Writes are idempotent: upserting a
// row with an existing id overwrites the stored object, never duplicates it.
// Implementations must be safe for concurrent use by multiple pipeline stages.
type Index interface {
	// Upsert writes a batch of rows. The batch size is bounded by the
	// caller (the sink's bin packing); the index applies no further
	// splitting. A partially failed batch is reported as an error.
	Upsert(ctx context.Context, rows []Row) error

	// SimilaritySearch returns the k stored conversations most similar to
	// the query text, best first.
	SimilaritySearch(ctx context.Context, query string, k int) ([]Match, error)

	// Close releases the underlying client.
	Close() error
}
