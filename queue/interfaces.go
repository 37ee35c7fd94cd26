package queue

import (
	"context"

	"github.com/poiesic/convoflow/core"
)

// Queue is the durable write-ahead buffer between message producers and the
// windowing pipeline. Implementations must be thread-safe and guarantee
// at-least-once delivery across process restarts.
//
// The queue is a thin, non-retrying primitive: transient I/O errors are
// surfaced to the caller, which owns the retry policy.
type Queue interface {
	// Enqueue appends messages to the tail of the queue in a single
	// round trip. Messages are stored as JSON documents; consumers must
	// tolerate unknown extra fields.
	Enqueue(ctx context.Context, msgs ...core.Message) error

	// DrainAll returns and atomically removes everything currently queued.
	// It never blocks waiting for new data; an empty queue yields an empty
	// batch. Drained entries are moved to a secondary processed list rather
	// than deleted, to allow forensic replay. Entries that fail to decode
	// are skipped, not fatal to the batch.
	//
	// A crash between DrainAll and full downstream processing loses the
	// drained messages from the pipeline's perspective; the downstream
	// idempotent upsert is the compensating control.
	DrainAll(ctx context.Context) ([]core.Message, error)

	// Close releases the backing connection or storage.
	Close() error
}
