package badger

import (
	"context"
	"fmt"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/convoflow/core"
	"github.com/poiesic/convoflow/queue"
)

func newMemoryQueue(t *testing.T) (queue.Queue, *Backend) {
	t.Helper()

	backend, err := OpenBackend("", true)
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	q, err := NewQueue(backend)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })

	return q, backend
}

func testMessage(id int64) core.Message {
	return core.Message{
		ChatID:    42,
		ID:        id,
		Timestamp: 1000 + id,
		Text:      fmt.Sprintf("message %d", id),
		Sender:    "ann",
	}
}

func TestQueueDrainEmpty(t *testing.T) {
	q, _ := newMemoryQueue(t)

	msgs, err := q.DrainAll(context.Background())
	if err != nil {
		t.Fatalf("Failed to drain empty queue: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("Expected no messages, got %d", len(msgs))
	}
}

func TestQueueEnqueueDrainOrder(t *testing.T) {
	q, _ := newMemoryQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testMessage(1), testMessage(2)); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, testMessage(3)); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	msgs, err := q.DrainAll(ctx)
	if err != nil {
		t.Fatalf("Failed to drain: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}

	for i, msg := range msgs {
		if msg.ID != int64(i+1) {
			t.Errorf("Expected message %d at position %d, got %d", i+1, i, msg.ID)
		}
	}
}

func TestQueueDrainIsDestructive(t *testing.T) {
	q, _ := newMemoryQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testMessage(1)); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	first, err := q.DrainAll(ctx)
	if err != nil {
		t.Fatalf("Failed to drain: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(first))
	}

	second, err := q.DrainAll(ctx)
	if err != nil {
		t.Fatalf("Failed to drain again: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("Second drain should be empty, got %d messages", len(second))
	}
}

func TestQueueDrainKeepsProcessedCopy(t *testing.T) {
	q, backend := newMemoryQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testMessage(1), testMessage(2)); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if _, err := q.DrainAll(ctx); err != nil {
		t.Fatalf("Failed to drain: %v", err)
	}

	counts := map[string]int{}
	err := backend.WithTx(func(tx *badgerdb.Txn) error {
		for _, prefix := range []string{pendingPrefix, processedPrefix} {
			opts := badgerdb.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				counts[prefix]++
			}
			iter.Close()
		}
		return nil
	}, false)
	if err != nil {
		t.Fatalf("Failed to inspect keys: %v", err)
	}

	if counts[pendingPrefix] != 0 {
		t.Errorf("Expected no pending entries after drain, got %d", counts[pendingPrefix])
	}
	if counts[processedPrefix] != 2 {
		t.Errorf("Expected 2 processed entries after drain, got %d", counts[processedPrefix])
	}
}

func TestQueueSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	q, err := NewQueue(backend)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	if err := q.Enqueue(ctx, testMessage(1), testMessage(2)); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Failed to close queue: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("Failed to close backend: %v", err)
	}

	backend, err = OpenBackend(dir, false)
	if err != nil {
		t.Fatalf("Failed to reopen backend: %v", err)
	}
	defer backend.Close()

	q, err = NewQueue(backend)
	if err != nil {
		t.Fatalf("Failed to recreate queue: %v", err)
	}
	defer q.Close()

	msgs, err := q.DrainAll(ctx)
	if err != nil {
		t.Fatalf("Failed to drain after reopen: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages after reopen, got %d", len(msgs))
	}
	if msgs[0].Text != "message 1" {
		t.Errorf("Expected 'message 1', got %q", msgs[0].Text)
	}
}

func TestQueueClosedBackend(t *testing.T) {
	backend, err := OpenBackend("", true)
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	q, err := NewQueue(backend)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	q.Close()
	backend.Close()

	if err := q.Enqueue(context.Background(), testMessage(1)); err != queue.ErrQueueClosed {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
	if _, err := q.DrainAll(context.Background()); err != queue.ErrQueueClosed {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
}
