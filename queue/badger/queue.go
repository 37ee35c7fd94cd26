package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/convoflow/core"
	"github.com/poiesic/convoflow/queue"
)

const (
	pendingPrefix   = "q:pending:"
	processedPrefix = "q:processed:"
	sequenceName    = "q:seq"
)

// Queue implements queue.Queue over an embedded BadgerDB instance.
// It is intended for single-process deployments and tests; entries use the
// same JSON document format as the Redis backend, so the two are
// interchangeable behind the queue.Queue contract.
//
// Ordering is provided by a monotonic sequence baked into the key, so
// drained batches come back in enqueue order.
type Queue struct {
	backend *Backend
	seq     *badger.Sequence
	logger  *slog.Logger
}

var _ queue.Queue = (*Queue)(nil)

// NewQueue creates a queue on top of an open backend.
//
// Returns the queue.Queue interface to enforce abstraction.
func NewQueue(backend *Backend) (queue.Queue, error) {
	seq, err := backend.GetSequence(sequenceName)
	if err != nil {
		return nil, fmt.Errorf("open queue sequence: %w", err)
	}
	return &Queue{
		backend: backend,
		seq:     seq,
		logger:  slog.Default().With("component", "badger-queue"),
	}, nil
}

// Enqueue appends messages under sequence-ordered pending keys in one transaction.
func (q *Queue) Enqueue(ctx context.Context, msgs ...core.Message) error {
	if q.backend.IsClosed() {
		return queue.ErrQueueClosed
	}
	if len(msgs) == 0 {
		return nil
	}

	err := q.backend.WithTx(func(tx *badger.Txn) error {
		for i := range msgs {
			raw, err := json.Marshal(&msgs[i])
			if err != nil {
				return fmt.Errorf("encode message: %w", err)
			}
			n, err := q.seq.Next()
			if err != nil {
				return fmt.Errorf("next sequence value: %w", err)
			}
			if err := tx.Set(pendingKey(n), raw); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("enqueue %d messages: %w", len(msgs), err)
	}

	q.logger.Debug("enqueued messages", "count", len(msgs))
	return nil
}

// DrainAll moves every pending entry under the processed prefix and returns
// the decoded batch. The move and delete happen in a single transaction.
func (q *Queue) DrainAll(ctx context.Context) ([]core.Message, error) {
	if q.backend.IsClosed() {
		return nil, queue.ErrQueueClosed
	}

	var msgs []core.Message
	var entries int

	err := q.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(pendingPrefix)
		iter := tx.NewIterator(opts)

		type drained struct {
			key []byte
			val []byte
		}
		var batch []drained

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				iter.Close()
				return err
			}
			batch = append(batch, drained{key: item.KeyCopy(nil), val: val})
		}
		iter.Close()

		if len(batch) == 0 {
			return nil
		}
		entries = len(batch)

		for _, d := range batch {
			moved := append([]byte(processedPrefix), d.key[len(pendingPrefix):]...)
			if err := tx.Set(moved, d.val); err != nil {
				return err
			}
			if err := tx.Delete(d.key); err != nil {
				return err
			}
			var msg core.Message
			if err := json.Unmarshal(d.val, &msg); err != nil {
				q.logger.Debug("skipping undecodable queue entry", "err", err)
				continue
			}
			msgs = append(msgs, msg)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, fmt.Errorf("drain queue: %w", err)
	}

	if entries > 0 {
		q.logger.Debug("drained queue", "entries", entries, "decoded", len(msgs))
	}
	return msgs, nil
}

// Close releases the sequence. The backend is owned by the caller and stays open.
func (q *Queue) Close() error {
	if q.seq != nil {
		return q.seq.Release()
	}
	return nil
}

func pendingKey(n uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", pendingPrefix, n))
}
