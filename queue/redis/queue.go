package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/poiesic/convoflow/core"
	"github.com/poiesic/convoflow/queue"
)

const (
	defaultWriteBatchSize = 100
	defaultDialTimeout    = 5 * time.Second
	processedSuffix       = ":processed"
)

// Config holds connection settings for the Redis-backed queue.
type Config struct {
	// URL is a redis connection URL, e.g. "redis://localhost:6379/0".
	URL string

	// Key is the Redis list the queue lives under. Drained entries are
	// retained under Key + ":processed".
	Key string

	// WriteBatchSize bounds the number of entries per pipelined RPUSH.
	// Default: 100.
	WriteBatchSize int

	// DialTimeout bounds the initial connection probe.
	// Default: 5s.
	DialTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.WriteBatchSize <= 0 {
		c.WriteBatchSize = defaultWriteBatchSize
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
}

// Queue implements queue.Queue over a shared Redis list.
// Multiple producer processes may enqueue into the same list concurrently.
type Queue struct {
	client    *redis.Client
	key       string
	processed string
	batchSize int
	logger    *slog.Logger
}

var _ queue.Queue = (*Queue)(nil)

// NewQueue connects to Redis and returns a queue over cfg.Key.
// The connection is probed once; an unreachable server is a construction
// error so that misconfiguration aborts at startup instead of spinning.
//
// Returns the queue.Queue interface to enforce abstraction.
func NewQueue(cfg Config) (queue.Queue, error) {
	cfg.applyDefaults()
	if cfg.Key == "" {
		return nil, queue.ErrEmptyKey
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Queue{
		client:    client,
		key:       cfg.Key,
		processed: cfg.Key + processedSuffix,
		batchSize: cfg.WriteBatchSize,
		logger:    slog.Default().With("component", "redis-queue"),
	}, nil
}

// Enqueue appends messages to the tail of the list in one pipelined round trip.
func (q *Queue) Enqueue(ctx context.Context, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	entries := make([]interface{}, 0, len(msgs))
	for i := range msgs {
		raw, err := json.Marshal(&msgs[i])
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		entries = append(entries, raw)
	}

	pipe := q.client.Pipeline()
	for start := 0; start < len(entries); start += q.batchSize {
		end := start + q.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		pipe.RPush(ctx, q.key, entries[start:end]...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue %d messages: %w", len(msgs), err)
	}

	q.logger.Debug("enqueued messages", "count", len(msgs))
	return nil
}

// DrainAll reads the whole list, moves the raw entries onto the processed
// list and deletes the source list in a single transactional pipeline.
func (q *Queue) DrainAll(ctx context.Context) ([]core.Message, error) {
	raw, err := q.client.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	pipe := q.client.TxPipeline()
	for start := 0; start < len(raw); start += q.batchSize {
		end := start + q.batchSize
		if end > len(raw) {
			end = len(raw)
		}
		batch := make([]interface{}, 0, end-start)
		for _, entry := range raw[start:end] {
			batch = append(batch, entry)
		}
		pipe.RPush(ctx, q.processed, batch...)
	}
	pipe.Del(ctx, q.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("move drained entries: %w", err)
	}

	msgs := make([]core.Message, 0, len(raw))
	for _, entry := range raw {
		var msg core.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			q.logger.Debug("skipping undecodable queue entry", "err", err)
			continue
		}
		msgs = append(msgs, msg)
	}

	q.logger.Debug("drained queue", "entries", len(raw), "decoded", len(msgs))
	return msgs, nil
}

// Close closes the underlying Redis client.
func (q *Queue) Close() error {
	return q.client.Close()
}
