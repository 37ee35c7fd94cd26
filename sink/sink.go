package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/convoflow/core"
	"github.com/poiesic/convoflow/index"
)

const (
	defaultTargetBatchSize = 64
	defaultPacing          = 5 * time.Second
	defaultMaxAttempts     = 3
	defaultRetryWait       = 2 * time.Second
)

// Config holds batching and retry settings for the upsert sink.
type Config struct {
	// TargetBatchSize is the average number of conversations per upsert
	// call. Default: 64.
	TargetBatchSize int

	// Pacing is the fixed sleep between upsert batches, respecting the
	// index's external rate ceiling. Default: 5s.
	Pacing time.Duration

	// MaxAttempts bounds retries per batch. Default: 3.
	MaxAttempts int

	// RetryWait is the fixed wait between attempts. Default: 2s.
	RetryWait time.Duration
}

func (c *Config) applyDefaults() {
	if c.TargetBatchSize <= 0 {
		c.TargetBatchSize = defaultTargetBatchSize
	}
	if c.Pacing < 0 {
		c.Pacing = defaultPacing
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryWait <= 0 {
		c.RetryWait = defaultRetryWait
	}
}

// Sink writes bursts of reduced conversations to the vector index in
// size-balanced batches with bounded retries and inter-batch pacing.
//
// Delivery is at-least-once, best-effort: a batch that still fails after the
// retry budget is logged and skipped rather than blocking the pipeline. The
// raw messages survive in the queue's processed list, so a skipped
// conversation can be rebuilt by replaying the reduction.
type Sink struct {
	index  index.Index
	config Config
	logger *slog.Logger
}

// NewSink creates an upsert sink over the given index.
func NewSink(idx index.Index, config Config) (*Sink, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	config.applyDefaults()

	return &Sink{
		index:  idx,
		config: config,
		logger: slog.Default().With("component", "upsert-sink"),
	}, nil
}

// Write packs the burst into balanced bins and upserts them one by one.
// Failed bins are retried with a fixed wait; exhaustion skips the bin.
// A pacing sleep separates consecutive bins. Context cancellation stops
// between batches and propagates.
func (s *Sink) Write(ctx context.Context, convs []*core.Conversation) error {
	if len(convs) == 0 {
		return nil
	}

	bins := Pack(convs, s.config.TargetBatchSize)
	s.logger.Debug("writing conversations", "count", len(convs), "batches", len(bins))

	for n, bin := range bins {
		if n > 0 && s.config.Pacing > 0 {
			timer := time.NewTimer(s.config.Pacing)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		rows := make([]index.Row, len(bin))
		for i, conv := range bin {
			rows[i] = index.Row{
				ID:    conv.UUID(),
				Texts: conv.Texts,
				Meta:  *conv,
			}
		}

		err := RetryFixed(ctx, func() error {
			return s.index.Upsert(ctx, rows)
		}, s.config.MaxAttempts, s.config.RetryWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// At-least-once, best-effort: skip the batch, keep the
			// pipeline moving. The processed queue retains the raw
			// messages for replay.
			s.logger.Error("skipping batch after retries exhausted",
				"batch", n, "size", len(bin), "err", err)
			continue
		}
	}

	return nil
}
