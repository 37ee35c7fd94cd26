package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/convoflow/core"
	"github.com/poiesic/convoflow/queue"
)

const defaultPollInterval = 5 * time.Second

// Poller adapts the durable queue into a timestamped, keyable event stream.
// Each poll drains everything currently queued; entries failing message
// validation are dropped silently at this boundary, never propagated.
type Poller struct {
	queue    queue.Queue
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller creates a poller over the given queue.
// interval <= 0 selects the 5 second default.
func NewPoller(q queue.Queue, interval time.Duration) (*Poller, error) {
	if q == nil {
		return nil, ErrQueueRequired
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		queue:    q,
		interval: interval,
		logger:   slog.Default().With("component", "source-poller"),
	}, nil
}

// Poll performs one queue drain and returns the surviving canonical messages.
// It never blocks waiting for new data; an empty queue yields an empty batch
// and the caller decides the next wake time.
func (p *Poller) Poll(ctx context.Context) ([]core.Message, error) {
	batch, err := p.queue.DrainAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, nil
	}

	msgs := make([]core.Message, 0, len(batch))
	for _, msg := range batch {
		msg.Normalize()
		if err := core.ValidateMessage(&msg); err != nil {
			p.logger.Debug("dropping invalid message", "chat_id", msg.ChatID, "id", msg.ID, "err", err)
			continue
		}
		msgs = append(msgs, msg)
	}

	p.logger.Debug("polled queue", "received", len(batch), "valid", len(msgs))
	return msgs, nil
}

// Run polls on a fixed interval and sends non-empty batches to out until the
// context is cancelled. Queue errors are logged and retried on the next
// tick — a failed drain never crashes the pipeline.
func (p *Poller) Run(ctx context.Context, out chan<- []core.Message) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		msgs, err := p.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("queue drain failed", "err", err)
		} else if len(msgs) > 0 {
			select {
			case out <- msgs:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
