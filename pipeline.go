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


package convoflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/convoflow/core"
	"github.com/poiesic/convoflow/index"
	"github.com/poiesic/convoflow/queue"
	"github.com/poiesic/convoflow/reduce"
	"github.com/poiesic/convoflow/sink"
	"github.com/poiesic/convoflow/source"
	"github.com/poiesic/convoflow/window"
)

// Pipeline orchestrates the flow from queued chat messages to indexed
// conversations: it polls the queue, assigns messages to event-time session
// windows, reduces closed windows to conversations, and hands them to the
// upsert sink.
//
// A single goroutine owns the window assigner; upsert bursts run on a worker
// pool so windowing keeps up while the index digests a batch. Run blocks
// until the context is cancelled, then flushes every open window before
// returning.
type Pipeline struct {
	queue    queue.Queue
	index    index.Index
	config   *Config
	assigner *window.Assigner
	poller   *source.Poller
	sink     *sink.Sink
	pool     *ants.Pool
	writes   sync.WaitGroup
	clock    func() time.Time
	logger   *slog.Logger
	closed   atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithWritePoolSize sets the worker pool size for upsert bursts.
// Default is 1, which keeps bursts sequential so inter-batch pacing holds
// globally. Raise it only if the index tolerates concurrent batches.
func WithWritePoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithClock injects the wall clock used for watermark advancement.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		p.clock = now
		return nil
	}
}

// NewPipeline creates a pipeline over the given queue and index.
// Config may be nil, in which case defaults apply.
func NewPipeline(q queue.Queue, idx index.Index, config *Config, opts ...Option) (*Pipeline, error) {
	if q == nil {
		return nil, ErrQueueRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}

	if config == nil {
		cfg, err := NewConfig()
		if err != nil {
			return nil, err
		}
		config = cfg
	} else if err := config.Validate(); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		queue:  q,
		index:  idx,
		config: config,
		pool:   pool,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	assignerOpts := []window.Option{window.WithLogger(p.logger)}
	if p.clock != nil {
		assignerOpts = append(assignerOpts, window.WithClock(p.clock))
	}
	assigner, err := window.NewAssigner(config.SessionGap, config.LateGrace, assignerOpts...)
	if err != nil {
		p.Release()
		return nil, err
	}

	poller, err := source.NewPoller(q, config.PollInterval)
	if err != nil {
		p.Release()
		return nil, err
	}

	upsert, err := sink.NewSink(idx, sink.Config{
		TargetBatchSize: config.TargetBatchSize,
		Pacing:          config.UpsertPacing,
		MaxAttempts:     config.MaxUpsertAttempts,
		RetryWait:       config.UpsertRetryWait,
	})
	if err != nil {
		p.Release()
		return nil, err
	}

	p.assigner = assigner
	p.poller = poller
	p.sink = upsert

	return p, nil
}

// Submit validates and enqueues messages for processing. Unlike the queue
// poller, which drops invalid entries it finds in the backlog, Submit rejects
// the whole batch so the caller learns about bad input.
func (p *Pipeline) Submit(ctx context.Context, msgs ...core.Message) error {
	if p.closed.Load() {
		return ErrPipelineClosed
	}

	normalized := make([]core.Message, len(msgs))
	for i, msg := range msgs {
		msg.Normalize()
		if err := core.ValidateMessage(&msg); err != nil {
			return err
		}
		normalized[i] = msg
	}
	return p.queue.Enqueue(ctx, normalized...)
}

// Run drives the pipeline until ctx is cancelled. On cancellation it stops
// polling, force-closes every open window, writes the final burst, and waits
// for in-flight upserts to finish.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPipelineClosed
	}

	incoming := make(chan []core.Message, 16)

	var pollDone sync.WaitGroup
	pollDone.Add(1)
	go func() {
		defer pollDone.Done()
		p.poller.Run(ctx, incoming)
		close(incoming)
	}()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("pipeline started",
		"session_gap", p.config.SessionGap,
		"late_grace", p.config.LateGrace,
		"target_batch_size", p.config.TargetBatchSize)

	for {
		select {
		case batch, ok := <-incoming:
			if !ok {
				// Poller stopped; fall through to shutdown.
				p.shutdown()
				p.logger.Info("pipeline stopped", "dropped_late", p.assigner.DroppedLate())
				return nil
			}
			for _, msg := range batch {
				p.assigner.Observe(msg)
			}
		case <-ticker.C:
			p.dispatch(p.assigner.CloseDue())
		case <-ctx.Done():
			pollDone.Wait()
			for batch := range incoming {
				for _, msg := range batch {
					p.assigner.Observe(msg)
				}
			}
			p.shutdown()
			p.logger.Info("pipeline stopped", "dropped_late", p.assigner.DroppedLate())
			return nil
		}
	}
}

// shutdown force-closes all windows and drains in-flight writes.
func (p *Pipeline) shutdown() {
	p.dispatch(p.assigner.FlushAll())
	p.writes.Wait()
}

// dispatch reduces closed windows and submits the resulting burst to the
// write pool. Upserts run against a background context so a cancelled run
// context cannot abort the final flush.
func (p *Pipeline) dispatch(windows []*window.Window) {
	convs := reduce.ReduceAll(windows)
	if len(convs) == 0 {
		return
	}

	p.writes.Add(1)
	err := p.pool.Submit(func() {
		defer p.writes.Done()
		if err := p.sink.Write(context.Background(), convs); err != nil {
			p.logger.Error("error writing conversation burst", "err", err)
		}
	})
	if err != nil {
		p.writes.Done()
		p.logger.Error("error submitting conversation burst", "err", err)
	}
}

// DroppedLate reports how many messages were dropped for arriving past the
// lateness tolerance.
func (p *Pipeline) DroppedLate() int64 {
	return p.assigner.DroppedLate()
}

// Release releases the write pool. Submit and Run return ErrPipelineClosed
// afterwards. The queue and index are owned by the caller and are not closed
// here.
func (p *Pipeline) Release() {
	p.closed.Store(true)
	if p.pool != nil {
		p.pool.Release()
	}
}
