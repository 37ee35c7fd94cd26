package window

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/convoflow/core"
)

const defaultShardCount = 16

// Window is the per-chat session accumulator. It collects the unordered
// multiset of messages assigned to one session; deduplication and ordering
// happen later, in the reducer, so the assigner never tracks full history.
type Window struct {
	ChatID    int64
	Start     int64 // Min event time among members, seconds since epoch
	LastEvent int64 // Max event time among members
	Messages  []core.Message
}

func newWindow(msg core.Message) *Window {
	return &Window{
		ChatID:    msg.ChatID,
		Start:     msg.Timestamp,
		LastEvent: msg.Timestamp,
		Messages:  []core.Message{msg},
	}
}

func (w *Window) add(msg core.Message) {
	if msg.Timestamp < w.Start {
		w.Start = msg.Timestamp
	}
	if msg.Timestamp > w.LastEvent {
		w.LastEvent = msg.Timestamp
	}
	w.Messages = append(w.Messages, msg)
}

// chatState is the minimal per-chat windowing state: the event-time frontier
// and the currently open window, plus windows displaced by a newer session
// that are waiting for their grace period to elapse.
type chatState struct {
	maxEvent int64     // Event time that last advanced the frontier
	seenAt   time.Time // Wall clock when maxEvent last advanced
	open     *Window
	closing  []*Window
}

// mergeBridged folds displaced windows back into the open window when a late
// arrival has pulled the open window's start to within gap of a displaced
// window's last event. The two halves belong to one session; keeping them
// apart would emit the same conversation split in two. Newest-first, so a
// chain of bridged windows collapses in a single pass.
func (st *chatState) mergeBridged(gap int64) {
	for i := len(st.closing) - 1; i >= 0; i-- {
		w := st.closing[i]
		if st.open.Start-w.LastEvent > gap {
			continue
		}
		if w.Start < st.open.Start {
			st.open.Start = w.Start
		}
		if w.LastEvent > st.open.LastEvent {
			st.open.LastEvent = w.LastEvent
		}
		st.open.Messages = append(st.open.Messages, w.Messages...)
		st.closing = append(st.closing[:i], st.closing[i+1:]...)
	}
}

// watermark is the chat's event-time frontier: the newest event time seen,
// advanced by the wall-clock time elapsed since it was seen. A chat that goes
// quiet therefore keeps progressing toward closing its window.
func (st *chatState) watermark(now time.Time) int64 {
	return st.maxEvent + int64(now.Sub(st.seenAt)/time.Second)
}

type shard struct {
	mu    sync.Mutex
	chats map[int64]*chatState
}

// Assigner keys an event stream by chat identity and assigns each message to
// a session window based on event-time inactivity gaps. Watermarks are kept
// independently per chat: a quiet chat never blocks closing a noisy one, and
// no cross-chat ordering is enforced.
//
// Thread safety: chat states live in sharded maps guarded by per-shard
// mutexes, so cross-key parallelism is safe. Window values handed out by
// CloseDue, Observe and FlushAll are no longer referenced by the assigner.
type Assigner struct {
	gap    int64 // Session inactivity gap, seconds
	grace  int64 // Late-arrival tolerance, seconds
	shards []*shard
	now    func() time.Time
	logger *slog.Logger

	droppedLate atomic.Int64
}

// Option configures an Assigner.
type Option func(*Assigner) error

// WithClock overrides the wall clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Assigner) error {
		if now == nil {
			return ErrNilClock
		}
		a.now = now
		return nil
	}
}

// WithShardCount sets the number of chat-state shards.
// Default is 16, with a minimum of 1.
func WithShardCount(n int) Option {
	return func(a *Assigner) error {
		if n < 1 {
			n = 1
		}
		a.shards = make([]*shard, n)
		for i := range a.shards {
			a.shards[i] = &shard{chats: make(map[int64]*chatState)}
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assigner) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAssigner creates a session window assigner.
//
// sessionGap is the event-time inactivity gap that splits sessions; grace is
// the watermark slack granted to late arrivals before they are dropped.
func NewAssigner(sessionGap, grace time.Duration, opts ...Option) (*Assigner, error) {
	if sessionGap <= 0 {
		return nil, ErrInvalidSessionGap
	}
	if grace < 0 {
		return nil, ErrInvalidGrace
	}

	a := &Assigner{
		gap:    int64(sessionGap / time.Second),
		grace:  int64(grace / time.Second),
		now:    time.Now,
		logger: slog.Default().With("component", "window-assigner"),
	}
	if err := WithShardCount(defaultShardCount)(a); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Assigner) shardFor(chatID int64) *shard {
	idx := uint64(chatID) % uint64(len(a.shards))
	return a.shards[idx]
}

// Observe assigns one message to its session window.
//
// The chat's watermark advances to the message's event time when that lies
// beyond the current frontier; it never moves backwards. A
// message behind the watermark by more than the grace period is dropped — a
// documented small-loss tradeoff, not an error. Within the open window, a
// message joins when its distance to the window's newest event is at most the
// session gap (late arrivals have negative distance and always join);
// a strictly larger gap starts a new window and queues the previous one for
// closing once its own grace period elapses. A late arrival that pulls the
// open window's start back to within the gap of a queued window merges the
// queued window into the open one.
func (a *Assigner) Observe(msg core.Message) {
	now := a.now()
	sh := a.shardFor(msg.ChatID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.chats[msg.ChatID]
	if !ok {
		st = &chatState{maxEvent: msg.Timestamp, seenAt: now}
		sh.chats[msg.ChatID] = st
	}

	// The frontier is monotonic: an event only advances it past where
	// wall-clock progression has already pushed it. Re-anchoring on a
	// merely-newer event would let the watermark regress.
	wm := st.watermark(now)
	if msg.Timestamp > wm {
		st.maxEvent = msg.Timestamp
		st.seenAt = now
		wm = msg.Timestamp
	}

	if msg.Timestamp < wm-a.grace {
		a.droppedLate.Add(1)
		a.logger.Debug("dropping late message",
			"chat_id", msg.ChatID, "id", msg.ID,
			"timestamp", msg.Timestamp, "watermark", wm)
		return
	}

	switch {
	case st.open == nil:
		st.open = newWindow(msg)
	case msg.Timestamp-st.open.LastEvent > a.gap:
		// Inactivity gap exceeded: the open window is done accumulating
		// and waits out its grace period before emission.
		st.closing = append(st.closing, st.open)
		st.open = newWindow(msg)
	default:
		st.open.add(msg)
		if len(st.closing) > 0 {
			st.mergeBridged(a.gap)
		}
	}
}

// CloseDue emits every window whose chat watermark has advanced past
// last event + session gap + grace. Each window fires exactly once; its
// state is discarded on emission. Closing order across chats is
// non-deterministic.
func (a *Assigner) CloseDue() []*Window {
	now := a.now()
	var closed []*Window

	for _, sh := range a.shards {
		sh.mu.Lock()
		for _, st := range sh.chats {
			wm := st.watermark(now)

			remaining := st.closing[:0]
			for _, w := range st.closing {
				if wm >= w.LastEvent+a.gap+a.grace {
					closed = append(closed, w)
				} else {
					remaining = append(remaining, w)
				}
			}
			st.closing = remaining

			// Frontier state stays behind so the lateness policy still
			// applies to stragglers after their window closed.
			if st.open != nil && wm >= st.open.LastEvent+a.gap+a.grace {
				closed = append(closed, st.open)
				st.open = nil
			}
		}
		sh.mu.Unlock()
	}

	return closed
}

// FlushAll force-closes every open and pending window regardless of
// watermarks. Used on graceful shutdown: window state is not persisted, so
// anything buffered would otherwise be lost.
func (a *Assigner) FlushAll() []*Window {
	var flushed []*Window
	for _, sh := range a.shards {
		sh.mu.Lock()
		for _, st := range sh.chats {
			flushed = append(flushed, st.closing...)
			st.closing = nil
			if st.open != nil {
				flushed = append(flushed, st.open)
				st.open = nil
			}
		}
		sh.mu.Unlock()
	}
	return flushed
}

// DroppedLate reports how many messages were dropped for arriving beyond the
// late-arrival tolerance.
func (a *Assigner) DroppedLate() int64 {
	return a.droppedLate.Load()
}
