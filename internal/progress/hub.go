package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls subscriber buffering for the Hub.
//   - SubscriberBuffer: per-subscriber channel capacity (default 64).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	SubscriberBuffer int
	Logger           *zap.Logger
}

const (
	defaultSubscriberBuffer = 64
	dropLogInterval         = 5 * time.Second
)

// Hub is the process-local pub/sub service for analysis progress. Publishers
// never block: a subscriber whose buffer is full has the event dropped with a
// rate-limited warning. Subscribers are keyed by client ID; subscribing twice
// with the same ID replaces the previous registration.
type Hub struct {
	cfg         Config
	logger      *zap.Logger
	dropLimiter rateLimiter
	dropped     atomic.Int64
	closed      atomic.Bool

	mu   sync.Mutex
	subs map[string]chan Event
}

// NewHub initializes a Hub ready to accept subscribers and events.
func NewHub(cfg Config) *Hub {
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		cfg:         cfg,
		logger:      logger,
		dropLimiter: rateLimiter{interval: dropLogInterval},
		subs:        make(map[string]chan Event),
	}
}

// Subscribe registers clientID and returns its event channel. The channel is
// closed by Unsubscribe or Close, so receivers can range over it.
func (h *Hub) Subscribe(clientID string) <-chan Event {
	ch := make(chan Event, h.cfg.SubscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Load() {
		close(ch)
		return ch
	}
	if prev, ok := h.subs[clientID]; ok {
		close(prev)
	}
	h.subs[clientID] = ch
	return ch
}

// Unsubscribe removes clientID and closes its channel. Unknown IDs are a
// no-op so disconnect paths can call it unconditionally.
func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[clientID]; ok {
		delete(h.subs, clientID)
		close(ch)
	}
}

// Publish fans the event out to every current subscriber without blocking.
// Invalid events are discarded.
func (h *Hub) Publish(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.dropped.Add(1)
			if h.dropLimiter.Allow(time.Now()) {
				count := h.dropped.Swap(0)
				h.logger.Warn("progress events dropped due to slow subscribers",
					zap.String("client_id", id),
					zap.Int64("dropped", count))
			}
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close rejects further publishes and closes every subscriber channel. Safe
// to call more than once.
func (h *Hub) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
