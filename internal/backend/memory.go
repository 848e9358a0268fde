package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"vigil/internal/types"
)

// DefaultMaxPending mirrors the pending-notification cap mobile platforms
// impose on an app.
const DefaultMaxPending = 64

// Memory is an in-process Notification Backend built on timers. It loses its
// schedule on restart, which the engine's startup recovery tolerates.
type Memory struct {
	mu         sync.Mutex
	pending    map[string]*memoryEntry
	sink       Sink
	clock      types.Clock
	maxPending int
	logger     *slog.Logger
	ctx        context.Context
}

type memoryEntry struct {
	timer    *time.Timer
	delivery Delivery
}

// MemoryOption configures a Memory backend.
type MemoryOption func(*Memory)

// WithMaxPending caps how many notifications may be outstanding at once.
func WithMaxPending(n int) MemoryOption {
	return func(m *Memory) { m.maxPending = n }
}

// WithMemoryClock overrides the clock used to validate trigger times.
func WithMemoryClock(c types.Clock) MemoryOption {
	return func(m *Memory) { m.clock = c }
}

// NewMemory creates a Memory backend delivering to sink. ctx is passed to the
// sink and bounds nothing else.
func NewMemory(ctx context.Context, sink Sink, logger *slog.Logger, opts ...MemoryOption) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Memory{
		pending:    make(map[string]*memoryEntry),
		sink:       sink,
		clock:      types.RealClock{},
		maxPending: DefaultMaxPending,
		logger:     logger,
		ctx:        ctx,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Schedule arms a timer for content and returns its handle.
func (m *Memory) Schedule(_ context.Context, content types.NotificationContent, trigger time.Time) (string, error) {
	now := m.clock.Now()
	if err := validateRequest(content, trigger, now); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxPending > 0 && len(m.pending) >= m.maxPending {
		return "", rejected(fmt.Sprintf("pending limit of %d reached", m.maxPending), nil, trigger)
	}

	handle := newHandle()
	entry := &memoryEntry{delivery: Delivery{Handle: handle, TriggerAt: trigger, Content: content}}
	entry.timer = time.AfterFunc(trigger.Sub(now), func() { m.fire(handle) })
	m.pending[handle] = entry
	return handle, nil
}

func (m *Memory) fire(handle string) {
	m.mu.Lock()
	entry, ok := m.pending[handle]
	if ok {
		delete(m.pending, handle)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	m.logger.Info("notification fired",
		"handle", handle,
		"candidate_id", entry.delivery.Content.Payload.CandidateID,
		"kind", string(entry.delivery.Content.Payload.Kind),
	)
	if m.sink != nil {
		m.sink.Deliver(m.ctx, entry.delivery)
	}
}

// Cancel stops the notification with handle. Unknown handles are already
// gone and cancel successfully.
func (m *Memory) Cancel(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.pending[handle]; ok {
		entry.timer.Stop()
		delete(m.pending, handle)
	}
	return nil
}

// CancelAll stops every outstanding notification.
func (m *Memory) CancelAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for handle, entry := range m.pending {
		entry.timer.Stop()
		delete(m.pending, handle)
	}
	return nil
}

// Outstanding returns the handles that have not fired or been cancelled.
func (m *Memory) Outstanding(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pending))
	for h := range m.pending {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}

// Pending returns a snapshot of the outstanding deliveries ordered by trigger.
func (m *Memory) Pending() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Delivery, 0, len(m.pending))
	for _, e := range m.pending {
		out = append(out, e.delivery)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TriggerAt.Equal(out[j].TriggerAt) {
			return out[i].TriggerAt.Before(out[j].TriggerAt)
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}
