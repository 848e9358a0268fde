package backend

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingSink struct {
	mu  sync.Mutex
	got []Delivery
	ch  chan struct{}
}

func newRecordingSink() *recordingSink { return &recordingSink{ch: make(chan struct{}, 16)} }

func (s *recordingSink) Deliver(_ context.Context, d Delivery) {
	s.mu.Lock()
	s.got = append(s.got, d)
	s.mu.Unlock()
	s.ch <- struct{}{}
}

func content(id string) types.NotificationContent {
	return types.NotificationContent{
		Title:   "Upcoming Parish Event",
		Body:    id + " starts in 30 minutes",
		Payload: types.RoutingPayload{CandidateID: id, Kind: types.KindReminder},
	}
}

func TestMemory_ScheduleAndFire(t *testing.T) {
	sink := newRecordingSink()
	m := NewMemory(context.Background(), sink, discardLogger())

	h, err := m.Schedule(context.Background(), content("personal:1"), time.Now().Add(20*time.Millisecond))
	require.NoError(t, err)
	assert.NotEmpty(t, h)

	out, _ := m.Outstanding(context.Background())
	assert.Equal(t, []string{h}, out)

	select {
	case <-sink.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never fired")
	}
	require.Len(t, sink.got, 1)
	assert.Equal(t, h, sink.got[0].Handle)
	assert.Equal(t, "personal:1", sink.got[0].Content.Payload.CandidateID)

	out, _ = m.Outstanding(context.Background())
	assert.Empty(t, out)
}

func TestMemory_CancelStopsDelivery(t *testing.T) {
	sink := newRecordingSink()
	m := NewMemory(context.Background(), sink, discardLogger())
	ctx := context.Background()

	h1, err := m.Schedule(ctx, content("personal:1"), time.Now().Add(30*time.Millisecond))
	require.NoError(t, err)
	_, err = m.Schedule(ctx, content("personal:2"), time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, m.Cancel(ctx, h1))
	require.NoError(t, m.Cancel(ctx, "unknown-handle"))
	assert.Len(t, m.Pending(), 1)

	require.NoError(t, m.CancelAll(ctx))
	assert.Empty(t, m.Pending())

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, sink.got)
}

func TestMemory_Rejections(t *testing.T) {
	now := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)
	m := NewMemory(context.Background(), nil, discardLogger(), WithMemoryClock(fixedClock{now}), WithMaxPending(1))
	ctx := context.Background()

	_, err := m.Schedule(ctx, content("personal:1"), now)
	assert.True(t, types.IsCode(err, types.ErrCodeSchedulingRejected))

	_, err = m.Schedule(ctx, types.NotificationContent{}, now.Add(time.Hour))
	assert.True(t, types.IsCode(err, types.ErrCodeSchedulingRejected))

	_, err = m.Schedule(ctx, content("personal:1"), now.Add(time.Hour))
	require.NoError(t, err)
	_, err = m.Schedule(ctx, content("personal:2"), now.Add(2*time.Hour))
	assert.True(t, types.IsCode(err, types.ErrCodeSchedulingRejected))

	require.NoError(t, m.CancelAll(ctx))
}

func TestMemory_PendingOrder(t *testing.T) {
	now := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)
	m := NewMemory(context.Background(), nil, discardLogger(), WithMemoryClock(fixedClock{now}))
	ctx := context.Background()
	defer func() { _ = m.CancelAll(ctx) }()

	_, _ = m.Schedule(ctx, content("b"), now.Add(2*time.Hour))
	_, _ = m.Schedule(ctx, content("a"), now.Add(time.Hour))

	p := m.Pending()
	require.Len(t, p, 2)
	assert.Equal(t, "a", p[0].Content.Payload.CandidateID)
	assert.Equal(t, "b", p[1].Content.Payload.CandidateID)
}
