package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"vigil/internal/notifications/core"
	"vigil/internal/sources"
	"vigil/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// fakeStore implements the three engine stores in memory.
type fakeStore struct {
	mu         sync.Mutex
	prefs      types.NotificationPreferences
	overrides  types.VisibilityOverrides
	ledger     []types.ScheduledNotificationRecord
	replaceErr error
	saves      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{prefs: types.DefaultPreferences(), overrides: types.VisibilityOverrides{}}
}

func (s *fakeStore) Preferences(context.Context) (types.NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

func (s *fakeStore) SavePreferences(_ context.Context, p types.NotificationPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
	return nil
}

func (s *fakeStore) Overrides(context.Context) (types.VisibilityOverrides, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := types.VisibilityOverrides{}
	for k, v := range s.overrides {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) set(id string, state types.Visibility, on bool) types.Visibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.overrides[id] = state
	} else if s.overrides[id] == state {
		delete(s.overrides, id)
	}
	return s.overrides.State(id)
}

func (s *fakeStore) SetMuted(_ context.Context, id string, muted bool) (types.Visibility, error) {
	return s.set(id, types.VisibilityMuted, muted), nil
}

func (s *fakeStore) SetAllowed(_ context.Context, id string, allowed bool) (types.Visibility, error) {
	return s.set(id, types.VisibilityAllowed, allowed), nil
}

func (s *fakeStore) LoadLedger(context.Context) ([]types.ScheduledNotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ScheduledNotificationRecord(nil), s.ledger...), nil
}

func (s *fakeStore) ReplaceLedger(_ context.Context, records []types.ScheduledNotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.ledger = append([]types.ScheduledNotificationRecord(nil), records...)
	return nil
}

func (s *fakeStore) RemoveLedgerRecords(_ context.Context, handles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := map[string]bool{}
	for _, h := range handles {
		drop[h] = true
	}
	kept := s.ledger[:0]
	for _, r := range s.ledger {
		if !drop[r.Handle] {
			kept = append(kept, r)
		}
	}
	s.ledger = kept
	return nil
}

func (s *fakeStore) storedLedger() []types.ScheduledNotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ScheduledNotificationRecord(nil), s.ledger...)
}

// fakeCollector returns a fixed candidate list and counts calls. When gate is
// set, each call blocks until a value is received from it.
type fakeCollector struct {
	mu         sync.Mutex
	candidates []types.CandidateEvent
	failures   []sources.SourceFailure
	calls      atomic.Int32
	gate       chan struct{}
	entered    chan struct{}
}

func (c *fakeCollector) Collect(_ context.Context, _ string, w types.Window) sources.Result {
	c.calls.Add(1)
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return sources.Result{Window: w, Candidates: sources.Merge(w, c.candidates), Failures: c.failures}
}

func (c *fakeCollector) setCandidates(cs ...types.CandidateEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = cs
}

// fakeBackend records scheduled notifications.
type fakeBackend struct {
	mu           sync.Mutex
	seq          int
	pending      map[string]types.NotificationContent
	triggers     map[string]time.Time
	failCancel   map[string]bool
	cancelAllErr error
	rejectIDs    map[string]bool
	cancels      []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		pending:    map[string]types.NotificationContent{},
		triggers:   map[string]time.Time{},
		failCancel: map[string]bool{},
		rejectIDs:  map[string]bool{},
	}
}

func (b *fakeBackend) Schedule(_ context.Context, c types.NotificationContent, at time.Time) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectIDs[c.Payload.CandidateID] {
		return "", types.NewAppError(types.ErrCodeSchedulingRejected, "rejected", nil)
	}
	b.seq++
	h := fmt.Sprintf("h%d", b.seq)
	b.pending[h] = c
	b.triggers[h] = at
	return h, nil
}

func (b *fakeBackend) Cancel(_ context.Context, h string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancels = append(b.cancels, h)
	if b.failCancel[h] {
		return errors.New("platform refused")
	}
	delete(b.pending, h)
	delete(b.triggers, h)
	return nil
}

func (b *fakeBackend) CancelAll(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelAllErr != nil {
		return b.cancelAllErr
	}
	b.pending = map[string]types.NotificationContent{}
	b.triggers = map[string]time.Time{}
	return nil
}

func (b *fakeBackend) Outstanding(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.pending))
	for h := range b.pending {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *fakeBackend) cancelled(h string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.cancels {
		if c == h {
			return true
		}
	}
	return false
}

// panickingPolicy delegates to the real policy but panics on one id.
type panickingPolicy struct {
	core.Policy
	on string
}

func (p panickingPolicy) Decide(ctx context.Context, c types.CandidateEvent, prefs types.NotificationPreferences, o types.VisibilityOverrides, now time.Time) core.Decision {
	if c.ID == p.on {
		panic("bad candidate")
	}
	return p.Policy.Decide(ctx, c, prefs, o, now)
}

// noopLogger satisfies types.Logger for the policy engine.
type noopLogger struct{}

func (noopLogger) Info(string, ...any)        {}
func (noopLogger) Error(string, ...any)       {}
func (noopLogger) Warn(string, ...any)        {}
func (l noopLogger) With(...any) types.Logger { return l }
