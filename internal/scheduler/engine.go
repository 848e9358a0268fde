package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vigil/internal/notifications/core"
	"vigil/internal/notifications/digest"
	"vigil/internal/types"
)

// Defaults applied by New when the config leaves a field zero.
const (
	DefaultDebounce   = 500 * time.Millisecond
	DefaultWindowDays = 3
)

// ErrEngineStopped is returned by calls that need a running engine.
var ErrEngineStopped = types.NewAppError(types.ErrCodeConflictEngineStopped, "reconciliation engine is not running", nil)

// Config holds the engine's collaborators and tunables.
type Config struct {
	Preferences PreferenceStore
	Visibility  VisibilityStore
	Ledger      LedgerStore
	Collector   Collector
	Backend     core.Backend

	Policy   core.Policy
	Content  *core.ContentBuilder
	Digests  *digest.Generator
	Session  types.SessionProvider
	Names    types.DisplayNameResolver // optional
	Metrics  core.NotificationMetrics  // optional
	Clock    types.Clock               // optional
	Logger   *slog.Logger              // optional
	Location *time.Location            // device timezone, UTC when nil

	WindowDays  int
	Debounce    time.Duration
	CancelRetry core.RetryPolicy
}

type trigger struct {
	userID string
	reason string
}

// Engine is the Reconciliation Engine. All state transitions happen on one
// actor goroutine started by Start; the public methods only send it messages
// or read published snapshots.
type Engine struct {
	prefs     PreferenceStore
	vis       VisibilityStore
	store     LedgerStore
	collector Collector
	backend   core.Backend
	policy    core.Policy
	content   *core.ContentBuilder
	digests   *digest.Generator
	session   types.SessionProvider
	names     types.DisplayNameResolver
	metrics   core.NotificationMetrics
	clock     types.Clock
	logger    *slog.Logger
	loc       *time.Location

	windowDays  int
	debounce    time.Duration
	cancelRetry core.RetryPolicy

	triggers chan trigger
	cmds     chan func(running bool)
	stop     chan struct{}
	done     chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once

	// ledger is written by the run goroutine and by targeted cancels on the
	// actor goroutine, never both at once.
	ledgerMu sync.RWMutex
	ledger   []types.ScheduledNotificationRecord

	statusMu sync.RWMutex
	status   Status
}

// New creates an Engine. It does nothing until Start is called.
func New(cfg Config) *Engine {
	e := &Engine{
		prefs:       cfg.Preferences,
		vis:         cfg.Visibility,
		store:       cfg.Ledger,
		collector:   cfg.Collector,
		backend:     cfg.Backend,
		policy:      cfg.Policy,
		content:     cfg.Content,
		digests:     cfg.Digests,
		session:     cfg.Session,
		names:       cfg.Names,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		loc:         cfg.Location,
		windowDays:  cfg.WindowDays,
		debounce:    cfg.Debounce,
		cancelRetry: cfg.CancelRetry,
		triggers:    make(chan trigger, 64),
		cmds:        make(chan func(bool)),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	if e.content == nil {
		e.content = core.NewContentBuilder()
	}
	if e.digests == nil {
		e.digests = digest.NewGenerator()
	}
	if e.session == nil {
		e.session = types.StaticSession{}
	}
	if e.metrics == nil {
		e.metrics = core.NoopMetrics{}
	}
	if e.clock == nil {
		e.clock = types.RealClock{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.windowDays <= 0 {
		e.windowDays = DefaultWindowDays
	}
	if e.debounce <= 0 {
		e.debounce = DefaultDebounce
	}
	if e.cancelRetry.MaxAttempts <= 0 {
		e.cancelRetry = core.CancelRetryPolicy
	}
	e.status.State = StateIdle
	return e
}

// Start recovers the ledger against the backend and launches the actor.
// ctx bounds every run; cancelling it has the same effect as Stop.
func (e *Engine) Start(ctx context.Context) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.started {
		return errors.New("engine already started")
	}

	if err := e.recoverLedger(ctx); err != nil {
		return err
	}

	e.started = true
	go e.loop(ctx)
	return nil
}

// Stop ends the actor, waiting for an in-progress run to finish. Pending
// debounced triggers are dropped.
func (e *Engine) Stop() {
	e.startMu.Lock()
	started := e.started
	e.startMu.Unlock()

	e.stopOnce.Do(func() { close(e.stop) })
	if started {
		<-e.done
	}
	e.setState(StateStopped)
}

// Refresh requests a reconciliation for userID, or for the session's user when
// userID is empty. Bursts of calls coalesce into one run. Reconciliation
// failures are logged and never returned.
func (e *Engine) Refresh(userID string) error {
	return e.Trigger(userID, "refresh")
}

// Trigger is Refresh with a reason recorded in the logs, used by the
// preference, visibility, queue and foreground hooks.
func (e *Engine) Trigger(userID, reason string) error {
	select {
	case <-e.stop:
		return ErrEngineStopped
	default:
	}
	select {
	case e.triggers <- trigger{userID: userID, reason: reason}:
	default:
		// The buffer only fills while triggers are already queued, and those
		// will arm the debounce anyway.
		e.logger.Debug("trigger dropped, queue full", "reason", reason)
	}
	return nil
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	s := e.status
	if s.LastRun != nil {
		lr := *s.LastRun
		s.LastRun = &lr
	}
	s.LedgerSize = len(e.LedgerSnapshot())
	return s
}

// LedgerSnapshot returns a copy of the current ledger in trigger order.
func (e *Engine) LedgerSnapshot() []types.ScheduledNotificationRecord {
	e.ledgerMu.RLock()
	defer e.ledgerMu.RUnlock()
	out := make([]types.ScheduledNotificationRecord, len(e.ledger))
	copy(out, e.ledger)
	return out
}

func (e *Engine) setLedger(records []types.ScheduledNotificationRecord) {
	e.ledgerMu.Lock()
	e.ledger = records
	e.ledgerMu.Unlock()
}

func (e *Engine) setState(s State) {
	e.statusMu.Lock()
	e.status.State = s
	e.statusMu.Unlock()
}

func (e *Engine) updateStatus(fn func(*Status)) {
	e.statusMu.Lock()
	fn(&e.status)
	e.statusMu.Unlock()
}

// loop is the actor. It alone owns the debounce timer, the generation
// counter and the running flag.
func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	var (
		timer      *time.Timer
		timerC     <-chan time.Time
		pendingFor string
		running    bool
		generation uint64
		runGen     uint64
		runDone    = make(chan RunSummary, 1)
	)

	arm := func() {
		if timer == nil {
			timer = time.NewTimer(e.debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(e.debounce)
		}
		timerC = timer.C
		e.setState(StatePendingDebounce)
	}

	shutdown := func() {
		if timer != nil {
			timer.Stop()
		}
		if running {
			<-runDone
		}
	}

	for {
		select {
		case <-e.stop:
			shutdown()
			return

		case <-ctx.Done():
			shutdown()
			return

		case t := <-e.triggers:
			generation++
			e.updateStatus(func(s *Status) { s.Generation = generation })
			if t.userID != "" {
				pendingFor = t.userID
			}
			e.logger.Debug("reconciliation triggered", "reason", t.reason, "generation", generation, "running", running)
			if running {
				// The run finishing with a stale generation arms a follow-up.
				continue
			}
			arm()

		case <-timerC:
			timerC = nil
			running = true
			runGen = generation
			userID := pendingFor
			pendingFor = ""
			e.setState(StateRunning)
			go func() { runDone <- e.run(ctx, userID) }()

		case summary := <-runDone:
			running = false
			e.updateStatus(func(s *Status) {
				s.Runs++
				s.LastRun = &summary
			})
			if generation != runGen {
				arm()
			} else {
				e.setState(StateIdle)
			}

		case cmd := <-e.cmds:
			cmd(running)
		}
	}
}

// do runs fn on the actor goroutine and waits for it. running reports
// whether a reconciliation is in progress.
func (e *Engine) do(ctx context.Context, fn func(running bool)) error {
	e.startMu.Lock()
	started := e.started
	e.startMu.Unlock()
	if !started {
		return ErrEngineStopped
	}
	finished := make(chan struct{})
	wrapped := func(running bool) {
		defer close(finished)
		fn(running)
	}
	select {
	case e.cmds <- wrapped:
	case <-e.stop:
		return ErrEngineStopped
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}
