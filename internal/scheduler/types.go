// Package scheduler implements the Reconciliation Engine: a single actor that
// turns triggers into debounced, non-overlapping rebuilds of the set of
// scheduled reminders and digests.
package scheduler

import (
	"context"
	"time"

	"vigil/internal/sources"
	"vigil/internal/types"
)

// State is the engine's lifecycle state.
type State string

const (
	StateIdle            State = "idle"
	StatePendingDebounce State = "pending_debounce"
	StateRunning         State = "running"
	StateStopped         State = "stopped"
)

// RunResult classifies how a reconciliation run ended.
type RunResult string

const (
	RunSucceeded RunResult = "success"
	// RunPartial means the run completed but some source, schedule or persist
	// step failed along the way.
	RunPartial RunResult = "partial"
	// RunAborted means the run stopped early, for example because old
	// notifications could not be cancelled.
	RunAborted RunResult = "aborted"
	RunSkipped RunResult = "skipped"
)

// RunSummary describes the most recent reconciliation run.
type RunSummary struct {
	RunID          string         `json:"run_id"`
	UserID         string         `json:"user_id,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	Duration       time.Duration  `json:"duration_ns"`
	Result         RunResult      `json:"result"`
	Cancelled      int            `json:"cancelled"`
	Unconfirmed    int            `json:"unconfirmed"`
	Candidates     int            `json:"candidates"`
	Reminders      int            `json:"reminders"`
	Digests        int            `json:"digests"`
	Rejected       int            `json:"rejected"`
	Skipped        map[string]int `json:"skipped,omitempty"`
	SourceFailures []string       `json:"source_failures,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	State      State       `json:"state"`
	Generation uint64      `json:"generation"`
	Runs       uint64      `json:"runs"`
	LedgerSize int         `json:"ledger_size"`
	LastRun    *RunSummary `json:"last_run,omitempty"`
}

// PreferenceStore persists the device's notification preferences.
type PreferenceStore interface {
	Preferences(ctx context.Context) (types.NotificationPreferences, error)
	SavePreferences(ctx context.Context, p types.NotificationPreferences) error
}

// VisibilityStore persists per-candidate visibility overrides.
type VisibilityStore interface {
	Overrides(ctx context.Context) (types.VisibilityOverrides, error)
	SetMuted(ctx context.Context, id string, muted bool) (types.Visibility, error)
	SetAllowed(ctx context.Context, id string, allowed bool) (types.Visibility, error)
}

// LedgerStore persists the Notification Ledger.
type LedgerStore interface {
	LoadLedger(ctx context.Context) ([]types.ScheduledNotificationRecord, error)
	ReplaceLedger(ctx context.Context, records []types.ScheduledNotificationRecord) error
	RemoveLedgerRecords(ctx context.Context, handles []string) error
}

// Collector gathers candidates for a run. *sources.Aggregator implements it.
type Collector interface {
	Collect(ctx context.Context, userID string, w types.Window) sources.Result
}
