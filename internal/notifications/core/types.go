// Package core holds the pieces of reminder planning that do not depend on
// where candidates come from or where notifications go: the eligibility
// policy, the content builder, the Notification Backend contract and the
// reconciliation metrics.
package core

import (
	"context"
	"time"

	"vigil/internal/types"
)

// SkipReason explains why a candidate did not get a reminder.
type SkipReason string

const (
	SkipGloballyDisabled  SkipReason = "globally_disabled"
	SkipMuted             SkipReason = "muted"
	SkipNotOptedIn        SkipReason = "not_opted_in"
	SkipAllDay            SkipReason = "all_day"
	SkipAlreadyStarted    SkipReason = "already_started"
	SkipTooClose          SkipReason = "too_close"
	SkipReminderInPast    SkipReason = "reminder_in_past"
	SkipReminderImminent  SkipReason = "reminder_imminent"
	SkipInvalidPreference SkipReason = "policy_violation"
)

// MinReminderHeadroom is the least time between now and a reminder's trigger
// for it to be worth scheduling.
const MinReminderHeadroom = time.Minute

// Decision is the Eligibility Policy's verdict for one candidate.
type Decision struct {
	Eligible   bool
	ReminderAt time.Time
	Reason     SkipReason // empty when Eligible
}

// Policy decides whether a candidate gets a reminder and when.
type Policy interface {
	Decide(ctx context.Context, c types.CandidateEvent, prefs types.NotificationPreferences, overrides types.VisibilityOverrides, now time.Time) Decision
}

// Backend is the platform facility that actually fires local notifications.
// Handles are opaque and only meaningful to the backend that issued them.
type Backend interface {
	Schedule(ctx context.Context, content types.NotificationContent, trigger time.Time) (string, error)
	Cancel(ctx context.Context, handle string) error
	CancelAll(ctx context.Context) error
}

// OutstandingLister is implemented by backends that can enumerate the
// handles they still hold. The engine uses it to reconcile the ledger after
// a crash.
type OutstandingLister interface {
	Outstanding(ctx context.Context) ([]string, error)
}

// MetricResult categorizes a reconciliation outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricPartial MetricResult = "partial"
	MetricFailed  MetricResult = "failed"
	MetricSkipped MetricResult = "skipped"
)

// NotificationMetrics abstracts CloudWatch/telemetry operations for
// reconciliation.
type NotificationMetrics interface {
	RecordRun(ctx context.Context, result MetricResult)
	RecordDuration(ctx context.Context, d time.Duration)
	RecordScheduled(ctx context.Context, kind types.NotificationKind, count int)
	RecordSkipped(ctx context.Context, reason SkipReason, count int)
	RecordSourceFailure(ctx context.Context, source types.SourceType)
}

// RetryPolicy defines exponential backoff parameters for backend calls.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// CancelRetryPolicy governs how hard the engine tries to confirm a single
// cancel before treating it as unconfirmed.
var CancelRetryPolicy = RetryPolicy{
	MaxAttempts:   3,
	BaseDelay:     50 * time.Millisecond,
	MaxDelay:      500 * time.Millisecond,
	BackoffFactor: 2.0,
}

// CalculateNextRetry computes the delay before the next retry attempt using
// exponential backoff: delay = min(BaseDelay * BackoffFactor^attempt, MaxDelay).
func CalculateNextRetry(policy RetryPolicy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(policy.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= policy.BackoffFactor
	}

	d := time.Duration(delay)
	if d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	if d < 0 {
		// Guard against overflow
		d = policy.MaxDelay
	}

	return d
}
