package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"vigil/internal/notifications/core"
	"vigil/internal/types"
)

// run performs one reconciliation. It never panics and never returns an
// error; the summary records what happened.
func (e *Engine) run(ctx context.Context, explicitUser string) (summary RunSummary) {
	runID := uuid.NewString()
	ctx = types.WithRunID(ctx, runID)
	started := e.clock.Now()
	log := e.logger.With("run_id", runID)

	summary = RunSummary{RunID: runID, StartedAt: started, Skipped: map[string]int{}}
	defer func() {
		summary.Duration = e.clock.Now().Sub(started)
		e.metrics.RecordDuration(ctx, summary.Duration)
		e.metrics.RecordRun(ctx, metricResult(summary.Result))
		log.InfoContext(ctx, "reconciliation finished",
			"result", string(summary.Result),
			"reminders", summary.Reminders,
			"digests", summary.Digests,
			"candidates", summary.Candidates,
			"duration_ms", summary.Duration.Milliseconds(),
		)
	}()

	userID := explicitUser
	if userID == "" {
		if id, ok := e.session.CurrentUserID(ctx); ok {
			userID = id
		}
	}
	if userID == "" {
		log.InfoContext(ctx, "no signed-in user, skipping reconciliation")
		summary.Result = RunSkipped
		return summary
	}
	summary.UserID = userID

	// (a) Cancel everything the previous run scheduled.
	cancelled, unconfirmed := e.cancelLedger(ctx)
	summary.Cancelled = cancelled
	if len(unconfirmed) > 0 {
		if err := e.backend.CancelAll(ctx); err != nil {
			summary.Unconfirmed = len(unconfirmed)
			summary.Result = RunAborted
			summary.Error = fmt.Sprintf("cancel all: %v", err)
			log.ErrorContext(ctx, "could not cancel previous notifications, aborting run",
				"error_code", string(types.ErrCodeSchedulingRejected),
				"unconfirmed", len(unconfirmed),
				"error", err,
			)
			// Keep only what may still fire so the next run retries it.
			e.setLedger(unconfirmed)
			e.persist(ctx, unconfirmed, &summary)
			return summary
		}
		summary.Cancelled += len(unconfirmed)
	}

	// (b) The ledger is empty until the new schedule is committed.
	e.setLedger(nil)
	e.persist(ctx, nil, &summary)

	// (c)-(f) Build the new schedule. A panic keeps whatever was scheduled.
	next := e.plan(ctx, userID, &summary)

	// (g) Commit.
	sortLedger(next)
	e.setLedger(next)
	e.persist(ctx, next, &summary)

	if summary.Result == "" {
		summary.Result = RunSucceeded
	}
	return summary
}

// plan runs steps (c) to (f) and returns the records scheduled so far, even
// when it is cut short by a panic.
func (e *Engine) plan(ctx context.Context, userID string, summary *RunSummary) (next []types.ScheduledNotificationRecord) {
	defer func() {
		if r := recover(); r != nil {
			summary.Result = RunPartial
			summary.Error = fmt.Sprintf("panic: %v", r)
			e.logger.ErrorContext(ctx, "reconciliation panicked, keeping partial schedule",
				"run_id", types.GetRunID(ctx),
				"panic", fmt.Sprint(r),
				"scheduled", len(next),
			)
		}
	}()

	prefs, err := e.prefs.Preferences(ctx)
	if err != nil {
		e.fail(ctx, summary, "read preferences", err)
		return nil
	}
	overrides, err := e.vis.Overrides(ctx)
	if err != nil {
		e.fail(ctx, summary, "read visibility overrides", err)
		return nil
	}

	now := e.clock.Now()
	window := types.NewWindow(now, e.windowDays, e.loc)
	res := e.collector.Collect(ctx, userID, window)
	summary.Candidates = len(res.Candidates)
	for _, f := range res.Failures {
		summary.SourceFailures = append(summary.SourceFailures, string(f.Source))
		e.metrics.RecordSourceFailure(ctx, f.Source)
	}
	if len(res.Failures) > 0 {
		summary.Result = RunPartial
	}

	displayName := e.displayName(ctx, userID)

	// (d)+(e) Reminders.
	skipped := map[core.SkipReason]int{}
	for _, c := range res.Candidates {
		d := e.policy.Decide(ctx, c, prefs, overrides, now)
		if !d.Eligible {
			skipped[d.Reason]++
			continue
		}
		content := e.content.Reminder(displayName, c, prefs)
		rec, ok := e.schedule(ctx, content, d.ReminderAt, c.Start.Time, summary)
		if ok {
			next = append(next, rec)
			summary.Reminders++
		}
	}
	for reason, n := range skipped {
		summary.Skipped[string(reason)] = n
		e.metrics.RecordSkipped(ctx, reason, n)
	}

	// (f) Digests.
	digests := e.digests.Generate(window, res.Candidates, prefs, overrides, now)
	for _, d := range digests.Digests {
		content := e.content.Digest(displayName, d.ID, d.Body, prefs)
		rec, ok := e.schedule(ctx, content, d.TriggerAt, d.Day, summary)
		if ok {
			next = append(next, rec)
			summary.Digests++
		}
	}

	e.metrics.RecordScheduled(ctx, types.KindReminder, summary.Reminders)
	e.metrics.RecordScheduled(ctx, types.KindDigest, summary.Digests)
	return next
}

func (e *Engine) schedule(ctx context.Context, content types.NotificationContent, at, subject time.Time, summary *RunSummary) (types.ScheduledNotificationRecord, bool) {
	handle, err := e.backend.Schedule(ctx, content, at)
	if err != nil {
		summary.Rejected++
		summary.Result = RunPartial
		e.logger.WarnContext(ctx, "notification rejected by backend",
			"error_code", string(types.ErrCodeSchedulingRejected),
			"run_id", types.GetRunID(ctx),
			"candidate_id", content.Payload.CandidateID,
			"kind", string(content.Payload.Kind),
			"error", err,
		)
		return types.ScheduledNotificationRecord{}, false
	}
	return types.ScheduledNotificationRecord{
		Handle:      handle,
		CandidateID: content.Payload.CandidateID,
		Kind:        content.Payload.Kind,
		ScheduledAt: at,
		SubjectAt:   subject,
		Title:       content.Title,
		Body:        content.Body,
	}, true
}

// cancelLedger cancels every ledger handle. Confirmed cancels leave the
// ledger; the rest are returned.
func (e *Engine) cancelLedger(ctx context.Context) (confirmed int, unconfirmed []types.ScheduledNotificationRecord) {
	for _, rec := range e.LedgerSnapshot() {
		if err := e.cancelWithRetry(ctx, rec.Handle); err != nil {
			e.logger.WarnContext(ctx, "cancel not confirmed",
				"run_id", types.GetRunID(ctx),
				"handle", rec.Handle,
				"candidate_id", rec.CandidateID,
				"error", err,
			)
			unconfirmed = append(unconfirmed, rec)
			continue
		}
		confirmed++
	}
	return confirmed, unconfirmed
}

func (e *Engine) cancelWithRetry(ctx context.Context, handle string) error {
	var err error
	for attempt := 0; attempt < e.cancelRetry.MaxAttempts; attempt++ {
		if err = e.backend.Cancel(ctx, handle); err == nil {
			return nil
		}
		if attempt == e.cancelRetry.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(core.CalculateNextRetry(e.cancelRetry, attempt)):
		}
	}
	return err
}

func (e *Engine) persist(ctx context.Context, records []types.ScheduledNotificationRecord, summary *RunSummary) {
	if err := e.store.ReplaceLedger(ctx, records); err != nil {
		if summary.Result == "" || summary.Result == RunSucceeded {
			summary.Result = RunPartial
		}
		e.logger.ErrorContext(ctx, "failed to persist ledger",
			"error_code", string(types.ErrCodePersistenceFailure),
			"run_id", types.GetRunID(ctx),
			"records", len(records),
			"error", err,
		)
	}
}

func (e *Engine) fail(ctx context.Context, summary *RunSummary, op string, err error) {
	summary.Result = RunPartial
	summary.Error = fmt.Sprintf("%s: %v", op, err)
	e.logger.ErrorContext(ctx, "reconciliation step failed",
		"error_code", string(types.CodeOf(err)),
		"run_id", types.GetRunID(ctx),
		"step", op,
		"error", err,
	)
}

func (e *Engine) displayName(ctx context.Context, userID string) string {
	if e.names == nil {
		return ""
	}
	name, err := e.names.DisplayName(ctx, userID)
	if err != nil {
		e.logger.WarnContext(ctx, "display name lookup failed, using default titles",
			"run_id", types.GetRunID(ctx),
			"error", err,
		)
		return ""
	}
	return name
}

func sortLedger(records []types.ScheduledNotificationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].ScheduledAt.Equal(records[j].ScheduledAt) {
			return records[i].ScheduledAt.Before(records[j].ScheduledAt)
		}
		return records[i].CandidateID < records[j].CandidateID
	})
}

func metricResult(r RunResult) core.MetricResult {
	switch r {
	case RunSucceeded:
		return core.MetricSuccess
	case RunPartial:
		return core.MetricPartial
	case RunSkipped:
		return core.MetricSkipped
	default:
		return core.MetricFailed
	}
}
