package scheduler

import (
	"context"
	"fmt"

	"vigil/internal/types"
)

// Preferences returns the stored preferences.
func (e *Engine) Preferences(ctx context.Context) (types.NotificationPreferences, error) {
	return e.prefs.Preferences(ctx)
}

// UpdatePreferences applies patch, persists the result and schedules a
// rebuild.
func (e *Engine) UpdatePreferences(ctx context.Context, patch types.PreferencesPatch) (types.NotificationPreferences, error) {
	if err := types.ValidatePreferencesPatch(patch); err != nil {
		return types.NotificationPreferences{}, err
	}
	current, err := e.prefs.Preferences(ctx)
	if err != nil {
		return types.NotificationPreferences{}, err
	}
	if patch.IsEmpty() {
		return current, nil
	}
	next := current.Apply(patch)
	if err := e.prefs.SavePreferences(ctx, next); err != nil {
		return types.NotificationPreferences{}, err
	}
	_ = e.Trigger("", "preferences_updated")
	return next, nil
}

// SetMuted mutes or un-mutes a candidate. Muting cancels the candidate's
// reminder straight away when no run is in progress; the debounced rebuild
// takes care of everything else.
func (e *Engine) SetMuted(ctx context.Context, candidateID string, muted bool) (types.Visibility, error) {
	if err := types.ValidateCandidateID(candidateID); err != nil {
		return "", err
	}
	state, err := e.vis.SetMuted(ctx, candidateID, muted)
	if err != nil {
		return "", err
	}
	if state == types.VisibilityMuted {
		e.cancelCandidate(ctx, candidateID)
	}
	_ = e.Trigger("", "visibility_changed")
	return state, nil
}

// SetAllowed adds a broadcast candidate to or removes it from the allowlist.
// Other sources are rejected, so the allowlist can never lift a mute on an
// appointment or personal item. Removing the opt-in cancels the reminder
// straight away when no run is in progress.
func (e *Engine) SetAllowed(ctx context.Context, candidateID string, allowed bool) (types.Visibility, error) {
	if err := types.ValidateAllowlistID(candidateID); err != nil {
		return "", err
	}
	state, err := e.vis.SetAllowed(ctx, candidateID, allowed)
	if err != nil {
		return "", err
	}
	if state != types.VisibilityAllowed {
		e.cancelCandidate(ctx, candidateID)
	}
	_ = e.Trigger("", "visibility_changed")
	return state, nil
}

// cancelCandidate cancels the reminder for candidateID on the actor goroutine.
// It does nothing while a run is in progress, since that run or its follow-up
// rebuilds from the updated overrides.
func (e *Engine) cancelCandidate(ctx context.Context, candidateID string) {
	err := e.do(ctx, func(running bool) {
		if running {
			return
		}
		var (
			handles []string
			kept    []types.ScheduledNotificationRecord
		)
		for _, r := range e.LedgerSnapshot() {
			if r.CandidateID != candidateID || r.Kind != types.KindReminder {
				kept = append(kept, r)
				continue
			}
			if err := e.backend.Cancel(ctx, r.Handle); err != nil {
				e.logger.WarnContext(ctx, "targeted cancel failed", "candidate_id", candidateID, "handle", r.Handle, "error", err)
				kept = append(kept, r)
				continue
			}
			handles = append(handles, r.Handle)
		}
		if len(handles) == 0 {
			return
		}
		e.setLedger(kept)
		if err := e.store.RemoveLedgerRecords(ctx, handles); err != nil {
			e.logger.ErrorContext(ctx, "failed to persist targeted cancel",
				"error_code", string(types.ErrCodePersistenceFailure),
				"candidate_id", candidateID,
				"error", err,
			)
		}
		e.logger.InfoContext(ctx, "reminder cancelled", "candidate_id", candidateID, "handles", len(handles))
	})
	if err != nil {
		e.logger.DebugContext(ctx, "targeted cancel skipped", "candidate_id", candidateID, "reason", fmt.Sprint(err))
	}
}
