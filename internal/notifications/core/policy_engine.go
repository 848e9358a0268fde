package core

import (
	"context"
	"time"

	"vigil/internal/types"
)

// Compile-time assertion that PolicyEngine implements Policy.
var _ Policy = (*PolicyEngine)(nil)

// PolicyEngine is the production Eligibility Policy. It is a pure function of
// its inputs; the logger only records preference violations.
type PolicyEngine struct {
	logger types.Logger
}

// NewPolicyEngine creates a new PolicyEngine.
func NewPolicyEngine(logger types.Logger) *PolicyEngine {
	return &PolicyEngine{logger: logger}
}

// Decide applies the eligibility rules to one candidate. Rules run in order
// and the first that matches wins:
//  1. reminders disabled globally -> globally_disabled
//  2. candidate muted -> muted
//  3. broadcast candidate not explicitly allowed -> not_opted_in
//  4. all-day candidate -> all_day
//  5. start already passed -> already_started
//  6. less than the lead time left -> too_close
//  7. reminder instant already passed -> reminder_in_past
//  8. reminder less than a minute away -> reminder_imminent
//
// Otherwise the candidate is eligible at start minus the lead time. A
// non-positive lead is a policy violation: logged and treated as a skip.
func (e *PolicyEngine) Decide(ctx context.Context, c types.CandidateEvent, prefs types.NotificationPreferences, overrides types.VisibilityOverrides, now time.Time) Decision {
	if !prefs.Enabled {
		return skip(SkipGloballyDisabled)
	}
	if overrides.IsMuted(c.ID) {
		return skip(SkipMuted)
	}
	if c.SourceType == types.SourceBroadcast && !overrides.IsAllowed(c.ID) {
		return skip(SkipNotOptedIn)
	}
	if c.Start.AllDay {
		return skip(SkipAllDay)
	}

	lead := prefs.Lead()
	if lead <= 0 {
		if e.logger != nil {
			e.logger.Error("invalid reminder lead time",
				"error_code", string(types.ErrCodePolicyViolation),
				"candidate_id", c.ID,
				"run_id", types.GetRunID(ctx),
				"reminder_lead_minutes", prefs.ReminderLeadMinutes,
			)
		}
		return skip(SkipInvalidPreference)
	}

	start := c.Start.Time
	reminderAt := start.Add(-lead)

	switch {
	case !start.After(now):
		return skip(SkipAlreadyStarted)
	case start.Sub(now) < lead:
		return skip(SkipTooClose)
	case !reminderAt.After(now):
		return skip(SkipReminderInPast)
	case reminderAt.Sub(now) < MinReminderHeadroom:
		return skip(SkipReminderImminent)
	}

	return Decision{Eligible: true, ReminderAt: reminderAt}
}

func skip(r SkipReason) Decision {
	return Decision{Reason: r}
}
