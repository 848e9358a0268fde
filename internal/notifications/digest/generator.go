package digest

import (
	"fmt"
	"strings"
	"time"

	"vigil/internal/types"
)

// Generator buckets candidates into per-day digests.
type Generator struct{}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate plans one digest per day of w. A day gets a digest only when
// digests and notifications are both enabled, the day's digest time is still
// ahead of now, and at least one non-muted candidate on that day is still
// upcoming. Timed candidates are upcoming while their start is after now;
// all-day candidates until their local day ends. Candidates are expected in
// start order.
func (g *Generator) Generate(w types.Window, candidates []types.CandidateEvent, prefs types.NotificationPreferences, overrides types.VisibilityOverrides, now time.Time) Plan {
	var plan Plan
	days := w.Days()

	skipAll := func(r SkipReason) Plan {
		for _, d := range days {
			plan.Skipped = append(plan.Skipped, DaySkip{Day: d, Reason: r})
		}
		return plan
	}
	switch {
	case !prefs.Enabled:
		return skipAll(SkipGloballyDisabled)
	case !prefs.DailyDigestEnabled:
		return skipAll(SkipDigestDisabled)
	}

	hour, minute, err := types.ParseTimeOfDay(prefs.DailyDigestTime)
	if err != nil {
		return skipAll(SkipInvalidTime)
	}

	byDay := make(map[string][]string, len(days))
	for _, c := range candidates {
		if overrides.IsMuted(c.ID) || !upcoming(c, w.Loc, now) {
			continue
		}
		key := types.DayKey(c.Start.Day(w.Loc))
		byDay[key] = append(byDay[key], c.Title)
	}

	for _, day := range days {
		trigger := TriggerAt(day, hour, minute)
		if !trigger.After(now) {
			plan.Skipped = append(plan.Skipped, DaySkip{Day: day, Reason: SkipTriggerPassed})
			continue
		}
		titles := byDay[types.DayKey(day)]
		if len(titles) == 0 {
			plan.Skipped = append(plan.Skipped, DaySkip{Day: day, Reason: SkipNoEvents})
			continue
		}
		plan.Digests = append(plan.Digests, Digest{
			ID:        ID(day),
			Day:       day,
			TriggerAt: trigger,
			Titles:    titles,
			Body:      Body(titles),
		})
	}
	return plan
}

// TriggerAt returns hour:minute local time on day. A wall time skipped by a
// DST transition resolves to the instant after the gap.
func TriggerAt(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// Body renders "N event(s) today: a, b, c and M more".
func Body(titles []string) string {
	n := len(titles)
	listed := titles
	if n > maxListedTitles {
		listed = titles[:maxListedTitles]
	}
	noun := "events"
	if n == 1 {
		noun = "event"
	}
	body := fmt.Sprintf("%d %s today: %s", n, noun, strings.Join(listed, ", "))
	if n > maxListedTitles {
		body += fmt.Sprintf(" and %d more", n-maxListedTitles)
	}
	return body
}

func upcoming(c types.CandidateEvent, loc *time.Location, now time.Time) bool {
	if c.Start.AllDay {
		return c.Start.Day(loc).AddDate(0, 0, 1).After(now)
	}
	return c.Start.Time.After(now)
}
