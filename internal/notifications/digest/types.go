// Package digest plans the once-a-day summary notifications: which days get
// one, when it fires and what it says.
package digest

import (
	"time"

	"vigil/internal/types"
)

// maxListedTitles is how many event titles a digest body names before
// summarizing the rest as "and N more".
const maxListedTitles = 3

// Digest is one planned daily summary.
type Digest struct {
	ID        string    // digest:YYYY-MM-DD
	Day       time.Time // local midnight, the subject instant
	TriggerAt time.Time // DailyDigestTime on Day, in the device timezone
	Titles    []string  // upcoming candidate titles, in start order
	Body      string
}

// SkipReason explains why a day of the window has no digest.
type SkipReason string

const (
	SkipDigestDisabled   SkipReason = "digest_disabled"
	SkipGloballyDisabled SkipReason = "globally_disabled"
	SkipTriggerPassed    SkipReason = "trigger_passed"
	SkipNoEvents         SkipReason = "no_events"
	SkipInvalidTime      SkipReason = "invalid_digest_time"
)

// DaySkip records a day without a digest.
type DaySkip struct {
	Day    time.Time
	Reason SkipReason
}

// Plan is the Generator's output for one window.
type Plan struct {
	Digests []Digest
	Skipped []DaySkip
}

// ID returns the candidate id of the digest for day.
func ID(day time.Time) string {
	return string(types.KindDigest) + ":" + types.DayKey(day)
}
