// Package sources turns the engine's upstream data (the parish broadcast
// calendar, confession reservations and bulletin RSVPs) into normalized
// candidate events, and aggregates them for a reconciliation run.
package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vigil/internal/types"
)

// FetchRequest scopes one adapter fetch.
type FetchRequest struct {
	UserID string
	Window types.Window
}

// Adapter is an Event Source Adapter. Fetch may be slow or fail; the
// Aggregator bounds it with a timeout and treats failure as an empty list.
type Adapter interface {
	Source() types.SourceType
	Fetch(ctx context.Context, req FetchRequest) ([]types.CandidateEvent, error)
}

// parseWallClock combines a "YYYY-MM-DD" date and an "HH:MM[:SS]" time in loc.
func parseWallClock(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if len(clock) > 5 {
		clock = clock[:5]
	}
	h, m, err := types.ParseTimeOfDay(clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", clock, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc), nil
}

// parseDate parses a "YYYY-MM-DD" date into an all-day StartInstant.
func parseDate(date string, loc *time.Location) (types.StartInstant, error) {
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(date), loc)
	if err != nil {
		return types.StartInstant{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return types.OnDate(d.Year(), d.Month(), d.Day(), loc), nil
}

func fetchError(src types.SourceType, err error) error {
	return types.NewAppErrorWithDetails(types.ErrCodeSourceFetchFailure,
		fmt.Sprintf("%s fetch failed", src), err, map[string]any{"source": string(src)})
}
