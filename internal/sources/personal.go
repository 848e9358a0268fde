package sources

import (
	"context"
	"log/slog"
	"time"

	"vigil/internal/db"
	"vigil/internal/types"
)

// PersonalEventDuration is the assumed length of a timed RSVP'd event.
const PersonalEventDuration = time.Hour

// PersonalEventLister lists the bulletin events a user RSVP'd to on a day.
type PersonalEventLister interface {
	ListForDay(ctx context.Context, userID, date string) ([]db.PersonalEvent, error)
}

// PersonalAdapter reads the user's RSVP'd bulletin events.
type PersonalAdapter struct {
	repo   PersonalEventLister
	logger *slog.Logger
}

// NewPersonalAdapter creates a PersonalAdapter.
func NewPersonalAdapter(repo PersonalEventLister, logger *slog.Logger) *PersonalAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersonalAdapter{repo: repo, logger: logger}
}

// Source implements Adapter.
func (a *PersonalAdapter) Source() types.SourceType { return types.SourcePersonal }

// Fetch implements Adapter by querying each day of the window in turn.
func (a *PersonalAdapter) Fetch(ctx context.Context, req FetchRequest) ([]types.CandidateEvent, error) {
	var out []types.CandidateEvent
	for _, day := range req.Window.Days() {
		items, err := a.FetchForUser(ctx, req.UserID, day)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

// FetchForUser returns the RSVP'd items on day. Items without a time of day
// become all-day candidates.
func (a *PersonalAdapter) FetchForUser(ctx context.Context, userID string, day time.Time) ([]types.CandidateEvent, error) {
	loc := day.Location()
	rows, err := a.repo.ListForDay(ctx, userID, types.DayKey(day))
	if err != nil {
		return nil, fetchError(types.SourcePersonal, err)
	}

	out := make([]types.CandidateEvent, 0, len(rows))
	for _, r := range rows {
		c := types.CandidateEvent{
			ID:          types.CandidateID(types.SourcePersonal, r.ID),
			SourceType:  types.SourcePersonal,
			Title:       r.Title,
			Location:    r.Location,
			Description: r.Description,
		}
		if r.EventTime == "" {
			s, err := parseDate(r.EventDate, loc)
			if err != nil {
				a.logger.WarnContext(ctx, "skipping malformed personal event", "event_id", r.ID, "error", err)
				continue
			}
			c.Start = s
		} else {
			start, err := parseWallClock(r.EventDate, r.EventTime, loc)
			if err != nil {
				a.logger.WarnContext(ctx, "skipping malformed personal event", "event_id", r.ID, "error", err)
				continue
			}
			end := start.Add(PersonalEventDuration)
			c.Start = types.At(start)
			c.End = &end
		}
		out = append(out, c)
	}
	return out, nil
}
