package sources

import (
	"context"
	"log/slog"
	"time"

	"vigil/internal/db"
	"vigil/internal/external"
	"vigil/internal/types"
)

// ParishLookup resolves the user's parish, whose calendar feeds broadcasts.
type ParishLookup interface {
	ForUser(ctx context.Context, userID string) (*db.Parish, error)
}

// EventLister lists the events of a public calendar.
type EventLister interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]external.CalendarEvent, error)
}

// BroadcastAdapter reads community events from the parish calendar.
type BroadcastAdapter struct {
	parishes ParishLookup
	calendar EventLister
	logger   *slog.Logger
}

// NewBroadcastAdapter creates a BroadcastAdapter.
func NewBroadcastAdapter(parishes ParishLookup, calendar EventLister, logger *slog.Logger) *BroadcastAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BroadcastAdapter{parishes: parishes, calendar: calendar, logger: logger}
}

// Source implements Adapter.
func (a *BroadcastAdapter) Source() types.SourceType { return types.SourceBroadcast }

// Fetch implements Adapter.
func (a *BroadcastAdapter) Fetch(ctx context.Context, req FetchRequest) ([]types.CandidateEvent, error) {
	return a.FetchRange(ctx, req.UserID, req.Window.Start, req.Window.End(), req.Window.Loc)
}

// FetchRange returns the broadcast events whose start lies in
// [startDay, endDay). A user without a parish or a parish without a calendar
// has no broadcasts.
func (a *BroadcastAdapter) FetchRange(ctx context.Context, userID string, startDay, endDay time.Time, loc *time.Location) ([]types.CandidateEvent, error) {
	parish, err := a.parishes.ForUser(ctx, userID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundParish) {
			return nil, nil
		}
		return nil, fetchError(types.SourceBroadcast, err)
	}
	if parish.CalendarID == "" {
		return nil, nil
	}

	events, err := a.calendar.ListEvents(ctx, parish.CalendarID, startDay, endDay)
	if err != nil {
		return nil, fetchError(types.SourceBroadcast, err)
	}

	out := make([]types.CandidateEvent, 0, len(events))
	for _, ev := range events {
		c, ok := a.toCandidate(ev, loc)
		if !ok {
			a.logger.WarnContext(ctx, "skipping calendar event without a usable start",
				"event_id", ev.ID,
				"calendar_id", parish.CalendarID,
			)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *BroadcastAdapter) toCandidate(ev external.CalendarEvent, loc *time.Location) (types.CandidateEvent, bool) {
	start, ok := eventTime(ev.Start, loc)
	if !ok || ev.ID == "" {
		return types.CandidateEvent{}, false
	}
	c := types.CandidateEvent{
		ID:          types.CandidateID(types.SourceBroadcast, ev.ID),
		SourceType:  types.SourceBroadcast,
		Title:       ev.Summary,
		Start:       start,
		Location:    ev.Location,
		Description: ev.Description,
	}
	if end, ok := eventTime(ev.End, loc); ok {
		t := end.Time
		c.End = &t
	}
	return c, true
}

// eventTime prefers the precise dateTime and falls back to the all-day date.
func eventTime(t external.EventTime, loc *time.Location) (types.StartInstant, bool) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return types.StartInstant{}, false
		}
		return types.At(parsed), true
	}
	if t.Date != "" {
		s, err := parseDate(t.Date, loc)
		if err != nil {
			return types.StartInstant{}, false
		}
		return s, true
	}
	return types.StartInstant{}, false
}
