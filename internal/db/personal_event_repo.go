package db

import (
	"context"

	"vigil/internal/types"
)

// PersonalEvent is an active bulletin event the user RSVP'd to as attending
// or volunteering. EventTime is empty for events without a time of day.
type PersonalEvent struct {
	ID          string
	Title       string
	Description string
	EventDate   string
	EventTime   string
	Location    string
}

// PersonalEventRepository reads the user's bulletin RSVPs.
type PersonalEventRepository struct {
	db DBTX
}

// NewPersonalEventRepository creates a new PersonalEventRepository backed by
// the given database connection (pool or transaction).
func NewPersonalEventRepository(db DBTX) *PersonalEventRepository {
	return &PersonalEventRepository{db: db}
}

// ListForDay returns the RSVP'd events on date ("YYYY-MM-DD").
func (r *PersonalEventRepository) ListForDay(ctx context.Context, userID, date string) ([]PersonalEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT be.id::text, be.title, be.description, be.event_date::text,
		        be.event_time::text, be.location
		 FROM bulletin_responses br
		 JOIN bulletin_events be ON be.id = br.event_id
		 WHERE br.user_id = $1
		   AND br.response_type IN ('attending', 'volunteer')
		   AND be.is_active
		   AND be.event_date = $2::date
		 ORDER BY be.event_time NULLS FIRST, be.id`,
		userID, date,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list personal events", err)
	}
	defer rows.Close()

	var out []PersonalEvent
	for rows.Next() {
		var (
			e                                PersonalEvent
			description, eventTime, location *string
		)
		if err := rows.Scan(&e.ID, &e.Title, &description, &e.EventDate, &eventTime, &location); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan personal event", err)
		}
		if description != nil {
			e.Description = *description
		}
		if eventTime != nil {
			e.EventTime = *eventTime
		}
		if location != nil {
			e.Location = *location
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating personal events", err)
	}
	return out, nil
}
