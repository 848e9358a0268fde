package sources

import (
	"context"
	"log/slog"
	"time"

	"vigil/internal/db"
	"vigil/internal/types"
)

// AppointmentSlot is the length of a confession slot.
const AppointmentSlot = 15 * time.Minute

const appointmentTitle = "Confession"

// AppointmentLister lists a user's confirmed reservations in a date range.
type AppointmentLister interface {
	ListConfirmed(ctx context.Context, userID, fromDate, toDate string) ([]db.Appointment, error)
}

// AppointmentAdapter reads the user's confirmed confession reservations.
type AppointmentAdapter struct {
	repo   AppointmentLister
	logger *slog.Logger
}

// NewAppointmentAdapter creates an AppointmentAdapter.
func NewAppointmentAdapter(repo AppointmentLister, logger *slog.Logger) *AppointmentAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppointmentAdapter{repo: repo, logger: logger}
}

// Source implements Adapter.
func (a *AppointmentAdapter) Source() types.SourceType { return types.SourceAppointment }

// Fetch implements Adapter.
func (a *AppointmentAdapter) Fetch(ctx context.Context, req FetchRequest) ([]types.CandidateEvent, error) {
	return a.FetchForUser(ctx, req.UserID, req.Window)
}

// FetchForUser returns the user's reservations inside w. Slots without a
// time are skipped.
func (a *AppointmentAdapter) FetchForUser(ctx context.Context, userID string, w types.Window) ([]types.CandidateEvent, error) {
	from := types.DayKey(w.Start)
	to := types.DayKey(w.End().AddDate(0, 0, -1))

	rows, err := a.repo.ListConfirmed(ctx, userID, from, to)
	if err != nil {
		return nil, fetchError(types.SourceAppointment, err)
	}

	out := make([]types.CandidateEvent, 0, len(rows))
	for _, r := range rows {
		if r.TimeSlot == "" {
			continue
		}
		start, err := parseWallClock(r.Date, r.TimeSlot, w.Loc)
		if err != nil {
			a.logger.WarnContext(ctx, "skipping malformed reservation",
				"reservation_id", r.ReservationID,
				"error", err,
			)
			continue
		}
		end := start.Add(AppointmentSlot)
		out = append(out, types.CandidateEvent{
			ID:         types.CandidateID(types.SourceAppointment, r.ReservationID),
			SourceType: types.SourceAppointment,
			Title:      appointmentTitle,
			Start:      types.At(start),
			End:        &end,
		})
	}
	return out, nil
}
