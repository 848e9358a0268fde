package db

import (
	"context"

	"vigil/internal/types"
)

// Appointment is a confirmed confession reservation joined with its slot.
// Date is "YYYY-MM-DD" and TimeSlot "HH:MM[:SS]", both parish-local wall time.
type Appointment struct {
	ReservationID string
	Date          string
	TimeSlot      string
}

// AppointmentRepository reads the user's confession reservations.
type AppointmentRepository struct {
	db DBTX
}

// NewAppointmentRepository creates a new AppointmentRepository backed by the
// given database connection (pool or transaction).
func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// ListConfirmed returns the user's confirmed reservations at their current
// parish whose slot date lies in [fromDate, toDate]. Reservations at a parish
// the user has since left are excluded by the join.
func (r *AppointmentRepository) ListConfirmed(ctx context.Context, userID, fromDate, toDate string) ([]Appointment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT cr.id::text, cs.date::text, COALESCE(cs.time_slot::text, '')
		 FROM confession_reservations cr
		 JOIN confession_schedules cs ON cs.id = cr.schedule_id
		 JOIN user_parish_connections upc
		   ON upc.user_id = cr.user_id AND upc.parish_id = cs.parish_id
		 WHERE cr.user_id = $1
		   AND cr.status = 'confirmed'
		   AND cs.date BETWEEN $2::date AND $3::date
		 ORDER BY cs.date, cs.time_slot, cr.id`,
		userID, fromDate, toDate,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list confession reservations", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ReservationID, &a.Date, &a.TimeSlot); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan confession reservation", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating confession reservations", err)
	}
	return out, nil
}
