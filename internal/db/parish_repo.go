package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"vigil/internal/types"
)

// Parish is the user's current parish as far as notifications care: its
// display name and the public calendar feeding broadcast events.
type Parish struct {
	ID         string
	Name       string
	CalendarID string
}

// ParishRepository reads the parish a user is connected to.
type ParishRepository struct {
	db DBTX
}

// NewParishRepository creates a new ParishRepository backed by the given
// database connection (pool or transaction).
func NewParishRepository(db DBTX) *ParishRepository {
	return &ParishRepository{db: db}
}

// ForUser returns the user's parish. A user with no parish connection gets a
// not_found_parish error.
func (r *ParishRepository) ForUser(ctx context.Context, userID string) (*Parish, error) {
	var (
		p          Parish
		calendarID *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT p.id::text, p.name, p.parish_calendar_id
		 FROM user_parish_connections upc
		 JOIN parishes p ON p.id = upc.parish_id
		 WHERE upc.user_id = $1
		 LIMIT 1`,
		userID,
	).Scan(&p.ID, &p.Name, &calendarID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundParish, "user has no parish connection", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load parish", err)
	}
	if calendarID != nil {
		p.CalendarID = *calendarID
	}
	return &p, nil
}

// DisplayName implements types.DisplayNameResolver. Users without a parish
// get an empty name so callers fall back to the generic title.
func (r *ParishRepository) DisplayName(ctx context.Context, userID string) (string, error) {
	p, err := r.ForUser(ctx, userID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundParish) {
			return "", nil
		}
		return "", err
	}
	return p.Name, nil
}

var _ types.DisplayNameResolver = (*ParishRepository)(nil)
