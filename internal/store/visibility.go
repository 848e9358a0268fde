package store

import (
	"context"
	"fmt"

	"vigil/internal/types"
)

type overrideRow struct {
	CandidateID string `db:"candidate_id"`
	State       string `db:"state"`
	UpdatedAtMs int64  `db:"updated_at_ms"`
}

// Overrides returns every stored override keyed by candidate id.
func (s *SQLiteStore) Overrides(ctx context.Context) (types.VisibilityOverrides, error) {
	list, err := s.ListOverrides(ctx)
	if err != nil {
		return nil, err
	}
	out := make(types.VisibilityOverrides, len(list))
	for _, o := range list {
		out[o.CandidateID] = o.State
	}
	return out, nil
}

// ListOverrides returns the stored overrides ordered by candidate id.
func (s *SQLiteStore) ListOverrides(ctx context.Context) ([]types.VisibilityOverride, error) {
	var rows []overrideRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT candidate_id, state, updated_at_ms FROM visibility_overrides ORDER BY candidate_id")
	if err != nil {
		return nil, persistenceError("list visibility overrides", err)
	}
	out := make([]types.VisibilityOverride, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.VisibilityOverride{
			CandidateID: r.CandidateID,
			State:       types.Visibility(r.State),
			UpdatedAt:   fromMillis(r.UpdatedAtMs),
		})
	}
	return out, nil
}

// SetMuted mutes id, or clears a mute. Clearing only resets an id that is
// currently muted; an allowed id stays allowed. Returns the resulting state.
func (s *SQLiteStore) SetMuted(ctx context.Context, id string, muted bool) (types.Visibility, error) {
	return s.transition(ctx, id, types.VisibilityMuted, muted)
}

// SetAllowed opts a broadcast id in, or withdraws the opt-in. Withdrawing
// only resets an id that is currently allowed; a muted id stays muted.
func (s *SQLiteStore) SetAllowed(ctx context.Context, id string, allowed bool) (types.Visibility, error) {
	if err := types.ValidateAllowlistID(id); err != nil {
		return "", err
	}
	return s.transition(ctx, id, types.VisibilityAllowed, allowed)
}

func (s *SQLiteStore) transition(ctx context.Context, id string, state types.Visibility, on bool) (types.Visibility, error) {
	if err := types.ValidateCandidateID(id); err != nil {
		return "", err
	}
	if on {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO visibility_overrides (candidate_id, state, updated_at_ms)
			VALUES (?, ?, ?)
			ON CONFLICT (candidate_id) DO UPDATE SET
				state = excluded.state,
				updated_at_ms = excluded.updated_at_ms`,
			id, string(state), toMillis(s.clock.Now()))
		if err != nil {
			return "", persistenceError(fmt.Sprintf("set %s for %s", state, id), err)
		}
		return state, nil
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM visibility_overrides WHERE candidate_id = ? AND state = ?", id, string(state)); err != nil {
		return "", persistenceError(fmt.Sprintf("clear %s for %s", state, id), err)
	}

	var current []string
	if err := s.db.SelectContext(ctx, &current,
		"SELECT state FROM visibility_overrides WHERE candidate_id = ?", id); err != nil {
		return "", persistenceError("read visibility", err)
	}
	if len(current) == 0 {
		return types.VisibilityDefault, nil
	}
	return types.Visibility(current[0]), nil
}
