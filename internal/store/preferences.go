package store

import (
	"context"
	"database/sql"
	"errors"

	"vigil/internal/types"
)

type preferencesRow struct {
	Enabled             bool           `db:"enabled"`
	ReminderLeadMinutes int            `db:"reminder_lead_minutes"`
	DailyDigestEnabled  bool           `db:"daily_digest_enabled"`
	DailyDigestTime     sql.NullString `db:"daily_digest_time"`
	SoundEnabled        bool           `db:"sound_enabled"`
	VibrationEnabled    bool           `db:"vibration_enabled"`
}

// Preferences returns the stored preferences. On first run the defaults are
// written and returned. A record without a digest time gets the default
// written back.
func (s *SQLiteStore) Preferences(ctx context.Context) (types.NotificationPreferences, error) {
	var row preferencesRow
	err := s.db.GetContext(ctx, &row, `
		SELECT enabled, reminder_lead_minutes, daily_digest_enabled,
		       daily_digest_time, sound_enabled, vibration_enabled
		FROM preferences WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := types.DefaultPreferences()
		if err := s.SavePreferences(ctx, defaults); err != nil {
			return types.NotificationPreferences{}, err
		}
		return defaults, nil
	}
	if err != nil {
		return types.NotificationPreferences{}, persistenceError("read preferences", err)
	}

	prefs := types.NotificationPreferences{
		Enabled:             row.Enabled,
		ReminderLeadMinutes: row.ReminderLeadMinutes,
		DailyDigestEnabled:  row.DailyDigestEnabled,
		DailyDigestTime:     row.DailyDigestTime.String,
		SoundEnabled:        row.SoundEnabled,
		VibrationEnabled:    row.VibrationEnabled,
	}
	if !row.DailyDigestTime.Valid || row.DailyDigestTime.String == "" {
		prefs.DailyDigestTime = types.DefaultDailyDigestTime
		if err := s.SavePreferences(ctx, prefs); err != nil {
			return types.NotificationPreferences{}, err
		}
	}
	return prefs, nil
}

// SavePreferences overwrites the single preferences record.
func (s *SQLiteStore) SavePreferences(ctx context.Context, p types.NotificationPreferences) error {
	if err := types.ValidatePreferences(p); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (
			id, enabled, reminder_lead_minutes, daily_digest_enabled,
			daily_digest_time, sound_enabled, vibration_enabled, updated_at_ms
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			enabled = excluded.enabled,
			reminder_lead_minutes = excluded.reminder_lead_minutes,
			daily_digest_enabled = excluded.daily_digest_enabled,
			daily_digest_time = excluded.daily_digest_time,
			sound_enabled = excluded.sound_enabled,
			vibration_enabled = excluded.vibration_enabled,
			updated_at_ms = excluded.updated_at_ms`,
		p.Enabled, p.ReminderLeadMinutes, p.DailyDigestEnabled,
		p.DailyDigestTime, p.SoundEnabled, p.VibrationEnabled, toMillis(s.clock.Now()),
	)
	if err != nil {
		return persistenceError("save preferences", err)
	}
	return nil
}
