package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/types"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.WithClock(fixedClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)})
}

func TestMigrationsApplied(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
	assert.NoError(t, s.runMigrations(), "re-running migrations is a no-op")
}

func TestPreferencesDefaultsOnFirstRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultPreferences(), p)

	var count int
	require.NoError(t, s.db.Get(&count, "SELECT COUNT(*) FROM preferences"))
	assert.Equal(t, 1, count)
}

func TestPreferencesOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := types.DefaultPreferences()
	want.ReminderLeadMinutes = 90
	want.DailyDigestTime = "06:45"
	want.SoundEnabled = false
	require.NoError(t, s.SavePreferences(ctx, want))

	got, err := s.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPreferencesRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	p := types.DefaultPreferences()
	p.ReminderLeadMinutes = 0

	err := s.SavePreferences(context.Background(), p)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidationPreferences))
}

func TestPreferencesBackfillsDigestTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`
		INSERT INTO preferences (id, enabled, reminder_lead_minutes, daily_digest_enabled,
			sound_enabled, vibration_enabled, updated_at_ms)
		VALUES (1, 1, 45, 1, 0, 1, 0)`)
	require.NoError(t, err)

	p, err := s.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "08:00", p.DailyDigestTime)
	assert.Equal(t, 45, p.ReminderLeadMinutes)
	assert.False(t, p.SoundEnabled)

	var stored string
	require.NoError(t, s.db.Get(&stored, "SELECT daily_digest_time FROM preferences WHERE id = 1"))
	assert.Equal(t, "08:00", stored)
}

func TestVisibilityTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	const id = "broadcast:evt-1"

	state, err := s.SetAllowed(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityAllowed, state)

	// Mute wins over allow.
	state, err = s.SetMuted(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityMuted, state)

	// Withdrawing an opt-in does not clear a mute.
	state, err = s.SetAllowed(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityMuted, state)

	state, err = s.SetMuted(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityDefault, state)

	overrides, err := s.Overrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestVisibilityUnmuteDropsEarlierOptIn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	const id = "broadcast:evt-2"

	_, err := s.SetAllowed(ctx, id, true)
	require.NoError(t, err)
	_, err = s.SetMuted(ctx, id, true)
	require.NoError(t, err)

	// The mute replaced the opt-in; clearing it does not restore it.
	state, err := s.SetMuted(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityDefault, state)

	overrides, err := s.Overrides(ctx)
	require.NoError(t, err)
	assert.False(t, overrides.IsAllowed(id))
}

func TestVisibilityListAndValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SetMuted(ctx, "appointment:7", true)
	require.NoError(t, err)
	_, err = s.SetAllowed(ctx, "broadcast:a", true)
	require.NoError(t, err)

	list, err := s.ListOverrides(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "appointment:7", list[0].CandidateID)
	assert.Equal(t, types.VisibilityMuted, list[0].State)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), list[0].UpdatedAt)

	_, err = s.SetMuted(ctx, "nonsense", true)
	assert.True(t, types.IsCode(err, types.ErrCodeValidationCandidateID))
}

func TestAllowlistIsBroadcastOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SetMuted(ctx, "personal:9", true)
	require.NoError(t, err)

	for _, id := range []string{"personal:9", "appointment:3"} {
		_, err := s.SetAllowed(ctx, id, true)
		assert.True(t, types.IsCode(err, types.ErrCodeValidationCandidateID), id)
	}

	overrides, err := s.Overrides(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityMuted, overrides.State("personal:9"))
	assert.Equal(t, types.VisibilityDefault, overrides.State("appointment:3"))
}

func TestLedgerReplaceAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 11, 30, 0, 0, time.UTC)

	first := []types.ScheduledNotificationRecord{
		{Handle: "h2", CandidateID: "appointment:2", Kind: types.KindReminder, ScheduledAt: base.Add(time.Hour), SubjectAt: base.Add(90 * time.Minute), Title: "t", Body: "b"},
		{Handle: "h1", CandidateID: "broadcast:e2", Kind: types.KindReminder, ScheduledAt: base, SubjectAt: base.Add(30 * time.Minute)},
	}
	require.NoError(t, s.ReplaceLedger(ctx, first))

	got, err := s.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "h1", got[0].Handle)
	assert.Equal(t, base, got[0].ScheduledAt)
	assert.Equal(t, types.KindReminder, got[1].Kind)

	second := []types.ScheduledNotificationRecord{
		{Handle: "h3", CandidateID: "digest:2024-03-02", Kind: types.KindDigest, ScheduledAt: base.Add(24 * time.Hour), SubjectAt: base},
	}
	require.NoError(t, s.ReplaceLedger(ctx, second))
	got, err = s.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "h3", got[0].Handle)

	require.NoError(t, s.ReplaceLedger(ctx, nil))
	got, err = s.LoadLedger(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLedgerRejectsDuplicateIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.ReplaceLedger(ctx, []types.ScheduledNotificationRecord{
		{Handle: "h0", CandidateID: "personal:1", Kind: types.KindReminder, ScheduledAt: now, SubjectAt: now},
	}))

	err := s.ReplaceLedger(ctx, []types.ScheduledNotificationRecord{
		{Handle: "h1", CandidateID: "personal:1", Kind: types.KindReminder, ScheduledAt: now, SubjectAt: now},
		{Handle: "h2", CandidateID: "personal:1", Kind: types.KindReminder, ScheduledAt: now, SubjectAt: now},
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodePersistenceFailure))

	// The failed replace rolled back.
	got, err := s.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "h0", got[0].Handle)
}

func TestRemoveLedgerRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.ReplaceLedger(ctx, []types.ScheduledNotificationRecord{
		{Handle: "a", CandidateID: "personal:1", Kind: types.KindReminder, ScheduledAt: now, SubjectAt: now},
		{Handle: "b", CandidateID: "personal:2", Kind: types.KindReminder, ScheduledAt: now, SubjectAt: now},
		{Handle: "c", CandidateID: "personal:3", Kind: types.KindReminder, ScheduledAt: now, SubjectAt: now},
	}))
	require.NoError(t, s.RemoveLedgerRecords(ctx, []string{"a", "c"}))
	require.NoError(t, s.RemoveLedgerRecords(ctx, nil))

	got, err := s.LoadLedger(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Handle)
}
