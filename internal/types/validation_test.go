package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"08:00", 8, 0, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"8:00", 0, 0, true},
		{"08-00", 0, 0, true},
		{"", 0, 0, true},
		{"ab:cd", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.h, h)
			assert.Equal(t, tt.m, m)
		})
	}
}

func TestValidatePreferences(t *testing.T) {
	require.NoError(t, ValidatePreferences(DefaultPreferences()))

	p := DefaultPreferences()
	p.ReminderLeadMinutes = 0
	err := ValidatePreferences(p)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeValidationPreferences))

	p = DefaultPreferences()
	p.DailyDigestTime = "25:00"
	err = p.Validate()
	require.Error(t, err)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	fields := appErr.Details["fields"].(map[string]any)
	assert.Equal(t, "timeofday", fields["DailyDigestTime"])
}

func TestValidatePreferencesPatch(t *testing.T) {
	require.NoError(t, ValidatePreferencesPatch(PreferencesPatch{}))

	lead := 45
	digest := "19:30"
	require.NoError(t, ValidatePreferencesPatch(PreferencesPatch{ReminderLeadMinutes: &lead, DailyDigestTime: &digest}))

	bad := -5
	assert.Error(t, ValidatePreferencesPatch(PreferencesPatch{ReminderLeadMinutes: &bad}))

	badTime := "7pm"
	assert.Error(t, ValidatePreferencesPatch(PreferencesPatch{DailyDigestTime: &badTime}))
}

func TestValidateCandidateID(t *testing.T) {
	valid := []string{"broadcast:abc123", "appointment:42", "personal:7", "digest:2024-03-01"}
	for _, id := range valid {
		assert.NoError(t, ValidateCandidateID(id), id)
	}
	invalid := []string{"", "broadcast", "broadcast:", "weather:1"}
	for _, id := range invalid {
		err := ValidateCandidateID(id)
		assert.Error(t, err, id)
		assert.True(t, IsCode(err, ErrCodeValidationCandidateID), id)
	}
}
