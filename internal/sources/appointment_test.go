package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vigil/internal/db"
	"vigil/internal/types"
)

func TestAppointmentAdapter_FetchForUser(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	w := types.NewWindow(now, 3, time.UTC)

	repo := &mockAppointments{}
	repo.On("ListConfirmed", mock.Anything, "u1", "2024-05-10", "2024-05-12").Return([]db.Appointment{
		{ReservationID: "r1", Date: "2024-05-10", TimeSlot: "16:30:00"},
		{ReservationID: "r2", Date: "2024-05-11", TimeSlot: ""},
		{ReservationID: "r3", Date: "bogus", TimeSlot: "10:00"},
		{ReservationID: "r4", Date: "2024-05-12", TimeSlot: "08:15"},
	}, nil)

	a := NewAppointmentAdapter(repo, discardLogger())
	got, err := a.Fetch(context.Background(), FetchRequest{UserID: "u1", Window: w})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "appointment:r1", got[0].ID)
	assert.Equal(t, "Confession", got[0].Title)
	assert.Equal(t, types.SourceAppointment, got[0].SourceType)
	assert.Equal(t, time.Date(2024, 5, 10, 16, 30, 0, 0, time.UTC), got[0].Start.Time)
	require.NotNil(t, got[0].End)
	assert.Equal(t, AppointmentSlot, got[0].End.Sub(got[0].Start.Time))

	assert.Equal(t, "appointment:r4", got[1].ID)
	repo.AssertExpectations(t)
}

func TestAppointmentAdapter_RepoError(t *testing.T) {
	w := types.NewWindow(time.Now(), 3, time.UTC)
	repo := &mockAppointments{}
	repo.On("ListConfirmed", mock.Anything, "u1", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := NewAppointmentAdapter(repo, nil).FetchForUser(context.Background(), "u1", w)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeSourceFetchFailure, types.CodeOf(err))
}
