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
	"vigil/internal/external"
	"vigil/internal/types"
)

func TestBroadcastAdapter_Fetch(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, ny)
	w := types.NewWindow(now, 3, ny)

	parishes := &mockParishes{}
	parishes.On("ForUser", mock.Anything, "u1").Return(&db.Parish{ID: "p1", Name: "St. Anne", CalendarID: "cal@group"}, nil)

	cal := &mockCalendar{}
	cal.On("ListEvents", mock.Anything, "cal@group", w.Start, w.End()).Return([]external.CalendarEvent{
		{ID: "e1", Summary: "Mass", Location: "Nave",
			Start: external.EventTime{DateTime: "2024-05-10T12:00:00-04:00"},
			End:   external.EventTime{DateTime: "2024-05-10T13:00:00-04:00"}},
		{ID: "e2", Summary: "Feast Day", Start: external.EventTime{Date: "2024-05-11"}},
		{ID: "e3", Summary: "Broken"},
	}, nil)

	a := NewBroadcastAdapter(parishes, cal, discardLogger())
	assert.Equal(t, types.SourceBroadcast, a.Source())

	got, err := a.Fetch(context.Background(), FetchRequest{UserID: "u1", Window: w})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "broadcast:e1", got[0].ID)
	assert.Equal(t, "Mass", got[0].Title)
	assert.False(t, got[0].Start.AllDay)
	assert.True(t, got[0].Start.Time.Equal(time.Date(2024, 5, 10, 12, 0, 0, 0, ny)))
	require.NotNil(t, got[0].End)
	assert.Equal(t, "Nave", got[0].Location)

	assert.Equal(t, "broadcast:e2", got[1].ID)
	assert.True(t, got[1].Start.AllDay)
	assert.Equal(t, time.Date(2024, 5, 11, 0, 0, 0, 0, ny), got[1].Start.Time)
	assert.Nil(t, got[1].End)
}

func TestBroadcastAdapter_NoParishOrCalendar(t *testing.T) {
	w := types.NewWindow(time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC), 3, time.UTC)

	t.Run("no parish", func(t *testing.T) {
		parishes := &mockParishes{}
		parishes.On("ForUser", mock.Anything, "u1").
			Return(nil, types.NewAppError(types.ErrCodeNotFoundParish, "no parish", nil))
		cal := &mockCalendar{}

		got, err := NewBroadcastAdapter(parishes, cal, nil).Fetch(context.Background(), FetchRequest{UserID: "u1", Window: w})
		require.NoError(t, err)
		assert.Empty(t, got)
		cal.AssertNotCalled(t, "ListEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("parish without calendar", func(t *testing.T) {
		parishes := &mockParishes{}
		parishes.On("ForUser", mock.Anything, "u1").Return(&db.Parish{ID: "p1", Name: "St. Anne"}, nil)
		cal := &mockCalendar{}

		got, err := NewBroadcastAdapter(parishes, cal, nil).Fetch(context.Background(), FetchRequest{UserID: "u1", Window: w})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestBroadcastAdapter_Errors(t *testing.T) {
	w := types.NewWindow(time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC), 3, time.UTC)

	parishes := &mockParishes{}
	parishes.On("ForUser", mock.Anything, "u1").Return(&db.Parish{ID: "p1", CalendarID: "c"}, nil)
	cal := &mockCalendar{}
	cal.On("ListEvents", mock.Anything, "c", mock.Anything, mock.Anything).
		Return(nil, types.NewAppError(types.ErrCodeUpstreamCalendar, "503", nil))

	_, err := NewBroadcastAdapter(parishes, cal, nil).Fetch(context.Background(), FetchRequest{UserID: "u1", Window: w})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeSourceFetchFailure, types.CodeOf(err))
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamCalendar))

	broken := &mockParishes{}
	broken.On("ForUser", mock.Anything, "u1").Return(nil, errors.New("conn reset"))
	_, err = NewBroadcastAdapter(broken, cal, nil).Fetch(context.Background(), FetchRequest{UserID: "u1", Window: w})
	assert.True(t, types.IsCode(err, types.ErrCodeSourceFetchFailure))
}
