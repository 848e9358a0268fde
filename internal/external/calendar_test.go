package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/types"
)

func newTestCalendar(t *testing.T, handler http.HandlerFunc) *CalendarClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewCalendarClient(newTestClient(RetryPolicy{}), CalendarClientConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/",
	})
}

func TestCalendarClient_ListEvents(t *testing.T) {
	timeMin := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	timeMax := timeMin.Add(72 * time.Hour)

	client := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/parish@group.calendar.google.com/events", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "2024-03-01T05:00:00Z", q.Get("timeMin"))
		assert.Equal(t, "2024-03-04T05:00:00Z", q.Get("timeMax"))
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))

		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "e1", "summary": "Vespers", "start": map[string]any{"dateTime": "2024-03-01T18:00:00-05:00"}},
				{"id": "e2", "summary": "Feast", "start": map[string]any{"date": "2024-03-02"}},
				{"id": "e3", "status": "cancelled", "summary": "Gone"},
			},
		})
	})

	events, err := client.ListEvents(context.Background(), "parish@group.calendar.google.com", timeMin, timeMax)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Vespers", events[0].Summary)
	assert.Equal(t, "2024-03-01T18:00:00-05:00", events[0].Start.DateTime)
	assert.Equal(t, "2024-03-02", events[1].Start.Date)
}

func TestCalendarClient_Pagination(t *testing.T) {
	client := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "":
			w.Write([]byte(`{"items":[{"id":"a"}],"nextPageToken":"p2"}`))
		case "p2":
			w.Write([]byte(`{"items":[{"id":"b"}]}`))
		default:
			t.Errorf("unexpected page token")
		}
	})

	events, err := client.ListEvents(context.Background(), "cal", time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[1].ID)
}

func TestCalendarClient_Errors(t *testing.T) {
	t.Run("missing calendar", func(t *testing.T) {
		client := newTestCalendar(t, func(http.ResponseWriter, *http.Request) {})
		_, err := client.ListEvents(context.Background(), "", time.Now(), time.Now())
		assert.True(t, types.IsCode(err, types.ErrCodeValidationMissingField))
	})

	t.Run("forbidden", func(t *testing.T) {
		client := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
		})
		_, err := client.ListEvents(context.Background(), "cal", time.Now(), time.Now())
		require.Error(t, err)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeUpstreamCalendar, appErr.Code)
		assert.Equal(t, http.StatusForbidden, appErr.Details["status"])
		assert.True(t, strings.Contains(appErr.Details["body"].(string), "API key"))
	})

	t.Run("unknown calendar", func(t *testing.T) {
		client := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := client.ListEvents(context.Background(), "cal", time.Now(), time.Now())
		assert.True(t, types.IsCode(err, types.ErrCodeNotFoundParish))
	})

	t.Run("bad json", func(t *testing.T) {
		client := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items": [`))
		})
		_, err := client.ListEvents(context.Background(), "cal", time.Now(), time.Now())
		assert.True(t, types.IsCode(err, types.ErrCodeUpstreamCalendar))
	})
}
