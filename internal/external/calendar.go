package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vigil/internal/types"
)

const calendarAPIBase = "https://www.googleapis.com/calendar/v3"

// maxCalendarPages bounds pagination for a single range query.
const maxCalendarPages = 10

// CalendarClientConfig holds the configuration for creating a CalendarClient.
type CalendarClientConfig struct {
	APIKey  string
	BaseURL string // defaults to the Google Calendar v3 endpoint
	Logger  *slog.Logger
}

// EventTime is a calendar event boundary: DateTime for timed events, Date
// ("YYYY-MM-DD") for all-day ones.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// CalendarEvent is one entry of the events list response.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

type calendarEventsResponse struct {
	Items         []CalendarEvent `json:"items"`
	NextPageToken string          `json:"nextPageToken"`
}

// CalendarClient reads public calendars over the Google Calendar events API.
type CalendarClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewCalendarClient creates a CalendarClient on top of base.
func NewCalendarClient(base *BaseClient, cfg CalendarClientConfig) *CalendarClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = calendarAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// ListEvents returns the expanded (single) events of calendarID starting in
// [timeMin, timeMax), ordered by start time. Cancelled instances are dropped.
func (c *CalendarClient) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]CalendarEvent, error) {
	if calendarID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "calendar id is required", nil)
	}

	var (
		out       []CalendarEvent
		pageToken string
	)
	for page := 0; page < maxCalendarPages; page++ {
		resp, err := c.listPage(ctx, calendarID, timeMin, timeMax, pageToken)
		if err != nil {
			return nil, err
		}
		for _, ev := range resp.Items {
			if ev.Status == "cancelled" {
				continue
			}
			out = append(out, ev)
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}

	c.logger.WarnContext(ctx, "calendar pagination truncated",
		"calendar_id", calendarID,
		"pages", maxCalendarPages,
		"events", len(out),
	)
	return out, nil
}

func (c *CalendarClient) listPage(ctx context.Context, calendarID string, timeMin, timeMax time.Time, pageToken string) (*calendarEventsResponse, error) {
	q := url.Values{}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	q.Set("timeMin", timeMin.UTC().Format(time.RFC3339))
	q.Set("timeMax", timeMax.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.baseURL, url.PathEscape(calendarID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build calendar request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		code := types.ErrCodeUpstreamCalendar
		if resp.StatusCode == http.StatusNotFound {
			code = types.ErrCodeNotFoundParish
		}
		return nil, types.NewAppErrorWithDetails(code,
			fmt.Sprintf("calendar API returned %d", resp.StatusCode), nil,
			map[string]any{"status": resp.StatusCode, "body": string(body)})
	}

	var parsed calendarEventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar, "failed to decode calendar response", err)
	}
	return &parsed, nil
}
