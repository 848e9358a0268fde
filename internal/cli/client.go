package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"vigil/internal/core"
	"vigil/internal/external"
	"vigil/internal/scheduler"
	"vigil/internal/types"
)

// Client talks to the vigild control API.
type Client struct {
	base    *external.BaseClient
	baseURL string
}

// NewClient creates a Client for the API rooted at baseURL. A bare host:port
// is treated as http.
func NewClient(base *external.BaseClient, baseURL string) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{base: base, baseURL: strings.TrimRight(baseURL, "/")}
}

// LedgerView mirrors the GET /v1/ledger payload.
type LedgerView struct {
	Count   int                                 `json:"count"`
	Records []types.ScheduledNotificationRecord `json:"records"`
}

// VisibilityView mirrors the mute/allow payloads.
type VisibilityView struct {
	CandidateID string           `json:"candidate_id"`
	State       types.Visibility `json:"state"`
}

// Refresh asks the daemon to reconcile userID (or the session user when empty).
func (c *Client) Refresh(ctx context.Context, userID, reason string) error {
	body := map[string]string{}
	if userID != "" {
		body["user_id"] = userID
	}
	if reason != "" {
		body["reason"] = reason
	}
	return c.call(ctx, http.MethodPost, "/v1/refresh", body, nil)
}

// Preferences fetches the current notification preferences.
func (c *Client) Preferences(ctx context.Context) (types.NotificationPreferences, error) {
	var out types.NotificationPreferences
	err := c.call(ctx, http.MethodGet, "/v1/preferences", nil, &out)
	return out, err
}

// UpdatePreferences applies patch and returns the stored preferences.
func (c *Client) UpdatePreferences(ctx context.Context, patch types.PreferencesPatch) (types.NotificationPreferences, error) {
	var out types.NotificationPreferences
	err := c.call(ctx, http.MethodPatch, "/v1/preferences", patch, &out)
	return out, err
}

// SetMuted mutes or unmutes a candidate.
func (c *Client) SetMuted(ctx context.Context, id string, muted bool) (VisibilityView, error) {
	return c.visibility(ctx, id, "mute", muted)
}

// SetAllowed allows a candidate or clears the allow.
func (c *Client) SetAllowed(ctx context.Context, id string, allowed bool) (VisibilityView, error) {
	return c.visibility(ctx, id, "allow", allowed)
}

func (c *Client) visibility(ctx context.Context, id, action string, on bool) (VisibilityView, error) {
	method := http.MethodPut
	if !on {
		method = http.MethodDelete
	}
	var out VisibilityView
	err := c.call(ctx, method, "/v1/visibility/"+url.PathEscape(id)+"/"+action, nil, &out)
	return out, err
}

// Overrides lists the stored visibility overrides.
func (c *Client) Overrides(ctx context.Context) ([]types.VisibilityOverride, error) {
	var out []types.VisibilityOverride
	err := c.call(ctx, http.MethodGet, "/v1/visibility", nil, &out)
	return out, err
}

// Ledger fetches the Notification Ledger.
func (c *Client) Ledger(ctx context.Context) (LedgerView, error) {
	var out LedgerView
	err := c.call(ctx, http.MethodGet, "/v1/ledger", nil, &out)
	return out, err
}

// Status fetches the engine status.
func (c *Client) Status(ctx context.Context) (scheduler.Status, error) {
	var out scheduler.Status
	err := c.call(ctx, http.MethodGet, "/v1/status", nil, &out)
	return out, err
}

// call sends in as JSON and decodes the data envelope into out. Error
// envelopes come back as *types.AppError.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr core.APIErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error.Code == "" {
			return types.NewAppError(types.ErrCodeInternalUnexpected, fmt.Sprintf("daemon returned %d", resp.StatusCode), err)
		}
		return types.NewAppErrorWithDetails(types.ErrorCode(apiErr.Error.Code), apiErr.Error.Message, nil, apiErr.Error.Details)
	}
	if out == nil {
		return nil
	}
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}
