// Package handlers contains the HTTP handlers for the vigil control API: the
// local surface the host app (or vigilctl) uses to request refreshes, edit
// preferences and visibility, and inspect the engine.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil/internal/core"
	"vigil/internal/scheduler"
	"vigil/internal/types"
)

// Engine is the subset of *scheduler.Engine the control API drives.
type Engine interface {
	Trigger(userID, reason string) error
	Preferences(ctx context.Context) (types.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, patch types.PreferencesPatch) (types.NotificationPreferences, error)
	SetMuted(ctx context.Context, candidateID string, muted bool) (types.Visibility, error)
	SetAllowed(ctx context.Context, candidateID string, allowed bool) (types.Visibility, error)
	LedgerSnapshot() []types.ScheduledNotificationRecord
	Status() scheduler.Status
}

// OverrideLister lists stored visibility overrides.
type OverrideLister interface {
	ListOverrides(ctx context.Context) ([]types.VisibilityOverride, error)
}

// RefreshRequest is the optional body of POST /v1/refresh.
type RefreshRequest struct {
	UserID string `json:"user_id,omitempty"`
	// Reason is recorded in the engine logs, e.g. "foreground".
	Reason string `json:"reason,omitempty"`
}

// RefreshResponse acknowledges a queued refresh.
type RefreshResponse struct {
	Accepted bool `json:"accepted"`
}

// VisibilityResponse reports a candidate's visibility after a change.
type VisibilityResponse struct {
	CandidateID string           `json:"candidate_id"`
	State       types.Visibility `json:"state"`
}

// LedgerResponse lists the notifications the engine currently owns.
type LedgerResponse struct {
	Count   int                                 `json:"count"`
	Records []types.ScheduledNotificationRecord `json:"records"`
}

// ControlHandler serves the control API.
type ControlHandler struct {
	engine    Engine
	overrides OverrideLister
	logger    *slog.Logger
}

// NewControlHandler creates a ControlHandler. overrides may be nil, in which
// case GET /v1/visibility is not mounted.
func NewControlHandler(engine Engine, overrides OverrideLister, l *slog.Logger) *ControlHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ControlHandler{engine: engine, overrides: overrides, logger: l}
}

// RegisterRoutes mounts the control routes onto r.
func (h *ControlHandler) RegisterRoutes(r chi.Router) {
	r.Post("/refresh", h.Refresh)

	r.Get("/preferences", h.GetPreferences)
	r.Patch("/preferences", h.UpdatePreferences)

	r.Route("/visibility", func(r chi.Router) {
		if h.overrides != nil {
			r.Get("/", h.ListVisibility)
		}
		r.Put("/{id}/mute", h.setMuted(true))
		r.Delete("/{id}/mute", h.setMuted(false))
		r.Put("/{id}/allow", h.setAllowed(true))
		r.Delete("/{id}/allow", h.setAllowed(false))
	})

	r.Get("/ledger", h.Ledger)
	r.Get("/status", h.Status)
}

// Refresh handles POST /v1/refresh. The body is optional; without a user id
// the session user is reconciled. The refresh runs asynchronously, so the
// response is 202 whatever the eventual outcome.
func (h *ControlHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
	}
	reason := req.Reason
	if reason == "" {
		reason = "refresh"
	}
	if err := h.engine.Trigger(req.UserID, reason); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusAccepted, core.APIResponse{Data: RefreshResponse{Accepted: true}})
}

// GetPreferences handles GET /v1/preferences.
func (h *ControlHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.engine.Preferences(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: prefs})
}

// UpdatePreferences handles PATCH /v1/preferences.
func (h *ControlHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch types.PreferencesPatch
	if err := core.DecodeJSON(w, r, &patch); err != nil {
		core.Error(w, r, err)
		return
	}
	prefs, err := h.engine.UpdatePreferences(r.Context(), patch)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.Info("preferences updated",
		"enabled", prefs.Enabled,
		"reminder_lead_minutes", prefs.ReminderLeadMinutes,
		"daily_digest_enabled", prefs.DailyDigestEnabled,
		"daily_digest_time", prefs.DailyDigestTime,
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: prefs})
}

// ListVisibility handles GET /v1/visibility.
func (h *ControlHandler) ListVisibility(w http.ResponseWriter, r *http.Request) {
	list, err := h.overrides.ListOverrides(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if list == nil {
		list = []types.VisibilityOverride{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: list})
}

func (h *ControlHandler) setMuted(muted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		state, err := h.engine.SetMuted(r.Context(), id, muted)
		h.writeVisibility(w, r, id, state, err)
	}
}

func (h *ControlHandler) setAllowed(allowed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		state, err := h.engine.SetAllowed(r.Context(), id, allowed)
		h.writeVisibility(w, r, id, state, err)
	}
}

func (h *ControlHandler) writeVisibility(w http.ResponseWriter, r *http.Request, id string, state types.Visibility, err error) {
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.Info("visibility changed", "candidate_id", id, "state", state, "request_id", types.GetRequestID(r.Context()))
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: VisibilityResponse{CandidateID: id, State: state}})
}

// Ledger handles GET /v1/ledger.
func (h *ControlHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	records := h.engine.LedgerSnapshot()
	if records == nil {
		records = []types.ScheduledNotificationRecord{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: LedgerResponse{Count: len(records), Records: records}})
}

// Status handles GET /v1/status.
func (h *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.engine.Status()})
}
