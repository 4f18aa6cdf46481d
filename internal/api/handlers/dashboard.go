package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"skycast/internal/core"
	"skycast/internal/dashboard"
	"skycast/internal/types"
)

// Refresher re-fetches weather for the session coordinates.
type Refresher interface {
	Refresh(ctx context.Context) (*types.WeatherSnapshot, error)
	Refreshing() bool
}

// DashboardHandler serves the rendered dashboard.
type DashboardHandler struct {
	session Refresher
	logger  *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(session Refresher, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{session: session, logger: logger}
}

// RegisterRoutes mounts the dashboard endpoint. Expected under /v1/dashboard.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGet)
}

// DashboardResponse is the rendered view and its plain-text form.
// RefreshLabel reflects refreshes still running for other requests.
type DashboardResponse struct {
	View         dashboard.View `json:"view"`
	Text         string         `json:"text"`
	RefreshLabel string         `json:"refresh_label"`
}

// HandleGet handles GET /v1/dashboard. Error messages are the ones the
// dashboard itself would show.
func (h *DashboardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.session.Refresh(r.Context())
	if err != nil {
		core.Error(w, r, presentError(err))
		return
	}

	view := dashboard.Build(snap)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: DashboardResponse{
		View:         view,
		Text:         view.Text(),
		RefreshLabel: dashboard.RefreshButtonLabel(h.session.Refreshing()),
	}})
}

// presentError swaps the message for its dashboard wording and keeps the code.
func presentError(err error) error {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return err
	}

	msg := dashboard.FailureMessage(err)
	if appErr.Code == types.ErrCodeNotFoundLocation {
		msg = dashboard.MessageLocationNotSet
	}
	return &types.AppError{
		Code:    appErr.Code,
		Message: msg,
		Err:     err,
		Details: appErr.Details,
	}
}
