// Package handlers contains the HTTP handlers for the SkyCast API.
//
// Each handler declares the narrow interface it needs from its collaborators,
// so the packages that implement them are never imported here.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"skycast/internal/core"
	"skycast/internal/types"
)

// LocationAcquirer obtains a device fix.
type LocationAcquirer interface {
	AcquireLocation(ctx context.Context) (types.Fix, error)
	ResolveLocation(ctx context.Context) (types.Fix, error)
}

// SessionCoordinates is the session state that mirrors the saved location.
type SessionCoordinates interface {
	SetCoordinates(c types.Coordinates)
	Reset()
}

// LocationHandler exposes the saved location and acquisition.
type LocationHandler struct {
	store     types.LocationStore
	acquirer  LocationAcquirer
	session   SessionCoordinates
	validator *core.Validator
	logger    *slog.Logger
}

// NewLocationHandler creates a LocationHandler.
func NewLocationHandler(
	store types.LocationStore,
	acquirer LocationAcquirer,
	session SessionCoordinates,
	val *core.Validator,
	logger *slog.Logger,
) *LocationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationHandler{
		store:     store,
		acquirer:  acquirer,
		session:   session,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the location endpoints. Expected under /v1/location.
func (h *LocationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGet)
	r.Put("/", h.HandleSet)
	r.Delete("/", h.HandleClear)
	r.Post("/acquire", h.HandleAcquire)
}

// LocationResponse reports the saved location. Location is null when unset.
type LocationResponse struct {
	IsSet    bool               `json:"is_set"`
	Location *types.Coordinates `json:"location"`
}

// SetLocationRequest is the body of PUT /v1/location. Pointers distinguish a
// missing field from a zero coordinate.
type SetLocationRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

// AcquireResponse reports a fix. Persisted is false when the fix was
// obtained but could not be saved.
type AcquireResponse struct {
	Fix       types.Fix `json:"fix"`
	Persisted bool      `json:"persisted"`
}

// HandleGet handles GET /v1/location.
func (h *LocationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	isSet, err := h.store.IsLocationSet(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	loc, err := h.store.GetLocation(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: LocationResponse{IsSet: isSet, Location: loc}})
}

// HandleSet handles PUT /v1/location.
func (h *LocationHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var req SetLocationRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	coords := types.Coordinates{Lat: *req.Lat, Lon: *req.Lon}
	if err := h.store.SetLocation(r.Context(), coords); err != nil {
		core.Error(w, r, err)
		return
	}
	h.session.SetCoordinates(coords)

	h.logger.InfoContext(r.Context(), "location saved manually")
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: LocationResponse{IsSet: true, Location: &coords}})
}

// HandleClear handles DELETE /v1/location.
func (h *LocationHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearLocation(r.Context()); err != nil {
		core.Error(w, r, err)
		return
	}
	h.session.Reset()

	w.WriteHeader(http.StatusNoContent)
}

// HandleAcquire handles POST /v1/location/acquire. The saved location is
// reused unless force=true, which always asks the platform for a fix.
func (h *LocationHandler) HandleAcquire(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"force must be a boolean",
				err,
			))
			return
		}
		force = parsed
	}

	var (
		fix types.Fix
		err error
	)
	if force {
		fix, err = h.acquirer.AcquireLocation(r.Context())
	} else {
		fix, err = h.acquirer.ResolveLocation(r.Context())
	}

	persisted := true
	if err != nil {
		// The fix is still usable for this session when only the save failed.
		if !types.IsCode(err, types.ErrCodeInternalStorage) || fix.Source == "" {
			core.Error(w, r, err)
			return
		}
		h.logger.WarnContext(r.Context(), "location acquired but not saved", "error", err)
		persisted = false
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: AcquireResponse{Fix: fix, Persisted: persisted}})
}
