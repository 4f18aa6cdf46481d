package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"skycast/internal/core"
	"skycast/internal/external"
	"skycast/internal/types"
)

// SessionWeather fetches weather and knows the session coordinates.
type SessionWeather interface {
	FetchWeather(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error)
	StoredCoordinates() *types.Coordinates
}

// WeatherHandler serves current conditions.
type WeatherHandler struct {
	session SessionWeather
	logger  *slog.Logger
}

// NewWeatherHandler creates a WeatherHandler.
func NewWeatherHandler(session SessionWeather, logger *slog.Logger) *WeatherHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherHandler{session: session, logger: logger}
}

// RegisterRoutes mounts the weather endpoint. Expected under /v1/weather.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGet)
}

// WeatherResponse is a snapshot plus the resolved icon URL.
type WeatherResponse struct {
	*types.WeatherSnapshot
	Icon        string `json:"icon"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
}

// HandleGet handles GET /v1/weather. Explicit lat/lon query parameters take
// precedence over the session coordinates.
func (h *WeatherHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	coords, err := h.coordinates(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snap, err := h.session.FetchWeather(r.Context(), coords.Lat, coords.Lon)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: WeatherResponse{
		WeatherSnapshot: snap,
		Icon:            snap.Icon(),
		Description:     snap.Description(),
		IconURL:         external.IconURL(snap.Icon()),
	}})
}

func (h *WeatherHandler) coordinates(r *http.Request) (types.Coordinates, error) {
	q := r.URL.Query()
	latStr, lonStr := q.Get("lat"), q.Get("lon")

	if latStr == "" && lonStr == "" {
		stored := h.session.StoredCoordinates()
		if stored == nil {
			return types.Coordinates{}, types.NewAppError(types.ErrCodeNotFoundLocation, "location not set", nil)
		}
		return *stored, nil
	}

	if latStr == "" {
		return types.Coordinates{}, types.NewAppError(types.ErrCodeValidationMissingField, "lat query parameter is required", nil)
	}
	if lonStr == "" {
		return types.Coordinates{}, types.NewAppError(types.ErrCodeValidationMissingField, "lon query parameter is required", nil)
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return types.Coordinates{}, types.NewAppError(types.ErrCodeValidationInvalidLat, "lat must be a valid number", nil)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return types.Coordinates{}, types.NewAppError(types.ErrCodeValidationInvalidLon, "lon must be a valid number", nil)
	}

	coords := types.Coordinates{Lat: lat, Lon: lon}
	if err := coords.Validate(); err != nil {
		return types.Coordinates{}, err
	}
	return coords, nil
}
