// Package dashboard turns a weather snapshot into display strings and gauge
// percentages. It does no I/O.
package dashboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"skycast/internal/external"
	"skycast/internal/types"
)

// User-facing messages.
const (
	MessageLocationNotSet = "Location not set."
	RefreshLabel          = "Refresh"
	RefreshingLabel       = "Refreshing..."
)

// Gauge scales.
const (
	// windFullScaleKMH is the wind speed shown as a full gauge.
	windFullScaleKMH = 20.0
	msToKMH          = 3.6

	pressureFloorHPa = 950.0
	pressureSpanHPa  = 100.0
)

// View is the dashboard for one snapshot.
type View struct {
	Temperature string `json:"temperature"`
	Location    string `json:"location"`
	Humidity    string `json:"humidity"`
	Pressure    string `json:"pressure"`
	Wind        string `json:"wind"`
	Status      string `json:"status"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`

	HumidityPercent int `json:"humidity_percent"`
	WindPercent     int `json:"wind_percent"`
	PressurePercent int `json:"pressure_percent"`
}

var titleCaser = cases.Title(language.English)

// Build renders snap. Temperatures are shown in Kelvin as delivered.
func Build(snap *types.WeatherSnapshot) View {
	description := snap.Description()
	if description != types.FallbackDescription {
		description = titleCaser.String(description)
	}

	return View{
		Temperature:     fmt.Sprintf("%.1f°", snap.Temperature),
		Location:        fmt.Sprintf("%s, %s", snap.PlaceName, snap.CountryCode),
		Humidity:        fmt.Sprintf("%d%%", snap.Humidity),
		Pressure:        fmt.Sprintf("%d hPa", snap.Pressure),
		Wind:            formatSpeed(snap.WindSpeed) + " m/s",
		Status:          snap.Summary(),
		Description:     description,
		IconURL:         external.IconURL(snap.Icon()),
		HumidityPercent: HumidityGauge(snap.Humidity),
		WindPercent:     WindGauge(snap.WindSpeed),
		PressurePercent: PressureGauge(snap.Pressure),
	}
}

// HumidityGauge clamps relative humidity to 0..100.
func HumidityGauge(humidity int) int {
	return clamp(humidity)
}

// WindGauge maps a speed in m/s onto 0..100, full at 20 km/h.
func WindGauge(speed float64) int {
	return clamp(int(speed * msToKMH / windFullScaleKMH * 100))
}

// PressureGauge maps 950..1050 hPa onto 0..100.
func PressureGauge(pressure int) int {
	return clamp(int((float64(pressure) - pressureFloorHPa) / pressureSpanHPa * 100))
}

// FailureMessage is shown when a fetch fails.
func FailureMessage(err error) string {
	msg := err.Error()
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	return "Failed to fetch weather: " + msg
}

// RefreshButtonLabel is the refresh control label for the given state.
func RefreshButtonLabel(refreshing bool) string {
	if refreshing {
		return RefreshingLabel
	}
	return RefreshLabel
}

// Text renders the view as plain lines for terminal output.
func (v View) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", v.Location)
	fmt.Fprintf(&b, "%s  %s\n", v.Temperature, v.Status)
	fmt.Fprintf(&b, "%s\n", v.Description)
	fmt.Fprintf(&b, "Humidity  %-8s %s\n", v.Humidity, bar(v.HumidityPercent))
	fmt.Fprintf(&b, "Wind      %-8s %s\n", v.Wind, bar(v.WindPercent))
	fmt.Fprintf(&b, "Pressure  %-8s %s\n", v.Pressure, bar(v.PressurePercent))
	fmt.Fprintf(&b, "Icon      %s\n", v.IconURL)
	return b.String()
}

func bar(percent int) string {
	filled := percent / 10
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", 10-filled) + "]"
}

// formatSpeed always keeps one decimal place for whole numbers ("3.0").
func formatSpeed(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}

func clamp(v int) int {
	return max(0, min(100, v))
}
