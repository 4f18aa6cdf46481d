package types

// Fallbacks used when the upstream response carries no condition entry.
const (
	FallbackIconID      = "50d"
	FallbackDescription = "-"
)

// Condition is one entry of the upstream "weather" array.
type Condition struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	IconID      string `json:"icon_id"`
}

// WeatherSnapshot is the current weather at a point, built fresh per fetch.
// Temperature is in Kelvin; no units parameter is sent upstream.
type WeatherSnapshot struct {
	Coord       Coordinates `json:"coord"`
	Conditions  []Condition `json:"conditions"`
	Temperature float64     `json:"temperature"`
	Humidity    int         `json:"humidity"`
	Pressure    int         `json:"pressure"`
	WindSpeed   float64     `json:"wind_speed"`
	CountryCode string      `json:"country_code"`
	PlaceName   string      `json:"place_name"`
}

// Icon returns the first condition's icon id, or FallbackIconID.
func (w *WeatherSnapshot) Icon() string {
	if len(w.Conditions) == 0 || w.Conditions[0].IconID == "" {
		return FallbackIconID
	}
	return w.Conditions[0].IconID
}

// Description returns the first condition's description, or FallbackDescription.
func (w *WeatherSnapshot) Description() string {
	if len(w.Conditions) == 0 || w.Conditions[0].Description == "" {
		return FallbackDescription
	}
	return w.Conditions[0].Description
}

// Summary returns the first condition's short summary ("Clear", "Rain"), or "".
func (w *WeatherSnapshot) Summary() string {
	if len(w.Conditions) == 0 {
		return ""
	}
	return w.Conditions[0].Summary
}
