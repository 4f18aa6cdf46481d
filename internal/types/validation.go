package types

import (
	"fmt"
	"math"
	"time"
)

// Coordinate range limits (WGS84 decimal degrees).
const (
	MinLat = -90.0
	MaxLat = 90.0
	MinLon = -180.0
	MaxLon = 180.0
)

// Coordinates is an immutable WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Validate rejects NaN, infinities and out-of-range values.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < MinLat || c.Lat > MaxLat {
		return NewAppError(ErrCodeValidationInvalidLat,
			fmt.Sprintf("latitude %v must be between %v and %v", c.Lat, MinLat, MaxLat), nil)
	}
	if math.IsNaN(c.Lon) || c.Lon < MinLon || c.Lon > MaxLon {
		return NewAppError(ErrCodeValidationInvalidLon,
			fmt.Sprintf("longitude %v must be between %v and %v", c.Lon, MinLon, MaxLon), nil)
	}
	return nil
}

// String formats the pair as "lat,lon" with the shortest exact representation.
func (c Coordinates) String() string {
	return fmt.Sprintf("%v,%v", c.Lat, c.Lon)
}

// FixSource identifies which acquisition tier produced a Fix.
type FixSource string

const (
	FixSourceStored    FixSource = "stored"
	FixSourceLastKnown FixSource = "last_known"
	FixSourceFresh     FixSource = "fresh"
)

// Fix is a single determination of device coordinates.
type Fix struct {
	Coordinates Coordinates `json:"coordinates"`
	Source      FixSource   `json:"source"`
	At          time.Time   `json:"at"`
}
