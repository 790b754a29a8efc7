package heading

import (
	"math"
)

// Reading is the canonical heading representation for the apps.
type Reading struct {
	Degrees float64 `json:"heading_deg"` // 0-360, 0 = north
	Source  string  `json:"source,omitempty"`
	Time    string  `json:"time,omitempty"` // RFC3339
}

// Source is anything that can provide headings over time: the magnetometer,
// a mock, or a serial-attached reference sensor.
type Source interface {
	Next() (Reading, error)
}

// FromComponents computes the planar compass heading in degrees from the
// horizontal field components, applying the local magnetic declination.
// The sensor is assumed level; there is no tilt compensation here.
func FromComponents(mx, my float64, declinationDeg float64) float64 {
	deg := math.Atan2(my, mx) * 180.0 / math.Pi
	return Normalize(deg + declinationDeg)
}

// Normalize wraps a heading into [0, 360).
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
