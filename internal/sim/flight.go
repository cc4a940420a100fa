// Package sim advances the simulated aircraft along a manually commanded
// straight-line flight and feeds the broadcaster with the resulting
// position snapshots.
package sim

import (
	"math"
	"time"

	"efb-sim/internal/broadcast"
	"efb-sim/internal/geo"
)

// Flight is a constant-track, constant-speed straight-line command.
type Flight struct {
	HeadingDeg       float64 `json:"heading_deg"`
	GroundSpeedKt    float64 `json:"ground_speed_kt"`
	VerticalSpeedFpm float64 `json:"vertical_speed_fpm"`
}

// Advance moves pos along the flight for dt using a flat-earth
// approximation: distance in NM split into north/east components, ~60 NM
// per degree of latitude, longitude scaled by cos(lat). Good to well under
// a semicircle LSB over the second-scale steps the runner takes.
func (f Flight) Advance(pos broadcast.Position, dt time.Duration) broadcast.Position {
	hours := dt.Seconds() / 3600.0
	distNm := f.GroundSpeedKt * hours
	hdgRad := f.HeadingDeg * math.Pi / 180.0

	latDeg := pos.LatDeg + (distNm*math.Cos(hdgRad))/geo.NauticalMilesPerDegreeLat
	lonScale := math.Cos(pos.LatDeg * math.Pi / 180.0)
	lonDeg := pos.LonDeg
	if lonScale != 0 {
		lonDeg += (distNm * math.Sin(hdgRad)) / geo.NauticalMilesPerDegreeLat / lonScale
	}

	return broadcast.Position{
		LatDeg:           latDeg,
		LonDeg:           lonDeg,
		AltFeet:          pos.AltFeet + f.VerticalSpeedFpm*dt.Minutes(),
		HeadingDeg:       f.HeadingDeg,
		GroundSpeedKt:    f.GroundSpeedKt,
		VerticalSpeedFpm: f.VerticalSpeedFpm,
		TimestampMs:      pos.TimestampMs + dt.Milliseconds(),
	}
}
