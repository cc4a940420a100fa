// Package geo holds the unit conversions shared by the protocol encoders.
package geo

const (
	metersPerFoot = 0.3048
	mpsPerKnot    = 0.514444
)

// NauticalMilesPerDegreeLat is the flat-earth approximation used by the
// straight-line flight simulator (~60 NM per degree of latitude).
const NauticalMilesPerDegreeLat = 60.0

func FeetToMeters(feet float64) float64 {
	return feet * metersPerFoot
}

func KnotsToMetersPerSecond(knots float64) float64 {
	return knots * mpsPerKnot
}
