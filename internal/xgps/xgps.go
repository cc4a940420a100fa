// Package xgps encodes ForeFlight's ASCII network-GPS datagram.
package xgps

import (
	"fmt"

	"efb-sim/internal/geo"
)

// DefaultPort is the UDP port ForeFlight-family EFBs listen on.
const DefaultPort = 49002

// Encode formats one position datagram:
//
//	XGPS<name>,<lon>,<lat>,<alt_m>,<track_deg>,<speed_mps>
//
// Longitude precedes latitude; that ordering is protocol-mandated. Altitude
// is converted feet->meters and speed knots->m/s. The encoder performs no
// range checking and never fails; callers own validation.
func Encode(simName string, latDeg, lonDeg, altFeet, trackDeg, groundSpeedKt float64) []byte {
	return []byte(fmt.Sprintf("XGPS%s,%.8f,%.8f,%.1f,%.2f,%.1f",
		simName,
		lonDeg,
		latDeg,
		geo.FeetToMeters(altFeet),
		trackDeg,
		geo.KnotsToMetersPerSecond(groundSpeedKt)))
}
