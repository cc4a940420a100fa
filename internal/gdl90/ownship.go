package gdl90

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

const semicirclesPerDeg = 8388608.0 / 180.0 // 2^23 semicircles per 180 degrees

// Ownship carries the position snapshot encoded into an Ownship Report.
// All fields are taken as-is; out-of-range values clamp rather than error.
type Ownship struct {
	ICAO             [3]byte
	LatDeg           float64
	LonDeg           float64
	AltFeet          float64
	GroundSpeedKt    float64
	TrackDeg         float64
	VerticalSpeedFpm float64
	Callsign         string
}

// OwnshipReportFrame builds and frames an Ownship Report (0x0A).
//
// Layout per byte:
//
//	0      message ID
//	1      alert status (0) / address type (0 = ADS-B with ICAO address)
//	2-4    24-bit ICAO address
//	5-10   lat, lon as signed 24-bit semicircles, big-endian
//	11-12  12-bit altitude code | 4-bit misc (0xB: airborne, extrapolated)
//	13     NIC/NACp (fixed 0xA8)
//	14-16  12-bit horizontal velocity | 12-bit signed vertical velocity
//	17     track
//	18     emitter category (0x01, light)
//	19-26  call sign, 8 ASCII chars space-padded
//	27     emergency/priority nibble (0)
func OwnshipReportFrame(o Ownship) []byte {
	msg := make([]byte, 28)
	msg[0] = 0x0A
	msg[1] = 0x00

	msg[2] = o.ICAO[0]
	msg[3] = o.ICAO[1]
	msg[4] = o.ICAO[2]

	lat := encodeSemicircles(o.LatDeg)
	msg[5], msg[6], msg[7] = lat[0], lat[1], lat[2]

	lon := encodeSemicircles(o.LonDeg)
	msg[8], msg[9], msg[10] = lon[0], lon[1], lon[2]

	alt := encodeAltitude12(o.AltFeet)
	msg[11] = byte(alt >> 4)
	msg[12] = byte((alt&0x0F)<<4) | 0x0B

	msg[13] = 0xA8

	hvel := encodeVelocity12(o.GroundSpeedKt)
	vvel := encodeVerticalVelocity12(o.VerticalSpeedFpm)
	msg[14] = byte(hvel >> 4)
	msg[15] = byte((hvel&0x0F)<<4) | byte((vvel>>8)&0x0F)
	msg[16] = byte(vvel & 0xFF)

	msg[17] = encodeTrack8(o.TrackDeg)
	msg[18] = 0x01

	copy(msg[19:27], []byte(padCallsign(o.Callsign)))
	msg[27] = 0x00

	return Frame(msg)
}

// GeometricAltitudeFrame builds and frames an Ownship Geometric Altitude
// (0x0B): a signed 16-bit altitude in 5 ft units, big-endian, followed by
// two zero vertical-metrics bytes.
func GeometricAltitudeFrame(altFeet float64) []byte {
	msg := make([]byte, 5)
	msg[0] = 0x0B

	v := math.Round(altFeet / 5.0)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	} else if v < math.MinInt16 {
		v = math.MinInt16
	}
	u := uint16(int16(v))
	msg[1] = byte(u >> 8)
	msg[2] = byte(u & 0xFF)
	msg[3] = 0x00
	msg[4] = 0x00

	return Frame(msg)
}

// ParseICAOHex parses a 6-hex-char aircraft address, with or without an 0x
// prefix.
func ParseICAOHex(s string) ([3]byte, error) {
	var out [3]byte
	s = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if len(s) != 6 {
		return out, fmt.Errorf("icao must be 6 hex chars")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func encodeSemicircles(deg float64) [3]byte {
	v := int32(math.Round(deg * semicirclesPerDeg))
	u := uint32(v) & 0x00FFFFFF
	return [3]byte{byte(u >> 16), byte(u >> 8), byte(u)}
}

// encodeAltitude12 maps pressure altitude to the 12-bit code: 25 ft
// resolution with a +1000 ft offset, clamped to 0..0xFFE.
func encodeAltitude12(altFeet float64) uint16 {
	v := math.Round((altFeet + 1000) / 25)
	if v < 0 {
		return 0
	}
	if v > 0xFFE {
		return 0xFFE
	}
	return uint16(v)
}

func encodeVelocity12(knots float64) uint16 {
	v := math.Round(knots)
	if v < 0 {
		return 0
	}
	if v > 0xFFE {
		return 0xFFE
	}
	return uint16(v)
}

// encodeVerticalVelocity12 encodes in 64 fpm units, sign bit 0x800 with the
// magnitude in the low 11 bits.
func encodeVerticalVelocity12(fpm float64) uint16 {
	v := math.Round(fpm / 64)
	neg := v < 0
	if neg {
		v = -v
	}
	if v > 0x7FF {
		v = 0x7FF
	}
	u := uint16(v)
	if neg {
		u |= 0x800
	}
	return u
}

func encodeTrack8(deg float64) byte {
	return byte(int(math.Round(deg / 1.4 * 256 / 360)) & 0xFF)
}

func padCallsign(s string) string {
	s = strings.ToUpper(s)
	if len(s) > 8 {
		s = s[:8]
	}
	b := []byte(s)
	for i := range b {
		c := b[i]
		ok := (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || c == ' '
		if !ok {
			b[i] = ' '
		}
	}
	for len(b) < 8 {
		b = append(b, ' ')
	}
	return string(b)
}
