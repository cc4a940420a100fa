// Package gdl90 builds the GDL90 data-link frames an EFB ingests as a
// simulated ADS-B/GPS source: Heartbeat (0x00), Ownship Report (0x0A), and
// Ownship Geometric Altitude (0x0B).
package gdl90

import "time"

const (
	flagByte   = 0x7E
	escapeByte = 0x7D
	escapeXor  = 0x20
)

// DefaultPort is the UDP port GDL90 consumers conventionally listen on.
const DefaultPort = 4000

// Frame takes an unframed GDL90 message (message ID + payload bytes), appends
// the GDL90 CRC16 big-endian, applies byte-stuffing, and wraps with 0x7E
// flags. Escaping runs over payload+CRC; the flags themselves are never
// escaped.
func Frame(message []byte) []byte {
	crc := crc16(message)

	withCRC := make([]byte, 0, len(message)+2)
	withCRC = append(withCRC, message...)
	withCRC = append(withCRC, byte(crc>>8), byte(crc&0xFF))

	out := make([]byte, 0, 2+len(withCRC)*2)
	out = append(out, flagByte)
	for _, b := range withCRC {
		if b == flagByte || b == escapeByte {
			out = append(out, escapeByte, b^escapeXor)
			continue
		}
		out = append(out, b)
	}
	out = append(out, flagByte)
	return out
}

// HeartbeatFrame builds and frames a Heartbeat for the current wall clock.
// Consumers expect one per second regardless of the position cadence.
func HeartbeatFrame(gpsValid bool) []byte {
	return HeartbeatFrameAt(time.Now().UTC(), gpsValid)
}

// HeartbeatFrameAt builds and frames a Heartbeat (0x00) for the given time.
//
// Byte 1 status flags: bit 0x01 "UAT initialized", bit 0x80 "GPS position
// valid" (0x81 whenever a position is known). Bytes 3-5 carry the 17-bit
// seconds-since-UTC-midnight counter: bit 16 alone in byte 3, then the
// remaining 16 bits big-endian.
func HeartbeatFrameAt(nowUTC time.Time, gpsValid bool) []byte {
	msg := make([]byte, 7)
	msg[0] = 0x00

	flags := byte(0x01)
	if gpsValid {
		flags |= 0x80
	}
	msg[1] = flags
	msg[2] = 0x00

	nowUTC = nowUTC.UTC()
	midnight := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC)
	seconds := uint32(nowUTC.Sub(midnight).Seconds())

	msg[3] = byte((seconds >> 16) & 0x01)
	msg[4] = byte((seconds >> 8) & 0xFF)
	msg[5] = byte(seconds & 0xFF)
	msg[6] = 0x00

	return Frame(msg)
}
