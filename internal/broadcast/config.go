package broadcast

import (
	"fmt"
	"strings"
	"time"

	"efb-sim/internal/gdl90"
	"efb-sim/internal/xgps"
)

// Protocol selects the wire format pushed to the EFB.
type Protocol string

const (
	ProtocolXGPS  Protocol = "xgps"
	ProtocolGDL90 Protocol = "gdl90"
)

const (
	minRateHz = 1
	maxRateHz = 10
)

// Config is the full broadcaster configuration. Dest may be left empty at
// construction time; Start refuses to run without it.
type Config struct {
	Dest     string   `json:"dest"`     // destination IPv4 address, no port
	Port     int      `json:"port"`     // destination UDP port; 0 selects the protocol default
	Protocol Protocol `json:"protocol"` // defaults to gdl90
	RateHz   int      `json:"rate_hz"`  // position messages per second, 1-10
	Name     string   `json:"name"`     // device/simulator name shown by the EFB
	ICAOHex  string   `json:"icao"`     // 24-bit ownship address, 6 hex chars
	Callsign string   `json:"callsign"` // ownship call sign, up to 8 chars
}

func (c *Config) applyDefaults() {
	if c.Protocol == "" {
		c.Protocol = ProtocolGDL90
	}
	if c.Port == 0 {
		switch c.Protocol {
		case ProtocolXGPS:
			c.Port = xgps.DefaultPort
		default:
			c.Port = gdl90.DefaultPort
		}
	}
	if c.RateHz == 0 {
		c.RateHz = 1
	}
	if c.Name == "" {
		c.Name = "FlightSim"
	}
	if c.ICAOHex == "" {
		c.ICAOHex = "ABCDEF"
	}
	if c.Callsign == "" {
		c.Callsign = "N12345"
	}
}

// validate checks every field except Dest emptiness, which is a Start-time
// precondition rather than a construction error.
func (c Config) validate() error {
	if c.Protocol != ProtocolXGPS && c.Protocol != ProtocolGDL90 {
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalidConfig, c.Protocol)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.RateHz < minRateHz || c.RateHz > maxRateHz {
		return fmt.Errorf("%w: rate %d Hz out of range %d-%d", ErrInvalidConfig, c.RateHz, minRateHz, maxRateHz)
	}
	if _, err := gdl90.ParseICAOHex(c.ICAOHex); err != nil {
		return fmt.Errorf("%w: icao: %v", ErrInvalidConfig, err)
	}
	return nil
}

// tickPeriod is the position-message interval: 1000/RateHz milliseconds.
func (c Config) tickPeriod() time.Duration {
	return time.Second / time.Duration(c.RateHz)
}

// Patch is a partial configuration update. Nil fields are left unchanged;
// each provided field is validated independently before the merge commits.
type Patch struct {
	Dest     *string   `json:"dest,omitempty"`
	Port     *int      `json:"port,omitempty"`
	Protocol *Protocol `json:"protocol,omitempty"`
	RateHz   *int      `json:"rate_hz,omitempty"`
	Name     *string   `json:"name,omitempty"`
	ICAOHex  *string   `json:"icao,omitempty"`
	Callsign *string   `json:"callsign,omitempty"`
}

// apply validates each provided field, then merges the patch onto cfg and
// returns the merged result. The input is untouched on any failure.
func (p Patch) apply(cfg Config) (Config, error) {
	if p.Dest != nil && strings.TrimSpace(*p.Dest) == "" {
		return cfg, fmt.Errorf("%w: dest cannot be cleared", ErrInvalidConfig)
	}
	if p.Port != nil && (*p.Port < 1 || *p.Port > 65535) {
		return cfg, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, *p.Port)
	}
	if p.Protocol != nil && *p.Protocol != ProtocolXGPS && *p.Protocol != ProtocolGDL90 {
		return cfg, fmt.Errorf("%w: unknown protocol %q", ErrInvalidConfig, *p.Protocol)
	}
	if p.RateHz != nil && (*p.RateHz < minRateHz || *p.RateHz > maxRateHz) {
		return cfg, fmt.Errorf("%w: rate %d Hz out of range %d-%d", ErrInvalidConfig, *p.RateHz, minRateHz, maxRateHz)
	}
	if p.ICAOHex != nil {
		if _, err := gdl90.ParseICAOHex(*p.ICAOHex); err != nil {
			return cfg, fmt.Errorf("%w: icao: %v", ErrInvalidConfig, err)
		}
	}

	next := cfg
	if p.Dest != nil {
		next.Dest = strings.TrimSpace(*p.Dest)
	}
	if p.Port != nil {
		next.Port = *p.Port
	}
	if p.Protocol != nil {
		next.Protocol = *p.Protocol
		if p.Port == nil {
			// Follow the protocol's conventional port unless one was
			// patched in explicitly.
			next.Port = 0
		}
	}
	if p.RateHz != nil {
		next.RateHz = *p.RateHz
	}
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.ICAOHex != nil {
		next.ICAOHex = *p.ICAOHex
	}
	if p.Callsign != nil {
		next.Callsign = *p.Callsign
	}
	next.applyDefaults()
	if err := next.validate(); err != nil {
		return cfg, err
	}
	return next, nil
}
