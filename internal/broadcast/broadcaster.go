// Package broadcast owns the simulator's mutable position/config state and
// pushes encoded datagrams to the configured EFB on periodic timers.
package broadcast

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"efb-sim/internal/gdl90"
	"efb-sim/internal/xgps"
)

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
)

// Position is one complete navigation snapshot. It is always replaced as a
// whole; no field is ever updated independently of the others.
type Position struct {
	LatDeg           float64 `json:"lat"`
	LonDeg           float64 `json:"lon"`
	AltFeet          float64 `json:"alt_feet"`
	HeadingDeg       float64 `json:"heading_deg"`
	GroundSpeedKt    float64 `json:"ground_speed_kt"`
	VerticalSpeedFpm float64 `json:"vertical_speed_fpm"`
	TimestampMs      int64   `json:"timestamp_ms"`
}

// DefaultPosition is broadcast before the first real update so a freshly
// connected EFB shows a fix immediately: the geographic center of the
// contiguous US at 5000 ft, stationary.
var DefaultPosition = Position{
	LatDeg:  39.8283,
	LonDeg:  -98.5795,
	AltFeet: 5000,
}

// Status is the caller-facing view of the broadcaster.
type Status struct {
	Running       bool     `json:"running"`
	Config        Config   `json:"config"`
	Position      Position `json:"position"`
	HasPosition   bool     `json:"has_position"`
	DatagramsSent uint64   `json:"datagrams_sent"`
	SendFailures  uint64   `json:"send_failures"`
	LastSendError string   `json:"last_send_error,omitempty"`
}

// loop is one cancellable periodic timer. halt() does not return until the
// goroutine has exited, so no tick can fire after it.
type loop struct {
	period time.Duration
	stop   chan struct{}
	done   chan struct{}
}

func startLoop(period time.Duration, fire func()) *loop {
	l := &loop{
		period: period,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-t.C:
				fire()
			}
		}
	}()
	return l
}

func (l *loop) halt() {
	if l == nil {
		return
	}
	close(l.stop)
	<-l.done
}

// Broadcaster transitions Stopped -> Running -> Stopped. It is safe for
// concurrent use; each tick reads the current snapshot under the lock so a
// send never observes a half-updated position.
type Broadcaster struct {
	mu          sync.Mutex
	cfg         Config
	pos         Position
	hasPosition bool
	running     bool
	conn        udpConn

	heartbeatLoop *loop
	positionLoop  *loop

	resolve resolveFunc
	dial    dialFunc
	logf    func(format string, v ...any)

	datagramsSent uint64
	sendFailures  uint64
	lastSendErr   atomic.Value // string
}

// New constructs a stopped broadcaster. Every field except Dest is validated
// here; an empty Dest is legal until Start.
func New(cfg Config) (*Broadcaster, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	b := &Broadcaster{
		cfg:     cfg,
		pos:     DefaultPosition,
		resolve: net.ResolveUDPAddr,
		dial:    netDialUDP,
		logf:    log.Printf,
	}
	b.lastSendErr.Store("")
	return b, nil
}

// Start opens the transport, emits one immediate round of messages, and arms
// the periodic timers. It fails with ErrInvalidConfig when no destination is
// configured and ErrAlreadyRunning on a second call without a Stop between.
func (b *Broadcaster) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return ErrAlreadyRunning
	}
	if strings.TrimSpace(b.cfg.Dest) == "" {
		return fmt.Errorf("%w: destination address not set", ErrInvalidConfig)
	}

	dest := net.JoinHostPort(b.cfg.Dest, fmt.Sprintf("%d", b.cfg.Port))
	addr, err := b.resolve("udp", dest)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dest, err)
	}
	conn, err := b.dial("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dial udp %s: %w", dest, err)
	}
	b.conn = conn
	b.running = true
	b.logf("broadcast: started proto=%s dest=%s rate=%dHz", b.cfg.Protocol, dest, b.cfg.RateHz)

	// One round up front so a newly connected EFB sees data without waiting
	// out a full interval.
	if b.cfg.Protocol == ProtocolGDL90 {
		b.sendHeartbeatRoundLocked()
		b.sendPositionRoundLocked()
		b.heartbeatLoop = startLoop(time.Second, b.heartbeatTick)
		b.positionLoop = startLoop(b.cfg.tickPeriod(), b.positionTick)
		return nil
	}

	// XGPS carries no heartbeat, and its consumers treat every line as
	// authoritative, so the position timer waits for the first real update.
	if b.hasPosition {
		b.sendPositionRoundLocked()
		b.positionLoop = startLoop(b.cfg.tickPeriod(), b.positionTick)
	}
	return nil
}

// Stop cancels all timers and releases the transport. It is an idempotent
// no-op when already stopped; on return no timer will fire again.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	hb, pl, conn := b.heartbeatLoop, b.positionLoop, b.conn
	b.heartbeatLoop, b.positionLoop, b.conn = nil, nil, nil
	b.running = false
	b.mu.Unlock()

	// Halting outside the lock: a mid-flight tick may be waiting on it.
	hb.halt()
	pl.halt()
	if conn != nil {
		_ = conn.Close()
	}
	b.logf("broadcast: stopped")
}

// UpdatePosition atomically replaces the stored snapshot. It takes effect on
// the next scheduled tick, except that the first position received while
// running arms the XGPS position timer.
func (b *Broadcaster) UpdatePosition(p Position) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pos = p
	first := !b.hasPosition
	b.hasPosition = true

	if first && b.running && b.positionLoop == nil {
		b.sendPositionRoundLocked()
		b.positionLoop = startLoop(b.cfg.tickPeriod(), b.positionTick)
	}
}

// UpdateConfig merges the patch into the stored configuration. A rate change
// while running tears down and re-arms the position timer with the new
// period; the fixed 1 Hz heartbeat is unaffected. Rejecting destination or
// protocol changes while running is the control layer's contract, not this
// component's.
func (b *Broadcaster) UpdateConfig(p Patch) error {
	b.mu.Lock()
	next, err := p.apply(b.cfg)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	rateChanged := next.RateHz != b.cfg.RateHz
	b.cfg = next
	old := b.positionLoop
	rearm := rateChanged && b.running && old != nil
	if rearm {
		b.positionLoop = nil
	}
	b.mu.Unlock()

	if !rearm {
		return nil
	}
	old.halt()

	b.mu.Lock()
	defer b.mu.Unlock()
	// Stop may have won the race while the old loop was draining.
	if b.running && b.positionLoop == nil {
		b.positionLoop = startLoop(b.cfg.tickPeriod(), b.positionTick)
	}
	return nil
}

// Config returns a copy of the current configuration.
func (b *Broadcaster) Config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// Position returns the current snapshot and whether a real update has been
// received yet.
func (b *Broadcaster) Position() (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pos, b.hasPosition
}

// Running reports whether the broadcaster is in the Running state.
func (b *Broadcaster) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Status returns a consistent snapshot of state, config, position, and send
// counters.
func (b *Broadcaster) Status() Status {
	b.mu.Lock()
	s := Status{
		Running:     b.running,
		Config:      b.cfg,
		Position:    b.pos,
		HasPosition: b.hasPosition,
	}
	b.mu.Unlock()
	s.DatagramsSent = atomic.LoadUint64(&b.datagramsSent)
	s.SendFailures = atomic.LoadUint64(&b.sendFailures)
	s.LastSendError, _ = b.lastSendErr.Load().(string)
	return s
}

func (b *Broadcaster) heartbeatTick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.sendHeartbeatRoundLocked()
}

func (b *Broadcaster) positionTick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.sendPositionRoundLocked()
}

func (b *Broadcaster) sendHeartbeatRoundLocked() {
	b.sendLocked(gdl90.HeartbeatFrame(true))
	b.sendLocked(gdl90.ForeFlightIDFrame(b.cfg.Name, b.cfg.Name))
}

func (b *Broadcaster) sendPositionRoundLocked() {
	pos := b.pos
	switch b.cfg.Protocol {
	case ProtocolXGPS:
		b.sendLocked(xgps.Encode(b.cfg.Name, pos.LatDeg, pos.LonDeg, pos.AltFeet, pos.HeadingDeg, pos.GroundSpeedKt))
	default:
		icao, _ := gdl90.ParseICAOHex(b.cfg.ICAOHex) // validated at merge time
		b.sendLocked(gdl90.OwnshipReportFrame(gdl90.Ownship{
			ICAO:             icao,
			LatDeg:           pos.LatDeg,
			LonDeg:           pos.LonDeg,
			AltFeet:          pos.AltFeet,
			GroundSpeedKt:    pos.GroundSpeedKt,
			TrackDeg:         pos.HeadingDeg,
			VerticalSpeedFpm: pos.VerticalSpeedFpm,
			Callsign:         b.cfg.Callsign,
		}))
		b.sendLocked(gdl90.GeometricAltitudeFrame(pos.AltFeet))
	}
}

// sendLocked writes one datagram. A failed send is counted and logged but
// never stops a timer or changes state; one lost datagram must not halt the
// stream.
func (b *Broadcaster) sendLocked(payload []byte) {
	if b.conn == nil || len(payload) == 0 {
		return
	}
	if _, err := b.conn.Write(payload); err != nil {
		atomic.AddUint64(&b.sendFailures, 1)
		b.lastSendErr.Store(err.Error())
		b.logf("broadcast: send failed: %v", err)
		return
	}
	atomic.AddUint64(&b.datagramsSent, 1)
}
