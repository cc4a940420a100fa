package broadcast

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	closed   bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) write(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[i]
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestBroadcaster(t *testing.T, cfg Config) (*Broadcaster, *fakeConn) {
	t.Helper()
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	fc := &fakeConn{}
	var gotDest string
	b.resolve = func(network, address string) (*net.UDPAddr, error) {
		gotDest = address
		return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}, nil
	}
	b.dial = func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return fc, nil
	}
	b.logf = func(format string, v ...any) {}
	t.Cleanup(func() {
		b.Stop()
		_ = gotDest
	})
	return b, fc
}

func TestNew_RejectsBadFields(t *testing.T) {
	cases := []Config{
		{RateHz: 11},
		{RateHz: -1},
		{Port: 70000},
		{Protocol: "nmea"},
		{ICAOHex: "xyz"},
	}
	for _, cfg := range cases {
		if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("New(%+v) err=%v want ErrInvalidConfig", cfg, err)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	b, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cfg := b.Config()
	if cfg.Protocol != ProtocolGDL90 || cfg.Port != 4000 || cfg.RateHz != 1 {
		t.Fatalf("defaults=%+v", cfg)
	}
	if cfg.ICAOHex != "ABCDEF" || cfg.Callsign != "N12345" || cfg.Name != "FlightSim" {
		t.Fatalf("defaults=%+v", cfg)
	}

	b2, err := New(Config{Protocol: ProtocolXGPS})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := b2.Config().Port; got != 49002 {
		t.Fatalf("xgps default port=%d want 49002", got)
	}
}

func TestStart_EmptyDest(t *testing.T) {
	b, _ := newTestBroadcaster(t, Config{})
	if err := b.Start(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Start() err=%v want ErrInvalidConfig", err)
	}
	if b.Running() {
		t.Fatalf("broadcaster running after failed Start")
	}
}

func TestStart_Twice(t *testing.T) {
	b, _ := newTestBroadcaster(t, Config{Dest: "192.168.1.50"})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := b.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start() err=%v want ErrAlreadyRunning", err)
	}
}

func TestStart_GDL90ImmediateRound(t *testing.T) {
	b, fc := newTestBroadcaster(t, Config{Dest: "192.168.1.50"})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	// Heartbeat + ForeFlight ID + Ownship Report + Geometric Altitude,
	// before any timer has had a chance to fire.
	if got := fc.writeCount(); got != 4 {
		t.Fatalf("immediate round wrote %d datagrams, want 4", got)
	}
}

func TestStop_IdempotentAndFinal(t *testing.T) {
	b, fc := newTestBroadcaster(t, Config{Dest: "192.168.1.50", RateHz: 10})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(250 * time.Millisecond)
	b.Stop()
	b.Stop() // idempotent

	if !fc.isClosed() {
		t.Fatalf("transport not released on Stop")
	}
	n := fc.writeCount()
	time.Sleep(300 * time.Millisecond)
	if got := fc.writeCount(); got != n {
		t.Fatalf("sends continued after Stop: %d -> %d", n, got)
	}
	if b.Running() {
		t.Fatalf("still running after Stop")
	}
}

func TestStartAfterStop(t *testing.T) {
	b, fc := newTestBroadcaster(t, Config{Dest: "192.168.1.50"})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	b.Stop()
	if err := b.Start(); err != nil {
		t.Fatalf("restart error: %v", err)
	}
	if fc.writeCount() < 8 {
		t.Fatalf("expected a second immediate round after restart, got %d writes", fc.writeCount())
	}
}

func TestPositionTimer_Fires(t *testing.T) {
	b, fc := newTestBroadcaster(t, Config{Dest: "192.168.1.50", RateHz: 10})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	base := fc.writeCount()
	time.Sleep(350 * time.Millisecond)
	if got := fc.writeCount(); got <= base {
		t.Fatalf("no timer-driven sends observed (writes stayed at %d)", got)
	}
}

func TestXGPS_DefersUntilFirstPosition(t *testing.T) {
	b, fc := newTestBroadcaster(t, Config{Dest: "192.168.1.50", Protocol: ProtocolXGPS, RateHz: 10})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if got := fc.writeCount(); got != 0 {
		t.Fatalf("xgps sent %d datagrams before any position", got)
	}

	b.UpdatePosition(Position{LatDeg: 39.8283, LonDeg: -98.5795, AltFeet: 5000})
	if got := fc.writeCount(); got != 1 {
		t.Fatalf("first position should trigger one immediate send, got %d", got)
	}
	if first := fc.write(0); string(first[:4]) != "XGPS" {
		t.Fatalf("datagram is not XGPS: %q", first)
	}

	time.Sleep(250 * time.Millisecond)
	if got := fc.writeCount(); got < 2 {
		t.Fatalf("position timer never armed after first update")
	}
}

func TestUpdatePosition_TakesEffectNextTick(t *testing.T) {
	b, fc := newTestBroadcaster(t, Config{Dest: "192.168.1.50", Protocol: ProtocolXGPS, RateHz: 10})
	b.UpdatePosition(Position{LatDeg: 10, LonDeg: 20})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	n := fc.writeCount()
	b.UpdatePosition(Position{LatDeg: 30, LonDeg: 40})
	// No immediate resend once the timer is armed.
	if got := fc.writeCount(); got != n {
		t.Fatalf("update while armed sent immediately: %d -> %d", n, got)
	}
}

func TestUpdateConfig_RateRearmsPositionLoopOnly(t *testing.T) {
	b, _ := newTestBroadcaster(t, Config{Dest: "192.168.1.50", RateHz: 1})
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	b.mu.Lock()
	hbBefore := b.heartbeatLoop
	posBefore := b.positionLoop
	b.mu.Unlock()
	if posBefore.period != time.Second {
		t.Fatalf("initial position period=%s want 1s", posBefore.period)
	}

	rate := 5
	if err := b.UpdateConfig(Patch{RateHz: &rate}); err != nil {
		t.Fatalf("UpdateConfig() error: %v", err)
	}

	b.mu.Lock()
	hbAfter := b.heartbeatLoop
	posAfter := b.positionLoop
	b.mu.Unlock()
	if posAfter == nil || posAfter == posBefore {
		t.Fatalf("position loop was not re-armed")
	}
	if posAfter.period != 200*time.Millisecond {
		t.Fatalf("position period=%s want 200ms", posAfter.period)
	}
	if hbAfter != hbBefore || hbAfter.period != time.Second {
		t.Fatalf("heartbeat loop disturbed by rate change")
	}
}

func TestUpdateConfig_Validation(t *testing.T) {
	b, _ := newTestBroadcaster(t, Config{Dest: "192.168.1.50"})
	badPort := 99999
	if err := b.UpdateConfig(Patch{Port: &badPort}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("port patch err=%v want ErrInvalidConfig", err)
	}
	empty := "  "
	if err := b.UpdateConfig(Patch{Dest: &empty}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("dest-clear patch err=%v want ErrInvalidConfig", err)
	}
	// A failed merge must leave config untouched.
	if got := b.Config().Port; got != 4000 {
		t.Fatalf("config mutated by rejected patch: port=%d", got)
	}
}

func TestSendFailure_DoesNotStopBroadcasting(t *testing.T) {
	b, fc := newTestBroadcaster(t, Config{Dest: "192.168.1.50", RateHz: 10})
	fc.writeErr = errors.New("network is unreachable")
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	st := b.Status()
	if !st.Running {
		t.Fatalf("broadcaster gave up after send failures")
	}
	if st.SendFailures == 0 {
		t.Fatalf("send failures not counted")
	}
	if st.LastSendError == "" {
		t.Fatalf("last send error not recorded")
	}

	// Recovery: once writes succeed again the stream resumes counting.
	fc.mu.Lock()
	fc.writeErr = nil
	fc.mu.Unlock()
	time.Sleep(250 * time.Millisecond)
	if got := b.Status().DatagramsSent; got == 0 {
		t.Fatalf("no datagrams counted after recovery")
	}
}

func TestStatus_Snapshot(t *testing.T) {
	b, _ := newTestBroadcaster(t, Config{Dest: "192.168.1.50"})
	st := b.Status()
	if st.Running {
		t.Fatalf("fresh broadcaster reports running")
	}
	if st.HasPosition {
		t.Fatalf("fresh broadcaster reports a real position")
	}
	if st.Position != DefaultPosition {
		t.Fatalf("fallback position=%+v want %+v", st.Position, DefaultPosition)
	}
}
