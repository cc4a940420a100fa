package sim

import (
	"log"
	"sync"
	"time"

	"efb-sim/internal/broadcast"
)

const stepInterval = time.Second

// PositionSink is the slice of the broadcaster the runner drives.
type PositionSink interface {
	Position() (broadcast.Position, bool)
	UpdatePosition(broadcast.Position)
	Running() bool
}

// Runner executes at most one Flight at a time, stepping the sink's position
// once per second. Starting a new flight replaces the active one.
type Runner struct {
	mu     sync.Mutex
	sink   PositionSink
	flight Flight
	flying bool
	stop   chan struct{}
	done   chan struct{}
	logf   func(format string, v ...any)
}

func NewRunner(sink PositionSink) *Runner {
	return &Runner{sink: sink, logf: log.Printf}
}

// StartFlight begins (or redirects) straight-line movement from the sink's
// current position. The broadcaster does not have to be running; the
// position keeps advancing and is picked up whenever it starts.
func (r *Runner) StartFlight(f Flight) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flight = f
	if r.flying {
		return
	}
	r.flying = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.run(r.stop, r.done)
	r.logf("sim: flight started hdg=%.1f gs=%.1fkt vs=%.0ffpm", f.HeadingDeg, f.GroundSpeedKt, f.VerticalSpeedFpm)
}

// StopFlight halts movement. Idempotent; the last position stays in place.
func (r *Runner) StopFlight() {
	r.mu.Lock()
	if !r.flying {
		r.mu.Unlock()
		return
	}
	stop, done := r.stop, r.done
	r.flying = false
	r.mu.Unlock()

	close(stop)
	<-done
	r.logf("sim: flight stopped")
}

// Flying reports whether a flight is active, and which one.
func (r *Runner) Flying() (Flight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flight, r.flying
}

func (r *Runner) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(stepInterval)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-t.C:
			r.mu.Lock()
			f := r.flight
			r.mu.Unlock()
			pos, _ := r.sink.Position()
			next := f.Advance(pos, now.Sub(last))
			next.TimestampMs = now.UnixMilli()
			r.sink.UpdatePosition(next)
			last = now
		}
	}
}
