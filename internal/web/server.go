// Package web is the control surface consumed by the browser map UI: it
// starts and stops broadcasting, accepts position/config updates, and
// streams the live position to websocket subscribers.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"efb-sim/internal/broadcast"
	"efb-sim/internal/sim"
)

// upgrader accepts any origin; this server fronts a local tool, not a
// public site.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type StatusSnapshot struct {
	Service   string           `json:"service"`
	NowUTC    string           `json:"now_utc"`
	Broadcast broadcast.Status `json:"broadcast"`
	Flight    *sim.Flight      `json:"flight,omitempty"`
}

func Handler(b *broadcast.Broadcaster, runner *sim.Runner) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		snap := StatusSnapshot{
			Service:   "efb-sim",
			NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
			Broadcast: b.Status(),
		}
		if f, flying := runner.Flying(); flying {
			snap.Flight = &f
		}
		writeJSON(w, http.StatusOK, snap)
	})

	mux.HandleFunc("/api/start", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if err := b.Start(); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, broadcast.ErrAlreadyRunning) {
				status = http.StatusConflict
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	mux.HandleFunc("/api/stop", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		b.Stop()
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	mux.HandleFunc("/api/position", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPut) {
			return
		}
		var pos broadcast.Position
		if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode position: %w", err))
			return
		}
		if err := validatePosition(pos); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if pos.TimestampMs == 0 {
			pos.TimestampMs = time.Now().UnixMilli()
		}
		b.UpdatePosition(pos)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPatch) {
			return
		}
		var patch broadcast.Patch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode patch: %w", err))
			return
		}
		// Retargeting the stream mid-flight would strand the connected EFB;
		// those fields only change while stopped.
		if b.Running() && (patch.Dest != nil || patch.Port != nil || patch.Protocol != nil) {
			writeError(w, http.StatusConflict, fmt.Errorf("dest, port, and protocol require a stop first"))
			return
		}
		if err := b.UpdateConfig(patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	mux.HandleFunc("/api/fly", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var f sim.Flight
			if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("decode flight: %w", err))
				return
			}
			if err := validateFlight(f); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			runner.StartFlight(f)
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		case http.MethodDelete:
			runner.StopFlight()
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		default:
			w.Header().Set("Allow", "POST, DELETE")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/position/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go streamPosition(conn, b)
	})

	return mux
}

// streamPosition pushes the current snapshot once per second until the peer
// goes away.
func streamPosition(conn *websocket.Conn, b *broadcast.Broadcaster) {
	defer conn.Close()

	// Discard inbound frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	t := time.NewTicker(time.Second)
	defer t.Stop()

	pos, _ := b.Position()
	if err := conn.WriteJSON(pos); err != nil {
		return
	}
	for range t.C {
		pos, _ := b.Position()
		if err := conn.WriteJSON(pos); err != nil {
			return
		}
	}
}

func validatePosition(p broadcast.Position) error {
	if p.LatDeg < -90 || p.LatDeg > 90 {
		return fmt.Errorf("lat %v out of range", p.LatDeg)
	}
	if p.LonDeg < -180 || p.LonDeg > 180 {
		return fmt.Errorf("lon %v out of range", p.LonDeg)
	}
	if p.HeadingDeg < 0 || p.HeadingDeg >= 360 {
		return fmt.Errorf("heading %v out of range", p.HeadingDeg)
	}
	if p.GroundSpeedKt < 0 {
		return fmt.Errorf("ground speed %v negative", p.GroundSpeedKt)
	}
	return nil
}

func validateFlight(f sim.Flight) error {
	if f.HeadingDeg < 0 || f.HeadingDeg >= 360 {
		return fmt.Errorf("heading %v out of range", f.HeadingDeg)
	}
	if f.GroundSpeedKt < 0 {
		return fmt.Errorf("ground speed %v negative", f.GroundSpeedKt)
	}
	return nil
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
