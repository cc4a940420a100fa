package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"efb-sim/internal/broadcast"
	"efb-sim/internal/config"
	"efb-sim/internal/sim"
	"efb-sim/internal/telemetry"
	"efb-sim/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./efb-sim.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := broadcast.New(broadcast.Config{
		Dest:     cfg.Broadcast.Dest,
		Port:     cfg.Broadcast.Port,
		Protocol: broadcast.Protocol(cfg.Broadcast.Protocol),
		RateHz:   cfg.Broadcast.RateHz,
		Name:     cfg.Broadcast.Name,
		ICAOHex:  cfg.Broadcast.ICAO,
		Callsign: cfg.Broadcast.Callsign,
	})
	if err != nil {
		log.Fatalf("broadcaster init failed: %v", err)
	}
	defer b.Stop()

	runner := sim.NewRunner(b)
	defer runner.StopFlight()

	if cfg.MQTT.Enable {
		pub := telemetry.New(telemetry.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Interval: cfg.MQTT.Interval,
		}, b)
		// Keep serving even if the broker is down; the EFB feed does not
		// depend on telemetry.
		if err := pub.Start(ctx); err != nil {
			log.Printf("telemetry init failed: %v", err)
		}
	}

	srv := &http.Server{
		Addr:    cfg.Web.Listen,
		Handler: web.Handler(b, runner),
	}
	go func() {
		log.Printf("efb-sim control API listening on %s", cfg.Web.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("web server stopped: %v", err)
			cancel()
		}
	}()

	log.Printf("efb-sim starting proto=%s dest=%s:%d rate=%dHz",
		b.Config().Protocol, b.Config().Dest, b.Config().Port, b.Config().RateHz)

	<-ctx.Done()
	log.Printf("efb-sim stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
