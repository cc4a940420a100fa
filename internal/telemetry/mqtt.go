// Package telemetry mirrors the broadcast position to an MQTT topic so
// ground-side tooling can follow the simulated aircraft without speaking
// XGPS or GDL90.
package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"efb-sim/internal/broadcast"
)

// PositionSource is the slice of the broadcaster the publisher reads.
type PositionSource interface {
	Position() (broadcast.Position, bool)
}

type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Interval time.Duration
}

type Publisher struct {
	cfg    Config
	source PositionSource
	client mqtt.Client

	publish func(payload []byte) error
	logf    func(format string, v ...any)
}

func New(cfg Config, source PositionSource) *Publisher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID)

	p := &Publisher{
		cfg:    cfg,
		source: source,
		client: mqtt.NewClient(opts),
		logf:   log.Printf,
	}
	p.publish = func(payload []byte) error {
		token := p.client.Publish(p.cfg.Topic, 0, true, payload)
		token.Wait()
		return token.Error()
	}
	return p
}

// Start connects to the broker and begins publishing until ctx is done.
func (p *Publisher) Start(ctx context.Context) error {
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	p.logf("telemetry: connected to %s, topic %s", p.cfg.Broker, p.cfg.Topic)
	go p.run(ctx)
	return nil
}

func (p *Publisher) run(ctx context.Context) {
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			p.client.Disconnect(250)
			return
		case <-t.C:
			p.publishOnce()
		}
	}
}

// publishOnce serializes the current snapshot. Publish errors are logged and
// retried on the next tick; the broadcast stream is never affected.
func (p *Publisher) publishOnce() {
	pos, _ := p.source.Position()
	payload, err := json.Marshal(pos)
	if err != nil {
		p.logf("telemetry: marshal: %v", err)
		return
	}
	if err := p.publish(payload); err != nil {
		p.logf("telemetry: publish: %v", err)
	}
}
