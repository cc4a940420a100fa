// Package config loads the process-level YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Web       WebConfig       `yaml:"web"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

// BroadcastConfig seeds the broadcaster; everything here can later be
// changed through the control API.
type BroadcastConfig struct {
	Dest     string `yaml:"dest"`
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"`
	RateHz   int    `yaml:"rate_hz"`
	Name     string `yaml:"name"`
	ICAO     string `yaml:"icao"`
	Callsign string `yaml:"callsign"`
}

type MQTTConfig struct {
	Enable   bool          `yaml:"enable"`
	Broker   string        `yaml:"broker"`
	Topic    string        `yaml:"topic"`
	ClientID string        `yaml:"client_id"`
	Interval time.Duration `yaml:"interval"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func DefaultAndValidate(cfg *Config) error {
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	if cfg.Broadcast.Protocol == "" {
		cfg.Broadcast.Protocol = "gdl90"
	}
	switch cfg.Broadcast.Protocol {
	case "gdl90", "xgps":
	default:
		return fmt.Errorf("broadcast.protocol must be gdl90 or xgps, got %q", cfg.Broadcast.Protocol)
	}
	if cfg.Broadcast.Port < 0 || cfg.Broadcast.Port > 65535 {
		return fmt.Errorf("broadcast.port out of range: %d", cfg.Broadcast.Port)
	}
	if cfg.Broadcast.RateHz < 0 || cfg.Broadcast.RateHz > 10 {
		return fmt.Errorf("broadcast.rate_hz must be 1-10, got %d", cfg.Broadcast.RateHz)
	}

	if cfg.MQTT.Enable {
		if strings.TrimSpace(cfg.MQTT.Broker) == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
		}
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = "efb/position"
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "efb-sim"
		}
		if cfg.MQTT.Interval <= 0 {
			cfg.MQTT.Interval = time.Second
		}
	}

	return nil
}
