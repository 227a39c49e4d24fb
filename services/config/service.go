// Package config loads the controller configuration and publishes each
// section retained on config/<section>.
package config

import (
	"io"
	"log"

	"brewcode-go/bus"
)

const configPrefix = "config"

// ConfigService publishes a validated Config on the bus.
type ConfigService struct {
	Name string
	cfg  Config
	log  *log.Logger
}

func NewConfigService(cfg Config, logger *log.Logger) *ConfigService {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ConfigService{Name: "config", cfg: cfg, log: logger}
}

// Publish puts every section on config/<section> as a retained message.
// Later subscribers receive the current values on subscribe.
func (s *ConfigService) Publish(conn *bus.Connection) {
	for k, v := range s.cfg.Sections() {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	s.log.Println("info: published config for", s.cfg.HardwareID)
}

// Update replaces the config and republishes it.
func (s *ConfigService) Update(conn *bus.Connection, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	s.Publish(conn)
	return nil
}
