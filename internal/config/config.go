// Package config loads the server configuration from server.yaml.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr string `yaml:"addr"`

	// Frontend bundle and map catalog directories.
	DistDir string `yaml:"dist_dir"`
	MapsDir string `yaml:"maps_dir"`

	// Runtime data directory (event journal, event index).
	DataDir string `yaml:"data_dir"`

	// Per-subscriber update queue capacity.
	EventQueue int `yaml:"event_queue"`

	// WebSocket write deadline, in milliseconds.
	WriteTimeoutMs int `yaml:"write_timeout_ms"`

	Journal    bool `yaml:"journal"`
	EventIndex bool `yaml:"event_index"`
}

func Defaults() Config {
	return Config{
		Addr:           ":3000",
		DistDir:        "../threejs-terrain-viewer/dist",
		MapsDir:        "../threejs-terrain-viewer/public/maps",
		DataDir:        "./data",
		EventQueue:     100,
		WriteTimeoutMs: 5000,
		Journal:        true,
		EventIndex:     true,
	}
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("server.yaml: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

func (c *Config) Normalize() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.EventQueue <= 0 {
		c.EventQueue = 100
	}
	if c.WriteTimeoutMs <= 0 {
		c.WriteTimeoutMs = 5000
	}
}
