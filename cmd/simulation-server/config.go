package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"speakcity/traffic"

	log "github.com/sirupsen/logrus"
)

// Config holds the server configuration
type Config struct {
	traffic.GridConfig

	ExcludedStreets       []string `json:"excluded_streets"`
	ExcludedIntersections []string `json:"excluded_intersections"`
	LightIntervalSeconds  int      `json:"light_interval_seconds"`
	Density               string   `json:"density"`

	TickRateMs             int    `json:"tick_rate_ms"`
	BroadcastEvery         int    `json:"broadcast_every"`
	Seed                   int64  `json:"seed"`
	HTTPAddr               string `json:"http_addr"`
	GRPCAddr               string `json:"grpc_addr"`
	StateFile              string `json:"state_file"`
	MQTTBroker             string `json:"mqtt_broker"`
	MQTTTopic              string `json:"mqtt_topic"`
	MetricsIntervalSeconds int    `json:"metrics_interval_seconds"`
}

// DefaultConfig returns the stock city served on :8080 and :9090
func DefaultConfig() *Config {
	opts := traffic.DefaultOptions()
	return &Config{
		GridConfig:             opts.Grid,
		ExcludedStreets:        opts.ExcludedStreets,
		ExcludedIntersections:  opts.ExcludedIntersections,
		LightIntervalSeconds:   int(opts.Params.LightInterval / time.Second),
		Density:                string(opts.Density),
		TickRateMs:             16,
		BroadcastEvery:         3,
		HTTPAddr:               ":8080",
		GRPCAddr:               ":9090",
		StateFile:              "city_state.txt",
		MQTTTopic:              "speakcity/metrics",
		MetricsIntervalSeconds: 5,
	}
}

// LoadConfig reads configPath on top of the defaults and then applies
// environment overrides. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.Open(configPath)
	switch {
	case os.IsNotExist(err):
		log.Printf("Config file not found at %s, using defaults", configPath)
	case err != nil:
		return nil, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
		log.Printf("Configuration loaded from %s", configPath)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SPEAKCITY_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SPEAKCITY_SEED: %w", err)
		}
		c.Seed = seed
	}
	if v := os.Getenv("SPEAKCITY_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("SPEAKCITY_DENSITY"); v != "" {
		c.Density = v
	}
	return nil
}

// Options converts the file settings into engine options.
func (c *Config) Options() (traffic.Options, error) {
	density, err := traffic.ParseDensity(c.Density)
	if err != nil {
		return traffic.Options{}, err
	}
	params := traffic.DefaultParams()
	if c.LightIntervalSeconds > 0 {
		params.LightInterval = time.Duration(c.LightIntervalSeconds) * time.Second
	}
	return traffic.Options{
		Grid:                  c.GridConfig,
		Params:                params,
		ExcludedStreets:       c.ExcludedStreets,
		ExcludedIntersections: c.ExcludedIntersections,
		Density:               density,
	}, nil
}

// TickRate is the wall-clock period of one simulation step.
func (c *Config) TickRate() time.Duration {
	if c.TickRateMs <= 0 {
		return 16 * time.Millisecond
	}
	return time.Duration(c.TickRateMs) * time.Millisecond
}

// MetricsInterval is the MQTT publication period.
func (c *Config) MetricsInterval() time.Duration {
	if c.MetricsIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.MetricsIntervalSeconds) * time.Second
}

// GetDefaultConfigPath returns the default path for the config file
func GetDefaultConfigPath() string {
	execPath, err := os.Executable()
	if err != nil {
		log.Printf("Warning: Could not determine executable path: %v", err)
		return "config.json"
	}
	return filepath.Join(filepath.Dir(execPath), "config.json")
}

// SaveDefaultConfig creates a default config file if it doesn't exist
func SaveDefaultConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(DefaultConfig()); err != nil {
		return err
	}

	log.Printf("Created default config file at %s", configPath)
	return nil
}
