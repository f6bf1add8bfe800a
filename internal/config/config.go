package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"devicemonitor/internal/logger"
	"devicemonitor/internal/models"
	"devicemonitor/internal/notify"
)

// Config represents configuration data for the device monitor.
type Config struct {
	ListenAddress string              `yaml:"listen_address"`
	Schedule      Schedule            `yaml:"schedule"`
	Probe         Probe               `yaml:"probe"`
	Logging       logger.Config       `yaml:"logging"`
	MQTT          notify.MQTTConfig   `yaml:"mqtt"`
	Devices       []models.DeviceSeed `yaml:"devices"`
}

// Schedule holds the auto-ping defaults and the values users may pick from.
type Schedule struct {
	Enabled          bool  `yaml:"enabled"`
	IntervalSeconds  int   `yaml:"interval_seconds"`
	StaggerSeconds   int   `yaml:"stagger_seconds"`
	AllowedIntervals []int `yaml:"allowed_intervals"`
	AllowedStaggers  []int `yaml:"allowed_staggers"`
}

// Probe configures the simulated prober.
type Probe struct {
	MinDelay     time.Duration `yaml:"min_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	SuccessRatio float64       `yaml:"success_ratio"`
	Timeout      time.Duration `yaml:"timeout"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		ListenAddress: ":8080",
		Schedule: Schedule{
			Enabled:          false,
			IntervalSeconds:  30,
			StaggerSeconds:   2,
			AllowedIntervals: []int{15, 30, 60, 120, 300, 600},
			AllowedStaggers:  []int{1, 2, 3, 5},
		},
		Probe: Probe{
			MinDelay:     time.Second,
			MaxDelay:     3 * time.Second,
			SuccessRatio: 0.7,
			InitialDelay: 100 * time.Millisecond,
		},
		Logging: logger.Config{
			Level:  "info",
			Output: "stdout",
		},
		MQTT: notify.MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "devicemonitor",
			Topic:    "devicemonitor/status",
			QOS:      1,
		},
		Devices: []models.DeviceSeed{
			{Name: "Router", Address: "192.168.1.1"},
			{Name: "Server", Address: "192.168.1.100"},
			{Name: "Printer", Address: "192.168.1.200"},
		},
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Interval returns the configured auto-ping period.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalSeconds) * time.Second
}

// Stagger returns the configured delay between devices within a cycle.
func (c Config) Stagger() time.Duration {
	return time.Duration(c.Schedule.StaggerSeconds) * time.Second
}

func (c *Config) normalise() error {
	defaults := DefaultConfig()

	if c.ListenAddress == "" {
		c.ListenAddress = defaults.ListenAddress
	}
	if len(c.Schedule.AllowedIntervals) == 0 {
		c.Schedule.AllowedIntervals = defaults.Schedule.AllowedIntervals
	}
	if len(c.Schedule.AllowedStaggers) == 0 {
		c.Schedule.AllowedStaggers = defaults.Schedule.AllowedStaggers
	}
	if c.Schedule.IntervalSeconds <= 0 {
		c.Schedule.IntervalSeconds = defaults.Schedule.IntervalSeconds
	}
	if c.Schedule.StaggerSeconds <= 0 {
		c.Schedule.StaggerSeconds = defaults.Schedule.StaggerSeconds
	}
	if !contains(c.Schedule.AllowedIntervals, c.Schedule.IntervalSeconds) {
		return fmt.Errorf("interval_seconds %d is not one of %v", c.Schedule.IntervalSeconds, c.Schedule.AllowedIntervals)
	}
	if !contains(c.Schedule.AllowedStaggers, c.Schedule.StaggerSeconds) {
		return fmt.Errorf("stagger_seconds %d is not one of %v", c.Schedule.StaggerSeconds, c.Schedule.AllowedStaggers)
	}

	if c.Probe.MinDelay < 0 || c.Probe.MaxDelay < 0 {
		return errors.New("probe delays must not be negative")
	}
	if c.Probe.MaxDelay < c.Probe.MinDelay {
		return fmt.Errorf("probe max_delay %s is below min_delay %s", c.Probe.MaxDelay, c.Probe.MinDelay)
	}
	if c.Probe.SuccessRatio < 0 || c.Probe.SuccessRatio > 1 {
		return fmt.Errorf("probe success_ratio %v must be within [0, 1]", c.Probe.SuccessRatio)
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt broker is required when mqtt is enabled")
		}
		if c.MQTT.Topic == "" {
			return errors.New("mqtt topic is required when mqtt is enabled")
		}
		if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
			return fmt.Errorf("mqtt qos %d must be 0, 1 or 2", c.MQTT.QOS)
		}
	}
	return nil
}

func contains(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
