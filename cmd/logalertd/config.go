// Package main provides the logalertd daemon CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/logalert/internal/alerting"
)

// defaultConfigPaths are tried in order when no --config flag is given.
var defaultConfigPaths = []string{
	"logalert.yaml",
	"/etc/logalert/config.yaml",
}

const (
	defaultHeartbeatInterval = 10 * time.Second
	defaultCooldown          = time.Minute
)

// Config is the daemon configuration.
type Config struct {
	// Source selects where log lines come from.
	Source SourceConfig `yaml:"source"`

	// HeartbeatInterval is the heartbeat check period in seconds
	// (default: 10).
	HeartbeatInterval int `yaml:"heartbeat_interval"`
	// Cooldown is the per-condition suppression window in seconds
	// (default: 60; 0 disables suppression).
	Cooldown *int `yaml:"cooldown"`

	// SlackWebhookURL enables the Slack channel. Empty means alerts go
	// to the process log only.
	SlackWebhookURL string `yaml:"slack_webhook_url"`

	// StatusAddr is the listen address of the status/metrics server.
	// Empty disables it.
	StatusAddr string `yaml:"status_addr"`
	// HistoryPath is the SQLite alert history file. Empty disables
	// history.
	HistoryPath string `yaml:"history_path"`

	// RateLimit is the global outbound notification valve.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Alerts and Heartbeats are the inline rule lists.
	Alerts     []*alerting.StatelessRule `yaml:"alerts"`
	Heartbeats []*alerting.HeartbeatRule `yaml:"heartbeats"`
	// RulesFile optionally loads rules from a separate YAML file
	// instead of the inline lists.
	RulesFile string `yaml:"rules_file"`
}

// SourceConfig selects and configures the log source.
type SourceConfig struct {
	// Type is "journal" (default) or "file".
	Type string `yaml:"type"`
	// Unit filters the journal to one systemd unit.
	Unit string `yaml:"unit"`
	// Paths are the files to tail for the file source.
	Paths []string `yaml:"paths"`
	// FromStart reads existing file content instead of tailing from
	// the end.
	FromStart bool `yaml:"from_start"`
}

// RateLimitConfig configures the global notification rate limit.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
	Disabled  bool    `yaml:"disabled"`
}

// LoadConfig loads configuration from a YAML file. An empty path tries
// the default locations.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		for _, p := range defaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			return nil, fmt.Errorf("no config file found (tried %v)", defaultConfigPaths)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Source.Type == "" {
		c.Source.Type = "journal"
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = int(defaultHeartbeatInterval / time.Second)
	}
	if c.Cooldown == nil {
		v := int(defaultCooldown / time.Second)
		c.Cooldown = &v
	}
}

// Validate checks the configuration for errors. Rule patterns are
// compiled here so an invalid rule never reaches the engine.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case "journal":
		// Unit is optional; empty follows all logs.
	case "file":
		if len(c.Source.Paths) == 0 {
			return fmt.Errorf("source.paths is required for the file source")
		}
	default:
		return fmt.Errorf("invalid source.type %q (want journal or file)", c.Source.Type)
	}

	if *c.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}

	if c.RulesFile != "" && (len(c.Alerts) > 0 || len(c.Heartbeats) > 0) {
		return fmt.Errorf("rules_file and inline rules are mutually exclusive")
	}

	if c.RulesFile == "" {
		rs := &alerting.RuleSet{Alerts: c.Alerts, Heartbeats: c.Heartbeats}
		if err := rs.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// RuleSet returns the validated rule set, loading the external rules
// file when configured.
func (c *Config) RuleSet() (*alerting.RuleSet, error) {
	if c.RulesFile != "" {
		return alerting.LoadRulesFromFile(c.RulesFile)
	}

	rs := &alerting.RuleSet{Alerts: c.Alerts, Heartbeats: c.Heartbeats}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// CheckInterval returns the heartbeat check period as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.HeartbeatInterval) * time.Second
}

// CooldownDuration returns the suppression window as a duration.
func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(*c.Cooldown) * time.Second
}
