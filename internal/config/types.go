package config

import (
	logx "skedge/pkg/logx"
)

type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Runner  RunnerConfig   `json:"runner"`
	Jobs    []JobConfig    `json:"jobs"`
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Alert   LoggingAlert `json:"alert"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlert forwards warn/error records to the event bus as alert events.
type LoggingAlert struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// Logx converts the section into the logger service config.
func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		Alert: logx.AlertConfig{
			Enabled:    c.Alert.Enabled,
			MinLevel:   c.Alert.MinLevel,
			RatePerSec: c.Alert.RatePerSec,
		},
	}
}

// StorageConfig controls the optional run-history store.
//
// Example:
//
//	storage: { driver: file, path: ./data }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// RunnerConfig controls the host loop around the scheduler.
//
// Defaults (when fields are omitted/zero):
//   - poll_interval: "1s"
//   - run_all_delay: "0s"
//   - timezone: "Local"
//   - seed: 0 (time based)
//   - history_limit: 20
type RunnerConfig struct {
	PollInterval string `json:"poll_interval,omitempty"`
	RunAllDelay  string `json:"run_all_delay,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	Seed         int64  `json:"seed,omitempty"`
	HistoryLimit int    `json:"history_limit,omitempty"`
}

// JobConfig declares one scheduled job.
//
// every/to/unit/weekday/at/until map onto the builder calls of the same name.
// An omitted every means 1.
type JobConfig struct {
	Name    string       `json:"name"`
	Every   int          `json:"every,omitempty"`
	To      int          `json:"to,omitempty"`
	Unit    string       `json:"unit,omitempty"`
	Weekday string       `json:"weekday,omitempty"`
	At      string       `json:"at,omitempty"`
	Until   string       `json:"until,omitempty"` // RFC3339
	Tags    []string     `json:"tags,omitempty"`
	Action  ActionConfig `json:"action"`
}

const (
	ActionLog   = "log"
	ActionEvent = "event"
	ActionHTTP  = "http"
)

// ActionConfig selects what a job does when it fires.
//
//   - log: writes message at info level
//   - event: publishes message on the event bus
//   - http: issues method (default GET) against url, failing on status >= 400
type ActionConfig struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
	Method  string `json:"method,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}
