package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "skedge/pkg/logx"
	"skedge/pkg/skedge"
)

const (
	DefaultPollInterval = time.Second
	DefaultHistoryLimit = 20
	DefaultHTTPTimeout  = 10 * time.Second
)

// RunnerSettings is RunnerConfig with durations parsed and defaults applied.
type RunnerSettings struct {
	PollInterval time.Duration
	RunAllDelay  time.Duration
	Location     *time.Location
	Seed         int64
	HistoryLimit int
}

// Normalize fills defaults in place. It never fails; Validate reports bad values.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Alert.RatePerSec <= 0 {
		cfg.Logging.Alert.RatePerSec = 1
	}
	if cfg.Runner.HistoryLimit <= 0 {
		cfg.Runner.HistoryLimit = DefaultHistoryLimit
	}
	for i := range cfg.Jobs {
		j := &cfg.Jobs[i]
		j.Name = strings.TrimSpace(j.Name)
		if j.Every == 0 {
			j.Every = 1
		}
		j.Unit = strings.ToLower(strings.TrimSpace(j.Unit))
		j.Weekday = strings.ToLower(strings.TrimSpace(j.Weekday))
		j.Action.Type = strings.ToLower(strings.TrimSpace(j.Action.Type))
		if j.Action.Type == "" {
			j.Action.Type = ActionLog
		}
		if j.Action.Type == ActionHTTP && strings.TrimSpace(j.Action.Method) == "" {
			j.Action.Method = "GET"
		}
		j.Action.Method = strings.ToUpper(strings.TrimSpace(j.Action.Method))
	}
}

// RunnerSettings resolves the runner section.
func (c *Config) RunnerSettings() (RunnerSettings, error) {
	poll, err := ParseDurationOrDefault("runner.poll_interval", c.Runner.PollInterval, DefaultPollInterval)
	if err != nil {
		return RunnerSettings{}, err
	}
	delay, err := ParseDurationField("runner.run_all_delay", c.Runner.RunAllDelay)
	if err != nil {
		return RunnerSettings{}, err
	}
	loc, err := LoadLocation(c.Runner.Timezone)
	if err != nil {
		return RunnerSettings{}, fmt.Errorf("runner.timezone: %w", err)
	}
	limit := c.Runner.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return RunnerSettings{
		PollInterval: poll,
		RunAllDelay:  delay,
		Location:     loc,
		Seed:         c.Runner.Seed,
		HistoryLimit: limit,
	}, nil
}

// LoadLocation maps "" and "Local" to time.Local.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// ParseWeekday accepts full English day names, case-insensitive.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == s {
			return d, true
		}
	}
	return 0, false
}

// Validate checks the config without building any job. Builder-level rules
// (at-string shapes, interval bounds) are checked when the runner builds jobs.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if !logx.ValidLevel(cfg.Logging.Alert.MinLevel) {
		errs = append(errs, fmt.Errorf("logging.alert.min_level: unknown level %q", cfg.Logging.Alert.MinLevel))
	}
	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := cfg.RunnerSettings(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]struct{}, len(cfg.Jobs))
	for i, j := range cfg.Jobs {
		if err := validateJob(j); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[j.Name]; dup {
			errs = append(errs, fmt.Errorf("jobs[%d]: duplicate name %q", i, j.Name))
		}
		seen[j.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

func validateJob(j JobConfig) error {
	if strings.TrimSpace(j.Name) == "" {
		return errors.New("name is required")
	}
	if j.Weekday != "" {
		if _, ok := ParseWeekday(j.Weekday); !ok {
			return fmt.Errorf("%s: unknown weekday %q", j.Name, j.Weekday)
		}
	} else if _, ok := skedge.ParseUnit(j.Unit); !ok {
		return fmt.Errorf("%s: unknown unit %q", j.Name, j.Unit)
	}
	if j.Until != "" {
		if _, err := time.Parse(time.RFC3339, j.Until); err != nil {
			return fmt.Errorf("%s: until: %w", j.Name, err)
		}
	}
	switch j.Action.Type {
	case ActionLog, ActionEvent:
	case ActionHTTP:
		if strings.TrimSpace(j.Action.URL) == "" {
			return fmt.Errorf("%s: http action requires url", j.Name)
		}
	default:
		return fmt.Errorf("%s: unknown action type %q", j.Name, j.Action.Type)
	}
	if _, err := ParseDurationField(j.Name+".action.timeout", j.Action.Timeout); err != nil {
		return err
	}
	return nil
}
