package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
  console: true
storage:
  driver: file
  path: ./data
runner:
  poll_interval: 2s
  timezone: UTC
jobs:
  - name: heartbeat
    every: 10
    unit: Seconds
    tags: [ops]
    action:
      type: log
      message: alive
  - name: report
    weekday: Wednesday
    at: "13:15"
    action:
      type: http
      url: http://127.0.0.1:9/report
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAMLNormalizes(t *testing.T) {
	m := NewConfigManager(writeConfig(t, "skedge.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatalf("Get() did not return the committed config")
	}
	if len(cfg.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(cfg.Jobs))
	}

	hb := cfg.Jobs[0]
	if hb.Every != 10 || hb.Unit != "seconds" {
		t.Fatalf("heartbeat every/unit = %d/%q, want 10/seconds", hb.Every, hb.Unit)
	}
	rep := cfg.Jobs[1]
	if rep.Every != 1 {
		t.Fatalf("report every = %d, want default 1", rep.Every)
	}
	if rep.Weekday != "wednesday" {
		t.Fatalf("report weekday = %q, want wednesday", rep.Weekday)
	}
	if rep.Action.Method != "GET" {
		t.Fatalf("report method = %q, want GET", rep.Action.Method)
	}
	if cfg.Runner.HistoryLimit != DefaultHistoryLimit {
		t.Fatalf("history_limit = %d, want %d", cfg.Runner.HistoryLimit, DefaultHistoryLimit)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	m := NewConfigManager(writeConfig(t, "skedge.yaml", "runner:\n  poll: 1s\n"))
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("Parse err = %v, want unknown field", err)
	}
}

func TestParseRejectsTrailingJSON(t *testing.T) {
	m := NewConfigManager(writeConfig(t, "skedge.json", `{"jobs":[]} {"jobs":[]}`))
	if _, err := m.Parse(); err == nil {
		t.Fatalf("Parse accepted trailing data")
	}
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		data string
		want string
	}{
		{"skedge.yaml", `{"jobs":[]}`, formatYAML},
		{"skedge.YML", "jobs: []", formatYAML},
		{"skedge.json", "jobs: []", formatJSON},
		{"skedge.conf", "  {\"jobs\":[]}", formatJSON},
		{"skedge.conf", "jobs: []", formatYAML},
		{"skedge", "", formatYAML},
	}
	for _, tt := range tests {
		if got := detectFormat(tt.path, []byte(tt.data)); got != tt.want {
			t.Fatalf("detectFormat(%q, %q) = %q, want %q", tt.path, tt.data, got, tt.want)
		}
	}
}

func TestDecodeEmptyYAML(t *testing.T) {
	t.Parallel()

	cfg, err := decode("skedge.yaml", []byte("# nothing yet\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cfg.Jobs) != 0 {
		t.Fatalf("jobs = %d, want 0", len(cfg.Jobs))
	}
}

func TestDecodeYAMLTimestamp(t *testing.T) {
	t.Parallel()

	body := "jobs:\n  - name: a\n    until: !!timestamp 2030-01-02T03:04:05Z\n"
	cfg, err := decode("skedge.yaml", []byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := cfg.Jobs[0].Until; got != "2030-01-02T03:04:05Z" {
		t.Fatalf("until = %q, want RFC3339", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{Jobs: []JobConfig{{Name: "a", Every: 1, Unit: "minutes", Action: ActionConfig{Type: ActionLog}}}}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"ok", func(c *Config) {}, ""},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "redis"} }, "storage.driver"},
		{"bad poll", func(c *Config) { c.Runner.PollInterval = "soon" }, "runner.poll_interval"},
		{"bad timezone", func(c *Config) { c.Runner.Timezone = "Mars/Olympus" }, "runner.timezone"},
		{"missing name", func(c *Config) { c.Jobs[0].Name = "" }, "name is required"},
		{"bad unit", func(c *Config) { c.Jobs[0].Unit = "fortnights" }, "unknown unit"},
		{"bad weekday", func(c *Config) { c.Jobs[0].Weekday = "funday" }, "unknown weekday"},
		{"bad until", func(c *Config) { c.Jobs[0].Until = "tomorrow" }, "until"},
		{"bad action", func(c *Config) { c.Jobs[0].Action.Type = "exec" }, "unknown action type"},
		{"http without url", func(c *Config) { c.Jobs[0].Action.Type = ActionHTTP }, "requires url"},
		{"duplicate", func(c *Config) { c.Jobs = append(c.Jobs, c.Jobs[0]) }, "duplicate name"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base()
			tt.mutate(c)
			err := Validate(c)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestRunnerSettingsDefaults(t *testing.T) {
	var c Config
	rs, err := c.RunnerSettings()
	if err != nil {
		t.Fatalf("RunnerSettings: %v", err)
	}
	if rs.PollInterval != DefaultPollInterval {
		t.Fatalf("PollInterval = %v, want %v", rs.PollInterval, DefaultPollInterval)
	}
	if rs.Location != time.Local {
		t.Fatalf("Location = %v, want Local", rs.Location)
	}
	if rs.HistoryLimit != DefaultHistoryLimit {
		t.Fatalf("HistoryLimit = %d, want %d", rs.HistoryLimit, DefaultHistoryLimit)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	if d, err := ParseDurationField("x", " 1m30s "); err != nil || d != 90*time.Second {
		t.Fatalf("ParseDurationField = %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", "90"); err != nil || d != 90*time.Second {
		t.Fatalf("bare seconds = %v, %v, want 1m30s", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatalf("negative duration accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", 3*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("ParseDurationOrDefault = %v, %v", d, err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	oldCfg := &Config{Jobs: []JobConfig{
		{Name: "a", Every: 1, Unit: "minutes"},
		{Name: "b", Every: 5, Unit: "seconds"},
	}}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Jobs: []JobConfig{
			{Name: "a", Every: 1, Unit: "minutes"},
			{Name: "b", Every: 6, Unit: "seconds"},
			{Name: "c", Every: 1, Unit: "days"},
		},
	}

	changed, attrs, jobs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "jobs,logging" {
		t.Fatalf("changed = %v, want [jobs logging]", changed)
	}
	if len(attrs) == 0 {
		t.Fatalf("attrs empty")
	}
	if strings.Join(jobs, ",") != "b,c" {
		t.Fatalf("jobs = %v, want [b c]", jobs)
	}

	if got := DiffJobs(newCfg.Jobs, oldCfg.Jobs[:1]); strings.Join(got, ",") != "b,c" {
		t.Fatalf("DiffJobs removal = %v, want [b c]", got)
	}
}

func TestReloadPublishesChanges(t *testing.T) {
	path := writeConfig(t, "skedge.yaml", sampleYAML)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx := context.Background()
	if ok, err := m.Reload(ctx); err != nil || ok {
		t.Fatalf("Reload unchanged = %v, %v; want false, nil", ok, err)
	}

	updated := strings.Replace(sampleYAML, "every: 10", "every: 20", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if ok, err := m.Reload(ctx); err != nil || !ok {
		t.Fatalf("Reload changed = %v, %v; want true, nil", ok, err)
	}
	select {
	case cfg := <-ch:
		if cfg.Jobs[0].Every != 20 {
			t.Fatalf("published every = %d, want 20", cfg.Jobs[0].Every)
		}
	default:
		t.Fatalf("no config published")
	}
}

func TestReloadValidatorRejects(t *testing.T) {
	path := writeConfig(t, "skedge.yaml", sampleYAML)
	m := NewConfigManager(path)
	sentinel := errors.New("nope")
	m.SetValidator(func(context.Context, *Config) error { return sentinel })

	ok, err := m.Reload(context.Background())
	if ok || !errors.Is(err, sentinel) {
		t.Fatalf("Reload = %v, %v; want false, %v", ok, err, sentinel)
	}
	if m.Get() != nil {
		t.Fatalf("rejected config was committed")
	}
}
