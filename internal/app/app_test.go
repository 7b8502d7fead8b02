package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skedge/internal/config"
)

func writeConfig(t *testing.T, storage string) string {
	t.Helper()
	dir := t.TempDir()
	body := `
logging:
  level: error
  console: false
` + storage + `
runner:
  timezone: UTC
  seed: 7
jobs:
  - name: heartbeat
    every: 10
    unit: seconds
    tags: [ops]
    action: {type: log, message: alive}
  - name: nightly
    unit: day
    at: "03:30"
    action: {type: event, message: rotate}
`
	path := filepath.Join(dir, "skedge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func fileStorage(t *testing.T) string {
	return "storage:\n  driver: file\n  path: " + filepath.Join(t.TempDir(), "history") + "\n"
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sc      *config.StorageConfig
		enabled bool
		wantErr bool
	}{
		{name: "nil", sc: nil},
		{name: "none", sc: &config.StorageConfig{Driver: "none"}},
		{name: "file default path", sc: &config.StorageConfig{Driver: "file"}, enabled: true},
		{name: "sqlite needs path", sc: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "sqlite", sc: &config.StorageConfig{Driver: "SQLite", Path: "x.db", BusyTimeout: "2s"}, enabled: true},
		{name: "bad busy timeout", sc: &config.StorageConfig{Driver: "sqlite", Path: "x.db", BusyTimeout: "soon"}, wantErr: true},
		{name: "unknown driver", sc: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sc, enabled, err := mapStorageConfig(&config.Config{Storage: tt.sc})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if enabled != tt.enabled {
				t.Fatalf("enabled = %v, want %v", enabled, tt.enabled)
			}
			if tt.name == "file default path" && sc.Path == "" {
				t.Fatalf("file store has no default path")
			}
			if tt.name == "sqlite" && sc.BusyTimeout != 2*time.Second {
				t.Fatalf("busy timeout = %v, want 2s", sc.BusyTimeout)
			}
		})
	}
}

func TestCheckPrintsSchedule(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Check(context.Background(), writeConfig(t, ""), &buf); err != nil {
		t.Fatalf("Check: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"2 jobs", "heartbeat", "nightly", "ops"} {
		if !strings.Contains(out, want) {
			t.Fatalf("Check output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckRejectsBadJob(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	body := "jobs:\n  - name: broken\n    unit: minutes\n    at: \"25:00\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := Check(context.Background(), path, &bytes.Buffer{}); err == nil {
		t.Fatalf("Check accepted an invalid at string")
	}
}

func TestHistoryRequiresStorage(t *testing.T) {
	t.Parallel()

	err := History(context.Background(), writeConfig(t, ""), "", 0, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "storage is disabled") {
		t.Fatalf("History err = %v, want storage disabled", err)
	}
}

func TestRunAllOnceWritesHistory(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, fileStorage(t))
	a, err := NewApp(path)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if err := a.RunAllOnce(context.Background()); err != nil {
		t.Fatalf("RunAllOnce: %v", err)
	}

	var buf bytes.Buffer
	if err := History(context.Background(), path, "heartbeat", 0, &buf); err != nil {
		t.Fatalf("History: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "heartbeat") || !strings.Contains(out, "ran") {
		t.Fatalf("history missing heartbeat run:\n%s", out)
	}
	if strings.Contains(out, "nightly") {
		t.Fatalf("job filter ignored:\n%s", out)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	a, err := NewApp(writeConfig(t, fileStorage(t)))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopSignal); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatalf("Done not closed after Stop")
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err = %v, want nil", err)
	}
}
