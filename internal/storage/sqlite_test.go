//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "skedge/pkg/logx"
)

func TestSQLiteRecentRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skedge.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	at := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	for i, job := range []string{"a", "b", "a"} {
		r := RunRecord{ID: job + string(rune('0'+i)), Job: job, JobID: "id", Kind: RunRan, At: at, NextRun: at.Add(time.Minute)}
		if err := st.AppendRun(ctx, r); err != nil {
			t.Fatalf("AppendRun: %v", err)
		}
	}
	if err := st.AppendAudit(ctx, AuditEntry{Source: "runner", Action: "run_all"}); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}

	got, err := st.RecentRuns(ctx, "a", 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a2" {
		t.Fatalf("RecentRuns = %+v", got)
	}
	if !got[0].NextRun.Equal(at.Add(time.Minute)) || got[0].Error != "" {
		t.Fatalf("decoded record = %+v", got[0])
	}
}
