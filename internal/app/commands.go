package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"skedge/internal/config"
	"skedge/internal/runner"
	logx "skedge/pkg/logx"
)

// Check loads and validates the config at path, builds every job and writes
// the resulting schedule to w.
func Check(ctx context.Context, path string, w io.Writer) error {
	cfg, err := config.NewConfigManager(path).Load()
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	r, err := runner.New(cfg, runner.Options{})
	if err != nil {
		return err
	}
	st, err := r.Status(ctx)
	if err != nil {
		return err
	}
	return WriteStatus(w, st)
}

// WriteStatus renders st as a table ordered by next run.
func WriteStatus(w io.Writer, st runner.Status) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "now %s (%s), %d jobs\n", st.Now.Format(time.RFC3339), st.Location, len(st.Jobs))
	fmt.Fprintln(tw, "NAME\tSCHEDULE\tNEXT RUN\tUNTIL\tTAGS")
	for _, j := range st.Jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			j.Name, j.Desc, formatTime(j.NextRun), formatTime(j.Until), strings.Join(j.Tags, ","))
	}
	if !st.NextRun.IsZero() {
		fmt.Fprintf(tw, "idle %ds until %s\n", st.IdleSeconds, st.NextRun.Format(time.RFC3339))
	}
	return tw.Flush()
}

// History writes the newest n run records of job (all jobs when empty).
// n <= 0 uses runner.history_limit.
func History(ctx context.Context, path, job string, n int, w io.Writer) error {
	cfg, err := config.NewConfigManager(path).Load()
	if err != nil {
		return err
	}
	if n <= 0 {
		n = cfg.Runner.HistoryLimit
	}
	store, err := openStore(cfg, logx.Nop())
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("storage is disabled; set storage.driver to file or sqlite")
	}
	defer store.Close()

	runs, err := store.RecentRuns(ctx, job, n)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tJOB\tKIND\tTOOK\tCALLS\tNEXT RUN\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\t%d\t%s\t%s\n",
			r.At.Format(time.RFC3339), r.Job, r.Kind, r.TookMS, r.CallCount, formatTime(r.NextRun), r.Error)
	}
	return tw.Flush()
}

// RunAllOnce runs every job once without starting the daemon loop. Events
// raised by the pass are written to history when storage is enabled.
func (a *App) RunAllOnce(ctx context.Context) error {
	defer a.close()

	var drain func()
	if a.rec != nil {
		st, err := a.runner.Status(ctx)
		if err != nil {
			return err
		}
		events, unsub := a.bus.Subscribe(max(256, 4*len(st.Jobs)))
		defer unsub()
		drain = func() {
			for {
				select {
				case e := <-events:
					if err := a.rec.Record(ctx, e); err != nil {
						a.log.Warn("history write failed", logx.String("event", e.Type), logx.Err(err))
					}
				default:
					return
				}
			}
		}
	}

	err := a.runner.RunAll(ctx)
	if drain != nil {
		drain()
	}
	if d := a.bus.Dropped(); d > 0 {
		a.log.Warn("events dropped during run-all", logx.Int64("dropped", int64(d)))
	}
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
