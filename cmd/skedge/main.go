package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skedge/internal/app"
)

func main() {
	var (
		cfgPath string
		check   bool
		history int
		job     string
		runAll  bool
	)
	flag.StringVar(&cfgPath, "config", "./skedge.yaml", "path to config (yaml or json)")
	flag.BoolVar(&check, "check", false, "validate the config, print the schedule and exit")
	flag.IntVar(&history, "history", -1, "print the newest N run records and exit (0 = runner.history_limit)")
	flag.StringVar(&job, "job", "", "limit -history to one job")
	flag.BoolVar(&runAll, "run-all", false, "run every job once and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case check:
		exitOn(app.Check(ctx, cfgPath, os.Stdout))
		return
	case history >= 0:
		exitOn(app.History(ctx, cfgPath, job, history, os.Stdout))
		return
	}

	a, err := app.NewApp(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if runAll {
		exitOn(a.RunAllOnce(ctx))
		return
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if err := a.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		stopCancel()
		os.Exit(1)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
