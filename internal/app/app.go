package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"skedge/internal/config"
	"skedge/internal/eventbus"
	"skedge/internal/runner"
	"skedge/internal/storage"
	"skedge/internal/supervisor"
	logx "skedge/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	runner *runner.Runner
	rec    *runner.Recorder
	sd     *sdNotifier
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	bus := eventbus.New()

	// Alerts go through the bus so the history recorder can persist them.
	logSvc, log := logx.New(cfg.Logging.Logx(), busAlertSender(bus))
	log = log.With(logx.String("comp", "app"))

	store, err := openStore(cfg, log)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	sd := newSDNotifier(log.With(logx.String("comp", "systemd")))
	r, err := runner.New(cfg, runner.Options{
		Bus:       bus,
		Log:       log,
		Heartbeat: sd.Heartbeat,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		logSvc.Close()
		return nil, err
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		runner:  r,
		sd:      sd,
	}
	if store != nil {
		a.rec = runner.NewRecorder(store, bus, log)
	}
	return a, nil
}

func busAlertSender(bus eventbus.Bus) logx.AlertSender {
	return logx.AlertFunc(func(_ context.Context, a logx.Alert) error {
		bus.Publish(eventbus.Event{Type: eventbus.TypeAlert, Time: time.Now(), Data: a})
		return nil
	})
}

func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	return st, nil
}

// Runner exposes the job runner for one-shot commands.
func (a *App) Runner() *runner.Runner { return a.runner }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// validate rejects a reloaded config before it is committed.
func (a *App) validate(_ context.Context, cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return runner.ValidateJobs(cfg)
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(a.validate)

	if a.rec != nil {
		a.sup.GoRestart("history", a.rec.Run, supervisor.WithRestartBackoff(500*time.Millisecond, 30*time.Second))
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	a.sup.Go("runner", a.runner.Run)

	a.sd.Ready()
	a.log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, jobsChanged := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)
	if len(jobsChanged) > 0 {
		a.log.Debug("job changes detected", logx.Strings("jobs", jobsChanged))
	}

	if slices.Contains(sections, "storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if slices.Contains(sections, "logging") {
		a.logs.Apply(newCfg.Logging.Logx())
	}
	if err := a.runner.Apply(ctx, newCfg); err != nil {
		a.log.Warn("runner reload incomplete", logx.Err(err))
	}

	a.bus.Publish(eventbus.Event{
		Type: eventbus.TypeConfigReloaded,
		Time: time.Now(),
		Data: map[string]any{"sections": sections, "jobs": jobsChanged},
	})
	a.log.Info("config reloaded", fields...)
}

// Status returns the live scheduler view.
func (a *App) Status(ctx context.Context) (runner.Status, error) { return a.runner.Status(ctx) }

// RunAll runs every job once on the live runner.
func (a *App) RunAll(ctx context.Context) error { return a.runner.RunAll(ctx) }

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.close()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	a.step(ctx, "supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	if err := a.sup.Err(); err != nil {
		a.log.Warn("stopped with error", logx.Err(err))
	} else {
		a.log.Info("stopped")
	}
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// close releases resources of an app that was never started.
func (a *App) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		a.logs.Close()
	}
}

// step runs a shutdown step with an upper bound so one component can't stall
// the whole stop. The caller's deadline is never extended.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < limit {
			limit = max(rem, 0)
		}
	}
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			err := <-done
			took := time.Since(start)
			if err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
			} else {
				a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
			}
		}()
	}
}
