package runner

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"skedge/internal/config"
	"skedge/internal/eventbus"
	logx "skedge/pkg/logx"
	"skedge/pkg/skedge"
)

const (
	minWait        = 50 * time.Millisecond
	reportInterval = 5 * time.Second
	reportBurst    = 3
)

type Options struct {
	// Clock drives both the scheduler and the loop's sleeps. Defaults to the wall clock.
	Clock clockwork.Clock
	Bus   eventbus.Bus
	Log   logx.Logger
	HTTP  *http.Client
	// Heartbeat is called after every scheduler pass from the loop goroutine.
	Heartbeat func(jobs int, next time.Time)
}

// Runner owns a scheduler and the job definitions it was built from.
type Runner struct {
	log       logx.Logger
	bus       eventbus.Bus
	clock     clockwork.Clock
	http      *http.Client
	heartbeat func(jobs int, next time.Time)

	settings config.RunnerSettings
	rng      skedge.Rand
	sched    *skedge.Scheduler
	jobs     map[string]config.JobConfig
	poll     cron.Schedule

	runCtx context.Context
	calls  chan func()

	loopMu sync.Mutex
	// loopDone is non-nil while Run is active and closed when it returns.
	loopDone chan struct{}

	limiter    *rate.Limiter
	suppressed int
}

// New builds every job of cfg. Any job that fails to build fails New.
func New(cfg *config.Config, opts Options) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	settings, err := cfg.RunnerSettings()
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log.IsZero() {
		opts.Log = logx.Nop()
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{}
	}

	r := &Runner{
		log:       opts.Log.With(logx.String("component", "runner")),
		bus:       opts.Bus,
		clock:     opts.Clock,
		http:      opts.HTTP,
		heartbeat: opts.Heartbeat,
		jobs:      map[string]config.JobConfig{},
		runCtx:    context.Background(),
		calls:     make(chan func()),
		limiter:   rate.NewLimiter(rate.Every(reportInterval), reportBurst),
	}
	r.applySettings(settings)
	r.sched = r.newScheduler()

	var errs []error
	for _, jc := range cfg.Jobs {
		if err := r.addJob(jc); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) applySettings(s config.RunnerSettings) {
	r.settings = s
	r.poll = cron.Every(s.PollInterval)
	if s.Seed != 0 {
		r.rng = rand.New(rand.NewSource(s.Seed))
	} else {
		r.rng = nil
	}
}

func (r *Runner) newScheduler() *skedge.Scheduler {
	opts := []skedge.Option{
		skedge.WithClock(skedge.InLocation(r.clock, r.settings.Location)),
		skedge.WithLogger(r.log),
		skedge.WithObserver(r.observe),
	}
	if r.rng != nil {
		opts = append(opts, skedge.WithRand(r.rng))
	}
	return skedge.New(opts...)
}

func (r *Runner) addJob(jc config.JobConfig) error {
	work, err := r.action(jc)
	if err != nil {
		return err
	}
	if _, err := Build(r.sched, jc, work); err != nil {
		return err
	}
	r.jobs[jc.Name] = jc
	return nil
}

// Run drives the scheduler until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.loopMu.Lock()
	if r.loopDone != nil {
		r.loopMu.Unlock()
		return errors.New("runner already running")
	}
	loopDone := make(chan struct{})
	r.loopDone = loopDone
	r.loopMu.Unlock()
	defer func() {
		r.runCtx = context.Background()
		r.loopMu.Lock()
		r.loopDone = nil
		r.loopMu.Unlock()
		close(loopDone)
	}()
	r.runCtx = ctx

	r.log.Info("runner started",
		logx.Int("jobs", r.sched.Len()),
		logx.Duration("poll", r.settings.PollInterval),
		logx.String("tz", r.settings.Location.String()),
	)
	for {
		r.runPending()
		if r.heartbeat != nil {
			next, _ := r.sched.NextRun()
			r.heartbeat(r.sched.Len(), next)
		}

		timer := r.clock.NewTimer(r.nextWait())
		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Info("runner stopped")
			return nil
		case <-timer.Chan():
		case fn := <-r.calls:
			timer.Stop()
			fn()
		}
	}
}

// nextWait is the time until the earlier of the next poll tick and the
// next job run, never below minWait.
func (r *Runner) nextWait() time.Duration {
	now := r.clock.Now()
	wake := r.poll.Next(now)
	if next, ok := r.sched.NextRun(); ok && next.Before(wake) {
		wake = next
	}
	return max(wake.Sub(now), minWait)
}

// exec runs fn on the loop goroutine, or directly when Run is not active
// or returns before taking the call.
func (r *Runner) exec(ctx context.Context, fn func()) error {
	r.loopMu.Lock()
	loopDone := r.loopDone
	r.loopMu.Unlock()
	if loopDone == nil {
		fn()
		return nil
	}
	done := make(chan struct{})
	select {
	case r.calls <- func() { fn(); close(done) }:
	case <-loopDone:
		return r.exec(ctx, fn)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunAll runs every job once regardless of schedule, waiting the configured
// run_all_delay between jobs.
func (r *Runner) RunAll(ctx context.Context) error {
	var runErr error
	err := r.exec(ctx, func() {
		r.publish(eventbus.TypeRunAll, map[string]any{"jobs": r.sched.Len()})
		prev := r.runCtx
		r.runCtx = ctx
		runErr = r.sched.RunAll(ctx, r.settings.RunAllDelay)
		r.runCtx = prev
	})
	return errors.Join(err, runErr)
}

// JobStatus describes one scheduled job.
type JobStatus struct {
	Name      string
	Desc      string
	Tags      []string
	NextRun   time.Time
	LastRun   time.Time
	Until     time.Time
	CallCount int
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Now         time.Time
	Location    string
	Jobs        []JobStatus
	NextRun     time.Time
	IdleSeconds int64
}

func (r *Runner) Status(ctx context.Context) (Status, error) {
	var st Status
	err := r.exec(ctx, func() { st = r.snapshot() })
	return st, err
}

func (r *Runner) snapshot() Status {
	st := Status{Now: r.sched.Now(), Location: r.settings.Location.String()}
	for _, j := range r.sched.Jobs("") {
		st.Jobs = append(st.Jobs, JobStatus{
			Name:      j.Name(),
			Desc:      j.String(),
			Tags:      j.Tags(),
			NextRun:   j.NextRun(),
			LastRun:   j.LastRun(),
			Until:     j.CancelAfter(),
			CallCount: j.CallCount(),
		})
	}
	sort.SliceStable(st.Jobs, func(a, b int) bool { return st.Jobs[a].NextRun.Before(st.Jobs[b].NextRun) })
	st.NextRun, _ = r.sched.NextRun()
	st.IdleSeconds, _ = r.sched.IdleSeconds()
	return st
}
