package skedge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	logx "skedge/pkg/logx"
)

// Rand is the random source behind To. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// EventKind identifies what happened to a job.
type EventKind int

const (
	// EventRan is emitted after the work was invoked. Err carries its error.
	EventRan EventKind = iota + 1
	// EventCancelled is emitted when a job passed its deadline and was removed.
	EventCancelled
	// EventCleared is emitted for every job removed by Clear.
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventRan:
		return "ran"
	case EventCancelled:
		return "cancelled"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event describes a job lifecycle change. Observers are called synchronously
// from the goroutine driving the Scheduler.
type Event struct {
	Kind EventKind
	Job  *Job
	At   time.Time
	Took time.Duration
	Err  error
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithRand(r Rand) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.rng = r
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithObserver installs fn as the receiver of lifecycle events.
func WithObserver(fn func(Event)) Option {
	return func(s *Scheduler) { s.observe = fn }
}

// Scheduler owns a set of jobs and runs the due ones on RunPending.
type Scheduler struct {
	clock   Clock
	rng     Rand
	log     logx.Logger
	observe func(Event)

	jobs []*Job
}

var seedSeq uint64

// New returns an empty scheduler on the wall clock.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, o := range opts {
		o(s)
	}
	if s.clock == nil {
		s.clock = RealClock()
	}
	if s.rng == nil {
		seed := time.Now().UnixNano() ^ int64(atomic.AddUint64(&seedSeq, 1))
		s.rng = rand.New(rand.NewSource(seed))
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

// Every starts a job measured on the scheduler's clock.
func (s *Scheduler) Every(interval int) *Job { return newJob(interval, s.clock) }

// EverySingle is Every(1).
func (s *Scheduler) EverySingle() *Job { return s.Every(1) }

// Now returns the scheduler clock's current time.
func (s *Scheduler) Now() time.Time { return s.clock.Now() }

func (s *Scheduler) add(j *Job) {
	j.sched = s
	s.jobs = append(s.jobs, j)
	s.log.Debug("job added", jobFields(j)...)
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int { return len(s.jobs) }

// RunPending runs every job that is due. Missed runs are not replayed.
//
// The first reschedule error stops the pass and is returned; jobs already
// handled keep their new state and jobs not yet reached wait for the next call.
func (s *Scheduler) RunPending() error {
	s.sortJobs()
	now := s.clock.Now()

	var (
		remove []int
		runErr error
	)
	for i, j := range s.jobs {
		if !j.shouldRun(now) {
			continue
		}
		keep, err := s.execute(j)
		if err != nil {
			runErr = fmt.Errorf("%s: %w", j, err)
			break
		}
		if !keep {
			remove = append(remove, i)
		}
	}
	s.removeAt(remove)
	return runErr
}

// RunAll runs every job regardless of its schedule, waiting delay between jobs.
// The delay is measured on the scheduler's clock when it can create timers
// (any clockwork.Clock), otherwise on the wall clock.
// Errors are logged and joined; they do not stop the pass.
func (s *Scheduler) RunAll(ctx context.Context, delay time.Duration) error {
	s.log.Debug("running all jobs", logx.Int("jobs", len(s.jobs)), logx.Duration("delay", delay))

	var (
		remove []int
		errs   []error
	)
	for i, j := range s.jobs {
		if i > 0 && delay > 0 {
			if err := sleep(ctx, s.clock, delay); err != nil {
				s.removeAt(remove)
				return errors.Join(append(errs, err)...)
			}
		}
		keep, err := s.execute(j)
		if err != nil {
			s.log.Error("job failed to reschedule", append(jobFields(j), logx.Err(err))...)
			errs = append(errs, fmt.Errorf("%s: %w", j, err))
			continue
		}
		if !keep {
			remove = append(remove, i)
		}
	}
	s.removeAt(remove)
	return errors.Join(errs...)
}

func (s *Scheduler) execute(j *Job) (bool, error) {
	if s.log.Enabled(logx.LevelDebug) {
		s.log.Debug("running job", jobFields(j)...)
	}
	res, err := j.execute()
	if res.ran {
		if res.callErr != nil {
			s.log.Warn("job returned error", append(jobFields(j), logx.Err(res.callErr))...)
		}
		s.emit(Event{Kind: EventRan, Job: j, At: res.at, Took: res.took, Err: res.callErr})
	}
	if err == nil && !res.keep {
		s.log.Debug("cancelling job", jobFields(j)...)
		s.emit(Event{Kind: EventCancelled, Job: j, At: s.clock.Now()})
	}
	return res.keep, err
}

// Jobs returns the scheduled jobs, or only those tagged tag when tag is not empty.
func (s *Scheduler) Jobs(tag string) []*Job {
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if tag == "" || j.HasTag(tag) {
			out = append(out, j)
		}
	}
	return out
}

// Clear removes every job, or only those tagged tag when tag is not empty.
// It returns the number of jobs removed.
func (s *Scheduler) Clear(tag string) int {
	if tag == "" {
		s.log.Debug("deleting all jobs", logx.Int("jobs", len(s.jobs)))
	} else {
		s.log.Debug("deleting jobs with tag", logx.String("tag", tag))
	}

	now := s.clock.Now()
	kept := s.jobs[:0]
	removed := 0
	for _, j := range s.jobs {
		if tag != "" && !j.HasTag(tag) {
			kept = append(kept, j)
			continue
		}
		removed++
		j.sched = nil
		s.emit(Event{Kind: EventCleared, Job: j, At: now})
	}
	for i := len(kept); i < len(s.jobs); i++ {
		s.jobs[i] = nil
	}
	s.jobs = kept
	return removed
}

// NextRun returns the earliest scheduled run.
func (s *Scheduler) NextRun() (time.Time, bool) {
	var next time.Time
	for _, j := range s.jobs {
		if next.IsZero() || j.nextRun.Before(next) {
			next = j.nextRun
		}
	}
	return next, !next.IsZero()
}

// IdleSeconds returns the whole seconds until NextRun, truncated toward zero.
// The value is negative when a job is overdue.
func (s *Scheduler) IdleSeconds() (int64, bool) {
	next, ok := s.NextRun()
	if !ok {
		return 0, false
	}
	return int64(next.Sub(s.clock.Now()) / time.Second), true
}

func (s *Scheduler) sortJobs() {
	sort.SliceStable(s.jobs, func(a, b int) bool {
		return s.jobs[a].nextRun.Before(s.jobs[b].nextRun)
	})
}

// removeAt removes the jobs at the given ascending indices.
func (s *Scheduler) removeAt(idx []int) {
	for k := len(idx) - 1; k >= 0; k-- {
		i := idx[k]
		s.jobs[i].sched = nil
		copy(s.jobs[i:], s.jobs[i+1:])
		s.jobs[len(s.jobs)-1] = nil
		s.jobs = s.jobs[:len(s.jobs)-1]
	}
}

func (s *Scheduler) emit(e Event) {
	if s.observe != nil {
		s.observe(e)
	}
}

func jobFields(j *Job) []logx.Field {
	return []logx.Field{
		logx.String("job", j.String()),
		logx.String("id", j.id.String()),
	}
}
