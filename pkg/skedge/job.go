package skedge

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	dailyRe  = regexp.MustCompile(`^([0-2]\d:)?[0-5]\d:[0-5]\d$`)
	hourlyRe = regexp.MustCompile(`^([0-5]\d)?:[0-5]\d$`)
	minuteRe = regexp.MustCompile(`^:[0-5]\d$`)
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// after reports whether t is later in the day than now's time of day.
func (t TimeOfDay) after(now time.Time) bool {
	h, m, s := now.Clock()
	at := time.Duration(t.Hour*3600+t.Minute*60+t.Second) * time.Second
	cur := time.Duration(h*3600+m*60+s)*time.Second + time.Duration(now.Nanosecond())
	return at > cur
}

// Job is one periodically recurring unit of work.
//
// Builder methods record the first validation error and turn every later
// call into a no-op; Err, Run and Do report it.
type Job struct {
	id       uuid.UUID
	interval int
	latest   int
	unit     Unit
	atTime   *TimeOfDay
	startDay *time.Weekday

	cancelAfter time.Time
	lastRun     time.Time
	nextRun     time.Time
	period      time.Duration

	tags      map[string]struct{}
	work      Callable
	callCount int

	clock Clock
	rng   Rand
	sched *Scheduler
	err   error
}

// Every starts a job that runs every interval units, measured on the wall clock.
func Every(interval int) *Job { return newJob(interval, RealClock()) }

// EverySingle is Every(1).
func EverySingle() *Job { return Every(1) }

func newJob(interval int, clock Clock) *Job {
	j := &Job{
		id:       uuid.New(),
		interval: interval,
		tags:     map[string]struct{}{},
		clock:    clock,
	}
	if interval < 1 {
		j.err = fmt.Errorf("%w: interval must be at least 1, got %d", ErrInvalidInterval, interval)
	}
	return j
}

// Err returns the first error recorded by a builder method.
func (j *Job) Err() error { return j.err }

func (j *Job) step(fn func() error) *Job {
	if j.err == nil {
		j.err = fn()
	}
	return j
}

func (j *Job) setUnit(u Unit) error {
	if j.unit != 0 {
		return unitCollisionError(u, j.unit)
	}
	if err := checkPeriod(u, j.interval, j.latest); err != nil {
		return err
	}
	j.unit = u
	return nil
}

// checkPeriod rejects intervals whose period overflows a time.Duration. With a
// randomized bound the longest drawable interval is latest-1.
func checkPeriod(u Unit, interval, latest int) error {
	longest := max(interval, latest-1)
	if !u.fits(longest) {
		return periodOverflowError(longest, u)
	}
	return nil
}

func (j *Job) setSingleUnit(u Unit) error {
	if j.interval != 1 {
		return intervalMismatchError(u)
	}
	return j.setUnit(u)
}

func (j *Job) plural(u Unit) *Job { return j.step(func() error { return j.setUnit(u) }) }
func (j *Job) single(u Unit) *Job { return j.step(func() error { return j.setSingleUnit(u) }) }

func (j *Job) Second() *Job  { return j.single(Second) }
func (j *Job) Seconds() *Job { return j.plural(Second) }
func (j *Job) Minute() *Job  { return j.single(Minute) }
func (j *Job) Minutes() *Job { return j.plural(Minute) }
func (j *Job) Hour() *Job    { return j.single(Hour) }
func (j *Job) Hours() *Job   { return j.plural(Hour) }
func (j *Job) Day() *Job     { return j.single(Day) }
func (j *Job) Days() *Job    { return j.plural(Day) }
func (j *Job) Week() *Job    { return j.single(Week) }
func (j *Job) Weeks() *Job   { return j.plural(Week) }
func (j *Job) Month() *Job   { return j.single(Month) }
func (j *Job) Months() *Job  { return j.plural(Month) }
func (j *Job) Year() *Job    { return j.single(Year) }
func (j *Job) Years() *Job   { return j.plural(Year) }

// Units sets u as if the matching plural setter had been called.
func (j *Job) Units(u Unit) *Job {
	if u < Second || u > Year {
		return j.step(func() error { return fmt.Errorf("%w: unknown unit %d", ErrMissingUnit, int(u)) })
	}
	return j.plural(u)
}

func (j *Job) setWeekday(d time.Weekday) error {
	if j.interval != 1 {
		return weekdayIntervalError(d)
	}
	if j.startDay != nil {
		return weekdayCollisionError(d, *j.startDay)
	}
	if err := j.setUnit(Week); err != nil {
		return err
	}
	j.startDay = &d
	return nil
}

// Weekday anchors a weekly job to d.
func (j *Job) Weekday(d time.Weekday) *Job {
	return j.step(func() error { return j.setWeekday(d) })
}

func (j *Job) Monday() *Job    { return j.Weekday(time.Monday) }
func (j *Job) Tuesday() *Job   { return j.Weekday(time.Tuesday) }
func (j *Job) Wednesday() *Job { return j.Weekday(time.Wednesday) }
func (j *Job) Thursday() *Job  { return j.Weekday(time.Thursday) }
func (j *Job) Friday() *Job    { return j.Weekday(time.Friday) }
func (j *Job) Saturday() *Job  { return j.Weekday(time.Saturday) }
func (j *Job) Sunday() *Job    { return j.Weekday(time.Sunday) }

// To makes every reschedule draw the interval uniformly from [interval, latest).
func (j *Job) To(latest int) *Job {
	return j.step(func() error {
		if latest <= j.interval {
			return invalidIntervalError(j.interval, latest)
		}
		if j.unit != 0 {
			if err := checkPeriod(j.unit, j.interval, latest); err != nil {
				return err
			}
		}
		j.latest = latest
		return nil
	})
}

// At pins the job to a time of day. Accepted shapes depend on the unit:
//
//   - days or a weekday: "HH:MM:SS" or "HH:MM"
//   - hours: "MM:SS" or ":SS"
//   - minutes: ":SS"
func (j *Job) At(s string) *Job {
	return j.step(func() error { return j.setAt(s) })
}

func (j *Job) setAt(s string) error {
	switch j.unit {
	case Week, Day, Hour, Minute:
	default:
		return ErrInvalidUnit
	}

	daily := j.unit == Day || j.unit == Week || j.startDay != nil
	switch {
	case daily && !dailyRe.MatchString(s):
		return fmt.Errorf("%w: %q", ErrInvalidDailyAtStr, s)
	case j.unit == Hour && !hourlyRe.MatchString(s):
		return fmt.Errorf("%w: %q", ErrInvalidHourlyAtStr, s)
	case j.unit == Minute && !minuteRe.MatchString(s):
		return fmt.Errorf("%w: %q", ErrInvalidMinuteAtStr, s)
	}

	// The patterns above guarantee every part is numeric or empty.
	parts := strings.Split(s, ":")
	var hour, minute, second int
	switch {
	case len(parts) == 3:
		hour, minute, second = atoi(parts[0]), atoi(parts[1]), atoi(parts[2])
	case len(parts) == 2 && j.unit == Minute:
		second = atoi(parts[1])
	case len(parts) == 2 && j.unit == Hour:
		minute, second = atoi(parts[0]), atoi(parts[1])
	default:
		hour, minute = atoi(parts[0]), atoi(parts[1])
	}

	switch {
	case daily:
		if hour > 23 {
			return invalidHourError(hour)
		}
	case j.unit == Hour:
		hour = 0
	case j.unit == Minute:
		hour, minute = 0, 0
	}

	j.atTime = &TimeOfDay{Hour: hour, Minute: minute, Second: second}
	return nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Until cancels the job once the clock passes deadline. The deadline may not
// be earlier than the last run, or than now for a job that never ran.
func (j *Job) Until(deadline time.Time) *Job {
	return j.step(func() error {
		since := j.lastRun
		if since.IsZero() {
			since = j.now()
		}
		if deadline.Before(since) {
			return untilError(deadline, since)
		}
		j.cancelAfter = deadline
		return nil
	})
}

// Tag labels the job. Repeated tags are ignored.
func (j *Job) Tag(tags ...string) *Job {
	for _, t := range tags {
		j.tags[t] = struct{}{}
	}
	return j
}

// Run attaches fn under the name "job" and adds the job to s.
func (j *Job) Run(s *Scheduler, fn func()) error {
	return j.Do(s, Func("job", fn))
}

// Do attaches work, computes the first run and adds the job to s.
func (j *Job) Do(s *Scheduler, work Callable) error {
	if j.err != nil {
		return j.err
	}
	if j.sched != nil {
		return ErrAlreadyScheduled
	}
	if work == nil {
		return ErrNoWork
	}
	if j.unit == 0 {
		return ErrMissingUnit
	}
	j.work = work
	j.clock = s.clock
	j.rng = s.rng
	if err := j.scheduleNextRun(s.clock.Now()); err != nil {
		return err
	}
	s.add(j)
	return nil
}

func (j *Job) now() time.Time {
	if j.clock == nil {
		return time.Now()
	}
	return j.clock.Now()
}

// scheduleNextRun computes nextRun relative to now.
func (j *Job) scheduleNextRun(now time.Time) error {
	if j.unit == 0 {
		return ErrMissingUnit
	}

	interval := j.interval
	if j.latest != 0 {
		if j.latest < j.interval {
			return invalidIntervalError(j.interval, j.latest)
		}
		if j.latest > j.interval {
			if j.rng == nil {
				return fmt.Errorf("%w: no random source", ErrUnreachable)
			}
			interval = j.interval + j.rng.Intn(j.latest-j.interval)
		}
	}

	if !j.unit.fits(interval) {
		return periodOverflowError(interval, j.unit)
	}
	period := j.unit.Duration(interval)
	j.period = period
	next := now.Add(period)

	if j.startDay != nil {
		if j.unit != Week {
			return ErrStartDay
		}
		daysAhead := mondayIndex(*j.startDay) - mondayIndex(next.Weekday())
		if daysAhead <= 0 {
			daysAhead += 7
		}
		next = next.Add(time.Duration(daysAhead)*day - period)
	}

	if at := j.atTime; at != nil {
		if j.unit != Day && j.unit != Hour && j.unit != Minute && j.startDay == nil {
			return ErrUnspecifiedStartDay
		}

		hour, minute := next.Hour(), next.Minute()
		if j.unit == Day || j.startDay != nil {
			hour = at.Hour
		}
		if j.unit == Day || j.unit == Hour || j.startDay != nil {
			minute = at.Minute
		}
		y, mo, d := next.Date()
		next = time.Date(y, mo, d, hour, minute, at.Second, 0, next.Location())

		// Fire in the current day/hour/minute if the slot has not passed yet.
		if j.lastRun.IsZero() || next.Sub(j.lastRun) > period {
			switch {
			case j.unit == Day && j.interval == 1 && at.after(now):
				next = next.Add(-day)
			case j.unit == Hour && (at.Minute > now.Minute() || (at.Minute == now.Minute() && at.Second > now.Second())):
				next = next.Add(-time.Hour)
			case j.unit == Minute && at.Second > now.Second():
				next = next.Add(-time.Minute)
			}
		}
	}

	if j.startDay != nil && j.atTime != nil && next.Sub(now) >= 7*day {
		next = next.Add(-period)
	}

	j.nextRun = next
	return nil
}

func (j *Job) shouldRun(now time.Time) bool {
	return !j.nextRun.IsZero() && !now.Before(j.nextRun)
}

func (j *Job) isOverdue(t time.Time) bool {
	return !j.cancelAfter.IsZero() && t.After(j.cancelAfter)
}

type runResult struct {
	keep    bool
	ran     bool
	callErr error
	at      time.Time
	took    time.Duration
}

// execute runs the work once and reschedules. keep is false when the
// deadline has passed, either before the call or after rescheduling. The
// clock is read at each step so time spent by earlier jobs in the same pass
// counts against this job's deadline.
func (j *Job) execute() (runResult, error) {
	if j.isOverdue(j.now()) {
		return runResult{}, nil
	}
	if j.work == nil {
		return runResult{keep: true}, nil
	}

	start := j.now()
	callErr := j.work.Call()
	end := j.now()
	j.callCount++
	j.lastRun = end

	res := runResult{ran: true, callErr: callErr, at: start, took: end.Sub(start)}
	if err := j.scheduleNextRun(j.now()); err != nil {
		return res, err
	}
	res.keep = !j.isOverdue(j.now())
	return res, nil
}

func (j *Job) ID() uuid.UUID { return j.id }

func (j *Job) Interval() int { return j.interval }

// Latest returns the randomized upper bound set by To, or 0.
func (j *Job) Latest() int { return j.latest }

func (j *Job) Unit() Unit { return j.unit }

func (j *Job) AtTime() (TimeOfDay, bool) {
	if j.atTime == nil {
		return TimeOfDay{}, false
	}
	return *j.atTime, true
}

func (j *Job) StartDay() (time.Weekday, bool) {
	if j.startDay == nil {
		return 0, false
	}
	return *j.startDay, true
}

// CancelAfter returns the deadline, or the zero time.
func (j *Job) CancelAfter() time.Time { return j.cancelAfter }

// LastRun returns the time of the last run, or the zero time.
func (j *Job) LastRun() time.Time { return j.lastRun }

// NextRun returns the time of the next run, or the zero time before the job is added.
func (j *Job) NextRun() time.Time { return j.nextRun }

// Period returns the duration used by the most recent reschedule.
func (j *Job) Period() time.Duration { return j.period }

// CallCount reports how many times the work has been invoked.
func (j *Job) CallCount() int { return j.callCount }

func (j *Job) HasTag(tag string) bool {
	_, ok := j.tags[tag]
	return ok
}

// Tags returns the job's tags sorted.
func (j *Job) Tags() []string {
	out := make([]string, 0, len(j.tags))
	for t := range j.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Name returns the attached work's name, or "" before Run/Do.
func (j *Job) Name() string {
	if j.work == nil {
		return ""
	}
	return j.work.Name()
}

func (j *Job) String() string {
	name := j.Name()
	if name == "" {
		name = "No Job"
	}
	return fmt.Sprintf("Job(interval=%d, unit=%s, run=%s)", j.interval, j.unit, name)
}
