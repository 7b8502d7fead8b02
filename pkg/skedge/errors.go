package skedge

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrUnitCollision       = errors.New("unit already set")
	ErrIntervalMismatch    = errors.New("singular unit used with interval other than 1")
	ErrInvalidInterval     = errors.New("invalid interval")
	ErrInvalidUnit         = errors.New("invalid unit (valid units are `days`, `hours`, and `minutes`)")
	ErrInvalidDailyAtStr   = errors.New("invalid time format for daily job (valid format is HH:MM(:SS)?)")
	ErrInvalidHourlyAtStr  = errors.New("invalid time format for hourly job (valid format is (MM)?:SS)")
	ErrInvalidMinuteAtStr  = errors.New("invalid time format for minutely job (valid format is :SS)")
	ErrInvalidHour         = errors.New("invalid hour")
	ErrInvalidUntilTime    = errors.New("cannot schedule a job to run until a time in the past")
	ErrWeekdayInterval     = errors.New("weekday scheduling requires an interval of 1")
	ErrWeekdayCollision    = errors.New("weekday already set")
	ErrStartDay            = errors.New("attempted to use a start day for a unit other than `weeks`")
	ErrUnspecifiedStartDay = errors.New("an at-time requires days, hours, minutes or a specific weekday")
	ErrMissingUnit         = errors.New("job unit not set")
	ErrNoWork              = errors.New("job has no work attached")
	ErrAlreadyScheduled    = errors.New("job already added to a scheduler")
	ErrUnreachable         = errors.New("internal error: unreachable state")
)

func unitCollisionError(attempted, existing Unit) error {
	return fmt.Errorf("%w: cannot set %s mode, already using %s", ErrUnitCollision, attempted.plural(), existing.plural())
}

func intervalMismatchError(u Unit) error {
	return fmt.Errorf("%w: use %s() instead of %s()", ErrIntervalMismatch, methodName(u.plural()), methodName(u.String()))
}

func invalidHourError(h int) error {
	return fmt.Errorf("%w (%d is not between 0 and 23)", ErrInvalidHour, h)
}

func invalidIntervalError(interval, latest int) error {
	return fmt.Errorf("%w: latest value %d must be greater than interval %d", ErrInvalidInterval, latest, interval)
}

func periodOverflowError(interval int, u Unit) error {
	return fmt.Errorf("%w: %d %s is longer than the longest supported period (%s)", ErrInvalidInterval, interval, u.plural(), time.Duration(math.MaxInt64))
}

func weekdayIntervalError(d time.Weekday) error {
	return fmt.Errorf(
		"%w: scheduling jobs on %s is only allowed for weekly jobs; using specific days on a job scheduled to run every 2 or more weeks is not supported",
		ErrWeekdayInterval, d,
	)
}

func weekdayCollisionError(attempted, existing time.Weekday) error {
	return fmt.Errorf("%w: cannot schedule on %s, already scheduled for %s", ErrWeekdayCollision, attempted, existing)
}

func untilError(until, since time.Time) error {
	return fmt.Errorf("%w: %s is before %s", ErrInvalidUntilTime, until.Format(time.RFC3339), since.Format(time.RFC3339))
}

// methodName capitalizes a unit name: "seconds" -> "Seconds".
func methodName(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
