package runner

import (
	"errors"
	"fmt"
	"time"

	"skedge/internal/config"
	"skedge/pkg/skedge"
)

// JobTag is the tag every config job carries, used to clear it on reload.
func JobTag(name string) string { return "job:" + name }

// Build translates jc into builder calls on s and registers it with work.
func Build(s *skedge.Scheduler, jc config.JobConfig, work skedge.Callable) (*skedge.Job, error) {
	j := s.Every(jc.Every)
	if jc.Weekday != "" {
		d, ok := config.ParseWeekday(jc.Weekday)
		if !ok {
			return nil, fmt.Errorf("job %q: unknown weekday %q", jc.Name, jc.Weekday)
		}
		// A weekday implies weekly; an explicit week unit is redundant.
		if jc.Unit != "" {
			u, ok := skedge.ParseUnit(jc.Unit)
			if !ok {
				return nil, fmt.Errorf("job %q: unknown unit %q", jc.Name, jc.Unit)
			}
			if u != skedge.Week {
				j = j.Units(u)
			}
		}
		j = j.Weekday(d)
	} else {
		u, ok := skedge.ParseUnit(jc.Unit)
		if !ok {
			return nil, fmt.Errorf("job %q: unknown unit %q", jc.Name, jc.Unit)
		}
		j = j.Units(u)
	}
	if jc.To > 0 {
		j = j.To(jc.To)
	}
	if jc.At != "" {
		j = j.At(jc.At)
	}
	if jc.Until != "" {
		deadline, err := time.Parse(time.RFC3339, jc.Until)
		if err != nil {
			return nil, fmt.Errorf("job %q: until: %w", jc.Name, err)
		}
		j = j.Until(deadline)
	}
	j = j.Tag(JobTag(jc.Name)).Tag(jc.Tags...)

	if err := j.Do(s, work); err != nil {
		return nil, fmt.Errorf("job %q: %w", jc.Name, err)
	}
	return j, nil
}

// ValidateJobs builds every job of cfg into a throwaway scheduler on the
// wall clock. It is used to reject a reload before it reaches the runner.
func ValidateJobs(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	settings, err := cfg.RunnerSettings()
	if err != nil {
		return err
	}
	s := skedge.New(skedge.WithClock(skedge.InLocation(skedge.RealClock(), settings.Location)))
	var errs []error
	for _, jc := range cfg.Jobs {
		if _, err := Build(s, jc, skedge.Func(jc.Name, func() {})); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
