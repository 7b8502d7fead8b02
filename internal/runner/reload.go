package runner

import (
	"context"
	"errors"
	"sort"

	"skedge/internal/config"
	logx "skedge/pkg/logx"
)

// Apply reconciles the scheduler with cfg. Jobs whose definition is
// unchanged keep their state; changed jobs are cleared and rebuilt. A
// timezone change rebuilds every job on a new scheduler.
//
// Jobs that fail to build are skipped and reported in the returned error.
func (r *Runner) Apply(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	settings, err := cfg.RunnerSettings()
	if err != nil {
		return err
	}
	var applyErr error
	if err := r.exec(ctx, func() { applyErr = r.apply(settings, cfg.Jobs) }); err != nil {
		return err
	}
	return applyErr
}

func (r *Runner) apply(settings config.RunnerSettings, jobs []config.JobConfig) error {
	rebuild := settings.Location.String() != r.settings.Location.String() || settings.Seed != r.settings.Seed
	r.applySettings(settings)

	var changed []string
	if rebuild {
		r.log.Info("runner settings changed; rebuilding all jobs", logx.String("tz", settings.Location.String()))
		r.sched.Clear("")
		r.sched = r.newScheduler()
		for name := range r.jobs {
			changed = append(changed, name)
		}
		for _, jc := range jobs {
			if _, ok := r.jobs[jc.Name]; !ok {
				changed = append(changed, jc.Name)
			}
		}
		sort.Strings(changed)
	} else {
		old := make([]config.JobConfig, 0, len(r.jobs))
		for _, jc := range r.jobs {
			old = append(old, jc)
		}
		changed = config.DiffJobs(old, jobs)
	}

	byName := make(map[string]config.JobConfig, len(jobs))
	for _, jc := range jobs {
		byName[jc.Name] = jc
	}

	var errs []error
	for _, name := range changed {
		if !rebuild {
			r.sched.Clear(JobTag(name))
		}
		delete(r.jobs, name)

		jc, ok := byName[name]
		if !ok {
			r.log.Info("job removed", logx.String("job", name))
			continue
		}
		if err := r.addJob(jc); err != nil {
			r.log.Error("job rejected", logx.String("job", name), logx.Err(err))
			errs = append(errs, err)
			continue
		}
		r.log.Info("job scheduled", logx.String("job", name))
	}
	r.log.Debug("config applied", logx.Int("changed", len(changed)), logx.Int("jobs", r.sched.Len()))
	return errors.Join(errs...)
}
