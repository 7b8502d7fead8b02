package runner

import (
	"skedge/internal/eventbus"
	logx "skedge/pkg/logx"
	"skedge/pkg/skedge"
)

// observe forwards scheduler lifecycle events to the bus.
func (r *Runner) observe(e skedge.Event) {
	data := eventbus.JobData{
		Name:      e.Job.Name(),
		ID:        e.Job.ID().String(),
		Desc:      e.Job.String(),
		CallCount: e.Job.CallCount(),
		NextRun:   e.Job.NextRun(),
		Took:      e.Took,
	}
	typ := eventbus.TypeJobRan
	switch e.Kind {
	case skedge.EventRan:
		if e.Err != nil {
			typ = eventbus.TypeJobFailed
			data.Err = e.Err.Error()
		}
	case skedge.EventCancelled:
		typ = eventbus.TypeJobCancelled
		r.log.Info("job reached its deadline", logx.String("job", data.Name))
	case skedge.EventCleared:
		typ = eventbus.TypeJobCleared
	}
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: typ, Time: e.At, Data: data})
	}
}

func (r *Runner) publish(typ string, data any) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.Event{Type: typ, Time: r.clock.Now(), Data: data})
}

// runPending runs one scheduler pass. Pass errors are rate limited so a job
// stuck failing to reschedule does not flood the log.
func (r *Runner) runPending() {
	err := r.sched.RunPending()
	if err == nil {
		return
	}
	if !r.limiter.AllowN(r.clock.Now(), 1) {
		r.suppressed++
		r.log.Debug("scheduler pass error suppressed", logx.Err(err))
		return
	}
	fields := []logx.Field{logx.Err(err)}
	if r.suppressed > 0 {
		fields = append(fields, logx.Int("suppressed", r.suppressed))
		r.suppressed = 0
	}
	r.log.Error("scheduler pass failed", fields...)
}
