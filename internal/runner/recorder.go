package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"skedge/internal/eventbus"
	"skedge/internal/storage"
	logx "skedge/pkg/logx"
)

// Recorder writes bus events into storage: job lifecycle events as run
// records, everything else as audit entries.
type Recorder struct {
	store storage.Store
	bus   eventbus.Bus
	log   logx.Logger
}

func NewRecorder(store storage.Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, bus: bus, log: log.With(logx.String("component", "recorder"))}
}

// Run consumes events until ctx is done. It subscribes on entry, so events
// published before Run are not recorded.
func (rec *Recorder) Run(ctx context.Context) error {
	ch, unsub := rec.bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return errors.New("event bus subscription closed")
			}
			if err := rec.Record(ctx, e); err != nil {
				rec.log.Warn("history write failed", logx.String("event", e.Type), logx.Err(err))
			}
		}
	}
}

// Record stores a single event.
func (rec *Recorder) Record(ctx context.Context, e eventbus.Event) error {
	switch e.Type {
	case eventbus.TypeJobRan, eventbus.TypeJobFailed, eventbus.TypeJobCancelled, eventbus.TypeJobCleared:
		d, ok := e.Data.(eventbus.JobData)
		if !ok {
			return fmt.Errorf("unexpected payload %T", e.Data)
		}
		return rec.store.AppendRun(ctx, storage.RunRecord{
			ID:        uuid.NewString(),
			Job:       d.Name,
			JobID:     d.ID,
			Kind:      runKind(e.Type),
			At:        e.Time,
			TookMS:    d.Took.Milliseconds(),
			Error:     d.Err,
			CallCount: d.CallCount,
			NextRun:   d.NextRun,
		})
	case eventbus.TypeJobMessage:
		d, _ := e.Data.(eventbus.JobData)
		return rec.audit(ctx, e, "job", "message", d.Name, "", map[string]string{"message": d.Message})
	case eventbus.TypeAlert:
		a, _ := e.Data.(logx.Alert)
		return rec.audit(ctx, e, "log", "alert", a.Level, a.Message, a.Fields)
	default:
		return rec.audit(ctx, e, "daemon", e.Type, "", "", e.Data)
	}
}

func (rec *Recorder) audit(ctx context.Context, e eventbus.Event, source, action, target, errStr string, meta any) error {
	entry := storage.AuditEntry{At: e.Time, Source: source, Action: action, Target: target, Error: errStr}
	if meta != nil {
		b, err := json.Marshal(meta)
		if err == nil {
			entry.MetaJSON = string(b)
		}
	}
	return rec.store.AppendAudit(ctx, entry)
}

func runKind(typ string) string {
	switch typ {
	case eventbus.TypeJobCancelled:
		return storage.RunCancelled
	case eventbus.TypeJobCleared:
		return storage.RunCleared
	default:
		return storage.RunRan
	}
}
