package eventbus

import (
	"testing"
)

func TestSubscribeFiltersByPrefix(t *testing.T) {
	b := New()
	jobs, unsubJobs := b.Subscribe(4, "job.")
	defer unsubJobs()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()

	b.Publish(Event{Type: TypeJobRan, Data: JobData{Name: "a"}})
	b.Publish(Event{Type: TypeConfigReloaded})

	e := <-jobs
	if e.Type != TypeJobRan || e.Time.IsZero() {
		t.Fatalf("job event = %+v", e)
	}
	if d, ok := e.Data.(JobData); !ok || d.Name != "a" {
		t.Fatalf("job data = %#v", e.Data)
	}
	select {
	case e := <-jobs:
		t.Fatalf("job subscriber got %q", e.Type)
	default:
	}
	if len(all) != 2 {
		t.Fatalf("catch-all got %d events, want 2", len(all))
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeAlert})
	b.Publish(Event{Type: TypeAlert})
	if got := b.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("channel still open")
	}
	b.Publish(Event{Type: TypeAlert})
}
