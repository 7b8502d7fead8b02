package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Alert is a log record forwarded to an AlertSender.
type Alert struct {
	Level   string
	Message string
	Fields  map[string]string
}

// Text renders the alert as a short multi-line message.
func (a Alert) Text() string {
	var b strings.Builder
	if a.Level != "" {
		b.WriteString("[")
		b.WriteString(strings.ToUpper(a.Level))
		b.WriteString("] ")
	}
	b.WriteString(a.Message)
	for _, k := range sortedKeys(a.Fields) {
		b.WriteString("\n- ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(a.Fields[k])
	}
	return truncate(b.String(), 3500)
}

// AlertSender delivers alerts. Implementations must not log at alert level
// themselves or they will feed back into the sink.
type AlertSender interface {
	SendAlert(ctx context.Context, a Alert) error
}

// AlertFunc adapts a function to AlertSender.
type AlertFunc func(ctx context.Context, a Alert) error

func (f AlertFunc) SendAlert(ctx context.Context, a Alert) error { return f(ctx, a) }

func (s *Service) alertWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-s.alertQueue:
			s.mu.Lock()
			sender := s.sender
			s.mu.Unlock()
			if sender == nil {
				continue
			}
			_ = sender.SendAlert(ctx, a)
		}
	}
}

func (s *Service) enqueueAlert(a Alert) {
	// Never block core logging.
	select {
	case s.alertQueue <- a:
	default:
	}
}

type alertWriter struct{ svc *Service }

func (w *alertWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *alertWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc
	if s == nil {
		return len(p), nil
	}

	s.mu.Lock()
	lim := s.limiter
	minLevel := s.minLevel
	s.mu.Unlock()

	if lim == nil || level < minLevel || !lim.Allow() {
		return len(p), nil
	}
	a, ok := decodeAlert(p)
	if !ok {
		return len(p), nil
	}
	s.enqueueAlert(a)
	return len(p), nil
}

// decodeAlert parses a zerolog JSON line. Lines that are not JSON are
// forwarded raw as the message.
func decodeAlert(p []byte) (Alert, bool) {
	p = bytes.TrimSpace(p)
	if len(p) == 0 {
		return Alert{}, false
	}
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return Alert{Message: truncate(string(p), 3500)}, true
	}

	a := Alert{Fields: make(map[string]string, len(m))}
	a.Level, _ = m[zerolog.LevelFieldName].(string)
	a.Message, _ = m[zerolog.MessageFieldName].(string)
	for k, v := range m {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName:
			continue
		}
		a.Fields[k] = truncate(fmt.Sprint(v), 600)
	}
	return a, true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
