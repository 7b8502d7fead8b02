package runner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"skedge/internal/config"
	"skedge/internal/eventbus"
	logx "skedge/pkg/logx"
	"skedge/pkg/skedge"
)

const maxDrainBytes = 64 << 10

// action returns the work a config job performs.
func (r *Runner) action(jc config.JobConfig) (skedge.Callable, error) {
	name := jc.Name
	a := jc.Action
	switch a.Type {
	case "", config.ActionLog:
		msg := a.Message
		if msg == "" {
			msg = "job fired"
		}
		return skedge.Func2(name, r.logAction, name, msg), nil

	case config.ActionEvent:
		return skedge.Func2(name, r.eventAction, name, a.Message), nil

	case config.ActionHTTP:
		timeout, err := config.ParseDurationOrDefault(name+".action.timeout", a.Timeout, config.DefaultHTTPTimeout)
		if err != nil {
			return nil, err
		}
		method := strings.ToUpper(strings.TrimSpace(a.Method))
		if method == "" {
			method = http.MethodGet
		}
		url := a.URL
		return skedge.FuncErr(name, func() error {
			ctx, cancel := context.WithTimeout(r.runCtx, timeout)
			defer cancel()
			return r.httpAction(ctx, method, url)
		}), nil

	default:
		return nil, fmt.Errorf("job %q: unknown action type %q", name, a.Type)
	}
}

func (r *Runner) logAction(name, msg string) {
	r.log.Info(msg, logx.String("job", name))
}

func (r *Runner) eventAction(name, msg string) {
	r.publish(eventbus.TypeJobMessage, eventbus.JobData{Name: name, Message: msg})
}

func (r *Runner) httpAction(ctx context.Context, method, url string) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "skedge")
	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
	}
	return nil
}
