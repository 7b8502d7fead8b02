package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "skedge/pkg/logx"
)

// sdNotifier reports readiness and liveness to systemd. Outside a
// systemd unit (no NOTIFY_SOCKET) every call is a no-op.
type sdNotifier struct {
	log      logx.Logger
	watchdog time.Duration

	mu       sync.Mutex
	lastPing time.Time
	status   string
}

func newSDNotifier(log logx.Logger) *sdNotifier {
	n := &sdNotifier{log: log}
	if d, err := daemon.SdWatchdogEnabled(false); err != nil {
		log.Warn("systemd watchdog misconfigured", logx.Err(err))
	} else {
		n.watchdog = d
	}
	return n
}

func (n *sdNotifier) notify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		n.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}

func (n *sdNotifier) Ready()    { n.notify(daemon.SdNotifyReady) }
func (n *sdNotifier) Stopping() { n.notify(daemon.SdNotifyStopping) }

// Heartbeat is installed as the runner heartbeat: it pings the watchdog at
// half its interval and updates STATUS when the summary changes.
func (n *sdNotifier) Heartbeat(jobs int, next time.Time) {
	status := fmt.Sprintf("%d jobs", jobs)
	if !next.IsZero() {
		status += ", next run " + next.Format(time.RFC3339)
	}

	now := time.Now()
	n.mu.Lock()
	ping := n.watchdog > 0 && now.Sub(n.lastPing) >= n.watchdog/2
	if ping {
		n.lastPing = now
	}
	changed := status != n.status
	n.status = status
	n.mu.Unlock()

	if ping {
		n.notify(daemon.SdNotifyWatchdog)
	}
	if changed {
		n.notify("STATUS=" + status)
	}
}
