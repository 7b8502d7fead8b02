package config

import (
	"reflect"
	"sort"
	"strings"

	logx "skedge/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) attrs for logging the reload, and (3) the names of jobs that were
// added, removed, or redefined.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.alert_enabled", newCfg.Logging.Alert.Enabled),
		)
	}

	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if s := oldCfg.Storage; s != nil {
		oDriver = strings.TrimSpace(s.Driver)
		oBusy = strings.TrimSpace(s.BusyTimeout)
		oPathSet = strings.TrimSpace(s.Path) != ""
	}
	if s := newCfg.Storage; s != nil {
		nDriver = strings.TrimSpace(s.Driver)
		nBusy = strings.TrimSpace(s.BusyTimeout)
		nPathSet = strings.TrimSpace(s.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	if oldCfg.Runner != newCfg.Runner {
		changed = append(changed, "runner")
		attrs = append(attrs,
			logx.String("runner.poll_interval", strings.TrimSpace(newCfg.Runner.PollInterval)),
			logx.String("runner.timezone", strings.TrimSpace(newCfg.Runner.Timezone)),
			logx.Int("runner.history_limit", newCfg.Runner.HistoryLimit),
		)
	}

	jobsChanged := DiffJobs(oldCfg.Jobs, newCfg.Jobs)
	if len(jobsChanged) > 0 {
		changed = append(changed, "jobs")
		attrs = append(attrs,
			logx.Int("jobs.changed_count", len(jobsChanged)),
			logx.Int("jobs.total", len(newCfg.Jobs)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, jobsChanged
}

// DiffJobs returns the sorted names of jobs whose definition differs between
// the two lists, including jobs present in only one of them.
func DiffJobs(oldJobs, newJobs []JobConfig) []string {
	oldH := make(map[string]uint64, len(oldJobs))
	for _, j := range oldJobs {
		oldH[j.Name] = JobHash(j)
	}
	newH := make(map[string]uint64, len(newJobs))
	for _, j := range newJobs {
		newH[j.Name] = JobHash(j)
	}

	out := make([]string, 0)
	for name, h := range newH {
		if oh, ok := oldH[name]; !ok || oh != h {
			out = append(out, name)
		}
	}
	for name := range oldH {
		if _, ok := newH[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
