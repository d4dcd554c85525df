package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/hrconsole/internal/monitoring"
)

const defaultMaintenanceMaxAge = 26 * time.Hour

// Maintenance reports jobs that keep failing as down and jobs that have not run within maxAge as
// degraded. Jobs that never ran are ignored.
func Maintenance(tracker *monitoring.JobTracker, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		jobs := tracker.Jobs()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance jobs registered"}
		}

		now := time.Now()
		result := monitoring.ProbeResult{Status: monitoring.StatusUp}
		var problems []string
		for _, job := range jobs {
			switch {
			case job.TotalRuns == 0:
			case job.ConsecutiveFailures > 0:
				result.Status = monitoring.Worse(result.Status, monitoring.StatusDown)
				problems = append(problems, job.Job+": "+job.LastError)
			case now.Sub(job.LastRunAt) > maxAge:
				result.Status = monitoring.Worse(result.Status, monitoring.StatusDegraded)
				problems = append(problems, job.Job+": last run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}
		result.Details = strings.Join(problems, "; ")
		return result
	})
}
