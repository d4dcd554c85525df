package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charlesng35/hrconsole/internal/app"
	"github.com/charlesng35/hrconsole/internal/app/maintenance"
	iauth "github.com/charlesng35/hrconsole/internal/auth"
	"github.com/charlesng35/hrconsole/internal/cache"
	"github.com/charlesng35/hrconsole/internal/monitoring"
	"github.com/charlesng35/hrconsole/internal/services"
	"github.com/charlesng35/hrconsole/pkg/logger"
)

// runMaintenance runs every cleanup job once, whatever maintenance.enabled says, and prints the
// outcome of each.
func runMaintenance(ctx context.Context, cfg *app.Config, out io.Writer) error {
	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, logger.WithModule("database"))

	sessions, err := iauth.NewSessionService(db, nil, iauth.SessionConfig{})
	if err != nil {
		return err
	}
	audit, err := services.NewAuditService(db)
	if err != nil {
		return err
	}

	tracker := monitoring.NewJobTracker()
	jobs := maintenanceJobs(cfg.Maintenance, sessions, audit, cache.NewDatabaseStore(db))
	runErr := maintenance.NewScheduler(jobs, maintenance.WithTracker(tracker)).RunOnce(ctx)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tRESULT\tDURATION")
	for _, status := range tracker.Jobs() {
		result := "ok"
		if status.LastError != "" {
			result = status.LastError
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", status.Job, result, status.LastDuration)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}
