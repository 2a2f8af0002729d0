package engine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Job ids.
const (
	JobPruneSecurityLogs = "prune_security_logs"
	JobExpirePurchases   = "expire_pending_purchases"
)

// Start starts the background jobs without blocking.
func (e *Engine) Start() {
	e.scheduler.Start()
}

// Run starts the background jobs and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.Start()
	<-ctx.Done()
	return nil
}

// Close stops the engine and cleans up resources.
func (e *Engine) Close() error {
	return e.scheduler.Stop()
}

// setupJobs configures all scheduled jobs.
func (e *Engine) setupJobs() error {
	if err := e.scheduler.AddCronJob(
		JobPruneSecurityLogs,
		"Prune Security Logs",
		"Deletes security log entries older than the retention period",
		e.cfg.Jobs.PruneSchedule,
		func(ctx context.Context) error {
			_, err := e.PruneSecurityLogs(ctx)
			return err
		},
		true,
	); err != nil {
		return fmt.Errorf("failed to add prune job: %w", err)
	}

	if err := e.scheduler.AddCronJob(
		JobExpirePurchases,
		"Expire Pending Purchases",
		"Expires purchases that were not reviewed in time and releases their discount codes",
		e.cfg.Jobs.ExpireSchedule,
		func(ctx context.Context) error {
			_, err := e.ExpirePendingPurchases(ctx)
			return err
		},
		true,
	); err != nil {
		return fmt.Errorf("failed to add expire job: %w", err)
	}

	log.Info("Scheduled jobs configured successfully")
	return nil
}

// PruneSecurityLogs removes security log entries older than the retention period.
func (e *Engine) PruneSecurityLogs(ctx context.Context) (int64, error) {
	cutoff := e.now().Add(-e.cfg.Security.GetLogRetention())
	n, err := e.db.PruneSecurityLogs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Info("Pruned security logs", "count", n, "before", cutoff)
	return n, nil
}
