package engine

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/nashr-app/nashr/internal/cache"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/scheduler"
)

// UserStats returns the dashboard numbers of the user.
func (e *Engine) UserStats(ctx context.Context, userID uint) (database.UserStats, error) {
	return e.cache.GetUserStats(ctx, userID, func(ctx context.Context) (database.UserStats, error) {
		stats, err := e.db.GetUserStats(ctx, userID)
		if err != nil {
			return database.UserStats{}, err
		}
		return *stats, nil
	})
}

func (e *Engine) invalidateUserStats(ctx context.Context, userID uint) {
	if err := e.cache.InvalidateUserStats(ctx, userID); err != nil {
		log.Warn("failed to invalidate user stats", "user", userID, "error", err)
	}
}

// CacheStats returns the statistics of every cache.
func (e *Engine) CacheStats() []*cache.Stats {
	return e.cache.GetStats()
}

// ClearCache empties every cache.
func (e *Engine) ClearCache(ctx context.Context) error {
	return e.cache.ClearAll(ctx)
}

// Jobs returns the scheduled jobs.
func (e *Engine) Jobs() []scheduler.JobInfo {
	return e.scheduler.GetJobs()
}

// Job returns a snapshot of a single job.
func (e *Engine) Job(id string) (scheduler.JobInfo, bool) {
	return e.scheduler.GetJob(id)
}

// RunJob triggers a job immediately. Unknown ids return scheduler.ErrJobNotFound.
func (e *Engine) RunJob(id string) error {
	return e.scheduler.RunJobNow(id)
}

// SetJobEnabled pauses or resumes a job. Unknown ids return scheduler.ErrJobNotFound.
func (e *Engine) SetJobEnabled(id string, enabled bool) error {
	if err := e.scheduler.SetJobEnabled(id, enabled); err != nil {
		return err
	}
	log.Info("job toggled", "job", id, "enabled", enabled)
	return nil
}
