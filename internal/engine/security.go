package engine

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/nashr-app/nashr/internal/database"
)

// logSecurityEvent records an entry in the security log. Failures are logged, never returned,
// so auditing can't break the operation being audited.
func (e *Engine) logSecurityEvent(ctx context.Context, meta RequestMeta, userID *uint, email string, event database.SecurityEvent, details string) {
	entry := &database.SecurityLog{
		UserID:    userID,
		Email:     email,
		Event:     event,
		IP:        meta.IP,
		UserAgent: truncate(meta.UserAgent, 512),
		Details:   details,
	}
	if err := e.db.CreateSecurityLog(ctx, entry); err != nil {
		log.Warn("failed to write security log", "event", event, "error", err)
	}
}

// SecurityLogs returns a page of the user's security log.
func (e *Engine) SecurityLogs(ctx context.Context, userID uint, page, pageSize int) ([]database.SecurityLog, int64, error) {
	return e.db.ListSecurityLogsByUser(ctx, userID, page, pageSize)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
