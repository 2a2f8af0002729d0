package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// SecurityEvent represents the type of a security log entry.
type SecurityEvent string

const (
	// SecurityEventRegister indicates a new account was created.
	SecurityEventRegister SecurityEvent = "register"
	// SecurityEventLoginSuccess indicates a successful login.
	SecurityEventLoginSuccess SecurityEvent = "login_success"
	// SecurityEventLoginFailed indicates a login attempt with wrong credentials.
	SecurityEventLoginFailed SecurityEvent = "login_failed"
	// SecurityEventAccountLocked indicates a login attempt was refused because of too many failures.
	SecurityEventAccountLocked SecurityEvent = "account_locked"
	// SecurityEventLogout indicates the user logged out.
	SecurityEventLogout SecurityEvent = "logout"
	// SecurityEventPasswordChanged indicates the user changed their password.
	SecurityEventPasswordChanged SecurityEvent = "password_changed"
	// SecurityEventProfileUpdated indicates the user changed their profile.
	SecurityEventProfileUpdated SecurityEvent = "profile_updated"
	// SecurityEventPurchaseCreated indicates the user created a purchase.
	SecurityEventPurchaseCreated SecurityEvent = "purchase_created"
	// SecurityEventFileViewed indicates the user opened a document.
	SecurityEventFileViewed SecurityEvent = "file_viewed"
)

// SecurityLog is an audit entry. Entries are never soft deleted, old ones are pruned.
type SecurityLog struct {
	ID        uint          `gorm:"primarykey"`
	CreatedAt time.Time     `gorm:"index"`
	// UserID is nil for events of unknown accounts, e.g. failed logins.
	UserID    *uint         `gorm:"index"`
	Email     string        `gorm:"index"`
	Event     SecurityEvent `gorm:"not null;index"`
	IP        string
	UserAgent string
	Details   string
}

// SecurityLogDB defines the interface for security-log-related database operations.
type SecurityLogDB interface {
	CreateSecurityLog(ctx context.Context, entry *SecurityLog) error
	ListSecurityLogsByUser(ctx context.Context, userID uint, page, pageSize int) ([]SecurityLog, int64, error)
	CountFailedLogins(ctx context.Context, email string, since time.Time) (int64, error)
	PruneSecurityLogs(ctx context.Context, before time.Time) (int64, error)
}

func (c *Client) CreateSecurityLog(ctx context.Context, entry *SecurityLog) error {
	entry.Email = NormalizeEmail(entry.Email)
	if err := c.withContext(ctx).Create(entry).Error; err != nil {
		log.Error("failed to create security log", "error", err, "event", entry.Event)
		return err
	}
	return nil
}

// ListSecurityLogsByUser returns a page of the user's security log, newest first.
func (c *Client) ListSecurityLogsByUser(ctx context.Context, userID uint, page, pageSize int) ([]SecurityLog, int64, error) {
	var entries []SecurityLog
	var total int64

	if err := c.withContext(ctx).Model(&SecurityLog{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		log.Error("failed to count security logs", "error", err)
		return nil, 0, err
	}

	_, pageSize, offset := paginate(page, pageSize)
	if err := c.withContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&entries).Error; err != nil {
		log.Error("failed to list security logs", "error", err)
		return nil, 0, err
	}
	return entries, total, nil
}

// CountFailedLogins counts failed logins for an email since the given time.
// Failures before the latest successful login are not counted.
func (c *Client) CountFailedLogins(ctx context.Context, email string, since time.Time) (int64, error) {
	email = NormalizeEmail(email)

	var lastSuccess SecurityLog
	err := c.withContext(ctx).
		Where("email = ? AND event = ? AND created_at >= ?", email, SecurityEventLoginSuccess, since).
		Order("created_at DESC").
		Limit(1).
		Find(&lastSuccess).Error
	if err != nil {
		return 0, err
	}
	if lastSuccess.ID != 0 {
		since = lastSuccess.CreatedAt
	}

	var count int64
	err = c.withContext(ctx).Model(&SecurityLog{}).
		Where("email = ? AND event = ? AND created_at >= ?", email, SecurityEventLoginFailed, since).
		Count(&count).Error
	if err != nil {
		log.Error("failed to count failed logins", "error", err)
		return 0, err
	}
	return count, nil
}

// PruneSecurityLogs deletes entries created before the given time and returns the number removed.
func (c *Client) PruneSecurityLogs(ctx context.Context, before time.Time) (int64, error) {
	result := c.withContext(ctx).Where("created_at < ?", before).Delete(&SecurityLog{})
	if result.Error != nil {
		log.Error("failed to prune security logs", "error", result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
