package database

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// User represents a customer or admin account.
// Email is stored lower-cased, Phone is optional but unique when set.
type User struct {
	gorm.Model
	Name         string  `gorm:"not null"`
	Email        string  `gorm:"uniqueIndex;not null"`
	Phone        *string `gorm:"uniqueIndex"`
	PasswordHash string  `gorm:"not null"`
	IsAdmin      bool
	LastLoginAt  *time.Time
}

// UserDB defines the interface for user-related database operations.
type UserDB interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByPhone(ctx context.Context, phone string) (*User, error)
	UpdateUserProfile(ctx context.Context, id uint, name string, phone *string) error
	UpdateUserPassword(ctx context.Context, id uint, passwordHash string) error
	UpdateUserLastLogin(ctx context.Context, id uint, at time.Time) error
	SetUserAdmin(ctx context.Context, id uint, isAdmin bool) error
}

// NormalizeEmail returns the canonical form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c *Client) CreateUser(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := c.withContext(ctx).Create(user).Error; err != nil {
		log.Error("failed to create user", "error", err)
		return translateError(err)
	}
	return nil
}

func (c *Client) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := c.withContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := c.withContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (c *Client) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	var user User
	if err := c.withContext(ctx).Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (c *Client) UpdateUserProfile(ctx context.Context, id uint, name string, phone *string) error {
	result := c.withContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]any{
		"name":  name,
		"phone": phone,
	})
	if result.Error != nil {
		log.Error("failed to update user profile", "error", result.Error, "user", id)
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Client) UpdateUserPassword(ctx context.Context, id uint, passwordHash string) error {
	result := c.withContext(ctx).Model(&User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if result.Error != nil {
		log.Error("failed to update user password", "error", result.Error, "user", id)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Client) UpdateUserLastLogin(ctx context.Context, id uint, at time.Time) error {
	return c.withContext(ctx).Model(&User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

func (c *Client) SetUserAdmin(ctx context.Context, id uint, isAdmin bool) error {
	result := c.withContext(ctx).Model(&User{}).Where("id = ?", id).Update("is_admin", isAdmin)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
