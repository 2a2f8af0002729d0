package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/nashr-app/nashr/internal/api/auth"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/samber/lo"
)

// dummyHash is compared against when the email is unknown, so both paths cost one bcrypt round.
var dummyHash, _ = auth.HashPassword("nashr-unknown-user")

// RegisterInput holds the data of a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// ProfileInput holds the editable profile fields. An empty phone removes it.
type ProfileInput struct {
	Name  string
	Phone string
}

// Register creates a new account.
func (e *Engine) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (*database.User, error) {
	email := database.NormalizeEmail(in.Email)

	if _, err := e.db.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	phone := optionalPhone(in.Phone)
	if phone != nil {
		if _, err := e.db.GetUserByPhone(ctx, *phone); err == nil {
			return nil, ErrPhoneTaken
		} else if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		IsAdmin:      e.cfg.IsAdminEmail(email),
	}
	if err := e.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	log.Info("registered user", "user", user.ID, "admin", user.IsAdmin)
	e.logSecurityEvent(ctx, meta, &user.ID, user.Email, database.SecurityEventRegister, "")
	return user, nil
}

// Authenticate verifies the credentials of a login attempt.
func (e *Engine) Authenticate(ctx context.Context, email, password string, meta RequestMeta) (*database.User, error) {
	email = database.NormalizeEmail(email)

	failures, err := e.db.CountFailedLogins(ctx, email, e.now().Add(-e.cfg.Security.LockoutWindow))
	if err != nil {
		return nil, err
	}

	user, err := e.db.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	var userID *uint
	if user != nil {
		userID = &user.ID
	}

	if failures >= int64(e.cfg.Security.MaxFailedLogins) {
		log.Warn("login refused, too many failures", "email", email, "failures", failures)
		e.logSecurityEvent(ctx, meta, userID, email, database.SecurityEventAccountLocked, "")
		return nil, ErrLocked
	}

	if user == nil {
		auth.CheckPassword(dummyHash, password)
		e.logSecurityEvent(ctx, meta, nil, email, database.SecurityEventLoginFailed, "unknown email")
		return nil, ErrInvalidCredentials
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		e.logSecurityEvent(ctx, meta, userID, email, database.SecurityEventLoginFailed, "wrong password")
		return nil, ErrInvalidCredentials
	}

	now := e.now()
	if err := e.db.UpdateUserLastLogin(ctx, user.ID, now); err != nil {
		log.Warn("failed to update last login", "user", user.ID, "error", err)
	}
	user.LastLoginAt = &now

	e.logSecurityEvent(ctx, meta, userID, email, database.SecurityEventLoginSuccess, "")
	return user, nil
}

// Logout records the end of a session.
func (e *Engine) Logout(ctx context.Context, user *database.User, meta RequestMeta) {
	e.logSecurityEvent(ctx, meta, &user.ID, user.Email, database.SecurityEventLogout, "")
}

// GetUser returns a user by id.
func (e *Engine) GetUser(ctx context.Context, id uint) (*database.User, error) {
	user, err := e.db.GetUserByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// ChangePassword replaces the password after verifying the current one.
func (e *Engine) ChangePassword(ctx context.Context, user *database.User, current, next string, meta RequestMeta) error {
	if !auth.CheckPassword(user.PasswordHash, current) {
		return ErrWrongPassword
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := e.db.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return err
	}
	user.PasswordHash = hash

	e.logSecurityEvent(ctx, meta, &user.ID, user.Email, database.SecurityEventPasswordChanged, "")
	return nil
}

// UpdateProfile changes the name and phone of the user.
func (e *Engine) UpdateProfile(ctx context.Context, user *database.User, in ProfileInput, meta RequestMeta) (*database.User, error) {
	phone := optionalPhone(in.Phone)
	if phone != nil {
		other, err := e.db.GetUserByPhone(ctx, *phone)
		switch {
		case err == nil && other.ID != user.ID:
			return nil, ErrPhoneTaken
		case err != nil && !errors.Is(err, database.ErrNotFound):
			return nil, err
		}
	}

	if err := e.db.UpdateUserProfile(ctx, user.ID, strings.TrimSpace(in.Name), phone); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrPhoneTaken
		}
		return nil, err
	}

	e.logSecurityEvent(ctx, meta, &user.ID, user.Email, database.SecurityEventProfileUpdated, "")
	return e.GetUser(ctx, user.ID)
}

// SetAdmin grants or revokes admin rights.
func (e *Engine) SetAdmin(ctx context.Context, email string, isAdmin bool) (*database.User, error) {
	user, err := e.db.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := e.db.SetUserAdmin(ctx, user.ID, isAdmin); err != nil {
		return nil, err
	}
	user.IsAdmin = isAdmin
	log.Info("changed admin rights", "user", user.ID, "admin", isAdmin)
	return user, nil
}

func optionalPhone(phone string) *string {
	phone = strings.TrimSpace(phone)
	return lo.Ternary(phone == "", nil, &phone)
}
