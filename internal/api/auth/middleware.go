package auth

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nashr-app/nashr/internal/database"
)

const contextUserKey = "user"

// Messages shown to the user by the SPA.
const (
	msgLoginRequired = "برای ادامه وارد حساب کاربری خود شوید"
	msgForbidden     = "شما به این بخش دسترسی ندارید"
)

// Provider authenticates requests against the session cookie.
type Provider struct {
	db database.UserDB
}

// New creates a new session auth provider.
func New(db database.UserDB) *Provider {
	return &Provider{db: db}
}

// RequireAuth rejects requests without a valid session with 401.
func (p *Provider) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := p.loadUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msgLoginRequired})
			return
		}
		c.Next()
	}
}

// OptionalAuth loads the user when a session exists but lets anonymous requests through.
func (p *Provider) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		p.loadUser(c)
		c.Next()
	}
}

// RequireAdmin rejects requests of non-admin users with 403. It must run after RequireAuth.
func (p *Provider) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := UserFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msgLoginRequired})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": msgForbidden})
			return
		}
		c.Next()
	}
}

// UserFromContext returns the user loaded by the auth middleware.
func UserFromContext(c *gin.Context) (*database.User, bool) {
	val, exists := c.Get(contextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := val.(*database.User)
	return user, ok && user != nil
}

// loadUser reads the session and loads the user from the database,
// so deleted users and revoked admins lose access immediately.
func (p *Provider) loadUser(c *gin.Context) (*database.User, bool) {
	session := sessions.Default(c)
	userID := getSessionUint(session, sessionUserID)
	if userID == 0 {
		return nil, false
	}

	user, err := p.db.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			log.Error("failed to load session user", "error", err, "user", userID)
			return nil, false
		}
		log.Debug("session user no longer exists", "user", userID)
		if err := EndSession(c); err != nil {
			log.Warn("failed to clear session", "error", err)
		}
		return nil, false
	}

	if getSessionBool(session, sessionIsAdmin) != user.IsAdmin ||
		getSessionString(session, sessionUserEmail) != user.Email ||
		getSessionString(session, sessionUserName) != user.Name {
		if err := StartSession(c, user); err != nil {
			log.Warn("failed to refresh session", "error", err)
		}
	}

	c.Set(contextUserKey, user)
	return user, true
}
