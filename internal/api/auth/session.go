package auth

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nashr-app/nashr/internal/database"
)

// Session keys.
const (
	sessionUserID    = "user_id"
	sessionUserEmail = "user_email"
	sessionUserName  = "user_name"
	sessionIsAdmin   = "user_is_admin"
)

// StartSession stores the user in the session cookie.
func StartSession(c *gin.Context, user *database.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserID, user.ID)
	session.Set(sessionUserEmail, user.Email)
	session.Set(sessionUserName, user.Name)
	session.Set(sessionIsAdmin, user.IsAdmin)
	return session.Save()
}

// EndSession removes the user from the session and expires the cookie.
func EndSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}

func getSessionUint(session sessions.Session, key string) uint {
	if val := session.Get(key); val != nil {
		if id, ok := val.(uint); ok {
			return id
		}
	}
	return 0
}

func getSessionString(session sessions.Session, key string) string {
	if val := session.Get(key); val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getSessionBool(session sessions.Session, key string) bool {
	if val := session.Get(key); val != nil {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
