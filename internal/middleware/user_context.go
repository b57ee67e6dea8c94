package middleware

import (
	"errors"
	"log/slog"

	"hoiku-portal/internal/models"
	"hoiku-portal/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	SessionUserID  = "user_id"
	currentUserKey = "CurrentUser"
)

// InjectUser loads the signed-in user from the session into the context.
// A session pointing at a user that no longer exists is cleared.
func InjectUser(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uid, ok := sess.Get(SessionUserID).(uint); ok && uid > 0 {
			user, err := users.Get(c.Request.Context(), uid)
			switch {
			case err == nil:
				c.Set(currentUserKey, user)
			case errors.Is(err, services.ErrNotFound):
				sess.Clear()
				_ = sess.Save()
			default:
				slog.ErrorContext(c.Request.Context(), "failed to load session user", "user_id", uid, "error", err)
			}
		}

		c.Next()
	}
}

// CurrentUser returns the user injected by InjectUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(currentUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// SetCurrentUser is used by handlers after login and by tests.
func SetCurrentUser(c *gin.Context, u *models.User) {
	c.Set(currentUserKey, u)
}
