package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stocks-simulator/session"
)

// UserIDKey is the gin context key holding the logged in user's id.
const UserIDKey = "user_id"

type SessionResolver interface {
	UserID(ctx context.Context, r *http.Request) (uint, error)
}

// LoginRequired resolves the session cookie and stores the user id in the
// request context. Anonymous requests are redirected to the login page.
func LoginRequired(sessions SessionResolver, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := sessions.UserID(c.Request.Context(), c.Request)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				log.Error("resolve session", zap.Error(err))
			}
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}
