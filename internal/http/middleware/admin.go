package middleware

import (
	"context"
	"net/http"

	"divan_bot/internal/domain"
	"divan_bot/internal/logger"

	"github.com/gin-gonic/gin"
)

// AdminIDKey holds the telegram id of the admin performing the request.
const AdminIDKey = "admin_tg_id"

type UserLookup interface {
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
}

// AdminOnly lets through users whose telegram id is in the allow list.
// Requires JWT to run first.
func AdminOnly(users UserLookup, isAdmin func(tgID int64) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(UserIDKey)
		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		u, err := users.GetUser(c.Request.Context(), userID)
		if err != nil || !isAdmin(u.TgID) {
			logger.WithContext(c.Request.Context()).Warn("admin access denied", "user_id", userID)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Set(AdminIDKey, u.TgID)
		c.Next()
	}
}
