package middlewares

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/stockroom_backend/models"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the session user and attaches the tenant scope
// to the request context. Routes behind it always see a business id.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := utils.GetUsernameFromContext(c.Request.Context())
		if !ok || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		user, err := models.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		if user.IsActive == nil || !*user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user is disabled"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyBusinessId, user.BusinessId)
		ctx = context.WithValue(ctx, utils.ContextKeyUserId, user.ID)
		ctx = context.WithValue(ctx, utils.ContextKeyUserName, user.Name)
		ctx = context.WithValue(ctx, utils.ContextKeyUserEmail, user.Email)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
