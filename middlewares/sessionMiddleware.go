package middlewares

import (
	"context"
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"bitbucket.org/mmdatafocus/stockroom_backend/utils"
	"github.com/gin-gonic/gin"
)

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			// Service callers authenticate with a signed bearer token
			// instead of a redis session.
			auth := c.Request.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				validated, err := utils.JwtValidate(strings.TrimPrefix(auth, "Bearer "))
				if err != nil || !validated.Valid {
					c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
					c.Abort()
					return
				}
				claim, _ := validated.Claims.(*utils.JwtCustomClaim)
				ctx := context.WithValue(c.Request.Context(), utils.ContextKeyUsername, claim.Username)
				c.Request = c.Request.WithContext(ctx)
			}
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyToken, token)
		ctx = context.WithValue(ctx, utils.ContextKeyUsername, username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
