package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kasmoni_backend/utils"
)

// AuthMiddleware validates the bearer token and stores the acting user's
// identity in the request context. The models layer reads it from there;
// it never sees the token itself.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		auth = auth[len(bearer):]

		claims, err := utils.JwtValidate(auth)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := c.Request.Context()
		ctx = utils.SetTokenInContext(ctx, auth)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		ctx = utils.SetUserNameInContext(ctx, claims.Name)
		ctx = utils.SetUsernameInContext(ctx, claims.Username)
		ctx = utils.SetIsAdminInContext(ctx, claims.IsAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
