package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kasmoni_backend/utils"
)

// ClientMetadataMiddleware attaches client IP and user agent to the request
// context so the audit trail can record them. Best-effort: the values are
// whatever the client and proxies report.
func ClientMetadataMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = utils.SetClientIpInContext(ctx, c.ClientIP())
		ctx = utils.SetUserAgentInContext(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
