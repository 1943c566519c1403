package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/typeworld/typeworld-go/internal/shared/logger"
)

// ControlAuthMiddleware guards the control API with the shared key a
// controlling process must present on every request.
type ControlAuthMiddleware struct {
	authKey string
	logger  logger.Interface
}

func NewControlAuthMiddleware(authKey string, logger logger.Interface) *ControlAuthMiddleware {
	return &ControlAuthMiddleware{
		authKey: authKey,
		logger:  logger,
	}
}

// RequireControlKey accepts the key either as a Bearer token or in the
// X-Control-Key header.
func (m *ControlAuthMiddleware) RequireControlKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.authKey == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"message": "control API has no auth key configured"},
			})
			c.Abort()
			return
		}

		key := c.GetHeader("X-Control-Key")
		if key == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				key = parts[1]
			}
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(m.authKey)) != 1 {
			m.logger.Warnw("control API auth failed", "ip", c.ClientIP(), "path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"message": "invalid or missing control key"},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
