// internal/middleware/pause.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nomadbitcoin/softlaw-market/internal/services"
)

// PauseGate rejects state-mutating requests while the platform is
// paused. Reads stay available, as does the admin surface so the pause
// can be lifted.
func PauseGate(admin *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		if strings.HasPrefix(c.Request.URL.Path, "/v1/admin") || strings.HasPrefix(c.Request.URL.Path, "/v1/auth") {
			c.Next()
			return
		}

		if admin.IsPaused() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "platform is paused",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
