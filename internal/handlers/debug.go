package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/telemetry"
)

// PresenceCounter reports live presence for the debug endpoint.
type PresenceCounter interface {
	OnlineCount() int
}

// HubCounter reports the number of registered sockets.
type HubCounter interface {
	ClientCount() int
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, presence PresenceCounter, hub HubCounter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitAudit(c, emitter, "audit test", nil)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/presence", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"online_users": presence.OnlineCount(),
			"connections":  hub.ClientCount(),
		})
	})
}
