package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messenger-service/internal/middleware"
	"messenger-service/internal/telemetry"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if id := middleware.UserID(c); id != "" {
		return &id
	}
	return nil
}

// emitAudit records a REST mutation; a nil emitter disables auditing.
func emitAudit(c *gin.Context, emitter *telemetry.AuditEmitter, text string, fields map[string]any) {
	if emitter == nil {
		return
	}
	emitter.Emit(c.Request.Context(), "INFO", text, requestIDFromContext(c), userIDFromContext(c), fields)
}
