package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realtime-chat/internal/models"
	"realtime-chat/internal/telemetry"
)

// SessionLookup resolves a live connection; the coordinator's Lookup fits.
type SessionLookup func(connID string) (models.Session, bool)

// RegisterDebugRoutes mounts /debug/audit-test, which publishes one audit
// record describing the caller's session (X-Connection-ID). Nothing is
// mounted unless enabled.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, lookup SessionLookup, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		connID := connectionID(c)
		fields := map[string]string{"online": "false"}
		if lookup != nil && connID != "" {
			if s, ok := lookup(connID); ok {
				fields["online"] = "true"
				fields["display_name"] = s.DisplayName
				fields["room_id"] = s.CurrentRoomID
			}
		}
		emitter.Emit(c.Request.Context(), telemetry.AuditRecord{
			Level:        "INFO",
			Action:       "audit_test",
			Text:         "audit test",
			RequestID:    requestID(c),
			ConnectionID: connID,
			Fields:       fields,
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok", "fields": fields})
	})
}
