package handlers

import (
	"github.com/gin-gonic/gin"

	"realtime-chat/internal/middleware"
)

// requestID prefers the id assigned by middleware.RequestID and falls back
// to the inbound header when the handler is mounted without it.
func requestID(c *gin.Context) string {
	if id := middleware.RequestIDFrom(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// connectionID is the websocket connection a REST caller says it speaks for.
func connectionID(c *gin.Context) string {
	return c.GetHeader("X-Connection-ID")
}
