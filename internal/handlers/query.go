package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"realtime-chat/internal/models"
	"realtime-chat/internal/repositories"
)

// Queries is the read side of the session coordinator.
type Queries interface {
	History(ctx context.Context, roomID string) ([]models.Message, error)
	OnlineUsers() []models.Session
	RoomList(ctx context.Context) ([]models.RoomSummary, error)
	Reactions(ctx context.Context, messageID string) ([]models.Reaction, error)
	Health(ctx context.Context) (models.HealthReport, error)
}

// QueryHandler serves the read-only HTTP API.
type QueryHandler struct {
	queries Queries
	backend string
	logger  *zap.Logger
}

// NewQueryHandler builds a QueryHandler. backend names the storage in the
// health report.
func NewQueryHandler(queries Queries, backend string, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{queries: queries, backend: backend, logger: logger}
}

// Register mounts the routes.
func (h *QueryHandler) Register(r gin.IRoutes) {
	r.GET("/api/messages/:room_id", h.GetMessages)
	r.GET("/api/users", h.GetUsers)
	r.GET("/api/rooms", h.GetRooms)
	r.GET("/api/reactions/:message_id", h.GetReactions)
	r.GET("/health", h.Health)
}

// GetMessages returns the recent history of a room, oldest first.
func (h *QueryHandler) GetMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		roomID = models.GeneralRoomID
	}
	msgs, err := h.queries.History(c.Request.Context(), roomID)
	if err != nil {
		h.fail(c, "failed to fetch messages", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// GetUsers returns the sessions online right now.
func (h *QueryHandler) GetUsers(c *gin.Context) {
	users := h.queries.OnlineUsers()
	if users == nil {
		users = []models.Session{}
	}
	c.JSON(http.StatusOK, users)
}

// GetRooms returns every room with its live member count.
func (h *QueryHandler) GetRooms(c *gin.Context) {
	rooms, err := h.queries.RoomList(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to fetch rooms", err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// GetReactions returns the reaction aggregate of one message.
func (h *QueryHandler) GetReactions(c *gin.Context) {
	reactions, err := h.queries.Reactions(c.Request.Context(), c.Param("message_id"))
	if errors.Is(err, repositories.ErrMessageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		h.fail(c, "failed to fetch reactions", err)
		return
	}
	c.JSON(http.StatusOK, reactions)
}

// Health reports store counts. A store failure answers 503.
func (h *QueryHandler) Health(c *gin.Context) {
	report, err := h.queries.Health(c.Request.Context())
	if err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"backend": h.backend,
			"error":   "store unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      report.Status,
		"backend":     h.backend,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"messages":    report.Messages,
		"rooms":       report.Rooms,
		"onlineUsers": report.OnlineUsers,
		"sessions":    report.Sessions,
	})
}

func (h *QueryHandler) fail(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.String("path", c.FullPath()), zap.String("request_id", requestID(c)), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
