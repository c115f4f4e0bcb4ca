package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"realtime-chat/internal/models"
	"realtime-chat/internal/observability"
	"realtime-chat/internal/session"
)

// Engine is the part of the session coordinator the transport drives.
type Engine interface {
	Dispatch(ctx context.Context, connID string, frame []byte) error
	Reject(connID, event, messageID, roomID string, err error)
	Disconnect(ctx context.Context, connID string) error
	Lookup(connID string) (models.Session, bool)
}

// Options tune one Handler.
type Options struct {
	EventRate     float64
	EventBurst    int
	SendBuffer    int
	MaxFrameBytes int64
}

// Handler upgrades HTTP requests to websocket sessions.
type Handler struct {
	hub      *Hub
	engine   Engine
	limiters *limiterPool
	opts     Options
	logger   *zap.Logger
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, engine Engine, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = 64 << 10
	}
	return &Handler{
		hub:      hub,
		engine:   engine,
		limiters: newLimiterPool(opts.EventRate, opts.EventBurst),
		opts:     opts,
		logger:   logger,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and starts its pumps. The session begins
// when the client sends join.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("realtime-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	meta := observability.MetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.SetAttributes(attribute.String("chat.connection_id", info.ConnID))

	client := newClient(conn, info, h.opts.SendBuffer)
	h.hub.Register(client)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, observability.WSRoutingKey,
		observability.WSEvent("ws_connect", info.identity(""), ""),
		observability.BuildHeaders(info.RequestID, info.TraceID))
	h.logger.Info("websocket connected", zap.String("connection_id", info.ConnID), zap.String("ip", info.IP))

	// Outlives the request. Event spans link back to the handshake span
	// carried here instead of nesting under it.
	sessionCtx := context.WithoutCancel(ctx)
	go func() {
		if err := client.writePump(); err != nil {
			h.logger.Debug("write pump stopped", zap.String("connection_id", info.ConnID), zap.Error(err))
		}
	}()
	go h.serve(sessionCtx, client)
}

// serve reads frames until the peer disconnects, then tears the session
// down.
func (h *Handler) serve(ctx context.Context, client *Client) {
	connID := client.ID()
	err := client.readPump(h.opts.MaxFrameBytes, func(frame []byte) {
		if !h.limiters.Allow(connID) {
			h.engine.Reject(connID, frameType(frame), "", "", session.ErrRateLimited)
			return
		}
		_ = h.engine.Dispatch(ctx, connID, frame)
	})

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	name := ""
	if s, ok := h.engine.Lookup(connID); ok {
		name = s.DisplayName
	}
	if derr := h.engine.Disconnect(ctx, connID); derr != nil {
		h.logger.Error("disconnect cleanup incomplete", zap.String("connection_id", connID), zap.Error(derr))
	}
	h.hub.Unregister(connID)
	h.limiters.forget(connID)

	headers := observability.BuildHeaders(client.info.RequestID, client.info.TraceID)
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		observability.IncWSEvent("ws_error")
		_ = observability.PublishEvent(ctx, observability.WSRoutingKey,
			observability.WSEvent("ws_error", client.info.identity(name), reason), headers)
	}
	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	_ = observability.PublishEvent(ctx, observability.WSRoutingKey,
		observability.WSEvent("ws_disconnect", client.info.identity(name), reason), headers)
	h.logger.Info("websocket disconnected", zap.String("connection_id", connID), zap.String("reason", reason))
}
