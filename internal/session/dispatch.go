package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"realtime-chat/internal/models"
	"realtime-chat/internal/observability"
	"realtime-chat/internal/repositories"
)

// Dispatch decodes one inbound frame and applies it. A rejected event is
// answered with action_rejected to the originator; the returned error is
// for logging only.
func (c *Coordinator) Dispatch(ctx context.Context, connID string, frame []byte) error {
	start := time.Now()

	var env models.Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
		c.Reject(connID, env.Type, "", "", ErrInvalidPayload)
		observability.ObserveInbound("malformed", "rejected", time.Since(start))
		return ErrInvalidPayload
	}

	ctx, span := c.tracer.Start(ctx, "session."+env.Type, eventSpanOptions(ctx)...)
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.connection_id", connID),
		attribute.String("chat.event", env.Type),
	)

	messageID, roomID, err := c.route(ctx, connID, env)
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		span.RecordError(err)
		span.SetStatus(codes.Error, reason(err))
		c.Reject(connID, env.Type, messageID, roomID, err)
	}
	observability.ObserveInbound(env.Type, outcome, time.Since(start))
	return err
}

// eventSpanOptions makes every event span a root. The connection's
// handshake span ends long before its events arrive, so it is linked
// rather than used as parent.
func eventSpanOptions(ctx context.Context) []trace.SpanStartOption {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindServer), trace.WithNewRoot()}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: sc}))
	}
	return opts
}

func decode[T any](raw json.RawMessage) (T, error) {
	var p T
	if len(raw) == 0 {
		return p, ErrInvalidPayload
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, ErrInvalidPayload
	}
	return p, nil
}

// route returns the message and room the event referred to, for the
// rejection payload.
func (c *Coordinator) route(ctx context.Context, connID string, env models.Envelope) (string, string, error) {
	switch env.Type {
	case models.EventJoin:
		p, err := decode[models.JoinPayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return "", "", c.Join(ctx, connID, p)
	case models.EventSendMessage:
		p, err := decode[models.SendMessagePayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return "", p.RoomID, c.SendMessage(ctx, connID, p)
	case models.EventShareFile:
		p, err := decode[models.ShareFilePayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return "", p.RoomID, c.ShareFile(ctx, connID, p)
	case models.EventPrivateMessage:
		p, err := decode[models.PrivateMessagePayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return "", "", c.PrivateMessage(ctx, connID, p)
	case models.EventEditMessage:
		p, err := decode[models.EditMessagePayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return p.MessageID, p.RoomID, c.EditMessage(ctx, connID, p)
	case models.EventDeleteMessage:
		p, err := decode[models.DeleteMessagePayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return p.MessageID, p.RoomID, c.DeleteMessage(ctx, connID, p)
	case models.EventReaction:
		p, err := decode[models.ReactionPayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return p.MessageID, p.RoomID, c.ToggleReaction(ctx, connID, p)
	case models.EventRemoveReaction:
		p, err := decode[models.ReactionPayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return p.MessageID, p.RoomID, c.RemoveReaction(ctx, connID, p)
	case models.EventTyping:
		p, err := decode[models.TypingPayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return "", p.RoomID, c.Typing(ctx, connID, p)
	case models.EventCreateRoom:
		p, err := decode[models.CreateRoomPayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return "", "", c.CreateRoom(ctx, connID, p)
	case models.EventJoinRoom:
		p, err := decode[models.JoinRoomPayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return "", p.RoomID, c.JoinRoom(ctx, connID, p)
	case models.EventLeaveRoom:
		p, err := decode[models.LeaveRoomPayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return "", p.RoomID, c.LeaveRoom(ctx, connID, p)
	case models.EventUpdateProfile:
		p, err := decode[models.UpdateProfilePayload](env.Payload)
		if err != nil {
			return "", "", err
		}
		return "", "", c.UpdateProfile(ctx, connID, p)
	default:
		return "", "", ErrUnknownEvent
	}
}

// Reject tells connID that its event was refused.
func (c *Coordinator) Reject(connID, event, messageID, roomID string, err error) {
	r := reason(err)
	if r == "internal" {
		c.logger.Error("event failed", zap.String("connection_id", connID), zap.String("event", event), zap.Error(err))
	} else {
		c.logger.Debug("event rejected", zap.String("connection_id", connID), zap.String("event", event), zap.String("reason", r))
	}
	c.out.SendTo(connID, models.NewEvent(models.EventActionRejected, models.ActionRejectedPayload{
		Event:     event,
		Reason:    r,
		MessageID: messageID,
		RoomID:    roomID,
	}))
}

func reason(err error) string {
	switch {
	case errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrRoomNotFound),
		errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, repositories.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrNotMember):
		return "not_member"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrDisconnected):
		return "disconnected"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnknownEvent):
		return "unknown_event"
	default:
		return "internal"
	}
}

// RunTypingJanitor clears typing markers older than ttl every interval
// until ctx is done.
func (c *Coordinator) RunTypingJanitor(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, room := range c.typing.Sweep(ttl) {
				c.broadcastTyping(room)
			}
		}
	}
}
