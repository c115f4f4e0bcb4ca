package observability

import (
	"context"
	"time"
)

// Routing key for websocket lifecycle events.
const WSRoutingKey = "ws_events.connections"

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// EventPublisher is satisfied by the RabbitMQ publisher.
type EventPublisher interface {
	PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

var defaultPublisher EventPublisher

func SetPublisher(publisher EventPublisher) {
	defaultPublisher = publisher
}

func PublishEvent(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.PublishWithHeaders(ctx, routingKey, message, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// ConnIdentity is the network identity attached to websocket events.
type ConnIdentity struct {
	ConnID      string
	DisplayName string
	DeviceID    string
	IP          string
	ConnectedAt time.Time
}

// WSEvent builds the envelope for a websocket lifecycle event.
func WSEvent(name string, id ConnIdentity, reason string) EventEnvelope {
	duration := int64(0)
	if !id.ConnectedAt.IsZero() {
		duration = time.Since(id.ConnectedAt).Milliseconds()
	}
	return EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       name,
				"conn_id":     id.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"display_name": id.DisplayName,
				"device_id":    id.DeviceID,
				"ip":           id.IP,
			},
		},
	}
}
