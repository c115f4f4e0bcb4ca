package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AuditEmitter publishes audit records for room and message administration.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      *zap.Logger
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id,omitempty"`
	ConnectionID  string       `json:"connection_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string            `json:"level"`
	Action string            `json:"action"`
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

// AuditRecord is one thing worth auditing.
type AuditRecord struct {
	Level        string
	Action       string
	Text         string
	RequestID    string
	ConnectionID string
	Fields       map[string]string
}

// Describe feeds the noop publisher's log line.
func (e AuditEnvelope) Describe() []zap.Field {
	return []zap.Field{
		zap.String("event_type", e.EventType),
		zap.String("action", e.Payload.Action),
		zap.String("connection_id", e.ConnectionID),
	}
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, logger *zap.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger,
		now:         time.Now,
	}
}

// Emit publishes rec. Failures are logged and swallowed.
func (e *AuditEmitter) Emit(ctx context.Context, rec AuditRecord) {
	if e == nil || e.publisher == nil {
		return
	}
	if rec.Level == "" {
		rec.Level = "INFO"
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     rec.RequestID,
		ConnectionID:  rec.ConnectionID,
		Payload: AuditPayload{
			Level:  rec.Level,
			Action: rec.Action,
			Text:   rec.Text,
			Fields: rec.Fields,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil && e.logger != nil {
		e.logger.Warn("audit publish failed", zap.String("action", rec.Action), zap.Error(err))
	}
}
