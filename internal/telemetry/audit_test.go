package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realtime-chat/internal/mocks"
	"realtime-chat/internal/telemetry"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(pub, "audit.chat", "realtime-chat", "test", zap.NewNop())

	var got telemetry.AuditEnvelope
	pub.On("Publish", mock.Anything, "audit.chat", mock.AnythingOfType("telemetry.AuditEnvelope")).
		Run(func(args mock.Arguments) { got = args.Get(2).(telemetry.AuditEnvelope) }).
		Return(nil).Once()

	emitter.Emit(context.Background(), telemetry.AuditRecord{
		Action:       "room_created",
		Text:         "room dev created",
		ConnectionID: "c1",
		Fields:       map[string]string{"room_id": "room-1"},
	})

	pub.AssertExpectations(t)
	assert.Equal(t, "audit_log", got.EventType)
	assert.Equal(t, "INFO", got.Payload.Level)
	assert.Equal(t, "room-1", got.Payload.Fields["room_id"])
	_, err := time.Parse(time.RFC3339Nano, got.OccurredAt)
	require.NoError(t, err)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(pub, "audit.chat", "realtime-chat", "test", zap.NewNop())
	pub.On("Publish", mock.Anything, "audit.chat", mock.Anything).Return(assert.AnError).Once()

	emitter.Emit(context.Background(), telemetry.AuditRecord{Action: "message_deleted"})
	pub.AssertExpectations(t)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	emitter.Emit(context.Background(), telemetry.AuditRecord{Action: "noop"})
}
