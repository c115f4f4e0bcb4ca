package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realtime-chat/internal/mocks"
	"realtime-chat/internal/models"
	"realtime-chat/internal/telemetry"
)

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, nil, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugAuditTestPublishes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pub := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(pub, "audit.chat", "realtime-chat", "test", zap.NewNop())
	lookup := func(connID string) (models.Session, bool) {
		if connID != "c9" {
			return models.Session{}, false
		}
		return models.Session{ConnectionID: "c9", DisplayName: "alice", CurrentRoomID: "room-1"}, true
	}
	r := gin.New()
	RegisterDebugRoutes(r, emitter, lookup, true)

	var got telemetry.AuditEnvelope
	pub.On("Publish", mock.Anything, "audit.chat", mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).(telemetry.AuditEnvelope) }).
		Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("X-Connection-ID", "c9")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	pub.AssertExpectations(t)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "c9", got.ConnectionID)
	assert.Equal(t, "audit_test", got.Payload.Action)
	assert.Equal(t, map[string]string{"online": "true", "display_name": "alice", "room_id": "room-1"}, got.Payload.Fields)
}

func TestDebugAuditTestUnknownConnection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pub := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(pub, "audit.chat", "realtime-chat", "test", zap.NewNop())
	r := gin.New()
	RegisterDebugRoutes(r, emitter, func(string) (models.Session, bool) { return models.Session{}, false }, true)

	var got telemetry.AuditEnvelope
	pub.On("Publish", mock.Anything, "audit.chat", mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).(telemetry.AuditEnvelope) }).
		Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil)
	req.Header.Set("X-Connection-ID", "gone")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"online": "false"}, got.Payload.Fields)
}

func TestDebugAuditTestWithoutEmitter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, nil, true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
