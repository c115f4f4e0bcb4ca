package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realtime-chat/internal/config"
	"realtime-chat/internal/presence"
	"realtime-chat/internal/rabbitmq"
	"realtime-chat/internal/repositories"
	"realtime-chat/internal/session"
	"realtime-chat/internal/telemetry"
	"realtime-chat/internal/typing"
	"realtime-chat/internal/ws"
)

func testConfig() config.Config {
	return config.Config{
		ServiceName:     "realtime-chat",
		Environment:     "test",
		StoreTimeout:    time.Second,
		HistoryLimit:    100,
		MaxMessageLen:   2000,
		EventRate:       20,
		EventBurst:      40,
		SendBuffer:      16,
		TypingTTL:       time.Second,
		ShutdownTimeout: time.Second,
	}
}

func TestBuildStoresMemory(t *testing.T) {
	stores, closeStores, err := buildStores(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer closeStores()

	assert.IsType(t, &repositories.MemoryMessageRepo{}, stores.Messages)
	assert.IsType(t, &repositories.MemoryReactionRepo{}, stores.Reactions)
}

func TestBuildStoresRedisReactions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	stores, closeStores, err := buildStores(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeStores()

	assert.IsType(t, &repositories.RedisReactionRepo{}, stores.Reactions)
	assert.IsType(t, &repositories.MemoryRoomRepo{}, stores.Rooms)
}

func TestBuildStoresRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	cfg := testConfig()
	cfg.RedisAddr = addr
	cfg.StoreTimeout = 200 * time.Millisecond

	_, _, err := buildStores(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "redis ping")
}

func TestRouterServesHealth(t *testing.T) {
	cfg := testConfig()
	logger := zap.NewNop()
	stores, closeStores, err := buildStores(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer closeStores()

	hub := ws.NewHub(logger)
	coord := session.NewCoordinator(stores, presence.New(), typing.New(), hub)
	require.NoError(t, coord.Bootstrap(context.Background()))
	audit := telemetry.NewAuditEmitter(rabbitmq.NewPublisher("", "chat.events", logger), cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger)
	router := newRouter(cfg, logger, coord, ws.NewHandler(hub, coord, ws.Options{}, logger), audit)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend":"memory"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"general"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
