package observability

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys    []string
	headers []map[string]string
	err     error
}

func (p *recordingPublisher) PublishWithHeaders(_ context.Context, routingKey string, _ any, headers map[string]string) error {
	p.keys = append(p.keys, routingKey)
	p.headers = append(p.headers, headers)
	return p.err
}

func TestPublishEventUsesDefaultPublisher(t *testing.T) {
	pub := &recordingPublisher{}
	SetPublisher(pub)
	t.Cleanup(func() { SetPublisher(nil) })

	err := PublishEvent(context.Background(), WSRoutingKey, WSEvent("ws_connect", ConnIdentity{ConnID: "c1"}, ""), BuildHeaders("req-1", ""))
	require.NoError(t, err)
	assert.Equal(t, []string{WSRoutingKey}, pub.keys)
	assert.Equal(t, map[string]string{"x-request-id": "req-1"}, pub.headers[0])
}

func TestPublishEventWithoutPublisherIsNoop(t *testing.T) {
	SetPublisher(nil)
	assert.NoError(t, PublishEvent(context.Background(), WSRoutingKey, nil, nil))
}

func TestWSEventDuration(t *testing.T) {
	env := WSEvent("ws_disconnect", ConnIdentity{ConnID: "c1", ConnectedAt: time.Now().Add(-2 * time.Second)}, "closed")
	ws := env.Payload.(map[string]interface{})["ws"].(map[string]interface{})
	assert.GreaterOrEqual(t, ws["duration_ms"].(int64), int64(2000))
	assert.Equal(t, "closed", ws["reason"])
}

func TestMetaFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	req.Header.Set("X-Device-Id", "phone")
	req.Header.Set("X-Request-ID", "req-9")
	meta := MetaFromRequest(req)
	assert.Equal(t, ClientMeta{DeviceID: "phone", IP: "10.0.0.1", RequestID: "req-9"}, meta)

	req = httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("X-Real-Ip", "172.16.0.3")
	assert.Equal(t, "172.16.0.3", MetaFromRequest(req).IP)

	req = httptest.NewRequest("GET", "/ws", nil)
	req.RemoteAddr = "192.168.1.5:4000"
	assert.Equal(t, "192.168.1.5", MetaFromRequest(req).IP)
}
