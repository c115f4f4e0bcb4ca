package ws

import (
	"time"

	"realtime-chat/internal/observability"
)

type ConnInfo struct {
	ConnID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) identity(displayName string) observability.ConnIdentity {
	return observability.ConnIdentity{
		ConnID:      i.ConnID,
		DisplayName: displayName,
		DeviceID:    i.DeviceID,
		IP:          i.IP,
		ConnectedAt: i.ConnectedAt,
	}
}
