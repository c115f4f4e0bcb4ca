package models

// HealthReport is the body of the health endpoint.
type HealthReport struct {
	Status      string `json:"status"`
	Messages    int    `json:"messages"`
	Rooms       int    `json:"rooms"`
	OnlineUsers int    `json:"onlineUsers"`
	Sessions    int    `json:"sessions"`
}
