package models

import "time"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Session is the live state of one joined connection.
type Session struct {
	ConnectionID  string    `json:"connectionId"`
	DisplayName   string    `json:"displayName"`
	Avatar        string    `json:"avatar,omitempty"`
	Status        string    `json:"status"`
	CurrentRoomID string    `json:"currentRoomId"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// User is the durable record behind a session, kept for last-seen history.
type User struct {
	ConnectionID  string     `db:"connection_id" json:"connectionId"`
	DisplayName   string     `db:"display_name" json:"displayName"`
	Avatar        string     `db:"avatar" json:"avatar,omitempty"`
	Status        string     `db:"status" json:"status"`
	CurrentRoomID string     `db:"current_room_id" json:"currentRoomId"`
	JoinedAt      time.Time  `db:"joined_at" json:"joinedAt"`
	LastSeen      *time.Time `db:"last_seen" json:"lastSeen,omitempty"`
}

// UserFromSession builds the durable record for a live session.
func UserFromSession(s Session) User {
	return User{
		ConnectionID:  s.ConnectionID,
		DisplayName:   s.DisplayName,
		Avatar:        s.Avatar,
		Status:        s.Status,
		CurrentRoomID: s.CurrentRoomID,
		JoinedAt:      s.JoinedAt,
	}
}
