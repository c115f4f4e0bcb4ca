package models

import (
	"sort"
	"strings"
	"time"
)

// FileDescriptor describes a shared file attached to a message.
type FileDescriptor struct {
	Name     string `db:"file_name" json:"name"`
	MimeType string `db:"file_type" json:"type"`
	Size     int64  `db:"file_size" json:"size"`
	URL      string `db:"file_url" json:"url"`
}

// Message represents a chat message in a room or a private pair.
type Message struct {
	ID                    string          `db:"id" json:"id"`
	SenderConnectionID    string          `db:"sender_connection_id" json:"senderConnectionId"`
	SenderName            string          `db:"sender_name" json:"senderName"`
	SenderAvatar          string          `db:"sender_avatar" json:"senderAvatar,omitempty"`
	Body                  string          `db:"body" json:"body"`
	Timestamp             time.Time       `db:"created_at" json:"timestamp"`
	RoomID                string          `db:"room_id" json:"roomId"`
	IsPrivate             bool            `db:"is_private" json:"isPrivate"`
	RecipientConnectionID string          `db:"recipient_connection_id" json:"recipientConnectionId,omitempty"`
	RecipientName         string          `db:"recipient_name" json:"recipientName,omitempty"`
	Edited                bool            `db:"edited" json:"edited"`
	EditedAt              *time.Time      `db:"edited_at" json:"editTimestamp,omitempty"`
	File                  *FileDescriptor `db:"-" json:"file,omitempty"`
	Reactions             []Reaction      `db:"-" json:"reactions,omitempty"`
}

// PrivateRoomID returns the history bucket shared by both directions of a
// private conversation.
func PrivateRoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return "private_" + strings.Join(ids, "_")
}

// IsPrivateRoomID reports whether id names a private pair bucket.
func IsPrivateRoomID(id string) bool {
	return strings.HasPrefix(id, "private_")
}

// Participates reports whether connID is the sender or recipient.
func (m Message) Participates(connID string) bool {
	return m.SenderConnectionID == connID || m.RecipientConnectionID == connID
}
