package models

import "time"

// GeneralRoomID is the room every session starts in and returns to.
const GeneralRoomID = "general"

// Room is a durable room record.
type Room struct {
	ID                  string    `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	Description         string    `db:"description" json:"description"`
	CreatorConnectionID string    `db:"creator_connection_id" json:"creatorConnectionId"`
	CreatorName         string    `db:"creator_name" json:"creatorName"`
	IsPrivate           bool      `db:"is_private" json:"isPrivate"`
	PasswordHash        string    `db:"password_hash" json:"-"`
	CreatedAt           time.Time `db:"created_at" json:"createdAt"`
	Members             []string  `db:"-" json:"members"`
}

// HasMember reports whether connID is on the roster.
func (r Room) HasMember(connID string) bool {
	for _, m := range r.Members {
		if m == connID {
			return true
		}
	}
	return false
}

// Summary builds the listing view of a room.
func (r Room) Summary() RoomSummary {
	return RoomSummary{
		ID:                  r.ID,
		Name:                r.Name,
		Description:         r.Description,
		CreatorConnectionID: r.CreatorConnectionID,
		IsPrivate:           r.IsPrivate,
		HasPassword:         r.PasswordHash != "",
		UserCount:           len(r.Members),
		CreatedAt:           r.CreatedAt,
	}
}

// RoomSummary is a room as shown in listings, with a live member count.
type RoomSummary struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	CreatorConnectionID string    `json:"creatorConnectionId"`
	IsPrivate           bool      `json:"isPrivate"`
	HasPassword         bool      `json:"hasPassword"`
	UserCount           int       `json:"userCount"`
	CreatedAt           time.Time `json:"createdAt"`
}

// GeneralRoom returns the bootstrap record of the general room.
func GeneralRoom(now time.Time) Room {
	return Room{
		ID:                  GeneralRoomID,
		Name:                "General",
		Description:         "General chat room for everyone",
		CreatorConnectionID: "system",
		CreatorName:         "System",
		CreatedAt:           now,
	}
}
