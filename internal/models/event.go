package models

import "encoding/json"

// Inbound event types.
const (
	EventJoin           = "join"
	EventSendMessage    = "send_message"
	EventShareFile      = "share_file"
	EventPrivateMessage = "private_message"
	EventEditMessage    = "edit_message"
	EventDeleteMessage  = "delete_message"
	EventReaction       = "message_reaction"
	EventRemoveReaction = "remove_reaction"
	EventTyping         = "typing"
	EventCreateRoom     = "create_room"
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventUpdateProfile  = "update_profile"
)

// Outbound event types.
const (
	EventSession         = "session"
	EventRoomList        = "room_list"
	EventUserList        = "user_list"
	EventMessageHistory  = "message_history"
	EventMessageReceived = "message_received"
	EventMessageEdited   = "message_edited"
	EventMessageDeleted  = "message_deleted"
	EventReactionChanged = "reaction_changed"
	EventTypingNames     = "typing_names"
	EventRoomCreated     = "room_created"
	EventRoomJoined      = "room_joined"
	EventRoomLeft        = "room_left"
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventUserJoinedRoom  = "user_joined_room"
	EventUserLeftRoom    = "user_left_room"
	EventProfileUpdated  = "profile_updated"
	EventActionRejected  = "action_rejected"
)

// Event is an outbound event before encoding.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Envelope is a decoded frame whose payload is still raw.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent is a small constructor for outbound events.
func NewEvent(kind string, payload any) Event {
	return Event{Type: kind, Payload: payload}
}

// Inbound payloads.

type JoinPayload struct {
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

type SendMessagePayload struct {
	Body   string `json:"body"`
	RoomID string `json:"roomId"`
}

type ShareFilePayload struct {
	Name     string `json:"name"`
	MimeType string `json:"type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
	RoomID   string `json:"roomId"`
}

type PrivateMessagePayload struct {
	ToConnectionID string `json:"toConnectionId"`
	Body           string `json:"body"`
}

type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	NewBody   string `json:"newBody"`
	RoomID    string `json:"roomId"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	RoomID    string `json:"roomId"`
}

type TypingPayload struct {
	IsTyping bool   `json:"isTyping"`
	RoomID   string `json:"roomId"`
}

type CreateRoomPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
	Password    string `json:"password,omitempty"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

// UpdateProfilePayload leaves a field unchanged when it is nil.
type UpdateProfilePayload struct {
	DisplayName *string `json:"displayName,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
}

// Outbound payloads.

type SessionPayload struct {
	ConnectionID string `json:"connectionId"`
}

type HistoryPayload struct {
	RoomID   string    `json:"roomId"`
	Messages []Message `json:"messages"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

type ReactionChangedPayload struct {
	MessageID string     `json:"messageId"`
	RoomID    string     `json:"roomId"`
	Reactions []Reaction `json:"reactions"`
}

type TypingNamesPayload struct {
	RoomID string   `json:"roomId"`
	Names  []string `json:"names"`
}

type RoomLeftPayload struct {
	RoomID string `json:"roomId"`
}

// RoomNotice announces a session entering or leaving a room. Notices are
// never appended to message history.
type RoomNotice struct {
	User   Session `json:"user"`
	RoomID string  `json:"roomId"`
}

type ActionRejectedPayload struct {
	Event     string `json:"event"`
	Reason    string `json:"reason"`
	MessageID string `json:"messageId,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
}
