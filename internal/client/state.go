// Package client mirrors the server's outbound event stream into local
// state. Every transition is a pure merge: Apply never mutates its input.
package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"realtime-chat/internal/models"
)

var ErrUnknownEvent = errors.New("unknown event type")

// State is what a connected client knows.
type State struct {
	ConnectionID  string
	CurrentRoomID string
	Messages      []models.Message
	Private       []models.Message
	Users         []models.Session
	Rooms         []models.RoomSummary
	Typing        map[string][]string
	LastRejection *models.ActionRejectedPayload
}

// Reconnected drops everything learned on the previous connection. The
// server resends session, listings and history after the next join.
func Reconnected() State {
	return State{Typing: map[string][]string{}}
}

// ApplyFrame decodes one raw frame and applies it.
func ApplyFrame(s State, frame []byte) (State, error) {
	var env models.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return s, fmt.Errorf("decode frame: %w", err)
	}
	return Apply(s, env)
}

// Apply returns the state after env. On error s is returned unchanged.
func Apply(s State, env models.Envelope) (State, error) {
	next := s
	switch env.Type {
	case models.EventSession:
		var p models.SessionPayload
		if err := decode(env, &p); err != nil {
			return s, err
		}
		next.ConnectionID = p.ConnectionID

	case models.EventRoomList:
		var rooms []models.RoomSummary
		if err := decode(env, &rooms); err != nil {
			return s, err
		}
		next.Rooms = rooms

	case models.EventUserList:
		var users []models.Session
		if err := decode(env, &users); err != nil {
			return s, err
		}
		next.Users = users

	case models.EventMessageHistory:
		var p models.HistoryPayload
		if err := decode(env, &p); err != nil {
			return s, err
		}
		if s.CurrentRoomID != "" && p.RoomID != s.CurrentRoomID {
			return s, nil
		}
		next.CurrentRoomID = p.RoomID
		next.Messages = append([]models.Message{}, p.Messages...)

	case models.EventMessageReceived:
		var m models.Message
		if err := decode(env, &m); err != nil {
			return s, err
		}
		if m.RoomID != s.CurrentRoomID || indexOf(s.Messages, m.ID) >= 0 {
			return s, nil
		}
		next.Messages = appendCopy(s.Messages, m)

	case models.EventPrivateMessage:
		var m models.Message
		if err := decode(env, &m); err != nil {
			return s, err
		}
		if indexOf(s.Private, m.ID) >= 0 {
			return s, nil
		}
		next.Private = appendCopy(s.Private, m)

	case models.EventMessageEdited:
		var m models.Message
		if err := decode(env, &m); err != nil {
			return s, err
		}
		next.Messages = replaceMessage(s.Messages, m.ID, func(old models.Message) models.Message {
			m.Reactions = old.Reactions
			return m
		})
		next.Private = replaceMessage(s.Private, m.ID, func(old models.Message) models.Message {
			m.Reactions = old.Reactions
			return m
		})

	case models.EventMessageDeleted:
		var p models.MessageDeletedPayload
		if err := decode(env, &p); err != nil {
			return s, err
		}
		next.Messages = removeMessage(s.Messages, p.MessageID)
		next.Private = removeMessage(s.Private, p.MessageID)

	case models.EventReactionChanged:
		var p models.ReactionChangedPayload
		if err := decode(env, &p); err != nil {
			return s, err
		}
		set := func(old models.Message) models.Message {
			old.Reactions = p.Reactions
			return old
		}
		next.Messages = replaceMessage(s.Messages, p.MessageID, set)
		next.Private = replaceMessage(s.Private, p.MessageID, set)

	case models.EventTypingNames:
		var p models.TypingNamesPayload
		if err := decode(env, &p); err != nil {
			return s, err
		}
		next.Typing = copyTyping(s.Typing)
		if len(p.Names) == 0 {
			delete(next.Typing, p.RoomID)
		} else {
			next.Typing[p.RoomID] = append([]string{}, p.Names...)
		}

	case models.EventRoomJoined:
		var room models.Room
		if err := decode(env, &room); err != nil {
			return s, err
		}
		if room.ID != s.CurrentRoomID {
			next.Messages = nil
		}
		next.CurrentRoomID = room.ID

	case models.EventUserJoined, models.EventProfileUpdated:
		var u models.Session
		if err := decode(env, &u); err != nil {
			return s, err
		}
		next.Users = upsertUser(s.Users, u)

	case models.EventUserLeft:
		var u models.Session
		if err := decode(env, &u); err != nil {
			return s, err
		}
		next.Users = removeUser(s.Users, u.ConnectionID)

	case models.EventUserJoinedRoom, models.EventUserLeftRoom:
		var n models.RoomNotice
		if err := decode(env, &n); err != nil {
			return s, err
		}
		if i := userIndex(s.Users, n.User.ConnectionID); i >= 0 {
			next.Users = upsertUser(s.Users, n.User)
		}

	case models.EventActionRejected:
		var p models.ActionRejectedPayload
		if err := decode(env, &p); err != nil {
			return s, err
		}
		next.LastRejection = &p

	case models.EventRoomCreated, models.EventRoomLeft:
		// A room_list and room_joined always follow.

	default:
		return s, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Type)
	}
	return next, nil
}

// Self returns the caller's own session from the user list.
func (s State) Self() (models.Session, bool) {
	if i := userIndex(s.Users, s.ConnectionID); i >= 0 {
		return s.Users[i], true
	}
	return models.Session{}, false
}

// TypingOthers lists who is typing in roomID, without the caller.
func (s State) TypingOthers(roomID string) []string {
	names := s.Typing[roomID]
	self, ok := s.Self()
	out := make([]string, 0, len(names))
	skipped := false
	for _, n := range names {
		if ok && !skipped && n == self.DisplayName {
			skipped = true
			continue
		}
		out = append(out, n)
	}
	return out
}

func decode(env models.Envelope, v any) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return nil
}

func indexOf(msgs []models.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func appendCopy(msgs []models.Message, m models.Message) []models.Message {
	out := make([]models.Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return append(out, m)
}

func replaceMessage(msgs []models.Message, id string, fn func(models.Message) models.Message) []models.Message {
	i := indexOf(msgs, id)
	if i < 0 {
		return msgs
	}
	out := append([]models.Message{}, msgs...)
	out[i] = fn(out[i])
	return out
}

func removeMessage(msgs []models.Message, id string) []models.Message {
	i := indexOf(msgs, id)
	if i < 0 {
		return msgs
	}
	out := make([]models.Message, 0, len(msgs)-1)
	out = append(out, msgs[:i]...)
	return append(out, msgs[i+1:]...)
}

func userIndex(users []models.Session, connID string) int {
	for i := range users {
		if users[i].ConnectionID == connID {
			return i
		}
	}
	return -1
}

func upsertUser(users []models.Session, u models.Session) []models.Session {
	out := append([]models.Session{}, users...)
	if i := userIndex(out, u.ConnectionID); i >= 0 {
		out[i] = u
		return out
	}
	return append(out, u)
}

func removeUser(users []models.Session, connID string) []models.Session {
	i := userIndex(users, connID)
	if i < 0 {
		return users
	}
	out := make([]models.Session, 0, len(users)-1)
	out = append(out, users[:i]...)
	return append(out, users[i+1:]...)
}

func copyTyping(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
