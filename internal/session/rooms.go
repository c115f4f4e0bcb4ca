package session

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"realtime-chat/internal/models"
	"realtime-chat/internal/telemetry"
)

// Join creates the session for connID in the general room, or refreshes it
// when the same connection joins again.
func (c *Coordinator) Join(ctx context.Context, connID string, p models.JoinPayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	name, err := cleanName(p.DisplayName)
	if err != nil {
		return err
	}
	_, existed := c.presence.Get(connID)
	s := c.presence.Join(connID, name, strings.TrimSpace(p.Avatar))

	err = c.exec(ctx, "rooms.add_member", func(ctx context.Context) error {
		return c.stores.Rooms.AddMember(ctx, s.CurrentRoomID, connID)
	})
	if err != nil {
		if !existed {
			c.presence.Leave(connID)
		}
		return err
	}
	if err := c.exec(ctx, "users.upsert", func(ctx context.Context) error {
		return c.stores.Users.Upsert(ctx, models.UserFromSession(s))
	}); err != nil {
		c.logger.Warn("user record not saved", zap.String("connection_id", connID), zap.Error(err))
	}

	c.out.Subscribe(connID, s.CurrentRoomID)
	c.out.SendTo(connID, models.NewEvent(models.EventSession, models.SessionPayload{ConnectionID: connID}))
	c.sendRoomList(ctx, connID)
	c.broadcastUserList()
	if err := c.sendHistory(ctx, connID, s.CurrentRoomID); err != nil {
		return err
	}
	if !existed {
		c.out.BroadcastRoom(s.CurrentRoomID, models.NewEvent(models.EventUserJoined, s))
	}
	c.logger.Info("session joined", zap.String("connection_id", connID), zap.String("room_id", s.CurrentRoomID))
	return nil
}

// CreateRoom stores a new room with the caller as creator and moves the
// caller into it.
func (c *Coordinator) CreateRoom(ctx context.Context, connID string, p models.CreateRoomPayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	s, err := c.session(connID)
	if err != nil {
		return err
	}
	name, err := cleanName(p.Name)
	if err != nil {
		return err
	}
	room := models.Room{
		ID:                  "room-" + c.newID(),
		Name:                name,
		Description:         strings.TrimSpace(p.Description),
		CreatorConnectionID: connID,
		CreatorName:         s.DisplayName,
		IsPrivate:           p.IsPrivate,
		CreatedAt:           c.now(),
		Members:             []string{},
	}
	if p.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		room.PasswordHash = string(hash)
	}

	room, err = call(c, ctx, "rooms.create", func(ctx context.Context) (models.Room, error) {
		return c.stores.Rooms.Create(ctx, room)
	})
	if err != nil {
		return err
	}
	c.audit.Emit(ctx, telemetry.AuditRecord{
		Action:       "room_created",
		Text:         "room " + room.Name + " created",
		ConnectionID: connID,
		Fields:       map[string]string{"room_id": room.ID, "private": boolString(room.IsPrivate)},
	})
	c.out.SendTo(connID, models.NewEvent(models.EventRoomCreated, room))

	if _, err := c.transition(ctx, s, room.ID); err != nil {
		return err
	}
	room.Members = append(room.Members, connID)
	c.out.SendTo(connID, models.NewEvent(models.EventRoomJoined, room))
	c.out.SendTo(connID, models.NewEvent(models.EventMessageHistory, models.HistoryPayload{RoomID: room.ID, Messages: []models.Message{}}))
	return nil
}

// JoinRoom moves the caller into another room. Private rooms admit current
// roster members and anyone presenting the password.
func (c *Coordinator) JoinRoom(ctx context.Context, connID string, p models.JoinRoomPayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	s, err := c.session(connID)
	if err != nil {
		return err
	}
	if p.RoomID == "" {
		return ErrInvalidPayload
	}
	room, err := call(c, ctx, "rooms.get", func(ctx context.Context) (models.Room, error) {
		return c.stores.Rooms.Get(ctx, p.RoomID)
	})
	if err != nil {
		return err
	}
	if !admits(room, connID, p.Password) {
		return ErrNotMember
	}

	if s.CurrentRoomID != room.ID {
		if _, err := c.transition(ctx, s, room.ID); err != nil {
			return err
		}
		if !room.HasMember(connID) {
			room.Members = append(room.Members, connID)
		}
	}
	c.out.SendTo(connID, models.NewEvent(models.EventRoomJoined, room))
	return c.sendHistory(ctx, connID, room.ID)
}

// admits reports whether connID may enter room. Private rooms take current
// members or a caller holding the password; the creator has no standing
// once they have left.
func admits(room models.Room, connID, password string) bool {
	if !room.IsPrivate || room.HasMember(connID) {
		return true
	}
	if room.PasswordHash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(password)) == nil
}

// LeaveRoom returns the caller to the general room.
func (c *Coordinator) LeaveRoom(ctx context.Context, connID string, p models.LeaveRoomPayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	s, err := c.session(connID)
	if err != nil {
		return err
	}
	if p.RoomID == "" || p.RoomID == models.GeneralRoomID {
		return ErrInvalidPayload
	}
	if p.RoomID != s.CurrentRoomID {
		return ErrNotMember
	}
	general, err := call(c, ctx, "rooms.get", func(ctx context.Context) (models.Room, error) {
		return c.stores.Rooms.Get(ctx, models.GeneralRoomID)
	})
	if err != nil {
		return err
	}
	if _, err := c.transition(ctx, s, models.GeneralRoomID); err != nil {
		return err
	}
	if !general.HasMember(connID) {
		general.Members = append(general.Members, connID)
	}
	c.out.SendTo(connID, models.NewEvent(models.EventRoomLeft, models.RoomLeftPayload{RoomID: p.RoomID}))
	c.out.SendTo(connID, models.NewEvent(models.EventRoomJoined, general))
	return c.sendHistory(ctx, connID, models.GeneralRoomID)
}

// transition moves s from its current room to target: old roster, new
// roster, session, notices, then the global room listing. A failure on the
// new roster puts the connection back on the old one.
func (c *Coordinator) transition(ctx context.Context, s models.Session, target string) (models.Session, error) {
	old := s.CurrentRoomID
	connID := s.ConnectionID

	if err := c.exec(ctx, "rooms.remove_member", func(ctx context.Context) error {
		return c.stores.Rooms.RemoveMember(ctx, old, connID)
	}); err != nil {
		return s, err
	}
	if err := c.exec(ctx, "rooms.add_member", func(ctx context.Context) error {
		return c.stores.Rooms.AddMember(ctx, target, connID)
	}); err != nil {
		if rbErr := c.exec(ctx, "rooms.add_member", func(ctx context.Context) error {
			return c.stores.Rooms.AddMember(ctx, old, connID)
		}); rbErr != nil {
			c.logger.Error("room transition rollback failed", zap.String("connection_id", connID), zap.String("room_id", old), zap.Error(rbErr))
		}
		return s, err
	}

	moved, err := c.presence.SetRoom(connID, target)
	if err != nil {
		return s, err
	}
	if err := c.exec(ctx, "users.set_current_room", func(ctx context.Context) error {
		return c.stores.Users.SetCurrentRoom(ctx, connID, target)
	}); err != nil {
		c.logger.Warn("user room not saved", zap.String("connection_id", connID), zap.Error(err))
	}

	if room, ok := c.typing.Clear(connID); ok {
		c.broadcastTyping(room)
	}
	c.out.Subscribe(connID, target)
	c.out.BroadcastRoom(old, models.NewEvent(models.EventUserLeftRoom, models.RoomNotice{User: moved, RoomID: old}))
	c.out.BroadcastRoom(target, models.NewEvent(models.EventUserJoinedRoom, models.RoomNotice{User: moved, RoomID: target}))
	c.broadcastRoomList(ctx)
	c.logger.Debug("room transition", zap.String("connection_id", connID), zap.String("from", old), zap.String("to", target))
	return moved, nil
}

// UpdateProfile changes the caller's display name and/or avatar.
func (c *Coordinator) UpdateProfile(ctx context.Context, connID string, p models.UpdateProfilePayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	if _, err := c.session(connID); err != nil {
		return err
	}
	if p.DisplayName == nil && p.Avatar == nil {
		return ErrInvalidPayload
	}
	if p.DisplayName != nil {
		name, err := cleanName(*p.DisplayName)
		if err != nil {
			return err
		}
		p.DisplayName = &name
	}
	s, err := c.presence.UpdateProfile(connID, p.DisplayName, p.Avatar)
	if err != nil {
		return ErrDisconnected
	}
	if err := c.exec(ctx, "users.upsert", func(ctx context.Context) error {
		return c.stores.Users.Upsert(ctx, models.UserFromSession(s))
	}); err != nil {
		c.logger.Warn("user record not saved", zap.String("connection_id", connID), zap.Error(err))
	}

	c.broadcastUserList()
	c.out.BroadcastAll(models.NewEvent(models.EventProfileUpdated, s))
	return nil
}

// Disconnect tears down everything connID left behind. It keeps going past
// store failures so the live tables never hold a dead connection.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	s, ok := c.presence.Get(connID)
	if !ok {
		c.out.Unsubscribe(connID)
		return nil
	}

	var errs []error
	if room, ok := c.typing.Clear(connID); ok {
		c.broadcastTyping(room)
	}
	if err := c.exec(ctx, "users.mark_offline", func(ctx context.Context) error {
		return c.stores.Users.MarkOffline(ctx, connID, c.now())
	}); err != nil {
		errs = append(errs, err)
	}
	if _, err := call(c, ctx, "rooms.remove_member_everywhere", func(ctx context.Context) ([]string, error) {
		return c.stores.Rooms.RemoveMemberEverywhere(ctx, connID)
	}); err != nil {
		errs = append(errs, err)
	}

	left, _ := c.presence.Leave(connID)
	c.out.Unsubscribe(connID)
	c.out.BroadcastRoom(s.CurrentRoomID, models.NewEvent(models.EventUserLeft, left))
	c.broadcastUserList()
	c.broadcastRoomList(ctx)
	c.logger.Info("session left", zap.String("connection_id", connID), zap.String("room_id", s.CurrentRoomID))
	return errors.Join(errs...)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
