package session

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"realtime-chat/internal/models"
	"realtime-chat/internal/telemetry"
)

func (c *Coordinator) newMessage(s models.Session, body, roomID string) models.Message {
	return models.Message{
		ID:                 c.newID(),
		SenderConnectionID: s.ConnectionID,
		SenderName:         s.DisplayName,
		SenderAvatar:       s.Avatar,
		Body:               body,
		Timestamp:          c.now(),
		RoomID:             roomID,
	}
}

// roomFor resolves the room an event targets. Sessions may only act in the
// room they are currently in.
func roomFor(s models.Session, requested string) (string, error) {
	if requested == "" {
		return s.CurrentRoomID, nil
	}
	if requested != s.CurrentRoomID {
		return "", ErrNotMember
	}
	return requested, nil
}

// SendMessage appends a message to the caller's room and fans it out to
// the room.
func (c *Coordinator) SendMessage(ctx context.Context, connID string, p models.SendMessagePayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	s, err := c.session(connID)
	if err != nil {
		return err
	}
	body, err := c.cleanBody(p.Body)
	if err != nil {
		return err
	}
	roomID, err := roomFor(s, p.RoomID)
	if err != nil {
		return err
	}
	return c.appendToRoom(ctx, c.newMessage(s, body, roomID))
}

// ShareFile records a file message. Only the descriptor is stored; the
// upload itself happens elsewhere.
func (c *Coordinator) ShareFile(ctx context.Context, connID string, p models.ShareFilePayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	s, err := c.session(connID)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" || strings.TrimSpace(p.URL) == "" || p.Size < 0 {
		return ErrInvalidPayload
	}
	roomID, err := roomFor(s, p.RoomID)
	if err != nil {
		return err
	}
	msg := c.newMessage(s, "Shared a file: "+name, roomID)
	msg.File = &models.FileDescriptor{Name: name, MimeType: p.MimeType, Size: p.Size, URL: p.URL}
	return c.appendToRoom(ctx, msg)
}

func (c *Coordinator) appendToRoom(ctx context.Context, msg models.Message) error {
	msg, err := call(c, ctx, "messages.append", func(ctx context.Context) (models.Message, error) {
		return c.stores.Messages.Append(ctx, msg)
	})
	if err != nil {
		return err
	}
	if _, ok := c.typing.Clear(msg.SenderConnectionID); ok {
		c.broadcastTyping(msg.RoomID)
	}
	c.out.BroadcastRoom(msg.RoomID, models.NewEvent(models.EventMessageReceived, msg))
	return nil
}

// PrivateMessage stores a message in the pair bucket of the caller and the
// recipient and delivers it to both.
func (c *Coordinator) PrivateMessage(ctx context.Context, connID string, p models.PrivateMessagePayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	s, err := c.session(connID)
	if err != nil {
		return err
	}
	if p.ToConnectionID == "" || p.ToConnectionID == connID {
		return ErrInvalidPayload
	}
	body, err := c.cleanBody(p.Body)
	if err != nil {
		return err
	}
	to, ok := c.presence.Get(p.ToConnectionID)
	if !ok {
		return ErrUserNotFound
	}

	msg := c.newMessage(s, body, models.PrivateRoomID(connID, to.ConnectionID))
	msg.IsPrivate = true
	msg.RecipientConnectionID = to.ConnectionID
	msg.RecipientName = to.DisplayName
	msg, err = call(c, ctx, "messages.append", func(ctx context.Context) (models.Message, error) {
		return c.stores.Messages.Append(ctx, msg)
	})
	if err != nil {
		return err
	}
	c.fanoutMessage(msg, models.NewEvent(models.EventPrivateMessage, msg))
	return nil
}

// fanoutMessage sends a message-scoped event to whoever can see the
// message: both parties of a private pair, or the message's room.
func (c *Coordinator) fanoutMessage(msg models.Message, event models.Event) {
	if msg.IsPrivate {
		c.out.SendTo(msg.SenderConnectionID, event)
		if msg.RecipientConnectionID != msg.SenderConnectionID {
			c.out.SendTo(msg.RecipientConnectionID, event)
		}
		return
	}
	c.out.BroadcastRoom(msg.RoomID, event)
}

// EditMessage rewrites a message body. Only the sender's connection may.
func (c *Coordinator) EditMessage(ctx context.Context, connID string, p models.EditMessagePayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	if _, err := c.session(connID); err != nil {
		return err
	}
	if p.MessageID == "" {
		return ErrInvalidPayload
	}
	body, err := c.cleanBody(p.NewBody)
	if err != nil {
		return err
	}

	unlockMsg := c.msgLocks.Lock(p.MessageID)
	defer unlockMsg()
	msg, err := call(c, ctx, "messages.edit", func(ctx context.Context) (models.Message, error) {
		return c.stores.Messages.Edit(ctx, p.MessageID, connID, body, c.now())
	})
	if err != nil {
		return err
	}
	c.fanoutMessage(msg, models.NewEvent(models.EventMessageEdited, msg))
	return nil
}

// DeleteMessage removes a message and every reaction on it. Only the
// sender's connection may.
func (c *Coordinator) DeleteMessage(ctx context.Context, connID string, p models.DeleteMessagePayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	if _, err := c.session(connID); err != nil {
		return err
	}
	if p.MessageID == "" {
		return ErrInvalidPayload
	}

	unlockMsg := c.msgLocks.Lock(p.MessageID)
	defer unlockMsg()
	msg, err := call(c, ctx, "messages.delete", func(ctx context.Context) (models.Message, error) {
		return c.stores.Messages.Delete(ctx, p.MessageID, connID)
	})
	if err != nil {
		return err
	}
	if err := c.exec(ctx, "reactions.delete_for_message", func(ctx context.Context) error {
		return c.stores.Reactions.DeleteForMessage(ctx, msg.ID)
	}); err != nil {
		c.logger.Error("orphaned reactions", zap.String("message_id", msg.ID), zap.Error(err))
	}

	c.audit.Emit(ctx, telemetry.AuditRecord{
		Action:       "message_deleted",
		Text:         "message deleted by sender",
		ConnectionID: connID,
		Fields:       map[string]string{"message_id": msg.ID, "room_id": msg.RoomID},
	})
	c.fanoutMessage(msg, models.NewEvent(models.EventMessageDeleted, models.MessageDeletedPayload{MessageID: msg.ID, RoomID: msg.RoomID}))
	return nil
}

// ToggleReaction adds the caller's vote for an emoji or takes it back.
func (c *Coordinator) ToggleReaction(ctx context.Context, connID string, p models.ReactionPayload) error {
	return c.react(ctx, connID, p, true)
}

// RemoveReaction takes the caller's vote back if there is one.
func (c *Coordinator) RemoveReaction(ctx context.Context, connID string, p models.ReactionPayload) error {
	return c.react(ctx, connID, p, false)
}

func (c *Coordinator) react(ctx context.Context, connID string, p models.ReactionPayload, toggle bool) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	s, err := c.session(connID)
	if err != nil {
		return err
	}
	emoji := strings.TrimSpace(p.Emoji)
	if p.MessageID == "" || emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiLength {
		return ErrInvalidPayload
	}

	unlockMsg := c.msgLocks.Lock(p.MessageID)
	defer unlockMsg()
	msg, err := call(c, ctx, "messages.get", func(ctx context.Context) (models.Message, error) {
		return c.stores.Messages.Get(ctx, p.MessageID)
	})
	if err != nil {
		return err
	}
	if msg.IsPrivate && !msg.Participates(connID) {
		return ErrNotMember
	}
	if !msg.IsPrivate && msg.RoomID != s.CurrentRoomID {
		return ErrNotMember
	}

	reactions, err := call(c, ctx, "reactions.vote", func(ctx context.Context) ([]models.Reaction, error) {
		if toggle {
			return c.stores.Reactions.Toggle(ctx, msg.ID, emoji, connID, s.DisplayName)
		}
		return c.stores.Reactions.Remove(ctx, msg.ID, emoji, connID)
	})
	if err != nil {
		return err
	}
	c.fanoutMessage(msg, models.NewEvent(models.EventReactionChanged, models.ReactionChangedPayload{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		Reactions: reactions,
	}))
	return nil
}

// Typing records the caller's typing state and refreshes the room's list.
func (c *Coordinator) Typing(ctx context.Context, connID string, p models.TypingPayload) error {
	unlock := c.connLocks.Lock(connID)
	defer unlock()

	s, err := c.session(connID)
	if err != nil {
		return err
	}
	roomID, err := roomFor(s, p.RoomID)
	if err != nil {
		return err
	}
	for _, room := range c.typing.Set(connID, s.DisplayName, roomID, p.IsTyping) {
		c.broadcastTyping(room)
	}
	return nil
}

func (c *Coordinator) broadcastTyping(roomID string) {
	c.out.BroadcastRoom(roomID, models.NewEvent(models.EventTypingNames, models.TypingNamesPayload{
		RoomID: roomID,
		Names:  c.typing.Names(roomID),
	}))
}
