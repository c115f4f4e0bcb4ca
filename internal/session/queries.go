package session

import (
	"context"

	"go.uber.org/zap"

	"realtime-chat/internal/models"
)

// History returns the most recent messages of a room, oldest first, with
// their reactions attached.
func (c *Coordinator) History(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs, err := call(c, ctx, "messages.history", func(ctx context.Context) ([]models.Message, error) {
		return c.stores.Messages.History(ctx, roomID, c.historyLimit)
	})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return []models.Message{}, nil
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	byMessage, err := call(c, ctx, "reactions.for_messages", func(ctx context.Context) (map[string][]models.Reaction, error) {
		return c.stores.Reactions.ForMessages(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if rs, ok := byMessage[msgs[i].ID]; ok {
			msgs[i].Reactions = rs
		} else {
			msgs[i].Reactions = []models.Reaction{}
		}
	}
	return msgs, nil
}

// OnlineUsers lists live sessions in join order.
func (c *Coordinator) OnlineUsers() []models.Session {
	return c.presence.List()
}

// RoomList returns listing summaries with live member counts.
func (c *Coordinator) RoomList(ctx context.Context) ([]models.RoomSummary, error) {
	rooms, err := call(c, ctx, "rooms.list", c.stores.Rooms.List)
	if err != nil {
		return nil, err
	}
	out := make([]models.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	return out, nil
}

// Reactions returns the aggregate for one message.
func (c *Coordinator) Reactions(ctx context.Context, messageID string) ([]models.Reaction, error) {
	if _, err := call(c, ctx, "messages.get", func(ctx context.Context) (models.Message, error) {
		return c.stores.Messages.Get(ctx, messageID)
	}); err != nil {
		return nil, err
	}
	return call(c, ctx, "reactions.for_message", func(ctx context.Context) ([]models.Reaction, error) {
		return c.stores.Reactions.ForMessage(ctx, messageID)
	})
}

// Health counts what the stores hold. Any store failure is returned.
func (c *Coordinator) Health(ctx context.Context) (models.HealthReport, error) {
	report := models.HealthReport{Status: "ok", Sessions: c.presence.Len()}
	var err error
	if report.Messages, err = call(c, ctx, "messages.count", c.stores.Messages.Count); err != nil {
		return report, err
	}
	if report.Rooms, err = call(c, ctx, "rooms.count", c.stores.Rooms.Count); err != nil {
		return report, err
	}
	if report.OnlineUsers, err = call(c, ctx, "users.count_online", c.stores.Users.CountOnline); err != nil {
		return report, err
	}
	return report, nil
}

func (c *Coordinator) sendHistory(ctx context.Context, connID, roomID string) error {
	msgs, err := c.History(ctx, roomID)
	if err != nil {
		return err
	}
	c.out.SendTo(connID, models.NewEvent(models.EventMessageHistory, models.HistoryPayload{RoomID: roomID, Messages: msgs}))
	return nil
}

func (c *Coordinator) sendRoomList(ctx context.Context, connID string) {
	list, err := c.RoomList(ctx)
	if err != nil {
		c.logger.Warn("room list unavailable", zap.String("connection_id", connID), zap.Error(err))
		return
	}
	c.out.SendTo(connID, models.NewEvent(models.EventRoomList, list))
}

func (c *Coordinator) broadcastRoomList(ctx context.Context) {
	list, err := c.RoomList(ctx)
	if err != nil {
		c.logger.Warn("room list unavailable", zap.Error(err))
		return
	}
	c.out.BroadcastAll(models.NewEvent(models.EventRoomList, list))
}

func (c *Coordinator) broadcastUserList() {
	c.out.BroadcastAll(models.NewEvent(models.EventUserList, c.presence.List()))
}

// Lookup returns the live session of connID.
func (c *Coordinator) Lookup(connID string) (models.Session, bool) {
	return c.presence.Get(connID)
}
