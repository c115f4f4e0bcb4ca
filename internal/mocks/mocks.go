package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"realtime-chat/internal/models"
	"realtime-chat/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, messageID, requesterID, body string, at time.Time) (models.Message, error) {
	args := m.Called(ctx, messageID, requesterID, body, at)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Delete(ctx context.Context, messageID, requesterID string) (models.Message, error) {
	args := m.Called(ctx, messageID, requesterID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) Toggle(ctx context.Context, messageID, emoji, voterID, voterName string) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID, emoji, voterID, voterName)
	var out []models.Reaction
	if val := args.Get(0); val != nil {
		out = val.([]models.Reaction)
	}
	return out, args.Error(1)
}

func (m *ReactionRepositoryMock) Remove(ctx context.Context, messageID, emoji, voterID string) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID, emoji, voterID)
	var out []models.Reaction
	if val := args.Get(0); val != nil {
		out = val.([]models.Reaction)
	}
	return out, args.Error(1)
}

func (m *ReactionRepositoryMock) ForMessage(ctx context.Context, messageID string) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID)
	var out []models.Reaction
	if val := args.Get(0); val != nil {
		out = val.([]models.Reaction)
	}
	return out, args.Error(1)
}

func (m *ReactionRepositoryMock) ForMessages(ctx context.Context, messageIDs []string) (map[string][]models.Reaction, error) {
	args := m.Called(ctx, messageIDs)
	var out map[string][]models.Reaction
	if val := args.Get(0); val != nil {
		out = val.(map[string][]models.Reaction)
	}
	return out, args.Error(1)
}

func (m *ReactionRepositoryMock) DeleteForMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) Create(ctx context.Context, room models.Room) (models.Room, error) {
	args := m.Called(ctx, room)
	var out models.Room
	if val := args.Get(0); val != nil {
		out = val.(models.Room)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) Ensure(ctx context.Context, room models.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepositoryMock) Get(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var out models.Room
	if val := args.Get(0); val != nil {
		out = val.(models.Room)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) List(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	var out []models.Room
	if val := args.Get(0); val != nil {
		out = val.([]models.Room)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) AddMember(ctx context.Context, roomID, connID string) error {
	args := m.Called(ctx, roomID, connID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) RemoveMember(ctx context.Context, roomID, connID string) error {
	args := m.Called(ctx, roomID, connID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) RemoveMemberEverywhere(ctx context.Context, connID string) ([]string, error) {
	args := m.Called(ctx, connID)
	var out []string
	if val := args.Get(0); val != nil {
		out = val.([]string)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) ClearMembers(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *RoomRepositoryMock) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Upsert(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepositoryMock) SetCurrentRoom(ctx context.Context, connID, roomID string) error {
	args := m.Called(ctx, connID, roomID)
	return args.Error(0)
}

func (m *UserRepositoryMock) MarkOffline(ctx context.Context, connID string, at time.Time) error {
	args := m.Called(ctx, connID, at)
	return args.Error(0)
}

func (m *UserRepositoryMock) MarkAllOffline(ctx context.Context, at time.Time) (int, error) {
	args := m.Called(ctx, at)
	return args.Int(0), args.Error(1)
}

func (m *UserRepositoryMock) CountOnline(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// QueriesMock stands in for the coordinator behind the HTTP query handler.
type QueriesMock struct {
	mock.Mock
}

func (m *QueriesMock) History(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

func (m *QueriesMock) OnlineUsers() []models.Session {
	args := m.Called()
	var out []models.Session
	if val := args.Get(0); val != nil {
		out = val.([]models.Session)
	}
	return out
}

func (m *QueriesMock) RoomList(ctx context.Context) ([]models.RoomSummary, error) {
	args := m.Called(ctx)
	var out []models.RoomSummary
	if val := args.Get(0); val != nil {
		out = val.([]models.RoomSummary)
	}
	return out, args.Error(1)
}

func (m *QueriesMock) Reactions(ctx context.Context, messageID string) ([]models.Reaction, error) {
	args := m.Called(ctx, messageID)
	var out []models.Reaction
	if val := args.Get(0); val != nil {
		out = val.([]models.Reaction)
	}
	return out, args.Error(1)
}

func (m *QueriesMock) Health(ctx context.Context) (models.HealthReport, error) {
	args := m.Called(ctx)
	var out models.HealthReport
	if val := args.Get(0); val != nil {
		out = val.(models.HealthReport)
	}
	return out, args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ReactionRepository = (*ReactionRepositoryMock)(nil)
var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
