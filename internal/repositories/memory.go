package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"realtime-chat/internal/models"
)

// The memory backends serve single-process deployments without Postgres
// and the engine's tests. Each one guards its state with a single mutex,
// so every method is one atomic step.

// MemoryMessageRepo keeps messages in insertion order.
type MemoryMessageRepo struct {
	mu   sync.RWMutex
	msgs []models.Message
}

// NewMemoryMessageRepo constructs an empty MemoryMessageRepo.
func NewMemoryMessageRepo() *MemoryMessageRepo {
	return &MemoryMessageRepo{}
}

func (r *MemoryMessageRepo) indexOf(id string) int {
	for i := range r.msgs {
		if r.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *MemoryMessageRepo) Append(_ context.Context, msg models.Message) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.Reactions = nil
	r.msgs = append(r.msgs, msg)
	return msg, nil
}

func (r *MemoryMessageRepo) Get(_ context.Context, messageID string) (models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(messageID)
	if i < 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return r.msgs[i], nil
}

func (r *MemoryMessageRepo) History(_ context.Context, roomID string, limit int) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.Message{}
	for _, msg := range r.msgs {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *MemoryMessageRepo) Edit(_ context.Context, messageID, requesterID, body string, at time.Time) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(messageID)
	if i < 0 {
		return models.Message{}, ErrMessageNotFound
	}
	if r.msgs[i].SenderConnectionID != requesterID {
		return models.Message{}, ErrNotOwner
	}
	r.msgs[i].Body = body
	r.msgs[i].Edited = true
	r.msgs[i].EditedAt = &at
	return r.msgs[i], nil
}

func (r *MemoryMessageRepo) Delete(_ context.Context, messageID, requesterID string) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(messageID)
	if i < 0 {
		return models.Message{}, ErrMessageNotFound
	}
	msg := r.msgs[i]
	if msg.SenderConnectionID != requesterID {
		return models.Message{}, ErrNotOwner
	}
	r.msgs = append(r.msgs[:i], r.msgs[i+1:]...)
	return msg, nil
}

func (r *MemoryMessageRepo) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.msgs), nil
}

// MemoryReactionRepo keeps votes per message in vote order.
type MemoryReactionRepo struct {
	mu    sync.Mutex
	votes map[string][]models.ReactionVote
}

// NewMemoryReactionRepo constructs an empty MemoryReactionRepo.
func NewMemoryReactionRepo() *MemoryReactionRepo {
	return &MemoryReactionRepo{votes: map[string][]models.ReactionVote{}}
}

func (r *MemoryReactionRepo) Toggle(_ context.Context, messageID, emoji, voterID, voterName string) ([]models.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.drop(messageID, emoji, voterID) {
		r.votes[messageID] = append(r.votes[messageID], models.ReactionVote{
			MessageID: messageID, Emoji: emoji, VoterID: voterID, VoterName: voterName,
		})
	}
	return models.AggregateVotes(r.votes[messageID]), nil
}

func (r *MemoryReactionRepo) Remove(_ context.Context, messageID, emoji, voterID string) ([]models.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(messageID, emoji, voterID)
	return models.AggregateVotes(r.votes[messageID]), nil
}

// drop removes one vote and reports whether it existed. Caller holds mu.
func (r *MemoryReactionRepo) drop(messageID, emoji, voterID string) bool {
	votes := r.votes[messageID]
	for i, v := range votes {
		if v.Emoji == emoji && v.VoterID == voterID {
			votes = append(votes[:i:i], votes[i+1:]...)
			if len(votes) == 0 {
				delete(r.votes, messageID)
			} else {
				r.votes[messageID] = votes
			}
			return true
		}
	}
	return false
}

func (r *MemoryReactionRepo) ForMessage(_ context.Context, messageID string) ([]models.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.AggregateVotes(r.votes[messageID]), nil
}

func (r *MemoryReactionRepo) ForMessages(_ context.Context, messageIDs []string) (map[string][]models.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string][]models.Reaction{}
	for _, id := range messageIDs {
		if votes, ok := r.votes[id]; ok {
			out[id] = models.AggregateVotes(votes)
		}
	}
	return out, nil
}

func (r *MemoryReactionRepo) DeleteForMessage(_ context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.votes, messageID)
	return nil
}

// MemoryRoomRepo keeps rooms in creation order.
type MemoryRoomRepo struct {
	mu    sync.RWMutex
	order []string
	rooms map[string]*models.Room
}

// NewMemoryRoomRepo constructs an empty MemoryRoomRepo.
func NewMemoryRoomRepo() *MemoryRoomRepo {
	return &MemoryRoomRepo{rooms: map[string]*models.Room{}}
}

func cloneRoom(room *models.Room) models.Room {
	out := *room
	out.Members = append([]string{}, room.Members...)
	return out
}

func (r *MemoryRoomRepo) Create(_ context.Context, room models.Room) (models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := room
	stored.Members = append([]string{}, room.Members...)
	if _, ok := r.rooms[room.ID]; !ok {
		r.order = append(r.order, room.ID)
	}
	r.rooms[room.ID] = &stored
	return cloneRoom(&stored), nil
}

func (r *MemoryRoomRepo) Ensure(ctx context.Context, room models.Room) error {
	r.mu.RLock()
	_, ok := r.rooms[room.ID]
	r.mu.RUnlock()
	if ok {
		return nil
	}
	_, err := r.Create(ctx, room)
	return err
}

func (r *MemoryRoomRepo) Get(_ context.Context, roomID string) (models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (r *MemoryRoomRepo) List(context.Context) ([]models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Room, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneRoom(r.rooms[id]))
	}
	return out, nil
}

func (r *MemoryRoomRepo) AddMember(_ context.Context, roomID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if !room.HasMember(connID) {
		room.Members = append(room.Members, connID)
	}
	return nil
}

func (r *MemoryRoomRepo) RemoveMember(_ context.Context, roomID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.Members = without(room.Members, connID)
	}
	return nil
}

func (r *MemoryRoomRepo) RemoveMemberEverywhere(_ context.Context, connID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for _, id := range r.order {
		room := r.rooms[id]
		if room.HasMember(connID) {
			room.Members = without(room.Members, connID)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func (r *MemoryRoomRepo) ClearMembers(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		room.Members = nil
	}
	return nil
}

func (r *MemoryRoomRepo) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), nil
}

func without(list []string, item string) []string {
	out := list[:0]
	for _, v := range list {
		if v != item {
			out = append(out, v)
		}
	}
	return out
}

// MemoryUserRepo keeps durable user records in a map.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemoryUserRepo constructs an empty MemoryUserRepo.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: map[string]models.User{}}
}

func (r *MemoryUserRepo) Upsert(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[user.ConnectionID]; ok {
		user.JoinedAt = existing.JoinedAt
		user.LastSeen = existing.LastSeen
	}
	r.users[user.ConnectionID] = user
	return nil
}

func (r *MemoryUserRepo) SetCurrentRoom(_ context.Context, connID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[connID]; ok {
		user.CurrentRoomID = roomID
		r.users[connID] = user
	}
	return nil
}

func (r *MemoryUserRepo) MarkOffline(_ context.Context, connID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[connID]; ok {
		user.Status = models.StatusOffline
		user.LastSeen = &at
		r.users[connID] = user
	}
	return nil
}

func (r *MemoryUserRepo) MarkAllOffline(_ context.Context, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, user := range r.users {
		if user.Status == models.StatusOnline {
			user.Status = models.StatusOffline
			user.LastSeen = &at
			r.users[id] = user
			n++
		}
	}
	return n, nil
}

func (r *MemoryUserRepo) CountOnline(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, user := range r.users {
		if user.Status == models.StatusOnline {
			n++
		}
	}
	return n, nil
}

// Lookup returns the stored record for connID.
func (r *MemoryUserRepo) Lookup(connID string) (models.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[connID]
	return user, ok
}

var (
	_ MessageRepository  = (*MemoryMessageRepo)(nil)
	_ ReactionRepository = (*MemoryReactionRepo)(nil)
	_ RoomRepository     = (*MemoryRoomRepo)(nil)
	_ UserRepository     = (*MemoryUserRepo)(nil)
	_ MessageRepository  = (*MessageRepo)(nil)
	_ ReactionRepository = (*ReactionRepo)(nil)
	_ RoomRepository     = (*RoomRepo)(nil)
	_ UserRepository     = (*UserRepo)(nil)
)
