package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"realtime-chat/internal/models"
	"realtime-chat/internal/presence"
	"realtime-chat/internal/repositories"
	"realtime-chat/internal/typing"
)

// recorder is a Broadcaster that keeps every frame each connection would
// have received.
type recorder struct {
	mu     sync.Mutex
	rooms  map[string]string
	frames map[string][]models.Event
}

func newRecorder() *recorder {
	return &recorder{rooms: map[string]string{}, frames: map[string][]models.Event{}}
}

func (r *recorder) Subscribe(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[connID] = roomID
}

func (r *recorder) Unsubscribe(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, connID)
}

func (r *recorder) SendTo(connID string, event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[connID] = append(r.frames[connID], event)
}

func (r *recorder) BroadcastRoom(roomID string, event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, room := range r.rooms {
		if room == roomID {
			r.frames[id] = append(r.frames[id], event)
		}
	}
}

func (r *recorder) BroadcastAll(event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.rooms {
		r.frames[id] = append(r.frames[id], event)
	}
}

func (r *recorder) events(connID, kind string) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, e := range r.frames[connID] {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) last(t *testing.T, connID, kind string) models.Event {
	t.Helper()
	evs := r.events(connID, kind)
	require.NotEmpty(t, evs, "%s never received %s", connID, kind)
	return evs[len(evs)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = map[string][]models.Event{}
}

type harness struct {
	coord     *Coordinator
	out       *recorder
	messages  *repositories.MemoryMessageRepo
	reactions *repositories.MemoryReactionRepo
	rooms     *repositories.MemoryRoomRepo
	users     *repositories.MemoryUserRepo
	presence  *presence.Table
	typing    *typing.Aggregator
}

// steppingClock advances one second per reading so timestamps are distinct.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		out:       newRecorder(),
		messages:  repositories.NewMemoryMessageRepo(),
		reactions: repositories.NewMemoryReactionRepo(),
		rooms:     repositories.NewMemoryRoomRepo(),
		users:     repositories.NewMemoryUserRepo(),
		presence:  presence.New(),
		typing:    typing.New(),
	}
	stores := Stores{Messages: h.messages, Reactions: h.reactions, Rooms: h.rooms, Users: h.users}
	opts = append([]Option{WithClock(steppingClock())}, opts...)
	h.coord = NewCoordinator(stores, h.presence, h.typing, h.out, opts...)
	require.NoError(t, h.coord.Bootstrap(context.Background()))
	return h
}

func (h *harness) join(t *testing.T, connID, name string) {
	t.Helper()
	require.NoError(t, h.coord.Join(context.Background(), connID, models.JoinPayload{DisplayName: name}))
}

func (h *harness) send(t *testing.T, connID, body string) models.Message {
	t.Helper()
	require.NoError(t, h.coord.SendMessage(context.Background(), connID, models.SendMessagePayload{Body: body}))
	return h.out.last(t, connID, models.EventMessageReceived).Payload.(models.Message)
}

func (h *harness) dispatch(t *testing.T, connID, frame string) error {
	t.Helper()
	return h.coord.Dispatch(context.Background(), connID, []byte(frame))
}

// rosterCount returns how many rosters list connID.
func (h *harness) rosterCount(t *testing.T, connID string) int {
	t.Helper()
	rooms, err := h.rooms.List(context.Background())
	require.NoError(t, err)
	n := 0
	for _, r := range rooms {
		if r.HasMember(connID) {
			n++
		}
	}
	return n
}
