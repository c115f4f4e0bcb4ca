// Package presence tracks which connections are online and where they are.
package presence

import (
	"errors"
	"sort"
	"sync"
	"time"

	"realtime-chat/internal/models"
)

var ErrNoSession = errors.New("no active session")

// Table is the live connection -> session map. It is never persisted.
type Table struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	now      func() time.Time
}

// New returns an empty Table.
func New() *Table {
	return &Table{sessions: make(map[string]models.Session), now: time.Now}
}

// Join creates the session for connID in the general room. Joining again
// with the same connID refreshes the profile and keeps the current room.
func (t *Table) Join(connID, displayName, avatar string) models.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[connID]
	if !ok {
		s = models.Session{ConnectionID: connID, CurrentRoomID: models.GeneralRoomID}
	}
	s.DisplayName = displayName
	s.Avatar = avatar
	s.Status = models.StatusOnline
	s.JoinedAt = t.now()
	t.sessions[connID] = s
	return s
}

// Leave evicts connID and returns its last state marked offline.
func (t *Table) Leave(connID string) (models.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[connID]
	if !ok {
		return models.Session{}, false
	}
	delete(t.sessions, connID)
	s.Status = models.StatusOffline
	return s, true
}

// UpdateProfile changes the non-nil fields.
func (t *Table) UpdateProfile(connID string, displayName, avatar *string) (models.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[connID]
	if !ok {
		return models.Session{}, ErrNoSession
	}
	if displayName != nil {
		s.DisplayName = *displayName
	}
	if avatar != nil {
		s.Avatar = *avatar
	}
	t.sessions[connID] = s
	return s, nil
}

// SetRoom moves connID to roomID.
func (t *Table) SetRoom(connID, roomID string) (models.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[connID]
	if !ok {
		return models.Session{}, ErrNoSession
	}
	s.CurrentRoomID = roomID
	t.sessions[connID] = s
	return s, nil
}

// Get returns the session for connID.
func (t *Table) Get(connID string) (models.Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[connID]
	return s, ok
}

// List returns every session ordered by last join time.
func (t *Table) List() []models.Session {
	t.mu.RLock()
	out := make([]models.Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ConnectionID < out[j].ConnectionID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// InRoom returns the connection ids currently in roomID.
func (t *Table) InRoom(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []string
	for id, s := range t.sessions {
		if s.CurrentRoomID == roomID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
