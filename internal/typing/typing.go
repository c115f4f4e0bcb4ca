// Package typing derives per-room "who is typing" lists.
package typing

import (
	"sort"
	"sync"
	"time"
)

type marker struct {
	name   string
	roomID string
	since  time.Time
	seq    uint64
}

// Aggregator maps a connection to the room it is typing in.
type Aggregator struct {
	mu      sync.Mutex
	markers map[string]marker
	seq     uint64
	now     func() time.Time
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{markers: make(map[string]marker), now: time.Now}
}

// Set records or clears the typing marker for connID. It returns the rooms
// whose typing list changed, which is two rooms when a typist switched
// rooms without stopping first.
func (a *Aggregator) Set(connID, displayName, roomID string, isTyping bool) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, had := a.markers[connID]
	if !isTyping {
		if !had {
			return nil
		}
		delete(a.markers, connID)
		return []string{prev.roomID}
	}

	if had && prev.roomID == roomID {
		prev.name = displayName
		prev.since = a.now()
		a.markers[connID] = prev
		return []string{roomID}
	}
	a.seq++
	a.markers[connID] = marker{name: displayName, roomID: roomID, since: a.now(), seq: a.seq}
	if had {
		return []string{prev.roomID, roomID}
	}
	return []string{roomID}
}

// Names returns the display names typing in roomID in the order they
// started. The caller is included.
func (a *Aggregator) Names(roomID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var ms []marker
	for _, m := range a.markers {
		if m.roomID == roomID {
			ms = append(ms, m)
		}
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].seq < ms[j].seq })
	names := make([]string, 0, len(ms))
	for _, m := range ms {
		names = append(names, m.name)
	}
	return names
}

// Clear drops connID's marker and returns the room it was in.
func (a *Aggregator) Clear(connID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.markers[connID]
	if !ok {
		return "", false
	}
	delete(a.markers, connID)
	return m.roomID, true
}

// Sweep drops markers not refreshed within ttl and returns the affected
// rooms, each once.
func (a *Aggregator) Sweep(ttl time.Duration) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	cutoff := a.now().Add(-ttl)
	seen := map[string]bool{}
	var rooms []string
	for id, m := range a.markers {
		if m.since.Before(cutoff) {
			delete(a.markers, id)
			if !seen[m.roomID] {
				seen[m.roomID] = true
				rooms = append(rooms, m.roomID)
			}
		}
	}
	sort.Strings(rooms)
	return rooms
}
