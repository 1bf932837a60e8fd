package ws

import (
	"sort"
	"sync"

	"github.com/gorilla/websocket"
)

// RoomObserver hears when a room gains its first local member and loses its
// last one. Calls are serialised and alternate per room (active, idle,
// active, ...). They run outside the membership lock.
type RoomObserver interface {
	RoomActive(roomID int64)
	RoomIdle(roomID int64)
}

// Registry maps live connections to the rooms they joined. A connection's
// room set is only changed by that connection's own goroutines (join/leave
// from its dispatcher, Unregister from its reader).
type Registry struct {
	mu       sync.RWMutex
	conns    map[*Conn]struct{}
	rooms    map[int64]map[*Conn]struct{} // roomID -> members
	observer RoomObserver
	buffer   int

	// obsMu orders observer calls; observed holds the rooms last reported
	// active.
	obsMu    sync.Mutex
	observed map[int64]struct{}
}

func NewRegistry(sendBuffer int) *Registry {
	return &Registry{
		conns:    make(map[*Conn]struct{}),
		rooms:    make(map[int64]map[*Conn]struct{}),
		buffer:   sendBuffer,
		observed: make(map[int64]struct{}),
	}
}

// SetObserver must be called before the first Register.
func (r *Registry) SetObserver(o RoomObserver) { r.observer = o }

// Register adds a connection for an already verified identity with an empty
// room set.
func (r *Registry) Register(userID string, rawConn *websocket.Conn) *Conn {
	c := newConn(userID, rawConn, r.buffer)
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
	return c
}

// Join is idempotent. It reports whether the room was newly added; joining
// through an unregistered connection is a no-op.
func (r *Registry) Join(c *Conn, roomID int64) bool {
	r.mu.Lock()
	if _, ok := r.conns[c]; !ok {
		r.mu.Unlock()
		return false
	}
	if _, ok := c.rooms[roomID]; ok {
		r.mu.Unlock()
		return false
	}
	c.rooms[roomID] = struct{}{}
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*Conn]struct{})
		r.rooms[roomID] = members
	}
	members[c] = struct{}{}
	r.mu.Unlock()

	// every join goes through notify so that it returns only once the
	// observer has seen the room active
	r.notify(roomID)
	return true
}

// Leave is idempotent. It reports whether the room was removed.
func (r *Registry) Leave(c *Conn, roomID int64) bool {
	r.mu.Lock()
	if _, ok := c.rooms[roomID]; !ok {
		r.mu.Unlock()
		return false
	}
	idle := r.removeLocked(c, roomID)
	r.mu.Unlock()

	if idle {
		r.notify(roomID)
	}
	return true
}

// Unregister drops the connection and all its memberships. Broadcasts that
// already enumerated it may still try to send; Send then fails quietly.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	if _, ok := r.conns[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, c)
	var idle []int64
	for roomID := range c.rooms {
		if r.removeLocked(c, roomID) {
			idle = append(idle, roomID)
		}
	}
	r.mu.Unlock()

	r.notify(idle...)
}

// notify brings the observer in line with the rooms' current occupancy.
// Deciding on current state under obsMu means a join racing its own
// connection's unregister cannot leave an empty room reported active.
func (r *Registry) notify(roomIDs ...int64) {
	if r.observer == nil || len(roomIDs) == 0 {
		return
	}
	r.obsMu.Lock()
	defer r.obsMu.Unlock()

	for _, id := range roomIDs {
		r.mu.RLock()
		occupied := len(r.rooms[id]) > 0
		r.mu.RUnlock()

		_, reported := r.observed[id]
		switch {
		case occupied && !reported:
			r.observed[id] = struct{}{}
			r.observer.RoomActive(id)
		case !occupied && reported:
			delete(r.observed, id)
			r.observer.RoomIdle(id)
		}
	}
}

func (r *Registry) removeLocked(c *Conn, roomID int64) (idle bool) {
	delete(c.rooms, roomID)
	members := r.rooms[roomID]
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, roomID)
		return true
	}
	return false
}

// MembersOf snapshots the room's members.
func (r *Registry) MembersOf(roomID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[roomID]
	out := make([]*Conn, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Rooms returns the connection's rooms in ascending order.
func (r *Registry) Rooms(c *Conn) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RoomsOf returns the union of rooms joined by the user's connections.
func (r *Registry) RoomsOf(userID string) []int64 {
	r.mu.RLock()
	seen := make(map[int64]struct{})
	for c := range r.conns {
		if c.userID != userID {
			continue
		}
		for id := range c.rooms {
			seen[id] = struct{}{}
		}
	}
	r.mu.RUnlock()

	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActiveRooms lists rooms with at least one member, ascending.
func (r *Registry) ActiveRooms() []int64 {
	r.mu.RLock()
	out := make([]int64, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes every registered connection; their readers unregister
// them.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}
