package rooms

import "sync"

// Member is a live connection as seen by the registry. Send must not block:
// implementations buffer internally and report false when the buffer is full.
type Member interface {
	ID() string
	Send(payload []byte) bool
}

// Registry maps workspace ids to the set of connections joined to them.
// A connection belongs to at most one room at a time; rooms are created
// lazily on first join and removed when their last member leaves.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[Member]struct{}
	byConn map[Member]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[Member]struct{}),
		byConn: make(map[Member]string),
	}
}

// Join registers the connection under the workspace id. A connection already
// in a room is moved, never duplicated.
func (r *Registry) Join(m Member, workspaceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[m]; ok {
		r.removeLocked(m, prev)
	}
	room, ok := r.rooms[workspaceID]
	if !ok {
		room = make(map[Member]struct{})
		r.rooms[workspaceID] = room
	}
	room[m] = struct{}{}
	r.byConn[m] = workspaceID
}

// Leave removes the connection from its room. Removing an absent connection
// is a no-op.
func (r *Registry) Leave(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.byConn[m]
	if !ok {
		return
	}
	r.removeLocked(m, ws)
}

func (r *Registry) removeLocked(m Member, workspaceID string) {
	delete(r.byConn, m)
	room, ok := r.rooms[workspaceID]
	if !ok {
		return
	}
	delete(room, m)
	if len(room) == 0 {
		delete(r.rooms, workspaceID)
	}
}

// Broadcast delivers the payload to every current member of the workspace
// room, optionally excluding one connection. It returns the number of
// members that accepted the payload; slow members are skipped rather than
// blocking the caller.
func (r *Registry) Broadcast(workspaceID string, payload []byte, except Member) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for m := range r.rooms[workspaceID] {
		if m == except {
			continue
		}
		if m.Send(payload) {
			delivered++
		}
	}
	return delivered
}

// Room returns the workspace id the connection is currently joined to.
func (r *Registry) Room(m Member) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.byConn[m]
	return ws, ok
}

// Size returns the current membership count of a workspace room.
func (r *Registry) Size(workspaceID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[workspaceID])
}
