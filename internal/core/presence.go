package core

import (
	"slices"
	"sync"
)

// PresenceRegistry maps user ids to their single live connection. It is the
// authority on who is online within this process; there is no cross-instance
// fan-out, so running more than one server process is unsupported.
type PresenceRegistry struct {
	mu    sync.RWMutex
	conns map[int64]*Conn
}

// NewPresenceRegistry constructs an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		conns: make(map[int64]*Conn),
	}
}

// Register maps the user to the connection, unconditionally replacing any
// existing mapping. Last writer wins; the replaced connection is left to
// its own disconnect path.
func (r *PresenceRegistry) Register(userID int64, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = conn
}

// Unregister removes the mapping only if it still points at the given
// connection. A disconnect for a stale connection arriving after the user
// reconnected must not erase the newer mapping. Reports whether a mapping
// was removed.
func (r *PresenceRegistry) Unregister(userID int64, conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the live connection for the user, if any. Never blocks.
func (r *PresenceRegistry) Lookup(userID int64) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// SnapshotIDs returns all currently registered user ids, sorted.
func (r *PresenceRegistry) SnapshotIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
