package chat

import (
	"strings"
	"time"
)

// Status is the advisory, client-reported activity state of a connection.
type Status string

// Connection activity states.
const (
	StatusActive Status = "active"
	StatusIdle   Status = "idle"
)

// presence is the per-connection state tracked for a joined connection.
// A connection gets exactly one presence entry for its lifetime; the
// username never changes once bound.
type presence struct {
	Username string
	JoinTime time.Time
	LastSeen time.Time
	Status   Status
}

// registry maps connection ids to presence state and enforces
// case-insensitive username uniqueness across live connections.
// It is pure data: all access is serialized by the owning hub.
type registry struct {
	entries map[string]*presence
	byName  map[string]string
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[string]*presence),
		byName:  make(map[string]string),
	}
}

// bind records a joined connection under username. The caller must have
// verified uniqueness through the username policy first.
func (r *registry) bind(connID, username string, now time.Time) *presence {
	p := &presence{
		Username: username,
		JoinTime: now,
		LastSeen: now,
		Status:   StatusActive,
	}
	r.entries[connID] = p
	r.byName[strings.ToLower(username)] = connID
	return p
}

// remove deletes the entry for connID if present. It is idempotent and
// reports whether an entry was actually removed.
func (r *registry) remove(connID string) (*presence, bool) {
	p, ok := r.entries[connID]
	if !ok {
		return nil, false
	}
	delete(r.entries, connID)
	delete(r.byName, strings.ToLower(p.Username))
	return p, true
}

func (r *registry) lookup(connID string) (*presence, bool) {
	p, ok := r.entries[connID]
	return p, ok
}

// holder returns the connection id currently bound to username, comparing
// case-insensitively.
func (r *registry) holder(username string) (string, bool) {
	connID, ok := r.byName[strings.ToLower(username)]
	return connID, ok
}

// count is the number of currently joined connections.
func (r *registry) count() int {
	return len(r.entries)
}

// stale returns the ids of all entries whose LastSeen is at or before cutoff.
func (r *registry) stale(cutoff time.Time) []string {
	var ids []string
	for connID, p := range r.entries {
		if !p.LastSeen.After(cutoff) {
			ids = append(ids, connID)
		}
	}
	return ids
}
