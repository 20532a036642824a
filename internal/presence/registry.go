package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Registry maps live connection ids to user ids. A user is online while at
// least one connection maps to it. State is in-memory only and starts empty
// on every process start.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]string
	users map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]string),
		users: make(map[string]map[string]struct{}),
	}
}

// Join records connID as a connection of userID. It returns false without
// touching state when userID is not a valid identifier or connID is already
// joined as another user; a connection keeps one identity for its lifetime.
// firstConn is true when userID had no live connection before this call.
func (r *Registry) Join(connID, userID string) (firstConn bool, ok bool) {
	if connID == "" || !ValidUserID(userID) {
		return false, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.conns[connID]; exists && prev != userID {
		return false, false
	}

	set, exists := r.users[userID]
	if !exists {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	firstConn = len(set) == 0
	set[connID] = struct{}{}
	r.conns[connID] = userID
	return firstConn, true
}

// Disconnect removes connID. It returns the user the connection belonged to
// and whether that user has no remaining connections. Unknown ids are a no-op.
func (r *Registry) Disconnect(connID string) (userID string, lastConn bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	return userID, r.removeLocked(connID, userID)
}

func (r *Registry) removeLocked(connID, userID string) bool {
	delete(r.conns, connID)
	set := r.users[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.users, userID)
		return true
	}
	return false
}

// IsOnline reports whether userID has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// UserOf returns the user joined on connID.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.conns[connID]
	return userID, ok
}

// Connections returns a snapshot of the connection ids of userID.
func (r *Registry) Connections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.users[userID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// OnlineCount returns the number of users with a live connection.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// ValidUserID reports whether id is a syntactically valid user identifier.
func ValidUserID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
