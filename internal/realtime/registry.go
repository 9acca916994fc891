package realtime

import (
	"sort"
	"sync"
)

// Registry maps users to their live connection ids. A user is online while
// its entry exists; the entry is dropped together with its last connection.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]map[string]struct{}
	owners map[string]string // connID -> userID
	rec    Recorder
}

// NewRegistry creates an empty registry. rec may be nil.
func NewRegistry(rec Recorder) *Registry {
	return &Registry{
		users:  make(map[string]map[string]struct{}),
		owners: make(map[string]string),
		rec:    recorderOrNop(rec),
	}
}

// Register adds connID to userID's set. Registering the same pair twice is a
// no-op. A connection registered under another user is moved, since a
// connection authenticates as exactly one user.
func (r *Registry) Register(userID, connID string) {
	if userID == "" || connID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owners[connID]; ok && prev != userID {
		r.removeLocked(prev, connID)
	}
	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[connID] = struct{}{}
	r.owners[connID] = userID
	r.rec.SetOnlineUsers(len(r.users))
}

// Unregister removes connID from userID's set and drops the entry once it is
// empty. Unknown pairs are ignored.
func (r *Registry) Unregister(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(userID, connID)
	r.rec.SetOnlineUsers(len(r.users))
}

func (r *Registry) removeLocked(userID, connID string) {
	set, ok := r.users[userID]
	if !ok {
		return
	}
	if _, ok := set[connID]; !ok {
		return
	}
	delete(set, connID)
	delete(r.owners, connID)
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

// IsOnline reports whether userID has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// ConnectionsOf returns a sorted snapshot of userID's connection ids.
func (r *Registry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.users[userID])
}

// UserOf returns the user a connection is registered under.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uid, ok := r.owners[connID]
	return uid, ok
}

// OnlineCount returns the number of online users.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
