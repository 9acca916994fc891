package realtime

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	pairSeparator  = ":"
	postRoomPrefix = "post:"
)

// PairRoomID is the direct-message room of two users. It does not depend on
// argument order.
func PairRoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, pairSeparator)
}

// PostRoomID is the reaction room of a post.
func PostRoomID(postID string) string {
	return postRoomPrefix + postID
}

// Rooms groups connections under named rooms. Membership is independent of
// presence: anonymous connections may join rooms too.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{}
	byConn map[string]map[string]struct{}
	out    fanout
}

func NewRooms(pusher Pusher, logger *zap.Logger, rec Recorder) *Rooms {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rooms{
		rooms:  make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
		out:    newFanout(pusher, logger.Named("realtime.rooms"), rec),
	}
}

// Join adds connID to roomID. Joining twice is a no-op.
func (r *Rooms) Join(connID, roomID string) {
	if connID == "" || roomID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	addTo(r.rooms, roomID, connID)
	addTo(r.byConn, connID, roomID)
}

// Leave removes connID from roomID. Leaving a room one is not in is a no-op.
func (r *Rooms) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removeFrom(r.rooms, roomID, connID)
	removeFrom(r.byConn, connID, roomID)
}

// LeaveAll removes connID from every room it joined.
func (r *Rooms) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.byConn[connID] {
		removeFrom(r.rooms, roomID, connID)
	}
	delete(r.byConn, connID)
}

// MembersOf returns a sorted snapshot of the connections in roomID.
func (r *Rooms) MembersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rooms[roomID])
}

// RoomsOf returns the rooms connID joined.
func (r *Rooms) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.byConn[connID])
}

// DeliverToRoom pushes ev to every current member of roomID.
func (r *Rooms) DeliverToRoom(roomID string, ev Event) {
	r.deliver(roomID, ev)
}

// deliver pushes ev to the members of roomID and returns the membership
// snapshot it used.
func (r *Rooms) deliver(roomID string, ev Event) []string {
	members := r.MembersOf(roomID)
	r.out.deliver(members, ev)
	return members
}

func addTo(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[member] = struct{}{}
}

func removeFrom(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(m, key)
	}
}
