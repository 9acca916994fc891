package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// recorder captures pushed events per connection. Connections listed in
// dead refuse every push.
type recorder struct {
	mu     sync.Mutex
	events map[string][]Event
	dead   map[string]bool
}

func newRecorder() *recorder {
	return &recorder{events: make(map[string][]Event), dead: make(map[string]bool)}
}

func (r *recorder) Push(connID string, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dead[connID] {
		return errors.New("connection closed")
	}
	r.events[connID] = append(r.events[connID], ev)
	return nil
}

func (r *recorder) kill(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dead[connID] = true
}

func (r *recorder) named(connID, name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events[connID] {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) total(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evs := range r.events {
		for _, ev := range evs {
			if ev.Name == name {
				n++
			}
		}
	}
	return n
}

type fakeConversation struct {
	id   string
	a, b string
}

type fakeMessage struct {
	Message
	read bool
}

// countHold parks one CountUnreadMessages call after it has read the rows.
type countHold struct {
	entered chan struct{}
	release chan struct{}
}

// memMessages is an in-memory MessageStore.
type memMessages struct {
	mu    sync.Mutex
	convs []fakeConversation
	msgs  []*fakeMessage
	seq   int
	fail  error
	hold  *countHold
}

// holdNextCount makes the next CountUnreadMessages block once it has counted.
func (m *memMessages) holdNextCount() *countHold {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = &countHold{entered: make(chan struct{}), release: make(chan struct{})}
	return m.hold
}

func (m *memMessages) CreateMessage(_ context.Context, from, to, text string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	conv := m.findLocked(from, to)
	if conv == "" {
		conv = fmt.Sprintf("c%d", len(m.convs)+1)
		ids := []string{from, to}
		sort.Strings(ids)
		m.convs = append(m.convs, fakeConversation{id: conv, a: ids[0], b: ids[1]})
	}
	m.seq++
	msg := &fakeMessage{Message: Message{
		ID:             fmt.Sprintf("m%d", m.seq),
		ConversationID: conv,
		From:           from,
		To:             to,
		Text:           text,
		CreatedAt:      time.Now(),
	}}
	m.msgs = append(m.msgs, msg)
	out := msg.Message
	return &out, nil
}

func (m *memMessages) CountUnreadMessages(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	n := 0
	for _, msg := range m.msgs {
		if msg.To == userID && !msg.read {
			n++
		}
	}
	h := m.hold
	m.hold = nil
	m.mu.Unlock()

	if h != nil {
		close(h.entered)
		<-h.release
	}
	return n, nil
}

func (m *memMessages) MarkMessagesAsRead(_ context.Context, conversationID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs {
		if msg.ConversationID == conversationID && msg.To == userID && !msg.read {
			msg.read = true
			n++
		}
	}
	return n, nil
}

func (m *memMessages) FindConversationBetween(_ context.Context, a, b string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(a, b), nil
}

func (m *memMessages) ConversationParticipants(_ context.Context, id string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.id == id {
			return c.a, c.b, nil
		}
	}
	return "", "", ErrConversationNotFound
}

func (m *memMessages) rows(from, to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs {
		if msg.From == from && msg.To == to {
			n++
		}
	}
	return n
}

func (m *memMessages) findLocked(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	for _, c := range m.convs {
		if c.a == ids[0] && c.b == ids[1] {
			return c.id
		}
	}
	return ""
}

// memNotifications is an in-memory NotificationStore.
type memNotifications struct {
	mu   sync.Mutex
	rows []*Notification
	fail error
}

func (m *memNotifications) InsertNotification(_ context.Context, in *NotificationInput) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	n := &Notification{
		ID:        fmt.Sprintf("n%d", len(m.rows)+1),
		UserID:    in.UserID,
		SenderID:  in.SenderID,
		Type:      in.Type,
		RefID:     in.RefID,
		RefType:   in.RefType,
		Message:   in.Message,
		Metadata:  in.Metadata,
		CreatedAt: time.Now(),
		Recipient: &Profile{ID: in.UserID, Username: "user-" + in.UserID},
	}
	m.rows = append(m.rows, n)
	out := *n
	return &out, nil
}

func (m *memNotifications) MarkNotificationSeen(_ context.Context, id, userID string) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id && n.UserID == userID {
			n.IsSeen = true
			out := *n
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memNotifications) MarkAllNotificationsSeen(_ context.Context, userID string) ([]*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Notification
	for _, n := range m.rows {
		if n.UserID == userID && !n.IsSeen {
			n.IsSeen = true
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

// mapCache is an in-memory UnreadCache.
type mapCache struct {
	mu sync.Mutex
	m  map[string]int
}

func (c *mapCache) Get(_ context.Context, userID string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.m[userID]
	return n, ok, nil
}

func (c *mapCache) Set(_ context.Context, userID string, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]int)
	}
	c.m[userID] = n
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, userID)
	return nil
}

// tokenVerifier accepts tokens of the form "tok-<user>".
type tokenVerifier struct {
	delay time.Duration
}

func (v tokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if len(token) > 4 && token[:4] == "tok-" {
		return token[4:], nil
	}
	return "", errors.New("bad token")
}

type testEnv struct {
	hub   *Hub
	out   *recorder
	msgs  *memMessages
	notes *memNotifications
	cache *mapCache
}

func newTestEnv(allowAnonymous bool) *testEnv {
	env := &testEnv{
		out:   newRecorder(),
		msgs:  &memMessages{},
		notes: &memNotifications{},
		cache: &mapCache{},
	}
	env.hub = NewHub(HubOptions{
		Pusher:        env.out,
		Verifier:      tokenVerifier{},
		Messages:      env.msgs,
		Notifications: env.notes,
		Cache:         env.cache,
		Presence:      PresenceOptions{AllowAnonymous: allowAnonymous, VerifyTimeout: time.Second},
	})
	return env
}

func (e *testEnv) connect(connID, user string) *Session {
	hs := Handshake{}
	if user != "" {
		hs.AuthToken = "tok-" + user
	}
	s, _ := e.hub.Connect(context.Background(), connID, hs)
	return s
}
