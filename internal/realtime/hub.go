package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// HubOptions wires the collaborators of a Hub.
type HubOptions struct {
	Pusher        Pusher
	Verifier      Verifier
	Messages      MessageStore
	Notifications NotificationStore
	// Cache is optional.
	Cache             UnreadCache
	Presence          PresenceOptions
	UnreadPushTimeout time.Duration
	Logger            *zap.Logger
	// Recorder is optional.
	Recorder Recorder
}

// Hub owns the presence and room state of one server process and the
// services that fan events out over it.
type Hub struct {
	Registry      *Registry
	Rooms         *Rooms
	Presence      *Presence
	DM            *DirectMessages
	Notifications *Notifications
	Reactions     *Reactions

	logger *zap.Logger
}

func NewHub(opts HubOptions) *Hub {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	rec := opts.Recorder

	registry := NewRegistry(rec)
	rooms := NewRooms(opts.Pusher, lg, rec)
	return &Hub{
		Registry: registry,
		Rooms:    rooms,
		Presence: NewPresence(registry, opts.Verifier, opts.Presence, lg, rec),
		DM: NewDirectMessages(opts.Messages, registry, rooms, opts.Pusher, DirectMessagesOptions{
			Cache:             opts.Cache,
			UnreadPushTimeout: opts.UnreadPushTimeout,
		}, lg, rec),
		Notifications: NewNotifications(opts.Notifications, registry, opts.Pusher, lg, rec),
		Reactions:     NewReactions(rooms),
		logger:        lg.Named("realtime.hub"),
	}
}

// Connect authenticates a new connection; see Presence.Connect.
func (h *Hub) Connect(ctx context.Context, connID string, hs Handshake) (*Session, error) {
	return h.Presence.Connect(ctx, connID, hs)
}

// Disconnect releases every piece of state held for s. It is safe to call
// more than once.
func (h *Hub) Disconnect(s *Session) {
	h.Presence.Disconnect(s)
	h.Rooms.LeaveAll(s.ID())
}

// Close waits for background work started by the hub.
func (h *Hub) Close() {
	h.DM.Wait()
}
