package realtime

import (
	"context"
)

// Pusher hands an event to one live connection. Implementations must not
// block on a slow peer.
type Pusher interface {
	Push(connID string, ev Event) error
}

// PusherFunc adapts a function to Pusher.
type PusherFunc func(connID string, ev Event) error

func (f PusherFunc) Push(connID string, ev Event) error { return f(connID, ev) }

// Verifier resolves a bearer credential to a user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// MessageStore is the persistence the direct-message channel needs.
type MessageStore interface {
	CreateMessage(ctx context.Context, from, to, text string) (*Message, error)
	CountUnreadMessages(ctx context.Context, userID string) (int, error)
	// MarkMessagesAsRead flags the messages of conversationID addressed to
	// userID as read and returns how many changed.
	MarkMessagesAsRead(ctx context.Context, conversationID, userID string) (int, error)
	// FindConversationBetween returns "" when the users never talked.
	FindConversationBetween(ctx context.Context, a, b string) (string, error)
	// ConversationParticipants returns ErrConversationNotFound for unknown ids.
	ConversationParticipants(ctx context.Context, conversationID string) (string, string, error)
}

// NotificationStore is the persistence the notification service needs.
type NotificationStore interface {
	InsertNotification(ctx context.Context, in *NotificationInput) (*Notification, error)
	// MarkNotificationSeen returns nil, nil when id does not belong to userID.
	MarkNotificationSeen(ctx context.Context, id, userID string) (*Notification, error)
	MarkAllNotificationsSeen(ctx context.Context, userID string) ([]*Notification, error)
}

// UnreadCache memoises unread message counts per user.
type UnreadCache interface {
	Get(ctx context.Context, userID string) (int, bool, error)
	Set(ctx context.Context, userID string, n int) error
	Invalidate(ctx context.Context, userID string) error
}

// RefLookup loads a snapshot of the entity a notification points at.
type RefLookup func(ctx context.Context, id string) (any, error)

// Localizer renders the default text of a notification type.
type Localizer interface {
	NotificationMessage(t NotificationType) string
}

// Recorder receives realtime metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	SetOnlineUsers(n int)
	EventDelivered(event string)
	DeliveryFailed(event string)
	AuthResult(result string)
}

type nopRecorder struct{}

func (nopRecorder) SetOnlineUsers(int)    {}
func (nopRecorder) EventDelivered(string) {}
func (nopRecorder) DeliveryFailed(string) {}
func (nopRecorder) AuthResult(string)     {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
