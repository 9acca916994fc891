package realtime

import (
	"context"
	"strings"
	"time"

	"github.com/bloopsocial/bloop/pkg/trace"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotifyComment     NotificationType = "COMMENT"
	NotifyFollow      NotificationType = "FOLLOW"
	NotifyMessage     NotificationType = "MESSAGE"
	NotifyReport      NotificationType = "REPORT"
	NotifyLikeComment NotificationType = "LIKE_COMMENT"
	NotifyLikePost    NotificationType = "LIKE_POST"
)

// Valid reports whether t is one of the known kinds.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyComment, NotifyFollow, NotifyMessage, NotifyReport, NotifyLikeComment, NotifyLikePost:
		return true
	}
	return false
}

// Referenced entity kinds understood by enrichment.
const (
	RefPost    = "post"
	RefUser    = "user"
	RefComment = "comment"
)

// NotificationInput is a notification creation request.
type NotificationInput struct {
	UserID   string           `json:"user_id"`
	SenderID string           `json:"sender_id,omitempty"`
	Type     NotificationType `json:"type"`
	RefID    string           `json:"ref_id,omitempty"`
	RefType  string           `json:"ref_type,omitempty"`
	Message  string           `json:"message,omitempty"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// Notification is a persisted notification with the recipient and sender
// projections joined in and, when resolvable, a snapshot of its reference.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	SenderID  string           `json:"sender_id,omitempty"`
	Type      NotificationType `json:"type"`
	RefID     string           `json:"ref_id,omitempty"`
	RefType   string           `json:"ref_type,omitempty"`
	Message   string           `json:"message,omitempty"`
	Metadata  map[string]any   `json:"metadata"`
	CreatedAt time.Time        `json:"created_at"`
	IsSeen    bool             `json:"is_seen"`
	Recipient *Profile         `json:"recipient,omitempty"`
	Sender    *Profile         `json:"sender,omitempty"`
	Ref       any              `json:"ref"`
}

// Notifications persists notifications and pushes them to the target user's
// live connections.
type Notifications struct {
	store     NotificationStore
	registry  *Registry
	refs      map[string]RefLookup
	localizer Localizer
	out       fanout
	logger    *zap.Logger
}

func NewNotifications(store NotificationStore, registry *Registry, pusher Pusher,
	logger *zap.Logger, rec Recorder) *Notifications {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("realtime.notification")
	return &Notifications{
		store:    store,
		registry: registry,
		refs:     make(map[string]RefLookup),
		out:      newFanout(pusher, logger, rec),
		logger:   logger,
	}
}

// WithRef registers the lookup used to enrich notifications of refType.
func (n *Notifications) WithRef(refType string, lookup RefLookup) *Notifications {
	n.refs[strings.ToLower(refType)] = lookup
	return n
}

// WithLocalizer sets the source of default notification texts.
func (n *Notifications) WithLocalizer(l Localizer) *Notifications {
	n.localizer = l
	return n
}

// Create persists a notification and pushes it to every live connection of
// its target. The row is kept even when nobody is online.
func (n *Notifications) Create(ctx context.Context, in NotificationInput) (*Notification, error) {
	if !in.Type.Valid() {
		return nil, invalid("type", "unknown notification type "+string(in.Type))
	}
	if in.UserID == "" {
		return nil, invalid("user_id", "required")
	}
	if in.Message == "" && n.localizer != nil {
		in.Message = n.localizer.NotificationMessage(in.Type)
	}

	span := trace.Tracer("realtime").Start(ctx, "notification.create")
	defer span.End()
	span.WithAttrs(attribute.String("notification.type", string(in.Type)))

	notif, err := n.store.InsertNotification(span.Ctx, &in)
	if err != nil {
		span.Fail(err)
		n.logger.Error("failed to persist notification",
			zap.String("user", in.UserID), zap.String("type", string(in.Type)), zap.Error(err))
		return nil, persistence("insert notification", err)
	}

	notif.Ref = n.resolveRef(span.Ctx, notif.RefType, notif.RefID)
	n.out.deliver(n.registry.ConnectionsOf(notif.UserID), Event{Name: EventNotification, Data: notif})
	return notif, nil
}

// MarkSeen flags one notification of userID as seen and syncs the user's
// other connections. It returns nil, nil when the id does not belong to
// userID.
func (n *Notifications) MarkSeen(ctx context.Context, id, userID string) (*Notification, error) {
	if id == "" {
		return nil, invalid("id", "required")
	}
	notif, err := n.store.MarkNotificationSeen(ctx, id, userID)
	if err != nil {
		return nil, persistence("mark notification seen", err)
	}
	if notif == nil {
		return nil, nil
	}
	n.out.deliver(n.registry.ConnectionsOf(userID), Event{Name: EventNotificationSeen, Data: notif})
	return notif, nil
}

// MarkAllSeen flags every unseen notification of userID and returns them.
func (n *Notifications) MarkAllSeen(ctx context.Context, userID string) ([]*Notification, error) {
	if userID == "" {
		return nil, invalid("userId", "required")
	}
	out, err := n.store.MarkAllNotificationsSeen(ctx, userID)
	if err != nil {
		return nil, persistence("mark notifications seen", err)
	}
	return out, nil
}

// resolveRef never fails: unknown kinds and lookup errors yield nil.
func (n *Notifications) resolveRef(ctx context.Context, refType, refID string) any {
	if refType == "" || refID == "" {
		return nil
	}
	lookup, ok := n.refs[strings.ToLower(refType)]
	if !ok {
		return nil
	}
	ref, err := lookup(ctx, refID)
	if err != nil {
		n.logger.Debug("notification reference not resolved",
			zap.String("ref_type", refType), zap.String("ref_id", refID), zap.Error(err))
		return nil
	}
	return ref
}
