package realtime

import (
	"time"
)

// Outbound event names.
const (
	EventDMMessage        = "dm_message"
	EventUnreadUpdate     = "unread_update"
	EventDMSeen           = "dm_seen"
	EventNotification     = "notification"
	EventNotificationSeen = "notification_seen"
	EventPostLikeUpdated  = "post_like_updated"
	EventCommentCreated   = "comment_created"
	EventError            = "error"
)

// Event is one named payload pushed to a connection.
type Event struct {
	Name string
	Data any
}

// Message is a persisted direct message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// DMSeen tells both sides of a conversation that one of them read it.
type DMSeen struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UnreadRemoved  int    `json:"unreadRemoved"`
}

// Profile is the minimal projection of a user joined into notifications.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayname"`
	Avatar      string `json:"avatar,omitempty"`
}

// PostLikeUpdate is broadcast to a post room after a like toggles.
type PostLikeUpdate struct {
	PostID string `json:"postId"`
	Likes  int64  `json:"likes"`
	UserID string `json:"user_id"`
	Action string `json:"action"` // "liked" or "unliked"
}

// Like actions carried by PostLikeUpdate.
const (
	ActionLiked   = "liked"
	ActionUnliked = "unliked"
)

// ErrorReply answers an inbound event that could not be handled.
type ErrorReply struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
