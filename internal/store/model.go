package store

import (
	"time"
)

// User is a registered account
type User struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username    string    `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	DisplayName string    `json:"displayname" gorm:"type:varchar(100)"`
	AvatarURL   string    `json:"avatar_url" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Post is a user publication
type Post struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AuthorID  string    `json:"author_id" gorm:"type:varchar(36);index;not null"`
	Text      string    `json:"text" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a reply to a post or, when ParentID is set, to another comment
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PostID    string    `json:"post_id" gorm:"type:varchar(36);index;not null"`
	AuthorID  string    `json:"author_id" gorm:"type:varchar(36);not null"`
	ParentID  string    `json:"parent_id,omitempty" gorm:"type:varchar(36)"`
	Depth     int       `json:"depth"`
	Text      string    `json:"text" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// PostLike is one user's like of a post
type PostLike struct {
	UserID    string `gorm:"primaryKey;type:varchar(36)"`
	PostID    string `gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt time.Time
}

// CommentLike is one user's like of a comment
type CommentLike struct {
	UserID    string `gorm:"primaryKey;type:varchar(36)"`
	CommentID string `gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt time.Time
}

// Follow links a follower to the user it follows
type Follow struct {
	FollowerID  string `gorm:"primaryKey;type:varchar(36)"`
	FollowingID string `gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt   time.Time
}

// Conversation is the thread of two users. UserA sorts before UserB.
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserA     string    `json:"user_a" gorm:"type:varchar(36);uniqueIndex:idx_conversation_pair;not null"`
	UserB     string    `json:"user_b" gorm:"type:varchar(36);uniqueIndex:idx_conversation_pair;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a direct message row
type Message struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)"`
	ConversationID string     `gorm:"type:varchar(36);index;not null"`
	FromUserID     string     `gorm:"type:varchar(36);not null"`
	ToUserID       string     `gorm:"type:varchar(36);index;not null"`
	Text           string     `gorm:"type:text"`
	CreatedAt      time.Time  `gorm:"index"`
	ReadAt         *time.Time
}

// Notification is a notification row. Metadata holds a JSON object.
type Notification struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"type:varchar(36);index;not null"`
	SenderID  string    `gorm:"type:varchar(36)"`
	Type      string    `gorm:"type:varchar(20);not null"`
	RefID     string    `gorm:"type:varchar(36)"`
	RefType   string    `gorm:"type:varchar(20)"`
	Message   string    `gorm:"type:text"`
	Metadata  string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
	IsSeen    bool      `gorm:"not null;default:false"`
}

// ConversationSummary is one entry of a user's inbox
type ConversationSummary struct {
	ID          string    `json:"id"`
	OtherUser   *User     `json:"other_user"`
	LastMessage string    `json:"last_message"`
	LastAt      time.Time `json:"last_at"`
	Unread      int64     `json:"unread"`
}

// LikeResult is the outcome of a like toggle
type LikeResult struct {
	Liked bool   `json:"liked"`
	Owner string `json:"owner"`
	Likes int64  `json:"likes"`
}

func allModels() []any {
	return []any{
		&User{}, &Post{}, &Comment{}, &PostLike{}, &CommentLike{},
		&Follow{}, &Conversation{}, &Message{}, &Notification{},
	}
}
