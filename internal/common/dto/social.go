package dto

// SendMessageRequest is the HTTP variant of the dm_message event
type SendMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// MarkReadResponse reports how many messages a read receipt cleared
type MarkReadResponse struct {
	ConversationID string `json:"conversationId"`
	UnreadRemoved  int    `json:"unreadRemoved"`
}

// CountResponse carries a single counter
type CountResponse struct {
	Count int64 `json:"count"`
}

// CreatePostRequest represents a new post
type CreatePostRequest struct {
	Text string `json:"text"`
}

// CreateCommentRequest represents a comment, or a reply when ParentID is set
type CreateCommentRequest struct {
	PostID   string `json:"post_id"`
	Text     string `json:"text"`
	ParentID string `json:"parent_id,omitempty"`
}

// LikeResponse is the state of a like after a toggle
type LikeResponse struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}

// PostLikesResponse is the public like counter of a post
type PostLikesResponse struct {
	PostID string `json:"postId"`
	Likes  int64  `json:"likes"`
}

// FollowResponse reports whether a follow edge changed
type FollowResponse struct {
	Following bool `json:"following"`
	Changed   bool `json:"changed"`
}

// MarkAllSeenResponse reports the notifications a bulk receipt cleared
type MarkAllSeenResponse struct {
	Updated int `json:"updated"`
}

// Page is the limit/offset pair of a listing
type Page struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}
