package realtime

// Reactions manages per-post rooms used for live like counts and comments.
type Reactions struct {
	rooms *Rooms
}

func NewReactions(rooms *Rooms) *Reactions {
	return &Reactions{rooms: rooms}
}

func (r *Reactions) Join(connID, postID string) error {
	if postID == "" {
		return invalid("postId", "required")
	}
	r.rooms.Join(connID, PostRoomID(postID))
	return nil
}

func (r *Reactions) Leave(connID, postID string) error {
	if postID == "" {
		return invalid("postId", "required")
	}
	r.rooms.Leave(connID, PostRoomID(postID))
	return nil
}

// BroadcastLikeUpdate pushes the new like count to everyone watching postID.
func (r *Reactions) BroadcastLikeUpdate(postID string, update PostLikeUpdate) {
	update.PostID = postID
	r.rooms.DeliverToRoom(PostRoomID(postID), Event{Name: EventPostLikeUpdated, Data: update})
}

// BroadcastComment pushes a new comment to everyone watching postID.
func (r *Reactions) BroadcastComment(postID string, comment any) {
	r.rooms.DeliverToRoom(PostRoomID(postID), Event{Name: EventCommentCreated, Data: comment})
}
