package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bloopsocial/bloop/internal/apiserver/middleware"
	"github.com/bloopsocial/bloop/internal/common/dto"
	"github.com/bloopsocial/bloop/internal/common/errorx"
	"github.com/bloopsocial/bloop/internal/realtime"
)

// TogglePostLike likes or unlikes a post and broadcasts the new counter to
// the post's room
func (h *Handler) TogglePostLike(c *gin.Context) {
	uid := middleware.UserID(c)
	postID := c.Param("postId")

	res, err := h.store.TogglePostLike(c.Request.Context(), uid, postID)
	if err != nil {
		errorx.Abort(c, err)
		return
	}

	action := realtime.ActionUnliked
	if res.Liked {
		action = realtime.ActionLiked
		h.notify(c, realtime.NotificationInput{
			UserID:   res.Owner,
			SenderID: uid,
			Type:     realtime.NotifyLikePost,
			RefID:    postID,
			RefType:  realtime.RefPost,
		})
	}
	h.hub.Reactions.BroadcastLikeUpdate(postID, realtime.PostLikeUpdate{
		Likes:  res.Likes,
		UserID: uid,
		Action: action,
	})

	c.JSON(http.StatusOK, dto.LikeResponse{Liked: res.Liked, Likes: res.Likes})
}

// GetPostLikes returns the public like counter of a post
func (h *Handler) GetPostLikes(c *gin.Context) {
	postID := c.Param("postId")
	if _, err := h.store.GetPost(c.Request.Context(), postID); err != nil {
		errorx.Abort(c, err)
		return
	}
	n, err := h.store.CountPostLikes(c.Request.Context(), postID)
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PostLikesResponse{PostID: postID, Likes: n})
}

// ToggleCommentLike likes or unlikes a comment
func (h *Handler) ToggleCommentLike(c *gin.Context) {
	uid := middleware.UserID(c)
	commentID := c.Param("commentId")

	res, err := h.store.ToggleCommentLike(c.Request.Context(), uid, commentID)
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	if res.Liked {
		h.notify(c, realtime.NotificationInput{
			UserID:   res.Owner,
			SenderID: uid,
			Type:     realtime.NotifyLikeComment,
			RefID:    commentID,
			RefType:  realtime.RefComment,
		})
	}
	c.JSON(http.StatusOK, dto.LikeResponse{Liked: res.Liked, Likes: res.Likes})
}
