package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bloopsocial/bloop/internal/apiserver/middleware"
	"github.com/bloopsocial/bloop/internal/common/dto"
	"github.com/bloopsocial/bloop/internal/common/errorx"
	"github.com/bloopsocial/bloop/internal/i18n"
	"github.com/bloopsocial/bloop/internal/realtime"
)

// Follow makes the caller follow :targetId
func (h *Handler) Follow(c *gin.Context) {
	uid := middleware.UserID(c)
	target := c.Param("targetId")
	if target == uid {
		errorx.Abort(c, errorx.ValidationError("targetId", "cannot follow yourself"))
		return
	}

	created, err := h.store.Follow(c.Request.Context(), uid, target)
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	if created {
		h.notify(c, realtime.NotificationInput{
			UserID:   target,
			SenderID: uid,
			Type:     realtime.NotifyFollow,
			RefID:    uid,
			RefType:  realtime.RefUser,
		})
	}
	c.JSON(http.StatusOK, dto.FollowResponse{Following: true, Changed: created})
}

// Unfollow removes the caller's follow of :targetId
func (h *Handler) Unfollow(c *gin.Context) {
	uid := middleware.UserID(c)
	target := c.Param("targetId")
	if target == uid {
		errorx.Abort(c, errorx.ValidationError("targetId", "cannot unfollow yourself"))
		return
	}

	removed, err := h.store.Unfollow(c.Request.Context(), uid, target)
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FollowResponse{Following: false, Changed: removed})
}

// CreatePost publishes a post of the caller
func (h *Handler) CreatePost(c *gin.Context) {
	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorx.Abort(c, errorx.ValidationError("body", err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		errorx.Abort(c, errorx.ValidationError("text", "required"))
		return
	}

	post, err := h.store.CreatePost(c.Request.Context(), middleware.UserID(c), req.Text)
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// CreateComment comments a post or replies to a comment, notifies the author
// of what was answered and pushes the comment to the post's room
func (h *Handler) CreateComment(c *gin.Context) {
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorx.Abort(c, errorx.ValidationError("body", err.Error()))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		errorx.Abort(c, errorx.ValidationError("text", "required"))
		return
	}
	if req.PostID == "" {
		errorx.Abort(c, errorx.ValidationError("post_id", "required"))
		return
	}

	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	comment, err := h.store.CreateComment(ctx, uid, req.PostID, req.ParentID, req.Text)
	if err != nil {
		errorx.Abort(c, err)
		return
	}

	var target, msg string
	if req.ParentID != "" {
		if parent, err := h.store.GetComment(ctx, req.ParentID); err == nil {
			target = parent.AuthorID
		}
		if h.tr != nil {
			msg = h.tr.Message(i18n.MsgCommentReply)
		}
	} else if post, err := h.store.GetPost(ctx, req.PostID); err == nil {
		target = post.AuthorID
	}
	h.notify(c, realtime.NotificationInput{
		UserID:   target,
		SenderID: uid,
		Type:     realtime.NotifyComment,
		RefID:    comment.ID,
		RefType:  realtime.RefComment,
		Message:  msg,
	})

	h.hub.Reactions.BroadcastComment(req.PostID, comment)
	c.JSON(http.StatusCreated, comment)
}
