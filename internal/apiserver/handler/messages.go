package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bloopsocial/bloop/internal/apiserver/middleware"
	"github.com/bloopsocial/bloop/internal/common/dto"
	"github.com/bloopsocial/bloop/internal/common/errorx"
)

// SendMessage persists a direct message and fans it out like dm_message
func (h *Handler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorx.Abort(c, errorx.ValidationError("body", err.Error()))
		return
	}

	msg, err := h.hub.DM.Send(c.Request.Context(), middleware.UserID(c), req.To, req.Text)
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListConversations returns the inbox of the caller
func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.store.ListConversations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// MessagesWith returns a page of the thread between the caller and :userId
func (h *Handler) MessagesWith(c *gin.Context) {
	p := page(c)
	msgs, err := h.store.MessagesBetween(c.Request.Context(), middleware.UserID(c), c.Param("userId"), p.Limit, p.Offset)
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// UnreadMessages returns the caller's unread direct message count
func (h *Handler) UnreadMessages(c *gin.Context) {
	n, err := h.hub.DM.UnreadCount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CountResponse{Count: int64(n)})
}

// MarkConversationRead marks the caller's side of a conversation as read
func (h *Handler) MarkConversationRead(c *gin.Context) {
	uid := middleware.UserID(c)
	convID := c.Param("conversationId")

	a, b, err := h.store.ConversationParticipants(c.Request.Context(), convID)
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	if uid != a && uid != b {
		errorx.Abort(c, errorx.NotFoundError("conversation", convID))
		return
	}

	removed, err := h.hub.DM.MarkRead(c.Request.Context(), convID, uid)
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MarkReadResponse{ConversationID: convID, UnreadRemoved: removed})
}

