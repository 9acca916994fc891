package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bloopsocial/bloop/internal/apiserver/middleware"
	"github.com/bloopsocial/bloop/internal/common/dto"
	"github.com/bloopsocial/bloop/internal/common/errorx"
)

// ListNotifications returns a page of the caller's notifications, newest first
func (h *Handler) ListNotifications(c *gin.Context) {
	p := page(c)
	notes, err := h.store.ListNotifications(c.Request.Context(), middleware.UserID(c), p.Limit, p.Offset)
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

// UnseenNotifications returns how many notifications the caller has not seen
func (h *Handler) UnseenNotifications(c *gin.Context) {
	n, err := h.store.CountUnseenNotifications(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CountResponse{Count: n})
}

// MarkNotificationSeen marks one notification of the caller as seen
func (h *Handler) MarkNotificationSeen(c *gin.Context) {
	id := c.Param("id")
	n, err := h.hub.Notifications.MarkSeen(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	if n == nil {
		errorx.Abort(c, errorx.NotFoundError("notification", id))
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkAllNotificationsSeen marks every unseen notification of the caller
func (h *Handler) MarkAllNotificationsSeen(c *gin.Context) {
	seen, err := h.hub.Notifications.MarkAllSeen(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		errorx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MarkAllSeenResponse{Updated: len(seen)})
}
