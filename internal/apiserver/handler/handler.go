package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bloopsocial/bloop/internal/apiserver/middleware"
	"github.com/bloopsocial/bloop/internal/auth/jwt"
	"github.com/bloopsocial/bloop/internal/common/dto"
	"github.com/bloopsocial/bloop/internal/i18n"
	"github.com/bloopsocial/bloop/internal/realtime"
	"github.com/bloopsocial/bloop/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler serves the REST triggers of the realtime core
type Handler struct {
	store  *store.Store
	hub    *realtime.Hub
	tr     *i18n.I18n
	logger *zap.Logger
}

// NewHandler creates the REST handler
func NewHandler(st *store.Store, hub *realtime.Hub, tr *i18n.I18n, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:  st,
		hub:    hub,
		tr:     tr,
		logger: logger.Named("api"),
	}
}

// Register mounts the routes under /api. Everything but the public like
// counter requires a bearer token.
func (h *Handler) Register(r gin.IRouter, jwtService *jwt.Service) {
	api := r.Group("/api")
	api.GET("/reactions/post/:postId/likes", h.GetPostLikes)

	auth := api.Group("", middleware.JWTAuthMiddleware(jwtService))

	msgs := auth.Group("/messages")
	msgs.POST("", h.SendMessage)
	msgs.GET("/conversations", h.ListConversations)
	msgs.GET("/with/:userId", h.MessagesWith)
	msgs.GET("/unread-count", h.UnreadMessages)
	msgs.POST("/conversations/:conversationId/read", h.MarkConversationRead)

	notes := auth.Group("/notifications")
	notes.GET("", h.ListNotifications)
	notes.GET("/unread-count", h.UnseenNotifications)
	notes.PATCH("/:id/seen", h.MarkNotificationSeen)
	notes.POST("/seen", h.MarkAllNotificationsSeen)

	auth.POST("/reactions/post/:postId", h.TogglePostLike)
	auth.POST("/reactions/comment/:commentId", h.ToggleCommentLike)

	auth.POST("/follow/:targetId", h.Follow)
	auth.DELETE("/follow/:targetId", h.Unfollow)

	auth.POST("/posts", h.CreatePost)
	auth.POST("/comments", h.CreateComment)
}

// page reads limit and offset, clamping them to sane bounds
func page(c *gin.Context) dto.Page {
	p := dto.Page{Limit: defaultPageSize}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		p.Offset = v
	}
	return p
}

// notify creates a notification as a side effect of an action that already
// succeeded, so failures are only logged
func (h *Handler) notify(c *gin.Context, in realtime.NotificationInput) {
	if in.UserID == "" || in.UserID == in.SenderID {
		return
	}
	if _, err := h.hub.Notifications.Create(c.Request.Context(), in); err != nil {
		h.logger.Error("failed to create notification",
			zap.String("type", string(in.Type)),
			zap.String("user", in.UserID),
			zap.Error(err))
	}
}
