package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/bloopsocial/bloop/internal/apiserver/handler"
	"github.com/bloopsocial/bloop/internal/auth/jwt"
	"github.com/bloopsocial/bloop/internal/cache"
	"github.com/bloopsocial/bloop/internal/common/config"
	"github.com/bloopsocial/bloop/internal/common/errorx"
	"github.com/bloopsocial/bloop/internal/i18n"
	"github.com/bloopsocial/bloop/internal/realtime"
	"github.com/bloopsocial/bloop/internal/store"
	"github.com/bloopsocial/bloop/internal/transport/ws"
	"github.com/bloopsocial/bloop/pkg/metrics"
)

// Server is one bloop process: the REST triggers, the websocket endpoint and
// the hub they share
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	hub     *realtime.Hub
	ws      *ws.Handler
	cache   realtime.UnreadCache
	metrics *metrics.Metrics
	engine  *gin.Engine
	http    *http.Server
}

// New wires every component of the server on top of st
func New(cfg *config.Config, st *store.Store, logger *zap.Logger) (*Server, error) {
	jwtService, err := jwt.NewService(jwt.Config{
		SecretKey: cfg.JWT.SecretKey,
		Duration:  cfg.JWT.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create jwt service: %w", err)
	}

	tr, err := i18n.New(cfg.I18n.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}

	unread, err := cache.NewUnreadCache(logger, &cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create unread cache: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	conns := ws.NewConns(logger)
	hub := realtime.NewHub(realtime.HubOptions{
		Pusher:        conns,
		Verifier:      jwtService,
		Messages:      st,
		Notifications: st,
		Cache:         unread,
		Presence: realtime.PresenceOptions{
			VerifyTimeout:  cfg.Realtime.VerifyTimeout,
			AllowAnonymous: cfg.Realtime.AnonymousAllowed(),
		},
		UnreadPushTimeout: cfg.Realtime.UnreadPushTimeout,
		Logger:            logger,
		Recorder:          m,
	})
	hub.Notifications.
		WithLocalizer(tr).
		WithRef(realtime.RefPost, func(ctx context.Context, id string) (any, error) { return st.GetPost(ctx, id) }).
		WithRef(realtime.RefComment, func(ctx context.Context, id string) (any, error) { return st.GetComment(ctx, id) }).
		WithRef(realtime.RefUser, func(ctx context.Context, id string) (any, error) {
			u, err := st.GetUser(ctx, id)
			if err != nil {
				return nil, err
			}
			return u.Profile(), nil
		})

	s := &Server{
		cfg:     cfg,
		logger:  logger.Named("server"),
		store:   st,
		hub:     hub,
		ws:      ws.NewHandler(hub, conns, ws.OptionsFrom(cfg), logger, m),
		cache:   unread,
		metrics: m,
	}
	s.engine = s.routes(jwtService, tr)
	return s, nil
}

func (s *Server) routes(jwtService *jwt.Service, tr *i18n.I18n) *gin.Engine {
	r := gin.New()
	eh := errorx.NewErrorHandler(s.logger, handler.DomainErrors)
	r.Use(eh.RecoveryMiddleware())
	if s.cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	}
	r.Use(s.loggerMiddleware(), s.metrics.Middleware(), s.corsMiddleware(), eh.ErrorMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": s.hub.Registry.OnlineCount()})
	})
	if s.metrics != nil {
		r.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}
	r.GET("/ws", s.ws.Handle)

	handler.NewHandler(s.store, s.hub, tr, s.logger).Register(r, jwtService)
	return r
}

// Handler exposes the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub returns the realtime hub of the server
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

// Start listens on the configured port until Shutdown
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.engine,
	}
	s.logger.Info("listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes live sockets and drains the
// hub's background pushes
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	if err := s.ws.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("websocket: %w", err))
	}
	s.hub.Close()
	if c, ok := s.cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	return errors.Join(errs...)
}
