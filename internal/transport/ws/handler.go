package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/bloopsocial/bloop/internal/apiserver/middleware"
	"github.com/bloopsocial/bloop/internal/common/config"
	"github.com/bloopsocial/bloop/internal/realtime"
	"github.com/bloopsocial/bloop/pkg/metrics"
)

// Options tunes the socket lifecycle
type Options struct {
	AllowedOrigins []string
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// OptionsFrom builds Options out of the server configuration
func OptionsFrom(cfg *config.Config) Options {
	rt := cfg.Realtime
	return Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendBuffer:     rt.SendBuffer,
		WriteWait:      rt.WriteWait,
		PongWait:       rt.PongWait,
		PingPeriod:     rt.PingPeriod,
		MaxMessageSize: rt.MaxMessageSize,
	}
}

func (o *Options) setDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 128
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
}

// Handler upgrades HTTP requests into hub connections
type Handler struct {
	hub      *realtime.Hub
	conns    *Conns
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
}

// NewHandler creates the websocket endpoint. conns must be the Pusher the
// hub was built with. m may be nil.
func NewHandler(hub *realtime.Hub, conns *Conns, opts Options, logger *zap.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.setDefaults()
	h := &Handler{
		hub:     hub,
		conns:   conns,
		opts:    opts,
		logger:  logger.Named("ws"),
		metrics: m,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Handle is the gin adapter of ServeHTTP
func (h *Handler) Handle(c *gin.Context) {
	h.ServeHTTP(c.Writer, c.Request)
}

func handshakeOf(r *http.Request) realtime.Handshake {
	hs := realtime.Handshake{QueryToken: r.URL.Query().Get("token")}
	if tok, ok := middleware.BearerToken(r.Header.Get("Authorization")); ok {
		hs.AuthToken = tok
	}
	return hs
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hs := handshakeOf(r)
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()

	c := newConn(uuid.NewString(), wsConn, h.opts.SendBuffer)
	h.conns.add(c)
	h.metrics.ConnOpened()
	go c.writePump(h.opts, h.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := h.hub.Connect(ctx, c.id, hs)
	var once sync.Once
	teardown := func() {
		once.Do(func() {
			h.hub.Disconnect(s)
			h.conns.remove(c.id)
			h.metrics.ConnClosed()
		})
	}
	defer teardown()

	var aerr *realtime.AuthError
	if errors.As(err, &aerr) {
		c.close(websocket.ClosePolicyViolation, "unauthorized")
		return
	}

	h.readLoop(ctx, c, s)
	c.close(websocket.CloseNormalClosure, "")
}

func (h *Handler) readLoop(ctx context.Context, c *conn, s *realtime.Session) {
	c.ws.SetReadLimit(h.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Debug("read failed", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		h.handleFrame(ctx, s, data)
	}
}

func (h *Handler) handleFrame(ctx context.Context, s *realtime.Session, data []byte) {
	if !gjson.ValidBytes(data) {
		h.reply(s.ID(), "", &realtime.ValidationError{Field: "frame", Reason: "malformed json"})
		return
	}
	frame := gjson.ParseBytes(data)
	event := frame.Get("event").String()
	payload := frame.Get("data")

	if err := h.hub.Dispatch(ctx, s, event, []byte(payload.Raw)); err != nil {
		h.reply(s.ID(), event, err)
	}
}

func (h *Handler) reply(connID, event string, err error) {
	ev := realtime.Event{Name: realtime.EventError, Data: realtime.ReplyFor(event, err)}
	if perr := h.conns.Push(connID, ev); perr != nil {
		h.logger.Debug("error reply dropped", zap.String("conn", connID), zap.Error(perr))
	}
}

// Shutdown closes every connection and waits for their handlers to return
func (h *Handler) Shutdown(ctx context.Context) error {
	h.conns.CloseAll()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
