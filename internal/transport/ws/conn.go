package ws

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bloopsocial/bloop/internal/realtime"
)

var (
	errUnknownConn = errors.New("no such connection")
	errClosed      = errors.New("connection closed")
	errSlowReader  = errors.New("send buffer full")
)

// Frame is the wire shape of every event in both directions
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	closeCode int
	closeText string
}

func newConn(id string, ws *websocket.Conn, buffer int) *conn {
	return &conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *conn) enqueue(b []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return errClosed
	default:
		return errSlowReader
	}
}

// close stops the writer, which sends a close frame with code and text
// before tearing the socket down.
func (c *conn) close(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode, c.closeText = code, text
		close(c.done)
	})
}

func (c *conn) writePump(opts Options, lg *zap.Logger) {
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				lg.Debug("write failed", zap.String("conn", c.id), zap.Error(err))
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteWait)); err != nil {
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-c.done:
			if c.closeCode != websocket.CloseAbnormalClosure {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(c.closeCode, c.closeText),
					time.Now().Add(opts.WriteWait))
			}
			return
		}
	}
}

// Conns is the table of live connections of this process. It is the
// realtime.Pusher of the hub.
type Conns struct {
	mu     sync.RWMutex
	conns  map[string]*conn
	logger *zap.Logger
}

func NewConns(logger *zap.Logger) *Conns {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conns{
		conns:  make(map[string]*conn),
		logger: logger.Named("ws.conns"),
	}
}

// Push encodes ev as a frame and queues it on connID. A connection whose
// queue is full is closed.
func (t *Conns) Push(connID string, ev realtime.Event) error {
	t.mu.RLock()
	c, ok := t.conns[connID]
	t.mu.RUnlock()
	if !ok {
		return &realtime.DeliveryError{ConnID: connID, Event: ev.Name, Err: errUnknownConn}
	}

	b, err := json.Marshal(Frame{Event: ev.Name, Data: ev.Data})
	if err != nil {
		return &realtime.DeliveryError{ConnID: connID, Event: ev.Name, Err: err}
	}
	if err := c.enqueue(b); err != nil {
		if errors.Is(err, errSlowReader) {
			t.logger.Warn("closing slow connection", zap.String("conn", connID))
			c.close(websocket.CloseTryAgainLater, "slow reader")
		}
		return &realtime.DeliveryError{ConnID: connID, Event: ev.Name, Err: err}
	}
	return nil
}

// IDs returns the ids of the live connections, sorted
func (t *Conns) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.conns))
	for id := range t.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll sends a going-away close to every connection
func (t *Conns) CloseAll() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.conns {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
}

func (t *Conns) add(c *conn) {
	t.mu.Lock()
	t.conns[c.id] = c
	t.mu.Unlock()
}

func (t *Conns) remove(id string) {
	t.mu.Lock()
	delete(t.conns, id)
	t.mu.Unlock()
}
