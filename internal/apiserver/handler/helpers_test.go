package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"

	jsvc "github.com/bloopsocial/bloop/internal/auth/jwt"
	"github.com/bloopsocial/bloop/internal/common/errorx"
	"github.com/bloopsocial/bloop/internal/i18n"
	"github.com/bloopsocial/bloop/internal/realtime"
	"github.com/bloopsocial/bloop/internal/store"
)

func mustNewJWTService() *jsvc.Service {
	s, _ := jsvc.NewService(jsvc.Config{SecretKey: "this-is-a-very-long-secret-key-for-testing", Duration: time.Hour})
	return s
}

// pushLog records every event pushed to a connection
type pushLog struct {
	mu  sync.Mutex
	got map[string][]realtime.Event
}

func (p *pushLog) Push(connID string, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got[connID] = append(p.got[connID], ev)
	return nil
}

func (p *pushLog) named(connID, name string) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Event
	for _, ev := range p.got[connID] {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type apiEnv struct {
	r   *gin.Engine
	st  *store.Store
	hub *realtime.Hub
	out *pushLog
	jwt *jsvc.Service
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(sqlite.Open(":memory:"), nil)
	require.NoError(t, err)
	tr, err := i18n.New("es")
	require.NoError(t, err)

	out := &pushLog{got: map[string][]realtime.Event{}}
	hub := realtime.NewHub(realtime.HubOptions{
		Pusher:        out,
		Verifier:      mustNewJWTService(),
		Messages:      st,
		Notifications: st,
		Presence:      realtime.PresenceOptions{AllowAnonymous: true},
	})
	hub.Notifications.WithLocalizer(tr)
	t.Cleanup(func() {
		hub.Close()
		_ = st.Close()
	})

	r := gin.New()
	eh := errorx.NewErrorHandler(nil, DomainErrors)
	r.Use(eh.RecoveryMiddleware(), eh.ErrorMiddleware())
	svc := mustNewJWTService()
	NewHandler(st, hub, tr, nil).Register(r, svc)

	return &apiEnv{r: r, st: st, hub: hub, out: out, jwt: svc}
}

func (e *apiEnv) user(t *testing.T, name string) *store.User {
	t.Helper()
	u, err := e.st.CreateUser(context.Background(), name, name, "")
	require.NoError(t, err)
	return u
}

// online connects connID as userID through the hub
func (e *apiEnv) online(t *testing.T, connID, userID string) {
	t.Helper()
	tok, err := e.jwt.GenerateToken(userID, userID)
	require.NoError(t, err)
	_, err = e.hub.Connect(context.Background(), connID, realtime.Handshake{AuthToken: tok})
	require.NoError(t, err)
}

func (e *apiEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		tok, err := e.jwt.GenerateToken(userID, userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[struct {
		Error errorx.APIError `json:"error"`
	}](t, w)
	return body.Error.Code
}

