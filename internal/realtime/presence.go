package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle stage of one connection.
type State int

const (
	// StateConnecting holds connections without a verified user: either no
	// credential was offered or it was rejected under the anonymous policy.
	StateConnecting State = iota
	StateAuthenticated
	// StateUnauthenticated is terminal; the transport closes the connection.
	StateUnauthenticated
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var errNoCredential = errors.New("no credential")

// Handshake carries the credential candidates of a new connection.
type Handshake struct {
	// AuthToken is the dedicated auth field (bearer header).
	AuthToken string
	// QueryToken is the "token" query parameter.
	QueryToken string
}

// Token returns the credential to verify, preferring the auth field.
func (h Handshake) Token() string {
	if h.AuthToken != "" {
		return h.AuthToken
	}
	return h.QueryToken
}

// Session is the core's view of one connection.
type Session struct {
	id string

	mu     sync.Mutex
	state  State
	userID string
}

// NewSession returns a session in StateConnecting.
func NewSession(connID string) *Session {
	return &Session{id: connID}
}

func (s *Session) ID() string { return s.id }

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the authenticated user, or "" before authentication.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return ""
	}
	return s.userID
}

// PresenceOptions configures a Presence.
type PresenceOptions struct {
	// VerifyTimeout bounds credential verification; a timeout counts as a
	// rejected credential.
	VerifyTimeout time.Duration
	// AllowAnonymous keeps connections without a valid credential open.
	AllowAnonymous bool
}

// Presence authenticates new connections and keeps the registry in sync with
// their lifecycle.
type Presence struct {
	registry *Registry
	verifier Verifier
	opts     PresenceOptions
	logger   *zap.Logger
	rec      Recorder
}

func NewPresence(registry *Registry, verifier Verifier, opts PresenceOptions, logger *zap.Logger, rec Recorder) *Presence {
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presence{
		registry: registry,
		verifier: verifier,
		opts:     opts,
		logger:   logger.Named("realtime.presence"),
		rec:      recorderOrNop(rec),
	}
}

// Connect authenticates a new connection. The returned session is always
// non-nil. A non-nil *AuthError is returned only when the connection must
// be closed, in which case the session is StateUnauthenticated.
func (p *Presence) Connect(ctx context.Context, connID string, hs Handshake) (*Session, error) {
	s := NewSession(connID)
	token := hs.Token()

	var cause error
	if token == "" {
		cause = errNoCredential
	} else {
		vctx, cancel := context.WithTimeout(ctx, p.opts.VerifyTimeout)
		userID, err := p.verifier.Verify(vctx, token)
		cancel()
		switch {
		case err != nil:
			cause = err
		case userID == "":
			cause = errors.New("credential carries no user id")
		default:
			s.mu.Lock()
			s.state = StateAuthenticated
			s.userID = userID
			s.mu.Unlock()
			p.registry.Register(userID, connID)
			p.rec.AuthResult("ok")
			p.logger.Debug("connection authenticated",
				zap.String("conn", connID), zap.String("user", userID))
			return s, nil
		}
	}

	if errors.Is(cause, errNoCredential) {
		p.rec.AuthResult("anonymous")
	} else {
		p.rec.AuthResult("invalid")
		p.logger.Warn("rejected socket credential",
			zap.String("conn", connID), zap.Error(cause))
	}

	if p.opts.AllowAnonymous {
		return s, nil
	}
	s.mu.Lock()
	s.state = StateUnauthenticated
	s.mu.Unlock()
	return s, &AuthError{ConnID: connID, Err: cause}
}

// Disconnect moves s to StateDisconnected and removes it from the registry
// if it was authenticated. Repeated calls are no-ops.
func (p *Presence) Disconnect(s *Session) {
	s.mu.Lock()
	prev, userID := s.state, s.userID
	s.state = StateDisconnected
	s.mu.Unlock()

	if prev == StateAuthenticated {
		p.registry.Unregister(userID, s.id)
		p.logger.Debug("connection left",
			zap.String("conn", s.id), zap.String("user", userID))
	}
}
