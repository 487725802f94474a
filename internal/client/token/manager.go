// Package token owns access-token renewal for the client.
//
// Renewal is single-flight: under concurrent demand exactly one refresh call
// reaches the network and every caller observes its result. The platform
// rotates refresh tokens, so a second concurrent refresh would consume the
// pair twice and invalidate the session.
package token

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campushq/campushq/internal/client/session"
	apperrors "github.com/campushq/campushq/internal/platform/errors"
	"github.com/campushq/campushq/internal/platform/timeouts"
)

// Pair is a rotated access/refresh token pair returned by the platform.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// RefreshClient performs the network token-refresh call.
type RefreshClient interface {
	RefreshTokens(ctx context.Context, refreshToken string) (Pair, error)
}

// Manager produces a currently valid access token on demand.
type Manager struct {
	sessions *session.Store
	client   RefreshClient
	leeway   time.Duration
	now      func() time.Time

	mu       sync.Mutex
	inflight *refreshCall
}

// refreshCall is one in-flight refresh shared by all concurrent waiters.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// NewManager creates a token manager backed by the given session store.
func NewManager(sessions *session.Store, client RefreshClient) *Manager {
	return &Manager{
		sessions: sessions,
		client:   client,
		leeway:   timeouts.TokenLeeway,
		now:      time.Now,
	}
}

// Current returns the access token of the signed-in session, or "".
func (m *Manager) Current() string {
	current, ok := m.sessions.Get()
	if !ok {
		return ""
	}
	return current.AccessToken
}

// Token returns an access token for an outbound request, refreshing first
// when the token's recorded expiry is within the leeway window. An empty
// token with a nil error means the caller is anonymous.
func (m *Manager) Token(ctx context.Context) (string, error) {
	current, ok := m.sessions.Get()
	if !ok {
		return "", nil
	}
	if !m.nearExpiry(current.AccessToken) {
		return current.AccessToken, nil
	}
	return m.Refresh(ctx)
}

// Refresh rotates the token pair. When a refresh is already in progress the
// caller joins it instead of starting another. Refresh failure is terminal:
// the session is cleared and every waiter receives AUTH_EXPIRED.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if call := m.inflight; call != nil {
		m.mu.Unlock()
		return awaitCall(ctx, call)
	}
	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	m.mu.Unlock()

	call.token, call.err = m.doRefresh(ctx)

	m.mu.Lock()
	m.inflight = nil
	m.mu.Unlock()
	close(call.done)

	return call.token, call.err
}

func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	current, ok := m.sessions.Get()
	if !ok || strings.TrimSpace(current.RefreshToken) == "" {
		_ = m.sessions.Clear()
		return "", apperrors.New(apperrors.CodeAuthExpired, "session expired, please sign in again")
	}

	pair, err := m.client.RefreshTokens(ctx, current.RefreshToken)
	if err != nil {
		_ = m.sessions.Clear()
		return "", apperrors.Wrap(apperrors.CodeAuthExpired, "session expired, please sign in again", err)
	}
	if strings.TrimSpace(pair.AccessToken) == "" {
		_ = m.sessions.Clear()
		return "", apperrors.New(apperrors.CodeAuthExpired, "session expired, please sign in again")
	}

	if err := m.sessions.SetTokens(pair.AccessToken, pair.RefreshToken); err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

// nearExpiry reports whether the token's exp claim falls inside the leeway
// window. Opaque tokens never report near-expiry; the server stays
// authoritative via 401.
func (m *Manager) nearExpiry(raw string) bool {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !m.now().Add(m.leeway).Before(claims.ExpiresAt.Time)
}

func awaitCall(ctx context.Context, call *refreshCall) (string, error) {
	select {
	case <-call.done:
		return call.token, call.err
	case <-ctx.Done():
		return "", apperrors.Wrap(apperrors.CodeNetwork, "token refresh interrupted", ctx.Err())
	}
}
