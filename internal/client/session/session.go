// Package session owns the authenticated identity and token pair.
//
// The store is the single writer of session state: account flows commit a
// session on login, the token manager rotates the token fields, and every
// other component reads. User-scoped caches register invalidation hooks so
// that clearing the session cannot leak one user's data to the next.
package session

import (
	"strings"
	"sync"

	apperrors "github.com/campushq/campushq/internal/platform/errors"
)

// Role is the platform role attached to the signed-in user.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User identifies the signed-in account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Session is the identity plus token pair for one signed-in user.
//
// Only identity and token fields exist here; transient loading or error
// state never belongs in the session and is never persisted.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
}

// Authenticated reports whether this session carries a usable access token.
// Authentication is derived from token presence, never stored separately,
// so the two can not disagree.
func (s Session) Authenticated() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

// Persistence is the durable storage contract for the session record.
type Persistence interface {
	Load() (Session, bool, error)
	Save(Session) error
	Delete() error
	Close() error
}

// Store holds the current session and notifies subscribers of changes.
type Store struct {
	mu         sync.Mutex
	current    Session
	signedIn   bool
	nextSubID  int
	subs       map[int]func(Session, bool)
	clearHooks []func()
	persist    Persistence
}

// NewStore creates a session store, restoring any previously persisted
// session. persist may be nil for an in-memory store.
func NewStore(persist Persistence) (*Store, error) {
	store := &Store{
		subs:    map[int]func(Session, bool){},
		persist: persist,
	}
	if persist != nil {
		restored, ok, err := persist.Load()
		if err != nil {
			return nil, err
		}
		if ok && restored.Authenticated() {
			store.current = restored
			store.signedIn = true
		}
	}
	return store, nil
}

// Get returns a snapshot of the current session.
func (s *Store) Get() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.signedIn
}

// Set replaces the current session and persists it.
func (s *Store) Set(session Session) error {
	if !session.Authenticated() {
		return apperrors.New(apperrors.CodeValidation, "session requires an access token")
	}

	s.mu.Lock()
	s.current = session
	s.signedIn = true
	if s.persist != nil {
		if err := s.persist.Save(session); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(session, true)
	}
	return nil
}

// SetTokens rotates the token pair of the current session in place.
// It is the token manager's commit point after a successful refresh.
func (s *Store) SetTokens(accessToken, refreshToken string) error {
	s.mu.Lock()
	if !s.signedIn {
		s.mu.Unlock()
		return apperrors.New(apperrors.CodeNotSignedIn, "no session to update")
	}
	updated := s.current
	updated.AccessToken = accessToken
	if refreshToken != "" {
		updated.RefreshToken = refreshToken
	}
	if !updated.Authenticated() {
		s.mu.Unlock()
		return apperrors.New(apperrors.CodeValidation, "session requires an access token")
	}
	s.current = updated
	if s.persist != nil {
		if err := s.persist.Save(updated); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(updated, true)
	}
	return nil
}

// Clear destroys the current session. Registered clear hooks run
// synchronously before Clear returns so user-scoped caches are already
// empty when the next caller observes the signed-out state.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.current = Session{}
	s.signedIn = false
	var persistErr error
	if s.persist != nil {
		persistErr = s.persist.Delete()
	}
	hooks := make([]func(), len(s.clearHooks))
	copy(hooks, s.clearHooks)
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	for _, fn := range subs {
		fn(Session{}, false)
	}
	return persistErr
}

// Subscribe registers a listener for session changes. The listener receives
// an immutable snapshot. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Session, bool)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// OnClear registers a hook invoked synchronously inside Clear.
func (s *Store) OnClear(fn func()) {
	s.mu.Lock()
	s.clearHooks = append(s.clearHooks, fn)
	s.mu.Unlock()
}

// Close releases the underlying persistence.
func (s *Store) Close() error {
	if s.persist == nil {
		return nil
	}
	return s.persist.Close()
}

// snapshotSubs copies current subscribers; callers must hold mu.
func (s *Store) snapshotSubs() []func(Session, bool) {
	subs := make([]func(Session, bool), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}
