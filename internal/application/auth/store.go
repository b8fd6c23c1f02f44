// Package auth owns the operator session: the session store handed to the
// HTTP pipeline and route guard, the login flow, and the guard itself.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erp/mall-admin/internal/domain/session"
	"go.uber.org/zap"
)

// State is the lifecycle stage of a Store
type State int

const (
	StateInit State = iota
	StateAnonymous
	StateAuthenticated
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// ErrStoreDisposed is returned by writes after Dispose
var ErrStoreDisposed = errors.New("auth: session store disposed")

// Store is the session context object shared by the pipeline and the guard.
// Writers are login, logout and the auth-expiry flow.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Store struct {
	mu        sync.RWMutex
	current   session.Session
	state     State
	persister session.Persister
	logger    *zap.Logger
	listeners []func(session.Session)
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithStoreLogger sets the logger
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store in the init state. A nil persister keeps the
// session in memory only.
func NewStore(persister session.Persister, opts ...StoreOption) *Store {
	s := &Store{
		state:     StateInit,
		persister: persister,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted session and leaves init. A missing or
// unreadable document yields an anonymous session; only the latter is logged.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return ErrStoreDisposed
	}

	var restored session.Session
	if s.persister != nil {
		loaded, err := s.persister.Load(ctx)
		switch {
		case err == nil:
			restored = loaded
		case errors.Is(err, session.ErrNotFound):
		default:
			s.logger.Warn("Discarding unreadable persisted session", zap.Error(err))
		}
	}
	s.current = restored
	s.state = stateOf(restored)
	snapshot := s.current.Clone()
	s.mu.Unlock()

	s.logger.Debug("Session restored", zap.Stringer("state", s.State()))
	s.notify(snapshot)
	return nil
}

func stateOf(sess session.Session) State {
	if sess.IsAnonymous() {
		return StateAnonymous
	}
	return StateAuthenticated
}

// Session returns a copy of the current session
func (s *Store) Session() session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Token returns the current token, or "" when anonymous
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// User returns a copy of the current profile, or nil
func (s *Store) User() *session.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone().User
}

// IsAuthenticated reports whether a token is held
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.current.IsAnonymous()
}

// State returns the lifecycle stage
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetToken replaces the token and persists the session
func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.update(ctx, func(sess *session.Session) {
		sess.Token = token
	})
}

// SetUser replaces the profile and persists the session
func (s *Store) SetUser(ctx context.Context, user *session.Profile) error {
	return s.update(ctx, func(sess *session.Session) {
		if user == nil {
			sess.User = nil
			return
		}
		clone := session.Session{User: user}.Clone()
		sess.User = clone.User
	})
}

// Replace swaps the whole session, as a fresh login does
func (s *Store) Replace(ctx context.Context, next session.Session) error {
	return s.update(ctx, func(sess *session.Session) {
		*sess = next.Clone()
	})
}

func (s *Store) update(ctx context.Context, mutate func(*session.Session)) error {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return ErrStoreDisposed
	}
	mutate(&s.current)
	s.state = stateOf(s.current)
	snapshot := s.current.Clone()
	s.mu.Unlock()

	if s.persister != nil {
		var err error
		if snapshot.IsAnonymous() && snapshot.User == nil {
			err = s.persister.Remove(ctx)
		} else {
			err = s.persister.Save(ctx, snapshot)
		}
		if err != nil {
			s.notify(snapshot)
			return fmt.Errorf("failed to persist session: %w", err)
		}
	}
	s.notify(snapshot)
	return nil
}

// Clear drops the session and its persisted copy. It reports whether anything
// was cleared, so a second concurrent clear can tell it lost the race.
func (s *Store) Clear(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state == StateDisposed || (s.current.IsAnonymous() && s.current.User == nil) {
		s.mu.Unlock()
		return false, nil
	}
	s.current = session.Session{}
	s.state = StateAnonymous
	s.mu.Unlock()

	var err error
	if s.persister != nil {
		if rmErr := s.persister.Remove(ctx); rmErr != nil {
			err = fmt.Errorf("failed to remove persisted session: %w", rmErr)
		}
	}
	s.notify(session.Session{})
	return true, err
}

// OnChange registers fn to be called after every session change
func (s *Store) OnChange(fn func(session.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(snapshot session.Session) {
	s.mu.RLock()
	listeners := append([]func(session.Session){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(snapshot.Clone())
	}
}

// Dispose ends the store's lifecycle. The persisted session is kept.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisposed
	s.listeners = nil
}
