// Package session models the operator's authenticated session.
package session

import (
	"context"
	"errors"
)

// StorageKey is the fixed key under which the session document is persisted
const StorageKey = "mall-admin/session"

// ErrNotFound is returned by a Persister that holds no session
var ErrNotFound = errors.New("session: no persisted session")

// Profile is the signed-in operator as returned by the profile endpoint
type Profile struct {
	ID       *int64   `json:"id,omitempty"`
	Username string   `json:"username"`
	NickName string   `json:"nickName,omitempty"`
	Icon     string   `json:"icon,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// Session is the persisted session document. An empty token means anonymous.
type Session struct {
	Token string   `json:"token,omitempty"`
	User  *Profile `json:"user,omitempty"`
}

// IsAnonymous reports whether the session carries no token
func (s Session) IsAnonymous() bool {
	return s.Token == ""
}

// Clone returns a deep copy so callers cannot mutate shared state
func (s Session) Clone() Session {
	out := Session{Token: s.Token}
	if s.User != nil {
		u := *s.User
		if s.User.ID != nil {
			id := *s.User.ID
			u.ID = &id
		}
		u.Roles = append([]string(nil), s.User.Roles...)
		out.User = &u
	}
	return out
}

// Persister stores the session document between console invocations
type Persister interface {
	// Load returns ErrNotFound when nothing is stored
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Remove(ctx context.Context) error
}
