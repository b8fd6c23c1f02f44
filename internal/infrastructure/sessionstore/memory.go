// Package sessionstore persists the operator session between console runs.
package sessionstore

import (
	"context"
	"sync"

	"github.com/erp/mall-admin/internal/domain/session"
)

// MemoryPersister keeps the session in process memory. Used in tests and
// when session.backend = memory.
type MemoryPersister struct {
	mu     sync.Mutex
	stored *session.Session
	saves  int
}

var _ session.Persister = (*MemoryPersister)(nil)

// NewMemoryPersister creates an empty in-memory persister
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// Load implements session.Persister
func (p *MemoryPersister) Load(_ context.Context) (session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stored == nil {
		return session.Session{}, session.ErrNotFound
	}
	return p.stored.Clone(), nil
}

// Save implements session.Persister
func (p *MemoryPersister) Save(_ context.Context, s session.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := s.Clone()
	p.stored = &clone
	p.saves++
	return nil
}

// Remove implements session.Persister
func (p *MemoryPersister) Remove(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored = nil
	return nil
}

// Saves returns how many times Save was called
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
