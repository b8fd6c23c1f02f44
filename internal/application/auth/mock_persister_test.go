package auth

import (
	"context"

	"github.com/erp/mall-admin/internal/domain/session"
	"github.com/stretchr/testify/mock"
)

// MockPersister is a mock implementation of session.Persister
type MockPersister struct {
	mock.Mock
}

func (m *MockPersister) Load(ctx context.Context) (session.Session, error) {
	args := m.Called(ctx)
	return args.Get(0).(session.Session), args.Error(1)
}

func (m *MockPersister) Save(ctx context.Context, s session.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockPersister) Remove(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
