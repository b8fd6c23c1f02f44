package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/mall-admin/internal/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestStore_RestoreAuthenticated(t *testing.T) {
	persister := new(MockPersister)
	stored := session.Session{
		Token: "Bearer abc",
		User:  &session.Profile{ID: int64Ptr(1), Username: "admin", Roles: []string{"root"}},
	}
	persister.On("Load", mock.Anything).Return(stored, nil)

	store := NewStore(persister)
	assert.Equal(t, StateInit, store.State())
	require.NoError(t, store.Restore(context.Background()))

	assert.Equal(t, StateAuthenticated, store.State())
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "Bearer abc", store.Token())
	assert.Equal(t, "admin", store.User().Username)
	persister.AssertExpectations(t)
}

func TestStore_RestoreMissingOrBroken(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"nothing stored", session.ErrNotFound},
		{"unreadable document", errors.New("invalid character 'x'")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			persister := new(MockPersister)
			persister.On("Load", mock.Anything).Return(session.Session{}, tt.err)

			store := NewStore(persister)
			require.NoError(t, store.Restore(context.Background()))

			assert.Equal(t, StateAnonymous, store.State())
			assert.False(t, store.IsAuthenticated())
			assert.Nil(t, store.User())
		})
	}
}

func TestStore_WritesArePersisted(t *testing.T) {
	persister := new(MockPersister)
	ctx := context.Background()
	persister.On("Save", ctx, session.Session{Token: "Bearer t1"}).Return(nil).Once()
	persister.On("Save", ctx, mock.MatchedBy(func(s session.Session) bool {
		return s.Token == "Bearer t1" && s.User != nil && s.User.Username == "admin"
	})).Return(nil).Once()

	store := NewStore(persister)
	require.NoError(t, store.SetToken(ctx, "Bearer t1"))
	require.NoError(t, store.SetUser(ctx, &session.Profile{Username: "admin"}))

	assert.Equal(t, StateAuthenticated, store.State())
	persister.AssertExpectations(t)
}

func TestStore_PersistFailureKeepsMemoryState(t *testing.T) {
	persister := new(MockPersister)
	persister.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	store := NewStore(persister)
	err := store.SetToken(context.Background(), "Bearer t1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "Bearer t1", store.Token())
}

func TestStore_UserIsCopied(t *testing.T) {
	store := NewStore(nil)
	profile := &session.Profile{Username: "admin", Roles: []string{"root"}}
	require.NoError(t, store.Replace(context.Background(), session.Session{Token: "t", User: profile}))

	profile.Roles[0] = "changed"
	got := store.User()
	got.Username = "other"

	assert.Equal(t, "admin", store.User().Username)
	assert.Equal(t, []string{"root"}, store.User().Roles)
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	persister := new(MockPersister)
	persister.On("Save", mock.Anything, mock.Anything).Return(nil)
	persister.On("Remove", mock.Anything).Return(nil).Once()

	store := NewStore(persister)
	require.NoError(t, store.SetToken(context.Background(), "Bearer t1"))

	var changes []session.Session
	store.OnChange(func(s session.Session) { changes = append(changes, s) })

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = store.Clear(context.Background())
		}(i)
	}
	wg.Wait()

	cleared := 0
	for _, ok := range results {
		if ok {
			cleared++
		}
	}
	assert.Equal(t, 1, cleared)
	assert.Equal(t, StateAnonymous, store.State())
	assert.Len(t, changes, 1)
	persister.AssertExpectations(t)
}

func TestStore_Dispose(t *testing.T) {
	store := NewStore(nil)
	called := 0
	store.OnChange(func(session.Session) { called++ })
	store.Dispose()

	assert.ErrorIs(t, store.SetToken(context.Background(), "t"), ErrStoreDisposed)
	assert.ErrorIs(t, store.Restore(context.Background()), ErrStoreDisposed)
	cleared, err := store.Clear(context.Background())
	assert.False(t, cleared)
	assert.NoError(t, err)
	assert.Zero(t, called)
	assert.Equal(t, StateDisposed, store.State())
}
