package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/erp/mall-admin/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisInvalidationBus_Integration(t *testing.T) {
	client := testutil.NewRedis(t)
	ctx := context.Background()

	local := NewRedisInvalidationBusWithClient(client, WithBusChannel("test:invalidate"))
	remote := NewRedisInvalidationBusWithClient(client, WithBusChannel("test:invalidate"))
	require.NotEqual(t, local.Origin(), remote.Origin())

	var mu sync.Mutex
	var received [][]string
	ready := make(chan struct{})
	go func() {
		_ = local.Subscribe(ctx, func(scope []string) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, scope)
		}, ready)
	}()
	<-ready
	defer local.Close()

	require.NoError(t, local.Publish(ctx, []string{"ignored"}))
	require.NoError(t, remote.Publish(ctx, []string{"productCategories", "21"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, testutil.WaitTimeout, testutil.PollInterval)

	mu.Lock()
	assert.Equal(t, [][]string{{"productCategories", "21"}}, received, "own messages are skipped")
	mu.Unlock()
}

func TestRedisInvalidationBus_DrivesRemoteCache(t *testing.T) {
	client := testutil.NewRedis(t)
	ctx := context.Background()

	publisher := New(WithBroadcaster(NewRedisInvalidationBusWithClient(client)))
	defer publisher.Close()

	bus := NewRedisInvalidationBusWithClient(client)
	subscriber := New()
	defer subscriber.Close()
	ready := make(chan struct{})
	go func() { _ = bus.Subscribe(ctx, subscriber.ApplyRemote, ready) }()
	<-ready
	defer bus.Close()

	key := NewKey([]string{"brands"})
	_, err := subscriber.Get(ctx, key, (&countingFetcher{prefix: "v"}).fetch)
	require.NoError(t, err)
	require.Equal(t, 1, subscriber.Len())

	publisher.Invalidate("brands")

	require.Eventually(t, func() bool { return subscriber.Len() == 0 },
		testutil.WaitTimeout, testutil.PollInterval)
}
