package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupStateManager(t *testing.T) (*miniredis.Miniredis, *StateManager) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewStateManager(client, "irradiation:event:", time.Minute, zap.NewNop())
}

func TestAcquireLock_Success(t *testing.T) {
	mr, manager := setupStateManager(t)

	acquired, err := manager.AcquireLock(context.Background(), "W123456789", "E0001", "STORAGE")

	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, mr.Exists("irradiation:event:W123456789:E0001:STORAGE"))
}

func TestAcquireLock_HeldByAnotherConsumer(t *testing.T) {
	_, manager := setupStateManager(t)
	ctx := context.Background()

	first, err := manager.AcquireLock(ctx, "W123456789", "E0001", "STORAGE")
	require.NoError(t, err)
	require.True(t, first)

	second, err := manager.AcquireLock(ctx, "W123456789", "E0001", "STORAGE")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestReleaseLock_AllowsReacquire(t *testing.T) {
	_, manager := setupStateManager(t)
	ctx := context.Background()

	acquired, err := manager.AcquireLock(ctx, "W123456789", "E0001", "STORAGE")
	require.NoError(t, err)
	require.True(t, acquired)

	manager.ReleaseLock(ctx, "W123456789", "E0001", "STORAGE")

	again, err := manager.AcquireLock(ctx, "W123456789", "E0001", "STORAGE")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestAcquireLock_ExpiresAfterTTL(t *testing.T) {
	mr, manager := setupStateManager(t)
	ctx := context.Background()

	acquired, err := manager.AcquireLock(ctx, "W123456789", "E0001", "STORAGE")
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(2 * time.Minute)

	again, err := manager.AcquireLock(ctx, "W123456789", "E0001", "STORAGE")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestAcquireLock_DistinctKeysIndependent(t *testing.T) {
	_, manager := setupStateManager(t)
	ctx := context.Background()

	first, err := manager.AcquireLock(ctx, "W123456789", "E0001", "STORAGE")
	require.NoError(t, err)
	assert.True(t, first)

	other, err := manager.AcquireLock(ctx, "W123456789", "E0002", "STORAGE")
	require.NoError(t, err)
	assert.True(t, other)
}
