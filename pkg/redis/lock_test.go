package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/matcher/internal/testsupport"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	host, port := testsupport.StartRedis(t)
	client := NewClient(Config{Host: host, Port: port}, testsupport.Logger(t))
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLocker_WithLock(t *testing.T) {
	client := newTestClient(t)
	locker := NewLocker(client, "test:")
	ctx := context.Background()

	ran := false
	err := locker.WithLock(ctx, "similarity:1", time.Minute, func() error {
		held, err := client.Exists(ctx, "test:similarity:1")
		require.NoError(t, err)
		assert.True(t, held)

		nested := locker.WithLock(ctx, "similarity:1", time.Minute, func() error {
			t.Fatal("ran while the lock was held")
			return nil
		})
		assert.ErrorIs(t, nested, ErrLockNotAcquired)

		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	held, err := client.Exists(ctx, "test:similarity:1")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestLock_ReleaseAfterExpiry(t *testing.T) {
	client := newTestClient(t)
	locker := NewLocker(client, "")
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "short", 50*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	other, err := locker.Acquire(ctx, "short", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
	assert.NoError(t, other.Release(ctx))
}
