package runlock

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLocker_AcquireRelease(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	l := NewLocker(client, "test:lock", time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "run-1"))
	holder, err := l.Holder(ctx)
	require.NoError(t, err)
	require.Equal(t, "run-1", holder)

	// second run is refused while the first holds the lock
	err = l.Acquire(ctx, "run-2")
	require.ErrorIs(t, err, ErrLocked)
	require.Contains(t, err.Error(), "run-1")

	// a non-owner release leaves the lock in place
	require.NoError(t, l.Release(ctx, "run-2"))
	holder, _ = l.Holder(ctx)
	require.Equal(t, "run-1", holder)

	require.NoError(t, l.Release(ctx, "run-1"))
	holder, _ = l.Holder(ctx)
	require.Empty(t, holder)

	require.NoError(t, l.Acquire(ctx, "run-2"))
}

func TestLocker_TTLExpiry(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	l := NewLocker(client, "", 2*time.Second)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "crashed-run"))
	require.True(t, m.Exists("usersync:lock"))

	m.FastForward(3 * time.Second)

	require.NoError(t, l.Acquire(ctx, "next-run"))
}

func TestLocker_NoClientNoop(t *testing.T) {
	l := NewLocker(nil, "", 0)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "a"))
	require.NoError(t, l.Acquire(ctx, "b"))
	require.NoError(t, l.Release(ctx, "a"))
	h, err := l.Holder(ctx)
	require.NoError(t, err)
	require.Empty(t, h)
}
