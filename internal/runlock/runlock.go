package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("another sync run holds the lock")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker guards a sync run across hosts with a Redis key holding the run id.
// A nil client makes every operation a no-op.
type Locker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewLocker creates a Redis-based run lock. Key defaults to "usersync:lock".
func NewLocker(client *redis.Client, key string, ttl time.Duration) *Locker {
	if key == "" {
		key = "usersync:lock"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Locker{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock for token. The key expires after the TTL so a crashed
// run does not block later ones forever.
func (l *Locker) Acquire(ctx context.Context, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		holder, _ := l.client.Get(ctx, l.key).Result()
		return fmt.Errorf("%w (held by %s)", ErrLocked, holder)
	}
	return nil
}

// Release drops the lock if token still owns it.
func (l *Locker) Release(ctx context.Context, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// Holder returns the token currently holding the lock, or "" when free.
func (l *Locker) Holder(ctx context.Context) (string, error) {
	if l == nil || l.client == nil {
		return "", nil
	}
	v, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return v, nil
}
