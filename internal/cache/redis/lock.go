package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// releaseLua deletes the lock only while it still carries the caller's
// token, so an expired holder cannot release a newer one.
var releaseLua = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockManager implements domain.LockManager with SET NX PX and a token
// checked release.
type LockManager struct {
	rdb *redis.Client
}

// NewLockManager creates a LockManager.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.Underlying()}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire takes the lock for ttl. It returns domain.ErrLockHeld when
// another holder has it. The returned release func is idempotent and uses
// its own short deadline so it still runs after ctx is cancelled.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	k := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseLua.Run(rctx, lm.rdb, []string{k}, token).Err()
		})
	}
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
