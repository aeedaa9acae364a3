package businessflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseTenantLockScript deletes the lock only if it still holds our token
var releaseTenantLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTenantLocker is a TenantLocker shared by every process using the same Redis
type RedisTenantLocker struct {
	rc            *redis.Client
	prefix        string
	ttl           time.Duration
	timeout       time.Duration
	retryInterval time.Duration
}

// NewRedisTenantLocker creates a distributed locker. ttl bounds how long a crashed
// holder can block the tenant and must exceed the longest expected assignment.
func NewRedisTenantLocker(rc *redis.Client, prefix string, ttl, timeout, retryInterval time.Duration) *RedisTenantLocker {
	if retryInterval <= 0 {
		retryInterval = 25 * time.Millisecond
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisTenantLocker{
		rc:            rc,
		prefix:        prefix,
		ttl:           ttl,
		timeout:       timeout,
		retryInterval: retryInterval,
	}
}

func (l *RedisTenantLocker) key(tenantID uuid.UUID) string {
	return l.prefix + utils.TenantLockKeyPrefix + tenantID.String()
}

// WithTenantLock runs fn while holding the tenant's Redis lock
func (l *RedisTenantLocker) WithTenantLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context) error) error {
	key := l.key(tenantID)
	token := uuid.NewString()

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.rc.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("failed to acquire tenant lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			tenantLockWait.WithLabelValues("redis").Observe(time.Since(start).Seconds())
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrLockTimeout
		}
	}
	tenantLockWait.WithLabelValues("redis").Observe(time.Since(start).Seconds())

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = releaseTenantLockScript.Run(releaseCtx, l.rc, []string{key}, token).Err()
	}()

	return fn(ctx)
}
