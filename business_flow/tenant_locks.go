package businessflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TenantLocker serializes work per tenant. Calls for the same tenant never run fn
// concurrently; calls for different tenants never wait on each other.
type TenantLocker interface {
	WithTenantLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context) error) error
}

type tenantLockEntry struct {
	sem  chan struct{}
	refs int
}

// LocalTenantLocker is an in-process TenantLocker. Entries are reference counted
// and removed once no caller holds or waits for them.
type LocalTenantLocker struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*tenantLockEntry
	timeout time.Duration
}

// NewLocalTenantLocker creates an in-process locker; timeout <= 0 waits only on ctx
func NewLocalTenantLocker(timeout time.Duration) *LocalTenantLocker {
	return &LocalTenantLocker{
		entries: make(map[uuid.UUID]*tenantLockEntry),
		timeout: timeout,
	}
}

func (l *LocalTenantLocker) acquireEntry(tenantID uuid.UUID) *tenantLockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[tenantID]
	if !ok {
		e = &tenantLockEntry{sem: make(chan struct{}, 1)}
		l.entries[tenantID] = e
	}
	e.refs++
	return e
}

func (l *LocalTenantLocker) releaseEntry(tenantID uuid.UUID, e *tenantLockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, tenantID)
	}
}

// WithTenantLock runs fn while holding the tenant's lock
func (l *LocalTenantLocker) WithTenantLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context) error) error {
	e := l.acquireEntry(tenantID)
	defer l.releaseEntry(tenantID, e)

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	select {
	case e.sem <- struct{}{}:
	case <-waitCtx.Done():
		tenantLockWait.WithLabelValues("local").Observe(time.Since(start).Seconds())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
	tenantLockWait.WithLabelValues("local").Observe(time.Since(start).Seconds())
	defer func() { <-e.sem }()

	return fn(ctx)
}

// size returns the number of tenants with a live lock entry
func (l *LocalTenantLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
