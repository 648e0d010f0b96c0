// Package lock serializes check-ins of the same route across server
// instances using a Redis lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrHeld is returned when another request holds the lock of the route.
var ErrHeld = errors.New("route lock held by another request")

// DefaultTTL bounds how long a crashed holder can block a route.
const DefaultTTL = 30 * time.Second

// RouteLocker takes a per-route lock.  When Redis itself fails the lock is
// skipped and the caller relies on the optimistic status check alone.
type RouteLocker struct {
	client *redislock.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRouteLocker returns nil when rdb is nil so callers can pass the
// result straight to a service that treats a nil locker as disabled.
func NewRouteLocker(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *RouteLocker {
	if rdb == nil {
		return nil
	}
	return newRouteLocker(redislock.New(rdb), ttl, log)
}

func newRouteLocker(client *redislock.Client, ttl time.Duration, log *zap.Logger) *RouteLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RouteLocker{client: client, ttl: ttl, log: log}
}

// Key returns the Redis key guarding routeID.
func Key(routeID uint64) string { return fmt.Sprintf("lock:route:%d", routeID) }

// LockRoute obtains the lock of routeID.  The returned release func is
// never nil.  ErrHeld means another request is checking the route in.
func (l *RouteLocker) LockRoute(ctx context.Context, routeID uint64) (func(), error) {
	noop := func() {}
	if l == nil || l.client == nil {
		return noop, nil
	}
	lk, err := l.client.Obtain(ctx, Key(routeID), l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return noop, ErrHeld
	}
	if err != nil {
		l.log.Warn("error obtaining route lock; proceeding without redis lock",
			zap.Uint64("route_id", routeID), zap.Error(err))
		return noop, nil
	}
	return func() {
		// Release on a fresh context: the request context may already be done.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lk.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn("route lock release failed", zap.Uint64("route_id", routeID), zap.Error(err))
		}
	}, nil
}
