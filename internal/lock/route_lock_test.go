package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "lock:route:42", Key(42))
}

func TestNilLockerIsDisabled(t *testing.T) {
	assert.Nil(t, NewRouteLocker(nil, 0, nil))

	var l *RouteLocker
	release, err := l.LockRoute(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.NotPanics(t, release)
}

func TestNewRouteLockerDefaults(t *testing.T) {
	l := newRouteLocker(nil, 0, nil)
	assert.Equal(t, DefaultTTL, l.ttl)
	assert.NotNil(t, l.log)

	release, err := l.LockRoute(context.Background(), 1)
	require.NoError(t, err)
	assert.NotPanics(t, release)
}
