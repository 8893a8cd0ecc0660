package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/chatdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendLimiterDisabledAllows(t *testing.T) {
	limiter, err := NewSendLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNilLockerRunsUnguarded(t *testing.T) {
	var locker *Locker
	assert.Nil(t, NewLocker(nil))

	ran := false
	err := locker.WithLock(context.Background(), "job", time.Minute, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	_, _, err = locker.TryLock(context.Background(), "job", time.Minute)
	assert.True(t, errors.Is(err, ErrLockNotConfigured))
	assert.NoError(t, locker.Release(context.Background(), "job", "token"))
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var bucket *TokenBucket
	res, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
	assert.False(t, res.Allowed)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, time.Second, defaultBucketTTL(0, 1))
	assert.Equal(t, 8*time.Second, defaultBucketTTL(5, 20))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
}

func TestCastHelpers(t *testing.T) {
	assert.Equal(t, int64(3), castToInt(int64(3)))
	assert.Equal(t, int64(0), castToInt("x"))
	assert.Equal(t, 2.5, castToFloat("2.5"))
	assert.Equal(t, 4.0, castToFloat(int64(4)))
}
