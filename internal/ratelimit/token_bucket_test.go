package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/techwallet/internal/config"
)

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, time.Second, bucketTTL(0, 1))
	assert.Equal(t, 20*time.Second, bucketTTL(1, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter(true, 0, 1))
	assert.Equal(t, 500*time.Millisecond, retryAfter(false, 0.5, 1))
	assert.Equal(t, 2*time.Second, retryAfter(false, 0, 0.5))
}

func TestScriptValueParsing(t *testing.T) {
	assert.Equal(t, int64(1), toInt64(int64(1)))
	assert.Equal(t, int64(0), toInt64(nil))
	assert.InDelta(t, 2.5, toFloat64("2.5"), 0.0001)
	assert.InDelta(t, 3.0, toFloat64(int64(3)), 0.0001)
}

func TestPayoutRequestLimiterDisabledWithoutRedis(t *testing.T) {
	limiter := NewPayoutRequestLimiter(config.Config{PayoutRequestRate: 1, PayoutRequestBurst: 5}, nil)
	require.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLockerNilClient(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
	var l *Locker
	assert.NoError(t, l.Release(context.Background(), "k", "t"))
}
