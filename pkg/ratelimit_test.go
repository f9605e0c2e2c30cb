package pkg

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestCallLimiter_UnlimitedWhenRateZero(t *testing.T) {
	l := NewCallLimiter(CallLimiterConfig{})
	for i := 0; i < 100; i++ {
		assert.NoError(t, l.Acquire(context.Background()))
	}
}

func TestCallLimiter_FailsFastBeyondMaxWait(t *testing.T) {
	l := NewCallLimiter(CallLimiterConfig{RatePerSec: 1, Burst: 1, MaxWait: 10 * time.Millisecond})

	assert.NoError(t, l.Acquire(context.Background()))
	assert.ErrorIs(t, l.Acquire(context.Background()), ErrRateLimitExceeded)
}

func TestCallLimiter_WaitsWithinMaxWait(t *testing.T) {
	l := NewCallLimiter(CallLimiterConfig{RatePerSec: 100, Burst: 1, MaxWait: time.Second})

	assert.NoError(t, l.Acquire(context.Background()))
	start := time.Now()
	assert.NoError(t, l.Acquire(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestCallLimiter_RedisWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	client, mock := redismock.NewClientMock()
	key := fmt.Sprintf("throttle:scoring:%d", now.UnixNano()/int64(time.Second))
	l := NewCallLimiter(CallLimiterConfig{
		RatePerSec:  1000,
		Burst:       10,
		MaxWait:     time.Second,
		RedisClient: client,
		Key:         "throttle:scoring",
		Window:      time.Second,
		WindowLimit: 1,
		Now:         func() time.Time { return now },
	})

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, 2*time.Second).SetVal(true)
	assert.NoError(t, l.Acquire(context.Background()))

	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectExpire(key, 2*time.Second).SetVal(true)
	assert.ErrorIs(t, l.Acquire(context.Background()), ErrRateLimitExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallLimiter_RedisErrorAllowsCall(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	client, mock := redismock.NewClientMock()
	key := fmt.Sprintf("throttle:x:%d", now.UnixNano()/int64(time.Second))
	l := NewCallLimiter(CallLimiterConfig{
		RatePerSec: 1000, Burst: 10, MaxWait: time.Second,
		RedisClient: client, Key: "throttle:x", WindowLimit: 1,
		Now: func() time.Time { return now },
	})
	mock.ExpectIncr(key).SetErr(errors.New("redis down"))

	assert.NoError(t, l.Acquire(context.Background()))
}
