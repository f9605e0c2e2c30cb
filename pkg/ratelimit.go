package pkg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Errors
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// CallLimiterConfig configures a CallLimiter.
type CallLimiterConfig struct {
	RatePerSec  int           // local token rate; 0 disables limiting
	Burst       int           // local bucket size
	MaxWait     time.Duration // fail fast when the next token is further away than this
	RedisClient *redis.Client // optional; enables the cross-replica window counter
	Key         string        // e.g: "throttle:scoring"
	Window      time.Duration // cross-replica counting window
	WindowLimit int64         // calls allowed per window across replicas; 0 disables
	Now         func() time.Time
	Logger      *zap.Logger
}

// CallLimiter throttles outbound calls. A local token bucket shapes the rate per replica and an optional
// Redis fixed-window counter caps the total across replicas.
type CallLimiter struct {
	local       *rate.Limiter
	maxWait     time.Duration
	redisClient *redis.Client
	key         string
	window      time.Duration
	windowLimit int64
	now         func() time.Time
	logger      *zap.Logger
}

// NewCallLimiter creates a limiter; if RatePerSec=0, it's unlimited.
func NewCallLimiter(cfg CallLimiterConfig) *CallLimiter {
	var local *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		local = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallLimiter{
		local:       local,
		maxWait:     cfg.MaxWait,
		redisClient: cfg.RedisClient,
		key:         cfg.Key,
		window:      window,
		windowLimit: cfg.WindowLimit,
		now:         now,
		logger:      logger,
	}
}

// Acquire blocks for at most MaxWait until a call may proceed. It returns ErrRateLimitExceeded when the
// wait would be longer or the cross-replica window is exhausted, and ctx.Err() if ctx ends first.
func (l *CallLimiter) Acquire(ctx context.Context) error {
	if l.local == nil {
		return nil // Unlimited
	}

	reservation := l.local.Reserve()
	if !reservation.OK() {
		return ErrRateLimitExceeded
	}
	if delay := reservation.Delay(); delay > 0 {
		if delay > l.maxWait {
			reservation.Cancel()
			return ErrRateLimitExceeded
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			reservation.Cancel()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if l.redisClient == nil || l.windowLimit <= 0 {
		return nil
	}

	slot := l.now().UnixNano() / int64(l.window)
	key := fmt.Sprintf("%s:%d", l.key, slot)
	pipe := l.redisClient.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("redis_throttle_error_falling_back_to_local", zap.String("key", key), zap.Error(err))
		return nil
	}
	if count := incr.Val(); count > l.windowLimit {
		l.logger.Warn("global_call_limit_exceeded", zap.String("key", key), zap.Int64("count", count))
		return ErrRateLimitExceeded
	}
	return nil
}
