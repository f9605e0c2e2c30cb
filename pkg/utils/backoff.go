package utils

import (
	"time"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/rng"
)

// ExponentialBackoffWithJitter returns base*2^(attempt-1) with ±12.5% jitter drawn from src, capped at limit.
// attempt is 1-based; zero or negative attempts yield no delay.
func ExponentialBackoffWithJitter(attempt int, base, limit time.Duration, src rng.Source) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt && delay < limit; i++ {
		delay *= 2
	}
	if src != nil {
		delay += time.Duration((src.Float64() - 0.5) * float64(delay) / 4)
	}
	if delay > limit {
		delay = limit
	}
	return delay
}
