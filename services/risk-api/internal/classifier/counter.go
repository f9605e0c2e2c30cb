// Package classifier counts requests per source and labels each one normal, suspicious or blocked.
package classifier

import (
	"context"
	"sync"
	"time"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
)

const (
	DefaultThreshold   = 100
	DefaultResetWindow = 60 * time.Second
)

// Result is the outcome of counting one request.
type Result struct {
	Count          int
	Classification pkg.Classification
}

func (r Result) Blocked() bool {
	return r.Classification == pkg.ClassificationBlocked
}

// Thresholds are inclusive upper bounds: a count above Suspicious is suspicious, above Blocked is blocked.
type Thresholds struct {
	Suspicious int
	Blocked    int
}

// NewThresholds derives the suspicious bound as half of threshold when suspicious is zero.
func NewThresholds(threshold, suspicious int) Thresholds {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if suspicious <= 0 || suspicious > threshold {
		suspicious = threshold / 2
	}
	return Thresholds{Suspicious: suspicious, Blocked: threshold}
}

func (t Thresholds) classify(count int) pkg.Classification {
	switch {
	case count > t.Blocked:
		return pkg.ClassificationBlocked
	case count > t.Suspicious:
		return pkg.ClassificationSuspicious
	default:
		return pkg.ClassificationNormal
	}
}

// Counter owns the per-source request counts. All access goes through Classify and Reset.
type Counter struct {
	mu         sync.Mutex
	counts     map[string]int
	thresholds Thresholds
}

func NewCounter(t Thresholds) *Counter {
	return &Counter{counts: make(map[string]int), thresholds: t}
}

// Classify increments the count for sourceID and classifies the new value. An empty id shares the
// "Unknown" bucket.
func (c *Counter) Classify(sourceID string) Result {
	if sourceID == "" {
		sourceID = pkg.UnknownSource
	}
	c.mu.Lock()
	c.counts[sourceID]++
	count := c.counts[sourceID]
	c.mu.Unlock()

	return Result{Count: count, Classification: c.thresholds.classify(count)}
}

// Reset clears every source at once and returns how many were tracked.
func (c *Counter) Reset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cleared := len(c.counts)
	c.counts = make(map[string]int)
	return cleared
}

// Sources reports how many sources are currently tracked.
func (c *Counter) Sources() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}

// Ticker abstracts time.Ticker so resets can be driven by tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		d = DefaultResetWindow
	}
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// Run resets the counter on every tick until ctx is done. onReset, when set, is called after each sweep.
func (c *Counter) Run(ctx context.Context, ticker Ticker, onReset func(sources int)) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			sources := c.Reset()
			if onReset != nil {
				onReset(sources)
			}
		}
	}
}
