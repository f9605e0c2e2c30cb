package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }
func (f fixedSource) Intn(int) int     { return 0 }

func TestExponentialBackoffWithJitter(t *testing.T) {
	assert.Zero(t, ExponentialBackoffWithJitter(0, time.Second, time.Minute, nil))
	assert.Equal(t, time.Second, ExponentialBackoffWithJitter(1, time.Second, time.Minute, fixedSource(0.5)))
	assert.Equal(t, 4*time.Second, ExponentialBackoffWithJitter(3, time.Second, time.Minute, fixedSource(0.5)))
	assert.Equal(t, 5*time.Second, ExponentialBackoffWithJitter(10, time.Second, 5*time.Second, fixedSource(0.5)))

	jittered := ExponentialBackoffWithJitter(2, time.Second, time.Minute, fixedSource(1))
	assert.Equal(t, 2*time.Second+250*time.Millisecond, jittered)
}
