package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFactory_DeterministicStreamsRepeat(t *testing.T) {
	a := New(Deterministic, 99).R("fallback")
	b := New(Deterministic, 99).R("fallback")

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestFactory_NamedStreamsDiffer(t *testing.T) {
	f := New(Deterministic, 99)
	assert.NotEqual(t, f.R("a").Float64(), f.R("b").Float64())
	assert.Same(t, f.R("a"), f.R("a"))
}

func TestFromSeed(t *testing.T) {
	assert.Equal(t, int64(5), FromSeed(5).baseSeed)
	assert.NotEqual(t, int64(0), FromSeed(0).baseSeed)
}

func TestFactory_RealFactoriesNeverShareASeed(t *testing.T) {
	a, b := New(Real, 7), New(Real, 7)
	assert.NotEqual(t, a.baseSeed, b.baseSeed)
}
