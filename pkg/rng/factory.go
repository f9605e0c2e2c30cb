// Package rng hands out named random streams. In Deterministic mode every stream is derived from a fixed
// seed so tests and replays see the same sequence; in Real mode the base seed comes from the clock once.
package rng

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

type Mode int

const (
	Deterministic Mode = iota
	Real
)

// Source is the subset of *rand.Rand the pipeline draws from.
type Source interface {
	Float64() float64
	Intn(n int) int
}

var realFactories atomic.Int64

type Factory struct {
	baseSeed int64

	mu      sync.Mutex
	streams map[string]*Locked
}

func New(mode Mode, seed int64) *Factory {
	if mode == Real {
		// Real factories created in the same clock tick still get distinct seeds.
		seed = time.Now().UnixNano() ^ realFactories.Add(1)<<48
	}
	return &Factory{
		baseSeed: seed,
		streams:  make(map[string]*Locked),
	}
}

// FromSeed returns a Deterministic factory for a non-zero seed and a Real one otherwise.
func FromSeed(seed int64) *Factory {
	if seed == 0 {
		return New(Real, 0)
	}
	return New(Deterministic, seed)
}

// R returns the named stream, creating it on first use.
func (f *Factory) R(name string) *Locked {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r, ok := f.streams[name]; ok {
		return r
	}
	r := NewLocked(deriveSeed(f.baseSeed, name))
	f.streams[name] = r
	return r
}

func deriveSeed(base int64, name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64()) ^ base
}

// Locked is a goroutine-safe *rand.Rand.
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewLocked(seed int64) *Locked {
	return &Locked{r: rand.New(rand.NewSource(seed))}
}

func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *Locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
