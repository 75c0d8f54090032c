// Package ids generates client IDs and request IDs, and provides the jitter
// sampler the election round uses for its desynchronizing sleeps.
//
// The sampling source is grounded in the teacher's utils/sampler package: a
// math/rand source seeded once per process, wrapped behind a small
// interface so call sites never touch math/rand directly.
package ids

import (
	"math/rand"
	"sync"
	"time"
)

// alphabet is exactly the 62 ASCII alphanumerics, per the wire spec.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// clientIDLength is fixed at 8 characters, per the wire spec.
const clientIDLength = 8

// Source is a source of randomness, mirroring the teacher sampler's Source
// interface (utils/sampler/source.go) so it can be swapped for a
// deterministic one in tests. *rand.Rand satisfies this directly.
type Source interface {
	Uint64() uint64
}

// Sampler draws client IDs, request IDs and jitter durations from a Source.
type Sampler struct {
	mu  sync.Mutex
	src Source
}

// NewSampler seeds a sampler from the current time; use NewDeterministicSampler
// in tests that need reproducible draws.
func NewSampler() *Sampler {
	return NewSamplerFromSource(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewDeterministicSampler seeds a sampler with a fixed seed.
func NewDeterministicSampler(seed int64) *Sampler {
	return NewSamplerFromSource(rand.New(rand.NewSource(seed)))
}

// NewSamplerFromSource builds a Sampler over an arbitrary Source, letting
// tests substitute a fake randomness source without going through
// math/rand at all.
func NewSamplerFromSource(src Source) *Sampler {
	return &Sampler{src: src}
}

// uintn draws a value uniformly in [0, n) from src, n > 0.
func (s *Sampler) uintn(n uint64) uint64 {
	return s.src.Uint64() % n
}

// ClientID draws one candidate 8-character client ID. Callers are
// responsible for retrying on a local collision (spec §3 invariant).
func (s *Sampler) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, clientIDLength)
	for i := range buf {
		buf[i] = alphabet[s.uintn(uint64(len(alphabet)))]
	}
	return string(buf)
}

// RequestID draws an opaque request identifier. The wire format does not
// constrain its shape (spec §3), so a longer random hex string is used to
// keep collisions between concurrent requests vanishingly unlikely.
func (s *Sampler) RequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	const hex = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = hex[s.uintn(uint64(len(hex)))]
	}
	return string(buf)
}

// JitterBetween returns a duration drawn uniformly from [lo, hi).
func (s *Sampler) JitterBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	span := uint64(hi - lo)
	return lo + time.Duration(s.uintn(span))
}
