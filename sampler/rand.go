package sampler

import (
	"math/rand"
	"sync"
	"time"
)

// lockedSource serializes access to a rand.Source so the shared generator
// can be reseeded while other goroutines draw from it.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

var (
	sharedSource = &lockedSource{src: rand.NewSource(time.Now().UnixNano()).(rand.Source64)}
	sharedRand   = rand.New(sharedSource)
)

// SetSeed resets the process-wide generator used by samplers that were not
// given their own *rand.Rand. Every later draw from it is affected.
func SetSeed(seed int64) {
	sharedSource.Seed(seed)
}

// SharedRand returns the process-wide generator
func SharedRand() *rand.Rand {
	return sharedRand
}

// NewRand creates an independent generator. Seed 0 picks a random seed.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(sharedRand.Int63()))
	}
	return rand.New(rand.NewSource(seed))
}
