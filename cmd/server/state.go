package main

import (
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/miretskiy/pqcbench/sampler"
)

// simState owns one client's sampler and the stream position
type simState struct {
	cfg     *sampler.Config
	seed    *int64
	logger  *zap.Logger
	sampler *sampler.Sampler
	index   int
	running bool
	paused  bool
	mu      sync.Mutex
	stopCh  chan struct{}
}

func newSimState(cfg *sampler.Config, cryptoMode, loadProfile string, seed *int64, logger *zap.Logger) (*simState, error) {
	s := &simState{
		cfg:    cfg,
		seed:   seed,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	if err := s.selectProfile(cryptoMode, loadProfile); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *simState) newSampler(cryptoMode, loadProfile string) (*sampler.Sampler, error) {
	rng := sampler.NewRand(0)
	if s.seed != nil {
		rng = rand.New(rand.NewSource(*s.seed))
	}
	return sampler.NewSampler(s.cfg, cryptoMode, loadProfile, sampler.RunID(1),
		sampler.WithRand(rng), sampler.WithLogger(s.logger))
}

// start begins streaming
func (s *simState) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.paused = false
}

// pause stops streaming without losing the position
func (s *simState) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// reset rewinds to index 0 with a fresh generator and stops streaming
func (s *simState) reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	smp, err := s.newSampler(s.sampler.CryptoModeName(), s.sampler.LoadProfileName())
	if err != nil {
		return err
	}
	s.sampler = smp
	s.index = 0
	s.running = false
	s.paused = false
	return nil
}

// selectProfile switches crypto mode and load profile and rewinds the stream.
// On error the current selection is kept.
func (s *simState) selectProfile(cryptoMode, loadProfile string) error {
	smp, err := s.newSampler(cryptoMode, loadProfile)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampler = smp
	s.index = 0
	return nil
}

// isRunning returns true if streaming and not paused
func (s *simState) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && !s.paused
}

// selection returns the current crypto mode and load profile
func (s *simState) selection() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampler.CryptoModeName(), s.sampler.LoadProfileName()
}

// next generates the next sample when running. valid reports whether it
// passed ValidateRecord.
func (s *simState) next() (sample sampler.Sample, valid bool, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.paused {
		return sampler.Sample{}, false, false, nil
	}
	sample, err = s.sampler.GenerateSample(s.index)
	if err != nil {
		return sampler.Sample{}, false, false, err
	}
	s.index++
	return sample, s.sampler.ValidateRecord(sample), true, nil
}

// stop signals the update loop to exit
func (s *simState) stop() {
	close(s.stopCh)
}
