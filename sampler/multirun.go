package sampler

import (
	"fmt"

	"go.uber.org/zap"
)

// MultiRunSampler generates RUN1..RUNk for one crypto mode and load profile.
// Every run gets a fresh Sampler; runs differ only by run id and random draws.
type MultiRunSampler struct {
	cfg             *Config
	cryptoModeName  string
	loadProfileName string
	numRuns         int
	opts            []Option
	logger          *zap.Logger
}

// NewMultiRunSampler checks the names and run count up front so no run is
// started against a configuration that cannot produce it.
func NewMultiRunSampler(cfg *Config, cryptoMode, loadProfile string, numRuns int, opts ...Option) (*MultiRunSampler, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.CryptoMode(cryptoMode); err != nil {
		return nil, err
	}
	if _, err := cfg.LoadProfile(loadProfile); err != nil {
		return nil, err
	}
	if numRuns < 1 {
		return nil, ErrInvalidConfig(fmt.Sprintf("number of runs must be >= 1, got %d", numRuns))
	}
	return &MultiRunSampler{
		cfg:             cfg,
		cryptoModeName:  cryptoMode,
		loadProfileName: loadProfile,
		numRuns:         numRuns,
		opts:            opts,
		logger:          buildOptions(opts).logger,
	}, nil
}

// NumRuns is the number of runs GenerateAllRuns produces
func (m *MultiRunSampler) NumRuns() int { return m.numRuns }

// GenerateRun produces numSamples rows for run RUN<runNumber>
func (m *MultiRunSampler) GenerateRun(runNumber, numSamples int) ([]Sample, error) {
	if runNumber < 1 {
		return nil, ErrInvalidConfig(fmt.Sprintf("run number must be >= 1, got %d", runNumber))
	}
	s, err := NewSampler(m.cfg, m.cryptoModeName, m.loadProfileName, RunID(runNumber), m.opts...)
	if err != nil {
		return nil, err
	}
	samples, err := s.GenerateSamples(numSamples)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", s.RunID(), err)
	}
	m.logger.Debug("run generated",
		zap.String("crypto_mode", m.cryptoModeName),
		zap.String("load_profile", m.loadProfileName),
		zap.String("run_id", s.RunID()),
		zap.Int("samples", len(samples)))
	return samples, nil
}

// GenerateAllRuns produces runs 1..NumRuns in ascending order
func (m *MultiRunSampler) GenerateAllRuns(numSamplesPerRun int) (Runs, error) {
	runs := make(Runs, m.numRuns)
	for n := 1; n <= m.numRuns; n++ {
		samples, err := m.GenerateRun(n, numSamplesPerRun)
		if err != nil {
			return nil, err
		}
		runs[RunID(n)] = samples
	}
	return runs, nil
}
