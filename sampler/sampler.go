package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
)

// ErrInvalidIndex is returned for negative sample indices or counts
var ErrInvalidIndex = errors.New("invalid sample index")

// Option customizes a Sampler or MultiRunSampler
type Option func(*options)

type options struct {
	rng            *rand.Rand
	startTimestamp *float64
	logger         *zap.Logger
}

// WithRand makes the sampler draw from rng instead of the process-wide generator.
// A *rand.Rand is not safe for concurrent use; give each goroutine its own.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithStartTimestamp overrides sampling.start_timestamp
func WithStartTimestamp(ts float64) Option {
	return func(o *options) { o.startTimestamp = &ts }
}

// WithLogger sets the logger (default: no-op)
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = sharedRand
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Sampler generates rows for one (crypto mode, load profile, run) triple.
// Like the generators it is single-threaded; it holds no state between rows
// besides the random generator.
type Sampler struct {
	cryptoModeName  string
	loadProfileName string
	runID           string

	cryptoMode     CryptoModeProfile
	loadProfile    LoadProfile
	startTimestamp float64
	interval       float64
	metrics        MetricsConfig
	columns        []string

	rng    *rand.Rand
	logger *zap.Logger
}

// NewSampler validates cfg and resolves the named crypto mode and load profile.
// Unknown names yield a *LookupError; malformed configuration a ConfigError.
func NewSampler(cfg *Config, cryptoMode, loadProfile, runID string, opts ...Option) (*Sampler, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := cfg.CryptoMode(cryptoMode)
	if err != nil {
		return nil, err
	}
	load, err := cfg.LoadProfile(loadProfile)
	if err != nil {
		return nil, err
	}
	if _, err := ParseRunID(runID); err != nil {
		return nil, ErrInvalidConfig(err.Error())
	}

	o := buildOptions(opts)
	start := cfg.Sampling.StartTimestamp
	if o.startTimestamp != nil {
		start = *o.startTimestamp
		if start < 0 || math.IsNaN(start) || math.IsInf(start, 0) {
			return nil, ErrInvalidConfig(fmt.Sprintf("start timestamp %v must be a finite value >= 0", start))
		}
	}

	s := &Sampler{
		cryptoModeName:  cryptoMode,
		loadProfileName: loadProfile,
		runID:           runID,
		cryptoMode:      mode,
		loadProfile:     load,
		startTimestamp:  start,
		interval:        cfg.Sampling.Interval,
		metrics:         cfg.Metrics,
		columns:         append([]string(nil), cfg.Output.Columns...),
		rng:             o.rng,
		logger:          o.logger.With(zap.String("crypto_mode", cryptoMode), zap.String("load_profile", loadProfile), zap.String("run_id", runID)),
	}
	s.logger.Debug("sampler created",
		zap.Float64("performance_factor", mode.PerformanceFactor),
		zap.Float64("latency_overhead", mode.LatencyOverhead),
		zap.Float64("cpu_overhead", mode.CPUOverhead),
		zap.Float64("start_timestamp", start))
	return s, nil
}

// CryptoModeName returns the crypto mode the sampler was built for
func (s *Sampler) CryptoModeName() string { return s.cryptoModeName }

// LoadProfileName returns the load profile the sampler was built for
func (s *Sampler) LoadProfileName() string { return s.loadProfileName }

// RunID returns the run id stamped on every row
func (s *Sampler) RunID() string { return s.runID }

// CryptoMode returns the resolved crypto mode profile
func (s *Sampler) CryptoMode() CryptoModeProfile { return s.cryptoMode }

// LoadProfile returns the resolved load profile
func (s *Sampler) LoadProfile() LoadProfile { return s.loadProfile }

// StartTimestamp is the timestamp of row 0
func (s *Sampler) StartTimestamp() float64 { return s.startTimestamp }

// Interval is the number of seconds between consecutive rows
func (s *Sampler) Interval() float64 { return s.interval }

// GenerateSample builds one complete row. tx_rate is drawn first and feeds
// mem_util and block_size; latency_p95 derives from latency_avg and
// block_commit_time from block_size.
func (s *Sampler) GenerateSample(index int) (Sample, error) {
	if index < 0 {
		return Sample{}, fmt.Errorf("%w: %d (must be >= 0)", ErrInvalidIndex, index)
	}

	timestamp := GenerateTimestamp(s.startTimestamp, index, s.interval)

	txRate := GenerateTxRate(s.rng, s.loadProfile, s.cryptoMode.PerformanceFactor)

	latencyAvg := GenerateLatencyAvg(s.rng, s.loadProfile, s.cryptoMode.LatencyOverhead)
	latencyP95 := GenerateLatencyP95(s.rng, latencyAvg,
		s.metrics.LatencyP95.MultiplierMean, s.metrics.LatencyP95.MultiplierStd)

	cpuUtil := GenerateCPUUtil(s.rng, s.loadProfile, s.cryptoMode.CPUOverhead)
	memUtil := GenerateMemUtil(s.rng, s.loadProfile, txRate, s.metrics.MemUtil.TxRateSensitivity)

	blockSize := GenerateBlockSize(s.rng, txRate, s.metrics.BlockSize.Base, s.metrics.BlockSize.TxRateFactor)
	blockCommitTime := GenerateBlockCommitTime(s.rng, blockSize, s.metrics.BlockCommitTime)

	sigGen := GenerateSigGenTime(s.rng, s.cryptoMode)
	sigVerify := GenerateSigVerifyTime(s.rng, s.cryptoMode)

	return Sample{
		Timestamp:       timestamp,
		CryptoMode:      s.cryptoModeName,
		LoadProfile:     s.loadProfileName,
		RunID:           s.runID,
		TxRate:          txRate,
		LatencyAvg:      latencyAvg,
		LatencyP95:      latencyP95,
		CPUUtil:         cpuUtil,
		MemUtil:         memUtil,
		BlockSize:       blockSize,
		BlockCommitTime: blockCommitTime,
		SigGenTime:      sigGen,
		SigVerifyTime:   sigVerify,
	}, nil
}

// GenerateSamples builds n rows for indices 0..n-1
func (s *Sampler) GenerateSamples(n int) ([]Sample, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: sample count %d (must be >= 0)", ErrInvalidIndex, n)
	}
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		sample, err := s.GenerateSample(i)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// ColumnOrder returns the configured output column order
func (s *Sampler) ColumnOrder() []string {
	return append([]string(nil), s.columns...)
}
