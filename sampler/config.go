package sampler

import (
	"fmt"
	"sort"
	"strings"
)

// SigTiming is a clamped normal distribution of a signature operation in microseconds
type SigTiming struct {
	Mean float64 `yaml:"mean" json:"mean"`
	Std  float64 `yaml:"std" json:"std"`
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
}

// Distribution returns the clamped normal described by t
func (t SigTiming) Distribution() ClampedNormal {
	return ClampedNormal{Mean: t.Mean, Std: t.Std, Min: t.Min, Max: t.Max}
}

// CryptoModeProfile describes a signature scheme (ECDSA, DILITHIUM3, HYBRID, ...)
type CryptoModeProfile struct {
	Description       string    `yaml:"description,omitempty" json:"description,omitempty"`
	PerformanceFactor float64   `yaml:"performance_factor" json:"performance_factor"` // Throughput multiplier (1.0 = classical baseline)
	LatencyOverhead   float64   `yaml:"latency_overhead" json:"latency_overhead"`     // Latency multiplier (>= 1.0)
	CPUOverhead       float64   `yaml:"cpu_overhead" json:"cpu_overhead"`             // CPU multiplier (>= 1.0)
	SigGenTime        SigTiming `yaml:"sig_gen_time" json:"sig_gen_time"`
	SigVerifyTime     SigTiming `yaml:"sig_verify_time" json:"sig_verify_time"`
}

// LoadProfile describes a target traffic scenario
type LoadProfile struct {
	Description     string  `yaml:"description,omitempty" json:"description,omitempty"`
	TargetTPS       float64 `yaml:"target_tps" json:"target_tps"`
	Variance        float64 `yaml:"variance" json:"variance"` // Fractional std of tx_rate (0.1 = 10%)
	MinTPS          float64 `yaml:"min_tps" json:"min_tps"`
	MaxTPS          float64 `yaml:"max_tps" json:"max_tps"`
	LatencyBase     float64 `yaml:"latency_base" json:"latency_base"`         // ms
	LatencyVariance float64 `yaml:"latency_variance" json:"latency_variance"` // Fractional std of latency_avg
	CPUBase         float64 `yaml:"cpu_base" json:"cpu_base"`                 // percent
	MemBase         float64 `yaml:"mem_base" json:"mem_base"`                 // percent
}

// SamplingConfig controls the timestamp axis of a run
type SamplingConfig struct {
	StartTimestamp float64 `yaml:"start_timestamp" json:"start_timestamp"` // Unix epoch seconds
	Interval       float64 `yaml:"interval" json:"interval"`               // Seconds between samples
}

// LatencyP95Config is the distribution of the p95/avg latency multiplier
type LatencyP95Config struct {
	MultiplierMean float64 `yaml:"multiplier_mean" json:"multiplier_mean"`
	MultiplierStd  float64 `yaml:"multiplier_std" json:"multiplier_std"`
}

// MemUtilConfig couples memory utilisation to throughput
type MemUtilConfig struct {
	TxRateSensitivity float64 `yaml:"tx_rate_sensitivity" json:"tx_rate_sensitivity"` // Memory percent per 100 TPS, as a fraction
}

// BlockSizeConfig derives block size from throughput
type BlockSizeConfig struct {
	Base         float64 `yaml:"base" json:"base"` // bytes
	TxRateFactor float64 `yaml:"tx_rate_factor" json:"tx_rate_factor"`
}

// BlockCommitTimeConfig derives commit time from block size
type BlockCommitTimeConfig struct {
	Base                 float64 `yaml:"base" json:"base"`                                     // ms
	BlockSizeSensitivity float64 `yaml:"block_size_sensitivity" json:"block_size_sensitivity"` // ms per KB, scaled by 1000
	CryptoOverheadFactor float64 `yaml:"crypto_overhead_factor" json:"crypto_overhead_factor"`
}

// MetricsConfig holds the correlation parameters shared by every crypto mode and load profile
type MetricsConfig struct {
	LatencyP95      LatencyP95Config      `yaml:"latency_p95" json:"latency_p95"`
	MemUtil         MemUtilConfig         `yaml:"mem_util" json:"mem_util"`
	BlockSize       BlockSizeConfig       `yaml:"block_size" json:"block_size"`
	BlockCommitTime BlockCommitTimeConfig `yaml:"block_commit_time" json:"block_commit_time"`
}

// CSVOptions controls the CSV dialect written by exporters
type CSVOptions struct {
	Delimiter      string `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	Quoting        string `yaml:"quoting,omitempty" json:"quoting,omitempty"`                 // minimal, all, nonnumeric or none
	LineTerminator string `yaml:"line_terminator,omitempty" json:"line_terminator,omitempty"` // "\n" or "\r\n"
}

// OutputConfig is consumed by exporters. Columns is the header contract.
type OutputConfig struct {
	Columns          []string   `yaml:"columns" json:"columns"`
	DecimalPrecision *int       `yaml:"decimal_precision,omitempty" json:"decimal_precision,omitempty"` // Pointer to distinguish "not set" (3) from 0
	FilenamePattern  string     `yaml:"filename_pattern,omitempty" json:"filename_pattern,omitempty"`
	CSVOptions       CSVOptions `yaml:"csv_options,omitempty" json:"csv_options,omitempty"`
	Compression      string     `yaml:"compression,omitempty" json:"compression,omitempty"` // "", "none" or "zstd"
}

// Output defaults applied when the config leaves a field unset
const (
	DefaultDecimalPrecision = 3
	DefaultFilenamePattern  = "{crypto_mode}_{load_profile}_RUN{run_number}.csv"
)

// Precision returns the configured decimal precision or the default
func (o OutputConfig) Precision() int {
	if o.DecimalPrecision == nil {
		return DefaultDecimalPrecision
	}
	return *o.DecimalPrecision
}

// Pattern returns the configured filename pattern or the default
func (o OutputConfig) Pattern() string {
	if o.FilenamePattern == "" {
		return DefaultFilenamePattern
	}
	return o.FilenamePattern
}

// Config is the full generator configuration
type Config struct {
	CryptoModes  map[string]CryptoModeProfile `yaml:"crypto_modes" json:"crypto_modes"`
	LoadProfiles map[string]LoadProfile       `yaml:"load_profiles" json:"load_profiles"`
	Sampling     SamplingConfig               `yaml:"sampling" json:"sampling"`
	Metrics      MetricsConfig                `yaml:"metrics" json:"metrics"`
	Output       OutputConfig                 `yaml:"output" json:"output"`
}

// DefaultConfig returns the built-in study configuration (same values as configs/config.yaml)
func DefaultConfig() *Config {
	return &Config{
		CryptoModes: map[string]CryptoModeProfile{
			"ECDSA": {
				Description:       "Classical ECDSA P-256 baseline",
				PerformanceFactor: 1.0,
				LatencyOverhead:   1.0,
				CPUOverhead:       1.0,
				SigGenTime:        SigTiming{Mean: 100, Std: 15, Min: 50, Max: 150},
				SigVerifyTime:     SigTiming{Mean: 180, Std: 25, Min: 100, Max: 250},
			},
			"DILITHIUM3": {
				Description:       "Lattice-based ML-DSA-65 (Dilithium3)",
				PerformanceFactor: 0.70,
				LatencyOverhead:   1.8,
				CPUOverhead:       1.6,
				SigGenTime:        SigTiming{Mean: 350, Std: 50, Min: 200, Max: 500},
				SigVerifyTime:     SigTiming{Mean: 1100, Std: 120, Min: 800, Max: 1500},
			},
			"HYBRID": {
				Description:       "ECDSA + Dilithium3 dual signature",
				PerformanceFactor: 0.60,
				LatencyOverhead:   2.0,
				CPUOverhead:       1.8,
				SigGenTime:        SigTiming{Mean: 450, Std: 60, Min: 250, Max: 650},
				SigVerifyTime:     SigTiming{Mean: 1280, Std: 140, Min: 900, Max: 1750},
			},
		},
		LoadProfiles: map[string]LoadProfile{
			"LOWLOAD": {
				Description: "Light traffic", TargetTPS: 100, Variance: 0.1, MinTPS: 50, MaxTPS: 150,
				LatencyBase: 100, LatencyVariance: 0.1, CPUBase: 30, MemBase: 40,
			},
			"MEDIUMLOAD": {
				Description: "Moderate traffic", TargetTPS: 300, Variance: 0.1, MinTPS: 150, MaxTPS: 450,
				LatencyBase: 150, LatencyVariance: 0.12, CPUBase: 45, MemBase: 45,
			},
			"HIGHLOAD": {
				Description: "Peak traffic", TargetTPS: 800, Variance: 0.1, MinTPS: 300, MaxTPS: 1000,
				LatencyBase: 200, LatencyVariance: 0.15, CPUBase: 55, MemBase: 50,
			},
			"SUSTAINED": {
				Description: "Long steady traffic", TargetTPS: 500, Variance: 0.05, MinTPS: 350, MaxTPS: 650,
				LatencyBase: 180, LatencyVariance: 0.08, CPUBase: 50, MemBase: 55,
			},
		},
		Sampling: SamplingConfig{
			StartTimestamp: 1735920000.0,
			Interval:       1.0,
		},
		Metrics: MetricsConfig{
			LatencyP95:      LatencyP95Config{MultiplierMean: 2.0, MultiplierStd: 0.25},
			MemUtil:         MemUtilConfig{TxRateSensitivity: 0.04},
			BlockSize:       BlockSizeConfig{Base: 1024, TxRateFactor: 1.5},
			BlockCommitTime: BlockCommitTimeConfig{Base: 50, BlockSizeSensitivity: 0.05, CryptoOverheadFactor: 0.3},
		},
		Output: OutputConfig{
			Columns:          append([]string(nil), Columns...),
			DecimalPrecision: intPtr(DefaultDecimalPrecision),
			FilenamePattern:  DefaultFilenamePattern,
			CSVOptions:       CSVOptions{Delimiter: ",", Quoting: "minimal", LineTerminator: "\n"},
			Compression:      "none",
		},
	}
}

func intPtr(v int) *int {
	return &v
}

// CryptoMode looks up a crypto mode profile by name
func (c *Config) CryptoMode(name string) (CryptoModeProfile, error) {
	p, ok := c.CryptoModes[name]
	if !ok {
		return CryptoModeProfile{}, &LookupError{Kind: ErrUnknownCryptoMode, Key: name}
	}
	return p, nil
}

// LoadProfile looks up a load profile by name
func (c *Config) LoadProfile(name string) (LoadProfile, error) {
	p, ok := c.LoadProfiles[name]
	if !ok {
		return LoadProfile{}, &LookupError{Kind: ErrUnknownLoadProfile, Key: name}
	}
	return p, nil
}

// CryptoModeNames returns the configured crypto mode names, sorted
func (c *Config) CryptoModeNames() []string {
	names := make([]string, 0, len(c.CryptoModes))
	for name := range c.CryptoModes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadProfileNames returns the configured load profile names, sorted
func (c *Config) LoadProfileNames() []string {
	names := make([]string, 0, len(c.LoadProfiles))
	for name := range c.LoadProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks if configuration values are usable by the generators
func (c *Config) Validate() error {
	if len(c.CryptoModes) == 0 {
		return ErrInvalidConfig("crypto_modes must not be empty")
	}
	if len(c.LoadProfiles) == 0 {
		return ErrInvalidConfig("load_profiles must not be empty")
	}
	for _, name := range c.CryptoModeNames() {
		if err := validateCryptoMode(name, c.CryptoModes[name]); err != nil {
			return err
		}
	}
	for _, name := range c.LoadProfileNames() {
		if err := validateLoadProfile(name, c.LoadProfiles[name]); err != nil {
			return err
		}
	}

	if c.Sampling.StartTimestamp < 0 {
		return ErrInvalidConfig("sampling.start_timestamp must be >= 0")
	}
	if c.Sampling.Interval <= 0 {
		return ErrInvalidConfig("sampling.interval must be > 0")
	}

	m := c.Metrics
	if m.LatencyP95.MultiplierMean <= 0 {
		return ErrInvalidConfig("metrics.latency_p95.multiplier_mean must be > 0")
	}
	if m.LatencyP95.MultiplierStd < 0 {
		return ErrInvalidConfig("metrics.latency_p95.multiplier_std must be >= 0")
	}
	if m.MemUtil.TxRateSensitivity < 0 {
		return ErrInvalidConfig("metrics.mem_util.tx_rate_sensitivity must be >= 0")
	}
	if m.BlockSize.Base <= 0 {
		return ErrInvalidConfig("metrics.block_size.base must be > 0")
	}
	if m.BlockSize.TxRateFactor < 0 {
		return ErrInvalidConfig("metrics.block_size.tx_rate_factor must be >= 0")
	}
	if m.BlockCommitTime.Base <= 0 {
		return ErrInvalidConfig("metrics.block_commit_time.base must be > 0")
	}
	if m.BlockCommitTime.BlockSizeSensitivity < 0 || m.BlockCommitTime.CryptoOverheadFactor < 0 {
		return ErrInvalidConfig("metrics.block_commit_time sensitivities must be >= 0")
	}

	return c.Output.validate()
}

func validateCryptoMode(name string, p CryptoModeProfile) error {
	if p.PerformanceFactor <= 0 {
		return ErrInvalidConfig(fmt.Sprintf("crypto_modes.%s.performance_factor must be > 0", name))
	}
	if p.LatencyOverhead < 1.0 {
		return ErrInvalidConfig(fmt.Sprintf("crypto_modes.%s.latency_overhead must be >= 1.0", name))
	}
	if p.CPUOverhead < 1.0 {
		return ErrInvalidConfig(fmt.Sprintf("crypto_modes.%s.cpu_overhead must be >= 1.0", name))
	}
	if err := validateSigTiming(name+".sig_gen_time", p.SigGenTime); err != nil {
		return err
	}
	return validateSigTiming(name+".sig_verify_time", p.SigVerifyTime)
}

func validateSigTiming(path string, t SigTiming) error {
	if t.Mean <= 0 {
		return ErrInvalidConfig(fmt.Sprintf("crypto_modes.%s.mean must be > 0", path))
	}
	if t.Std < 0 {
		return ErrInvalidConfig(fmt.Sprintf("crypto_modes.%s.std must be >= 0", path))
	}
	if t.Min < 0 || t.Min > t.Max {
		return ErrInvalidConfig(fmt.Sprintf("crypto_modes.%s requires 0 <= min <= max", path))
	}
	return nil
}

func validateLoadProfile(name string, p LoadProfile) error {
	if p.TargetTPS <= 0 {
		return ErrInvalidConfig(fmt.Sprintf("load_profiles.%s.target_tps must be > 0", name))
	}
	if p.Variance < 0 || p.LatencyVariance < 0 {
		return ErrInvalidConfig(fmt.Sprintf("load_profiles.%s variances must be >= 0", name))
	}
	if p.MinTPS < 0 || p.MinTPS > p.MaxTPS {
		return ErrInvalidConfig(fmt.Sprintf("load_profiles.%s requires 0 <= min_tps <= max_tps", name))
	}
	if p.LatencyBase <= 0 {
		return ErrInvalidConfig(fmt.Sprintf("load_profiles.%s.latency_base must be > 0", name))
	}
	if p.CPUBase <= 0 {
		return ErrInvalidConfig(fmt.Sprintf("load_profiles.%s.cpu_base must be > 0", name))
	}
	if p.MemBase < 0 {
		return ErrInvalidConfig(fmt.Sprintf("load_profiles.%s.mem_base must be >= 0", name))
	}
	return nil
}

func (o OutputConfig) validate() error {
	if len(o.Columns) == 0 {
		return ErrInvalidConfig("output.columns must not be empty")
	}
	seen := make(map[string]bool, len(o.Columns))
	for _, col := range o.Columns {
		if !IsColumn(col) {
			return ErrInvalidConfig(fmt.Sprintf("output.columns: unknown column %q", col))
		}
		if seen[col] {
			return ErrInvalidConfig(fmt.Sprintf("output.columns: duplicate column %q", col))
		}
		seen[col] = true
	}
	if p := o.Precision(); p < 0 || p > 12 {
		return ErrInvalidConfig("output.decimal_precision must be between 0 and 12")
	}
	if d := o.CSVOptions.Delimiter; d != "" && len([]rune(d)) != 1 {
		return ErrInvalidConfig("output.csv_options.delimiter must be a single character")
	}
	switch strings.ToLower(o.CSVOptions.Quoting) {
	case "", "minimal", "all", "nonnumeric", "none":
	default:
		return ErrInvalidConfig(fmt.Sprintf("output.csv_options.quoting %q is not supported (must be 'minimal', 'all', 'nonnumeric' or 'none')", o.CSVOptions.Quoting))
	}
	switch o.CSVOptions.LineTerminator {
	case "", "\n", "\r\n":
	default:
		return ErrInvalidConfig("output.csv_options.line_terminator must be \"\\n\" or \"\\r\\n\"")
	}
	switch o.Compression {
	case "", "none", "zstd":
	default:
		return ErrInvalidConfig(fmt.Sprintf("output.compression %q is not supported (must be 'none' or 'zstd')", o.Compression))
	}
	return nil
}
