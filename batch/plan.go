package batch

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/miretskiy/pqcbench/sampler"
)

// Plan describes one batch: every crypto mode × load profile combination is
// generated Runs times, each run covering DurationSeconds of samples.
type Plan struct {
	CryptoModes     []string `json:"crypto_modes"`
	LoadProfiles    []string `json:"load_profiles"`
	Runs            int      `json:"runs"`
	DurationSeconds int      `json:"duration_seconds"`
	// Seed makes the batch reproducible; nil draws a random seed per combination
	Seed        *int64 `json:"seed,omitempty"`
	Parallelism int    `json:"parallelism"`
}

// Combination is one (crypto mode, load profile) pair of a plan
type Combination struct {
	Index       int    `json:"index"`
	CryptoMode  string `json:"crypto_mode"`
	LoadProfile string `json:"load_profile"`
}

func (c Combination) String() string {
	return c.CryptoMode + " × " + c.LoadProfile
}

// Validate checks the plan against cfg
func (p Plan) Validate(cfg *sampler.Config) error {
	if cfg == nil {
		return sampler.ErrInvalidConfig("nil config")
	}
	if len(p.CryptoModes) == 0 {
		return fmt.Errorf("at least one crypto mode is required (available: %s)",
			strings.Join(cfg.CryptoModeNames(), ", "))
	}
	if len(p.LoadProfiles) == 0 {
		return fmt.Errorf("at least one load profile is required (available: %s)",
			strings.Join(cfg.LoadProfileNames(), ", "))
	}
	if dup := firstDuplicate(p.CryptoModes); dup != "" {
		return fmt.Errorf("crypto mode %q is listed more than once", dup)
	}
	if dup := firstDuplicate(p.LoadProfiles); dup != "" {
		return fmt.Errorf("load profile %q is listed more than once", dup)
	}
	for _, mode := range p.CryptoModes {
		if _, err := cfg.CryptoMode(mode); err != nil {
			return fmt.Errorf("%w (available: %s)", err, strings.Join(cfg.CryptoModeNames(), ", "))
		}
	}
	for _, profile := range p.LoadProfiles {
		if _, err := cfg.LoadProfile(profile); err != nil {
			return fmt.Errorf("%w (available: %s)", err, strings.Join(cfg.LoadProfileNames(), ", "))
		}
	}
	if p.Runs < 1 {
		return fmt.Errorf("number of runs must be >= 1, got: %d", p.Runs)
	}
	if p.DurationSeconds < 1 {
		return fmt.Errorf("duration must be >= 1 second, got: %d", p.DurationSeconds)
	}
	if p.Parallelism < 0 {
		return fmt.Errorf("parallelism must be >= 0, got: %d", p.Parallelism)
	}
	return nil
}

func firstDuplicate(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}

// Combinations expands the plan in crypto-mode-major order
func (p Plan) Combinations() []Combination {
	combos := make([]Combination, 0, len(p.CryptoModes)*len(p.LoadProfiles))
	for _, mode := range p.CryptoModes {
		for _, profile := range p.LoadProfiles {
			combos = append(combos, Combination{
				Index:       len(combos),
				CryptoMode:  mode,
				LoadProfile: profile,
			})
		}
	}
	return combos
}

// workers returns the effective parallelism; 0 means one worker per CPU
func (p Plan) workers() int {
	if p.Parallelism > 0 {
		return p.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// NumSamples is the number of rows a run of durationSeconds holds at the
// given sampling interval, truncated toward zero.
func NumSamples(durationSeconds int, interval float64) int {
	if interval <= 0 {
		return 0
	}
	return int(float64(durationSeconds) / interval)
}
