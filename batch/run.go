package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/miretskiy/pqcbench/export"
	"github.com/miretskiy/pqcbench/sampler"
)

// Stats summarizes a finished batch
type Stats struct {
	BatchID           string        `json:"batch_id"`
	TotalCombinations int           `json:"total_combinations"`
	TotalFiles        int           `json:"total_files"`
	SamplesPerFile    int           `json:"samples_per_file"`
	TotalSamples      int           `json:"total_samples"`
	InvalidSamples    int           `json:"invalid_samples"`
	FilesCreated      []string      `json:"files_created"`
	Elapsed           time.Duration `json:"elapsed_ns"`
}

// ProgressFunc is called after each combination finishes, always from the
// same goroutine.
type ProgressFunc func(combo Combination, files []string)

// Runner executes plans against one configuration and exporter
type Runner struct {
	cfg      *sampler.Config
	exporter export.Exporter
	logger   *zap.Logger
	progress ProgressFunc
}

// NewRunner validates cfg and returns a Runner writing through exporter
func NewRunner(cfg *sampler.Config, exporter export.Exporter, logger *zap.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, sampler.ErrInvalidConfig("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if exporter == nil {
		return nil, fmt.Errorf("exporter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, exporter: exporter, logger: logger}, nil
}

// OnProgress registers a callback invoked as combinations complete
func (r *Runner) OnProgress(fn ProgressFunc) {
	r.progress = fn
}

// ErrOutputCollision is returned when two runs of a plan would write the same file
var ErrOutputCollision = errors.New("output file collision")

// checkOutputs renders every file name of plan and rejects duplicates, so no
// two workers ever write the same path.
func (r *Runner) checkOutputs(plan Plan) error {
	owner := make(map[string]string)
	for _, combo := range plan.Combinations() {
		for n := 1; n <= plan.Runs; n++ {
			path := filepath.Clean(filepath.Join(r.exporter.OutputDir(), r.exporter.Filename(combo.CryptoMode, combo.LoadProfile, n)))
			run := fmt.Sprintf("%s %s", combo, sampler.RunID(n))
			if prev, ok := owner[path]; ok {
				return fmt.Errorf("%w: %s and %s both write %s", ErrOutputCollision, prev, run, path)
			}
			owner[path] = run
		}
	}
	return nil
}

type comboResult struct {
	files   []string
	invalid int
}

// Run generates and exports every combination of plan. Combinations run in
// parallel, each with its own random generator; with a non-zero seed the
// generator of combination i is seeded with seed+i so the output does not
// depend on scheduling.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Stats, error) {
	if err := plan.Validate(r.cfg); err != nil {
		return nil, err
	}

	if err := r.checkOutputs(plan); err != nil {
		return nil, err
	}

	start := time.Now()
	numSamples := NumSamples(plan.DurationSeconds, r.cfg.Sampling.Interval)
	combos := plan.Combinations()
	stats := &Stats{
		BatchID:           uuid.NewString(),
		TotalCombinations: len(combos),
		TotalFiles:        len(combos) * plan.Runs,
		SamplesPerFile:    numSamples,
		TotalSamples:      len(combos) * plan.Runs * numSamples,
	}

	logger := r.logger.With(zap.String("batch_id", stats.BatchID))
	logger.Info("starting batch",
		zap.Strings("crypto_modes", plan.CryptoModes),
		zap.Strings("load_profiles", plan.LoadProfiles),
		zap.Int("runs", plan.Runs),
		zap.Int("duration_s", plan.DurationSeconds),
		zap.Int("samples_per_file", numSamples),
		zap.Int("total_files", stats.TotalFiles),
		zap.Int("total_samples", stats.TotalSamples),
		zap.Int("workers", plan.workers()))

	results := make([]comboResult, len(combos))
	progress := make(chan int, len(combos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(plan.workers())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range progress {
			if r.progress != nil {
				r.progress(combos[i], results[i].files)
			}
		}
	}()

	for _, combo := range combos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.runCombination(logger, plan, combo, numSamples)
			if err != nil {
				return fmt.Errorf("%s: %w", combo, err)
			}
			results[combo.Index] = res
			progress <- combo.Index
			return nil
		})
	}
	err := g.Wait()
	close(progress)
	<-done
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		stats.FilesCreated = append(stats.FilesCreated, res.files...)
		stats.InvalidSamples += res.invalid
	}
	sort.Strings(stats.FilesCreated)
	stats.Elapsed = time.Since(start)

	logger.Info("batch complete",
		zap.Int("files_created", len(stats.FilesCreated)),
		zap.Int("total_samples", stats.TotalSamples),
		zap.Int("invalid_samples", stats.InvalidSamples),
		zap.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

func (r *Runner) runCombination(logger *zap.Logger, plan Plan, combo Combination, numSamples int) (comboResult, error) {
	var rng *rand.Rand
	if plan.Seed != nil {
		rng = rand.New(rand.NewSource(*plan.Seed + int64(combo.Index)))
	} else {
		rng = sampler.NewRand(0)
	}
	logger = logger.With(
		zap.String("crypto_mode", combo.CryptoMode),
		zap.String("load_profile", combo.LoadProfile))

	multi, err := sampler.NewMultiRunSampler(r.cfg, combo.CryptoMode, combo.LoadProfile, plan.Runs,
		sampler.WithRand(rng), sampler.WithLogger(logger))
	if err != nil {
		return comboResult{}, err
	}
	runs, err := multi.GenerateAllRuns(numSamples)
	if err != nil {
		return comboResult{}, err
	}

	// Validation only reads the crypto mode bounds, so one sampler serves every run
	checker, err := sampler.NewSampler(r.cfg, combo.CryptoMode, combo.LoadProfile, sampler.RunID(1))
	if err != nil {
		return comboResult{}, err
	}
	invalid := 0
	for _, id := range runs.IDs() {
		for i, s := range runs[id] {
			if !checker.ValidateRecord(s) {
				invalid++
				logger.Warn("generated sample failed validation",
					zap.String("run_id", id), zap.Int("index", i))
			}
		}
	}

	var files []string
	if numSamples > 0 {
		files, err = export.ExportRuns(r.exporter, runs, combo.CryptoMode, combo.LoadProfile)
		if err != nil {
			return comboResult{}, err
		}
	}
	logger.Info("combination generated", zap.Int("files", len(files)))
	return comboResult{files: files, invalid: invalid}, nil
}
