package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miretskiy/pqcbench/batch"
	"github.com/miretskiy/pqcbench/export"
)

type generateOptions struct {
	cryptoModes  []string
	loadProfiles []string
	runs         int
	duration     int
	outputDir    string
	seed         int64
	seedFromEnv  bool
	format       string
	parallel     int
	compress     bool
	noManifest   bool
}

func newGenerateCmd(global *globalOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate benchmark files for every crypto mode × load profile × run",
		Example: `  # ECDSA under light load, 3 runs of 5 minutes
  pqcsynth generate --crypto-modes ECDSA --load-profiles LOWLOAD --runs 3 --duration 300 --output-dir data/raw

  # Full matrix, reproducible, compressed
  pqcsynth generate -m ECDSA,DILITHIUM3,HYBRID -l LOWLOAD,MEDIUMLOAD,HIGHLOAD,SUSTAINED \
      --runs 5 --duration 600 --seed 42 --compress`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, global, opts)
		},
	}

	seedDefault, seedFromEnv, err := envInt64(envSeed)
	opts.seedFromEnv = seedFromEnv
	if err != nil {
		// Reported when the command runs
		cmd.PreRunE = func(*cobra.Command, []string) error { return err }
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.cryptoModes, "crypto-modes", "m", nil, "Crypto modes to generate (e.g. ECDSA,DILITHIUM3,HYBRID)")
	f.StringSliceVarP(&opts.loadProfiles, "load-profiles", "l", nil, "Load profiles to generate (e.g. LOWLOAD,HIGHLOAD)")
	f.IntVarP(&opts.runs, "runs", "r", 0, "Number of runs per combination (RUN1..RUNn)")
	f.IntVarP(&opts.duration, "duration", "d", 0, "Duration of each run in seconds")
	f.StringVarP(&opts.outputDir, "output-dir", "o", envString(envOutputDir, ""), "Output directory (env "+envOutputDir+")")
	f.Int64Var(&opts.seed, "seed", seedDefault, "Random seed for reproducible output; random when unset (env "+envSeed+")")
	f.StringVar(&opts.format, "format", export.FormatCSV, "Output format: csv or json")
	f.IntVarP(&opts.parallel, "parallel", "p", 0, "Combinations generated concurrently (0 = one per CPU)")
	f.BoolVar(&opts.compress, "compress", false, "Compress output files with zstd")
	f.BoolVar(&opts.noManifest, "no-manifest", false, "Do not write "+batch.ManifestFilename)

	for _, name := range []string{"crypto-modes", "load-profiles", "runs", "duration"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runGenerate(cmd *cobra.Command, global *globalOptions, opts *generateOptions) error {
	if opts.outputDir == "" {
		return fmt.Errorf("--output-dir (or %s) is required", envOutputDir)
	}
	logger, err := global.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}

	var expOpts []export.Option
	expOpts = append(expOpts, export.WithLogger(logger))
	if opts.compress {
		expOpts = append(expOpts, export.WithCompression(export.CompressionZstd))
	}
	exporter, err := export.New(opts.format, cfg.Output, opts.outputDir, expOpts...)
	if err != nil {
		return err
	}

	runner, err := batch.NewRunner(cfg, exporter, logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	runner.OnProgress(func(combo batch.Combination, files []string) {
		fmt.Fprintf(out, "%s\n", combo)
		for _, f := range files {
			fmt.Fprintf(out, "   %s\n", filepath.Base(f))
		}
	})

	plan := batch.Plan{
		CryptoModes:     opts.cryptoModes,
		LoadProfiles:    opts.loadProfiles,
		Runs:            opts.runs,
		DurationSeconds: opts.duration,
		Parallelism:     opts.parallel,
	}
	if opts.seedFromEnv || cmd.Flags().Changed("seed") {
		seed := opts.seed
		plan.Seed = &seed
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := runner.Run(ctx, plan)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nGeneration complete\n")
	fmt.Fprintf(out, "   Batch:         %s\n", stats.BatchID)
	fmt.Fprintf(out, "   Combinations:  %d\n", stats.TotalCombinations)
	fmt.Fprintf(out, "   Files created: %d\n", len(stats.FilesCreated))
	fmt.Fprintf(out, "   Total samples: %d (%d per file)\n", stats.TotalSamples, stats.SamplesPerFile)
	fmt.Fprintf(out, "   Output:        %s\n", opts.outputDir)
	if stats.InvalidSamples > 0 {
		fmt.Fprintf(out, "   WARNING: %d samples failed validation\n", stats.InvalidSamples)
	}

	if opts.noManifest {
		return nil
	}
	compression := cfg.Output.Compression
	if opts.compress {
		compression = export.CompressionZstd
	}
	path, err := batch.WriteManifest(opts.outputDir, batch.NewManifest(cfg, plan, stats, opts.format, compression))
	if err != nil {
		return err
	}
	logger.Debug("manifest written", zap.String("path", path))
	return nil
}
