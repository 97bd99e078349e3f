package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miretskiy/pqcbench/sampler"
)

// Environment variables supplying flag defaults (optionally via .env)
const (
	envConfig    = "PQCSYNTH_CONFIG"
	envOutputDir = "PQCSYNTH_OUTPUT_DIR"
	envSeed      = "PQCSYNTH_SEED"
)

type globalOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "pqcsynth",
		Short: "Synthetic benchmark data for post-quantum signatures on a permissioned ledger.",
		Long: "pqcsynth generates statistically plausible benchmark rows (throughput, latency,\n" +
			"utilisation, block and signature timings) for classical, post-quantum and hybrid\n" +
			"signature schemes under several load profiles, and exports them as CSV or JSON.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv(envConfig),
		"Path to the YAML configuration (default: built-in configuration; env "+envConfig+")")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newGenerateCmd(opts),
		newProfilesCmd(opts),
		newValidateConfigCmd(opts),
		newSummaryCmd(opts),
		newMonteCarloCmd(opts),
		newDefaultConfigCmd(),
	)
	return root
}

func main() {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *globalOptions) logger() (*zap.Logger, error) {
	if o.verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads --config, falling back to the built-in configuration
func (o *globalOptions) loadConfig() (*sampler.Config, error) {
	if o.configPath == "" {
		return sampler.DefaultConfig(), nil
	}
	return sampler.LoadConfig(o.configPath)
}

// flagRand seeds a generator from the named flag, or randomly when the flag
// was not given. Zero is an ordinary seed.
func flagRand(cmd *cobra.Command, name string, seed int64) *rand.Rand {
	if cmd.Flags().Changed(name) {
		return rand.New(rand.NewSource(seed))
	}
	return sampler.NewRand(0)
}

// envInt64 reads an integer environment variable; set is false when it is empty
func envInt64(name string) (n int64, set bool, err error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false, nil
	}
	n, err = strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s=%q is not an integer", name, v)
	}
	return n, true, nil
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
