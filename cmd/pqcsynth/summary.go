package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/miretskiy/pqcbench/sampler"
)

type summaryOptions struct {
	cryptoMode  string
	loadProfile string
	samples     int
	seed        int64
}

// newSummaryCmd previews the distribution of one combination without writing files
func newSummaryCmd(global *globalOptions) *cobra.Command {
	opts := &summaryOptions{}
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print summary statistics of generated samples for one crypto mode and load profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			logger, err := global.logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			s, err := sampler.NewSampler(cfg, opts.cryptoMode, opts.loadProfile, sampler.RunID(1),
				sampler.WithRand(flagRand(cmd, "seed", opts.seed)), sampler.WithLogger(logger))
			if err != nil {
				return err
			}
			samples, err := s.GenerateSamples(opts.samples)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(w, "COLUMN\tMEAN\tSTD\tMIN\tP50\tP95\tMAX\t\n")
			for _, col := range s.ColumnOrder() {
				if !isStatColumn(col) {
					continue
				}
				sum, err := sampler.Summarize(samples, col)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t\n",
					col, sum.Mean, sum.Std, sum.Min, sum.P50, sum.P95, sum.Max)
			}
			return w.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.cryptoMode, "crypto-mode", "m", "ECDSA", "Crypto mode")
	f.StringVarP(&opts.loadProfile, "load-profile", "l", "LOWLOAD", "Load profile")
	f.IntVarP(&opts.samples, "samples", "n", 300, "Number of samples to draw")
	f.Int64Var(&opts.seed, "seed", 0, "Random seed; random when unset")
	return cmd
}

// isStatColumn reports whether summary statistics are meaningful for col
func isStatColumn(col string) bool {
	switch col {
	case sampler.ColTimestamp, sampler.ColCryptoMode, sampler.ColLoadProfile, sampler.ColRunID:
		return false
	default:
		return true
	}
}
