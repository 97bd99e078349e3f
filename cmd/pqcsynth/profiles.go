package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/miretskiy/pqcbench/sampler"
)

func newProfilesCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List configured crypto modes and load profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			fmt.Fprintln(w, "CRYPTO MODE\tPERF\tLATENCY\tCPU\tSIG GEN μs\tSIG VERIFY μs\tDESCRIPTION")
			for _, name := range cfg.CryptoModeNames() {
				m := cfg.CryptoModes[name]
				fmt.Fprintf(w, "%s\t%.2f\t%.2fx\t%.2fx\t%.0f±%.0f\t%.0f±%.0f\t%s\n",
					name, m.PerformanceFactor, m.LatencyOverhead, m.CPUOverhead,
					m.SigGenTime.Mean, m.SigGenTime.Std,
					m.SigVerifyTime.Mean, m.SigVerifyTime.Std,
					m.Description)
			}
			fmt.Fprintln(w)

			fmt.Fprintln(w, "LOAD PROFILE\tTARGET TPS\tRANGE\tLATENCY ms\tCPU %\tMEM %\tDESCRIPTION")
			for _, name := range cfg.LoadProfileNames() {
				p := cfg.LoadProfiles[name]
				fmt.Fprintf(w, "%s\t%.0f\t%.0f-%.0f\t%.0f\t%.0f\t%.0f\t%s\n",
					name, p.TargetTPS, p.MinTPS, p.MaxTPS, p.LatencyBase, p.CPUBase, p.MemBase, p.Description)
			}
			return w.Flush()
		},
	}
}

func newValidateConfigCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config [path]",
		Short: "Check a configuration file against the schema and value ranges",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := global.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no configuration given (pass a path or --config)")
			}
			cfg, err := sampler.LoadConfig(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d crypto modes, %d load profiles, %d columns)\n",
				path, len(cfg.CryptoModes), len(cfg.LoadProfiles), len(cfg.Output.Columns))
			return nil
		},
	}
}

func newDefaultConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default-config",
		Short: "Print the built-in configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := sampler.DefaultConfig().YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
