package sampler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const minimalConfigYAML = `
crypto_modes:
  ECDSA:
    performance_factor: 1.0
    latency_overhead: 1.0
    cpu_overhead: 1.0
    sig_gen_time: {mean: 100, std: 15, min: 50, max: 150}
    sig_verify_time: {mean: 180, std: 25, min: 100, max: 250}
load_profiles:
  LOWLOAD:
    target_tps: 100
    variance: 0.1
    min_tps: 50
    max_tps: 150
    latency_base: 100
    latency_variance: 0.1
    cpu_base: 30
    mem_base: 40
sampling:
  start_timestamp: 0
  interval: 0.5
metrics:
  latency_p95: {multiplier_mean: 2.0, multiplier_std: 0.25}
  mem_util: {tx_rate_sensitivity: 0.04}
  block_size: {base: 1024, tx_rate_factor: 1.5}
  block_commit_time: {base: 50, block_size_sensitivity: 0.05, crypto_overhead_factor: 0.3}
output:
  columns: [timestamp, run_id, tx_rate, latency_avg, latency_p95]
`

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, []string{"DILITHIUM3", "ECDSA", "HYBRID"}, cfg.CryptoModeNames())
	require.Equal(t, []string{"HIGHLOAD", "LOWLOAD", "MEDIUMLOAD", "SUSTAINED"}, cfg.LoadProfileNames())
	require.Equal(t, Columns, cfg.Output.Columns)
	require.Equal(t, DefaultDecimalPrecision, cfg.Output.Precision())
	require.Equal(t, DefaultFilenamePattern, cfg.Output.Pattern())

	// Output columns must not alias the package-level schema
	cfg.Output.Columns[0] = "changed"
	require.Equal(t, ColTimestamp, Columns[0])
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		message string
	}{
		{"no crypto modes", func(c *Config) { c.CryptoModes = nil }, "crypto_modes"},
		{"no load profiles", func(c *Config) { c.LoadProfiles = map[string]LoadProfile{} }, "load_profiles"},
		{"zero performance factor", func(c *Config) {
			m := c.CryptoModes["ECDSA"]
			m.PerformanceFactor = 0
			c.CryptoModes["ECDSA"] = m
		}, "performance_factor"},
		{"latency overhead below 1", func(c *Config) {
			m := c.CryptoModes["HYBRID"]
			m.LatencyOverhead = 0.5
			c.CryptoModes["HYBRID"] = m
		}, "latency_overhead"},
		{"sig timing min above max", func(c *Config) {
			m := c.CryptoModes["DILITHIUM3"]
			m.SigVerifyTime.Min = 2000
			c.CryptoModes["DILITHIUM3"] = m
		}, "sig_verify_time"},
		{"min tps above max", func(c *Config) {
			p := c.LoadProfiles["LOWLOAD"]
			p.MinTPS = 200
			c.LoadProfiles["LOWLOAD"] = p
		}, "min_tps"},
		{"zero cpu base", func(c *Config) {
			p := c.LoadProfiles["HIGHLOAD"]
			p.CPUBase = 0
			c.LoadProfiles["HIGHLOAD"] = p
		}, "cpu_base"},
		{"zero interval", func(c *Config) { c.Sampling.Interval = 0 }, "interval"},
		{"negative start", func(c *Config) { c.Sampling.StartTimestamp = -1 }, "start_timestamp"},
		{"zero block size base", func(c *Config) { c.Metrics.BlockSize.Base = 0 }, "block_size"},
		{"unknown column", func(c *Config) { c.Output.Columns = append(c.Output.Columns, "gas_used") }, "gas_used"},
		{"duplicate column", func(c *Config) { c.Output.Columns = append(c.Output.Columns, ColTxRate) }, "duplicate"},
		{"no columns", func(c *Config) { c.Output.Columns = nil }, "columns"},
		{"precision too large", func(c *Config) { c.Output.DecimalPrecision = intPtr(20) }, "decimal_precision"},
		{"long delimiter", func(c *Config) { c.Output.CSVOptions.Delimiter = ";;" }, "delimiter"},
		{"unsupported quoting", func(c *Config) { c.Output.CSVOptions.Quoting = "always" }, "quoting"},
		{"bad line terminator", func(c *Config) { c.Output.CSVOptions.LineTerminator = "\r" }, "line_terminator"},
		{"unknown compression", func(c *Config) { c.Output.Compression = "gzip" }, "compression"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cfgErr ConfigError
			require.True(t, errors.As(err, &cfgErr))
			require.Contains(t, cfgErr.Message, tc.message)
		})
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("minimal document", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(minimalConfigYAML))
		require.NoError(t, err)
		require.Equal(t, []string{"ECDSA"}, cfg.CryptoModeNames())
		require.Equal(t, 0.5, cfg.Sampling.Interval)
		require.Equal(t, DefaultDecimalPrecision, cfg.Output.Precision())
		require.Equal(t, DefaultFilenamePattern, cfg.Output.Pattern())
		require.Len(t, cfg.Output.Columns, 5)
	})

	t.Run("missing required field", func(t *testing.T) {
		doc := strings.Replace(minimalConfigYAML, "    cpu_base: 30\n", "", 1)
		_, err := ParseConfig([]byte(doc))
		var cfgErr ConfigError
		require.True(t, errors.As(err, &cfgErr))
		require.Contains(t, cfgErr.Message, "schema")
	})

	t.Run("wrong type", func(t *testing.T) {
		doc := strings.Replace(minimalConfigYAML, "target_tps: 100", "target_tps: fast", 1)
		_, err := ParseConfig([]byte(doc))
		require.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		doc := strings.Replace(minimalConfigYAML, "    mem_base: 40\n", "    mem_base: 40\n    disk_base: 10\n", 1)
		_, err := ParseConfig([]byte(doc))
		require.Error(t, err)
		require.Contains(t, err.Error(), "disk_base")
	})

	t.Run("out of range value", func(t *testing.T) {
		doc := strings.Replace(minimalConfigYAML, "latency_overhead: 1.0", "latency_overhead: 0.2", 1)
		_, err := ParseConfig([]byte(doc))
		require.Error(t, err)
		require.Contains(t, err.Error(), "latency_overhead")
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := ParseConfig(nil)
		require.Error(t, err)
		_, err = ParseConfig([]byte("   \n"))
		require.Error(t, err)
	})

	t.Run("not yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte("crypto_modes: [unterminated"))
		require.Error(t, err)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("shipped config matches defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join("..", "configs", "config.yaml"))
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("yaml round trip", func(t *testing.T) {
		data, err := DefaultConfig().YAML()
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, data, 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		require.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestLookupErrors(t *testing.T) {
	cfg := DefaultConfig()

	_, err := cfg.CryptoMode("FALCON")
	require.True(t, errors.Is(err, ErrUnknownCryptoMode))
	require.False(t, errors.Is(err, ErrUnknownLoadProfile))
	require.Equal(t, `unknown crypto mode: "FALCON"`, err.Error())

	_, err = cfg.LoadProfile("BURST")
	require.True(t, errors.Is(err, ErrUnknownLoadProfile))

	p, err := cfg.LoadProfile("SUSTAINED")
	require.NoError(t, err)
	require.Equal(t, 500.0, p.TargetTPS)
}

func TestValidateQuotingModes(t *testing.T) {
	for _, q := range []string{"", "minimal", "all", "ALL", "nonnumeric", "none"} {
		cfg := DefaultConfig()
		cfg.Output.CSVOptions.Quoting = q
		require.NoError(t, cfg.Validate(), q)
	}
}
