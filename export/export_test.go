package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/miretskiy/pqcbench/sampler"
)

func testSamples(t *testing.T, cryptoMode, loadProfile, runID string, n int) []sampler.Sample {
	t.Helper()
	s, err := sampler.NewSampler(sampler.DefaultConfig(), cryptoMode, loadProfile, runID,
		sampler.WithRand(sampler.NewRand(42)))
	require.NoError(t, err)
	samples, err := s.GenerateSamples(n)
	require.NoError(t, err)
	return samples
}

func readCSV(t *testing.T, path string, comma rune) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = comma
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestGenerateFilename(t *testing.T) {
	require.Equal(t, "HYBRID_MEDIUMLOAD_RUN3.csv",
		GenerateFilename(sampler.DefaultFilenamePattern, "HYBRID", "MEDIUMLOAD", 3))
	require.Equal(t, "run-12/ECDSA.csv",
		GenerateFilename("run-{run_number}/{crypto_mode}.csv", "ECDSA", "LOWLOAD", 12))

	e, err := NewJSONExporter(sampler.DefaultConfig().Output, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "ECDSA_LOWLOAD_RUN1.json", e.Filename("ECDSA", "LOWLOAD", 1))
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "1.235", FormatValue(1.23456, 3))
	require.Equal(t, "2.0", FormatValue(2.0, 1))
	require.Equal(t, "1735920000.000", FormatValue(1735920000.0, 3))
	require.Equal(t, "1024", FormatValue(1024, 3))
	require.Equal(t, "RUN1", FormatValue("RUN1", 3))
	require.Equal(t, "true", FormatValue(true, 3))
}

func TestCSVExporter(t *testing.T) {
	cfg := sampler.DefaultConfig()
	samples := testSamples(t, "ECDSA", "LOWLOAD", "RUN1", 10)

	t.Run("export run", func(t *testing.T) {
		dir := t.TempDir()
		e, err := NewCSVExporter(cfg.Output, dir)
		require.NoError(t, err)

		path, err := ExportRun(e, samples, "ECDSA", "LOWLOAD", 1)
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dir, "ECDSA_LOWLOAD_RUN1.csv"), path)

		records := readCSV(t, path, ',')
		require.Len(t, records, len(samples)+1)
		require.Equal(t, sampler.Columns, records[0])

		first := records[1]
		require.Equal(t, "1735920000.000", first[0])
		require.Equal(t, "ECDSA", first[1])
		require.Equal(t, "LOWLOAD", first[2])
		require.Equal(t, "RUN1", first[3])
		require.Equal(t, FormatValue(samples[0].TxRate, 3), first[4])
		// block_size is an integer and is written without decimals
		require.NotContains(t, first[9], ".")
		// floats carry exactly three decimals
		dot := strings.IndexByte(first[5], '.')
		require.Equal(t, 3, len(first[5])-dot-1)
	})

	t.Run("creates output directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "out")
		e, err := NewCSVExporter(cfg.Output, dir)
		require.NoError(t, err)
		path, err := ExportRun(e, samples, "ECDSA", "LOWLOAD", 1)
		require.NoError(t, err)
		require.FileExists(t, path)
	})

	t.Run("empty input", func(t *testing.T) {
		e, err := NewCSVExporter(cfg.Output, t.TempDir())
		require.NoError(t, err)
		_, err = e.ExportSamples(nil, "empty.csv")
		require.True(t, errors.Is(err, ErrNoSamples))
	})

	t.Run("column subset and options", func(t *testing.T) {
		out := cfg.Output
		out.Columns = []string{sampler.ColRunID, sampler.ColLatencyP95, sampler.ColBlockSize}
		out.DecimalPrecision = new(int)
		*out.DecimalPrecision = 1
		out.CSVOptions = sampler.CSVOptions{Delimiter: ";", LineTerminator: "\r\n"}

		dir := t.TempDir()
		e, err := NewCSVExporter(out, dir)
		require.NoError(t, err)
		path, err := e.ExportSamples(samples, "subset.csv")
		require.NoError(t, err)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(raw, []byte("run_id;latency_p95;block_size\r\n")))

		records := readCSV(t, path, ';')
		require.Len(t, records, len(samples)+1)
		for _, rec := range records[1:] {
			require.Len(t, rec, 3)
			require.Equal(t, "RUN1", rec[0])
			dot := strings.IndexByte(rec[1], '.')
			require.Equal(t, 1, len(rec[1])-dot-1)
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		out := cfg.Output
		out.CSVOptions.Delimiter = "||"
		_, err := NewCSVExporter(out, t.TempDir())
		require.Error(t, err)

		out = cfg.Output
		out.Compression = "lz4"
		_, err = NewCSVExporter(out, t.TempDir())
		require.Error(t, err)

		out = cfg.Output
		out.Columns = []string{"gas_used"}
		_, err = NewCSVExporter(out, t.TempDir())
		require.Error(t, err)
	})
}

func TestExportRuns(t *testing.T) {
	cfg := sampler.DefaultConfig()
	m, err := sampler.NewMultiRunSampler(cfg, "ECDSA", "LOWLOAD", 3, sampler.WithRand(sampler.NewRand(7)))
	require.NoError(t, err)
	runs, err := m.GenerateAllRuns(5)
	require.NoError(t, err)

	dir := t.TempDir()
	e, err := NewCSVExporter(cfg.Output, dir)
	require.NoError(t, err)

	paths, err := ExportRuns(e, runs, "ECDSA", "LOWLOAD")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "ECDSA_LOWLOAD_RUN1.csv"),
		filepath.Join(dir, "ECDSA_LOWLOAD_RUN2.csv"),
		filepath.Join(dir, "ECDSA_LOWLOAD_RUN3.csv"),
	}, paths)
	for i, path := range paths {
		records := readCSV(t, path, ',')
		require.Len(t, records, 6)
		require.Equal(t, sampler.RunID(i+1), records[1][3])
	}
}

func TestJSONExporter(t *testing.T) {
	cfg := sampler.DefaultConfig()
	samples := testSamples(t, "DILITHIUM3", "HIGHLOAD", "RUN2", 4)

	dir := t.TempDir()
	e, err := New(FormatJSON, cfg.Output, dir)
	require.NoError(t, err)

	path, err := ExportRun(e, samples, "DILITHIUM3", "HIGHLOAD", 2)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "DILITHIUM3_HIGHLOAD_RUN2.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 4)
	require.Equal(t, "RUN2", rows[0][sampler.ColRunID])
	require.Equal(t, float64(samples[0].BlockSize), rows[0][sampler.ColBlockSize])
	require.InDelta(t, samples[0].LatencyAvg, rows[0][sampler.ColLatencyAvg], 0.0005)

	// Keys keep the configured column order
	firstRow := raw[bytes.IndexByte(raw, '{'):]
	last := -1
	for _, col := range sampler.Columns {
		idx := bytes.Index(firstRow, []byte(`"`+col+`"`))
		require.Greater(t, idx, last, col)
		last = idx
	}
}

func TestZstdCompression(t *testing.T) {
	cfg := sampler.DefaultConfig()
	samples := testSamples(t, "HYBRID", "SUSTAINED", "RUN1", 20)

	dir := t.TempDir()
	e, err := NewCSVExporter(cfg.Output, dir, WithCompression(CompressionZstd))
	require.NoError(t, err)

	path, err := ExportRun(e, samples, "HYBRID", "SUSTAINED", 1)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "HYBRID_SUSTAINED_RUN1.csv.zst"), path)

	compressed, err := os.ReadFile(path)
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	plain, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(plain)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 21)
	require.Equal(t, sampler.Columns, records[0])
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("parquet", sampler.DefaultConfig().Output, t.TempDir())
	require.Error(t, err)

	e, err := New("CSV", sampler.DefaultConfig().Output, t.TempDir())
	require.NoError(t, err)
	require.IsType(t, &CSVExporter{}, e)
}

func TestCSVQuoting(t *testing.T) {
	samples := testSamples(t, "ECDSA", "LOWLOAD", "RUN1", 3)
	blockSize := FormatValue(samples[0].BlockSize, 3)

	tests := []struct {
		quoting string
		header  string
		first   string
	}{
		{"", "crypto_mode,block_size", "ECDSA," + blockSize},
		{"minimal", "crypto_mode,block_size", "ECDSA," + blockSize},
		{"all", `"crypto_mode","block_size"`, `"ECDSA","` + blockSize + `"`},
		{"NONNUMERIC", `"crypto_mode","block_size"`, `"ECDSA",` + blockSize},
		{"none", "crypto_mode,block_size", "ECDSA," + blockSize},
	}
	for _, tc := range tests {
		t.Run("quoting "+tc.quoting, func(t *testing.T) {
			out := sampler.DefaultConfig().Output
			out.Columns = []string{sampler.ColCryptoMode, sampler.ColBlockSize}
			out.CSVOptions.Quoting = tc.quoting
			e, err := NewCSVExporter(out, t.TempDir())
			require.NoError(t, err)

			path, err := e.ExportSamples(samples, "quoted.csv")
			require.NoError(t, err)
			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
			require.Len(t, lines, len(samples)+1)
			require.Equal(t, tc.header, lines[0])
			require.Equal(t, tc.first, lines[1])

			// Every mode reads back to the same records
			records := readCSV(t, path, ',')
			require.Equal(t, out.Columns, records[0])
			require.Equal(t, []string{"ECDSA", blockSize}, records[1])
			require.True(t, e.ValidateFile(path))
		})
	}

	t.Run("quote all with CRLF", func(t *testing.T) {
		out := sampler.DefaultConfig().Output
		out.Columns = []string{sampler.ColRunID}
		out.CSVOptions = sampler.CSVOptions{Quoting: "all", LineTerminator: "\r\n", Delimiter: ";"}
		e, err := NewCSVExporter(out, t.TempDir())
		require.NoError(t, err)
		path, err := e.ExportSamples(samples[:1], "crlf.csv")
		require.NoError(t, err)
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "\"run_id\"\r\n\"RUN1\"\r\n", string(raw))
	})

	t.Run("none rejects fields that need quotes", func(t *testing.T) {
		out := sampler.DefaultConfig().Output
		out.Columns = []string{sampler.ColTxRate}
		out.CSVOptions = sampler.CSVOptions{Quoting: "none", Delimiter: "."}
		e, err := NewCSVExporter(out, t.TempDir())
		require.NoError(t, err)
		_, err = e.ExportSamples(samples, "dots.csv")
		require.ErrorContains(t, err, "needs quoting")
	})

	t.Run("unknown mode", func(t *testing.T) {
		out := sampler.DefaultConfig().Output
		out.CSVOptions.Quoting = "sometimes"
		_, err := NewCSVExporter(out, t.TempDir())
		require.Error(t, err)
	})
}

func TestValidateCSVFile(t *testing.T) {
	cfg := sampler.DefaultConfig()
	samples := testSamples(t, "HYBRID", "HIGHLOAD", "RUN1", 5)
	dir := t.TempDir()

	e, err := NewCSVExporter(cfg.Output, dir)
	require.NoError(t, err)
	path, err := e.ExportSamples(samples, "valid.csv")
	require.NoError(t, err)

	t.Run("valid file", func(t *testing.T) {
		require.True(t, ValidateCSVFile(path, cfg.Output.Columns))
		require.True(t, e.ValidateFile(path))
	})

	t.Run("wrong columns", func(t *testing.T) {
		wrong := append([]string(nil), cfg.Output.Columns...)
		wrong[0], wrong[1] = wrong[1], wrong[0]
		require.False(t, ValidateCSVFile(path, wrong))
		require.False(t, ValidateCSVFile(path, cfg.Output.Columns[:3]))
	})

	t.Run("missing file", func(t *testing.T) {
		require.False(t, ValidateCSVFile(filepath.Join(dir, "nonexistent.csv"), nil))
	})

	t.Run("ragged rows", func(t *testing.T) {
		ragged := filepath.Join(dir, "ragged.csv")
		require.NoError(t, os.WriteFile(ragged, []byte("a,b\n1,2\n3\n"), 0o644))
		require.False(t, ValidateCSVFile(ragged, []string{"a", "b"}))
	})

	t.Run("compressed", func(t *testing.T) {
		z, err := NewCSVExporter(cfg.Output, dir, WithCompression(CompressionZstd))
		require.NoError(t, err)
		zpath, err := z.ExportSamples(samples, "valid.csv")
		require.NoError(t, err)
		require.True(t, ValidateCSVFile(zpath, cfg.Output.Columns))
	})

	t.Run("other delimiter", func(t *testing.T) {
		out := cfg.Output
		out.CSVOptions.Delimiter = ";"
		semi, err := NewCSVExporter(out, dir)
		require.NoError(t, err)
		spath, err := semi.ExportSamples(samples, "semi.csv")
		require.NoError(t, err)
		require.True(t, semi.ValidateFile(spath))
		require.False(t, ValidateCSVFile(spath, cfg.Output.Columns))
	})
}

func TestExportPatternWithDirectories(t *testing.T) {
	out := sampler.DefaultConfig().Output
	out.FilenamePattern = "run-{run_number}/{crypto_mode}/{load_profile}.csv"
	dir := t.TempDir()

	for _, compression := range []string{CompressionNone, CompressionZstd} {
		e, err := NewCSVExporter(out, dir, WithCompression(compression))
		require.NoError(t, err)
		path, err := ExportRun(e, testSamples(t, "ECDSA", "LOWLOAD", "RUN2", 2), "ECDSA", "LOWLOAD", 2)
		require.NoError(t, err, compression)
		require.FileExists(t, path)
		require.Equal(t, filepath.Join(dir, "run-2", "ECDSA"), filepath.Dir(path))
	}
}

func TestMonteCarloTableExport(t *testing.T) {
	gen, err := sampler.NewMonteCarloGenerator(sampler.DefaultParameters(), sampler.WithRand(sampler.NewRand(42)))
	require.NoError(t, err)
	res, err := gen.Generate(25)
	require.NoError(t, err)
	table := MonteCarloTable(res, 2)
	require.Equal(t, []string{"iteration", "tx_rate", "block_size", "network_latency", "node_count"}, table.Columns)
	require.Len(t, table.Rows, 25)
	require.Equal(t, "0", table.Rows[0][0])
	require.Equal(t, "24", table.Rows[24][0])
	require.NotContains(t, table.Rows[0][4], ".")

	dir := t.TempDir()
	out := sampler.DefaultConfig().Output

	csvExp, err := New(FormatCSV, out, dir)
	require.NoError(t, err)
	csvPath, err := csvExp.ExportTable(table, "samples.csv")
	require.NoError(t, err)
	require.True(t, ValidateCSVFile(csvPath, table.Columns))
	records := readCSV(t, csvPath, ',')
	require.Equal(t, table.Rows, records[1:])

	jsonExp, err := New(FormatJSON, out, dir)
	require.NoError(t, err)
	jsonPath, err := jsonExp.ExportTable(table, "samples.json")
	require.NoError(t, err)
	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var rows []map[string]float64
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 25)
	require.Equal(t, 3.0, rows[3]["iteration"])
	require.Equal(t, res.Rows[3].Values[3], rows[3]["node_count"])

	_, err = csvExp.ExportTable(Table{Columns: table.Columns}, "empty.csv")
	require.True(t, errors.Is(err, ErrNoSamples))
}
