package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/miretskiy/pqcbench/sampler"
)

// Supported output formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Supported compression codecs
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// ErrNoSamples is returned when asked to export an empty sample list
var ErrNoSamples = errors.New("cannot export empty sample list")

// Exporter writes the rows of one run to a file under its output directory
type Exporter interface {
	// Filename renders the output file name for a run (without directory)
	Filename(cryptoMode, loadProfile string, runNumber int) string
	// ExportSamples writes samples to filename and returns the full path
	ExportSamples(samples []sampler.Sample, filename string) (string, error)
	// ExportTable writes preformatted rows to filename and returns the full path
	ExportTable(t Table, filename string) (string, error)
	// OutputDir is the directory files are written to
	OutputDir() string
}

// Option customizes an exporter
type Option func(*fileWriter)

// WithLogger sets the logger (default: no-op)
func WithLogger(logger *zap.Logger) Option {
	return func(w *fileWriter) { w.logger = logger }
}

// WithCompression overrides output.compression ("none" or "zstd")
func WithCompression(codec string) Option {
	return func(w *fileWriter) { w.compression = codec }
}

// New creates the exporter for format ("csv" or "json")
func New(format string, out sampler.OutputConfig, outputDir string, opts ...Option) (Exporter, error) {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return NewCSVExporter(out, outputDir, opts...)
	case FormatJSON:
		return NewJSONExporter(out, outputDir, opts...)
	default:
		return nil, fmt.Errorf("unsupported output format %q (must be %q or %q)", format, FormatCSV, FormatJSON)
	}
}

// ExportRun writes one run using the exporter's filename pattern
func ExportRun(e Exporter, samples []sampler.Sample, cryptoMode, loadProfile string, runNumber int) (string, error) {
	return e.ExportSamples(samples, e.Filename(cryptoMode, loadProfile, runNumber))
}

// ExportRuns writes every run in ascending run order and returns the created paths
func ExportRuns(e Exporter, runs sampler.Runs, cryptoMode, loadProfile string) ([]string, error) {
	paths := make([]string, 0, len(runs))
	for _, id := range runs.IDs() {
		n, err := sampler.ParseRunID(id)
		if err != nil {
			return paths, err
		}
		path, err := ExportRun(e, runs[id], cryptoMode, loadProfile, n)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// GenerateFilename substitutes {crypto_mode}, {load_profile} and {run_number} in pattern
func GenerateFilename(pattern, cryptoMode, loadProfile string, runNumber int) string {
	return strings.NewReplacer(
		"{crypto_mode}", cryptoMode,
		"{load_profile}", loadProfile,
		"{run_number}", strconv.Itoa(runNumber),
	).Replace(pattern)
}

// FormatValue renders a column value: floats with fixed precision, everything else verbatim
func FormatValue(v any, precision int) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', precision, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', precision, 32)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprint(v)
	}
}

// fileWriter holds what CSV and JSON exporters share: where files go, how
// they are named and whether they are compressed.
type fileWriter struct {
	outputDir   string
	pattern     string
	columns     []string
	precision   int
	compression string
	logger      *zap.Logger
}

func newFileWriter(out sampler.OutputConfig, outputDir string, opts []Option) (fileWriter, error) {
	if outputDir == "" {
		outputDir = "."
	}
	w := fileWriter{
		outputDir:   outputDir,
		pattern:     out.Pattern(),
		columns:     append([]string(nil), out.Columns...),
		precision:   out.Precision(),
		compression: out.Compression,
	}
	if len(w.columns) == 0 {
		w.columns = append([]string(nil), sampler.Columns...)
	}
	for _, opt := range opts {
		opt(&w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	switch w.compression {
	case "":
		w.compression = CompressionNone
	case CompressionNone, CompressionZstd:
	default:
		return fileWriter{}, fmt.Errorf("unsupported compression %q (must be %q or %q)", w.compression, CompressionNone, CompressionZstd)
	}
	for _, col := range w.columns {
		if !sampler.IsColumn(col) {
			return fileWriter{}, fmt.Errorf("unknown output column %q", col)
		}
	}
	return w, nil
}

func (w *fileWriter) OutputDir() string { return w.outputDir }

// Columns returns the exported column order
func (w *fileWriter) Columns() []string { return append([]string(nil), w.columns...) }

// create opens path for writing, wrapping it in a zstd encoder when
// compression is enabled. The returned path carries the .zst suffix.
func (w *fileWriter) create(filename string) (io.WriteCloser, string, error) {
	path := filepath.Join(w.outputDir, filename)
	if w.compression == CompressionZstd {
		path += ".zst"
	}
	// The filename pattern may itself contain directories
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, "", err
	}
	if w.compression != CompressionZstd {
		return f, path, nil
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("create zstd encoder: %w", err)
	}
	return &zstdFile{Encoder: enc, f: f}, path, nil
}

type zstdFile struct {
	*zstd.Encoder
	f *os.File
}

func (z *zstdFile) Close() error {
	encErr := z.Encoder.Close()
	fileErr := z.f.Close()
	if encErr != nil {
		return encErr
	}
	return fileErr
}

// sampleTable formats samples in the configured column order
func (w *fileWriter) sampleTable(samples []sampler.Sample) Table {
	t := Table{
		Columns: w.columns,
		Rows:    make([][]string, len(samples)),
		Numeric: make([]bool, len(w.columns)),
	}
	for i, col := range w.columns {
		switch col {
		case sampler.ColCryptoMode, sampler.ColLoadProfile, sampler.ColRunID:
		default:
			t.Numeric[i] = true
		}
	}
	for r, s := range samples {
		rec := make([]string, len(w.columns))
		for i, col := range w.columns {
			v, _ := s.Field(col)
			rec[i] = FormatValue(v, w.precision)
		}
		t.Rows[r] = rec
	}
	return t
}
