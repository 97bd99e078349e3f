package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/miretskiy/pqcbench/sampler"
)

// CSV quoting modes accepted in output.csv_options.quoting
const (
	QuoteMinimal    = "minimal"    // Quote fields containing the delimiter, a quote or a line break
	QuoteAll        = "all"        // Quote every field
	QuoteNonNumeric = "nonnumeric" // Quote the header and every non-numeric field
	QuoteNone       = "none"       // Never quote; a field that would need quoting is an error
)

// CSVExporter writes runs as delimited text with a header row
type CSVExporter struct {
	fileWriter
	delimiter rune
	useCRLF   bool
	quoting   string
}

// NewCSVExporter creates a CSV exporter from the output section of the config
func NewCSVExporter(out sampler.OutputConfig, outputDir string, opts ...Option) (*CSVExporter, error) {
	w, err := newFileWriter(out, outputDir, opts)
	if err != nil {
		return nil, err
	}
	e := &CSVExporter{fileWriter: w, delimiter: ',', quoting: QuoteMinimal}
	if d := out.CSVOptions.Delimiter; d != "" {
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) {
			return nil, fmt.Errorf("csv delimiter %q must be a single character", d)
		}
		e.delimiter = r
	}
	switch out.CSVOptions.LineTerminator {
	case "", "\n":
	case "\r\n":
		e.useCRLF = true
	default:
		return nil, fmt.Errorf("unsupported csv line terminator %q", out.CSVOptions.LineTerminator)
	}
	switch q := strings.ToLower(out.CSVOptions.Quoting); q {
	case "":
	case QuoteMinimal, QuoteAll, QuoteNonNumeric, QuoteNone:
		e.quoting = q
	default:
		return nil, fmt.Errorf("unsupported csv quoting %q", out.CSVOptions.Quoting)
	}
	return e, nil
}

// Filename renders output.filename_pattern for a run
func (e *CSVExporter) Filename(cryptoMode, loadProfile string, runNumber int) string {
	return GenerateFilename(e.pattern, cryptoMode, loadProfile, runNumber)
}

// ExportSamples writes the header and one line per sample
func (e *CSVExporter) ExportSamples(samples []sampler.Sample, filename string) (string, error) {
	return e.ExportTable(e.sampleTable(samples), filename)
}

// ExportTable writes t's header and rows to filename
func (e *CSVExporter) ExportTable(t Table, filename string) (path string, err error) {
	if len(t.Rows) == 0 {
		return "", ErrNoSamples
	}
	out, path, err := e.create(filename)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if e.quoting == QuoteMinimal {
		err = e.writeMinimal(out, t)
	} else {
		err = e.writeQuoted(out, t)
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	e.logger.Debug("exported run",
		zap.String("path", path),
		zap.Int("rows", len(t.Rows)))
	return path, nil
}

func (e *CSVExporter) writeMinimal(out io.Writer, t Table) error {
	cw := csv.NewWriter(out)
	cw.Comma = e.delimiter
	cw.UseCRLF = e.useCRLF
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// writeQuoted handles the modes encoding/csv cannot express
func (e *CSVExporter) writeQuoted(out io.Writer, t Table) error {
	bw := bufio.NewWriter(out)
	eol := "\n"
	if e.useCRLF {
		eol = "\r\n"
	}
	line := func(fields []string, header bool) error {
		for i, f := range fields {
			if i > 0 {
				bw.WriteRune(e.delimiter)
			}
			quote := e.quoting == QuoteAll ||
				(e.quoting == QuoteNonNumeric && (header || !t.numeric(i)))
			switch {
			case quote:
				bw.WriteByte('"')
				bw.WriteString(strings.ReplaceAll(f, `"`, `""`))
				bw.WriteByte('"')
			case e.needsQuotes(f):
				return fmt.Errorf("field %q needs quoting but csv quoting is %q", f, e.quoting)
			default:
				bw.WriteString(f)
			}
		}
		_, err := bw.WriteString(eol)
		return err
	}

	if err := line(t.Columns, true); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := line(row, false); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (e *CSVExporter) needsQuotes(f string) bool {
	return strings.ContainsRune(f, e.delimiter) || strings.ContainsAny(f, "\"\r\n")
}

// ValidateFile reports whether path is a readable CSV written with this
// exporter's delimiter whose header is exactly its column list
func (e *CSVExporter) ValidateFile(path string) bool {
	return validateCSV(path, e.columns, e.delimiter)
}

// ValidateCSVFile reports whether path is a readable comma-separated file
// whose header row equals columns. Files ending in .zst are decompressed.
// A missing or unreadable file is invalid.
func ValidateCSVFile(path string, columns []string) bool {
	return validateCSV(path, columns, ',')
}

func validateCSV(path string, columns []string, delimiter rune) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var in io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return false
		}
		defer dec.Close()
		in = dec
	}

	r := csv.NewReader(in)
	r.Comma = delimiter
	header, err := r.Read()
	if err != nil {
		return false
	}
	if !slices.Equal(header, columns) {
		return false
	}
	// Every row must parse and carry one field per column
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			return false
		}
	}
}
