package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/miretskiy/pqcbench/sampler"
)

// JSONExporter writes runs as a JSON array of objects whose keys follow the
// configured column order. Floats carry the configured decimal precision.
type JSONExporter struct {
	fileWriter
}

// NewJSONExporter creates a JSON exporter from the output section of the config
func NewJSONExporter(out sampler.OutputConfig, outputDir string, opts ...Option) (*JSONExporter, error) {
	w, err := newFileWriter(out, outputDir, opts)
	if err != nil {
		return nil, err
	}
	return &JSONExporter{fileWriter: w}, nil
}

// Filename renders output.filename_pattern for a run with a .json extension
func (e *JSONExporter) Filename(cryptoMode, loadProfile string, runNumber int) string {
	name := GenerateFilename(e.pattern, cryptoMode, loadProfile, runNumber)
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".json"
}

// ExportSamples writes samples as an indented JSON array
func (e *JSONExporter) ExportSamples(samples []sampler.Sample, filename string) (string, error) {
	return e.ExportTable(e.sampleTable(samples), filename)
}

// ExportTable writes one JSON object per row, keyed by t.Columns
func (e *JSONExporter) ExportTable(t Table, filename string) (path string, err error) {
	if len(t.Rows) == 0 {
		return "", ErrNoSamples
	}

	rows := make([]orderedRow, len(t.Rows))
	for i, values := range t.Rows {
		rows[i] = orderedRow{table: &t, values: values}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}
	data = append(data, '\n')

	out, path, err := e.create(filename)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err := out.Write(data); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	e.logger.Debug("exported run",
		zap.String("path", path),
		zap.Int("rows", len(t.Rows)))
	return path, nil
}

// orderedRow marshals as a JSON object with keys in column order.
// Numeric values are already formatted and are emitted as JSON numbers.
type orderedRow struct {
	table  *Table
	values []string
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.table.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if r.table.numeric(i) {
			buf.WriteString(r.values[i])
			continue
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
