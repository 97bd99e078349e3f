package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/miretskiy/pqcbench/sampler"
)

// ManifestFilename is written next to the generated files
const ManifestFilename = "manifest.json"

// Manifest records how a batch was produced
type Manifest struct {
	BatchID        string    `json:"batch_id"`
	CreatedAt      time.Time `json:"created_at"`
	Format         string    `json:"format"`
	Compression    string    `json:"compression"`
	Plan           Plan      `json:"plan"`
	SampleInterval float64   `json:"sample_interval_s"`
	StartTimestamp float64   `json:"start_timestamp"`
	Columns        []string  `json:"columns"`
	Stats          *Stats    `json:"stats"`
}

// NewManifest describes a finished batch
func NewManifest(cfg *sampler.Config, plan Plan, stats *Stats, format, compression string) Manifest {
	if compression == "" {
		compression = "none"
	}
	return Manifest{
		BatchID:        stats.BatchID,
		CreatedAt:      time.Now().UTC(),
		Format:         format,
		Compression:    compression,
		Plan:           plan,
		SampleInterval: cfg.Sampling.Interval,
		StartTimestamp: cfg.Sampling.StartTimestamp,
		Columns:        append([]string(nil), cfg.Output.Columns...),
		Stats:          stats,
	}
}

// WriteManifest writes m as indented JSON to dir/manifest.json
func WriteManifest(dir string, m Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ManifestFilename)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}
