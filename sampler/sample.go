package sampler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Column names, in canonical order
const (
	ColTimestamp       = "timestamp"
	ColCryptoMode      = "crypto_mode"
	ColLoadProfile     = "load_profile"
	ColRunID           = "run_id"
	ColTxRate          = "tx_rate"
	ColLatencyAvg      = "latency_avg"
	ColLatencyP95      = "latency_p95"
	ColCPUUtil         = "cpu_util"
	ColMemUtil         = "mem_util"
	ColBlockSize       = "block_size"
	ColBlockCommitTime = "block_commit_time"
	ColSigGenTime      = "sig_gen_time"
	ColSigVerifyTime   = "sig_verify_time"
)

// Columns is the full Sample schema in canonical order
var Columns = []string{
	ColTimestamp,
	ColCryptoMode,
	ColLoadProfile,
	ColRunID,
	ColTxRate,
	ColLatencyAvg,
	ColLatencyP95,
	ColCPUUtil,
	ColMemUtil,
	ColBlockSize,
	ColBlockCommitTime,
	ColSigGenTime,
	ColSigVerifyTime,
}

// IsColumn reports whether name is part of the Sample schema
func IsColumn(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Sample is one generated benchmark row
type Sample struct {
	Timestamp       float64 `json:"timestamp"`         // Unix epoch seconds
	CryptoMode      string  `json:"crypto_mode"`
	LoadProfile     string  `json:"load_profile"`
	RunID           string  `json:"run_id"`            // RUN<N>
	TxRate          float64 `json:"tx_rate"`           // transactions/sec
	LatencyAvg      float64 `json:"latency_avg"`       // ms
	LatencyP95      float64 `json:"latency_p95"`       // ms
	CPUUtil         float64 `json:"cpu_util"`          // percent
	MemUtil         float64 `json:"mem_util"`          // percent
	BlockSize       int     `json:"block_size"`        // bytes
	BlockCommitTime float64 `json:"block_commit_time"` // ms
	SigGenTime      float64 `json:"sig_gen_time"`      // μs
	SigVerifyTime   float64 `json:"sig_verify_time"`   // μs
}

// Field returns the value of a column by name
func (s Sample) Field(name string) (any, bool) {
	switch name {
	case ColTimestamp:
		return s.Timestamp, true
	case ColCryptoMode:
		return s.CryptoMode, true
	case ColLoadProfile:
		return s.LoadProfile, true
	case ColRunID:
		return s.RunID, true
	case ColTxRate:
		return s.TxRate, true
	case ColLatencyAvg:
		return s.LatencyAvg, true
	case ColLatencyP95:
		return s.LatencyP95, true
	case ColCPUUtil:
		return s.CPUUtil, true
	case ColMemUtil:
		return s.MemUtil, true
	case ColBlockSize:
		return s.BlockSize, true
	case ColBlockCommitTime:
		return s.BlockCommitTime, true
	case ColSigGenTime:
		return s.SigGenTime, true
	case ColSigVerifyTime:
		return s.SigVerifyTime, true
	default:
		return nil, false
	}
}

// Numeric returns the value of a numeric column as float64
func (s Sample) Numeric(name string) (float64, bool) {
	v, ok := s.Field(name)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Record returns the row as an untyped mapping of every column
func (s Sample) Record() map[string]any {
	rec := make(map[string]any, len(Columns))
	for _, col := range Columns {
		rec[col], _ = s.Field(col)
	}
	return rec
}

const runIDPrefix = "RUN"

// RunID formats a run number as RUN<n>
func RunID(n int) string {
	return runIDPrefix + strconv.Itoa(n)
}

// ParseRunID extracts N from RUN<N>, N >= 1
func ParseRunID(id string) (int, error) {
	digits, ok := strings.CutPrefix(id, runIDPrefix)
	if !ok || digits == "" {
		return 0, fmt.Errorf("invalid run id %q (must be RUN<N>)", id)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || strconv.Itoa(n) != digits {
		return 0, fmt.Errorf("invalid run id %q (must be RUN<N> with N >= 1)", id)
	}
	return n, nil
}

// Runs maps run ids (RUN1..RUNk) to their samples
type Runs map[string][]Sample

// IDs returns the run ids in ascending numeric order (RUN2 before RUN10)
func (r Runs) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, erri := ParseRunID(ids[i])
		nj, errj := ParseRunID(ids[j])
		if erri != nil || errj != nil {
			return ids[i] < ids[j]
		}
		return ni < nj
	})
	return ids
}

// TotalSamples counts samples across all runs
func (r Runs) TotalSamples() int {
	total := 0
	for _, samples := range r {
		total += len(samples)
	}
	return total
}
