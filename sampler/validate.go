package sampler

import (
	"encoding/json"
	"math"
)

// ValidateSample reports whether row carries every configured column and
// satisfies the row invariants:
//   - latency_p95 > latency_avg and latency_p95 >= 1.5 * latency_avg
//   - cpu_util in [20, 95], mem_util in [30, 80]
//   - block_size integral in [500, 2500], block_commit_time in [30, 200]
//   - sig_gen_time / sig_verify_time within this sampler's crypto mode bounds
//
// Missing keys and ill-typed values make the row invalid; it never panics.
func (s *Sampler) ValidateSample(row map[string]any) bool {
	if row == nil {
		return false
	}
	for _, col := range s.columns {
		if _, ok := row[col]; !ok {
			return false
		}
	}
	for _, col := range []string{ColCryptoMode, ColLoadProfile, ColRunID} {
		if v, ok := row[col]; ok {
			if _, isString := v.(string); !isString {
				return false
			}
		}
	}

	num := func(col string) (float64, bool) {
		v, ok := row[col]
		if !ok {
			return 0, false
		}
		return toFloat(v)
	}

	avg, ok1 := num(ColLatencyAvg)
	p95, ok2 := num(ColLatencyP95)
	if !ok1 || !ok2 || !(p95 > avg) || !(p95 >= P95MultiplierMin*avg) {
		return false
	}

	checks := []struct {
		col    string
		lo, hi float64
	}{
		{ColCPUUtil, CPUUtilMin, CPUUtilMax},
		{ColMemUtil, MemUtilMin, MemUtilMax},
		{ColBlockSize, BlockSizeMin, BlockSizeMax},
		{ColBlockCommitTime, BlockCommitTimeMin, BlockCommitTimeMax},
		{ColSigGenTime, s.cryptoMode.SigGenTime.Min, s.cryptoMode.SigGenTime.Max},
		{ColSigVerifyTime, s.cryptoMode.SigVerifyTime.Min, s.cryptoMode.SigVerifyTime.Max},
	}
	for _, c := range checks {
		v, ok := num(c.col)
		if !ok || !(c.lo <= v && v <= c.hi) {
			return false
		}
	}

	blockSize, _ := num(ColBlockSize)
	return blockSize == math.Trunc(blockSize)
}

// ValidateRecord validates a typed Sample
func (s *Sampler) ValidateRecord(sample Sample) bool {
	return s.ValidateSample(sample.Record())
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
