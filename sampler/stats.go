package sampler

import (
	"fmt"
	"math"
	"sort"
)

// Summary describes one numeric column over a set of samples
type Summary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"` // Sample standard deviation (n-1)
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
}

// Summarize computes summary statistics of a numeric column
func Summarize(samples []Sample, column string) (Summary, error) {
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		v, ok := s.Numeric(column)
		if !ok {
			return Summary{}, fmt.Errorf("column %q is not numeric", column)
		}
		values = append(values, v)
	}
	return SummarizeValues(column, values), nil
}

// SummarizeValues computes summary statistics of values under the given
// column name. values is not modified.
func SummarizeValues(column string, values []float64) Summary {
	s := Summary{Column: column, Count: len(values)}
	if s.Count == 0 {
		return s
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	s.Min, s.Max = sorted[0], sorted[s.Count-1]

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	s.Mean = sum / float64(s.Count)
	if s.Count > 1 {
		var ss float64
		for _, v := range sorted {
			d := v - s.Mean
			ss += d * d
		}
		s.Std = math.Sqrt(ss / float64(s.Count-1))
	}

	s.P50 = s.rank(sorted, 0.50)
	s.P95 = s.rank(sorted, 0.95)
	return s
}

// rank reads quantile q off sorted, interpolating between the two ranks
// around q*(n-1).
func (s Summary) rank(sorted []float64, q float64) float64 {
	pos := q * float64(s.Count-1)
	lo := int(pos)
	hi := min(lo+1, s.Count-1)
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
