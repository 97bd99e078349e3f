package export

import (
	"strconv"

	"github.com/miretskiy/pqcbench/sampler"
)

// Table is a header plus rows of already formatted fields. Numeric marks the
// columns whose fields are numbers; a nil Numeric treats every column as text.
type Table struct {
	Columns []string
	Rows    [][]string
	Numeric []bool
}

func (t *Table) numeric(i int) bool {
	return i < len(t.Numeric) && t.Numeric[i]
}

// MonteCarloTable formats a Monte Carlo result: the iteration and discrete
// parameters as integers, everything else with precision decimals.
func MonteCarloTable(res *sampler.MonteCarloResult, precision int) Table {
	cols := res.Columns()
	t := Table{
		Columns: cols,
		Rows:    make([][]string, len(res.Rows)),
		Numeric: make([]bool, len(cols)),
	}
	for i := range t.Numeric {
		t.Numeric[i] = true
	}
	for r, row := range res.Rows {
		rec := make([]string, 0, len(cols))
		rec = append(rec, strconv.Itoa(row.Iteration))
		for j, v := range row.Values {
			if res.Parameters[j].Discrete {
				rec = append(rec, strconv.FormatInt(int64(v), 10))
				continue
			}
			rec = append(rec, FormatValue(v, precision))
		}
		t.Rows[r] = rec
	}
	return t
}
