// Package stats collects per-cycle statistics of a run: it sums the mote
// counters, runs the collision analyzer at the end of every cycle and hands
// the resulting rows to the report and to any registered sinks.
package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/tsch-sim/tsch-sim/sim"
)

// Fixed report columns.
const (
	ColRunNum               = "runNum"
	ColCycle                = "cycle"
	ColScheduleCollisions   = "scheduleCollisions"
	ColCollidedTxs          = "collidedTxs"
	ColEffectiveCollidedTxs = "effectiveCollidedTxs"
)

// Row is the statistics line of one cycle. Values holds every column,
// runNum and cycle included; each value is an int or a float64.
type Row struct {
	RunID  string
	RunNum int
	Cycle  int
	Slot   sim.ASN
	Values map[string]any
}

// Columns returns the column names of r, sorted.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r.Values))
	for k := range r.Values {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Float returns column name as a float64.
func (r Row) Float(name string) (float64, bool) {
	return toFloat(r.Values[name])
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// sumInto adds the values of src into dst column by column. Integer columns
// stay integers as long as every contribution is an integer.
func sumInto(dst map[string]any, src map[string]any) {
	for k, v := range src {
		prev, ok := dst[k]
		if !ok {
			dst[k] = v
			continue
		}
		pi, pInt := prev.(int)
		vi, vInt := v.(int)
		if pInt && vInt {
			dst[k] = pi + vi
			continue
		}
		pf, _ := toFloat(prev)
		vf, _ := toFloat(v)
		dst[k] = pf + vf
	}
}

func scheduleColumns(s sim.CycleStatistics) map[string]any {
	return map[string]any{
		ColScheduleCollisions:   s.ScheduleCollisions,
		ColCollidedTxs:          s.CollidedTransmissions,
		ColEffectiveCollidedTxs: s.EffectiveCollidedTransmissions,
	}
}

// ColumnSummary is the mean and sample standard deviation of one column over
// the cycles of a run.
type ColumnSummary struct {
	Name string
	Mean float64
	Std  float64
}

// RunSummary closes a run.
type RunSummary struct {
	RunID   string
	RunNum  int
	Cycles  int
	Columns []ColumnSummary
}

// Summarize computes per-column statistics over rows, skipping the runNum and
// cycle columns. Safe for empty input.
func Summarize(rows []Row) []ColumnSummary {
	if len(rows) == 0 {
		return nil
	}
	out := make([]ColumnSummary, 0)
	for _, name := range rows[0].Columns() {
		if name == ColRunNum || name == ColCycle {
			continue
		}
		xs := make([]float64, 0, len(rows))
		for _, r := range rows {
			if v, ok := r.Float(name); ok {
				xs = append(xs, v)
			}
		}
		if len(xs) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(xs, nil)
		if len(xs) < 2 || math.IsNaN(std) {
			std = 0
		}
		out = append(out, ColumnSummary{Name: name, Mean: mean, Std: std})
	}
	return out
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.3f", x)
	default:
		return fmt.Sprint(x)
	}
}
