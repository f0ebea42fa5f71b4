package stats

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tsch-sim/tsch-sim/sim"
	"github.com/tsch-sim/tsch-sim/sim/mote"
	"github.com/tsch-sim/tsch-sim/sim/topology"
)

// Setting is one `## key = value` line of the report header.
type Setting struct {
	Key   string
	Value any
}

// Report writes the text report of a campaign: a settings header, then one
// block per run. Runs may finish on different goroutines; each block is
// written in one piece.
type Report struct {
	mu            sync.Mutex
	w             io.Writer
	headerWritten bool
}

// NewReport returns a report writing to w.
func NewReport(w io.Writer) *Report {
	return &Report{w: w}
}

// WriteHeader writes the settings echo. Only the first call writes.
func (r *Report) WriteHeader(settings []Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.headerWritten {
		return nil
	}
	r.headerWritten = true
	_, err := io.WriteString(r.w, FormatHeader(settings))
	return err
}

// WriteRun writes the block of one finished run.
func (r *Report) WriteRun(block string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := io.WriteString(r.w, block)
	return err
}

// FormatHeader renders the settings lines followed by a blank line.
func FormatHeader(settings []Setting) string {
	var b strings.Builder
	for _, s := range settings {
		fmt.Fprintf(&b, "## %s = %v\n", s.Key, s.Value)
	}
	b.WriteString("\n")
	return b.String()
}

// FormatRows renders the column line and one line per row. Each value is
// right-aligned to the width of its column name.
func FormatRows(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}
	cols := rows[0].Columns()
	var b strings.Builder
	b.WriteString("\n# ")
	b.WriteString(strings.Join(cols, " "))
	b.WriteString("\n")
	for _, r := range rows {
		vals := make([]string, len(cols))
		for i, c := range cols {
			vals[i] = fmt.Sprintf("%*s", len(c), formatValue(r.Values[c]))
		}
		b.WriteString("  ")
		b.WriteString(strings.Join(vals, " "))
		b.WriteString("\n")
	}
	return b.String()
}

// Trailer is the end-of-run part of a block.
type Trailer struct {
	RunNum         int
	Placements     []topology.Placement
	Links          []topology.Link
	Results        Results
	ChargePerCycle map[sim.MoteID]float64 // average charge per cycle (µC)
	Summary        []ColumnSummary
}

// Results are the run totals of the #results line.
type Results struct {
	TotalTx             int // transmission attempts
	TxSuccesses         int
	TotalRx             int // frames received
	DropsPropagation    int // attempts lost to the link PDR
	EffectiveCollisions int // effectively collided transmissions, summed over cycles
}

// ResultsFrom derives the run totals from the rows of a run. Mote counters
// are cumulative, so the transmission totals come from the last row.
func ResultsFrom(rows []Row) Results {
	var res Results
	if len(rows) == 0 {
		return res
	}
	last := rows[len(rows)-1]
	intOf := func(r Row, name string) int {
		v, _ := r.Float(name)
		return int(v)
	}
	res.TotalTx = intOf(last, mote.ColTxAttempts)
	res.TxSuccesses = intOf(last, mote.ColTxSuccesses)
	res.TotalRx = intOf(last, mote.ColRxReceived)
	res.DropsPropagation = res.TotalTx - res.TxSuccesses
	for _, r := range rows {
		res.EffectiveCollisions += intOf(r, ColEffectiveCollidedTxs)
	}
	return res
}

// FormatTrailer renders the #pos, #links, #results, #aveChargePerCycle and
// #summary lines.
func FormatTrailer(t Trailer) string {
	var b strings.Builder

	pos := make([]string, 0, len(t.Placements))
	for _, p := range t.Placements {
		pos = append(pos, fmt.Sprintf("%d@(%.5f,%.5f)@%d", p.ID, p.Pos.X, p.Pos.Y, p.Rank))
	}
	fmt.Fprintf(&b, "#pos runNum=%d %s\n", t.RunNum, strings.Join(pos, " "))

	links := make([]string, 0, len(t.Links))
	for _, l := range t.Links {
		links = append(links, fmt.Sprintf("%d-%d@%.0fdBm@%.3f", l.A, l.B, l.RSSI, l.PDR))
	}
	fmt.Fprintf(&b, "#links runNum=%d %s\n", t.RunNum, strings.Join(links, " "))

	r := t.Results
	fmt.Fprintf(&b, "#results runNum=%d totalTx %d txSuccesses %d totalRx %d dropsPropagation %d effectiveCollidedTxs %d\n",
		t.RunNum, r.TotalTx, r.TxSuccesses, r.TotalRx, r.DropsPropagation, r.EffectiveCollisions)

	charge := make([]string, 0, len(t.Placements))
	for _, p := range t.Placements {
		charge = append(charge, fmt.Sprintf("%d@%.2f", p.ID, t.ChargePerCycle[p.ID]))
	}
	fmt.Fprintf(&b, "#aveChargePerCycle runNum=%d %s\n", t.RunNum, strings.Join(charge, " "))

	summary := make([]string, 0, len(t.Summary))
	for _, s := range t.Summary {
		summary = append(summary, fmt.Sprintf("%s@%.3f@%.3f", s.Name, s.Mean, s.Std))
	}
	fmt.Fprintf(&b, "#summary runNum=%d %s\n", t.RunNum, strings.Join(summary, " "))
	return b.String()
}
