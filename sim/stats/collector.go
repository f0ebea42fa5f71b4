package stats

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tsch-sim/tsch-sim/sim"
	"github.com/tsch-sim/tsch-sim/sim/mote"
	"github.com/tsch-sim/tsch-sim/sim/topology"
)

// Source is a mote as seen by the collector: a collision analyzer node that
// also reports counters keyed by column name.
type Source interface {
	sim.Node
	Counters() map[string]any
}

// Sink receives every row of a run as it is produced, then the run summary.
type Sink interface {
	WriteRow(Row) error
	EndRun(RunSummary) error
}

// Collector drives statistics collection for one run.
type Collector struct {
	engine  *sim.Engine
	runNum  int
	runID   string
	sources []Source
	nodes   []sim.Node
	report  *Report
	sinks   []Sink
	topo    *topology.Topology
	rows    []Row
	summary RunSummary
	ended   bool
}

// Option configures a Collector.
type Option func(*Collector)

// WithReport writes the run block to r at the end of the run.
func WithReport(r *Report) Option {
	return func(c *Collector) { c.report = r }
}

// WithSink adds a sink fed with every row.
func WithSink(s Sink) Option {
	return func(c *Collector) { c.sinks = append(c.sinks, s) }
}

// WithTopology adds the #pos and #links lines to the run block.
func WithTopology(t *topology.Topology) Option {
	return func(c *Collector) { c.topo = t }
}

// WithRunID tags every row and the summary with id.
func WithRunID(id string) Option {
	return func(c *Collector) { c.runID = id }
}

// EndOfCycleTag is the tag of the collector's end-of-cycle callback.
var EndOfCycleTag = sim.NewTag(sim.NoOwner, sim.KindEndOfCycle)

// NewCollector registers the start, end-of-cycle and end-of-run actions of
// the collector on engine. The first end-of-cycle fires at the last slot of
// cycle 0 and re-arms itself every cycle under EndOfCycleTag.
func NewCollector(engine *sim.Engine, runNum int, sources []Source, opts ...Option) (*Collector, error) {
	c := &Collector{
		engine:  engine,
		runNum:  runNum,
		sources: sources,
		nodes:   make([]sim.Node, len(sources)),
		rows:    make([]Row, 0, engine.Config().CyclesPerRun),
	}
	for i, s := range sources {
		c.nodes[i] = s
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := engine.ScheduleAtStart(c.start); err != nil {
		return nil, fmt.Errorf("register collector start: %w", err)
	}
	if first := c.firstCycleEnd(); first > engine.CurrentSlot() {
		if err := engine.ScheduleAt(first, sim.PriorityStats, EndOfCycleTag, c.endOfCycle); err != nil {
			return nil, fmt.Errorf("register end of cycle: %w", err)
		}
	}
	if err := engine.ScheduleAtEnd(c.end); err != nil {
		return nil, fmt.Errorf("register collector end: %w", err)
	}
	return c, nil
}

func (c *Collector) firstCycleEnd() sim.ASN {
	return sim.ASN(c.engine.Config().SlotsPerCycle - 1)
}

func (c *Collector) start() error {
	logrus.Debugf("[slot %07d] run %d: collecting statistics from %d motes", c.engine.CurrentSlot(), c.runNum, len(c.sources))
	// A one-slot cycle ends at slot 0, which cannot be scheduled ahead.
	if c.firstCycleEnd() == 0 {
		return c.endOfCycle()
	}
	return nil
}

func (c *Collector) endOfCycle() error {
	asn := c.engine.CurrentSlot()
	cycle := c.engine.Config().Cycle(asn)

	values := map[string]any{
		ColRunNum: c.runNum,
		ColCycle:  cycle,
	}
	counters := map[string]any{}
	for _, s := range c.sources {
		sumInto(counters, s.Counters())
	}
	for k, v := range counters {
		values[k] = v
	}
	cs := sim.Analyze(c.nodes)
	for k, v := range scheduleColumns(cs) {
		values[k] = v
	}

	row := Row{RunID: c.runID, RunNum: c.runNum, Cycle: cycle, Slot: asn, Values: values}
	c.rows = append(c.rows, row)
	logrus.Debugf("[slot %07d] run %d cycle %d: %d schedule collisions, %d effective",
		asn, c.runNum, cycle, cs.ScheduleCollisions, cs.EffectiveCollidedTransmissions)

	for _, s := range c.sinks {
		if err := s.WriteRow(row); err != nil {
			return fmt.Errorf("write cycle %d: %w", cycle, err)
		}
	}

	next := asn + sim.ASN(c.engine.Config().SlotsPerCycle)
	return c.engine.ScheduleAt(next, sim.PriorityStats, EndOfCycleTag, c.endOfCycle)
}

func (c *Collector) end() error {
	c.ended = true
	c.summary = RunSummary{
		RunID:   c.runID,
		RunNum:  c.runNum,
		Cycles:  len(c.rows),
		Columns: Summarize(c.rows),
	}
	for _, s := range c.sinks {
		if err := s.EndRun(c.summary); err != nil {
			return fmt.Errorf("end run %d: %w", c.runNum, err)
		}
	}
	if c.report != nil {
		if err := c.report.WriteRun(c.Block()); err != nil {
			return fmt.Errorf("write report for run %d: %w", c.runNum, err)
		}
	}
	logrus.Infof("[slot %07d] run %d: %d cycles collected", c.engine.CurrentSlot(), c.runNum, len(c.rows))
	return nil
}

// Rows returns the rows collected so far.
func (c *Collector) Rows() []Row {
	out := make([]Row, len(c.rows))
	copy(out, c.rows)
	return out
}

// Summary returns the run summary; it is zero until the end-of-run action ran.
func (c *Collector) Summary() (RunSummary, bool) {
	return c.summary, c.ended
}

// Block renders the report block of the run: rows, then the trailer.
func (c *Collector) Block() string {
	block := FormatRows(c.rows)
	if c.topo == nil {
		return block
	}
	cycles := float64(c.engine.Config().CyclesPerRun)
	charge := make(map[sim.MoteID]float64, len(c.sources))
	for _, s := range c.sources {
		if v, ok := toFloat(s.Counters()[mote.ColCharge]); ok {
			charge[s.ID()] = v / cycles
		}
	}
	return block + FormatTrailer(Trailer{
		RunNum:         c.runNum,
		Placements:     c.topo.Placements(),
		Links:          c.topo.Links(),
		Results:        ResultsFrom(c.rows),
		ChargePerCycle: charge,
		Summary:        Summarize(c.rows),
	})
}

// Sources adapts the motes of a network to collector sources.
func Sources(net *mote.Network) []Source {
	motes := net.Motes()
	out := make([]Source, len(motes))
	for i, m := range motes {
		out[i] = m
	}
	return out
}
