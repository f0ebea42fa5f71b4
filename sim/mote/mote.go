// Package mote provides the reference per-mote behaviour used to drive the
// engine end to end: a static cell allocation towards the routing parent,
// an active-cell callback that transmits and listens on scheduled cells, and
// an optional housekeeping pass that relocates TX cells.
package mote

import (
	"math/rand"

	"github.com/tsch-sim/tsch-sim/sim"
	"github.com/tsch-sim/tsch-sim/sim/topology"
)

// Column names of the per-mote counters, as they appear in the report.
const (
	ColTxCells     = "numTxCells"
	ColRxCells     = "numRxCells"
	ColTxAttempts  = "txAttempts"
	ColTxSuccesses = "txSuccesses"
	ColRxReceived  = "rxReceived"
	ColRelocations = "numRelocations"
	ColCharge      = "chargeConsumed"
)

// Stats are the cumulative counters of one mote.
type Stats struct {
	TxAttempts  int
	TxSuccesses int
	RxReceived  int
	Relocations int
	Charge      float64 // µC
}

// Mote is one node of the mesh. It implements sim.Node.
type Mote struct {
	id        sim.MoteID
	placement topology.Placement
	minRSSI   float64
	topo      *topology.Topology
	schedule  *sim.Schedule
	rng       *rand.Rand
	stats     Stats
}

func newMote(p topology.Placement, topo *topology.Topology, minRSSI float64, rng *rand.Rand) *Mote {
	return &Mote{
		id:        p.ID,
		placement: p,
		minRSSI:   minRSSI,
		topo:      topo,
		schedule:  sim.NewSchedule(),
		rng:       rng,
	}
}

func (m *Mote) ID() sim.MoteID          { return m.id }
func (m *Mote) Schedule() *sim.Schedule { return m.schedule }
func (m *Mote) MinRSSI() float64        { return m.minRSSI }

// RSSITo returns the strength of this mote's signal at other.
func (m *Mote) RSSITo(other sim.MoteID) (float64, bool) {
	return m.topo.RSSI(m.id, other)
}

// PDRTo returns the delivery ratio of this mote's transmissions to other.
func (m *Mote) PDRTo(other sim.MoteID) (float64, bool) {
	return m.topo.PDR(m.id, other)
}

// Position returns the mote location in km.
func (m *Mote) Position() topology.Position { return m.placement.Pos }

// Rank returns the hop count to the root.
func (m *Mote) Rank() int { return m.placement.Rank }

// Parent returns the preferred parent. The root is its own parent.
func (m *Mote) Parent() sim.MoteID { return m.placement.Parent }

// IsRoot reports whether the mote is the routing root.
func (m *Mote) IsRoot() bool { return m.id == topology.RootID }

// Stats returns a copy of the mote counters.
func (m *Mote) Stats() Stats { return m.stats }

// Counters returns the counters keyed by report column. Integer counters are
// int values, charge is a float64.
func (m *Mote) Counters() map[string]any {
	return map[string]any{
		ColTxCells:     m.schedule.CountDirection(sim.DirTX),
		ColRxCells:     m.schedule.CountDirection(sim.DirRX),
		ColTxAttempts:  m.stats.TxAttempts,
		ColTxSuccesses: m.stats.TxSuccesses,
		ColRxReceived:  m.stats.RxReceived,
		ColRelocations: m.stats.Relocations,
		ColCharge:      m.stats.Charge,
	}
}

// nextActiveSlot returns the first slot after asn at which the mote has a
// cell, and false if the schedule is empty.
func (m *Mote) nextActiveSlot(asn sim.ASN, slotsPerCycle int) (sim.ASN, bool) {
	spc := sim.ASN(slotsPerCycle)
	ts := asn % spc
	best := sim.ASN(-1)
	for _, c := range m.schedule.Cells() {
		off := (sim.ASN(c.Key.Timeslot) - ts + spc) % spc
		if off == 0 {
			off = spc
		}
		if best < 0 || off < best {
			best = off
		}
	}
	if best < 0 {
		return 0, false
	}
	return asn + best, true
}
