// Package testutil provides shared test infrastructure for the TSCH simulator:
// fake motes with hand-set link budgets used by sim/ and its sub-package tests.
package testutil

import (
	"testing"

	"github.com/tsch-sim/tsch-sim/sim"
)

// FakeMote is a sim.Node whose RSSI table is set by the test.
// Pairs missing from RSSI have no propagation data.
type FakeMote struct {
	MoteID    sim.MoteID
	Sched     *sim.Schedule
	Threshold float64
	RSSI      map[sim.MoteID]float64
	Counts    map[string]any // reported by Counters
}

// NewFakeMote returns a mote with an empty schedule and the given detection threshold.
func NewFakeMote(id sim.MoteID, threshold float64) *FakeMote {
	return &FakeMote{
		MoteID:    id,
		Sched:     sim.NewSchedule(),
		Threshold: threshold,
		RSSI:      make(map[sim.MoteID]float64),
		Counts:    make(map[string]any),
	}
}

func (m *FakeMote) ID() sim.MoteID          { return m.MoteID }
func (m *FakeMote) Schedule() *sim.Schedule { return m.Sched }
func (m *FakeMote) MinRSSI() float64        { return m.Threshold }

func (m *FakeMote) RSSITo(other sim.MoteID) (float64, bool) {
	v, ok := m.RSSI[other]
	return v, ok
}

// Counters returns a copy of Counts.
func (m *FakeMote) Counters() map[string]any {
	out := make(map[string]any, len(m.Counts))
	for k, v := range m.Counts {
		out[k] = v
	}
	return out
}

// MustAdd adds a cell to the mote's schedule, failing the test on error.
func (m *FakeMote) MustAdd(t *testing.T, ts, ch int, dir sim.Direction, neighbor sim.MoteID) {
	t.Helper()
	err := m.Sched.Add(sim.Cell{Key: sim.CellKey{Timeslot: ts, Channel: ch}, Direction: dir, Neighbor: neighbor})
	if err != nil {
		t.Fatalf("mote %d: %v", m.MoteID, err)
	}
}

// Nodes converts fake motes into the slice sim.Analyze expects.
func Nodes(motes ...*FakeMote) []sim.Node {
	out := make([]sim.Node, len(motes))
	for i, m := range motes {
		out[i] = m
	}
	return out
}
