package trace

import (
	"context"
	"testing"

	"github.com/tsch-sim/tsch-sim/sim"
)

func TestSimulationTrace_EventFired_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for events
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})

	// WHEN the engine reports a fired mote callback
	st.EventFired(42, sim.PriorityDefault, sim.NewTag(sim.OwnedBy(3), sim.KindActiveCell))

	// THEN the trace contains one record with correct data
	if len(st.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(st.Events))
	}
	got := st.Events[0]
	if got.Slot != 42 || got.Owner != 3 || got.Kind != sim.KindActiveCell {
		t.Errorf("unexpected record %+v", got)
	}
	if got.String() != "42/0 mote3/activeCell" {
		t.Errorf("unexpected string %q", got.String())
	}
}

func TestSimulationTrace_SimulationWideCallback_HasNoOwner(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})
	st.EventFired(100, sim.PriorityStats, sim.NewTag(sim.NoOwner, sim.KindEndOfCycle))

	if st.Events[0].Owner != NoMote {
		t.Errorf("expected NoMote owner, got %d", st.Events[0].Owner)
	}
	if st.Events[0].String() != "100/10 -/endOfCycle" {
		t.Errorf("unexpected string %q", st.Events[0].String())
	}
}

func TestSimulationTrace_LevelNone_RecordsNothing(t *testing.T) {
	for _, level := range []TraceLevel{TraceLevelNone, ""} {
		st := NewSimulationTrace(TraceConfig{Level: level})
		st.EventFired(1, 0, sim.Tag{})
		if len(st.Events) != 0 {
			t.Errorf("level %q: expected no events, got %d", level, len(st.Events))
		}
	}
}

func TestSimulationTrace_LevelTagged_SkipsUntagged(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelTagged})
	st.EventFired(1, 0, sim.Tag{})
	st.EventFired(2, 0, sim.NewTag(sim.OwnedBy(1), sim.KindHousekeeping))

	if len(st.Events) != 1 || st.Events[0].Slot != 2 {
		t.Errorf("expected only the tagged event, got %v", st.Events)
	}
}

func TestSimulationTrace_MaxEvents_CountsDropped(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents, MaxEvents: 2})
	for i := 0; i < 5; i++ {
		st.EventFired(sim.ASN(i), 0, sim.Tag{})
	}
	if len(st.Events) != 2 {
		t.Errorf("expected 2 stored events, got %d", len(st.Events))
	}
	if st.Dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", st.Dropped)
	}
}

func TestSimulationTrace_NilIsDisabled(t *testing.T) {
	var st *SimulationTrace
	if st.Enabled() {
		t.Error("nil trace must be disabled")
	}
	st.RecordEvent(EventRecord{}) // must not panic
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"events", true},
		{"tagged", true},
		{"", true},
		{"decisions", false},
		{"EVENTS", false},
	}
	for _, tt := range tests {
		if got := IsValidTraceLevel(tt.level); got != tt.valid {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
		}
	}
}

func TestSimulationTrace_AsEngineObserver(t *testing.T) {
	// GIVEN an engine with the trace installed
	e, err := sim.NewEngine(sim.RunConfig{SlotsPerCycle: 4, CyclesPerRun: 2, NumMotes: 1, NumChannels: 1})
	if err != nil {
		t.Fatal(err)
	}
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})
	e.SetObserver(st)

	noop := func() error { return nil }
	_ = e.ScheduleAtStart(noop)
	_ = e.ScheduleAt(3, sim.PriorityStats, sim.NewTag(sim.NoOwner, sim.KindEndOfCycle), noop)
	_ = e.ScheduleAtEnd(noop)

	// WHEN running
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// THEN the trace lists the events in firing order
	want := []string{"0/-100 -/none", "3/10 -/endOfCycle", "8/1073741824 -/none"}
	if len(st.Events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), st.Events)
	}
	for i, w := range want {
		if st.Events[i].String() != w {
			t.Errorf("event %d: got %q, want %q", i, st.Events[i].String(), w)
		}
	}
}
