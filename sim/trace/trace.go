package trace

import "github.com/tsch-sim/tsch-sim/sim"

// TraceLevel controls the verbosity of event tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents records every fired event.
	TraceLevelEvents TraceLevel = "events"
	// TraceLevelTagged records only tagged events.
	TraceLevelTagged TraceLevel = "tagged"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	TraceLevelTagged: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// MaxEvents caps the number of stored records; 0 means unbounded.
	// Events past the cap are still counted in Dropped.
	MaxEvents int
}

// SimulationTrace records the events fired during one run. It implements
// sim.Observer so it can be installed with Engine.SetObserver.
type SimulationTrace struct {
	Config  TraceConfig
	Events  []EventRecord
	Dropped int
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config: config,
		Events: make([]EventRecord, 0),
	}
}

// Enabled reports whether the trace records anything at all.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level != TraceLevelNone && st.Config.Level != ""
}

// RecordEvent appends an event record, honoring the level and cap.
func (st *SimulationTrace) RecordEvent(record EventRecord) {
	if !st.Enabled() {
		return
	}
	if st.Config.Level == TraceLevelTagged && record.Kind == sim.KindNone {
		return
	}
	if st.Config.MaxEvents > 0 && len(st.Events) >= st.Config.MaxEvents {
		st.Dropped++
		return
	}
	st.Events = append(st.Events, record)
}

// EventFired implements sim.Observer.
func (st *SimulationTrace) EventFired(asn sim.ASN, priority sim.Priority, tag sim.Tag) {
	rec := EventRecord{
		Slot:     int64(asn),
		Priority: int(priority),
		Kind:     tag.Kind,
		Owner:    NoMote,
	}
	if id, ok := tag.Owner.Mote(); ok {
		rec.Owner = int(id)
	}
	st.RecordEvent(rec)
}
