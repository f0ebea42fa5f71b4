package trace

import "github.com/tsch-sim/tsch-sim/sim"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents      int
	TaggedEvents     int
	Dropped          int
	FirstSlot        int64
	LastSlot         int64
	BusiestSlot      int64
	BusiestSlotCount int
	KindDistribution map[string]int // callback kind → fired count
	UniqueOwners     int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		KindDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalEvents = len(st.Events)
	summary.Dropped = st.Dropped
	if len(st.Events) == 0 {
		return summary
	}

	summary.FirstSlot = st.Events[0].Slot
	summary.LastSlot = st.Events[len(st.Events)-1].Slot

	owners := make(map[int]bool)
	perSlot := 0
	for i, e := range st.Events {
		summary.KindDistribution[e.Kind.String()]++
		if e.Kind != sim.KindNone {
			summary.TaggedEvents++
		}
		if e.Owner != NoMote {
			owners[e.Owner] = true
		}

		// Events arrive in slot order, so equal slots are contiguous.
		if i > 0 && e.Slot == st.Events[i-1].Slot {
			perSlot++
		} else {
			perSlot = 1
		}
		if perSlot > summary.BusiestSlotCount {
			summary.BusiestSlotCount = perSlot
			summary.BusiestSlot = e.Slot
		}
	}
	summary.UniqueOwners = len(owners)

	return summary
}
