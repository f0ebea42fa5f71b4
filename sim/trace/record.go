// Package trace provides event-trace recording for run analysis and for
// checking that two runs with the same seed fire the same events.
package trace

import (
	"fmt"

	"github.com/tsch-sim/tsch-sim/sim"
)

// NoMote is the Owner of records for simulation-wide callbacks.
const NoMote = -1

// EventRecord captures a single fired event.
type EventRecord struct {
	Slot     int64
	Priority int
	Kind     sim.CallbackKind
	Owner    int // mote id, or NoMote
}

func (r EventRecord) String() string {
	owner := "-"
	if r.Owner != NoMote {
		owner = fmt.Sprintf("mote%d", r.Owner)
	}
	return fmt.Sprintf("%d/%d %s/%s", r.Slot, r.Priority, owner, r.Kind)
}
