package sim

import "fmt"

// ASN is the absolute slot number: the simulation clock, one unit per timeslot.
type ASN int64

// Priority orders events that share a slot. Lower values fire first.
type Priority int

const (
	// PriorityStart is used by ScheduleAtStart so start-of-run actions precede
	// every steady-state callback at slot 0.
	PriorityStart Priority = -100
	// PriorityDefault is the priority of ordinary per-mote callbacks.
	PriorityDefault Priority = 0
	// PriorityStats is the priority of the end-of-cycle statistics callback,
	// so it observes the schedule after all protocol work of that slot.
	PriorityStats Priority = 10
	// PriorityEnd is used by ScheduleAtEnd. Nothing registered through
	// ScheduleAt can fire after it in the terminal slot.
	PriorityEnd Priority = 1 << 30
)

// Action is the work carried by an event. A non-nil error aborts the run.
type Action func() error

// CallbackKind names the recurring callbacks that may be de-duplicated by tag.
type CallbackKind int

const (
	// KindNone marks an untagged event; the zero Tag uses it.
	KindNone CallbackKind = iota
	KindEndOfCycle
	KindActiveCell
	KindHousekeeping
)

var callbackKindNames = map[CallbackKind]string{
	KindNone:         "none",
	KindEndOfCycle:   "endOfCycle",
	KindActiveCell:   "activeCell",
	KindHousekeeping: "housekeeping",
}

func (k CallbackKind) String() string {
	if name, ok := callbackKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CallbackKind(%d)", int(k))
}

// Owner identifies the mote owning a tagged callback, or no mote at all for
// simulation-wide callbacks such as statistics collection.
type Owner struct {
	id  MoteID
	set bool
}

// NoOwner is the owner of simulation-wide callbacks.
var NoOwner = Owner{}

// OwnedBy returns the owner for callbacks belonging to mote id.
func OwnedBy(id MoteID) Owner {
	return Owner{id: id, set: true}
}

// Mote returns the owning mote, and false for NoOwner.
func (o Owner) Mote() (MoteID, bool) {
	return o.id, o.set
}

func (o Owner) String() string {
	if !o.set {
		return "-"
	}
	return fmt.Sprintf("mote%d", o.id)
}

// Tag uniquely identifies a pending event. At most one pending event exists
// per non-zero Tag; scheduling again under the same Tag replaces it.
// The zero Tag means "untagged" and never replaces anything.
type Tag struct {
	Owner Owner
	Kind  CallbackKind
}

// NewTag builds a tag for callback kind k owned by o.
func NewTag(o Owner, k CallbackKind) Tag {
	return Tag{Owner: o, Kind: k}
}

// IsZero reports whether t is the untagged value.
func (t Tag) IsZero() bool {
	return t.Kind == KindNone
}

func (t Tag) String() string {
	if t.IsZero() {
		return "untagged"
	}
	return t.Owner.String() + "/" + t.Kind.String()
}

// event is a pending callback held by the engine's queue.
type event struct {
	asn       ASN
	priority  Priority
	tag       Tag
	action    Action
	seqID     uint64 // registration order, FIFO tie-break within a priority
	cancelled bool
}
