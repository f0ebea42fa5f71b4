package sim

import (
	"testing"
)

func newTestEvent(asn ASN, prio Priority, seq uint64, tag Tag) *event {
	return &event{asn: asn, priority: prio, seqID: seq, tag: tag, action: func() error { return nil }}
}

func TestEventQueue_NextSlot_ReturnsEarliest(t *testing.T) {
	// GIVEN events at slots 9, 3 and 5
	q := newEventQueue()
	q.push(newTestEvent(9, PriorityDefault, 1, Tag{}))
	q.push(newTestEvent(3, PriorityDefault, 2, Tag{}))
	q.push(newTestEvent(5, PriorityDefault, 3, Tag{}))

	// WHEN nextSlot() is called
	slot, ok := q.nextSlot()

	// THEN the earliest slot is returned without removing anything
	if !ok || slot != 3 {
		t.Errorf("nextSlot: got (%d, %v), want (3, true)", slot, ok)
	}
	if q.len() != 3 {
		t.Errorf("nextSlot modified queue length: got %d, want 3", q.len())
	}
}

func TestEventQueue_Take_OrdersByPriorityThenRegistration(t *testing.T) {
	// GIVEN four events in one slot registered out of priority order
	q := newEventQueue()
	q.push(newTestEvent(4, PriorityStats, 1, Tag{}))
	q.push(newTestEvent(4, PriorityDefault, 2, Tag{}))
	q.push(newTestEvent(4, PriorityStart, 3, Tag{}))
	q.push(newTestEvent(4, PriorityDefault, 4, Tag{}))

	// WHEN the slot is taken
	bucket := q.take(4)

	// THEN events come out by priority, FIFO within a priority
	want := []uint64{3, 2, 4, 1}
	if len(bucket) != len(want) {
		t.Fatalf("take: got %d events, want %d", len(bucket), len(want))
	}
	for i, ev := range bucket {
		if ev.seqID != want[i] {
			t.Errorf("take[%d]: got seq %d, want %d", i, ev.seqID, want[i])
		}
	}
	if q.len() != 0 {
		t.Errorf("take: Len() got %d, want 0", q.len())
	}
	if _, ok := q.nextSlot(); ok {
		t.Error("nextSlot after draining the only slot: got ok, want empty")
	}
}

func TestEventQueue_PushSameTag_ReplacesPending(t *testing.T) {
	// GIVEN a tagged event at slot 10
	q := newEventQueue()
	tag := NewTag(OwnedBy(2), KindActiveCell)
	first := newTestEvent(10, PriorityDefault, 1, tag)
	q.push(first)

	// WHEN the same tag is pushed for slot 6
	second := newTestEvent(6, PriorityDefault, 2, tag)
	replaced := q.push(second)

	// THEN the first event is replaced and cancelled
	if replaced != first {
		t.Fatalf("push: replaced got %v, want first event", replaced)
	}
	if !first.cancelled {
		t.Error("replaced event not marked cancelled")
	}
	if q.len() != 1 {
		t.Errorf("push: Len() got %d, want 1", q.len())
	}
	// AND slot 10 is skipped once its bucket is empty
	if slot, _ := q.nextSlot(); slot != 6 {
		t.Errorf("nextSlot: got %d, want 6", slot)
	}
	q.take(6)
	if _, ok := q.nextSlot(); ok {
		t.Error("nextSlot: emptied slot 10 still reported")
	}
}

func TestEventQueue_UntaggedNeverReplaces(t *testing.T) {
	q := newEventQueue()
	if r := q.push(newTestEvent(1, PriorityDefault, 1, Tag{})); r != nil {
		t.Errorf("push untagged: replaced %v, want nil", r)
	}
	if r := q.push(newTestEvent(1, PriorityDefault, 2, Tag{})); r != nil {
		t.Errorf("push untagged: replaced %v, want nil", r)
	}
	if q.len() != 2 {
		t.Errorf("Len() got %d, want 2", q.len())
	}
}

func TestEventQueue_Cancel(t *testing.T) {
	// GIVEN one tagged and one untagged event
	q := newEventQueue()
	tag := NewTag(NoOwner, KindEndOfCycle)
	q.push(newTestEvent(7, PriorityStats, 1, tag))
	q.push(newTestEvent(8, PriorityDefault, 2, Tag{}))

	// WHEN cancelling the tag twice
	first := q.cancel(tag)
	second := q.cancel(tag)

	// THEN only the first cancel finds it
	if !first || second {
		t.Errorf("cancel: got (%v, %v), want (true, false)", first, second)
	}
	if q.isPending(tag) {
		t.Error("isPending after cancel: got true")
	}
	if q.len() != 1 {
		t.Errorf("Len() got %d, want 1", q.len())
	}
}

func TestEventQueue_RemoveWhileDraining_FlagsEvent(t *testing.T) {
	// GIVEN a slot taken for draining
	q := newEventQueue()
	tag := NewTag(OwnedBy(1), KindHousekeeping)
	ev := newTestEvent(3, PriorityDefault, 1, tag)
	q.push(ev)
	q.take(3)

	// WHEN the tag is cancelled mid-drain
	ok := q.cancel(tag)

	// THEN the event is flagged so the drain loop skips it
	if !ok || !ev.cancelled {
		t.Errorf("cancel mid-drain: got (ok=%v, cancelled=%v), want both true", ok, ev.cancelled)
	}
	if q.len() != 0 {
		t.Errorf("Len() got %d, want 0", q.len())
	}
}

func TestEventQueue_Fired_FreesTagForRearm(t *testing.T) {
	// GIVEN a tagged event whose slot is being drained
	q := newEventQueue()
	tag := NewTag(OwnedBy(4), KindActiveCell)
	old := newTestEvent(2, PriorityDefault, 1, tag)
	q.push(old)
	q.take(2)

	// WHEN it fires and its action re-arms the same tag
	q.fired(old)
	replaced := q.push(newTestEvent(5, PriorityDefault, 2, tag))

	// THEN the re-arm is a fresh registration, not a replacement
	if replaced != nil {
		t.Errorf("re-arm after fired: replaced %v, want nil", replaced)
	}
	if !q.isPending(tag) {
		t.Error("isPending after re-arm: got false")
	}
	// AND a stale fired call leaves the new registration alone
	q.fired(old)
	if !q.isPending(tag) {
		t.Error("stale fired cleared the new registration")
	}
}
