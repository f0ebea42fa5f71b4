// Implements the slot-indexed event queue owned by the Engine.
// Events are bucketed per slot; a min-heap of slots gives the next slot with work.

package sim

import (
	"container/heap"
	"sort"
)

// slotHeap implements heap.Interface over slot numbers.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type slotHeap []ASN

func (h slotHeap) Len() int           { return len(h) }
func (h slotHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h slotHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *slotHeap) Push(x any) {
	*h = append(*h, x.(ASN))
}

func (h *slotHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// eventQueue maps each slot to the events due at it, ordered by
// (priority, seqID). A bucket is created once per slot and deleted only when
// the slot is drained, so every slot appears in the heap at most once.
type eventQueue struct {
	slots   slotHeap
	buckets map[ASN][]*event
	tagged  map[Tag]*event
	size    int
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		slots:   make(slotHeap, 0),
		buckets: make(map[ASN][]*event),
		tagged:  make(map[Tag]*event),
	}
}

// push inserts ev after every event of the same slot whose priority is lower
// or equal, which keeps registration order within a priority.
// It returns the event ev replaced, if any.
func (q *eventQueue) push(ev *event) *event {
	var replaced *event
	if !ev.tag.IsZero() {
		if old, ok := q.tagged[ev.tag]; ok {
			q.remove(old)
			replaced = old
		}
		q.tagged[ev.tag] = ev
	}

	bucket, ok := q.buckets[ev.asn]
	if !ok {
		heap.Push(&q.slots, ev.asn)
	}
	idx := sort.Search(len(bucket), func(i int) bool {
		return bucket[i].priority > ev.priority
	})
	bucket = append(bucket, nil)
	copy(bucket[idx+1:], bucket[idx:])
	bucket[idx] = ev
	q.buckets[ev.asn] = bucket
	q.size++
	return replaced
}

// remove cancels ev. If its slot is still queued the event is dropped from
// the bucket; if the slot is being drained the flag alone keeps it from firing.
func (q *eventQueue) remove(ev *event) {
	if ev.cancelled {
		return
	}
	ev.cancelled = true
	if cur, ok := q.tagged[ev.tag]; ok && cur == ev {
		delete(q.tagged, ev.tag)
	}
	bucket, ok := q.buckets[ev.asn]
	if !ok {
		return
	}
	for i, e := range bucket {
		if e == ev {
			q.buckets[ev.asn] = append(bucket[:i], bucket[i+1:]...)
			q.size--
			return
		}
	}
}

// cancel removes the pending event carrying tag, reporting whether one existed.
func (q *eventQueue) cancel(tag Tag) bool {
	ev, ok := q.tagged[tag]
	if !ok {
		return false
	}
	q.remove(ev)
	return true
}

// take detaches the bucket due at slot. The caller fires the events in order,
// skipping any cancelled while the bucket is being drained.
func (q *eventQueue) take(slot ASN) []*event {
	bucket, ok := q.buckets[slot]
	if !ok {
		return nil
	}
	delete(q.buckets, slot)
	for len(q.slots) > 0 && q.slots[0] <= slot {
		heap.Pop(&q.slots)
	}
	q.size -= len(bucket)
	return bucket
}

// fired clears the tag index entry of an event that has just run.
func (q *eventQueue) fired(ev *event) {
	if ev.tag.IsZero() {
		return
	}
	if cur, ok := q.tagged[ev.tag]; ok && cur == ev {
		delete(q.tagged, ev.tag)
	}
}

// nextSlot returns the earliest slot that still holds events.
func (q *eventQueue) nextSlot() (ASN, bool) {
	for len(q.slots) > 0 {
		slot := q.slots[0]
		if len(q.buckets[slot]) > 0 {
			return slot, true
		}
		if _, ok := q.buckets[slot]; ok {
			// every event of the slot was cancelled
			delete(q.buckets, slot)
		}
		heap.Pop(&q.slots)
	}
	return 0, false
}

func (q *eventQueue) isPending(tag Tag) bool {
	_, ok := q.tagged[tag]
	return ok
}

func (q *eventQueue) len() int {
	return q.size
}
