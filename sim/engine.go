// sim/engine.go
package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Observer is notified of every event the engine fires, in firing order.
type Observer interface {
	EventFired(asn ASN, priority Priority, tag Tag)
}

// Observers fans one notification out to several observers, in order.
type Observers []Observer

func (os Observers) EventFired(asn ASN, priority Priority, tag Tag) {
	for _, o := range os {
		o.EventFired(asn, priority, tag)
	}
}

// EngineCounters are cumulative event counts for one run.
type EngineCounters struct {
	Scheduled int64 // events accepted by the queue, including replacements
	Fired     int64 // events whose action ran
	Replaced  int64 // pending events cancelled by a same-tag registration
	Cancelled int64 // pending events removed through Cancel
}

// RunResult describes why Run returned control to the host.
type RunResult struct {
	Slot     ASN  // current slot when Run returned
	Paused   bool // a PauseAt slot was reached; calling Run again resumes
	Finished bool // the terminal slot has been drained
}

// Engine is the discrete-event driver of one simulation run. It owns the slot
// clock and the event queue. It is single-threaded: actions run to completion
// one after the other and must not call Run or Advance themselves.
type Engine struct {
	cfg      RunConfig
	clock    ASN
	endSlot  ASN
	queue    *eventQueue
	seqID    uint64
	pauseAt  ASN
	paused   bool // a pause is armed
	draining bool // Advance is firing the bucket of clock
	done     bool
	closed   bool
	err      error
	counters EngineCounters
	observer Observer
}

// NewEngine validates cfg and returns an engine positioned at slot 0.
func NewEngine(cfg RunConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		endSlot: cfg.EndSlot(),
		queue:   newEventQueue(),
	}, nil
}

// Config returns the immutable run configuration.
func (e *Engine) Config() RunConfig { return e.cfg }

// CurrentSlot returns the slot the engine will drain next.
func (e *Engine) CurrentSlot() ASN { return e.clock }

// EndSlot returns the terminal slot of the run.
func (e *Engine) EndSlot() ASN { return e.endSlot }

// Counters returns a copy of the cumulative event counters.
func (e *Engine) Counters() EngineCounters { return e.counters }

// Pending returns the number of events waiting in the queue.
func (e *Engine) Pending() int {
	if e.closed {
		return 0
	}
	return e.queue.len()
}

// IsPending reports whether an event carrying tag is waiting to fire.
func (e *Engine) IsPending(tag Tag) bool {
	return !e.closed && !tag.IsZero() && e.queue.isPending(tag)
}

// SetObserver installs o to be notified of fired events. nil disables it.
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// ScheduleAt registers action to run at slot asn. asn must be strictly after
// the current slot. A non-zero tag replaces any pending event with that tag.
func (e *Engine) ScheduleAt(asn ASN, priority Priority, tag Tag, action Action) error {
	if e.closed {
		return ErrEngineClosed
	}
	if asn <= e.clock {
		return &SchedulingError{Target: asn, Current: e.clock, Tag: tag}
	}
	e.enqueue(asn, priority, tag, action)
	return nil
}

// ScheduleIn registers action delay slots after the current slot.
func (e *Engine) ScheduleIn(delay ASN, priority Priority, tag Tag, action Action) error {
	return e.ScheduleAt(e.clock+delay, priority, tag, action)
}

// ScheduleAtStart registers action at slot 0 ahead of every steady-state
// callback. It fails once slot 0 is being drained.
func (e *Engine) ScheduleAtStart(action Action) error {
	if e.closed {
		return ErrEngineClosed
	}
	if e.clock > 0 || e.draining {
		return &SchedulingError{Target: 0, Current: e.clock}
	}
	e.enqueue(0, PriorityStart, Tag{}, action)
	return nil
}

// ScheduleAtEnd registers action at the terminal slot, after every other
// event of that slot. End actions run in registration order. It fails once
// the terminal slot is being drained.
func (e *Engine) ScheduleAtEnd(action Action) error {
	if e.closed {
		return ErrEngineClosed
	}
	if e.done || e.endSlot < e.clock || (e.draining && e.clock == e.endSlot) {
		return &SchedulingError{Target: e.endSlot, Current: e.clock}
	}
	e.enqueue(e.endSlot, PriorityEnd, Tag{}, action)
	return nil
}

// PauseAt makes Run return once the clock reaches asn, before that slot is
// drained. Pending events are kept. A later call replaces an armed pause.
func (e *Engine) PauseAt(asn ASN) error {
	if e.closed {
		return ErrEngineClosed
	}
	if asn < e.clock {
		return &SchedulingError{Target: asn, Current: e.clock}
	}
	e.pauseAt = asn
	e.paused = true
	return nil
}

// Cancel removes the pending event carrying tag, reporting whether one existed.
func (e *Engine) Cancel(tag Tag) bool {
	if e.closed || tag.IsZero() {
		return false
	}
	if !e.queue.cancel(tag) {
		return false
	}
	e.counters.Cancelled++
	return true
}

func (e *Engine) enqueue(asn ASN, priority Priority, tag Tag, action Action) {
	e.seqID++
	ev := &event{
		asn:      asn,
		priority: priority,
		tag:      tag,
		action:   action,
		seqID:    e.seqID,
	}
	if replaced := e.queue.push(ev); replaced != nil {
		e.counters.Replaced++
		logrus.Debugf("[slot %07d] %s re-armed: slot %d replaced by slot %d", e.clock, tag, replaced.asn, asn)
	}
	e.counters.Scheduled++
}

// Advance drains the events due at the current slot in (priority,
// registration) order and then moves the clock one slot forward.
// An action error stops the drain and is returned; the engine stays failed.
func (e *Engine) Advance() error {
	if e.closed {
		return ErrEngineClosed
	}
	if e.err != nil {
		return e.err
	}
	slot := e.clock
	e.draining = true
	defer func() { e.draining = false }()
	for _, ev := range e.queue.take(slot) {
		if ev.cancelled {
			continue
		}
		e.queue.fired(ev)
		e.counters.Fired++
		if e.observer != nil {
			e.observer.EventFired(slot, ev.priority, ev.tag)
		}
		if err := ev.action(); err != nil {
			e.err = fmt.Errorf("slot %d, %s: %w", slot, ev.tag, err)
			e.clock = slot + 1
			return e.err
		}
	}
	if slot >= e.endSlot {
		e.done = true
	}
	e.clock = slot + 1
	return nil
}

// Run advances the clock until the terminal slot has been drained, an armed
// pause slot is reached, ctx is cancelled or an action fails.
// Slots with no events are skipped in one step.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	if e.closed {
		return RunResult{Slot: e.clock}, ErrEngineClosed
	}
	for !e.done {
		if err := ctx.Err(); err != nil {
			return RunResult{Slot: e.clock}, err
		}
		e.skipIdle()
		if e.paused && e.clock >= e.pauseAt {
			e.paused = false
			logrus.Infof("[slot %07d] Simulation paused", e.clock)
			return RunResult{Slot: e.clock, Paused: true}, nil
		}
		if err := e.Advance(); err != nil {
			return RunResult{Slot: e.clock}, err
		}
	}
	logrus.Infof("[slot %07d] Simulation ended", e.clock)
	return RunResult{Slot: e.clock, Finished: true}, nil
}

// skipIdle moves the clock to the next slot that has work, never past the
// terminal slot or an armed pause.
func (e *Engine) skipIdle() {
	target := e.endSlot
	if next, ok := e.queue.nextSlot(); ok && next < target {
		target = next
	}
	if e.paused && e.pauseAt < target {
		target = e.pauseAt
	}
	if target > e.clock {
		e.clock = target
	}
}

// Close tears the engine down. Pending events are dropped without firing and
// any further scheduling fails with ErrEngineClosed.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	logrus.Debugf("[slot %07d] Engine closed with %d pending events", e.clock, e.queue.len())
	e.closed = true
	e.queue = newEventQueue()
	e.observer = nil
}
