// Package telemetry exposes the counters of one run as Prometheus metrics on
// a per-run registry, so concurrent runs never share a metric.
package telemetry

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/tsch-sim/tsch-sim/sim"
	"github.com/tsch-sim/tsch-sim/sim/stats"
)

// RunCollector records engine and cycle statistics of one run. It is both a
// sim.Observer and a stats.Sink.
type RunCollector struct {
	gatherer prometheus.Gatherer

	EventsFired           *prometheus.CounterVec
	CyclesCollected       prometheus.Counter
	ScheduleCollisions    prometheus.Gauge
	CollidedTransmissions prometheus.Gauge
	EffectiveCollisions   prometheus.Gauge
	EffectiveTotal        prometheus.Counter
	CycleSlot             prometheus.Gauge
}

// NewRunCollector registers the run metrics against reg. A nil reg uses a
// fresh registry.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tsch_events_fired_total",
		Help: "Events fired by the engine, by callback kind.",
	}, []string{"kind"}), "tsch_events_fired_total")
	if err != nil {
		return nil, err
	}
	cycles, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tsch_cycles_collected_total",
		Help: "Cycles for which statistics were collected.",
	}), "tsch_cycles_collected_total")
	if err != nil {
		return nil, err
	}
	collisions, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tsch_schedule_collisions",
		Help: "TX cells sharing a (timeslot, channel) with another TX cell at the last cycle end.",
	}), "tsch_schedule_collisions")
	if err != nil {
		return nil, err
	}
	collided, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tsch_collided_transmissions",
		Help: "Links in collided cells at the last cycle end.",
	}), "tsch_collided_transmissions")
	if err != nil {
		return nil, err
	}
	effective, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tsch_effective_collided_transmissions",
		Help: "Interfering link pairs at the last cycle end.",
	}), "tsch_effective_collided_transmissions")
	if err != nil {
		return nil, err
	}
	effectiveTotal, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tsch_effective_collided_transmissions_total",
		Help: "Interfering link pairs summed over every collected cycle.",
	}), "tsch_effective_collided_transmissions_total")
	if err != nil {
		return nil, err
	}
	slot, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tsch_last_collected_slot",
		Help: "Slot of the last statistics collection.",
	}), "tsch_last_collected_slot")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:              gatherer,
		EventsFired:           events,
		CyclesCollected:       cycles,
		ScheduleCollisions:    collisions,
		CollidedTransmissions: collided,
		EffectiveCollisions:   effective,
		EffectiveTotal:        effectiveTotal,
		CycleSlot:             slot,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *RunCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// EventFired implements sim.Observer.
func (c *RunCollector) EventFired(_ sim.ASN, _ sim.Priority, tag sim.Tag) {
	if c == nil || c.EventsFired == nil {
		return
	}
	c.EventsFired.WithLabelValues(tag.Kind.String()).Inc()
}

// WriteRow implements stats.Sink.
func (c *RunCollector) WriteRow(r stats.Row) error {
	if c == nil {
		return nil
	}
	c.CyclesCollected.Inc()
	c.CycleSlot.Set(float64(r.Slot))
	if v, ok := r.Float(stats.ColScheduleCollisions); ok {
		c.ScheduleCollisions.Set(v)
	}
	if v, ok := r.Float(stats.ColCollidedTxs); ok {
		c.CollidedTransmissions.Set(v)
	}
	if v, ok := r.Float(stats.ColEffectiveCollidedTxs); ok {
		c.EffectiveCollisions.Set(v)
		c.EffectiveTotal.Add(v)
	}
	return nil
}

// EndRun implements stats.Sink.
func (c *RunCollector) EndRun(stats.RunSummary) error { return nil }

// WriteText writes every metric family of g in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
