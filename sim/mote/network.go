package mote

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/tsch-sim/tsch-sim/sim"
	"github.com/tsch-sim/tsch-sim/sim/topology"
)

// ErrNoFreeCell is returned when two motes share no free timeslot.
var ErrNoFreeCell = errors.New("no common free timeslot")

// Network is the set of motes of one run, bound to that run's engine.
type Network struct {
	cfg    Config
	engine *sim.Engine
	topo   *topology.Topology
	motes  []*Mote
	byID   map[sim.MoteID]*Mote
	alloc  *rand.Rand
}

// NewNetwork creates one mote per placement of topo, allocates the initial
// TX cells of every non-root mote towards its parent and registers the start
// action that arms the per-mote callbacks.
func NewNetwork(engine *sim.Engine, topo *topology.Topology, rng *sim.PartitionedRNG, cfg Config) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := &Network{
		cfg:    cfg,
		engine: engine,
		topo:   topo,
		byID:   make(map[sim.MoteID]*Mote),
		alloc:  rng.ForSubsystem(sim.SubsystemAllocation),
	}
	for _, p := range topo.Placements() {
		m := newMote(p, topo, cfg.MinRSSI, rng.ForMote(p.ID))
		n.motes = append(n.motes, m)
		n.byID[m.id] = m
	}

	for _, m := range n.motes {
		if m.IsRoot() {
			continue
		}
		parent := n.byID[m.Parent()]
		for i := 0; i < cfg.InitialTxCells; i++ {
			if _, err := n.allocate(m, parent); err != nil {
				logrus.Warnf("mote %d: initial cell %d towards %d: %v", m.id, i, parent.id, err)
				break
			}
		}
	}

	if err := engine.ScheduleAtStart(n.start); err != nil {
		return nil, fmt.Errorf("register mote start: %w", err)
	}
	return n, nil
}

// Motes returns the motes ordered by id.
func (n *Network) Motes() []*Mote {
	out := make([]*Mote, len(n.motes))
	copy(out, n.motes)
	return out
}

// Mote returns the mote with the given id.
func (n *Network) Mote(id sim.MoteID) (*Mote, bool) {
	m, ok := n.byID[id]
	return m, ok
}

// Nodes returns the motes as the collision analyzer sees them.
func (n *Network) Nodes() []sim.Node {
	out := make([]sim.Node, len(n.motes))
	for i, m := range n.motes {
		out[i] = m
	}
	return out
}

// Topology returns the propagation oracle the motes were built from.
func (n *Network) Topology() *topology.Topology { return n.topo }

func activeCellTag(id sim.MoteID) sim.Tag   { return sim.NewTag(sim.OwnedBy(id), sim.KindActiveCell) }
func housekeepingTag(id sim.MoteID) sim.Tag { return sim.NewTag(sim.OwnedBy(id), sim.KindHousekeeping) }

func (n *Network) start() error {
	period := sim.ASN(n.cfg.HousekeepingCycles) * sim.ASN(n.cfg.SlotsPerCycle)
	for _, m := range n.motes {
		if err := n.rearm(m); err != nil {
			return err
		}
		if period == 0 || m.schedule.CountDirection(sim.DirTX) == 0 {
			continue
		}
		// Spread the first pass over one period so motes do not relocate in lockstep.
		first := 1 + sim.ASN(m.rng.Int63n(int64(period)))
		if err := n.scheduleHousekeeping(m, first); err != nil {
			return err
		}
	}
	return nil
}

// rearm moves the active-cell callback of m to its next scheduled cell, or
// cancels it when m has no cells left.
func (n *Network) rearm(m *Mote) error {
	tag := activeCellTag(m.id)
	next, ok := m.nextActiveSlot(n.engine.CurrentSlot(), n.cfg.SlotsPerCycle)
	if !ok {
		n.engine.Cancel(tag)
		return nil
	}
	return n.engine.ScheduleAt(next, sim.PriorityDefault, tag, func() error {
		return n.activeCell(m)
	})
}

func (n *Network) activeCell(m *Mote) error {
	asn := n.engine.CurrentSlot()
	ts := int(asn % sim.ASN(n.cfg.SlotsPerCycle))
	for _, c := range m.schedule.CellsAt(ts) {
		switch c.Direction {
		case sim.DirTX:
			m.stats.TxAttempts++
			m.stats.Charge += n.cfg.ChargeTx
			pdr, ok := m.PDRTo(c.Neighbor)
			if ok && m.rng.Float64() < pdr {
				m.stats.TxSuccesses++
				if rx, ok := n.byID[c.Neighbor]; ok {
					rx.stats.RxReceived++
				}
			}
		case sim.DirRX, sim.DirShared:
			m.stats.Charge += n.cfg.ChargeRx
		}
	}
	return n.rearm(m)
}

func (n *Network) scheduleHousekeeping(m *Mote, delay sim.ASN) error {
	return n.engine.ScheduleIn(delay, sim.PriorityDefault, housekeepingTag(m.id), func() error {
		return n.housekeeping(m)
	})
}

func (n *Network) housekeeping(m *Mote) error {
	touched := map[sim.MoteID]*Mote{}
	for _, c := range m.schedule.Cells() {
		if c.Direction != sim.DirTX || m.rng.Float64() >= n.cfg.RelocationProbability {
			continue
		}
		rx, ok := n.byID[c.Neighbor]
		if !ok {
			continue
		}
		moved, err := n.relocate(m, rx, c)
		if errors.Is(err, ErrNoFreeCell) {
			logrus.Debugf("[slot %07d] mote %d: cannot relocate %s: %v", n.engine.CurrentSlot(), m.id, c.Key, err)
			continue
		}
		if err != nil {
			return err
		}
		logrus.Debugf("[slot %07d] mote %d relocated %s to %s", n.engine.CurrentSlot(), m.id, c.Key, moved.Key)
		touched[m.id] = m
		touched[rx.id] = rx
	}
	for _, t := range n.motes {
		if touched[t.id] == nil {
			continue
		}
		if err := n.rearm(t); err != nil {
			return err
		}
	}
	period := sim.ASN(n.cfg.HousekeepingCycles) * sim.ASN(n.cfg.SlotsPerCycle)
	return n.scheduleHousekeeping(m, period)
}

// allocate adds a TX cell at tx and the matching RX cell at rx, on a random
// timeslot neither of them uses and a random channel.
func (n *Network) allocate(tx, rx *Mote) (sim.Cell, error) {
	free := make([]int, 0, n.cfg.SlotsPerCycle)
	for ts := 0; ts < n.cfg.SlotsPerCycle; ts++ {
		if !tx.schedule.HasTimeslot(ts) && !rx.schedule.HasTimeslot(ts) {
			free = append(free, ts)
		}
	}
	if len(free) == 0 {
		return sim.Cell{}, fmt.Errorf("motes %d and %d: %w", tx.id, rx.id, ErrNoFreeCell)
	}
	key := sim.CellKey{
		Timeslot: free[n.alloc.Intn(len(free))],
		Channel:  n.alloc.Intn(n.cfg.NumChannels),
	}
	cell := sim.Cell{Key: key, Direction: sim.DirTX, Neighbor: rx.id}
	if err := tx.schedule.Add(cell); err != nil {
		return sim.Cell{}, err
	}
	if err := rx.schedule.Add(sim.Cell{Key: key, Direction: sim.DirRX, Neighbor: tx.id}); err != nil {
		if _, rmErr := tx.schedule.Remove(key); rmErr != nil {
			return sim.Cell{}, errors.Join(err, rmErr)
		}
		return sim.Cell{}, err
	}
	return cell, nil
}

// relocate moves the TX cell c of tx, and the matching RX cell of rx, to a
// fresh timeslot and channel.
func (n *Network) relocate(tx, rx *Mote, c sim.Cell) (sim.Cell, error) {
	if _, err := tx.schedule.Remove(c.Key); err != nil {
		return sim.Cell{}, err
	}
	peer, hasPeer := rx.schedule.Get(c.Key)
	if hasPeer && peer.Direction == sim.DirRX && peer.Neighbor == tx.id {
		if _, err := rx.schedule.Remove(c.Key); err != nil {
			return sim.Cell{}, err
		}
	} else {
		hasPeer = false
	}

	moved, err := n.allocate(tx, rx)
	if err != nil {
		// Put the cells back where they were.
		errs := []error{err, tx.schedule.Add(c)}
		if hasPeer {
			errs = append(errs, rx.schedule.Add(peer))
		}
		return sim.Cell{}, errors.Join(errs...)
	}
	tx.stats.Relocations++
	return moved, nil
}
