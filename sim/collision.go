package sim

import "github.com/sirupsen/logrus"

// Node is the view of a mote the collision analyzer needs.
type Node interface {
	ID() MoteID
	Schedule() *Schedule
	// MinRSSI is the weakest signal (dBm) the mote's radio can detect.
	MinRSSI() float64
	// RSSITo returns the signal strength (dBm) of this mote's transmissions
	// as received by other, and false when the pair has no propagation data.
	RSSITo(other MoteID) (float64, bool)
}

// CycleStatistics is the contention measured on one schedule snapshot.
type CycleStatistics struct {
	// ScheduleCollisions counts every TX cell beyond the first at the same
	// (timeslot, channel), across all motes.
	ScheduleCollisions int
	// CollidedTransmissions counts the links sharing a collided (timeslot, channel).
	CollidedTransmissions int
	// EffectiveCollidedTransmissions counts ordered link pairs of a collided
	// cell where the first transmitter is heard by the second receiver.
	EffectiveCollidedTransmissions int
}

type txLink struct {
	tx Node
	rx Node
}

// Analyze computes the contention statistics of the schedules held by nodes.
// It only reads: schedules and nodes are not modified, and calling it again on
// the same snapshot gives the same result.
//
// A TX cell whose neighbor is not among nodes has no link data; it still
// counts as a schedule collision but is left out of the link groups. A pair
// without propagation data is treated as not interfering.
func Analyze(nodes []Node) CycleStatistics {
	var stats CycleStatistics

	byID := make(map[MoteID]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID()] = n
	}

	occupied := make(map[CellKey]bool)
	groups := make(map[CellKey][]txLink)
	order := make([]CellKey, 0)

	for _, n := range nodes {
		sched := n.Schedule()
		if sched == nil {
			continue
		}
		for _, c := range sched.Cells() {
			if c.Direction != DirTX {
				continue
			}
			if occupied[c.Key] {
				stats.ScheduleCollisions++
			} else {
				occupied[c.Key] = true
			}

			rx, ok := byID[c.Neighbor]
			if !ok {
				logrus.Debugf("mote %d: TX cell %s targets unknown mote %d, no link", n.ID(), c.Key, c.Neighbor)
				continue
			}
			if _, ok := groups[c.Key]; !ok {
				order = append(order, c.Key)
			}
			groups[c.Key] = append(groups[c.Key], txLink{tx: n, rx: rx})
		}
	}

	for _, key := range order {
		links := groups[key]
		if len(links) < 2 {
			continue
		}
		stats.CollidedTransmissions += len(links)
		stats.EffectiveCollidedTransmissions += effectiveCollisions(links)
	}
	return stats
}

// effectiveCollisions walks ordered pairs, so tx1 hitting rx2 and tx2 hitting
// rx1 are two separate collisions.
func effectiveCollisions(links []txLink) int {
	count := 0
	for _, l1 := range links {
		for _, l2 := range links {
			if l1.tx.ID() == l2.tx.ID() || l1.rx.ID() == l2.rx.ID() {
				continue
			}
			rssi, ok := l1.tx.RSSITo(l2.rx.ID())
			if !ok {
				continue
			}
			if rssi >= l2.rx.MinRSSI() {
				count++
			}
		}
	}
	return count
}

// Add returns the field-wise sum of s and o.
func (s CycleStatistics) Add(o CycleStatistics) CycleStatistics {
	return CycleStatistics{
		ScheduleCollisions:             s.ScheduleCollisions + o.ScheduleCollisions,
		CollidedTransmissions:          s.CollidedTransmissions + o.CollidedTransmissions,
		EffectiveCollidedTransmissions: s.EffectiveCollidedTransmissions + o.EffectiveCollidedTransmissions,
	}
}
