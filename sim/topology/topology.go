// Package topology places motes in a square area and acts as the propagation
// oracle of a run: per-pair RSSI and PDR, plus the routing rank and preferred
// parent of each mote. Everything is derived from the RNG handed to Build, so
// a run's topology is reproducible from its seed.
package topology

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/tsch-sim/tsch-sim/sim"
)

// RootID is the mote every other mote routes towards.
const RootID sim.MoteID = 0

// ErrPlacement is returned when a mote cannot be placed within reach of the
// already placed ones.
var ErrPlacement = errors.New("cannot place mote with a stable neighbor")

// ErrDisconnected is returned when a mote has no route to the root.
var ErrDisconnected = errors.New("mote has no route to the root")

// Config holds the placement and radio parameters of a topology.
type Config struct {
	NumMotes         int     `yaml:"-"`
	SquareSideKm     float64 `yaml:"square_side_km"`
	FrequencyGHz     float64 `yaml:"frequency_ghz"`
	TxPowerDBm       float64 `yaml:"tx_power_dbm"`
	StableRSSI       float64 `yaml:"stable_rssi_dbm"`       // a new mote needs one neighbor at least this strong
	SensitivityFloor float64 `yaml:"sensitivity_floor_dbm"` // pairs weaker than this have no propagation data
	MaxAttempts      int     `yaml:"max_placement_attempts"`
}

// DefaultConfig returns the reference placement parameters.
func DefaultConfig() Config {
	return Config{
		NumMotes:         sim.DefaultNumMotes,
		SquareSideKm:     2.0,
		FrequencyGHz:     2.4,
		TxPowerDBm:       0,
		StableRSSI:       -93.6,
		SensitivityFloor: -110,
		MaxAttempts:      100000,
	}
}

// Position is a location in km inside the deployment square.
type Position struct {
	X float64
	Y float64
}

func (p Position) distance(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Placement is the static description of one mote.
type Placement struct {
	ID     sim.MoteID
	Pos    Position
	Rank   int        // hops to the root on the minimum-ETX route
	Parent sim.MoteID // next hop towards the root; the root is its own parent
}

// Link is the propagation data of an unordered mote pair.
type Link struct {
	A, B sim.MoteID
	RSSI float64
	PDR  float64
}

type pair struct{ a, b sim.MoteID }

func orderedPair(a, b sim.MoteID) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// Topology is the propagation oracle of one run. It is immutable after Build.
type Topology struct {
	cfg        Config
	placements []Placement
	rssi       map[pair]float64
}

// Build places cfg.NumMotes motes, the root at the center of the square and
// every other mote at a random position within stable reach of at least one
// mote placed before it, then computes routes to the root.
func Build(cfg Config, rng *rand.Rand) (*Topology, error) {
	if cfg.NumMotes < 1 {
		return nil, fmt.Errorf("topology: num_motes=%d: %w", cfg.NumMotes, sim.ErrInvalidConfig)
	}
	if cfg.SquareSideKm <= 0 || cfg.FrequencyGHz <= 0 {
		return nil, fmt.Errorf("topology: square_side_km and frequency_ghz must be positive: %w", sim.ErrInvalidConfig)
	}

	t := &Topology{
		cfg:        cfg,
		placements: make([]Placement, 0, cfg.NumMotes),
		rssi:       make(map[pair]float64),
	}
	side := cfg.SquareSideKm
	t.placements = append(t.placements, Placement{ID: RootID, Pos: Position{side / 2, side / 2}, Parent: RootID})

	for i := 1; i < cfg.NumMotes; i++ {
		id := sim.MoteID(i)
		placed := false
		for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
			pos := Position{rng.Float64() * side, rng.Float64() * side}
			drawn := make(map[pair]float64, len(t.placements))
			stable := false
			for _, other := range t.placements {
				fs := FreeSpaceRSSI(pos.distance(other.Pos), cfg.FrequencyGHz, cfg.TxPowerDBm)
				rssi := PisterHackRSSI(fs, rng.Float64())
				drawn[orderedPair(id, other.ID)] = rssi
				if rssi >= cfg.StableRSSI {
					stable = true
				}
			}
			if !stable {
				continue
			}
			for p, rssi := range drawn {
				if rssi >= cfg.SensitivityFloor {
					t.rssi[p] = rssi
				}
			}
			t.placements = append(t.placements, Placement{ID: id, Pos: pos})
			placed = true
			logrus.Debugf("topology: mote %d placed at (%.3f,%.3f) after %d attempts", id, pos.X, pos.Y, attempt+1)
			break
		}
		if !placed {
			return nil, fmt.Errorf("topology: mote %d after %d attempts: %w", id, cfg.MaxAttempts, ErrPlacement)
		}
	}

	if err := t.computeRoutes(); err != nil {
		return nil, err
	}
	return t, nil
}

// computeRoutes runs Dijkstra from the root over links weighted by their
// expected transmission count (1/PDR) and derives rank and parent.
func (t *Topology) computeRoutes() error {
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, p := range t.placements {
		g.AddNode(simple.Node(int64(p.ID)))
	}
	for pr, rssi := range t.rssi {
		pdr := RSSIToPDR(rssi)
		if pdr <= 0 {
			continue
		}
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(int64(pr.a)),
			T: simple.Node(int64(pr.b)),
			W: 1 / pdr,
		})
	}

	tree := path.DijkstraFrom(simple.Node(int64(RootID)), g)
	for i := range t.placements {
		p := &t.placements[i]
		if p.ID == RootID {
			continue
		}
		nodes, _ := tree.To(int64(p.ID))
		if len(nodes) < 2 {
			return fmt.Errorf("topology: mote %d: %w", p.ID, ErrDisconnected)
		}
		p.Rank = len(nodes) - 1
		p.Parent = sim.MoteID(nodes[len(nodes)-2].ID())
	}
	return nil
}

// Config returns the parameters the topology was built with.
func (t *Topology) Config() Config { return t.cfg }

// Placements returns the motes ordered by id.
func (t *Topology) Placements() []Placement {
	out := make([]Placement, len(t.placements))
	copy(out, t.placements)
	return out
}

// Placement returns the placement of mote id.
func (t *Topology) Placement(id sim.MoteID) (Placement, bool) {
	if id < 0 || int(id) >= len(t.placements) {
		return Placement{}, false
	}
	return t.placements[id], true
}

// RSSI returns the signal strength between a and b, and false when the pair is
// below the sensitivity floor or unknown. The model is symmetric.
func (t *Topology) RSSI(a, b sim.MoteID) (float64, bool) {
	if a == b {
		return 0, false
	}
	v, ok := t.rssi[orderedPair(a, b)]
	return v, ok
}

// PDR returns the delivery ratio between a and b, with the same availability as RSSI.
func (t *Topology) PDR(a, b sim.MoteID) (float64, bool) {
	rssi, ok := t.RSSI(a, b)
	if !ok {
		return 0, false
	}
	return RSSIToPDR(rssi), true
}

// Neighbors returns the motes a has propagation data with and a PDR above zero, by id.
func (t *Topology) Neighbors(a sim.MoteID) []sim.MoteID {
	out := make([]sim.MoteID, 0)
	for _, p := range t.placements {
		if pdr, ok := t.PDR(a, p.ID); ok && pdr > 0 {
			out = append(out, p.ID)
		}
	}
	return out
}

// Links returns every pair with propagation data, ordered by (A, B).
func (t *Topology) Links() []Link {
	out := make([]Link, 0, len(t.rssi))
	for p, rssi := range t.rssi {
		out = append(out, Link{A: p.a, B: p.b, RSSI: rssi, PDR: RSSIToPDR(rssi)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
