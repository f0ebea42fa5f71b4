package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// SimulationKey identifies a reproducible run. Two runs with the same key and
// the same RunConfig produce identical event sequences and statistics.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

const (
	// SubsystemTopology drives mote placement.
	SubsystemTopology = "topology"
	// SubsystemAllocation drives initial cell allocation.
	SubsystemAllocation = "allocation"
)

// SubsystemMote returns the subsystem name for mote id.
func SubsystemMote(id MoteID) string {
	return fmt.Sprintf("mote_%d", id)
}

// PartitionedRNG hands out one deterministically seeded RNG per subsystem,
// so drawing from one subsystem never perturbs another.
//
// Derived seed: masterSeed XOR fnv1a64(subsystemName).
//
// Not thread-safe: each run owns its own PartitionedRNG.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the RNG of the named subsystem, creating it on first use.
// The same name always returns the same *rand.Rand.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// ForMote is shorthand for ForSubsystem(SubsystemMote(id)).
func (p *PartitionedRNG) ForMote(id MoteID) *rand.Rand {
	return p.ForSubsystem(SubsystemMote(id))
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
