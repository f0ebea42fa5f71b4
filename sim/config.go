package sim

import "time"

// Defaults follow the reference 6TiSCH simulation settings.
const (
	DefaultSlotsPerCycle = 101
	DefaultCyclesPerRun  = 100
	DefaultNumMotes      = 50
	DefaultNumChannels   = 16
	DefaultSlotDuration  = 10 * time.Millisecond
)

// RunConfig holds the settings that are fixed for the lifetime of one run.
type RunConfig struct {
	SlotsPerCycle int           // slots per slotframe (cycle), must be >= 1
	CyclesPerRun  int           // cycles before the end-of-run callbacks fire, must be >= 1
	NumMotes      int           // motes in the network, including the root
	NumChannels   int           // channel offsets available to the schedule
	SlotDuration  time.Duration // wall-clock length of one slot, used only for reporting
	Seed          int64         // master seed for all per-run randomness
}

// NewRunConfig returns a RunConfig populated with the default settings.
func NewRunConfig() RunConfig {
	return RunConfig{
		SlotsPerCycle: DefaultSlotsPerCycle,
		CyclesPerRun:  DefaultCyclesPerRun,
		NumMotes:      DefaultNumMotes,
		NumChannels:   DefaultNumChannels,
		SlotDuration:  DefaultSlotDuration,
	}
}

// Validate returns a *ConfigurationError for the first invalid field.
func (c RunConfig) Validate() error {
	switch {
	case c.SlotsPerCycle < 1:
		return &ConfigurationError{Field: "SlotsPerCycle", Value: c.SlotsPerCycle, Reason: "must be at least 1"}
	case c.CyclesPerRun < 1:
		return &ConfigurationError{Field: "CyclesPerRun", Value: c.CyclesPerRun, Reason: "run length must be positive"}
	case c.NumMotes < 1:
		return &ConfigurationError{Field: "NumMotes", Value: c.NumMotes, Reason: "must be at least 1"}
	case c.NumChannels < 1:
		return &ConfigurationError{Field: "NumChannels", Value: c.NumChannels, Reason: "must be at least 1"}
	case c.SlotDuration < 0:
		return &ConfigurationError{Field: "SlotDuration", Value: c.SlotDuration, Reason: "must not be negative"}
	}
	return nil
}

// EndSlot is the terminal slot: SlotsPerCycle × CyclesPerRun.
func (c RunConfig) EndSlot() ASN {
	return ASN(c.SlotsPerCycle) * ASN(c.CyclesPerRun)
}

// Cycle returns the cycle number slot asn belongs to.
func (c RunConfig) Cycle(asn ASN) int {
	return int(asn / ASN(c.SlotsPerCycle))
}
