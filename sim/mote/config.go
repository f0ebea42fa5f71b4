package mote

import "github.com/tsch-sim/tsch-sim/sim"

// Charge drawn per cell activation, in µC, measured on OpenMote hardware.
const (
	DefaultChargeTx = 54.5 // TX data, RX ack
	DefaultChargeRx = 32.6 // RX data, TX ack
)

// Config holds the reference mote behaviour settings.
type Config struct {
	SlotsPerCycle int     `yaml:"-"`
	NumChannels   int     `yaml:"-"`
	MinRSSI       float64 `yaml:"min_rssi_dbm"`

	// InitialTxCells is the number of TX cells each non-root mote allocates
	// towards its parent before the run starts.
	InitialTxCells int `yaml:"initial_tx_cells"`
	// HousekeepingCycles is the period of the relocation housekeeping, in
	// cycles. Zero disables housekeeping.
	HousekeepingCycles int `yaml:"housekeeping_cycles"`
	// RelocationProbability is the chance that a housekeeping pass moves a
	// given TX cell to a fresh (timeslot, channel).
	RelocationProbability float64 `yaml:"relocation_probability"`

	ChargeTx float64 `yaml:"charge_tx_uc"`
	ChargeRx float64 `yaml:"charge_rx_uc"`
}

// DefaultConfig returns the mote settings matching run configuration rc.
func DefaultConfig(rc sim.RunConfig) Config {
	return Config{
		SlotsPerCycle:         rc.SlotsPerCycle,
		NumChannels:           rc.NumChannels,
		MinRSSI:               -97,
		InitialTxCells:        1,
		HousekeepingCycles:    10,
		RelocationProbability: 0.1,
		ChargeTx:              DefaultChargeTx,
		ChargeRx:              DefaultChargeRx,
	}
}

// Validate returns a *sim.ConfigurationError for the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.SlotsPerCycle < 1:
		return &sim.ConfigurationError{Field: "SlotsPerCycle", Value: c.SlotsPerCycle, Reason: "must be at least 1"}
	case c.NumChannels < 1:
		return &sim.ConfigurationError{Field: "NumChannels", Value: c.NumChannels, Reason: "must be at least 1"}
	case c.InitialTxCells < 0:
		return &sim.ConfigurationError{Field: "InitialTxCells", Value: c.InitialTxCells, Reason: "must not be negative"}
	case c.HousekeepingCycles < 0:
		return &sim.ConfigurationError{Field: "HousekeepingCycles", Value: c.HousekeepingCycles, Reason: "must not be negative"}
	case c.RelocationProbability < 0 || c.RelocationProbability > 1:
		return &sim.ConfigurationError{Field: "RelocationProbability", Value: c.RelocationProbability, Reason: "must be in [0, 1]"}
	case c.ChargeTx < 0 || c.ChargeRx < 0:
		return &sim.ConfigurationError{Field: "Charge", Value: [2]float64{c.ChargeTx, c.ChargeRx}, Reason: "must not be negative"}
	}
	return nil
}
