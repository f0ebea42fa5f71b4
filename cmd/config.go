package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tsch-sim/tsch-sim/sim"
	"github.com/tsch-sim/tsch-sim/sim/campaign"
	"github.com/tsch-sim/tsch-sim/sim/mote"
	"github.com/tsch-sim/tsch-sim/sim/topology"
	"github.com/tsch-sim/tsch-sim/sim/trace"
)

// Settings is the layout of a campaign settings file.
// Every key must be listed here: unknown keys are rejected.
type Settings struct {
	SlotsPerCycle  int           `yaml:"slots_per_cycle"`
	CyclesPerRun   int           `yaml:"cycles_per_run"`
	NumMotes       int           `yaml:"num_motes"`
	NumChannels    int           `yaml:"num_channels"`
	SlotDuration   time.Duration `yaml:"slot_duration"`
	Seed           int64         `yaml:"seed"`
	Runs           int           `yaml:"runs"`
	Parallel       int           `yaml:"parallel"`
	PauseAt        int64         `yaml:"pause_at"`
	Label          string        `yaml:"label"`
	Trace          string        `yaml:"trace"`
	TraceMaxEvents int           `yaml:"trace_max_events"`

	Topology topology.Config `yaml:"topology"`
	Mote     mote.Config     `yaml:"mote"`
}

// DefaultSettings returns the settings used when neither a file nor a flag
// sets a value.
func DefaultSettings() Settings {
	rc := sim.NewRunConfig()
	return Settings{
		SlotsPerCycle: rc.SlotsPerCycle,
		CyclesPerRun:  rc.CyclesPerRun,
		NumMotes:      rc.NumMotes,
		NumChannels:   rc.NumChannels,
		SlotDuration:  rc.SlotDuration,
		Seed:          42,
		Runs:          1,
		Parallel:      1,
		Trace:         string(trace.TraceLevelNone),
		Topology:      topology.DefaultConfig(),
		Mote:          mote.DefaultConfig(rc),
	}
}

// LoadSettings reads path over the defaults. Keys missing from the file keep
// their default value.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := decodeSettings(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}

func decodeSettings(data []byte, s *Settings) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(s); err != nil {
		// an empty file decodes to io.EOF
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return err
	}
	return nil
}

// CampaignConfig converts the settings into a campaign.Config.
func (s Settings) CampaignConfig() campaign.Config {
	return campaign.Config{
		Run: sim.RunConfig{
			SlotsPerCycle: s.SlotsPerCycle,
			CyclesPerRun:  s.CyclesPerRun,
			NumMotes:      s.NumMotes,
			NumChannels:   s.NumChannels,
			SlotDuration:  s.SlotDuration,
			Seed:          s.Seed,
		},
		Topology: s.Topology,
		Mote:     s.Mote,
		Trace:    trace.TraceConfig{Level: trace.TraceLevel(s.Trace), MaxEvents: s.TraceMaxEvents},
		Runs:     s.Runs,
		Parallel: s.Parallel,
		PauseAt:  sim.ASN(s.PauseAt),
		Label:    s.Label,
	}
}
