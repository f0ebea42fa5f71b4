package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRunConfig_Defaults(t *testing.T) {
	got := NewRunConfig()
	want := RunConfig{
		SlotsPerCycle: 101,
		CyclesPerRun:  100,
		NumMotes:      50,
		NumChannels:   16,
		SlotDuration:  10 * time.Millisecond,
	}
	assert.Equal(t, want, got)
	assert.NoError(t, got.Validate())
}

func TestRunConfig_EndSlotAndCycle(t *testing.T) {
	cfg := NewRunConfig()
	cfg.SlotsPerCycle = 101
	cfg.CyclesPerRun = 3

	assert.Equal(t, ASN(303), cfg.EndSlot())
	assert.Equal(t, 0, cfg.Cycle(100))
	assert.Equal(t, 1, cfg.Cycle(101))
	assert.Equal(t, 2, cfg.Cycle(302))
}

func TestRunConfig_ValidateReportsField(t *testing.T) {
	cfg := NewRunConfig()
	cfg.SlotDuration = -time.Second
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "SlotDuration")
}
