package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallSettings() Settings {
	s := DefaultSettings()
	s.SlotsPerCycle = 11
	s.CyclesPerRun = 3
	s.NumMotes = 5
	s.NumChannels = 4
	s.Runs = 2
	return s
}

func TestApplyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	// GIVEN settings loaded from a file with seed 42 and 8 motes
	s := DefaultSettings()
	s.NumMotes = 8

	// WHEN only --seed and --relocation-probability are given
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.Int64Var(&seed, "seed", 42, "")
	fs.IntVar(&numMotes, "motes", 50, "")
	fs.Float64Var(&relocation, "relocation-probability", 0.1, "")
	require.NoError(t, fs.Parse([]string{"--seed=100", "--relocation-probability=0.25"}))
	applyFlags(fs, &s)

	// THEN the given flags win
	assert.Equal(t, int64(100), s.Seed)
	assert.Equal(t, 0.25, s.Mote.RelocationProbability)
	// AND the file value survives the untouched flag default
	assert.Equal(t, 8, s.NumMotes)
}

func TestRunCampaign_WritesReportAndDatabase(t *testing.T) {
	// GIVEN a small two-run campaign writing every output
	dir := t.TempDir()
	report := filepath.Join(dir, "output.dat")
	db := filepath.Join(dir, "stats.db")
	metrics := filepath.Join(dir, "metrics")

	// WHEN it runs
	outcomes, err := runCampaign(context.Background(), smallSettings(), report, db, metrics)
	require.NoError(t, err)

	// THEN both runs completed every cycle
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, 3, o.Summary.Cycles)
	}

	// AND the report has the header and both blocks
	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "## campaignId = "))
	assert.Equal(t, 2, strings.Count(string(data), "#summary runNum="))

	// AND the database and the metrics dumps exist
	_, err = os.Stat(db)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(metrics, "run-1.prom"))
	assert.NoError(t, err)
}

func TestRunCampaign_InvalidSettings(t *testing.T) {
	s := smallSettings()
	s.Trace = "verbose"
	_, err := runCampaign(context.Background(), s, "", "", "")
	assert.Error(t, err)
}

func TestPrintOutcomes(t *testing.T) {
	outcomes, err := runCampaign(context.Background(), smallSettings(), "", "", "")
	require.NoError(t, err)

	var buf bytes.Buffer
	printOutcomes(&buf, outcomes)

	out := buf.String()
	assert.Contains(t, out, "=== Campaign Summary ===")
	assert.Contains(t, out, "run 0 (")
	assert.Contains(t, out, "run 1 (")
	assert.Contains(t, out, "scheduleCollisions")
}
