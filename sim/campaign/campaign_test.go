package campaign

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsch-sim/tsch-sim/sim"
	"github.com/tsch-sim/tsch-sim/sim/mote"
	"github.com/tsch-sim/tsch-sim/sim/stats"
	"github.com/tsch-sim/tsch-sim/sim/store"
	"github.com/tsch-sim/tsch-sim/sim/topology"
	"github.com/tsch-sim/tsch-sim/sim/trace"
)

func testConfig(runs int) Config {
	rc := sim.RunConfig{SlotsPerCycle: 11, CyclesPerRun: 5, NumMotes: 6, NumChannels: 4, Seed: 100}
	mc := mote.DefaultConfig(rc)
	mc.HousekeepingCycles = 2
	return Config{
		Run:      rc,
		Topology: topology.DefaultConfig(),
		Mote:     mc,
		Runs:     runs,
	}
}

// withoutTiming strips the wall-clock part of the outcomes.
func withoutTiming(out []Outcome) []Outcome {
	res := make([]Outcome, len(out))
	for i, o := range out {
		o.Elapsed = 0
		res[i] = o
	}
	return res
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(0)
	_, err := New(cfg)
	var cfgErr *sim.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "Runs", cfgErr.Field)

	cfg = testConfig(1)
	cfg.Trace.Level = "verbose"
	_, err = New(cfg)
	assert.True(t, errors.Is(err, sim.ErrInvalidConfig))

	cfg = testConfig(1)
	cfg.Run.SlotsPerCycle = 0
	_, err = New(cfg)
	assert.True(t, errors.Is(err, sim.ErrInvalidConfig))
}

func TestCampaign_DeterministicIDsAndSeeds(t *testing.T) {
	a, err := New(testConfig(3))
	require.NoError(t, err)
	b, err := New(testConfig(3))
	require.NoError(t, err)

	assert.Equal(t, a.ID(), b.ID())
	assert.Equal(t, a.RunID(1), b.RunID(1))
	assert.NotEqual(t, a.RunID(0), a.RunID(1))
	assert.Equal(t, int64(102), a.RunSeed(2))

	other := testConfig(3)
	other.Run.Seed = 7
	c, err := New(other)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), c.ID())
}

func TestCampaign_SequentialRuns(t *testing.T) {
	// GIVEN a two-run campaign writing a report
	var buf strings.Builder
	c, err := New(testConfig(2), WithReport(stats.NewReport(&buf)))
	require.NoError(t, err)

	// WHEN it runs
	out, err := c.Run(context.Background())
	require.NoError(t, err)

	// THEN each run collected every cycle under its own id
	require.Len(t, out, 2)
	for i, o := range out {
		assert.Equal(t, i, o.RunNum)
		assert.Equal(t, c.RunID(i), o.RunID)
		assert.Len(t, o.Rows, 5)
		assert.Equal(t, 5, o.Summary.Cycles)
		assert.Positive(t, o.Counters.Fired)
		assert.Nil(t, o.Trace)
	}

	// AND the report has one header and one block per run, in run order
	report := buf.String()
	assert.Equal(t, 1, strings.Count(report, "## campaignId = "))
	assert.Equal(t, 2, strings.Count(report, "#pos runNum="))
	assert.Less(t, strings.Index(report, "#pos runNum=0"), strings.Index(report, "#pos runNum=1"))
}

func TestCampaign_SameSeedSameOutcome(t *testing.T) {
	run := func() []Outcome {
		c, err := New(testConfig(2))
		require.NoError(t, err)
		out, err := c.Run(context.Background())
		require.NoError(t, err)
		return withoutTiming(out)
	}
	assert.Equal(t, run(), run())
}

func TestCampaign_ParallelMatchesSequential(t *testing.T) {
	seq, err := New(testConfig(4))
	require.NoError(t, err)
	want, err := seq.Run(context.Background())
	require.NoError(t, err)

	cfg := testConfig(4)
	cfg.Parallel = 3
	par, err := New(cfg)
	require.NoError(t, err)
	got, err := par.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, withoutTiming(want), withoutTiming(got))
}

func TestCampaign_PauseAndResumeKeepsResults(t *testing.T) {
	plain, err := New(testConfig(1))
	require.NoError(t, err)
	want, err := plain.Run(context.Background())
	require.NoError(t, err)

	cfg := testConfig(1)
	cfg.PauseAt = 30
	paused, err := New(cfg)
	require.NoError(t, err)
	got, err := paused.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.True(t, got[0].Paused)
	assert.Equal(t, want[0].Rows, got[0].Rows)
	assert.Equal(t, want[0].Counters, got[0].Counters)
}

func TestCampaign_TraceSummary(t *testing.T) {
	cfg := testConfig(1)
	cfg.Trace = trace.TraceConfig{Level: trace.TraceLevelEvents}
	c, err := New(cfg)
	require.NoError(t, err)

	out, err := c.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, out[0].Trace)
	assert.Equal(t, int(out[0].Counters.Fired), out[0].Trace.TotalEvents)
	assert.Equal(t, 5, out[0].Trace.KindDistribution["endOfCycle"])
}

func TestCampaign_StoreAndMetricsDir(t *testing.T) {
	// GIVEN a campaign persisting to SQLite and dumping metrics
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "stats.db"))
	require.NoError(t, err)
	defer db.Close()
	metricsDir := filepath.Join(dir, "metrics")

	cfg := testConfig(2)
	cfg.Parallel = 2
	c, err := New(cfg, WithStore(db), WithMetricsDir(metricsDir))
	require.NoError(t, err)

	// WHEN it runs
	_, err = c.Run(context.Background())
	require.NoError(t, err)

	// THEN both runs and all their cycles are in the database
	ctx := context.Background()
	runs, err := db.Runs(ctx, c.ID())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for i, r := range runs {
		assert.Equal(t, c.RunID(i), r.ID)
		cycles, done, err := db.CycleCount(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, 5, cycles)

		series, err := db.Series(ctx, r.ID, stats.ColScheduleCollisions)
		require.NoError(t, err)
		assert.Len(t, series, 5)
	}

	// AND one metrics dump per run
	for _, name := range []string{"run-0.prom", "run-1.prom"} {
		data, err := os.ReadFile(filepath.Join(metricsDir, name))
		require.NoError(t, err)
		assert.Contains(t, string(data), "tsch_cycles_collected_total 5")
	}
}

func TestCampaign_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := New(testConfig(2))
	require.NoError(t, err)
	_, err = c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
