package topology

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsch-sim/tsch-sim/sim"
)

func testConfig(n int) Config {
	cfg := DefaultConfig()
	cfg.NumMotes = n
	return cfg
}

func TestFreeSpaceRSSI_KnownDistance(t *testing.T) {
	// 100 m at 2.4 GHz loses about 80 dB
	got := FreeSpaceRSSI(0.1, 2.4, 0)
	assert.InDelta(t, -80.05, got, 0.05)

	// doubling the distance costs 6 dB
	assert.InDelta(t, got-6.02, FreeSpaceRSSI(0.2, 2.4, 0), 0.01)
	assert.Equal(t, 3.0, FreeSpaceRSSI(0, 2.4, 3))
}

func TestPisterHackRSSI_Bounds(t *testing.T) {
	assert.Equal(t, -70.0, PisterHackRSSI(-70, 0))
	assert.Equal(t, -90.0, PisterHackRSSI(-70, 0.5))
	assert.InDelta(t, -110.0, PisterHackRSSI(-70, 0.999999), 0.001)
}

func TestRSSIToPDR_TableAndInterpolation(t *testing.T) {
	tests := []struct {
		rssi float64
		want float64
	}{
		{-120, 0},
		{-97, 0},
		{-96, 0.1494},
		{-96.5, 0.0747},
		{-93, 0.6359},
		{-79.5, 0.99515},
		{-79, 1},
		{-30, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, RSSIToPDR(tt.rssi), 1e-9, "rssi=%v", tt.rssi)
	}
}

func TestRSSIToPDR_Monotonic(t *testing.T) {
	prev := -1.0
	for rssi := -100.0; rssi <= -75; rssi += 0.25 {
		pdr := RSSIToPDR(rssi)
		assert.GreaterOrEqual(t, pdr, prev, "rssi=%v", rssi)
		prev = pdr
	}
}

func TestBuild_RootAtCenterAndEveryMoteRouted(t *testing.T) {
	// GIVEN the reference deployment of 20 motes
	cfg := testConfig(20)

	// WHEN building it
	topo, err := Build(cfg, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	// THEN the root sits at the center and is its own parent
	placements := topo.Placements()
	require.Len(t, placements, 20)
	root := placements[0]
	assert.Equal(t, RootID, root.ID)
	assert.Equal(t, Position{1, 1}, root.Pos)
	assert.Equal(t, 0, root.Rank)
	assert.Equal(t, RootID, root.Parent)

	// AND every other mote is inside the square with a parent one hop closer
	for _, p := range placements[1:] {
		assert.GreaterOrEqual(t, p.Pos.X, 0.0)
		assert.Less(t, p.Pos.X, cfg.SquareSideKm)
		assert.GreaterOrEqual(t, p.Pos.Y, 0.0)
		assert.Less(t, p.Pos.Y, cfg.SquareSideKm)
		assert.GreaterOrEqual(t, p.Rank, 1)

		parent, ok := topo.Placement(p.Parent)
		require.True(t, ok)
		assert.Equal(t, p.Rank-1, parent.Rank, "mote %d", p.ID)

		pdr, ok := topo.PDR(p.ID, p.Parent)
		require.True(t, ok, "mote %d has no link to parent %d", p.ID, p.Parent)
		assert.Greater(t, pdr, 0.0)
	}
}

func TestBuild_EveryMoteHasAStableNeighbor(t *testing.T) {
	cfg := testConfig(15)
	topo, err := Build(cfg, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	for _, p := range topo.Placements()[1:] {
		best := -1000.0
		for _, o := range topo.Placements() {
			if rssi, ok := topo.RSSI(p.ID, o.ID); ok && rssi > best {
				best = rssi
			}
		}
		assert.GreaterOrEqual(t, best, cfg.StableRSSI, "mote %d", p.ID)
	}
}

func TestBuild_SymmetricLinksAboveFloor(t *testing.T) {
	cfg := testConfig(12)
	topo, err := Build(cfg, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	links := topo.Links()
	require.NotEmpty(t, links)
	for i, l := range links {
		assert.Less(t, l.A, l.B)
		assert.GreaterOrEqual(t, l.RSSI, cfg.SensitivityFloor)
		assert.Equal(t, RSSIToPDR(l.RSSI), l.PDR)

		ab, ok := topo.RSSI(l.A, l.B)
		require.True(t, ok)
		ba, ok := topo.RSSI(l.B, l.A)
		require.True(t, ok)
		assert.Equal(t, ab, ba)

		if i > 0 {
			prev := links[i-1]
			assert.True(t, prev.A < l.A || (prev.A == l.A && prev.B < l.B))
		}
	}

	_, ok := topo.RSSI(1, 1)
	assert.False(t, ok, "a mote has no link to itself")
	_, ok = topo.PDR(0, 999)
	assert.False(t, ok)
}

func TestBuild_SameSeedSameTopology(t *testing.T) {
	cfg := testConfig(10)
	a, err := Build(cfg, rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	b, err := Build(cfg, rand.New(rand.NewSource(99)))
	require.NoError(t, err)

	assert.Equal(t, a.Placements(), b.Placements())
	assert.Equal(t, a.Links(), b.Links())
}

func TestBuild_SingleMote(t *testing.T) {
	topo, err := Build(testConfig(1), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, topo.Placements(), 1)
	assert.Empty(t, topo.Links())
	assert.Empty(t, topo.Neighbors(RootID))
}

func TestBuild_InvalidConfig(t *testing.T) {
	_, err := Build(testConfig(0), rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, sim.ErrInvalidConfig))

	cfg := testConfig(3)
	cfg.SquareSideKm = 0
	_, err = Build(cfg, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, sim.ErrInvalidConfig))
}

func TestBuild_UnreachableStableThreshold(t *testing.T) {
	// GIVEN a stable threshold no link can reach
	cfg := testConfig(2)
	cfg.StableRSSI = 100
	cfg.MaxAttempts = 10

	_, err := Build(cfg, rand.New(rand.NewSource(1)))

	// THEN placement gives up
	assert.True(t, errors.Is(err, ErrPlacement))
}

func TestNeighbors_OnlyPositivePDR(t *testing.T) {
	topo, err := Build(testConfig(10), rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	for _, p := range topo.Placements() {
		for _, n := range topo.Neighbors(p.ID) {
			assert.NotEqual(t, p.ID, n)
			pdr, ok := topo.PDR(p.ID, n)
			require.True(t, ok)
			assert.Greater(t, pdr, 0.0)
		}
	}
}
