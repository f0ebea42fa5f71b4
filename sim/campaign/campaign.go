// Package campaign executes a batch of independent runs. Every run owns its
// engine, topology, motes, RNG and metrics registry; runs only share the
// report writer and the statistics store.
package campaign

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tsch-sim/tsch-sim/sim"
	"github.com/tsch-sim/tsch-sim/sim/mote"
	"github.com/tsch-sim/tsch-sim/sim/stats"
	"github.com/tsch-sim/tsch-sim/sim/store"
	"github.com/tsch-sim/tsch-sim/sim/telemetry"
	"github.com/tsch-sim/tsch-sim/sim/topology"
	"github.com/tsch-sim/tsch-sim/sim/trace"
)

// campaignNamespace roots the deterministic campaign ids.
var campaignNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tsch-sim/campaign"))

// Config is the full description of a campaign.
type Config struct {
	Run      sim.RunConfig
	Topology topology.Config
	Mote     mote.Config
	Trace    trace.TraceConfig
	Runs     int
	Parallel int     // concurrent runs; values below 2 run sequentially
	PauseAt  sim.ASN // when > 0, every run pauses once at this slot and resumes
	Label    string
}

// Outcome is the result of one run.
type Outcome struct {
	RunNum   int
	RunID    string
	Seed     int64
	Rows     []stats.Row
	Summary  stats.RunSummary
	Counters sim.EngineCounters
	Trace    *trace.TraceSummary
	Paused   bool
	Elapsed  time.Duration
}

// Campaign runs Config.Runs simulations.
type Campaign struct {
	cfg        Config
	id         uuid.UUID
	report     *stats.Report
	store      *store.Store
	metricsDir string
}

// Option configures a Campaign.
type Option func(*Campaign)

// WithReport writes every run block to r.
func WithReport(r *stats.Report) Option {
	return func(c *Campaign) { c.report = r }
}

// WithStore persists rows and summaries in s.
func WithStore(s *store.Store) Option {
	return func(c *Campaign) { c.store = s }
}

// WithMetricsDir writes one Prometheus text dump per run into dir.
func WithMetricsDir(dir string) Option {
	return func(c *Campaign) { c.metricsDir = dir }
}

// New validates cfg and derives the campaign id from the seed and run count.
func New(cfg Config, opts ...Option) (*Campaign, error) {
	if err := cfg.Run.Validate(); err != nil {
		return nil, err
	}
	if cfg.Runs < 1 {
		return nil, &sim.ConfigurationError{Field: "Runs", Value: cfg.Runs, Reason: "must be at least 1"}
	}
	if !trace.IsValidTraceLevel(string(cfg.Trace.Level)) {
		return nil, &sim.ConfigurationError{Field: "Trace", Value: cfg.Trace.Level, Reason: "unknown trace level"}
	}
	cfg.Topology.NumMotes = cfg.Run.NumMotes
	cfg.Mote.SlotsPerCycle = cfg.Run.SlotsPerCycle
	cfg.Mote.NumChannels = cfg.Run.NumChannels
	if err := cfg.Mote.Validate(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("seed=%d/runs=%d/label=%s", cfg.Run.Seed, cfg.Runs, cfg.Label)
	c := &Campaign{cfg: cfg, id: uuid.NewSHA1(campaignNamespace, []byte(name))}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ID returns the campaign id.
func (c *Campaign) ID() string { return c.id.String() }

// RunID returns the id of run runNum.
func (c *Campaign) RunID(runNum int) string {
	return uuid.NewSHA1(c.id, []byte(strconv.Itoa(runNum))).String()
}

// RunSeed returns the master seed of run runNum.
func (c *Campaign) RunSeed(runNum int) int64 {
	return c.cfg.Run.Seed + int64(runNum)
}

// Settings returns the report header lines of the campaign.
func (c *Campaign) Settings() []stats.Setting {
	return []stats.Setting{
		{Key: "campaignId", Value: c.ID()},
		{Key: "cyclesPerRun", Value: c.cfg.Run.CyclesPerRun},
		{Key: "housekeepingCycles", Value: c.cfg.Mote.HousekeepingCycles},
		{Key: "initialTxCells", Value: c.cfg.Mote.InitialTxCells},
		{Key: "minRssi", Value: c.cfg.Mote.MinRSSI},
		{Key: "numChans", Value: c.cfg.Run.NumChannels},
		{Key: "numMotes", Value: c.cfg.Run.NumMotes},
		{Key: "numRuns", Value: c.cfg.Runs},
		{Key: "relocationProbability", Value: c.cfg.Mote.RelocationProbability},
		{Key: "seed", Value: c.cfg.Run.Seed},
		{Key: "slotDuration", Value: c.cfg.Run.SlotDuration},
		{Key: "slotframeLength", Value: c.cfg.Run.SlotsPerCycle},
		{Key: "squareSide", Value: c.cfg.Topology.SquareSideKm},
	}
}

// Run executes every run and returns the outcomes ordered by run number.
// The first failing run cancels the runs not yet finished.
func (c *Campaign) Run(ctx context.Context) ([]Outcome, error) {
	if c.report != nil {
		if err := c.report.WriteHeader(c.Settings()); err != nil {
			return nil, fmt.Errorf("write report header: %w", err)
		}
	}
	if c.store != nil {
		err := c.store.WriteCampaign(ctx, store.Campaign{ID: c.ID(), Seed: c.cfg.Run.Seed, Runs: c.cfg.Runs, Label: c.cfg.Label})
		if err != nil {
			return nil, err
		}
	}
	logrus.Infof("Campaign %s: %d runs, %d in parallel", c.ID(), c.cfg.Runs, max(c.cfg.Parallel, 1))

	if c.cfg.Parallel < 2 {
		return c.runSequential(ctx)
	}
	return c.runParallel(ctx)
}

func (c *Campaign) runSequential(ctx context.Context) ([]Outcome, error) {
	out := make([]Outcome, 0, c.cfg.Runs)
	for i := 0; i < c.cfg.Runs; i++ {
		o, err := c.RunOne(ctx, i)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *Campaign) runParallel(ctx context.Context) ([]Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]Outcome, c.cfg.Runs)
	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for w := 0; w < c.cfg.Parallel; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for runNum := range jobs {
				o, err := c.RunOne(ctx, runNum)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					mu.Unlock()
					continue
				}
				out[runNum] = o
			}
		}()
	}

feed:
	for i := 0; i < c.cfg.Runs; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RunOne builds and executes run runNum on the calling goroutine.
func (c *Campaign) RunOne(ctx context.Context, runNum int) (Outcome, error) {
	started := time.Now()
	runCfg := c.cfg.Run
	runCfg.Seed = c.RunSeed(runNum)
	runID := c.RunID(runNum)

	engine, err := sim.NewEngine(runCfg)
	if err != nil {
		return Outcome{}, err
	}
	defer engine.Close()

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(runCfg.Seed))
	topo, err := topology.Build(c.cfg.Topology, rng.ForSubsystem(sim.SubsystemTopology))
	if err != nil {
		return Outcome{}, fmt.Errorf("run %d: %w", runNum, err)
	}
	net, err := mote.NewNetwork(engine, topo, rng, c.cfg.Mote)
	if err != nil {
		return Outcome{}, fmt.Errorf("run %d: %w", runNum, err)
	}

	metrics, err := telemetry.NewRunCollector(prometheus.NewRegistry())
	if err != nil {
		return Outcome{}, fmt.Errorf("run %d: %w", runNum, err)
	}
	tr := trace.NewSimulationTrace(c.cfg.Trace)
	observers := sim.Observers{metrics}
	if tr.Enabled() {
		observers = append(observers, tr)
	}
	engine.SetObserver(observers)

	opts := []stats.Option{stats.WithRunID(runID), stats.WithTopology(topo), stats.WithSink(metrics)}
	if c.report != nil {
		opts = append(opts, stats.WithReport(c.report))
	}
	if c.store != nil {
		if err := c.store.WriteRun(ctx, store.Run{ID: runID, CampaignID: c.ID(), RunNum: runNum, Seed: runCfg.Seed}); err != nil {
			return Outcome{}, err
		}
		opts = append(opts, stats.WithSink(c.store.Sink(ctx, runID)))
	}
	collector, err := stats.NewCollector(engine, runNum, stats.Sources(net), opts...)
	if err != nil {
		return Outcome{}, fmt.Errorf("run %d: %w", runNum, err)
	}

	paused := false
	if c.cfg.PauseAt > 0 {
		if err := engine.PauseAt(c.cfg.PauseAt); err != nil {
			return Outcome{}, fmt.Errorf("run %d: %w", runNum, err)
		}
	}
	for {
		res, err := engine.Run(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("run %d: %w", runNum, err)
		}
		if res.Finished {
			break
		}
		if res.Paused {
			paused = true
			logrus.Infof("[slot %07d] run %d paused: %d events pending, %d cycles collected",
				res.Slot, runNum, engine.Pending(), len(collector.Rows()))
		}
	}

	if c.metricsDir != "" {
		if err := writeMetrics(c.metricsDir, runNum, metrics.Gatherer()); err != nil {
			return Outcome{}, err
		}
	}

	summary, _ := collector.Summary()
	o := Outcome{
		RunNum:   runNum,
		RunID:    runID,
		Seed:     runCfg.Seed,
		Rows:     collector.Rows(),
		Summary:  summary,
		Counters: engine.Counters(),
		Paused:   paused,
		Elapsed:  time.Since(started),
	}
	if tr.Enabled() {
		o.Trace = trace.Summarize(tr)
	}
	logrus.Infof("Run %d finished: %d events fired, %d replaced, %d cycles in %v",
		runNum, o.Counters.Fired, o.Counters.Replaced, len(o.Rows), o.Elapsed)
	return o, nil
}

func writeMetrics(dir string, runNum int, g prometheus.Gatherer) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%d.prom", runNum))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := telemetry.WriteText(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
