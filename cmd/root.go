package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tsch-sim/tsch-sim/sim/campaign"
	"github.com/tsch-sim/tsch-sim/sim/stats"
	"github.com/tsch-sim/tsch-sim/sim/store"
)

var (
	// CLI flags for the run
	configPath    string  // Campaign settings YAML file
	logLevel      string  // Log verbosity level
	seed          int64   // Master seed of run 0
	slotsPerCycle int     // Slotframe length
	cyclesPerRun  int     // Cycles per run
	numMotes      int     // Motes including the root
	numChannels   int     // Channel offsets
	numRuns       int     // Runs in the campaign
	parallel      int     // Concurrent runs
	pauseAt       int64   // Slot at which every run pauses once
	label         string  // Free-form campaign label
	traceLevel    string  // Event trace level
	housekeeping  int     // Housekeeping period in cycles
	relocation    float64 // Relocation probability per TX cell
	initialCells  int     // TX cells per mote towards its parent

	// Outputs
	outputPath string // Report file, "-" for stdout
	dbPath     string // SQLite statistics database
	metricsDir string // Directory for per-run Prometheus dumps
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "tsch-sim",
	Short: "Discrete-event simulator for TSCH mesh networks",
}

// runCmd executes a campaign using the settings file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation campaign",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		settings := DefaultSettings()
		if configPath != "" {
			settings, err = LoadSettings(configPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		applyFlags(cmd.Flags(), &settings)

		outcomes, err := runCampaign(cmd.Context(), settings, outputPath, dbPath, metricsDir)
		if err != nil {
			logrus.Fatalf("Campaign failed: %v", err)
		}
		printOutcomes(os.Stdout, outcomes)
		logrus.Info("Simulation complete.")
	},
}

// applyFlags overrides settings with every flag set on the command line.
func applyFlags(flags *pflag.FlagSet, s *Settings) {
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("seed", func() { s.Seed = seed })
	set("slots-per-cycle", func() { s.SlotsPerCycle = slotsPerCycle })
	set("cycles", func() { s.CyclesPerRun = cyclesPerRun })
	set("motes", func() { s.NumMotes = numMotes })
	set("channels", func() { s.NumChannels = numChannels })
	set("runs", func() { s.Runs = numRuns })
	set("parallel", func() { s.Parallel = parallel })
	set("pause-at", func() { s.PauseAt = pauseAt })
	set("label", func() { s.Label = label })
	set("trace", func() { s.Trace = traceLevel })
	set("housekeeping-cycles", func() { s.Mote.HousekeepingCycles = housekeeping })
	set("relocation-probability", func() { s.Mote.RelocationProbability = relocation })
	set("initial-tx-cells", func() { s.Mote.InitialTxCells = initialCells })
}

// runCampaign opens the requested outputs and runs the campaign described by s.
func runCampaign(ctx context.Context, s Settings, output, db, metrics string) ([]campaign.Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var opts []campaign.Option

	if output != "" {
		w := io.Writer(os.Stdout)
		if output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return nil, fmt.Errorf("create report: %w", err)
			}
			defer f.Close()
			w = f
		}
		opts = append(opts, campaign.WithReport(stats.NewReport(w)))
	}
	if db != "" {
		st, err := store.Open(db)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		opts = append(opts, campaign.WithStore(st))
	}
	if metrics != "" {
		opts = append(opts, campaign.WithMetricsDir(metrics))
	}

	c, err := campaign.New(s.CampaignConfig(), opts...)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Starting campaign %s: %d motes, %d slots x %d cycles, seed=%d",
		c.ID(), s.NumMotes, s.SlotsPerCycle, s.CyclesPerRun, s.Seed)
	return c.Run(ctx)
}

// printOutcomes writes one summary block per run.
func printOutcomes(w io.Writer, outcomes []campaign.Outcome) {
	fmt.Fprintln(w, "=== Campaign Summary ===")
	for _, o := range outcomes {
		fmt.Fprintf(w, "run %d (%s) seed=%d cycles=%d fired=%d replaced=%d elapsed=%v\n",
			o.RunNum, o.RunID, o.Seed, o.Summary.Cycles, o.Counters.Fired, o.Counters.Replaced, o.Elapsed)
		for _, col := range o.Summary.Columns {
			fmt.Fprintf(w, "  %-24s mean=%.3f std=%.3f\n", col.Name, col.Mean, col.Std)
		}
		if o.Trace != nil {
			fmt.Fprintf(w, "  trace: %d events, %d dropped\n", o.Trace.TotalEvents, o.Trace.Dropped)
		}
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	def := DefaultSettings()

	runCmd.Flags().StringVar(&configPath, "config", "", "Campaign settings YAML file; flags override its values")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().Int64Var(&seed, "seed", def.Seed, "Master seed; run N uses seed+N")

	// Run shape
	runCmd.Flags().IntVar(&slotsPerCycle, "slots-per-cycle", def.SlotsPerCycle, "Slots per slotframe")
	runCmd.Flags().IntVar(&cyclesPerRun, "cycles", def.CyclesPerRun, "Cycles per run")
	runCmd.Flags().IntVar(&numMotes, "motes", def.NumMotes, "Number of motes, including the root")
	runCmd.Flags().IntVar(&numChannels, "channels", def.NumChannels, "Number of channel offsets")
	runCmd.Flags().Int64Var(&pauseAt, "pause-at", 0, "Pause every run once at this slot (0 disables)")

	// Campaign
	runCmd.Flags().IntVar(&numRuns, "runs", def.Runs, "Number of runs")
	runCmd.Flags().IntVar(&parallel, "parallel", def.Parallel, "Number of runs executed concurrently")
	runCmd.Flags().StringVar(&label, "label", "", "Campaign label, part of the campaign id")
	runCmd.Flags().StringVar(&traceLevel, "trace", def.Trace, "Event trace level (none, events, tagged)")

	// Mote behaviour
	runCmd.Flags().IntVar(&housekeeping, "housekeeping-cycles", def.Mote.HousekeepingCycles, "Housekeeping period in cycles (0 disables)")
	runCmd.Flags().Float64Var(&relocation, "relocation-probability", def.Mote.RelocationProbability, "Chance a housekeeping pass relocates a TX cell")
	runCmd.Flags().IntVar(&initialCells, "initial-tx-cells", def.Mote.InitialTxCells, "TX cells each mote allocates towards its parent")

	// Outputs
	runCmd.Flags().StringVar(&outputPath, "output", "output.dat", "Report file (\"-\" for stdout, empty to disable)")
	runCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database for per-cycle statistics")
	runCmd.Flags().StringVar(&metricsDir, "metrics", "", "Directory for per-run Prometheus text dumps")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
