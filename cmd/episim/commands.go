package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath  string
	logLevel    string
	dbPath      string
	seedFlag    int64
	stepsFlag   int
	csvPath     string
	targetPath  string
	fromRun     string
	showMetrics bool
	noArchive   bool
	runsLimit   int
	eventsLimit int

	rootCmd = &cobra.Command{
		Use:   "episim",
		Short: "Agent-based epidemic simulator",
		Long: `episim simulates compartmental epidemics (SIR, SEIR, SEAIR, SEICHAR)
over a population of individual agents, optionally calibrating the contact
rate against an observed case curve.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a simulation and archive its results",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}

	calibrateCmd = &cobra.Command{
		Use:   "calibrate [target.csv]",
		Short: "Fit the contact rate to an observed case curve",
		Long: `calibrate steers the sampler's contact rate so daily new cases follow
the target curve, then reports the fitted rate. The target comes from the
argument, --from-run, or the epicurve section of the config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: calibrateSimulation,
	}

	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeDefaultConfig,
	}

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd = &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print an archived run's epicurve and recent events",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite archive path (overrides output.database)")

	for _, cmd := range []*cobra.Command{runCmd, calibrateCmd} {
		cmd.Flags().Int64Var(&seedFlag, "seed", 0, "Random seed (overrides config; 0 keeps it)")
		cmd.Flags().IntVar(&stepsFlag, "steps", 0, "Steps to simulate (overrides config)")
		cmd.Flags().StringVarP(&csvPath, "out", "o", "", "Epicurve CSV path (overrides output.csv)")
		cmd.Flags().StringVar(&fromRun, "from-run", "", "Use an archived run's cases as the target")
		cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Log collected metrics after the run")
		cmd.Flags().BoolVar(&noArchive, "no-archive", false, "Skip writing the run to the archive")
	}
	runCmd.Flags().StringVar(&targetPath, "target", "", "CSV case curve to calibrate against before running")

	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum runs to list")
	showCmd.Flags().IntVarP(&eventsLimit, "events", "n", 10, "Recent events to print")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(showCmd)
}
