package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/talgya/episim/internal/config"
	"github.com/talgya/episim/internal/engine"
	"github.com/talgya/episim/internal/entropy"
	"github.com/talgya/episim/internal/persistence"
	"github.com/talgya/episim/internal/tracker"
)

// targetColumn is the CSV column read as a case curve.
const targetColumn = "cases"

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	seed := resolveSeed(cfg)

	// ── Archive ───────────────────────────────────────────────────────
	db, err := openArchive(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := cfg.BuildSimulation(seed)
	if err != nil {
		return err
	}

	target, err := loadTarget(cfg, db)
	if err != nil {
		return err
	}
	if len(target) > 0 {
		sim.SeedFromCases(target)
		cal, err := sim.Calibrate(target, cfg.Calibration)
		if err != nil {
			return err
		}
		printCalibration(cmd.OutOrStdout(), cal)
	} else {
		sim.ContaminateAtRandom(cfg.InitialInfections)
	}

	if remaining := cfg.Steps - sim.Step; remaining > 0 {
		slog.Info("running", "steps", remaining, "from", sim.Step)
		sim.Run(remaining)
	}

	return finish(cmd, cfg, sim, seed, db)
}

func calibrateSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Epicurve = config.EpicurveConfig{File: args[0]}
	}
	seed := resolveSeed(cfg)

	// ── Archive ───────────────────────────────────────────────────────
	db, err := openArchive(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// ── Target ────────────────────────────────────────────────────────
	target, err := loadTarget(cfg, db)
	if err != nil {
		return err
	}
	if len(target) == 0 {
		return errors.New("calibrate needs a target curve: pass a CSV, --from-run or epicurve in the config")
	}

	// ── Calibration ───────────────────────────────────────────────────
	sim, err := cfg.BuildSimulation(seed)
	if err != nil {
		return err
	}
	sim.SeedFromCases(target)
	cal, err := sim.Calibrate(target, cfg.Calibration)
	if err != nil {
		return err
	}
	printCalibration(cmd.OutOrStdout(), cal)

	return finish(cmd, cfg, sim, seed, db)
}

func writeDefaultConfig(cmd *cobra.Command, args []string) error {
	path := "episim.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	slog.Info("default config written", "path", path)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	db, err := openExistingArchive(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "no archived runs")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-14s %-8s %6s agents %5d steps %8s cases  contacts %.3f\n",
			r.ID,
			humanize.Time(time.Unix(r.Created, 0)),
			r.Model,
			humanize.Comma(int64(r.Population)),
			r.Steps,
			humanize.Comma(int64(r.TotalCases)),
			r.Contacts,
		)
	}
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	db, err := openExistingArchive(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.LoadRun(args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s (%s, seed %d, %s)\n\n", run.ID, run.Model, run.Seed, humanize.Time(time.Unix(run.Created, 0)))
	fmt.Fprint(w, run.Epicurve)

	events, err := db.RecentEvents(run.ID, eventsLimit)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		fmt.Fprintln(w)
	}
	for _, e := range events {
		fmt.Fprintf(w, "step %4d  [%s] %s\n", e.Step, e.Category, e.Description)
	}
	return nil
}

// loadConfig reads --config (or the defaults) and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return config.Config{}, err
		}
		slog.Info("config loaded", "path", configPath)
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seedFlag
	}
	if flags.Changed("steps") {
		cfg.Steps = stepsFlag
	}
	if flags.Changed("out") {
		cfg.Output.CSV = csvPath
	}
	if dbPath != "" {
		cfg.Output.Database = dbPath
	}
	if noArchive {
		cfg.Output.Database = ""
	}
	if targetPath != "" {
		cfg.Epicurve = config.EpicurveConfig{File: targetPath}
	}
	if fromRun != "" {
		cfg.Epicurve = config.EpicurveConfig{FromRun: fromRun}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// resolveSeed returns the configured seed, or draws one from random.org
// (when a key is set) or crypto/rand.
func resolveSeed(cfg config.Config) int64 {
	if cfg.Seed != 0 {
		return cfg.Seed
	}
	client := entropy.NewClient(cfg.RandomOrgKey)
	seed := entropy.SeedFromSource(client)
	slog.Info("seed drawn", "seed", seed, "random_org", client.Enabled())
	return seed
}

func openArchive(cfg config.Config) (*persistence.DB, error) {
	path := cfg.Output.Database
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	slog.Debug("archive opened", "path", path)
	return db, nil
}

// openExistingArchive opens the archive for reading commands, which must not
// create an empty database as a side effect.
func openExistingArchive(cmd *cobra.Command) (*persistence.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path := cfg.Output.Database
	if path == "" {
		return nil, errors.New("no archive configured")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, err)
	}
	return persistence.Open(path)
}

// loadTarget returns the configured case curve, or nil when none is set.
func loadTarget(cfg config.Config, db *persistence.DB) ([]float64, error) {
	e := cfg.Epicurve
	switch {
	case len(e.Target) > 0:
		return append([]float64(nil), e.Target...), nil
	case e.File != "":
		target, err := tracker.ReadCurveFile(e.File, targetColumn)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", e.File, err)
		}
		slog.Info("target loaded", "path", e.File, "steps", len(target))
		return target, nil
	case e.FromRun != "":
		if db == nil {
			return nil, errors.New("from_run needs an archive")
		}
		cases, err := db.RunCases(e.FromRun)
		if err != nil {
			return nil, fmt.Errorf("target run %s: %w", e.FromRun, err)
		}
		if len(cases) == 0 {
			return nil, fmt.Errorf("target run %s: %w", e.FromRun, persistence.ErrRunNotFound)
		}
		target := make([]float64, len(cases))
		for i, c := range cases {
			target[i] = float64(c)
		}
		slog.Info("target loaded", "run", e.FromRun, "steps", len(target))
		return target, nil
	}
	return nil, nil
}

// finish writes the epicurve, prints the report and archives the run.
func finish(cmd *cobra.Command, cfg config.Config, sim *engine.Simulation, seed int64, db *persistence.DB) error {
	if path := cfg.Output.CSV; path != "" {
		if err := os.WriteFile(path, []byte(sim.RenderEpicurveCSV("")), 0644); err != nil {
			return fmt.Errorf("write epicurve: %w", err)
		}
		slog.Info("epicurve written", "path", path, "rows", sim.Curves.Rows())
	}

	printReport(cmd.OutOrStdout(), sim.Report())

	if db != nil {
		doc, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		run := persistence.NewRun(sim, seed, string(doc))
		if err := db.SaveRun(run, sim); err != nil {
			return fmt.Errorf("archive run: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived as %s\n", run.ID)
	}

	if showMetrics {
		logMetrics()
	}
	return nil
}

func printCalibration(w io.Writer, cal engine.Calibration) {
	fmt.Fprintf(w, "calibrated contacts  %.4f\n", cal.Contacts)
	fmt.Fprintf(w, "target cases         %s\n", humanize.Comma(int64(cal.Target+0.5)))
	fmt.Fprintf(w, "simulated cases      %s (%d forced, error %+.1f%%)\n",
		humanize.Comma(int64(cal.Simulated)), cal.Forced, 100*cal.RelativeError())
}

func printReport(w io.Writer, r engine.Report) {
	final := make([]string, len(r.Names))
	for i, name := range r.Names {
		final[i] = fmt.Sprintf("%s=%s", name, humanize.Comma(int64(r.Final[i])))
	}
	fmt.Fprintf(w, "steps                %d\n", r.Steps)
	fmt.Fprintf(w, "population           %s\n", humanize.Comma(int64(r.Population)))
	fmt.Fprintf(w, "final                %s\n", strings.Join(final, " "))
	fmt.Fprintf(w, "total cases          %s (attack rate %.1f%%)\n", humanize.Comma(int64(r.TotalCases)), 100*r.AttackRate)
	if r.PeakStep > 0 {
		fmt.Fprintf(w, "peak                 %s on step %d\n", humanize.Comma(int64(r.PeakCases)), r.PeakStep)
	}
	fmt.Fprintf(w, "cases per step       mean %.2f sd %.2f range [%.0f, %.0f] 7-step peak %.1f\n",
		r.Cases.Mean, r.Cases.StdDev, r.Cases.Min, r.Cases.Max, r.Cases.WeekPeak)
	fmt.Fprintf(w, "reproduction number  %.2f\n", r.R)
	if r.Vaccinated > 0 {
		fmt.Fprintf(w, "vaccinated           %s\n", humanize.Comma(int64(r.Vaccinated)))
	}
}

// logMetrics logs every episim_ collector in the default registry.
func logMetrics() {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		slog.Warn("gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "episim_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			attrs := []any{"name", mf.GetName()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				attrs = append(attrs, "value", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				attrs = append(attrs, "value", m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				attrs = append(attrs, "count", h.GetSampleCount(), "sum", h.GetSampleSum())
			}
			slog.Info("metric", attrs...)
		}
	}
}
