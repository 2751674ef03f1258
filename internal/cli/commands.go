package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"parity/internal/compare"
	"parity/internal/config"
	"parity/internal/dashboard"
	"parity/internal/engine"
	"parity/internal/fixture"
	"parity/internal/log"
	"parity/internal/metrics"
	"parity/internal/sheets"
)

// Exit codes returned by Main.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

var (
	// ErrUsage marks bad invocations: unknown subcommand, flags or settings.
	ErrUsage = errors.New("usage error")
	// ErrSnapshotMismatch is returned by compare-snapshot when outputs differ.
	ErrSnapshotMismatch = errors.New("snapshot mismatch")
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error
}

var commands = []command{
	{"generate-snapshot", "compute the reference output of the fixture and store it as the snapshot", GenerateSnapshot},
	{"compare-snapshot", "recompute the reference output and diff it against the stored snapshot", CompareSnapshot},
	{"diff-dashboard", "run every registered candidate and write the migration dashboard", DiffDashboard},
	{"history", "list the most recent recorded dashboard runs", History},
	{"list-engines", "print the in-process engine names", ListEngines},
}

// Main dispatches args[0] to a subcommand and returns the process exit code.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return ExitUsage
		}
		return ExitOK
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return ExitUsage
	}

	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := LoadAndValidateConfig(fs, args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		fmt.Fprintf(stderr, "%s: %v\n", cmd.name, err)
		return ExitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "%s: unexpected arguments %v\n", cmd.name, fs.Args())
		return ExitUsage
	}

	logger := SetupLogger(cfg, stderr)
	logger.DebugContext(ctx, "configuration loaded", log.FieldOperation, log.OpStartup, log.FieldCommand, cmd.name)
	ctx = log.NewContext(ctx, logger)
	if err := cmd.run(ctx, cfg, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", cmd.name, err)
		if errors.Is(err, ErrUsage) {
			return ExitUsage
		}
		return ExitFailure
	}
	return ExitOK
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: parity <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-18s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags override PARITY_* environment variables; run <command> -h for the list.")
}

// GenerateSnapshot writes the reference output of the fixture to the snapshot path.
func GenerateSnapshot(ctx context.Context, cfg *config.Config, stdout, _ io.Writer) error {
	logger := log.FromContext(ctx)
	ref, err := engine.Lookup(cfg.ReferenceEngine)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	ds, err := fixture.LoadDataset(cfg.FixturePath)
	if err != nil {
		return err
	}
	out, err := ref.Compute(ds)
	if err != nil {
		return fmt.Errorf("compute %s: %w", ref.Name(), err)
	}
	if err := fixture.WriteSnapshot(cfg.SnapshotPath, out); err != nil {
		return err
	}

	logger.InfoContext(ctx, "snapshot written",
		log.FieldOperation, log.OpGenerate,
		log.FieldEngine, ref.Name(),
		log.FieldPath, cfg.SnapshotPath,
		log.FieldStores, len(out.StoreGrossProfit),
		log.FieldDays, len(out.DailyTrend))
	fmt.Fprintln(stdout, "snapshot generated")
	return nil
}

// CompareSnapshot recomputes the reference output and reports every path that
// differs from the stored snapshot.
func CompareSnapshot(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger := log.FromContext(ctx)
	ref, err := engine.Lookup(cfg.ReferenceEngine)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	ds, err := fixture.LoadDataset(cfg.FixturePath)
	if err != nil {
		return err
	}
	expected, err := fixture.LoadTree(cfg.SnapshotPath)
	if err != nil {
		return err
	}
	out, err := ref.Compute(ds)
	if err != nil {
		return fmt.Errorf("compute %s: %w", ref.Name(), err)
	}
	actual, err := compare.ToTree(out.Normalize())
	if err != nil {
		return err
	}

	mismatches := compare.New(cfg.Epsilon).Diff(actual, expected, compare.Root)
	if len(mismatches) > 0 {
		for _, m := range mismatches {
			fmt.Fprintln(stderr, m.String())
		}
		logger.WarnContext(ctx, "snapshot differs",
			log.FieldOperation, log.OpCompare,
			log.FieldPath, cfg.SnapshotPath,
			log.FieldMismatches, len(mismatches))
		return fmt.Errorf("%w: %d path(s) differ from %s", ErrSnapshotMismatch, len(mismatches), cfg.SnapshotPath)
	}

	fmt.Fprintln(stdout, "snapshot compare passed")
	return nil
}

// DiffDashboard evaluates every candidate and writes the Markdown report. It
// fails only when a candidate could not be executed, after the report exists.
func DiffDashboard(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger := log.FromContext(ctx)
	reg, err := dashboard.LoadRegistry(cfg.CandidatesPath)
	if err != nil {
		return err
	}
	ds, err := fixture.LoadDataset(cfg.FixturePath)
	if err != nil {
		return err
	}

	history, err := InitHistory(cfg, logger)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	if history != nil {
		defer history.Close()
	}
	publishers, dryRun, closePublishers := InitPublishers(ctx, cfg, logger)
	defer closePublishers()

	g := &dashboard.Generator{
		Registry:    reg,
		Epsilon:     cfg.Epsilon,
		Parallelism: cfg.Parallelism,
		Timeout:     cfg.CandidateTimeout,
		Dir:         filepath.Dir(cfg.CandidatesPath),
		Logger:      logger,
		Publishers:  publishers,
	}
	if history != nil {
		g.History = history
	}

	report, err := g.Run(ctx, ds)
	if err != nil {
		return err
	}

	if err := writeDashboard(cfg.DashboardPath, report); err != nil {
		return err
	}

	if dryRun != nil {
		for _, run := range dryRun.Runs() {
			fmt.Fprintf(stderr, "dry run, run %s not published:\n", run.ID)
		}
		if err := writeRows(stderr, dryRun.Rows()); err != nil {
			return err
		}
	}

	if cfg.MetricsTextfile != "" {
		recorder := metrics.NewRecorder()
		recorder.Observe(report.Summary())
		if err := recorder.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.WarnContext(ctx, "metrics textfile not written", log.FieldError, err.Error())
		}
	}

	logger.InfoContext(ctx, "dashboard written",
		log.FieldOperation, log.OpDiff,
		log.FieldRunID, report.RunID,
		log.FieldPath, cfg.DashboardPath)
	fmt.Fprintln(stdout, "dashboard generated")

	if report.Failed() {
		return report.FailureError()
	}
	return nil
}

func writeDashboard(path string, report *dashboard.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write dashboard %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write dashboard %s: %w", path, err)
	}
	if err := dashboard.Render(f, report); err != nil {
		f.Close()
		return fmt.Errorf("write dashboard %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write dashboard %s: %w", path, err)
	}
	return nil
}

// History prints the rows of the most recent runs, newest first, in the
// same column layout the sheet publishers use.
func History(ctx context.Context, cfg *config.Config, stdout, _ io.Writer) error {
	if cfg.HistoryDB == "" {
		return fmt.Errorf("%w: history needs -history-db or PARITY_HISTORY_DB", ErrUsage)
	}
	if _, err := os.Stat(cfg.HistoryDB); err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	repo, err := InitHistory(cfg, log.FromContext(ctx))
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer repo.Close()

	runs, err := repo.ListRuns(ctx, cfg.HistoryLimit)
	if err != nil {
		return err
	}
	rows := [][]any{sheets.Header}
	for _, run := range runs {
		rows = append(rows, sheets.RunRows(run)...)
	}
	return writeRows(stdout, rows)
}

func writeRows(w io.Writer, rows [][]any) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprint(cell)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// ListEngines prints one registered engine name per line.
func ListEngines(_ context.Context, _ *config.Config, stdout, _ io.Writer) error {
	fmt.Fprintln(stdout, strings.Join(engine.Names(), "\n"))
	return nil
}
