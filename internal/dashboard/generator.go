// Package dashboard runs every registered candidate against the reference
// engine and renders the migration status report.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"parity/internal/compare"
	"parity/internal/core"
	"parity/internal/engine"
	"parity/internal/log"
	"parity/internal/runner"
)

// Publisher receives the summary of every completed run.
type Publisher interface {
	PublishRun(ctx context.Context, run core.RunSummary) error
}

// History persists run summaries and answers how many consecutive clean runs
// a candidate has had.
type History interface {
	SaveRun(ctx context.Context, run core.RunSummary) error
	CleanStreak(ctx context.Context, candidate string, since time.Time) (int, error)
}

// Result is the evaluation of one candidate.
type Result struct {
	Name       string
	Kind       string
	Status     core.CandidateStatus
	Headline   *float64
	Divergence *float64
	Mismatches []compare.Mismatch
	Failure    error
	Duration   time.Duration
	Streak     int
}

// Report is everything the Markdown dashboard shows.
type Report struct {
	RunID          string
	GeneratedAt    time.Time
	Window         Window
	HeadlineMetric string
	Reference      string
	ReferenceValue float64
	Epsilon        float64
	Results        []Result
}

// Generator evaluates a Registry. Zero values for Epsilon, Parallelism and
// Timeout fall back to defaults.
type Generator struct {
	Registry    *Registry
	Epsilon     float64
	Parallelism int
	Timeout     time.Duration
	Dir         string
	Logger      *log.Logger
	History     History
	Publishers  []Publisher
	Now         func() time.Time
}

func (g *Generator) logger() *log.Logger {
	if g.Logger == nil {
		return log.Discard()
	}
	return g.Logger.WithComponent(log.ComponentDashboard)
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Run computes the reference, then every candidate concurrently. A failing
// candidate is recorded in its Result and never stops the others; only a
// reference failure aborts the run.
func (g *Generator) Run(ctx context.Context, ds core.Dataset) (*Report, error) {
	if g.Registry == nil {
		return nil, fmt.Errorf("%w: no registry", ErrInvalidRegistry)
	}
	logger := g.logger()
	reg := g.Registry

	ref, err := engine.Lookup(reg.Reference)
	if err != nil {
		return nil, fmt.Errorf("reference engine: %w", err)
	}
	refOut, err := ref.Compute(ds)
	if err != nil {
		return nil, fmt.Errorf("compute reference %s: %w", ref.Name(), err)
	}
	refDoc, err := json.Marshal(refOut.Normalize())
	if err != nil {
		return nil, fmt.Errorf("encode reference output: %w", err)
	}
	refTree, err := compare.ToTree(refOut)
	if err != nil {
		return nil, fmt.Errorf("reference tree: %w", err)
	}
	refHeadline := gjson.GetBytes(refDoc, reg.HeadlineMetric)
	if !refHeadline.Exists() {
		return nil, fmt.Errorf("headline metric %q not found in reference output", reg.HeadlineMetric)
	}

	report := &Report{
		RunID:          uuid.NewString(),
		GeneratedAt:    g.now().UTC(),
		Window:         reg.Window,
		HeadlineMetric: reg.HeadlineMetric,
		Reference:      ref.Name(),
		ReferenceValue: refHeadline.Float(),
		Epsilon:        compare.New(g.Epsilon).Epsilon,
		Results:        make([]Result, len(reg.Candidates)),
	}

	parallelism := g.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	var eg errgroup.Group
	eg.SetLimit(parallelism)
	for i, spec := range reg.Candidates {
		eg.Go(func() error {
			report.Results[i] = g.evaluate(ctx, spec, ds, refTree, report.ReferenceValue)
			return nil
		})
	}
	_ = eg.Wait()

	for _, r := range report.Results {
		fields := log.NewFields().WithCandidate(r.Name).WithDuration(r.Duration).WithError(r.Failure)
		fields[log.FieldStatus] = string(r.Status)
		fields[log.FieldMismatches] = len(r.Mismatches)
		if r.Divergence != nil {
			fields[log.FieldDivergence] = *r.Divergence
		}
		if r.Status == core.StatusOK {
			logger.InfoContext(ctx, "candidate evaluated", fields.ToSlice()...)
		} else {
			logger.WarnContext(ctx, "candidate evaluated", fields.ToSlice()...)
		}
	}

	g.record(ctx, report)
	return report, nil
}

func (g *Generator) evaluate(ctx context.Context, spec CandidateSpec, ds core.Dataset, refTree any, refHeadline float64) Result {
	started := time.Now()
	res := Result{Name: spec.Name, Kind: spec.Kind()}

	doc, err := g.candidateDocument(ctx, spec, ds)
	res.Duration = time.Since(started)
	if err != nil {
		res.Status = core.StatusFailed
		res.Failure = err
		return res
	}

	var tree any
	if err := json.Unmarshal(doc, &tree); err != nil {
		res.Status = core.StatusFailed
		res.Failure = fmt.Errorf("%s: decode output: %w", spec.Name, err)
		return res
	}
	res.Mismatches = compare.New(g.Epsilon).Diff(tree, refTree, compare.Root)

	if h := gjson.GetBytes(doc, g.Registry.HeadlineMetric); h.Exists() && h.Type == gjson.Number {
		value := h.Float()
		divergence := Divergence(value, refHeadline)
		res.Headline = &value
		res.Divergence = &divergence
	}

	res.Status = core.StatusOK
	if len(res.Mismatches) > 0 {
		res.Status = core.StatusDiverged
	}
	if res.Status == core.StatusOK {
		res.Streak = 1
	}
	return res
}

func (g *Generator) candidateDocument(ctx context.Context, spec CandidateSpec, ds core.Dataset) ([]byte, error) {
	if spec.Kind() == "engine" {
		e, err := engine.Lookup(spec.Engine)
		if err != nil {
			return nil, err
		}
		out, err := e.Compute(ds)
		if err != nil {
			return nil, fmt.Errorf("%s: compute: %w", spec.Name, err)
		}
		return json.Marshal(out.Normalize())
	}

	r, err := runner.New(spec.Name, spec.Command, spec.Timeout)
	if err != nil {
		return nil, err
	}
	if r.Timeout <= 0 {
		r.Timeout = g.Timeout
	}
	r.Dir = spec.Dir
	if r.Dir == "" {
		r.Dir = g.Dir
	}
	r.Env = spec.Env
	r.Logger = g.Logger
	return r.Run(ctx, ds)
}

// record saves the run, refreshes streaks from history and notifies
// publishers. Failures here are logged and never fail the run.
func (g *Generator) record(ctx context.Context, report *Report) {
	logger := g.logger()
	summary := report.Summary()

	if g.History != nil {
		if err := g.History.SaveRun(ctx, summary); err != nil {
			logger.ErrorContext(ctx, "failed to save run history", log.FieldRunID, report.RunID,
				log.FieldOperation, log.OpRecord, log.FieldError, err.Error())
		} else {
			since := g.Registry.WindowStart()
			for i := range report.Results {
				streak, err := g.History.CleanStreak(ctx, report.Results[i].Name, since)
				if err != nil {
					logger.WarnContext(ctx, "failed to read clean streak",
						log.FieldCandidate, report.Results[i].Name, log.FieldError, err.Error())
					continue
				}
				report.Results[i].Streak = streak
			}
		}
	}

	for _, p := range g.Publishers {
		if err := p.PublishRun(ctx, summary); err != nil {
			logger.ErrorContext(ctx, "failed to publish run", log.FieldRunID, report.RunID,
				log.FieldOperation, log.OpPublish, log.FieldError, err.Error())
		}
	}
}

// Divergence is candidate minus reference, rounded to six decimals.
func Divergence(candidate, reference float64) float64 {
	return math.Round((candidate-reference)*1e6) / 1e6
}

// Summary converts the report into the persisted and published form.
func (r *Report) Summary() core.RunSummary {
	summary := core.RunSummary{
		ID:              r.RunID,
		GeneratedAt:     r.GeneratedAt,
		ReferenceEngine: r.Reference,
		HeadlineMetric:  r.HeadlineMetric,
		ReferenceValue:  r.ReferenceValue,
		Candidates:      make([]core.CandidateSummary, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		c := core.CandidateSummary{
			Name:          res.Name,
			Status:        res.Status,
			MismatchCount: len(res.Mismatches),
		}
		if res.Headline != nil {
			c.HeadlineValue = *res.Headline
		}
		if res.Divergence != nil {
			c.Divergence = *res.Divergence
		}
		if res.Failure != nil {
			c.Failure = res.Failure.Error()
		}
		summary.Candidates = append(summary.Candidates, c)
	}
	return summary
}

// Failed reports whether any candidate could not be executed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status == core.StatusFailed {
			return true
		}
	}
	return false
}

// FailureError combines every candidate execution failure, or returns nil.
func (r *Report) FailureError() error {
	var err error
	for _, res := range r.Results {
		if res.Failure != nil {
			err = multierr.Append(err, fmt.Errorf("candidate %s: %w", res.Name, res.Failure))
		}
	}
	return err
}
