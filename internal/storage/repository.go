package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"parity/internal/core"
	"parity/internal/log"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that text ordering equals time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveRun stores the run and its candidate results in one transaction.
func (r *SQLiteRepository) SaveRun(ctx context.Context, run core.RunSummary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.CreateRun(ctx, Run{
		ID:              run.ID,
		GeneratedAt:     run.GeneratedAt.UTC().Format(timeLayout),
		ReferenceEngine: run.ReferenceEngine,
		HeadlineMetric:  run.HeadlineMetric,
		ReferenceValue:  run.ReferenceValue,
	}); err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}

	for i, c := range run.Candidates {
		if err := q.CreateCandidateResult(ctx, CandidateResult{
			RunID:         run.ID,
			Position:      int64(i),
			Candidate:     c.Name,
			Status:        string(c.Status),
			HeadlineValue: c.HeadlineValue,
			Divergence:    c.Divergence,
			MismatchCount: int64(c.MismatchCount),
			Failure:       c.Failure,
		}); err != nil {
			return fmt.Errorf("create result %s for run %s: %w", c.Name, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}

	r.logger.DebugContext(ctx, "Run saved to SQLite",
		log.FieldRunID, run.ID,
		"candidates", len(run.Candidates))
	return nil
}

// CleanStreak counts the most recent consecutive runs since the given time in
// which candidate matched the reference.
func (r *SQLiteRepository) CleanStreak(ctx context.Context, candidate string, since time.Time) (int, error) {
	statuses, err := r.queries.ListRecentStatuses(ctx, candidate, since.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("list statuses for %s: %w", candidate, err)
	}
	streak := 0
	for _, s := range statuses {
		if core.CandidateStatus(s) != core.StatusOK {
			break
		}
		streak++
	}
	return streak, nil
}

// ListRuns returns up to limit runs, most recent first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error) {
	runs, err := r.queries.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	summaries := make([]core.RunSummary, 0, len(runs))
	for _, run := range runs {
		generatedAt, err := time.Parse(timeLayout, run.GeneratedAt)
		if err != nil {
			return nil, fmt.Errorf("parse generated_at of run %s: %w", run.ID, err)
		}
		results, err := r.queries.ListCandidateResults(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("list results of run %s: %w", run.ID, err)
		}

		summary := core.RunSummary{
			ID:              run.ID,
			GeneratedAt:     generatedAt,
			ReferenceEngine: run.ReferenceEngine,
			HeadlineMetric:  run.HeadlineMetric,
			ReferenceValue:  run.ReferenceValue,
			Candidates:      make([]core.CandidateSummary, 0, len(results)),
		}
		for _, res := range results {
			summary.Candidates = append(summary.Candidates, core.CandidateSummary{
				Name:          res.Candidate,
				Status:        core.CandidateStatus(res.Status),
				HeadlineValue: res.HeadlineValue,
				Divergence:    res.Divergence,
				MismatchCount: int(res.MismatchCount),
				Failure:       res.Failure,
			})
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
