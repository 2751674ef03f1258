package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Run struct {
	ID              string
	GeneratedAt     string
	ReferenceEngine string
	HeadlineMetric  string
	ReferenceValue  float64
}

type CandidateResult struct {
	RunID         string
	Position      int64
	Candidate     string
	Status        string
	HeadlineValue float64
	Divergence    float64
	MismatchCount int64
	Failure       string
}

const createRun = `
INSERT INTO runs (id, generated_at, reference_engine, headline_metric, reference_value)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateRun(ctx context.Context, arg Run) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID, arg.GeneratedAt, arg.ReferenceEngine, arg.HeadlineMetric, arg.ReferenceValue)
	return err
}

const createCandidateResult = `
INSERT INTO candidate_results (run_id, position, candidate, status, headline_value, divergence, mismatch_count, failure)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCandidateResult(ctx context.Context, arg CandidateResult) error {
	_, err := q.db.ExecContext(ctx, createCandidateResult,
		arg.RunID, arg.Position, arg.Candidate, arg.Status,
		arg.HeadlineValue, arg.Divergence, arg.MismatchCount, arg.Failure)
	return err
}

const listRecentStatuses = `
SELECT cr.status
FROM candidate_results cr
JOIN runs r ON r.id = cr.run_id
WHERE cr.candidate = ? AND r.generated_at >= ?
ORDER BY r.generated_at DESC, r.rowid DESC`

func (q *Queries) ListRecentStatuses(ctx context.Context, candidate, since string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listRecentStatuses, candidate, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, err
		}
		items = append(items, status)
	}
	return items, rows.Err()
}

const listRuns = `
SELECT id, generated_at, reference_engine, headline_metric, reference_value
FROM runs
ORDER BY generated_at DESC, rowid DESC
LIMIT ?`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Run
	for rows.Next() {
		var i Run
		if err := rows.Scan(&i.ID, &i.GeneratedAt, &i.ReferenceEngine, &i.HeadlineMetric, &i.ReferenceValue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listCandidateResults = `
SELECT run_id, position, candidate, status, headline_value, divergence, mismatch_count, failure
FROM candidate_results
WHERE run_id = ?
ORDER BY position`

func (q *Queries) ListCandidateResults(ctx context.Context, runID string) ([]CandidateResult, error) {
	rows, err := q.db.QueryContext(ctx, listCandidateResults, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CandidateResult
	for rows.Next() {
		var i CandidateResult
		if err := rows.Scan(&i.RunID, &i.Position, &i.Candidate, &i.Status,
			&i.HeadlineValue, &i.Divergence, &i.MismatchCount, &i.Failure); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
