package memory

import (
	"context"
	"fmt"
	"sync"

	"parity/internal/core"
	"parity/internal/sheets"
)

// Store keeps published runs and their sheet rows in memory. It stands in for
// the Google Sheets publisher in tests and dry runs.
type Store struct {
	mu   sync.Mutex
	runs []core.RunSummary
	rows [][]any
}

func New() *Store {
	return &Store{rows: [][]any{sheets.Header}}
}

// PublishRun records run and appends its rows.
func (s *Store) PublishRun(_ context.Context, run core.RunSummary) error {
	if run.ID == "" {
		return fmt.Errorf("publish run: missing run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	s.rows = append(s.rows, sheets.RunRows(run)...)
	return nil
}

// Runs returns a copy of every published run, oldest first.
func (s *Store) Runs() []core.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RunSummary(nil), s.runs...)
}

// Rows returns a copy of the simulated sheet, header included.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, row := range s.rows {
		out[i] = append([]any(nil), row...)
	}
	return out
}
