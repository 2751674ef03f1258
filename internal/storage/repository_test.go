package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parity/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "history", "parity.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func run(at time.Time, statuses ...core.CandidateStatus) core.RunSummary {
	summary := core.RunSummary{
		ID:              uuid.NewString(),
		GeneratedAt:     at,
		ReferenceEngine: "reference",
		HeadlineMetric:  "report.totalGrossProfit",
		ReferenceValue:  789380.3,
	}
	names := []string{"go-streaming", "gp-engine-process"}
	for i, s := range statuses {
		c := core.CandidateSummary{Name: names[i], Status: s, HeadlineValue: 789380.3}
		if s == core.StatusFailed {
			c.Failure = "exit code 1"
		}
		if s == core.StatusDiverged {
			c.Divergence = 0.5
			c.MismatchCount = 2
		}
		summary.Candidates = append(summary.Candidates, c)
	}
	return summary
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parity.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}

func TestSaveAndListRuns(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	base := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

	first := run(base, core.StatusOK, core.StatusFailed)
	second := run(base.Add(24*time.Hour), core.StatusOK, core.StatusDiverged)
	require.NoError(t, repo.SaveRun(ctx, first))
	require.NoError(t, repo.SaveRun(ctx, second))

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.True(t, second.GeneratedAt.Equal(runs[0].GeneratedAt))
	assert.Equal(t, second.Candidates, runs[0].Candidates)
	assert.Equal(t, "exit code 1", runs[1].Candidates[1].Failure)

	runs, err = repo.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSaveRunRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	r := run(time.Now(), core.StatusOK)
	require.NoError(t, repo.SaveRun(ctx, r))
	assert.Error(t, repo.SaveRun(ctx, r))
}

func TestCleanStreak(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	windowStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	history := []core.RunSummary{
		run(windowStart.Add(-48*time.Hour), core.StatusOK, core.StatusOK),
		run(windowStart.Add(1*time.Hour), core.StatusOK, core.StatusOK),
		run(windowStart.Add(25*time.Hour), core.StatusOK, core.StatusDiverged),
		run(windowStart.Add(49*time.Hour), core.StatusOK, core.StatusOK),
		run(windowStart.Add(73*time.Hour), core.StatusOK, core.StatusOK),
	}
	for _, r := range history {
		require.NoError(t, repo.SaveRun(ctx, r))
	}

	streak, err := repo.CleanStreak(ctx, "go-streaming", windowStart)
	require.NoError(t, err)
	assert.Equal(t, 4, streak, "runs before the window do not count")

	streak, err = repo.CleanStreak(ctx, "gp-engine-process", windowStart)
	require.NoError(t, err)
	assert.Equal(t, 2, streak)

	streak, err = repo.CleanStreak(ctx, "unknown", windowStart)
	require.NoError(t, err)
	assert.Zero(t, streak)
}
