package core

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDataset() Dataset {
	return Dataset{
		Purchases: []Purchase{{Date: "2024-01-01", StoreID: Tokyo, Amount: 600}},
		Sales:     []Sale{{Date: "2024-01-01", StoreID: Tokyo, Amount: 1000}},
		Transfers: []Transfer{{Date: "2024-02-03", FromStoreID: Tokyo, ToStoreID: Osaka, Amount: 50}},
		Budgets:   []Budget{{Month: "2024-01", StoreID: Tokyo, GrossProfitTarget: 300}},
	}
}

func TestStoreIDRank(t *testing.T) {
	assert.Equal(t, 0, Sapporo.Rank())
	assert.Equal(t, 1, Tokyo.Rank())
	assert.Equal(t, 2, Osaka.Rank())
	assert.Equal(t, -1, StoreID("KYOTO").Rank())
	assert.False(t, StoreID("tokyo").Valid())
}

func TestDatasetValidate(t *testing.T) {
	require.NoError(t, validDataset().Validate())
	require.NoError(t, Dataset{}.Validate())

	cases := []struct {
		name   string
		mutate func(*Dataset)
		want   string
	}{
		{
			name:   "unknown store",
			mutate: func(d *Dataset) { d.Sales[0].StoreID = "KYOTO" },
			want:   `sales[0].storeId: unknown store "KYOTO"`,
		},
		{
			name:   "negative amount",
			mutate: func(d *Dataset) { d.Purchases[0].Amount = -1 },
			want:   "purchases[0].amount: must not be negative",
		},
		{
			name:   "infinite amount",
			mutate: func(d *Dataset) { d.Sales[0].Amount = math.Inf(1) },
			want:   "sales[0].amount: must be a finite number",
		},
		{
			name:   "NaN target",
			mutate: func(d *Dataset) { d.Budgets[0].GrossProfitTarget = math.NaN() },
			want:   "budgets[0].grossProfitTarget: must be a finite number",
		},
		{
			name:   "unparsable date",
			mutate: func(d *Dataset) { d.Sales[0].Date = "2024/01/01" },
			want:   `sales[0].date: "2024/01/01" does not match 2006-01-02`,
		},
		{
			name:   "impossible date",
			mutate: func(d *Dataset) { d.Transfers[0].Date = "2024-02-30" },
			want:   "transfers[0].date",
		},
		{
			name:   "bad month",
			mutate: func(d *Dataset) { d.Budgets[0].Month = "2024-13" },
			want:   "budgets[0].month",
		},
		{
			name:   "self transfer",
			mutate: func(d *Dataset) { d.Transfers[0].ToStoreID = Tokyo },
			want:   "transfers[0].toStoreId: sender and receiver must differ",
		},
		{
			name:   "missing store",
			mutate: func(d *Dataset) { d.Purchases[0].StoreID = "" },
			want:   "purchases[0].storeId: required",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ds := validDataset()
			tc.mutate(&ds)
			err := ds.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDataset))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDatasetValidateListsEveryProblem(t *testing.T) {
	ds := validDataset()
	ds.Sales[0].StoreID = "KYOTO"
	ds.Purchases[0].Amount = -5
	err := ds.Validate()
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "sales[0].storeId"))
	assert.Contains(t, err.Error(), "purchases[0].amount")
}

func TestOutputNormalize(t *testing.T) {
	out := Output{}.Normalize()
	assert.NotNil(t, out.StoreGrossProfit)
	assert.NotNil(t, out.DailyTrend)
}

func TestRunSummaryClean(t *testing.T) {
	run := RunSummary{Candidates: []CandidateSummary{{Name: "a", Status: StatusOK}}}
	assert.True(t, run.Clean())
	run.Candidates = append(run.Candidates, CandidateSummary{Name: "b", Status: StatusDiverged})
	assert.False(t, run.Clean())
}
