package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parity/internal/compare"
	"parity/internal/core"
)

func allEngines() []Engine {
	return []Engine{Reference{}, Streaming{}, Decimal{}}
}

func tokyoJanuary() core.Dataset {
	return core.Dataset{
		Purchases: []core.Purchase{{Date: "2024-01-01", StoreID: core.Tokyo, Amount: 600}},
		Sales:     []core.Sale{{Date: "2024-01-01", StoreID: core.Tokyo, Amount: 1000}},
		Budgets:   []core.Budget{{Month: "2024-01", StoreID: core.Tokyo, GrossProfitTarget: 300}},
	}
}

func TestComputeSingleStoreScenario(t *testing.T) {
	for _, e := range allEngines() {
		t.Run(e.Name(), func(t *testing.T) {
			out, err := e.Compute(tokyoJanuary())
			require.NoError(t, err)

			require.Len(t, out.StoreGrossProfit, 1)
			row := out.StoreGrossProfit[0]
			assert.Equal(t, core.Tokyo, row.StoreID)
			assert.InDelta(t, 1000, row.Sales, 1e-9)
			assert.InDelta(t, 600, row.Purchases, 1e-9)
			assert.InDelta(t, 400, row.GrossProfit, 1e-9)
			assert.InDelta(t, 0.4, row.GrossMarginRate, 1e-9)

			require.Len(t, out.DailyTrend, 1)
			assert.Equal(t, "2024-01-01", out.DailyTrend[0].Date)
			assert.InDelta(t, 400, out.DailyTrend[0].GrossProfit, 1e-9)

			assert.InDelta(t, 1000, out.Report.TotalSales, 1e-9)
			assert.InDelta(t, 400, out.Report.TotalGrossProfit, 1e-9)
			assert.InDelta(t, 0.4, out.Report.OverallGrossMarginRate, 1e-9)
			assert.InDelta(t, 1.333333, out.Report.BudgetAchievementRate, 1e-6)
		})
	}
}

func TestComputeEdgeCases(t *testing.T) {
	cases := []struct {
		name  string
		ds    core.Dataset
		check func(t *testing.T, out core.Output)
	}{
		{
			name: "empty dataset",
			ds:   core.Dataset{},
			check: func(t *testing.T, out core.Output) {
				assert.Empty(t, out.StoreGrossProfit)
				assert.Empty(t, out.DailyTrend)
				assert.Equal(t, core.ReportValues{}, out.Report)
			},
		},
		{
			name: "zero sales yields zero margin rate",
			ds: core.Dataset{
				Purchases: []core.Purchase{{Date: "2024-02-03", StoreID: core.Osaka, Amount: 250}},
			},
			check: func(t *testing.T, out core.Output) {
				require.Len(t, out.StoreGrossProfit, 1)
				assert.InDelta(t, -250, out.StoreGrossProfit[0].GrossProfit, 1e-9)
				assert.Zero(t, out.StoreGrossProfit[0].GrossMarginRate)
				assert.Zero(t, out.Report.OverallGrossMarginRate)
				assert.Zero(t, out.Report.BudgetAchievementRate)
			},
		},
		{
			name: "transfer only date nets to zero",
			ds: core.Dataset{
				Transfers: []core.Transfer{{Date: "2024-01-05", FromStoreID: core.Sapporo, ToStoreID: core.Osaka, Amount: 80}},
			},
			check: func(t *testing.T, out core.Output) {
				require.Len(t, out.StoreGrossProfit, 2)
				assert.Equal(t, core.Sapporo, out.StoreGrossProfit[0].StoreID)
				assert.InDelta(t, -80, out.StoreGrossProfit[0].GrossProfit, 1e-9)
				assert.InDelta(t, 80, out.StoreGrossProfit[0].TransferOut, 1e-9)
				assert.Equal(t, core.Osaka, out.StoreGrossProfit[1].StoreID)
				assert.InDelta(t, 80, out.StoreGrossProfit[1].GrossProfit, 1e-9)

				require.Len(t, out.DailyTrend, 1)
				assert.Equal(t, core.DailyTrendPoint{Date: "2024-01-05"}, out.DailyTrend[0])
				assert.Zero(t, out.Report.TotalGrossProfit)
			},
		},
		{
			name: "budget only store has no row and its budget does not apply",
			ds: core.Dataset{
				Sales:   []core.Sale{{Date: "2024-01-10", StoreID: core.Tokyo, Amount: 100}},
				Budgets: []core.Budget{{Month: "2024-01", StoreID: core.Sapporo, GrossProfitTarget: 50}},
			},
			check: func(t *testing.T, out core.Output) {
				require.Len(t, out.StoreGrossProfit, 1)
				assert.Equal(t, core.Tokyo, out.StoreGrossProfit[0].StoreID)
				assert.Zero(t, out.Report.BudgetAchievementRate)
			},
		},
		{
			name: "budget applies only to a store active in its month",
			ds: core.Dataset{
				Sales: []core.Sale{
					{Date: "2024-01-10", StoreID: core.Tokyo, Amount: 100},
					{Date: "2024-02-10", StoreID: core.Osaka, Amount: 100},
				},
				Transfers: []core.Transfer{{Date: "2024-02-11", FromStoreID: core.Tokyo, ToStoreID: core.Sapporo, Amount: 0}},
				Budgets: []core.Budget{
					{Month: "2024-01", StoreID: core.Tokyo, GrossProfitTarget: 100},
					{Month: "2024-01", StoreID: core.Osaka, GrossProfitTarget: 1000},
					{Month: "2024-02", StoreID: core.Sapporo, GrossProfitTarget: 300},
				},
			},
			check: func(t *testing.T, out core.Output) {
				assert.InDelta(t, 0.5, out.Report.BudgetAchievementRate, 1e-9)
			},
		},
		{
			name: "margin rate divides by unrounded sales",
			ds: core.Dataset{
				Sales:     []core.Sale{{Date: "2024-01-10", StoreID: core.Tokyo, Amount: 4e-7}},
				Transfers: []core.Transfer{{Date: "2024-01-10", FromStoreID: core.Osaka, ToStoreID: core.Tokyo, Amount: 1}},
			},
			check: func(t *testing.T, out core.Output) {
				require.Len(t, out.StoreGrossProfit, 2)
				tokyo := out.StoreGrossProfit[0]
				assert.Equal(t, core.Tokyo, tokyo.StoreID)
				assert.Zero(t, tokyo.Sales)
				assert.Equal(t, 1.0, tokyo.GrossProfit)
				assert.Equal(t, 2_500_000.0, tokyo.GrossMarginRate)
			},
		},
		{
			name: "half a unit rounds away from zero",
			ds: core.Dataset{
				Sales:     []core.Sale{{Date: "2024-01-10", StoreID: core.Tokyo, Amount: 1.5e-6}},
				Purchases: []core.Purchase{{Date: "2024-01-10", StoreID: core.Osaka, Amount: 2.5e-6}},
			},
			check: func(t *testing.T, out core.Output) {
				require.Len(t, out.StoreGrossProfit, 2)
				assert.Equal(t, 2e-6, out.StoreGrossProfit[0].Sales)
				assert.Equal(t, 2e-6, out.StoreGrossProfit[0].GrossProfit)
				assert.Equal(t, 1.333333, out.StoreGrossProfit[0].GrossMarginRate)
				assert.Equal(t, -3e-6, out.StoreGrossProfit[1].GrossProfit)
				assert.Equal(t, -1e-6, out.DailyTrend[0].GrossProfit)
			},
		},
		{
			name: "budget outside the activity window is ignored",
			ds: core.Dataset{
				Sales: []core.Sale{{Date: "2024-01-10", StoreID: core.Tokyo, Amount: 100}},
				Budgets: []core.Budget{
					{Month: "2024-01", StoreID: core.Tokyo, GrossProfitTarget: 200},
					{Month: "2023-12", StoreID: core.Tokyo, GrossProfitTarget: 1_000_000},
				},
			},
			check: func(t *testing.T, out core.Output) {
				assert.InDelta(t, 0.5, out.Report.BudgetAchievementRate, 1e-9)
			},
		},
		{
			name: "stores follow canonical order regardless of input order",
			ds: core.Dataset{
				Sales: []core.Sale{
					{Date: "2024-01-02", StoreID: core.Osaka, Amount: 1},
					{Date: "2024-01-01", StoreID: core.Sapporo, Amount: 2},
					{Date: "2024-01-03", StoreID: core.Tokyo, Amount: 3},
				},
			},
			check: func(t *testing.T, out core.Output) {
				require.Len(t, out.StoreGrossProfit, 3)
				for i, id := range core.Stores {
					assert.Equal(t, id, out.StoreGrossProfit[i].StoreID)
				}
				require.Len(t, out.DailyTrend, 3)
				assert.Equal(t, "2024-01-01", out.DailyTrend[0].Date)
				assert.Equal(t, "2024-01-03", out.DailyTrend[2].Date)
			},
		},
	}

	for _, tc := range cases {
		for _, e := range allEngines() {
			t.Run(tc.name+"/"+e.Name(), func(t *testing.T) {
				out, err := e.Compute(tc.ds)
				require.NoError(t, err)
				tc.check(t, out)
			})
		}
	}
}

func TestComputeRejectsInvalidDataset(t *testing.T) {
	invalid := []core.Dataset{
		{Sales: []core.Sale{{Date: "2024-01-01", StoreID: "KYOTO", Amount: 1}}},
		{Sales: []core.Sale{{Date: "2024-01-01", StoreID: core.Tokyo, Amount: -1}}},
		{Purchases: []core.Purchase{{Date: "2024-01-01", StoreID: core.Tokyo, Amount: math.NaN()}}},
		{Transfers: []core.Transfer{{Date: "2024-01-01", FromStoreID: core.Tokyo, ToStoreID: core.Tokyo, Amount: 1}}},
		{Budgets: []core.Budget{{Month: "2024-1", StoreID: core.Tokyo}}},
	}
	for _, e := range allEngines() {
		for i, ds := range invalid {
			_, err := e.Compute(ds)
			assert.True(t, errors.Is(err, core.ErrInvalidDataset), "%s case %d: %v", e.Name(), i, err)
		}
	}
}

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{"decimal", "reference", "streaming"}, Names())

	e, err := Lookup("reference")
	require.NoError(t, err)
	assert.Equal(t, "reference", e.Name())

	_, err = Lookup("spreadsheet")
	require.ErrorIs(t, err, ErrUnknownEngine)
	assert.Contains(t, err.Error(), `"spreadsheet"`)
}

// randomDataset builds a valid dataset with cent-precision amounts spread over
// two months.
func randomDataset(f *gofakeit.Faker) core.Dataset {
	store := func() core.StoreID { return core.Stores[f.Number(0, len(core.Stores)-1)] }
	date := func() string {
		return f.RandomString([]string{"2024-01", "2024-02"}) + "-" + f.RandomString([]string{"01", "07", "15", "28"})
	}
	amount := func() float64 { return math.Round(f.Float64Range(0, 50_000)*100) / 100 }

	var ds core.Dataset
	for i := f.Number(0, 25); i > 0; i-- {
		ds.Sales = append(ds.Sales, core.Sale{Date: date(), StoreID: store(), Amount: amount()})
	}
	for i := f.Number(0, 25); i > 0; i-- {
		ds.Purchases = append(ds.Purchases, core.Purchase{Date: date(), StoreID: store(), Amount: amount()})
	}
	for i := f.Number(0, 8); i > 0; i-- {
		from := store()
		to := core.Stores[(from.Rank()+f.Number(1, 2))%len(core.Stores)]
		ds.Transfers = append(ds.Transfers, core.Transfer{Date: date(), FromStoreID: from, ToStoreID: to, Amount: amount()})
	}
	for _, month := range []string{"2024-01", "2024-02", "2024-03"} {
		if f.Bool() {
			ds.Budgets = append(ds.Budgets, core.Budget{Month: month, StoreID: store(), GrossProfitTarget: amount()})
		}
	}
	return ds
}

func TestEnginesAgreeOnRandomDatasets(t *testing.T) {
	faker := gofakeit.New(42)
	for i := 0; i < 300; i++ {
		ds := randomDataset(faker)
		want, err := Reference{}.Compute(ds)
		require.NoError(t, err)

		for _, e := range []Engine{Streaming{}, Decimal{}} {
			got, err := e.Compute(ds)
			require.NoError(t, err)
			mismatches, err := compare.DiffOutputs(got, want)
			require.NoError(t, err)
			assert.Empty(t, mismatches, "engine %s dataset %d", e.Name(), i)
		}
	}
}

// preciseDataset draws amounts with up to seven decimals, either sub-cent or
// up to 50,000, so rounding ties at the sixth decimal occur regularly. Sales
// and budgets keep a floor so that rates stay within a few thousand.
func preciseDataset(f *gofakeit.Faker) core.Dataset {
	high := 50_000.0
	if f.Bool() {
		high = 0.01
	}
	amount := func(low float64) float64 {
		return math.Round(f.Float64Range(low, high)*1e7) / 1e7
	}
	store := func() core.StoreID { return core.Stores[f.Number(0, len(core.Stores)-1)] }
	date := func() string {
		return f.RandomString([]string{"2024-01", "2024-02"}) + "-" + f.RandomString([]string{"03", "09", "21"})
	}

	var ds core.Dataset
	for i := f.Number(0, 20); i > 0; i-- {
		ds.Sales = append(ds.Sales, core.Sale{Date: date(), StoreID: store(), Amount: amount(high / 10)})
	}
	for i := f.Number(0, 20); i > 0; i-- {
		ds.Purchases = append(ds.Purchases, core.Purchase{Date: date(), StoreID: store(), Amount: amount(0)})
	}
	for i := f.Number(0, 6); i > 0; i-- {
		from := store()
		to := core.Stores[(from.Rank()+f.Number(1, 2))%len(core.Stores)]
		ds.Transfers = append(ds.Transfers, core.Transfer{Date: date(), FromStoreID: from, ToStoreID: to, Amount: amount(0)})
	}
	for _, month := range []string{"2024-01", "2024-02"} {
		for _, id := range core.Stores {
			if f.Bool() {
				ds.Budgets = append(ds.Budgets, core.Budget{Month: month, StoreID: id, GrossProfitTarget: amount(high / 10)})
			}
		}
	}
	return ds
}

func TestEnginesAgreeOnSubCentAmounts(t *testing.T) {
	faker := gofakeit.New(2024)
	for i := 0; i < 300; i++ {
		ds := preciseDataset(faker)
		want, err := Reference{}.Compute(ds)
		require.NoError(t, err)

		for _, e := range []Engine{Streaming{}, Decimal{}} {
			got, err := e.Compute(ds)
			require.NoError(t, err)
			mismatches, err := compare.DiffOutputs(got, want)
			require.NoError(t, err)
			assert.Empty(t, mismatches, "engine %s dataset %d", e.Name(), i)
		}
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	faker := gofakeit.New(7)
	for i := 0; i < 50; i++ {
		ds := randomDataset(faker)
		for _, e := range allEngines() {
			first, err := e.Compute(ds)
			require.NoError(t, err)
			second, err := e.Compute(ds)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		}
	}
}

func TestComputeConservesTransfers(t *testing.T) {
	faker := gofakeit.New(99)
	for i := 0; i < 100; i++ {
		ds := randomDataset(faker)
		for _, e := range allEngines() {
			out, err := e.Compute(ds)
			require.NoError(t, err)

			var in, outflow, storeProfit, dailyProfit float64
			for _, r := range out.StoreGrossProfit {
				in += r.TransferIn
				outflow += r.TransferOut
				storeProfit += r.GrossProfit
			}
			for _, p := range out.DailyTrend {
				dailyProfit += p.GrossProfit
			}
			assert.InDelta(t, in, outflow, 1e-6, e.Name())
			assert.InDelta(t, out.Report.TotalGrossProfit, storeProfit, 1e-6, e.Name())
			assert.InDelta(t, out.Report.TotalGrossProfit, dailyProfit, 1e-5, e.Name())
		}
	}
}

func TestComputeDoesNotMutateDataset(t *testing.T) {
	ds := tokyoJanuary()
	before := tokyoJanuary()
	for _, e := range allEngines() {
		_, err := e.Compute(ds)
		require.NoError(t, err)
		assert.Equal(t, before, ds)
	}
}
