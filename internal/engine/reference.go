package engine

import (
	"sort"

	"parity/internal/core"
)

// Reference is the long-trusted implementation whose output defines
// correctness. It favours obviousness over speed: every figure is a filtered
// sum over the raw records.
type Reference struct{}

func (Reference) Name() string { return "reference" }

func (Reference) Compute(ds core.Dataset) (core.Output, error) {
	if err := ds.Validate(); err != nil {
		return core.Output{}, err
	}

	rows := make([]core.StoreGrossProfit, 0, len(core.Stores))
	for _, store := range activeStores(ds) {
		sales, purchases, transferIn, transferOut := 0.0, 0.0, 0.0, 0.0
		for _, s := range ds.Sales {
			if s.StoreID == store {
				sales += s.Amount
			}
		}
		for _, p := range ds.Purchases {
			if p.StoreID == store {
				purchases += p.Amount
			}
		}
		for _, t := range ds.Transfers {
			if t.ToStoreID == store {
				transferIn += t.Amount
			}
			if t.FromStoreID == store {
				transferOut += t.Amount
			}
		}

		grossProfit := roundTo(sales-purchases+transferIn-transferOut, Scale)
		rows = append(rows, core.StoreGrossProfit{
			StoreID:         store,
			Sales:           roundTo(sales, Scale),
			Purchases:       roundTo(purchases, Scale),
			TransferIn:      roundTo(transferIn, Scale),
			TransferOut:     roundTo(transferOut, Scale),
			GrossProfit:     grossProfit,
			GrossMarginRate: safeRate(grossProfit, sales),
		})
	}

	dateSet := map[string]struct{}{}
	for _, s := range ds.Sales {
		dateSet[s.Date] = struct{}{}
	}
	for _, p := range ds.Purchases {
		dateSet[p.Date] = struct{}{}
	}
	for _, t := range ds.Transfers {
		dateSet[t.Date] = struct{}{}
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	trend := make([]core.DailyTrendPoint, 0, len(dates))
	for _, date := range dates {
		sales, purchases, transferIn, transferOut := 0.0, 0.0, 0.0, 0.0
		for _, s := range ds.Sales {
			if s.Date == date {
				sales += s.Amount
			}
		}
		for _, p := range ds.Purchases {
			if p.Date == date {
				purchases += p.Amount
			}
		}
		// Across all stores every transfer is both an inflow and an outflow.
		for _, t := range ds.Transfers {
			if t.Date == date {
				transferIn += t.Amount
				transferOut += t.Amount
			}
		}
		grossProfit := roundTo(sales-purchases+transferIn-transferOut, Scale)
		trend = append(trend, core.DailyTrendPoint{
			Date:            date,
			GrossProfit:     grossProfit,
			GrossMarginRate: safeRate(grossProfit, sales),
		})
	}

	totalSales, totalGrossProfit := 0.0, 0.0
	for _, r := range rows {
		totalSales += r.Sales
		totalGrossProfit += r.GrossProfit
	}
	totalSales = roundTo(totalSales, Scale)
	totalGrossProfit = roundTo(totalGrossProfit, Scale)

	return core.Output{
		StoreGrossProfit: rows,
		DailyTrend:       trend,
		Report: core.ReportValues{
			TotalSales:             totalSales,
			TotalGrossProfit:       totalGrossProfit,
			OverallGrossMarginRate: safeRate(totalGrossProfit, totalSales),
			BudgetAchievementRate:  safeRate(totalGrossProfit, applicableBudget(ds)),
		},
	}, nil
}
