package engine

import (
	"sort"

	"parity/internal/core"
)

// Streaming is a candidate replacement that folds every collection once into
// per-store and per-date accumulators.
type Streaming struct{}

type ledger struct {
	sales, purchases, transferIn, transferOut float64
}

func (l ledger) grossProfit() float64 {
	return l.sales - l.purchases + l.transferIn - l.transferOut
}

func (Streaming) Name() string { return "streaming" }

func (Streaming) Compute(ds core.Dataset) (core.Output, error) {
	if err := ds.Validate(); err != nil {
		return core.Output{}, err
	}

	byStore := make(map[core.StoreID]*ledger, len(core.Stores))
	byDate := map[string]*ledger{}
	active := map[storeMonth]bool{}
	entry := func(id core.StoreID, date string) *ledger {
		active[storeMonth{id, month(date)}] = true
		if l, ok := byStore[id]; ok {
			return l
		}
		l := &ledger{}
		byStore[id] = l
		return l
	}
	day := func(date string) *ledger {
		if l, ok := byDate[date]; ok {
			return l
		}
		l := &ledger{}
		byDate[date] = l
		return l
	}

	for _, s := range ds.Sales {
		entry(s.StoreID, s.Date).sales += s.Amount
		day(s.Date).sales += s.Amount
	}
	for _, p := range ds.Purchases {
		entry(p.StoreID, p.Date).purchases += p.Amount
		day(p.Date).purchases += p.Amount
	}
	for _, t := range ds.Transfers {
		entry(t.ToStoreID, t.Date).transferIn += t.Amount
		entry(t.FromStoreID, t.Date).transferOut += t.Amount
		d := day(t.Date)
		d.transferIn += t.Amount
		d.transferOut += t.Amount
	}

	var out core.Output
	out.StoreGrossProfit = make([]core.StoreGrossProfit, 0, len(byStore))
	var totalSales, totalGrossProfit float64
	for _, id := range core.Stores {
		l, ok := byStore[id]
		if !ok {
			continue
		}
		gp := roundTo(l.grossProfit(), Scale)
		row := core.StoreGrossProfit{
			StoreID:         id,
			Sales:           roundTo(l.sales, Scale),
			Purchases:       roundTo(l.purchases, Scale),
			TransferIn:      roundTo(l.transferIn, Scale),
			TransferOut:     roundTo(l.transferOut, Scale),
			GrossProfit:     gp,
			GrossMarginRate: safeRate(gp, l.sales),
		}
		out.StoreGrossProfit = append(out.StoreGrossProfit, row)

		totalSales += row.Sales
		totalGrossProfit += row.GrossProfit
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	out.DailyTrend = make([]core.DailyTrendPoint, 0, len(dates))
	for _, d := range dates {
		l := byDate[d]
		gp := roundTo(l.grossProfit(), Scale)
		out.DailyTrend = append(out.DailyTrend, core.DailyTrendPoint{
			Date:            d,
			GrossProfit:     gp,
			GrossMarginRate: safeRate(gp, l.sales),
		})
	}

	budget := 0.0
	for _, b := range ds.Budgets {
		if active[storeMonth{b.StoreID, b.Month}] {
			budget += b.GrossProfitTarget
		}
	}

	totalSales = roundTo(totalSales, Scale)
	totalGrossProfit = roundTo(totalGrossProfit, Scale)
	out.Report = core.ReportValues{
		TotalSales:             totalSales,
		TotalGrossProfit:       totalGrossProfit,
		OverallGrossMarginRate: safeRate(totalGrossProfit, totalSales),
		BudgetAchievementRate:  safeRate(totalGrossProfit, budget),
	}
	return out, nil
}
