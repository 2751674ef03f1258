package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"parity/internal/core"
)

// Decimal is a candidate replacement computing in arbitrary-precision decimal
// arithmetic. Floats appear only when reading the dataset and writing the
// output.
type Decimal struct{}

type decimalLedger struct {
	sales, purchases, transferIn, transferOut decimal.Decimal
}

func (l *decimalLedger) grossProfit() decimal.Decimal {
	return l.sales.Sub(l.purchases).Add(l.transferIn).Sub(l.transferOut)
}

func (Decimal) Name() string { return "decimal" }

func (Decimal) Compute(ds core.Dataset) (core.Output, error) {
	if err := ds.Validate(); err != nil {
		return core.Output{}, err
	}

	stores := map[core.StoreID]*decimalLedger{}
	days := map[string]*decimalLedger{}
	get := func(id core.StoreID) *decimalLedger {
		if stores[id] == nil {
			stores[id] = &decimalLedger{}
		}
		return stores[id]
	}
	on := func(date string) *decimalLedger {
		if days[date] == nil {
			days[date] = &decimalLedger{}
		}
		return days[date]
	}

	for _, s := range ds.Sales {
		amount := decimal.NewFromFloat(s.Amount)
		get(s.StoreID).sales = get(s.StoreID).sales.Add(amount)
		on(s.Date).sales = on(s.Date).sales.Add(amount)
	}
	for _, p := range ds.Purchases {
		amount := decimal.NewFromFloat(p.Amount)
		get(p.StoreID).purchases = get(p.StoreID).purchases.Add(amount)
		on(p.Date).purchases = on(p.Date).purchases.Add(amount)
	}
	for _, t := range ds.Transfers {
		amount := decimal.NewFromFloat(t.Amount)
		get(t.ToStoreID).transferIn = get(t.ToStoreID).transferIn.Add(amount)
		get(t.FromStoreID).transferOut = get(t.FromStoreID).transferOut.Add(amount)
		d := on(t.Date)
		d.transferIn = d.transferIn.Add(amount)
		d.transferOut = d.transferOut.Add(amount)
	}

	rows := make([]core.StoreGrossProfit, 0, len(stores))
	totalSales, totalGrossProfit := decimal.Zero, decimal.Zero
	for _, id := range core.Stores {
		l, ok := stores[id]
		if !ok {
			continue
		}
		gp := l.grossProfit().Round(Scale)
		rows = append(rows, core.StoreGrossProfit{
			StoreID:         id,
			Sales:           l.sales.Round(Scale).InexactFloat64(),
			Purchases:       l.purchases.Round(Scale).InexactFloat64(),
			TransferIn:      l.transferIn.Round(Scale).InexactFloat64(),
			TransferOut:     l.transferOut.Round(Scale).InexactFloat64(),
			GrossProfit:     gp.InexactFloat64(),
			GrossMarginRate: decimalRate(gp, l.sales),
		})
		totalSales = totalSales.Add(l.sales.Round(Scale))
		totalGrossProfit = totalGrossProfit.Add(gp)
	}

	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	trend := make([]core.DailyTrendPoint, 0, len(dates))
	for _, date := range dates {
		l := days[date]
		gp := l.grossProfit().Round(Scale)
		trend = append(trend, core.DailyTrendPoint{
			Date:            date,
			GrossProfit:     gp.InexactFloat64(),
			GrossMarginRate: decimalRate(gp, l.sales),
		})
	}

	budget := decimal.Zero
	for _, b := range applicableBudgets(ds) {
		budget = budget.Add(decimal.NewFromFloat(b.GrossProfitTarget))
	}

	totalSales = totalSales.Round(Scale)
	totalGrossProfit = totalGrossProfit.Round(Scale)
	return core.Output{
		StoreGrossProfit: rows,
		DailyTrend:       trend,
		Report: core.ReportValues{
			TotalSales:             totalSales.InexactFloat64(),
			TotalGrossProfit:       totalGrossProfit.InexactFloat64(),
			OverallGrossMarginRate: decimalRate(totalGrossProfit, totalSales),
			BudgetAchievementRate:  decimalRate(totalGrossProfit, budget),
		},
	}, nil
}

func decimalRate(value, base decimal.Decimal) float64 {
	if base.IsZero() {
		return 0
	}
	return value.DivRound(base, Scale).InexactFloat64()
}
