// Package engine holds the independent realizations of the gross-profit
// aggregation. Each engine is a pure function of the dataset; running several
// of them side by side is what the parity harness compares.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"parity/internal/core"
)

// Engine computes the aggregation Output for a Dataset. Implementations must
// be deterministic and must not mutate the dataset.
type Engine interface {
	Name() string
	Compute(ds core.Dataset) (core.Output, error)
}

// Scale is the number of decimal digits every engine rounds derived figures to.
const Scale = 6

var ErrUnknownEngine = errors.New("unknown engine")

var registry = map[string]Engine{
	Reference{}.Name(): Reference{},
	Streaming{}.Name(): Streaming{},
	Decimal{}.Name():   Decimal{},
}

// Lookup returns the in-process engine registered under name.
func Lookup(name string) (Engine, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownEngine, name, Names())
	}
	return e, nil
}

// Names lists registered engines in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// applicableBudgets returns the budgets whose store has a sale, purchase or
// transfer in the budget month.
func applicableBudgets(ds core.Dataset) []core.Budget {
	active := map[storeMonth]bool{}
	for _, s := range ds.Sales {
		active[storeMonth{s.StoreID, month(s.Date)}] = true
	}
	for _, p := range ds.Purchases {
		active[storeMonth{p.StoreID, month(p.Date)}] = true
	}
	for _, t := range ds.Transfers {
		active[storeMonth{t.FromStoreID, month(t.Date)}] = true
		active[storeMonth{t.ToStoreID, month(t.Date)}] = true
	}
	var budgets []core.Budget
	for _, b := range ds.Budgets {
		if active[storeMonth{b.StoreID, b.Month}] {
			budgets = append(budgets, b)
		}
	}
	return budgets
}

func applicableBudget(ds core.Dataset) float64 {
	total := 0.0
	for _, b := range applicableBudgets(ds) {
		total += b.GrossProfitTarget
	}
	return total
}

type storeMonth struct {
	store core.StoreID
	month string
}

// month is the YYYY-MM prefix of a validated YYYY-MM-DD date.
func month(date string) string {
	return date[:7]
}

// activeStores returns the stores that appear in any purchase, sale or
// transfer, in canonical order.
func activeStores(ds core.Dataset) []core.StoreID {
	seen := make(map[core.StoreID]bool, len(core.Stores))
	for _, p := range ds.Purchases {
		seen[p.StoreID] = true
	}
	for _, s := range ds.Sales {
		seen[s.StoreID] = true
	}
	for _, t := range ds.Transfers {
		seen[t.FromStoreID] = true
		seen[t.ToStoreID] = true
	}
	stores := make([]core.StoreID, 0, len(seen))
	for _, id := range core.Stores {
		if seen[id] {
			stores = append(stores, id)
		}
	}
	return stores
}

// Derived money figures are rounded half away from zero. Inputs with up to
// seven decimals make every exact sum a multiple of 1e-7, so a tie sits on
// x.5 in scaled units and anything else is at least 0.1 away from it. The
// tie tolerance absorbs binary summation error without touching non-ties, so
// float engines round exactly like the decimal one.
const (
	amountTieTolerance = 0.01
	rateTieTolerance   = 1e-14
)

func roundTo(v float64, digits int) float64 {
	scale := math.Pow10(digits)
	scaled := v * scale
	return math.Round(scaled+math.Copysign(amountTieTolerance, scaled)) / scale
}

// safeRate is numerator/denominator rounded to Scale digits, defined as 0 when
// the denominator is 0. The tie tolerance is relative since a single division
// only carries relative error.
func safeRate(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	scale := math.Pow10(Scale)
	scaled := numerator / denominator * scale
	return math.Round(scaled+math.Copysign(math.Abs(scaled)*rateTieTolerance, scaled)) / scale
}
