package core

import "errors"

const (
	Sapporo StoreID = "SAPPORO"
	Tokyo   StoreID = "TOKYO"
	Osaka   StoreID = "OSAKA"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

type (
	// StoreID identifies a store from the closed enumeration in Stores.
	StoreID string

	Purchase struct {
		Date    string  `json:"date" validate:"required,datetime=2006-01-02"`
		StoreID StoreID `json:"storeId" validate:"required,store"`
		Amount  float64 `json:"amount" validate:"finite,gte=0"`
	}

	Sale struct {
		Date    string  `json:"date" validate:"required,datetime=2006-01-02"`
		StoreID StoreID `json:"storeId" validate:"required,store"`
		Amount  float64 `json:"amount" validate:"finite,gte=0"`
	}

	// Transfer moves inventory value from one store to another. It lowers the
	// sender's cost basis and raises the receiver's.
	Transfer struct {
		Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
		FromStoreID StoreID `json:"fromStoreId" validate:"required,store"`
		ToStoreID   StoreID `json:"toStoreId" validate:"required,store,nefield=FromStoreID"`
		Amount      float64 `json:"amount" validate:"finite,gte=0"`
	}

	Budget struct {
		Month             string  `json:"month" validate:"required,datetime=2006-01"`
		StoreID           StoreID `json:"storeId" validate:"required,store"`
		GrossProfitTarget float64 `json:"grossProfitTarget" validate:"finite,gte=0"`
	}

	// Dataset is the complete input of one computation run.
	Dataset struct {
		Purchases []Purchase `json:"purchases" validate:"dive"`
		Sales     []Sale     `json:"sales" validate:"dive"`
		Transfers []Transfer `json:"transfers" validate:"dive"`
		Budgets   []Budget   `json:"budgets" validate:"dive"`
	}

	StoreGrossProfit struct {
		StoreID         StoreID `json:"storeId"`
		Sales           float64 `json:"sales"`
		Purchases       float64 `json:"purchases"`
		TransferIn      float64 `json:"transferIn"`
		TransferOut     float64 `json:"transferOut"`
		GrossProfit     float64 `json:"grossProfit"`
		GrossMarginRate float64 `json:"grossMarginRate"`
	}

	DailyTrendPoint struct {
		Date            string  `json:"date"`
		GrossProfit     float64 `json:"grossProfit"`
		GrossMarginRate float64 `json:"grossMarginRate"`
	}

	ReportValues struct {
		TotalSales             float64 `json:"totalSales"`
		TotalGrossProfit       float64 `json:"totalGrossProfit"`
		OverallGrossMarginRate float64 `json:"overallGrossMarginRate"`
		BudgetAchievementRate  float64 `json:"budgetAchievementRate"`
	}

	// Output is the aggregation result consumed by the presentation layer as is.
	Output struct {
		StoreGrossProfit []StoreGrossProfit `json:"storeGrossProfit"`
		DailyTrend       []DailyTrendPoint  `json:"dailyTrend"`
		Report           ReportValues       `json:"report"`
	}
)

// Stores lists every known store in canonical output order.
var Stores = []StoreID{Sapporo, Tokyo, Osaka}

var (
	ErrInvalidDataset = errors.New("invalid dataset")
	ErrUnknownStore   = errors.New("unknown store")
)

// Valid reports whether s belongs to the store enumeration.
func (s StoreID) Valid() bool {
	return s.Rank() >= 0
}

// Rank returns the canonical position of s, or -1 for unknown stores.
func (s StoreID) Rank() int {
	for i, id := range Stores {
		if id == s {
			return i
		}
	}
	return -1
}

func (s StoreID) String() string {
	return string(s)
}

// Normalize returns a copy of o whose nil slices are empty so that the JSON
// form always carries arrays.
func (o Output) Normalize() Output {
	if o.StoreGrossProfit == nil {
		o.StoreGrossProfit = []StoreGrossProfit{}
	}
	if o.DailyTrend == nil {
		o.DailyTrend = []DailyTrendPoint{}
	}
	return o
}
