// Package receivables persists Conta Azul accounts receivable into the CR table.
package receivables

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Receivable is one row of the CR table.
type Receivable struct {
	ID          int64               `json:"id"`
	RecordKey   string              `json:"record_key"`  // API id or content hash
	Period      string              `json:"period"`      // YYYY-MM window it was fetched for
	DueDate     string              `json:"due_date"`    // YYYY-MM-DD
	Description string              `json:"description"`
	Status      string              `json:"status"`
	Amount      decimal.NullDecimal `json:"amount"`
	Customer    string              `json:"customer"`
	Data        json.RawMessage     `json:"data"`        // Verbatim API object
	RunID       string              `json:"run_id"`
	FetchedAt   time.Time           `json:"fetched_at"`
}

// PeriodSummary aggregates the receivables of one month.
// Mean and StdDev are computed over the rows that carry an amount.
type PeriodSummary struct {
	Period  string          `json:"period"`
	Count   int             `json:"count"`
	Priced  int             `json:"priced"`  // Rows with an amount
	Total   decimal.Decimal `json:"total"`
	Mean    float64         `json:"mean"`
	StdDev  float64         `json:"std_dev"`
	Minimum decimal.Decimal `json:"minimum"`
	Maximum decimal.Decimal `json:"maximum"`
}

// Period formats a year and month as YYYY-MM.
func Period(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
