// internal/domain/forecast.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WeeklyFlowPoint is the net flow of one account during one ISO week.
type WeeklyFlowPoint struct {
	Week      string          `json:"week"`       // ISO week key, e.g. 2025-W02
	WeekStart time.Time       `json:"week_start"` // Monday 00:00 UTC
	NetFlow   decimal.Decimal `json:"net_flow"`
}

// ForecastParams are the per-request knobs of a forecast.
type ForecastParams struct {
	Horizon        int     `json:"horizon" validate:"min=1,max=520"`
	AnnualRate     float64 `json:"annual_rate" validate:"min=0,max=1"`
	SpendingFactor float64 `json:"spending_factor" validate:"gt=0,max=10"`
}

// ForecastResult holds the baseline projection and its derived scenarios.
// All series are index-aligned with Weeks.
type ForecastResult struct {
	AccountID        int64             `json:"account_id"`
	Params           ForecastParams    `json:"params"`
	History          []WeeklyFlowPoint `json:"history"`
	Weeks            []string          `json:"weeks"`
	Baseline         []decimal.Decimal `json:"baseline"`
	InterestBearing  []decimal.Decimal `json:"interest_bearing"`
	ImprovedSpending []decimal.Decimal `json:"improved_spending"`
	Combined         []decimal.Decimal `json:"combined"`
	GeneratedAt      time.Time         `json:"generated_at"`
}
