// internal/forecast/scenario.go
package forecast

import (
	"fmt"

	"github.com/shopspring/decimal"

	"goalflow/internal/domain"
	"goalflow/internal/util"
)

// growthScale is the precision the compounding factor is carried at between periods.
const growthScale = 18

// ScenarioConfig parameterises the derived scenarios.
type ScenarioConfig struct {
	AnnualRate     decimal.Decimal
	SpendingFactor decimal.Decimal
	PeriodsPerYear int64
}

// Scenarios are four index-aligned series derived from one baseline.
type Scenarios struct {
	Baseline         []decimal.Decimal
	InterestBearing  []decimal.Decimal
	ImprovedSpending []decimal.Decimal
	Combined         []decimal.Decimal
}

// Project derives the interest-bearing, improved-spending and combined series from baseline.
// Period i compounds i times at AnnualRate/PeriodsPerYear, counted from the forecast start.
func Project(baseline []decimal.Decimal, cfg ScenarioConfig) (Scenarios, error) {
	if cfg.PeriodsPerYear <= 0 {
		return Scenarios{}, fmt.Errorf("project scenarios: periods per year %d: %w", cfg.PeriodsPerYear, util.ErrInvalidInput)
	}
	if cfg.AnnualRate.IsNegative() {
		return Scenarios{}, fmt.Errorf("project scenarios: negative annual rate: %w", util.ErrInvalidInput)
	}
	if !cfg.SpendingFactor.IsPositive() {
		return Scenarios{}, fmt.Errorf("project scenarios: spending factor must be positive: %w", util.ErrInvalidInput)
	}

	step := decimal.NewFromInt(1).Add(cfg.AnnualRate.DivRound(decimal.NewFromInt(cfg.PeriodsPerYear), growthScale))
	growth := decimal.NewFromInt(1)

	s := Scenarios{
		Baseline:         make([]decimal.Decimal, 0, len(baseline)),
		InterestBearing:  make([]decimal.Decimal, 0, len(baseline)),
		ImprovedSpending: make([]decimal.Decimal, 0, len(baseline)),
		Combined:         make([]decimal.Decimal, 0, len(baseline)),
	}
	for i, b := range baseline {
		if i > 0 {
			growth = growth.Mul(step).Round(growthScale)
		}
		compounded := b.Mul(growth)
		s.Baseline = append(s.Baseline, b.Round(domain.AmountScale))
		s.InterestBearing = append(s.InterestBearing, compounded.Round(domain.AmountScale))
		s.ImprovedSpending = append(s.ImprovedSpending, b.Mul(cfg.SpendingFactor).Round(domain.AmountScale))
		s.Combined = append(s.Combined, compounded.Mul(cfg.SpendingFactor).Round(domain.AmountScale))
	}

	if err := s.check(len(baseline)); err != nil {
		return Scenarios{}, err
	}
	return s, nil
}

func (s Scenarios) check(n int) error {
	for name, series := range map[string][]decimal.Decimal{
		"baseline":          s.Baseline,
		"interest_bearing":  s.InterestBearing,
		"improved_spending": s.ImprovedSpending,
		"combined":          s.Combined,
	} {
		if len(series) != n {
			return fmt.Errorf("project scenarios: %s has %d periods, want %d: %w", name, len(series), n, util.ErrInvariantViolation)
		}
	}
	return nil
}
