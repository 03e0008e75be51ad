// internal/service/forecast_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"goalflow/internal/domain"
	"goalflow/internal/forecast"
	"goalflow/internal/repository"
	"goalflow/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ForecastDefaults fill in request parameters that were not supplied.
type ForecastDefaults struct {
	Horizon        int
	AnnualRate     float64
	SpendingFactor float64
	PeriodsPerYear int64
}

// DefaultForecast returns the stock forecast settings: six months ahead at 3.5% APR, 5% better spending.
func DefaultForecast() ForecastDefaults {
	return ForecastDefaults{Horizon: 24, AnnualRate: 0.035, SpendingFactor: 1.05, PeriodsPerYear: 52}
}

// ForecastService projects an account's weekly net flow into the future.
type ForecastService interface {
	// Forecast fits the trend over the account's weekly history and returns the four scenarios.
	Forecast(ctx context.Context, accountID int64, params domain.ForecastParams) (*domain.ForecastResult, error)
	// WeeklyFlow returns the account's gap-filled weekly net flow history.
	WeeklyFlow(ctx context.Context, accountID int64) ([]domain.WeeklyFlowPoint, error)
	// Defaults exposes the parameters applied when a request omits them.
	Defaults() ForecastDefaults
}

type forecastService struct {
	dbExecutor   repository.DBExecutor
	accountRepo  repository.AccountRepository
	movementRepo repository.MovementRepository
	defaults     ForecastDefaults
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewForecastService creates a new instance of ForecastService.
func NewForecastService(
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	movementRepo repository.MovementRepository,
	defaults ForecastDefaults,
	logger *slog.Logger,
) ForecastService {
	if defaults.PeriodsPerYear < 1 {
		defaults.PeriodsPerYear = DefaultForecast().PeriodsPerYear
	}
	if logger == nil {
		logger = util.GetLogger()
	}
	return &forecastService{
		dbExecutor:   dbExecutor,
		accountRepo:  accountRepo,
		movementRepo: movementRepo,
		defaults:     defaults,
		validate:     validator.New(),
		logger:       logger,
	}
}

func (s *forecastService) Defaults() ForecastDefaults {
	return s.defaults
}

// history reads the account's movements in one query and buckets them by week.
func (s *forecastService) history(ctx context.Context, accountID int64) ([]domain.WeeklyFlowPoint, error) {
	if _, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID); err != nil {
		return nil, err
	}
	movements, err := s.movementRepo.GetAllMovementsByAccountID(ctx, s.dbExecutor, accountID)
	if err != nil {
		return nil, err
	}
	return forecast.FillGaps(forecast.WeeklyNetFlow(accountID, movements)), nil
}

func (s *forecastService) WeeklyFlow(ctx context.Context, accountID int64) ([]domain.WeeklyFlowPoint, error) {
	series, err := s.history(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("weekly flow: %w", err)
	}
	return series, nil
}

func (s *forecastService) Forecast(ctx context.Context, accountID int64, params domain.ForecastParams) (*domain.ForecastResult, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("forecast: %w: %s", util.ErrInvalidInput, err.Error())
	}

	series, err := s.history(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	if len(series) < 2 {
		return nil, fmt.Errorf("forecast: account %d has %d weekly buckets: %w", accountID, len(series), util.ErrInsufficientData)
	}

	values := forecast.Values(series)
	model, err := forecast.Fit(values)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	baseline, err := model.Extrapolate(values[len(values)-1], params.Horizon)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}

	scenarios, err := forecast.Project(baseline, forecast.ScenarioConfig{
		AnnualRate:     decimal.NewFromFloat(params.AnnualRate),
		SpendingFactor: decimal.NewFromFloat(params.SpendingFactor),
		PeriodsPerYear: s.defaults.PeriodsPerYear,
	})
	if err != nil {
		if errors.Is(err, util.ErrInvariantViolation) {
			s.logger.Error("Forecast scenarios misaligned", "account_id", accountID, "error", err)
		}
		return nil, fmt.Errorf("forecast: %w", err)
	}

	weeks := forecast.FutureWeeks(series[len(series)-1].WeekStart, params.Horizon)
	if len(weeks) != len(scenarios.Baseline) {
		s.logger.Error("Forecast week labels misaligned", "account_id", accountID, "weeks", len(weeks), "points", len(scenarios.Baseline))
		return nil, fmt.Errorf("forecast: %d week labels for %d points: %w", len(weeks), len(scenarios.Baseline), util.ErrInvariantViolation)
	}

	s.logger.Debug("Forecast computed", "account_id", accountID, "history_weeks", len(series), "slope", model.Slope, "intercept", model.Intercept)

	return &domain.ForecastResult{
		AccountID:        accountID,
		Params:           params,
		History:          series,
		Weeks:            weeks,
		Baseline:         scenarios.Baseline,
		InterestBearing:  scenarios.InterestBearing,
		ImprovedSpending: scenarios.ImprovedSpending,
		Combined:         scenarios.Combined,
		GeneratedAt:      time.Now().UTC(),
	}, nil
}
