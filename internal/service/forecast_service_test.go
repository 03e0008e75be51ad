// internal/service/forecast_service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"goalflow/internal/domain"
	"goalflow/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monday(week int) time.Time {
	// 2025-01-06 is the Monday of ISO week 2.
	return time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC).AddDate(0, 0, 7*(week-2))
}

func defaultParams() domain.ForecastParams {
	d := DefaultForecast()
	return domain.ForecastParams{Horizon: d.Horizon, AnnualRate: d.AnnualRate, SpendingFactor: d.SpendingFactor}
}

func TestForecast(t *testing.T) {
	ctx := context.Background()

	t.Run("LinearHistory", func(t *testing.T) {
		store := newMemStore()
		ledger := store.ledger(LedgerDeps{})
		ids := seedAccounts(t, ledger, 1)
		for i, amount := range []string{"100", "200", "300"} {
			_, err := ledger.RecordMovement(ctx, MovementInput{DestinationAccountID: ptr(ids[0]), Amount: dec(amount), OccurredAt: monday(2 + i)})
			require.NoError(t, err)
		}

		params := domain.ForecastParams{Horizon: 3, AnnualRate: 0, SpendingFactor: 1}
		res, err := store.forecaster(DefaultForecast()).Forecast(ctx, ids[0], params)
		require.NoError(t, err)

		assert.Equal(t, []string{"2025-W05", "2025-W06", "2025-W07"}, res.Weeks)
		require.Len(t, res.Baseline, 3)
		for i, want := range []string{"400", "500", "600"} {
			assert.Truef(t, res.Baseline[i].Equal(dec(want)), "step %d: got %s", i, res.Baseline[i])
			// Zero rate and unit factor leave every scenario equal to the baseline.
			assert.True(t, res.Combined[i].Equal(res.Baseline[i]))
		}
		assert.Len(t, res.History, 3)
		assert.Equal(t, params, res.Params)
	})

	t.Run("ScenarioLengthsMatchHorizon", func(t *testing.T) {
		store := newMemStore()
		ledger := store.ledger(LedgerDeps{})
		ids := seedAccounts(t, ledger, 2)
		for week, amount := range map[int]string{2: "250", 3: "80", 5: "300"} {
			_, err := ledger.RecordMovement(ctx, MovementInput{DestinationAccountID: ptr(ids[0]), Amount: dec(amount), OccurredAt: monday(week)})
			require.NoError(t, err)
		}
		_, err := ledger.RecordMovement(ctx, MovementInput{SourceAccountID: ptr(ids[0]), DestinationAccountID: ptr(ids[1]), Amount: dec("120"), OccurredAt: monday(4)})
		require.NoError(t, err)

		res, err := store.forecaster(DefaultForecast()).Forecast(ctx, ids[0], defaultParams())
		require.NoError(t, err)

		n := DefaultForecast().Horizon
		assert.Len(t, res.Weeks, n)
		assert.Len(t, res.Baseline, n)
		assert.Len(t, res.InterestBearing, n)
		assert.Len(t, res.ImprovedSpending, n)
		assert.Len(t, res.Combined, n)
		assert.Equal(t, "2025-W06", res.Weeks[0])
	})

	t.Run("ExplosiveHistoryIsInsufficient", func(t *testing.T) {
		store := newMemStore()
		ledger := store.ledger(LedgerDeps{})
		ids := seedAccounts(t, ledger, 1)
		for i, amount := range []string{"1", "1000", "1000000", "1000000000"} {
			_, err := ledger.RecordMovement(ctx, MovementInput{DestinationAccountID: ptr(ids[0]), Amount: dec(amount), OccurredAt: monday(2 + i)})
			require.NoError(t, err)
		}

		params := domain.ForecastParams{Horizon: 120, AnnualRate: 0.035, SpendingFactor: 1.05}
		_, err := store.forecaster(DefaultForecast()).Forecast(ctx, ids[0], params)
		assert.ErrorIs(t, err, util.ErrInsufficientData)
		assert.NotErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("InsufficientHistory", func(t *testing.T) {
		store := newMemStore()
		ledger := store.ledger(LedgerDeps{})
		ids := seedAccounts(t, ledger, 1)
		svc := store.forecaster(DefaultForecast())

		_, err := svc.Forecast(ctx, ids[0], defaultParams())
		assert.ErrorIs(t, err, util.ErrInsufficientData)

		// Two movements in the same week are still one bucket.
		for _, amount := range []string{"10", "20"} {
			_, err := ledger.RecordMovement(ctx, MovementInput{DestinationAccountID: ptr(ids[0]), Amount: dec(amount), OccurredAt: monday(2)})
			require.NoError(t, err)
		}
		_, err = svc.Forecast(ctx, ids[0], defaultParams())
		assert.ErrorIs(t, err, util.ErrInsufficientData)
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		_, err := newMemStore().forecaster(DefaultForecast()).Forecast(ctx, 404, defaultParams())
		assert.ErrorIs(t, err, util.ErrAccountNotFound)
	})

	t.Run("InvalidParams", func(t *testing.T) {
		svc := newMemStore().forecaster(DefaultForecast())
		for name, p := range map[string]domain.ForecastParams{
			"ZeroHorizon":  {Horizon: 0, AnnualRate: 0.03, SpendingFactor: 1},
			"NegativeRate": {Horizon: 4, AnnualRate: -0.01, SpendingFactor: 1},
			"ZeroFactor":   {Horizon: 4, AnnualRate: 0.03, SpendingFactor: 0},
			"HugeHorizon":  {Horizon: 10000, AnnualRate: 0.03, SpendingFactor: 1},
		} {
			_, err := svc.Forecast(ctx, 1, p)
			assert.ErrorIs(t, err, util.ErrInvalidInput, name)
		}
	})
}

func TestWeeklyFlow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := store.ledger(LedgerDeps{})
	ids := seedAccounts(t, ledger, 2)

	inputs := []MovementInput{
		{DestinationAccountID: ptr(ids[0]), Amount: dec("500"), OccurredAt: monday(2)},
		{SourceAccountID: ptr(ids[0]), Amount: dec("75.25"), OccurredAt: monday(2).Add(48 * time.Hour)},
		{SourceAccountID: ptr(ids[0]), DestinationAccountID: ptr(ids[1]), Amount: dec("100"), OccurredAt: monday(4)},
		{SourceAccountID: ptr(ids[1]), DestinationAccountID: ptr(ids[0]), Amount: dec("30"), OccurredAt: monday(4)},
	}
	for _, in := range inputs {
		_, err := ledger.RecordMovement(ctx, in)
		require.NoError(t, err)
	}

	series, err := store.forecaster(DefaultForecast()).WeeklyFlow(ctx, ids[0])
	require.NoError(t, err)

	require.Len(t, series, 3)
	assert.Equal(t, "2025-W02", series[0].Week)
	assert.True(t, series[0].NetFlow.Equal(dec("424.75")))
	assert.Equal(t, "2025-W03", series[1].Week)
	assert.True(t, series[1].NetFlow.IsZero(), "empty weeks are zero-filled")
	assert.True(t, series[2].NetFlow.Equal(dec("-70")))

	// The weekly flows add up to the account balance.
	total := decimal.Zero
	for _, p := range series {
		total = total.Add(p.NetFlow)
	}
	account, err := ledger.GetAccount(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, total.Equal(account.Balance))

	_, err = store.forecaster(DefaultForecast()).WeeklyFlow(ctx, 404)
	assert.ErrorIs(t, err, util.ErrAccountNotFound)
}
