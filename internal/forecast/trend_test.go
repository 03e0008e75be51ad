// internal/forecast/trend_test.go
package forecast

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalflow/internal/util"
)

func TestFit(t *testing.T) {
	t.Run("InsufficientData", func(t *testing.T) {
		_, err := Fit(nil)
		assert.ErrorIs(t, err, util.ErrInsufficientData)

		_, err = Fit([]float64{42})
		assert.ErrorIs(t, err, util.ErrInsufficientData)
	})

	t.Run("RecoversExactLinearRelation", func(t *testing.T) {
		// y[t] = 0.5*y[t-1] + 10
		values := []float64{100}
		for i := 0; i < 6; i++ {
			values = append(values, 0.5*values[len(values)-1]+10)
		}

		m, err := Fit(values)

		require.NoError(t, err)
		assert.InDelta(t, 0.5, m.Slope, 1e-9)
		assert.InDelta(t, 10, m.Intercept, 1e-9)
		assert.Equal(t, 6, m.Pairs)
		assert.InDelta(t, 0.5*values[6]+10, m.PredictNext(values[6]), 1e-9)
	})

	t.Run("SinglePairFallsBackToMean", func(t *testing.T) {
		m, err := Fit([]float64{70, 50})

		require.NoError(t, err)
		assert.Zero(t, m.Slope)
		assert.InDelta(t, 50, m.Intercept, 1e-9)
	})

	t.Run("ConstantHistory", func(t *testing.T) {
		m, err := Fit([]float64{25, 25, 25, 25})

		require.NoError(t, err)
		assert.InDelta(t, 25, m.PredictNext(25), 1e-9)
	})
}

func TestExtrapolate(t *testing.T) {
	t.Run("IteratesAndRounds", func(t *testing.T) {
		m := Model{Slope: 0.5, Intercept: 1.0 / 3.0}

		out, err := m.Extrapolate(10, 3)

		require.NoError(t, err)
		require.Len(t, out, 3)
		// 5.3333.., 3.0, 1.8333..
		assert.True(t, decimal.RequireFromString("5.33").Equal(out[0]), "got %s", out[0])
		assert.True(t, decimal.RequireFromString("3").Equal(out[1]), "got %s", out[1])
		assert.True(t, decimal.RequireFromString("1.83").Equal(out[2]), "got %s", out[2])
		for _, v := range out {
			assert.LessOrEqual(t, -v.Exponent(), int32(2))
		}
	})

	t.Run("RejectsEmptyHorizon", func(t *testing.T) {
		_, err := Model{}.Extrapolate(1, 0)
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("Diverges", func(t *testing.T) {
		_, err := Model{Slope: 1e200}.Extrapolate(1e200, 5)
		assert.ErrorIs(t, err, util.ErrInsufficientData)
		assert.NotErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("ExplosiveHistoryWithinValidHorizon", func(t *testing.T) {
		m, err := Fit([]float64{1, 1000, 1e6, 1e9})
		require.NoError(t, err)

		_, err = m.Extrapolate(1e9, 120)
		require.Error(t, err)
		assert.True(t, util.IsError(err, util.ErrInsufficientData))
		assert.False(t, util.IsError(err, util.ErrInvalidInput))
	})

	t.Run("StableModelConverges", func(t *testing.T) {
		m := Model{Slope: 0.2, Intercept: 80}
		out, err := m.Extrapolate(0, 50)
		require.NoError(t, err)
		// Fixed point b/(1-a) = 100.
		assert.InDelta(t, 100, out[49].InexactFloat64(), 0.01)
		assert.False(t, math.IsNaN(out[0].InexactFloat64()))
	})
}
