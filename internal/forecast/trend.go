// internal/forecast/trend.go
package forecast

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"goalflow/internal/domain"
	"goalflow/internal/util"
)

// varianceEpsilon below which the lagged values are treated as constant.
const varianceEpsilon = 1e-12

// Model is a first-order autoregression: next = Slope*prev + Intercept.
type Model struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Pairs     int     `json:"pairs"`
}

// Fit learns flow[t] ≈ a*flow[t-1] + b by least squares over all consecutive pairs.
// Fewer than two points cannot establish a trend.
func Fit(values []float64) (Model, error) {
	if len(values) < 2 {
		return Model{}, fmt.Errorf("fit trend: %d weekly buckets: %w", len(values), util.ErrInsufficientData)
	}

	xs, ys := values[:len(values)-1], values[1:]
	n := float64(len(xs))

	var meanX, meanY float64
	for i := range xs {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= n
	meanY /= n

	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}

	// Constant predictor: the best linear fit is the mean of the targets.
	if sxx < varianceEpsilon {
		return Model{Slope: 0, Intercept: meanY, Pairs: len(xs)}, nil
	}
	slope := sxy / sxx
	return Model{Slope: slope, Intercept: meanY - slope*meanX, Pairs: len(xs)}, nil
}

// PredictNext applies the fitted relationship once.
func (m Model) PredictNext(last float64) float64 {
	return m.Slope*last + m.Intercept
}

// Extrapolate iterates PredictNext horizon times starting from last, feeding each
// prediction into the next step. Iteration runs on unrounded values; each returned
// value is rounded to cents.
func (m Model) Extrapolate(last float64, horizon int) ([]decimal.Decimal, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("extrapolate: horizon %d: %w", horizon, util.ErrInvalidInput)
	}
	out := make([]decimal.Decimal, 0, horizon)
	v := last
	for i := 0; i < horizon; i++ {
		v = m.PredictNext(v)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			// The history supports no trend this far out; the request itself was well formed.
			return nil, fmt.Errorf("extrapolate: trend diverged at step %d of %d: %w", i+1, horizon, util.ErrInsufficientData)
		}
		out = append(out, decimal.NewFromFloat(v).Round(domain.AmountScale))
	}
	return out, nil
}
