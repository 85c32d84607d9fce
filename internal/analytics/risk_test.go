package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharpeRatio(t *testing.T) {
	assert.Equal(t, 0.0, SharpeRatio(nil, 0, 252))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01}, 0, 252), "needs at least two returns")
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01, 0.01, 0.01}, 0, 252), "zero deviation")

	returns := []float64{0.01, 0.02, -0.01, 0.03}
	// mean 0.0125, sample std 0.017078
	want := math.Round(0.0125/0.0170782512765993*math.Sqrt(252)*1e4) / 1e4
	assert.InDelta(t, want, SharpeRatio(returns, 0, 252), 1e-4)

	withRiskFree := SharpeRatio(returns, 0.0252, 252)
	assert.Less(t, withRiskFree, SharpeRatio(returns, 0, 252))
}

func TestSortinoRatio(t *testing.T) {
	assert.Equal(t, 0.0, SortinoRatio([]float64{0.02, 0.03, -0.01}, 0, 12))

	returns := []float64{0.04, -0.01, -0.03, 0.02}
	// downside {-0.01, -0.03}: sample std 0.0141421
	want := 0.005 / 0.01414213562 * math.Sqrt(12)
	assert.InDelta(t, want, SortinoRatio(returns, 0, 12), 1e-3)
	assert.Greater(t, SortinoRatio(returns, 0, 12), SharpeRatio(returns, 0, 12))
}

func TestValueAtRisk(t *testing.T) {
	assert.Equal(t, 0.0, ValueAtRisk(nil, 0.95))
	assert.Equal(t, 0.0, ValueAtRisk([]float64{0.1}, 1))

	returns := make([]float64, 0, 100)
	for i := 100; i >= 1; i-- {
		returns = append(returns, float64(i-50)/100)
	}
	// Sorted -0.49..0.50; the empirical 5% quantile is the 5th value.
	assert.Equal(t, -0.45, ValueAtRisk(returns, 0.95))
	assert.Equal(t, -0.4, ValueAtRisk(returns, 0.9))
	assert.Equal(t, 0.5, returns[0], "input is not reordered")
}

func TestMaxDrawdown(t *testing.T) {
	assert.Equal(t, 0.0, MaxDrawdown(nil))
	assert.Equal(t, 0.0, MaxDrawdown([]float64{10, 20, 30}))
	assert.Equal(t, 70.0, MaxDrawdown([]float64{100, -50, 30, -50, 200}))
	assert.Equal(t, 30.0, MaxDrawdown([]float64{-10, -20, 25}))
}
