package analytics

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/pnl"
	"tradeJournal/internal/ports"
)

// RiskConfig parameterises the risk-adjusted metrics.
type RiskConfig struct {
	RiskFreeRate   float64 // annual, as a decimal (0.06 = 6%)
	PeriodsPerYear int     // annualisation factor of the return series
	VaRConfidence  float64 // e.g. 0.95
}

func (c RiskConfig) withDefaults() RiskConfig {
	if c.PeriodsPerYear == 0 {
		c.PeriodsPerYear = 252
	}
	if c.VaRConfidence == 0 {
		c.VaRConfidence = 0.95
	}
	return c
}

func (c RiskConfig) validate() error {
	var problems []string
	if c.PeriodsPerYear <= 0 {
		problems = append(problems, "periodsPerYear must be positive")
	}
	if c.VaRConfidence <= 0 || c.VaRConfidence >= 1 {
		problems = append(problems, "varConfidence must be between 0 and 1")
	}
	return ports.NewInvalidInputError(problems...)
}

// RiskMetrics are risk-adjusted figures over a per-trade return series.
type RiskMetrics struct {
	Trades        int     `json:"trades"`
	MeanReturn    float64 `json:"meanReturn"`
	Volatility    float64 `json:"volatility"`
	SharpeRatio   float64 `json:"sharpeRatio"`
	SortinoRatio  float64 `json:"sortinoRatio"`
	ValueAtRisk   float64 `json:"valueAtRisk"`
	VaRConfidence float64 `json:"varConfidence"`
	MaxDrawdown   float64 `json:"maxDrawdown"` // absolute, in P&L currency
}

// RiskMetrics computes risk metrics over the user's closed trades in the
// range. Each trade contributes percentageGain/100, ordered by exit time.
func (a *Aggregator) RiskMetrics(ctx context.Context, userID string, r ports.DateRange) (*RiskMetrics, error) {
	trades, err := a.closedTrades(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	sortByExit(trades)

	returns := make([]float64, len(trades))
	pnls := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = t.PnL.PercentageGain / 100
		pnls[i] = t.PnL.Net
	}

	m := &RiskMetrics{
		Trades:        len(trades),
		SharpeRatio:   SharpeRatio(returns, a.risk.RiskFreeRate, a.risk.PeriodsPerYear),
		SortinoRatio:  SortinoRatio(returns, a.risk.RiskFreeRate, a.risk.PeriodsPerYear),
		ValueAtRisk:   ValueAtRisk(returns, a.risk.VaRConfidence),
		VaRConfidence: a.risk.VaRConfidence,
		MaxDrawdown:   MaxDrawdown(pnls),
	}
	if len(returns) > 0 {
		m.MeanReturn = round4(stat.Mean(returns, nil))
	}
	if len(returns) > 1 {
		m.Volatility = round4(stat.StdDev(returns, nil))
	}
	a.logger.Debug(ctx, "Computed risk metrics", map[string]interface{}{
		"userID": userID,
		"trades": m.Trades,
	})
	return m, nil
}

// SharpeRatio returns the annualised Sharpe ratio of returns:
// (mean − riskFreeRate/periodsPerYear) / stdDev × √periodsPerYear.
// It is 0 with fewer than 2 returns or zero deviation.
func SharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	excess := mean - riskFreeRate/float64(periodsPerYear)
	return round4(excess / std * math.Sqrt(float64(periodsPerYear)))
}

// SortinoRatio is SharpeRatio with the standard deviation taken over the
// negative returns only. It is 0 with fewer than 2 negative returns.
func SortinoRatio(returns []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return 0
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return 0
	}
	dd := stat.StdDev(downside, nil)
	if dd == 0 || math.IsNaN(dd) {
		return 0
	}
	excess := stat.Mean(returns, nil) - riskFreeRate/float64(periodsPerYear)
	return round4(excess / dd * math.Sqrt(float64(periodsPerYear)))
}

// ValueAtRisk returns the historical VaR: the (1−confidence) empirical
// quantile of returns. A loss shows as a negative number.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 || confidence <= 0 || confidence >= 1 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	// Snap p so that e.g. 1-0.95 does not land just above 0.05.
	p := math.Round((1-confidence)*1e9) / 1e9
	return round4(stat.Quantile(p, stat.Empirical, sorted, nil))
}

// MaxDrawdown returns the largest peak-to-trough decline of the cumulative
// sum of pnls, starting from zero.
func MaxDrawdown(pnls []float64) float64 {
	var equity, peak, maxDD float64
	for _, p := range pnls {
		equity += p
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}
	}
	return pnl.Round2(maxDD)
}

func sortByExit(trades []*domain.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		return exitTime(trades[i]).Before(exitTime(trades[j]))
	})
}

func round4(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*1e4) / 1e4
}
