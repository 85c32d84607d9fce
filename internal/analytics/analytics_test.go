package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...map[string]interface{})        {}
func (nopLogger) Info(context.Context, string, ...map[string]interface{})         {}
func (nopLogger) Warn(context.Context, string, ...map[string]interface{})         {}
func (nopLogger) Error(context.Context, error, string, ...map[string]interface{}) {}

// fakeReader returns the configured trades, applying only the status filter.
type fakeReader struct {
	trades  []*domain.Trade
	totals  *ports.SummaryTotals
	err     error
	lastFil ports.TradeFilter
}

func (f *fakeReader) Find(_ context.Context, _ string, filter ports.TradeFilter, _ ports.FindOptions) ([]*domain.Trade, error) {
	f.lastFil = filter
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Trade
	for _, t := range f.trades {
		for _, s := range filter.Statuses {
			if t.Status == s {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (f *fakeReader) AggregateSummary(context.Context, string, ports.DateRange) (*ports.SummaryTotals, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.totals, nil
}

var base = time.Date(2024, 1, 10, 9, 15, 0, 0, time.UTC)

func closed(symbol, strategy string, net float64, exitAfter time.Duration, mistakes ...string) *domain.Trade {
	exit := domain.Leg{Price: 1, Quantity: 1, Timestamp: base.Add(exitAfter)}
	return &domain.Trade{
		Symbol:        symbol,
		Exchange:      "NSE",
		Segment:       domain.SegmentOptions,
		TradeType:     domain.TradeTypeIntraday,
		Strategy:      strategy,
		Status:        domain.StatusClosed,
		Entry:         domain.Leg{Price: 1, Quantity: 1, Timestamp: base},
		Exit:          &exit,
		PnL:           domain.PnL{Net: net, PercentageGain: net / 10, Charges: 1},
		HoldingPeriod: int64(exitAfter / time.Minute),
		Mistakes:      mistakes,
	}
}

func newTestAggregator(t *testing.T, r *fakeReader) *Aggregator {
	t.Helper()
	a, err := New(Config{Store: r, Logger: nopLogger{}})
	require.NoError(t, err)
	return a
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Logger: nopLogger{}})
	assert.Error(t, err)

	_, err = New(Config{Store: &fakeReader{}, Logger: nopLogger{}, Risk: RiskConfig{VaRConfidence: 1.5}})
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
}

func TestSummaryFromTotals(t *testing.T) {
	// Ten closed trades, six winners and four losers.
	s := SummaryFromTotals(ports.SummaryTotals{
		TotalTrades: 12, OpenTrades: 1, CancelledTrades: 1, ClosedTrades: 10,
		WinningTrades: 6, LosingTrades: 4,
		TotalPnL: 300, TotalWinPnL: 600, TotalLossPnL: -300,
		LargestWin: 150, LargestLoss: -120, TotalCharges: 40.555,
	})

	assert.Equal(t, 60.0, s.WinRate)
	assert.Equal(t, 100.0, s.AvgWin)
	assert.Equal(t, -75.0, s.AvgLoss)
	assert.Equal(t, 2.0, s.ProfitFactor)
	assert.Equal(t, 40.56, s.TotalCharges)
	assert.Equal(t, 12, s.TotalTrades)
}

func TestProfitFactor(t *testing.T) {
	assert.Equal(t, 1.5, ProfitFactor(300, -200))
	assert.True(t, math.IsInf(ProfitFactor(100, 0), 1))
	assert.Equal(t, 0.0, ProfitFactor(0, 0))
	assert.Equal(t, 0.0, ProfitFactor(0, -50))
}

func TestWinRate_NoClosedTrades(t *testing.T) {
	assert.Equal(t, 0.0, WinRate(0, 0))
	assert.Equal(t, 33.33, WinRate(1, 2))
}

func TestSummary_MarshalJSONInfinity(t *testing.T) {
	raw, err := json.Marshal(Summary{WinningTrades: 1, ProfitFactor: math.Inf(1)})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Infinity", decoded["profitFactor"])
	assert.Equal(t, float64(1), decoded["winningTrades"])

	raw, err = json.Marshal(Summary{ProfitFactor: 2.5})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"profitFactor":2.5`)
}

func TestAggregator_Summary(t *testing.T) {
	r := &fakeReader{totals: &ports.SummaryTotals{ClosedTrades: 1, WinningTrades: 1, TotalWinPnL: 10, TotalPnL: 10}}
	a := newTestAggregator(t, r)

	s, err := a.Summary(context.Background(), "u1", ports.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.WinRate)
	assert.True(t, math.IsInf(s.ProfitFactor, 1))

	r.err = errors.New("boom")
	_, err = a.Summary(context.Background(), "u1", ports.DateRange{})
	assert.Error(t, err)
}

func TestBaseSymbol(t *testing.T) {
	tests := map[string]string{
		"NIFTY 22000 CE":        "NIFTY",
		"BANKNIFTY24JAN48000PE": "BANKNIFTY",
		"RELIANCE":              "RELIANCE",
		"M&M":                   "M&M",
		"123ABC":                "123ABC",
	}
	for in, want := range tests {
		assert.Equal(t, want, BaseSymbol(in), in)
	}
}

func TestAggregator_StatisticsBySymbol(t *testing.T) {
	r := &fakeReader{trades: []*domain.Trade{
		closed("NIFTY 22000 CE", "breakout", 100, 30*time.Minute),
		closed("NIFTY 22100 PE", "breakout", -40, 90*time.Minute),
		closed("RELIANCE", "", 250, 10*time.Minute),
		closed("TCS", "", -20, time.Minute),
		{Symbol: "INFY", Status: domain.StatusOpen},
	}}
	a := newTestAggregator(t, r)

	stats, err := a.Statistics(context.Background(), "u1", GroupBySymbol, ports.DateRange{})
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, []domain.TradeStatus{domain.StatusClosed}, r.lastFil.Statuses)

	assert.Equal(t, "RELIANCE", stats[0].Key)
	nifty := stats[1]
	assert.Equal(t, "NIFTY", nifty.Key)
	assert.Equal(t, 2, nifty.TotalTrades)
	assert.Equal(t, 60.0, nifty.TotalPnL)
	assert.Equal(t, 30.0, nifty.AvgPnL)
	assert.Equal(t, 100.0, nifty.MaxProfit)
	assert.Equal(t, -40.0, nifty.MaxLoss)
	assert.Equal(t, 60.0, nifty.AvgHoldingPeriod)
	assert.Equal(t, 50.0, nifty.WinRate)
	assert.Equal(t, "TCS", stats[2].Key)
}

func TestAggregator_StatisticsRejectsUnknownGrouping(t *testing.T) {
	a := newTestAggregator(t, &fakeReader{})
	_, err := a.Statistics(context.Background(), "u1", GroupBy("broker"), ports.DateRange{})
	assert.ErrorIs(t, err, ports.ErrInvalidInput)
}

func TestAggregator_StrategyAnalytics(t *testing.T) {
	r := &fakeReader{trades: []*domain.Trade{
		closed("A", "breakout", 50, time.Minute),
		closed("B", "  ", 10, time.Minute),
		closed("C", "", 10, time.Minute),
	}}
	a := newTestAggregator(t, r)

	stats, err := a.StrategyAnalytics(context.Background(), "u1", ports.DateRange{})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "breakout", stats[0].Key)
	assert.Equal(t, NoStrategyLabel, stats[1].Key)
	assert.Equal(t, 2, stats[1].TotalTrades)
}

func TestAggregator_MistakeAnalytics(t *testing.T) {
	r := &fakeReader{trades: []*domain.Trade{
		closed("A", "", -50, time.Minute, "fomo", "oversized"),
		closed("B", "", -30, time.Minute, "fomo", "fomo"),
		closed("C", "", 80, time.Minute),
		closed("D", "", 20, time.Minute, " "),
	}}
	a := newTestAggregator(t, r)

	stats, err := a.MistakeAnalytics(context.Background(), "u1", ports.DateRange{})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "oversized", stats[0].Key)
	assert.Equal(t, -50.0, stats[0].TotalPnL)
	assert.Equal(t, "fomo", stats[1].Key)
	assert.Equal(t, 2, stats[1].TotalTrades)
	assert.Equal(t, -80.0, stats[1].TotalPnL)
	assert.Equal(t, 2, stats[1].LosingTrades)
}

func TestAggregator_RiskMetrics(t *testing.T) {
	r := &fakeReader{trades: []*domain.Trade{
		closed("A", "", 100, 3*time.Hour),
		closed("A", "", -50, time.Hour),
		closed("A", "", 20, 2*time.Hour),
	}}
	a := newTestAggregator(t, r)

	m, err := a.RiskMetrics(context.Background(), "u1", ports.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Trades)
	assert.Equal(t, 0.95, m.VaRConfidence)
	// Ordered by exit: -50, +20, +100 -> drawdown 50 from the starting zero.
	assert.Equal(t, 50.0, m.MaxDrawdown)
	assert.Greater(t, m.SharpeRatio, 0.0)
	assert.Equal(t, 0.0, m.SortinoRatio, "a single negative return has no downside deviation")
	assert.Equal(t, -0.05, m.ValueAtRisk)
}
