package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeJournal/internal/adapters/memcache"
	"tradeJournal/internal/adapters/sqlite"
	"tradeJournal/internal/cache"
	"tradeJournal/internal/domain"
	"tradeJournal/internal/metrics"
	"tradeJournal/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// failingCache is a cache backend that is always unreachable.
type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, ports.ErrCacheUnavailable
}

func (failingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return ports.ErrCacheUnavailable
}

func (failingCache) Delete(ctx context.Context, keys ...string) error {
	return ports.ErrCacheUnavailable
}

func (failingCache) FlushPrefix(ctx context.Context, prefix string) error {
	return ports.ErrCacheUnavailable
}

type testEnv struct {
	svc     *TradeService
	repo    *sqlite.Repository
	backend ports.Cache
	logger  *mockLogger
	metrics *metrics.Metrics
}

// setupTestService wires the service to a temporary SQLite database and the given cache backend.
func setupTestService(t *testing.T, backend ports.Cache) *testEnv {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "trade-journal-app-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	logger := &mockLogger{}
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: filepath.Join(tmpDir, "test.db"), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	m := metrics.New(prometheus.NewRegistry())
	layer, err := cache.New(cache.Config{Backend: backend, Logger: logger, Metrics: m})
	require.NoError(t, err)

	svc, err := NewTradeService(Config{Store: repo, Cache: layer, Logger: logger, Metrics: m})
	require.NoError(t, err)

	return &testEnv{svc: svc, repo: repo, backend: backend, logger: logger, metrics: m}
}

var base = time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func str(v string) *string   { return &v }

func longInput(symbol string, price float64, qty int64) CreateTradeInput {
	return CreateTradeInput{
		Symbol:    symbol,
		Exchange:  "NSE",
		Segment:   domain.SegmentEquity,
		TradeType: domain.TradeTypeIntraday,
		Position:  domain.PositionLong,
		Entry:     domain.Leg{Price: price, Quantity: qty, Timestamp: base, OrderType: domain.OrderTypeMarket, Brokerage: f64(0)},
	}
}

func exitAt(price float64, qty int64, after time.Duration) ExitInput {
	return ExitInput{Price: price, Quantity: qty, Timestamp: base.Add(after), OrderType: domain.OrderTypeMarket, Brokerage: f64(0)}
}

func TestNewTradeService_MissingDependencies(t *testing.T) {
	_, err := NewTradeService(Config{})
	assert.Error(t, err)
}

func TestTradeService_CreateTrade(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	in := longInput("RELIANCE", 100, 10)
	in.Entry.Brokerage = f64(10)
	in.StopLoss = f64(95)
	in.Target = f64(115)
	in.Tags = []string{" breakout", "momentum", "breakout"}
	in.Strategy = "  ORB "

	trade, err := env.svc.CreateTrade(ctx, "u1", in)
	require.NoError(t, err)

	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, domain.StatusOpen, trade.Status)
	assert.Nil(t, trade.Exit)
	assert.Equal(t, domain.PnL{Net: -10, Charges: 10, Brokerage: 10}, trade.PnL)
	assert.Equal(t, 3.0, trade.RiskRewardRatio)
	assert.Equal(t, 101.0, trade.BreakevenPrice)
	assert.Equal(t, []string{"breakout", "momentum"}, trade.Tags)
	assert.Equal(t, "ORB", trade.Strategy)

	stored, err := env.svc.GetTrade(ctx, "u1", trade.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.ID, stored.ID)
	assert.Equal(t, trade.PnL, stored.PnL)
}

func TestTradeService_CreateTrade_InvalidInput(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	in := longInput("", -1, 0)
	in.Segment = "crypto"
	_, err := env.svc.CreateTrade(ctx, "u1", in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))

	var inputErr *ports.InvalidInputError
	require.True(t, errors.As(err, &inputErr))
	assert.Len(t, inputErr.Problems, 4)

	_, err = env.svc.CreateTrade(ctx, " ", longInput("TCS", 100, 1))
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
}

func TestTradeService_ExitTrade_FullExit(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	in := longInput("RELIANCE", 100, 10)
	in.Entry.Brokerage = f64(10)
	trade, err := env.svc.CreateTrade(ctx, "u1", in)
	require.NoError(t, err)

	exit := exitAt(120, 10, 150*time.Minute)
	exit.Brokerage = f64(10)
	closed, err := env.svc.ExitTrade(ctx, "u1", trade.ID, exit)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusClosed, closed.Status)
	require.NotNil(t, closed.Exit)
	assert.Equal(t, 120.0, closed.Exit.Price)
	assert.Equal(t, domain.PnL{Gross: 200, Net: 180, Charges: 20, Brokerage: 20, PercentageGain: 18, IsProfit: true}, closed.PnL)
	assert.Equal(t, int64(150), closed.HoldingPeriod)
	assert.Equal(t, 102.0, closed.BreakevenPrice)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Transitions.WithLabelValues("exit")))
}

func TestTradeService_ExitTrade_ShortPosition(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	in := longInput("NIFTY FUT", 100, 5)
	in.Position = domain.PositionShort
	in.Segment = domain.SegmentFutures
	trade, err := env.svc.CreateTrade(ctx, "u1", in)
	require.NoError(t, err)

	closed, err := env.svc.ExitTrade(ctx, "u1", trade.ID, exitAt(80, 5, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 100.0, closed.PnL.Gross)
	assert.Equal(t, 100.0, closed.PnL.Net)
	assert.True(t, closed.PnL.IsProfit)
}

func TestTradeService_ExitTrade_PartialThenClose(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	trade, err := env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 10))
	require.NoError(t, err)

	partial, err := env.svc.ExitTrade(ctx, "u1", trade.ID, exitAt(110, 4, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartial, partial.Status)
	assert.Equal(t, 100.0, partial.PnL.Gross, "gross is measured on the entry quantity")

	closed, err := env.svc.ExitTrade(ctx, "u1", trade.ID, exitAt(105, 10, 2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.Equal(t, int64(10), closed.Exit.Quantity)
	assert.Equal(t, 50.0, closed.PnL.Net)
	assert.Equal(t, int64(120), closed.HoldingPeriod)
}

func TestTradeService_ExitTrade_Errors(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	open, err := env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 10))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   ExitInput
	}{
		{"quantity above entry", exitAt(110, 11, time.Hour)},
		{"exit before entry", exitAt(110, 10, -time.Minute)},
		{"non-positive price", exitAt(0, 10, time.Hour)},
		{"missing timestamp", ExitInput{Price: 110, Quantity: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.ExitTrade(ctx, "u1", open.ID, tt.in)
			assert.True(t, errors.Is(err, ports.ErrInvalidInput), "got %v", err)
		})
	}

	t.Run("unknown trade", func(t *testing.T) {
		_, err := env.svc.ExitTrade(ctx, "u1", "missing", exitAt(110, 10, time.Hour))
		assert.True(t, errors.Is(err, ports.ErrNotFound))
	})

	t.Run("other user's trade", func(t *testing.T) {
		_, err := env.svc.ExitTrade(ctx, "u2", open.ID, exitAt(110, 10, time.Hour))
		assert.True(t, errors.Is(err, ports.ErrNotFound))
	})

	t.Run("closed trade", func(t *testing.T) {
		_, err := env.svc.ExitTrade(ctx, "u1", open.ID, exitAt(110, 10, time.Hour))
		require.NoError(t, err)
		_, err = env.svc.ExitTrade(ctx, "u1", open.ID, exitAt(120, 10, time.Hour))
		assert.True(t, errors.Is(err, ports.ErrTradeAlreadyClosed))
	})

	t.Run("cancelled trade", func(t *testing.T) {
		trade, err := env.svc.CreateTrade(ctx, "u1", longInput("TCS", 100, 1))
		require.NoError(t, err)
		_, err = env.svc.CancelTrade(ctx, "u1", trade.ID)
		require.NoError(t, err)

		_, err = env.svc.ExitTrade(ctx, "u1", trade.ID, exitAt(110, 1, time.Hour))
		var stateErr *ports.InvalidTradeStateError
		require.True(t, errors.As(err, &stateErr))
		assert.Equal(t, domain.StatusCancelled, stateErr.Current)
		assert.Equal(t, "open or partial", stateErr.Expected)
	})
}

func TestTradeService_CancelTrade(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	open, err := env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 10))
	require.NoError(t, err)
	partial, err := env.svc.CreateTrade(ctx, "u1", longInput("TCS", 100, 10))
	require.NoError(t, err)
	_, err = env.svc.ExitTrade(ctx, "u1", partial.ID, exitAt(101, 5, time.Hour))
	require.NoError(t, err)

	for _, id := range []string{open.ID, partial.ID} {
		cancelled, err := env.svc.CancelTrade(ctx, "u1", id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	}

	_, err = env.svc.CancelTrade(ctx, "u1", open.ID)
	assert.True(t, errors.Is(err, ports.ErrInvalidTradeState))

	closed, err := env.svc.CreateTrade(ctx, "u1", longInput("HDFC", 100, 10))
	require.NoError(t, err)
	_, err = env.svc.ExitTrade(ctx, "u1", closed.ID, exitAt(101, 10, time.Hour))
	require.NoError(t, err)

	_, err = env.svc.CancelTrade(ctx, "u1", closed.ID)
	var stateErr *ports.InvalidTradeStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, domain.StatusClosed, stateErr.Current)
}

func TestTradeService_UpdateTrade_Open(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	in := longInput("INFY", 100, 10)
	in.StopLoss = f64(95)
	in.Target = f64(110)
	trade, err := env.svc.CreateTrade(ctx, "u1", in)
	require.NoError(t, err)

	updated, err := env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{
		EntryPrice:     f64(98),
		EntryBrokerage: f64(20),
		Target:         f64(113),
		Notes:          str("moved stop after news"),
		Tags:           []string{"news"},
	})
	require.NoError(t, err)
	assert.Equal(t, 98.0, updated.Entry.Price)
	assert.Equal(t, -20.0, updated.PnL.Net)
	assert.Equal(t, 5.0, updated.RiskRewardRatio)
	assert.Equal(t, 100.0, updated.BreakevenPrice)
	assert.Equal(t, "moved stop after news", updated.Notes)
	assert.Equal(t, []string{"news"}, updated.Tags)
	assert.Equal(t, domain.StatusOpen, updated.Status)

	_, err = env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{ExitPrice: f64(120)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
	assert.Contains(t, err.Error(), "exitPrice")

	_, err = env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{EntryQuantity: i64(0)})
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))

	_, err = env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{})
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
}

func TestTradeService_UpdateTrade_ClosedCorrection(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	trade, err := env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 10))
	require.NoError(t, err)
	_, err = env.svc.ExitTrade(ctx, "u1", trade.ID, exitAt(120, 10, time.Hour))
	require.NoError(t, err)

	t.Run("price correction recomputes pnl", func(t *testing.T) {
		updated, err := env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{ExitPrice: f64(130), ExitBrokerage: f64(5)})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusClosed, updated.Status)
		assert.Equal(t, 300.0, updated.PnL.Gross)
		assert.Equal(t, 295.0, updated.PnL.Net)
		assert.Equal(t, 5.0, updated.PnL.Charges)
	})

	t.Run("annotation only keeps pnl", func(t *testing.T) {
		before, err := env.svc.GetTrade(ctx, "u1", trade.ID)
		require.NoError(t, err)
		updated, err := env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{Mistakes: []string{"late exit"}, Psychology: str("greedy")})
		require.NoError(t, err)
		assert.Equal(t, before.PnL, updated.PnL)
		assert.Equal(t, []string{"late exit"}, updated.Mistakes)
		assert.Equal(t, "greedy", updated.Psychology)
	})

	t.Run("non-correctable fields are rejected", func(t *testing.T) {
		_, err := env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{InstrumentType: str("FUT"), EntryTaxes: &domain.Taxes{STT: 1}, Notes: str("x")})
		var inputErr *ports.InvalidInputError
		require.True(t, errors.As(err, &inputErr))
		assert.Contains(t, err.Error(), "entryTaxes")
		assert.Contains(t, err.Error(), "instrumentType")

		stored, err := env.svc.GetTrade(ctx, "u1", trade.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.InstrumentType)
		assert.Empty(t, stored.Notes, "a rejected patch writes nothing")
	})

	t.Run("correction cannot reopen a closed trade", func(t *testing.T) {
		_, err := env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{ExitQuantity: i64(5)})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ports.ErrInvalidInput))
		assert.Contains(t, err.Error(), "use exit instead")
	})

	t.Run("correction cannot oversize the exit", func(t *testing.T) {
		_, err := env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{EntryQuantity: i64(8)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds entry.quantity")
	})
}

func TestTradeService_CorrectTrade(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	trade, err := env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 10))
	require.NoError(t, err)

	_, err = env.svc.CorrectTrade(ctx, "u1", trade.ID, TradeCorrection{ExitPrice: f64(120)})
	var stateErr *ports.InvalidTradeStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, domain.StatusOpen, stateErr.Current)

	_, err = env.svc.ExitTrade(ctx, "u1", trade.ID, exitAt(110, 4, time.Hour))
	require.NoError(t, err)

	corrected, err := env.svc.CorrectTrade(ctx, "u1", trade.ID, TradeCorrection{ExitQuantity: i64(6), ExitTimestamp: timePtr(base.Add(90 * time.Minute))})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartial, corrected.Status)
	assert.Equal(t, int64(6), corrected.Exit.Quantity)
	assert.Equal(t, int64(90), corrected.HoldingPeriod)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestTradeService_UpdateTrade_Cancelled(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	trade, err := env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 10))
	require.NoError(t, err)
	_, err = env.svc.CancelTrade(ctx, "u1", trade.ID)
	require.NoError(t, err)

	updated, err := env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{Notes: str("fat finger"), Tags: []string{"error"}})
	require.NoError(t, err)
	assert.Equal(t, "fat finger", updated.Notes)
	assert.Equal(t, []string{"error"}, updated.Tags)

	_, err = env.svc.UpdateTrade(ctx, "u1", trade.ID, TradePatch{Strategy: str("ORB")})
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
}

func TestTradeService_DeleteTrade(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	trade, err := env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 10))
	require.NoError(t, err)
	_, err = env.svc.GetTrade(ctx, "u1", trade.ID)
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteTrade(ctx, "u1", trade.ID))

	_, err = env.svc.GetTrade(ctx, "u1", trade.ID)
	assert.True(t, errors.Is(err, ports.ErrNotFound))
	assert.True(t, errors.Is(env.svc.DeleteTrade(ctx, "u1", trade.ID), ports.ErrNotFound))

	page, err := env.svc.ListTrades(ctx, "u1", TradeQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Items)
}

func TestTradeService_CacheCoherence(t *testing.T) {
	backend := memcache.New()
	env := setupTestService(t, backend)
	ctx := context.Background()

	trade, err := env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 10))
	require.NoError(t, err)

	first, err := env.svc.GetTrade(ctx, "u1", trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, first.Status)
	cached, err := env.svc.GetTrade(ctx, "u1", trade.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, cached.ID)
	_, found, err := backend.Get(ctx, cache.TradeKey("u1", trade.ID))
	require.NoError(t, err)
	assert.True(t, found, "trade is cached after a read")

	summary, err := env.svc.GetTradeSummary(ctx, "u1", ports.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OpenTrades)

	_, err = env.svc.ExitTrade(ctx, "u1", trade.ID, exitAt(110, 10, time.Hour))
	require.NoError(t, err)

	after, err := env.svc.GetTrade(ctx, "u1", trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, after.Status)

	summary, err = env.svc.GetTradeSummary(ctx, "u1", ports.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.OpenTrades)
	assert.Equal(t, 1, summary.ClosedTrades)
	assert.Equal(t, 100.0, summary.TotalPnL)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CacheLookups.WithLabelValues("trade", "hit")))
}

func TestTradeService_CacheUnavailable(t *testing.T) {
	env := setupTestService(t, failingCache{})
	ctx := context.Background()

	trade, err := env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 10))
	require.NoError(t, err)

	got, err := env.svc.GetTrade(ctx, "u1", trade.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.ID, got.ID)

	closed, err := env.svc.ExitTrade(ctx, "u1", trade.ID, exitAt(110, 10, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)

	summary, err := env.svc.GetTradeSummary(ctx, "u1", ports.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ClosedTrades)

	symbols, err := env.svc.GetSymbols(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"INFY"}, symbols)

	assert.NotEmpty(t, env.logger.warnMsgs)
	assert.Empty(t, env.logger.errorMsgs)
	assert.Greater(t, testutil.ToFloat64(env.metrics.CacheLookups.WithLabelValues("trade", "error")), 0.0)
}

func TestTradeService_SummaryWinRate(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	exits := []float64{110, 120, 90, 105, 95, 130, 80, 115, 85, 101}
	for i, price := range exits {
		trade, err := env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 1))
		require.NoError(t, err)
		_, err = env.svc.ExitTrade(ctx, "u1", trade.ID, exitAt(price, 1, time.Duration(i+1)*time.Hour))
		require.NoError(t, err)
	}

	summary, err := env.svc.GetTradeSummary(ctx, "u1", ports.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 10, summary.TotalTrades)
	assert.Equal(t, 6, summary.WinningTrades)
	assert.Equal(t, 4, summary.LosingTrades)
	assert.Equal(t, 60.0, summary.WinRate)
	assert.Equal(t, 31.0, summary.TotalPnL)
	assert.Equal(t, 1.62, summary.ProfitFactor)
}

func TestTradeService_ListTrades(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	for i, symbol := range []string{"INFY", "TCS", "HDFC", "INFY", "WIPRO"} {
		in := longInput(symbol, 100, 1)
		in.Entry.Timestamp = base.Add(time.Duration(i) * time.Hour)
		_, err := env.svc.CreateTrade(ctx, "u1", in)
		require.NoError(t, err)
	}

	page, err := env.svc.ListTrades(ctx, "u1", TradeQuery{Page: 2, Limit: 2, SortBy: ports.SortByEntryTime, Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "HDFC", page.Items[0].Symbol)
	assert.Equal(t, "INFY", page.Items[1].Symbol)

	filtered, err := env.svc.ListTrades(ctx, "u1", TradeQuery{Filter: ports.TradeFilter{Symbol: "INFY"}})
	require.NoError(t, err)
	assert.Equal(t, 2, filtered.Total)
	assert.Equal(t, defaultPageSize, filtered.Limit)

	capped, err := env.svc.ListTrades(ctx, "u1", TradeQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, capped.Limit)

	_, err = env.svc.ListTrades(ctx, "u1", TradeQuery{SortBy: "volume"})
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
}

func TestTradeService_GetSymbols(t *testing.T) {
	backend := memcache.New()
	env := setupTestService(t, backend)
	ctx := context.Background()

	symbols, err := env.svc.GetSymbols(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, symbols)

	_, err = env.svc.CreateTrade(ctx, "u1", longInput("TCS", 100, 1))
	require.NoError(t, err)
	_, err = env.svc.CreateTrade(ctx, "u1", longInput("INFY", 100, 1))
	require.NoError(t, err)

	symbols, err = env.svc.GetSymbols(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"INFY", "TCS"}, symbols)
}

func TestTradeService_RangeValidation(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()
	inverted := ports.DateRange{From: base, To: base.Add(-time.Hour)}

	_, err := env.svc.GetTradeSummary(ctx, "u1", inverted)
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
	_, err = env.svc.GetTradeStatistics(ctx, "u1", "symbol", inverted)
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
	_, err = env.svc.GetTradeStatistics(ctx, "u1", "broker", ports.DateRange{})
	assert.True(t, errors.Is(err, ports.ErrInvalidInput))
}

func TestTradeService_Analytics(t *testing.T) {
	env := setupTestService(t, memcache.New())
	ctx := context.Background()

	plan := []struct {
		symbol   string
		strategy string
		exit     float64
		mistakes []string
	}{
		{"NIFTY24MAR22000CE", "ORB", 120, nil},
		{"NIFTY24MAR21900PE", "ORB", 90, []string{"chased"}},
		{"BANKNIFTY", "Reversal", 110, nil},
		{"BANKNIFTY", "", 95, []string{"chased", "oversized"}},
	}
	for i, p := range plan {
		in := longInput(p.symbol, 100, 1)
		in.Strategy = p.strategy
		in.Mistakes = p.mistakes
		trade, err := env.svc.CreateTrade(ctx, "u1", in)
		require.NoError(t, err)
		_, err = env.svc.ExitTrade(ctx, "u1", trade.ID, exitAt(p.exit, 1, time.Duration(i+1)*time.Hour))
		require.NoError(t, err)
	}

	bySymbol, err := env.svc.GetTradeStatistics(ctx, "u1", "symbol", ports.DateRange{})
	require.NoError(t, err)
	require.Len(t, bySymbol, 2)
	assert.Equal(t, "NIFTY", bySymbol[0].Key)
	assert.Equal(t, 10.0, bySymbol[0].TotalPnL)

	strategies, err := env.svc.GetStrategyAnalytics(ctx, "u1", ports.DateRange{})
	require.NoError(t, err)
	require.Len(t, strategies, 3)

	mistakes, err := env.svc.GetMistakeAnalytics(ctx, "u1", ports.DateRange{})
	require.NoError(t, err)
	require.Len(t, mistakes, 2)
	assert.Equal(t, "oversized", mistakes[0].Key)
	assert.Equal(t, "chased", mistakes[1].Key)
	assert.Equal(t, -15.0, mistakes[1].TotalPnL)

	risk, err := env.svc.GetRiskMetrics(ctx, "u1", ports.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 4, risk.Trades)

	perf, err := env.svc.GetPerformance(ctx, "u1", ports.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 4, perf.TotalTrades)
	assert.Equal(t, 15.0, perf.TotalPnL)
}
