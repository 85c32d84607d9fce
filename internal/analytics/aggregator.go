// Package analytics turns a user's trades into summaries, groupings and
// risk-adjusted return metrics.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/pnl"
	"tradeJournal/internal/ports"
)

// GroupBy is a dimension trades can be grouped on.
type GroupBy string

const (
	GroupBySymbol    GroupBy = "symbol"
	GroupByExchange  GroupBy = "exchange"
	GroupBySegment   GroupBy = "segment"
	GroupByTradeType GroupBy = "tradeType"
	GroupByStrategy  GroupBy = "strategy"
)

// Valid reports whether g is a supported grouping.
func (g GroupBy) Valid() bool {
	switch g {
	case GroupBySymbol, GroupByExchange, GroupBySegment, GroupByTradeType, GroupByStrategy:
		return true
	}
	return false
}

const (
	// NoStrategyLabel groups trades without a strategy.
	NoStrategyLabel = "No Strategy"
	unknownLabel    = "Unknown"
)

// baseSymbolPattern keeps the letter/space prefix of a symbol that continues
// with a number, e.g. "NIFTY 22000 CE" or "BANKNIFTY24JAN48000PE".
var baseSymbolPattern = regexp.MustCompile(`^([A-Za-z ]+)\d`)

// BaseSymbol rolls derivative variants of an underlying up to one symbol.
func BaseSymbol(symbol string) string {
	if m := baseSymbolPattern.FindStringSubmatch(symbol); m != nil {
		if base := strings.TrimSpace(m[1]); base != "" {
			return base
		}
	}
	return symbol
}

// GroupStat holds per-group performance of closed trades.
type GroupStat struct {
	Key              string  `json:"key"`
	TotalTrades      int     `json:"totalTrades"`
	TotalPnL         float64 `json:"totalPnl"`
	AvgPnL           float64 `json:"avgPnl"`
	WinningTrades    int     `json:"winningTrades"`
	LosingTrades     int     `json:"losingTrades"`
	MaxProfit        float64 `json:"maxProfit"`
	MaxLoss          float64 `json:"maxLoss"`
	AvgHoldingPeriod float64 `json:"avgHoldingPeriod"` // minutes
	WinRate          float64 `json:"winRate"`          // percent
}

// TradeReader is the subset of the trade store the aggregator reads from.
type TradeReader interface {
	Find(ctx context.Context, userID string, filter ports.TradeFilter, opts ports.FindOptions) ([]*domain.Trade, error)
	AggregateSummary(ctx context.Context, userID string, dateRange ports.DateRange) (*ports.SummaryTotals, error)
}

// Config configures an Aggregator.
type Config struct {
	Store  TradeReader
	Logger ports.Logger
	Risk   RiskConfig
}

// Aggregator computes analytics from the trade store.
type Aggregator struct {
	store  TradeReader
	logger ports.Logger
	risk   RiskConfig
}

// New creates an Aggregator.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Store == nil {
		return nil, errors.New("trade store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	risk := cfg.Risk.withDefaults()
	if err := risk.validate(); err != nil {
		return nil, err
	}
	return &Aggregator{store: cfg.Store, logger: cfg.Logger, risk: risk}, nil
}

// Summary aggregates the user's trades whose entry falls in the range.
func (a *Aggregator) Summary(ctx context.Context, userID string, r ports.DateRange) (*Summary, error) {
	totals, err := a.store.AggregateSummary(ctx, userID, r)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate trade summary: %w", err)
	}
	return SummaryFromTotals(*totals), nil
}

// Statistics groups the user's closed trades in the range by the given
// dimension, sorted by total P&L descending.
func (a *Aggregator) Statistics(ctx context.Context, userID string, groupBy GroupBy, r ports.DateRange) ([]GroupStat, error) {
	if !groupBy.Valid() {
		return nil, ports.NewInvalidInputError(fmt.Sprintf("groupBy: unsupported value %q", groupBy))
	}
	trades, err := a.closedTrades(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	return groupTrades(trades, func(t *domain.Trade) []string {
		return []string{groupKey(t, groupBy)}
	}), nil
}

// StrategyAnalytics groups the user's closed trades in the range by strategy.
func (a *Aggregator) StrategyAnalytics(ctx context.Context, userID string, r ports.DateRange) ([]GroupStat, error) {
	return a.Statistics(ctx, userID, GroupByStrategy, r)
}

// MistakeAnalytics groups the user's closed trades in the range by mistake
// tag. Trades without mistakes are left out; a trade with several mistakes
// counts once towards each of them.
func (a *Aggregator) MistakeAnalytics(ctx context.Context, userID string, r ports.DateRange) ([]GroupStat, error) {
	trades, err := a.closedTrades(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	withMistakes := trades[:0]
	for _, t := range trades {
		if t.HasMistakes() {
			withMistakes = append(withMistakes, t)
		}
	}
	return groupTrades(withMistakes, func(t *domain.Trade) []string {
		return domain.NormalizeTags(t.Mistakes)
	}), nil
}

func (a *Aggregator) closedTrades(ctx context.Context, userID string, r ports.DateRange) ([]*domain.Trade, error) {
	trades, err := a.store.Find(ctx, userID, ports.TradeFilter{
		Statuses:  []domain.TradeStatus{domain.StatusClosed},
		DateRange: r,
	}, ports.FindOptions{SortBy: ports.SortByExitTime, Ascending: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load closed trades: %w", err)
	}
	return trades, nil
}

func groupKey(t *domain.Trade, groupBy GroupBy) string {
	var key string
	switch groupBy {
	case GroupBySymbol:
		key = BaseSymbol(t.Symbol)
	case GroupByExchange:
		key = t.Exchange
	case GroupBySegment:
		key = string(t.Segment)
	case GroupByTradeType:
		key = string(t.TradeType)
	case GroupByStrategy:
		if key = strings.TrimSpace(t.Strategy); key == "" {
			return NoStrategyLabel
		}
	}
	if strings.TrimSpace(key) == "" {
		return unknownLabel
	}
	return key
}

type groupAcc struct {
	stat    GroupStat
	holding int64
}

func groupTrades(trades []*domain.Trade, keysOf func(*domain.Trade) []string) []GroupStat {
	groups := make(map[string]*groupAcc)
	for _, t := range trades {
		net := t.PnL.Net
		for _, key := range keysOf(t) {
			g, ok := groups[key]
			if !ok {
				g = &groupAcc{stat: GroupStat{Key: key, MaxProfit: net, MaxLoss: net}}
				groups[key] = g
			}
			g.stat.TotalTrades++
			g.stat.TotalPnL += net
			g.holding += t.HoldingPeriod
			switch {
			case net > 0:
				g.stat.WinningTrades++
			case net < 0:
				g.stat.LosingTrades++
			}
			if net > g.stat.MaxProfit {
				g.stat.MaxProfit = net
			}
			if net < g.stat.MaxLoss {
				g.stat.MaxLoss = net
			}
		}
	}

	out := make([]GroupStat, 0, len(groups))
	for _, g := range groups {
		s := g.stat
		s.TotalPnL = pnl.Round2(s.TotalPnL)
		s.AvgPnL = pnl.Round2(s.TotalPnL / float64(s.TotalTrades))
		s.AvgHoldingPeriod = pnl.Round2(float64(g.holding) / float64(s.TotalTrades))
		s.WinRate = WinRate(s.WinningTrades, s.LosingTrades)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPnL != out[j].TotalPnL {
			return out[i].TotalPnL > out[j].TotalPnL
		}
		return out[i].Key < out[j].Key
	})
	return out
}
