package app

import (
	"context"
	"fmt"
	"time"

	"tradeJournal/internal/analytics"
	"tradeJournal/internal/cache"
	"tradeJournal/internal/domain"
	"tradeJournal/internal/metrics"
	"tradeJournal/internal/pnl"
	"tradeJournal/internal/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Config holds the dependencies of a TradeService.
type Config struct {
	Store           ports.TradeStore
	Cache           *cache.Layer
	Calculator      *pnl.Calculator // nil selects the default rate table
	Risk            analytics.RiskConfig
	Logger          ports.Logger
	Metrics         *metrics.Metrics // optional
	DefaultPageSize int
	MaxPageSize     int
}

// TradeService is the journal's function-call surface: trade lifecycle,
// listing, bulk import and analytics for one user at a time.
type TradeService struct {
	store     ports.TradeStore
	cache     *cache.Layer
	calc      *pnl.Calculator
	analytics *analytics.Aggregator
	logger    ports.Logger
	metrics   *metrics.Metrics
	pageSize  int
	maxPage   int
	now       func() time.Time
}

// NewTradeService creates a new application service instance.
func NewTradeService(cfg Config) (*TradeService, error) {
	if cfg.Store == nil || cfg.Cache == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for TradeService")
	}
	agg, err := analytics.New(analytics.Config{Store: cfg.Store, Logger: cfg.Logger, Risk: cfg.Risk})
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics aggregator: %w", err)
	}

	calc := cfg.Calculator
	if calc == nil {
		calc = pnl.New(nil)
	}
	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxPage := cfg.MaxPageSize
	if maxPage <= 0 {
		maxPage = maxPageSize
	}
	if pageSize > maxPage {
		return nil, fmt.Errorf("default page size %d exceeds max page size %d", pageSize, maxPage)
	}

	return &TradeService{
		store:     cfg.Store,
		cache:     cfg.Cache,
		calc:      calc,
		analytics: agg,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		pageSize:  pageSize,
		maxPage:   maxPage,
		now:       time.Now,
	}, nil
}

// TradeQuery selects a page of trades.
type TradeQuery struct {
	Filter    ports.TradeFilter
	SortBy    ports.SortField
	Ascending bool
	Page      int // 1-based; 0 means the first page
	Limit     int // 0 means the default page size
}

// Paginated is one page of a listing.
type Paginated[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// GetTrade returns one of the user's trades, served from cache when possible.
func (s *TradeService) GetTrade(ctx context.Context, userID, tradeID string) (*domain.Trade, error) {
	if err := requireIDs(userID, tradeID); err != nil {
		return nil, err
	}
	trade, err := s.cache.Trade(ctx, userID, tradeID, func(ctx context.Context) (*domain.Trade, error) {
		return s.store.FindByID(ctx, userID, tradeID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get trade %s: %w", tradeID, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("trade %s: %w", tradeID, ports.ErrNotFound)
	}
	return trade, nil
}

// ListTrades returns a page of the user's trades matching the query.
func (s *TradeService) ListTrades(ctx context.Context, userID string, q TradeQuery) (*Paginated[*domain.Trade], error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	page := q.Page
	if page <= 0 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > s.maxPage {
		limit = s.maxPage
	}

	total, err := s.store.Count(ctx, userID, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count trades: %w", err)
	}
	items, err := s.store.Find(ctx, userID, q.Filter, ports.FindOptions{
		SortBy:    q.SortBy,
		Ascending: q.Ascending,
		Skip:      (page - 1) * limit,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	if items == nil {
		items = []*domain.Trade{}
	}
	return &Paginated[*domain.Trade]{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// GetTradeSummary returns the summary of trades entered in the range. Summaries are cached briefly.
func (s *TradeService) GetTradeSummary(ctx context.Context, userID string, r ports.DateRange) (*analytics.Summary, error) {
	if err := requireRange(userID, r); err != nil {
		return nil, err
	}
	summary, err := s.cache.Summary(ctx, userID, r, func(ctx context.Context) (*analytics.Summary, error) {
		return s.analytics.Summary(ctx, userID, r)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get trade summary: %w", err)
	}
	return summary, nil
}

// GetTradeStatistics groups the user's closed trades and returns per-group statistics.
func (s *TradeService) GetTradeStatistics(ctx context.Context, userID string, groupBy analytics.GroupBy, r ports.DateRange) ([]analytics.GroupStat, error) {
	if err := requireRange(userID, r); err != nil {
		return nil, err
	}
	return s.analytics.Statistics(ctx, userID, groupBy, r)
}

// GetStrategyAnalytics returns closed-trade statistics per strategy.
func (s *TradeService) GetStrategyAnalytics(ctx context.Context, userID string, r ports.DateRange) ([]analytics.GroupStat, error) {
	if err := requireRange(userID, r); err != nil {
		return nil, err
	}
	return s.analytics.StrategyAnalytics(ctx, userID, r)
}

// GetMistakeAnalytics returns closed-trade statistics per mistake tag.
func (s *TradeService) GetMistakeAnalytics(ctx context.Context, userID string, r ports.DateRange) ([]analytics.GroupStat, error) {
	if err := requireRange(userID, r); err != nil {
		return nil, err
	}
	return s.analytics.MistakeAnalytics(ctx, userID, r)
}

// GetRiskMetrics returns the risk-adjusted return figures of the user's closed trades.
func (s *TradeService) GetRiskMetrics(ctx context.Context, userID string, r ports.DateRange) (*analytics.RiskMetrics, error) {
	if err := requireRange(userID, r); err != nil {
		return nil, err
	}
	return s.analytics.RiskMetrics(ctx, userID, r)
}

// GetPerformance returns the equity curve, drawdowns and streaks of the user's closed trades.
func (s *TradeService) GetPerformance(ctx context.Context, userID string, r ports.DateRange) (*analytics.Performance, error) {
	if err := requireRange(userID, r); err != nil {
		return nil, err
	}
	return s.analytics.Performance(ctx, userID, r)
}

// GetSymbols lists the distinct symbols the user has traded.
func (s *TradeService) GetSymbols(ctx context.Context, userID string) ([]string, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	symbols, err := s.cache.Symbols(ctx, userID, func(ctx context.Context) ([]string, error) {
		symbols, err := s.store.DistinctSymbols(ctx, userID)
		if symbols == nil && err == nil {
			symbols = []string{}
		}
		return symbols, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get symbols: %w", err)
	}
	return symbols, nil
}

func requireRange(userID string, r ports.DateRange) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return ports.NewInvalidInputError("date range: from is after to")
	}
	return nil
}

func validateQuery(q TradeQuery) error {
	var problems []string
	for _, st := range q.Filter.Statuses {
		if !st.Valid() {
			problems = append(problems, fmt.Sprintf("status: unsupported value %q", st))
		}
	}
	if q.Filter.Segment != "" && !q.Filter.Segment.Valid() {
		problems = append(problems, fmt.Sprintf("segment: unsupported value %q", q.Filter.Segment))
	}
	if q.Filter.TradeType != "" && !q.Filter.TradeType.Valid() {
		problems = append(problems, fmt.Sprintf("tradeType: unsupported value %q", q.Filter.TradeType))
	}
	if q.Filter.Position != "" && !q.Filter.Position.Valid() {
		problems = append(problems, fmt.Sprintf("position: unsupported value %q", q.Filter.Position))
	}
	switch q.SortBy {
	case "", ports.SortByEntryTime, ports.SortByExitTime, ports.SortByNetPnL, ports.SortBySymbol, ports.SortByCreatedAt:
	default:
		problems = append(problems, fmt.Sprintf("sortBy: unsupported value %q", q.SortBy))
	}
	r := q.Filter.DateRange
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		problems = append(problems, "date range: from is after to")
	}
	if q.Filter.MinPnL != nil && q.Filter.MaxPnL != nil && *q.Filter.MinPnL > *q.Filter.MaxPnL {
		problems = append(problems, "pnl range: min is above max")
	}
	if q.Page < 0 || q.Limit < 0 {
		problems = append(problems, "page and limit cannot be negative")
	}
	return ports.NewInvalidInputError(problems...)
}
