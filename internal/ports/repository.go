package ports

import (
	"context"
	"time"

	"tradeJournal/internal/domain"
)

// DateRange bounds a query on the entry timestamp. Zero bounds are open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether the range places no bound at all.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside the (inclusive) range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// TradeFilter narrows a trade query. Empty fields are ignored.
type TradeFilter struct {
	Statuses  []domain.TradeStatus
	Symbol    string
	Exchange  string
	Segment   domain.Segment
	TradeType domain.TradeType
	Position  domain.Position
	Strategy  string
	Tags      []string // trade must carry every listed tag
	DateRange DateRange
	MinPnL    *float64 // on pnl.net
	MaxPnL    *float64
	Search    string // case-insensitive substring over symbol, strategy and notes
}

// SortField names the columns a trade listing may be ordered by.
type SortField string

const (
	SortByEntryTime SortField = "entryTime"
	SortByExitTime  SortField = "exitTime"
	SortByNetPnL    SortField = "pnl"
	SortBySymbol    SortField = "symbol"
	SortByCreatedAt SortField = "createdAt"
)

// FindOptions controls ordering and paging of a find.
type FindOptions struct {
	SortBy    SortField
	Ascending bool
	Skip      int
	Limit     int // 0 means no limit
}

// TradeField identifies a group of persisted trade attributes for partial updates.
type TradeField string

const (
	FieldEntry          TradeField = "entry"  // domain.Leg
	FieldExit           TradeField = "exit"   // *domain.Leg
	FieldStatus         TradeField = "status" // domain.TradeStatus
	FieldPnL            TradeField = "pnl"    // domain.PnL
	FieldStopLoss       TradeField = "stopLoss"
	FieldTarget         TradeField = "target"
	FieldRiskReward     TradeField = "riskRewardRatio" // float64
	FieldBreakeven      TradeField = "breakevenPrice"  // float64
	FieldHoldingPeriod  TradeField = "holdingPeriod"   // int64
	FieldStrategy       TradeField = "strategy"        // string
	FieldTags           TradeField = "tags"            // []string
	FieldNotes          TradeField = "notes"           // string
	FieldPsychology     TradeField = "psychology"      // string
	FieldMistakes       TradeField = "mistakes"        // []string
	FieldInstrumentType TradeField = "instrumentType"  // string
	FieldDeletedAt      TradeField = "deletedAt"       // time.Time; also sets the deleted flag
)

// FieldSet is a partial update applied to one trade as a single atomic write.
// FieldStopLoss and FieldTarget take a *float64 (nil clears the bound).
type FieldSet map[TradeField]interface{}

// SummaryTotals is the raw aggregation behind a trade summary.
type SummaryTotals struct {
	TotalTrades     int
	OpenTrades      int
	PartialTrades   int
	ClosedTrades    int
	CancelledTrades int
	WinningTrades   int
	LosingTrades    int
	BreakEvenTrades int
	TotalPnL        float64
	TotalCharges    float64
	TotalWinPnL     float64
	TotalLossPnL    float64 // negative or zero
	LargestWin      float64
	LargestLoss     float64
}

// BulkWriteError records one failed document of a batch insert.
type BulkWriteError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// TradeStore defines the interface for persisting and querying trades.
// Soft-deleted trades are invisible to every read method except
// DistinctBrokerTradeIDs, since a deleted trade still owns its broker id.
type TradeStore interface {
	// Insert saves a new trade.
	Insert(ctx context.Context, trade *domain.Trade) error
	// InsertMany saves trades as one unordered batch: a failing document does not
	// prevent the others from being written. Returns the number written and the
	// per-index failures; err is reserved for failures of the batch as a whole.
	InsertMany(ctx context.Context, trades []*domain.Trade) (inserted int, failures []BulkWriteError, err error)
	// FindByID retrieves a trade of the user. Returns nil, nil if not found.
	FindByID(ctx context.Context, userID, tradeID string) (*domain.Trade, error)
	// Find retrieves the user's trades matching the filter.
	Find(ctx context.Context, userID string, filter TradeFilter, opts FindOptions) ([]*domain.Trade, error)
	// Count counts the user's trades matching the filter.
	Count(ctx context.Context, userID string, filter TradeFilter) (int, error)
	// DistinctSymbols lists the distinct symbols the user has traded, sorted.
	DistinctSymbols(ctx context.Context, userID string) ([]string, error)
	// DistinctBrokerTradeIDs lists every broker trade id already recorded for the user, deleted trades included.
	DistinctBrokerTradeIDs(ctx context.Context, userID string) ([]string, error)
	// AggregateSummary computes summary totals for trades whose entry falls in the range.
	AggregateSummary(ctx context.Context, userID string, dateRange DateRange) (*SummaryTotals, error)
	// UpdateFields applies a partial update to one trade.
	// Returns ErrNotFound if the trade does not exist or is deleted.
	UpdateFields(ctx context.Context, userID, tradeID string, fields FieldSet) error
}
