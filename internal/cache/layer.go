// Package cache implements the read-through cache in front of the trade store.
//
// Three key families are kept per user:
//
//	trade:{user}:{id}           single trade
//	summary:{user}:{from}:{to}  trade summary for a date range
//	symbols:{user}              distinct traded symbols
//
// User and trade IDs are query-escaped, so an ID containing ':' cannot
// reach into another user's keys.
//
// Every mutation drops the touched trade keys and flushes the summary and
// symbols families of the user. Backend failures never fail the caller: reads
// fall through to the loader and writes are logged and skipped.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"tradeJournal/internal/analytics"
	"tradeJournal/internal/domain"
	"tradeJournal/internal/metrics"
	"tradeJournal/internal/ports"
)

const (
	familyTrade   = "trade"
	familySummary = "summary"
	familySymbols = "symbols"

	DefaultTradeTTL   = 5 * time.Minute
	DefaultSummaryTTL = time.Minute
	DefaultSymbolsTTL = 5 * time.Minute
)

// Config configures a Layer.
type Config struct {
	Backend    ports.Cache
	TradeTTL   time.Duration
	SummaryTTL time.Duration
	SymbolsTTL time.Duration
	Logger     ports.Logger
	Metrics    *metrics.Metrics // optional
}

// Layer is the cache in front of trade, summary and symbol reads.
type Layer struct {
	backend    ports.Cache
	tradeTTL   time.Duration
	summaryTTL time.Duration
	symbolsTTL time.Duration
	logger     ports.Logger
	metrics    *metrics.Metrics
}

// New creates a Layer. Zero TTLs take the package defaults.
func New(cfg Config) (*Layer, error) {
	if cfg.Backend == nil {
		return nil, errors.New("cache backend cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	l := &Layer{
		backend:    cfg.Backend,
		tradeTTL:   cfg.TradeTTL,
		summaryTTL: cfg.SummaryTTL,
		symbolsTTL: cfg.SymbolsTTL,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if l.tradeTTL <= 0 {
		l.tradeTTL = DefaultTradeTTL
	}
	if l.summaryTTL <= 0 {
		l.summaryTTL = DefaultSummaryTTL
	}
	if l.symbolsTTL <= 0 {
		l.symbolsTTL = DefaultSymbolsTTL
	}
	return l, nil
}

// TradeKey returns the key of a single trade.
func TradeKey(userID, tradeID string) string {
	return fmt.Sprintf("%s:%s:%s", familyTrade, segment(userID), segment(tradeID))
}

// SummaryKey returns the key of a summary over the given range. Open bounds are empty.
func SummaryKey(userID string, r ports.DateRange) string {
	return fmt.Sprintf("%s:%s:%s:%s", familySummary, segment(userID), formatBound(r.From), formatBound(r.To))
}

// SymbolsKey returns the key of the user's distinct symbol list.
func SymbolsKey(userID string) string {
	return fmt.Sprintf("%s:%s", familySymbols, segment(userID))
}

func summaryPrefix(userID string) string {
	return fmt.Sprintf("%s:%s:", familySummary, segment(userID))
}

func segment(id string) string {
	return url.QueryEscape(id)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Trade returns the trade from cache or load. A nil trade from load is a
// not-found and is not cached. A cached trade owned by someone else is
// discarded and reloaded.
func (l *Layer) Trade(ctx context.Context, userID, tradeID string, load func(context.Context) (*domain.Trade, error)) (*domain.Trade, error) {
	owned := func(t *domain.Trade) bool {
		return t != nil && t.UserID == userID && t.ID == tradeID
	}
	return readThrough(ctx, l, familyTrade, TradeKey(userID, tradeID), l.tradeTTL, load, owned)
}

// Summary returns the summary for the range from cache or load.
func (l *Layer) Summary(ctx context.Context, userID string, r ports.DateRange, load func(context.Context) (*analytics.Summary, error)) (*analytics.Summary, error) {
	return readThrough(ctx, l, familySummary, SummaryKey(userID, r), l.summaryTTL, load, func(s *analytics.Summary) bool { return s != nil })
}

// Symbols returns the user's distinct symbols from cache or load.
func (l *Layer) Symbols(ctx context.Context, userID string, load func(context.Context) ([]string, error)) ([]string, error) {
	return readThrough(ctx, l, familySymbols, SymbolsKey(userID), l.symbolsTTL, load, func([]string) bool { return true })
}

// Invalidate drops the given trade keys and flushes the user's summary and
// symbols families. It is called after every mutation and never fails.
func (l *Layer) Invalidate(ctx context.Context, userID string, tradeIDs ...string) {
	keys := make([]string, 0, len(tradeIDs)+1)
	for _, id := range tradeIDs {
		keys = append(keys, TradeKey(userID, id))
	}
	keys = append(keys, SymbolsKey(userID))

	if err := l.backend.Delete(ctx, keys...); err != nil {
		l.metrics.CacheWriteError("delete")
		l.logger.Warn(ctx, "Failed to delete cache keys, entries may be stale until they expire", map[string]interface{}{
			"userID": userID,
			"keys":   len(keys),
			"error":  err.Error(),
		})
	}
	if err := l.backend.FlushPrefix(ctx, summaryPrefix(userID)); err != nil {
		l.metrics.CacheWriteError("flush")
		l.logger.Warn(ctx, "Failed to flush summary cache, entries may be stale until they expire", map[string]interface{}{
			"userID": userID,
			"error":  err.Error(),
		})
	}
	l.metrics.Invalidated()
}

// readThrough serves key from the backend or load. usable decides both
// whether a cached value may be returned and whether a loaded one is stored.
func readThrough[T any](ctx context.Context, l *Layer, family, key string, ttl time.Duration, load func(context.Context) (T, error), usable func(T) bool) (T, error) {
	raw, found, err := l.backend.Get(ctx, key)
	switch {
	case err != nil:
		l.metrics.CacheLookup(family, "error")
		l.logger.Warn(ctx, "Cache read failed, falling back to store", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	case found:
		var v T
		decErr := msgpack.Unmarshal(raw, &v)
		if decErr == nil && usable(v) {
			l.metrics.CacheLookup(family, "hit")
			return v, nil
		}
		l.metrics.CacheLookup(family, "error")
		reason := "entry does not belong to the requested key"
		if decErr != nil {
			reason = decErr.Error()
		}
		l.logger.Warn(ctx, "Discarding unusable cache entry", map[string]interface{}{
			"key":   key,
			"error": reason,
		})
		_ = l.backend.Delete(ctx, key)
	default:
		l.metrics.CacheLookup(family, "miss")
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if !usable(v) {
		return v, nil
	}

	encoded, encErr := msgpack.Marshal(v)
	if encErr != nil {
		l.logger.Error(ctx, encErr, "Failed to encode cache entry", map[string]interface{}{"key": key})
		return v, nil
	}
	if setErr := l.backend.Set(ctx, key, encoded, ttl); setErr != nil {
		l.metrics.CacheWriteError("set")
		l.logger.Warn(ctx, "Cache write failed", map[string]interface{}{
			"key":   key,
			"error": setErr.Error(),
		})
	}
	return v, nil
}
