package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
)

const insertTradeSQL = `
	INSERT INTO trades (` + tradeColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
	        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Insert saves a new trade.
func (r *Repository) Insert(ctx context.Context, trade *domain.Trade) error {
	args, err := insertArgs(trade)
	if err != nil {
		return fmt.Errorf("failed to encode trade %s: %w", trade.ID, err)
	}
	if _, err := r.db.ExecContext(ctx, insertTradeSQL, args...); err != nil {
		return fmt.Errorf("failed to insert trade %s for symbol %s: %w", trade.ID, trade.Symbol, classify(err))
	}
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": trade.ID, "userID": trade.UserID, "symbol": trade.Symbol})
	return nil
}

// InsertMany saves trades in one transaction. A row that violates a
// constraint only aborts its own statement, so the remaining rows are still
// written.
func (r *Repository) InsertMany(ctx context.Context, trades []*domain.Trade) (int, []ports.BulkWriteError, error) {
	if len(trades) == 0 {
		return 0, nil, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to begin bulk insert: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	stmt, err := tx.PrepareContext(ctx, insertTradeSQL)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	var failures []ports.BulkWriteError
	inserted := 0
	for i, trade := range trades {
		args, err := insertArgs(trade)
		if err == nil {
			_, err = stmt.ExecContext(ctx, args...)
		}
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil, fmt.Errorf("bulk insert interrupted: %w", ctx.Err())
			}
			failures = append(failures, ports.BulkWriteError{Index: i, Reason: classify(err).Error()})
			continue
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("failed to commit bulk insert: %w", err)
	}
	r.logger.Debug(ctx, "Bulk insert finished", map[string]interface{}{"inserted": inserted, "failed": len(failures)})
	return inserted, failures, nil
}

// FindByID retrieves a non-deleted trade of the user. Returns nil, nil if not found.
func (r *Repository) FindByID(ctx context.Context, userID, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = ? AND user_id = ? AND deleted = 0`

	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, tradeID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"tradeID": tradeID, "userID": userID})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trade %s: %w: %v", tradeID, ports.ErrQueryFailed, err)
	}
	return trade, nil
}

// Find retrieves the user's trades matching the filter.
func (r *Repository) Find(ctx context.Context, userID string, filter ports.TradeFilter, opts ports.FindOptions) ([]*domain.Trade, error) {
	where, args := buildWhere(userID, filter)
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE ` + where + orderBy(opts)
	if opts.Limit > 0 || opts.Skip > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1 // SQLite: no limit
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(opts.Skip, 0))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during Find: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// Count counts the user's trades matching the filter.
func (r *Repository) Count(ctx context.Context, userID string, filter ports.TradeFilter) (int, error) {
	where, args := buildWhere(userID, filter)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w: %v", ports.ErrQueryFailed, err)
	}
	return n, nil
}

// DistinctSymbols lists the distinct symbols of the user's non-deleted trades.
func (r *Repository) DistinctSymbols(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT DISTINCT symbol FROM trades WHERE user_id = ? AND deleted = 0 ORDER BY symbol`
	return r.queryStrings(ctx, query, userID)
}

// DistinctBrokerTradeIDs lists the broker trade ids recorded for the user,
// including those of soft-deleted trades, which still hold their unique slot.
func (r *Repository) DistinctBrokerTradeIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `
	SELECT DISTINCT broker_trade_id FROM trades
	WHERE user_id = ? AND broker_trade_id IS NOT NULL AND broker_trade_id <> ''`
	return r.queryStrings(ctx, query, userID)
}

func (r *Repository) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct values: %w: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan distinct value: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distinct values: %w", err)
	}
	return out, nil
}

// AggregateSummary computes summary totals in one pass. Win/loss figures
// cover closed trades only and are based on net P&L.
func (r *Repository) AggregateSummary(ctx context.Context, userID string, dateRange ports.DateRange) (*ports.SummaryTotals, error) {
	where, args := buildWhere(userID, ports.TradeFilter{DateRange: dateRange})
	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(status = 'open'), 0),
		COALESCE(SUM(status = 'partial'), 0),
		COALESCE(SUM(status = 'closed'), 0),
		COALESCE(SUM(status = 'cancelled'), 0),
		COALESCE(SUM(status = 'closed' AND pnl_net > 0), 0),
		COALESCE(SUM(status = 'closed' AND pnl_net < 0), 0),
		COALESCE(SUM(status = 'closed' AND pnl_net = 0), 0),
		COALESCE(SUM(CASE WHEN status = 'closed' THEN pnl_net END), 0),
		COALESCE(SUM(CASE WHEN status = 'closed' THEN pnl_charges END), 0),
		COALESCE(SUM(CASE WHEN status = 'closed' AND pnl_net > 0 THEN pnl_net END), 0),
		COALESCE(SUM(CASE WHEN status = 'closed' AND pnl_net < 0 THEN pnl_net END), 0),
		COALESCE(MAX(CASE WHEN status = 'closed' AND pnl_net > 0 THEN pnl_net END), 0),
		COALESCE(MIN(CASE WHEN status = 'closed' AND pnl_net < 0 THEN pnl_net END), 0)
	FROM trades WHERE ` + where

	t := &ports.SummaryTotals{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&t.TotalTrades, &t.OpenTrades, &t.PartialTrades, &t.ClosedTrades, &t.CancelledTrades,
		&t.WinningTrades, &t.LosingTrades, &t.BreakEvenTrades,
		&t.TotalPnL, &t.TotalCharges, &t.TotalWinPnL, &t.TotalLossPnL, &t.LargestWin, &t.LargestLoss,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate trade summary: %w: %v", ports.ErrQueryFailed, err)
	}
	return t, nil
}

// UpdateFields applies a partial update to one non-deleted trade as a single statement.
func (r *Repository) UpdateFields(ctx context.Context, userID, tradeID string, fields ports.FieldSet) error {
	sets, args, err := setClauses(fields)
	if err != nil {
		return fmt.Errorf("failed to build update for trade %s: %w", tradeID, err)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now().UTC(), tradeID, userID)

	query := `UPDATE trades SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ? AND deleted = 0`
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update trade %s: %w: %v", tradeID, ports.ErrUpdateFailed, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update of trade %s: %w", tradeID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade %s not found for update: %w", tradeID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": tradeID, "fields": len(fields)})
	return nil
}

func insertArgs(t *domain.Trade) ([]interface{}, error) {
	entry, err := legArgs(&t.Entry)
	if err != nil {
		return nil, err
	}
	exit, err := legArgs(t.Exit)
	if err != nil {
		return nil, err
	}
	tags, err := encodeStrings(t.Tags)
	if err != nil {
		return nil, err
	}
	mistakes, err := encodeStrings(t.Mistakes)
	if err != nil {
		return nil, err
	}

	args := []interface{}{
		t.ID, t.UserID, t.BrokerID, nullString(t.BrokerTradeID),
		t.Symbol, t.Exchange, string(t.Segment), t.InstrumentType, string(t.TradeType), string(t.Position),
	}
	args = append(args, entry...)
	args = append(args, exit...)
	args = append(args,
		string(t.Status),
		t.PnL.Gross, t.PnL.Net, t.PnL.Charges, t.PnL.Brokerage, t.PnL.Taxes, t.PnL.PercentageGain, t.PnL.IsProfit,
		nullFloat(t.StopLoss), nullFloat(t.Target), t.RiskRewardRatio, t.BreakevenPrice,
		t.Strategy, tags, t.Notes, t.Psychology, mistakes,
		t.HoldingPeriod, t.Deleted, nullTime(t.DeletedAt), t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	return args, nil
}

// setClauses translates a FieldSet into SET assignments. Fields are emitted
// in a fixed order so identical updates produce identical SQL.
func setClauses(fields ports.FieldSet) ([]string, []interface{}, error) {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, string(f))
	}
	sort.Strings(names)

	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	for _, name := range names {
		field := ports.TradeField(name)
		value := fields[field]
		switch field {
		case ports.FieldEntry:
			leg, ok := value.(domain.Leg)
			if !ok {
				return nil, nil, typeError(field, value)
			}
			vals, err := legArgs(&leg)
			if err != nil {
				return nil, nil, err
			}
			for i, col := range legColumns("entry") {
				add(col, vals[i])
			}
		case ports.FieldExit:
			leg, ok := value.(*domain.Leg)
			if !ok {
				return nil, nil, typeError(field, value)
			}
			vals, err := legArgs(leg)
			if err != nil {
				return nil, nil, err
			}
			for i, col := range legColumns("exit") {
				add(col, vals[i])
			}
		case ports.FieldStatus:
			s, ok := value.(domain.TradeStatus)
			if !ok {
				return nil, nil, typeError(field, value)
			}
			add("status", string(s))
		case ports.FieldPnL:
			p, ok := value.(domain.PnL)
			if !ok {
				return nil, nil, typeError(field, value)
			}
			add("pnl_gross", p.Gross)
			add("pnl_net", p.Net)
			add("pnl_charges", p.Charges)
			add("pnl_brokerage", p.Brokerage)
			add("pnl_taxes", p.Taxes)
			add("pnl_percentage", p.PercentageGain)
			add("pnl_is_profit", p.IsProfit)
		case ports.FieldStopLoss, ports.FieldTarget:
			v, ok := value.(*float64)
			if !ok {
				return nil, nil, typeError(field, value)
			}
			column := "stop_loss"
			if field == ports.FieldTarget {
				column = "target"
			}
			add(column, nullFloat(v))
		case ports.FieldRiskReward, ports.FieldBreakeven:
			v, ok := value.(float64)
			if !ok {
				return nil, nil, typeError(field, value)
			}
			column := "risk_reward"
			if field == ports.FieldBreakeven {
				column = "breakeven_price"
			}
			add(column, v)
		case ports.FieldHoldingPeriod:
			v, ok := value.(int64)
			if !ok {
				return nil, nil, typeError(field, value)
			}
			add("holding_period", v)
		case ports.FieldStrategy, ports.FieldNotes, ports.FieldPsychology, ports.FieldInstrumentType:
			v, ok := value.(string)
			if !ok {
				return nil, nil, typeError(field, value)
			}
			add(stringColumns[field], v)
		case ports.FieldTags, ports.FieldMistakes:
			v, ok := value.([]string)
			if !ok {
				return nil, nil, typeError(field, value)
			}
			encoded, err := encodeStrings(v)
			if err != nil {
				return nil, nil, err
			}
			column := "tags"
			if field == ports.FieldMistakes {
				column = "mistakes"
			}
			add(column, encoded)
		case ports.FieldDeletedAt:
			at, ok := value.(time.Time)
			if !ok {
				return nil, nil, typeError(field, value)
			}
			add("deleted", true)
			add("deleted_at", at.UTC())
		default:
			return nil, nil, fmt.Errorf("%w: unknown field %q", ports.ErrUpdateFailed, field)
		}
	}
	return sets, args, nil
}

var stringColumns = map[ports.TradeField]string{
	ports.FieldStrategy:       "strategy",
	ports.FieldNotes:          "notes",
	ports.FieldPsychology:     "psychology",
	ports.FieldInstrumentType: "instrument_type",
}

func legColumns(prefix string) []string {
	return []string{
		prefix + "_price", prefix + "_quantity", prefix + "_time",
		prefix + "_order_type", prefix + "_brokerage", prefix + "_taxes",
	}
}

func typeError(field ports.TradeField, value interface{}) error {
	return fmt.Errorf("%w: field %q has unexpected type %T", ports.ErrUpdateFailed, field, value)
}

// classify maps constraint violations onto the port's error taxonomy.
func classify(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %v", ports.ErrDuplicateEntry, err)
		}
		return fmt.Errorf("%w: %v", ports.ErrInvalidInput, err)
	}
	return err
}
