package sqlite

import (
	"strings"

	"tradeJournal/internal/ports"
)

// buildWhere renders a filter as a WHERE expression scoped to the user's
// non-deleted trades.
func buildWhere(userID string, f ports.TradeFilter) (string, []interface{}) {
	conds := []string{"user_id = ?", "deleted = 0"}
	args := []interface{}{userID}

	eq := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = ?")
			args = append(args, value)
		}
	}

	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	eq("symbol", f.Symbol)
	eq("exchange", f.Exchange)
	eq("segment", string(f.Segment))
	eq("trade_type", string(f.TradeType))
	eq("position", string(f.Position))
	eq("strategy", f.Strategy)

	for _, tag := range f.Tags {
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(trades.tags) WHERE json_each.value = ?)")
		args = append(args, tag)
	}

	if !f.DateRange.From.IsZero() {
		conds = append(conds, "entry_time >= ?")
		args = append(args, f.DateRange.From.UTC())
	}
	if !f.DateRange.To.IsZero() {
		conds = append(conds, "entry_time <= ?")
		args = append(args, f.DateRange.To.UTC())
	}
	if f.MinPnL != nil {
		conds = append(conds, "pnl_net >= ?")
		args = append(args, *f.MinPnL)
	}
	if f.MaxPnL != nil {
		conds = append(conds, "pnl_net <= ?")
		args = append(args, *f.MaxPnL)
	}

	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		conds = append(conds, `(symbol LIKE ? ESCAPE '\' OR strategy LIKE ? ESCAPE '\' OR notes LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	return strings.Join(conds, " AND "), args
}

var sortColumns = map[ports.SortField]string{
	ports.SortByEntryTime: "entry_time",
	ports.SortByExitTime:  "exit_time",
	ports.SortByNetPnL:    "pnl_net",
	ports.SortBySymbol:    "symbol",
	ports.SortByCreatedAt: "created_at",
}

// orderBy defaults to newest entry first. The id tie-breaker keeps paging stable.
func orderBy(opts ports.FindOptions) string {
	column, ok := sortColumns[opts.SortBy]
	if !ok {
		column = "entry_time"
	}
	dir := " DESC"
	if opts.Ascending {
		dir = " ASC"
	}
	return " ORDER BY " + column + dir + ", id" + dir
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
