package analytics

import (
	"encoding/json"
	"math"

	"tradeJournal/internal/pnl"
	"tradeJournal/internal/ports"
)

// Summary is the headline view of a user's trades in a date range.
// Win/loss figures cover closed trades only and are based on net P&L.
type Summary struct {
	TotalTrades     int `json:"totalTrades" msgpack:"total_trades"`
	OpenTrades      int `json:"openTrades" msgpack:"open_trades"`
	PartialTrades   int `json:"partialTrades" msgpack:"partial_trades"`
	ClosedTrades    int `json:"closedTrades" msgpack:"closed_trades"`
	CancelledTrades int `json:"cancelledTrades" msgpack:"cancelled_trades"`

	WinningTrades   int     `json:"winningTrades" msgpack:"winning_trades"`
	LosingTrades    int     `json:"losingTrades" msgpack:"losing_trades"`
	BreakEvenTrades int     `json:"breakEvenTrades" msgpack:"break_even_trades"`
	WinRate         float64 `json:"winRate" msgpack:"win_rate"` // percent

	TotalPnL     float64 `json:"totalPnl" msgpack:"total_pnl"`
	TotalCharges float64 `json:"totalCharges" msgpack:"total_charges"`
	AvgWin       float64 `json:"avgWin" msgpack:"avg_win"`
	AvgLoss      float64 `json:"avgLoss" msgpack:"avg_loss"` // negative or zero
	LargestWin   float64 `json:"largestWin" msgpack:"largest_win"`
	LargestLoss  float64 `json:"largestLoss" msgpack:"largest_loss"`
	// ProfitFactor is +Inf when there are wins and no losses.
	ProfitFactor float64 `json:"profitFactor" msgpack:"profit_factor"`
}

// SummaryFromTotals derives a Summary from raw store totals.
func SummaryFromTotals(t ports.SummaryTotals) *Summary {
	s := &Summary{
		TotalTrades:     t.TotalTrades,
		OpenTrades:      t.OpenTrades,
		PartialTrades:   t.PartialTrades,
		ClosedTrades:    t.ClosedTrades,
		CancelledTrades: t.CancelledTrades,
		WinningTrades:   t.WinningTrades,
		LosingTrades:    t.LosingTrades,
		BreakEvenTrades: t.BreakEvenTrades,
		WinRate:         WinRate(t.WinningTrades, t.LosingTrades),
		TotalPnL:        pnl.Round2(t.TotalPnL),
		TotalCharges:    pnl.Round2(t.TotalCharges),
		LargestWin:      pnl.Round2(t.LargestWin),
		LargestLoss:     pnl.Round2(t.LargestLoss),
		ProfitFactor:    ProfitFactor(t.TotalWinPnL, t.TotalLossPnL),
	}
	if t.WinningTrades > 0 {
		s.AvgWin = pnl.Round2(t.TotalWinPnL / float64(t.WinningTrades))
	}
	if t.LosingTrades > 0 {
		s.AvgLoss = pnl.Round2(t.TotalLossPnL / float64(t.LosingTrades))
	}
	return s
}

// WinRate returns wins/(wins+losses) as a percentage, or 0 without decided trades.
func WinRate(wins, losses int) float64 {
	if wins+losses == 0 {
		return 0
	}
	return pnl.Round2(float64(wins) / float64(wins+losses) * 100)
}

// ProfitFactor returns totalWin/|totalLoss|. Without losses it is +Inf when
// anything was won and 0 otherwise.
func ProfitFactor(totalWin, totalLoss float64) float64 {
	if totalLoss == 0 {
		if totalWin > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return pnl.Round2(totalWin / math.Abs(totalLoss))
}

// MarshalJSON writes an infinite profit factor as the string "Infinity",
// since JSON has no representation for it.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	out := struct {
		plain
		ProfitFactor interface{} `json:"profitFactor"`
	}{plain: plain(s), ProfitFactor: s.ProfitFactor}
	if math.IsInf(s.ProfitFactor, 1) {
		out.ProfitFactor = "Infinity"
	}
	return json.Marshal(out)
}
