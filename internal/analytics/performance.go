package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/pnl"
	"tradeJournal/internal/ports"
)

// Performance holds the performance profile of a set of closed trades.
type Performance struct {
	// Basic Metrics
	TotalTrades     int     `json:"totalTrades"`
	WinningTrades   int     `json:"winningTrades"`
	LosingTrades    int     `json:"losingTrades"`
	BreakEvenTrades int     `json:"breakEvenTrades"`
	WinRate         float64 `json:"winRate"` // percent
	TotalPnL        float64 `json:"totalPnl"`
	TotalCharges    float64 `json:"totalCharges"`
	MaxDrawdown     float64 `json:"maxDrawdown"`
	AverageWin      float64 `json:"averageWin"`
	AverageLoss     float64 `json:"averageLoss"`

	// Advanced Metrics
	MaxConsecutiveWins   int                `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int                `json:"maxConsecutiveLosses"`
	AverageHoldingPeriod float64            `json:"averageHoldingPeriod"` // minutes
	RecoveryFactor       float64            `json:"recoveryFactor"`
	Expectancy           float64            `json:"expectancy"`
	PayoffRatio          float64            `json:"payoffRatio"`
	MonthlyPnL           map[string]float64 `json:"monthlyPnl"`
	Drawdowns            []Drawdown         `json:"drawdowns"`
	EquityCurve          []EquityPoint      `json:"equityCurve"`
}

// Drawdown represents a drawdown period of cumulative P&L.
type Drawdown struct {
	StartTime  time.Time     `json:"startTime"`
	EndTime    time.Time     `json:"endTime"`
	StartValue float64       `json:"startValue"`
	EndValue   float64       `json:"endValue"`
	Depth      float64       `json:"depth"`
	Duration   time.Duration `json:"duration"`
	Recovered  bool          `json:"recovered"`
}

// EquityPoint represents a point on the cumulative P&L curve.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
}

// MonthlyPnL is the net P&L realised in one calendar month.
type MonthlyPnL struct {
	Month time.Time `json:"month"`
	PnL   float64   `json:"pnl"`
}

// Performance profiles the user's closed trades whose entry falls in the range.
func (a *Aggregator) Performance(ctx context.Context, userID string, r ports.DateRange) (*Performance, error) {
	trades, err := a.closedTrades(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	return AnalyzePerformance(trades), nil
}

// AnalyzePerformance calculates the performance profile of closed trades.
// Equity starts at zero and moves by each trade's net P&L at its exit time.
func AnalyzePerformance(trades []*domain.Trade) *Performance {
	p := &Performance{
		MonthlyPnL:  make(map[string]float64),
		Drawdowns:   make([]Drawdown, 0),
		EquityCurve: make([]EquityPoint, 0),
	}
	if len(trades) == 0 {
		return p
	}

	ordered := make([]*domain.Trade, len(trades))
	copy(ordered, trades)
	sortByExit(ordered)

	var equity, peak float64
	var current *Drawdown
	var consecutiveWins, consecutiveLosses int
	var totalWin, totalLoss float64
	var totalHolding int64

	for _, trade := range ordered {
		net := trade.PnL.Net
		at := exitTime(trade)

		p.TotalTrades++
		switch {
		case net > 0:
			p.WinningTrades++
			totalWin += net
			consecutiveWins++
			consecutiveLosses = 0
		case net < 0:
			p.LosingTrades++
			totalLoss += net
			consecutiveLosses++
			consecutiveWins = 0
		default:
			p.BreakEvenTrades++
			consecutiveWins, consecutiveLosses = 0, 0
		}
		p.MaxConsecutiveWins = max(p.MaxConsecutiveWins, consecutiveWins)
		p.MaxConsecutiveLosses = max(p.MaxConsecutiveLosses, consecutiveLosses)

		equity += net
		p.TotalPnL += net
		p.TotalCharges += trade.PnL.Charges
		totalHolding += trade.HoldingPeriod
		p.MonthlyPnL[at.Format("2006-01")] += net

		if equity > peak {
			peak = equity
			if current != nil {
				current.EndTime = at
				current.EndValue = equity
				current.Duration = current.EndTime.Sub(current.StartTime)
				current.Recovered = true
				p.Drawdowns = append(p.Drawdowns, *current)
				current = nil
			}
		} else if depth := peak - equity; depth > 0 {
			if current == nil {
				current = &Drawdown{StartTime: at, StartValue: peak}
			}
			current.Depth = math.Max(current.Depth, pnl.Round2(depth))
			p.MaxDrawdown = math.Max(p.MaxDrawdown, depth)
		}

		p.EquityCurve = append(p.EquityCurve, EquityPoint{
			Time:     at,
			Value:    pnl.Round2(equity),
			Drawdown: pnl.Round2(peak - equity),
		})
	}

	// Close any open drawdown
	if current != nil {
		current.EndTime = exitTime(ordered[len(ordered)-1])
		current.EndValue = equity
		current.Duration = current.EndTime.Sub(current.StartTime)
		p.Drawdowns = append(p.Drawdowns, *current)
	}

	p.TotalPnL = pnl.Round2(p.TotalPnL)
	p.TotalCharges = pnl.Round2(p.TotalCharges)
	p.MaxDrawdown = pnl.Round2(p.MaxDrawdown)
	p.WinRate = WinRate(p.WinningTrades, p.LosingTrades)
	p.AverageHoldingPeriod = pnl.Round2(float64(totalHolding) / float64(p.TotalTrades))
	for month, v := range p.MonthlyPnL {
		p.MonthlyPnL[month] = pnl.Round2(v)
	}
	if p.WinningTrades > 0 {
		p.AverageWin = pnl.Round2(totalWin / float64(p.WinningTrades))
	}
	if p.LosingTrades > 0 {
		p.AverageLoss = pnl.Round2(totalLoss / float64(p.LosingTrades))
	}
	if p.AverageLoss != 0 {
		p.PayoffRatio = pnl.Round2(p.AverageWin / -p.AverageLoss)
	}
	if p.MaxDrawdown > 0 {
		p.RecoveryFactor = pnl.Round2(p.TotalPnL / p.MaxDrawdown)
	}
	n := float64(p.TotalTrades)
	p.Expectancy = pnl.Round2(float64(p.WinningTrades)/n*p.AverageWin + float64(p.LosingTrades)/n*p.AverageLoss)

	return p
}

// GetMonthlyPnL returns the monthly P&L as a slice sorted by month.
func (p *Performance) GetMonthlyPnL() []MonthlyPnL {
	out := make([]MonthlyPnL, 0, len(p.MonthlyPnL))
	for month, v := range p.MonthlyPnL {
		date, err := time.Parse("2006-01", month)
		if err != nil {
			continue
		}
		out = append(out, MonthlyPnL{Month: date, PnL: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})
	return out
}

// exitTime is the time a trade's P&L was realised; entry time when it has no exit.
func exitTime(t *domain.Trade) time.Time {
	if t.Exit != nil && !t.Exit.Timestamp.IsZero() {
		return t.Exit.Timestamp
	}
	return t.Entry.Timestamp
}
