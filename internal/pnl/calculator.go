// Package pnl computes profit and loss, charges and risk figures for trades.
// Everything here is pure: the same inputs always produce the same outputs.
package pnl

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tradeJournal/internal/domain"
)

// Calculator computes trade P&L with a fixed charge rate table.
type Calculator struct {
	rates RateTable
}

// New creates a Calculator using the given rate table. A nil table selects DefaultRates.
func New(rates RateTable) *Calculator {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Calculator{rates: rates}
}

var defaultCalculator = New(nil)

// ComputePnL computes P&L using the default rate table.
func ComputePnL(entry domain.Leg, exit *domain.Leg, position domain.Position, segment domain.Segment, tradeType domain.TradeType) domain.PnL {
	return defaultCalculator.ComputePnL(entry, exit, position, segment, tradeType)
}

// ComputePnL derives the P&L of a trade from its legs.
//
// Gross P&L is always measured on the entry quantity, so a partially exited
// trade reports the economics of the full position at the exit price.
func (c *Calculator) ComputePnL(entry domain.Leg, exit *domain.Leg, position domain.Position, segment domain.Segment, tradeType domain.TradeType) domain.PnL {
	rates := c.rates.Lookup(segment, tradeType)

	brokerage, taxes := legCharges(entry, position.EntrySide(), rates)
	if exit == nil {
		charges := Round2(brokerage + taxes)
		return domain.PnL{
			Gross:     0,
			Net:       Round2(-charges),
			Charges:   charges,
			Brokerage: Round2(brokerage),
			Taxes:     Round2(taxes),
		}
	}

	exitBrokerage, exitTaxes := legCharges(*exit, position.ExitSide(), rates)
	brokerage += exitBrokerage
	taxes += exitTaxes

	gross := Round2(position.Multiplier() * (exit.Price - entry.Price) * float64(entry.Quantity))
	charges := Round2(brokerage + taxes)
	net := decimal.NewFromFloat(gross).Sub(decimal.NewFromFloat(charges)).Round(2).InexactFloat64()

	var pct float64
	if cost := entry.Turnover(); cost != 0 {
		pct = Round2(net / cost * 100)
	}

	return domain.PnL{
		Gross:          gross,
		Net:            net,
		Charges:        charges,
		Brokerage:      Round2(brokerage),
		Taxes:          Round2(taxes),
		PercentageGain: pct,
		IsProfit:       net > 0,
	}
}

// RiskRewardRatio returns reward/risk for the planned stop-loss and target.
// It is 0 when either bound is missing or the risk is not positive.
func RiskRewardRatio(entryPrice float64, stopLoss, target *float64, position domain.Position) float64 {
	if stopLoss == nil || target == nil {
		return 0
	}
	var risk, reward float64
	if position == domain.PositionShort {
		risk = *stopLoss - entryPrice
		reward = entryPrice - *target
	} else {
		risk = entryPrice - *stopLoss
		reward = *target - entryPrice
	}
	if risk <= 0 {
		return 0
	}
	return Round2(reward / risk)
}

// BreakevenPrice returns the exit price at which net P&L becomes zero, given the
// total charges of the trade.
func BreakevenPrice(entry domain.Leg, charges float64, position domain.Position) float64 {
	if entry.Quantity == 0 {
		return Round2(entry.Price)
	}
	perUnit := charges / float64(entry.Quantity)
	if position == domain.PositionShort {
		return Round2(entry.Price - perUnit)
	}
	return Round2(entry.Price + perUnit)
}

// HoldingPeriodMinutes returns the whole minutes between the entry and exit
// timestamps, or 0 when the exit is absent.
func HoldingPeriodMinutes(entry domain.Leg, exit *domain.Leg) int64 {
	if exit == nil || entry.Timestamp.IsZero() || exit.Timestamp.IsZero() {
		return 0
	}
	return int64(exit.Timestamp.Sub(entry.Timestamp) / time.Minute)
}

// Round2 rounds v to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
