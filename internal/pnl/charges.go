package pnl

import "tradeJournal/internal/domain"

// ChargeRates describes how the charges of one leg are derived from its turnover.
// Every *Pct field is a percentage of turnover (0.03 means 0.03%).
type ChargeRates struct {
	BrokeragePct float64
	BrokerageCap float64 // flat maximum brokerage per leg
	// Transaction tax (STT/CTT) and the legs it applies to.
	TransactionTaxPct float64
	TaxBuyLeg         bool
	TaxSellLeg        bool
	ExchangePct       float64
	SEBIPct           float64
	GSTPct            float64 // applied to brokerage + exchange + SEBI
	StampDutyPct      float64 // buy leg only
}

type rateKey struct {
	segment   domain.Segment
	tradeType domain.TradeType
}

// RateTable maps segment/trade type to charge rates. A key with an empty trade
// type is the fallback for its segment.
type RateTable map[rateKey]ChargeRates

// Lookup returns the rates for the segment and trade type, falling back to the
// segment default and finally to equity intraday.
func (t RateTable) Lookup(segment domain.Segment, tradeType domain.TradeType) ChargeRates {
	if r, ok := t[rateKey{segment, tradeType}]; ok {
		return r
	}
	if r, ok := t[rateKey{segment, ""}]; ok {
		return r
	}
	return t[rateKey{domain.SegmentEquity, domain.TradeTypeIntraday}]
}

// Set registers rates for a segment/trade type pair. An empty trade type sets the segment default.
func (t RateTable) Set(segment domain.Segment, tradeType domain.TradeType, rates ChargeRates) {
	t[rateKey{segment, tradeType}] = rates
}

const gstPct = 18

// DefaultRates returns the built-in rate table (discount-broker schedule on Indian exchanges).
func DefaultRates() RateTable {
	delivery := ChargeRates{
		BrokeragePct: 0.1, BrokerageCap: 20,
		TransactionTaxPct: 0.1, TaxBuyLeg: true, TaxSellLeg: true,
		ExchangePct: 0.00297, SEBIPct: 0.0001, GSTPct: gstPct, StampDutyPct: 0.015,
	}
	return RateTable{
		{domain.SegmentEquity, domain.TradeTypeIntraday}: {
			BrokeragePct: 0.03, BrokerageCap: 20,
			TransactionTaxPct: 0.025, TaxSellLeg: true,
			ExchangePct: 0.00297, SEBIPct: 0.0001, GSTPct: gstPct, StampDutyPct: 0.003,
		},
		{domain.SegmentEquity, domain.TradeTypeDelivery}: delivery,
		{domain.SegmentEquity, domain.TradeTypeSwing}:    delivery,
		{domain.SegmentFutures, ""}: {
			BrokeragePct: 0.03, BrokerageCap: 20,
			TransactionTaxPct: 0.02, TaxSellLeg: true,
			ExchangePct: 0.00173, SEBIPct: 0.0001, GSTPct: gstPct, StampDutyPct: 0.002,
		},
		{domain.SegmentOptions, ""}: {
			BrokeragePct: 0.03, BrokerageCap: 20,
			TransactionTaxPct: 0.1, TaxSellLeg: true,
			ExchangePct: 0.03503, SEBIPct: 0.0001, GSTPct: gstPct, StampDutyPct: 0.003,
		},
		{domain.SegmentCommodity, ""}: {
			BrokeragePct: 0.03, BrokerageCap: 20,
			TransactionTaxPct: 0.01, TaxSellLeg: true,
			ExchangePct: 0.0021, SEBIPct: 0.0001, GSTPct: gstPct, StampDutyPct: 0.002,
		},
	}
}

// legCharges returns the unrounded brokerage and taxes of one leg.
func legCharges(leg domain.Leg, side domain.OrderSide, rates ChargeRates) (brokerage, taxes float64) {
	if leg.HasExplicitCharges() {
		if leg.Brokerage != nil {
			brokerage = *leg.Brokerage
		}
		if leg.Taxes != nil {
			taxes = leg.Taxes.Total()
		}
		return brokerage, taxes
	}

	turnover := leg.Turnover()
	brokerage = turnover * rates.BrokeragePct / 100
	if rates.BrokerageCap > 0 && brokerage > rates.BrokerageCap {
		brokerage = rates.BrokerageCap
	}

	var txnTax float64
	if (side == domain.Buy && rates.TaxBuyLeg) || (side == domain.Sell && rates.TaxSellLeg) {
		txnTax = turnover * rates.TransactionTaxPct / 100
	}
	exchange := turnover * rates.ExchangePct / 100
	sebi := turnover * rates.SEBIPct / 100
	gst := (brokerage + exchange + sebi) * rates.GSTPct / 100
	var stamp float64
	if side == domain.Buy {
		stamp = turnover * rates.StampDutyPct / 100
	}
	return brokerage, txnTax + exchange + sebi + gst + stamp
}
