package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tradeJournal/internal/domain"
)

const tradeColumns = `
	id, user_id, broker_id, broker_trade_id,
	symbol, exchange, segment, instrument_type, trade_type, position,
	entry_price, entry_quantity, entry_time, entry_order_type, entry_brokerage, entry_taxes,
	exit_price, exit_quantity, exit_time, exit_order_type, exit_brokerage, exit_taxes,
	status,
	pnl_gross, pnl_net, pnl_charges, pnl_brokerage, pnl_taxes, pnl_percentage, pnl_is_profit,
	stop_loss, target, risk_reward, breakeven_price,
	strategy, tags, notes, psychology, mistakes,
	holding_period, deleted, deleted_at, created_at, updated_at`

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row selected with tradeColumns into a domain.Trade.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var (
		brokerTradeID                        sql.NullString
		segment, tradeType, position, status string
		entryOrderType                       string
		entryBrokerage                       sql.NullFloat64
		entryTaxes                           sql.NullString
		exitPrice, exitBrokerage             sql.NullFloat64
		exitQuantity                         sql.NullInt64
		exitTime, deletedAt                  sql.NullTime
		exitOrderType, exitTaxes             sql.NullString
		stopLoss, target                     sql.NullFloat64
		tags, mistakes                       string
	)
	err := s.Scan(
		&t.ID, &t.UserID, &t.BrokerID, &brokerTradeID,
		&t.Symbol, &t.Exchange, &segment, &t.InstrumentType, &tradeType, &position,
		&t.Entry.Price, &t.Entry.Quantity, &t.Entry.Timestamp, &entryOrderType, &entryBrokerage, &entryTaxes,
		&exitPrice, &exitQuantity, &exitTime, &exitOrderType, &exitBrokerage, &exitTaxes,
		&status,
		&t.PnL.Gross, &t.PnL.Net, &t.PnL.Charges, &t.PnL.Brokerage, &t.PnL.Taxes, &t.PnL.PercentageGain, &t.PnL.IsProfit,
		&stopLoss, &target, &t.RiskRewardRatio, &t.BreakevenPrice,
		&t.Strategy, &tags, &t.Notes, &t.Psychology, &mistakes,
		&t.HoldingPeriod, &t.Deleted, &deletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}

	t.BrokerTradeID = brokerTradeID.String
	t.Segment = domain.Segment(segment)
	t.TradeType = domain.TradeType(tradeType)
	t.Position = domain.Position(position)
	t.Status = domain.TradeStatus(status)
	t.Entry.OrderType = domain.OrderType(entryOrderType)
	t.Entry.Timestamp = t.Entry.Timestamp.UTC()
	t.Entry.Brokerage = floatPtr(entryBrokerage)
	if t.Entry.Taxes, err = decodeTaxes(entryTaxes); err != nil {
		return nil, fmt.Errorf("trade %s: entry taxes: %w", t.ID, err)
	}

	if exitPrice.Valid {
		exit := &domain.Leg{
			Price:     exitPrice.Float64,
			Quantity:  exitQuantity.Int64,
			OrderType: domain.OrderType(exitOrderType.String),
			Brokerage: floatPtr(exitBrokerage),
		}
		if exitTime.Valid {
			exit.Timestamp = exitTime.Time.UTC()
		}
		if exit.Taxes, err = decodeTaxes(exitTaxes); err != nil {
			return nil, fmt.Errorf("trade %s: exit taxes: %w", t.ID, err)
		}
		t.Exit = exit
	}

	t.StopLoss = floatPtr(stopLoss)
	t.Target = floatPtr(target)
	if t.Tags, err = decodeStrings(tags); err != nil {
		return nil, fmt.Errorf("trade %s: tags: %w", t.ID, err)
	}
	if t.Mistakes, err = decodeStrings(mistakes); err != nil {
		return nil, fmt.Errorf("trade %s: mistakes: %w", t.ID, err)
	}
	if deletedAt.Valid {
		at := deletedAt.Time.UTC()
		t.DeletedAt = &at
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func encodeTaxes(t *domain.Taxes) (sql.NullString, error) {
	if t == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeTaxes(s sql.NullString) (*domain.Taxes, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var t domain.Taxes
	if err := json.Unmarshal([]byte(s.String), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeStrings(v []string) (string, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(s string) ([]string, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// legArgs returns the column values of a leg: price, quantity, time, order type, brokerage, taxes.
func legArgs(leg *domain.Leg) ([]interface{}, error) {
	if leg == nil {
		return []interface{}{nil, nil, nil, nil, nil, nil}, nil
	}
	taxes, err := encodeTaxes(leg.Taxes)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		leg.Price, leg.Quantity, leg.Timestamp.UTC(), string(leg.OrderType), nullFloat(leg.Brokerage), taxes,
	}, nil
}
