package domain

import (
	"sort"
	"strings"
	"time"
)

// Taxes holds the explicit regulatory and transaction charges of one leg.
type Taxes struct {
	STT       float64 `json:"stt,omitempty" msgpack:"stt"`
	Exchange  float64 `json:"exchange,omitempty" msgpack:"exchange"`
	GST       float64 `json:"gst,omitempty" msgpack:"gst"`
	SEBI      float64 `json:"sebi,omitempty" msgpack:"sebi"`
	StampDuty float64 `json:"stampDuty,omitempty" msgpack:"stamp_duty"`
	Other     float64 `json:"other,omitempty" msgpack:"other"`
}

// Total returns the sum of all tax components.
func (t Taxes) Total() float64 {
	return t.STT + t.Exchange + t.GST + t.SEBI + t.StampDuty + t.Other
}

// Leg is one side (entry or exit) of a trade.
type Leg struct {
	Price     float64   `json:"price" msgpack:"price"`
	Quantity  int64     `json:"quantity" msgpack:"quantity"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	OrderType OrderType `json:"orderType,omitempty" msgpack:"order_type"`
	Brokerage *float64  `json:"brokerage,omitempty" msgpack:"brokerage"` // nil means "compute from the rate table"
	Taxes     *Taxes    `json:"taxes,omitempty" msgpack:"taxes"`         // nil means "compute from the rate table"
}

// Turnover is price × quantity for the leg.
func (l Leg) Turnover() float64 {
	return l.Price * float64(l.Quantity)
}

// HasExplicitCharges reports whether the leg carries user-supplied charges.
func (l Leg) HasExplicitCharges() bool {
	return l.Brokerage != nil || l.Taxes != nil
}

// PnL is the derived profit and loss of a trade. It is never authored directly.
type PnL struct {
	Gross          float64 `json:"gross" msgpack:"gross"`
	Net            float64 `json:"net" msgpack:"net"`
	Charges        float64 `json:"charges" msgpack:"charges"`
	Brokerage      float64 `json:"brokerage" msgpack:"brokerage"`
	Taxes          float64 `json:"taxes" msgpack:"taxes"`
	PercentageGain float64 `json:"percentageGain" msgpack:"percentage_gain"`
	IsProfit       bool    `json:"isProfit" msgpack:"is_profit"`
}

// Trade is a single journal entry owned by one user.
type Trade struct {
	ID            string `json:"id" msgpack:"id"`
	UserID        string `json:"userId" msgpack:"user_id"`
	BrokerID      string `json:"brokerId,omitempty" msgpack:"broker_id"`
	BrokerTradeID string `json:"brokerTradeId,omitempty" msgpack:"broker_trade_id"`

	Symbol         string    `json:"symbol" msgpack:"symbol"`
	Exchange       string    `json:"exchange" msgpack:"exchange"`
	Segment        Segment   `json:"segment" msgpack:"segment"`
	InstrumentType string    `json:"instrumentType,omitempty" msgpack:"instrument_type"`
	TradeType      TradeType `json:"tradeType" msgpack:"trade_type"`
	Position       Position  `json:"position" msgpack:"position"`

	Entry  Leg         `json:"entry" msgpack:"entry"`
	Exit   *Leg        `json:"exit,omitempty" msgpack:"exit"`
	Status TradeStatus `json:"status" msgpack:"status"`
	PnL    PnL         `json:"pnl" msgpack:"pnl"`

	StopLoss        *float64 `json:"stopLoss,omitempty" msgpack:"stop_loss"`
	Target          *float64 `json:"target,omitempty" msgpack:"target"`
	RiskRewardRatio float64  `json:"riskRewardRatio" msgpack:"risk_reward_ratio"`
	BreakevenPrice  float64  `json:"breakevenPrice" msgpack:"breakeven_price"`

	Strategy   string   `json:"strategy,omitempty" msgpack:"strategy"`
	Tags       []string `json:"tags,omitempty" msgpack:"tags"`
	Notes      string   `json:"notes,omitempty" msgpack:"notes"`
	Psychology string   `json:"psychology,omitempty" msgpack:"psychology"`
	Mistakes   []string `json:"mistakes,omitempty" msgpack:"mistakes"`

	HoldingPeriod int64 `json:"holdingPeriod" msgpack:"holding_period"` // minutes

	Deleted   bool       `json:"-" msgpack:"deleted"`
	DeletedAt *time.Time `json:"-" msgpack:"deleted_at"`
	CreatedAt time.Time  `json:"createdAt" msgpack:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" msgpack:"updated_at"`
}

// IsOpen checks if the trade status is open.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// Clone returns a deep copy of the trade.
func (t *Trade) Clone() *Trade {
	c := *t
	c.Entry = t.Entry.clone()
	if t.Exit != nil {
		exit := t.Exit.clone()
		c.Exit = &exit
	}
	c.StopLoss = cloneFloat(t.StopLoss)
	c.Target = cloneFloat(t.Target)
	c.Tags = cloneStrings(t.Tags)
	c.Mistakes = cloneStrings(t.Mistakes)
	if t.DeletedAt != nil {
		at := *t.DeletedAt
		c.DeletedAt = &at
	}
	return &c
}

func (l Leg) clone() Leg {
	l.Brokerage = cloneFloat(l.Brokerage)
	if l.Taxes != nil {
		taxes := *l.Taxes
		l.Taxes = &taxes
	}
	return l
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

func cloneStrings(v []string) []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v...)
}

// HasMistakes reports whether at least one non-blank mistake tag is set.
func (t *Trade) HasMistakes() bool {
	for _, m := range t.Mistakes {
		if strings.TrimSpace(m) != "" {
			return true
		}
	}
	return false
}

// NormalizeTags trims, de-duplicates and sorts a tag set. Blank tags are dropped.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
