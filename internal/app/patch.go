package app

import (
	"fmt"
	"strings"
	"time"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
)

// CreateTradeInput is the payload of a new trade.
type CreateTradeInput struct {
	BrokerID       string           `json:"brokerId,omitempty"`
	BrokerTradeID  string           `json:"brokerTradeId,omitempty"`
	Symbol         string           `json:"symbol"`
	Exchange       string           `json:"exchange"`
	Segment        domain.Segment   `json:"segment"`
	InstrumentType string           `json:"instrumentType,omitempty"`
	TradeType      domain.TradeType `json:"tradeType"`
	Position       domain.Position  `json:"position"`
	Entry          domain.Leg       `json:"entry"`
	StopLoss       *float64         `json:"stopLoss,omitempty"`
	Target         *float64         `json:"target,omitempty"`
	Strategy       string           `json:"strategy,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	Psychology     string           `json:"psychology,omitempty"`
	Mistakes       []string         `json:"mistakes,omitempty"`
}

// Validate returns an InvalidInputError listing every problem of the input.
func (in CreateTradeInput) Validate() error {
	var problems []string
	if strings.TrimSpace(in.Symbol) == "" {
		problems = append(problems, "symbol is required")
	}
	if !in.Segment.Valid() {
		problems = append(problems, fmt.Sprintf("segment: unsupported value %q", in.Segment))
	}
	if !in.TradeType.Valid() {
		problems = append(problems, fmt.Sprintf("tradeType: unsupported value %q", in.TradeType))
	}
	if !in.Position.Valid() {
		problems = append(problems, fmt.Sprintf("position: unsupported value %q", in.Position))
	}
	problems = append(problems, legProblems("entry", in.Entry)...)
	problems = append(problems, boundProblems(in.StopLoss, in.Target)...)
	return ports.NewInvalidInputError(problems...)
}

// ExitInput closes all or part of a position.
type ExitInput struct {
	Price     float64          `json:"price"`
	Quantity  int64            `json:"quantity"`
	Timestamp time.Time        `json:"timestamp"`
	OrderType domain.OrderType `json:"orderType,omitempty"`
	Brokerage *float64         `json:"brokerage,omitempty"`
	Taxes     *domain.Taxes    `json:"taxes,omitempty"`
}

func (in ExitInput) leg() domain.Leg {
	return domain.Leg{
		Price:     in.Price,
		Quantity:  in.Quantity,
		Timestamp: in.Timestamp.UTC(),
		OrderType: in.OrderType,
		Brokerage: in.Brokerage,
		Taxes:     in.Taxes,
	}
}

// TradePatch is a partial update. Nil fields are left unchanged; a non-nil
// Tags or Mistakes slice replaces the stored set (empty clears it).
//
// Which fields are accepted depends on the trade's status: open trades take
// entry, risk and annotation changes; partial and closed trades take only the
// fields of a TradeCorrection; cancelled trades take notes and tags.
type TradePatch struct {
	EntryPrice     *float64          `json:"entryPrice,omitempty"`
	EntryQuantity  *int64            `json:"entryQuantity,omitempty"`
	EntryTimestamp *time.Time        `json:"entryTimestamp,omitempty"`
	EntryOrderType *domain.OrderType `json:"entryOrderType,omitempty"`
	EntryBrokerage *float64          `json:"entryBrokerage,omitempty"`
	EntryTaxes     *domain.Taxes     `json:"entryTaxes,omitempty"`

	ExitPrice     *float64      `json:"exitPrice,omitempty"`
	ExitQuantity  *int64        `json:"exitQuantity,omitempty"`
	ExitTimestamp *time.Time    `json:"exitTimestamp,omitempty"`
	ExitBrokerage *float64      `json:"exitBrokerage,omitempty"`
	ExitTaxes     *domain.Taxes `json:"exitTaxes,omitempty"`

	InstrumentType *string  `json:"instrumentType,omitempty"`
	StopLoss       *float64 `json:"stopLoss,omitempty"`
	Target         *float64 `json:"target,omitempty"`

	Strategy   *string  `json:"strategy,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
	Psychology *string  `json:"psychology,omitempty"`
	Mistakes   []string `json:"mistakes,omitempty"`
}

// TradeCorrection is the set of fields that may still be corrected after a
// trade has been exited. Price, quantity, brokerage and timestamp changes
// trigger a P&L recomputation; the trade's status never changes.
type TradeCorrection struct {
	EntryPrice     *float64   `json:"entryPrice,omitempty"`
	EntryQuantity  *int64     `json:"entryQuantity,omitempty"`
	EntryTimestamp *time.Time `json:"entryTimestamp,omitempty"`
	EntryBrokerage *float64   `json:"entryBrokerage,omitempty"`

	ExitPrice     *float64   `json:"exitPrice,omitempty"`
	ExitQuantity  *int64     `json:"exitQuantity,omitempty"`
	ExitTimestamp *time.Time `json:"exitTimestamp,omitempty"`
	ExitBrokerage *float64   `json:"exitBrokerage,omitempty"`

	StopLoss *float64 `json:"stopLoss,omitempty"`
	Target   *float64 `json:"target,omitempty"`

	Strategy   *string  `json:"strategy,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
	Psychology *string  `json:"psychology,omitempty"`
	Mistakes   []string `json:"mistakes,omitempty"`
}

// setFields names the fields present in the patch.
func (p TradePatch) setFields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.EntryPrice != nil, "entryPrice")
	add(p.EntryQuantity != nil, "entryQuantity")
	add(p.EntryTimestamp != nil, "entryTimestamp")
	add(p.EntryOrderType != nil, "entryOrderType")
	add(p.EntryBrokerage != nil, "entryBrokerage")
	add(p.EntryTaxes != nil, "entryTaxes")
	add(p.ExitPrice != nil, "exitPrice")
	add(p.ExitQuantity != nil, "exitQuantity")
	add(p.ExitTimestamp != nil, "exitTimestamp")
	add(p.ExitBrokerage != nil, "exitBrokerage")
	add(p.ExitTaxes != nil, "exitTaxes")
	add(p.InstrumentType != nil, "instrumentType")
	add(p.StopLoss != nil, "stopLoss")
	add(p.Target != nil, "target")
	add(p.Strategy != nil, "strategy")
	add(p.Tags != nil, "tags")
	add(p.Notes != nil, "notes")
	add(p.Psychology != nil, "psychology")
	add(p.Mistakes != nil, "mistakes")
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p TradePatch) IsEmpty() bool {
	return len(p.setFields()) == 0
}

var (
	exitFields       = fieldSet("exitPrice", "exitQuantity", "exitTimestamp", "exitBrokerage", "exitTaxes")
	correctionFields = fieldSet(
		"entryPrice", "entryQuantity", "entryTimestamp", "entryBrokerage",
		"exitPrice", "exitQuantity", "exitTimestamp", "exitBrokerage",
		"stopLoss", "target", "strategy", "tags", "notes", "psychology", "mistakes",
	)
	cancelledFields = fieldSet("notes", "tags")
)

func fieldSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// rejectFields returns an InvalidInputError naming the patch fields that
// fail accept, or nil.
func (p TradePatch) rejectFields(status domain.TradeStatus, accept func(string) bool) error {
	var rejected []string
	for _, name := range p.setFields() {
		if !accept(name) {
			rejected = append(rejected, name)
		}
	}
	if len(rejected) == 0 {
		return nil
	}
	return ports.NewInvalidInputError(fmt.Sprintf("fields %s cannot be changed on a %s trade", strings.Join(rejected, ", "), status))
}

// Correction converts the patch to a TradeCorrection. Fields that are not
// correctable are rejected rather than dropped.
func (p TradePatch) Correction(status domain.TradeStatus) (TradeCorrection, error) {
	if err := p.rejectFields(status, func(name string) bool { return correctionFields[name] }); err != nil {
		return TradeCorrection{}, err
	}
	return TradeCorrection{
		EntryPrice:     p.EntryPrice,
		EntryQuantity:  p.EntryQuantity,
		EntryTimestamp: p.EntryTimestamp,
		EntryBrokerage: p.EntryBrokerage,
		ExitPrice:      p.ExitPrice,
		ExitQuantity:   p.ExitQuantity,
		ExitTimestamp:  p.ExitTimestamp,
		ExitBrokerage:  p.ExitBrokerage,
		StopLoss:       p.StopLoss,
		Target:         p.Target,
		Strategy:       p.Strategy,
		Tags:           p.Tags,
		Notes:          p.Notes,
		Psychology:     p.Psychology,
		Mistakes:       p.Mistakes,
	}, nil
}

// touchesFinancials reports whether the correction changes anything P&L,
// risk-reward or holding period depend on.
func (c TradeCorrection) touchesFinancials() bool {
	return c.EntryPrice != nil || c.EntryQuantity != nil || c.EntryTimestamp != nil || c.EntryBrokerage != nil ||
		c.ExitPrice != nil || c.ExitQuantity != nil || c.ExitTimestamp != nil || c.ExitBrokerage != nil ||
		c.StopLoss != nil || c.Target != nil
}

// applyOpen applies a patch to an open trade and reports whether financial fields changed.
func applyOpen(t *domain.Trade, p TradePatch) (bool, error) {
	if err := p.rejectFields(t.Status, func(name string) bool { return !exitFields[name] }); err != nil {
		return false, err
	}

	financial := false
	if p.EntryPrice != nil {
		t.Entry.Price, financial = *p.EntryPrice, true
	}
	if p.EntryQuantity != nil {
		t.Entry.Quantity, financial = *p.EntryQuantity, true
	}
	if p.EntryTimestamp != nil {
		t.Entry.Timestamp, financial = p.EntryTimestamp.UTC(), true
	}
	if p.EntryOrderType != nil {
		t.Entry.OrderType, financial = *p.EntryOrderType, true
	}
	if p.EntryBrokerage != nil {
		t.Entry.Brokerage, financial = p.EntryBrokerage, true
	}
	if p.EntryTaxes != nil {
		t.Entry.Taxes, financial = p.EntryTaxes, true
	}
	if p.StopLoss != nil {
		t.StopLoss, financial = p.StopLoss, true
	}
	if p.Target != nil {
		t.Target, financial = p.Target, true
	}
	if p.InstrumentType != nil {
		t.InstrumentType = *p.InstrumentType
	}
	applyAnnotations(t, p.Strategy, p.Tags, p.Notes, p.Psychology, p.Mistakes)

	var problems []string
	problems = append(problems, legProblems("entry", t.Entry)...)
	problems = append(problems, boundProblems(t.StopLoss, t.Target)...)
	return financial, ports.NewInvalidInputError(problems...)
}

// applyCorrection applies a correction to a partial or closed trade. A
// correction may not move the trade between partial and closed.
func applyCorrection(t *domain.Trade, c TradeCorrection) error {
	if t.Exit == nil {
		return ports.NewInvalidTradeStateError(t.Status, "partial or closed")
	}
	if c.EntryPrice != nil {
		t.Entry.Price = *c.EntryPrice
	}
	if c.EntryQuantity != nil {
		t.Entry.Quantity = *c.EntryQuantity
	}
	if c.EntryTimestamp != nil {
		t.Entry.Timestamp = c.EntryTimestamp.UTC()
	}
	if c.EntryBrokerage != nil {
		t.Entry.Brokerage = c.EntryBrokerage
	}
	if c.ExitPrice != nil {
		t.Exit.Price = *c.ExitPrice
	}
	if c.ExitQuantity != nil {
		t.Exit.Quantity = *c.ExitQuantity
	}
	if c.ExitTimestamp != nil {
		t.Exit.Timestamp = c.ExitTimestamp.UTC()
	}
	if c.ExitBrokerage != nil {
		t.Exit.Brokerage = c.ExitBrokerage
	}
	if c.StopLoss != nil {
		t.StopLoss = c.StopLoss
	}
	if c.Target != nil {
		t.Target = c.Target
	}
	applyAnnotations(t, c.Strategy, c.Tags, c.Notes, c.Psychology, c.Mistakes)

	var problems []string
	problems = append(problems, legProblems("entry", t.Entry)...)
	problems = append(problems, legProblems("exit", *t.Exit)...)
	problems = append(problems, boundProblems(t.StopLoss, t.Target)...)
	problems = append(problems, exitProblems(t.Entry, *t.Exit)...)
	if len(problems) == 0 {
		if want := exitStatus(t.Entry, *t.Exit); want != t.Status {
			problems = append(problems, fmt.Sprintf("correction would change status from %s to %s; use exit instead", t.Status, want))
		}
	}
	return ports.NewInvalidInputError(problems...)
}

// applyCancelled applies a patch to a cancelled trade: only notes and tags may change.
func applyCancelled(t *domain.Trade, p TradePatch) error {
	if err := p.rejectFields(t.Status, func(name string) bool { return cancelledFields[name] }); err != nil {
		return err
	}
	applyAnnotations(t, nil, p.Tags, p.Notes, nil, nil)
	return nil
}

func applyAnnotations(t *domain.Trade, strategy *string, tags []string, notes, psychology *string, mistakes []string) {
	if strategy != nil {
		t.Strategy = strings.TrimSpace(*strategy)
	}
	if tags != nil {
		t.Tags = domain.NormalizeTags(tags)
	}
	if notes != nil {
		t.Notes = *notes
	}
	if psychology != nil {
		t.Psychology = strings.TrimSpace(*psychology)
	}
	if mistakes != nil {
		t.Mistakes = domain.NormalizeTags(mistakes)
	}
}

// annotationFields returns the field set persisting the trade's annotations.
func annotationFields(t *domain.Trade) ports.FieldSet {
	return ports.FieldSet{
		ports.FieldStrategy:       t.Strategy,
		ports.FieldTags:           t.Tags,
		ports.FieldNotes:          t.Notes,
		ports.FieldPsychology:     t.Psychology,
		ports.FieldMistakes:       t.Mistakes,
		ports.FieldInstrumentType: t.InstrumentType,
	}
}

// exitStatus is the status a trade ends up in after exiting with the given leg.
func exitStatus(entry, exit domain.Leg) domain.TradeStatus {
	if exit.Quantity < entry.Quantity {
		return domain.StatusPartial
	}
	return domain.StatusClosed
}

func legProblems(name string, leg domain.Leg) []string {
	var problems []string
	if leg.Price <= 0 {
		problems = append(problems, name+".price must be positive")
	}
	if leg.Quantity <= 0 {
		problems = append(problems, name+".quantity must be a positive integer")
	}
	if leg.Timestamp.IsZero() {
		problems = append(problems, name+".timestamp is required")
	}
	if leg.Brokerage != nil && *leg.Brokerage < 0 {
		problems = append(problems, name+".brokerage cannot be negative")
	}
	if leg.Taxes != nil {
		tx := leg.Taxes
		if tx.STT < 0 || tx.Exchange < 0 || tx.GST < 0 || tx.SEBI < 0 || tx.StampDuty < 0 || tx.Other < 0 {
			problems = append(problems, name+".taxes cannot be negative")
		}
	}
	return problems
}

func exitProblems(entry, exit domain.Leg) []string {
	var problems []string
	if exit.Quantity > entry.Quantity {
		problems = append(problems, fmt.Sprintf("exit.quantity %d exceeds entry.quantity %d", exit.Quantity, entry.Quantity))
	}
	if !exit.Timestamp.IsZero() && !entry.Timestamp.IsZero() && exit.Timestamp.Before(entry.Timestamp) {
		problems = append(problems, "exit.timestamp is before entry.timestamp")
	}
	return problems
}

func boundProblems(stopLoss, target *float64) []string {
	var problems []string
	if stopLoss != nil && *stopLoss <= 0 {
		problems = append(problems, "stopLoss must be positive")
	}
	if target != nil && *target <= 0 {
		problems = append(problems, "target must be positive")
	}
	return problems
}
