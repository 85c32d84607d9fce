package domain

// Segment is the market segment a trade belongs to.
type Segment string

const (
	SegmentEquity    Segment = "equity"
	SegmentFutures   Segment = "futures"
	SegmentOptions   Segment = "options"
	SegmentCommodity Segment = "commodity"
)

// Valid reports whether s is a known segment.
func (s Segment) Valid() bool {
	switch s {
	case SegmentEquity, SegmentFutures, SegmentOptions, SegmentCommodity:
		return true
	}
	return false
}

// TradeType is the holding style of a trade.
type TradeType string

const (
	TradeTypeIntraday TradeType = "intraday"
	TradeTypeDelivery TradeType = "delivery"
	TradeTypeSwing    TradeType = "swing"
)

// Valid reports whether t is a known trade type.
func (t TradeType) Valid() bool {
	switch t {
	case TradeTypeIntraday, TradeTypeDelivery, TradeTypeSwing:
		return true
	}
	return false
}

// Position is the direction of a trade.
type Position string

const (
	PositionLong  Position = "long"
	PositionShort Position = "short"
)

// Valid reports whether p is a known position direction.
func (p Position) Valid() bool {
	return p == PositionLong || p == PositionShort
}

// Multiplier returns 1 for long positions and -1 for short ones.
func (p Position) Multiplier() float64 {
	if p == PositionShort {
		return -1
	}
	return 1
}

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// EntrySide returns the order side of the entry leg for a position.
func (p Position) EntrySide() OrderSide {
	if p == PositionShort {
		return Sell
	}
	return Buy
}

// ExitSide returns the order side of the exit leg for a position.
func (p Position) ExitSide() OrderSide {
	if p == PositionShort {
		return Buy
	}
	return Sell
}

// TradeStatus represents the lifecycle state of a trade.
type TradeStatus string

const (
	StatusOpen      TradeStatus = "open"
	StatusPartial   TradeStatus = "partial"
	StatusClosed    TradeStatus = "closed"
	StatusCancelled TradeStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TradeStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusPartial, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further lifecycle transition is allowed from s.
func (s TradeStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// HasExit reports whether a trade in status s carries an exit leg.
func (s TradeStatus) HasExit() bool {
	return s == StatusPartial || s == StatusClosed
}

// OrderType is the order kind used for a leg.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStopLoss  OrderType = "stop_loss"
	OrderTypeStopLimit OrderType = "stop_limit"
)
