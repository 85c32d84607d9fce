package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/pnl"
	"tradeJournal/internal/ports"
)

// CreateTrade records a new open trade for the user.
func (s *TradeService) CreateTrade(ctx context.Context, userID string, in CreateTradeInput) (*domain.Trade, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	trade := s.newTrade(userID, in)
	if err := s.store.Insert(ctx, trade); err != nil {
		s.logger.Error(ctx, err, "Failed to save trade", map[string]interface{}{"userID": userID, "symbol": trade.Symbol})
		return nil, fmt.Errorf("failed to create trade: %w", err)
	}

	s.cache.Invalidate(ctx, userID, trade.ID)
	s.metrics.Mutation("create")
	s.logger.Info(ctx, "Trade created", map[string]interface{}{
		"userID":   userID,
		"tradeID":  trade.ID,
		"symbol":   trade.Symbol,
		"position": trade.Position,
		"quantity": trade.Entry.Quantity,
		"price":    trade.Entry.Price,
	})
	return trade, nil
}

// newTrade builds an open trade from validated input with its derived fields seeded.
func (s *TradeService) newTrade(userID string, in CreateTradeInput) *domain.Trade {
	now := s.now().UTC()
	entry := in.Entry
	entry.Timestamp = entry.Timestamp.UTC()
	trade := &domain.Trade{
		ID:             uuid.NewString(),
		UserID:         userID,
		BrokerID:       strings.TrimSpace(in.BrokerID),
		BrokerTradeID:  strings.TrimSpace(in.BrokerTradeID),
		Symbol:         strings.TrimSpace(in.Symbol),
		Exchange:       strings.TrimSpace(in.Exchange),
		Segment:        in.Segment,
		InstrumentType: in.InstrumentType,
		TradeType:      in.TradeType,
		Position:       in.Position,
		Entry:          entry,
		Status:         domain.StatusOpen,
		StopLoss:       in.StopLoss,
		Target:         in.Target,
		Strategy:       strings.TrimSpace(in.Strategy),
		Tags:           domain.NormalizeTags(in.Tags),
		Notes:          in.Notes,
		Psychology:     strings.TrimSpace(in.Psychology),
		Mistakes:       domain.NormalizeTags(in.Mistakes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.derive(trade)
	return trade
}

// ExitTrade closes all or part of an open or partial trade. An exit quantity
// below the entry quantity leaves the trade partial; a later exit replaces the leg.
func (s *TradeService) ExitTrade(ctx context.Context, userID, tradeID string, in ExitInput) (*domain.Trade, error) {
	trade, err := s.loadForMutation(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}
	switch trade.Status {
	case domain.StatusClosed:
		return nil, fmt.Errorf("cannot exit trade %s: %w", tradeID, ports.ErrTradeAlreadyClosed)
	case domain.StatusCancelled:
		return nil, ports.NewInvalidTradeStateError(trade.Status, "open or partial")
	}

	exit := in.leg()
	problems := legProblems("exit", exit)
	problems = append(problems, exitProblems(trade.Entry, exit)...)
	if err := ports.NewInvalidInputError(problems...); err != nil {
		return nil, err
	}

	from := trade.Status
	trade.Exit = &exit
	trade.Status = exitStatus(trade.Entry, exit)
	if err := s.recomputeAndPersist(ctx, trade, nil); err != nil {
		return nil, err
	}
	return s.finish(ctx, "exit", trade, map[string]interface{}{
		"from":     from,
		"to":       trade.Status,
		"quantity": exit.Quantity,
		"price":    exit.Price,
		"netPnl":   trade.PnL.Net,
	})
}

// CancelTrade cancels an open or partial trade.
func (s *TradeService) CancelTrade(ctx context.Context, userID, tradeID string) (*domain.Trade, error) {
	trade, err := s.loadForMutation(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.Status.IsTerminal() {
		return nil, ports.NewInvalidTradeStateError(trade.Status, "open or partial")
	}

	from := trade.Status
	trade.Status = domain.StatusCancelled
	if err := s.store.UpdateFields(ctx, userID, tradeID, ports.FieldSet{ports.FieldStatus: trade.Status}); err != nil {
		s.logger.Error(ctx, err, "Failed to cancel trade", map[string]interface{}{"tradeID": tradeID})
		return nil, fmt.Errorf("failed to cancel trade %s: %w", tradeID, err)
	}
	return s.finish(ctx, "cancel", trade, map[string]interface{}{"from": from})
}

// UpdateTrade applies a patch whose accepted fields depend on the trade's status.
// On partial and closed trades the patch must be a valid TradeCorrection.
func (s *TradeService) UpdateTrade(ctx context.Context, userID, tradeID string, patch TradePatch) (*domain.Trade, error) {
	if patch.IsEmpty() {
		return nil, ports.NewInvalidInputError("patch contains no fields")
	}
	trade, err := s.loadForMutation(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}

	switch trade.Status {
	case domain.StatusOpen:
		financial, err := applyOpen(trade, patch)
		if err != nil {
			return nil, err
		}
		if financial {
			err = s.recomputeAndPersist(ctx, trade, annotationFields(trade))
		} else {
			err = s.persist(ctx, trade, annotationFields(trade))
		}
		if err != nil {
			return nil, err
		}
	case domain.StatusPartial, domain.StatusClosed:
		correction, err := patch.Correction(trade.Status)
		if err != nil {
			return nil, err
		}
		if err := s.correct(ctx, trade, correction); err != nil {
			return nil, err
		}
	case domain.StatusCancelled:
		if err := applyCancelled(trade, patch); err != nil {
			return nil, err
		}
		if err := s.persist(ctx, trade, ports.FieldSet{ports.FieldTags: trade.Tags, ports.FieldNotes: trade.Notes}); err != nil {
			return nil, err
		}
	default:
		return nil, ports.NewInvalidTradeStateError(trade.Status, "a known status")
	}
	return s.finish(ctx, "update", trade, nil)
}

// CorrectTrade applies a correction to a partial or closed trade. The trade
// keeps its status; a correction that would change it is rejected.
func (s *TradeService) CorrectTrade(ctx context.Context, userID, tradeID string, c TradeCorrection) (*domain.Trade, error) {
	trade, err := s.loadForMutation(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}
	if !trade.Status.HasExit() {
		return nil, ports.NewInvalidTradeStateError(trade.Status, "partial or closed")
	}
	if err := s.correct(ctx, trade, c); err != nil {
		return nil, err
	}
	return s.finish(ctx, "correct", trade, nil)
}

func (s *TradeService) correct(ctx context.Context, trade *domain.Trade, c TradeCorrection) error {
	if err := applyCorrection(trade, c); err != nil {
		return err
	}
	if c.touchesFinancials() {
		return s.recomputeAndPersist(ctx, trade, annotationFields(trade))
	}
	return s.persist(ctx, trade, annotationFields(trade))
}

// DeleteTrade soft-deletes a trade. Deleted trades disappear from every read.
func (s *TradeService) DeleteTrade(ctx context.Context, userID, tradeID string) error {
	trade, err := s.loadForMutation(ctx, userID, tradeID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateFields(ctx, userID, tradeID, ports.FieldSet{ports.FieldDeletedAt: s.now().UTC()}); err != nil {
		s.logger.Error(ctx, err, "Failed to delete trade", map[string]interface{}{"tradeID": tradeID})
		return fmt.Errorf("failed to delete trade %s: %w", tradeID, err)
	}

	s.cache.Invalidate(ctx, userID, tradeID)
	s.metrics.Mutation("delete")
	s.logger.Info(ctx, "Trade deleted", map[string]interface{}{"userID": userID, "tradeID": tradeID, "symbol": trade.Symbol})
	return nil
}

// derive recomputes every derived field of the trade from its legs.
func (s *TradeService) derive(t *domain.Trade) {
	t.PnL = s.calc.ComputePnL(t.Entry, t.Exit, t.Position, t.Segment, t.TradeType)
	t.RiskRewardRatio = pnl.RiskRewardRatio(t.Entry.Price, t.StopLoss, t.Target, t.Position)
	t.BreakevenPrice = pnl.BreakevenPrice(t.Entry, t.PnL.Charges, t.Position)
	t.HoldingPeriod = pnl.HoldingPeriodMinutes(t.Entry, t.Exit)
}

// recomputeAndPersist is the only write path for financial fields: it derives
// P&L, risk-reward, breakeven and holding period, then writes legs, status,
// derived fields and extra in a single update.
func (s *TradeService) recomputeAndPersist(ctx context.Context, t *domain.Trade, extra ports.FieldSet) error {
	s.derive(t)
	fields := ports.FieldSet{
		ports.FieldEntry:         t.Entry,
		ports.FieldExit:          t.Exit,
		ports.FieldStatus:        t.Status,
		ports.FieldPnL:           t.PnL,
		ports.FieldStopLoss:      t.StopLoss,
		ports.FieldTarget:        t.Target,
		ports.FieldRiskReward:    t.RiskRewardRatio,
		ports.FieldBreakeven:     t.BreakevenPrice,
		ports.FieldHoldingPeriod: t.HoldingPeriod,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return s.persist(ctx, t, fields)
}

func (s *TradeService) persist(ctx context.Context, t *domain.Trade, fields ports.FieldSet) error {
	if err := s.store.UpdateFields(ctx, t.UserID, t.ID, fields); err != nil {
		s.logger.Error(ctx, err, "Failed to persist trade update", map[string]interface{}{"tradeID": t.ID, "fields": len(fields)})
		return fmt.Errorf("failed to update trade %s: %w", t.ID, err)
	}
	return nil
}

// loadForMutation reads the trade straight from the store, bypassing the cache.
func (s *TradeService) loadForMutation(ctx context.Context, userID, tradeID string) (*domain.Trade, error) {
	if err := requireIDs(userID, tradeID); err != nil {
		return nil, err
	}
	trade, err := s.store.FindByID(ctx, userID, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade %s: %w", tradeID, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("trade %s: %w", tradeID, ports.ErrNotFound)
	}
	return trade, nil
}

// finish invalidates the cache after a successful write and returns the
// trade as now stored.
func (s *TradeService) finish(ctx context.Context, op string, t *domain.Trade, fields map[string]interface{}) (*domain.Trade, error) {
	s.cache.Invalidate(ctx, t.UserID, t.ID)
	s.metrics.Mutation(op)

	logFields := map[string]interface{}{"userID": t.UserID, "tradeID": t.ID, "status": t.Status}
	for k, v := range fields {
		logFields[k] = v
	}
	s.logger.Info(ctx, "Trade "+op+" applied", logFields)

	stored, err := s.store.FindByID(ctx, t.UserID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload trade %s: %w", t.ID, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("trade %s: %w", t.ID, ports.ErrNotFound)
	}
	return stored, nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ports.NewInvalidInputError("userId is required")
	}
	return nil
}

func requireIDs(userID, tradeID string) error {
	var problems []string
	if strings.TrimSpace(userID) == "" {
		problems = append(problems, "userId is required")
	}
	if strings.TrimSpace(tradeID) == "" {
		problems = append(problems, "tradeId is required")
	}
	return ports.NewInvalidInputError(problems...)
}
