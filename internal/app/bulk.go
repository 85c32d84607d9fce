package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
)

// BulkOptions controls a bulk import.
type BulkOptions struct {
	// SkipDuplicates drops inputs whose broker trade id is already recorded
	// for the user or appears earlier in the same batch.
	SkipDuplicates bool `json:"skipDuplicates"`
}

// BulkResult reports the outcome of a bulk import. Error indexes refer to
// the input slice.
type BulkResult struct {
	Created int                    `json:"created"`
	Skipped int                    `json:"skipped"`
	Errors  []ports.BulkWriteError `json:"errors"`
}

// BulkCreateTrades imports trades as open trades. Invalid inputs and rows the
// store rejects are reported per index without stopping the rest of the
// batch. The user's cache entries are invalidated whatever the outcome.
func (s *TradeService) BulkCreateTrades(ctx context.Context, userID string, inputs []CreateTradeInput, opts BulkOptions) (*BulkResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	result := &BulkResult{Errors: []ports.BulkWriteError{}}
	defer s.cache.Invalidate(ctx, userID)

	seen := make(map[string]struct{})
	if opts.SkipDuplicates {
		existing, err := s.store.DistinctBrokerTradeIDs(ctx, userID)
		if err != nil {
			s.logger.Error(ctx, err, "Failed to load existing broker trade ids", map[string]interface{}{"userID": userID})
			return nil, fmt.Errorf("failed to load existing broker trade ids: %w", err)
		}
		for _, id := range existing {
			seen[id] = struct{}{}
		}
	}

	trades := make([]*domain.Trade, 0, len(inputs))
	inputIndex := make([]int, 0, len(inputs))
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			result.Errors = append(result.Errors, ports.BulkWriteError{Index: i, Reason: err.Error()})
			continue
		}
		if opts.SkipDuplicates {
			if brokerID := strings.TrimSpace(in.BrokerTradeID); brokerID != "" {
				if _, dup := seen[brokerID]; dup {
					result.Skipped++
					continue
				}
				seen[brokerID] = struct{}{}
			}
		}
		trades = append(trades, s.newTrade(userID, in))
		inputIndex = append(inputIndex, i)
	}

	if len(trades) > 0 {
		inserted, failures, err := s.store.InsertMany(ctx, trades)
		if err != nil {
			s.logger.Error(ctx, err, "Bulk insert failed", map[string]interface{}{"userID": userID, "batch": len(trades)})
			return nil, fmt.Errorf("failed to insert trade batch: %w", err)
		}
		result.Created = inserted
		for _, f := range failures {
			result.Errors = append(result.Errors, ports.BulkWriteError{Index: inputIndex[f.Index], Reason: f.Reason})
		}
	}
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Index < result.Errors[j].Index })

	s.metrics.Bulk(result.Created, result.Skipped, len(result.Errors))
	s.logger.Info(ctx, "Bulk import finished", map[string]interface{}{
		"userID":  userID,
		"inputs":  len(inputs),
		"created": result.Created,
		"skipped": result.Skipped,
		"failed":  len(result.Errors),
	})
	return result, nil
}
