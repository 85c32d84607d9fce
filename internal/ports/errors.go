package ports

import (
	"errors"
	"fmt"
	"strings"

	"tradeJournal/internal/domain"
)

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// Domain Errors
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTradeAlreadyClosed = errors.New("trade is already closed")
	ErrInvalidTradeState  = errors.New("invalid trade state")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")

	// Cache Specific Errors
	ErrCacheUnavailable = errors.New("cache is unavailable")
)

// InvalidTradeStateError reports an illegal lifecycle transition attempt.
type InvalidTradeStateError struct {
	Current  domain.TradeStatus
	Expected string
}

func (e *InvalidTradeStateError) Error() string {
	return fmt.Sprintf("invalid trade state: trade is %s, expected %s", e.Current, e.Expected)
}

// Is lets errors.Is(err, ErrInvalidTradeState) match any InvalidTradeStateError.
func (e *InvalidTradeStateError) Is(target error) bool {
	return target == ErrInvalidTradeState
}

// NewInvalidTradeStateError is a convenience constructor.
func NewInvalidTradeStateError(current domain.TradeStatus, expected string) error {
	return &InvalidTradeStateError{Current: current, Expected: expected}
}

// InvalidInputError carries the individual problems found in a request.
type InvalidInputError struct {
	Problems []string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

// Unwrap makes errors.Is(err, ErrInvalidInput) succeed.
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// NewInvalidInputError builds an InvalidInputError, or returns nil when there are no problems.
func NewInvalidInputError(problems ...string) error {
	if len(problems) == 0 {
		return nil
	}
	return &InvalidInputError{Problems: problems}
}
