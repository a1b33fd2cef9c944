package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors returned by the service layer. Handlers map these to HTTP
// statuses; nothing here is retried internally.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("unauthorized")
)

// ExceedsBalanceError rejects a payment mutation that would push the paid
// amount above the consigned total. Remaining tells the caller how much can
// still be accepted.
type ExceedsBalanceError struct {
	Remaining decimal.Decimal
}

func (e *ExceedsBalanceError) Error() string {
	return fmt.Sprintf("payment exceeds remaining balance of %s", e.Remaining.String())
}
