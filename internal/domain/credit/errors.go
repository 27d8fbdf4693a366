package credit

import "errors"

var (
	// ErrInvalidAmount is returned when a credits/amount argument is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrInsufficientCredits is returned when the active balance cannot
	// cover a consume request; no partial deduction is applied
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrConcurrencyConflict is returned on a serialization/deadlock
	// failure; the whole operation may be retried after a fresh read
	ErrConcurrencyConflict = errors.New("concurrent ledger update conflict")

	// ErrUserNotFound is returned when user doesn't exist
	ErrUserNotFound = errors.New("user not found")

	ErrInternal = errors.New("internal error")
)
