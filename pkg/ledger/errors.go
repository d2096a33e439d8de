package ledger

import "errors"

var (
	// ErrAccountNotFound is returned when an id has no registered account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned by CreateAccount for a duplicate id.
	ErrAccountExists = errors.New("account already exists")

	// ErrInsufficientBalance is returned from AppendOrder only when the
	// AllowNegative policy switch is off.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
