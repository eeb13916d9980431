package domain

import "errors"

// Error kinds shared by every service. Callers classify failures with
// errors.Is; the HTTP layer maps them to status codes.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
	ErrConflict          = errors.New("conflict")
)
