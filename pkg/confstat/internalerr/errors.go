package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrMalformedRow aborts a run: a row whose keyword list or timestamp
	// cannot be parsed.
	ErrMalformedRow = errors.New("malformed input row")
	// ErrUnboundSlot reports a (variant, label) pair with no registered
	// data source when a dashboard is assembled.
	ErrUnboundSlot = errors.New("unbound data source slot")
)
