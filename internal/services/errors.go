package services

import "errors"

// Error kinds reported to callers. Operations wrap one of these with context;
// classify with errors.Is.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrInvalidState       = errors.New("invalid state transition")
	ErrLapsed             = errors.New("policy lapsed")
	ErrCoverageExceeded   = errors.New("coverage exceeded")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrPaused             = errors.New("ledger paused")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrSelfTransfer       = errors.New("self transfer")
)

var errorKinds = []error{
	ErrUnauthorized,
	ErrNotFound,
	ErrInvalidParameters,
	ErrInvalidState,
	ErrLapsed,
	ErrCoverageExceeded,
	ErrInsufficientFunds,
	ErrPaused,
	ErrAlreadyInitialized,
	ErrSelfTransfer,
}

// KindOf returns the error kind err wraps, or nil for infrastructure failures.
func KindOf(err error) error {
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
