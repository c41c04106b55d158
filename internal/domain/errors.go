package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. Adapters wrap these with %w so
// use-cases can match with errors.Is without importing adapter packages.
var (
	ErrSourceUnavailable = fmt.Errorf("generation source unavailable")
	ErrStreamError       = fmt.Errorf("stream terminated with error")
	ErrSessionCancelled  = fmt.Errorf("session cancelled")
	ErrSessionTerminal   = fmt.Errorf("session already terminal")
	ErrCacheStore        = fmt.Errorf("result cache operation failed")
	ErrConfigLoad        = fmt.Errorf("failed to load configuration")
	ErrDecryption        = fmt.Errorf("decryption failed")
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrQueueConsume      = fmt.Errorf("queue consume failed")
	ErrGatewayAuth       = fmt.Errorf("gateway authentication failed")
	ErrRateLimit         = fmt.Errorf("rate limit exceeded")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g., "Cache.Set")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsTerminal reports whether err means the session can never make progress again.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrSessionCancelled) || errors.Is(err, ErrSessionTerminal)
}
