package config

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for internal use.
var (
	ErrInvalidConfig = errors.New("invalid config")

	// Address
	ErrEmptyAddress    = errors.New("empty address")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrBadChecksum     = errors.New("address checksum mismatch")
	ErrNameNotResolved = errors.New("name does not resolve to an address")

	// Indexing API
	ErrProviderRateLimit   = errors.New("provider rate limit exceeded")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrMalformedResponse   = errors.New("malformed provider response")
	ErrCircuitOpen         = errors.New("circuit breaker is open")

	// Wallet
	ErrWalletNotConfigured = errors.New("wallet provider not configured")
	ErrWalletUnavailable   = errors.New("wallet provider unavailable")
	ErrWalletRejected      = errors.New("wallet authorization rejected")
	ErrNoAccounts          = errors.New("wallet exposed no accounts")

	// Session
	ErrQuerySuperseded = errors.New("query superseded by a newer query")
)

// TransientError wraps an error that should be retried.
type TransientError struct {
	Err        error
	RetryAfter time.Duration // 0 = use default backoff
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient (retriable).
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// NewTransientErrorWithRetry wraps with explicit retry delay.
func NewTransientErrorWithRetry(err error, retryAfter time.Duration) error {
	return &TransientError{Err: err, RetryAfter: retryAfter}
}

// IsTransient returns true if the error is transient (retriable).
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// GetRetryAfter returns the retry delay if set, or 0.
func GetRetryAfter(err error) time.Duration {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}

// Error codes shared with the frontend via API responses.
const (
	ErrorInvalidRequest      = "ERROR_INVALID_REQUEST"
	ErrorEmptyAddress        = "ERROR_EMPTY_ADDRESS"
	ErrorInvalidAddress      = "ERROR_INVALID_ADDRESS"
	ErrorNameNotResolved     = "ERROR_NAME_NOT_RESOLVED"
	ErrorProviderRateLimit   = "ERROR_PROVIDER_RATE_LIMIT"
	ErrorProviderUnavailable = "ERROR_PROVIDER_UNAVAILABLE"
	ErrorCircuitOpen         = "ERROR_CIRCUIT_OPEN"
	ErrorWalletUnavailable   = "ERROR_WALLET_UNAVAILABLE"
	ErrorWalletRejected      = "ERROR_WALLET_REJECTED"
	ErrorQuerySuperseded     = "ERROR_QUERY_SUPERSEDED"
	ErrorQueryCancelled      = "ERROR_QUERY_CANCELLED"
	ErrorInternal            = "ERROR_INTERNAL"
)

// ErrorCode maps an error to the API error code the frontend understands.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyAddress):
		return ErrorEmptyAddress
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrBadChecksum):
		return ErrorInvalidAddress
	case errors.Is(err, ErrNameNotResolved):
		return ErrorNameNotResolved
	case errors.Is(err, ErrQuerySuperseded):
		return ErrorQuerySuperseded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorQueryCancelled
	case errors.Is(err, ErrCircuitOpen):
		return ErrorCircuitOpen
	case errors.Is(err, ErrProviderRateLimit):
		return ErrorProviderRateLimit
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrProviderRejected), errors.Is(err, ErrMalformedResponse):
		return ErrorProviderUnavailable
	case errors.Is(err, ErrWalletRejected):
		return ErrorWalletRejected
	case errors.Is(err, ErrWalletNotConfigured), errors.Is(err, ErrWalletUnavailable), errors.Is(err, ErrNoAccounts):
		return ErrorWalletUnavailable
	default:
		return ErrorInternal
	}
}

// IsUserError reports whether err stems from bad user input rather than an upstream failure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrEmptyAddress) ||
		errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrBadChecksum) ||
		errors.Is(err, ErrNameNotResolved)
}
