package config

import (
	"errors"
	"net/http"
	"time"
)

// Sentinel errors for internal use.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientFunds = errors.New("insufficient nanas")
	ErrKYCRequired       = errors.New("KYC verification required")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrAnalysisFailed    = errors.New("analysis failed")

	ErrInvalidConfig = errors.New("invalid config")

	// Collaborators
	ErrMetadataFetchFailed     = errors.New("metadata fetch failed")
	ErrQualityClassifierFailed = errors.New("quality classifier failed")
	ErrProviderRateLimit       = errors.New("provider rate limit exceeded")
	ErrCircuitOpen             = errors.New("circuit breaker is open")

	ErrInvalidCredentials = errors.New("invalid credentials")
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

// IsTransient returns true if the error is transient (retriable).
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Error codes returned in API error responses.
const (
	ErrorInvalidArgument    = "ERROR_INVALID_ARGUMENT"
	ErrorInsufficientFunds  = "ERROR_INSUFFICIENT_FUNDS"
	ErrorKYCRequired        = "ERROR_KYC_REQUIRED"
	ErrorNotFound           = "ERROR_NOT_FOUND"
	ErrorInvalidState       = "ERROR_INVALID_STATE"
	ErrorAnalysisFailed     = "ERROR_ANALYSIS_FAILED"
	ErrorDatabase           = "ERROR_DATABASE"
	ErrorInvalidRequest     = "ERROR_INVALID_REQUEST"
	ErrorInvalidConfig      = "ERROR_INVALID_CONFIG"
	ErrorInvalidCredentials = "ERROR_INVALID_CREDENTIALS"
	ErrorUnauthorized       = "ERROR_UNAUTHORIZED"
	ErrorRateLimited        = "ERROR_RATE_LIMITED"
	ErrorInternal           = "ERROR_INTERNAL"
)

// errorTable maps sentinels to API codes and HTTP statuses. First match wins:
// an analysis failure caused by bad caller input reports ErrorInvalidArgument.
var errorTable = []struct {
	err    error
	code   string
	status int
}{
	{ErrInvalidArgument, ErrorInvalidArgument, http.StatusBadRequest},
	{ErrAnalysisFailed, ErrorAnalysisFailed, http.StatusBadGateway},
	{ErrInsufficientFunds, ErrorInsufficientFunds, http.StatusUnprocessableEntity},
	{ErrKYCRequired, ErrorKYCRequired, http.StatusForbidden},
	{ErrNotFound, ErrorNotFound, http.StatusNotFound},
	{ErrInvalidState, ErrorInvalidState, http.StatusConflict},
	{ErrInvalidCredentials, ErrorInvalidCredentials, http.StatusUnauthorized},
	{ErrInvalidConfig, ErrorInvalidConfig, http.StatusBadRequest},
}

// ErrorCode returns the API error code for err, or ErrorInternal.
func ErrorCode(err error) string {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ErrorInternal
}

// HTTPStatus returns the HTTP status for err, or 500.
func HTTPStatus(err error) int {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}
