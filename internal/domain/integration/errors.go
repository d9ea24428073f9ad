package integration

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

var (
	// ErrTransientRemote covers network failures and 5xx responses
	ErrTransientRemote = errors.New("integration: transient marketplace failure")
	// ErrRateLimited is returned on HTTP 429
	ErrRateLimited = errors.New("integration: marketplace rate limit exceeded")
	// ErrPermanentRemote covers 4xx rejections that retrying will not fix
	ErrPermanentRemote = errors.New("integration: marketplace rejected request")
	// ErrCredentialUnavailable aborts the current cycle; the next scheduled cycle tries again
	ErrCredentialUnavailable = errors.New("integration: marketplace credential unavailable")
	// ErrInvalidResponse is returned when a 2xx body cannot be decoded
	ErrInvalidResponse = errors.New("integration: invalid marketplace response")
	// ErrLocalInconsistency marks remote data that references local state which does not exist
	ErrLocalInconsistency = errors.New("integration: remote data references unknown local inventory")
)

// RemoteErrorKind classifies a marketplace failure
type RemoteErrorKind string

const (
	RemoteErrorTransient   RemoteErrorKind = "TRANSIENT"
	RemoteErrorRateLimited RemoteErrorKind = "RATE_LIMITED"
	RemoteErrorPermanent   RemoteErrorKind = "PERMANENT"
)

// RemoteError carries the raw upstream payload of a failed marketplace call.
// It matches ErrTransientRemote, ErrRateLimited or ErrPermanentRemote via errors.Is.
type RemoteError struct {
	Kind       RemoteErrorKind
	Operation  string
	StatusCode int
	// Body is the raw response body, kept verbatim for diagnosis
	Body string
	// RetryAfter is the server-requested delay, zero when absent
	RetryAfter time.Duration
	// Err is the transport error for failures without a response
	Err error
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("integration: %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("integration: %s failed: HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap returns the transport error, if any
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is maps the kind onto the taxonomy sentinels
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrTransientRemote:
		return e.Kind == RemoteErrorTransient
	case ErrRateLimited:
		return e.Kind == RemoteErrorRateLimited
	case ErrPermanentRemote:
		return e.Kind == RemoteErrorPermanent
	}
	return false
}

// Payload returns the diagnostic text stored in ledger lastResponse and the audit log
func (e *RemoteError) Payload() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: transport error: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
}

// ClassifyStatus maps an HTTP status code onto the taxonomy
func ClassifyStatus(statusCode int) RemoteErrorKind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return RemoteErrorRateLimited
	case statusCode == http.StatusRequestTimeout, statusCode >= 500:
		return RemoteErrorTransient
	default:
		return RemoteErrorPermanent
	}
}

// NewTransportError wraps a failure that produced no HTTP response
func NewTransportError(operation string, err error) *RemoteError {
	return &RemoteError{Kind: RemoteErrorTransient, Operation: operation, Err: err}
}

// NewStatusError builds a RemoteError from a non-2xx response
func NewStatusError(operation string, statusCode int, body string, retryAfter time.Duration) *RemoteError {
	return &RemoteError{
		Kind:       ClassifyStatus(statusCode),
		Operation:  operation,
		StatusCode: statusCode,
		Body:       body,
		RetryAfter: retryAfter,
	}
}

// IsRetryable reports whether err is worth retrying after a delay
func IsRetryable(err error) bool {
	if errors.Is(err, ErrCredentialUnavailable) {
		return false
	}
	return errors.Is(err, ErrTransientRemote) || errors.Is(err, ErrRateLimited)
}

// RetryAfterHint returns the server-requested delay carried by err
func RetryAfterHint(err error) (time.Duration, bool) {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) && remoteErr.RetryAfter > 0 {
		return remoteErr.RetryAfter, true
	}
	return 0, false
}

// FailurePayload renders err for lastResponse / audit storage, preferring the raw upstream body
func FailurePayload(err error) string {
	if err == nil {
		return ""
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		if errors.Is(err, ErrCredentialUnavailable) {
			return "credential: " + remoteErr.Payload()
		}
		return remoteErr.Payload()
	}
	return err.Error()
}
