package integration

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected RemoteErrorKind
	}{
		{http.StatusTooManyRequests, RemoteErrorRateLimited},
		{http.StatusInternalServerError, RemoteErrorTransient},
		{http.StatusBadGateway, RemoteErrorTransient},
		{http.StatusServiceUnavailable, RemoteErrorTransient},
		{http.StatusRequestTimeout, RemoteErrorTransient},
		{http.StatusBadRequest, RemoteErrorPermanent},
		{http.StatusUnauthorized, RemoteErrorPermanent},
		{http.StatusNotFound, RemoteErrorPermanent},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyStatus(tt.status))
		})
	}
}

func TestRemoteError_Is(t *testing.T) {
	rateLimited := NewStatusError("bulk_update", http.StatusTooManyRequests, `{"errors":[]}`, 3*time.Second)
	assert.ErrorIs(t, rateLimited, ErrRateLimited)
	assert.NotErrorIs(t, rateLimited, ErrTransientRemote)
	assert.NotErrorIs(t, rateLimited, ErrPermanentRemote)

	permanent := NewStatusError("bulk_update", http.StatusBadRequest, `{"errors":[{"errorId":25002}]}`, 0)
	assert.ErrorIs(t, permanent, ErrPermanentRemote)

	transport := NewTransportError("get_orders", errors.New("connection refused"))
	assert.ErrorIs(t, transport, ErrTransientRemote)
	assert.Contains(t, transport.Error(), "connection refused")

	wrapped := fmt.Errorf("page 2: %w", permanent)
	assert.ErrorIs(t, wrapped, ErrPermanentRemote)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewStatusError("op", http.StatusServiceUnavailable, "", 0)))
	assert.True(t, IsRetryable(NewStatusError("op", http.StatusTooManyRequests, "", 0)))
	assert.False(t, IsRetryable(NewStatusError("op", http.StatusBadRequest, "", 0)))
	assert.False(t, IsRetryable(errors.New("boom")))

	credential := fmt.Errorf("%w: %w", ErrCredentialUnavailable, NewStatusError("token", http.StatusServiceUnavailable, "", 0))
	assert.False(t, IsRetryable(credential), "credential failures abort the cycle")
}

func TestRetryAfterHint(t *testing.T) {
	d, ok := RetryAfterHint(fmt.Errorf("wrapped: %w", NewStatusError("op", http.StatusTooManyRequests, "", 7*time.Second)))
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, d)

	_, ok = RetryAfterHint(NewStatusError("op", http.StatusInternalServerError, "", 0))
	assert.False(t, ok)
}

func TestFailurePayload(t *testing.T) {
	assert.Equal(t, "", FailurePayload(nil))
	assert.Equal(t, `bulk_update: HTTP 500: {"message":"oops"}`,
		FailurePayload(NewStatusError("bulk_update", 500, `{"message":"oops"}`, 0)))
	assert.Equal(t, "plain", FailurePayload(errors.New("plain")))

	credential := fmt.Errorf("%w: %w", ErrCredentialUnavailable, NewStatusError("token", 400, `{"error":"invalid_grant"}`, 0))
	assert.Equal(t, `credential: token: HTTP 400: {"error":"invalid_grant"}`, FailurePayload(credential))
}
