package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndStatus(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      string
		status    int
		retryable bool
	}{
		{
			name:   "not found",
			err:    NewNotFoundError("scrap", 12),
			kind:   "not_found",
			status: http.StatusNotFound,
		},
		{
			name:   "wrapped conflict",
			err:    fmt.Errorf("resolve: %w", NewConflictError("object_link", "1/tt0133093", nil)),
			kind:   "conflict",
			status: http.StatusConflict,
		},
		{
			name:   "comparator",
			err:    NewComparatorError("year", "abc", errors.New("not an integer")),
			kind:   "comparator",
			status: http.StatusUnprocessableEntity,
		},
		{
			name:      "store timeout",
			err:       NewStoreTimeoutError("links.find", context.DeadlineExceeded),
			kind:      "store_timeout",
			status:    http.StatusGatewayTimeout,
			retryable: true,
		},
		{
			name:   "invariant",
			err:    NewInvariantViolation("object %d still owns %d links", 3, 1),
			kind:   "invariant_violation",
			status: http.StatusInternalServerError,
		},
		{
			name:      "plain error",
			err:       errors.New("connection refused"),
			kind:      "internal",
			status:    http.StatusInternalServerError,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Kind(tt.err))
			assert.Equal(t, tt.status, StatusCode(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NewStoreTimeoutError("objects.lock", context.DeadlineExceeded)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsStoreTimeout(fmt.Errorf("outer: %w", err)))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, http.StatusOK, StatusCode(nil))
	assert.Equal(t, "scrap 12 not found", NewNotFoundError("scrap", 12).Error())
}
