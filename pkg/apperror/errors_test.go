package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("user: %w", ErrNotFound), http.StatusNotFound, KindNotFound},
		{ErrForbidden, http.StatusForbidden, KindForbidden},
		{Validation("title is required"), http.StatusBadRequest, KindValidation},
		{ErrRateLimitExceeded, http.StatusTooManyRequests, KindRateLimited},
		{fmt.Errorf("smtp: %w", ErrDelivery), http.StatusBadGateway, KindDelivery},
		{ErrCacheRefresh, http.StatusServiceUnavailable, KindCacheRefresh},
		{New(http.StatusUnauthorized, "invalid credentials", ErrUnauthorized), http.StatusUnauthorized, KindUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError, KindInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, MapErrorToStatus(tc.err), tc.err.Error())
		assert.Equal(t, tc.kind, Kind(tc.err), tc.err.Error())
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "title is required", PublicMessage(Validation("title is required")))
	assert.Equal(t, ErrInternal.Error(), PublicMessage(errors.New("pq: connection refused")))
	assert.Equal(t, "dashboard counts are temporarily unavailable", PublicMessage(fmt.Errorf("redis: %w", ErrCacheRefresh)))
	assert.Equal(t, "resource not found", PublicMessage(ErrNotFound))
}
