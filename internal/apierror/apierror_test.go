package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs_MatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NoOpenSession("sin caja para %s", "rosa"))
	assert.ErrorIs(t, err, ErrNoOpenSession)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindNoOpenSession, KindOf(err))
	assert.Equal(t, "no_open_session: sin caja para rosa", errors.Unwrap(err).Error())
}

func TestKindOf_Internal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:        http.StatusUnprocessableEntity,
		KindIllegalTransition: http.StatusConflict,
		KindAlreadyOpen:       http.StatusConflict,
		KindAlreadyClosed:     http.StatusConflict,
		KindSessionClosed:     http.StatusConflict,
		KindNoOpenSession:     http.StatusConflict,
		KindNotFound:          http.StatusNotFound,
		KindUnauthorized:      http.StatusUnauthorized,
		KindForbidden:         http.StatusForbidden,
		KindRateLimited:       http.StatusTooManyRequests,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), kind)
	}
}

func TestFromError_HidesInternalDetail(t *testing.T) {
	env := FromError(errors.New("pq: connection refused"))
	assert.Equal(t, KindInternal, env.Kind)
	assert.NotContains(t, env.Detail, "pq")

	env = FromError(fmt.Errorf("x: %w", Validation("monto invalido")))
	assert.Equal(t, KindValidation, env.Kind)
	assert.Equal(t, "monto invalido", env.Detail)
}
