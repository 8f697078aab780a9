package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := map[*Error]int{
		Validation("x"):             http.StatusBadRequest,
		NotFound("x"):               http.StatusNotFound,
		Unauthorized("x"):           http.StatusUnauthorized,
		Forbidden("x"):              http.StatusForbidden,
		Conflict("x"):               http.StatusConflict,
		Internal(errors.New("boom")): http.StatusInternalServerError,
	}
	for e, want := range cases {
		assert.Equal(t, want, e.Status(), e.Kind)
	}
}

func TestKindOfUnwraps(t *testing.T) {
	cause := errors.New("no rows")
	err := fmt.Errorf("load answer: %w", Wrap(cause, KindNotFound, "answer not found"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindInternal))
}

func TestInternalHidesCause(t *testing.T) {
	e := Internal(errors.New("dial tcp: refused"))
	assert.Equal(t, "internal server error", e.Message)
	assert.Contains(t, e.Error(), "refused")
}
