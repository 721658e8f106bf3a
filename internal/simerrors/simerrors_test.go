package simerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("should wrap the sentinel for its kind", func(t *testing.T) {
		err := New(NotFound, "patient 7")

		assert.Equal(t, "patient 7: not found", err.Error())
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("should omit the colon when detail is empty", func(t *testing.T) {
		err := New(StateViolation, "")

		assert.Equal(t, "state violation", err.Error())
	})
}

func TestWrap(t *testing.T) {
	t.Run("should fold the cause into the error text", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(StorageFault, "get scenario", cause)

		assert.True(t, errors.Is(err, ErrStorageFault))
		assert.True(t, errors.Is(err, cause))
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestKindOf(t *testing.T) {
	t.Run("should recover the kind from a plain error chain", func(t *testing.T) {
		err := Wrap(Timeout, "run 9", errors.New("deadline exceeded"))

		kind, ok := KindOf(err)

		assert.True(t, ok)
		assert.Equal(t, Timeout, kind)
	})

	t.Run("should report false for an unrelated error", func(t *testing.T) {
		_, ok := KindOf(errors.New("plain error"))

		assert.False(t, ok)
	})
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{NotFound, http.StatusNotFound},
		{InvalidParameter, http.StatusBadRequest},
		{StateViolation, http.StatusConflict},
		{Timeout, http.StatusGatewayTimeout},
		{EngineFault, http.StatusInternalServerError},
		{StorageFault, http.StatusInternalServerError},
		{TransportFault, http.StatusInternalServerError},
	}

	for _, c := range cases {
		t.Run(string(c.kind), func(t *testing.T) {
			assert.Equal(t, c.want, c.kind.StatusCode())
		})
	}
}
