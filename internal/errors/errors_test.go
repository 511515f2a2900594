package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	t.Run("wraps error with context", func(t *testing.T) {
		err := Wrap(ErrNotFound, "encryption key lookup")
		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "encryption key lookup: not found", err.Error())
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "context"))
	})

	t.Run("double wrap preserves the root", func(t *testing.T) {
		err := Wrap(Wrap(ErrInvalidInput, "inner"), "outer")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestIs(t *testing.T) {
	err := Wrap(ErrConflict, "duplicate active key")
	assert.True(t, Is(err, ErrConflict))
	assert.False(t, Is(err, ErrNotFound))
}

func TestJoin(t *testing.T) {
	t.Run("joined errors match every member", func(t *testing.T) {
		err := Join(ErrInvalidInput, ErrFatal)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.ErrorIs(t, err, ErrFatal)
	})

	t.Run("all nil yields nil", func(t *testing.T) {
		assert.NoError(t, Join(nil, nil))
	})
}
