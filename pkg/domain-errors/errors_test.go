package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := errors.New("connection refused")
	wrapped := Wrap(base, CodeInternal, "failed to list cars")

	assert.True(t, HasCode(wrapped, CodeInternal))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(base, CodeInternal))
	assert.ErrorIs(t, wrapped, base)
}

func TestHasCodeFindsInnerCode(t *testing.T) {
	inner := New(CodeNotFound, "car not found")
	outer := Wrap(inner, CodeInternal, "history failed")

	assert.True(t, HasCode(outer, CodeNotFound))
	assert.Equal(t, CodeInternal, CodeOf(outer))
}

func TestCodeOfUncodedError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Empty(t, MessageOf(errors.New("boom")))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}
