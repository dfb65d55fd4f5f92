package apperror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAttachesExtendedCode(t *testing.T) {
	err := New(KindPathUnreachable, "mkdir timed out")
	assert.Equal(t, CodePathUnreachable, err.Code)
	assert.Equal(t, KindPathUnreachable, err.Kind)
}

func TestWrapPreservesTypedError(t *testing.T) {
	original := New(KindDuplicate, "already added")
	wrapped := Wrap(original)
	assert.Same(t, original, wrapped)
}

func TestWrapClassifiesUnknownErrorAsInternal(t *testing.T) {
	wrapped := Wrap(errors.New("boom"))
	assert.Equal(t, KindInternal, wrapped.Kind)
	assert.Equal(t, 0, wrapped.Code)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil))
}
