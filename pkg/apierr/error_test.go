package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasNoCause(t *testing.T) {
	err := New(CodeNotFound, "backup not found")
	assert.Equal(t, CodeNotFound, err.Code)
	assert.Nil(t, err.Unwrap())
	assert.Contains(t, err.Error(), "NOT_FOUND")
	assert.Contains(t, err.Error(), "backup not found")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeCannotCreateSink, "could not open object for writing", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestInternalAssignsCorrelationID(t *testing.T) {
	err1 := Internal(errors.New("boom"))
	err2 := Internal(errors.New("boom"))
	assert.NotEmpty(t, err1.CorrelationID)
	assert.NotEqual(t, err1.CorrelationID, err2.CorrelationID)
	assert.Equal(t, CodeInternalError, err1.Code)
}

func TestIsUnwrapsThroughFmtErrorf(t *testing.T) {
	base := New(CodeConflict, "object already exists")
	wrapped := fmt.Errorf("publishing backup: %w", base)

	assert.True(t, Is(wrapped, CodeConflict))
	assert.False(t, Is(wrapped, CodeNotFound))
}

func TestIsFalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), CodeNotFound))
	assert.False(t, Is(nil, CodeNotFound))
}
