package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(New(KindNotFound, "record #%d not found", 7)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))

	// Classification survives fmt wrapping.
	wrapped := fmt.Errorf("handler: %w", New(KindPermissionDenied, "nope"))
	assert.Equal(t, KindPermissionDenied, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindPermissionDenied))
	assert.False(t, IsKind(wrapped, KindNotFound))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindServiceUnavailable, cause, "face recognition service unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "face recognition service unavailable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLowConfidence(t *testing.T) {
	err := LowConfidence(0.25)
	assert.Equal(t, KindLowConfidence, err.Kind)
	assert.Equal(t, 0.25, err.Confidence)
	assert.Contains(t, err.Error(), "25.0%")
}
