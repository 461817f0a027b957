package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidGroupError(t *testing.T) {
	err := NewInvalidGroupError("IW2", "VV", "burst IDs are not contiguous: [3 5]")
	assert.Contains(t, err.Error(), "IW2")
	assert.Contains(t, err.Error(), "VV")
	assert.True(t, errors.Is(err, ErrInvalidGroup))
	assert.True(t, IsInvalidGroup(err))
	assert.False(t, IsStructuralMismatch(err))
}

func TestInvalidGroupErrorWithoutPolarization(t *testing.T) {
	err := NewInvalidGroupError("IW1", "", "polarization groups do not share a start burst ID")
	assert.Equal(t, "invalid burst group (swath IW1): polarization groups do not share a start burst ID", err.Error())
}

func TestStructuralMismatchError(t *testing.T) {
	err := NewStructuralMismatchError("calibrationVectorList", "no time field found")
	assert.Contains(t, err.Error(), "calibrationVectorList")
	assert.True(t, errors.Is(err, ErrStructuralMismatch))
}

func TestUnsupportedConfigurationError(t *testing.T) {
	err := NewUnsupportedConfigurationError("burstid", "invalid mode name: NO")
	assert.True(t, errors.Is(err, ErrUnsupportedConfiguration))
	assert.True(t, IsUnsupportedConfiguration(err))
}

func TestSearchErrorWrapping(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewSearchError(0, "query failed", inner)
	assert.True(t, errors.Is(err, ErrSearchFailed))
	assert.Equal(t, inner, errors.Unwrap(err))
}

func TestDownloadError(t *testing.T) {
	inner := errors.New("timeout")
	err := NewDownloadError("https://example.com/burst.tiff", 3, inner)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.True(t, errors.Is(err, ErrDownloadFailed))
}

func TestWrapIO(t *testing.T) {
	assert.Nil(t, WrapIO("read", "/tmp/x", nil))

	wrapped := WrapIO("write", "/tmp/manifest.safe", fmt.Errorf("disk full"))
	assert.Contains(t, wrapped.Error(), "/tmp/manifest.safe")
	var ioErr *IOError
	assert.True(t, errors.As(wrapped, &ioErr))
}
