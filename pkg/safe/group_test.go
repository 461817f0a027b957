package safe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// makeInfo creates a minimal burst descriptor for validation tests.
func makeInfo(swath, pol string, orbit, burstID int) *burst.Info {
	return &burst.Info{
		Granule:       fmt.Sprintf("S1A_%06d_%s_%s_BURST", burstID, swath, pol),
		Swath:         swath,
		Polarization:  pol,
		AbsoluteOrbit: orbit,
		BurstID:       burstID,
	}
}

func makeSubset(swath, pol string, orbit int, burstIDs ...int) []*burst.Info {
	infos := make([]*burst.Info, len(burstIDs))
	for i, id := range burstIDs {
		infos[i] = makeInfo(swath, pol, orbit, id)
	}
	return infos
}

func TestValidateSubset(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateSubset(makeSubset("IW1", "VV", 100, 10, 11, 12)))
	})

	t.Run("single burst", func(t *testing.T) {
		assert.NoError(t, ValidateSubset(makeSubset("IW1", "VV", 100, 10)))
	})

	t.Run("unsorted consecutive IDs", func(t *testing.T) {
		assert.NoError(t, ValidateSubset(makeSubset("IW1", "VV", 100, 12, 10, 11)))
	})

	t.Run("duplicate granules", func(t *testing.T) {
		infos := makeSubset("IW1", "VV", 100, 10, 11)
		infos[1].Granule = infos[0].Granule
		err := ValidateSubset(infos)
		require.True(t, errors.IsInvalidGroup(err))
		assert.Contains(t, err.Error(), "duplicate granules")
	})

	t.Run("mixed orbits", func(t *testing.T) {
		infos := makeSubset("IW1", "VV", 100, 10, 11)
		infos[1].AbsoluteOrbit = 101
		err := ValidateSubset(infos)
		require.True(t, errors.IsInvalidGroup(err))
		assert.Contains(t, err.Error(), "absolute orbit")
	})

	t.Run("mixed swaths", func(t *testing.T) {
		infos := append(makeSubset("IW1", "VV", 100, 10), makeInfo("IW2", "VV", 100, 11))
		err := ValidateSubset(infos)
		require.True(t, errors.IsInvalidGroup(err))
		assert.Contains(t, err.Error(), "same swath")
	})

	t.Run("mixed polarizations", func(t *testing.T) {
		infos := append(makeSubset("IW1", "VV", 100, 10), makeInfo("IW1", "VH", 100, 11))
		err := ValidateSubset(infos)
		require.True(t, errors.IsInvalidGroup(err))
		assert.Contains(t, err.Error(), "polarization")
	})

	t.Run("non-consecutive IDs", func(t *testing.T) {
		err := ValidateSubset(makeSubset("IW1", "VV", 100, 10, 12))
		require.True(t, errors.IsInvalidGroup(err))
		assert.Contains(t, err.Error(), "consecutive")
	})
}

func TestValidateGroup(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.True(t, errors.IsInvalidGroup(ValidateGroup(nil)))
	})

	t.Run("single subset", func(t *testing.T) {
		assert.NoError(t, ValidateGroup(makeSubset("IW1", "VV", 100, 10, 11)))
	})

	t.Run("matching polarizations", func(t *testing.T) {
		infos := append(makeSubset("IW1", "VV", 100, 10, 11), makeSubset("IW1", "VH", 100, 10, 11)...)
		assert.NoError(t, ValidateGroup(infos))
	})

	t.Run("polarization start ID mismatch", func(t *testing.T) {
		infos := append(makeSubset("IW1", "VV", 100, 10, 11), makeSubset("IW1", "VH", 100, 11, 12)...)
		err := ValidateGroup(infos)
		require.True(t, errors.IsInvalidGroup(err))
		assert.Contains(t, err.Error(), "start burst ID")
	})

	t.Run("polarization missing from one swath", func(t *testing.T) {
		infos := append(makeSubset("IW1", "VV", 100, 10, 11), makeSubset("IW2", "VH", 100, 10, 11)...)
		err := ValidateGroup(infos)
		assert.True(t, errors.IsInvalidGroup(err))
	})

	t.Run("adjacent swaths with identical ranges", func(t *testing.T) {
		infos := append(makeSubset("IW1", "VV", 100, 10, 11), makeSubset("IW2", "VV", 100, 10, 11)...)
		assert.NoError(t, ValidateGroup(infos))
	})

	t.Run("adjacent swaths offset by one", func(t *testing.T) {
		infos := append(makeSubset("IW1", "VV", 100, 10, 11), makeSubset("IW2", "VV", 100, 11, 12)...)
		assert.NoError(t, ValidateGroup(infos))
	})

	t.Run("swaths that do not overlap", func(t *testing.T) {
		infos := append(makeSubset("IW1", "VV", 100, 10, 11), makeSubset("IW2", "VV", 100, 14, 15)...)
		err := ValidateGroup(infos)
		require.True(t, errors.IsInvalidGroup(err))
		assert.Contains(t, err.Error(), "do not overlap")
	})

	t.Run("invalid subset surfaces", func(t *testing.T) {
		infos := makeSubset("IW1", "VV", 100, 10, 12)
		err := ValidateGroup(infos)
		require.True(t, errors.IsInvalidGroup(err))
		assert.Contains(t, err.Error(), "consecutive")
	})
}
