package burst_test

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asfadmin/burst2safe/internal/sartest"
	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

func writeSLC(t *testing.T, slc sartest.SLC) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.xml")
	require.NoError(t, slc.Write(path))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := burst.Load(filepath.Join(t.TempDir(), "missing.xml"))
	require.Error(t, err)
}

func TestMetadataAnnotation(t *testing.T) {
	slc := sartest.SLC{Swath: "IW2", Polarization: "VV"}
	meta, err := burst.Load(writeSLC(t, slc))
	require.NoError(t, err)

	for _, kind := range []string{burst.KindProduct, burst.KindNoise, burst.KindCalibration, burst.KindRFI} {
		content, err := meta.Annotation(kind, "IW2", "VV")
		require.NoError(t, err, kind)
		require.NotNil(t, content.FindElement("adsHeader"), kind)
	}

	_, err = meta.Annotation("orbit", "IW2", "VV")
	assert.True(t, errors.IsUnsupportedConfiguration(err))

	_, err = meta.Annotation(burst.KindProduct, "IW1", "VV")
	assert.True(t, errors.IsNotFound(err))

	_, err = meta.Annotation(burst.KindProduct, "IW2", "VH")
	assert.True(t, errors.IsNotFound(err))
}

func TestMetadataIPFVersion(t *testing.T) {
	slc := sartest.SLC{IPFVersion: "3.52"}
	meta, err := burst.Load(writeSLC(t, slc))
	require.NoError(t, err)

	ipf, err := meta.IPFVersion()
	require.NoError(t, err)
	assert.Equal(t, "3.52.0", ipf.String())
}

func TestMetadataManifestFragment(t *testing.T) {
	meta, err := burst.Load(writeSLC(t, sartest.SLC{}))
	require.NoError(t, err)

	xfdu, err := meta.ManifestFragment()
	require.NoError(t, err)
	assert.Equal(t, "XFDU", xfdu.Tag)
	assert.NotNil(t, xfdu.FindElement("metadataSection"))
}

func TestMetadataSLCLength(t *testing.T) {
	slc := sartest.SLC{NumBursts: 9, LinesPerBurst: 1500}
	meta, err := burst.Load(writeSLC(t, slc))
	require.NoError(t, err)

	length, err := meta.SLCLength("IW2", "VV")
	require.NoError(t, err)
	assert.Equal(t, 13500, length)
}

func TestAddShapeInfo(t *testing.T) {
	slc := sartest.SLC{LinesPerBurst: 1500, SamplesPerBurst: 100}
	path := writeSLC(t, slc)

	info := slc.BurstInfo(3, 42, path)
	require.NoError(t, info.AddShapeInfo())
	assert.Equal(t, 1500, info.Length)
	assert.Equal(t, 100, info.Width)
}

func TestAddStartStopUTC(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	slc := sartest.SLC{Start: t0}
	path := writeSLC(t, slc)

	info := slc.BurstInfo(2, 42, path)
	require.NoError(t, info.AddShapeInfo())
	require.NoError(t, info.AddStartStopUTC())

	assert.Equal(t, slc.BurstStart(2), info.StartUTC)
	assert.Equal(t, slc.BurstStop(2), info.StopUTC)
	assert.True(t, info.StopUTC.After(info.StartUTC))
}

// The combined metadata root element is itself tagged "burst", so burst
// lookups must stay anchored inside the swathTiming block. Every index,
// including the first, has to resolve to its own burst entry.
func TestAddStartStopUTCAllBursts(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	slc := sartest.SLC{Start: t0, NumBursts: 9}
	path := writeSLC(t, slc)

	for index := 0; index < 9; index++ {
		t.Run(fmt.Sprintf("index %d", index), func(t *testing.T) {
			info := slc.BurstInfo(index, 100+index, path)
			require.NoError(t, info.AddShapeInfo())
			require.NoError(t, info.AddStartStopUTC())
			assert.Equal(t, slc.BurstStart(index), info.StartUTC)
			assert.Equal(t, slc.BurstStop(index), info.StopUTC)
		})
	}
}

func TestAddStartStopUTCIndexOutOfRange(t *testing.T) {
	slc := sartest.SLC{NumBursts: 9}
	path := writeSLC(t, slc)

	info := slc.BurstInfo(0, 42, path)
	info.BurstIndex = 9
	require.NoError(t, info.AddShapeInfo())
	err := info.AddStartStopUTC()
	assert.True(t, errors.IsStructuralMismatch(err))
}

// Combined metadata files can carry several swaths; each swath's length must
// come from its own swathTiming block, not the first one in document order.
func TestMetadataSLCLengthMultiSwath(t *testing.T) {
	slcA := sartest.SLC{Swath: "IW1", NumBursts: 5, LinesPerBurst: 1200}
	slcB := sartest.SLC{Swath: "IW2", NumBursts: 9, LinesPerBurst: 1500}
	docA := slcA.BuildDocument()
	docB := slcB.BuildDocument()

	combined := etree.NewElement("burst")
	combined.AddChild(docA.Root().FindElement("manifest"))
	metadata := combined.CreateElement("metadata")
	for _, doc := range []*etree.Document{docA, docB} {
		for _, child := range doc.Root().FindElement("metadata").ChildElements() {
			metadata.AddChild(child)
		}
	}
	meta := burst.FromElement(combined)

	lengthA, err := meta.SLCLength("IW1", "VV")
	require.NoError(t, err)
	assert.Equal(t, 6000, lengthA)

	lengthB, err := meta.SLCLength("IW2", "VV")
	require.NoError(t, err)
	assert.Equal(t, 13500, lengthB)
}

func TestGroupInfos(t *testing.T) {
	infos := []*burst.Info{
		{Swath: "IW1", Polarization: "VV", BurstID: 12},
		{Swath: "IW1", Polarization: "VV", BurstID: 10},
		{Swath: "IW1", Polarization: "VV", BurstID: 11},
		{Swath: "IW1", Polarization: "VH", BurstID: 10},
		{Swath: "IW2", Polarization: "VV", BurstID: 10},
	}
	grouped := burst.GroupInfos(infos)

	require.Len(t, grouped, 2)
	require.Len(t, grouped["IW1"], 2)
	require.Len(t, grouped["IW2"], 1)

	subset := grouped["IW1"]["VV"]
	require.Len(t, subset, 3)
	assert.Equal(t, []int{10, 11, 12}, []int{subset[0].BurstID, subset[1].BurstID, subset[2].BurstID})
}
