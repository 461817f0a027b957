package safe

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asfadmin/burst2safe/internal/sartest"
	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// fakeReader serves a constant raster for every burst.
type fakeReader struct{}

func (fakeReader) ReadBurst(info *burst.Info) ([]complex64, error) {
	samples := make([]complex64, info.Length*info.Width)
	for i := range samples {
		samples[i] = complex(float32(3), float32(-4))
	}
	return samples, nil
}

// writeSeamGroup writes two consecutive synthetic SLCs and returns the group
// spanning their seam.
func writeSeamGroup(t *testing.T) []*burst.Info {
	t.Helper()
	dir := t.TempDir()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	slcA := sartest.SLC{Start: t0}
	slcB := sartest.SLC{Start: t0.Add(9 * 2760 * time.Millisecond)}

	pathA := filepath.Join(dir, "slc_a.xml")
	pathB := filepath.Join(dir, "slc_b.xml")
	require.NoError(t, slcA.Write(pathA))
	require.NoError(t, slcB.Write(pathB))

	infos := []*burst.Info{
		slcA.BurstInfo(8, 100, pathA),
		slcB.BurstInfo(0, 101, pathB),
	}
	for _, info := range infos {
		require.NoError(t, info.AddShapeInfo())
		require.NoError(t, info.AddStartStopUTC())
	}
	return infos
}

func TestProductName(t *testing.T) {
	infos := []*burst.Info{
		{
			SLCGranule:    "S1A_IW_SLC__1SDV_20240101T000000_20240101T000049_048213_016E7F_AB12",
			Polarization:  "VV",
			AbsoluteOrbit: 48213,
			Date:          time.Date(2024, 1, 1, 0, 0, 22, 0, time.UTC),
		},
		{
			SLCGranule:    "S1A_IW_SLC__1SDV_20240101T000000_20240101T000049_048213_016E7F_AB12",
			Polarization:  "VV",
			AbsoluteOrbit: 48213,
			Date:          time.Date(2024, 1, 1, 0, 0, 24, 0, time.UTC),
		},
	}
	name := ProductName(infos, "0000")
	assert.Equal(t, "S1A_IW_SLC__1SSV_20240101T000022_20240101T000024_048213_016E7F_0000.SAFE", name)
}

func TestNewSwathRejectsMalformedSafeName(t *testing.T) {
	infos := makeSubset("IW1", "VV", 100, 10)
	_, err := NewSwath(infos, "/tmp/not-a-safe-name", nil, 1)
	assert.True(t, errors.IsStructuralMismatch(err))
}

func TestNewSafeValidatesGroup(t *testing.T) {
	_, err := NewSafe(makeSubset("IW1", "VV", 100, 10, 12), t.TempDir())
	assert.True(t, errors.IsInvalidGroup(err))
}

func TestCreateSafe(t *testing.T) {
	infos := writeSeamGroup(t)
	workDir := t.TempDir()

	product, err := NewSafe(infos, workDir)
	require.NoError(t, err)
	assert.Equal(t, "3.71.0", product.IPFVersion().String())

	safePath, err := product.CreateSafe(fakeReader{})
	require.NoError(t, err)

	// The placeholder identifier is replaced by the manifest CRC on rename.
	namePattern := regexp.MustCompile(`^S1A_IW_SLC__1SSV_20240101T000022_20240101T000024_048213_016E7F_[0-9A-F]{4}\.SAFE$`)
	assert.Regexp(t, namePattern, filepath.Base(safePath))
	assert.NotContains(t, filepath.Base(safePath), "_0000.SAFE")
	assert.Equal(t, safePath, product.Path())

	stem := "s1a-iw2-slc-vv-20240101t000022-20240101t000027-048213-016e7f-001"
	for _, rel := range []string{
		"manifest.safe",
		filepath.Join("preview", "map-overlay.kml"),
		filepath.Join("measurement", stem+".tiff"),
		filepath.Join("annotation", stem+".xml"),
		filepath.Join("annotation", "calibration", "noise-"+stem+".xml"),
		filepath.Join("annotation", "calibration", "calibration-"+stem+".xml"),
		filepath.Join("annotation", "rfi", "rfi-"+stem+".xml"),
	} {
		_, err := os.Stat(filepath.Join(safePath, rel))
		assert.NoError(t, err, rel)
	}

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromFile(filepath.Join(safePath, "manifest.safe")))
	root := doc.Root()
	assert.Equal(t, "XFDU", root.Tag)
	assert.NotNil(t, root.FindElement("informationPackageMap"))
	assert.NotNil(t, root.FindElement("metadataSection"))
	assert.NotNil(t, root.FindElement("dataObjectSection"))

	// Every written file appears as a data object with a relative href.
	hrefs := make(map[string]bool)
	for _, location := range root.FindElements("//fileLocation") {
		hrefs[location.SelectAttrValue("href", "")] = true
	}
	assert.True(t, hrefs["./measurement/"+stem+".tiff"])
	assert.True(t, hrefs["./annotation/"+stem+".xml"])
	assert.True(t, hrefs["./annotation/calibration/noise-"+stem+".xml"])
	assert.True(t, hrefs["./annotation/rfi/rfi-"+stem+".xml"])

	// The patched product annotation carries the raster statistics and strip
	// offsets.
	productDoc := etree.NewDocument()
	require.NoError(t, productDoc.ReadFromFile(filepath.Join(safePath, "annotation", stem+".xml")))
	mean := productDoc.Root().FindElement("imageAnnotation/imageInformation/imageStatistics/outputDataMean/re")
	require.NotNil(t, mean)
	assert.Equal(t, "3.000000e+00", mean.Text())
	for _, burstElem := range productDoc.Root().FindElements("swathTiming/burstList/burst") {
		assert.NotEmpty(t, burstElem.FindElement("byteOffset").Text())
	}
}

func TestCleanupRemovesInputs(t *testing.T) {
	infos := writeSeamGroup(t)
	dataPath := filepath.Join(t.TempDir(), "burst.tiff")
	require.NoError(t, os.WriteFile(dataPath, []byte("raster"), 0o644))
	infos[0].DataPath = dataPath

	product, err := NewSafe(infos, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, product.Cleanup())

	for _, path := range []string{dataPath, infos[0].MetadataPath, infos[1].MetadataPath} {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), path)
	}

	// A second cleanup is a no-op.
	assert.NoError(t, product.Cleanup())
}
