package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asfadmin/burst2safe/pkg/errors"
)

// burstProduct builds a plausible search result for one burst.
func burstProduct(pol, swath string, orbit, relID, index int) Product {
	fileID := fmt.Sprintf("S1_%06d_%s_20240101T000022_%s_AB12-BURST", relID, swath, pol)
	return Product{
		Properties: Properties{
			FileID:          fileID,
			URL:             "https://example.test/data/" + fileID + ".tiff",
			AdditionalUrls:  []string{"https://example.test/meta/" + fileID + ".xml"},
			FlightDirection: "DESCENDING",
			PathNumber:      78,
			Orbit:           orbit,
			Polarization:    pol,
			Burst: BurstProperties{
				RelativeBurstID: relID,
				FullBurstID:     fmt.Sprintf("078_%06d_%s", relID, swath),
				BurstIndex:      index,
				Subswath:        swath,
			},
		},
		Umm: Umm{InputGranules: []string{
			"S1A_IW_SLC__1SDV_20240101T000000_20240101T000025_048213_016E7F_AB12-SLC",
		}},
	}
}

func serveFeatures(t *testing.T, handler func(r *http.Request) []Product) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "geojson", r.URL.Query().Get("output"))
		features := handler(r)
		require.NoError(t, json.NewEncoder(w).Encode(FeatureCollection{Features: features}))
	}))
	t.Cleanup(server.Close)
	return NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
}

func TestGroupOptionsValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts := GroupOptions{}
		require.NoError(t, opts.validate())
		assert.Equal(t, []string{"VV"}, opts.Polarizations)
		assert.Equal(t, "IW", opts.Mode)
		assert.Equal(t, []string{"IW1", "IW2", "IW3"}, opts.Swaths)
		assert.Equal(t, 1, opts.MinBursts)
	})

	t.Run("invalid polarization", func(t *testing.T) {
		opts := GroupOptions{Polarizations: []string{"XX"}}
		assert.Error(t, opts.validate())
	})

	t.Run("invalid mode", func(t *testing.T) {
		opts := GroupOptions{Mode: "SM"}
		assert.Error(t, opts.validate())
	})

	t.Run("swath for wrong mode", func(t *testing.T) {
		opts := GroupOptions{Mode: "IW", Swaths: []string{"EW4"}}
		assert.Error(t, opts.validate())
	})

	t.Run("ew swaths", func(t *testing.T) {
		opts := GroupOptions{Mode: "EW"}
		require.NoError(t, opts.validate())
		assert.Equal(t, []string{"EW1", "EW2", "EW3", "EW4", "EW5"}, opts.Swaths)
	})

	t.Run("relative orbit requires dates", func(t *testing.T) {
		opts := GroupOptions{UseRelativeOrbit: true, Orbit: 78}
		assert.Error(t, opts.validate())

		opts.StartDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		opts.EndDate = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
		assert.NoError(t, opts.validate())
	})
}

func TestFindGranules(t *testing.T) {
	products := []Product{
		burstProduct("VV", "IW1", 100, 10, 0),
		burstProduct("VV", "IW2", 100, 10, 0),
	}
	granules := []string{
		products[0].Properties.FileID,
		products[1].Properties.FileID,
	}

	client := serveFeatures(t, func(r *http.Request) []Product {
		assert.Equal(t, granules[0]+","+granules[1], r.URL.Query().Get("product_list"))
		return products
	})

	results, err := client.FindGranules(context.Background(), granules)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFindGranulesMissing(t *testing.T) {
	client := serveFeatures(t, func(r *http.Request) []Product {
		return []Product{burstProduct("VV", "IW1", 100, 10, 0)}
	})

	granules := []string{
		burstProduct("VV", "IW1", 100, 10, 0).Properties.FileID,
		"S1_000011_IW1_20240101T000022_VV_AB12-BURST",
	}
	_, err := client.FindGranules(context.Background(), granules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S1_000011_IW1_20240101T000022_VV_AB12-BURST")
	assert.Contains(t, err.Error(), "Vertex")
}

func TestSearchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "search is down", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))

	_, err := client.FindGranules(context.Background(), []string{"anything"})
	require.Error(t, err)
	var searchErr *errors.SearchError
	require.ErrorAs(t, err, &searchErr)
	assert.Equal(t, http.StatusBadGateway, searchErr.StatusCode)
}

func TestFindGroup(t *testing.T) {
	products := []Product{
		burstProduct("VV", "IW1", 100, 10, 0),
		burstProduct("VV", "IW2", 100, 10, 0),
		burstProduct("VH", "IW1", 100, 10, 0),
	}
	client := serveFeatures(t, func(r *http.Request) []Product {
		assert.Equal(t, "100", r.URL.Query().Get("absoluteOrbit"))
		assert.Equal(t, datasetSLCBurst, r.URL.Query().Get("dataset"))
		assert.Equal(t, "POLYGON((8 50,9 50,9 51,8 51,8 50))", r.URL.Query().Get("intersectsWith"))
		return products
	})

	group, err := client.FindGroup(context.Background(), GroupOptions{
		Orbit:         100,
		Footprint:     "POLYGON((8 50,9 50,9 51,8 51,8 50))",
		Polarizations: []string{"VV", "VH"},
		Swaths:        []string{"IW1"},
	})
	require.NoError(t, err)
	require.Len(t, group, 2)
	assert.Equal(t, "VV", group[0].Properties.Polarization)
	assert.Equal(t, "VH", group[1].Properties.Polarization)
}

func TestFindGroupNoBursts(t *testing.T) {
	client := serveFeatures(t, func(r *http.Request) []Product {
		return []Product{burstProduct("VV", "IW2", 100, 10, 0)}
	})

	_, err := client.FindGroup(context.Background(), GroupOptions{
		Orbit:     100,
		Footprint: "POINT(8 50)",
		Swaths:    []string{"IW1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bursts found")
	assert.Contains(t, err.Error(), "swath IW1")
}

func TestFindGroupPadsToMinBursts(t *testing.T) {
	padded := []Product{
		burstProduct("VV", "IW2", 100, 99, 3),
		burstProduct("VV", "IW2", 100, 100, 4),
		burstProduct("VV", "IW2", 100, 101, 5),
	}
	client := serveFeatures(t, func(r *http.Request) []Product {
		if fullIDs := r.URL.Query().Get("fullBurstID"); fullIDs != "" {
			// The padded search expands symmetrically around the seed burst.
			assert.Equal(t, "078_000099_IW2,078_000100_IW2,078_000101_IW2", fullIDs)
			assert.Equal(t, "100", r.URL.Query().Get("absoluteOrbit"))
			assert.Equal(t, "VV", r.URL.Query().Get("polarization"))
			return padded
		}
		return []Product{burstProduct("VV", "IW2", 100, 100, 4)}
	})

	group, err := client.FindGroup(context.Background(), GroupOptions{
		Orbit:     100,
		Footprint: "POINT(8 50)",
		Swaths:    []string{"IW2"},
		MinBursts: 3,
	})
	require.NoError(t, err)
	assert.Len(t, group, 3)
}

func TestFindGroupRelativeOrbitSplitsPasses(t *testing.T) {
	products := []Product{
		burstProduct("VV", "IW2", 100, 10, 0),
		burstProduct("VV", "IW2", 275, 10, 0),
	}
	client := serveFeatures(t, func(r *http.Request) []Product {
		if r.URL.Query().Get("relativeOrbit") != "" {
			assert.Equal(t, "78", r.URL.Query().Get("relativeOrbit"))
			assert.Equal(t, "2024-01-01T00:00:00Z", r.URL.Query().Get("start"))
			assert.Equal(t, "2024-01-31T23:59:59Z", r.URL.Query().Get("end"))
		}
		return products
	})

	group, err := client.FindGroup(context.Background(), GroupOptions{
		Orbit:            78,
		Footprint:        "POINT(8 50)",
		Swaths:           []string{"IW2"},
		UseRelativeOrbit: true,
		StartDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	// One subset per absolute orbit, ordered by orbit number.
	require.Len(t, group, 2)
	assert.Equal(t, 100, group[0].Properties.Orbit)
	assert.Equal(t, 275, group[1].Properties.Orbit)
}

func TestBurstInfo(t *testing.T) {
	product := burstProduct("VV", "IW2", 100, 42, 7)
	workDir := t.TempDir()

	info, err := BurstInfo(product, workDir)
	require.NoError(t, err)

	assert.Equal(t, product.Properties.FileID, info.Granule)
	assert.Equal(t, "S1A_IW_SLC__1SDV_20240101T000000_20240101T000025_048213_016E7F_AB12", info.SLCGranule)
	assert.Equal(t, "IW2", info.Swath)
	assert.Equal(t, "VV", info.Polarization)
	assert.Equal(t, 42, info.BurstID)
	assert.Equal(t, 7, info.BurstIndex)
	assert.Equal(t, "DESCENDING", info.Direction)
	assert.Equal(t, 100, info.AbsoluteOrbit)
	assert.Equal(t, 78, info.RelativeOrbit)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 22, 0, time.UTC), info.Date)
	assert.Equal(t, product.Properties.URL, info.DataURL)
	assert.Contains(t, info.DataPath, workDir)
	assert.Contains(t, info.DataPath, ".tiff")
	assert.Contains(t, info.MetadataPath, "S1A_IW_SLC__1SDV_20240101T000000_20240101T000025_048213_016E7F_AB12_VV.xml")
}

func TestBurstInfoMissingFields(t *testing.T) {
	product := burstProduct("VV", "IW2", 100, 42, 7)
	product.Umm.InputGranules = nil
	_, err := BurstInfo(product, t.TempDir())
	assert.Error(t, err)

	product = burstProduct("VV", "IW2", 100, 42, 7)
	product.Properties.AdditionalUrls = nil
	_, err = BurstInfo(product, t.TempDir())
	assert.Error(t, err)
}
