package manifest

import (
	"fmt"
	"math"

	"github.com/asfadmin/burst2safe/pkg/annotation"
)

// Footprint is the geographic envelope of a product, derived from the merged
// geolocation grids.
type Footprint struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// FootprintFromGCPs computes the envelope of a set of ground control points.
func FootprintFromGCPs(gcps []annotation.GeoPoint) Footprint {
	f := Footprint{
		MinLon: math.Inf(1), MinLat: math.Inf(1),
		MaxLon: math.Inf(-1), MaxLat: math.Inf(-1),
	}
	for _, gcp := range gcps {
		f.MinLon = math.Min(f.MinLon, gcp.Longitude)
		f.MinLat = math.Min(f.MinLat, gcp.Latitude)
		f.MaxLon = math.Max(f.MaxLon, gcp.Longitude)
		f.MaxLat = math.Max(f.MaxLat, gcp.Latitude)
	}
	return f
}

// Union returns the envelope covering both footprints.
func (f Footprint) Union(other Footprint) Footprint {
	return Footprint{
		MinLon: math.Min(f.MinLon, other.MinLon),
		MinLat: math.Min(f.MinLat, other.MinLat),
		MaxLon: math.Max(f.MaxLon, other.MaxLon),
		MaxLat: math.Max(f.MaxLat, other.MaxLat),
	}
}

// CoordinatesString renders the four corners in the order downstream readers
// expect for a descending pass, rounded to six decimal places. latFirst
// selects the manifest convention (lat,lon); the KML overlay uses lon,lat.
func (f Footprint) CoordinatesString(latFirst bool) string {
	corners := [][2]float64{
		{f.MaxLat, f.MinLon},
		{f.MaxLat, f.MaxLon},
		{f.MinLat, f.MaxLon},
		{f.MinLat, f.MinLon},
	}
	out := ""
	for i, corner := range corners {
		if i > 0 {
			out += " "
		}
		lat, lon := round6(corner[0]), round6(corner[1])
		if latFirst {
			out += fmt.Sprintf("%g,%g", lat, lon)
		} else {
			out += fmt.Sprintf("%g,%g", lon, lat)
		}
	}
	return out
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
