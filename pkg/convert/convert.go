// Package convert ties the pipeline together: find bursts, validate the
// group, download the inputs, and assemble the SAFE product.
package convert

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/asfadmin/burst2safe/pkg/download"
	"github.com/asfadmin/burst2safe/pkg/errors"
	"github.com/asfadmin/burst2safe/pkg/logging"
	"github.com/asfadmin/burst2safe/pkg/measurement"
	"github.com/asfadmin/burst2safe/pkg/safe"
	"github.com/asfadmin/burst2safe/pkg/search"
)

// Options describe one conversion. Either Granules or the group parameters
// (Orbit and BBox) must be provided.
type Options struct {
	Granules []string

	Orbit int
	// BBox is the group footprint as west, south, east, north in degrees.
	BBox          []float64
	Polarizations []string
	Swaths        []string
	Mode          string
	MinBursts     int

	UseRelativeOrbit bool
	StartDate        time.Time
	EndDate          time.Time

	KeepFiles bool
	WorkDir   string

	// Client and Downloader may be preconfigured; defaults are created
	// otherwise.
	Client     *search.Client
	Downloader *download.Downloader
}

// Run converts a set of burst SLCs to a SAFE product and returns its path.
func Run(ctx context.Context, opts Options) (string, error) {
	workDir := opts.WorkDir
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			return "", errors.WrapIO("resolve", ".", err)
		}
	}

	client := opts.Client
	if client == nil {
		client = search.NewClient()
	}

	products, err := findBursts(ctx, client, opts)
	if err != nil {
		return "", err
	}
	burstInfos, err := search.BurstInfos(products, workDir)
	if err != nil {
		return "", err
	}
	logging.Info().Int("bursts", len(burstInfos)).Msg("found burst group")

	// Validate before any download work begins.
	if err := safe.ValidateGroup(burstInfos); err != nil {
		return "", err
	}

	downloader := opts.Downloader
	if downloader == nil {
		downloader = download.NewDownloader()
	}
	if err := downloader.DownloadBursts(ctx, burstInfos); err != nil {
		return "", err
	}

	for _, info := range burstInfos {
		if err := info.AddShapeInfo(); err != nil {
			return "", err
		}
		if err := info.AddStartStopUTC(); err != nil {
			return "", err
		}
	}

	product, err := safe.NewSafe(burstInfos, workDir)
	if err != nil {
		return "", err
	}
	safePath, err := product.CreateSafe(measurement.NewGeoTIFFReader())
	if err != nil {
		return "", err
	}

	if !opts.KeepFiles {
		if err := product.Cleanup(); err != nil {
			return "", err
		}
	}
	return safePath, nil
}

// findBursts picks granule or group search based on the options given.
func findBursts(ctx context.Context, client *search.Client, opts Options) ([]search.Product, error) {
	switch {
	case len(opts.Granules) > 0:
		logging.Debug().Msg("using granule search")
		return client.FindGranules(ctx, opts.Granules)
	case opts.Orbit != 0 && len(opts.BBox) == 4:
		logging.Debug().Msg("using burst group search")
		return client.FindGroup(ctx, search.GroupOptions{
			Orbit:            opts.Orbit,
			Footprint:        bboxWKT(opts.BBox),
			Polarizations:    opts.Polarizations,
			Swaths:           opts.Swaths,
			Mode:             opts.Mode,
			MinBursts:        opts.MinBursts,
			UseRelativeOrbit: opts.UseRelativeOrbit,
			StartDate:        opts.StartDate,
			EndDate:          opts.EndDate,
		})
	default:
		return nil, errors.NewSearchError(0,
			"provide either a list of granules or the group parameters orbit and bbox", nil)
	}
}

// bboxWKT renders a west/south/east/north box as a WKT polygon.
func bboxWKT(bbox []float64) string {
	w, s, e, n := bbox[0], bbox[1], bbox[2], bbox[3]
	return fmt.Sprintf("POLYGON ((%g %g, %g %g, %g %g, %g %g, %g %g))",
		w, s, e, s, e, n, w, n, w, s)
}
