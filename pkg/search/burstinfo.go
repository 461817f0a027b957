package search

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

const granuleTimeLayout = "20060102T150405"

// BurstInfo converts one search result into a burst descriptor, deriving the
// local file paths the burst's raster and metadata will be downloaded to.
func BurstInfo(product Product, workDir string) (*burst.Info, error) {
	props := product.Properties
	if len(product.Umm.InputGranules) == 0 {
		return nil, errors.NewSearchError(0, "search result for "+props.FileID+" is missing its source granule", nil)
	}
	if len(props.AdditionalUrls) == 0 {
		return nil, errors.NewSearchError(0, "search result for "+props.FileID+" is missing its metadata URL", nil)
	}
	slcGranule := strings.SplitN(product.Umm.InputGranules[0], "-", 2)[0]

	granuleParts := strings.Split(props.FileID, "_")
	if len(granuleParts) < 4 {
		return nil, errors.NewSearchError(0, "unexpected granule name "+props.FileID, nil)
	}
	date, err := time.Parse(granuleTimeLayout, granuleParts[3])
	if err != nil {
		return nil, errors.NewSearchError(0, "parsing granule timestamp of "+props.FileID, err)
	}

	polarization := strings.ToUpper(props.Polarization)
	return &burst.Info{
		Granule:       props.FileID,
		SLCGranule:    slcGranule,
		Swath:         strings.ToUpper(props.Burst.Subswath),
		Polarization:  polarization,
		BurstID:       props.Burst.RelativeBurstID,
		BurstIndex:    props.Burst.BurstIndex,
		Direction:     strings.ToUpper(props.FlightDirection),
		AbsoluteOrbit: props.Orbit,
		RelativeOrbit: props.PathNumber,
		Date:          date,
		DataURL:       props.URL,
		DataPath:      filepath.Join(workDir, props.FileID+".tiff"),
		MetadataURL:   props.AdditionalUrls[0],
		MetadataPath:  filepath.Join(workDir, slcGranule+"_"+polarization+".xml"),
	}, nil
}

// BurstInfos converts a list of search results into burst descriptors.
func BurstInfos(products []Product, workDir string) ([]*burst.Info, error) {
	infos := make([]*burst.Info, 0, len(products))
	for _, product := range products {
		info, err := BurstInfo(product, workDir)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}
