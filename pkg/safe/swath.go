package safe

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"
	version "github.com/hashicorp/go-version"

	"github.com/asfadmin/burst2safe/pkg/annotation"
	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/errors"
	"github.com/asfadmin/burst2safe/pkg/logging"
	"github.com/asfadmin/burst2safe/pkg/manifest"
	"github.com/asfadmin/burst2safe/pkg/measurement"
)

const swathNameLayout = "20060102t150405"

// Swath assembles the files of one swath/polarization of a SAFE product: the
// annotation set and the measurement raster.
type Swath struct {
	burstInfos   []*burst.Info
	safePath     string
	imageNumber  int
	swath        string
	polarization string
	ipfVersion   *version.Version
	name         string

	measurementPath string
	productPath     string
	noisePath       string
	calibrationPath string
	rfiPath         string

	product     *annotation.Product
	noise       *annotation.Noise
	calibration *annotation.Calibration
	rfi         *annotation.RFI
	annotations []annotation.Assembler
	measurement *measurement.Measurement

	footprint manifest.Footprint
}

// NewSwath creates a swath assembler for one swath/polarization subset of a
// validated group. imageNumber is the 1-based index of this subset within the
// product.
func NewSwath(burstInfos []*burst.Info, safePath string, ipfVersion *version.Version, imageNumber int) (*Swath, error) {
	if err := ValidateSubset(burstInfos); err != nil {
		return nil, err
	}
	sorted := make([]*burst.Info, len(burstInfos))
	copy(sorted, burstInfos)
	sortByBurstID(sorted)

	s := &Swath{
		burstInfos:   sorted,
		safePath:     safePath,
		imageNumber:  imageNumber,
		swath:        sorted[0].Swath,
		polarization: sorted[0].Polarization,
		ipfVersion:   ipfVersion,
	}
	name, err := s.buildName()
	if err != nil {
		return nil, err
	}
	s.name = name

	annotationDir := filepath.Join(safePath, "annotation")
	s.measurementPath = filepath.Join(safePath, "measurement", s.name+".tiff")
	s.productPath = filepath.Join(annotationDir, s.name+".xml")
	s.noisePath = filepath.Join(annotationDir, "calibration", "noise-"+s.name+".xml")
	s.calibrationPath = filepath.Join(annotationDir, "calibration", "calibration-"+s.name+".xml")
	s.rfiPath = filepath.Join(annotationDir, "rfi", "rfi-"+s.name+".xml")
	return s, nil
}

// buildName derives the swath file stem from the SAFE name, the subset's
// sensing window, and the image number.
func (s *Swath) buildName() (string, error) {
	parts := strings.Split(strings.ToLower(filepath.Base(s.safePath)), "_")
	if len(parts) != 10 {
		return "", errors.NewStructuralMismatchError("safe",
			fmt.Sprintf("SAFE name %q does not have the expected structure", filepath.Base(s.safePath)))
	}
	platform, orbit, dataTake := parts[0], parts[7], parts[8]

	start, stop := s.sensingWindow()
	return fmt.Sprintf("%s-%s-slc-%s-%s-%s-%s-%s-%03d",
		platform, strings.ToLower(s.swath), strings.ToLower(s.polarization),
		start.Format(swathNameLayout), stop.Format(swathNameLayout),
		orbit, dataTake, s.imageNumber), nil
}

// sensingWindow returns the subset's earliest start and latest stop.
func (s *Swath) sensingWindow() (time.Time, time.Time) {
	start, stop := s.burstInfos[0].StartUTC, s.burstInfos[0].StopUTC
	for _, info := range s.burstInfos {
		if info.StartUTC.Before(start) {
			start = info.StartUTC
		}
		if info.StopUTC.After(stop) {
			stop = info.StopUTC
		}
	}
	return start, stop
}

// Name returns the swath file stem.
func (s *Swath) Name() string { return s.name }

// Footprint returns the swath's geographic envelope. Valid after Write.
func (s *Swath) Footprint() manifest.Footprint { return s.footprint }

// Assemble builds the swath's annotations and prepares the measurement
// raster. The RFI annotation is only produced for IPF versions that generate
// it.
func (s *Swath) Assemble() error {
	logging.Debug().
		Str("swath", s.swath).
		Str("polarization", s.polarization).
		Int("image_number", s.imageNumber).
		Msg("assembling swath")

	product, err := annotation.NewProduct(s.burstInfos, s.ipfVersion, s.imageNumber)
	if err != nil {
		return err
	}
	noise, err := annotation.NewNoise(s.burstInfos, s.ipfVersion, s.imageNumber)
	if err != nil {
		return err
	}
	calibration, err := annotation.NewCalibration(s.burstInfos, s.ipfVersion, s.imageNumber)
	if err != nil {
		return err
	}
	s.product = product
	s.noise = noise
	s.calibration = calibration
	s.annotations = []annotation.Assembler{product, noise, calibration}

	if annotation.SupportsRFI(s.ipfVersion) {
		rfi, err := annotation.NewRFI(s.burstInfos, s.ipfVersion, s.imageNumber)
		if err != nil {
			return err
		}
		s.rfi = rfi
		s.annotations = append(s.annotations, rfi)
	}

	for _, assembler := range s.annotations {
		if err := assembler.Assemble(); err != nil {
			return fmt.Errorf("assembling %s annotation: %w", assembler.Kind(), err)
		}
	}

	meas, err := measurement.NewMeasurement(s.burstInfos, s.product.GCPs())
	if err != nil {
		return err
	}
	s.measurement = meas
	return nil
}

// Write writes the measurement raster and the annotations to the SAFE
// directory, patching the raster-derived statistics and byte offsets into the
// product annotation first.
func (s *Swath) Write(reader measurement.RasterReader) error {
	if s.measurement == nil {
		return errors.NewUnsupportedConfigurationError("swath", "swath has not been assembled")
	}
	if err := s.measurement.Write(s.measurementPath, reader); err != nil {
		return err
	}
	if err := s.product.UpdateDataStats(s.measurement.DataMean(), s.measurement.DataStdDev()); err != nil {
		return err
	}
	if err := s.product.UpdateBurstByteOffsets(s.measurement.ByteOffsets()); err != nil {
		return err
	}

	paths := map[string]string{
		burst.KindProduct:     s.productPath,
		burst.KindNoise:       s.noisePath,
		burst.KindCalibration: s.calibrationPath,
		burst.KindRFI:         s.rfiPath,
	}
	for _, assembler := range s.annotations {
		if err := assembler.Write(paths[assembler.Kind()]); err != nil {
			return err
		}
	}

	s.footprint = manifest.FootprintFromGCPs(s.product.GCPs())
	return nil
}

// ManifestComponents returns the manifest entries for the swath's written
// files. The measurement raster contributes a content unit and data object
// but no metadata object.
func (s *Swath) ManifestComponents() (contentUnits, metadataObjects, dataObjects []*etree.Element, err error) {
	for _, assembler := range s.annotations {
		info := assembler.ManifestInfo()
		simpleName := simpleNameFor(info)
		repID := "s1Level1" + capitalize(info.Kind) + "Schema"
		relPath, err := filepath.Rel(s.safePath, info.Path)
		if err != nil {
			return nil, nil, nil, errors.WrapIO("relativize", info.Path, err)
		}
		contentUnits = append(contentUnits, manifest.NewContentUnit(simpleName, "Metadata Unit", repID))
		metadataObjects = append(metadataObjects, manifest.NewMetadataObject(simpleName))
		dataObjects = append(dataObjects,
			manifest.NewDataObject(simpleName, filepath.ToSlash(relPath), repID, "text/xml", info.SizeBytes, info.MD5))
	}

	measInfo := s.measurement.ManifestInfo()
	simpleName := simpleNameFor(measInfo)
	repID := "s1Level1MeasurementSchema"
	relPath, relErr := filepath.Rel(s.safePath, measInfo.Path)
	if relErr != nil {
		return nil, nil, nil, errors.WrapIO("relativize", measInfo.Path, relErr)
	}
	contentUnits = append(contentUnits, manifest.NewContentUnit(simpleName, "Measurement Data Unit", repID))
	dataObjects = append(dataObjects,
		manifest.NewDataObject(simpleName, filepath.ToSlash(relPath), repID, "application/octet-stream",
			measInfo.SizeBytes, measInfo.MD5))
	return contentUnits, metadataObjects, dataObjects, nil
}

// simpleNameFor derives a manifest object ID from a written file: the file
// stem with dashes removed, prefixed for the product annotation whose stem
// carries no kind marker of its own.
func simpleNameFor(info annotation.ManifestInfo) string {
	stem := filepath.Base(info.Path)
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	simpleName := strings.ReplaceAll(stem, "-", "")
	if info.Kind == burst.KindProduct {
		simpleName = "product" + simpleName
	}
	return simpleName
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func sortByBurstID(infos []*burst.Info) {
	sort.Slice(infos, func(a, b int) bool { return infos[a].BurstID < infos[b].BurstID })
}
