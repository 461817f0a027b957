package safe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"
	version "github.com/hashicorp/go-version"

	"github.com/asfadmin/burst2safe/pkg/annotation"
	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
	"github.com/asfadmin/burst2safe/pkg/logging"
	"github.com/asfadmin/burst2safe/pkg/manifest"
	"github.com/asfadmin/burst2safe/pkg/measurement"
)

const safeNameLayout = "20060102T150405"

// placeholderID stands in for the product's unique identifier until the
// manifest CRC is known.
const placeholderID = "0000"

// Safe assembles a complete SAFE product from a validated burst group.
type Safe struct {
	burstInfos []*burst.Info
	workDir    string

	grouped    burst.Group
	name       string
	safePath   string
	ipfVersion *version.Version

	swaths       []*Swath
	manifestFile *manifest.Manifest
}

// NewSafe creates a SAFE assembler, validating the group first. The product
// directory is created under workDir.
func NewSafe(burstInfos []*burst.Info, workDir string) (*Safe, error) {
	if err := ValidateGroup(burstInfos); err != nil {
		return nil, err
	}

	meta, err := burst.Load(burstInfos[0].MetadataPath)
	if err != nil {
		return nil, err
	}
	ipfVersion, err := meta.IPFVersion()
	if err != nil {
		return nil, err
	}

	s := &Safe{
		burstInfos: burstInfos,
		workDir:    workDir,
		grouped:    burst.GroupInfos(burstInfos),
		name:       ProductName(burstInfos, placeholderID),
		ipfVersion: ipfVersion,
	}
	s.safePath = filepath.Join(workDir, s.name)
	return s, nil
}

// ProductName builds a SAFE product name from a burst group and a unique
// identifier.
func ProductName(burstInfos []*burst.Info, uniqueID string) string {
	first := burstInfos[0]
	slcParts := strings.Split(first.SLCGranule, "_")
	platform, beamMode, productType := slcParts[0], slcParts[1], slcParts[2]
	productInfo := "1SS" + first.Polarization[:1]
	missionDataTake := slcParts[len(slcParts)-2]

	minDate, maxDate := first.Date, first.Date
	for _, info := range burstInfos {
		if info.Date.Before(minDate) {
			minDate = info.Date
		}
		if info.Date.After(maxDate) {
			maxDate = info.Date
		}
	}

	return fmt.Sprintf("%s_%s_%s__%s_%s_%s_%06d_%s_%s.SAFE",
		platform, beamMode, productType, productInfo,
		minDate.Format(safeNameLayout), maxDate.Format(safeNameLayout),
		first.AbsoluteOrbit, missionDataTake, uniqueID)
}

// Name returns the product name, including the final identifier once the
// manifest has been written.
func (s *Safe) Name() string { return s.name }

// Path returns the product directory path.
func (s *Safe) Path() string { return s.safePath }

// IPFVersion returns the group's processor version.
func (s *Safe) IPFVersion() *version.Version { return s.ipfVersion }

// CreateDirStructure creates the SAFE directory tree. The rfi directory only
// exists for IPF versions that produce RFI annotations.
func (s *Safe) CreateDirStructure() error {
	dirs := []string{
		filepath.Join(s.safePath, "measurement"),
		filepath.Join(s.safePath, "annotation", "calibration"),
		filepath.Join(s.safePath, "preview"),
	}
	if annotation.SupportsRFI(s.ipfVersion) {
		dirs = append(dirs, filepath.Join(s.safePath, "annotation", "rfi"))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapIO("create", dir, err)
		}
	}
	return nil
}

// orderedSubsets returns the swath/polarization pairs in deterministic order.
// Image numbers are assigned from this order.
func (s *Safe) orderedSubsets() [][2]string {
	var swaths []string
	for swath := range s.grouped {
		swaths = append(swaths, swath)
	}
	sort.Strings(swaths)

	var subsets [][2]string
	for _, swath := range swaths {
		var pols []string
		for pol := range s.grouped[swath] {
			pols = append(pols, pol)
		}
		sort.Strings(pols)
		for _, pol := range pols {
			subsets = append(subsets, [2]string{swath, pol})
		}
	}
	return subsets
}

// CreateComponents assembles and writes every swath of the product.
func (s *Safe) CreateComponents(reader measurement.RasterReader) error {
	for i, subset := range s.orderedSubsets() {
		swath, err := NewSwath(s.grouped[subset[0]][subset[1]], s.safePath, s.ipfVersion, i+1)
		if err != nil {
			return err
		}
		if err := swath.Assemble(); err != nil {
			return err
		}
		if err := swath.Write(reader); err != nil {
			return err
		}
		s.swaths = append(s.swaths, swath)
	}
	return nil
}

// footprint returns the envelope covering every swath.
func (s *Safe) footprint() manifest.Footprint {
	combined := s.swaths[0].Footprint()
	for _, swath := range s.swaths[1:] {
		combined = combined.Union(swath.Footprint())
	}
	return combined
}

// CreateManifest compiles the manifest from every swath's components and
// writes it to the product root.
func (s *Safe) CreateManifest() error {
	var contentUnits, metadataObjects, dataObjects []*etree.Element
	for _, swath := range s.swaths {
		units, metadata, data, err := swath.ManifestComponents()
		if err != nil {
			return err
		}
		contentUnits = append(contentUnits, units...)
		metadataObjects = append(metadataObjects, metadata...)
		dataObjects = append(dataObjects, data...)
	}

	meta, err := burst.Load(s.burstInfos[0].MetadataPath)
	if err != nil {
		return err
	}
	template, err := meta.ManifestFragment()
	if err != nil {
		return err
	}

	m := manifest.New(contentUnits, metadataObjects, dataObjects, s.footprint(), template)
	if err := m.Assemble(); err != nil {
		return err
	}
	if err := m.Write(filepath.Join(s.safePath, "manifest.safe")); err != nil {
		return err
	}
	s.manifestFile = m
	return nil
}

// CreatePreview writes the KML map overlay.
func (s *Safe) CreatePreview() error {
	kml := manifest.NewKML(s.footprint())
	kml.Assemble()
	return kml.Write(filepath.Join(s.safePath, "preview", "map-overlay.kml"))
}

// UpdateProductIdentifier renames the product directory, replacing the
// placeholder identifier with the manifest CRC.
func (s *Safe) UpdateProductIdentifier() error {
	newName := ProductName(s.burstInfos, s.manifestFile.CRC())
	newPath := filepath.Join(s.workDir, newName)
	if _, err := os.Stat(newPath); err == nil {
		if err := os.RemoveAll(newPath); err != nil {
			return errors.WrapIO("remove", newPath, err)
		}
	}
	if err := os.Rename(s.safePath, newPath); err != nil {
		return errors.WrapIO("rename", s.safePath, err)
	}
	s.name = newName
	s.safePath = newPath
	return nil
}

// CreateSafe assembles the complete product and returns its final path.
func (s *Safe) CreateSafe(reader measurement.RasterReader) (string, error) {
	logging.Info().Str("product", s.name).Msg("creating SAFE product")
	if err := s.CreateDirStructure(); err != nil {
		return "", err
	}
	if err := s.CreateComponents(reader); err != nil {
		return "", err
	}
	if err := s.CreateManifest(); err != nil {
		return "", err
	}
	if err := s.CreatePreview(); err != nil {
		return "", err
	}
	if err := s.UpdateProductIdentifier(); err != nil {
		return "", err
	}
	logging.Info().Str("path", s.safePath).Msg("SAFE product complete")
	return s.safePath, nil
}

// Cleanup removes the downloaded burst rasters and metadata files.
func (s *Safe) Cleanup() error {
	seen := make(map[string]bool)
	for _, info := range s.burstInfos {
		for _, path := range []string{info.DataPath, info.MetadataPath} {
			if path == "" || seen[path] {
				continue
			}
			seen[path] = true
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.WrapIO("remove", path, err)
			}
		}
	}
	return nil
}
