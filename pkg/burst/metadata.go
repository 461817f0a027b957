package burst

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	version "github.com/hashicorp/go-version"

	"github.com/asfadmin/burst2safe/pkg/errors"
)

// Annotation kinds present in an ASF combined metadata file.
const (
	KindProduct     = "product"
	KindNoise       = "noise"
	KindCalibration = "calibration"
	KindRFI         = "rfi"
)

var annotationKinds = map[string]bool{
	KindProduct:     true,
	KindNoise:       true,
	KindCalibration: true,
	KindRFI:         true,
}

// Metadata wraps a parsed ASF combined metadata file, which bundles the
// source SLC's manifest fragment with one annotation document per kind,
// swath, and polarization.
type Metadata struct {
	Path string
	root *etree.Element
}

// Load parses a combined metadata file.
func Load(path string) (*Metadata, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.NewStructuralMismatchError(path, "metadata file has no root element")
	}
	return &Metadata{Path: path, root: root}, nil
}

// FromElement wraps an already-parsed combined metadata tree. Used by tests
// and callers that hold metadata in memory.
func FromElement(root *etree.Element) *Metadata {
	return &Metadata{root: root}
}

// Annotation returns the content of the annotation of the given kind for one
// swath and polarization.
func (m *Metadata) Annotation(kind, swath, polarization string) (*etree.Element, error) {
	if !annotationKinds[kind] {
		return nil, errors.NewUnsupportedConfigurationError("metadata",
			fmt.Sprintf("metadata type %s not one of product, noise, calibration, rfi", kind))
	}

	metadata := childByTag(m.root, "metadata")
	if metadata == nil {
		return nil, errors.NewStructuralMismatchError(m.Path, "missing metadata element")
	}
	for _, candidate := range metadata.ChildElements() {
		if candidate.Tag != kind {
			continue
		}
		swathElem := childByTag(candidate, "swath")
		polElem := childByTag(candidate, "polarisation")
		if swathElem == nil || polElem == nil {
			continue
		}
		if swathElem.Text() != swath || polElem.Text() != polarization {
			continue
		}
		content := childByTag(candidate, "content")
		if content == nil {
			return nil, errors.NewStructuralMismatchError(m.Path,
				fmt.Sprintf("%s annotation for %s %s has no content", kind, swath, polarization))
		}
		return content, nil
	}
	return nil, errors.ErrNotFound
}

// ManifestFragment returns the XFDU fragment of the source SLC's manifest.
func (m *Metadata) ManifestFragment() (*etree.Element, error) {
	manifest := childByTag(m.root, "manifest")
	if manifest == nil {
		return nil, errors.NewStructuralMismatchError(m.Path, "missing manifest element")
	}
	xfdu := childByTag(manifest, "XFDU")
	if xfdu == nil {
		return nil, errors.NewStructuralMismatchError(m.Path, "missing XFDU element")
	}
	return xfdu, nil
}

// IPFVersion extracts the Sentinel-1 IPF processor version recorded in the
// bundled manifest fragment.
func (m *Metadata) IPFVersion() (*version.Version, error) {
	xfdu, err := m.ManifestFragment()
	if err != nil {
		return nil, err
	}
	for _, software := range descendantsByTag(xfdu, "software") {
		if software.SelectAttrValue("name", "") != "Sentinel-1 IPF" {
			continue
		}
		raw := software.SelectAttrValue("version", "")
		parsed, err := version.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing IPF version %q: %w", raw, err)
		}
		return parsed, nil
	}
	return nil, errors.NewStructuralMismatchError(m.Path, "manifest does not record a Sentinel-1 IPF version")
}

// SLCLength returns the total line length of the source SLC for one swath and
// polarization: burst count times lines per burst.
func (m *Metadata) SLCLength(swath, polarization string) (int, error) {
	annotation, err := m.Annotation(KindProduct, swath, polarization)
	if err != nil {
		return 0, err
	}
	burstList := annotation.FindElement("swathTiming/burstList")
	if burstList == nil {
		return 0, errors.NewStructuralMismatchError(m.Path, "missing burstList")
	}
	count, err := strconv.Atoi(burstList.SelectAttrValue("count", ""))
	if err != nil {
		return 0, errors.NewStructuralMismatchError(m.Path, "burstList has no count attribute")
	}
	linesPerBurst, err := intText(annotation, "swathTiming/linesPerBurst")
	if err != nil {
		return 0, err
	}
	return count * linesPerBurst, nil
}

// childByTag returns the first direct child with the given local tag name,
// ignoring namespaces.
func childByTag(parent *etree.Element, tag string) *etree.Element {
	for _, child := range parent.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

// descendantsByTag returns all descendants with the given local tag name,
// ignoring namespaces.
func descendantsByTag(parent *etree.Element, tag string) []*etree.Element {
	var found []*etree.Element
	for _, child := range parent.ChildElements() {
		if child.Tag == tag {
			found = append(found, child)
		}
		found = append(found, descendantsByTag(child, tag)...)
	}
	return found
}

// intText parses the integer text content of the element at path.
func intText(parent *etree.Element, path string) (int, error) {
	elem := parent.FindElement(path)
	if elem == nil {
		return 0, errors.NewStructuralMismatchError(path, "element not found")
	}
	value, err := strconv.Atoi(elem.Text())
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return value, nil
}
