// Package manifest builds the manifest.safe document that indexes a SAFE
// product, plus the KML map overlay preview. The manifest combines freshly
// built references to the assembled files with metadata blocks carried over
// from a source product's manifest.
package manifest

import (
	"os"

	"github.com/beevik/etree"

	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

const safeNS = "http://www.esa.int/safe/sentinel-1.0"

// namespaces are declared on the manifest root in a fixed order.
var namespaces = []struct {
	prefix string
	uri    string
}{
	{"xsi", "http://www.w3.org/2001/XMLSchema-instance"},
	{"gml", "http://www.opengis.net/gml"},
	{"xfdu", "urn:ccsds:schema:xfdu:1"},
	{"safe", safeNS},
	{"s1", safeNS + "/sentinel-1"},
	{"s1sar", safeNS + "/sentinel-1/sar"},
	{"s1sarl1", safeNS + "/sentinel-1/sar/level-1"},
	{"s1sarl2", safeNS + "/sentinel-1/sar/level-2"},
	{"gx", "http://www.google.com/kml/ext/2.2"},
}

const manifestVersion = "esa/safe/sentinel-1.0/sentinel-1/sar/level-1/slc/standard/iwdp"

// templateMetadataIDs are the metadata blocks carried over verbatim from the
// source manifest. Everything else is rebuilt.
var templateMetadataIDs = []string{
	"processing",
	"platform",
	"measurementOrbitReference",
	"generalProductInformation",
	"acquisitionPeriod",
	"measurementFrameSet",
}

// Manifest assembles a manifest.safe document.
type Manifest struct {
	contentUnits    []*etree.Element
	metadataObjects []*etree.Element
	dataObjects     []*etree.Element
	footprint       Footprint
	template        *etree.Element

	doc *etree.Document

	// Recorded on write.
	path string
	crc  string
}

// New creates a manifest assembler. The template is the XFDU root of one
// source product's manifest, used for the metadata blocks that are identical
// across a merge group.
func New(contentUnits, metadataObjects, dataObjects []*etree.Element, footprint Footprint, template *etree.Element) *Manifest {
	return &Manifest{
		contentUnits:    contentUnits,
		metadataObjects: metadataObjects,
		dataObjects:     dataObjects,
		footprint:       footprint,
		template:        template,
	}
}

// createInformationPackageMap wraps the content units in the archive package
// unit.
func (m *Manifest) createInformationPackageMap() *etree.Element {
	packageMap := etree.NewElement("xfdu:informationPackageMap")
	parent := packageMap.CreateElement("xfdu:contentUnit")
	parent.CreateAttr("unitType", "SAFE Archive Information Package")
	parent.CreateAttr("textInfo", "Sentinel-1 IW Level-1 SLC Product")
	parent.CreateAttr("dmdID",
		"acquisitionPeriod platform generalProductInformation measurementOrbitReference measurementFrameSet")
	parent.CreateAttr("pdiID", "processing")
	for _, unit := range m.contentUnits {
		parent.AddChild(unit)
	}
	return packageMap
}

// createMetadataSection combines the new metadata objects with the kept
// template blocks and rewrites the frame-set footprint.
func (m *Manifest) createMetadataSection() (*etree.Element, error) {
	section := etree.NewElement("metadataSection")
	for _, object := range m.metadataObjects {
		section.AddChild(object)
	}

	templateSection := findByLocalTag(m.template, "metadataSection")
	if templateSection == nil {
		return nil, errors.NewStructuralMismatchError("manifest", "template manifest is missing metadataSection")
	}
	keep := make(map[string]bool, len(templateMetadataIDs))
	for _, id := range templateMetadataIDs {
		keep[id] = true
	}
	for _, object := range templateSection.ChildElements() {
		if keep[object.SelectAttrValue("ID", "")] {
			section.AddChild(object.Copy())
		}
	}

	coordinates := section.FindElement("//coordinates")
	if coordinates == nil {
		return nil, errors.NewStructuralMismatchError("manifest", "template manifest is missing frame coordinates")
	}
	coordinates.SetText(m.footprint.CoordinatesString(true))
	return section, nil
}

// createDataObjectSection wraps the data objects.
func (m *Manifest) createDataObjectSection() *etree.Element {
	section := etree.NewElement("dataObjectSection")
	for _, object := range m.dataObjects {
		section.AddChild(object)
	}
	return section
}

// Assemble builds the manifest document.
func (m *Manifest) Assemble() error {
	root := etree.NewElement("xfdu:XFDU")
	for _, ns := range namespaces {
		root.CreateAttr("xmlns:"+ns.prefix, ns.uri)
	}
	root.CreateAttr("version", manifestVersion)

	metadataSection, err := m.createMetadataSection()
	if err != nil {
		return err
	}
	root.AddChild(m.createInformationPackageMap())
	root.AddChild(metadataSection)
	root.AddChild(m.createDataObjectSection())

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(root)
	doc.Indent(2)
	m.doc = doc
	return nil
}

// Document returns the assembled document, or nil before Assemble.
func (m *Manifest) Document() *etree.Document { return m.doc }

// Write serializes the manifest and records its CRC16, which becomes the
// product's unique identifier.
func (m *Manifest) Write(path string) error {
	if m.doc == nil {
		return errors.NewUnsupportedConfigurationError("manifest", "manifest has not been assembled")
	}
	data, err := m.doc.WriteToBytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	m.path = path
	m.crc = CRC16(data)
	return nil
}

// CRC returns the written manifest's CRC16 hex string. Valid after Write.
func (m *Manifest) CRC() string { return m.crc }

// findByLocalTag returns the first child element with the given local tag,
// regardless of namespace prefix.
func findByLocalTag(parent *etree.Element, tag string) *etree.Element {
	for _, child := range parent.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}
