package manifest

import (
	"os"

	"github.com/beevik/etree"

	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// KML builds the map overlay preview document that accompanies a SAFE
// product.
type KML struct {
	footprint Footprint
	doc       *etree.Document
}

// NewKML creates a KML preview assembler.
func NewKML(footprint Footprint) *KML {
	return &KML{footprint: footprint}
}

// Assemble builds the overlay document.
func (k *KML) Assemble() {
	root := etree.NewElement("kml")
	for _, ns := range namespaces {
		root.CreateAttr("xmlns:"+ns.prefix, ns.uri)
	}

	document := root.CreateElement("Document")
	document.CreateElement("name").SetText("Sentinel-1 Map Overlay")

	folder := document.CreateElement("Folder")
	folder.CreateElement("name").SetText("Sentinel-1 Scene Overlay")

	overlay := folder.CreateElement("GroundOverlay")
	overlay.CreateElement("name").SetText("Sentinel-1 Image Overlay")
	icon := overlay.CreateElement("Icon")
	icon.CreateElement("href").SetText("quick-look.png")

	quad := overlay.CreateElement("gx:LatLonQuad")
	quad.CreateElement("coordinates").SetText(k.footprint.CoordinatesString(false))

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(root)
	doc.Indent(2)
	k.doc = doc
}

// Document returns the assembled document, or nil before Assemble.
func (k *KML) Document() *etree.Document { return k.doc }

// Write serializes the overlay document.
func (k *KML) Write(path string) error {
	if k.doc == nil {
		return errors.NewUnsupportedConfigurationError("kml", "preview has not been assembled")
	}
	data, err := k.doc.WriteToBytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
