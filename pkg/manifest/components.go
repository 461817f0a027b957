package manifest

import (
	"fmt"

	"github.com/beevik/etree"
)

// NewContentUnit creates a contentUnit element referencing one assembled file.
func NewContentUnit(simpleName, unitType, repID string) *etree.Element {
	unit := etree.NewElement("xfdu:contentUnit")
	unit.CreateAttr("unitType", unitType)
	unit.CreateAttr("repID", repID)
	pointer := unit.CreateElement("dataObjectPointer")
	pointer.CreateAttr("dataObjectID", simpleName)
	return unit
}

// NewMetadataObject creates a metadataObject element referencing one
// assembled annotation.
func NewMetadataObject(simpleName string) *etree.Element {
	object := etree.NewElement("metadataObject")
	object.CreateAttr("ID", simpleName+"Annotation")
	object.CreateAttr("classification", "DESCRIPTION")
	object.CreateAttr("category", "DMD")
	pointer := object.CreateElement("dataObjectPointer")
	pointer.CreateAttr("dataObjectID", simpleName)
	return object
}

// NewDataObject creates a dataObject element locating one assembled file
// within the SAFE directory.
func NewDataObject(simpleName, relativePath, repID, mimeType string, sizeBytes int64, md5sum string) *etree.Element {
	object := etree.NewElement("dataObject")
	object.CreateAttr("ID", simpleName)
	object.CreateAttr("repID", repID)
	byteStream := object.CreateElement("byteStream")
	byteStream.CreateAttr("mimeType", mimeType)
	byteStream.CreateAttr("size", fmt.Sprintf("%d", sizeBytes))
	location := byteStream.CreateElement("fileLocation")
	location.CreateAttr("locatorType", "URL")
	location.CreateAttr("href", "./"+relativePath)
	checksum := byteStream.CreateElement("checksum")
	checksum.CreateAttr("checksumName", "MD5")
	checksum.SetText(md5sum)
	return object
}
