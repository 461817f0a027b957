package annotation

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/beevik/etree"
	version "github.com/hashicorp/go-version"

	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// Assembler is the capability shared by all annotation kinds: produce one
// merged document for a swath/polarization group.
type Assembler interface {
	Assemble() error
	Write(path string) error
	Kind() string
	ManifestInfo() ManifestInfo
}

// ManifestInfo carries the values packaging needs for one written annotation.
type ManifestInfo struct {
	Kind      string
	Path      string
	SizeBytes int64
	MD5       string
}

// base holds the state common to every annotation assembler for one
// swath/polarization group.
type base struct {
	burstInfos  []*burst.Info
	kind        string
	ipfVersion  *version.Version
	imageNumber int

	swath        string
	polarization string
	startLine    int
	totalLines   int
	stopLine     int
	minANX       time.Time
	maxANX       time.Time

	// inputs holds this kind's sub-document from each distinct source
	// metadata file, in group order. slcLengths holds the matching source SLC
	// total line lengths.
	inputs     []*etree.Element
	slcLengths []int

	adsHeader *etree.Element
	doc       *etree.Document

	// Recorded on write for the manifest.
	path      string
	sizeBytes int64
	md5sum    string
}

// newBase loads the group's source sub-documents and computes the output
// coordinate space. The IPF version is passed in by the caller rather than
// re-read from a side document, keeping the version dependency visible.
func newBase(burstInfos []*burst.Info, kind string, ipfVersion *version.Version, imageNumber int) (*base, error) {
	if len(burstInfos) == 0 {
		return nil, errors.NewInvalidGroupError("", "", "no bursts provided")
	}
	first := burstInfos[0]

	b := &base{
		burstInfos:   burstInfos,
		kind:         kind,
		ipfVersion:   ipfVersion,
		imageNumber:  imageNumber,
		swath:        first.Swath,
		polarization: first.Polarization,
		startLine:    first.BurstIndex * first.Length,
		totalLines:   len(burstInfos) * first.Length,
	}
	b.stopLine = b.startLine + b.totalLines

	b.minANX = first.StartUTC
	b.maxANX = first.StopUTC
	for _, info := range burstInfos {
		if info.StartUTC.Before(b.minANX) {
			b.minANX = info.StartUTC
		}
		if info.StopUTC.After(b.maxANX) {
			b.maxANX = info.StopUTC
		}
	}

	for _, path := range metadataPaths(burstInfos) {
		meta, err := burst.Load(path)
		if err != nil {
			return nil, err
		}
		input, err := meta.Annotation(kind, b.swath, b.polarization)
		if err != nil {
			return nil, err
		}
		length, err := meta.SLCLength(b.swath, b.polarization)
		if err != nil {
			return nil, err
		}
		b.inputs = append(b.inputs, input)
		b.slcLengths = append(b.slcLengths, length)
	}
	return b, nil
}

// metadataPaths returns the distinct metadata paths of a group, preserving
// group order.
func metadataPaths(burstInfos []*burst.Info) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, info := range burstInfos {
		if !seen[info.MetadataPath] {
			seen[info.MetadataPath] = true
			paths = append(paths, info.MetadataPath)
		}
	}
	return paths
}

// Kind returns the annotation kind.
func (b *base) Kind() string { return b.kind }

// createADSHeader recomputes the shared header block from the group's
// earliest start, latest stop, and the caller-assigned image number.
func (b *base) createADSHeader() error {
	header := b.inputs[0].FindElement("adsHeader")
	if header == nil {
		return errors.NewStructuralMismatchError(b.kind, "source annotation is missing adsHeader")
	}
	header = header.Copy()
	if err := setElementText(header, "startTime", formatTime(b.minANX)); err != nil {
		return err
	}
	if err := setElementText(header, "stopTime", formatTime(b.maxANX)); err != nil {
		return err
	}
	if err := setElementText(header, "imageNumber", fmt.Sprintf("%03d", b.imageNumber)); err != nil {
		return err
	}
	b.adsHeader = header
	return nil
}

// mergeLists merges the list at listPath from every source with the given
// time buffer and optional line bounds.
func (b *base) mergeLists(listPath string, buffer time.Duration, lineBounds *LineBounds) (*etree.Element, error) {
	sources := make([]*etree.Element, len(b.inputs))
	for i, input := range b.inputs {
		list := input.FindElement(listPath)
		if list == nil {
			return nil, errors.NewStructuralMismatchError(listPath, "list not found in source annotation")
		}
		sources[i] = list
	}
	merger, err := NewListMerger(sources, b.startLine, b.slcLengths)
	if err != nil {
		return nil, err
	}
	return merger.Merge(TimeWindow{Start: b.minANX, End: b.maxANX}, buffer, lineBounds)
}

// setDocument renders children in the given fixed order under a root element
// and stores the assembled document. Child order is significant downstream
// and always comes from an explicit sequence, never map iteration.
func (b *base) setDocument(rootTag string, children []*etree.Element) {
	root := etree.NewElement(rootTag)
	for _, child := range children {
		root.AddChild(child)
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(root)
	doc.Indent(2)
	b.doc = doc
}

// Document returns the assembled document, or nil before Assemble.
func (b *base) Document() *etree.Document { return b.doc }

// Write serializes the assembled document and records its size and MD5 for
// the manifest.
func (b *base) Write(path string) error {
	if b.doc == nil {
		return errors.NewUnsupportedConfigurationError(b.kind, "annotation has not been assembled")
	}
	data, err := b.doc.WriteToBytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	sum := md5.Sum(data)
	b.path = path
	b.sizeBytes = int64(len(data))
	b.md5sum = hex.EncodeToString(sum[:])
	return nil
}

// ManifestInfo returns the written annotation's packaging values.
func (b *base) ManifestInfo() ManifestInfo {
	return ManifestInfo{Kind: b.kind, Path: b.path, SizeBytes: b.sizeBytes, MD5: b.md5sum}
}

// formatTime renders a timestamp in the annotation layout.
func formatTime(t time.Time) string {
	return t.Format(constants.TimeLayout)
}

// setElementText sets the text of a required child element.
func setElementText(parent *etree.Element, path, text string) error {
	elem := parent.FindElement(path)
	if elem == nil {
		return errors.NewStructuralMismatchError(path, "element not found")
	}
	elem.SetText(text)
	return nil
}

// meanFloatText averages the float text content of path across sources.
func meanFloatText(inputs []*etree.Element, path string) (float64, error) {
	var sum float64
	for _, input := range inputs {
		elem := input.FindElement(path)
		if elem == nil {
			return 0, errors.NewStructuralMismatchError(path, "element not found")
		}
		value, err := strconv.ParseFloat(elem.Text(), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing %s: %w", path, err)
		}
		sum += value
	}
	return sum / float64(len(inputs)), nil
}
