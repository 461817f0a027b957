package annotation

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	version "github.com/hashicorp/go-version"

	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// GeoPoint is a geolocation grid point: a sparse sample mapping an output
// image line/pixel to ground longitude/latitude/height.
type GeoPoint struct {
	Longitude float64
	Latitude  float64
	Height    float64
	Line      int
	Pixel     int
}

// generalAnnotationLists are the repeating lists of the generalAnnotation
// block, in output order. All are windowed with the slow-varying buffer
// except replicaInformationList, which is merged without time filtering.
var generalAnnotationLists = []string{
	"downlinkInformationList",
	"orbitList",
	"attitudeList",
	"rawDataAnalysisList",
	"replicaInformationList",
	"noiseList",
	"terrainHeightList",
	"azimuthFmRateList",
}

// Product assembles the image-product annotation for one swath/polarization
// group.
type Product struct {
	*base

	qualityInformation   *etree.Element
	generalAnnotation    *etree.Element
	imageAnnotation      *etree.Element
	dopplerCentroid      *etree.Element
	antennaPattern       *etree.Element
	swathTiming          *etree.Element
	geolocationGrid      *etree.Element
	coordinateConversion *etree.Element
	swathMerging         *etree.Element

	gcps []GeoPoint
}

// NewProduct creates a product annotation assembler.
func NewProduct(burstInfos []*burst.Info, ipfVersion *version.Version, imageNumber int) (*Product, error) {
	b, err := newBase(burstInfos, burst.KindProduct, ipfVersion, imageNumber)
	if err != nil {
		return nil, err
	}
	return &Product{base: b}, nil
}

// GCPs returns the ground control points extracted from the merged
// geolocation grid. Valid after Assemble.
func (p *Product) GCPs() []GeoPoint { return p.gcps }

// createQualityInformation concatenates the per-source quality data under the
// first source's quality index.
func (p *Product) createQualityInformation() error {
	qualityInformation := etree.NewElement("qualityInformation")

	index := p.inputs[0].FindElement("qualityInformation/productQualityIndex")
	if index == nil {
		return errors.NewStructuralMismatchError("qualityInformation", "missing productQualityIndex")
	}
	qualityInformation.AddChild(index.Copy())

	qualityDataList := etree.NewElement("qualityDataList")
	count := 0
	for _, input := range p.inputs {
		for _, data := range input.FindElements("qualityInformation/qualityDataList/qualityData") {
			qualityDataList.AddChild(data.Copy())
			count++
		}
	}
	qualityDataList.CreateAttr("count", strconv.Itoa(count))
	qualityInformation.AddChild(qualityDataList)

	p.qualityInformation = qualityInformation
	return nil
}

// createGeneralAnnotation merges the single-value productInformation record
// and concatenates the repeating lists. platformHeading is expected to be
// nearly identical across sources and is merged by arithmetic mean.
func (p *Product) createGeneralAnnotation() error {
	generalAnnotation := etree.NewElement("generalAnnotation")

	productInformation := p.inputs[0].FindElement("generalAnnotation/productInformation")
	if productInformation == nil {
		return errors.NewStructuralMismatchError("generalAnnotation", "missing productInformation")
	}
	productInformation = productInformation.Copy()

	heading, err := meanFloatText(p.inputs, "generalAnnotation/productInformation/platformHeading")
	if err != nil {
		return err
	}
	if err := setElementText(productInformation, "platformHeading", fmt.Sprintf("%.14e", heading)); err != nil {
		return err
	}
	generalAnnotation.AddChild(productInformation)

	for _, listName := range generalAnnotationLists {
		listPath := "generalAnnotation/" + listName
		var merged *etree.Element
		if listName == "replicaInformationList" {
			// Replica entries repeat across sources without a meaningful time
			// window; dedup only.
			sources := make([]*etree.Element, len(p.inputs))
			for i, input := range p.inputs {
				list := input.FindElement(listPath)
				if list == nil {
					return errors.NewStructuralMismatchError(listPath, "list not found in source annotation")
				}
				sources[i] = list
			}
			merger, err := NewListMerger(sources, p.startLine, p.slcLengths)
			if err != nil {
				return err
			}
			uniques, err := merger.UniqueElements()
			if err != nil {
				return err
			}
			merged = etree.NewElement(listName)
			for _, elem := range uniques {
				merged.AddChild(elem)
			}
			merged.CreateAttr("count", strconv.Itoa(len(uniques)))
		} else {
			var err error
			merged, err = p.mergeLists(listPath, constants.SlowVaryingMergeBuffer, nil)
			if err != nil {
				return err
			}
		}
		generalAnnotation.AddChild(merged)
	}

	p.generalAnnotation = generalAnnotation
	return nil
}

// createImageAnnotation merges the single-value imageInformation and
// processingInformation records, truncating slice-related fields to
// whole-product values and leaving the image statistics blank for the
// measurement assembler to fill in.
func (p *Product) createImageAnnotation() error {
	imageAnnotation := etree.NewElement("imageAnnotation")

	imageInformation := p.inputs[0].FindElement("imageAnnotation/imageInformation")
	if imageInformation == nil {
		return errors.NewStructuralMismatchError("imageAnnotation", "missing imageInformation")
	}
	imageInformation = imageInformation.Copy()

	if err := setElementText(imageInformation, "productFirstLineUtcTime", formatTime(p.minANX)); err != nil {
		return err
	}
	if err := setElementText(imageInformation, "productLastLineUtcTime", formatTime(p.maxANX)); err != nil {
		return err
	}
	if err := setElementText(imageInformation, "productComposition", "Assembled"); err != nil {
		return err
	}
	if err := setElementText(imageInformation, "sliceNumber", "0"); err != nil {
		return err
	}

	sliceList := imageInformation.FindElement("sliceList")
	if sliceList == nil {
		return errors.NewStructuralMismatchError("imageInformation", "missing sliceList")
	}
	for _, child := range sliceList.ChildElements() {
		sliceList.RemoveChild(child)
	}
	sliceList.CreateAttr("count", "0")

	if err := setElementText(imageInformation, "numberOfLines", strconv.Itoa(p.totalLines)); err != nil {
		return err
	}

	spacing, err := meanFloatText(p.inputs, "imageAnnotation/imageInformation/azimuthPixelSpacing")
	if err != nil {
		return err
	}
	if err := setElementText(imageInformation, "azimuthPixelSpacing", fmt.Sprintf("%.6e", spacing)); err != nil {
		return err
	}

	// Statistics are patched in after the measurement raster is written.
	for _, path := range statisticsPaths {
		if err := setElementText(imageInformation, "imageStatistics/"+path, ""); err != nil {
			return err
		}
	}
	imageAnnotation.AddChild(imageInformation)

	processingInformation := p.inputs[0].FindElement("imageAnnotation/processingInformation")
	if processingInformation == nil {
		return errors.NewStructuralMismatchError("imageAnnotation", "missing processingInformation")
	}
	processingInformation = processingInformation.Copy()

	dimensionsList := processingInformation.FindElement("inputDimensionsList")
	if dimensionsList == nil {
		return errors.NewStructuralMismatchError("processingInformation", "missing inputDimensionsList")
	}
	merged, err := p.mergeLists("imageAnnotation/processingInformation/inputDimensionsList", constants.DefaultMergeBuffer, nil)
	if err != nil {
		return err
	}
	for _, child := range dimensionsList.ChildElements() {
		dimensionsList.RemoveChild(child)
	}
	for _, child := range merged.ChildElements() {
		dimensionsList.AddChild(child)
	}
	dimensionsList.CreateAttr("count", merged.SelectAttrValue("count", "0"))

	imageAnnotation.AddChild(processingInformation)
	p.imageAnnotation = imageAnnotation
	return nil
}

var statisticsPaths = []string{
	"outputDataMean/re",
	"outputDataMean/im",
	"outputDataStdDev/re",
	"outputDataStdDev/im",
}

// createDopplerCentroid merges the Doppler centroid estimate list.
func (p *Product) createDopplerCentroid() error {
	merged, err := p.mergeLists("dopplerCentroid/dcEstimateList", constants.DefaultMergeBuffer, nil)
	if err != nil {
		return err
	}
	dopplerCentroid := etree.NewElement("dopplerCentroid")
	dopplerCentroid.AddChild(merged)
	p.dopplerCentroid = dopplerCentroid
	return nil
}

// createAntennaPattern merges the antenna pattern list.
func (p *Product) createAntennaPattern() error {
	merged, err := p.mergeLists("antennaPattern/antennaPatternList", constants.DefaultMergeBuffer, nil)
	if err != nil {
		return err
	}
	antennaPattern := etree.NewElement("antennaPattern")
	antennaPattern.AddChild(merged)
	p.antennaPattern = antennaPattern
	return nil
}

// createSwathTiming merges the burst list with a near-zero buffer so the
// output aligns exactly to the group's burst boundaries, and blanks each
// burst's byteOffset for the measurement assembler to fill in.
func (p *Product) createSwathTiming() error {
	burstList, err := p.mergeLists("swathTiming/burstList", constants.BurstListMergeBuffer, nil)
	if err != nil {
		return err
	}

	// Buffering both backward and forward can admit one extra trailing burst.
	children := burstList.ChildElements()
	if len(children) > len(p.burstInfos) {
		burstList.RemoveChild(children[len(children)-1])
		burstList.CreateAttr("count", strconv.Itoa(len(children)-1))
	}

	for _, burstElem := range burstList.ChildElements() {
		if err := setElementText(burstElem, "byteOffset", ""); err != nil {
			return err
		}
	}

	swathTiming := etree.NewElement("swathTiming")
	for _, field := range []string{"linesPerBurst", "samplesPerBurst"} {
		elem := p.inputs[0].FindElement("swathTiming/" + field)
		if elem == nil {
			return errors.NewStructuralMismatchError("swathTiming", "missing "+field)
		}
		swathTiming.AddChild(elem.Copy())
	}
	swathTiming.AddChild(burstList)
	p.swathTiming = swathTiming
	return nil
}

// createGeolocationGrid merges the geolocation grid within the output line
// window and extracts GeoPoints for raster assembly and packaging.
func (p *Product) createGeolocationGrid() error {
	bounds := &LineBounds{First: 0, Last: p.totalLines}
	gridList, err := p.mergeLists("geolocationGrid/geolocationGridPointList", constants.DefaultMergeBuffer, bounds)
	if err != nil {
		return err
	}
	geolocationGrid := etree.NewElement("geolocationGrid")
	geolocationGrid.AddChild(gridList)
	p.geolocationGrid = geolocationGrid
	return p.updateGCPs()
}

// updateGCPs extracts GeoPoints from the merged geolocation grid.
func (p *Product) updateGCPs() error {
	gridList := p.geolocationGrid.FindElement("geolocationGridPointList")
	for _, point := range gridList.ChildElements() {
		gcp := GeoPoint{}
		var err error
		if gcp.Longitude, err = floatField(point, "longitude"); err != nil {
			return err
		}
		if gcp.Latitude, err = floatField(point, "latitude"); err != nil {
			return err
		}
		if gcp.Height, err = floatField(point, "height"); err != nil {
			return err
		}
		if gcp.Line, err = lineNumber(point); err != nil {
			return err
		}
		pixel, err := floatField(point, "pixel")
		if err != nil {
			return err
		}
		gcp.Pixel = int(pixel)
		p.gcps = append(p.gcps, gcp)
	}
	return nil
}

// createCoordinateConversion creates an empty coordinateConversion element.
func (p *Product) createCoordinateConversion() {
	coordinateConversion := etree.NewElement("coordinateConversion")
	list := coordinateConversion.CreateElement("coordinateConversionList")
	list.CreateAttr("count", "0")
	p.coordinateConversion = coordinateConversion
}

// createSwathMerging creates an empty swathMerging element.
func (p *Product) createSwathMerging() {
	swathMerging := etree.NewElement("swathMerging")
	list := swathMerging.CreateElement("swathMergeList")
	list.CreateAttr("count", "0")
	p.swathMerging = swathMerging
}

// Assemble builds the product document. Children are rendered in the fixed
// order the product schema requires.
func (p *Product) Assemble() error {
	if err := p.createADSHeader(); err != nil {
		return err
	}
	if err := p.createQualityInformation(); err != nil {
		return err
	}
	if err := p.createGeneralAnnotation(); err != nil {
		return err
	}
	if err := p.createImageAnnotation(); err != nil {
		return err
	}
	if err := p.createDopplerCentroid(); err != nil {
		return err
	}
	if err := p.createAntennaPattern(); err != nil {
		return err
	}
	if err := p.createSwathTiming(); err != nil {
		return err
	}
	if err := p.createGeolocationGrid(); err != nil {
		return err
	}
	p.createCoordinateConversion()
	p.createSwathMerging()

	p.setDocument("product", []*etree.Element{
		p.adsHeader,
		p.qualityInformation,
		p.generalAnnotation,
		p.imageAnnotation,
		p.dopplerCentroid,
		p.antennaPattern,
		p.swathTiming,
		p.geolocationGrid,
		p.coordinateConversion,
		p.swathMerging,
	})
	return nil
}

// UpdateDataStats patches the measurement-derived complex mean and standard
// deviation into the assembled document.
func (p *Product) UpdateDataStats(mean, stdDev complex128) error {
	if p.doc == nil {
		return errors.NewUnsupportedConfigurationError(burst.KindProduct, "annotation has not been assembled")
	}
	values := map[string]float64{
		"outputDataMean/re":   real(mean),
		"outputDataMean/im":   imag(mean),
		"outputDataStdDev/re": real(stdDev),
		"outputDataStdDev/im": imag(stdDev),
	}
	prefix := "imageAnnotation/imageInformation/imageStatistics/"
	for _, path := range statisticsPaths {
		if err := setElementText(p.doc.Root(), prefix+path, fmt.Sprintf("%.6e", values[path])); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBurstByteOffsets patches the per-burst byte offsets supplied by
// raster assembly into the assembled document, in group order.
func (p *Product) UpdateBurstByteOffsets(offsets []int64) error {
	if p.doc == nil {
		return errors.NewUnsupportedConfigurationError(burst.KindProduct, "annotation has not been assembled")
	}
	burstList := p.doc.Root().FindElement("swathTiming/burstList")
	bursts := burstList.ChildElements()
	if len(bursts) != len(offsets) {
		return errors.NewStructuralMismatchError("burstList",
			fmt.Sprintf("%d byte offsets provided for %d bursts", len(offsets), len(bursts)))
	}
	for i, burstElem := range bursts {
		if err := setElementText(burstElem, "byteOffset", strconv.FormatInt(offsets[i], 10)); err != nil {
			return err
		}
	}
	return nil
}

// floatField parses a float child field of an element.
func floatField(parent *etree.Element, name string) (float64, error) {
	elem := parent.FindElement(name)
	if elem == nil {
		return 0, errors.NewStructuralMismatchError(parent.Tag, "element is missing "+name)
	}
	value, err := strconv.ParseFloat(elem.Text(), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return value, nil
}
