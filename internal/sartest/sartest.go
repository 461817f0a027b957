// Package sartest builds synthetic ASF combined metadata files for tests: a
// manifest fragment plus product, calibration, noise, and RFI annotations for
// one source SLC, with deterministic timing and geometry.
package sartest

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/asfadmin/burst2safe/pkg/burst"
)

// TimeLayout is the annotation timestamp layout.
const TimeLayout = "2006-01-02T15:04:05.000000"

// SLC describes one synthetic source SLC. Zero fields take defaults.
type SLC struct {
	Platform            string // default S1A
	Swath               string // default IW2
	Polarization        string // default VV
	NumBursts           int    // default 9
	LinesPerBurst       int    // default 1500
	SamplesPerBurst     int    // default 100
	Start               time.Time
	BurstInterval       time.Duration // start-to-start, default 2.76s
	AzimuthTimeInterval float64       // seconds per line, default 0.002
	IPFVersion          string        // default 3.71
	AbsoluteOrbit       int           // default 48213
	MissionDataTake     string        // default 016E7F
}

// withDefaults returns a copy with defaults applied.
func (s SLC) withDefaults() SLC {
	if s.Platform == "" {
		s.Platform = "S1A"
	}
	if s.Swath == "" {
		s.Swath = "IW2"
	}
	if s.Polarization == "" {
		s.Polarization = "VV"
	}
	if s.NumBursts == 0 {
		s.NumBursts = 9
	}
	if s.LinesPerBurst == 0 {
		s.LinesPerBurst = 1500
	}
	if s.SamplesPerBurst == 0 {
		s.SamplesPerBurst = 100
	}
	if s.Start.IsZero() {
		s.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if s.BurstInterval == 0 {
		s.BurstInterval = 2760 * time.Millisecond
	}
	if s.AzimuthTimeInterval == 0 {
		s.AzimuthTimeInterval = 0.002
	}
	if s.IPFVersion == "" {
		s.IPFVersion = "3.71"
	}
	if s.AbsoluteOrbit == 0 {
		s.AbsoluteOrbit = 48213
	}
	if s.MissionDataTake == "" {
		s.MissionDataTake = "016E7F"
	}
	return s
}

// TotalLines is the SLC's total line count.
func (s SLC) TotalLines() int {
	s = s.withDefaults()
	return s.NumBursts * s.LinesPerBurst
}

// BurstStart is the azimuth time of burst i's first line.
func (s SLC) BurstStart(i int) time.Time {
	s = s.withDefaults()
	return s.Start.Add(time.Duration(i) * s.BurstInterval)
}

// BurstStop is the azimuth time of burst i's last line.
func (s SLC) BurstStop(i int) time.Time {
	s = s.withDefaults()
	return s.BurstStart(i).Add(s.lineDuration(s.LinesPerBurst - 1))
}

// lineTime is the azimuth time assigned to an SLC line.
func (s SLC) lineTime(line int) time.Time {
	return s.Start.Add(s.lineDuration(line))
}

func (s SLC) lineDuration(lines int) time.Duration {
	return time.Duration(float64(lines) * s.AzimuthTimeInterval * float64(time.Second))
}

// GranuleName is the source SLC granule name.
func (s SLC) GranuleName() string {
	s = s.withDefaults()
	const layout = "20060102T150405"
	stop := s.BurstStop(s.NumBursts - 1)
	return fmt.Sprintf("%s_IW_SLC__1SDV_%s_%s_%06d_%s_AB12",
		s.Platform, s.Start.Format(layout), stop.Format(layout), s.AbsoluteOrbit, s.MissionDataTake)
}

// BurstInfo creates a descriptor for one burst of the SLC. Shape and timing
// fields are left unset for AddShapeInfo and AddStartStopUTC.
func (s SLC) BurstInfo(index, burstID int, metadataPath string) *burst.Info {
	s = s.withDefaults()
	return &burst.Info{
		Granule: fmt.Sprintf("%s_%06d_%s_%s_%s_BURST",
			s.Platform, burstID, s.Swath, s.BurstStart(index).Format("20060102T150405"), s.Polarization),
		SLCGranule:    s.GranuleName(),
		Swath:         s.Swath,
		Polarization:  s.Polarization,
		BurstID:       burstID,
		BurstIndex:    index,
		Direction:     "DESCENDING",
		AbsoluteOrbit: s.AbsoluteOrbit,
		RelativeOrbit: 16,
		Date:          s.BurstStart(index),
		MetadataPath:  metadataPath,
	}
}

// Write serializes the combined metadata file to path.
func (s SLC) Write(path string) error {
	doc := s.BuildDocument()
	doc.Indent(2)
	return doc.WriteToFile(path)
}

// BuildDocument builds the combined metadata tree: a manifest fragment and
// one wrapper per annotation kind.
func (s SLC) BuildDocument() *etree.Document {
	s = s.withDefaults()

	root := etree.NewElement("burst")
	manifest := root.CreateElement("manifest")
	manifest.AddChild(s.buildManifest())

	metadata := root.CreateElement("metadata")
	metadata.AddChild(s.wrap("product", s.buildProduct()))
	metadata.AddChild(s.wrap("noise", s.buildNoise()))
	metadata.AddChild(s.wrap("calibration", s.buildCalibration()))
	metadata.AddChild(s.wrap("rfi", s.buildRFI()))

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(root)
	return doc
}

// wrap inlines an annotation's children under a content element inside its
// kind wrapper, matching the extracted metadata layout.
func (s SLC) wrap(kind string, annotation *etree.Element) *etree.Element {
	wrapper := etree.NewElement(kind)
	wrapper.CreateElement("swath").SetText(s.Swath)
	wrapper.CreateElement("polarisation").SetText(s.Polarization)
	inner := wrapper.CreateElement("content")
	for _, child := range annotation.ChildElements() {
		inner.AddChild(child)
	}
	return wrapper
}

func (s SLC) buildManifest() *etree.Element {
	xfdu := etree.NewElement("XFDU")
	xfdu.CreateAttr("version", "esa/safe/sentinel-1.0/sentinel-1/sar/level-1/slc/standard/iwdp")

	section := xfdu.CreateElement("metadataSection")

	processing := section.CreateElement("metadataObject")
	processing.CreateAttr("ID", "processing")
	facility := processing.CreateElement("metadataWrap").
		CreateElement("xmlData").
		CreateElement("processing").
		CreateElement("facility")
	software := facility.CreateElement("software")
	software.CreateAttr("name", "Sentinel-1 IPF")
	software.CreateAttr("version", s.IPFVersion)

	for _, id := range []string{"platform", "measurementOrbitReference", "generalProductInformation", "acquisitionPeriod"} {
		object := section.CreateElement("metadataObject")
		object.CreateAttr("ID", id)
		object.CreateElement("metadataWrap").CreateElement("xmlData")
	}

	frameSet := section.CreateElement("metadataObject")
	frameSet.CreateAttr("ID", "measurementFrameSet")
	frame := frameSet.CreateElement("metadataWrap").
		CreateElement("xmlData").
		CreateElement("frameSet").
		CreateElement("frame").
		CreateElement("footPrint")
	frame.CreateElement("coordinates").SetText("0,0 0,0 0,0 0,0")

	// Schema references are rebuilt by the assembler and must not survive.
	schema := section.CreateElement("metadataObject")
	schema.CreateAttr("ID", "s1Level1ProductSchema")
	schema.CreateElement("metadataWrap")

	xfdu.CreateElement("dataObjectSection")
	return xfdu
}

func (s SLC) buildADSHeader() *etree.Element {
	header := etree.NewElement("adsHeader")
	header.CreateElement("missionId").SetText(s.Platform)
	header.CreateElement("productType").SetText("SLC")
	header.CreateElement("polarisation").SetText(s.Polarization)
	header.CreateElement("mode").SetText("IW")
	header.CreateElement("swath").SetText(s.Swath)
	header.CreateElement("startTime").SetText(s.Start.Format(TimeLayout))
	header.CreateElement("stopTime").SetText(s.BurstStop(s.NumBursts - 1).Format(TimeLayout))
	header.CreateElement("absoluteOrbitNumber").SetText(strconv.Itoa(s.AbsoluteOrbit))
	header.CreateElement("missionDataTakeId").SetText("93823")
	header.CreateElement("imageNumber").SetText("001")
	return header
}

// timedEntry appends a subelement carrying a timestamp field.
func timedEntry(list *etree.Element, subName, timeField string, at time.Time) *etree.Element {
	sub := list.CreateElement(subName)
	sub.CreateElement(timeField).SetText(at.Format(TimeLayout))
	return sub
}

// countAttr sets the count attribute to the number of children.
func countAttr(list *etree.Element) *etree.Element {
	list.CreateAttr("count", strconv.Itoa(len(list.ChildElements())))
	return list
}

func (s SLC) buildProduct() *etree.Element {
	product := etree.NewElement("product")
	product.AddChild(s.buildADSHeader())

	quality := product.CreateElement("qualityInformation")
	quality.CreateElement("productQualityIndex").SetText("1.000000e+00")
	qualityData := quality.CreateElement("qualityDataList")
	timedEntry(qualityData, "qualityData", "azimuthTime", s.Start)
	countAttr(qualityData)

	general := product.CreateElement("generalAnnotation")
	information := general.CreateElement("productInformation")
	information.CreateElement("pass").SetText("Descending")
	information.CreateElement("platformHeading").SetText("-1.671355273437500e+02")

	downlink := general.CreateElement("downlinkInformationList")
	timedEntry(downlink, "downlinkInformation", "azimuthTime", s.lineTime(s.TotalLines()/2))
	countAttr(downlink)

	orbits := general.CreateElement("orbitList")
	for at := s.Start.Add(-10 * time.Second); !at.After(s.BurstStop(s.NumBursts - 1).Add(10 * time.Second)); at = at.Add(10 * time.Second) {
		orbit := timedEntry(orbits, "orbit", "time", at)
		position := orbit.CreateElement("position")
		position.CreateElement("x").SetText("4.488079e+06")
		position.CreateElement("y").SetText("1.904355e+06")
		position.CreateElement("z").SetText("-4.796539e+06")
	}
	countAttr(orbits)

	attitudes := general.CreateElement("attitudeList")
	for i := 0; i < s.NumBursts; i++ {
		timedEntry(attitudes, "attitude", "time", s.BurstStart(i))
	}
	countAttr(attitudes)

	rawData := general.CreateElement("rawDataAnalysisList")
	timedEntry(rawData, "rawDataAnalysis", "azimuthTime", s.Start)
	countAttr(rawData)

	replicas := general.CreateElement("replicaInformationList")
	replica := replicas.CreateElement("replicaInformation")
	reference := replica.CreateElement("referenceReplica")
	reference.CreateElement("azimuthTime").SetText(s.Start.Format(TimeLayout))
	reference.CreateElement("crossCorrelationBandwidth").SetText("0.000000e+00")
	countAttr(replicas)

	noiseList := general.CreateElement("noiseList")
	timedEntry(noiseList, "noise", "azimuthTime", s.Start)
	countAttr(noiseList)

	terrain := general.CreateElement("terrainHeightList")
	for i := 0; i < s.NumBursts; i++ {
		entry := timedEntry(terrain, "terrainHeight", "azimuthTime", s.BurstStart(i))
		entry.CreateElement("value").SetText("1.234000e+02")
	}
	countAttr(terrain)

	fmRates := general.CreateElement("azimuthFmRateList")
	for i := 0; i < s.NumBursts; i++ {
		timedEntry(fmRates, "azimuthFmRate", "azimuthTime", s.BurstStart(i))
	}
	countAttr(fmRates)

	image := product.CreateElement("imageAnnotation")
	imageInformation := image.CreateElement("imageInformation")
	imageInformation.CreateElement("productFirstLineUtcTime").SetText(s.Start.Format(TimeLayout))
	imageInformation.CreateElement("productLastLineUtcTime").SetText(s.BurstStop(s.NumBursts - 1).Format(TimeLayout))
	imageInformation.CreateElement("ascendingNodeTime").SetText(s.Start.Add(-20 * time.Minute).Format(TimeLayout))
	imageInformation.CreateElement("productComposition").SetText("Slice")
	imageInformation.CreateElement("sliceNumber").SetText("1")
	sliceList := imageInformation.CreateElement("sliceList")
	sliceElem := sliceList.CreateElement("slice")
	sliceElem.CreateElement("sliceNumber").SetText("1")
	countAttr(sliceList)
	imageInformation.CreateElement("numberOfSamples").SetText(strconv.Itoa(s.SamplesPerBurst))
	imageInformation.CreateElement("numberOfLines").SetText(strconv.Itoa(s.TotalLines()))
	imageInformation.CreateElement("azimuthPixelSpacing").SetText("1.390000e+01")
	imageInformation.CreateElement("azimuthTimeInterval").SetText(strconv.FormatFloat(s.AzimuthTimeInterval, 'e', 6, 64))
	statistics := imageInformation.CreateElement("imageStatistics")
	mean := statistics.CreateElement("outputDataMean")
	mean.CreateElement("re").SetText("1.000000e+00")
	mean.CreateElement("im").SetText("2.000000e+00")
	stdDev := statistics.CreateElement("outputDataStdDev")
	stdDev.CreateElement("re").SetText("3.000000e+00")
	stdDev.CreateElement("im").SetText("4.000000e+00")

	processing := image.CreateElement("processingInformation")
	dimensions := processing.CreateElement("inputDimensionsList")
	for i := 0; i < s.NumBursts; i++ {
		entry := timedEntry(dimensions, "inputDimensions", "azimuthTime", s.BurstStart(i))
		entry.CreateElement("numberOfInputLines").SetText("20000")
	}
	countAttr(dimensions)

	doppler := product.CreateElement("dopplerCentroid")
	estimates := doppler.CreateElement("dcEstimateList")
	for i := 0; i < s.NumBursts; i++ {
		timedEntry(estimates, "dcEstimate", "azimuthTime", s.BurstStart(i))
	}
	countAttr(estimates)

	antenna := product.CreateElement("antennaPattern")
	patterns := antenna.CreateElement("antennaPatternList")
	for i := 0; i < s.NumBursts; i++ {
		entry := timedEntry(patterns, "antennaPattern", "azimuthTime", s.BurstStart(i))
		entry.CreateElement("swath").SetText(s.Swath)
	}
	countAttr(patterns)

	timing := product.CreateElement("swathTiming")
	timing.CreateElement("linesPerBurst").SetText(strconv.Itoa(s.LinesPerBurst))
	timing.CreateElement("samplesPerBurst").SetText(strconv.Itoa(s.SamplesPerBurst))
	burstList := timing.CreateElement("burstList")
	for i := 0; i < s.NumBursts; i++ {
		burstElem := burstList.CreateElement("burst")
		burstElem.CreateElement("azimuthTime").SetText(s.BurstStart(i).Format(TimeLayout))
		burstElem.CreateElement("azimuthAnxTime").SetText("1.234567e+03")
		burstElem.CreateElement("sensingTime").SetText(s.BurstStart(i).Format(TimeLayout))
		burstElem.CreateElement("byteOffset").SetText(strconv.Itoa(i * s.LinesPerBurst * s.SamplesPerBurst * 4))
		burstElem.CreateElement("firstValidSample").SetText("0")
		burstElem.CreateElement("lastValidSample").SetText(strconv.Itoa(s.SamplesPerBurst - 1))
	}
	countAttr(burstList)

	grid := product.CreateElement("geolocationGrid")
	points := grid.CreateElement("geolocationGridPointList")
	for line := 0; line <= s.TotalLines(); line += s.LinesPerBurst {
		for _, pixel := range []int{0, s.SamplesPerBurst - 1} {
			point := points.CreateElement("geolocationGridPoint")
			point.CreateElement("azimuthTime").SetText(s.lineTime(line).Format(TimeLayout))
			point.CreateElement("slantRangeTime").SetText("5.337000e-03")
			point.CreateElement("line").SetText(strconv.Itoa(line))
			point.CreateElement("pixel").SetText(strconv.Itoa(pixel))
			point.CreateElement("latitude").SetText(strconv.FormatFloat(50+float64(line)*1e-5, 'e', 10, 64))
			point.CreateElement("longitude").SetText(strconv.FormatFloat(8+float64(pixel)*1e-4, 'e', 10, 64))
			point.CreateElement("height").SetText("1.000000e+02")
		}
	}
	countAttr(points)

	conversion := product.CreateElement("coordinateConversion")
	conversion.CreateElement("coordinateConversionList").CreateAttr("count", "0")
	merging := product.CreateElement("swathMerging")
	merging.CreateElement("swathMergeList").CreateAttr("count", "0")
	return product
}

func (s SLC) buildCalibration() *etree.Element {
	calibration := etree.NewElement("calibration")
	calibration.AddChild(s.buildADSHeader())

	information := calibration.CreateElement("calibrationInformation")
	information.CreateElement("absoluteCalibrationConstant").SetText("1.000000e+00")

	vectors := calibration.CreateElement("calibrationVectorList")
	for line := 0; line < s.TotalLines(); line += s.LinesPerBurst {
		vector := timedEntry(vectors, "calibrationVector", "azimuthTime", s.lineTime(line))
		vector.CreateElement("line").SetText(strconv.Itoa(line))
		vector.CreateElement("sigmaNought").SetText("5.800000e+02 5.800000e+02")
	}
	countAttr(vectors)
	return calibration
}

func (s SLC) buildNoise() *etree.Element {
	noise := etree.NewElement("noise")
	noise.AddChild(s.buildADSHeader())

	rangeVectors := noise.CreateElement("noiseRangeVectorList")
	for line := 0; line < s.TotalLines(); line += s.LinesPerBurst {
		vector := timedEntry(rangeVectors, "noiseRangeVector", "azimuthTime", s.lineTime(line))
		vector.CreateElement("line").SetText(strconv.Itoa(line))
		vector.CreateElement("noiseRangeLut").SetText("3.100000e+00 3.100000e+00")
	}
	countAttr(rangeVectors)

	azimuthVectors := noise.CreateElement("noiseAzimuthVectorList")
	vector := azimuthVectors.CreateElement("noiseAzimuthVector")
	vector.CreateElement("swath").SetText(s.Swath)
	vector.CreateElement("firstAzimuthLine").SetText("0")
	vector.CreateElement("firstRangeSample").SetText("0")
	vector.CreateElement("lastAzimuthLine").SetText(strconv.Itoa(s.TotalLines() - 1))
	vector.CreateElement("lastRangeSample").SetText(strconv.Itoa(s.SamplesPerBurst - 1))

	lines := ""
	lut := ""
	count := 0
	for line := 0; line < s.TotalLines(); line += s.LinesPerBurst {
		if count > 0 {
			lines += " "
			lut += " "
		}
		lines += strconv.Itoa(line)
		lut += "1.500000e+00"
		count++
	}
	lineElem := vector.CreateElement("line")
	lineElem.SetText(lines)
	lineElem.CreateAttr("count", strconv.Itoa(count))
	lutElem := vector.CreateElement("noiseAzimuthLut")
	lutElem.SetText(lut)
	lutElem.CreateAttr("count", strconv.Itoa(count))
	countAttr(azimuthVectors)
	return noise
}

func (s SLC) buildRFI() *etree.Element {
	rfi := etree.NewElement("rfi")
	rfi.AddChild(s.buildADSHeader())
	rfi.CreateElement("rfiMitigationApplied").SetText("None")

	detections := rfi.CreateElement("rfiDetectionFromNoiseReportList")
	for i := 0; i < s.NumBursts; i++ {
		timedEntry(detections, "rfiDetectionFromNoiseReport", "azimuthTime", s.BurstStart(i))
	}
	countAttr(detections)

	reports := rfi.CreateElement("rfiBurstReportList")
	for i := 0; i < s.NumBursts; i++ {
		timedEntry(reports, "rfiBurstReport", "azimuthTime", s.BurstStart(i))
	}
	countAttr(reports)
	return rfi
}
