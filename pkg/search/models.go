// Package search finds Sentinel-1 burst products through the ASF search API,
// either by granule name or by orbit/footprint group parameters, and converts
// the results into burst descriptors.
package search

import (
	"encoding/json"
	"time"
)

// FeatureCollection is the top-level GeoJSON response of the search API.
type FeatureCollection struct {
	Features []Product `json:"features"`
}

// Product is a single burst SLC search result.
type Product struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties Properties      `json:"properties"`
	Umm        Umm             `json:"umm"`
}

// Properties is the metadata associated with a search result.
type Properties struct {
	CenterLat       float64         `json:"centerLat"`
	CenterLon       float64         `json:"centerLon"`
	StopTime        time.Time       `json:"stopTime"`
	FileID          string          `json:"fileID"`
	FlightDirection string          `json:"flightDirection"`
	PathNumber      int             `json:"pathNumber"`
	ProcessingLevel string          `json:"processingLevel"`
	URL             string          `json:"url"`
	AdditionalUrls  []string        `json:"additionalUrls"`
	StartTime       time.Time       `json:"startTime"`
	SceneName       string          `json:"sceneName"`
	Platform        string          `json:"platform"`
	Bytes           int64           `json:"bytes"`
	Md5sum          string          `json:"md5sum"`
	GranuleType     string          `json:"granuleType"`
	Orbit           int             `json:"orbit"`
	Polarization    string          `json:"polarization"`
	ProcessingDate  time.Time       `json:"processingDate"`
	Sensor          string          `json:"sensor"`
	GroupID         string          `json:"groupID"`
	PgeVersion      string          `json:"pgeVersion"`
	FileName        string          `json:"fileName"`
	BeamModeType    string          `json:"beamModeType"`
	Burst           BurstProperties `json:"burst"`
}

// BurstProperties is the burst-specific metadata of a search result.
type BurstProperties struct {
	AbsoluteBurstID int    `json:"absoluteBurstID"`
	RelativeBurstID int    `json:"relativeBurstID"`
	FullBurstID     string `json:"fullBurstID"`
	BurstIndex      int    `json:"burstIndex"`
	Subswath        string `json:"subswath"`
	AzimuthTime     string `json:"azimuthTime"`
	AzimuthAnxTime  string `json:"azimuthAnxTime"`
}

// Umm carries the CMR metadata fields the converter needs.
type Umm struct {
	InputGranules []string `json:"InputGranules"`
}
