// Package burst provides burst descriptors and access to the combined
// metadata files that accompany ASF burst SLC products. A descriptor is
// created once per input burst and is immutable afterwards, except for the
// shape and start/stop fields which are populated from the downloaded
// metadata before assembly begins.
package burst

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/asfadmin/burst2safe/pkg/burstid"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// Info describes one physical burst.
type Info struct {
	Granule       string
	SLCGranule    string
	Swath         string
	Polarization  string
	BurstID       int
	BurstIndex    int
	Direction     string
	AbsoluteOrbit int
	RelativeOrbit int
	Date          time.Time
	DataURL       string
	DataPath      string
	MetadataURL   string
	MetadataPath  string

	// Populated by AddShapeInfo and AddStartStopUTC after download.
	StartUTC time.Time
	StopUTC  time.Time
	Length   int
	Width    int
}

// AddShapeInfo populates the burst's pixel length and width from its product
// annotation.
func (i *Info) AddShapeInfo() error {
	meta, err := Load(i.MetadataPath)
	if err != nil {
		return err
	}
	annotation, err := meta.Annotation(KindProduct, i.Swath, i.Polarization)
	if err != nil {
		return err
	}

	length, err := intText(annotation, "swathTiming/linesPerBurst")
	if err != nil {
		return err
	}
	width, err := intText(annotation, "swathTiming/samplesPerBurst")
	if err != nil {
		return err
	}
	i.Length = length
	i.Width = width
	return nil
}

// AddStartStopUTC populates the burst's sensing start and stop times.
// Bursts overlap spatially, so start/stop times of adjacent bursts overlap
// as well.
func (i *Info) AddStartStopUTC() error {
	meta, err := Load(i.MetadataPath)
	if err != nil {
		return err
	}
	annotation, err := meta.Annotation(KindProduct, i.Swath, i.Polarization)
	if err != nil {
		return err
	}

	bursts := annotation.FindElements("swathTiming/burstList/burst")
	if i.BurstIndex < 0 || i.BurstIndex >= len(bursts) {
		return errors.NewStructuralMismatchError("burstList",
			fmt.Sprintf("burst index %d out of range for %d bursts", i.BurstIndex, len(bursts)))
	}
	azimuthTime := bursts[i.BurstIndex].FindElement("azimuthTime")
	if azimuthTime == nil {
		return errors.NewStructuralMismatchError("burstList", "burst is missing azimuthTime")
	}
	start, err := burstid.ParseTime(azimuthTime.Text())
	if err != nil {
		return err
	}

	intervalElem := annotation.FindElement("imageAnnotation/imageInformation/azimuthTimeInterval")
	if intervalElem == nil {
		return errors.NewStructuralMismatchError("imageInformation", "missing azimuthTimeInterval")
	}
	interval, err := strconv.ParseFloat(intervalElem.Text(), 64)
	if err != nil {
		return fmt.Errorf("parsing azimuthTimeInterval: %w", err)
	}

	i.StartUTC = start
	i.StopUTC = start.Add(time.Duration(float64(i.Length-1) * interval * float64(time.Second)))
	return nil
}

// Group maps swath name to polarization to the sorted bursts of that subset.
type Group map[string]map[string][]*Info

// GroupInfos groups burst descriptors by swath and polarization, sorting each
// subset by burst ID ascending.
func GroupInfos(infos []*Info) Group {
	grouped := make(Group)
	for _, info := range infos {
		if grouped[info.Swath] == nil {
			grouped[info.Swath] = make(map[string][]*Info)
		}
		grouped[info.Swath][info.Polarization] = append(grouped[info.Swath][info.Polarization], info)
	}
	for _, pols := range grouped {
		for pol := range pols {
			subset := pols[pol]
			sort.Slice(subset, func(a, b int) bool { return subset[a].BurstID < subset[b].BurstID })
			pols[pol] = subset
		}
	}
	return grouped
}
