// Package burstid calculates the unique burst ID of a Sentinel-1 burst using
// ESA's convention from the Sentinel-1 Level 1 Detailed Algorithm Definition.
//
// Burst IDs are stable across reprocessing: they identify a burst's position
// along a fixed reference orbit track, independent of which physical
// acquisition produced it. The calculation accounts for equator-crossing
// frames, where the track number of a burst may change mid-frame.
package burstid

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// burstTimes are the measured burst-to-burst times between consecutive
// subswaths of a beam cycle, in seconds since the first subswath.
var burstTimes = map[string][]time.Duration{
	"IW": {832 * time.Millisecond, 1078 * time.Millisecond, 848 * time.Millisecond},
	"EW": {683 * time.Millisecond, 559 * time.Millisecond, 612 * time.Millisecond, 565 * time.Millisecond, 619 * time.Millisecond},
}

// timeLayouts are the timestamp layouts accepted for sensing and ANX times.
var timeLayouts = []string{
	constants.TimeLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// ModeTiming returns the preamble length and beam cycle time for a mode.
// The name may be a mode ("IW", "EW") or a subswath name ("EW2" etc).
func ModeTiming(name string) (preamble, beamCycle time.Duration, err error) {
	if len(name) < 2 {
		return 0, 0, errors.NewUnsupportedConfigurationError("burstid", fmt.Sprintf("invalid mode name: %s", name))
	}
	switch strings.ToUpper(name[:2]) {
	case "IW":
		return constants.PreambleLengthIW, constants.BeamCycleTimeIW, nil
	case "EW":
		return constants.PreambleLengthEW, constants.BeamCycleTimeEW, nil
	default:
		return 0, 0, errors.NewUnsupportedConfigurationError("burstid", fmt.Sprintf("invalid mode name: %s", name[:2]))
	}
}

// ParseTime parses a Sentinel-1 annotation timestamp.
func ParseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", value)
}

// startOffsets returns the offsets from each subswath's sensing time back to
// the start of the first subswath in the beam cycle.
func startOffsets(mode string) []time.Duration {
	times := burstTimes[mode]
	offsets := make([]time.Duration, len(times))
	var cumulative time.Duration
	for i := 1; i < len(offsets); i++ {
		cumulative -= times[i-1]
		offsets[i] = cumulative
	}
	return offsets
}

// esaBurstID evaluates equations 9-89 and 9-91 of the Level 1 Detailed
// Algorithm Definition: Δtb = tb − t_anx + (r − 1)·T_orb, then
// 1 + floor((Δtb − T_pre) / T_beam).
func esaBurstID(timeSinceANX time.Duration, orbitNumberStart int, preamble, beamCycle time.Duration) int {
	dtb := timeSinceANX + time.Duration(orbitNumberStart-1)*constants.NominalOrbitalDuration
	return 1 + int(math.Floor(float64(dtb-preamble)/float64(beamCycle)))
}

// Calculate computes the unique burst ID of a burst and resolves the correct
// orbit number.
//
// The orbitNumberStart and orbitNumberStop parameters are used to determine
// whether the scene crosses the equator; they are equal when it does not.
// EW acquisitions are always high-latitude and never cross the equator, so
// they always resolve to orbitNumberStart.
func Calculate(sensingTime, anxTime string, orbitNumberStart, orbitNumberStop int, subswath string) (int, int, error) {
	sensing, err := ParseTime(sensingTime)
	if err != nil {
		return 0, 0, err
	}
	anx, err := ParseTime(anxTime)
	if err != nil {
		return 0, 0, err
	}

	preamble, beamCycle, err := ModeTiming(subswath)
	if err != nil {
		return 0, 0, err
	}

	mode := strings.ToUpper(subswath[:2])
	swathNum := int(subswath[len(subswath)-1] - '0')
	if swathNum < 1 || swathNum > len(burstTimes[mode]) {
		return 0, 0, errors.NewUnsupportedConfigurationError("burstid", fmt.Sprintf("invalid subswath name: %s", subswath))
	}

	times := burstTimes[mode]
	startSubsw1 := sensing.Add(startOffsets(mode)[swathNum-1])

	var timeSinceANX time.Duration
	var orbitNumber int

	switch mode {
	case "IW":
		// Middle of IW2 is the middle of the entire beam cycle.
		midIW2 := startSubsw1.Add(times[0] + times[1]/2)

		hasANXCrossing := orbitNumberStop == orbitNumberStart+1 ||
			(orbitNumberStop == 1 && orbitNumberStart == constants.RelativeOrbitMax)

		timeSinceANXSubsw1 := startSubsw1.Sub(anx)
		timeSinceANX = midIW2.Sub(anx)

		if timeSinceANXSubsw1-constants.NominalOrbitalDuration < 0 {
			// Less than a full orbit has passed.
			orbitNumber = orbitNumberStart
		} else {
			orbitNumber = orbitNumberStop
			// Scenes whose given ascending node is more than one orbit in the
			// past without an actual equator crossing.
			if !hasANXCrossing {
				timeSinceANX -= constants.NominalOrbitalDuration
			}
		}
	case "EW":
		orbitNumber = orbitNumberStart
		// Middle of EW3 is the middle of the entire beam cycle.
		midEW3 := startSubsw1.Add(times[0] + times[1] + times[2]/2)
		timeSinceANX = midEW3.Sub(anx)
	}

	return esaBurstID(timeSinceANX, orbitNumberStart, preamble, beamCycle), orbitNumber, nil
}
