// Package safe orchestrates assembly of a complete SAFE product from a valid
// burst merge group: validation, swath/polarization grouping, per-swath
// annotation and measurement assembly, manifest creation, and naming.
package safe

import (
	"fmt"
	"sort"

	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// ValidateSubset checks that the bursts of one swath/polarization subset form
// a legal merge group:
//   - no duplicate granules
//   - a single absolute orbit
//   - a single swath
//   - a single polarization
//   - contiguous burst IDs once sorted
func ValidateSubset(burstInfos []*burst.Info) error {
	seen := make(map[string]bool)
	var duplicates []string
	for _, info := range burstInfos {
		if seen[info.Granule] {
			duplicates = append(duplicates, info.Granule)
		}
		seen[info.Granule] = true
	}
	if len(duplicates) > 0 {
		return errors.NewInvalidGroupError("", "", fmt.Sprintf("found duplicate granules: %v", duplicates))
	}

	orbits := make(map[int]bool)
	swaths := make(map[string]bool)
	polarizations := make(map[string]bool)
	for _, info := range burstInfos {
		orbits[info.AbsoluteOrbit] = true
		swaths[info.Swath] = true
		polarizations[info.Polarization] = true
	}
	if len(orbits) != 1 {
		return errors.NewInvalidGroupError("", "",
			fmt.Sprintf("all bursts must have the same absolute orbit, found %v", keysOf(orbits)))
	}
	if len(swaths) != 1 {
		return errors.NewInvalidGroupError("", "",
			fmt.Sprintf("all bursts must be from the same swath, found %v", stringKeysOf(swaths)))
	}
	if len(polarizations) != 1 {
		return errors.NewInvalidGroupError("", "",
			fmt.Sprintf("all bursts must have the same polarization, found %v", stringKeysOf(polarizations)))
	}

	ids := make([]int, len(burstInfos))
	for i, info := range burstInfos {
		ids[i] = info.BurstID
	}
	sort.Ints(ids)
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[i-1]+1 {
			return errors.NewInvalidGroupError(burstInfos[0].Swath, burstInfos[0].Polarization,
				fmt.Sprintf("all bursts must have consecutive burst IDs, found %v", ids))
		}
	}
	return nil
}

// idRange is a swath/polarization subset's burst-ID extent.
type idRange struct {
	min, max int
}

// ValidateGroup checks that a full burst set forms one legal merge group.
// Beyond the per-subset checks, every polarization of a swath must cover the
// same burst-ID range, and adjacent swaths must overlap within the configured
// tolerance. It runs before any download or merge work begins.
func ValidateGroup(burstInfos []*burst.Info) error {
	if len(burstInfos) == 0 {
		return errors.NewInvalidGroupError("", "", "no bursts provided")
	}

	swathSet := make(map[string]bool)
	polSet := make(map[string]bool)
	for _, info := range burstInfos {
		swathSet[info.Swath] = true
		polSet[info.Polarization] = true
	}
	swaths := stringKeysOf(swathSet)
	polarizations := stringKeysOf(polSet)
	sort.Strings(swaths)
	sort.Strings(polarizations)

	ranges := make(map[string]map[string]idRange)
	for _, swath := range swaths {
		ranges[swath] = make(map[string]idRange)
		for _, pol := range polarizations {
			var subset []*burst.Info
			for _, info := range burstInfos {
				if info.Swath == swath && info.Polarization == pol {
					subset = append(subset, info)
				}
			}
			if len(subset) == 0 {
				ranges[swath][pol] = idRange{}
				continue
			}
			if err := ValidateSubset(subset); err != nil {
				return err
			}
			r := idRange{min: subset[0].BurstID, max: subset[0].BurstID}
			for _, info := range subset {
				if info.BurstID < r.min {
					r.min = info.BurstID
				}
				if info.BurstID > r.max {
					r.max = info.BurstID
				}
			}
			ranges[swath][pol] = r
		}

		var startIDs, endIDs []int
		for _, pol := range polarizations {
			startIDs = append(startIDs, ranges[swath][pol].min)
			endIDs = append(endIDs, ranges[swath][pol].max)
		}
		if !allEqual(startIDs) {
			return errors.NewInvalidGroupError(swath, "",
				fmt.Sprintf("polarization groups do not have the same start burst ID, found %v", startIDs))
		}
		if !allEqual(endIDs) {
			return errors.NewInvalidGroupError(swath, "",
				fmt.Sprintf("polarization groups do not have the same end burst ID, found %v", endIDs))
		}
	}

	if len(swaths) == 1 {
		return nil
	}

	// Adjacent swaths are numbered independently, so their ID ranges may be
	// offset by up to the overlap tolerance at each end.
	workingPol := polarizations[0]
	for i := 0; i < len(swaths)-1; i++ {
		swath1, swath2 := swaths[i], swaths[i+1]
		range1, range2 := ranges[swath1][workingPol], ranges[swath2][workingPol]
		if abs(range1.min-range2.min) > constants.SwathOverlapTolerance ||
			abs(range1.max-range2.max) > constants.SwathOverlapTolerance {
			return errors.NewInvalidGroupError(swath1, workingPol,
				fmt.Sprintf("products from swaths %s and %s do not overlap", swath1, swath2))
		}
	}
	return nil
}

func allEqual(values []int) bool {
	for _, v := range values {
		if v != values[0] {
			return false
		}
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func keysOf(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func stringKeysOf(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
