package annotation

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
	version "github.com/hashicorp/go-version"

	"github.com/asfadmin/burst2safe/pkg/burst"
	"github.com/asfadmin/burst2safe/pkg/constants"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// noiseSplitVersion gates the modern split noise format: IPF versions from
// 2.90 onward record separate range and azimuth vector lists instead of a
// single noise vector list.
var noiseSplitVersion = version.Must(version.NewVersion(constants.NoiseSplitVersion))

// Noise assembles the noise annotation for one swath/polarization group.
type Noise struct {
	*base

	noiseVectorList   *etree.Element // legacy, IPF < 2.90
	rangeVectorList   *etree.Element
	azimuthVectorList *etree.Element
}

// NewNoise creates a noise annotation assembler.
func NewNoise(burstInfos []*burst.Info, ipfVersion *version.Version, imageNumber int) (*Noise, error) {
	b, err := newBase(burstInfos, burst.KindNoise, ipfVersion, imageNumber)
	if err != nil {
		return nil, err
	}
	return &Noise{base: b}, nil
}

// createNoiseVectorList merges the legacy noise vector list.
func (n *Noise) createNoiseVectorList() error {
	merged, err := n.mergeLists("noiseVectorList", constants.SlowVaryingMergeBuffer, nil)
	if err != nil {
		return err
	}
	n.noiseVectorList = merged
	return nil
}

// createRangeVectorList merges the range noise vector list.
func (n *Noise) createRangeVectorList() error {
	merged, err := n.mergeLists("noiseRangeVectorList", constants.SlowVaryingMergeBuffer, nil)
	if err != nil {
		return err
	}
	n.rangeVectorList = merged
	return nil
}

// createAzimuthVectorList rebuilds the azimuth noise vector list. The generic
// time-based merge cannot be used here: each azimuth vector carries a
// line-indexed lookup table, and the line array and noiseAzimuthLut must be
// truncated by the same index window to stay consistent.
func (n *Noise) createAzimuthVectorList() error {
	newList := etree.NewElement("noiseAzimuthVectorList")
	count := 0
	for i, input := range n.inputs {
		slcOffset := 0
		for _, length := range n.slcLengths[:i] {
			slcOffset += length
		}
		list := input.FindElement("noiseAzimuthVectorList")
		if list == nil {
			return errors.NewStructuralMismatchError("noiseAzimuthVectorList", "list not found in source annotation")
		}
		for _, vector := range list.FindElements("noiseAzimuthVector") {
			updated, err := updateAzimuthVector(vector, slcOffset-n.startLine, n.startLine, n.stopLine)
			if err != nil {
				return err
			}
			newList.AddChild(updated)
			count++
		}
	}
	newList.CreateAttr("count", strconv.Itoa(count))
	n.azimuthVectorList = newList
	return nil
}

// updateAzimuthVector shifts an azimuth vector's line array into the output
// coordinate space and slices both the line array and the lookup table to the
// [firstIndex, lastIndex] window covering the output line range.
func updateAzimuthVector(vector *etree.Element, lineOffset, startLine, stopLine int) (*etree.Element, error) {
	updated := vector.Copy()

	lineElem := updated.FindElement("line")
	if lineElem == nil {
		return nil, errors.NewStructuralMismatchError("noiseAzimuthVector", "missing line array")
	}
	lines, err := parseIntArray(lineElem.Text())
	if err != nil {
		return nil, err
	}
	for i := range lines {
		lines[i] += lineOffset
	}

	firstIndex, lastIndex := startStopIndexes(lines, stopLine-startLine-1, 0)
	count := strconv.Itoa(lastIndex - firstIndex + 1)

	if err := setElementText(updated, "firstAzimuthLine", strconv.Itoa(lines[firstIndex])); err != nil {
		return nil, err
	}
	if err := setElementText(updated, "lastAzimuthLine", strconv.Itoa(lines[lastIndex])); err != nil {
		return nil, err
	}

	lineElem.SetText(formatIntArray(lines[firstIndex : lastIndex+1]))
	lineElem.CreateAttr("count", count)

	lutElem := updated.FindElement("noiseAzimuthLut")
	if lutElem == nil {
		return nil, errors.NewStructuralMismatchError("noiseAzimuthVector", "missing noiseAzimuthLut")
	}
	lutValues := strings.Split(lutElem.Text(), " ")
	if lastIndex >= len(lutValues) {
		return nil, errors.NewStructuralMismatchError("noiseAzimuthVector",
			"noiseAzimuthLut is shorter than its line array")
	}
	lutElem.SetText(strings.Join(lutValues[firstIndex:lastIndex+1], " "))
	lutElem.CreateAttr("count", count)

	return updated, nil
}

// startStopIndexes locates the indexes of the entries bracketing
// [firstLine, lastLine] in an ascending line array: the greatest entry at or
// below firstLine and the smallest entry at or above lastLine, falling back
// to the array ends.
func startStopIndexes(lines []int, lastLine, firstLine int) (int, int) {
	firstIndex := 0
	for i, line := range lines {
		if line <= firstLine {
			firstIndex = i
		}
	}
	lastIndex := len(lines) - 1
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] >= lastLine {
			lastIndex = i
		}
	}
	return firstIndex, lastIndex
}

// Assemble builds the noise document, selecting the sub-format the source
// IPF version produced.
func (n *Noise) Assemble() error {
	if err := n.createADSHeader(); err != nil {
		return err
	}

	children := []*etree.Element{n.adsHeader}
	if n.ipfVersion.GreaterThanOrEqual(noiseSplitVersion) {
		if err := n.createRangeVectorList(); err != nil {
			return err
		}
		if err := n.createAzimuthVectorList(); err != nil {
			return err
		}
		children = append(children, n.rangeVectorList, n.azimuthVectorList)
	} else {
		if err := n.createNoiseVectorList(); err != nil {
			return err
		}
		children = append(children, n.noiseVectorList)
	}

	n.setDocument("noise", children)
	return nil
}

// parseIntArray parses a space-separated integer array.
func parseIntArray(text string) ([]int, error) {
	fields := strings.Fields(text)
	values := make([]int, len(fields))
	for i, field := range fields {
		value, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.NewStructuralMismatchError("line", "non-integer entry "+field)
		}
		values[i] = value
	}
	return values, nil
}

// formatIntArray renders a space-separated integer array.
func formatIntArray(values []int) string {
	fields := make([]string, len(values))
	for i, value := range values {
		fields[i] = strconv.Itoa(value)
	}
	return strings.Join(fields, " ")
}
