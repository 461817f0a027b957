// Package annotation assembles merged Sentinel-1 annotation documents
// (product, calibration, noise, RFI) from the per-burst annotations of
// overlapping source SLCs. The merge engine deduplicates repeating metadata
// lists at the seams, renumbers line-indexed entries into the output
// coordinate space, and windows the result to the group's sensing period.
package annotation

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/asfadmin/burst2safe/pkg/burstid"
	"github.com/asfadmin/burst2safe/pkg/errors"
)

// TimeWindow bounds a merge to one sensing period.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// LineBounds bounds a merge to a range of output lines, inclusive.
type LineBounds struct {
	First int
	Last  int
}

// timeFieldCandidates is the priority list of known timestamp field names
// checked on the first subelement. replicaInformationList nests its timestamp
// inside the referenceReplica child rather than on the subelement directly.
var timeFieldCandidates = []string{"azimuthTime", "time"}

// ListMerger merges one repeating metadata list (e.g. a calibration vector
// list) across the source SLCs contributing to an output product.
type ListMerger struct {
	inputs     []*etree.Element
	startLine  int
	slcLengths []int

	name           string
	subelementName string
	timeField      string
	hasLine        bool
}

// NewListMerger validates the source lists and determines the shared
// subelement tag and timestamp field.
//
// All sources must use the same element tag and a single subelement tag, and
// every source must contain at least one subelement. slcLengths holds the
// total line length of the source SLC behind each input, used to shift
// line-indexed entries into a common coordinate space.
func NewListMerger(inputs []*etree.Element, startLine int, slcLengths []int) (*ListMerger, error) {
	if len(inputs) == 0 {
		return nil, errors.NewStructuralMismatchError("", "no source lists provided")
	}
	name := inputs[0].Tag

	var all []*etree.Element
	for _, input := range inputs {
		children := input.ChildElements()
		if len(children) == 0 {
			return nil, errors.NewStructuralMismatchError(name, "source list contains no elements")
		}
		all = append(all, children...)
	}

	subelementName := all[0].Tag
	for _, elem := range all {
		if elem.Tag != subelementName {
			return nil, errors.NewStructuralMismatchError(name,
				fmt.Sprintf("elements must contain only one type of subelement, found %s and %s", subelementName, elem.Tag))
		}
	}

	timeField, err := detectTimeField(name, all[0])
	if err != nil {
		return nil, err
	}

	return &ListMerger{
		inputs:         inputs,
		startLine:      startLine,
		slcLengths:     slcLengths,
		name:           name,
		subelementName: subelementName,
		timeField:      timeField,
		hasLine:        all[0].FindElement("line") != nil,
	}, nil
}

// Name returns the shared element tag of the source lists.
func (m *ListMerger) Name() string { return m.name }

// HasLine reports whether the list's entries are line-indexed.
func (m *ListMerger) HasLine() bool { return m.hasLine }

// detectTimeField resolves the timestamp field of a list by name lookup on
// its first subelement.
func detectTimeField(listName string, first *etree.Element) (string, error) {
	if listName == "replicaInformationList" {
		return "referenceReplica/azimuthTime", nil
	}
	for _, candidate := range timeFieldCandidates {
		if first.FindElement(candidate) != nil {
			return candidate, nil
		}
	}
	return "", errors.NewStructuralMismatchError(listName, "no time field found in element")
}

// elementTime parses the timestamp field of one subelement.
func (m *ListMerger) elementTime(elem *etree.Element) (time.Time, error) {
	field := elem.FindElement(m.timeField)
	if field == nil {
		return time.Time{}, errors.NewStructuralMismatchError(m.name,
			fmt.Sprintf("element is missing time field %s", m.timeField))
	}
	return burstid.ParseTime(field.Text())
}

// sortedInputs returns the source lists ordered by each source's own earliest
// subelement timestamp. Callers are not trusted to pass sources in temporal
// order.
func (m *ListMerger) sortedInputs() ([]*etree.Element, []int, error) {
	type keyed struct {
		input   *etree.Element
		length  int
		started time.Time
	}
	keys := make([]keyed, len(m.inputs))
	for i, input := range m.inputs {
		earliest := time.Time{}
		for j, elem := range input.ChildElements() {
			t, err := m.elementTime(elem)
			if err != nil {
				return nil, nil, err
			}
			if j == 0 || t.Before(earliest) {
				earliest = t
			}
		}
		length := 0
		if i < len(m.slcLengths) {
			length = m.slcLengths[i]
		}
		keys[i] = keyed{input: input, length: length, started: earliest}
	}
	sort.SliceStable(keys, func(a, b int) bool { return keys[a].started.Before(keys[b].started) })

	inputs := make([]*etree.Element, len(keys))
	lengths := make([]int, len(keys))
	for i, k := range keys {
		inputs[i] = k.input
		lengths[i] = k.length
	}
	return inputs, lengths, nil
}

// UniqueElements returns copies of all source elements with seam duplicates
// removed and line numbers shifted into the common coordinate space.
//
// The first (earliest) source is kept verbatim. From each later source, only
// elements whose timestamp is strictly later than the latest timestamp
// already kept survive; the later source supersedes the earlier one from the
// first strictly-newer timestamp onward. The high-water mark is the maximum
// timestamp among elements just kept, not simply the source's last element,
// since a later source's entries may interleave.
func (m *ListMerger) UniqueElements() ([]*etree.Element, error) {
	inputs, lengths, err := m.sortedInputs()
	if err != nil {
		return nil, err
	}

	var uniques []*etree.Element
	var lastTime time.Time
	for _, elem := range inputs[0].ChildElements() {
		t, err := m.elementTime(elem)
		if err != nil {
			return nil, err
		}
		if t.After(lastTime) {
			lastTime = t
		}
		uniques = append(uniques, elem.Copy())
	}

	lineOffset := 0
	for i := 1; i < len(inputs); i++ {
		lineOffset += lengths[i-1]

		maxKept := time.Time{}
		for _, elem := range inputs[i].ChildElements() {
			t, err := m.elementTime(elem)
			if err != nil {
				return nil, err
			}
			if !t.After(lastTime) {
				continue
			}
			kept := elem.Copy()
			if m.hasLine {
				if err := shiftLine(kept, lineOffset); err != nil {
					return nil, err
				}
			}
			if t.After(maxKept) {
				maxKept = t
			}
			uniques = append(uniques, kept)
		}
		if !maxKept.IsZero() {
			lastTime = maxKept
		}
	}
	return uniques, nil
}

// Merge produces the final container element: deduplicated, windowed to
// [window.Start − buffer, window.End + buffer] (exclusive bounds), line
// numbers re-expressed relative to the merger's start line, and optionally
// filtered to lineBounds (inclusive). The count attribute equals the number
// of children.
func (m *ListMerger) Merge(window TimeWindow, buffer time.Duration, lineBounds *LineBounds) (*etree.Element, error) {
	if lineBounds != nil && !m.hasLine {
		return nil, errors.NewUnsupportedConfigurationError(m.name,
			"line bounds cannot be applied to elements without line numbers")
	}

	elements, err := m.UniqueElements()
	if err != nil {
		return nil, err
	}

	minBound := window.Start.Add(-buffer)
	maxBound := window.End.Add(buffer)

	var filtered []*etree.Element
	for _, elem := range elements {
		t, err := m.elementTime(elem)
		if err != nil {
			return nil, err
		}
		if t.After(minBound) && t.Before(maxBound) {
			filtered = append(filtered, elem)
		}
	}

	if m.hasLine {
		for _, elem := range filtered {
			if err := shiftLine(elem, -m.startLine); err != nil {
				return nil, err
			}
		}
	}

	if lineBounds != nil {
		kept := filtered[:0]
		for _, elem := range filtered {
			line, err := lineNumber(elem)
			if err != nil {
				return nil, err
			}
			if line >= lineBounds.First && line <= lineBounds.Last {
				kept = append(kept, elem)
			}
		}
		filtered = kept
	}

	merged := etree.NewElement(m.name)
	for _, elem := range filtered {
		merged.AddChild(elem)
	}
	merged.CreateAttr("count", strconv.Itoa(len(filtered)))
	return merged, nil
}

// lineNumber parses the line field of a subelement.
func lineNumber(elem *etree.Element) (int, error) {
	lineElem := elem.FindElement("line")
	if lineElem == nil {
		return 0, errors.NewStructuralMismatchError(elem.Tag, "element is missing line field")
	}
	line, err := strconv.Atoi(lineElem.Text())
	if err != nil {
		return 0, fmt.Errorf("parsing line number: %w", err)
	}
	return line, nil
}

// shiftLine adds delta to a subelement's line field.
func shiftLine(elem *etree.Element, delta int) error {
	line, err := lineNumber(elem)
	if err != nil {
		return err
	}
	elem.FindElement("line").SetText(strconv.Itoa(line + delta))
	return nil
}
