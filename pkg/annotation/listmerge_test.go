package annotation

import (
	"strconv"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asfadmin/burst2safe/pkg/errors"
)

// listEntry describes one synthetic subelement. A negative line means no line
// field.
type listEntry struct {
	time string
	line int
}

func makeList(name, subName string, entries ...listEntry) *etree.Element {
	list := etree.NewElement(name)
	for _, e := range entries {
		sub := list.CreateElement(subName)
		sub.CreateElement("azimuthTime").SetText(e.time)
		if e.line >= 0 {
			sub.CreateElement("line").SetText(strconv.Itoa(e.line))
		}
	}
	return list
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02T15:04:05.000000", value)
	require.NoError(t, err)
	return parsed
}

func childTimes(t *testing.T, list *etree.Element) []string {
	t.Helper()
	var times []string
	for _, child := range list.ChildElements() {
		field := child.FindElement("azimuthTime")
		require.NotNil(t, field)
		times = append(times, field.Text())
	}
	return times
}

func childLines(t *testing.T, elements []*etree.Element) []int {
	t.Helper()
	var lines []int
	for _, elem := range elements {
		line, err := lineNumber(elem)
		require.NoError(t, err)
		lines = append(lines, line)
	}
	return lines
}

func TestNewListMergerValidation(t *testing.T) {
	t.Run("no sources", func(t *testing.T) {
		_, err := NewListMerger(nil, 0, nil)
		assert.True(t, errors.IsStructuralMismatch(err))
	})

	t.Run("empty source list", func(t *testing.T) {
		empty := etree.NewElement("orbitList")
		_, err := NewListMerger([]*etree.Element{empty}, 0, nil)
		assert.True(t, errors.IsStructuralMismatch(err))
	})

	t.Run("mixed subelement tags", func(t *testing.T) {
		list := etree.NewElement("orbitList")
		list.CreateElement("orbit").CreateElement("azimuthTime").SetText("2024-01-01T00:00:00.000000")
		list.CreateElement("attitude").CreateElement("azimuthTime").SetText("2024-01-01T00:00:01.000000")
		_, err := NewListMerger([]*etree.Element{list}, 0, nil)
		assert.True(t, errors.IsStructuralMismatch(err))
	})

	t.Run("no time field", func(t *testing.T) {
		list := etree.NewElement("orbitList")
		list.CreateElement("orbit").CreateElement("position").SetText("1")
		_, err := NewListMerger([]*etree.Element{list}, 0, nil)
		assert.True(t, errors.IsStructuralMismatch(err))
	})

	t.Run("falls back to time field", func(t *testing.T) {
		list := etree.NewElement("orbitList")
		list.CreateElement("orbit").CreateElement("time").SetText("2024-01-01T00:00:00.000000")
		merger, err := NewListMerger([]*etree.Element{list}, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, "time", merger.timeField)
	})
}

func TestUniqueElementsDropsSeamDuplicates(t *testing.T) {
	first := makeList("calibrationVectorList", "calibrationVector",
		listEntry{"2024-01-01T00:00:00.000000", 0},
		listEntry{"2024-01-01T00:00:02.000000", 1000},
		listEntry{"2024-01-01T00:00:04.000000", 2000},
	)
	// The second source repeats the last two entries of the first at its own
	// local line numbers.
	second := makeList("calibrationVectorList", "calibrationVector",
		listEntry{"2024-01-01T00:00:02.000000", 0},
		listEntry{"2024-01-01T00:00:04.000000", 1000},
		listEntry{"2024-01-01T00:00:06.000000", 2000},
	)

	merger, err := NewListMerger([]*etree.Element{first, second}, 0, []int{3000, 3000})
	require.NoError(t, err)

	uniques, err := merger.UniqueElements()
	require.NoError(t, err)
	require.Len(t, uniques, 4)

	// Kept entries from the second source are shifted by the first source's
	// SLC length.
	assert.Equal(t, []int{0, 1000, 2000, 5000}, childLines(t, uniques))
}

func TestUniqueElementsCumulativeOffsets(t *testing.T) {
	lists := []*etree.Element{
		makeList("l", "e", listEntry{"2024-01-01T00:00:00.000000", 0}),
		makeList("l", "e", listEntry{"2024-01-01T00:00:02.000000", 0}),
		makeList("l", "e", listEntry{"2024-01-01T00:00:04.000000", 0}),
	}
	merger, err := NewListMerger(lists, 0, []int{1500, 1500, 1500})
	require.NoError(t, err)

	uniques, err := merger.UniqueElements()
	require.NoError(t, err)
	require.Len(t, uniques, 3)

	// The third source's offset is the sum of both earlier SLC lengths.
	assert.Equal(t, []int{0, 1500, 3000}, childLines(t, uniques))
}

func TestUniqueElementsSortsSourcesByTime(t *testing.T) {
	earlier := makeList("l", "e",
		listEntry{"2024-01-01T00:00:00.000000", -1},
		listEntry{"2024-01-01T00:00:02.000000", -1},
	)
	later := makeList("l", "e",
		listEntry{"2024-01-01T00:00:02.000000", -1},
		listEntry{"2024-01-01T00:00:04.000000", -1},
	)

	// Sources passed in reverse temporal order must still merge correctly.
	merger, err := NewListMerger([]*etree.Element{later, earlier}, 0, []int{1500, 1500})
	require.NoError(t, err)

	uniques, err := merger.UniqueElements()
	require.NoError(t, err)
	require.Len(t, uniques, 3)

	times := make([]string, len(uniques))
	for i, elem := range uniques {
		times[i] = elem.FindElement("azimuthTime").Text()
	}
	assert.Equal(t, []string{
		"2024-01-01T00:00:00.000000",
		"2024-01-01T00:00:02.000000",
		"2024-01-01T00:00:04.000000",
	}, times)
}

func TestMergeWindowBoundsAreExclusive(t *testing.T) {
	list := makeList("dcEstimateList", "dcEstimate",
		listEntry{"2024-01-01T00:00:00.000000", -1},
		listEntry{"2024-01-01T00:00:05.000000", -1},
		listEntry{"2024-01-01T00:00:10.000000", -1},
	)
	merger, err := NewListMerger([]*etree.Element{list}, 0, []int{1500})
	require.NoError(t, err)

	window := TimeWindow{
		Start: mustTime(t, "2024-01-01T00:00:03.000000"),
		End:   mustTime(t, "2024-01-01T00:00:07.000000"),
	}
	// Buffered bounds land exactly on the first and last entries, which must
	// be excluded.
	merged, err := merger.Merge(window, 3*time.Second, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-01T00:00:05.000000"}, childTimes(t, merged))
	assert.Equal(t, "1", merged.SelectAttrValue("count", ""))
}

func TestMergeRenumbersLines(t *testing.T) {
	first := makeList("geolocationGridPointList", "geolocationGridPoint",
		listEntry{"2024-01-01T00:00:00.000000", 12000},
		listEntry{"2024-01-01T00:00:02.000000", 13500},
	)
	second := makeList("geolocationGridPointList", "geolocationGridPoint",
		listEntry{"2024-01-01T00:00:04.000000", 0},
	)

	startLine := 12000
	merger, err := NewListMerger([]*etree.Element{first, second}, startLine, []int{15000, 15000})
	require.NoError(t, err)

	window := TimeWindow{
		Start: mustTime(t, "2024-01-01T00:00:00.000000"),
		End:   mustTime(t, "2024-01-01T00:00:04.000000"),
	}
	merged, err := merger.Merge(window, 3*time.Second, nil)
	require.NoError(t, err)
	require.Len(t, merged.ChildElements(), 3)

	// Second source's entry: 0 + 15000 (offset) - 12000 (start line) = 3000.
	assert.Equal(t, []int{0, 1500, 3000}, childLines(t, merged.ChildElements()))
}

func TestMergeLineBounds(t *testing.T) {
	list := makeList("geolocationGridPointList", "geolocationGridPoint",
		listEntry{"2024-01-01T00:00:00.000000", 0},
		listEntry{"2024-01-01T00:00:01.000000", 1500},
		listEntry{"2024-01-01T00:00:02.000000", 3000},
	)
	merger, err := NewListMerger([]*etree.Element{list}, 0, []int{4500})
	require.NoError(t, err)

	window := TimeWindow{
		Start: mustTime(t, "2024-01-01T00:00:00.000000"),
		End:   mustTime(t, "2024-01-01T00:00:02.000000"),
	}
	merged, err := merger.Merge(window, 3*time.Second, &LineBounds{First: 0, Last: 1500})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1500}, childLines(t, merged.ChildElements()))
	assert.Equal(t, "2", merged.SelectAttrValue("count", ""))
}

func TestMergeLineBoundsRequireLineField(t *testing.T) {
	list := makeList("dcEstimateList", "dcEstimate",
		listEntry{"2024-01-01T00:00:00.000000", -1},
	)
	merger, err := NewListMerger([]*etree.Element{list}, 0, []int{1500})
	require.NoError(t, err)

	window := TimeWindow{
		Start: mustTime(t, "2024-01-01T00:00:00.000000"),
		End:   mustTime(t, "2024-01-01T00:00:01.000000"),
	}
	_, err = merger.Merge(window, time.Second, &LineBounds{First: 0, Last: 10})
	assert.True(t, errors.IsUnsupportedConfiguration(err))
}

func TestReplicaListTimeField(t *testing.T) {
	list := etree.NewElement("replicaInformationList")
	replica := list.CreateElement("replicaInformation")
	reference := replica.CreateElement("referenceReplica")
	reference.CreateElement("azimuthTime").SetText("2024-01-01T00:00:00.000000")

	merger, err := NewListMerger([]*etree.Element{list}, 0, []int{1500})
	require.NoError(t, err)
	assert.Equal(t, "referenceReplica/azimuthTime", merger.timeField)

	uniques, err := merger.UniqueElements()
	require.NoError(t, err)
	assert.Len(t, uniques, 1)
}
