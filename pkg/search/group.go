package search

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/asfadmin/burst2safe/pkg/errors"
)

var validPolarizations = map[string]bool{"VV": true, "VH": true, "HV": true, "HH": true}

var validSwaths = map[string][]string{
	"IW": {"IW1", "IW2", "IW3"},
	"EW": {"EW1", "EW2", "EW3", "EW4", "EW5"},
}

// GroupOptions describe a burst group search.
type GroupOptions struct {
	// Orbit is the absolute orbit number, or the relative orbit number when
	// UseRelativeOrbit is set.
	Orbit     int
	Footprint string // WKT geometry the bursts must intersect

	Polarizations []string // default VV
	Swaths        []string // default all swaths of the mode
	Mode          string   // IW or EW, default IW
	MinBursts     int      // minimum bursts per swath, padded by searching outwards

	UseRelativeOrbit bool
	StartDate        time.Time // required with UseRelativeOrbit
	EndDate          time.Time
}

// validate applies defaults and rejects inconsistent options.
func (o *GroupOptions) validate() error {
	if len(o.Polarizations) == 0 {
		o.Polarizations = []string{"VV"}
	}
	for _, pol := range o.Polarizations {
		if !validPolarizations[pol] {
			return errors.NewSearchError(0, "invalid polarization "+pol, nil)
		}
	}

	if o.Mode == "" {
		o.Mode = "IW"
	}
	allowed, ok := validSwaths[o.Mode]
	if !ok {
		return errors.NewSearchError(0, "invalid mode "+o.Mode+", must be IW or EW", nil)
	}
	if len(o.Swaths) == 0 {
		o.Swaths = allowed
	} else {
		allowedSet := make(map[string]bool, len(allowed))
		for _, swath := range allowed {
			allowedSet[swath] = true
		}
		for _, swath := range o.Swaths {
			if !allowedSet[swath] {
				return errors.NewSearchError(0, "invalid swath "+swath+" for mode "+o.Mode, nil)
			}
		}
	}

	if o.MinBursts < 1 {
		o.MinBursts = 1
	}
	if o.UseRelativeOrbit && (o.StartDate.IsZero() || o.EndDate.IsZero()) {
		return errors.NewSearchError(0, "start and end dates are required with a relative orbit number", nil)
	}
	return nil
}

// FindGroup finds a burst group by orbit and footprint, split per
// polarization and swath, padding each subset to the minimum burst count.
func (c *Client) FindGroup(ctx context.Context, opts GroupOptions) ([]Product, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("dataset", datasetSLCBurst)
	params.Set("intersectsWith", opts.Footprint)
	params.Set("beamMode", opts.Mode)
	if opts.UseRelativeOrbit {
		params.Set("relativeOrbit", strconv.Itoa(opts.Orbit))
		params.Set("start", opts.StartDate.Format("2006-01-02")+"T00:00:00Z")
		params.Set("end", opts.EndDate.Format("2006-01-02")+"T23:59:59Z")
	} else {
		params.Set("absoluteOrbit", strconv.Itoa(opts.Orbit))
	}
	results, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}

	// With a relative orbit the results may span several passes, and each
	// absolute orbit forms its own group.
	orbits := []int{0}
	if opts.UseRelativeOrbit {
		orbitSet := make(map[int]bool)
		for _, result := range results {
			orbitSet[result.Properties.Orbit] = true
		}
		orbits = orbits[:0]
		for orbit := range orbitSet {
			orbits = append(orbits, orbit)
		}
		sort.Ints(orbits)
	}

	var group []Product
	for _, pol := range opts.Polarizations {
		for _, swath := range opts.Swaths {
			for _, orbit := range orbits {
				subset, err := c.burstSubset(ctx, results, pol, swath, orbit, opts.MinBursts)
				if err != nil {
					return nil, err
				}
				group = append(group, subset...)
			}
		}
	}
	return group, nil
}

// burstSubset filters results to one polarization/swath (and optionally
// absolute orbit), padding with surrounding bursts when below minBursts.
func (c *Client) burstSubset(ctx context.Context, results []Product, pol, swath string, orbit, minBursts int) ([]Product, error) {
	var subset []Product
	var params []string
	if orbit != 0 {
		params = append(params, fmt.Sprintf("orbit %d", orbit))
	}
	if swath != "" {
		params = append(params, "swath "+swath)
	}
	params = append(params, "polarization "+pol)
	description := strings.Join(params, ", ")

	for _, result := range results {
		if orbit != 0 && result.Properties.Orbit != orbit {
			continue
		}
		if swath != "" && result.Properties.Burst.Subswath != swath {
			continue
		}
		if result.Properties.Polarization != pol {
			continue
		}
		subset = append(subset, result)
	}
	if len(subset) == 0 {
		return nil, errors.NewSearchError(0,
			"no bursts found for "+description+", check search parameters on Vertex", nil)
	}

	if len(subset) < minBursts {
		padded, err := c.addSurroundingBursts(ctx, subset, minBursts)
		if err != nil {
			return nil, err
		}
		subset = padded
	}
	if len(subset) < minBursts {
		return nil, errors.NewSearchError(0,
			fmt.Sprintf("less than %d bursts found for %s, check search parameters on Vertex",
				minBursts, description), nil)
	}
	return subset, nil
}

// addSurroundingBursts extends a subset symmetrically along track until it
// holds minBursts bursts, re-searching by full burst ID.
func (c *Client) addSurroundingBursts(ctx context.Context, subset []Product, minBursts int) ([]Product, error) {
	first := subset[0].Properties
	idParts := strings.Split(first.Burst.FullBurstID, "_")
	if len(idParts) != 3 {
		return nil, errors.NewSearchError(0, "unexpected full burst ID "+first.Burst.FullBurstID, nil)
	}
	relativeOrbit, swath := idParts[0], idParts[2]

	minID, maxID := first.Burst.RelativeBurstID, first.Burst.RelativeBurstID
	for _, product := range subset {
		id := product.Properties.Burst.RelativeBurstID
		if id < minID {
			minID = id
		}
		if id > maxID {
			maxID = id
		}
	}
	extra := (minBursts - (maxID - minID + 1)) / 2
	minID -= extra
	maxID += extra
	if maxID-minID+1 != minBursts {
		maxID++
	}

	fullIDs := make([]string, 0, maxID-minID+1)
	for id := minID; id <= maxID; id++ {
		fullIDs = append(fullIDs, fmt.Sprintf("%s_%06d_%s", relativeOrbit, id, swath))
	}

	params := url.Values{}
	params.Set("dataset", datasetSLCBurst)
	params.Set("absoluteOrbit", strconv.Itoa(first.Orbit))
	params.Set("polarization", first.Polarization)
	params.Set("fullBurstID", strings.Join(fullIDs, ","))
	return c.search(ctx, params)
}
