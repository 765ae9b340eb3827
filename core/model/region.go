package model

import "sort"

// Region identifies a UK Grid Supply Point region. The names follow the
// regional breakdown used by the National Grid carbon intensity feeds.
type Region string

const (
	RegionScotland         Region = "scotland"
	RegionNorthScotland    Region = "north_scotland"
	RegionSouthScotland    Region = "south_scotland"
	RegionNorthEngland     Region = "north_england"
	RegionNorthEastEngland Region = "north_east_england"
	RegionNorthWestEngland Region = "north_west_england"
	RegionYorkshire        Region = "yorkshire"
	RegionWales            Region = "wales"
	RegionNorthWales       Region = "north_wales"
	RegionSouthWales       Region = "south_wales"
	RegionWestMidlands     Region = "west_midlands"
	RegionEastMidlands     Region = "east_midlands"
	RegionEastEngland      Region = "east_england"
	RegionLondon           Region = "london"
	RegionSouthEngland     Region = "south_england"
	RegionSouthEastEngland Region = "south_east_england"
	RegionSouthWestEngland Region = "south_west_england"
)

var regionSet = map[Region]struct{}{
	RegionScotland:         {},
	RegionNorthScotland:    {},
	RegionSouthScotland:    {},
	RegionNorthEngland:     {},
	RegionNorthEastEngland: {},
	RegionNorthWestEngland: {},
	RegionYorkshire:        {},
	RegionWales:            {},
	RegionNorthWales:       {},
	RegionSouthWales:       {},
	RegionWestMidlands:     {},
	RegionEastMidlands:     {},
	RegionEastEngland:      {},
	RegionLondon:           {},
	RegionSouthEngland:     {},
	RegionSouthEastEngland: {},
	RegionSouthWestEngland: {},
}

// Valid reports whether the region belongs to the known catalogue.
func (r Region) Valid() bool {
	_, ok := regionSet[r]
	return ok
}

func (r Region) String() string { return string(r) }

// AllRegions returns the full region catalogue in lexicographic order.
func AllRegions() []Region {
	out := make([]Region, 0, len(regionSet))
	for r := range regionSet {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
