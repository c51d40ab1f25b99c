package supply

import (
	"slices"
	"sort"
)

// State is a deep copy of every supply accumulator, used by snapshots and
// debug accessors.
type State struct {
	Ticks     uint64     `json:"ticks"`
	Legacy    bool       `json:"legacy"`
	Cities    []City     `json:"cities"`
	FarmLinks []FarmLink `json:"farm_links"`
	Depots    []Depot    `json:"depots"`
	UnitLines []UnitLine `json:"unit_lines"`
}

func (l Line) clone() Line {
	l.Path = slices.Clone(l.Path)
	return l
}

func (s *System) Export() State {
	st := State{Ticks: s.ticks, Legacy: s.legacy}
	for _, c := range s.cities {
		cc := *c
		cc.Zone = slices.Clone(c.Zone)
		st.Cities = append(st.Cities, cc)
	}
	for _, l := range s.links {
		ll := *l
		ll.Line = l.Line.clone()
		st.FarmLinks = append(st.FarmLinks, ll)
	}
	for _, d := range s.depots {
		dd := *d
		dd.Line = d.Line.clone()
		st.Depots = append(st.Depots, dd)
	}
	for _, l := range s.unitLines {
		ll := *l
		ll.Line = l.Line.clone()
		st.UnitLines = append(st.UnitLines, ll)
	}
	sort.Slice(st.UnitLines, func(i, j int) bool { return st.UnitLines[i].UnitID < st.UnitLines[j].UnitID })
	return st
}

// Import replaces the system's state wholesale.
func Import(st State) *System {
	s := &System{
		byID:      map[string]*City{},
		unitLines: map[string]*UnitLine{},
		legacy:    st.Legacy,
		ticks:     st.Ticks,
	}
	for _, c := range st.Cities {
		cc := c
		cc.Zone = slices.Clone(c.Zone)
		s.cities = append(s.cities, &cc)
		s.byID[cc.ID] = &cc
	}
	sort.Slice(s.cities, func(i, j int) bool { return s.cities[i].ID < s.cities[j].ID })
	for _, l := range st.FarmLinks {
		ll := l
		ll.Line = l.Line.clone()
		s.links = append(s.links, &ll)
	}
	for _, d := range st.Depots {
		dd := d
		dd.Line = d.Line.clone()
		s.depots = append(s.depots, &dd)
	}
	for _, l := range st.UnitLines {
		ll := l
		ll.Line = l.Line.clone()
		s.unitLines[ll.UnitID] = &ll
	}
	return s
}
