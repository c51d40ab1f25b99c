// Package control decides city ownership from zone occupancy.
package control

import "github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"

type Zone struct {
	City  string
	Owner model.Team
	Cells []model.Cell
}

type Flip struct {
	City string     `json:"city"`
	From model.Team `json:"from"`
	To   model.Team `json:"to"`
}

// Resolve returns a flip for every zone held by exactly one team that is not
// already its owner. Mixed and empty zones keep their owner.
func Resolve(zones []Zone, units []*model.Unit) []Flip {
	var flips []Flip
	for _, z := range zones {
		present := Occupants(z.Cells, units)
		if len(present) != 1 {
			continue
		}
		var team model.Team
		for t := range present {
			team = t
		}
		if team == z.Owner || team == model.Neutral {
			continue
		}
		flips = append(flips, Flip{City: z.City, From: z.Owner, To: team})
	}
	return flips
}

// Occupants returns the set of teams with at least one living unit on cells.
func Occupants(cells []model.Cell, units []*model.Unit) map[model.Team]bool {
	in := make(map[model.Cell]bool, len(cells))
	for _, c := range cells {
		in[c] = true
	}
	present := map[model.Team]bool{}
	for _, u := range units {
		if u.Alive() && in[u.Cell()] {
			present[u.Team] = true
		}
	}
	return present
}
