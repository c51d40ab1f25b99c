package match

import (
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/influence"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/morale"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/supply"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
)

// Accessors in this file read loop-owned state. Call them from the goroutine
// driving Advance, or while Run is not active. Other goroutines use Latest.

// Outcome counts units and cities per team. Winner is set once one side has
// neither units nor cities left while the other still has something.
type Outcome struct {
	BlueUnits  int    `json:"blue_units"`
	RedUnits   int    `json:"red_units"`
	BlueCities int    `json:"blue_cities"`
	RedCities  int    `json:"red_cities"`
	Winner     string `json:"winner,omitempty"`
}

func (m *Match) computeOutcome() Outcome {
	var o Outcome
	for _, u := range m.arena.Live() {
		switch u.Team {
		case model.Blue:
			o.BlueUnits++
		case model.Red:
			o.RedUnits++
		}
	}
	for _, c := range m.supply.Cities() {
		switch c.Owner {
		case model.Blue:
			o.BlueCities++
		case model.Red:
			o.RedCities++
		}
	}
	blue := o.BlueUnits+o.BlueCities > 0
	red := o.RedUnits+o.RedCities > 0
	switch {
	case blue && !red:
		o.Winner = model.Blue.String()
	case red && !blue:
		o.Winner = model.Red.String()
	}
	return o
}

func (m *Match) Outcome() Outcome { return m.outcome }

// InfluenceSnapshot returns a copy of the current field.
func (m *Match) InfluenceSnapshot() *influence.Grid { return m.field.Clone() }

// SupplyLine returns a copy of a unit's supply line.
func (m *Match) SupplyLine(unitID string) (supply.Line, bool) {
	l := m.supply.UnitLine(unitID)
	if l == nil {
		return supply.Line{}, false
	}
	out := l.Line
	out.Path = append([]model.Cell(nil), l.Path...)
	return out, true
}

func (m *Match) SupplyState() supply.State { return m.supply.Export() }

// MoraleBreakdown returns the last morale evaluation for a unit.
func (m *Match) MoraleBreakdown(unitID string) (morale.Breakdown, bool) {
	b, ok := m.morale[unitID]
	return b, ok
}

// Units returns copies of the live units in slot order.
func (m *Match) Units() []model.Unit {
	live := m.arena.Live()
	out := make([]model.Unit, 0, len(live))
	for _, u := range live {
		out = append(out, *u)
	}
	return out
}

// Unit returns a copy of one live unit together with its movement plan.
func (m *Match) Unit(id string) (model.Unit, *model.MovementState, bool) {
	u := m.arena.ByID(id)
	if u == nil {
		return model.Unit{}, nil, false
	}
	var mv *model.MovementState
	if cur := m.arena.Move(u.Slot); cur != nil {
		cp := *cur
		cp.Queue = append([]model.Cell(nil), cur.Queue...)
		mv = &cp
	}
	return *u, mv, true
}

// StateDigest hashes the full simulation state at the current tick boundary.
func (m *Match) StateDigest() string { return m.stateDigest() }
