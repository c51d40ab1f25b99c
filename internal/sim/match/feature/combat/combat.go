// Package combat resolves facing-gated contact engagements.
package combat

import (
	"math"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/morale"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

type Casualty struct {
	ID   string     `json:"id"`
	Team model.Team `json:"team"`
	Type string     `json:"type"`
	Cell model.Cell `json:"cell"`
}

type Result struct {
	Engagements int
	Attackers   int
	Damage      float64
	Killed      []Casualty
}

// Step rebuilds the engagement graph, stages damage for every attacking side,
// applies it simultaneously and removes the dead.
func Step(a *model.Arena, tu *tuning.Tuning, dt float64) Result {
	var res Result
	ct := tu.Combat
	units := a.Live()

	a.ClearEngagements()
	engaged := make([]bool, a.Cap())
	contact2 := ct.ContactDistance * ct.ContactDistance
	for i, x := range units {
		x.Attacking = false
		for _, y := range units[i+1:] {
			if x.Team == y.Team {
				continue
			}
			if model.Dist2(x.Pos, y.Pos) > contact2 {
				continue
			}
			a.Engage(x.Slot, y.Slot)
			engaged[x.Slot] = true
			engaged[y.Slot] = true
			res.Engagements++
		}
	}

	for _, u := range units {
		switch {
		case !engaged[u.Slot]:
			u.CombatPause = 0
		case !u.WasEngaged:
			u.CombatPause = ct.EngageGrace
		default:
			u.CombatPause = math.Max(0, u.CombatPause-dt)
		}
		u.WasEngaged = engaged[u.Slot]
	}

	staged := make([]float64, a.Cap())
	tol := model.Deg(ct.FacingToleranceDeg)
	for _, att := range units {
		if att.CombatPause > 0 {
			continue
		}
		for _, ts := range a.Engaged(att.Slot) {
			tgt := a.Get(int(ts))
			if !model.Facing(att.Rotation, model.Heading(att.Pos, tgt.Pos), tol) {
				continue
			}
			d := Damage(att, tgt, tu, dt)
			staged[tgt.Slot] += d
			res.Damage += d
			att.Attacking = true
		}
		if att.Attacking {
			res.Attackers++
		}
	}

	for _, u := range units {
		if staged[u.Slot] > 0 {
			u.Health = math.Max(0, u.Health-staged[u.Slot])
		}
	}
	for _, u := range units {
		if u.Health > 0 {
			continue
		}
		res.Killed = append(res.Killed, Casualty{ID: u.ID, Team: u.Team, Type: u.Type, Cell: u.Cell()})
		a.Remove(u.Slot)
	}

	turn := model.Deg(ct.TurnRateDegPerSec) * dt
	for _, u := range units {
		if !u.Alive() || u.Slot < 0 {
			continue
		}
		edges := a.Engaged(u.Slot)
		if len(edges) == 0 {
			continue
		}
		first := a.Get(int(edges[0]))
		u.Rotation = model.TurnToward(u.Rotation, model.Heading(u.Pos, first.Pos), turn)
	}
	return res
}

// Damage is what att deals to tgt over dt, scaled by the morale advantage
// difference and both unit types. It never goes negative.
func Damage(att, tgt *model.Unit, tu *tuning.Tuning, dt float64) float64 {
	ct := tu.Combat
	advA := morale.Advantage(att.MoraleScore, tu.Morale)
	advT := morale.Advantage(tgt.MoraleScore, tu.Morale)
	base := ct.BaseDPS * dt * (1 + ct.MoraleDamageScale*(advA-advT)) * tu.Type(att.Type).Damage
	mit := math.Max(0, 1-ct.MoraleMitigationScale*(advT-advA)) * tu.Type(tgt.Type).Mitigation
	return math.Max(0, base*mit)
}
