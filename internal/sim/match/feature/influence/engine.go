package influence

import (
	"math"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

// Engine recomputes the field once per tick. It owns two output buffers and
// a set of scratch buffers, all sized to the grid and reused across ticks.
//
// Stage order inside Compute is fixed: decay, accumulate, neutralize, floor,
// clamp. Reordering changes steady-state behavior.
type Engine struct {
	w, h int

	bufs [2]*Grid
	next int

	blue, red      []float64
	neutral        []float64
	floorB, floorR []float64

	stats Stats
}

func NewEngine(w, h int) *Engine {
	e := &Engine{}
	e.ensure(w, h)
	return e
}

func (e *Engine) ensure(w, h int) {
	if e.w == w && e.h == h && e.blue != nil {
		return
	}
	n := w * h
	e.w, e.h = w, h
	e.bufs = [2]*Grid{NewGrid(w, h), NewGrid(w, h)}
	e.blue = make([]float64, n)
	e.red = make([]float64, n)
	e.neutral = make([]float64, n)
	e.floorB = make([]float64, n)
	e.floorR = make([]float64, n)
}

func (e *Engine) LastStats() Stats { return e.stats }

// Compute derives the next field from prev without modifying prev. The
// returned grid stays valid until the Compute call after next.
func (e *Engine) Compute(prev *Grid, in Inputs, tu tuning.InfluenceTuning, dt float64) *Grid {
	if prev != nil {
		e.ensure(prev.W, prev.H)
	}
	out := e.bufs[e.next]
	if out == prev {
		e.next ^= 1
		out = e.bufs[e.next]
	}
	e.next ^= 1
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	e.stats = Stats{Units: len(in.Units), Statics: len(in.Statics)}

	e.decay(prev, out, tu, dt)

	for i := range e.blue {
		e.blue[i] = 0
		e.red[i] = 0
		e.floorB[i] = 0
		e.floorR[i] = 0
	}
	powers := unitPowers(in.Units, tu)
	contest := contestMultipliers(in.Units, powers, tu)

	for i, u := range in.Units {
		if powers[i] <= 0 {
			continue
		}
		if tu.GateUnits && saturated(prev, model.CellOf(u.Pos), u.Team, tu) {
			e.stats.GatedUnits++
			continue
		}
		e.spread(u.Pos, u.Team, powers[i]*contest[i], tu.InfluenceRadius)
	}
	for _, s := range in.Statics {
		if s.Power <= 0 || s.Team == model.Neutral {
			continue
		}
		if staticGated(s.Kind, tu) && saturated(prev, s.Cell, s.Team, tu) {
			e.stats.GatedStatics++
			continue
		}
		pos := s.Cell.Center()
		gate := math.Exp(-tu.StaticEnemyAlpha * enemyPressure(pos, s.Team, in.Units, powers, tu.ContestRadius))
		e.spread(pos, s.Team, s.Power*gate, tu.InfluenceRadius)
	}

	for i := range out.Scores {
		f := neutralization(e.blue[i], e.red[i], tu.NeutralLow, tu.NeutralHigh)
		e.neutral[i] = f
		out.Scores[i] += (e.blue[i] - e.red[i]) * f * tu.AccumulationRate * dt
	}

	e.floors(in, tu)
	for i := range out.Scores {
		net := e.floorB[i] - e.floorR[i]
		s := out.Scores[i]
		if net > 0 && s < net {
			s = net
		} else if net < 0 && s > net {
			s = net
		}
		out.Scores[i] = clamp(s, -tu.MaxAbsScore, tu.MaxAbsScore)
	}

	if prev != nil {
		out.Revision = prev.Revision + 1
	} else {
		out.Revision = 1
	}
	return out
}

func (e *Engine) decay(prev, out *Grid, tu tuning.InfluenceTuning, dt float64) {
	if prev == nil {
		for i := range out.Scores {
			out.Scores[i] = 0
		}
		return
	}
	for i, s := range prev.Scores {
		out.Scores[i] = Decay(s, tu, dt)
	}
}

// Decay applies one step of magnitude-dependent decay to a single score.
// Small residues snap to exactly zero; near the maximum an extra term keeps
// the field from saturating.
func Decay(s float64, tu tuning.InfluenceTuning, dt float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	m := math.Min(math.Abs(s)/tu.MaxAbsScore, 1)
	rate := tu.DecayRate + tu.LowMagnitudeDecayBoost*(1-m)*(1-m) + tu.HighMagnitudeDecayBoost*m*m
	f := 1 - rate*dt
	if f < 0 {
		f = 0
	}
	s *= f
	if math.Abs(s) < tu.DecayEpsilon {
		return 0
	}
	return s
}

// spread adds power/(d^2+1) to every cell within radius of pos.
func (e *Engine) spread(pos model.Vec2, team model.Team, power float64, radius int) {
	if power <= 0 {
		return
	}
	acc := e.blue
	if team == model.Red {
		acc = e.red
	}
	center := model.CellOf(pos)
	r2 := float64(radius*radius) + 0.5
	for r := center.R - radius; r <= center.R+radius; r++ {
		if r < 0 || r >= e.h {
			continue
		}
		for c := center.C - radius; c <= center.C+radius; c++ {
			if c < 0 || c >= e.w {
				continue
			}
			d2 := model.Dist2(pos, model.Cell{C: c, R: r}.Center())
			if d2 > r2 {
				continue
			}
			acc[r*e.w+c] += power / (d2 + 1)
		}
	}
}

func (e *Engine) floors(in Inputs, tu tuning.InfluenceTuning) {
	for _, u := range in.Units {
		if u.Health <= 0 {
			continue
		}
		e.bilinearFloor(u.Pos, u.Team, tu.UnitFloor)
		e.coreFloor(model.CellOf(u.Pos), u.Team, tu.CoreRadius, tu.CoreFloor)
	}
	for _, s := range in.Statics {
		if s.Team == model.Neutral || s.Power <= 0 {
			continue
		}
		floor := tu.CoreFloor
		if s.Kind == KindCity {
			floor = tu.CityCoreFloor
		}
		e.coreFloor(s.Cell, s.Team, tu.CoreRadius, floor)
	}
}

// bilinearFloor spreads a floor over the up-to-4 cells around the true
// position, weighted by proximity to each cell center.
func (e *Engine) bilinearFloor(pos model.Vec2, team model.Team, floor float64) {
	if floor <= 0 {
		return
	}
	px, py := pos.X-0.5, pos.Y-0.5
	c0, r0 := int(math.Floor(px)), int(math.Floor(py))
	fx, fy := px-float64(c0), py-float64(r0)
	corners := [4]struct {
		c, r int
		w    float64
	}{
		{c0, r0, (1 - fx) * (1 - fy)},
		{c0 + 1, r0, fx * (1 - fy)},
		{c0, r0 + 1, (1 - fx) * fy},
		{c0 + 1, r0 + 1, fx * fy},
	}
	for _, k := range corners {
		if k.w <= 0 || k.c < 0 || k.r < 0 || k.c >= e.w || k.r >= e.h {
			continue
		}
		e.demand(k.r*e.w+k.c, team, floor*k.w)
	}
}

func (e *Engine) coreFloor(center model.Cell, team model.Team, radius int, floor float64) {
	if floor <= 0 {
		return
	}
	for r := center.R - radius; r <= center.R+radius; r++ {
		if r < 0 || r >= e.h {
			continue
		}
		for c := center.C - radius; c <= center.C+radius; c++ {
			if c < 0 || c >= e.w {
				continue
			}
			e.demand(r*e.w+c, team, floor)
		}
	}
}

// demand records a floor request damped by the cell's neutralization factor
// squared, keeping the strongest request per team.
func (e *Engine) demand(i int, team model.Team, floor float64) {
	f := e.neutral[i]
	v := floor * f * f
	if team == model.Blue {
		if v > e.floorB[i] {
			e.floorB[i] = v
		}
		return
	}
	if v > e.floorR[i] {
		e.floorR[i] = v
	}
}

func unitPowers(units []UnitSource, tu tuning.InfluenceTuning) []float64 {
	out := make([]float64, len(units))
	for i, u := range units {
		if u.Health <= 0 || u.Team == model.Neutral {
			continue
		}
		out[i] = u.Health * tu.UnitPowerMultiplier * u.TypePower
	}
	return out
}

// contestMultipliers scales each unit by its local allied share of pressure,
// never below the configured floor.
func contestMultipliers(units []UnitSource, powers []float64, tu tuning.InfluenceTuning) []float64 {
	out := make([]float64, len(units))
	rr := tu.ContestRadius * tu.ContestRadius
	for i, u := range units {
		var allied, enemy float64
		for j, v := range units {
			if powers[j] <= 0 {
				continue
			}
			d2 := model.Dist2(u.Pos, v.Pos)
			if d2 > rr {
				continue
			}
			p := powers[j] / (d2 + 1)
			if v.Team == u.Team {
				allied += p
			} else {
				enemy += p
			}
		}
		ratio := 1.0
		if allied+enemy > 0 {
			ratio = allied / (allied + enemy)
		}
		out[i] = tu.ContestFloor + (1-tu.ContestFloor)*ratio
	}
	return out
}

func enemyPressure(pos model.Vec2, team model.Team, units []UnitSource, powers []float64, radius float64) float64 {
	rr := radius * radius
	var sum float64
	for i, u := range units {
		if powers[i] <= 0 || u.Team == team {
			continue
		}
		d2 := model.Dist2(pos, u.Pos)
		if d2 > rr {
			continue
		}
		sum += powers[i] / (d2 + 1)
	}
	return sum
}

func staticGated(k StaticKind, tu tuning.InfluenceTuning) bool {
	switch k {
	case KindCity:
		return tu.GateCities
	case KindBlockedSupply:
		return tu.GateBlockedSupply
	}
	return false
}

// saturated reports whether team already holds every cell of the core radius
// around c at or above the cap threshold.
func saturated(prev *Grid, c model.Cell, team model.Team, tu tuning.InfluenceTuning) bool {
	if prev == nil {
		return false
	}
	capAbs := tu.CapThreshold * tu.MaxAbsScore
	seen := false
	for r := c.R - tu.CoreRadius; r <= c.R+tu.CoreRadius; r++ {
		for col := c.C - tu.CoreRadius; col <= c.C+tu.CoreRadius; col++ {
			if !prev.In(col, r) {
				continue
			}
			seen = true
			if prev.At(col, r)*team.Sign() < capAbs {
				return false
			}
		}
	}
	return seen
}

// neutralization zeroes near-50/50 cells and fully admits clearly dominated
// ones. Cells without pressure are left alone.
func neutralization(blue, red, lo, hi float64) float64 {
	total := blue + red
	if total <= 0 {
		return 1
	}
	return smoothstep(lo, hi, math.Max(blue, red)/total)
}

func smoothstep(e0, e1, x float64) float64 {
	if e1 <= e0 {
		if x >= e1 {
			return 1
		}
		return 0
	}
	t := clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
