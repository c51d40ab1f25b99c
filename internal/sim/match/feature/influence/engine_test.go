package influence

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

func defaults() tuning.InfluenceTuning {
	t := tuning.Defaults()
	return t.Influence
}

func unitAt(x, y float64, team model.Team) UnitSource {
	return UnitSource{Pos: model.Vec2{X: x, Y: y}, Team: team, Health: 100, TypePower: 1}
}

func TestDecayConvergesToZero(t *testing.T) {
	tu := defaults()
	rapid.Check(t, func(rt *rapid.T) {
		w := rapid.IntRange(1, 12).Draw(rt, "w")
		h := rapid.IntRange(1, 12).Draw(rt, "h")
		prev := NewGrid(w, h)
		for i := range prev.Scores {
			prev.Scores[i] = rapid.Float64Range(-tu.MaxAbsScore, tu.MaxAbsScore).Draw(rt, "s")
		}
		e := NewEngine(w, h)
		g := prev
		for tick := 0; tick < 2000; tick++ {
			g = e.Compute(g, Inputs{}, tu, 0.1)
		}
		for i, s := range g.Scores {
			if s != 0 {
				rt.Fatalf("cell %d did not converge: %v", i, s)
			}
		}
	})
}

func TestDecaySnapsNonFinite(t *testing.T) {
	tu := defaults()
	if got := Decay(math.NaN(), tu, 0.1); got != 0 {
		t.Fatalf("NaN should decay to 0, got %v", got)
	}
	if got := Decay(math.Inf(-1), tu, 0.1); got != 0 {
		t.Fatalf("-Inf should decay to 0, got %v", got)
	}
	if got := Decay(tu.DecayEpsilon/2, tu, 0); got != 0 {
		t.Fatalf("residue below epsilon should snap, got %v", got)
	}
}

func TestDecayFasterNearMaximum(t *testing.T) {
	tu := defaults()
	tu.LowMagnitudeDecayBoost = 0
	hi := Decay(tu.MaxAbsScore, tu, 0.1) / tu.MaxAbsScore
	mid := Decay(tu.MaxAbsScore/2, tu, 0.1) / (tu.MaxAbsScore / 2)
	if hi >= mid {
		t.Fatalf("expected stronger relative decay near max: hi=%v mid=%v", hi, mid)
	}
}

func TestComputeIsIdempotentWithoutElapsedTime(t *testing.T) {
	tu := defaults()
	rapid.Check(t, func(rt *rapid.T) {
		prev := NewGrid(10, 10)
		for i := range prev.Scores {
			prev.Scores[i] = rapid.Float64Range(-tu.MaxAbsScore, tu.MaxAbsScore).Draw(rt, "s")
		}
		n := rapid.IntRange(0, 6).Draw(rt, "units")
		var in Inputs
		for i := 0; i < n; i++ {
			team := model.Blue
			if rapid.Bool().Draw(rt, "red") {
				team = model.Red
			}
			in.Units = append(in.Units, unitAt(
				rapid.Float64Range(0, 10).Draw(rt, "x"),
				rapid.Float64Range(0, 10).Draw(rt, "y"),
				team,
			))
		}
		in.Statics = []StaticSource{{Cell: model.Cell{C: 2, R: 2}, Team: model.Blue, Power: 30, Kind: KindCity}}

		e := NewEngine(10, 10)
		first := e.Compute(prev, in, tu, 0).Clone()
		second := e.Compute(prev, in, tu, 0)
		if first.Revision != second.Revision {
			rt.Fatalf("revision differs: %d vs %d", first.Revision, second.Revision)
		}
		for i := range first.Scores {
			if first.Scores[i] != second.Scores[i] {
				rt.Fatalf("cell %d differs: %v vs %v", i, first.Scores[i], second.Scores[i])
			}
		}
	})
}

func TestComputeStaysWithinBounds(t *testing.T) {
	tu := defaults()
	tu.AccumulationRate = 50
	rapid.Check(t, func(rt *rapid.T) {
		e := NewEngine(8, 8)
		var in Inputs
		for i := 0; i < 5; i++ {
			team := model.Blue
			if i%2 == 1 {
				team = model.Red
			}
			u := unitAt(rapid.Float64Range(0, 8).Draw(rt, "x"), rapid.Float64Range(0, 8).Draw(rt, "y"), team)
			u.Health = rapid.Float64Range(0, 1000).Draw(rt, "hp")
			in.Units = append(in.Units, u)
		}
		g := NewGrid(8, 8)
		for tick := 0; tick < 20; tick++ {
			g = e.Compute(g, in, tu, 0.5)
			for i, s := range g.Scores {
				if s > tu.MaxAbsScore || s < -tu.MaxAbsScore || math.IsNaN(s) {
					rt.Fatalf("cell %d out of range: %v", i, s)
				}
			}
		}
	})
}

func TestComputeDoesNotMutatePrev(t *testing.T) {
	tu := defaults()
	prev := NewGrid(5, 5)
	prev.Scores[12] = 50
	e := NewEngine(5, 5)
	out := e.Compute(prev, Inputs{Units: []UnitSource{unitAt(0.5, 0.5, model.Red)}}, tu, 1)
	if prev.Scores[12] != 50 {
		t.Fatalf("prev mutated: %v", prev.Scores[12])
	}
	if out == prev {
		t.Fatalf("compute wrote into prev")
	}
	if out.Revision != prev.Revision+1 {
		t.Fatalf("revision not incremented: %d", out.Revision)
	}
}

func TestFloorGuaranteedAtUnitPosition(t *testing.T) {
	tu := defaults()
	tu.AccumulationRate = 0
	e := NewEngine(9, 9)
	g := e.Compute(NewGrid(9, 9), Inputs{Units: []UnitSource{unitAt(4.5, 4.5, model.Red)}}, tu, 0.1)
	if got := g.At(4, 4); got > -tu.UnitFloor+1e-9 {
		t.Fatalf("expected red floor at unit cell, got %v", got)
	}
	if got := g.At(3, 3); got > -tu.CoreFloor+1e-9 {
		t.Fatalf("expected core floor inside core radius, got %v", got)
	}
	if got := g.At(0, 0); got != 0 {
		t.Fatalf("far cell should stay untouched, got %v", got)
	}
}

func TestBilinearFloorFollowsTruePosition(t *testing.T) {
	tu := defaults()
	tu.AccumulationRate = 0
	tu.CoreFloor = 0
	e := NewEngine(6, 6)
	g := e.Compute(NewGrid(6, 6), Inputs{Units: []UnitSource{unitAt(2.75, 2.5, model.Blue)}}, tu, 0.1)
	left, right := g.At(2, 2), g.At(3, 2)
	if math.Abs(left-tu.UnitFloor*0.75) > 1e-9 || math.Abs(right-tu.UnitFloor*0.25) > 1e-9 {
		t.Fatalf("unexpected bilinear split: left=%v right=%v", left, right)
	}
}

func TestBalancedCellIsNeutralized(t *testing.T) {
	tu := defaults()
	e := NewEngine(13, 11)
	in := Inputs{Units: []UnitSource{unitAt(4.5, 5.5, model.Blue), unitAt(10.5, 5.5, model.Red)}}
	g := NewGrid(13, 11)
	for i := 0; i < 10; i++ {
		g = e.Compute(g, in, tu, 0.1)
	}
	if got := g.At(7, 5); got != 0 {
		t.Fatalf("contested midpoint should be neutral, got %v", got)
	}
	if g.At(4, 5) <= 0 || g.At(10, 5) >= 0 {
		t.Fatalf("unit cells should be dominated by their own team: blue=%v red=%v", g.At(4, 5), g.At(10, 5))
	}
}

func TestStaticSourceSuppressedByEnemyPressure(t *testing.T) {
	tu := defaults()
	tu.CityCoreFloor = 0
	tu.CoreFloor = 0
	tu.UnitFloor = 0
	tu.GateCities = false
	in := Inputs{
		Units:   []UnitSource{unitAt(1.5, 7.5, model.Red)},
		Statics: []StaticSource{{Cell: model.Cell{C: 4, R: 4}, Team: model.Blue, Power: 60, Kind: KindCity}},
	}
	tu.StaticEnemyAlpha = 0
	open := NewEngine(10, 10).Compute(NewGrid(10, 10), in, tu, 1).At(6, 2)
	tu.StaticEnemyAlpha = 0.5
	gated := NewEngine(10, 10).Compute(NewGrid(10, 10), in, tu, 1).At(6, 2)
	if !(open > gated) {
		t.Fatalf("enemy pressure should suppress city influence: open=%v gated=%v", open, gated)
	}
}

func TestSaturatedCityIsGated(t *testing.T) {
	tu := defaults()
	tu.GateCities = true
	prev := NewGrid(6, 6)
	for i := range prev.Scores {
		prev.Scores[i] = tu.MaxAbsScore
	}
	e := NewEngine(6, 6)
	e.Compute(prev, Inputs{Statics: []StaticSource{{Cell: model.Cell{C: 3, R: 3}, Team: model.Blue, Power: 60, Kind: KindCity}}}, tu, 0.1)
	if got := e.LastStats().GatedStatics; got != 1 {
		t.Fatalf("expected gated city, got %d", got)
	}
	tu.GateCities = false
	e.Compute(prev, Inputs{Statics: []StaticSource{{Cell: model.Cell{C: 3, R: 3}, Team: model.Blue, Power: 60, Kind: KindCity}}}, tu, 0.1)
	if got := e.LastStats().GatedStatics; got != 0 {
		t.Fatalf("gate toggle ignored, got %d", got)
	}
}

func TestContestFloorKeepsIsolatedUnitsContributing(t *testing.T) {
	tu := defaults()
	units := []UnitSource{unitAt(5, 5, model.Blue), unitAt(5.5, 5, model.Red), unitAt(5, 5.5, model.Red), unitAt(4.5, 5, model.Red)}
	powers := unitPowers(units, tu)
	got := contestMultipliers(units, powers, tu)
	if got[0] < tu.ContestFloor || got[0] >= 1 {
		t.Fatalf("outnumbered unit multiplier out of range: %v", got[0])
	}
	if got[1] <= got[0] {
		t.Fatalf("majority side should have higher multiplier: %v vs %v", got[1], got[0])
	}
}
