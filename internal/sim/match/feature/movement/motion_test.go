package movement

import (
	"errors"
	"math"
	"testing"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/terrain"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

type motionEnv struct {
	arena *model.Arena
	o     *terrain.Grid
	tu    *tuning.Tuning
}

func newMotionEnv(t *testing.T, rows ...string) *motionEnv {
	t.Helper()
	tu := tuning.Defaults()
	tu.Movement.TerrainTransitionPause = 0
	o := grid(t, rows...)
	return &motionEnv{arena: model.NewArena(o.Width(), o.Height()), o: o, tu: &tu}
}

func (e *motionEnv) add(id string, c model.Cell, rot float64) *model.Unit {
	u := &model.Unit{ID: id, Team: model.Blue, Type: "infantry", Pos: c.Center(), Rotation: rot, Health: 100, MaxHealth: 100}
	e.arena.Add(u)
	return u
}

func (e *motionEnv) order(u *model.Unit, queue []model.Cell, mode model.CommandMode) *model.MovementState {
	if mode.SpeedMultiplier == 0 {
		mode.SpeedMultiplier = 1
	}
	m := &model.MovementState{Mode: mode}
	m.SetQueue(queue)
	e.arena.SetMove(u.Slot, m)
	return m
}

func TestMotionAdvancesOneCellPerBudget(t *testing.T) {
	e := newMotionEnv(t, "......")
	u := e.add("a", model.Cell{C: 0, R: 0}, 0)
	e.order(u, []model.Cell{{C: 1, R: 0}, {C: 2, R: 0}, {C: 3, R: 0}}, model.CommandMode{})

	Step(e.arena, e.o, e.tu, 0.5)
	if got := u.Cell(); got != (model.Cell{C: 1, R: 0}) {
		t.Fatalf("after one tick at speed 2: %v", got)
	}
	if e.arena.OccupantAt(model.Cell{C: 0, R: 0}) != -1 || e.arena.OccupantAt(model.Cell{C: 1, R: 0}) != u.Slot {
		t.Fatalf("occupancy not updated")
	}
	res := Step(e.arena, e.o, e.tu, 1.0)
	if u.Cell() != (model.Cell{C: 3, R: 0}) {
		t.Fatalf("expected arrival, at %v", u.Cell())
	}
	if len(res.Arrived) != 1 || e.arena.Move(u.Slot) != nil {
		t.Fatalf("arrival should drop the movement state: %+v", res)
	}
}

func TestMotionBlockedByOccupant(t *testing.T) {
	e := newMotionEnv(t, "......")
	u := e.add("a", model.Cell{C: 0, R: 0}, 0)
	e.add("b", model.Cell{C: 1, R: 0}, 0)
	m := e.order(u, []model.Cell{{C: 1, R: 0}, {C: 2, R: 0}}, model.CommandMode{})

	for i := 0; i < 5; i++ {
		Step(e.arena, e.o, e.tu, 1)
	}
	if u.Cell() != (model.Cell{C: 0, R: 0}) {
		t.Fatalf("unit moved into an occupied cell: %v", u.Cell())
	}
	if m.Budget > 1+1e-9 {
		t.Fatalf("budget should be capped while blocked, got %v", m.Budget)
	}
}

func TestMotionRotatesBeforeMoving(t *testing.T) {
	e := newMotionEnv(t, "......")
	u := e.add("a", model.Cell{C: 0, R: 0}, math.Pi)
	m := e.order(u, []model.Cell{{C: 1, R: 0}}, model.CommandMode{RotateToFace: true})

	Step(e.arena, e.o, e.tu, 0.5)
	if u.Cell() != (model.Cell{C: 0, R: 0}) || m.Budget != 0 {
		t.Fatalf("unit should only turn first: cell=%v budget=%v", u.Cell(), m.Budget)
	}
	if math.Abs(model.WrapAngle(u.Rotation-math.Pi/2)) > 1e-9 && math.Abs(model.WrapAngle(u.Rotation+math.Pi/2)) > 1e-9 {
		t.Fatalf("expected a quarter turn, rotation=%v", u.Rotation)
	}
	Step(e.arena, e.o, e.tu, 0.5)
	if u.Cell() != (model.Cell{C: 1, R: 0}) {
		t.Fatalf("unit should move once facing: %v", u.Cell())
	}
}

func TestMotionAbortsOnImpassable(t *testing.T) {
	e := newMotionEnv(t, "......")
	u := e.add("a", model.Cell{C: 0, R: 0}, 0)
	e.order(u, []model.Cell{{C: 1, R: 0}, {C: 2, R: 0}}, model.CommandMode{})
	e.o.SetTerrain(1, 0, terrain.Mountain)

	res := Step(e.arena, e.o, e.tu, 1)
	if len(res.Aborted) != 1 || e.arena.Move(u.Slot) != nil {
		t.Fatalf("expected abort, got %+v", res)
	}
	if u.Cell() != (model.Cell{C: 0, R: 0}) {
		t.Fatalf("unit should stay put: %v", u.Cell())
	}
}

func TestMotionTerrainTransitionPause(t *testing.T) {
	e := newMotionEnv(t, ".ff...")
	e.tu.Movement.TerrainTransitionPause = 1
	u := e.add("a", model.Cell{C: 0, R: 0}, 0)
	m := e.order(u, []model.Cell{{C: 1, R: 0}, {C: 2, R: 0}}, model.CommandMode{SpeedMultiplier: 10})

	Step(e.arena, e.o, e.tu, 0.5)
	if u.Cell() != (model.Cell{C: 1, R: 0}) || m.TransitionPause != 1 {
		t.Fatalf("entering forest should pause: cell=%v pause=%v", u.Cell(), m.TransitionPause)
	}
	Step(e.arena, e.o, e.tu, 0.5)
	if u.Cell() != (model.Cell{C: 1, R: 0}) {
		t.Fatalf("unit moved during transition pause")
	}
}

func TestMotionPausedSkips(t *testing.T) {
	e := newMotionEnv(t, "......")
	u := e.add("a", model.Cell{C: 0, R: 0}, 0)
	m := e.order(u, []model.Cell{{C: 1, R: 0}}, model.CommandMode{})
	m.Paused = true
	Step(e.arena, e.o, e.tu, 1)
	if u.Cell() != (model.Cell{C: 0, R: 0}) || m.Budget != 0 {
		t.Fatalf("paused unit advanced")
	}
}

func TestMotionFinalRotation(t *testing.T) {
	e := newMotionEnv(t, "......")
	u := e.add("a", model.Cell{C: 0, R: 0}, 0)
	m := e.order(u, []model.Cell{{C: 1, R: 0}}, model.CommandMode{})
	rot := math.Pi / 2
	m.TargetRotation = &rot

	Step(e.arena, e.o, e.tu, 0.5)
	Step(e.arena, e.o, e.tu, 0.5)
	if e.arena.Move(u.Slot) != nil {
		t.Fatalf("state should clear after final rotation")
	}
	if math.Abs(u.Rotation-rot) > 1e-9 {
		t.Fatalf("rotation=%v want %v", u.Rotation, rot)
	}
}

func TestPlanValidatesWaypoints(t *testing.T) {
	o := grid(t, "......")
	r := router(o)
	if _, err := Plan(r, model.Vec2{X: 0.5, Y: 0.5}, nil, model.CommandMode{}, nil, 4); !errors.Is(err, ErrNoWaypoints) {
		t.Fatalf("err=%v", err)
	}
	bad := []model.Vec2{{X: math.NaN(), Y: 0}}
	if _, err := Plan(r, model.Vec2{X: 0.5, Y: 0.5}, bad, model.CommandMode{}, nil, 4); !errors.Is(err, ErrNonFiniteWaypoint) {
		t.Fatalf("err=%v", err)
	}
	many := make([]model.Vec2, 5)
	if _, err := Plan(r, model.Vec2{X: 0.5, Y: 0.5}, many, model.CommandMode{}, nil, 4); !errors.Is(err, ErrTooManyWaypoints) {
		t.Fatalf("err=%v", err)
	}
	m, err := Plan(r, model.Vec2{X: 0.5, Y: 0.5}, []model.Vec2{{X: 99, Y: -3}}, model.CommandMode{}, nil, 4)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if m.Destination != (model.Cell{C: 5, R: 0}) || m.Mode.SpeedMultiplier != 1 {
		t.Fatalf("waypoint should clamp into the grid: %+v", m)
	}
}

func TestMotionCornerRespectsTurnRate(t *testing.T) {
	e := newMotionEnv(t, "...", "...", "...")
	e.tu.Movement.UnitSpeed = 30
	e.tu.Movement.TurnRateDegPerSec = 90
	u := e.add("a", model.Cell{C: 0, R: 0}, 0)
	e.order(u, []model.Cell{{C: 1, R: 0}, {C: 1, R: 1}, {C: 1, R: 2}}, model.CommandMode{RotateToFace: true})

	maxTurn := model.Deg(9) + 1e-9
	Step(e.arena, e.o, e.tu, 0.1)
	if u.Cell() != (model.Cell{C: 1, R: 0}) {
		t.Fatalf("unit should stop at the corner, at %v", u.Cell())
	}
	if math.Abs(u.Rotation) > maxTurn {
		t.Fatalf("turned %.1f deg in one tick", u.Rotation*180/math.Pi)
	}
	for i := 0; i < 20 && e.arena.Move(u.Slot) != nil; i++ {
		before := u.Rotation
		Step(e.arena, e.o, e.tu, 0.1)
		if d := math.Abs(model.WrapAngle(u.Rotation - before)); d > maxTurn {
			t.Fatalf("tick %d turned %.1f deg", i, d*180/math.Pi)
		}
	}
	if u.Cell() != (model.Cell{C: 1, R: 2}) || e.arena.Move(u.Slot) != nil {
		t.Fatalf("unit should reach the end once facing: %v", u.Cell())
	}
}

func TestMotionTurnsGraduallyWithoutRotateToFace(t *testing.T) {
	e := newMotionEnv(t, "...", "...", "...")
	e.tu.Movement.UnitSpeed = 30
	e.tu.Movement.TurnRateDegPerSec = 90
	u := e.add("a", model.Cell{C: 0, R: 0}, 0)
	e.order(u, []model.Cell{{C: 1, R: 0}, {C: 1, R: 1}, {C: 1, R: 2}}, model.CommandMode{})

	Step(e.arena, e.o, e.tu, 0.1)
	if u.Cell() != (model.Cell{C: 1, R: 2}) {
		t.Fatalf("budget covers the whole route, at %v", u.Cell())
	}
	if math.Abs(u.Rotation) > model.Deg(9)+1e-9 {
		t.Fatalf("rotation jumped to %.1f deg", u.Rotation*180/math.Pi)
	}
}
