package movement

import (
	"math"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/terrain"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

// Result lists the units whose plan ended this tick.
type Result struct {
	Moved   int
	Arrived []string
	Aborted []string
}

// Step advances every unit that holds a MovementState, in slot order.
func Step(a *model.Arena, o terrain.Oracle, tu *tuning.Tuning, dt float64) Result {
	var res Result
	for _, u := range a.Live() {
		m := a.Move(u.Slot)
		if m == nil || m.Paused {
			continue
		}
		switch stepUnit(a, o, tu, u, m, dt, &res) {
		case outcomeArrived:
			a.ClearMove(u.Slot)
			res.Arrived = append(res.Arrived, u.ID)
		case outcomeAborted:
			a.ClearMove(u.Slot)
			res.Aborted = append(res.Aborted, u.ID)
		}
	}
	return res
}

type outcome int

const (
	outcomeRunning outcome = iota
	outcomeArrived
	outcomeAborted
)

func stepUnit(a *model.Arena, o terrain.Oracle, tu *tuning.Tuning, u *model.Unit, m *model.MovementState, dt float64, res *Result) outcome {
	mv := tu.Movement
	tol := model.Deg(mv.FacingToleranceDeg)

	if m.TransitionPause > 0 {
		m.TransitionPause -= dt
		if m.TransitionPause > 0 {
			return outcomeRunning
		}
		dt = -m.TransitionPause
		m.TransitionPause = 0
	}
	// turnLeft is the rotation still available this tick; every turn draws on it.
	turnLeft := model.Deg(mv.TurnRateDegPerSec) * dt

	if len(m.Queue) > 0 {
		next := m.Queue[0]
		if o.Impassable(next.C, next.R) {
			return outcomeAborted
		}
		if m.Mode.RotateToFace && !faceToward(u, model.Heading(u.Pos, next.Center()), tol, &turnLeft) {
			return outcomeRunning
		}

		here := u.Cell()
		speed := mv.UnitSpeed * tu.Type(u.Type).Speed * m.Mode.SpeedMultiplier * o.SpeedMultiplier(here.C, here.R)
		m.Budget += speed * dt

		moved := false
		for len(m.Queue) > 0 {
			next = m.Queue[0]
			if o.Impassable(next.C, next.R) {
				return outcomeAborted
			}
			target := next.Center()
			d := model.Dist(u.Pos, target)
			if occ := a.OccupantAt(next); occ >= 0 && occ != u.Slot {
				if m.Budget > d {
					m.Budget = d
				}
				break
			}
			if m.Budget < d {
				break
			}
			heading := model.Heading(u.Pos, target)
			if m.Mode.RotateToFace {
				if !faceToward(u, heading, tol, &turnLeft) {
					// Leftover budget may not carry a cell further than one step.
					if m.Budget > d {
						m.Budget = d
					}
					break
				}
			} else {
				u.Rotation = turn(u.Rotation, heading, &turnLeft)
			}
			fromType := o.TerrainAt(here.C, here.R)
			a.Relocate(u, target)
			m.Budget -= d
			m.Queue = m.Queue[1:]
			moved = true
			here = next
			if o.TerrainAt(next.C, next.R) != fromType && mv.TerrainTransitionPause > 0 {
				m.TransitionPause = mv.TerrainTransitionPause
				break
			}
		}
		if moved {
			res.Moved++
		}
		if len(m.Queue) > 0 || m.TransitionPause > 0 {
			return outcomeRunning
		}
		m.Budget = 0
	}

	if m.TargetRotation == nil {
		return outcomeArrived
	}
	u.Rotation = turn(u.Rotation, *m.TargetRotation, &turnLeft)
	if model.Facing(u.Rotation, *m.TargetRotation, 1e-6) {
		return outcomeArrived
	}
	return outcomeRunning
}

// faceToward turns u toward heading out of the tick's remaining turn and
// reports whether it now faces heading within tol.
func faceToward(u *model.Unit, heading, tol float64, turnLeft *float64) bool {
	if model.Facing(u.Rotation, heading, tol) {
		return true
	}
	u.Rotation = turn(u.Rotation, heading, turnLeft)
	return model.Facing(u.Rotation, heading, tol)
}

// turn rotates from toward target by at most *turnLeft and deducts the
// angle used.
func turn(from, target float64, turnLeft *float64) float64 {
	to := model.TurnToward(from, target, *turnLeft)
	used := math.Abs(model.WrapAngle(to - from))
	*turnLeft = math.Max(0, *turnLeft-used)
	return to
}
