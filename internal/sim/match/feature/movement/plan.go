package movement

import (
	"errors"
	"fmt"
	"math"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
)

var (
	ErrNoWaypoints       = errors.New("no waypoints")
	ErrTooManyWaypoints  = errors.New("too many waypoints")
	ErrNonFiniteWaypoint = errors.New("non-finite waypoint")
	ErrBadRotation       = errors.New("non-finite target rotation")
)

// ValidateWaypoints rejects empty, oversized or non-numeric waypoint lists.
func ValidateWaypoints(wps []model.Vec2, maxWaypoints int) error {
	if len(wps) == 0 {
		return ErrNoWaypoints
	}
	if maxWaypoints > 0 && len(wps) > maxWaypoints {
		return fmt.Errorf("%w: %d > %d", ErrTooManyWaypoints, len(wps), maxWaypoints)
	}
	for i, p := range wps {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("%w at index %d", ErrNonFiniteWaypoint, i)
		}
	}
	return nil
}

// Plan validates a move order and turns it into a fresh MovementState.
func Plan(r *Router, from model.Vec2, wps []model.Vec2, mode model.CommandMode, targetRotation *float64, maxWaypoints int) (*model.MovementState, error) {
	if err := ValidateWaypoints(wps, maxWaypoints); err != nil {
		return nil, err
	}
	if targetRotation != nil && !finite(*targetRotation) {
		return nil, ErrBadRotation
	}
	if !finite(mode.SpeedMultiplier) || mode.SpeedMultiplier <= 0 {
		mode.SpeedMultiplier = 1
	}
	cells := make([]model.Cell, 0, len(wps))
	for _, p := range wps {
		cells = append(cells, r.Snap(p))
	}
	m := &model.MovementState{Mode: mode}
	if targetRotation != nil {
		rot := model.WrapAngle(*targetRotation)
		m.TargetRotation = &rot
	}
	m.SetQueue(r.Route(model.CellOf(from), cells))
	if len(m.Queue) == 0 {
		m.Destination = model.CellOf(from)
	}
	return m, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
