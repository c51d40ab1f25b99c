package model

// Unit is a live combatant. Slot is its dense arena index and is only valid
// while the unit is alive.
type Unit struct {
	ID        string
	Slot      int
	Team      Team
	Type      string
	Pos       Vec2
	Rotation  float64
	Health    float64
	MaxHealth float64

	MoraleScore float64
	Attacking   bool
	// CombatPause counts down the just-engaged grace period.
	CombatPause float64
	WasEngaged  bool
}

func (u *Unit) Alive() bool { return u != nil && u.Health > 0 }

func (u *Unit) Cell() Cell { return CellOf(u.Pos) }

// CommandMode shapes how a MovementState is executed.
type CommandMode struct {
	SpeedMultiplier float64 `json:"speed_multiplier"`
	RotateToFace    bool    `json:"rotate_to_face"`
}

// MovementState is the per-unit motion plan. It lives exactly as long as the
// unit does or until the plan completes.
type MovementState struct {
	Destination     Cell
	Queue           []Cell
	TargetRotation  *float64
	Mode            CommandMode
	Budget          float64
	Paused          bool
	TransitionPause float64
}

// SetQueue replaces the route and updates the destination.
func (m *MovementState) SetQueue(q []Cell) {
	m.Queue = q
	if len(q) > 0 {
		m.Destination = q[len(q)-1]
	}
}
