package match

import (
	"errors"
	"fmt"
	"math"

	"github.com/Aricg/TacticalBlocks-sub001/internal/protocol"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/movement"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
)

const (
	CommandMove   = "MOVE"
	CommandCancel = "CANCEL"
	CommandPause  = "PAUSE"
	CommandResume = "RESUME"
)

var (
	ErrUnknownUnit    = errors.New("unknown unit")
	ErrInvalidCommand = errors.New("invalid command")
	ErrInvalidTarget  = errors.New("invalid target")
	ErrNotOwner       = errors.New("unit belongs to another team")
	ErrInboxFull      = errors.New("match inbox full")
)

// Command is one player order. Team scopes the order to the issuing side;
// Neutral means an unscoped (admin or replay) command.
type Command struct {
	Kind           string             `json:"kind"`
	Team           model.Team         `json:"team,omitempty"`
	UnitID         string             `json:"unit_id"`
	Waypoints      []model.Vec2       `json:"waypoints,omitempty"`
	Mode           *model.CommandMode `json:"mode,omitempty"`
	TargetRotation *float64           `json:"target_rotation,omitempty"`

	// Seq and Reply belong to the submitting session and are not replayed.
	Seq   uint64               `json:"-"`
	Reply chan<- CommandResult `json:"-"`
}

// CommandResult is sent on Command.Reply once the command has been applied
// or rejected at a tick boundary.
type CommandResult struct {
	Seq  uint64
	Tick uint64
	Err  error
}

// ErrorCode maps a command error onto its wire error code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownUnit):
		return protocol.ErrUnknownUnit
	case errors.Is(err, ErrNotOwner):
		return protocol.ErrNoPermission
	case errors.Is(err, ErrInvalidTarget):
		return protocol.ErrInvalidTarget
	case errors.Is(err, ErrInboxFull):
		return protocol.ErrMatchBusy
	case errors.Is(err, ErrInvalidCommand):
		return protocol.ErrBadRequest
	}
	return protocol.ErrInternal
}

// Submit validates cmd and queues it for the next tick boundary. It never
// blocks: a full inbox rejects the command.
func (m *Match) Submit(cmd Command) error {
	if err := m.validate(cmd); err != nil {
		return err
	}
	select {
	case m.inbox <- cmd:
		return nil
	default:
		return ErrInboxFull
	}
}

func (m *Match) validate(cmd Command) error {
	if cmd.UnitID == "" {
		return fmt.Errorf("%w: missing unit_id", ErrInvalidCommand)
	}
	switch cmd.Kind {
	case CommandMove:
		if err := movement.ValidateWaypoints(cmd.Waypoints, m.tuning.Load().Movement.MaxWaypoints); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		if cmd.TargetRotation != nil && !finite(*cmd.TargetRotation) {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, movement.ErrBadRotation)
		}
		if cmd.Mode != nil && (!finite(cmd.Mode.SpeedMultiplier) || cmd.Mode.SpeedMultiplier < 0) {
			return fmt.Errorf("%w: bad speed multiplier", ErrInvalidCommand)
		}
	case CommandCancel, CommandPause, CommandResume:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, cmd.Kind)
	}
	return nil
}

// applyCommands runs the pending commands in receive order and returns the
// ones that changed state.
func (m *Match) applyCommands(cmds []Command, tick uint64) (applied []Command, rejected []Rejection) {
	for _, cmd := range cmds {
		err := m.validate(cmd)
		if err == nil {
			err = m.apply(cmd)
		}
		if cmd.Reply != nil {
			select {
			case cmd.Reply <- CommandResult{Seq: cmd.Seq, Tick: tick, Err: err}:
			default:
			}
		}
		if err != nil {
			rejected = append(rejected, Rejection{UnitID: cmd.UnitID, Kind: cmd.Kind, Code: ErrorCode(err), Message: err.Error()})
			continue
		}
		rec := cmd
		rec.Seq, rec.Reply = 0, nil
		applied = append(applied, rec)
	}
	return applied, rejected
}

func (m *Match) apply(cmd Command) error {
	u := m.arena.ByID(cmd.UnitID)
	if u == nil {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, cmd.UnitID)
	}
	if cmd.Team != model.Neutral && cmd.Team != u.Team {
		return ErrNotOwner
	}
	switch cmd.Kind {
	case CommandMove:
		tu := m.tuning.Load()
		var mode model.CommandMode
		if cmd.Mode != nil {
			mode = *cmd.Mode
		}
		ms, err := movement.Plan(m.currentRouter(tu), u.Pos, cmd.Waypoints, mode, cmd.TargetRotation, tu.Movement.MaxWaypoints)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		if len(ms.Queue) == 0 && ms.TargetRotation == nil {
			return fmt.Errorf("%w: no route from %v", ErrInvalidTarget, u.Cell())
		}
		m.arena.SetMove(u.Slot, ms)
	case CommandCancel:
		m.arena.ClearMove(u.Slot)
	case CommandPause, CommandResume:
		ms := m.arena.Move(u.Slot)
		if ms == nil {
			return fmt.Errorf("%w: %s has no active move", ErrInvalidTarget, u.ID)
		}
		ms.Paused = cmd.Kind == CommandPause
	}
	return nil
}

// Rejection records a command refused at the tick boundary.
type Rejection struct {
	UnitID  string `json:"unit_id"`
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
