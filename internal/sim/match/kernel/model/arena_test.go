package model

import (
	"math"
	"testing"
)

func TestArenaReusesSlots(t *testing.T) {
	a := NewArena(8, 8)
	u1 := &Unit{ID: "U1", Health: 10, Pos: Vec2{X: 0.5, Y: 0.5}}
	u2 := &Unit{ID: "U2", Health: 10, Pos: Vec2{X: 1.5, Y: 0.5}}
	a.Add(u1)
	a.Add(u2)
	a.SetMove(u1.Slot, &MovementState{})
	a.Engage(0, 1)

	a.Remove(0)
	if a.ByID("U1") != nil || a.Len() != 1 {
		t.Fatalf("U1 should be gone")
	}
	if len(a.Engaged(1)) != 0 {
		t.Fatalf("engagement edge to removed unit survived: %v", a.Engaged(1))
	}
	if a.OccupantAt(Cell{0, 0}) != -1 {
		t.Fatalf("cell not vacated")
	}

	u3 := &Unit{ID: "U3", Health: 10, Pos: Vec2{X: 4.5, Y: 4.5}}
	if slot := a.Add(u3); slot != 0 {
		t.Fatalf("expected reclaimed slot 0, got %d", slot)
	}
	if a.Move(0) != nil {
		t.Fatalf("movement state leaked into reused slot")
	}
	if a.Cap() != 2 {
		t.Fatalf("arena grew instead of reusing: cap=%d", a.Cap())
	}
}

func TestArenaRelocateTracksOccupancy(t *testing.T) {
	a := NewArena(4, 4)
	u := &Unit{ID: "U1", Health: 1, Pos: Vec2{X: 0.5, Y: 0.5}}
	a.Add(u)
	a.Relocate(u, Vec2{X: 2.5, Y: 1.5})
	if a.OccupantAt(Cell{0, 0}) != -1 {
		t.Fatalf("old cell still occupied")
	}
	if a.OccupantAt(Cell{2, 1}) != u.Slot {
		t.Fatalf("new cell not occupied")
	}
}

func TestTurnToward(t *testing.T) {
	got := TurnToward(0, math.Pi/2, Deg(30))
	if math.Abs(got-Deg(30)) > 1e-9 {
		t.Fatalf("got %v", got)
	}
	got = TurnToward(Deg(170), Deg(-170), Deg(30))
	if math.Abs(got-Deg(-170)) > 1e-9 {
		t.Fatalf("should turn across pi: got %v", got)
	}
	if !Facing(0, Deg(40), Deg(45)) || Facing(0, Deg(50), Deg(45)) {
		t.Fatalf("facing tolerance wrong")
	}
}
