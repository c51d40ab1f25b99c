package control

import (
	"testing"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
)

func zone(owner model.Team) Zone {
	return Zone{City: "c", Owner: owner, Cells: []model.Cell{{C: 0, R: 0}, {C: 1, R: 0}, {C: 0, R: 1}, {C: 1, R: 1}}}
}

func unit(team model.Team, c, r int) *model.Unit {
	return &model.Unit{Team: team, Health: 10, Pos: model.Cell{C: c, R: r}.Center()}
}

func TestUncontestedZoneFlipsImmediately(t *testing.T) {
	flips := Resolve([]Zone{zone(model.Neutral)}, []*model.Unit{unit(model.Red, 1, 1)})
	if len(flips) != 1 || flips[0].To != model.Red || flips[0].From != model.Neutral {
		t.Fatalf("flips=%+v", flips)
	}
}

func TestMixedZoneNeverFlips(t *testing.T) {
	units := []*model.Unit{unit(model.Red, 1, 1), unit(model.Blue, 0, 0), unit(model.Red, 0, 1)}
	if flips := Resolve([]Zone{zone(model.Blue)}, units); len(flips) != 0 {
		t.Fatalf("mixed zone flipped: %+v", flips)
	}
}

func TestEmptyZoneKeepsOwner(t *testing.T) {
	if flips := Resolve([]Zone{zone(model.Blue)}, []*model.Unit{unit(model.Red, 5, 5)}); len(flips) != 0 {
		t.Fatalf("empty zone flipped: %+v", flips)
	}
}

func TestOwnerPresenceIsNoFlip(t *testing.T) {
	if flips := Resolve([]Zone{zone(model.Blue)}, []*model.Unit{unit(model.Blue, 0, 0)}); len(flips) != 0 {
		t.Fatalf("owner re-flipped: %+v", flips)
	}
}

func TestDeadUnitsDoNotCount(t *testing.T) {
	dead := unit(model.Red, 0, 0)
	dead.Health = 0
	if flips := Resolve([]Zone{zone(model.Blue)}, []*model.Unit{dead}); len(flips) != 0 {
		t.Fatalf("dead unit captured a city: %+v", flips)
	}
}
