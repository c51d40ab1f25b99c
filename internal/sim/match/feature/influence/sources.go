package influence

import "github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"

// UnitSource is a living unit as seen by the field engine.
type UnitSource struct {
	Pos       model.Vec2
	Team      model.Team
	Health    float64
	TypePower float64
}

type StaticKind uint8

const (
	KindCity StaticKind = iota + 1
	KindBlockedSupply
)

func (k StaticKind) String() string {
	switch k {
	case KindCity:
		return "city"
	case KindBlockedSupply:
		return "blocked_supply"
	}
	return "unknown"
}

// StaticSource is derived every tick from city ownership and severed supply
// endpoints.
type StaticSource struct {
	Cell  model.Cell
	Team  model.Team
	Power float64
	Kind  StaticKind
}

type Inputs struct {
	Units   []UnitSource
	Statics []StaticSource
}

// Stats summarizes the last Compute call.
type Stats struct {
	Units        int `json:"units"`
	Statics      int `json:"statics"`
	GatedUnits   int `json:"gated_units"`
	GatedStatics int `json:"gated_statics"`
}
