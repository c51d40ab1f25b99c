// Package supply runs the farm to city to depot logistics chain and the
// per-unit supply lines.
package supply

import (
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/influence"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/terrain"
)

// Line is a traced supply path. SeverIndex is the first impassable or
// hostile-dominant cell, or -1 while the line is intact.
type Line struct {
	Path       []model.Cell `json:"path"`
	Connected  bool         `json:"connected"`
	SeverIndex int          `json:"sever_index"`
	// Complete is false when routing could not reach the far end.
	Complete bool `json:"complete"`
}

// Endpoint is the cell that blocks the line, if any.
func (l *Line) Endpoint() (model.Cell, bool) {
	if l.Connected || l.SeverIndex < 0 || l.SeverIndex >= len(l.Path) {
		return model.Cell{}, false
	}
	return l.Path[l.SeverIndex], true
}

// Evaluate re-checks the line for team against the current field.
func (l *Line) Evaluate(team model.Team, field *influence.Grid, o terrain.Oracle, severAbs float64) {
	l.SeverIndex = SeverIndex(l.Path, team, field, o, severAbs)
	if !l.Complete && l.SeverIndex < 0 && len(l.Path) > 0 {
		l.SeverIndex = len(l.Path) - 1
	}
	l.Connected = team != model.Neutral && len(l.Path) > 0 && l.SeverIndex < 0
}

// SeverIndex returns the first cell of path that is impassable or where the
// aligned score for team falls below -severAbs. It returns -1 if none is.
func SeverIndex(path []model.Cell, team model.Team, field *influence.Grid, o terrain.Oracle, severAbs float64) int {
	for i, c := range path {
		if o != nil && o.Impassable(c.C, c.R) {
			return i
		}
		if field != nil && field.Aligned(c, team) < -severAbs {
			return i
		}
	}
	return -1
}
