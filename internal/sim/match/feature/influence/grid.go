// Package influence maintains the signed team-dominance field.
package influence

import "github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"

// Grid is a width x height field of signed dominance scores. Positive favors
// blue, negative favors red.
type Grid struct {
	W, H     int
	Scores   []float64
	Revision uint64
}

func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, Scores: make([]float64, w*h)}
}

func (g *Grid) In(c, r int) bool { return c >= 0 && r >= 0 && c < g.W && r < g.H }

// At returns the score at (c,r); out-of-range cells read as 0.
func (g *Grid) At(c, r int) float64 {
	if g == nil || !g.In(c, r) {
		return 0
	}
	return g.Scores[r*g.W+c]
}

func (g *Grid) AtCell(c model.Cell) float64 { return g.At(c.C, c.R) }

// Aligned returns the score at c seen from team's side: positive means team
// dominates.
func (g *Grid) Aligned(c model.Cell, team model.Team) float64 {
	return g.AtCell(c) * team.Sign()
}

func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	out := &Grid{W: g.W, H: g.H, Revision: g.Revision, Scores: make([]float64, len(g.Scores))}
	copy(out.Scores, g.Scores)
	return out
}
