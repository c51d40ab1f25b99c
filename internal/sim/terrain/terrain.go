// Package terrain exposes read-only per-cell terrain facts to the battle core.
package terrain

import (
	"fmt"
	"strings"
)

type Type string

const (
	Plains   Type = "plains"
	Road     Type = "road"
	Forest   Type = "forest"
	Hill     Type = "hill"
	Water    Type = "water"
	Mountain Type = "mountain"
)

// Oracle answers terrain questions for grid cells. Out-of-range cells are
// impassable.
type Oracle interface {
	Width() int
	Height() int
	TerrainAt(col, row int) Type
	Impassable(col, row int) bool
	SpeedMultiplier(col, row int) float64
	HillGrade(col, row int) int
	// Uniform reports whether the map declares no obstruction at all, which lets
	// routers trace straight lines instead of searching.
	Uniform() bool
}

var glyphs = map[byte]Type{
	'.': Plains,
	'=': Road,
	'f': Forest,
	'h': Hill,
	'~': Water,
	'^': Mountain,
}

var speeds = map[Type]float64{
	Plains:   1,
	Road:     1.5,
	Forest:   0.7,
	Hill:     0.8,
	Water:    0.4,
	Mountain: 0,
}

// Grid is the map-bundle backed Oracle.
type Grid struct {
	w, h    int
	types   []Type
	grades  []int
	uniform bool
}

// NewGrid parses terrain rows (one glyph per cell) and optional hill-grade rows
// (one digit per cell). Missing rows or short rows default to plains / grade 0.
func NewGrid(w, h int, rows, hills []string) (*Grid, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("terrain: bad dimensions %dx%d", w, h)
	}
	g := &Grid{
		w:      w,
		h:      h,
		types:  make([]Type, w*h),
		grades: make([]int, w*h),
	}
	for i := range g.types {
		g.types[i] = Plains
	}
	for r := 0; r < h && r < len(rows); r++ {
		line := strings.TrimRight(rows[r], " ")
		for c := 0; c < w && c < len(line); c++ {
			t, ok := glyphs[line[c]]
			if !ok {
				return nil, fmt.Errorf("terrain: row %d col %d: unknown glyph %q", r, c, line[c])
			}
			g.types[r*w+c] = t
		}
	}
	for r := 0; r < h && r < len(hills); r++ {
		line := hills[r]
		for c := 0; c < w && c < len(line); c++ {
			ch := line[c]
			if ch < '0' || ch > '9' {
				return nil, fmt.Errorf("terrain: hills row %d col %d: expected digit, got %q", r, c, ch)
			}
			g.grades[r*w+c] = int(ch - '0')
		}
	}
	g.uniform = true
	for _, t := range g.types {
		if t != Plains {
			g.uniform = false
			break
		}
	}
	return g, nil
}

func (g *Grid) Width() int  { return g.w }
func (g *Grid) Height() int { return g.h }
func (g *Grid) Uniform() bool {
	return g.uniform
}

func (g *Grid) in(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.w && row < g.h
}

func (g *Grid) TerrainAt(col, row int) Type {
	if !g.in(col, row) {
		return Mountain
	}
	return g.types[row*g.w+col]
}

func (g *Grid) Impassable(col, row int) bool {
	return g.TerrainAt(col, row) == Mountain
}

func (g *Grid) SpeedMultiplier(col, row int) float64 {
	return speeds[g.TerrainAt(col, row)]
}

func (g *Grid) HillGrade(col, row int) int {
	if !g.in(col, row) {
		return 0
	}
	return g.grades[row*g.w+col]
}

// SetTerrain changes a cell at runtime (scripted events, tests).
func (g *Grid) SetTerrain(col, row int, t Type) {
	if !g.in(col, row) {
		return
	}
	g.types[row*g.w+col] = t
	if t != Plains {
		g.uniform = false
	}
}
