package terrain

import "testing"

func TestNewGridParsesGlyphs(t *testing.T) {
	g, err := NewGrid(4, 2, []string{".=f^", "~h"}, []string{"0123"})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	cases := []struct {
		c, r int
		want Type
	}{
		{0, 0, Plains}, {1, 0, Road}, {2, 0, Forest}, {3, 0, Mountain},
		{0, 1, Water}, {1, 1, Hill}, {2, 1, Plains},
	}
	for _, tc := range cases {
		if got := g.TerrainAt(tc.c, tc.r); got != tc.want {
			t.Fatalf("(%d,%d): got %s want %s", tc.c, tc.r, got, tc.want)
		}
	}
	if !g.Impassable(3, 0) || g.Impassable(0, 0) {
		t.Fatalf("impassable mismatch")
	}
	if !g.Impassable(-1, 0) || !g.Impassable(4, 0) {
		t.Fatalf("out of range cells must be impassable")
	}
	if g.HillGrade(3, 0) != 3 || g.HillGrade(0, 1) != 0 {
		t.Fatalf("hill grades mismatch")
	}
	if g.Uniform() {
		t.Fatalf("mixed terrain reported uniform")
	}
	if g.SpeedMultiplier(1, 0) <= g.SpeedMultiplier(0, 0) {
		t.Fatalf("road should be faster than plains")
	}
}

func TestNewGridUniform(t *testing.T) {
	g, err := NewGrid(3, 3, nil, nil)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if !g.Uniform() {
		t.Fatalf("all-plains grid should be uniform")
	}
	g.SetTerrain(1, 1, Mountain)
	if g.Uniform() || !g.Impassable(1, 1) {
		t.Fatalf("SetTerrain did not take effect")
	}
}

func TestNewGridRejectsUnknownGlyph(t *testing.T) {
	if _, err := NewGrid(2, 1, []string{".x"}, nil); err == nil {
		t.Fatalf("expected error for unknown glyph")
	}
	if _, err := NewGrid(0, 1, nil, nil); err == nil {
		t.Fatalf("expected error for bad dimensions")
	}
}
