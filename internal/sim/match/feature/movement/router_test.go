package movement

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/terrain"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

func grid(t testing.TB, rows ...string) *terrain.Grid {
	t.Helper()
	g, err := terrain.NewGrid(len(rows[0]), len(rows), rows, nil)
	if err != nil {
		t.Fatalf("terrain: %v", err)
	}
	return g
}

func router(o terrain.Oracle) *Router {
	return NewRouter(o, tuning.Defaults().Movement)
}

func checkAdjacent(t testing.TB, from model.Cell, path []model.Cell) {
	t.Helper()
	prev := from
	for i, c := range path {
		if abs(c.C-prev.C) > 1 || abs(c.R-prev.R) > 1 || c == prev {
			t.Fatalf("step %d not adjacent: %v -> %v", i, prev, c)
		}
		prev = c
	}
}

func TestStraightLineOnUniformMap(t *testing.T) {
	o := grid(t, strings.Repeat(".", 10), strings.Repeat(".", 10), strings.Repeat(".", 10), strings.Repeat(".", 10))
	from, to := model.Cell{C: 0, R: 0}, model.Cell{C: 6, R: 3}
	path := router(o).Segment(from, to)
	if len(path) == 0 || path[len(path)-1] != to {
		t.Fatalf("path should end at goal: %v", path)
	}
	checkAdjacent(t, from, path)
	if len(path) > 9 {
		t.Fatalf("straight line too long: %d cells", len(path))
	}
}

func TestLineVisitsCornerCells(t *testing.T) {
	var seen []model.Cell
	path := Line(model.Cell{C: 0, R: 0}, model.Cell{C: 2, R: 2}, func(c model.Cell) { seen = append(seen, c) })
	if len(path) != 2 || path[1] != (model.Cell{C: 2, R: 2}) {
		t.Fatalf("diagonal line: %v", path)
	}
	if len(seen) != 6 {
		t.Fatalf("expected corner cells visited, got %v", seen)
	}
}

func TestRouteAvoidsMountains(t *testing.T) {
	o := grid(t,
		"..........",
		"....^.....",
		"....^.....",
		"....^.....",
		"..........",
	)
	from, to := model.Cell{C: 1, R: 2}, model.Cell{C: 8, R: 2}
	path := router(o).Segment(from, to)
	if path[len(path)-1] != to {
		t.Fatalf("goal not reached: %v", path)
	}
	checkAdjacent(t, from, path)
	for _, c := range path {
		if o.Impassable(c.C, c.R) {
			t.Fatalf("path crosses impassable %v", c)
		}
	}
}

func TestRoutePrefersRoads(t *testing.T) {
	o := grid(t,
		".........",
		".........",
		".........",
		".........",
		"=========",
	)
	path := router(o).Segment(model.Cell{C: 0, R: 2}, model.Cell{C: 8, R: 2})
	onRoad := 0
	for _, c := range path {
		if o.TerrainAt(c.C, c.R) == terrain.Road {
			onRoad++
		}
	}
	if onRoad == 0 {
		t.Fatalf("expected a detour over the road, got %v", path)
	}
}

func TestPartialPathAtBarrier(t *testing.T) {
	o := grid(t,
		"....^....",
		"....^....",
		"....^....",
		"....^....",
		"....^....",
	)
	path := router(o).Segment(model.Cell{C: 0, R: 2}, model.Cell{C: 8, R: 2})
	if len(path) == 0 {
		t.Fatalf("expected partial progress")
	}
	if last := path[len(path)-1]; last != (model.Cell{C: 3, R: 2}) {
		t.Fatalf("partial path should stop at the barrier, got %v", last)
	}
}

func TestExpansionCapStillProgresses(t *testing.T) {
	o := grid(t, "..^......", "..^......", ".........")
	tu := tuning.Defaults().Movement
	tu.MaxExpansions = 3
	path := NewRouter(o, tu).Segment(model.Cell{C: 0, R: 0}, model.Cell{C: 8, R: 0})
	if len(path) == 0 {
		t.Fatalf("capped search should still return a partial route")
	}
	checkAdjacent(t, model.Cell{C: 0, R: 0}, path)
}

func TestRouteNeverEntersImpassable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := rapid.IntRange(3, 12).Draw(rt, "w")
		h := rapid.IntRange(3, 12).Draw(rt, "h")
		rows := make([]string, h)
		for r := range rows {
			b := make([]byte, w)
			for c := range b {
				b[c] = rapid.SampledFrom([]byte{'.', '.', '=', 'f', '~', '^'}).Draw(rt, "glyph")
			}
			rows[r] = string(b)
		}
		o, err := terrain.NewGrid(w, h, rows, nil)
		if err != nil {
			rt.Fatalf("terrain: %v", err)
		}
		from := model.Cell{C: rapid.IntRange(0, w-1).Draw(rt, "fc"), R: rapid.IntRange(0, h-1).Draw(rt, "fr")}
		to := model.Cell{C: rapid.IntRange(0, w-1).Draw(rt, "tc"), R: rapid.IntRange(0, h-1).Draw(rt, "tr")}
		path := router(o).Segment(from, to)
		prev := from
		for _, c := range path {
			if o.Impassable(c.C, c.R) {
				rt.Fatalf("entered impassable %v", c)
			}
			dc, dr := c.C-prev.C, c.R-prev.R
			if abs(dc) > 1 || abs(dr) > 1 {
				rt.Fatalf("jump %v -> %v", prev, c)
			}
			if dc != 0 && dr != 0 && (o.Impassable(prev.C+dc, prev.R) || o.Impassable(prev.C, prev.R+dr)) {
				rt.Fatalf("corner cut %v -> %v", prev, c)
			}
			prev = c
		}
	})
}

func TestRouteChainsWaypoints(t *testing.T) {
	o := grid(t, "......", "......", "......")
	path := router(o).Route(model.Cell{C: 0, R: 0}, []model.Cell{{C: 3, R: 0}, {C: 3, R: 2}})
	if path[len(path)-1] != (model.Cell{C: 3, R: 2}) {
		t.Fatalf("route should end at last waypoint: %v", path)
	}
	checkAdjacent(t, model.Cell{C: 0, R: 0}, path)
}
