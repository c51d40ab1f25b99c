// Package movement routes waypoint commands over terrain and advances units
// cell by cell.
package movement

import (
	"container/heap"
	"math"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/terrain"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

var passableTypes = []terrain.Type{terrain.Plains, terrain.Road, terrain.Forest, terrain.Hill, terrain.Water}

// Router plans cell routes. It never fails: an unreachable goal yields the
// route to the closest reachable cell.
type Router struct {
	o             terrain.Oracle
	costs         map[terrain.Type]float64
	minCost       float64
	maxExpansions int
}

func NewRouter(o terrain.Oracle, tu tuning.MovementTuning) *Router {
	r := &Router{
		o:             o,
		costs:         map[terrain.Type]float64{},
		minCost:       math.Inf(1),
		maxExpansions: tu.MaxExpansions,
	}
	for _, t := range passableTypes {
		c, ok := tu.TerrainCosts[string(t)]
		if !ok || c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			c = 1
		}
		r.costs[t] = c
		r.minCost = math.Min(r.minCost, c)
	}
	if r.maxExpansions <= 0 {
		r.maxExpansions = 1
	}
	return r
}

// Snap maps a world position onto the nearest in-grid cell.
func (r *Router) Snap(p model.Vec2) model.Cell {
	c := model.CellOf(p)
	c.C = clampInt(c.C, 0, r.o.Width()-1)
	c.R = clampInt(c.R, 0, r.o.Height()-1)
	return c
}

// Route chains segments through every waypoint. The start cell is not part
// of the result.
func (r *Router) Route(from model.Cell, waypoints []model.Cell) []model.Cell {
	var out []model.Cell
	cur := from
	for _, wp := range waypoints {
		if wp == cur {
			continue
		}
		seg := r.Segment(cur, wp)
		if len(seg) == 0 {
			continue
		}
		out = append(out, seg...)
		cur = seg[len(seg)-1]
	}
	return out
}

// Segment returns the cells after from up to and including to, or up to the
// closest reachable cell when to cannot be reached.
func (r *Router) Segment(from, to model.Cell) []model.Cell {
	if from == to {
		return nil
	}
	if r.o.Uniform() {
		if line, ok := r.clearLine(from, to); ok {
			return line
		}
	}
	return r.astar(from, to)
}

func (r *Router) blocked(c model.Cell) bool { return r.o.Impassable(c.C, c.R) }

// StepCost is the cost of entering c; impassable cells report +Inf.
func (r *Router) StepCost(c model.Cell) float64 {
	if r.blocked(c) {
		return math.Inf(1)
	}
	if v, ok := r.costs[r.o.TerrainAt(c.C, c.R)]; ok {
		return v
	}
	return 1
}

func (r *Router) clearLine(from, to model.Cell) ([]model.Cell, bool) {
	ok := true
	line := Line(from, to, func(c model.Cell) {
		if r.blocked(c) {
			ok = false
		}
	})
	return line, ok
}

// Line traces a supercover grid line between two cell centers. Each step moves
// to an 8-neighbour; visit is called for every touched cell, including both
// side cells where the line passes exactly through a corner. from is excluded.
func Line(from, to model.Cell, visit func(model.Cell)) []model.Cell {
	dx, dy := to.C-from.C, to.R-from.R
	nx, ny := abs(dx), abs(dy)
	sx, sy := sign(dx), sign(dy)

	out := make([]model.Cell, 0, max(nx, ny))
	p := from
	ix, iy := 0, 0
	for ix < nx || iy < ny {
		d := (1+2*ix)*ny - (1+2*iy)*nx
		switch {
		case d == 0:
			if visit != nil {
				visit(model.Cell{C: p.C + sx, R: p.R})
				visit(model.Cell{C: p.C, R: p.R + sy})
			}
			p.C += sx
			p.R += sy
			ix++
			iy++
		case d < 0:
			p.C += sx
			ix++
		default:
			p.R += sy
			iy++
		}
		if visit != nil {
			visit(p)
		}
		out = append(out, p)
	}
	return out
}

type pathNode struct {
	cell   model.Cell
	g, h   float64
	parent *pathNode
	index  int
}

type openList []*pathNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	fi, fj := ol[i].g+ol[i].h, ol[j].g+ol[j].h
	if fi != fj {
		return fi < fj
	}
	return ol[i].h < ol[j].h
}
func (ol openList) Swap(i, j int) { ol[i], ol[j] = ol[j], ol[i]; ol[i].index = i; ol[j].index = j }
func (ol *openList) Push(x any)   { n := x.(*pathNode); n.index = len(*ol); *ol = append(*ol, n) }
func (ol *openList) Pop() any {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}

var dirs = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

func (r *Router) heuristic(a, b model.Cell) float64 {
	dx := math.Abs(float64(a.C - b.C))
	dy := math.Abs(float64(a.R - b.R))
	return (dx + dy + (math.Sqrt2-2)*math.Min(dx, dy)) * r.minCost
}

func (r *Router) astar(from, to model.Cell) []model.Cell {
	w, h := r.o.Width(), r.o.Height()
	key := func(c model.Cell) int { return c.R*w + c.C }
	inGrid := func(c model.Cell) bool { return c.C >= 0 && c.R >= 0 && c.C < w && c.R < h }
	if !inGrid(from) {
		return nil
	}

	start := &pathNode{cell: from, h: r.heuristic(from, to)}
	ol := &openList{start}
	heap.Init(ol)
	best := make(map[int]*pathNode)
	best[key(from)] = start
	closed := make([]bool, w*h)
	closest := start

	for expanded := 0; ol.Len() > 0 && expanded < r.maxExpansions; {
		cur := heap.Pop(ol).(*pathNode)
		k := key(cur.cell)
		if closed[k] {
			continue
		}
		closed[k] = true
		expanded++
		if cur.h < closest.h || (cur.h == closest.h && cur.g < closest.g) {
			closest = cur
		}
		if cur.cell == to {
			return buildPath(cur)
		}

		for _, d := range dirs {
			next := model.Cell{C: cur.cell.C + d[0], R: cur.cell.R + d[1]}
			if !inGrid(next) || r.blocked(next) {
				continue
			}
			diagonal := d[0] != 0 && d[1] != 0
			if diagonal {
				if r.blocked(model.Cell{C: cur.cell.C + d[0], R: cur.cell.R}) ||
					r.blocked(model.Cell{C: cur.cell.C, R: cur.cell.R + d[1]}) {
					continue
				}
			}
			nk := key(next)
			if closed[nk] {
				continue
			}
			step := r.StepCost(next)
			if diagonal {
				step *= math.Sqrt2
			}
			g := cur.g + step
			if prev, ok := best[nk]; ok && g >= prev.g {
				continue
			}
			node := &pathNode{cell: next, g: g, h: r.heuristic(next, to), parent: cur}
			best[nk] = node
			heap.Push(ol, node)
		}
	}
	return buildPath(closest)
}

// buildPath walks parents back to the start and drops the start cell.
func buildPath(end *pathNode) []model.Cell {
	var cells []model.Cell
	for n := end; n != nil && n.parent != nil; n = n.parent {
		cells = append(cells, n.cell)
	}
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
