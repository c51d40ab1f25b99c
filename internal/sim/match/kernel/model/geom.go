package model

import "math"

// Cell is a grid coordinate. Cell (C,R) covers [C,C+1)x[R,R+1) in world space.
type Cell struct {
	C int `json:"c"`
	R int `json:"r"`
}

// Vec2 is a continuous position in cell units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (c Cell) Center() Vec2 { return Vec2{X: float64(c.C) + 0.5, Y: float64(c.R) + 0.5} }

func CellOf(p Vec2) Cell {
	return Cell{C: int(math.Floor(p.X)), R: int(math.Floor(p.Y))}
}

func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{X: a.X - b.X, Y: a.Y - b.Y} }

func (a Vec2) Len() float64 { return math.Hypot(a.X, a.Y) }

func Dist(a, b Vec2) float64 { return a.Sub(b).Len() }

func Dist2(a, b Vec2) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

// Heading is the angle from a to b. Coincident points give 0.
func Heading(a, b Vec2) float64 {
	d := b.Sub(a)
	if math.Abs(d.X) < 1e-12 && math.Abs(d.Y) < 1e-12 {
		return 0
	}
	return math.Atan2(d.Y, d.X)
}

// WrapAngle maps an angle into (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// TurnToward rotates from toward target by at most maxStep radians.
func TurnToward(from, target, maxStep float64) float64 {
	diff := WrapAngle(target - from)
	if math.Abs(diff) <= maxStep {
		return WrapAngle(target)
	}
	if diff > 0 {
		return WrapAngle(from + maxStep)
	}
	return WrapAngle(from - maxStep)
}

// Facing reports whether rot points at target within tol radians.
func Facing(rot, target, tol float64) bool {
	return math.Abs(WrapAngle(target-rot)) <= tol+1e-9
}

func Deg(d float64) float64 { return d * math.Pi / 180 }
