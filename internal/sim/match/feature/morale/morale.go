// Package morale turns the influence field around a unit into a bounded
// morale score.
package morale

import (
	"math"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/influence"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/terrain"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

// Breakdown keeps every term of the last evaluation for debug overlays.
type Breakdown struct {
	Samples    int     `json:"samples"`
	Field      float64 `json:"field"`
	Hill       float64 `json:"hill"`
	Slope      float64 `json:"slope"`
	Unsupplied float64 `json:"unsupplied"`
	Score      float64 `json:"score"`
	Advantage  float64 `json:"advantage"`
}

// Evaluate samples the square neighbourhood of the unit's cell. A nil grid
// samples as neutral ground.
func Evaluate(g *influence.Grid, o terrain.Oracle, pos model.Vec2, team model.Team, unsupplied bool, tu tuning.MoraleTuning, maxAbs float64) Breakdown {
	var b Breakdown
	center := model.CellOf(pos)

	var sum float64
	rad := tu.SampleRadius
	for r := center.R - rad; r <= center.R+rad; r++ {
		for c := center.C - rad; c <= center.C+rad; c++ {
			if g != nil && !g.In(c, r) {
				continue
			}
			if g == nil && (o == nil || c < 0 || r < 0 || c >= o.Width() || r >= o.Height()) {
				continue
			}
			var v float64
			if g != nil && maxAbs > 0 {
				v = clamp(g.At(c, r)*team.Sign()/maxAbs, -1, 1)
			}
			sum += weight(v, tu)
			b.Samples++
		}
	}
	if b.Samples > 0 {
		b.Field = sum / float64(b.Samples) * tu.MaxScore
	} else {
		b.Field = 0.5 * tu.MaxScore
	}

	if o != nil {
		grade := float64(o.HillGrade(center.C, center.R))
		b.Hill = tu.HillBonusPerGrade * grade
		b.Slope = tu.SlopeBonus * (grade - meanNeighbourGrade(o, center))
	}
	if unsupplied {
		b.Unsupplied = -tu.UnsuppliedPenalty
	}

	lo := math.Min(1, tu.MaxScore)
	b.Score = clamp(b.Field+b.Hill+b.Slope+b.Unsupplied, lo, tu.MaxScore)
	b.Advantage = Advantage(b.Score, tu)
	return b
}

// Advantage normalizes a morale score into [0,1].
func Advantage(score float64, tu tuning.MoraleTuning) float64 {
	if tu.MaxScore <= 0 {
		return 0
	}
	return clamp(score/tu.MaxScore, 0, 1)
}

// weight curves a team-aligned sample: friendly ground is flattened by the
// friendly exponent, hostile ground sharpened by the hostile one.
func weight(v float64, tu tuning.MoraleTuning) float64 {
	var curved float64
	if v >= 0 {
		curved = math.Pow(v, tu.FriendlyExponent)
	} else {
		curved = -math.Pow(-v, tu.HostileExponent)
	}
	return (curved + 1) / 2
}

func meanNeighbourGrade(o terrain.Oracle, c model.Cell) float64 {
	var sum float64
	n := 0
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dc == 0 && dr == 0 {
				continue
			}
			col, row := c.C+dc, c.R+dr
			if col < 0 || row < 0 || col >= o.Width() || row >= o.Height() {
				continue
			}
			sum += float64(o.HillGrade(col, row))
			n++
		}
	}
	if n == 0 {
		return float64(o.HillGrade(c.C, c.R))
	}
	return sum / float64(n)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
