package model

import "strings"

type Team int8

const (
	Neutral Team = 0
	Blue    Team = 1
	Red     Team = -1
)

// Sign is the influence sign of a team: blue positive, red negative.
func (t Team) Sign() float64 { return float64(t) }

func (t Team) Enemy() Team { return -t }

func (t Team) String() string {
	switch t {
	case Blue:
		return "blue"
	case Red:
		return "red"
	default:
		return "neutral"
	}
}

func ParseTeam(s string) (Team, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blue":
		return Blue, true
	case "red":
		return Red, true
	case "", "neutral", "none":
		return Neutral, true
	}
	return Neutral, false
}
