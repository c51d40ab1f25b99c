package match

import (
	"testing"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/mapbundle"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

// skirmishBundle is a 16x8 open field: one home city per side, a neutral
// mill in the north, two blue units and one red unit.
func skirmishBundle() *mapbundle.Bundle {
	return &mapbundle.Bundle{
		Name:   "skirmish-test",
		Width:  16,
		Height: 8,
		Cities: []mapbundle.City{
			{ID: "blue-home", Kind: "home", Team: "blue", Anchor: [2]int{1, 4}},
			{ID: "mill", Kind: "neutral", Anchor: [2]int{8, 1}},
			{ID: "red-home", Kind: "home", Team: "red", Anchor: [2]int{14, 4}},
		},
		Deployments: []mapbundle.Deployment{
			{Team: "blue", At: [2]float64{3.5, 4.5}, Count: 2},
			{Team: "red", At: [2]float64{12.5, 4.5}},
		},
	}
}

func newTestMatch(t *testing.T, b *mapbundle.Bundle) *Match {
	t.Helper()
	return newTestMatchWithTuning(t, b, tuning.Defaults())
}

func newTestMatchWithTuning(t *testing.T, b *mapbundle.Bundle, tu tuning.Tuning) *Match {
	t.Helper()
	m, err := New(Config{ID: "test", Bundle: b, Tuning: tuning.NewStore(tu)})
	if err != nil {
		t.Fatalf("new match: %v", err)
	}
	return m
}

func advanceN(m *Match, n int, dt float64) []TickReport {
	out := make([]TickReport, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, m.Advance(dt))
	}
	return out
}

type memTickLogger struct{ entries []TickLogEntry }

func (l *memTickLogger) WriteTick(e TickLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

type memEventLogger struct{ entries []EventEntry }

func (l *memEventLogger) WriteEvent(e EventEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

func (l *memEventLogger) kinds(kind string) []EventEntry {
	var out []EventEntry
	for _, e := range l.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
