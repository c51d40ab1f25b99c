package match

import (
	"math"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/combat"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/control"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/influence"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/morale"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/movement"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/supply"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

// TickReport summarizes what one Advance call did.
type TickReport struct {
	Tick uint64  `json:"tick"`
	DT   float64 `json:"dt"`

	Applied  []Command   `json:"applied,omitempty"`
	Rejected []Rejection `json:"rejected,omitempty"`

	Influence   influence.Stats     `json:"influence"`
	Engagements int                 `json:"engagements"`
	Attackers   int                 `json:"attackers"`
	Damage      float64             `json:"damage"`
	Deaths      []combat.Casualty   `json:"deaths,omitempty"`
	Moved       int                 `json:"moved"`
	Arrived     []string            `json:"arrived,omitempty"`
	Aborted     []string            `json:"aborted,omitempty"`
	Spawns      []supply.SpawnEvent `json:"spawns,omitempty"`
	Heals       int                 `json:"heals"`
	Severed     int                 `json:"severed"`
	Flips       []control.Flip      `json:"flips,omitempty"`

	Outcome Outcome `json:"outcome"`
	Digest  string  `json:"digest"`
}

// Advance applies every queued command and runs one tick of dt seconds.
// It must not be called while Run is active.
func (m *Match) Advance(dt float64) TickReport {
	var cmds []Command
	for len(m.inbox) > 0 {
		cmds = append(cmds, <-m.inbox)
	}
	return m.stepInternal(cmds, dt)
}

// StepOnce runs one tick with exactly cmds, bypassing the inbox. Replay uses
// it to re-drive logged ticks.
func (m *Match) StepOnce(cmds []Command, dt float64) (uint64, string) {
	r := m.stepInternal(cmds, dt)
	return r.Tick, r.Digest
}

// stepInternal is the fixed tick pipeline: commands, influence, morale,
// combat, motion, supply, control. Static sources are derived from the supply
// state left by the previous tick, so ownership changes reach the field one
// tick later.
func (m *Match) stepInternal(cmds []Command, dt float64) TickReport {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		dt = 0
	}
	tu := m.tuning.Load()
	nowTick := m.tick.Load()
	rep := TickReport{Tick: nowTick, DT: dt}

	rep.Applied, rep.Rejected = m.applyCommands(cmds, nowTick)

	statics := m.supply.CitySources(tu.Influence.CityPower)
	statics = append(statics, m.supply.BlockedSources(tu.Influence.BlockedSupplyPower)...)
	m.field = m.engine.Compute(m.field, influence.Inputs{Units: m.unitSources(tu), Statics: statics}, tu.Influence, dt)
	rep.Influence = m.engine.LastStats()

	m.stepMorale(tu)

	cr := combat.Step(m.arena, tu, dt)
	rep.Engagements, rep.Attackers, rep.Damage, rep.Deaths = cr.Engagements, cr.Attackers, cr.Damage, cr.Killed
	for _, d := range cr.Killed {
		delete(m.morale, d.ID)
	}

	mr := movement.Step(m.arena, m.oracle, tu, dt)
	rep.Moved, rep.Arrived, rep.Aborted = mr.Moved, mr.Arrived, mr.Aborted

	sr := m.supply.Step(supply.Env{
		Arena:  m.arena,
		Field:  m.field,
		Oracle: m.oracle,
		Tuning: tu,
		Spawn: func(team model.Team, unitType string, at model.Cell) *model.Unit {
			return m.newUnit(team, unitType, at.Center(), tu)
		},
	}, dt)
	rep.Spawns, rep.Heals, rep.Severed = sr.Spawns, sr.Heals, sr.Severed

	rep.Flips = control.Resolve(m.zones(), m.arena.Live())
	for _, f := range rep.Flips {
		m.supply.SetOwner(f.City, f.To)
	}

	m.outcome = m.computeOutcome()
	rep.Outcome = m.outcome

	nextTick := nowTick + 1
	m.tick.Store(nextTick)
	rep.Digest = m.stateDigest()

	if m.tickLogger != nil {
		entry := TickLogEntry{Tick: nowTick, DT: dt, Commands: rep.Applied, Digest: rep.Digest}
		if tu != m.loggedTuning {
			entry.Tuning = tu
			m.loggedTuning = tu
		}
		_ = m.tickLogger.WriteTick(entry)
	}
	m.logEvents(&rep)

	// Snapshot every N ticks, labelled with the next tick to run.
	if m.snapshotSink != nil && tu.SnapshotEveryTicks > 0 && nextTick%uint64(tu.SnapshotEveryTicks) == 0 {
		select {
		case m.snapshotSink <- m.ExportSnapshot():
		default:
			// Drop snapshot if sink is backed up.
		}
	}

	m.publish(&rep)
	return rep
}

func (m *Match) unitSources(tu *tuning.Tuning) []influence.UnitSource {
	live := m.arena.Live()
	out := make([]influence.UnitSource, 0, len(live))
	for _, u := range live {
		out = append(out, influence.UnitSource{
			Pos:       u.Pos,
			Team:      u.Team,
			Health:    u.Health,
			TypePower: tu.Type(u.Type).Power,
		})
	}
	return out
}

// stepMorale reads the fresh field and the supply lines left by the previous
// tick.
func (m *Match) stepMorale(tu *tuning.Tuning) {
	for _, u := range m.arena.Live() {
		b := morale.Evaluate(m.field, m.oracle, u.Pos, u.Team, m.supply.Unsupplied(u.ID), tu.Morale, tu.Influence.MaxAbsScore)
		u.MoraleScore = b.Score
		m.morale[u.ID] = b
	}
}

func (m *Match) zones() []control.Zone {
	cities := m.supply.Cities()
	out := make([]control.Zone, 0, len(cities))
	for _, c := range cities {
		cells := c.Zone
		if len(cells) == 0 {
			cells = []model.Cell{c.Anchor}
		}
		out = append(out, control.Zone{City: c.ID, Owner: c.Owner, Cells: cells})
	}
	return out
}

func (m *Match) logEvents(rep *TickReport) {
	if m.eventLogger == nil {
		return
	}
	for _, d := range rep.Deaths {
		cell := d.Cell
		_ = m.eventLogger.WriteEvent(EventEntry{Tick: rep.Tick, Kind: EventDeath, UnitID: d.ID, Team: d.Team, Cell: &cell})
	}
	for _, s := range rep.Spawns {
		cell := s.Cell
		_ = m.eventLogger.WriteEvent(EventEntry{Tick: rep.Tick, Kind: EventSpawn, City: s.City, UnitID: s.UnitID, Team: s.Team, Cell: &cell})
	}
	for _, f := range rep.Flips {
		_ = m.eventLogger.WriteEvent(EventEntry{Tick: rep.Tick, Kind: EventFlip, City: f.City, From: f.From, To: f.To})
	}
	if w := rep.Outcome.Winner; w != m.announced {
		m.announced = w
		if w != "" {
			team, _ := model.ParseTeam(w)
			_ = m.eventLogger.WriteEvent(EventEntry{Tick: rep.Tick, Kind: EventOutcome, Team: team})
		}
	}
}
