// Package match runs one battle: it owns the unit arena, the influence field
// and the supply graph, and advances them through a fixed per-tick pipeline.
package match

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/snapshot"
	"github.com/Aricg/TacticalBlocks-sub001/internal/protocol"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/mapbundle"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/influence"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/morale"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/movement"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/supply"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/terrain"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

// deploySearchRadius bounds the ring search used to spread initial
// deployments around their anchor.
const deploySearchRadius = 8

type Config struct {
	ID     string
	Bundle *mapbundle.Bundle
	// Oracle defaults to a terrain grid built from the bundle rows.
	Oracle terrain.Oracle
	Tuning *tuning.Store
}

// TickLogEntry is the replay record of one tick: the commands applied at its
// boundary, the step length and the resulting state digest. Tuning is set on
// the first logged tick and on every tick that ran with a reloaded snapshot.
type TickLogEntry struct {
	Tick     uint64         `json:"tick"`
	DT       float64        `json:"dt"`
	Tuning   *tuning.Tuning `json:"tuning,omitempty"`
	Commands []Command      `json:"commands,omitempty"`
	Digest   string         `json:"digest"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// EventEntry is one notable battle event (spawn, death, city flip, outcome).
type EventEntry struct {
	Tick   uint64      `json:"tick"`
	Kind   string      `json:"kind"`
	City   string      `json:"city,omitempty"`
	UnitID string      `json:"unit_id,omitempty"`
	Team   model.Team  `json:"team,omitempty"`
	From   model.Team  `json:"from,omitempty"`
	To     model.Team  `json:"to,omitempty"`
	Cell   *model.Cell `json:"cell,omitempty"`
}

const (
	EventSpawn   = "SPAWN"
	EventDeath   = "DEATH"
	EventFlip    = "CITY_FLIP"
	EventOutcome = "OUTCOME"
)

type EventLogger interface {
	WriteEvent(entry EventEntry) error
}

type Match struct {
	cfg    Config
	oracle terrain.Oracle
	tuning *tuning.Store

	// router is rebuilt when the tuning snapshot changes terrain costs.
	router    *movement.Router
	routerFor *tuning.Tuning

	arena  *model.Arena
	engine *influence.Engine
	field  *influence.Grid
	supply *supply.System
	morale map[string]morale.Breakdown

	tick        atomic.Uint64
	nextUnitNum atomic.Uint64
	outcome     Outcome

	// announced is the last winner written to the event log.
	announced string

	inbox    chan Command
	stop     chan struct{}
	stopOnce sync.Once

	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	observers     map[string]*observerClient

	latest atomic.Pointer[protocol.StateMsg]

	tickLogger   TickLogger
	eventLogger  EventLogger
	snapshotSink chan<- snapshot.SnapshotV1

	// loggedTuning is the tuning snapshot last written to the tick log.
	loggedTuning *tuning.Tuning
}

func New(cfg Config) (*Match, error) {
	if cfg.Bundle == nil {
		return nil, errors.New("match: missing map bundle")
	}
	if cfg.Tuning == nil || cfg.Tuning.Load() == nil {
		return nil, errors.New("match: missing tuning")
	}
	cfg.Bundle.Normalize()
	if err := cfg.Bundle.Validate(); err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	o := cfg.Oracle
	if o == nil {
		g, err := terrain.NewGrid(cfg.Bundle.Width, cfg.Bundle.Height, cfg.Bundle.Terrain, cfg.Bundle.Hills)
		if err != nil {
			return nil, fmt.Errorf("match: terrain: %w", err)
		}
		o = g
	}
	if o.Width() != cfg.Bundle.Width || o.Height() != cfg.Bundle.Height {
		return nil, fmt.Errorf("match: terrain is %dx%d, map is %dx%d", o.Width(), o.Height(), cfg.Bundle.Width, cfg.Bundle.Height)
	}
	if cfg.ID == "" {
		cfg.ID = cfg.Bundle.Name
	}

	m := &Match{
		cfg:           cfg,
		oracle:        o,
		tuning:        cfg.Tuning,
		arena:         model.NewArena(o.Width(), o.Height()),
		engine:        influence.NewEngine(o.Width(), o.Height()),
		field:         influence.NewGrid(o.Width(), o.Height()),
		morale:        map[string]morale.Breakdown{},
		inbox:         make(chan Command, 1024),
		stop:          make(chan struct{}),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 64),
		observers:     map[string]*observerClient{},
	}
	m.routerFor = cfg.Tuning.Load()
	m.router = movement.NewRouter(o, m.routerFor.Movement)
	m.supply = supply.New(cfg.Bundle, m.router)

	if err := m.deploy(cfg.Bundle.Deployments); err != nil {
		return nil, err
	}
	m.outcome = m.computeOutcome()
	return m, nil
}

func (m *Match) deploy(deps []mapbundle.Deployment) error {
	tu := m.tuning.Load()
	for i, d := range deps {
		team, ok := model.ParseTeam(d.Team)
		if !ok || team == model.Neutral {
			return fmt.Errorf("match: deployment %d: bad team %q", i, d.Team)
		}
		typ := d.Type
		if typ == "" {
			typ = tu.Supply.SpawnUnitType
		}
		n := max(d.Count, 1)
		at := model.Vec2{X: d.At[0], Y: d.At[1]}
		for k := 0; k < n; k++ {
			pos := at
			if k > 0 || m.arena.OccupantAt(model.CellOf(at)) >= 0 || m.oracle.Impassable(model.CellOf(at).C, model.CellOf(at).R) {
				c, ok := supply.OpenCell(m.arena, m.oracle, model.CellOf(at), deploySearchRadius)
				if !ok {
					return fmt.Errorf("match: deployment %d: no open cell near (%.1f,%.1f)", i, at.X, at.Y)
				}
				pos = c.Center()
			}
			u := m.newUnit(team, typ, pos, tu)
			u.Rotation = model.WrapAngle(d.Rotation)
		}
	}
	return nil
}

func (m *Match) newUnit(team model.Team, unitType string, pos model.Vec2, tu *tuning.Tuning) *model.Unit {
	ut := tu.Type(unitType)
	u := &model.Unit{
		ID:          fmt.Sprintf("U%06d", m.nextUnitNum.Add(1)),
		Team:        team,
		Type:        unitType,
		Pos:         pos,
		Health:      ut.MaxHealth,
		MaxHealth:   ut.MaxHealth,
		MoraleScore: tu.Morale.MaxScore / 2,
	}
	m.arena.Add(u)
	return u
}

func (m *Match) ID() string                { return m.cfg.ID }
func (m *Match) CurrentTick() uint64       { return m.tick.Load() }
func (m *Match) Bundle() *mapbundle.Bundle { return m.cfg.Bundle }
func (m *Match) Tuning() *tuning.Store     { return m.tuning }

// SetTickLogger installs l. The next logged tick carries the tuning in force.
func (m *Match) SetTickLogger(l TickLogger) {
	m.tickLogger = l
	m.loggedTuning = nil
}

func (m *Match) SetEventLogger(l EventLogger) { m.eventLogger = l }

func (m *Match) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { m.snapshotSink = ch }

// currentRouter returns a router matching the current terrain costs.
func (m *Match) currentRouter(tu *tuning.Tuning) *movement.Router {
	if tu != m.routerFor {
		m.router = movement.NewRouter(m.oracle, tu.Movement)
		m.routerFor = tu
	}
	return m.router
}
