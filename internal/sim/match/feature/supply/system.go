package supply

import (
	"math"
	"sort"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/mapbundle"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/influence"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/movement"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/terrain"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

// progressEps absorbs float drift so that N steps of 1/N still complete a trip.
const progressEps = 1e-9

// City is a spawn source: owner, anchor and the production accumulators.
type City struct {
	ID     string       `json:"id"`
	Kind   string       `json:"kind"`
	Owner  model.Team   `json:"owner"`
	Anchor model.Cell   `json:"anchor"`
	Zone   []model.Cell `json:"zone"`

	Stock         float64 `json:"stock"`
	TripProgress  float64 `json:"trip_progress"`
	DecayProgress float64 `json:"decay_progress"`
	Spawned       int     `json:"spawned"`
}

func (c *City) reset() {
	c.Stock = 0
	c.TripProgress = 0
	c.DecayProgress = 0
}

type FarmLink struct {
	Farm   string     `json:"farm"`
	City   string     `json:"city"`
	Anchor model.Cell `json:"anchor"`
	Line
}

type Depot struct {
	ID            string     `json:"id"`
	City          string     `json:"city"`
	Anchor        model.Cell `json:"anchor"`
	Owner         model.Team `json:"owner"`
	Phase         float64    `json:"phase"`
	Stock         float64    `json:"stock"`
	PulseProgress float64    `json:"pulse_progress"`
	Line
}

func (d *Depot) reset() {
	d.Phase = 0
	d.Stock = 0
	d.PulseProgress = 0
}

// UnitLine ties a unit to its nearest friendly city.
type UnitLine struct {
	UnitID string     `json:"unit_id"`
	Team   model.Team `json:"team"`
	City   string     `json:"city"`
	Line
}

// Env is what one supply step reads and mutates.
type Env struct {
	Arena  *model.Arena
	Field  *influence.Grid
	Oracle terrain.Oracle
	Tuning *tuning.Tuning
	// Spawn places a new unit for team on cell and returns it.
	Spawn func(team model.Team, unitType string, at model.Cell) *model.Unit
}

type SpawnEvent struct {
	City   string     `json:"city"`
	UnitID string     `json:"unit_id"`
	Team   model.Team `json:"team"`
	Cell   model.Cell `json:"cell"`
}

type Result struct {
	Spawns  []SpawnEvent
	Heals   int
	Severed int
}

// System owns every supply accumulator of one match.
type System struct {
	cities    []*City
	byID      map[string]*City
	links     []*FarmLink
	depots    []*Depot
	unitLines map[string]*UnitLine
	// legacy maps carry no farm links; every owned city counts as supplied.
	legacy bool
	ticks  uint64
}

// New builds the supply graph from a bundle. Farm and depot paths are traced
// once here with the router.
func New(b *mapbundle.Bundle, r *movement.Router) *System {
	s := &System{
		byID:      map[string]*City{},
		unitLines: map[string]*UnitLine{},
		legacy:    len(b.FarmLinks) == 0,
	}
	for _, id := range b.CityIDs() {
		bc := b.City(id)
		owner := model.Neutral
		if t, ok := model.ParseTeam(bc.Team); ok {
			owner = t
		}
		c := &City{
			ID:     bc.ID,
			Kind:   bc.Kind,
			Owner:  owner,
			Anchor: model.Cell{C: bc.Anchor[0], R: bc.Anchor[1]},
		}
		for _, z := range bc.Zone {
			c.Zone = append(c.Zone, model.Cell{C: z[0], R: z[1]})
		}
		if len(c.Zone) == 0 {
			c.Zone = []model.Cell{c.Anchor}
		}
		s.cities = append(s.cities, c)
		s.byID[c.ID] = c
	}
	for _, fl := range b.FarmLinks {
		f := b.Farm(fl.Farm)
		city := s.byID[fl.City]
		if f == nil || city == nil {
			continue
		}
		from := model.Cell{C: f.Anchor[0], R: f.Anchor[1]}
		s.links = append(s.links, &FarmLink{Farm: f.ID, City: city.ID, Anchor: from, Line: trace(r, from, city.Anchor)})
	}
	for _, bd := range b.Depots {
		city := s.byID[bd.City]
		if city == nil {
			continue
		}
		at := model.Cell{C: bd.Anchor[0], R: bd.Anchor[1]}
		s.depots = append(s.depots, &Depot{ID: bd.ID, City: city.ID, Anchor: at, Owner: city.Owner, Line: trace(r, city.Anchor, at)})
	}
	sort.Slice(s.depots, func(i, j int) bool { return s.depots[i].ID < s.depots[j].ID })
	return s
}

func trace(r *movement.Router, from, to model.Cell) Line {
	path := append([]model.Cell{from}, r.Segment(from, to)...)
	return Line{Path: path, Complete: path[len(path)-1] == to, SeverIndex: -1}
}

func (s *System) City(id string) *City { return s.byID[id] }

func (s *System) Cities() []*City { return s.cities }

// SetOwner hands a city to team and zeroes the city and its depots'
// accumulators. It reports whether ownership changed.
func (s *System) SetOwner(id string, team model.Team) bool {
	c := s.byID[id]
	if c == nil || c.Owner == team {
		return false
	}
	c.Owner = team
	c.reset()
	for _, d := range s.depots {
		if d.City == id {
			d.Owner = team
			d.reset()
		}
	}
	return true
}

// Step runs one supply tick: line evaluation, city production and spawning,
// depot delivery and pulses.
func (s *System) Step(env Env, dt float64) Result {
	var res Result
	tu := env.Tuning
	st := tu.Supply
	severAbs := st.SeverThreshold * tu.Influence.MaxAbsScore
	s.ticks++

	connected := map[string]int{}
	for _, l := range s.links {
		l.Evaluate(s.byID[l.City].Owner, env.Field, env.Oracle, severAbs)
		if l.Connected {
			connected[l.City]++
		} else {
			res.Severed++
		}
	}
	if s.legacy {
		for _, c := range s.cities {
			if c.Owner != model.Neutral {
				connected[c.ID] = 1
			}
		}
	}

	tripDuration := st.GenerationInterval / st.PerUnitThreshold
	for _, c := range s.cities {
		if c.Owner == model.Neutral {
			c.reset()
			continue
		}
		if n := connected[c.ID]; n > 0 {
			c.DecayProgress = 0
			c.TripProgress += float64(n) * dt / tripDuration
			whole := math.Floor(c.TripProgress + progressEps)
			if whole > 0 {
				c.Stock += whole
				c.TripProgress = math.Max(0, c.TripProgress-whole)
			}
		} else {
			c.TripProgress = 0
			c.DecayProgress += dt / tripDuration
			whole := math.Floor(c.DecayProgress + progressEps)
			if whole > 0 {
				c.Stock = math.Max(0, c.Stock-whole)
				c.DecayProgress = math.Max(0, c.DecayProgress-whole)
			}
		}
		if c.Stock >= st.PerUnitThreshold && env.Spawn != nil {
			at, ok := OpenCell(env.Arena, env.Oracle, c.Anchor, st.SpawnSearchRadius)
			if !ok {
				continue
			}
			u := env.Spawn(c.Owner, st.SpawnUnitType, at)
			if u == nil {
				continue
			}
			c.Stock -= st.PerUnitThreshold
			c.Spawned++
			res.Spawns = append(res.Spawns, SpawnEvent{City: c.ID, UnitID: u.ID, Team: c.Owner, Cell: at})
		}
	}

	for _, d := range s.depots {
		res.Heals += s.stepDepot(env, d, severAbs, dt)
		if !d.Connected && d.Owner != model.Neutral {
			res.Severed++
		}
	}

	s.stepUnitLines(env, severAbs)
	for _, l := range s.unitLines {
		if !l.Connected {
			res.Severed++
		}
	}
	return res
}

func (s *System) stepDepot(env Env, d *Depot, severAbs, dt float64) int {
	st := env.Tuning.Supply
	city := s.byID[d.City]
	if city.Owner != d.Owner {
		d.Owner = city.Owner
		d.reset()
	}
	if d.Owner == model.Neutral {
		d.Connected = false
		d.SeverIndex = -1
		return 0
	}
	d.Evaluate(d.Owner, env.Field, env.Oracle, severAbs)
	if d.Connected {
		next := d.Phase + dt/st.DepotTravelTime
		if r := math.Round(next); math.Abs(next-r) < progressEps {
			next = r
		}
		// Every odd boundary crossed completes an outbound leg.
		for b := math.Floor(d.Phase) + 1; b <= next; b++ {
			if int(b)%2 == 1 {
				d.deliver(city, st)
			}
		}
		d.Phase = math.Mod(next, 2)
	}

	heals := 0
	d.PulseProgress += dt
	for d.PulseProgress >= st.DepotPulseInterval {
		d.PulseProgress -= st.DepotPulseInterval
		if d.Stock < st.DepotPulseCost {
			continue
		}
		d.Stock -= st.DepotPulseCost
		heals += heal(env.Arena, d.Anchor.Center(), d.Owner, st.DepotPulseRadius, st.DepotPulseHeal)
	}
	return heals
}

// deliver completes an outbound leg by pulling stock out of the city.
func (d *Depot) deliver(city *City, st tuning.SupplyTuning) {
	pull := math.Min(st.DepotTripSize, city.Stock)
	pull = math.Min(pull, st.DepotMaxStock-d.Stock)
	if pull <= 0 {
		return
	}
	city.Stock -= pull
	d.Stock += pull
}

func heal(a *model.Arena, at model.Vec2, team model.Team, radius, amount float64) int {
	n := 0
	r2 := radius * radius
	for _, u := range a.Live() {
		if u.Team != team || u.Health >= u.MaxHealth || model.Dist2(u.Pos, at) > r2 {
			continue
		}
		u.Health = math.Min(u.MaxHealth, u.Health+amount)
		n++
	}
	return n
}

// OpenCell searches outward rings around anchor for the first open,
// passable cell.
func OpenCell(a *model.Arena, o terrain.Oracle, anchor model.Cell, radius int) (model.Cell, bool) {
	for ring := 0; ring <= radius; ring++ {
		for dr := -ring; dr <= ring; dr++ {
			for dc := -ring; dc <= ring; dc++ {
				if max(abs(dc), abs(dr)) != ring {
					continue
				}
				c := model.Cell{C: anchor.C + dc, R: anchor.R + dr}
				if !a.InBounds(c) || o.Impassable(c.C, c.R) || a.OccupantAt(c) >= 0 {
					continue
				}
				return c, true
			}
		}
	}
	return model.Cell{}, false
}

func (s *System) stepUnitLines(env Env, severAbs float64) {
	live := map[string]bool{}
	refresh := (s.ticks-1)%uint64(max(1, env.Tuning.Supply.UnitLineRefreshTicks)) == 0
	for _, u := range env.Arena.Live() {
		live[u.ID] = true
		l := s.unitLines[u.ID]
		if l == nil || refresh || s.byID[l.City] == nil || s.byID[l.City].Owner != u.Team {
			city := s.nearestCity(u.Pos, u.Team)
			if city == nil {
				s.unitLines[u.ID] = &UnitLine{UnitID: u.ID, Team: u.Team, Line: Line{SeverIndex: -1}}
				continue
			}
			from := u.Cell()
			path := append([]model.Cell{from}, movement.Line(from, city.Anchor, nil)...)
			l = &UnitLine{UnitID: u.ID, Team: u.Team, City: city.ID, Line: Line{Path: path, Complete: true}}
			s.unitLines[u.ID] = l
		}
		l.Evaluate(u.Team, env.Field, env.Oracle, severAbs)
	}
	for id := range s.unitLines {
		if !live[id] {
			delete(s.unitLines, id)
		}
	}
}

func (s *System) nearestCity(p model.Vec2, team model.Team) *City {
	var best *City
	bestD := math.Inf(1)
	for _, c := range s.cities {
		if c.Owner != team {
			continue
		}
		if d := model.Dist2(p, c.Anchor.Center()); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

// UnitLine returns the current supply line of a unit, or nil.
func (s *System) UnitLine(id string) *UnitLine { return s.unitLines[id] }

// Unsupplied reports whether a unit's line is cut. A unit with no friendly
// city left counts as cut off.
func (s *System) Unsupplied(id string) bool {
	l := s.unitLines[id]
	return l != nil && !l.Connected
}

// BlockedSources stacks the sever cells of every cut line into static
// influence sources for the owning team.
func (s *System) BlockedSources(power float64) []influence.StaticSource {
	type key struct {
		cell model.Cell
		team model.Team
	}
	counts := map[key]int{}
	add := func(l *Line, team model.Team) {
		if team == model.Neutral {
			return
		}
		if c, ok := l.Endpoint(); ok {
			counts[key{c, team}]++
		}
	}
	for _, l := range s.links {
		add(&l.Line, s.byID[l.City].Owner)
	}
	for _, d := range s.depots {
		add(&d.Line, d.Owner)
	}
	for _, l := range s.unitLines {
		add(&l.Line, l.Team)
	}
	out := make([]influence.StaticSource, 0, len(counts))
	for k, n := range counts {
		out = append(out, influence.StaticSource{Cell: k.cell, Team: k.team, Power: power * float64(n), Kind: influence.KindBlockedSupply})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Cell.R != b.Cell.R {
			return a.Cell.R < b.Cell.R
		}
		if a.Cell.C != b.Cell.C {
			return a.Cell.C < b.Cell.C
		}
		return a.Team < b.Team
	})
	return out
}

// CitySources returns one static source per owned city.
func (s *System) CitySources(power float64) []influence.StaticSource {
	var out []influence.StaticSource
	for _, c := range s.cities {
		if c.Owner == model.Neutral {
			continue
		}
		out = append(out, influence.StaticSource{Cell: c.Anchor, Team: c.Owner, Power: power, Kind: influence.KindCity})
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
