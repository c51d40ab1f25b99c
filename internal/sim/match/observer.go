package match

import "github.com/Aricg/TacticalBlocks-sub001/internal/protocol"

// ObserverJoinRequest registers a read-only session that receives one
// encoded STATE frame per tick on Out. The match loop closes Out when the
// session leaves or is replaced.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte

	Format string
	// FieldEvery includes the influence grid every N ticks; 0 disables it.
	FieldEvery int
}

// ObserverSubscribeRequest changes the settings of an existing session.
type ObserverSubscribeRequest struct {
	SessionID  string
	Format     string
	FieldEvery int
}

type observerClient struct {
	id         string
	out        chan []byte
	format     string
	fieldEvery int
}

const maxFieldEvery = 10_000

func (m *Match) ObserverJoin() chan<- ObserverJoinRequest           { return m.observerJoin }
func (m *Match) ObserverSubscribe() chan<- ObserverSubscribeRequest { return m.observerSub }
func (m *Match) ObserverLeave() chan<- string                       { return m.observerLeave }

// Latest returns the most recent STATE frame. Safe from any goroutine.
func (m *Match) Latest() *protocol.StateMsg { return m.latest.Load() }

func (m *Match) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	if old := m.observers[req.SessionID]; old != nil {
		close(old.out)
	}
	m.observers[req.SessionID] = &observerClient{
		id:         req.SessionID,
		out:        req.Out,
		format:     normalizeFormat(req.Format),
		fieldEvery: clampInt(req.FieldEvery, 0, maxFieldEvery),
	}
}

func (m *Match) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := m.observers[req.SessionID]
	if c == nil {
		return
	}
	if req.Format != "" {
		c.format = normalizeFormat(req.Format)
	}
	c.fieldEvery = clampInt(req.FieldEvery, 0, maxFieldEvery)
}

func (m *Match) handleObserverLeave(sessionID string) {
	c := m.observers[sessionID]
	if c == nil {
		return
	}
	delete(m.observers, sessionID)
	close(c.out)
}

func (m *Match) closeObservers() {
	for id, c := range m.observers {
		delete(m.observers, id)
		close(c.out)
	}
}

// publish builds the tick's STATE frame, stores it as Latest and fans it out
// to observers. Frames are encoded once per (format, field) combination.
func (m *Match) publish(rep *TickReport) {
	msg := m.buildState(rep)
	m.latest.Store(&msg)
	if len(m.observers) == 0 {
		return
	}

	type frameKey struct {
		format string
		field  bool
	}
	frames := map[frameKey][]byte{}
	var fieldState *protocol.FieldState
	for _, c := range m.observers {
		withField := c.fieldEvery > 0 && rep.Tick%uint64(c.fieldEvery) == 0
		k := frameKey{c.format, withField}
		b, ok := frames[k]
		if !ok {
			out := msg
			if withField {
				if fieldState == nil {
					fieldState = m.fieldState()
				}
				out.Field = fieldState
			}
			var err error
			b, err = protocol.Encode(c.format, out)
			if err != nil {
				continue
			}
			frames[k] = b
		}
		sendLatest(c.out, b)
	}
}

func (m *Match) buildState(rep *TickReport) protocol.StateMsg {
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		MatchID:         m.cfg.ID,
		Tick:            rep.Tick,
		Digest:          rep.Digest,
		Outcome: protocol.OutcomeState{
			BlueUnits:  rep.Outcome.BlueUnits,
			RedUnits:   rep.Outcome.RedUnits,
			BlueCities: rep.Outcome.BlueCities,
			RedCities:  rep.Outcome.RedCities,
			Winner:     rep.Outcome.Winner,
		},
	}
	for _, u := range m.arena.Live() {
		msg.Units = append(msg.Units, protocol.UnitState{
			ID:         u.ID,
			Team:       u.Team.String(),
			Type:       u.Type,
			Pos:        [2]float64{u.Pos.X, u.Pos.Y},
			Rotation:   u.Rotation,
			Health:     u.Health,
			MaxHealth:  u.MaxHealth,
			Morale:     u.MoraleScore,
			Attacking:  u.Attacking,
			Moving:     m.arena.Move(u.Slot) != nil,
			Unsupplied: m.supply.Unsupplied(u.ID),
		})
	}
	for _, c := range m.supply.Cities() {
		msg.Cities = append(msg.Cities, protocol.CityState{
			ID:     c.ID,
			Owner:  c.Owner.String(),
			Anchor: [2]int{c.Anchor.C, c.Anchor.R},
			Stock:  c.Stock,
		})
	}
	for _, f := range rep.Flips {
		msg.Flips = append(msg.Flips, protocol.CityFlip{City: f.City, From: f.From.String(), To: f.To.String()})
	}
	for _, s := range rep.Spawns {
		msg.Spawns = append(msg.Spawns, protocol.SpawnInfo{City: s.City, UnitID: s.UnitID, Team: s.Team.String()})
	}
	for _, d := range rep.Deaths {
		msg.Deaths = append(msg.Deaths, d.ID)
	}
	return msg
}

func (m *Match) fieldState() *protocol.FieldState {
	scores := make([]float64, len(m.field.Scores))
	copy(scores, m.field.Scores)
	return &protocol.FieldState{Width: m.field.W, Height: m.field.H, Revision: m.field.Revision, Scores: scores}
}

func normalizeFormat(f string) string {
	if f == protocol.FormatMsgpack {
		return f
	}
	return protocol.FormatJSON
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
