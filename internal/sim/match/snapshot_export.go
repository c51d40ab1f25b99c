package match

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/snapshot"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/influence"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/morale"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/supply"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
)

// ExportSnapshot captures the state at the current tick boundary. Header.Tick
// is the next tick Advance will run.
func (m *Match) ExportSnapshot() snapshot.SnapshotV1 {
	b := m.cfg.Bundle
	snap := snapshot.SnapshotV1{
		Header:      snapshot.Header{Version: snapshot.Version, MatchID: m.cfg.ID, Tick: m.tick.Load()},
		MapName:     b.Name,
		Width:       b.Width,
		Height:      b.Height,
		TickRateHz:  m.tuning.Load().TickRateHz,
		Terrain:     slices.Clone(b.Terrain),
		NextUnitNum: m.nextUnitNum.Load(),
		Field:       snapshot.FieldV1{Revision: m.field.Revision, Scores: slices.Clone(m.field.Scores)},
		FreeSlots:   m.arena.FreeSlots(),
	}
	for _, u := range m.arena.Live() {
		uv := snapshot.UnitV1{
			ID:          u.ID,
			Slot:        u.Slot,
			Team:        int8(u.Team),
			Type:        u.Type,
			X:           u.Pos.X,
			Y:           u.Pos.Y,
			Rotation:    u.Rotation,
			Health:      u.Health,
			MaxHealth:   u.MaxHealth,
			MoraleScore: u.MoraleScore,
			CombatPause: u.CombatPause,
			WasEngaged:  u.WasEngaged,
		}
		if mv := m.arena.Move(u.Slot); mv != nil {
			uv.Move = exportMove(mv)
		}
		snap.Units = append(snap.Units, uv)
	}

	st := m.supply.Export()
	snap.Legacy = st.Legacy
	snap.SupplyTicks = st.Ticks
	for _, c := range st.Cities {
		snap.Cities = append(snap.Cities, snapshot.CityV1{
			ID:            c.ID,
			Kind:          c.Kind,
			Owner:         int8(c.Owner),
			Anchor:        cellV1(c.Anchor),
			Zone:          cellsV1(c.Zone),
			Stock:         c.Stock,
			TripProgress:  c.TripProgress,
			DecayProgress: c.DecayProgress,
			Spawned:       c.Spawned,
		})
	}
	for _, l := range st.FarmLinks {
		snap.FarmLinks = append(snap.FarmLinks, snapshot.FarmLinkV1{Farm: l.Farm, City: l.City, Anchor: cellV1(l.Anchor), Line: lineV1(l.Line)})
	}
	for _, d := range st.Depots {
		snap.Depots = append(snap.Depots, snapshot.DepotV1{
			ID:            d.ID,
			City:          d.City,
			Anchor:        cellV1(d.Anchor),
			Owner:         int8(d.Owner),
			Phase:         d.Phase,
			Stock:         d.Stock,
			PulseProgress: d.PulseProgress,
			Line:          lineV1(d.Line),
		})
	}
	for _, l := range st.UnitLines {
		snap.UnitLines = append(snap.UnitLines, snapshot.UnitLineV1{UnitID: l.UnitID, Team: int8(l.Team), City: l.City, Line: lineV1(l.Line)})
	}
	return snap
}

// ImportSnapshot replaces the match state with snap. The match must have been
// built from the same map.
func (m *Match) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.Width != m.oracle.Width() || snap.Height != m.oracle.Height() {
		return fmt.Errorf("snapshot is %dx%d, match map is %dx%d", snap.Width, snap.Height, m.oracle.Width(), m.oracle.Height())
	}
	if len(snap.Field.Scores) != snap.Width*snap.Height {
		return errors.New("snapshot field size mismatch")
	}

	field := influence.NewGrid(snap.Width, snap.Height)
	copy(field.Scores, snap.Field.Scores)
	field.Revision = snap.Field.Revision

	arena := model.NewArena(snap.Width, snap.Height)
	units := make([]*model.Unit, 0, len(snap.Units))
	seen := map[string]bool{}
	slots := map[int]bool{}
	for _, uv := range snap.Units {
		if seen[uv.ID] || slots[uv.Slot] || uv.Slot < 0 {
			return fmt.Errorf("snapshot unit %s: duplicate id or slot %d", uv.ID, uv.Slot)
		}
		seen[uv.ID], slots[uv.Slot] = true, true
		units = append(units, &model.Unit{
			ID:          uv.ID,
			Slot:        uv.Slot,
			Team:        model.Team(uv.Team),
			Type:        uv.Type,
			Pos:         model.Vec2{X: uv.X, Y: uv.Y},
			Rotation:    uv.Rotation,
			Health:      uv.Health,
			MaxHealth:   uv.MaxHealth,
			MoraleScore: uv.MoraleScore,
			CombatPause: uv.CombatPause,
			WasEngaged:  uv.WasEngaged,
		})
	}
	arena.Restore(units, snap.FreeSlots)
	for i, uv := range snap.Units {
		if uv.Move != nil {
			arena.SetMove(units[i].Slot, importMove(uv.Move))
		}
	}

	st := supply.State{Ticks: snap.SupplyTicks, Legacy: snap.Legacy}
	for _, c := range snap.Cities {
		st.Cities = append(st.Cities, supply.City{
			ID:            c.ID,
			Kind:          c.Kind,
			Owner:         model.Team(c.Owner),
			Anchor:        cellOf(c.Anchor),
			Zone:          cellsOf(c.Zone),
			Stock:         c.Stock,
			TripProgress:  c.TripProgress,
			DecayProgress: c.DecayProgress,
			Spawned:       c.Spawned,
		})
	}
	for _, l := range snap.FarmLinks {
		st.FarmLinks = append(st.FarmLinks, supply.FarmLink{Farm: l.Farm, City: l.City, Anchor: cellOf(l.Anchor), Line: lineOf(l.Line)})
	}
	for _, d := range snap.Depots {
		st.Depots = append(st.Depots, supply.Depot{
			ID:            d.ID,
			City:          d.City,
			Anchor:        cellOf(d.Anchor),
			Owner:         model.Team(d.Owner),
			Phase:         d.Phase,
			Stock:         d.Stock,
			PulseProgress: d.PulseProgress,
			Line:          lineOf(d.Line),
		})
	}
	for _, l := range snap.UnitLines {
		st.UnitLines = append(st.UnitLines, supply.UnitLine{UnitID: l.UnitID, Team: model.Team(l.Team), City: l.City, Line: lineOf(l.Line)})
	}

	m.field = field
	m.arena = arena
	m.supply = supply.Import(st)
	m.morale = map[string]morale.Breakdown{}
	m.nextUnitNum.Store(snap.NextUnitNum)
	m.tick.Store(snap.Header.Tick)
	if snap.Header.MatchID != "" {
		m.cfg.ID = snap.Header.MatchID
	}
	m.outcome = m.computeOutcome()
	return nil
}

func exportMove(mv *model.MovementState) *snapshot.MoveV1 {
	out := &snapshot.MoveV1{
		Destination:     cellV1(mv.Destination),
		Queue:           cellsV1(mv.Queue),
		SpeedMultiplier: mv.Mode.SpeedMultiplier,
		RotateToFace:    mv.Mode.RotateToFace,
		Budget:          mv.Budget,
		Paused:          mv.Paused,
		TransitionPause: mv.TransitionPause,
	}
	if mv.TargetRotation != nil {
		r := *mv.TargetRotation
		out.TargetRotation = &r
	}
	return out
}

func importMove(mv *snapshot.MoveV1) *model.MovementState {
	out := &model.MovementState{
		Destination:     cellOf(mv.Destination),
		Queue:           cellsOf(mv.Queue),
		Mode:            model.CommandMode{SpeedMultiplier: mv.SpeedMultiplier, RotateToFace: mv.RotateToFace},
		Budget:          mv.Budget,
		Paused:          mv.Paused,
		TransitionPause: mv.TransitionPause,
	}
	if mv.TargetRotation != nil {
		r := *mv.TargetRotation
		out.TargetRotation = &r
	}
	return out
}

func cellV1(c model.Cell) snapshot.CellV1 { return snapshot.CellV1{C: c.C, R: c.R} }
func cellOf(c snapshot.CellV1) model.Cell { return model.Cell{C: c.C, R: c.R} }

func cellsV1(cs []model.Cell) []snapshot.CellV1 {
	if len(cs) == 0 {
		return nil
	}
	out := make([]snapshot.CellV1, len(cs))
	for i, c := range cs {
		out[i] = cellV1(c)
	}
	return out
}

func cellsOf(cs []snapshot.CellV1) []model.Cell {
	if len(cs) == 0 {
		return nil
	}
	out := make([]model.Cell, len(cs))
	for i, c := range cs {
		out[i] = cellOf(c)
	}
	return out
}

func lineV1(l supply.Line) snapshot.LineV1 {
	return snapshot.LineV1{Path: cellsV1(l.Path), Connected: l.Connected, SeverIndex: l.SeverIndex, Complete: l.Complete}
}

func lineOf(l snapshot.LineV1) supply.Line {
	return supply.Line{Path: cellsOf(l.Path), Connected: l.Connected, SeverIndex: l.SeverIndex, Complete: l.Complete}
}
