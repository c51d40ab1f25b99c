package match

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/feature/supply"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
)

func (m *Match) stateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, m.tick.Load())
	digestWriteU64(h, &tmp, m.nextUnitNum.Load())
	m.digestField(h, &tmp)
	m.digestUnits(h, &tmp)
	m.digestSupply(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

func (m *Match) digestField(h hash.Hash, tmp *[8]byte) {
	digestWriteU64(h, tmp, m.field.Revision)
	digestWriteU64(h, tmp, uint64(len(m.field.Scores)))
	for _, s := range m.field.Scores {
		digestWriteF64(h, tmp, s)
	}
}

func (m *Match) digestUnits(h hash.Hash, tmp *[8]byte) {
	live := m.arena.Live()
	digestWriteU64(h, tmp, uint64(len(live)))
	for _, u := range live {
		h.Write([]byte(u.ID))
		digestWriteI64(h, tmp, int64(u.Slot))
		digestWriteI64(h, tmp, int64(u.Team))
		h.Write([]byte(u.Type))
		digestWriteF64(h, tmp, u.Pos.X)
		digestWriteF64(h, tmp, u.Pos.Y)
		digestWriteF64(h, tmp, u.Rotation)
		digestWriteF64(h, tmp, u.Health)
		digestWriteF64(h, tmp, u.MaxHealth)
		digestWriteF64(h, tmp, u.MoraleScore)
		digestWriteF64(h, tmp, u.CombatPause)
		h.Write([]byte{boolByte(u.WasEngaged)})

		mv := m.arena.Move(u.Slot)
		if mv == nil {
			h.Write([]byte{0})
			continue
		}
		h.Write([]byte{1, boolByte(mv.Paused), boolByte(mv.Mode.RotateToFace)})
		digestWriteCell(h, tmp, mv.Destination)
		digestWriteU64(h, tmp, uint64(len(mv.Queue)))
		for _, c := range mv.Queue {
			digestWriteCell(h, tmp, c)
		}
		if mv.TargetRotation != nil {
			h.Write([]byte{1})
			digestWriteF64(h, tmp, *mv.TargetRotation)
		} else {
			h.Write([]byte{0})
		}
		digestWriteF64(h, tmp, mv.Mode.SpeedMultiplier)
		digestWriteF64(h, tmp, mv.Budget)
		digestWriteF64(h, tmp, mv.TransitionPause)
	}
	free := m.arena.FreeSlots()
	digestWriteU64(h, tmp, uint64(len(free)))
	for _, s := range free {
		digestWriteI64(h, tmp, int64(s))
	}
}

func (m *Match) digestSupply(h hash.Hash, tmp *[8]byte) {
	st := m.supply.Export()
	digestWriteU64(h, tmp, st.Ticks)
	h.Write([]byte{boolByte(st.Legacy)})
	for _, c := range st.Cities {
		h.Write([]byte(c.ID))
		digestWriteI64(h, tmp, int64(c.Owner))
		digestWriteF64(h, tmp, c.Stock)
		digestWriteF64(h, tmp, c.TripProgress)
		digestWriteF64(h, tmp, c.DecayProgress)
		digestWriteI64(h, tmp, int64(c.Spawned))
	}
	for _, l := range st.FarmLinks {
		h.Write([]byte(l.Farm))
		digestLine(h, tmp, l.Line)
	}
	for _, d := range st.Depots {
		h.Write([]byte(d.ID))
		digestWriteI64(h, tmp, int64(d.Owner))
		digestWriteF64(h, tmp, d.Phase)
		digestWriteF64(h, tmp, d.Stock)
		digestWriteF64(h, tmp, d.PulseProgress)
		digestLine(h, tmp, d.Line)
	}
	for _, l := range st.UnitLines {
		h.Write([]byte(l.UnitID))
		h.Write([]byte(l.City))
		digestLine(h, tmp, l.Line)
	}
}

func digestLine(h hash.Hash, tmp *[8]byte, l supply.Line) {
	h.Write([]byte{boolByte(l.Connected), boolByte(l.Complete)})
	digestWriteI64(h, tmp, int64(l.SeverIndex))
	digestWriteU64(h, tmp, uint64(len(l.Path)))
	for _, c := range l.Path {
		digestWriteCell(h, tmp, c)
	}
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hash.Hash, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteCell(h hash.Hash, tmp *[8]byte, c model.Cell) {
	digestWriteI64(h, tmp, int64(c.C))
	digestWriteI64(h, tmp, int64(c.R))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
