package model

// Arena stores live units in dense slots. Slots of dead units are reclaimed
// and reused, so per-unit side tables (movement, engagements) are plain
// slices indexed by slot.
type Arena struct {
	w, h int

	units   []*Unit
	moves   []*MovementState
	engaged [][]int32
	free    []int
	byID    map[string]int

	// occ holds the occupying slot per grid cell, -1 when empty.
	occ []int32
}

func NewArena(w, h int) *Arena {
	a := &Arena{
		w:    w,
		h:    h,
		byID: map[string]int{},
		occ:  make([]int32, w*h),
	}
	for i := range a.occ {
		a.occ[i] = -1
	}
	return a
}

func (a *Arena) Width() int  { return a.w }
func (a *Arena) Height() int { return a.h }

// Add places u into a free slot and returns the slot index.
func (a *Arena) Add(u *Unit) int {
	var slot int
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
		a.units[slot] = u
		a.moves[slot] = nil
		a.engaged[slot] = a.engaged[slot][:0]
	} else {
		slot = len(a.units)
		a.units = append(a.units, u)
		a.moves = append(a.moves, nil)
		a.engaged = append(a.engaged, nil)
	}
	u.Slot = slot
	a.byID[u.ID] = slot
	a.occupy(u.Cell(), slot)
	return slot
}

// Remove frees a slot together with its movement state and engagement edges.
func (a *Arena) Remove(slot int) {
	u := a.Get(slot)
	if u == nil {
		return
	}
	a.vacate(u.Cell(), slot)
	for _, other := range a.engaged[slot] {
		a.engaged[other] = dropEdge(a.engaged[other], int32(slot))
	}
	a.engaged[slot] = a.engaged[slot][:0]
	a.moves[slot] = nil
	a.units[slot] = nil
	delete(a.byID, u.ID)
	u.Slot = -1
	a.free = append(a.free, slot)
}

func dropEdge(edges []int32, slot int32) []int32 {
	out := edges[:0]
	for _, e := range edges {
		if e != slot {
			out = append(out, e)
		}
	}
	return out
}

func (a *Arena) Get(slot int) *Unit {
	if slot < 0 || slot >= len(a.units) {
		return nil
	}
	return a.units[slot]
}

func (a *Arena) ByID(id string) *Unit {
	slot, ok := a.byID[id]
	if !ok {
		return nil
	}
	return a.units[slot]
}

// Cap is the number of slots ever allocated (live or free).
func (a *Arena) Cap() int { return len(a.units) }

func (a *Arena) Len() int { return len(a.byID) }

// Live returns live units in slot order.
func (a *Arena) Live() []*Unit {
	out := make([]*Unit, 0, len(a.byID))
	for _, u := range a.units {
		if u != nil {
			out = append(out, u)
		}
	}
	return out
}

func (a *Arena) Move(slot int) *MovementState {
	if slot < 0 || slot >= len(a.moves) {
		return nil
	}
	return a.moves[slot]
}

func (a *Arena) SetMove(slot int, m *MovementState) {
	if slot < 0 || slot >= len(a.moves) || a.units[slot] == nil {
		return
	}
	a.moves[slot] = m
}

func (a *Arena) ClearMove(slot int) { a.SetMove(slot, nil) }

func (a *Arena) ClearEngagements() {
	for i := range a.engaged {
		a.engaged[i] = a.engaged[i][:0]
	}
}

// Engage records a bidirectional engagement edge.
func (a *Arena) Engage(x, y int) {
	a.engaged[x] = append(a.engaged[x], int32(y))
	a.engaged[y] = append(a.engaged[y], int32(x))
}

// Engaged returns the engagement targets of slot in record order.
func (a *Arena) Engaged(slot int) []int32 {
	if slot < 0 || slot >= len(a.engaged) {
		return nil
	}
	return a.engaged[slot]
}

func (a *Arena) InBounds(c Cell) bool {
	return c.C >= 0 && c.R >= 0 && c.C < a.w && c.R < a.h
}

// OccupantAt returns the slot occupying c, or -1.
func (a *Arena) OccupantAt(c Cell) int {
	if !a.InBounds(c) {
		return -1
	}
	return int(a.occ[c.R*a.w+c.C])
}

// Relocate moves a unit to p, keeping occupancy in sync.
func (a *Arena) Relocate(u *Unit, p Vec2) {
	from, to := u.Cell(), CellOf(p)
	u.Pos = p
	if from == to {
		return
	}
	a.vacate(from, u.Slot)
	a.occupy(to, u.Slot)
}

func (a *Arena) occupy(c Cell, slot int) {
	if !a.InBounds(c) {
		return
	}
	i := c.R*a.w + c.C
	if a.occ[i] < 0 {
		a.occ[i] = int32(slot)
	}
}

func (a *Arena) vacate(c Cell, slot int) {
	if !a.InBounds(c) {
		return
	}
	i := c.R*a.w + c.C
	if a.occ[i] == int32(slot) {
		a.occ[i] = -1
		// Another unit may share the cell (deployment overlap); hand it over.
		for s, u := range a.units {
			if u != nil && s != slot && u.Cell() == c {
				a.occ[i] = int32(s)
				break
			}
		}
	}
}

// FreeSlots returns the reusable slots in the order Add will hand them out
// in reverse.
func (a *Arena) FreeSlots() []int {
	out := make([]int, len(a.free))
	copy(out, a.free)
	return out
}

// Restore rebuilds the arena with every unit at its recorded Slot. Slots that
// hold no unit become free; the recorded free order is kept where given.
func (a *Arena) Restore(units []*Unit, free []int) {
	n := 0
	for _, u := range units {
		n = max(n, u.Slot+1)
	}
	for _, s := range free {
		n = max(n, s+1)
	}
	a.units = make([]*Unit, n)
	a.moves = make([]*MovementState, n)
	a.engaged = make([][]int32, n)
	a.byID = map[string]int{}
	for i := range a.occ {
		a.occ[i] = -1
	}
	for _, u := range units {
		a.units[u.Slot] = u
		a.byID[u.ID] = u.Slot
		a.occupy(u.Cell(), u.Slot)
	}
	a.free = a.free[:0]
	listed := make([]bool, n)
	for _, s := range free {
		if s >= 0 && a.units[s] == nil && !listed[s] {
			a.free = append(a.free, s)
			listed[s] = true
		}
	}
	for s := n - 1; s >= 0; s-- {
		if a.units[s] == nil && !listed[s] {
			a.free = append([]int{s}, a.free...)
		}
	}
}
