package tuning

import "sync/atomic"

// Store holds the tuning snapshot valid for the current tick.
// Writers swap whole snapshots; readers never see a partially updated value.
type Store struct {
	cur atomic.Pointer[Tuning]
}

func NewStore(t Tuning) *Store {
	s := &Store{}
	s.Swap(t)
	return s
}

// Load returns the current snapshot. Callers must treat it as read-only.
func (s *Store) Load() *Tuning {
	return s.cur.Load()
}

// Swap clamps t and installs it as the new snapshot.
func (s *Store) Swap(t Tuning) {
	t.Clamp()
	s.cur.Store(&t)
}
