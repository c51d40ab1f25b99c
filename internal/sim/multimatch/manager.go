package multimatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/mapbundle"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

type Runtime struct {
	Spec  MatchSpec
	Match *match.Match
}

// MatchRef is the public listing entry for a hosted match.
type MatchRef struct {
	ID      string `json:"id"`
	Map     string `json:"map"`
	Tick    uint64 `json:"tick"`
	Winner  string `json:"winner,omitempty"`
	Default bool   `json:"default,omitempty"`
}

// Manager owns a fixed set of matches. Matches share no mutable state; the
// manager only routes lookups and runs their loops side by side.
type Manager struct {
	mu        sync.RWMutex
	runtimes  map[string]*Runtime
	order     []string
	defaultID string
}

// BuildRuntimes loads every configured map and creates its match. All
// matches read tuning from the same store.
func BuildRuntimes(cfg Config, store *tuning.Store) (map[string]*Runtime, error) {
	out := make(map[string]*Runtime, len(cfg.Matches))
	for _, spec := range cfg.Matches {
		b, err := mapbundle.Load(spec.Map)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", spec.ID, err)
		}
		m, err := match.New(match.Config{ID: spec.ID, Bundle: b, Tuning: store})
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", spec.ID, err)
		}
		out[spec.ID] = &Runtime{Spec: spec, Match: m}
	}
	return out, nil
}

func NewManager(cfg Config, runtimes map[string]*Runtime) (*Manager, error) {
	if len(runtimes) == 0 {
		return nil, fmt.Errorf("empty runtimes")
	}
	m := &Manager{runtimes: runtimes, defaultID: cfg.DefaultMatchID}
	for id := range runtimes {
		m.order = append(m.order, id)
	}
	sort.Strings(m.order)
	if _, ok := runtimes[m.defaultID]; !ok {
		m.defaultID = m.order[0]
	}
	return m, nil
}

func (m *Manager) MatchIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) DefaultID() string { return m.defaultID }

// Runtime returns the match with the given id; an empty id selects the
// default match.
func (m *Manager) Runtime(id string) *Runtime {
	if id == "" {
		id = m.defaultID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runtimes[id]
}

// Match returns the match with the given id, or nil.
func (m *Manager) Match(id string) *match.Match {
	if rt := m.Runtime(id); rt != nil {
		return rt.Match
	}
	return nil
}

// Manifest lists hosted matches. It only reads atomics and the latest
// published frame, so it is safe while matches run.
func (m *Manager) Manifest() []MatchRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MatchRef, 0, len(m.order))
	for _, id := range m.order {
		rt := m.runtimes[id]
		ref := MatchRef{ID: id, Map: rt.Match.Bundle().Name, Tick: rt.Match.CurrentTick(), Default: id == m.defaultID}
		if st := rt.Match.Latest(); st != nil {
			ref.Winner = st.Outcome.Winner
		}
		out = append(out, ref)
	}
	return out
}

// Run drives every match until ctx is cancelled. A match that fails stops
// the others.
func (m *Manager) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range m.MatchIDs() {
		rt := m.Runtime(id)
		g.Go(func() error {
			err := rt.Match.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("match %s: %w", rt.Spec.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Stop asks every match loop to return.
func (m *Manager) Stop() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rt := range m.runtimes {
		rt.Match.Stop()
	}
}
