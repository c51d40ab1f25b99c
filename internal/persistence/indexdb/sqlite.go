package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/snapshot"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of a match's tick log, events
// and snapshots. Writes are queued and applied by one goroutine; the JSONL
// logs stay the source of truth, so a full queue drops rows.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropEvent    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqEvent
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     match.TickLogEntry
	event    match.EventEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	MatchID       string
	Tick          uint64
	Path          string
	Units         int
	Cities        int
	FieldRevision uint64
	Owners        map[string]int8
}

// Stats reports writer queue health.
type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropEventTotal    uint64 `json:"drop_event_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			dt REAL NOT NULL,
			digest TEXT NOT NULL,
			commands INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			unit_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			team INTEGER NOT NULL,
			cmd_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_unit_tick ON commands(unit_id, tick);`,
		`CREATE TABLE IF NOT EXISTS events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			city TEXT,
			unit_id TEXT,
			team INTEGER NOT NULL,
			from_team INTEGER NOT NULL,
			to_team INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind_tick ON events(kind, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_city_tick ON events(city, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			match_id TEXT NOT NULL,
			path TEXT NOT NULL,
			units INTEGER NOT NULL,
			cities INTEGER NOT NULL,
			field_revision INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshot_cities (
			tick INTEGER NOT NULL,
			city_id TEXT NOT NULL,
			owner INTEGER NOT NULL,
			PRIMARY KEY (tick, city_id)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropEventTotal:    s.dropEvent.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry match.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteEvent(entry match.EventEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEvent, event: entry}:
	default:
		s.dropEvent.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		MatchID:       snap.Header.MatchID,
		Tick:          snap.Header.Tick,
		Path:          path,
		Units:         len(snap.Units),
		Cities:        len(snap.Cities),
		FieldRevision: snap.Field.Revision,
		Owners:        make(map[string]int8, len(snap.Cities)),
	}
	for _, c := range snap.Cities {
		r.Owners[c.ID] = c.Owner
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertTuning records the tuning values currently applied, keyed by digest.
func (s *SQLiteIndex) UpsertTuning(mapName string, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if mapName != "" {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('map',?)`, mapName); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO config(name,digest,json,updated_at) VALUES('tuning',?,?,?)`,
		hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,dt,digest,commands,raw_json) VALUES(?,?,?,?,?)`)
	insertCommand, _ := s.db.Prepare(`INSERT OR REPLACE INTO commands(tick,seq,unit_id,kind,team,cmd_json) VALUES(?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(tick,seq,kind,city,unit_id,team,from_team,to_team,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,match_id,path,units,cities,field_revision) VALUES(?,?,?,?,?,?)`)
	insertOwner, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshot_cities(tick,city_id,owner) VALUES(?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertCommand, insertEvent, insertSnapshot, insertOwner} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastEventTick uint64
		eventSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			raw, _ := json.Marshal(t)
			if !exec(insertTick, int64(t.Tick), t.DT, t.Digest, len(t.Commands), string(raw)) {
				continue
			}
			for i, c := range t.Commands {
				cj, _ := json.Marshal(c)
				if !exec(insertCommand, int64(t.Tick), i, c.UnitID, c.Kind, int(c.Team), string(cj)) {
					break
				}
			}

		case reqEvent:
			e := r.event
			if e.Tick != lastEventTick {
				lastEventTick = e.Tick
				eventSeq = 0
			}
			seq := eventSeq
			eventSeq++
			raw, _ := json.Marshal(e)
			exec(insertEvent, int64(e.Tick), seq, e.Kind, e.City, e.UnitID, int(e.Team), int(e.From), int(e.To), string(raw))

		case reqSnapshot:
			sn := r.snapshot
			if !exec(insertSnapshot, int64(sn.Tick), sn.MatchID, sn.Path, sn.Units, sn.Cities, int64(sn.FieldRevision)) {
				continue
			}
			for id, owner := range sn.Owners {
				if !exec(insertOwner, int64(sn.Tick), id, int(owner)) {
					break
				}
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
