package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/archive"
	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/indexdb"
	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/snapshot"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
)

func sampleSnapshot(tick uint64, redOwner int8) snapshot.SnapshotV1 {
	return snapshot.SnapshotV1{
		Header:  snapshot.Header{Version: snapshot.Version, MatchID: "m1", Tick: tick},
		MapName: "skirmish",
		Units:   []snapshot.UnitV1{{ID: "U000001", Team: 1}, {ID: "U000002", Team: 1}},
		Cities: []snapshot.CityV1{
			{ID: "blue-home", Owner: 1},
			{ID: "red-home", Owner: redOwner},
		},
		Field: snapshot.FieldV1{Revision: 3},
		UnitLines: []snapshot.UnitLineV1{
			{UnitID: "U000001", Team: 1, City: "blue-home", Line: snapshot.LineV1{Connected: true, SeverIndex: -1}},
			{UnitID: "U000002", Team: 1, City: "blue-home", Line: snapshot.LineV1{Connected: false, SeverIndex: 2}},
		},
	}
}

func TestSummarize(t *testing.T) {
	s := summarize(sampleSnapshot(40, -1))
	if s.Tick != 40 || s.Units["blue"] != 2 || s.Cities["red-home"] != "red" || s.Unsupplied != 1 || s.Winner != "" {
		t.Fatalf("summary=%+v", s)
	}
	s = summarize(sampleSnapshot(41, 1))
	if s.Winner != "blue" {
		t.Fatalf("expected blue winner: %+v", s)
	}
}

func TestListMatches(t *testing.T) {
	dataDir := t.TempDir()
	for _, id := range []string{"beta", "alpha"} {
		dir := filepath.Join(dataDir, "matches", id)
		p := filepath.Join(dir, "snapshots", snapshot.FileName(12))
		owner := int8(-1)
		if id == "alpha" {
			owner = 1
		}
		snap := sampleSnapshot(12, owner)
		if err := snapshot.WriteSnapshot(p, snap); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, _, err := archive.ArchiveFinalSnapshot(dir, p, snap); err != nil {
			t.Fatalf("archive: %v", err)
		}
	}
	_ = os.MkdirAll(filepath.Join(dataDir, "matches", "empty"), 0o755)

	ls, err := listMatches(dataDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ls) != 3 || ls[0].MatchID != "alpha" || ls[1].MatchID != "beta" || ls[2].MatchID != "empty" {
		t.Fatalf("listing=%+v", ls)
	}
	if ls[0].Winner != "blue" || ls[0].DecidedAt != 12 || ls[0].Tick != 12 {
		t.Fatalf("alpha=%+v", ls[0])
	}
	if ls[1].Winner != "" || ls[1].LatestSnapshot != snapshot.FileName(12) {
		t.Fatalf("beta=%+v", ls[1])
	}
	if ls[2].LatestSnapshot != "" {
		t.Fatalf("empty=%+v", ls[2])
	}
}

func TestRunQueryAgainstIndex(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "match.sqlite")
	idx, err := indexdb.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = idx.WriteTick(match.TickLogEntry{Tick: 0, DT: 0.1, Digest: "d0"})
	_ = idx.WriteTick(match.TickLogEntry{Tick: 1, DT: 0.1, Digest: "d1", Commands: []match.Command{
		{Kind: match.CommandMove, Team: model.Blue, UnitID: "U000001", Waypoints: []model.Vec2{{X: 3.5, Y: 3.5}}},
	}})
	_ = idx.WriteEvent(match.EventEntry{Tick: 1, Kind: match.EventFlip, City: "red-home", From: model.Red, To: model.Blue})
	_ = idx.WriteEvent(match.EventEntry{Tick: 1, Kind: match.EventDeath, UnitID: "U000005", Team: model.Red})
	idx.RecordSnapshot("/tmp/000000000002.snap.zst", sampleSnapshot(2, 1))
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	lines := func(q dbQuery) []map[string]any {
		t.Helper()
		var buf bytes.Buffer
		if err := runQuery(db, q, &buf); err != nil {
			t.Fatalf("%s: %v", q.Name, err)
		}
		var out []map[string]any
		for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if l == "" {
				continue
			}
			var m map[string]any
			if err := json.Unmarshal([]byte(l), &m); err != nil {
				t.Fatalf("decode %q: %v", l, err)
			}
			out = append(out, m)
		}
		return out
	}

	if rows := lines(dbQuery{Name: "ticks"}); len(rows) != 2 || rows[0]["digest"] != "d1" {
		t.Fatalf("ticks=%v", rows)
	}
	if rows := lines(dbQuery{Name: "commands", Unit: "U000001"}); len(rows) != 1 || rows[0]["kind"] != "MOVE" {
		t.Fatalf("commands=%v", rows)
	}
	if rows := lines(dbQuery{Name: "events", Kind: match.EventFlip}); len(rows) != 1 || rows[0]["city"] != "red-home" {
		t.Fatalf("events=%v", rows)
	}
	if rows := lines(dbQuery{Name: "snapshots"}); len(rows) != 1 || rows[0]["units"] != float64(2) {
		t.Fatalf("snapshots=%v", rows)
	}
	rows := lines(dbQuery{Name: "cities"})
	if len(rows) != 2 || rows[1]["city_id"] != "red-home" || rows[1]["owner"] != "blue" || rows[1]["tick"] != float64(2) {
		t.Fatalf("cities=%v", rows)
	}
	if err := runQuery(db, dbQuery{Name: "players"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected unknown query error")
	}
}
