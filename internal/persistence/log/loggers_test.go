package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

func readJSONL(t *testing.T, dir string) [][]byte {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one log file in %s, got %v (%v)", dir, files, err)
	}
	return readFile(t, files[0])
}

func readFile(t *testing.T, path string) [][]byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()
	var lines [][]byte
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		lines = append(lines, append([]byte(nil), sc.Bytes()...))
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return lines
}

func TestTickLoggerWritesReadableJSONL(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	entries := []match.TickLogEntry{
		{Tick: 0, DT: 0.1, Digest: "aa"},
		{Tick: 1, DT: 0.1, Digest: "bb", Commands: []match.Command{{Kind: match.CommandMove, UnitID: "U000001", Waypoints: []model.Vec2{{X: 2.5, Y: 3.5}}}}},
	}
	for _, e := range entries {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readJSONL(t, filepath.Join(dir, "ticks"))
	if len(lines) != 2 {
		t.Fatalf("lines=%d", len(lines))
	}
	var got match.TickLogEntry
	if err := json.Unmarshal(lines[1], &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Tick != 1 || got.Digest != "bb" || len(got.Commands) != 1 || got.Commands[0].Waypoints[0].X != 2.5 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestEventLoggerSeparateDir(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)
	if err := l.WriteEvent(match.EventEntry{Tick: 7, Kind: match.EventFlip, City: "mill", From: model.Neutral, To: model.Blue}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	lines := readJSONL(t, filepath.Join(dir, "events"))
	var got match.EventEntry
	if err := json.Unmarshal(lines[0], &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != match.EventFlip || got.City != "mill" || got.To != model.Blue {
		t.Fatalf("event mismatch: %+v", got)
	}
}

func TestTickLoggerSegmentsByTick(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLoggerSpan(dir, 10)
	tu := tuning.Defaults()
	for tick := uint64(0); tick < 25; tick++ {
		e := match.TickLogEntry{Tick: tick, DT: 0.1, Digest: "d"}
		if tick == 0 {
			e.Tuning = &tu
		}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write %d: %v", tick, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	segs, err := ListSegments(filepath.Join(dir, "ticks"), "ticks")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(segs) != 3 || segs[0].First != 0 || segs[1].First != 10 || segs[2].First != 20 {
		t.Fatalf("segments %+v", segs)
	}
	if filepath.Base(segs[1].Path) != "ticks-000000000010.jsonl.zst" {
		t.Fatalf("segment name %s", segs[1].Path)
	}
	for _, s := range segs {
		lines := readFile(t, s.Path)
		for i, line := range lines {
			var e match.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if i == 0 && (e.Tick != s.First || e.Tuning == nil || e.Tuning.Movement.UnitSpeed != tu.Movement.UnitSpeed) {
				t.Fatalf("segment %d should open with tick %d and the tuning: %+v", s.First, s.First, e)
			}
			if i > 0 && e.Tuning != nil {
				t.Fatalf("tuning repeated mid-segment at tick %d", e.Tick)
			}
		}
	}
}

func TestTickLoggerAppendsAfterRestart(t *testing.T) {
	dir := t.TempDir()
	first := NewTickLoggerSpan(dir, 100)
	_ = first.WriteTick(match.TickLogEntry{Tick: 0, Digest: "a"})
	_ = first.Close()
	second := NewTickLoggerSpan(dir, 100)
	_ = second.WriteTick(match.TickLogEntry{Tick: 1, Digest: "b"})
	_ = second.Close()

	lines := readJSONL(t, filepath.Join(dir, "ticks"))
	if len(lines) != 2 {
		t.Fatalf("expected both runs in one segment, got %d lines", len(lines))
	}
}

func TestSegmentsFrom(t *testing.T) {
	segs := []Segment{{First: 0}, {First: 10}, {First: 20}}
	cases := []struct {
		tick  uint64
		first uint64
		n     int
	}{
		{0, 0, 3},
		{9, 0, 3},
		{10, 10, 2},
		{15, 10, 2},
		{99, 20, 1},
	}
	for _, c := range cases {
		got := SegmentsFrom(segs, c.tick)
		if len(got) != c.n || got[0].First != c.first {
			t.Fatalf("tick %d: %+v", c.tick, got)
		}
	}
	if got := SegmentsFrom(nil, 5); len(got) != 0 {
		t.Fatalf("empty input: %+v", got)
	}
}
