package match

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/snapshot"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match/kernel/model"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

func busyMatch(t *testing.T) *Match {
	t.Helper()
	m := newTestMatch(t, skirmishBundle())
	_ = m.Submit(Command{Kind: CommandMove, UnitID: "U000001", Waypoints: []model.Vec2{{X: 8.5, Y: 1.5}}, Mode: &model.CommandMode{SpeedMultiplier: 1.5, RotateToFace: true}})
	rot := 0.5
	_ = m.Submit(Command{Kind: CommandMove, UnitID: "U000003", Waypoints: []model.Vec2{{X: 9.5, Y: 6.5}, {X: 6.5, Y: 6.5}}, TargetRotation: &rot})
	advanceN(m, 37, 0.1)
	return m
}

func TestSnapshotRoundTripKeepsDigest(t *testing.T) {
	m := busyMatch(t)
	snap := m.ExportSnapshot()
	if snap.Header.Tick != 37 || len(snap.Units) != 3 {
		t.Fatalf("header tick=%d units=%d", snap.Header.Tick, len(snap.Units))
	}

	m2 := newTestMatch(t, skirmishBundle())
	if err := m2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got, want := m2.StateDigest(), m.StateDigest(); got != want {
		t.Fatalf("digest after import: got %s want %s", got, want)
	}

	// Both copies must stay in lockstep through spawns and arrivals.
	for i := 0; i < 120; i++ {
		a := m.Advance(0.1)
		b := m2.Advance(0.1)
		if a.Digest != b.Digest {
			t.Fatalf("diverged at tick %d", a.Tick)
		}
	}
}

func TestSnapshotFileRoundTripKeepsDigest(t *testing.T) {
	m := busyMatch(t)
	path := filepath.Join(t.TempDir(), snapshot.FileName(m.CurrentTick()))
	if err := snapshot.WriteSnapshot(path, m.ExportSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m2 := newTestMatch(t, skirmishBundle())
	if err := m2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if m2.StateDigest() != m.StateDigest() {
		t.Fatalf("digest changed through the snapshot file")
	}
}

func TestImportRejectsMismatchedMap(t *testing.T) {
	m := newTestMatch(t, skirmishBundle())
	snap := m.ExportSnapshot()
	snap.Width = 4
	if err := m.ImportSnapshot(snap); err == nil {
		t.Fatalf("expected size mismatch error")
	}
	snap = m.ExportSnapshot()
	snap.Header.Version = 99
	if err := m.ImportSnapshot(snap); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestSnapshotSinkEveryN(t *testing.T) {
	tu := tuning.Defaults()
	tu.SnapshotEveryTicks = 5
	m := newTestMatchWithTuning(t, skirmishBundle(), tu)
	sink := make(chan snapshot.SnapshotV1, 4)
	m.SetSnapshotSink(sink)
	advanceN(m, 12, 0.1)
	close(sink)
	var ticks []uint64
	for s := range sink {
		ticks = append(ticks, s.Header.Tick)
	}
	if len(ticks) != 2 || ticks[0] != 5 || ticks[1] != 10 {
		t.Fatalf("snapshot ticks %v", ticks)
	}
}

func TestReplayFromTickLogMatchesDigests(t *testing.T) {
	m := newTestMatch(t, skirmishBundle())
	logger := &memTickLogger{}
	m.SetTickLogger(logger)
	_ = m.Submit(Command{Kind: CommandMove, Team: model.Blue, UnitID: "U000002", Waypoints: []model.Vec2{{X: 8.5, Y: 1.5}}})
	advanceN(m, 15, 0.1)
	_ = m.Submit(Command{Kind: CommandMove, Team: model.Red, UnitID: "U000003", Waypoints: []model.Vec2{{X: 4.5, Y: 4.5}}, Mode: &model.CommandMode{RotateToFace: true}})
	_ = m.Submit(Command{Kind: CommandMove, Team: model.Red, UnitID: "U000001"})
	advanceN(m, 60, 0.1)
	_ = m.Submit(Command{Kind: CommandCancel, Team: model.Blue, UnitID: "U000002"})
	advanceN(m, 60, 0.1)

	if len(logger.entries) != 135 {
		t.Fatalf("logged %d ticks", len(logger.entries))
	}

	r := newTestMatch(t, skirmishBundle())
	for _, e := range logger.entries {
		// Go through JSON the way the on-disk log does.
		raw, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var entry TickLogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		tick, digest := r.StepOnce(entry.Commands, entry.DT)
		if tick != entry.Tick || digest != entry.Digest {
			t.Fatalf("tick %d: replay digest %s, logged %s", entry.Tick, digest, entry.Digest)
		}
	}
}

func TestTickLogRecordsTuningReload(t *testing.T) {
	m := newTestMatch(t, skirmishBundle())
	logger := &memTickLogger{}
	m.SetTickLogger(logger)
	_ = m.Submit(Command{Kind: CommandMove, Team: model.Red, UnitID: "U000003", Waypoints: []model.Vec2{{X: 5.5, Y: 4.5}}})
	advanceN(m, 10, 0.1)
	tu := tuning.Defaults()
	tu.Movement.UnitSpeed = 4
	tu.Influence.DecayRate = 0.9
	m.Tuning().Swap(tu)
	advanceN(m, 10, 0.1)

	for _, e := range logger.entries {
		switch e.Tick {
		case 0, 10:
			if e.Tuning == nil {
				t.Fatalf("tick %d should carry the tuning in force", e.Tick)
			}
		default:
			if e.Tuning != nil {
				t.Fatalf("tick %d repeats an unchanged tuning", e.Tick)
			}
		}
	}

	r := newTestMatch(t, skirmishBundle())
	for _, e := range logger.entries {
		raw, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var entry TickLogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if entry.Tuning != nil {
			r.Tuning().Swap(*entry.Tuning)
		}
		if _, digest := r.StepOnce(entry.Commands, entry.DT); digest != entry.Digest {
			t.Fatalf("replay diverged at tick %d", entry.Tick)
		}
	}
}
