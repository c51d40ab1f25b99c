package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/archive"
	persistlog "github.com/Aricg/TacticalBlocks-sub001/internal/persistence/log"
	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/offsite"
	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/snapshot"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/multimatch"
)

// matchRuntime is the per-match persistence wiring: tick and event logs,
// the optional index, snapshots and the final-result archive.
type matchRuntime struct {
	id  string
	dir string
	m   *match.Match

	idx      runtimeIndex
	tickLog  *persistlog.TickLogger
	eventLog *persistlog.EventLogger
	snapCh   chan snapshot.SnapshotV1
	mirror   *offsite.Mirror
	log      *log.Logger
}

type runtimeOptions struct {
	DataDir    string
	DisableDB  bool
	LoadLatest bool
	// Mirror is optional and shared by all matches.
	Mirror *offsite.Mirror
}

func openMatchRuntime(rt *multimatch.Runtime, opts runtimeOptions, logger *log.Logger) (*matchRuntime, error) {
	dir := filepath.Join(opts.DataDir, "matches", rt.Spec.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	mr := &matchRuntime{
		id:     rt.Spec.ID,
		dir:    dir,
		m:      rt.Match,
		snapCh: make(chan snapshot.SnapshotV1, 2),
		mirror: opts.Mirror,
		log:    logger,
	}

	if opts.LoadLatest {
		path, err := snapshot.Latest(mr.snapshotDir())
		if err != nil {
			return nil, err
		}
		if path != "" {
			snap, err := snapshot.ReadSnapshot(path)
			if err != nil {
				return nil, fmt.Errorf("read snapshot: %w", err)
			}
			if err := mr.m.ImportSnapshot(snap); err != nil {
				return nil, fmt.Errorf("import snapshot %s: %w", filepath.Base(path), err)
			}
			logger.Printf("match %s resumed from snapshot=%s tick=%d", mr.id, filepath.Base(path), mr.m.CurrentTick())
		}
	}

	idx, err := openRuntimeIndex(dir, opts.DisableDB)
	if err != nil {
		return nil, fmt.Errorf("open index backend: %w", err)
	}
	mr.idx = idx
	if idx != nil {
		if err := idx.UpsertTuning(mr.m.Bundle().Name, *mr.m.Tuning().Load()); err != nil {
			logger.Printf("match %s: index upsert tuning: %v", mr.id, err)
		}
	}

	mr.tickLog = persistlog.NewTickLogger(dir)
	mr.eventLog = persistlog.NewEventLogger(dir)
	mr.m.SetTickLogger(multiTickLogger{a: mr.tickLog, b: idx})
	mr.m.SetEventLogger(multiEventLogger{a: mr.eventLog, b: idx})
	mr.m.SetSnapshotSink(mr.snapCh)
	return mr, nil
}

func (mr *matchRuntime) snapshotDir() string { return filepath.Join(mr.dir, "snapshots") }

// runSnapshotWriter persists snapshots emitted by the match loop.
func (mr *matchRuntime) runSnapshotWriter(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-mr.snapCh:
			mr.writeSnapshot(snap)
		}
	}
}

func (mr *matchRuntime) writeSnapshot(snap snapshot.SnapshotV1) {
	path := filepath.Join(mr.snapshotDir(), snapshot.FileName(snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		mr.log.Printf("match %s: snapshot write: %v", mr.id, err)
		return
	}
	if mr.idx != nil {
		mr.idx.RecordSnapshot(path, snap)
	}
	mr.mirror.Enqueue(path)

	archived, ok, err := archive.ArchiveFinalSnapshot(mr.dir, path, snap)
	if err != nil {
		mr.log.Printf("match %s: archive: %v", mr.id, err)
		return
	}
	if ok {
		mr.log.Printf("match %s decided at tick=%d; archived %s", mr.id, snap.Header.Tick, archived)
		mr.mirror.Enqueue(archived)
		mr.mirror.Enqueue(filepath.Join(filepath.Dir(archived), "meta.json"))
	}
}

// Close writes a final snapshot and flushes logs. Only call it after the
// match loop has returned.
func (mr *matchRuntime) Close() {
	mr.writeSnapshot(mr.m.ExportSnapshot())
	_ = mr.tickLog.Close()
	_ = mr.eventLog.Close()
	if mr.idx != nil {
		_ = mr.idx.Close()
	}
}

type multiTickLogger struct {
	a match.TickLogger
	b match.TickLogger
}

func (m multiTickLogger) WriteTick(entry match.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiEventLogger struct {
	a match.EventLogger
	b match.EventLogger
}

func (m multiEventLogger) WriteEvent(entry match.EventEntry) error {
	if m.a != nil {
		_ = m.a.WriteEvent(entry)
	}
	if m.b != nil {
		_ = m.b.WriteEvent(entry)
	}
	return nil
}
