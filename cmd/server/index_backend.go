package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/indexdb"
	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/snapshot"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

type runtimeIndex interface {
	match.TickLogger
	match.EventLogger
	Close() error
	UpsertTuning(mapName string, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	Stats() indexdb.Stats
}

func openRuntimeIndex(matchDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("TB_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(matchDir, "index", "match.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported TB_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
