package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/snapshot"
)

// MatchArchiveMeta describes the snapshot kept once a match is decided.
type MatchArchiveMeta struct {
	MatchID    string `json:"match_id"`
	Map        string `json:"map"`
	EndTick    uint64 `json:"end_tick"`
	Winner     string `json:"winner"`
	BlueUnits  int    `json:"blue_units"`
	RedUnits   int    `json:"red_units"`
	BlueCities int    `json:"blue_cities"`
	RedCities  int    `json:"red_cities"`
	Snapshot   string `json:"snapshot"`
	CreatedAt  string `json:"created_at"`
}

// Decide reports the winner recorded in snap: the only team that still has
// units or cities. Both or neither alive means the match is undecided.
func Decide(snap snapshot.SnapshotV1) (MatchArchiveMeta, bool) {
	meta := MatchArchiveMeta{
		MatchID: snap.Header.MatchID,
		Map:     snap.MapName,
		EndTick: snap.Header.Tick,
	}
	for _, u := range snap.Units {
		switch {
		case u.Team > 0:
			meta.BlueUnits++
		case u.Team < 0:
			meta.RedUnits++
		}
	}
	for _, c := range snap.Cities {
		switch {
		case c.Owner > 0:
			meta.BlueCities++
		case c.Owner < 0:
			meta.RedCities++
		}
	}
	blue := meta.BlueUnits+meta.BlueCities > 0
	red := meta.RedUnits+meta.RedCities > 0
	switch {
	case blue && !red:
		meta.Winner = "blue"
	case red && !blue:
		meta.Winner = "red"
	default:
		return meta, false
	}
	return meta, true
}

// ArchiveFinalSnapshot copies the first decided snapshot of a match into
// `matchDir/archives/final/`. Later calls are no-ops once meta.json exists.
func ArchiveFinalSnapshot(matchDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	meta, ok := Decide(snap)
	if !ok {
		return "", false, nil
	}
	archiveDir := filepath.Join(matchDir, "archives", "final")
	metaPath := filepath.Join(archiveDir, "meta.json")
	if _, err := os.Stat(metaPath); err == nil {
		return "", false, nil
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, fmt.Errorf("archive %s: %w", filepath.Base(snapshotPath), err)
	}

	meta.Snapshot = filepath.Base(dst)
	meta.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	// meta.json goes last so a crash mid-copy retries on the next snapshot.
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

// ReadMeta loads the archive metadata of a match, if any.
func ReadMeta(matchDir string) (MatchArchiveMeta, bool, error) {
	var meta MatchArchiveMeta
	b, err := os.ReadFile(filepath.Join(matchDir, "archives", "final", "meta.json"))
	if os.IsNotExist(err) {
		return meta, false, nil
	}
	if err != nil {
		return meta, false, err
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, false, fmt.Errorf("meta.json: %w", err)
	}
	return meta, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
