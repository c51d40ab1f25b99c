package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	persistlog "github.com/Aricg/TacticalBlocks-sub001/internal/persistence/log"
	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/snapshot"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/mapbundle"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

func main() {
	var (
		mapPath    = flag.String("map", "", "map bundle the match was started from")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning.yaml used until the log supplies one")
		snapPath   = flag.String("snapshot", "", "path to .snap.zst to start from (optional; default is tick 0)")
		ticksDir   = flag.String("ticks", "", "dir containing ticks-<first tick>.jsonl.zst segments (optional)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *mapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -map")
		os.Exit(2)
	}
	b, err := mapbundle.Load(*mapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load map:", err)
		os.Exit(1)
	}
	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	m, err := match.New(match.Config{Bundle: b, Tuning: tuning.NewStore(tune)})
	if err != nil {
		fmt.Fprintln(os.Stderr, "match:", err)
		os.Exit(1)
	}

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d match=%s map=%s tick=%d units=%d cities=%d\n",
			snap.Header.Version, snap.Header.MatchID, snap.MapName, snap.Header.Tick, len(snap.Units), len(snap.Cities))
		if err := m.ImportSnapshot(snap); err != nil {
			fmt.Fprintln(os.Stderr, "import snapshot:", err)
			os.Exit(1)
		}
	}

	if *ticksDir == "" {
		return
	}
	startTick := m.CurrentTick()
	files, err := listTickFiles(*ticksDir, startTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}

	checked, err := replay(m, files, startTick, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks (from tick=%d) outcome=%+v\n", checked, startTick, m.Outcome())
}

// listTickFiles returns the tick log files that can hold startTick or later.
func listTickFiles(dir string, startTick uint64) ([]string, error) {
	segs, err := persistlog.ListSegments(dir, "ticks")
	if err != nil {
		return nil, err
	}
	segs = persistlog.SegmentsFrom(segs, startTick)
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.Path)
	}
	return out, nil
}

// replay re-runs logged ticks on m and compares state digests. Entries
// before startTick are skipped apart from their tuning; digests are checked
// from verifyFrom on.
func replay(m *match.Match, files []string, startTick, verifyFrom, toTick uint64) (uint64, error) {
	if verifyFrom == 0 {
		verifyFrom = startTick
	}
	var checked uint64
	for _, path := range files {
		done, err := replayFile(m, path, startTick, verifyFrom, toTick, &checked)
		if err != nil {
			return checked, err
		}
		if done {
			break
		}
	}
	return checked, nil
}

func replayFile(m *match.Match, path string, startTick, verifyFrom, toTick uint64, checked *uint64) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return false, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var entry match.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return false, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		// Logged tuning replaces whatever the match was started with.
		if entry.Tuning != nil {
			m.Tuning().Swap(*entry.Tuning)
		}
		if entry.Tick < startTick {
			continue
		}
		if toTick != 0 && entry.Tick > toTick {
			return true, nil
		}
		if entry.Tick != m.CurrentTick() {
			return false, fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", m.CurrentTick(), entry.Tick, filepath.Base(path))
		}

		tick, gotDigest := m.StepOnce(entry.Commands, entry.DT)
		if tick != entry.Tick {
			return false, fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
		}
		if tick >= verifyFrom {
			*checked++
			if gotDigest != entry.Digest {
				return false, fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
			}
		}
	}
	return false, sc.Err()
}
