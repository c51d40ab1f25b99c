package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/archive"
	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

type matchListing struct {
	MatchID        string `json:"match_id"`
	LatestSnapshot string `json:"latest_snapshot,omitempty"`
	Tick           uint64 `json:"tick"`
	Winner         string `json:"winner,omitempty"`
	DecidedAt      uint64 `json:"decided_at,omitempty"`
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	ls, err := listMatches(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, l := range ls {
		printJSON(os.Stdout, l)
	}
}

// listMatches reports every match directory under dataDir with its latest
// snapshot and archived result.
func listMatches(dataDir string) ([]matchListing, error) {
	base := filepath.Join(dataDir, "matches")
	ents, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}
	var out []matchListing
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(base, e.Name())
		l := matchListing{MatchID: e.Name()}
		if p, err := snapshot.Latest(filepath.Join(dir, "snapshots")); err == nil && p != "" {
			if h, err := snapshot.ReadHeader(p); err == nil {
				l.LatestSnapshot = filepath.Base(p)
				l.Tick = h.Tick
			}
		}
		if meta, ok, err := archive.ReadMeta(dir); err == nil && ok {
			l.Winner = meta.Winner
			l.DecidedAt = meta.EndTick
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}

type snapshotSummary struct {
	MatchID    string            `json:"match_id"`
	Map        string            `json:"map"`
	Tick       uint64            `json:"tick"`
	Units      map[string]int    `json:"units"`
	Cities     map[string]string `json:"cities"`
	FieldRev   uint64            `json:"field_revision"`
	Winner     string            `json:"winner,omitempty"`
	Unsupplied int               `json:"unsupplied_units"`
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	matchID := fs.String("match", "", "match id (uses its latest snapshot)")
	path := fs.String("path", "", "snapshot path (overrides -match)")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		if strings.TrimSpace(*matchID) == "" {
			fmt.Fprintln(os.Stderr, "missing -match or -path")
			os.Exit(2)
		}
		var err error
		p, err = snapshot.Latest(filepath.Join(*dataDir, "matches", *matchID, "snapshots"))
		if err != nil || p == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found for match", *matchID)
			os.Exit(2)
		}
	}
	snap, err := snapshot.ReadSnapshot(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	printJSON(os.Stdout, summarize(snap))
}

func summarize(snap snapshot.SnapshotV1) snapshotSummary {
	s := snapshotSummary{
		MatchID:  snap.Header.MatchID,
		Map:      snap.MapName,
		Tick:     snap.Header.Tick,
		Units:    map[string]int{},
		Cities:   map[string]string{},
		FieldRev: snap.Field.Revision,
	}
	for _, u := range snap.Units {
		s.Units[teamName(u.Team)]++
	}
	for _, c := range snap.Cities {
		s.Cities[c.ID] = teamName(c.Owner)
	}
	for _, l := range snap.UnitLines {
		if !l.Line.Connected {
			s.Unsupplied++
		}
	}
	if meta, ok := archive.Decide(snap); ok {
		s.Winner = meta.Winner
	}
	return s
}

func teamName(t int8) string {
	switch {
	case t > 0:
		return "blue"
	case t < 0:
		return "red"
	}
	return "neutral"
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
