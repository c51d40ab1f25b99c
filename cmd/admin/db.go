package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const dbUsage = "usage: admin db [-data ./data] [-match ID|-db PATH] [-tick T] [-limit N] [-kind K] [-unit U] snapshots|ticks|events|commands|cities"

type dbQuery struct {
	Name  string
	Tick  uint64
	Limit int
	Kind  string
	Unit  string
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	matchID := fs.String("match", "", "match id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	tick := fs.Uint64("tick", 0, "snapshot tick for cities (optional; defaults to latest)")
	limit := fs.Int("limit", 20, "result limit")
	kind := fs.String("kind", "", "event kind filter (events)")
	unit := fs.String("unit", "", "unit id filter (commands, events)")
	_ = fs.Parse(args)

	q := dbQuery{Name: "snapshots", Tick: *tick, Limit: *limit, Kind: strings.TrimSpace(*kind), Unit: strings.TrimSpace(*unit)}
	if fs.NArg() > 0 {
		q.Name = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*matchID) == "" {
			fmt.Fprintln(os.Stderr, "missing -match or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "matches", *matchID, "index", "match.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, dbUsage)
		os.Exit(1)
	}
}

// runQuery prints one JSON object per row of the selected index table.
func runQuery(db *sql.DB, q dbQuery, w io.Writer) error {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	switch q.Name {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,match_id,path,units,cities,field_revision FROM snapshots ORDER BY tick DESC LIMIT ?`, q.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick          uint64 `json:"tick"`
				MatchID       string `json:"match_id"`
				Path          string `json:"path"`
				Units         int    `json:"units"`
				Cities        int    `json:"cities"`
				FieldRevision uint64 `json:"field_revision"`
			}
			if err := rows.Scan(&r.Tick, &r.MatchID, &r.Path, &r.Units, &r.Cities, &r.FieldRevision); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()

	case "ticks":
		rows, err := db.Query(`SELECT tick,dt,digest,commands FROM ticks ORDER BY tick DESC LIMIT ?`, q.Limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     uint64  `json:"tick"`
				DT       float64 `json:"dt"`
				Digest   string  `json:"digest"`
				Commands int     `json:"commands"`
			}
			if err := rows.Scan(&r.Tick, &r.DT, &r.Digest, &r.Commands); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()

	case "events":
		query := `SELECT tick,seq,kind,COALESCE(city,''),COALESCE(unit_id,''),team,from_team,to_team FROM events WHERE 1=1`
		var args []any
		if q.Kind != "" {
			query += ` AND kind=?`
			args = append(args, q.Kind)
		}
		if q.Unit != "" {
			query += ` AND unit_id=?`
			args = append(args, q.Unit)
		}
		query += ` ORDER BY tick DESC, seq DESC LIMIT ?`
		args = append(args, q.Limit)
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     uint64 `json:"tick"`
				Seq      int    `json:"seq"`
				Kind     string `json:"kind"`
				City     string `json:"city,omitempty"`
				UnitID   string `json:"unit_id,omitempty"`
				Team     int8   `json:"team"`
				FromTeam int8   `json:"from_team"`
				ToTeam   int8   `json:"to_team"`
			}
			if err := rows.Scan(&r.Tick, &r.Seq, &r.Kind, &r.City, &r.UnitID, &r.Team, &r.FromTeam, &r.ToTeam); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()

	case "commands":
		query := `SELECT tick,seq,unit_id,kind,team,cmd_json FROM commands`
		var args []any
		if q.Unit != "" {
			query += ` WHERE unit_id=?`
			args = append(args, q.Unit)
		}
		query += ` ORDER BY tick DESC, seq DESC LIMIT ?`
		args = append(args, q.Limit)
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick    uint64 `json:"tick"`
				Seq     int    `json:"seq"`
				UnitID  string `json:"unit_id"`
				Kind    string `json:"kind"`
				Team    int8   `json:"team"`
				CmdJSON string `json:"cmd_json"`
			}
			if err := rows.Scan(&r.Tick, &r.Seq, &r.UnitID, &r.Kind, &r.Team, &r.CmdJSON); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(w, r)
		}
		return rows.Err()

	case "cities":
		tick := q.Tick
		if tick == 0 {
			lt, err := latestSnapshotTick(db)
			if err != nil {
				return fmt.Errorf("latest tick: %w", err)
			}
			if lt == 0 {
				return fmt.Errorf("no snapshots found")
			}
			tick = lt
		}
		rows, err := db.Query(`SELECT city_id,owner FROM snapshot_cities WHERE tick=? ORDER BY city_id`, tick)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   uint64 `json:"tick"`
				CityID string `json:"city_id"`
				Owner  string `json:"owner"`
			}
			var owner int8
			if err := rows.Scan(&r.CityID, &owner); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Tick = tick
			r.Owner = teamName(owner)
			printJSON(w, r)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query: %s", q.Name)
}

func latestSnapshotTick(db *sql.DB) (uint64, error) {
	var t int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(tick),0) FROM snapshots`).Scan(&t); err != nil {
		return 0, err
	}
	if t < 0 {
		return 0, nil
	}
	return uint64(t), nil
}
