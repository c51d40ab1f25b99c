package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	MatchID string `json:"match_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is the full match state at a tick boundary.
type SnapshotV1 struct {
	Header Header `json:"header"`

	MapName    string   `json:"map_name"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	TickRateHz int      `json:"tick_rate_hz"`
	Terrain    []string `json:"terrain,omitempty"`

	NextUnitNum uint64 `json:"next_unit_num"`

	Field FieldV1  `json:"field"`
	Units []UnitV1 `json:"units"`
	// FreeSlots keeps arena slot reuse order so resumed matches iterate units
	// exactly like the match that wrote the snapshot.
	FreeSlots []int `json:"free_slots,omitempty"`

	Cities    []CityV1     `json:"cities"`
	FarmLinks []FarmLinkV1 `json:"farm_links,omitempty"`
	Depots    []DepotV1    `json:"depots,omitempty"`
	UnitLines []UnitLineV1 `json:"unit_lines,omitempty"`
	Legacy    bool         `json:"legacy,omitempty"`
	// SupplyTicks drives the unit line refresh cadence.
	SupplyTicks uint64 `json:"supply_ticks"`
}

type FieldV1 struct {
	Revision uint64    `json:"revision"`
	Scores   []float64 `json:"scores"`
}

type CellV1 struct {
	C int `json:"c"`
	R int `json:"r"`
}

type UnitV1 struct {
	ID          string  `json:"id"`
	Slot        int     `json:"slot"`
	Team        int8    `json:"team"`
	Type        string  `json:"type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Rotation    float64 `json:"rotation"`
	Health      float64 `json:"health"`
	MaxHealth   float64 `json:"max_health"`
	MoraleScore float64 `json:"morale_score"`
	CombatPause float64 `json:"combat_pause"`
	WasEngaged  bool    `json:"was_engaged,omitempty"`

	Move *MoveV1 `json:"move,omitempty"`
}

type MoveV1 struct {
	Destination     CellV1   `json:"destination"`
	Queue           []CellV1 `json:"queue,omitempty"`
	TargetRotation  *float64 `json:"target_rotation,omitempty"`
	SpeedMultiplier float64  `json:"speed_multiplier"`
	RotateToFace    bool     `json:"rotate_to_face,omitempty"`
	Budget          float64  `json:"budget"`
	Paused          bool     `json:"paused,omitempty"`
	TransitionPause float64  `json:"transition_pause,omitempty"`
}

type LineV1 struct {
	Path       []CellV1 `json:"path,omitempty"`
	Connected  bool     `json:"connected"`
	SeverIndex int      `json:"sever_index"`
	Complete   bool     `json:"complete"`
}

type CityV1 struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind"`
	Owner         int8     `json:"owner"`
	Anchor        CellV1   `json:"anchor"`
	Zone          []CellV1 `json:"zone"`
	Stock         float64  `json:"stock"`
	TripProgress  float64  `json:"trip_progress"`
	DecayProgress float64  `json:"decay_progress"`
	Spawned       int      `json:"spawned"`
}

type FarmLinkV1 struct {
	Farm   string `json:"farm"`
	City   string `json:"city"`
	Anchor CellV1 `json:"anchor"`
	Line   LineV1 `json:"line"`
}

type DepotV1 struct {
	ID            string  `json:"id"`
	City          string  `json:"city"`
	Anchor        CellV1  `json:"anchor"`
	Owner         int8    `json:"owner"`
	Phase         float64 `json:"phase"`
	Stock         float64 `json:"stock"`
	PulseProgress float64 `json:"pulse_progress"`
	Line          LineV1  `json:"line"`
}

type UnitLineV1 struct {
	UnitID string `json:"unit_id"`
	Team   int8   `json:"team"`
	City   string `json:"city"`
	Line   LineV1 `json:"line"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is repeated inside the gob payload.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader returns only the plain JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(line, &h)
	return h, err
}

// Latest returns the snapshot file with the highest tick in dir, or "" when
// there is none.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.snap.zst"))
	if err != nil {
		return "", err
	}
	best, bestTick := "", uint64(0)
	for _, p := range matches {
		h, err := ReadHeader(p)
		if err != nil {
			continue
		}
		if best == "" || h.Tick > bestTick {
			best, bestTick = p, h.Tick
		}
	}
	return best, nil
}

// FileName is the canonical snapshot file name for a tick.
func FileName(tick uint64) string { return fmt.Sprintf("%012d.snap.zst", tick) }
