package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/match"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/tuning"
)

// SegmentTicks is the default number of ticks covered by one log file.
const SegmentTicks = 3000

const segmentSuffix = ".jsonl.zst"

// segmentWriter appends JSON lines to zstd files that each cover a fixed,
// aligned range of ticks. A file is named after the first tick of its range,
// so readers can seek to a tick without opening earlier files.
type segmentWriter struct {
	dir    string
	prefix string
	span   uint64

	mu    sync.Mutex
	first uint64
	open  bool
	f     *os.File
	enc   *zstd.Encoder
	buf   *bufio.Writer
}

func newSegmentWriter(dir, prefix string, span uint64) *segmentWriter {
	if span == 0 {
		span = SegmentTicks
	}
	return &segmentWriter{dir: dir, prefix: prefix, span: span}
}

func (w *segmentWriter) segmentStart(tick uint64) uint64 {
	return tick - tick%w.span
}

// startsSegment reports whether writing tick would open a new file.
func (w *segmentWriter) startsSegment(tick uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.open || w.segmentStart(tick) != w.first
}

func (w *segmentWriter) write(tick uint64, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if start := w.segmentStart(tick); !w.open || start != w.first {
		if err := w.openLocked(start); err != nil {
			return err
		}
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

// openLocked switches to the file for the segment starting at first. An
// existing file gets a new zstd frame appended, which readers decode in order.
func (w *segmentWriter) openLocked(first uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(SegmentPath(w.dir, w.prefix, first), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc = f, enc
	w.buf = bufio.NewWriterSize(enc, 64*1024)
	w.first, w.open = first, true
	return nil
}

func (w *segmentWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *segmentWriter) closeLocked() error {
	if !w.open {
		return nil
	}
	w.open = false
	flushErr := w.buf.Flush()
	encErr := w.enc.Close()
	fileErr := w.f.Close()
	w.f, w.enc, w.buf = nil, nil, nil
	for _, err := range []error{flushErr, encErr, fileErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// SegmentPath is the file holding the segment whose range starts at first.
func SegmentPath(dir, prefix string, first uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%012d%s", prefix, first, segmentSuffix))
}

// Segment is one log file and the first tick of the range it covers.
type Segment struct {
	Path  string
	First uint64
}

// ListSegments returns the prefix's segment files in dir ordered by tick.
func ListSegments(dir, prefix string) ([]Segment, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Segment
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		first, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(name, prefix+"-"), segmentSuffix), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Segment{Path: filepath.Join(dir, name), First: first})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].First < out[j].First })
	return out, nil
}

// SegmentsFrom drops the segments that end before tick.
func SegmentsFrom(segs []Segment, tick uint64) []Segment {
	i := sort.Search(len(segs), func(i int) bool { return segs[i].First > tick })
	if i == 0 {
		return segs
	}
	return segs[i-1:]
}

// TickLogger writes one entry per tick. The first entry of every segment
// carries the tuning in force, so a replay can start at any segment.
type TickLogger struct {
	w *segmentWriter

	mu     sync.Mutex
	tuning *tuning.Tuning
}

func NewTickLogger(matchDir string) *TickLogger {
	return NewTickLoggerSpan(matchDir, SegmentTicks)
}

func NewTickLoggerSpan(matchDir string, span uint64) *TickLogger {
	return &TickLogger{w: newSegmentWriter(filepath.Join(matchDir, "ticks"), "ticks", span)}
}

func (l *TickLogger) WriteTick(e match.TickLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Tuning != nil {
		l.tuning = e.Tuning
	} else if l.tuning != nil && l.w.startsSegment(e.Tick) {
		e.Tuning = l.tuning
	}
	return l.w.write(e.Tick, e)
}

func (l *TickLogger) Close() error { return l.w.close() }

// EventLogger writes spawn, death, flip and outcome events.
type EventLogger struct{ w *segmentWriter }

func NewEventLogger(matchDir string) *EventLogger {
	return &EventLogger{w: newSegmentWriter(filepath.Join(matchDir, "events"), "events", SegmentTicks)}
}

func (l *EventLogger) WriteEvent(e match.EventEntry) error { return l.w.write(e.Tick, e) }
func (l *EventLogger) Close() error                        { return l.w.close() }
