package offsite

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Uploader stores one local file under an object key.
type Uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

type Stats struct {
	QueueDepth         int
	QueueCapacity      int
	EnqueuedTotal      uint64
	DroppedTotal       uint64
	UploadSuccessTotal uint64
	UploadFailTotal    uint64
	LastSuccessUnix    int64
	LastErrorUnix      int64
}

// Mirror copies files under dataDir to an Uploader in the background, keyed
// by their path relative to dataDir. Enqueue never blocks the caller.
type Mirror struct {
	up      Uploader
	dataDir string
	prefix  string
	log     *log.Logger

	jobs     chan string
	g        errgroup.Group
	attempts int
	backoff  time.Duration

	enqueued   atomic.Uint64
	dropped    atomic.Uint64
	okTotal    atomic.Uint64
	failTotal  atomic.Uint64
	lastOKUnix atomic.Int64
	lastErrUnx atomic.Int64
}

func NewMirror(up Uploader, dataDir, prefix string, workers, queueCap int, logger *log.Logger) *Mirror {
	if workers <= 0 {
		workers = 1
	}
	if queueCap <= 0 {
		queueCap = 256
	}
	m := &Mirror{
		up:       up,
		dataDir:  dataDir,
		prefix:   strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		log:      logger,
		jobs:     make(chan string, queueCap),
		attempts: 4,
		backoff:  200 * time.Millisecond,
	}
	for i := 0; i < workers; i++ {
		m.g.Go(func() error {
			for p := range m.jobs {
				m.upload(p)
			}
			return nil
		})
	}
	return m
}

// Enqueue schedules localPath for upload. A full queue drops the file; the
// next snapshot supersedes it anyway.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	m.enqueued.Add(1)
	select {
	case m.jobs <- localPath:
	default:
		n := m.dropped.Add(1)
		m.printf("offsite drop local=%s dropped_total=%d", localPath, n)
	}
}

// Close drains queued uploads and stops the workers.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	_ = m.g.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(m.jobs),
		QueueCapacity:      cap(m.jobs),
		EnqueuedTotal:      m.enqueued.Load(),
		DroppedTotal:       m.dropped.Load(),
		UploadSuccessTotal: m.okTotal.Load(),
		UploadFailTotal:    m.failTotal.Load(),
		LastSuccessUnix:    m.lastOKUnix.Load(),
		LastErrorUnix:      m.lastErrUnx.Load(),
	}
}

func (m *Mirror) upload(localPath string) {
	key, err := m.objectKey(localPath)
	if err != nil {
		m.failTotal.Add(1)
		m.printf("offsite skip local=%s err=%v", localPath, err)
		return
	}
	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		lastErr = m.up.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			break
		}
		if attempt < m.attempts {
			time.Sleep(time.Duration(attempt*attempt) * m.backoff)
		}
	}
	now := time.Now().UTC().Unix()
	if lastErr != nil {
		m.failTotal.Add(1)
		m.lastErrUnx.Store(now)
		m.printf("offsite upload failed key=%s err=%v", key, lastErr)
		return
	}
	m.okTotal.Add(1)
	m.lastOKUnix.Store(now)
}

func (m *Mirror) objectKey(localPath string) (string, error) {
	base, err := filepath.Abs(m.dataDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside data dir %s", abs, base)
	}
	if m.prefix != "" {
		rel = path.Join(m.prefix, rel)
	}
	return rel, nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.log != nil {
		m.log.Printf(format, args...)
	}
}
