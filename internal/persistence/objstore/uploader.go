package objstore

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	EnqueuedTotal   uint64
	DroppedTotal    uint64
	SkippedTotal    uint64
	UploadedTotal   uint64
	FailedTotal     uint64
	LastSuccessUnix int64
	LastErrorUnix   int64
}

type putter interface {
	PutFile(ctx context.Context, key, localPath string) error
}

// Uploader copies finished files under dataDir to the bucket in the background.
// Object keys mirror the path relative to dataDir, under an optional prefix.
type Uploader struct {
	dst     putter
	dataDir string
	prefix  string
	logger  *log.Logger

	attempts int
	backoff  time.Duration

	// mu guards closed and sends on jobs against Close.
	mu     sync.RWMutex
	closed bool
	jobs   chan string
	wg     sync.WaitGroup

	enqueued      atomic.Uint64
	dropped       atomic.Uint64
	skipped       atomic.Uint64
	uploaded      atomic.Uint64
	failed        atomic.Uint64
	lastSuccessAt atomic.Int64
	lastErrorAt   atomic.Int64
}

type UploaderConfig struct {
	DataDir  string
	Prefix   string
	Workers  int
	Queue    int
	Attempts int
	Backoff  time.Duration
	Logger   *log.Logger
}

func NewUploader(c *Client, cfg UploaderConfig) *Uploader {
	return newUploader(c, cfg)
}

func newUploader(dst putter, cfg UploaderConfig) *Uploader {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 1024
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 4
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	u := &Uploader{
		dst:      dst,
		dataDir:  cfg.DataDir,
		prefix:   strings.Trim(filepath.ToSlash(cfg.Prefix), "/"),
		logger:   cfg.Logger,
		attempts: cfg.Attempts,
		backoff:  cfg.Backoff,
		jobs:     make(chan string, cfg.Queue),
	}
	for i := 0; i < cfg.Workers; i++ {
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			for p := range u.jobs {
				u.upload(p)
			}
		}()
	}
	return u
}

// Enqueue never blocks; a full queue drops the file, and so does a closed uploader.
func (u *Uploader) Enqueue(localPath string) {
	if u == nil || localPath == "" {
		return
	}
	u.enqueued.Add(1)
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.closed {
		n := u.dropped.Add(1)
		u.printf("objstore: drop %s (closed, dropped=%d)", localPath, n)
		return
	}
	select {
	case u.jobs <- localPath:
	default:
		n := u.dropped.Add(1)
		u.printf("objstore: drop %s (queue full, dropped=%d)", localPath, n)
	}
}

// Close waits for queued uploads to finish. It is safe to call more than once.
func (u *Uploader) Close() {
	if u == nil {
		return
	}
	u.mu.Lock()
	if !u.closed {
		u.closed = true
		close(u.jobs)
	}
	u.mu.Unlock()
	u.wg.Wait()
}

func (u *Uploader) Stats() Stats {
	if u == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(u.jobs),
		QueueCapacity:   cap(u.jobs),
		EnqueuedTotal:   u.enqueued.Load(),
		DroppedTotal:    u.dropped.Load(),
		SkippedTotal:    u.skipped.Load(),
		UploadedTotal:   u.uploaded.Load(),
		FailedTotal:     u.failed.Load(),
		LastSuccessUnix: u.lastSuccessAt.Load(),
		LastErrorUnix:   u.lastErrorAt.Load(),
	}
}

func (u *Uploader) upload(localPath string) {
	key, err := u.key(localPath)
	if err != nil {
		u.skipped.Add(1)
		u.printf("objstore: skip %s: %v", localPath, err)
		return
	}
	var lastErr error
	for attempt := 1; attempt <= u.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		lastErr = u.dst.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			u.uploaded.Add(1)
			u.lastSuccessAt.Store(time.Now().Unix())
			return
		}
		if attempt < u.attempts {
			time.Sleep(time.Duration(attempt*attempt) * u.backoff)
		}
	}
	u.failed.Add(1)
	u.lastErrorAt.Store(time.Now().Unix())
	u.printf("objstore: upload %s failed: %v", key, lastErr)
}

func (u *Uploader) key(localPath string) (string, error) {
	base, err := filepath.Abs(u.dataDir)
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
		return "", fmt.Errorf("outside data dir %s", base)
	}
	if u.prefix != "" {
		return path.Join(u.prefix, rel), nil
	}
	return rel, nil
}

func (u *Uploader) printf(format string, args ...any) {
	if u.logger != nil {
		u.logger.Printf(format, args...)
	}
}
