package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"conquest.ai/internal/persistence/snapshot"
	"conquest.ai/internal/sim/tuning"
	"conquest.ai/internal/sim/world"
)

// HTTPConfig configures the remote ingest backend.
type HTTPConfig struct {
	Endpoint      string
	Token         string
	Source        string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxRetained caps the events held back after failed flushes.
	MaxRetained int
	Logger      *log.Logger
}

// HTTPIndex batches index events and POSTs them as JSON to an ingest endpoint.
// A failed batch is kept and retried on the next flush.
type HTTPIndex struct {
	cfg        HTTPConfig
	httpClient *http.Client

	ch   chan ingestEvent
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and the send on the queue against Close.
	mu     sync.RWMutex
	closed bool

	queueDropped  atomic.Uint64
	retainDropped atomic.Uint64
	flushOK       atomic.Uint64
	flushFail     atomic.Uint64
	sent          atomic.Uint64
}

type ingestEvent struct {
	Kind    string `json:"kind"`
	Source  string `json:"source"`
	Payload any    `json:"payload"`
}

type ingestBatch struct {
	BatchID string        `json:"batch_id"`
	Events  []ingestEvent `json:"events"`
}

type snapshotPayload struct {
	SessionID string `json:"session_id"`
	Tick      uint64 `json:"tick"`
	Path      string `json:"path"`
	Address   string `json:"address,omitempty"`
	Digest    string `json:"digest"`
	Owned     int    `json:"owned"`
}

type configPayload struct {
	Name      string          `json:"name"`
	Digest    string          `json:"digest"`
	JSON      json.RawMessage `json:"json"`
	UpdatedAt string          `json:"updated_at"`
}

// HTTPStats reports delivery progress of the ingest backend.
type HTTPStats struct {
	QueueDepth           int    `json:"queue_depth"`
	QueueCapacity        int    `json:"queue_capacity"`
	QueueDroppedTotal    uint64 `json:"queue_dropped_total"`
	RetainDroppedTotal   uint64 `json:"retain_dropped_total"`
	FlushOKTotal         uint64 `json:"flush_ok_total"`
	FlushFailTotal       uint64 `json:"flush_fail_total"`
	EventsDeliveredTotal uint64 `json:"events_delivered_total"`
}

func OpenHTTP(cfg HTTPConfig) (*HTTPIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Source = strings.TrimSpace(cfg.Source)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty ingest endpoint")
	}
	if cfg.Source == "" {
		return nil, fmt.Errorf("empty source id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = 8192
	}

	h := &HTTPIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan ingestEvent, 16384),
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.loop()
	}()
	return h, nil
}

func (h *HTTPIndex) Close() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.ch)
		h.mu.Unlock()
		h.wg.Wait()
	})
	return nil
}

func (h *HTTPIndex) WriteTick(entry world.TickLogEntry) error {
	h.enqueue("tick", entry)
	return nil
}

func (h *HTTPIndex) WriteAudit(entry world.AuditEntry) error {
	h.enqueue("audit", entry)
	return nil
}

func (h *HTTPIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	h.enqueue("snapshot", snapshotPayload{
		SessionID: snap.Header.SessionID,
		Tick:      snap.Header.Tick,
		Path:      path,
		Address:   snap.Address,
		Digest:    snap.Header.Digest,
		Owned:     snap.Owned(),
	})
}

func (h *HTTPIndex) RecordSessionStart(info SessionInfo) { h.enqueue("session_start", info) }
func (h *HTTPIndex) RecordSessionEnd(info SessionInfo)   { h.enqueue("session_end", info) }

func (h *HTTPIndex) UpsertTuning(t tuning.Tuning) error {
	name, digest, raw, err := tuningRow(t)
	if err != nil {
		return err
	}
	h.enqueue("config", configPayload{
		Name:      name,
		Digest:    digest,
		JSON:      raw,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	return nil
}

func (h *HTTPIndex) Stats() HTTPStats {
	if h == nil {
		return HTTPStats{}
	}
	return HTTPStats{
		QueueDepth:           len(h.ch),
		QueueCapacity:        cap(h.ch),
		QueueDroppedTotal:    h.queueDropped.Load(),
		RetainDroppedTotal:   h.retainDropped.Load(),
		FlushOKTotal:         h.flushOK.Load(),
		FlushFailTotal:       h.flushFail.Load(),
		EventsDeliveredTotal: h.sent.Load(),
	}
}

func (h *HTTPIndex) enqueue(kind string, payload any) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.ch <- ingestEvent{Kind: kind, Source: h.cfg.Source, Payload: payload}:
	default:
		h.queueDropped.Add(1)
		h.printf("index ingest queue full; drop kind=%s", kind)
	}
}

func (h *HTTPIndex) loop() {
	ticker := time.NewTicker(h.cfg.FlushInterval)
	defer ticker.Stop()

	var pending []ingestEvent
	flush := func() {
		for len(pending) > 0 {
			n := len(pending)
			if n > h.cfg.BatchSize {
				n = h.cfg.BatchSize
			}
			if err := h.send(pending[:n]); err != nil {
				h.flushFail.Add(1)
				h.printf("index ingest flush failed batch=%d retained=%d err=%v", n, len(pending), err)
				if over := len(pending) - h.cfg.MaxRetained; over > 0 {
					h.retainDropped.Add(uint64(over))
					pending = append([]ingestEvent(nil), pending[over:]...)
				}
				return
			}
			h.flushOK.Add(1)
			h.sent.Add(uint64(n))
			pending = pending[n:]
		}
		pending = nil
	}

	for {
		select {
		case ev, ok := <-h.ch:
			if !ok {
				flush()
				return
			}
			pending = append(pending, ev)
			if len(pending) >= h.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (h *HTTPIndex) send(events []ingestEvent) error {
	buf, err := json.Marshal(ingestBatch{BatchID: uuid.NewString(), Events: events})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, h.cfg.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	if h.cfg.Token != "" {
		req.Header.Set("x-conquest-index-token", h.cfg.Token)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (h *HTTPIndex) printf(format string, args ...any) {
	if h != nil && h.cfg.Logger != nil {
		h.cfg.Logger.Printf(format, args...)
	}
}
