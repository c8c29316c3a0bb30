package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conquest.ai/internal/persistence/indexdb"
	"conquest.ai/internal/persistence/snapshot"
	"conquest.ai/internal/sim/tuning"
	"conquest.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	UpsertTuning(t tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordSessionStart(info indexdb.SessionInfo)
	RecordSessionEnd(info indexdb.SessionInfo)
}

func openRuntimeIndex(dataDir string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CONQUEST_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(indexPath(dataDir))
	case "http":
		endpoint := strings.TrimSpace(os.Getenv("CONQUEST_INDEX_INGEST_URL"))
		if endpoint == "" {
			return nil, fmt.Errorf("CONQUEST_INDEX_BACKEND=http but CONQUEST_INDEX_INGEST_URL is empty")
		}
		host, _ := os.Hostname()
		return indexdb.OpenHTTP(indexdb.HTTPConfig{
			Endpoint:      endpoint,
			Token:         strings.TrimSpace(os.Getenv("CONQUEST_INDEX_TOKEN")),
			Source:        host,
			BatchSize:     envInt("CONQUEST_INDEX_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("CONQUEST_INDEX_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unsupported CONQUEST_INDEX_BACKEND: %s", backend)
	}
}

func indexPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "conquest.sqlite")
}

// indexStats flattens the backend-specific queue counters for /metrics.
type indexStats struct {
	Backend       string
	QueueDepth    int
	QueueCapacity int
	Dropped       uint64
	Failed        uint64
}

func readIndexStats(idx runtimeIndex) (indexStats, bool) {
	switch v := idx.(type) {
	case *indexdb.SQLiteIndex:
		s := v.Stats()
		return indexStats{
			Backend:       "sqlite",
			QueueDepth:    s.QueueDepth,
			QueueCapacity: s.QueueCapacity,
			Dropped:       s.DropTickTotal + s.DropAuditTotal + s.DropSnapshotTotal + s.DropSessionTotal,
			Failed:        s.WriteErrorTotal,
		}, true
	case *indexdb.HTTPIndex:
		s := v.Stats()
		return indexStats{
			Backend:       "http",
			QueueDepth:    s.QueueDepth,
			QueueCapacity: s.QueueCapacity,
			Dropped:       s.QueueDroppedTotal + s.RetainDroppedTotal,
			Failed:        s.FlushFailTotal,
		}, true
	default:
		return indexStats{}, false
	}
}
