package main

import (
	"log"
	"path/filepath"
	"time"

	"conquest.ai/internal/persistence/archive"
	"conquest.ai/internal/persistence/indexdb"
	persistlog "conquest.ai/internal/persistence/log"
	"conquest.ai/internal/persistence/objstore"
	"conquest.ai/internal/persistence/snapshot"
	"conquest.ai/internal/sim/world"
	"conquest.ai/internal/transport/ws"
)

// sessionRuntime attaches per-session persistence to each new World.
type sessionRuntime struct {
	dataDir string
	idx     runtimeIndex
	mirror  *objstore.Uploader
	logger  *log.Logger
	now     func() time.Time
}

type writtenSnapshot struct {
	path string
	snap snapshot.SnapshotV1
}

func (rt *sessionRuntime) setup(w *world.World, info ws.SessionInfo) func() {
	dir := filepath.Join(rt.dataDir, "sessions", info.ID)

	tickLog := persistlog.NewTickLogger(dir)
	auditLog := persistlog.NewAuditLogger(dir)
	if rt.mirror != nil {
		tickLog.Writer().OnClose(rt.mirror.Enqueue)
		auditLog.Writer().OnClose(rt.mirror.Enqueue)
	}
	w.SetTickLogger(multiTickLogger{a: tickLog, b: rt.idx})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: rt.idx})

	start := indexdb.SessionInfo{
		SessionID:  info.ID,
		ClientName: info.ClientName,
		Remote:     info.Remote,
		StartedAt:  info.StartedAt.UnixMilli(),
	}
	if rt.idx != nil {
		rt.idx.RecordSessionStart(start)
	}

	// Snapshot writer. The World only sends while Run is active, so the
	// channel is closed by the teardown, which runs after Run returns.
	snapCh := make(chan snapshot.SnapshotV1, 4)
	w.SetSnapshotSink(snapCh)
	lastCh := make(chan *writtenSnapshot, 1)
	go func() {
		var last *writtenSnapshot
		for snap := range snapCh {
			path := snapshot.Path(rt.dataDir, info.ID, snap.Header.Tick)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				rt.printf("session %s: snapshot write: %v", info.ID, err)
				continue
			}
			rt.mirror.Enqueue(path)
			if rt.idx != nil {
				rt.idx.RecordSnapshot(path, snap)
			}
			last = &writtenSnapshot{path: path, snap: snap}
		}
		lastCh <- last
	}()

	return func() {
		close(snapCh)
		last := <-lastCh

		if err := tickLog.Close(); err != nil {
			rt.printf("session %s: close tick log: %v", info.ID, err)
		}
		if err := auditLog.Close(); err != nil {
			rt.printf("session %s: close audit log: %v", info.ID, err)
		}

		end := start
		end.EndedAt = rt.now().UnixMilli()
		end.LastTick = w.CurrentTick()
		end.Address = w.Metrics().Address
		if last != nil {
			archived, meta, err := archive.ArchiveSession(rt.dataDir, info.ClientName, last.path, last.snap, rt.now())
			if err != nil {
				rt.printf("session %s: archive: %v", info.ID, err)
			} else {
				rt.mirror.Enqueue(archived)
				rt.mirror.Enqueue(meta)
			}
		}
		if rt.idx != nil {
			rt.idx.RecordSessionEnd(end)
		}
	}
}

func (rt *sessionRuntime) printf(format string, args ...any) {
	if rt.logger != nil {
		rt.logger.Printf(format, args...)
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
