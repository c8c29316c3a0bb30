package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"conquest.ai/internal/persistence/snapshot"
)

// replay rebuilds a session's board from its audit log and checks it against
// a snapshot of the session. Only entries written before the snapshot are
// replayed, so an intermediate snapshot of a live session verifies too. Tick
// logs are checked for gaps and their earnings are summed against the
// snapshot leaderboard.
func main() {
	var (
		sessionDir = flag.String("session", "", "session directory (<data>/sessions/<id>)")
		snapPath   = flag.String("snapshot", "", "snapshot to compare against (default: latest in <session>/snapshots)")
	)
	flag.Parse()

	if strings.TrimSpace(*sessionDir) == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}

	sp := strings.TrimSpace(*snapPath)
	if sp == "" {
		sp = latestSnapshot(*sessionDir)
	}
	if sp == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found in", filepath.Join(*sessionDir, "snapshots"))
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(sp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot session=%s tick=%d owned=%d claims=%d upgrades=%d powerups=%d\n",
		snap.Header.SessionID, snap.Header.Tick, snap.Owned(), snap.Counters.Claims, snap.Counters.Upgrades, snap.Counters.Powerups)

	auditFiles, err := listLogFiles(filepath.Join(*sessionDir, "audit"), "audit-")
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "list audit:", err)
		os.Exit(1)
	}
	board, applied, err := replayAudit(auditFiles, snapshotMutations(snap))
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay audit:", err)
		os.Exit(1)
	}

	eventFiles, err := listLogFiles(filepath.Join(*sessionDir, "events"), "events-")
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	earned, ticks, err := sumEarnings(eventFiles, snap.Header.Tick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}

	problems := compareBoard(board, snap)
	problems = append(problems, compareEarnings(earned, snap)...)
	for _, p := range problems {
		fmt.Println("mismatch:", p)
	}
	if len(problems) > 0 {
		os.Exit(1)
	}
	fmt.Printf("replay ok: applied=%d audit entries, checked=%d ticks\n", applied, ticks)
}

func latestSnapshot(sessionDir string) string {
	dir := filepath.Join(sessionDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			best, bestTick = filepath.Join(dir, name), tick
		}
	}
	return best
}

// listLogFiles returns the hourly files in name order, which is time order.
func listLogFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".jsonl.zst") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}
