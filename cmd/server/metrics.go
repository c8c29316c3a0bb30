package main

import (
	"fmt"
	"io"

	"conquest.ai/internal/persistence/objstore"
	"conquest.ai/internal/transport/ws"
)

// writeMetrics renders the Prometheus text exposition.
func writeMetrics(w io.Writer, st ws.Stats, sessions []ws.SessionStatus, idx runtimeIndex, mirror *objstore.Uploader) {
	fmt.Fprintf(w, "# HELP conquest_sessions_active Live websocket sessions.\n")
	fmt.Fprintf(w, "# TYPE conquest_sessions_active gauge\n")
	fmt.Fprintf(w, "conquest_sessions_active %d\n", st.Active)

	fmt.Fprintf(w, "# HELP conquest_sessions_opened_total Sessions that completed the handshake.\n")
	fmt.Fprintf(w, "# TYPE conquest_sessions_opened_total counter\n")
	fmt.Fprintf(w, "conquest_sessions_opened_total %d\n", st.OpenedTotal)

	fmt.Fprintf(w, "# HELP conquest_handshakes_rejected_total Connections dropped during the handshake.\n")
	fmt.Fprintf(w, "# TYPE conquest_handshakes_rejected_total counter\n")
	fmt.Fprintf(w, "conquest_handshakes_rejected_total %d\n", st.RejectedTotal)

	fmt.Fprintf(w, "# HELP conquest_messages_invalid_total Inbound messages that failed validation.\n")
	fmt.Fprintf(w, "# TYPE conquest_messages_invalid_total counter\n")
	fmt.Fprintf(w, "conquest_messages_invalid_total %d\n", st.InvalidTotal)

	fmt.Fprintf(w, "# HELP conquest_actions_rate_limited_total Actions refused by the per-session limiter.\n")
	fmt.Fprintf(w, "# TYPE conquest_actions_rate_limited_total counter\n")
	fmt.Fprintf(w, "conquest_actions_rate_limited_total %d\n", st.RateLimited)

	var claims, upgrades, powerups, failures, outDropped uint64
	var owned, pending int
	var earned float64
	for _, s := range sessions {
		claims += s.Metrics.Claims
		upgrades += s.Metrics.Upgrades
		powerups += s.Metrics.Powerups
		failures += s.Metrics.Failures
		outDropped += s.Metrics.OutDropped
		owned += s.Metrics.Owned
		pending += s.Metrics.Pending
		earned += s.Metrics.Earned
	}

	fmt.Fprintf(w, "# HELP conquest_session_txs_total Confirmed transactions across live sessions.\n")
	fmt.Fprintf(w, "# TYPE conquest_session_txs_total counter\n")
	fmt.Fprintf(w, "conquest_session_txs_total{action=%q} %d\n", "claim", claims)
	fmt.Fprintf(w, "conquest_session_txs_total{action=%q} %d\n", "upgrade", upgrades)
	fmt.Fprintf(w, "conquest_session_txs_total{action=%q} %d\n", "powerup", powerups)

	fmt.Fprintf(w, "# HELP conquest_session_failures_total Failed actions across live sessions.\n")
	fmt.Fprintf(w, "# TYPE conquest_session_failures_total counter\n")
	fmt.Fprintf(w, "conquest_session_failures_total %d\n", failures)

	fmt.Fprintf(w, "# HELP conquest_session_out_dropped_total Results and notices dropped because a client fell behind.\n")
	fmt.Fprintf(w, "# TYPE conquest_session_out_dropped_total counter\n")
	fmt.Fprintf(w, "conquest_session_out_dropped_total %d\n", outDropped)

	fmt.Fprintf(w, "# HELP conquest_territories_owned Territories owned by connected addresses.\n")
	fmt.Fprintf(w, "# TYPE conquest_territories_owned gauge\n")
	fmt.Fprintf(w, "conquest_territories_owned %d\n", owned)

	fmt.Fprintf(w, "# HELP conquest_txs_pending In-flight transactions.\n")
	fmt.Fprintf(w, "# TYPE conquest_txs_pending gauge\n")
	fmt.Fprintf(w, "conquest_txs_pending %d\n", pending)

	fmt.Fprintf(w, "# HELP conquest_earned_eth Accrued earnings of connected addresses.\n")
	fmt.Fprintf(w, "# TYPE conquest_earned_eth gauge\n")
	fmt.Fprintf(w, "conquest_earned_eth %.6f\n", earned)

	if s, ok := readIndexStats(idx); ok {
		fmt.Fprintf(w, "# HELP conquest_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(w, "# TYPE conquest_index_queue_depth gauge\n")
		fmt.Fprintf(w, "conquest_index_queue_depth{backend=%q} %d\n", s.Backend, s.QueueDepth)
		fmt.Fprintf(w, "conquest_index_queue_capacity{backend=%q} %d\n", s.Backend, s.QueueCapacity)

		fmt.Fprintf(w, "# HELP conquest_index_dropped_total Index entries dropped under backpressure.\n")
		fmt.Fprintf(w, "# TYPE conquest_index_dropped_total counter\n")
		fmt.Fprintf(w, "conquest_index_dropped_total{backend=%q} %d\n", s.Backend, s.Dropped)

		fmt.Fprintf(w, "# HELP conquest_index_errors_total Index write or flush failures.\n")
		fmt.Fprintf(w, "# TYPE conquest_index_errors_total counter\n")
		fmt.Fprintf(w, "conquest_index_errors_total{backend=%q} %d\n", s.Backend, s.Failed)
	}

	if mirror != nil {
		m := mirror.Stats()
		fmt.Fprintf(w, "# HELP conquest_mirror_queue_depth Files waiting for upload.\n")
		fmt.Fprintf(w, "# TYPE conquest_mirror_queue_depth gauge\n")
		fmt.Fprintf(w, "conquest_mirror_queue_depth %d\n", m.QueueDepth)

		fmt.Fprintf(w, "# HELP conquest_mirror_files_total Mirror outcomes by result.\n")
		fmt.Fprintf(w, "# TYPE conquest_mirror_files_total counter\n")
		fmt.Fprintf(w, "conquest_mirror_files_total{result=%q} %d\n", "uploaded", m.UploadedTotal)
		fmt.Fprintf(w, "conquest_mirror_files_total{result=%q} %d\n", "failed", m.FailedTotal)
		fmt.Fprintf(w, "conquest_mirror_files_total{result=%q} %d\n", "dropped", m.DroppedTotal)
		fmt.Fprintf(w, "conquest_mirror_files_total{result=%q} %d\n", "skipped", m.SkippedTotal)

		fmt.Fprintf(w, "# HELP conquest_mirror_last_success_unix Time of the last successful upload.\n")
		fmt.Fprintf(w, "# TYPE conquest_mirror_last_success_unix gauge\n")
		fmt.Fprintf(w, "conquest_mirror_last_success_unix %d\n", m.LastSuccessUnix)
	}
}
