package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/Aricg/TacticalBlocks-sub001/internal/persistence/offsite"
	"github.com/Aricg/TacticalBlocks-sub001/internal/sim/multimatch"
)

type httpDeps struct {
	manager  *multimatch.Manager
	runtimes map[string]*matchRuntime
	mirror   *offsite.Mirror
}

func (d httpDeps) healthz(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(200)
	_, _ = rw.Write([]byte("ok"))
}

func (d httpDeps) matches(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(d.manager.Manifest())
}

// metrics serves a minimal Prometheus exposition built from each match's
// latest published frame.
func (d httpDeps) metrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(rw, "# HELP tacticalblocks_match_tick Current match tick.\n")
	fmt.Fprintf(rw, "# TYPE tacticalblocks_match_tick gauge\n")
	for _, id := range d.manager.MatchIDs() {
		m := d.manager.Match(id)
		fmt.Fprintf(rw, "tacticalblocks_match_tick{match=%q} %d\n", id, m.CurrentTick())
	}

	fmt.Fprintf(rw, "# HELP tacticalblocks_match_units Live units per team.\n")
	fmt.Fprintf(rw, "# TYPE tacticalblocks_match_units gauge\n")
	for _, id := range d.manager.MatchIDs() {
		st := d.manager.Match(id).Latest()
		if st == nil {
			continue
		}
		fmt.Fprintf(rw, "tacticalblocks_match_units{match=%q,team=%q} %d\n", id, "blue", st.Outcome.BlueUnits)
		fmt.Fprintf(rw, "tacticalblocks_match_units{match=%q,team=%q} %d\n", id, "red", st.Outcome.RedUnits)
	}

	fmt.Fprintf(rw, "# HELP tacticalblocks_match_cities Owned cities per team.\n")
	fmt.Fprintf(rw, "# TYPE tacticalblocks_match_cities gauge\n")
	for _, id := range d.manager.MatchIDs() {
		st := d.manager.Match(id).Latest()
		if st == nil {
			continue
		}
		fmt.Fprintf(rw, "tacticalblocks_match_cities{match=%q,team=%q} %d\n", id, "blue", st.Outcome.BlueCities)
		fmt.Fprintf(rw, "tacticalblocks_match_cities{match=%q,team=%q} %d\n", id, "red", st.Outcome.RedCities)
	}

	fmt.Fprintf(rw, "# HELP tacticalblocks_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE tacticalblocks_index_queue_depth gauge\n")
	for _, id := range d.manager.MatchIDs() {
		mr := d.runtimes[id]
		if mr == nil || mr.idx == nil {
			continue
		}
		s := mr.idx.Stats()
		fmt.Fprintf(rw, "tacticalblocks_index_queue_depth{match=%q} %d\n", id, s.QueueDepth)
		fmt.Fprintf(rw, "tacticalblocks_index_dropped_total{match=%q,kind=%q} %d\n", id, "tick", s.DropTickTotal)
		fmt.Fprintf(rw, "tacticalblocks_index_dropped_total{match=%q,kind=%q} %d\n", id, "event", s.DropEventTotal)
		fmt.Fprintf(rw, "tacticalblocks_index_dropped_total{match=%q,kind=%q} %d\n", id, "snapshot", s.DropSnapshotTotal)
	}

	if d.mirror != nil {
		s := d.mirror.Stats()
		fmt.Fprintf(rw, "# HELP tacticalblocks_offsite_uploads_total Offsite mirror uploads by result.\n")
		fmt.Fprintf(rw, "# TYPE tacticalblocks_offsite_uploads_total counter\n")
		fmt.Fprintf(rw, "tacticalblocks_offsite_uploads_total{result=%q} %d\n", "ok", s.UploadSuccessTotal)
		fmt.Fprintf(rw, "tacticalblocks_offsite_uploads_total{result=%q} %d\n", "fail", s.UploadFailTotal)
		fmt.Fprintf(rw, "tacticalblocks_offsite_uploads_total{result=%q} %d\n", "dropped", s.DroppedTotal)
		fmt.Fprintf(rw, "tacticalblocks_offsite_queue_depth %d\n", s.QueueDepth)
	}
}

// adminState returns the latest STATE frame of one match. Loopback only.
func (d httpDeps) adminState(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	m := d.manager.Match(r.URL.Query().Get("match_id"))
	if m == nil {
		http.Error(rw, "unknown match", http.StatusNotFound)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(struct {
		MatchID string `json:"match_id"`
		Tick    uint64 `json:"tick"`
		State   any    `json:"state,omitempty"`
	}{
		MatchID: m.ID(),
		Tick:    m.CurrentTick(),
		State:   m.Latest(),
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
