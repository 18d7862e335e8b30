package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/Guliveer/guildkit/internal/cache"
)

type healthResponse struct {
	Status        string     `json:"status"`
	Timestamp     string     `json:"timestamp"`
	Gateway       string     `json:"gateway"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
	Uptime        string     `json:"connected_for,omitempty"`
}

type cacheSummary struct {
	Kinds       []string               `json:"kinds"`
	TotalSize   int                    `json:"total_size"`
	TotalHits   uint64                 `json:"total_hits"`
	TotalMisses uint64                 `json:"total_misses"`
	PerKind     map[string]cache.Stats `json:"per_kind"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleHealth answers 200 while the gateway is connected and 503 otherwise,
// so the endpoint can back a readiness probe.
func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	now := s.now().UTC()
	resp := healthResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		Gateway:   s.source.GatewayState(),
	}
	if last := s.source.LastConnected(); !last.IsZero() {
		last = last.UTC()
		resp.LastConnected = &last
		if resp.Gateway == "connected" {
			resp.Uptime = now.Sub(last).Round(time.Second).String()
		}
	}

	status := http.StatusOK
	if resp.Gateway != "connected" {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *StatusServer) handleCache(w http.ResponseWriter, _ *http.Request) {
	stats := s.source.CacheStats()
	summary := cacheSummary{
		Kinds:   make([]string, 0, len(stats)),
		PerKind: stats,
	}
	for kind, st := range stats {
		summary.Kinds = append(summary.Kinds, kind)
		summary.TotalSize += st.Size
		summary.TotalHits += st.Hits
		summary.TotalMisses += st.Misses
	}
	sort.Strings(summary.Kinds)

	writeJSON(w, http.StatusOK, summary)
}

func (s *StatusServer) handleCacheKind(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	st, ok := s.source.CacheStats()[kind]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown cache kind " + kind})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}
