package main

import (
	"net/http"
	"sync/atomic"
	"time"
)

// serverStats tracks conversion counters for the health endpoint.
type serverStats struct {
	startedAt time.Time

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func newServerStats() *serverStats {
	return &serverStats{startedAt: time.Now()}
}

func (s *serverStats) markStarted()   { s.active.Add(1) }
func (s *serverStats) markCompleted() { s.active.Add(-1); s.completed.Add(1) }
func (s *serverStats) markFailed()    { s.active.Add(-1); s.failed.Add(1) }

// HealthStatus is the response shape of /healthz.
type HealthStatus struct {
	Status               string `json:"status"`
	ActiveConversions    int64  `json:"active_conversions"`
	CompletedConversions int64  `json:"completed_conversions"`
	FailedConversions    int64  `json:"failed_conversions"`
	MaxConversions       int    `json:"max_conversions"`
	Uptime               string `json:"uptime"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active := s.stats.active.Load()
	status := "healthy"
	if active >= int64(s.cfg.MaxConversions) {
		status = "busy"
	}
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:               status,
		ActiveConversions:    active,
		CompletedConversions: s.stats.completed.Load(),
		FailedConversions:    s.stats.failed.Load(),
		MaxConversions:       s.cfg.MaxConversions,
		Uptime:               time.Since(s.stats.startedAt).String(),
	})
}
