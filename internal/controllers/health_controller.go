package controllers

import (
	"fmt"
	"net/http"
	"time"

	"stride/internal/services"
)

// SimulationReporter tells whether locations currently come from the simulator.
type SimulationReporter interface {
	Simulated() bool
}

type HealthController struct {
	service   services.RunServiceInterface
	feed      SimulationReporter
	startTime time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	ActiveRun     bool    `json:"active_run"`
	Sessions      int     `json:"sessions"`
	PendingWrites int     `json:"pending_writes"`
	Simulated     bool    `json:"simulated"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	current, active := hc.service.Current()
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		ActiveRun:     active && !current.Finalized(),
		Sessions:      hc.service.SessionCount(),
		PendingWrites: hc.service.PendingWrites(),
		Simulated:     hc.feed.Simulated(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(service services.RunServiceInterface, feed SimulationReporter) *HealthController {
	return &HealthController{
		service:   service,
		feed:      feed,
		startTime: time.Now(),
	}
}
