package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-devcaps/internal/bridge"
	"github.com/nerrad567/gray-logic-devcaps/internal/resolver"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string                 `json:"timestamp"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Runtime       RuntimeMetrics         `json:"runtime"`
	Stream        HubStats               `json:"stream"`
	MQTT          MQTTMetrics            `json:"mqtt"`
	Table         TableMetrics           `json:"table"`
	Resolver      resolver.StatsSnapshot `json:"resolver"`
	Bridge        *bridge.Metrics        `json:"bridge,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// TableMetrics describes the compiled table being served.
type TableMetrics struct {
	Entries     int    `json:"entries"`
	Excluded    int    `json:"excluded"`
	Warnings    int    `json:"warnings"`
	Fingerprint string `json:"fingerprint"`
}

// handleMetrics returns runtime, table and resolver metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	table := s.resolver.Table()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Table: TableMetrics{
			Entries:     table.Len(),
			Excluded:    len(s.report.Excluded),
			Warnings:    len(s.report.Warnings),
			Fingerprint: table.Fingerprint().String(),
		},
		Resolver: s.resolver.Stats(),
	}

	if s.hub != nil {
		metrics.Stream = s.hub.Stats()
	}
	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}
	if s.bridge != nil {
		m := s.bridge.Metrics()
		metrics.Bridge = &m
	}

	writeJSON(w, http.StatusOK, metrics)
}
