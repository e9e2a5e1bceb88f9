// prometheus.go - Prometheus text exposition of the in-process counters.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// handleMetrics serves GET /metrics in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := s.metrics.Snapshot()

	var out strings.Builder

	out.WriteString("# HELP fd_info Application version info\n")
	out.WriteString("# TYPE fd_info gauge\n")
	fmt.Fprintf(&out, "fd_info{version=\"%s\",commit=\"%s\",store_mode=\"%s\"} 1\n\n",
		prometheusLabel(s.cfg.Build.Version),
		prometheusLabel(s.cfg.Build.Commit),
		prometheusLabel(string(s.cfg.StoreMode)))

	writeCounter(&out, "fd_requests_total", "Total number of HTTP requests", snapshot.RequestsTotal)
	out.WriteString("# HELP fd_request_errors_total HTTP responses with an error status\n")
	out.WriteString("# TYPE fd_request_errors_total counter\n")
	fmt.Fprintf(&out, "fd_request_errors_total{class=\"4xx\"} %d\n", snapshot.RequestErrors4xx)
	fmt.Fprintf(&out, "fd_request_errors_total{class=\"5xx\"} %d\n\n", snapshot.RequestErrors5xx)
	out.WriteString("# HELP fd_request_duration_seconds_sum Time spent serving requests\n")
	out.WriteString("# TYPE fd_request_duration_seconds_sum counter\n")
	fmt.Fprintf(&out, "fd_request_duration_seconds_sum %.6f\n\n", snapshot.RequestDurationSecond)

	writeCounter(&out, "fd_uploads_total", "Total number of stored uploads", snapshot.UploadsTotal)
	writeCounter(&out, "fd_upload_bytes_total", "Bytes written by stored uploads", snapshot.UploadBytesTotal)
	writeCounter(&out, "fd_upload_errors_total", "Uploads that were not stored", snapshot.UploadErrorsTotal)
	out.WriteString("# HELP fd_upload_duration_seconds_sum Time spent reading and storing uploads\n")
	out.WriteString("# TYPE fd_upload_duration_seconds_sum counter\n")
	fmt.Fprintf(&out, "fd_upload_duration_seconds_sum %.6f\n\n", snapshot.UploadDurationSecond)
	writeCounter(&out, "fd_upload_renamed_total", "Uploads stored under a suffixed name after a collision", snapshot.UploadRenamedTotal)

	writeCounter(&out, "fd_static_served_total", "Static files served", snapshot.StaticServedTotal)
	writeCounter(&out, "fd_static_bytes_total", "Bytes served from static prefixes", snapshot.StaticBytesTotal)
	writeCounter(&out, "fd_static_not_found_total", "Static requests answered with 404", snapshot.StaticNotFoundTotal)

	writeCounter(&out, "fd_catalog_errors_total", "Catalog writes that failed", snapshot.CatalogErrorsTotal)
	writeCounter(&out, "fd_mirror_puts_total", "Uploads copied to the object mirror", snapshot.MirrorPutsTotal)
	writeCounter(&out, "fd_mirror_errors_total", "Mirror copies that failed or were rejected", snapshot.MirrorErrorsTotal)

	out.WriteString("# HELP fd_mirror_circuit_open Whether the mirror circuit breaker is open\n")
	out.WriteString("# TYPE fd_mirror_circuit_open gauge\n")
	open := 0
	if s.mirrorBreaker.State() == StateOpen {
		open = 1
	}
	fmt.Fprintf(&out, "fd_mirror_circuit_open %d\n\n", open)

	out.WriteString("# HELP fd_uptime_seconds Application uptime in seconds\n")
	out.WriteString("# TYPE fd_uptime_seconds counter\n")
	fmt.Fprintf(&out, "fd_uptime_seconds %.0f\n", time.Since(s.started).Seconds())

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.String()))
}

func writeCounter(out *strings.Builder, name, help string, value int64) {
	fmt.Fprintf(out, "# HELP %s %s\n", name, help)
	fmt.Fprintf(out, "# TYPE %s counter\n", name)
	fmt.Fprintf(out, "%s %d\n\n", name, value)
}

// Helper function to format label safely for Prometheus
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}
