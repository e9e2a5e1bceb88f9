package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

const healthCheckTimeout = 5 * time.Second

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Commit     string                     `json:"commit,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   any             `json:"details,omitempty"`

	// critical components make the whole service unhealthy when down.
	critical bool
}

// StorageDetails describes the filesystem holding the upload dir.
type StorageDetails struct {
	AvailableBytes int64   `json:"available_bytes"`
	UsedBytes      int64   `json:"used_bytes"`
	TotalBytes     int64   `json:"total_bytes"`
	PercentageUsed float64 `json:"percentage_used"`
	Available      string  `json:"available"`
}

// HandleHealth reports the upload dir, catalog and mirror. Only an unusable
// upload dir turns the response into a 503.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(health)
}

// HandleLive provides a liveness probe (is the process running?)
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
	})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	health := Health{
		Timestamp:  time.Now().UTC(),
		Version:    s.cfg.Build.Version,
		Commit:     s.cfg.Build.Commit,
		Components: make(map[string]ComponentHealth),
	}

	health.Components["upload_dir"] = s.checkUploadDirHealth()
	if s.cfg.Catalog != nil {
		health.Components["catalog"] = s.checkCatalogHealth(ctx)
	}
	if s.cfg.Mirror != nil {
		health.Components["mirror"] = s.checkMirrorHealth(ctx)
	}

	health.Status = determineOverallHealth(health.Components)
	return health
}

// checkUploadDirHealth reports whether uploads can be stored and how much
// space is left. It never creates the upload dir: a missing dir is fine as
// long as the first upload will be able to create it.
func (s *Server) checkUploadDirHealth() ComponentHealth {
	existing, err := usableUploadDir(s.store.Dir())
	if err != nil {
		return ComponentHealth{
			Status:   ComponentStatusDown,
			Message:  err.Error(),
			critical: true,
		}
	}

	details, err := diskUsage(existing)
	if err != nil {
		return ComponentHealth{
			Status:   ComponentStatusUp,
			Message:  "upload dir writable; disk usage unavailable",
			critical: true,
		}
	}
	details.Available = humanize.IBytes(uint64(details.AvailableBytes))

	status := ComponentStatusUp
	message := "upload dir healthy"
	if details.PercentageUsed > 90 {
		status = ComponentStatusDegraded
		message = "storage critically low"
	} else if details.PercentageUsed > 80 {
		status = ComponentStatusDegraded
		message = "storage running low"
	}

	return ComponentHealth{
		Status:   status,
		Message:  message,
		Details:  details,
		critical: true,
	}
}

// usableUploadDir returns the upload dir, or its nearest existing ancestor when
// the dir does not exist yet, after checking that it is a writable directory.
func usableUploadDir(dir string) (string, error) {
	p := dir
	for {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				return "", fmt.Errorf("upload dir: %s is not a directory", p)
			}
			if err := dirWritable(p); err != nil {
				return "", fmt.Errorf("upload dir: %s not writable: %w", p, err)
			}
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("upload dir: %w", err)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("upload dir: %w", err)
		}
		p = parent
	}
}

func (s *Server) checkCatalogHealth(ctx context.Context) ComponentHealth {
	start := time.Now()

	if err := s.cfg.Catalog.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "catalog ping failed: " + err.Error(),
		}
	}

	count, err := s.cfg.Catalog.Count(ctx)
	if err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDegraded,
			Message: "catalog count failed: " + err.Error(),
		}
	}

	return ComponentHealth{
		Status:    ComponentStatusUp,
		Message:   "catalog healthy",
		LatencyMs: float64(time.Since(start).Milliseconds()),
		Details:   map[string]any{"records": count},
	}
}

func (s *Server) checkMirrorHealth(ctx context.Context) ComponentHealth {
	stats := s.mirrorBreaker.Stats()
	if s.mirrorBreaker.State() == StateOpen {
		return ComponentHealth{
			Status:  ComponentStatusDegraded,
			Message: "mirror circuit open",
			Details: stats,
		}
	}

	start := time.Now()
	if err := s.cfg.Mirror.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "mirror unreachable: " + err.Error(),
			Details: stats,
		}
	}

	latency := time.Since(start).Milliseconds()
	status := ComponentStatusUp
	message := "mirror healthy"
	if latency > 2000 {
		status = ComponentStatusDegraded
		message = "mirror latency high"
	}

	return ComponentHealth{
		Status:    status,
		Message:   message,
		LatencyMs: float64(latency),
		Details:   stats,
	}
}

// determineOverallHealth is unhealthy when a critical component is down and
// degraded when anything else is not up.
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	status := HealthStatusHealthy
	for _, c := range components {
		switch {
		case c.Status == ComponentStatusDown && c.critical:
			return HealthStatusUnhealthy
		case c.Status != ComponentStatusUp:
			status = HealthStatusDegraded
		}
	}
	return status
}
