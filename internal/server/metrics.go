package server

import (
	"sync"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	mu sync.RWMutex

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadRenamedTotal  int64
	uploadDurationTotal time.Duration

	// Static metrics
	staticServedTotal   int64
	staticBytesTotal    int64
	staticNotFoundTotal int64

	// Post-store hooks
	catalogErrorsTotal int64
	mirrorPutsTotal    int64
	mirrorErrorsTotal  int64

	// System metrics
	requestsTotal        int64
	requestErrors5xx     int64
	requestErrors4xx     int64
	requestDurationTotal time.Duration
}

func newMetrics() *Metrics {
	return &Metrics{}
}

// RecordUpload records a stored upload
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration, renamed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
	if renamed {
		m.uploadRenamedTotal++
	}
}

// RecordUploadError records an upload that was not stored
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

func (m *Metrics) RecordStaticServed(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staticServedTotal++
	m.staticBytesTotal += bytes
}

func (m *Metrics) RecordStaticMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staticNotFoundTotal++
}

func (m *Metrics) RecordCatalogError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogErrorsTotal++
}

// RecordMirror records one mirror attempt
func (m *Metrics) RecordMirror(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.mirrorPutsTotal++
	} else {
		m.mirrorErrorsTotal++
	}
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	m.requestDurationTotal += duration

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:          m.uploadsTotal,
		UploadBytesTotal:      m.uploadBytesTotal,
		UploadErrorsTotal:     m.uploadErrorsTotal,
		UploadRenamedTotal:    m.uploadRenamedTotal,
		UploadDurationSecond:  m.uploadDurationTotal.Seconds(),
		StaticServedTotal:     m.staticServedTotal,
		StaticBytesTotal:      m.staticBytesTotal,
		StaticNotFoundTotal:   m.staticNotFoundTotal,
		CatalogErrorsTotal:    m.catalogErrorsTotal,
		MirrorPutsTotal:       m.mirrorPutsTotal,
		MirrorErrorsTotal:     m.mirrorErrorsTotal,
		RequestsTotal:         m.requestsTotal,
		RequestErrors5xx:      m.requestErrors5xx,
		RequestErrors4xx:      m.requestErrors4xx,
		RequestDurationSecond: m.requestDurationTotal.Seconds(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	UploadsTotal         int64   `json:"uploads_total"`
	UploadBytesTotal     int64   `json:"upload_bytes_total"`
	UploadErrorsTotal    int64   `json:"upload_errors_total"`
	UploadRenamedTotal   int64   `json:"upload_renamed_total"`
	UploadDurationSecond float64 `json:"upload_duration_seconds"`

	StaticServedTotal   int64 `json:"static_served_total"`
	StaticBytesTotal    int64 `json:"static_bytes_total"`
	StaticNotFoundTotal int64 `json:"static_not_found_total"`

	CatalogErrorsTotal int64 `json:"catalog_errors_total"`
	MirrorPutsTotal    int64 `json:"mirror_puts_total"`
	MirrorErrorsTotal  int64 `json:"mirror_errors_total"`

	RequestsTotal         int64   `json:"requests_total"`
	RequestErrors5xx      int64   `json:"request_errors_5xx"`
	RequestErrors4xx      int64   `json:"request_errors_4xx"`
	RequestDurationSecond float64 `json:"request_duration_seconds"`
}
