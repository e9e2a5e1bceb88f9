package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"filedrop/internal/catalog"
	"filedrop/internal/storage"
)

// StoreMode decides what part of an upload request ends up on disk.
type StoreMode string

const (
	// StoreModePayload stores only the content of the multipart file part.
	StoreModePayload StoreMode = "payload"
	// StoreModeRaw stores the request body verbatim, multipart framing included.
	StoreModeRaw StoreMode = "raw"
)

const (
	uploadAck      = "JSON received and saved"
	catalogTimeout = 5 * time.Second
	mirrorTimeout  = 30 * time.Second
)

func ParseStoreMode(s string) (StoreMode, error) {
	switch StoreMode(s) {
	case "", StoreModePayload:
		return StoreModePayload, nil
	case StoreModeRaw:
		return StoreModeRaw, nil
	default:
		return "", fmt.Errorf("unknown store mode %q", s)
	}
}

// handleUpload reads the whole body, picks a filename, stores the upload under
// "<timestamp>-<filename>" in the upload dir and acknowledges in plain text.
// CORS headers are set by corsMiddleware before this runs.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := RequestIDFromContext(r.Context())

	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.metrics.RecordUploadError()

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Warn("upload_too_large", map[string]any{
				"rid":   rid,
				"limit": humanize.IBytes(uint64(tooLarge.Limit)),
			})
			writeText(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}

		Error("upload_read_failed", map[string]any{"rid": rid}, err)
		writeText(w, http.StatusInternalServerError, "Failed to read body: "+err.Error())
		return
	}

	file := s.extractUpload(r.Header.Get("Content-Type"), body)
	now := s.cfg.Clock()

	stored, err := s.store.Save(now, file.Filename, file.Payload)
	if err != nil {
		s.metrics.RecordUploadError()
		Error("upload_store_failed", map[string]any{
			"rid":      rid,
			"filename": file.Filename,
			"dir":      s.store.Dir(),
		}, err)
		writeText(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	s.metrics.RecordUpload(stored.Size, time.Since(start), stored.Renamed)
	Info("upload_stored", map[string]any{
		"rid":      rid,
		"name":     stored.Name,
		"original": file.Filename,
		"size":     humanize.IBytes(uint64(stored.Size)),
		"renamed":  stored.Renamed,
		"mode":     string(s.cfg.StoreMode),
	})

	s.afterStore(r, file, stored, now)

	writeText(w, http.StatusOK, uploadAck)
}

// extractUpload returns the filename and bytes to store. In payload mode a body
// that does not parse as multipart/form-data falls back to raw handling.
func (s *Server) extractUpload(contentType string, body []byte) uploadedFile {
	if s.cfg.StoreMode == StoreModePayload {
		f, err := parseMultipartFile(contentType, body)
		if err == nil {
			return f
		}
		Debug("multipart_parse_fallback", map[string]any{"error": err.Error()})
	}

	return uploadedFile{
		Filename:    ExtractFilename(string(body)),
		ContentType: contentType,
		Payload:     body,
	}
}

// afterStore records and mirrors a stored upload. Failures are logged and
// counted; the upload itself has already succeeded.
func (s *Server) afterStore(r *http.Request, file uploadedFile, stored storage.StoredFile, now time.Time) {
	rid := RequestIDFromContext(r.Context())
	contentType := file.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	ctx := context.WithoutCancel(r.Context())

	if s.cfg.Catalog != nil {
		rec := catalog.Record{
			ID:           uuid.New(),
			StoredName:   stored.Name,
			OriginalName: file.Filename,
			SizeBytes:    stored.Size,
			SHA256:       stored.SHA256,
			ContentType:  contentType,
			RemoteIP:     getClientIP(r, s.cfg.TrustProxyHeaders),
			CreatedAt:    now.UTC(),
		}
		cctx, cancel := context.WithTimeout(ctx, catalogTimeout)
		err := s.cfg.Catalog.Record(cctx, rec)
		cancel()
		if err != nil {
			s.metrics.RecordCatalogError()
			Error("catalog_record_failed", map[string]any{"rid": rid, "name": stored.Name}, err)
		}
	}

	if s.cfg.Mirror != nil {
		mctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
		err := s.mirrorBreaker.Execute(func() error {
			return s.cfg.Mirror.Put(mctx, stored.Name, stored.Path, contentType)
		})
		cancel()
		if err != nil {
			s.metrics.RecordMirror(false)
			Error("mirror_put_failed", map[string]any{
				"rid":    rid,
				"name":   stored.Name,
				"bucket": s.cfg.Mirror.Bucket(),
			}, err)
			return
		}
		s.metrics.RecordMirror(true)
	}
}
