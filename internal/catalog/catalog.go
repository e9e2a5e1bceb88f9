// Package catalog keeps a record of every stored upload. The record is
// bookkeeping only: the file on disk is the source of truth, and a catalog
// failure never fails an upload.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind selects a catalog backend.
type Kind string

const (
	KindNone     Kind = "none"
	KindBadger   Kind = "badger"
	KindPostgres Kind = "postgres"
)

var (
	// ErrDisabled is returned by Open for KindNone.
	ErrDisabled = errors.New("catalog: disabled")
	// ErrNotFound is returned by Get when no record matches.
	ErrNotFound = errors.New("catalog: record not found")
)

// Record describes one stored upload.
type Record struct {
	ID           uuid.UUID `json:"id"`
	StoredName   string    `json:"stored_name"`
	OriginalName string    `json:"original_name"`
	SizeBytes    int64     `json:"size_bytes"`
	SHA256       string    `json:"sha256"`
	ContentType  string    `json:"content_type"`
	RemoteIP     string    `json:"remote_ip,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Catalog is implemented by every backend.
type Catalog interface {
	Record(ctx context.Context, rec Record) error
	Get(ctx context.Context, storedName string) (Record, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Kind        Kind
	BadgerDir   string
	DatabaseURL string
}

// ParseKind accepts "", "none", "badger" and "postgres".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindNone:
		return KindNone, nil
	case KindBadger, KindPostgres:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown catalog kind %q", s)
	}
}

// Open returns the configured backend, or ErrDisabled for KindNone.
func Open(ctx context.Context, cfg Config) (Catalog, error) {
	switch cfg.Kind {
	case "", KindNone:
		return nil, ErrDisabled
	case KindBadger:
		return OpenBadger(cfg.BadgerDir)
	case KindPostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown catalog kind %q", cfg.Kind)
	}
}
