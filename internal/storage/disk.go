// Package storage persists uploaded files on local disk and, optionally,
// mirrors them to an S3-compatible bucket.
package storage

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrExists is returned when the target name is already taken in the upload dir.
var ErrExists = errors.New("storage: file already exists")

// tempPrefix marks in-flight writes. Committed names always start with a
// timestamp, so the sweeper can never match a stored upload.
const tempPrefix = ".upload-"

// StoredFile describes a file committed to the upload directory.
type StoredFile struct {
	Name    string // base name inside the upload dir
	Path    string // Dir joined with Name
	Size    int64
	SHA256  string // hex digest of the stored bytes
	Renamed bool   // true when a collision forced a suffixed name
}

// DiskStore writes uploads into a single flat directory. Every write lands in
// a temp file first and is then hard-linked to its final name, so a reader
// never sees a partial file and an existing file is never overwritten.
type DiskStore struct {
	dir       string
	newSuffix func() string
}

// NewDiskStore returns a store rooted at dir. The directory is created lazily
// on the first Save.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{
		dir: dir,
		newSuffix: func() string {
			return uuid.NewString()[:8]
		},
	}
}

// Dir returns the upload directory.
func (d *DiskStore) Dir() string {
	return d.dir
}

// EnsureDir creates the upload directory and any missing parents.
func (d *DiskStore) EnsureDir() error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	return nil
}

// Save stores payload as "<timestamp>-<filename>". When that name is already
// taken (same filename within the same second) it retries once with a short
// random segment: "<timestamp>-<8 hex>-<filename>".
func (d *DiskStore) Save(now time.Time, filename string, payload []byte) (StoredFile, error) {
	if err := d.EnsureDir(); err != nil {
		return StoredFile{}, err
	}

	clean := SanitizeFilename(filename)

	tmp, sum, err := d.writeTemp(payload)
	if err != nil {
		return StoredFile{}, err
	}
	defer func() { _ = os.Remove(tmp) }()

	name := StorageName(now, clean)
	renamed := false
	err = d.commit(tmp, name)
	if errors.Is(err, ErrExists) {
		name = StorageName(now, d.newSuffix()+"-"+clean)
		renamed = true
		err = d.commit(tmp, name)
	}
	if err != nil {
		return StoredFile{}, err
	}

	return StoredFile{
		Name:    name,
		Path:    filepath.Join(d.dir, name),
		Size:    int64(len(payload)),
		SHA256:  sum,
		Renamed: renamed,
	}, nil
}

// writeTemp writes payload through a buffered writer into a new temp file in
// the upload dir and returns its path and SHA-256.
func (d *DiskStore) writeTemp(payload []byte) (path string, sum string, err error) {
	f, err := os.CreateTemp(d.dir, tempPrefix+"*")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(f)
	if _, err = bw.Write(payload); err != nil {
		return "", "", fmt.Errorf("write temp file: %w", err)
	}
	if err = bw.Flush(); err != nil {
		return "", "", fmt.Errorf("flush temp file: %w", err)
	}
	if err = f.Chmod(0o644); err != nil {
		return "", "", fmt.Errorf("chmod temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		return "", "", fmt.Errorf("sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", "", fmt.Errorf("close temp file: %w", err)
	}

	h := sha256.Sum256(payload)
	return tmpPath, hex.EncodeToString(h[:]), nil
}

// commit links tmp to name. link(2) fails when the target exists, which makes
// the commit create-exclusive.
func (d *DiskStore) commit(tmp, name string) error {
	if err := os.Link(tmp, filepath.Join(d.dir, name)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}
