package storage

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// timestampLayout renders local time as YYYYMMDDHHMMSS.
const timestampLayout = "20060102150405"

const (
	// maxComponentBytes is NAME_MAX on common filesystems.
	maxComponentBytes = 255
	// suffixBytes covers the "<8 hex>-" segment added on a collision.
	suffixBytes = 9
	// MaxFilenameBytes leaves room for the timestamp prefix and the
	// collision segment, so every stored name fits in one path component.
	MaxFilenameBytes = maxComponentBytes - len(timestampLayout) - 1 - suffixBytes
	maxExtBytes      = 32
)

// StorageName joins a second-resolution timestamp and the original filename:
// "20240102030405-report.pdf". Two uploads of the same file in different
// seconds always get different names.
func StorageName(now time.Time, filename string) string {
	return now.Format(timestampLayout) + "-" + filename
}

// SanitizeFilename removes characters that would let a client-supplied name
// escape the upload directory. Names that are already safe come back unchanged.
func SanitizeFilename(filename string) string {
	// Remove path separators
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")

	// Remove null bytes
	filename = strings.ReplaceAll(filename, "\x00", "")

	// Trim spaces and dots from start/end
	filename = strings.Trim(filename, " .")

	if len(filename) > MaxFilenameBytes {
		ext := filepath.Ext(filename)
		base := strings.TrimSuffix(filename, ext)
		if len(ext) > maxExtBytes {
			ext, base = "", filename
		}
		filename = truncateUTF8(base, MaxFilenameBytes-len(ext)) + ext
	}

	if filename == "" {
		filename = "unnamed"
	}

	return filename
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
