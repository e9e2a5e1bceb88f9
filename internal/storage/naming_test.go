package storage

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestStorageName(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)

	got := StorageName(now, "a.txt")
	if got != "20240102030405-a.txt" {
		t.Fatalf("StorageName = %q, want %q", got, "20240102030405-a.txt")
	}
}

func TestStorageName_ZeroPadded(t *testing.T) {
	now := time.Date(2025, 9, 8, 7, 6, 5, 999, time.Local)

	got := StorageName(now, "x")
	if got != "20250908070605-x" {
		t.Fatalf("StorageName = %q, want zero-padded fields", got)
	}
}

func TestStorageName_DistinctAcrossSeconds(t *testing.T) {
	first := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	second := first.Add(time.Second)

	if StorageName(first, "report.pdf") == StorageName(second, "report.pdf") {
		t.Fatal("same filename in different seconds must produce different names")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"spaces inside kept", "my report.pdf", "my report.pdf"},
		{"forward slash", "../../etc/passwd", "_.._etc_passwd"},
		{"backslash", `..\..\boot.ini`, "_.._boot.ini"},
		{"null byte", "a\x00b.txt", "ab.txt"},
		{"leading dots", "..hidden", "hidden"},
		{"only dots", "...", "unnamed"},
		{"empty", "", "unnamed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_LongNameKeepsExtension(t *testing.T) {
	in := strings.Repeat("a", 300) + ".pdf"

	got := SanitizeFilename(in)
	if len(got) != MaxFilenameBytes {
		t.Fatalf("len = %d, want %d", len(got), MaxFilenameBytes)
	}
	if !strings.HasSuffix(got, ".pdf") {
		t.Fatalf("extension lost: %q", got[len(got)-10:])
	}
}

func TestSanitizeFilename_TruncatesOnRuneBoundary(t *testing.T) {
	// "é" is two bytes; an odd cut would land inside one.
	in := "x" + strings.Repeat("é", 200) + ".txt"

	got := SanitizeFilename(in)
	if len(got) > MaxFilenameBytes {
		t.Fatalf("len = %d, want <= %d", len(got), MaxFilenameBytes)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if !strings.HasSuffix(got, ".txt") {
		t.Fatalf("extension lost: %q", got)
	}
}

func TestSanitizeFilename_LongExtensionDropped(t *testing.T) {
	in := "a." + strings.Repeat("b", 300)

	got := SanitizeFilename(in)
	if len(got) != MaxFilenameBytes {
		t.Fatalf("len = %d, want %d", len(got), MaxFilenameBytes)
	}
}

func TestStorageName_FitsComponentWithSuffix(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	clean := SanitizeFilename(strings.Repeat("n", 400))

	if got := StorageName(now, "deadbeef-"+clean); len(got) > 255 {
		t.Fatalf("suffixed name is %d bytes", len(got))
	}
}
