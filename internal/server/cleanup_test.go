package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStartSweepJob_RunsOnceThenStops(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, ".upload-stale")
	stored := filepath.Join(dir, "20240102030405-a.txt")
	writeFile(t, stale, []byte("x"))
	writeFile(t, stored, []byte("y"))
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := StartSweepJob(ctx, SweepConfig{Dir: dir, Interval: time.Hour, MaxAge: time.Hour}); err != nil {
		t.Fatalf("StartSweepJob: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file should be removed")
	}
	if _, err := os.Stat(stored); err != nil {
		t.Errorf("stored upload must be kept: %v", err)
	}
}

func TestStartSweepJob_Disabled(t *testing.T) {
	done := make(chan error, 1)
	go func() { done <- StartSweepJob(context.Background(), SweepConfig{Dir: t.TempDir()}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("StartSweepJob: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("disabled job should return immediately")
	}
}
