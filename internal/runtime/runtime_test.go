package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/tidefeed/tidefeed/internal/config"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Storage.Backend = cfgpkg.BackendFS
	cfg.Storage.FS.Root = t.TempDir()
	cfg.Feed.ID = "rt-test"
	return cfg
}

func TestOpenCloseAndHealth(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rt.CursorStore() == nil || rt.Client() == nil {
		t.Fatalf("accessors returned nil")
	}
}

func TestNewSequencerFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Feed.StartTime = "2024-01-02T15:00:00Z"
	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	seq, err := rt.NewSequencer()
	if err != nil || seq == nil {
		t.Fatalf("sequencer: %v", err)
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "tape"
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("unknown backend accepted")
	}
}

func TestBadStartTimeSurfacesAtSequencer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Feed.StartTime = "yesterday"
	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	if _, err := rt.NewSequencer(); err == nil {
		t.Fatalf("bad start time accepted")
	}
}
