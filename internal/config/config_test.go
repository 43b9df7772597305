package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "tidefeed.yaml", `
dataDir: /tmp/tf
log:
  level: debug
storage:
  backend: fs
  fs:
    root: /srv/feed
feed:
  id: ingest-1
  startTime: "2024-01-02T15:00:00Z"
  pollIntervalMs: 250
  container: pics
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/tmp/tf" || cfg.Log.Level != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Storage.Backend != BackendFS || cfg.Storage.FS.Root != "/srv/feed" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Feed.ID != "ingest-1" || cfg.Feed.Container != "pics" {
		t.Fatalf("feed = %+v", cfg.Feed)
	}
	if cfg.Feed.PollInterval() != 250*time.Millisecond {
		t.Fatalf("poll interval = %v", cfg.Feed.PollInterval())
	}
	// Unset fields keep their defaults.
	if cfg.Feed.ShardConcurrency != Default().Feed.ShardConcurrency {
		t.Fatalf("shard concurrency = %d", cfg.Feed.ShardConcurrency)
	}
	start, err := cfg.Feed.Start()
	if err != nil || !start.Equal(time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v, %v", start, err)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "tidefeed.json",
		`{"storage":{"backend":"azure","azure":{"accountName":"acct","container":"feed"}},"feed":{"id":"f1"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Azure.AccountName != "acct" || cfg.Storage.Azure.Container != "feed" {
		t.Fatalf("azure = %+v", cfg.Storage.Azure)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeFile(t, "tidefeed.toml", `x = 1`)
	if _, err := Load(path); err == nil {
		t.Fatalf("toml accepted")
	}
}

func TestLoadEmptyPathIsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.ID != "default" || cfg.Storage.Backend != BackendAzure {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestFromEnvOverlays(t *testing.T) {
	t.Setenv("TIDEFEED_STORAGE_BACKEND", "fs")
	t.Setenv("TIDEFEED_FS_ROOT", "/srv/feed")
	t.Setenv("TIDEFEED_FEED_ID", "env-feed")
	t.Setenv("TIDEFEED_FEED_POLL_INTERVAL_MS", "750")
	t.Setenv("TIDEFEED_FEED_SHARD_CONCURRENCY", "not-a-number")

	cfg := Default()
	FromEnv(&cfg)
	if cfg.Storage.Backend != BackendFS || cfg.Storage.FS.Root != "/srv/feed" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Feed.ID != "env-feed" || cfg.Feed.PollIntervalMs != 750 {
		t.Fatalf("feed = %+v", cfg.Feed)
	}
	// Unparsable numbers leave the default in place.
	if cfg.Feed.ShardConcurrency != Default().Feed.ShardConcurrency {
		t.Fatalf("shard concurrency = %d", cfg.Feed.ShardConcurrency)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("azure backend without account accepted")
	}

	cfg.Storage.Azure.AccountName = "acct"
	cfg.Storage.Azure.Container = "feed"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid azure config rejected: %v", err)
	}

	cfg.Storage.Backend = BackendFS
	if err := cfg.Validate(); err == nil {
		t.Fatalf("fs backend without root accepted")
	}
	cfg.Storage.FS.Root = "/srv/feed"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid fs config rejected: %v", err)
	}

	cfg.Feed.ID = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("empty feed id accepted")
	}
	cfg.Feed.ID = "f1"
	cfg.Feed.StartTime = "yesterday"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("bad start time accepted")
	}
}
