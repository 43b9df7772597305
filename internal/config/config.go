package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	logpkg "github.com/tidefeed/tidefeed/pkg/log"
)

// Storage backends.
const (
	BackendAzure = "azure"
	BackendFS    = "fs"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir holds the local cursor database. Empty means the
	// OS-specific default (see DefaultDataDir).
	DataDir string        `json:"dataDir" yaml:"dataDir"`
	Log     logpkg.Config `json:"log" yaml:"log"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Feed    FeedConfig    `json:"feed" yaml:"feed"`
}

// StorageConfig selects and configures the blob backend the feed is read
// from.
type StorageConfig struct {
	// Backend is "azure" or "fs".
	Backend string      `json:"backend" yaml:"backend"`
	Azure   AzureConfig `json:"azure" yaml:"azure"`
	FS      FSConfig    `json:"fs" yaml:"fs"`
}

// AzureConfig holds Azure Blob Storage settings.
type AzureConfig struct {
	AccountName string `json:"accountName" yaml:"accountName"`
	AccountKey  string `json:"accountKey" yaml:"accountKey"`
	Container   string `json:"container" yaml:"container"`
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// FSConfig holds local-directory backend settings.
type FSConfig struct {
	Root string `json:"root" yaml:"root"`
}

// FeedConfig captures the iteration options of one feed.
type FeedConfig struct {
	// ID keys the checkpoint; two processes must not share an ID.
	ID string `json:"id" yaml:"id"`
	// StartTime (RFC 3339) positions a fresh feed. Empty = start of feed.
	StartTime string `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	// PollIntervalMs is the live-tail wait between polls.
	PollIntervalMs int `json:"pollIntervalMs" yaml:"pollIntervalMs"`
	// ShardConcurrency bounds parallel shard fetches.
	ShardConcurrency int `json:"shardConcurrency" yaml:"shardConcurrency"`
	// BatchMaxEvents / BatchMaxWaitMs are the delivery batching thresholds.
	BatchMaxEvents int `json:"batchMaxEvents" yaml:"batchMaxEvents"`
	BatchMaxWaitMs int `json:"batchMaxWaitMs" yaml:"batchMaxWaitMs"`
	// Container filters delivered events to one container. Empty = all.
	Container string `json:"container,omitempty" yaml:"container,omitempty"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Log: logpkg.Config{Level: "info", Format: "text"},
		Storage: StorageConfig{
			Backend: BackendAzure,
		},
		Feed: FeedConfig{
			ID:               "default",
			PollIntervalMs:   5000,
			ShardConcurrency: 4,
			BatchMaxEvents:   500,
			BatchMaxWaitMs:   1000,
		},
	}
}

// PollInterval returns the poll interval as a duration.
func (f FeedConfig) PollInterval() time.Duration {
	return time.Duration(f.PollIntervalMs) * time.Millisecond
}

// BatchMaxWait returns the batching window as a duration.
func (f FeedConfig) BatchMaxWait() time.Duration {
	return time.Duration(f.BatchMaxWaitMs) * time.Millisecond
}

// Start parses StartTime. A zero time means start of feed.
func (f FeedConfig) Start() (time.Time, error) {
	if f.StartTime == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, f.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: feed.startTime: %w", err)
	}
	return t, nil
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults. YAML is the superset parser, so both formats
// go through it.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch ext := filepath.Ext(path); ext {
	case ".json", ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("config: unsupported extension %q", ext)
	}
	return cfg, nil
}

// Validate reports obviously unusable configuration early.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendAzure:
		if c.Storage.Azure.AccountName == "" || c.Storage.Azure.Container == "" {
			return fmt.Errorf("config: azure backend needs accountName and container")
		}
	case BackendFS:
		if c.Storage.FS.Root == "" {
			return fmt.Errorf("config: fs backend needs a root directory")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Feed.ID == "" {
		return fmt.Errorf("config: feed.id is required")
	}
	if _, err := c.Feed.Start(); err != nil {
		return err
	}
	return nil
}
