package runtime

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tidefeed/tidefeed/internal/blob"
	"github.com/tidefeed/tidefeed/internal/blob/azureblob"
	"github.com/tidefeed/tidefeed/internal/blob/fsblob"
	"github.com/tidefeed/tidefeed/internal/catalog"
	cfgpkg "github.com/tidefeed/tidefeed/internal/config"
	"github.com/tidefeed/tidefeed/internal/cursor"
	"github.com/tidefeed/tidefeed/internal/sequencer"
	"github.com/tidefeed/tidefeed/internal/shard"
	pebblestore "github.com/tidefeed/tidefeed/internal/storage/pebble"
	logpkg "github.com/tidefeed/tidefeed/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Client overrides the blob backend the config would build. Used by
	// tests and embedders that bring their own client.
	Client blob.Client
	// Logger is optional; a config-derived logger is built when nil.
	Logger logpkg.Logger
	// Fsync controls cursor durability. Defaults to FsyncModeAlways.
	Fsync pebblestore.FsyncMode
}

// Runtime holds the open handles of one instance.
type Runtime struct {
	db     *pebblestore.DB
	store  cursor.Store
	client blob.Client
	config cfgpkg.Config
	logger logpkg.Logger
}

// Open initializes the cursor database and blob client.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.FromConfig(cfg.Log)
	}

	client := opts.Client
	if client == nil {
		var err error
		client, err = buildClient(cfg.Storage)
		if err != nil {
			return nil, err
		}
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: filepath.Join(dataDir, "cursors"),
		Fsync:   opts.Fsync,
	})
	if err != nil {
		return nil, fmt.Errorf("runtime: open cursor db: %w", err)
	}

	return &Runtime{
		db:     db,
		store:  cursor.NewPebbleStore(db),
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

func buildClient(cfg cfgpkg.StorageConfig) (blob.Client, error) {
	switch cfg.Backend {
	case cfgpkg.BackendAzure:
		return azureblob.New(azureblob.Options{
			AccountName: cfg.Azure.AccountName,
			AccountKey:  cfg.Azure.AccountKey,
			Container:   cfg.Azure.Container,
			Endpoint:    cfg.Azure.Endpoint,
		})
	case cfgpkg.BackendFS:
		return fsblob.New(cfg.FS.Root)
	default:
		return nil, fmt.Errorf("runtime: unknown storage backend %q", cfg.Backend)
	}
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth probes the cursor database and the blob client.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("runtime: cursor db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	if err := it.Close(); err != nil {
		return err
	}
	if _, err := r.client.List(ctx, catalog.SegmentPrefix); err != nil {
		return fmt.Errorf("runtime: blob client: %w", err)
	}
	return nil
}

// CursorStore exposes the durable checkpoint store.
func (r *Runtime) CursorStore() cursor.Store { return r.store }

// Client exposes the blob client.
func (r *Runtime) Client() blob.Client { return r.client }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the process logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// NewSequencer builds a sequencer for the configured feed.
func (r *Runtime) NewSequencer() (*sequencer.Sequencer, error) {
	feed := r.config.Feed
	start, err := feed.Start()
	if err != nil {
		return nil, err
	}
	cat := catalog.New(r.client, r.logger)
	reader := shard.NewReader(r.client, shard.Options{Logger: r.logger})
	return sequencer.New(cat, reader, r.store, sequencer.Options{
		FeedID:           feed.ID,
		StartTime:        start,
		PollInterval:     feed.PollInterval(),
		ShardConcurrency: feed.ShardConcurrency,
		BatchMaxEvents:   feed.BatchMaxEvents,
		BatchMaxWait:     feed.BatchMaxWait(),
		Container:        feed.Container,
	}, r.logger), nil
}
