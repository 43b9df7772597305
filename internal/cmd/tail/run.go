// Package tailrun drives a feed run from the CLI: it opens the runtime,
// builds a sequencer for the configured feed, and prints deliveries until
// the context is cancelled.
package tailrun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/tidefeed/tidefeed/internal/config"
	"github.com/tidefeed/tidefeed/internal/event"
	"github.com/tidefeed/tidefeed/internal/runtime"
	"github.com/tidefeed/tidefeed/internal/sequencer"
	pebblestore "github.com/tidefeed/tidefeed/internal/storage/pebble"
	logpkg "github.com/tidefeed/tidefeed/pkg/log"
)

type Options struct {
	Config cfgpkg.Config
	Fsync  pebblestore.FsyncMode
	// Once exits after the first caught-up signal instead of live-tailing.
	Once bool
	// JSON prints each event as one JSON object per line.
	JSON bool
	// Out defaults to stdout.
	Out io.Writer
}

// Run blocks until ctx is cancelled or, with Once, until the feed reports
// caught-up.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so Ctrl-C stops
	// the run even when the caller passed context.Background().
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	logger := logpkg.FromConfig(opts.Config.Log)

	rt, err := runtime.Open(runtime.Options{
		Config: opts.Config,
		Logger: logger,
		Fsync:  opts.Fsync,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	seq, err := rt.NewSequencer()
	if err != nil {
		return err
	}

	runCtx := sctx
	var cancel context.CancelFunc
	if opts.Once {
		runCtx, cancel = context.WithCancel(sctx)
		defer cancel()
	}

	sink := sequencer.SinkFuncs{
		OnBatch: func(_ context.Context, b sequencer.Batch) error {
			for _, ev := range b.Events {
				if err := printEvent(out, ev, opts.JSON); err != nil {
					return err
				}
			}
			return nil
		},
		OnCaughtUp: func(context.Context) {
			logger.Info("caught up with feed")
			if opts.Once {
				cancel()
			}
		},
		OnStalled: func(_ context.Context, shardID string, err error) {
			logger.Error("shard stalled, feed pinned at its segment",
				logpkg.Str("shard", shardID), logpkg.Err(err))
		},
	}

	err = seq.Run(runCtx, sink)
	if err != nil && runCtx.Err() != nil {
		// Cancellation (signal or --once) is a clean exit.
		return nil
	}
	return err
}

func printEvent(out io.Writer, ev event.Event, asJSON bool) error {
	if asJSON {
		b, err := json.Marshal(struct {
			ID       string `json:"id"`
			Sequence int64  `json:"sequenceNumber"`
			Type     string `json:"eventType"`
			Subject  string `json:"subject"`
			Time     string `json:"eventTime"`
		}{
			ID:       ev.ID,
			Sequence: ev.Sequence,
			Type:     ev.RawType,
			Subject:  ev.Subject,
			Time:     ev.Time.Format("2006-01-02T15:04:05.000Z07:00"),
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	}
	_, err := fmt.Fprintf(out, "%s seq=%d %s %s\n",
		ev.Time.Format("2006-01-02T15:04:05Z07:00"), ev.Sequence, ev.RawType, ev.Subject)
	return err
}
