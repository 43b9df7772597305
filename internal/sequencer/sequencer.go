package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidefeed/tidefeed/internal/catalog"
	"github.com/tidefeed/tidefeed/internal/cursor"
	"github.com/tidefeed/tidefeed/internal/event"
	"github.com/tidefeed/tidefeed/internal/ocf"
	"github.com/tidefeed/tidefeed/internal/shard"
	logpkg "github.com/tidefeed/tidefeed/pkg/log"
)

// State is the sequencer's coarse run state, exposed for observability.
type State int32

// Run states
const (
	StateIdle State = iota
	StateResuming
	StatePolling
	StateDraining
	StateCommitting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResuming:
		return "resuming"
	case StatePolling:
		return "polling"
	case StateDraining:
		return "draining"
	case StateCommitting:
		return "committing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures a run.
type Options struct {
	// FeedID keys the checkpoint in the cursor store.
	FeedID string
	// StartTime begins a fresh feed (no checkpoint) at this bucket
	// instead of the earliest segment. Zero means start of feed.
	StartTime time.Time
	// PollInterval is the live-tail wait between catalog refreshes once
	// caught up.
	PollInterval time.Duration
	// ShardConcurrency bounds parallel shard fetches.
	ShardConcurrency int
	// BatchMaxEvents caps one delivery.
	BatchMaxEvents int
	// BatchMaxWait time-boxes batch assembly: a partial batch is
	// delivered once this much time passed since assembly began.
	BatchMaxWait time.Duration
	// Container, when set, filters delivered events to this container
	// (matched against the event subject). Progress still advances over
	// filtered-out events.
	Container string
}

func (o *Options) defaults() {
	if o.FeedID == "" {
		o.FeedID = "default"
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.ShardConcurrency <= 0 {
		o.ShardConcurrency = 4
	}
	if o.BatchMaxEvents <= 0 {
		o.BatchMaxEvents = 500
	}
	if o.BatchMaxWait <= 0 {
		o.BatchMaxWait = time.Second
	}
}

// Sequencer drives one feed identity.
type Sequencer struct {
	catalog *catalog.Catalog
	reader  *shard.Reader
	store   cursor.Store
	logger  logpkg.Logger
	opts    Options

	state atomic.Int32

	// stalled shards for this run, with the error that stalled them.
	stalled map[string]error
}

// New builds a Sequencer. All collaborators are injected; the sequencer owns
// no network or storage handles of its own.
func New(cat *catalog.Catalog, reader *shard.Reader, store cursor.Store, opts Options, logger logpkg.Logger) *Sequencer {
	opts.defaults()
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &Sequencer{
		catalog: cat,
		reader:  reader,
		store:   store,
		logger:  logger.With(logpkg.Component("sequencer"), logpkg.Str("feed", opts.FeedID)),
		opts:    opts,
		stalled: map[string]error{},
	}
}

// State returns the current run state.
func (s *Sequencer) State() State { return State(s.state.Load()) }

func (s *Sequencer) setState(st State) { s.state.Store(int32(st)) }

// Run drives the feed until ctx is cancelled or a fatal error occurs.
// Cancellation is clean: no checkpoint is ever committed for a partially
// delivered block, so the worst case on restart is re-delivery of the
// last in-flight batch.
func (s *Sequencer) Run(ctx context.Context, sink Sink) error {
	defer s.setState(StateStopped)

	s.setState(StateResuming)
	cp, err := s.resume(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("feed resumed",
		logpkg.Str("segment", cp.SegmentID),
		logpkg.Int64("revision", cp.Revision))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.setState(StatePolling)
		segs, err := s.catalog.ListFrom(ctx, s.listFloor(cp))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("catalog refresh failed", logpkg.Err(err))
			if werr := s.idle(ctx, sink, false); werr != nil {
				return werr
			}
			continue
		}
		seg, ok := s.nextSegment(cp, segs)
		if !ok {
			if werr := s.idle(ctx, sink, true); werr != nil {
				return werr
			}
			continue
		}
		if seg.ID != cp.SegmentID {
			// Entering a new segment: per-shard cursors start empty.
			cp.SegmentID = seg.ID
			cp.SegmentComplete = false
			cp.Shards = nil
			cp.ShardID = ""
			cp.ByteOffset = 0
			cp.RecordOffset = 0
		}

		outcome, err := s.drainSegment(ctx, sink, seg, &cp)
		if err != nil {
			return err
		}
		switch outcome {
		case drainLiveEdge:
			if werr := s.idle(ctx, sink, true); werr != nil {
				return werr
			}
		case drainRetry:
			if werr := s.idle(ctx, sink, false); werr != nil {
				return werr
			}
		}
	}
}

// resume loads the checkpoint, retrying while the store is unreachable (no
// progress is possible without durable checkpointing).
func (s *Sequencer) resume(ctx context.Context) (cursor.Checkpoint, error) {
	for {
		cp, ok, err := s.store.Load(ctx, s.opts.FeedID)
		if err == nil {
			if !ok {
				return cursor.Checkpoint{}, nil
			}
			return cp, nil
		}
		s.logger.Warn("cursor store unreachable", logpkg.Err(err))
		select {
		case <-ctx.Done():
			return cursor.Checkpoint{}, ctx.Err()
		case <-time.After(s.opts.PollInterval):
		}
	}
}

// listFloor is the segment id the catalog listing starts from.
func (s *Sequencer) listFloor(cp cursor.Checkpoint) string {
	if cp.SegmentID != "" {
		return cp.SegmentID
	}
	if !s.opts.StartTime.IsZero() {
		return catalog.MinSegmentID(s.opts.StartTime)
	}
	return ""
}

// nextSegment picks the oldest segment with undelivered data.
func (s *Sequencer) nextSegment(cp cursor.Checkpoint, segs []catalog.Segment) (catalog.Segment, bool) {
	for _, seg := range segs {
		if cp.SegmentComplete && seg.ID == cp.SegmentID {
			continue
		}
		return seg, true
	}
	return catalog.Segment{}, false
}

// idle waits out the live-tail interval. caughtUp distinguishes "feed fully
// drained" from "backing off after a transient failure".
func (s *Sequencer) idle(ctx context.Context, sink Sink, caughtUp bool) error {
	s.setState(StateIdle)
	if caughtUp {
		sink.CaughtUp(ctx)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.opts.PollInterval):
		return nil
	}
}

type pullResult struct {
	idx       int
	events    []event.Event
	cur       cursor.ShardCursor
	exhausted bool
	err       error
}

// drainOutcome tells Run what to do after a drain pass.
type drainOutcome int

const (
	// drainCompleted: the segment was committed complete, poll again
	// immediately.
	drainCompleted drainOutcome = iota
	// drainLiveEdge: nothing more is deliverable right now, idle and
	// signal caught-up.
	drainLiveEdge
	// drainRetry: a shard had transient trouble, idle without signaling
	// caught-up and re-open it on the next poll.
	drainRetry
)

// drainSegment pulls the segment's shards until it is complete (finalized
// and drained) or the live edge is reached.
func (s *Sequencer) drainSegment(ctx context.Context, sink Sink, seg catalog.Segment, cp *cursor.Checkpoint) (drainOutcome, error) {
	s.setState(StateDraining)

	sessions := make([]*shard.Session, 0, len(seg.Shards))
	lengths := make(map[string]int64, len(seg.Shards))
	for _, info := range seg.Shards {
		lengths[info.Key] = info.Length
		if _, bad := s.stalled[info.Key]; bad {
			continue
		}
		var sc cursor.ShardCursor
		if cp.Shards != nil {
			sc = cp.Shards[info.Key]
		}
		sess, err := s.reader.Open(ctx, info.Key, sc)
		if err != nil {
			switch {
			case errors.Is(err, ocf.ErrSchemaMismatch), errors.Is(err, context.Canceled):
				return drainRetry, err
			case errors.Is(err, ocf.ErrCorruptBlock):
				s.stalled[info.Key] = err
				s.logger.Error("shard stalled", logpkg.Str("shard", info.Key), logpkg.Err(err))
				sink.ShardStalled(ctx, info.Key, err)
				continue
			default:
				s.logger.Warn("shard open failed", logpkg.Str("shard", info.Key), logpkg.Err(err))
				return drainRetry, nil
			}
		}
		sessions = append(sessions, sess)
	}

	// exhausted means Pull confirmed the cursor reached the committed
	// length; failed means a transient pull failure. Only the former may
	// count toward segment completion: a failed shard still has unread
	// bytes and must be retried on a later poll.
	exhausted := make([]bool, len(sessions))
	failed := make([]bool, len(sessions))
	for {
		if err := ctx.Err(); err != nil {
			return drainRetry, err
		}

		batch, done, err := s.assembleBatch(ctx, sink, sessions, exhausted, failed, lengths)
		if err != nil {
			return drainRetry, err
		}
		if len(batch) > 0 {
			if err := s.deliver(ctx, sink, sessions, batch, cp); err != nil {
				return drainRetry, err
			}
		}
		if !done {
			continue
		}

		if anyTrue(failed) {
			return drainRetry, nil
		}
		// Every live shard is drained to its committed end.
		if seg.Finalized && len(s.stalledIn(seg)) == 0 && allTrue(exhausted) {
			s.setState(StateCommitting)
			cp.SegmentComplete = true
			saved, err := s.commit(ctx, *cp)
			if err != nil {
				return drainRetry, err
			}
			*cp = saved
			s.logger.Info("segment complete", logpkg.Str("segment", seg.ID))
			return drainCompleted, nil
		}
		// Unfinalized (or stalled) segment at its live edge: go back
		// to polling so grown shards and new manifests are seen.
		return drainLiveEdge, nil
	}
}

// assembleBatch runs pull rounds until the batch fills, the assembly window
// closes, or every shard is exhausted or failed for now. done=true means the
// latter. Failed shards are set out in failed and sit out the rest of the
// window; the caller re-opens them on a later poll.
func (s *Sequencer) assembleBatch(ctx context.Context, sink Sink, sessions []*shard.Session, exhausted, failed []bool, lengths map[string]int64) ([]event.Event, bool, error) {
	var batch []event.Event
	deadline := time.Now().Add(s.opts.BatchMaxWait)
	for len(batch) < s.opts.BatchMaxEvents && time.Now().Before(deadline) {
		active := make([]int, 0, len(sessions))
		for i, sess := range sessions {
			if exhausted[i] || failed[i] {
				continue
			}
			if _, bad := s.stalled[sess.ShardID]; bad {
				continue
			}
			active = append(active, i)
		}
		if len(active) == 0 {
			return batch, true, nil
		}

		// Fair share of the remaining batch per active shard.
		per := (s.opts.BatchMaxEvents - len(batch)) / len(active)
		if per < 1 {
			per = 1
		}

		results := make([]pullResult, len(active))
		sem := make(chan struct{}, s.opts.ShardConcurrency)
		var wg sync.WaitGroup
		for slot, idx := range active {
			wg.Add(1)
			go func(slot, idx int) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				sess := sessions[idx]
				evs, cur, ex, err := sess.Pull(ctx, lengths[sess.ShardID], per)
				results[slot] = pullResult{idx: idx, events: evs, cur: cur, exhausted: ex, err: err}
			}(slot, idx)
		}
		wg.Wait()

		progressed := false
		// Single aggregation point; round-robin interleave follows the
		// catalog's shard order.
		for _, res := range results {
			sess := sessions[res.idx]
			if res.err != nil {
				switch {
				case errors.Is(res.err, ocf.ErrSchemaMismatch):
					return nil, false, res.err
				case errors.Is(res.err, ocf.ErrCorruptBlock):
					s.stalled[sess.ShardID] = res.err
					s.logger.Error("shard stalled", logpkg.Str("shard", sess.ShardID), logpkg.Err(res.err))
					sink.ShardStalled(ctx, sess.ShardID, res.err)
				case errors.Is(res.err, context.Canceled):
					return nil, false, res.err
				default:
					// Transient: leave the cursor alone so the
					// undelivered bytes are re-pulled on a later
					// poll. Never mark the shard exhausted; that
					// would let a finalized segment commit
					// complete past unread data.
					s.logger.Warn("shard pull failed", logpkg.Str("shard", sess.ShardID), logpkg.Err(res.err))
					failed[res.idx] = true
				}
			}
			if len(res.events) > 0 {
				batch = append(batch, s.filter(res.events)...)
				progressed = true
			}
			if res.err == nil {
				exhausted[res.idx] = res.exhausted
			}
		}
		if !progressed {
			allDone := true
			for _, idx := range active {
				if !exhausted[idx] && !failed[idx] {
					if _, bad := s.stalled[sessions[idx].ShardID]; !bad {
						allDone = false
					}
				}
			}
			if allDone {
				return batch, true, nil
			}
		}
	}
	return batch, false, nil
}

// filter applies the optional container filter. Events filtered out still
// advance the cursor; they are consumed, just not delivered.
func (s *Sequencer) filter(events []event.Event) []event.Event {
	if s.opts.Container == "" {
		return events
	}
	out := events[:0:0]
	for _, ev := range events {
		if ev.Container() == s.opts.Container {
			out = append(out, ev)
		}
	}
	return out
}

// deliver hands the batch to the sink and, on ack, commits the checkpoint
// assembled from the sessions' confirmed cursors.
func (s *Sequencer) deliver(ctx context.Context, sink Sink, sessions []*shard.Session, events []event.Event, cp *cursor.Checkpoint) error {
	next := cp.Clone()
	if next.Shards == nil {
		next.Shards = map[string]cursor.ShardCursor{}
	}
	for _, sess := range sessions {
		next.Shards[sess.ShardID] = sess.Cursor()
	}
	// The mirror triple names the least-advanced live shard: nothing
	// before it is undelivered.
	first := true
	for _, sess := range sessions {
		if _, bad := s.stalled[sess.ShardID]; bad {
			continue
		}
		cur := sess.Cursor()
		if first || cur.ByteOffset < next.ByteOffset {
			next.ShardID = sess.ShardID
			next.ByteOffset = cur.ByteOffset
			next.RecordOffset = cur.RecordOffset
			first = false
		}
	}

	if err := sink.DeliverBatch(ctx, Batch{Events: events, Checkpoint: next.Clone()}); err != nil {
		return fmt.Errorf("sequencer: delivery rejected: %w", err)
	}
	s.setState(StateCommitting)
	saved, err := s.commit(ctx, next)
	if err != nil {
		return err
	}
	*cp = saved
	s.setState(StateDraining)
	s.logger.Debug("batch committed",
		logpkg.Int("events", len(events)),
		logpkg.Str("segment", saved.SegmentID),
		logpkg.Int64("revision", saved.Revision))
	return nil
}

// commit persists the checkpoint, retrying transient store failures. A
// revision conflict is fatal: another writer owns the feed.
func (s *Sequencer) commit(ctx context.Context, cp cursor.Checkpoint) (cursor.Checkpoint, error) {
	for {
		saved, err := s.store.Save(ctx, s.opts.FeedID, cp)
		if err == nil {
			return saved, nil
		}
		if errors.Is(err, cursor.ErrConflict) {
			return cursor.Checkpoint{}, fmt.Errorf("sequencer: %w", err)
		}
		s.logger.Warn("checkpoint save failed", logpkg.Err(err))
		select {
		case <-ctx.Done():
			return cursor.Checkpoint{}, ctx.Err()
		case <-time.After(s.opts.PollInterval):
		}
	}
}

// stalledIn lists this run's stalled shards belonging to seg.
func (s *Sequencer) stalledIn(seg catalog.Segment) []string {
	var out []string
	for _, info := range seg.Shards {
		if _, bad := s.stalled[info.Key]; bad {
			out = append(out, info.Key)
		}
	}
	return out
}

func allTrue(v []bool) bool {
	for _, b := range v {
		if !b {
			return false
		}
	}
	return true
}

func anyTrue(v []bool) bool {
	for _, b := range v {
		if b {
			return true
		}
	}
	return false
}

// Stalled returns the shards currently stalled, keyed by shard id.
func (s *Sequencer) Stalled() map[string]error {
	out := make(map[string]error, len(s.stalled))
	for k, v := range s.stalled {
		out[k] = v
	}
	return out
}
