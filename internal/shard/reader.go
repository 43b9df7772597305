package shard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tidefeed/tidefeed/internal/blob"
	"github.com/tidefeed/tidefeed/internal/cursor"
	"github.com/tidefeed/tidefeed/internal/event"
	"github.com/tidefeed/tidefeed/internal/ocf"
	logpkg "github.com/tidefeed/tidefeed/pkg/log"
)

// Options configures a Reader.
type Options struct {
	// FetchBytes is the range size per storage request.
	FetchBytes int64
	// Retry bounds transient fetch retries.
	Retry RetryPolicy
	// Logger is optional.
	Logger logpkg.Logger
}

const defaultFetchBytes = 4 << 20

// Reader opens read sessions over shards of a feed container. Parsed
// container headers are cached per shard, so re-opening a shard on a later
// poll does not re-fetch the shard front. A header is immutable once the
// writer has committed it, so the cache is never invalidated.
type Reader struct {
	client blob.Client
	opts   Options
	logger logpkg.Logger

	mu      sync.Mutex
	headers map[string]*ocf.Header
}

// NewReader builds a Reader over the given client.
func NewReader(client blob.Client, opts Options) *Reader {
	if opts.FetchBytes <= 0 {
		opts.FetchBytes = defaultFetchBytes
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &Reader{
		client:  client,
		opts:    opts,
		logger:  logger.With(logpkg.Component("shard")),
		headers: map[string]*ocf.Header{},
	}
}

func (r *Reader) cachedHeader(shardID string) *ocf.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers[shardID]
}

func (r *Reader) storeHeader(shardID string, h *ocf.Header) {
	r.mu.Lock()
	r.headers[shardID] = h
	r.mu.Unlock()
}

// Session is one shard read in progress. Not safe for concurrent use; the
// sequencer drives each session from a single goroutine at a time.
type Session struct {
	ShardID string

	r   *Reader
	hdr *ocf.Header
	cur cursor.ShardCursor

	// skip counts records of the block at cur.ByteOffset that were
	// already delivered before this session opened.
	skip int
	// pending holds decoded, undelivered events of the current block and
	// the block's full byte length.
	pending  []event.Event
	pendingN int

	// buf caches fetched bytes; bufPos is the file offset of buf[0].
	// Invariant: whenever a block decode starts, bufPos == cur.ByteOffset.
	buf    []byte
	bufPos int64
}

// Open starts (or resumes) reading a shard from the given cursor. The first
// open of a shard reads the container header from offset zero; later opens
// reuse the reader's cached header and fetch nothing until Pull.
func (r *Reader) Open(ctx context.Context, shardID string, cur cursor.ShardCursor) (*Session, error) {
	s := &Session{ShardID: shardID, r: r, cur: cur, skip: cur.RecordOffset}
	if err := s.loadHeader(ctx); err != nil {
		if errors.Is(err, ocf.ErrNeedMoreData) {
			// Shard exists but has no complete header yet. Pull will
			// retry on later ticks.
			return s, nil
		}
		return nil, err
	}
	return s, nil
}

// Cursor returns the confirmed read position: the start of the next unread
// block plus the count of records already delivered from it.
func (s *Session) Cursor() cursor.ShardCursor { return s.cur }

func (s *Session) loadHeader(ctx context.Context) error {
	if hdr := s.r.cachedHeader(s.ShardID); hdr != nil {
		s.adoptHeader(hdr, nil)
		return nil
	}
	probe := s.r.opts.FetchBytes
	for {
		data, err := s.r.fetch(ctx, s.ShardID, 0, probe)
		if err != nil {
			return err
		}
		hdr, perr := ocf.ParseHeader(data)
		if perr == nil {
			s.r.storeHeader(s.ShardID, hdr)
			s.adoptHeader(hdr, data)
			return nil
		}
		if !errors.Is(perr, ocf.ErrNeedMoreData) {
			return perr
		}
		if int64(len(data)) < probe {
			// All committed bytes fetched and the header is still
			// incomplete: the writer has not finished it.
			return ocf.ErrNeedMoreData
		}
		probe *= 2
	}
}

// adoptHeader installs the header, clamps the cursor to the first block
// boundary, and primes the buffer from already-fetched bytes when any were
// read past the header.
func (s *Session) adoptHeader(hdr *ocf.Header, data []byte) {
	s.hdr = hdr
	if s.cur.ByteOffset < hdr.Len {
		s.cur.ByteOffset = hdr.Len
		s.cur.RecordOffset = 0
		s.skip = 0
	}
	s.bufPos = s.cur.ByteOffset
	if data != nil && s.bufPos < int64(len(data)) {
		s.buf = data[s.bufPos:]
	}
}

// fetch wraps the client's ranged read with the retry policy.
func (r *Reader) fetch(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	var out []byte
	err := withRetry(ctx, r.opts.Retry, func(ctx context.Context) error {
		data, err := r.client.ReadRange(ctx, key, offset, length)
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Pull decodes up to maxEvents events. committedLength is the shard length
// the catalog listed at poll time; bytes past it are never requested.
// exhausted=true means no more complete blocks are available right now.
//
// On ocf.ErrCorruptBlock the session is unusable past the current cursor;
// events decoded before the bad block are still returned and the cursor
// still covers them.
func (s *Session) Pull(ctx context.Context, committedLength int64, maxEvents int) (events []event.Event, cur cursor.ShardCursor, exhausted bool, err error) {
	if maxEvents <= 0 {
		return nil, s.cur, false, nil
	}
	if s.hdr == nil {
		if err := s.loadHeader(ctx); err != nil {
			if errors.Is(err, ocf.ErrNeedMoreData) {
				return nil, s.cur, true, nil
			}
			return nil, s.cur, false, err
		}
		if s.hdr == nil {
			return nil, s.cur, true, nil
		}
	}

	for len(events) < maxEvents {
		if len(s.pending) == 0 {
			ok, derr := s.decodeNext(ctx, committedLength)
			if derr != nil {
				return events, s.cur, false, derr
			}
			if !ok {
				return events, s.cur, true, nil
			}
			continue
		}
		n := maxEvents - len(events)
		if n > len(s.pending) {
			n = len(s.pending)
		}
		events = append(events, s.pending[:n]...)
		s.pending = s.pending[n:]
		if len(s.pending) == 0 {
			// Block fully delivered: the boundary after it becomes
			// the confirmed cursor.
			s.cur.ByteOffset += int64(s.pendingN)
			s.cur.RecordOffset = 0
			s.pendingN = 0
		} else {
			s.cur.RecordOffset += n
		}
	}
	return events, s.cur, false, nil
}

// decodeNext decodes one block into pending. ok=false means no complete
// block is available within committedLength.
func (s *Session) decodeNext(ctx context.Context, committedLength int64) (bool, error) {
	for {
		evs, n, err := ocf.DecodeBlock(s.hdr, s.buf)
		if err == nil {
			if s.skip >= len(evs) && s.skip > 0 {
				// The whole block was already delivered before a
				// restart; step over it.
				s.buf = s.buf[n:]
				s.bufPos += int64(n)
				s.cur.ByteOffset = s.bufPos
				s.cur.RecordOffset = 0
				s.skip = 0
				continue
			}
			evs = evs[s.skip:]
			s.skip = 0
			s.pending = evs
			s.pendingN = n
			s.buf = s.buf[n:]
			s.bufPos += int64(n)
			return true, nil
		}
		if !errors.Is(err, ocf.ErrNeedMoreData) {
			return false, fmt.Errorf("shard %s at offset %d: %w", s.ShardID, s.cur.ByteOffset, err)
		}
		got, ferr := s.fill(ctx, committedLength)
		if ferr != nil {
			return false, ferr
		}
		if !got {
			return false, nil
		}
	}
}

// fill fetches the next range after the buffered bytes, up to the committed
// length. got=false means nothing more is committed right now.
func (s *Session) fill(ctx context.Context, committedLength int64) (got bool, err error) {
	next := s.bufPos + int64(len(s.buf))
	if next >= committedLength {
		return false, nil
	}
	want := s.r.opts.FetchBytes
	if rest := committedLength - next; want > rest {
		want = rest
	}
	data, err := s.r.fetch(ctx, s.ShardID, next, want)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	s.buf = append(s.buf, data...)
	return true, nil
}
