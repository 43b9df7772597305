package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidefeed/tidefeed/internal/blob"
	logpkg "github.com/tidefeed/tidefeed/pkg/log"
)

// Fixed layout the upstream writer produces.
const (
	// SegmentPrefix is where segment manifests live.
	SegmentPrefix = "idx/segments/"
	// ShardRoot is where shard log files live.
	ShardRoot = "log/"
	// manifestName terminates every segment id.
	manifestName = "/meta.json"
	// maxManifestBytes bounds a manifest fetch.
	maxManifestBytes = 1 << 20
)

// Manifest status values.
const (
	statusFinalized = "Finalized"
	statusPending   = "Pending"
)

// Segment is one discovered time bucket of the feed.
type Segment struct {
	// ID is the manifest blob path; ascending ID order is bucket-time order.
	ID string
	// Finalized segments have an immutable shard set and fixed lengths.
	Finalized bool
	// Shards lists the segment's shard files with their committed
	// lengths as of the refresh that produced this value.
	Shards []blob.Info
}

type manifest struct {
	Version    int      `json:"version"`
	Status     string   `json:"status"`
	ShardPaths []string `json:"shardPaths"`
}

// Catalog lists segments through a blob client and caches finalized ones.
type Catalog struct {
	client blob.Client
	logger logpkg.Logger

	mu        sync.Mutex
	finalized map[string]Segment
}

// New builds a Catalog over the given client.
func New(client blob.Client, logger logpkg.Logger) *Catalog {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &Catalog{
		client:    client,
		logger:    logger.With(logpkg.Component("catalog")),
		finalized: map[string]Segment{},
	}
}

// MinSegmentID returns the smallest possible segment id for the bucket
// containing t. Segments with ids below it ended before t.
func MinSegmentID(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%02d%02d/", SegmentPrefix,
		t.Year(), int(t.Month()), t.Day(), t.Hour(), 0)
}

// ListFrom returns the segments with id >= from in ascending id order, with
// fresh shard lengths. An empty from lists the whole feed.
func (c *Catalog) ListFrom(ctx context.Context, from string) ([]Segment, error) {
	infos, err := c.client.List(ctx, SegmentPrefix)
	if err != nil {
		return nil, fmt.Errorf("catalog: list segments: %w", err)
	}
	lengths, err := c.shardLengths(ctx)
	if err != nil {
		return nil, err
	}

	var out []Segment
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, manifestName) {
			continue
		}
		if from != "" && info.Key < from {
			continue
		}
		seg, err := c.segment(ctx, info.Key, lengths)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ShardsOf returns the current shard set of one segment.
func (c *Catalog) ShardsOf(ctx context.Context, segmentID string) ([]blob.Info, error) {
	lengths, err := c.shardLengths(ctx)
	if err != nil {
		return nil, err
	}
	seg, err := c.segment(ctx, segmentID, lengths)
	if err != nil {
		return nil, err
	}
	return seg.Shards, nil
}

// IsFinalized reports a segment's finalization state.
func (c *Catalog) IsFinalized(ctx context.Context, segmentID string) (bool, error) {
	c.mu.Lock()
	_, ok := c.finalized[segmentID]
	c.mu.Unlock()
	if ok {
		return true, nil
	}
	seg, err := c.segment(ctx, segmentID, nil)
	if err != nil {
		return false, err
	}
	return seg.Finalized, nil
}

// segment resolves one segment, serving finalized ones from cache. lengths
// may be nil when the caller only needs the status.
func (c *Catalog) segment(ctx context.Context, id string, lengths map[string]int64) (Segment, error) {
	c.mu.Lock()
	if seg, ok := c.finalized[id]; ok {
		c.mu.Unlock()
		return seg, nil
	}
	c.mu.Unlock()

	raw, err := c.client.ReadRange(ctx, id, 0, maxManifestBytes)
	if err != nil {
		return Segment{}, fmt.Errorf("catalog: fetch manifest %s: %w", id, err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Segment{}, fmt.Errorf("catalog: parse manifest %s: %w", id, err)
	}
	switch m.Status {
	case statusFinalized, statusPending:
	default:
		return Segment{}, fmt.Errorf("catalog: manifest %s: unknown status %q", id, m.Status)
	}

	seg := Segment{ID: id, Finalized: m.Status == statusFinalized}
	for _, p := range m.ShardPaths {
		var length int64
		if lengths != nil {
			length = lengths[p]
		}
		seg.Shards = append(seg.Shards, blob.Info{Key: p, Length: length})
	}
	sort.Slice(seg.Shards, func(i, j int) bool { return seg.Shards[i].Key < seg.Shards[j].Key })

	if seg.Finalized && lengths != nil {
		c.mu.Lock()
		c.finalized[id] = seg
		c.mu.Unlock()
		c.logger.Debug("segment finalized", logpkg.Str("segment", id), logpkg.Int("shards", len(seg.Shards)))
	}
	return seg, nil
}

func (c *Catalog) shardLengths(ctx context.Context) (map[string]int64, error) {
	infos, err := c.client.List(ctx, ShardRoot)
	if err != nil {
		return nil, fmt.Errorf("catalog: list shards: %w", err)
	}
	lengths := make(map[string]int64, len(infos))
	for _, info := range infos {
		lengths[info.Key] = info.Length
	}
	return lengths, nil
}
