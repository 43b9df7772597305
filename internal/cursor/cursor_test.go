package cursor

import (
	"context"
	"errors"
	"testing"

	pebblestore "github.com/tidefeed/tidefeed/internal/storage/pebble"
)

func openDB(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	return db
}

func sample() Checkpoint {
	return Checkpoint{
		SegmentID:    "idx/segments/2024/01/02/1500/",
		ShardID:      "log/00/2024/01/02/1500/00000.avro",
		ByteOffset:   4096,
		RecordOffset: 2,
		Shards: map[string]ShardCursor{
			"log/00/2024/01/02/1500/00000.avro": {ByteOffset: 4096, RecordOffset: 2},
			"log/01/2024/01/02/1500/00000.avro": {ByteOffset: 1024},
		},
	}
}

func TestPebbleSaveLoadAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t, dir)
	store := NewPebbleStore(db)
	ctx := context.Background()

	if _, ok, err := store.Load(ctx, "f1"); err != nil || ok {
		t.Fatalf("fresh load: ok=%v err=%v", ok, err)
	}

	saved, err := store.Save(ctx, "f1", sample())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Revision != 1 {
		t.Fatalf("revision after first save = %d, want 1", saved.Revision)
	}
	_ = db.Close()

	db2 := openDB(t, dir)
	defer db2.Close()
	store2 := NewPebbleStore(db2)
	got, ok, err := store2.Load(ctx, "f1")
	if err != nil || !ok {
		t.Fatalf("reload: ok=%v err=%v", ok, err)
	}
	if got.Revision != 1 || got.SegmentID != sample().SegmentID || got.ByteOffset != 4096 {
		t.Fatalf("reload mismatch: %+v", got)
	}
	if len(got.Shards) != 2 || got.Shards["log/01/2024/01/02/1500/00000.avro"].ByteOffset != 1024 {
		t.Fatalf("shard cursors not persisted: %+v", got.Shards)
	}
}

func TestPebbleRevisionConflict(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	store := NewPebbleStore(db)
	ctx := context.Background()

	first, err := store.Save(ctx, "f1", sample())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// A second writer holding the pre-save revision must fail.
	stale := sample()
	if _, err := store.Save(ctx, "f1", stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale save = %v, want ErrConflict", err)
	}

	// The holder of the bumped revision keeps advancing.
	first.ByteOffset = 8192
	second, err := store.Save(ctx, "f1", first)
	if err != nil {
		t.Fatalf("save with current revision: %v", err)
	}
	if second.Revision != 2 {
		t.Fatalf("revision = %d, want 2", second.Revision)
	}
}

func TestPebbleReset(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	store := NewPebbleStore(db)
	ctx := context.Background()

	if _, err := store.Save(ctx, "f1", sample()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Reset(ctx, "f1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok, err := store.Load(ctx, "f1"); err != nil || ok {
		t.Fatalf("load after reset: ok=%v err=%v", ok, err)
	}
	// A fresh checkpoint saves again from revision zero.
	if _, err := store.Save(ctx, "f1", sample()); err != nil {
		t.Fatalf("save after reset: %v", err)
	}
}

func TestMemoryStoreConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	saved, err := store.Save(ctx, "f1", sample())
	if err != nil || saved.Revision != 1 {
		t.Fatalf("save: rev=%d err=%v", saved.Revision, err)
	}
	if _, err := store.Save(ctx, "f1", sample()); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale save = %v, want ErrConflict", err)
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Save(ctx, "f1", sample()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _, err := store.Load(ctx, "f1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got.Shards["log/00/2024/01/02/1500/00000.avro"] = ShardCursor{ByteOffset: 999}
	again, _, _ := store.Load(ctx, "f1")
	if again.Shards["log/00/2024/01/02/1500/00000.avro"].ByteOffset == 999 {
		t.Fatalf("stored checkpoint aliases a caller's map")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cp := sample()
	cp.Revision = 7
	cp.SegmentComplete = true

	got, err := ParseToken(cp.Token())
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if got.Revision != 7 || !got.SegmentComplete || got.SegmentID != cp.SegmentID {
		t.Fatalf("token round trip: %+v", got)
	}
	if got.Shards["log/01/2024/01/02/1500/00000.avro"].ByteOffset != 1024 {
		t.Fatalf("shards lost in token: %+v", got.Shards)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken("not base64!!"); err == nil {
		t.Fatalf("bad base64 accepted")
	}
	if _, err := ParseToken("bm90IGpzb24"); err == nil {
		t.Fatalf("bad json accepted")
	}
}

func TestIsZero(t *testing.T) {
	if !(Checkpoint{}).IsZero() {
		t.Fatalf("empty checkpoint not zero")
	}
	if sample().IsZero() {
		t.Fatalf("populated checkpoint reported zero")
	}
}
