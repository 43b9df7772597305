package ocf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"
)

// writeContainer produces a real container with one block per Append call.
func writeContainer(t *testing.T, codec string, blocks ...[]map[string]interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               &buf,
		Schema:          Schema,
		CompressionName: codec,
	})
	if err != nil {
		t.Fatalf("ocf writer: %v", err)
	}
	for _, block := range blocks {
		data := make([]interface{}, 0, len(block))
		for _, rec := range block {
			data = append(data, rec)
		}
		if err := w.Append(data); err != nil {
			t.Fatalf("append block: %v", err)
		}
	}
	return buf.Bytes()
}

func testRecords(startSeq int64, n int) []map[string]interface{} {
	recs := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		seq := startSeq + int64(i)
		recs = append(recs, map[string]interface{}{
			"id":             "ev-" + string(rune('a'+i)),
			"sequenceNumber": seq,
			"eventType":      "BlobCreated",
			"subject":        "/containers/pics/blobs/cat.jpg",
			"eventTime":      int64(1700000000000 + seq),
			"payload":        map[string]interface{}{"api": "PutBlob"},
		})
	}
	return recs
}

func TestDecodeBlocksNull(t *testing.T) {
	buf := writeContainer(t, CodecNull, testRecords(1, 3), testRecords(4, 2))

	h, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if h.Codec != CodecNull {
		t.Fatalf("codec = %q, want null", h.Codec)
	}

	off := h.Len
	evs, n, err := DecodeBlock(h, buf[off:])
	if err != nil {
		t.Fatalf("decode block 1: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("block 1 events = %d, want 3", len(evs))
	}
	if evs[0].Sequence != 1 || evs[2].Sequence != 3 {
		t.Fatalf("block 1 sequences = %d..%d", evs[0].Sequence, evs[2].Sequence)
	}
	if got := evs[0].Time; !got.Equal(time.UnixMilli(1700000000001).UTC()) {
		t.Fatalf("event time = %v", got)
	}
	if evs[0].Container() != "pics" || evs[0].Path() != "cat.jpg" {
		t.Fatalf("subject parse: container=%q path=%q", evs[0].Container(), evs[0].Path())
	}
	off += int64(n)

	evs, n, err = DecodeBlock(h, buf[off:])
	if err != nil {
		t.Fatalf("decode block 2: %v", err)
	}
	if len(evs) != 2 || evs[0].Sequence != 4 {
		t.Fatalf("block 2: %d events, first seq %d", len(evs), evs[0].Sequence)
	}
	off += int64(n)

	if off != int64(len(buf)) {
		t.Fatalf("consumed %d of %d bytes", off, len(buf))
	}
	if _, _, err := DecodeBlock(h, buf[off:]); !errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("decode at end = %v, want ErrNeedMoreData", err)
	}
}

func TestDecodeCompressedBlocks(t *testing.T) {
	for _, codec := range []string{CodecDeflate, CodecSnappy} {
		buf := writeContainer(t, codec, testRecords(10, 4))
		h, err := ParseHeader(buf)
		if err != nil {
			t.Fatalf("%s: parse header: %v", codec, err)
		}
		if h.Codec != codec {
			t.Fatalf("codec = %q, want %q", h.Codec, codec)
		}
		evs, n, err := DecodeBlock(h, buf[h.Len:])
		if err != nil {
			t.Fatalf("%s: decode: %v", codec, err)
		}
		if len(evs) != 4 || evs[3].Sequence != 13 {
			t.Fatalf("%s: %d events, last seq %d", codec, len(evs), evs[len(evs)-1].Sequence)
		}
		if h.Len+int64(n) != int64(len(buf)) {
			t.Fatalf("%s: consumed %d, want %d", codec, h.Len+int64(n), int64(len(buf)))
		}
	}
}

func TestTruncatedContainer(t *testing.T) {
	buf := writeContainer(t, CodecNull, testRecords(1, 3))
	h, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}

	// Header cut short.
	if _, err := ParseHeader(buf[:h.Len-1]); !errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("short header = %v, want ErrNeedMoreData", err)
	}
	if _, err := ParseHeader(buf[:2]); !errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("tiny header = %v, want ErrNeedMoreData", err)
	}

	// Block cut short at every boundary-minus-one.
	for _, cut := range []int64{h.Len, h.Len + 1, int64(len(buf)) - SyncSize, int64(len(buf)) - 1} {
		if _, _, err := DecodeBlock(h, buf[h.Len:cut]); !errors.Is(err, ErrNeedMoreData) {
			t.Fatalf("cut at %d = %v, want ErrNeedMoreData", cut, err)
		}
	}
}

func TestCorruptSyncMarker(t *testing.T) {
	buf := writeContainer(t, CodecNull, testRecords(1, 2))
	h, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	buf[len(buf)-1] ^= 0xff
	if _, _, err := DecodeBlock(h, buf[h.Len:]); !errors.Is(err, ErrCorruptBlock) {
		t.Fatalf("flipped sync = %v, want ErrCorruptBlock", err)
	}
}

func TestCorruptCompressedPayload(t *testing.T) {
	buf := writeContainer(t, CodecDeflate, testRecords(1, 2))
	h, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	// Damage a byte inside the compressed payload, not the framing.
	buf[h.Len+4] ^= 0xff
	if _, _, err := DecodeBlock(h, buf[h.Len:]); !errors.Is(err, ErrCorruptBlock) {
		t.Fatalf("damaged payload = %v, want ErrCorruptBlock", err)
	}
}

// buildHeader hand-assembles a container header for negative cases the
// writer cannot produce.
func buildHeader(schema, codec string) []byte {
	b := append([]byte(nil), magic...)
	appendBytes := func(s string) {
		b = binary.AppendVarint(b, int64(len(s)))
		b = append(b, s...)
	}
	b = binary.AppendVarint(b, 2)
	appendBytes("avro.schema")
	appendBytes(schema)
	appendBytes("avro.codec")
	appendBytes(codec)
	b = binary.AppendVarint(b, 0)
	var sync [SyncSize]byte
	b = append(b, sync[:]...)
	return b
}

func TestHeaderRejections(t *testing.T) {
	if _, err := ParseHeader([]byte("Obj\x02 not a container header....")); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("bad magic = %v, want ErrSchemaMismatch", err)
	}
	if _, err := ParseHeader(buildHeader(Schema, "bzip2")); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("bzip2 codec = %v, want ErrSchemaMismatch", err)
	}
	stripped := `{"type":"record","name":"E","fields":[{"name":"id","type":"string"}]}`
	if _, err := ParseHeader(buildHeader(stripped, CodecNull)); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("missing fields = %v, want ErrSchemaMismatch", err)
	}
	if _, err := ParseHeader(buildHeader(`["not","a","record"]`, CodecNull)); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("non-record schema = %v, want ErrSchemaMismatch", err)
	}
}

func TestHeaderToleratesExtraFields(t *testing.T) {
	wider := `{
	  "type": "record",
	  "name": "ChangeEvent",
	  "fields": [
	    {"name": "id", "type": "string"},
	    {"name": "sequenceNumber", "type": "long"},
	    {"name": "eventType", "type": "string"},
	    {"name": "subject", "type": "string"},
	    {"name": "eventTime", "type": "long"},
	    {"name": "payload", "type": {"type": "map", "values": "string"}},
	    {"name": "etag", "type": "string"}
	  ]
	}`
	if _, err := ParseHeader(buildHeader(wider, CodecNull)); err != nil {
		t.Fatalf("wider schema rejected: %v", err)
	}
}
