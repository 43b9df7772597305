package ocf

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/golang/snappy"

	"github.com/tidefeed/tidefeed/internal/event"
)

// DecodeBlock decodes exactly one data block from the front of buf and
// returns the decoded events plus the number of bytes consumed. The caller
// adds n to its running offset; that sum is the start of the next unread
// block and the only valid checkpoint position.
//
// ErrNeedMoreData means buf ends mid-block: either more bytes must be
// fetched, or the shard's writer has not finished the block yet. A buf of
// length zero reports ErrNeedMoreData as well (clean end at a boundary).
func DecodeBlock(h *Header, buf []byte) ([]event.Event, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrNeedMoreData
	}
	count, n, err := readLong(buf)
	if err != nil {
		return nil, 0, err
	}
	pos := n
	if count <= 0 {
		return nil, 0, fmt.Errorf("%w: block record count %d", ErrCorruptBlock, count)
	}
	size, n, err := readLong(buf[pos:])
	if err != nil {
		return nil, 0, err
	}
	pos += n
	if size < 0 {
		return nil, 0, fmt.Errorf("%w: block byte length %d", ErrCorruptBlock, size)
	}
	if int64(len(buf)) < int64(pos)+size+SyncSize {
		return nil, 0, ErrNeedMoreData
	}
	payload := buf[pos : int64(pos)+size]
	pos += int(size)
	if !bytes.Equal(buf[pos:pos+SyncSize], h.Sync[:]) {
		return nil, 0, fmt.Errorf("%w: sync marker mismatch", ErrCorruptBlock)
	}
	pos += SyncSize

	data, err := decompress(h.Codec, payload)
	if err != nil {
		return nil, 0, err
	}

	events := make([]event.Event, 0, count)
	for i := int64(0); i < count; i++ {
		native, rest, err := h.codec.NativeFromBinary(data)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: record %d: %v", ErrCorruptBlock, i, err)
		}
		ev, err := fromNative(native)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: record %d: %v", ErrCorruptBlock, i, err)
		}
		events = append(events, ev)
		data = rest
	}
	if len(data) != 0 {
		return nil, 0, fmt.Errorf("%w: %d trailing bytes after %d records", ErrCorruptBlock, len(data), count)
	}
	return events, pos, nil
}

func decompress(codec string, payload []byte) ([]byte, error) {
	switch codec {
	case CodecNull:
		return payload, nil
	case CodecDeflate:
		r := flate.NewReader(bytes.NewReader(payload))
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: deflate: %v", ErrCorruptBlock, err)
		}
		_ = r.Close()
		return data, nil
	case CodecSnappy:
		// Avro snappy blocks end with a big-endian CRC32 (IEEE) of the
		// uncompressed bytes.
		if len(payload) < 4 {
			return nil, fmt.Errorf("%w: snappy block too short", ErrCorruptBlock)
		}
		want := binary.BigEndian.Uint32(payload[len(payload)-4:])
		data, err := snappy.Decode(nil, payload[:len(payload)-4])
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrCorruptBlock, err)
		}
		if crc32.ChecksumIEEE(data) != want {
			return nil, fmt.Errorf("%w: snappy crc mismatch", ErrCorruptBlock)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unsupported codec %q", ErrSchemaMismatch, codec)
	}
}
