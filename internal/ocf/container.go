package ocf

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linkedin/goavro/v2"
)

// Sentinel errors surfaced by the decoder.
var (
	// ErrNeedMoreData means the supplied bytes end before a complete
	// header or block. Not a failure: fetch more bytes (or, at the live
	// edge of an unfinalized shard, try again later).
	ErrNeedMoreData = errors.New("ocf: need more data")

	// ErrCorruptBlock means a block failed its integrity check (sync
	// marker mismatch, bad compression framing, or undecodable records).
	// Fatal for the byte range; never retried.
	ErrCorruptBlock = errors.New("ocf: corrupt block")

	// ErrSchemaMismatch means the container header declares a schema or
	// codec this reader does not support. Fatal for the whole run.
	ErrSchemaMismatch = errors.New("ocf: schema mismatch")
)

var magic = []byte{'O', 'b', 'j', 1}

// Codec names the container may declare.
const (
	CodecNull    = "null"
	CodecDeflate = "deflate"
	CodecSnappy  = "snappy"
)

// SyncSize is the length of the per-block sync marker.
const SyncSize = 16

// Header is the parsed container header of one shard. It is parsed once per
// shard read session and cached for the session's lifetime.
type Header struct {
	// Codec is the declared block compression: null, deflate or snappy.
	Codec string
	// Sync is the 16-byte marker every block must repeat.
	Sync [SyncSize]byte
	// Len is the total header length in bytes. The first block starts here.
	Len int64

	codec *goavro.Codec
}

// ParseHeader parses the container header at the start of buf.
// Returns ErrNeedMoreData when buf is too short to hold the full header and
// ErrSchemaMismatch when the magic, declared codec or writer schema is not
// one this reader supports.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < len(magic) {
		return nil, ErrNeedMoreData
	}
	if !bytes.Equal(buf[:len(magic)], magic) {
		return nil, fmt.Errorf("%w: bad container magic", ErrSchemaMismatch)
	}
	pos := len(magic)

	meta := map[string][]byte{}
	for {
		count, n, err := readLong(buf[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		if count == 0 {
			break
		}
		if count < 0 {
			// Negative count form: followed by a byte size we ignore.
			count = -count
			_, n, err := readLong(buf[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
		}
		for i := int64(0); i < count; i++ {
			key, n, err := readBytes(buf[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
			val, n, err := readBytes(buf[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
			meta[string(key)] = val
		}
	}

	if len(buf) < pos+SyncSize {
		return nil, ErrNeedMoreData
	}

	h := &Header{Codec: CodecNull}
	if c, ok := meta["avro.codec"]; ok && len(c) > 0 {
		h.Codec = string(c)
	}
	switch h.Codec {
	case CodecNull, CodecDeflate, CodecSnappy:
	default:
		return nil, fmt.Errorf("%w: unsupported codec %q", ErrSchemaMismatch, h.Codec)
	}

	schema, ok := meta["avro.schema"]
	if !ok {
		return nil, fmt.Errorf("%w: header missing avro.schema", ErrSchemaMismatch)
	}
	if err := checkSchema(schema); err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(string(schema))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	h.codec = codec

	copy(h.Sync[:], buf[pos:pos+SyncSize])
	h.Len = int64(pos + SyncSize)
	return h, nil
}

// checkSchema verifies the writer schema is a record carrying the fields the
// event model requires. Extra fields are tolerated.
func checkSchema(schema []byte) error {
	var s struct {
		Type   string `json:"type"`
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(schema, &s); err != nil {
		return fmt.Errorf("%w: unparsable schema: %v", ErrSchemaMismatch, err)
	}
	if s.Type != "record" {
		return fmt.Errorf("%w: writer schema is %q, want record", ErrSchemaMismatch, s.Type)
	}
	have := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		have[f.Name] = true
	}
	for _, name := range []string{"id", "sequenceNumber", "eventType", "subject", "eventTime", "payload"} {
		if !have[name] {
			return fmt.Errorf("%w: writer schema missing field %q", ErrSchemaMismatch, name)
		}
	}
	return nil
}

// readLong decodes one zig-zag varint (Avro long) from the front of buf.
func readLong(buf []byte) (int64, int, error) {
	v, n := binary.Varint(buf)
	if n == 0 {
		return 0, 0, ErrNeedMoreData
	}
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: varint overflow", ErrCorruptBlock)
	}
	return v, n, nil
}

// readBytes decodes one Avro bytes/string value (length-prefixed).
func readBytes(buf []byte) ([]byte, int, error) {
	l, n, err := readLong(buf)
	if err != nil {
		return nil, 0, err
	}
	if l < 0 {
		return nil, 0, fmt.Errorf("%w: negative byte length", ErrCorruptBlock)
	}
	if int64(len(buf)) < int64(n)+l {
		return nil, 0, ErrNeedMoreData
	}
	return buf[n : int64(n)+l], n + int(l), nil
}
