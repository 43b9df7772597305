package ocf

import (
	"fmt"
	"time"

	"github.com/tidefeed/tidefeed/internal/event"
)

// Schema is the record schema the feed writer produces. The decoder accepts
// any record schema carrying at least these fields; this constant is the
// canonical form, used by fixtures and by anything re-encoding events.
const Schema = `{
  "type": "record",
  "name": "ChangeEvent",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "sequenceNumber", "type": "long"},
    {"name": "eventType", "type": "string"},
    {"name": "subject", "type": "string"},
    {"name": "eventTime", "type": "long"},
    {"name": "payload", "type": {"type": "map", "values": "string"}}
  ]
}`

// fromNative maps one decoded Avro datum onto the event model. Unknown
// eventType tags succeed and keep the raw tag; unknown payload keys are
// carried through untouched.
func fromNative(native interface{}) (event.Event, error) {
	rec, ok := native.(map[string]interface{})
	if !ok {
		return event.Event{}, fmt.Errorf("datum is %T, want record", native)
	}
	var ev event.Event
	if ev.ID, ok = rec["id"].(string); !ok {
		return event.Event{}, fmt.Errorf("field id is %T, want string", rec["id"])
	}
	if ev.Sequence, ok = rec["sequenceNumber"].(int64); !ok {
		return event.Event{}, fmt.Errorf("field sequenceNumber is %T, want long", rec["sequenceNumber"])
	}
	if ev.RawType, ok = rec["eventType"].(string); !ok {
		return event.Event{}, fmt.Errorf("field eventType is %T, want string", rec["eventType"])
	}
	ev.Type = event.ParseType(ev.RawType)
	if ev.Subject, ok = rec["subject"].(string); !ok {
		return event.Event{}, fmt.Errorf("field subject is %T, want string", rec["subject"])
	}
	ms, ok := rec["eventTime"].(int64)
	if !ok {
		return event.Event{}, fmt.Errorf("field eventTime is %T, want long", rec["eventTime"])
	}
	ev.Time = time.UnixMilli(ms).UTC()
	payload, ok := rec["payload"].(map[string]interface{})
	if !ok {
		return event.Event{}, fmt.Errorf("field payload is %T, want map", rec["payload"])
	}
	ev.Payload = make(map[string]string, len(payload))
	for k, v := range payload {
		s, ok := v.(string)
		if !ok {
			return event.Event{}, fmt.Errorf("payload key %q is %T, want string", k, v)
		}
		ev.Payload[k] = s
	}
	return ev, nil
}
