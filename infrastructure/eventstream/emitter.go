// Package eventstream implements the line-delimited progress event
// vocabulary from spec §4.4: one line per event, "<TAG>: <payload>",
// JSON payloads sanitized and capped.
package eventstream

import (
	"encoding/json"
	"fmt"

	"github.com/foldershare/sharer/domain/port"
)

// Emitter writes events to a Sink. It holds no state of its own, so it is
// safe for concurrent use whenever its Sink is; the engine calls it from
// both the coordinator and its worker-status relay goroutine.
type Emitter struct {
	sink port.Sink
}

// New builds an Emitter writing to sink.
func New(sink port.Sink) *Emitter {
	return &Emitter{sink: sink}
}

func (e *Emitter) EmitPlain(tag port.EventTag, payload string) error {
	return e.sink.EmitLine(fmt.Sprintf("%s: %s", tag, payload))
}

// EmitJSON serializes payload, sanitizing any string field reachable
// through a generic round-trip and enforcing the 100KB cap. Oversize
// payloads fall back to an error event rather than emit a malformed line.
func (e *Emitter) EmitJSON(tag port.EventTag, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return e.emitFallback(tag, "failed to marshal payload")
	}

	sanitized := sanitizeJSONBytes(data)

	if len(sanitized) > maxJSONPayloadBytes {
		return e.emitFallback(tag, "Data too large")
	}

	return e.sink.EmitLine(fmt.Sprintf("%s: %s", tag, string(sanitized)))
}

func (e *Emitter) emitFallback(tag port.EventTag, reason string) error {
	fallback, _ := json.Marshal(map[string]string{"error": reason})
	return e.sink.EmitLine(fmt.Sprintf("%s: %s", tag, string(fallback)))
}

// sanitizeJSONBytes round-trips data through a generic interface{}, applies
// Sanitize to every string value found, and re-marshals it. This catches
// string fields regardless of the concrete payload type callers pass.
func sanitizeJSONBytes(data []byte) []byte {
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return data
	}
	sanitizeValue(generic)
	out, err := json.Marshal(generic)
	if err != nil {
		return data
	}
	return out
}

func sanitizeValue(v interface{}) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if s, ok := val.(string); ok {
				t[k] = Sanitize(s)
			} else {
				sanitizeValue(val)
			}
		}
	case []interface{}:
		for i, val := range t {
			if s, ok := val.(string); ok {
				t[i] = Sanitize(s)
			} else {
				sanitizeValue(val)
			}
		}
	}
}
