package blob

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tendant/stash/pkg/stash"
)

// snapshotLimit bounds the diagnostic copy of an unrecognized response.
const snapshotLimit = 256

// Normalize turns a raw backend response into canonical bytes.
//
// Object-store clients have returned payloads in several encodings across
// versions: a plain byte buffer, or a result envelope {ok|success, value,
// error} whose value is a list holding either a buffer, a serialized
// {"type":"Buffer","data":[...]} object, or the bytes themselves as numbers.
// A bare list is treated as an already-unwrapped value. Matchers run in a
// fixed order; the first that recognizes the shape decides the outcome.
func Normalize(raw any) ([]byte, error) {
	if b, ok := asBuffer(raw); ok {
		return b, nil
	}

	value := raw
	if envelope, ok := raw.(map[string]any); ok {
		unwrapped, err := unwrapResult(envelope)
		if err != nil {
			return nil, err
		}
		value = unwrapped
	}

	for _, m := range valueMatchers {
		if b, ok, err := m.match(value); ok {
			return b, err
		}
	}
	return nil, malformed("unrecognized value shape", raw)
}

// valueMatcher reports ok when it recognizes the shape; err is then final.
type valueMatcher struct {
	name  string
	match func(value any) (b []byte, ok bool, err error)
}

// valueMatchers inspect the unwrapped value, in priority order.
var valueMatchers = []valueMatcher{
	{name: "buffer", match: matchValueBuffer},
	{name: "first-element buffer", match: matchFirstElementBuffer},
	{name: "numeric sequence", match: matchNumericSequence},
}

// unwrapResult handles the result envelope. A failed result becomes a
// backend error carrying the wrapped message; a missing value or a flag
// that is not a boolean is malformed.
func unwrapResult(envelope map[string]any) (any, error) {
	raw, hasFlag := resultFlag(envelope)
	if !hasFlag {
		return nil, malformed("object without result flag", envelope)
	}
	flag, isBool := raw.(bool)
	if !isBool {
		return nil, malformed("non-boolean result flag", envelope)
	}
	if !flag {
		return nil, fmt.Errorf("%w: %s", stash.ErrBackend, resultMessage(envelope))
	}
	value, ok := envelope["value"]
	if !ok || value == nil {
		return nil, malformed("result without value", envelope)
	}
	return value, nil
}

func resultFlag(envelope map[string]any) (any, bool) {
	for _, key := range []string{"ok", "success"} {
		if v, exists := envelope[key]; exists {
			return v, true
		}
	}
	return nil, false
}

func resultMessage(envelope map[string]any) string {
	switch e := envelope["error"].(type) {
	case string:
		if e != "" {
			return e
		}
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return "object store reported failure"
}

func matchValueBuffer(value any) ([]byte, bool, error) {
	b, ok := asBuffer(value)
	return b, ok, nil
}

func matchFirstElementBuffer(value any) ([]byte, bool, error) {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return nil, false, nil
	}
	if b, ok := asBuffer(list[0]); ok {
		return b, true, nil
	}
	tagged, ok := list[0].(map[string]any)
	if !ok || !isTaggedBuffer(tagged) {
		return nil, false, nil
	}
	data, ok := tagged["data"].([]any)
	if !ok {
		return nil, true, malformed("tagged buffer without data array", value)
	}
	b, err := bytesFromNumbers(data)
	if err != nil {
		return nil, true, malformed(err.Error(), value)
	}
	return b, true, nil
}

func matchNumericSequence(value any) ([]byte, bool, error) {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return nil, false, nil
	}
	if _, isNumber := toByte(list[0]); !isNumber {
		return nil, false, nil
	}
	b, err := bytesFromNumbers(list)
	if err != nil {
		return nil, true, malformed(err.Error(), value)
	}
	return b, true, nil
}

func isTaggedBuffer(m map[string]any) bool {
	for _, key := range []string{"type", "kind"} {
		if tag, ok := m[key].(string); ok && tag == "Buffer" {
			return true
		}
	}
	return false
}

func asBuffer(v any) ([]byte, bool) {
	b, ok := v.([]byte)
	return b, ok
}

func bytesFromNumbers(list []any) ([]byte, error) {
	out := make([]byte, len(list))
	for i, v := range list {
		b, ok := toByte(v)
		if !ok {
			return nil, fmt.Errorf("element %d is not a byte: %v", i, v)
		}
		out[i] = b
	}
	return out, nil
}

// toByte accepts the numeric types a JSON decoder or a Go client may produce
// and rejects anything outside 0..255 or non-integral.
func toByte(v any) (byte, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint8:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		f = float64(i)
	default:
		return 0, false
	}
	if f < 0 || f > 255 || f != math.Trunc(f) {
		return 0, false
	}
	return byte(f), true
}

func malformed(reason string, raw any) error {
	return &stash.MalformedResponseError{Reason: reason, Snapshot: snapshot(raw)}
}

func snapshot(raw any) string {
	var s string
	if b, err := json.Marshal(raw); err == nil {
		s = string(b)
	} else {
		s = fmt.Sprintf("%T", raw)
	}
	if len(s) > snapshotLimit {
		s = s[:snapshotLimit] + "..."
	}
	return strings.ToValidUTF8(s, "?")
}
