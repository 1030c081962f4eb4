package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Params is the ordered argument mapping of a step. Values are kept as raw
// JSON so untouched arguments are re-emitted exactly as they were read.
// A Params value is never mutated after construction; With returns a copy.
type Params struct {
	m *orderedmap.OrderedMap[string, json.RawMessage]
}

// Param is one key/value pair used to build a Params.
type Param struct {
	Key   string
	Value any
}

// P is shorthand for building a Param.
func P(key string, value any) Param {
	return Param{Key: key, Value: value}
}

// NewParams builds an ordered Params from pairs. Values are encoded to JSON.
func NewParams(pairs ...Param) Params {
	m := orderedmap.New[string, json.RawMessage]()
	for _, p := range pairs {
		m.Set(p.Key, mustEncodeValue(p.Value))
	}
	return Params{m: m}
}

// Len returns the number of parameters.
func (p Params) Len() int {
	if p.m == nil {
		return 0
	}
	return p.m.Len()
}

// Keys returns the parameter names in document order.
func (p Params) Keys() []string {
	if p.m == nil {
		return nil
	}
	keys := make([]string, 0, p.m.Len())
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	if p.m == nil {
		return false
	}
	_, ok := p.m.Get(key)
	return ok
}

// Raw returns the raw JSON of a parameter.
func (p Params) Raw(key string) (json.RawMessage, bool) {
	if p.m == nil {
		return nil, false
	}
	return p.m.Get(key)
}

// String returns a string parameter. Non-string values report false.
func (p Params) String(key string) (string, bool) {
	raw, ok := p.Raw(key)
	if !ok || len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Int returns an integral numeric parameter. Numeric strings ("3000") are
// accepted because hand-edited templates occasionally quote them.
func (p Params) Int(key string) (int, bool) {
	raw, ok := p.Raw(key)
	if !ok || len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Value decodes a parameter into a generic Go value (numbers become float64).
func (p Params) Value(key string) (any, bool) {
	raw, ok := p.Raw(key)
	if !ok || len(raw) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

// Map decodes all parameters into a generic map. Nested step lists are
// omitted; they are reachable through the owning Step.
func (p Params) Map() map[string]any {
	out := make(map[string]any, p.Len())
	if p.m == nil {
		return out
	}
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(pair.Value, &v); err == nil {
			out[pair.Key] = v
		}
	}
	return out
}

// With returns a copy of p with key set to value. An existing key keeps
// its position; a new key is appended.
func (p Params) With(key string, value any) Params {
	out := p.clone()
	out.m.Set(key, mustEncodeValue(value))
	return out
}

// Without returns a copy of p with key removed.
func (p Params) Without(key string) Params {
	out := p.clone()
	out.m.Delete(key)
	return out
}

// Equal reports whether both parameter sets hold the same keys in the same
// order with semantically equal values.
func (p Params) Equal(o Params) bool {
	if p.Len() != o.Len() {
		return false
	}
	if p.Len() == 0 {
		return true
	}
	a, b := p.m.Oldest(), o.m.Oldest()
	for a != nil && b != nil {
		if a.Key != b.Key || !rawEqual(a.Value, b.Value) {
			return false
		}
		a, b = a.Next(), b.Next()
	}
	return a == nil && b == nil
}

func (p Params) clone() Params {
	m := orderedmap.New[string, json.RawMessage]()
	if p.m != nil {
		for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
			m.Set(pair.Key, pair.Value)
		}
	}
	return Params{m: m}
}

// reserve keeps a key position for a nested step list.
func (p Params) reserve(key string) Params {
	if p.Has(key) {
		return p
	}
	out := p.clone()
	out.m.Set(key, nil)
	return out
}

func rawEqual(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

// encodeValue encodes v without HTML escaping so selectors and
// placeholders survive a round trip byte for byte.
func encodeValue(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func mustEncodeValue(v any) json.RawMessage {
	raw, err := encodeValue(v)
	if err != nil {
		panic(fmt.Sprintf("template: encode parameter value %T: %v", v, err))
	}
	return raw
}
