package scope

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Values is an insertion-ordered mapping of string keys to arbitrary values.
// A nil *Values behaves as an empty mapping for every read operation.
type Values struct {
	keys []string
	m    map[string]any
}

func New() *Values {
	return &Values{m: make(map[string]any)}
}

// FromMap builds Values from a plain map. Keys are sorted since maps carry no order.
func FromMap(m map[string]any) *Values {
	v := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, m[k])
	}
	return v
}

// Set stores value under key. Overwriting an existing key keeps its position.
func (v *Values) Set(key string, value any) {
	if _, ok := v.m[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.m[key] = value
}

func (v *Values) Get(key string) (any, bool) {
	if v == nil {
		return nil, false
	}
	val, ok := v.m[key]
	return val, ok
}

func (v *Values) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Keys returns a copy of the keys in order.
func (v *Values) Keys() []string {
	if v == nil {
		return nil
	}
	keys := make([]string, len(v.keys))
	copy(keys, v.keys)
	return keys
}

func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Range calls fn for every entry in order until fn returns false.
func (v *Values) Range(fn func(key string, value any) bool) {
	if v == nil {
		return
	}
	for _, k := range v.keys {
		if !fn(k, v.m[k]) {
			return
		}
	}
}

// Clone returns a shallow copy.
func (v *Values) Clone() *Values {
	out := New()
	v.Range(func(key string, value any) bool {
		out.Set(key, value)
		return true
	})
	return out
}

// Map returns a shallow, unordered copy of the entries.
func (v *Values) Map() map[string]any {
	out := make(map[string]any, v.Len())
	v.Range(func(key string, value any) bool {
		out[key] = value
		return true
	})
	return out
}

// MarshalJSON encodes the entries as a JSON object in key order.
func (v *Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(v.m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Plain converts a value tree holding *Values into plain maps and slices so
// it can be navigated by expressions and templates.
func Plain(value any) any {
	switch val := value.(type) {
	case *Values:
		if val == nil {
			return nil
		}
		out := make(map[string]any, val.Len())
		val.Range(func(key string, item any) bool {
			out[key] = Plain(item)
			return true
		})
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Plain(item)
		}
		return out
	default:
		return value
	}
}
