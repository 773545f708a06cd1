package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotAnObject is returned when decoding an OrderedMap from a JSON value that is not an object.
var ErrNotAnObject = errors.New("value is not a JSON object")

// OrderedMap is a string-keyed map that remembers insertion order.
//
// Values are opaque: scalars (string, bool, int, float64, nil), []any and
// nested *OrderedMap. The order survives JSON and YAML encoding, which is
// what keeps user-authored keys in the order they were written.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]any)}
}

// OrderedMapOf builds a map from alternating key/value arguments.
func OrderedMapOf(pairs ...any) *OrderedMap {
	m := NewOrderedMap()

	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}

		m.Set(key, pairs[i+1])
	}

	return m
}

func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}

	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order, nil when empty.
func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}

	return append([]string(nil), m.keys...)
}

func (m *OrderedMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}

	v, ok := m.values[key]

	return v, ok
}

func (m *OrderedMap) Has(key string) bool {
	_, ok := m.Get(key)

	return ok
}

// Set stores the value. New keys are appended, existing keys keep their position.
func (m *OrderedMap) Set(key string, value any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}

	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}

	m.values[key] = value
}

func (m *OrderedMap) Delete(key string) {
	if m == nil {
		return
	}

	if _, ok := m.values[key]; !ok {
		return
	}

	delete(m.values, key)

	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)

			break
		}
	}

	if len(m.keys) == 0 {
		m.keys = nil
	}
}

// Range calls fn for each entry in order until fn returns false.
func (m *OrderedMap) Range(fn func(key string, value any) bool) {
	if m == nil {
		return
	}

	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy. A nil map clones to nil.
func (m *OrderedMap) Clone() *OrderedMap {
	if m == nil {
		return nil
	}

	c := &OrderedMap{
		keys:   append([]string(nil), m.keys...),
		values: make(map[string]any, len(m.values)),
	}

	for k, v := range m.values {
		c.values[k] = CloneValue(v)
	}

	return c
}

// CloneValue deep-copies an opaque value.
func CloneValue(v any) any {
	switch val := v.(type) {
	case *OrderedMap:
		return val.Clone()
	case []any:
		if val == nil {
			return []any(nil)
		}

		c := make([]any, len(val))
		for i, item := range val {
			c[i] = CloneValue(item)
		}

		return c
	case []string:
		if val == nil {
			return []string(nil)
		}

		c := make([]string, len(val))
		copy(c, val)

		return c
	default:
		return v
	}
}

func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')

		value, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key %q: %w", k, err)
		}

		buf.Write(value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (m *OrderedMap) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSONValue(data)
	if err != nil {
		return err
	}

	decoded, ok := v.(*OrderedMap)
	if !ok {
		return ErrNotAnObject
	}

	*m = *decoded

	return nil
}

// DecodeJSONValue decodes arbitrary JSON keeping object key order.
// Objects become *OrderedMap, arrays []any, integral numbers int and
// other numbers float64.
func DecodeJSONValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeToken(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level JSON value")
	}

	return v, nil
}

func decodeToken(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewOrderedMap()

			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}

				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}

				value, err := decodeToken(dec)
				if err != nil {
					return nil, err
				}

				m.Set(key, value)
			}

			if _, err := dec.Token(); err != nil {
				return nil, err
			}

			return m, nil
		case '[':
			list := make([]any, 0)

			for dec.More() {
				item, err := decodeToken(dec)
				if err != nil {
					return nil, err
				}

				list = append(list, item)
			}

			if _, err := dec.Token(); err != nil {
				return nil, err
			}

			return list, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), nil
		}

		return t.Float64()
	default:
		return tok, nil
	}
}
