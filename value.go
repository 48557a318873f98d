package mat73

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"go.uber.org/multierr"
)

// Struct is an ordered mapping from names to resolved values. Values are
// *Struct, string or *Array in native mode and *Struct, string, []any,
// numbers, bool or nil in portable mode.
type Struct struct {
	keys   []string
	values map[string]any
}

// NewStruct returns an empty mapping.
func NewStruct() *Struct {
	return &Struct{values: map[string]any{}}
}

func single(key string, v any) *Struct {
	s := NewStruct()
	s.Set(key, v)
	return s
}

// Set stores v under key. A new key is appended; an existing key keeps its
// position.
func (s *Struct) Set(key string, v any) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}

// Get returns the value stored under key.
func (s *Struct) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (s *Struct) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Len is the number of keys.
func (s *Struct) Len() int {
	return len(s.keys)
}

// Merge copies the entries of other into s. Keys already present in s are
// left untouched and reported with ErrDuplicateName.
func (s *Struct) Merge(other *Struct) error {
	var errs error
	for _, k := range other.keys {
		if _, ok := s.values[k]; ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %q", ErrDuplicateName, k))
			continue
		}
		s.Set(k, other.values[k])
	}
	return errs
}

// Map converts s into plain Go maps, recursively. Arrays and other values
// are left as they are.
func (s *Struct) Map() map[string]any {
	out := make(map[string]any, len(s.keys))
	for _, k := range s.keys {
		out[k] = plain(s.values[k])
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case *Struct:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

// MarshalJSON writes the mapping as a JSON object in key order. Native
// arrays are written in their portable form.
func (s *Struct) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(jsonValue(s.values[k]))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonValue(v any) any {
	switch t := v.(type) {
	case *Array:
		return portable(t)
	case float64, float32, complex128:
		return portableScalar(t)
	}
	return v
}

// MarshalYAML keeps key order when encoding with goccy/go-yaml.
func (s *Struct) MarshalYAML() (any, error) {
	out := make(yaml.MapSlice, 0, len(s.keys))
	for _, k := range s.keys {
		v := s.values[k]
		if a, ok := v.(*Array); ok {
			v = portable(a)
		}
		out = append(out, yaml.MapItem{Key: k, Value: v})
	}
	return out, nil
}
