package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"
)

// Object is a decoded JSON object that remembers the order of its keys.
// Decode produces it so that documents nested under object keys are found in
// the order the backend wrote them.
type Object struct {
	Keys   []string
	Fields map[string]any
}

// NewObject builds an Object from alternating key/value pairs.
func NewObject(pairs ...any) *Object {
	o := &Object{Fields: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		k, _ := pairs[i].(string)
		o.Set(k, pairs[i+1])
	}
	return o
}

// Set stores v under k. A new key is appended; an existing one keeps its place.
func (o *Object) Set(k string, v any) {
	if _, ok := o.Fields[k]; !ok {
		o.Keys = append(o.Keys, k)
	}
	o.Fields[k] = v
}

// MarshalJSON writes the fields in key order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.Fields[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode parses a response body, keeping object key order. Malformed JSON
// yields nil.
func Decode(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	v, err := decodeValue(dec)
	if err != nil {
		return nil
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil
	}
	return v
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		o := &Object{Fields: map[string]any{}}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			k, ok := kt.(string)
			if !ok {
				return nil, errors.New("object key is not a string")
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			o.Set(k, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return o, nil
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, errors.New("unexpected delimiter")
}

// fieldsOf returns the fields of a plain or ordered object.
func fieldsOf(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, o != nil
	case *Object:
		if o == nil {
			return nil, false
		}
		return o.Fields, true
	}
	return nil, false
}

// keysOf lists the keys of an object in document order. Plain maps have no
// order and are listed sorted.
func keysOf(v any) []string {
	switch o := v.(type) {
	case *Object:
		return o.Keys
	case map[string]any:
		return sortedKeys(o)
	}
	return nil
}

// plain converts ordered objects back into maps, recursively.
func plain(v any) any {
	switch n := v.(type) {
	case *Object:
		if n == nil {
			return nil
		}
		m := make(map[string]any, len(n.Fields))
		for k, val := range n.Fields {
			m[k] = plain(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(n))
		for k, val := range n {
			m[k] = plain(val)
		}
		return m
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

func plainObject(v any) RawDocument {
	m, _ := plain(v).(map[string]any)
	return m
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
