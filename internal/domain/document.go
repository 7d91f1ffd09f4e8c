package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is an ordered string key/value container. Keys keep the
// position of their first insertion; values follow last-write-wins.
type Document struct {
	keys   []string
	values map[string]string
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: make(map[string]string)}
}

// DocumentFrom builds a document from alternating key, value arguments.
func DocumentFrom(kv ...string) *Document {
	d := NewDocument()
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(kv[i], kv[i+1])
	}
	return d
}

// Set stores value under key and reports whether an existing value was replaced.
func (d *Document) Set(key, value string) bool {
	if d.values == nil {
		d.values = make(map[string]string)
	}
	_, existed := d.values[key]
	if !existed {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
	return existed
}

func (d *Document) Get(key string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d.values[key]
	return v, ok
}

func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

func (d *Document) Clone() *Document {
	out := NewDocument()
	if d == nil {
		return out
	}
	for _, k := range d.keys {
		out.Set(k, d.values[k])
	}
	return out
}

// Equal compares key sets and values, ignoring key order.
func (d *Document) Equal(other *Document) bool {
	if d.Len() != other.Len() {
		return false
	}
	for _, k := range d.Keys() {
		ov, ok := other.Get(k)
		if !ok || ov != d.values[k] {
			return false
		}
	}
	return true
}

// Map returns an unordered copy of the fields.
func (d *Document) Map() map[string]string {
	out := make(map[string]string, d.Len())
	for _, k := range d.Keys() {
		out[k] = d.values[k]
	}
	return out
}

// MarshalJSON writes the fields as an object in key order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of string values, preserving key order.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document must be a JSON object: %w", ErrMalformedInput)
	}
	d.keys = nil
	d.values = make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("document key is not a string: %w", ErrMalformedInput)
		}
		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		d.Set(key, val)
	}
	_, err = dec.Token()
	return err
}
