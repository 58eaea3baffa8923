package appliance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
)

// Record is one property of an appliance.
//
// Value is a JSON scalar decoded as bool, string, int64 (integral numbers)
// or float64. A nil Value means the remote has not reported the key yet.
type Record struct {
	Key   string         `json:"key"`
	Value any            `json:"value"`
	Unit  string         `json:"unit,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// Known reports whether the remote has supplied a value.
func (r Record) Known() bool { return r.Value != nil }

// StringValue returns the value when it is a string, or "".
func (r Record) StringValue() string {
	s, _ := r.Value.(string) //nolint:errcheck // zero value on mismatch
	return s
}

// BoolValue returns the value when it is a bool, or false.
func (r Record) BoolValue() bool {
	b, _ := r.Value.(bool) //nolint:errcheck // zero value on mismatch
	return b
}

// IntValue returns the value as int64 when it is numeric.
func (r Record) IntValue() (int64, bool) {
	switch v := r.Value.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// sameValue reports whether applying other over r would change anything
// a subscriber can observe.
func (r Record) sameValue(other Record) bool {
	return r.Unit == other.Unit && reflect.DeepEqual(r.Value, other.Value)
}

func (r Record) clone() Record {
	r.Meta = maps.Clone(r.Meta)
	return r
}

// rawItem is the wire form of one item in status, settings and event payloads.
type rawItem map[string]any

// DecodeItems parses either an {"items":[...]} event payload or a bare
// JSON array of items into Records. Items without a key are skipped.
func DecodeItems(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var items []rawItem
	if data[0] == '[' {
		if err := decodeNumbers(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	} else {
		var envelope struct {
			Items []rawItem `json:"items"`
		}
		if err := decodeNumbers(data, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		items = envelope.Items
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		if rec, ok := item.record(); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// DecodeItem parses a single item object, as returned by the per-key
// status, setting and option endpoints.
func DecodeItem(data []byte) (Record, error) {
	var item rawItem
	if err := decodeNumbers(data, &item); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	rec, ok := item.record()
	if !ok {
		return Record{}, fmt.Errorf("%w: item has no key", ErrInvalidPayload)
	}
	return rec, nil
}

// DecodeValue parses a single JSON value with the same number handling
// as DecodeItems.
func DecodeValue(data []byte) (any, error) {
	var v any
	if err := decodeNumbers(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return normalize(v), nil
}

func (it rawItem) record() (Record, bool) {
	key, _ := it["key"].(string) //nolint:errcheck // missing key handled below
	if key == "" {
		return Record{}, false
	}

	rec := Record{Key: key, Value: normalize(it["value"])}
	if unit, ok := it["unit"].(string); ok {
		rec.Unit = unit
	}

	for k, v := range it {
		switch k {
		case "key", "value", "unit":
			continue
		}
		if rec.Meta == nil {
			rec.Meta = make(map[string]any, len(it))
		}
		rec.Meta[k] = normalize(v)
	}
	return rec, true
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// normalize converts json.Number into int64 or float64, recursively.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64() //nolint:errcheck // json.Number is always numeric
		return f
	case map[string]any:
		for k, inner := range t {
			t[k] = normalize(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = normalize(inner)
		}
		return t
	default:
		return v
	}
}
