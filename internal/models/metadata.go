package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// MetaKind tags the variant held by a MetaValue.
type MetaKind uint8

// Metadata value variants.
const (
	MetaNull MetaKind = iota
	MetaString
	MetaNumber
	MetaBool
)

const (
	maxMetadataKeys   = 32
	maxMetadataKeyLen = 64
)

// ErrUnsupportedMetaValue is returned when decoding arrays or objects into a MetaValue.
var ErrUnsupportedMetaValue = errors.New("metadata values must be string, number, bool or null")

// MetaValue is a string, number, bool or null.
type MetaValue struct {
	kind MetaKind
	str  string
	num  float64
	b    bool
}

// StringValue wraps a string.
func StringValue(s string) MetaValue { return MetaValue{kind: MetaString, str: s} }

// NumberValue wraps a number; JSON numbers decode as float64.
func NumberValue(n float64) MetaValue { return MetaValue{kind: MetaNumber, num: n} }

// BoolValue wraps a bool.
func BoolValue(b bool) MetaValue { return MetaValue{kind: MetaBool, b: b} }

// NullValue is the explicit null, also the zero MetaValue.
func NullValue() MetaValue { return MetaValue{} }

// Kind returns the variant held.
func (v MetaValue) Kind() MetaKind { return v.kind }

// IsNull reports whether the value is null.
func (v MetaValue) IsNull() bool { return v.kind == MetaNull }

// AsString returns the string and whether the value holds one.
func (v MetaValue) AsString() (string, bool) { return v.str, v.kind == MetaString }

// AsNumber returns the number and whether the value holds one.
func (v MetaValue) AsNumber() (float64, bool) { return v.num, v.kind == MetaNumber }

// AsBool returns the bool and whether the value holds one.
func (v MetaValue) AsBool() (bool, bool) { return v.b, v.kind == MetaBool }

// Text renders the value for tabular exports.
func (v MetaValue) Text() string {
	switch v.kind {
	case MetaString:
		return v.str
	case MetaNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case MetaBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// MarshalJSON implements json.Marshaler.
func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case MetaString:
		return json.Marshal(v.str)
	case MetaNumber:
		return json.Marshal(v.num)
	case MetaBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrUnsupportedMetaValue
	}
	switch data[0] {
	case 'n':
		*v = NullValue()
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	case '{', '[':
		return ErrUnsupportedMetaValue
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
		return nil
	}
}

// Metadata is an open attribute bag attached to an item.
type Metadata map[string]MetaValue

// Validate bounds the number and length of keys.
func (m Metadata) Validate() error {
	if len(m) > maxMetadataKeys {
		return fmt.Errorf("metadata supports at most %d keys", maxMetadataKeys)
	}
	for key := range m {
		if key == "" || len(key) > maxMetadataKeyLen {
			return fmt.Errorf("metadata key %q must be 1-%d characters", key, maxMetadataKeyLen)
		}
	}
	return nil
}

// Value implements driver.Valuer, persisting as JSONB.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]MetaValue(m))
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: cannot scan %T", src)
	}
	out := Metadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
	}
	*m = out
	return nil
}

// MarshalJSON renders nil as an empty object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]MetaValue(m))
}
