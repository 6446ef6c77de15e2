package regions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ShapeRectangle is the only supported region shape
const ShapeRectangle = "rectangle"

// Descriptor is a region as supplied by the page author via the
// image-regions attribute. Every field is optional and loosely typed, the
// Normalizer decides what is usable.
type Descriptor struct {
	ID       string `json:"id,omitempty"`
	Shape    string `json:"shape,omitempty"`
	Absolute Flag   `json:"absolute"`
	X        Number `json:"x"`
	Y        Number `json:"y"`
	Width    Number `json:"width"`
	Height   Number `json:"height"`
}

// Number is a JSON value that may be a number or a numeric string
type Number struct {
	raw string
	set bool
}

// NumberOf wraps a float64
func NumberOf(v float64) Number {
	return Number{raw: strconv.FormatFloat(v, 'g', -1, 64), set: true}
}

// NumberFromString wraps a string exactly as an author would write it
func NumberFromString(s string) Number {
	return Number{raw: s, set: true}
}

// IsSet reports whether the field was present and not null
func (n Number) IsSet() bool {
	return n.set
}

// Float parses the value, failing for anything that isn't a finite number
func (n Number) Float() (float64, bool) {
	if !n.set {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(n.raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number{raw: s, set: true}
		return nil
	}
	// Anything else is kept verbatim and judged by Float.
	*n = Number{raw: string(data), set: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	if v, ok := n.Float(); ok {
		return json.Marshal(v)
	}
	return json.Marshal(n.raw)
}

// Flag is a JSON value that may be a boolean or a "true"/"false" string
type Flag struct {
	value bool
	set   bool
}

// FlagOf wraps a bool
func FlagOf(v bool) Flag {
	return Flag{value: v, set: true}
}

// IsSet reports whether the field was present with a usable value
func (f Flag) IsSet() bool {
	return f.set
}

// Bool returns the value, false when unset
func (f Flag) Bool() bool {
	return f.value
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	*f = Flag{}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = Flag{value: t, set: true}
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			*f = Flag{value: b, set: true}
		}
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// ParseDescriptors decodes the image-regions attribute. Entries which
// aren't JSON objects are skipped. An error is returned only when the value
// as a whole isn't a JSON array; the descriptors decoded so far are
// returned in every case.
func ParseDescriptors(value string) ([]Descriptor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse image regions: %w", err)
	}

	descs := make([]Descriptor, 0, len(raw))
	for _, entry := range raw {
		var d Descriptor
		if err := json.Unmarshal(entry, &d); err != nil {
			continue
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// MarshalDescriptors encodes descriptors as an image-regions attribute value
func MarshalDescriptors(descs []Descriptor) (string, error) {
	data, err := json.Marshal(descs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal image regions: %w", err)
	}
	return string(data), nil
}
