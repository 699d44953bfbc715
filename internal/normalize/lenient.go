package normalize

import (
	"bytes"
	"encoding/json"
)

// The decoders below never fail. A field whose JSON type does not match is
// treated as absent, so one odd field cannot hide the rest of a payload.

var jsonNull = []byte("null")

// jsonString accepts a JSON string; any other value decodes to "".
type jsonString string

func (s *jsonString) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		*s = ""
		return nil
	}
	*s = jsonString(v)
	return nil
}

// jsonCount accepts any JSON number, integral or not. Fractions truncate.
type jsonCount struct {
	n   int
	set bool
}

func (c *jsonCount) UnmarshalJSON(b []byte) error {
	*c = jsonCount{}
	if bytes.Equal(bytes.TrimSpace(b), jsonNull) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}
	*c = jsonCount{n: int(f), set: true}
	return nil
}

// object holds T when the value is a JSON object that decodes into it.
type object[T any] struct {
	v *T
}

func (o *object[T]) UnmarshalJSON(b []byte) error {
	o.v = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	o.v = &v
	return nil
}

// list holds the elements of a JSON array. An element that does not decode
// into T is kept as the zero T, so len matches the array.
type list[T any] struct {
	items []T
	set   bool
}

func (l *list[T]) UnmarshalJSON(b []byte) error {
	*l = list[T]{}
	items, ok := decodeList[T](b)
	if !ok {
		return nil
	}
	*l = list[T]{items: items, set: true}
	return nil
}

func decodeList[T any](b []byte) ([]T, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '[' {
		return nil, false
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, false
	}
	items := make([]T, len(raw))
	for i, r := range raw {
		_ = json.Unmarshal(r, &items[i])
	}
	return items, true
}
