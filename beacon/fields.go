package beacon

import (
	"bytes"
	"encoding/json"
)

// Field is one named value in a serialized record.
type Field struct {
	Name  string
	Value interface{}
}

// Fields is an ordered set of named values. It marshals to a JSON object
// with keys in insertion order, so the same record state always
// serializes identically.
type Fields []Field

func (f Fields) Add(name string, value interface{}) Fields {
	return append(f, Field{name, value})
}

// Get returns the value of the named field.
func (f Fields) Get(name string) (interface{}, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Names lists field names in order.
func (f Fields) Names() []string {
	ret := make([]string, len(f))
	for i, field := range f {
		ret[i] = field.Name
	}
	return ret
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Flatten returns a plain map, nested Fields joined with '_'
// (eg uid_power). Numbers are widened to float64.
func (f Fields) Flatten() map[string]interface{} {
	ret := map[string]interface{}{}
	f.flatten("", ret)
	return ret
}

func (f Fields) flatten(prefix string, into map[string]interface{}) {
	for _, field := range f {
		name := prefix + field.Name
		switch v := field.Value.(type) {
		case Fields:
			v.flatten(name+"_", into)
		default:
			into[name] = widen(v)
		}
	}
}

func widen(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}

// opt appends the field only when v was decoded.
func opt[T any](f Fields, name string, v *T) Fields {
	if v == nil {
		return f
	}
	return append(f, Field{name, *v})
}
