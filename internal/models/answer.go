package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Answer is a submitted or correct answer. Scalars (strings, numbers, booleans) are
// held as a single string value; lists keep IsList so they round-trip as JSON arrays.
type Answer struct {
	Values []string
	IsList bool
}

// TextAnswer builds a scalar answer
func TextAnswer(value string) Answer {
	return Answer{Values: []string{value}}
}

// ListAnswer builds a list answer
func ListAnswer(values ...string) Answer {
	if values == nil {
		values = []string{}
	}
	return Answer{Values: values, IsList: true}
}

// IsEmpty reports whether no value was given
func (a Answer) IsEmpty() bool {
	for _, v := range a.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Scalar returns the single value of the answer, or "" when empty.
// A one-element list yields that element.
func (a Answer) Scalar() string {
	if len(a.Values) == 0 {
		return ""
	}
	return a.Values[0]
}

// AsList returns the answer coerced to a list answer
func (a Answer) AsList() Answer {
	values := make([]string, 0, len(a.Values))
	for _, v := range a.Values {
		if v != "" || a.IsList {
			values = append(values, v)
		}
	}
	return Answer{Values: values, IsList: true}
}

// Set returns the distinct values of the answer
func (a Answer) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(a.Values))
	for _, v := range a.Values {
		set[v] = struct{}{}
	}
	return set
}

// String renders the answer for display: list values are sorted and comma separated
func (a Answer) String() string {
	if !a.IsList {
		return a.Scalar()
	}
	values := append([]string(nil), a.Values...)
	sort.Strings(values)
	return strings.Join(values, ", ")
}

// MarshalJSON writes lists as arrays, scalars as strings and empty scalars as null
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsList {
		values := a.Values
		if values == nil {
			values = []string{}
		}
		return json.Marshal(values)
	}
	if len(a.Values) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(a.Values[0])
}

// UnmarshalJSON accepts a string, number, boolean, array of those, or null
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Answer{}
		return nil
	}

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		values := make([]string, 0, len(raw))
		for _, item := range raw {
			v, ok := scalarString(item)
			if !ok {
				continue
			}
			values = append(values, v)
		}
		*a = Answer{Values: values, IsList: true}
		return nil
	}

	v, ok := scalarString(data)
	if !ok {
		// objects carry no usable answer
		*a = Answer{}
		return nil
	}
	*a = Answer{Values: []string{v}}
	return nil
}

// scalarString converts a JSON scalar into its string form
func scalarString(data json.RawMessage) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", false
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		return s, true
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	case 'n':
		return "", false
	case '{', '[':
		return "", false
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return "", false
		}
		return n.String(), true
	}
}

// StringList is a list of labels (options, tags) that tolerates loosely typed JSON:
// a single string becomes a one-element list, scalars are stringified, anything else is empty.
type StringList []string

// UnmarshalJSON implements the lenient decoding described on StringList
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(StringList, 0, len(raw))
		for _, item := range raw {
			if v, ok := scalarString(item); ok {
				out = append(out, v)
			}
		}
		*l = out
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = StringList{}
		} else {
			*l = StringList{s}
		}
	default:
		*l = StringList{}
	}
	return nil
}

// MarshalJSON always writes an array, never null
func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Contains reports whether value is in the list
func (l StringList) Contains(value string) bool {
	for _, v := range l {
		if v == value {
			return true
		}
	}
	return false
}
