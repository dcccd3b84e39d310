package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Value is one answer: a single string for text, email, number and select
// fields, or an insertion-ordered set of strings for checkbox fields.
type Value struct {
	text  string
	items []string
	list  bool
}

// Text returns a single-string answer.
func Text(s string) Value {
	return Value{text: s}
}

// List returns a multi-value answer, dropping duplicates while keeping the
// first occurrence.
func List(items ...string) Value {
	v := Value{list: true, items: []string{}}
	for _, it := range items {
		v = v.With(it)
	}
	return v
}

// IsList reports whether the value holds a set of choices.
func (v Value) IsList() bool { return v.list }

// Items returns a copy of the choices of a list value.
func (v Value) Items() []string { return slices.Clone(v.items) }

// Contains reports whether a list value holds item.
func (v Value) Contains(item string) bool { return slices.Contains(v.items, item) }

// String returns the text of a single value, or the choices joined with ", ".
func (v Value) String() string {
	if v.list {
		return strings.Join(v.items, ", ")
	}
	return v.text
}

// IsBlank reports whether the answer counts as missing for a required field.
func (v Value) IsBlank() bool {
	if v.list {
		return len(v.items) == 0
	}
	return strings.TrimSpace(v.text) == ""
}

// With returns the list value with item appended if absent.
func (v Value) With(item string) Value {
	if v.Contains(item) {
		return v
	}
	return Value{list: true, items: append(slices.Clone(v.items), item)}
}

// Without returns the list value with item removed.
func (v Value) Without(item string) Value {
	out := make([]string, 0, len(v.items))
	for _, it := range v.items {
		if it != item {
			out = append(out, it)
		}
	}
	return Value{list: true, items: out}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON implements json.Unmarshaler. Numbers and booleans are kept
// as their literal text.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*v = Value{}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Text(s)
	case b[0] == '[':
		var items []string
		if err := json.Unmarshal(b, &items); err != nil {
			return fmt.Errorf("answer list: %w", err)
		}
		*v = List(items...)
	case b[0] == '{':
		return fmt.Errorf("answer: objects are not supported")
	default:
		*v = Text(string(b))
	}
	return nil
}

// Answers maps a field name to its answer.
type Answers map[string]Value

// Get returns the answer for a field and whether one was recorded.
func (a Answers) Get(name string) (Value, bool) {
	v, ok := a[name]
	return v, ok
}

// Email returns the registrant's email, read from the EMAIL field with the
// lower-case spelling as fallback.
func (a Answers) Email() string {
	if v, ok := a["EMAIL"]; ok && !v.IsBlank() {
		return strings.TrimSpace(v.String())
	}
	return strings.TrimSpace(a["email"].String())
}

// Name returns the registrant's name if the form asked for one.
func (a Answers) Name() string {
	if v, ok := a["NAME"]; ok {
		return v.String()
	}
	return a["name"].String()
}

// Role returns the active role selection.
func (a Answers) Role() string {
	return a[RoleFieldName].String()
}

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		if v.list {
			v.items = slices.Clone(v.items)
		}
		out[k] = v
	}
	return out
}

// SortedKeys returns the field names in lexical order.
func (a Answers) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// contactKeywords mark a field as a phone number by name.
var contactKeywords = []string{"contact", "mobile", "phone", "number"}

// IsContactField reports whether a field name looks like a phone number
// field.
func IsContactField(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range contactKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Contact returns the first answer whose field name looks like a phone
// number, in the given field order, or "N/A" when none is recorded.
func (a Answers) Contact(order []string) string {
	for _, name := range order {
		if IsContactField(name) {
			if v, ok := a[name]; ok {
				return v.String()
			}
		}
	}
	for _, name := range a.SortedKeys() {
		if IsContactField(name) {
			return a[name].String()
		}
	}
	return "N/A"
}
