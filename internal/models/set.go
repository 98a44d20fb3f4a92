package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StringSet is an insertion-ordered set of strings. Numeric JSON elements
// are normalized to their canonical string form on decode. Team membership
// additionally passes through IDs before it is stored.
type StringSet []string

// NewStringSet builds a set from items, trimming whitespace and dropping
// empties and duplicates while keeping first-seen order.
func NewStringSet(items ...string) StringSet {
	set := make(StringSet, 0, len(items))
	for _, item := range items {
		set = set.Add(item)
	}
	return set
}

// SplitStringSet splits a comma-separated list into a set.
func SplitStringSet(s string) StringSet {
	if strings.TrimSpace(s) == "" {
		return StringSet{}
	}
	return NewStringSet(strings.Split(s, ",")...)
}

// Contains reports whether v is a member.
func (s StringSet) Contains(v string) bool {
	v = strings.TrimSpace(v)
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// Add returns s with v appended unless it is empty or already present.
func (s StringSet) Add(v string) StringSet {
	v = strings.TrimSpace(v)
	if v == "" || s.Contains(v) {
		return s
	}
	return append(s, v)
}

// Union returns a new set holding the members of s followed by the new members of other.
func (s StringSet) Union(other ...string) StringSet {
	out := NewStringSet(s...)
	for _, v := range other {
		out = out.Add(v)
	}
	return out
}

// MarshalJSON always emits an array, never null.
func (s StringSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON accepts an array whose elements are strings or numbers.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = StringSet{}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("expected an array: %w", err)
	}

	set := make(StringSet, 0, len(raw))
	for _, elem := range raw {
		v, err := normalizeElement(elem)
		if err != nil {
			return err
		}
		set = set.Add(v)
	}
	*s = set
	return nil
}

// Value implements driver.Valuer; sets are stored as JSON arrays.
func (s StringSet) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *StringSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = StringSet{}
		return nil
	case string:
		if v == "" {
			*s = StringSet{}
			return nil
		}
		return s.UnmarshalJSON([]byte(v))
	case []byte:
		if len(v) == 0 {
			*s = StringSet{}
			return nil
		}
		return s.UnmarshalJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into StringSet", src)
	}
}

// IDs returns s with every element in canonical user id form: a positive
// base-10 integer without sign or leading zeros. Any other element is an
// error, so "07" becomes "7" while "7.0" and "alice" are rejected.
func (s StringSet) IDs() (StringSet, error) {
	out := make(StringSet, 0, len(s))
	for _, v := range s {
		id, err := ParseID(v)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%q is not a user id", v)
		}
		out = out.Add(FormatID(id))
	}
	return out, nil
}

func normalizeElement(elem json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(elem, &str); err == nil {
		return strings.TrimSpace(str), nil
	}

	var num json.Number
	if err := json.Unmarshal(elem, &num); err != nil {
		return "", fmt.Errorf("set elements must be strings or numbers, got %s", string(elem))
	}
	if i, err := num.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	f, err := num.Float64()
	if err != nil {
		return "", fmt.Errorf("invalid number %s", num)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return num.String(), nil
}
