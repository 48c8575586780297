package frontmatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Keys held as typed document attributes rather than free-form fields.
const (
	KeyTitle      = "title"
	KeyTags       = "tags"
	KeyCategories = "categories"
	KeyDate       = "date"
)

var timeLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var (
	ErrInvalidKey  = errors.New("frontmatter: key must not be blank")
	ErrReservedKey = errors.New("frontmatter: key is reserved")
	ErrInvalidName = errors.New("frontmatter: name must not be blank")
)

// IsReserved reports whether key is managed outside the free-form fields.
func IsReserved(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case KeyTitle, KeyTags, KeyCategories:
		return true
	}
	return false
}

// FieldState distinguishes a missing key from the unset and empty states.
type FieldState uint8

const (
	FieldAbsent FieldState = iota
	FieldUnset
	FieldEmpty
	FieldSet
)

func (s FieldState) String() string {
	switch s {
	case FieldAbsent:
		return "absent"
	case FieldUnset:
		return "unset"
	case FieldEmpty:
		return "empty"
	case FieldSet:
		return "set"
	}
	return "unknown"
}

// Record is the metadata of one document: ordered free-form fields plus
// tag and category sets. A Record belongs to a single document; use Clone
// when handing it across a boundary.
type Record struct {
	keys       []string
	values     map[string]Value
	tags       []string
	categories []string
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

// SetField inserts or overwrites key. The value is stored exactly as given.
func (r *Record) SetField(key string, v Value) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidKey
	}
	if IsReserved(key) {
		return fmt.Errorf("%w: %s", ErrReservedKey, key)
	}
	r.set(key, v)
	return nil
}

func (r *Record) set(key string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// RemoveField deletes key entirely and reports whether it was present.
func (r *Record) RemoveField(key string) bool {
	key = strings.TrimSpace(key)
	if _, ok := r.values[key]; !ok {
		return false
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the value under key and whether the key is present.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.values[strings.TrimSpace(key)]
	return v, ok
}

// FieldState classifies key as absent, unset, empty or set.
func (r *Record) FieldState(key string) FieldState {
	v, ok := r.Get(key)
	switch {
	case !ok:
		return FieldAbsent
	case v.IsNull():
		return FieldUnset
	case v.IsEmptyString():
		return FieldEmpty
	}
	return FieldSet
}

// Describe renders the field under key for display. A missing key reads
// as "unset".
func (r *Record) Describe(key string) string {
	v, _ := r.Get(key)
	return Describe(v)
}

// Time interprets the field under key as a timestamp. Hexo writes dates
// as "2006-01-02 15:04:05"; RFC 3339 and bare dates are accepted too.
func (r *Record) Time(key string) (time.Time, bool) {
	v, ok := r.Get(key)
	if !ok {
		return time.Time{}, false
	}
	s, ok := v.AsString()
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Keys returns the field keys in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return append([]string{}, r.keys...)
}

// Fields returns the fields in insertion order.
func (r *Record) Fields() []Field {
	if r == nil {
		return nil
	}
	out := make([]Field, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, Field{Key: k, Value: r.values[k]})
	}
	return out
}

// Len returns the number of free-form fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Tags returns the tags in display order.
func (r *Record) Tags() []string {
	if r == nil {
		return []string{}
	}
	return append([]string{}, r.tags...)
}

// Categories returns the categories in display order.
func (r *Record) Categories() []string {
	if r == nil {
		return []string{}
	}
	return append([]string{}, r.categories...)
}

// HasTag reports whether name is a tag.
func (r *Record) HasTag(name string) bool {
	return r != nil && indexOf(r.tags, strings.TrimSpace(name)) >= 0
}

// HasCategory reports whether name is a category.
func (r *Record) HasCategory(name string) bool {
	return r != nil && indexOf(r.categories, strings.TrimSpace(name)) >= 0
}

// ToggleTag adds name if absent and removes it if present. It returns
// whether the tag is present afterwards.
func (r *Record) ToggleTag(name string) (bool, error) {
	set, present, err := toggle(r.tags, name)
	if err != nil {
		return false, err
	}
	r.tags = set
	return present, nil
}

// ToggleCategory adds name if absent and removes it if present.
func (r *Record) ToggleCategory(name string) (bool, error) {
	set, present, err := toggle(r.categories, name)
	if err != nil {
		return false, err
	}
	r.categories = set
	return present, nil
}

// SetTags replaces the tag set. Duplicates collapse onto the first occurrence.
func (r *Record) SetTags(names []string) error {
	set, err := normalizeSet(names)
	if err != nil {
		return err
	}
	r.tags = set
	return nil
}

// SetCategories replaces the category set.
func (r *Record) SetCategories(names []string) error {
	set, err := normalizeSet(names)
	if err != nil {
		return err
	}
	r.categories = set
	return nil
}

// Clone returns a deep copy. Values are immutable so they are shared.
func (r *Record) Clone() *Record {
	out := NewRecord()
	if r == nil {
		return out
	}
	out.keys = append([]string{}, r.keys...)
	for k, v := range r.values {
		out.values[k] = v
	}
	out.tags = append([]string{}, r.tags...)
	out.categories = append([]string{}, r.categories...)
	return out
}

// Equal compares fields by value and tags/categories as sets.
func (r *Record) Equal(o *Record) bool {
	if r.Len() != o.Len() {
		return false
	}
	for _, f := range r.Fields() {
		other, ok := o.Get(f.Key)
		if !ok || !f.Value.Equal(other) {
			return false
		}
	}
	return sameSet(r.Tags(), o.Tags()) && sameSet(r.Categories(), o.Categories())
}

type recordJSON struct {
	FrontMatter json.RawMessage `json:"front_matter"`
	Tags        []string        `json:"tags"`
	Categories  []string        `json:"categories"`
}

// MarshalJSON implements json.Marshaler, keeping field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	fields, err := marshalFields(r.Fields())
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordJSON{
		FrontMatter: fields,
		Tags:        r.Tags(),
		Categories:  r.Categories(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := NewRecord()
	if len(bytes.TrimSpace(raw.FrontMatter)) > 0 && string(bytes.TrimSpace(raw.FrontMatter)) != "null" {
		var obj Value
		if err := obj.UnmarshalJSON(raw.FrontMatter); err != nil {
			return err
		}
		if obj.Kind() != KindObject {
			return fmt.Errorf("frontmatter: front_matter must be an object, got %s", obj.Kind())
		}
		for _, f := range obj.Fields() {
			if err := out.SetField(f.Key, f.Value); err != nil {
				return err
			}
		}
	}
	if err := out.SetTags(raw.Tags); err != nil {
		return err
	}
	if err := out.SetCategories(raw.Categories); err != nil {
		return err
	}
	*r = *out
	return nil
}

func toggle(set []string, name string) ([]string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return set, false, ErrInvalidName
	}
	if i := indexOf(set, name); i >= 0 {
		out := append([]string{}, set[:i]...)
		return append(out, set[i+1:]...), false, nil
	}
	return append(append([]string{}, set...), name), true, nil
}

func normalizeSet(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, ErrInvalidName
		}
		if indexOf(out, n) < 0 {
			out = append(out, n)
		}
	}
	return out, nil
}

func indexOf(set []string, name string) int {
	for i, s := range set {
		if s == name {
			return i
		}
	}
	return -1
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, s := range a {
		if indexOf(b, s) < 0 {
			return false
		}
	}
	return true
}
