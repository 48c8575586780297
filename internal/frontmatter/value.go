// Package frontmatter models document metadata: a typed value union, the
// per-document record with tags and categories, patches against it, and the
// YAML front matter file format.
package frontmatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// ParseKind maps a kind name to its Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "null":
		return KindNull, nil
	case "string", "":
		return KindString, nil
	case "number":
		return KindNumber, nil
	case "boolean", "bool":
		return KindBool, nil
	case "array":
		return KindArray, nil
	case "object":
		return KindObject, nil
	}
	return KindNull, fmt.Errorf("frontmatter: unknown kind %q", name)
}

// Field is one key/value pair of an object value or a record.
type Field struct {
	Key   string
	Value Value
}

// Value is an immutable front matter value. The zero Value is null.
//
// Values are only ever built through the typed constructors, so a string
// that looks like a boolean or a number stays a string.
type Value struct {
	kind   Kind
	text   string // string contents or canonical number literal
	flag   bool
	items  []Value
	fields []Field
	tag    string // original YAML tag for scalars carried verbatim as strings
}

// Null returns the null value ("key present but unset").
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Int returns an integral number value.
func Int(i int64) Value { return Value{kind: KindNumber, text: strconv.FormatInt(i, 10)} }

// Number returns a number value. Non-finite numbers have no front matter
// representation and yield null.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Timestamp returns a date value in Hexo's format. It behaves as a string
// but renders as a plain YAML timestamp.
func Timestamp(t time.Time) Value {
	return Value{kind: KindString, text: t.Format(DateLayout), tag: tagTimestamp}
}

// Array returns an array value holding a copy of items.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value{}, items...)}
}

// Object returns an object value holding a copy of fields. Later duplicates
// of a key replace earlier ones in place.
func Object(fields ...Field) Value {
	out := make([]Field, 0, len(fields))
	index := make(map[string]int, len(fields))
	for _, f := range fields {
		if i, ok := index[f.Key]; ok {
			out[i].Value = f.Value
			continue
		}
		index[f.Key] = len(out)
		out = append(out, f)
	}
	return Value{kind: KindObject, fields: out}
}

// ParseTyped builds a value from user-entered text when the caller has
// explicitly designated the field's kind.
func ParseTyped(kind Kind, text string) (Value, error) {
	switch kind {
	case KindString:
		return String(text), nil
	case KindNull:
		return Null(), nil
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(text))
		if err != nil {
			return Value{}, fmt.Errorf("frontmatter: %q is not a boolean", text)
		}
		return Bool(b), nil
	case KindNumber:
		trimmed := strings.TrimSpace(text)
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("frontmatter: %q is not a number", text)
		}
		return Number(f), nil
	}
	return Value{}, fmt.Errorf("frontmatter: cannot parse %s from text", kind)
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsEmptyString reports whether v is the empty string.
func (v Value) IsEmptyString() bool { return v.kind == KindString && v.text == "" }

// AsString returns the string contents when v is a string.
func (v Value) AsString() (string, bool) {
	return v.text, v.kind == KindString
}

// AsBool returns the boolean when v is a boolean.
func (v Value) AsBool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// AsFloat returns the number when v is a number.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	return f, err == nil
}

// AsInt returns the number when v is an integral number.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	i, err := strconv.ParseInt(v.text, 10, 64)
	return i, err == nil
}

// Items returns a copy of the elements of an array value.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return append([]Value{}, v.items...)
}

// Fields returns a copy of the fields of an object value.
func (v Value) Fields() []Field {
	if v.kind != KindObject {
		return nil
	}
	return append([]Field{}, v.fields...)
}

// Lookup returns the value stored under key in an object value.
func (v Value) Lookup(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Equal reports deep equality. Object field order is not significant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString, KindNumber:
		return v.text == o.text
	case KindBool:
		return v.flag == o.flag
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for _, f := range v.fields {
			other, ok := o.Lookup(f.Key)
			if !ok || !f.Value.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// Text is the generic string conversion of v.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString, KindNumber:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindArray:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.Text()
		}
		return strings.Join(parts, ", ")
	case KindObject:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return ""
}

// Describe renders v for tooltips: null is "unset", the empty string is
// "empty", everything else uses its generic string form. Never persisted.
func Describe(v Value) string {
	switch {
	case v.IsNull():
		return "unset"
	case v.IsEmptyString():
		return "empty"
	}
	return v.Text()
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.text)
	case KindNumber:
		return []byte(v.text), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.flag)), nil
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		return marshalFields(v.fields)
	}
	return nil, fmt.Errorf("frontmatter: cannot marshal kind %d", v.kind)
}

// UnmarshalJSON implements json.Unmarshaler. Object key order is preserved.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeJSON(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func marshalFields(fields []Field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		data, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("frontmatter: decode json: %w", err)
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return ParseTyped(KindNumber, t.String())
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeJSON(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("frontmatter: decode json: %w", err)
			}
			return Array(items...), nil
		case '{':
			var fields []Field
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, fmt.Errorf("frontmatter: decode json: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, errors.New("frontmatter: decode json: object key is not a string")
				}
				item, err := decodeJSON(dec)
				if err != nil {
					return Value{}, err
				}
				fields = append(fields, Field{Key: key, Value: item})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, fmt.Errorf("frontmatter: decode json: %w", err)
			}
			return Object(fields...), nil
		}
	}
	return Value{}, fmt.Errorf("frontmatter: decode json: unexpected token %v", tok)
}

const (
	tagNull  = "!!null"
	tagStr   = "!!str"
	tagBool  = "!!bool"
	tagInt   = "!!int"
	tagFloat = "!!float"
	tagSeq   = "!!seq"
	tagMap   = "!!map"

	tagTimestamp = "!!timestamp"
)

// DateLayout is the timestamp format Hexo writes into front matter.
const DateLayout = "2006-01-02 15:04:05"

// FromNode converts a decoded YAML node into a Value using the node's
// resolved tag. Scalars with tags outside the JSON-compatible set (for
// example timestamps) are kept verbatim as strings.
func FromNode(n *yaml.Node) (Value, error) {
	if n == nil {
		return Null(), nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return FromNode(n.Content[0])
	case yaml.AliasNode:
		return FromNode(n.Alias)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, child := range n.Content {
			item, err := FromNode(child)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Array(items...), nil
	case yaml.MappingNode:
		fields := make([]Field, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			item, err := FromNode(n.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Key: n.Content[i].Value, Value: item})
		}
		return Object(fields...), nil
	case yaml.ScalarNode:
		return scalarFromNode(n)
	}
	return Null(), nil
}

func scalarFromNode(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case tagNull:
		return Null(), nil
	case tagStr:
		return String(n.Value), nil
	case tagBool:
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("frontmatter: line %d: %w", n.Line, err)
		}
		return Bool(b), nil
	case tagInt:
		var i int64
		if err := n.Decode(&i); err == nil {
			return Int(i), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("frontmatter: line %d: %w", n.Line, err)
		}
		return Number(f), nil
	case tagFloat:
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("frontmatter: line %d: %w", n.Line, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{kind: KindString, text: n.Value, tag: tagFloat}, nil
		}
		return Number(f), nil
	}
	return Value{kind: KindString, text: n.Value, tag: n.ShortTag()}, nil
}

// Node converts v into a YAML node for rendering.
func (v Value) Node() *yaml.Node {
	switch v.kind {
	case KindString:
		tag := tagStr
		if v.tag != "" {
			tag = v.tag
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.text}
	case KindNumber:
		tag := tagFloat
		if _, err := strconv.ParseInt(v.text, 10, 64); err == nil {
			tag = tagInt
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.text}
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagBool, Value: strconv.FormatBool(v.flag)}
	case KindArray:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: tagSeq}
		for _, item := range v.items {
			n.Content = append(n.Content, item.Node())
		}
		return n
	case KindObject:
		return fieldsNode(v.fields)
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagNull, Value: "null"}
}

func fieldsNode(fields []Field) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: tagMap}
	for _, f := range fields {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: tagStr, Value: f.Key},
			f.Value.Node(),
		)
	}
	return n
}
