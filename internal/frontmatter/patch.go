package frontmatter

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Patch is a partial update of a Record. A key appears in at most one of
// Set and Remove; Tags and Categories, when non-nil, replace the whole set.
type Patch struct {
	Set        map[string]Value `json:"set,omitempty"`
	Remove     []string         `json:"remove,omitempty"`
	Tags       *[]string        `json:"tags,omitempty"`
	Categories *[]string        `json:"categories,omitempty"`
}

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.Remove) == 0 && p.Tags == nil && p.Categories == nil
}

// Validate rejects blank or reserved keys and blank tag/category names.
func (p Patch) Validate() error {
	for k := range p.Set {
		if err := validateKey(k); err != nil {
			return err
		}
	}
	for _, k := range p.Remove {
		if err := validateKey(k); err != nil {
			return err
		}
	}
	if p.Tags != nil {
		if _, err := normalizeSet(*p.Tags); err != nil {
			return fmt.Errorf("tags: %w", err)
		}
	}
	if p.Categories != nil {
		if _, err := normalizeSet(*p.Categories); err != nil {
			return fmt.Errorf("categories: %w", err)
		}
	}
	return nil
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if IsReserved(key) {
		return fmt.Errorf("%w: %s", ErrReservedKey, key)
	}
	return nil
}

// Merge returns p followed by next: for every key touched by next, next wins.
func (p Patch) Merge(next Patch) Patch {
	out := p.Clone()
	for k, v := range next.Set {
		k = strings.TrimSpace(k)
		if out.Set == nil {
			out.Set = make(map[string]Value)
		}
		out.Set[k] = v
		out.Remove = without(out.Remove, k)
	}
	for _, k := range next.Remove {
		k = strings.TrimSpace(k)
		delete(out.Set, k)
		if !slices.Contains(out.Remove, k) {
			out.Remove = append(out.Remove, k)
		}
	}
	if next.Tags != nil {
		out.Tags = cloneNames(next.Tags)
	}
	if next.Categories != nil {
		out.Categories = cloneNames(next.Categories)
	}
	return out
}

// Without drops from p every key and set that other also touches.
func (p Patch) Without(other Patch) Patch {
	out := p.Clone()
	for k := range other.Set {
		delete(out.Set, strings.TrimSpace(k))
		out.Remove = without(out.Remove, strings.TrimSpace(k))
	}
	for _, k := range other.Remove {
		delete(out.Set, strings.TrimSpace(k))
		out.Remove = without(out.Remove, strings.TrimSpace(k))
	}
	if other.Tags != nil {
		out.Tags = nil
	}
	if other.Categories != nil {
		out.Categories = nil
	}
	if len(out.Set) == 0 {
		out.Set = nil
	}
	if len(out.Remove) == 0 {
		out.Remove = nil
	}
	return out
}

// Apply validates p and then applies it to r. On error r is unchanged.
// New keys are appended in lexical order so the result is deterministic.
func (p Patch) Apply(r *Record) error {
	if err := p.Validate(); err != nil {
		return err
	}
	keys := make([]string, 0, len(p.Set))
	for k := range p.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.set(strings.TrimSpace(k), p.Set[k])
	}
	for _, k := range p.Remove {
		r.RemoveField(k)
	}
	if p.Tags != nil {
		_ = r.SetTags(*p.Tags)
	}
	if p.Categories != nil {
		_ = r.SetCategories(*p.Categories)
	}
	return nil
}

// Clone returns a copy that shares no slices or maps with p.
func (p Patch) Clone() Patch {
	out := Patch{
		Tags:       cloneNames(p.Tags),
		Categories: cloneNames(p.Categories),
	}
	if len(p.Set) > 0 {
		out.Set = make(map[string]Value, len(p.Set))
		for k, v := range p.Set {
			out.Set[k] = v
		}
	}
	if len(p.Remove) > 0 {
		out.Remove = append([]string{}, p.Remove...)
	}
	return out
}

// Diff returns the patch that turns base into target.
func Diff(base, target *Record) Patch {
	var p Patch
	for _, f := range target.Fields() {
		if old, ok := base.Get(f.Key); ok && old.Equal(f.Value) {
			continue
		}
		if p.Set == nil {
			p.Set = make(map[string]Value)
		}
		p.Set[f.Key] = f.Value
	}
	for _, k := range base.Keys() {
		if _, ok := target.Get(k); !ok {
			p.Remove = append(p.Remove, k)
		}
	}
	if !slices.Equal(base.Tags(), target.Tags()) {
		tags := target.Tags()
		p.Tags = &tags
	}
	if !slices.Equal(base.Categories(), target.Categories()) {
		cats := target.Categories()
		p.Categories = &cats
	}
	return p
}

func cloneNames(names *[]string) *[]string {
	if names == nil {
		return nil
	}
	out := append([]string{}, (*names)...)
	return &out
}

func without(keys []string, key string) []string {
	i := slices.Index(keys, key)
	if i < 0 {
		return keys
	}
	return append(keys[:i:i], keys[i+1:]...)
}
