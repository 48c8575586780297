package models

import (
	"github.com/starford/folio/internal/frontmatter"
)

// DocumentPatch is a partial update of a document. Nil fields are untouched.
type DocumentPatch struct {
	Title *string            `json:"title,omitempty"`
	Body  *string            `json:"body,omitempty"`
	Slug  *string            `json:"slug,omitempty"`
	Meta  *frontmatter.Patch `json:"meta,omitempty"`
}

// IsEmpty reports whether p changes nothing.
func (p DocumentPatch) IsEmpty() bool {
	return p.Title == nil && p.Body == nil && p.Slug == nil && (p.Meta == nil || p.Meta.IsEmpty())
}

// Merge returns p overlaid with next; next wins on every field it sets.
func (p DocumentPatch) Merge(next DocumentPatch) DocumentPatch {
	out := p.Clone()
	if next.Title != nil {
		out.Title = ptr(*next.Title)
	}
	if next.Body != nil {
		out.Body = ptr(*next.Body)
	}
	if next.Slug != nil {
		out.Slug = ptr(*next.Slug)
	}
	if next.Meta != nil {
		var base frontmatter.Patch
		if out.Meta != nil {
			base = *out.Meta
		}
		merged := base.Merge(*next.Meta)
		out.Meta = &merged
	}
	return out
}

// Without drops every field that other also sets.
func (p DocumentPatch) Without(other DocumentPatch) DocumentPatch {
	out := p.Clone()
	if other.Title != nil {
		out.Title = nil
	}
	if other.Body != nil {
		out.Body = nil
	}
	if other.Slug != nil {
		out.Slug = nil
	}
	if out.Meta != nil && other.Meta != nil {
		rest := out.Meta.Without(*other.Meta)
		out.Meta = &rest
	}
	if out.Meta != nil && out.Meta.IsEmpty() {
		out.Meta = nil
	}
	return out
}

// Clone returns a copy that shares nothing with p.
func (p DocumentPatch) Clone() DocumentPatch {
	var out DocumentPatch
	if p.Title != nil {
		out.Title = ptr(*p.Title)
	}
	if p.Body != nil {
		out.Body = ptr(*p.Body)
	}
	if p.Slug != nil {
		out.Slug = ptr(*p.Slug)
	}
	if p.Meta != nil {
		m := p.Meta.Clone()
		out.Meta = &m
	}
	return out
}

// Fields lists the touched field names, for logging.
func (p DocumentPatch) Fields() []string {
	var out []string
	if p.Title != nil {
		out = append(out, "title")
	}
	if p.Body != nil {
		out = append(out, "body")
	}
	if p.Slug != nil {
		out = append(out, "slug")
	}
	if p.Meta != nil && !p.Meta.IsEmpty() {
		out = append(out, "meta")
	}
	return out
}

// Validate checks the metadata part of the patch.
func (p DocumentPatch) Validate() error {
	if p.Meta == nil {
		return nil
	}
	return p.Meta.Validate()
}

// ApplyTo applies p to d in memory. The slug change also updates the
// identifier; the path is left for storage to decide.
func (p DocumentPatch) ApplyTo(d *Document) error {
	if p.Meta != nil {
		meta := d.Meta.Clone()
		if err := p.Meta.Apply(meta); err != nil {
			return err
		}
		d.Meta = meta
	}
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Body != nil {
		d.Body = *p.Body
	}
	if p.Slug != nil {
		d.Slug = *p.Slug
		d.ID = DocumentID(d.Type, d.Slug)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
