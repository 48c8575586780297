// Package layout maps documents onto the content source tree.
//
// Published posts live in PostsDir, drafts in DraftsDir, pages in PagesDir
// and discarded files in RecycleDir, each as "<slug>.md".
package layout

import (
	"errors"
	"fmt"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-slug"

	"github.com/starford/folio/internal/models"
)

const ext = ".md"

// ErrInvalidSlug is returned for names that cannot be used as a file stem.
var ErrInvalidSlug = errors.New("layout: invalid slug")

// Layout holds the directories, relative to the content root.
type Layout struct {
	PostsDir   string `yaml:"posts_dir"`
	DraftsDir  string `yaml:"drafts_dir"`
	PagesDir   string `yaml:"pages_dir"`
	RecycleDir string `yaml:"recycle_dir"`
}

// Default returns the Hexo-style layout.
func Default() Layout {
	return Layout{
		PostsDir:   "_posts",
		DraftsDir:  "_drafts",
		PagesDir:   "_pages",
		RecycleDir: "_discarded",
	}
}

// Validate implements validation.Validatable.
func (l Layout) Validate() error {
	dirRule := validation.By(func(v any) error {
		s, _ := v.(string)
		if path.IsAbs(s) || strings.HasPrefix(path.Clean(s), "..") || strings.Contains(s, "\\") {
			return errors.New("must be a relative directory inside the content root")
		}
		return nil
	})
	if err := validation.ValidateStruct(&l,
		validation.Field(&l.PostsDir, validation.Required, dirRule),
		validation.Field(&l.DraftsDir, validation.Required, dirRule),
		validation.Field(&l.PagesDir, validation.Required, dirRule),
		validation.Field(&l.RecycleDir, validation.Required, dirRule),
	); err != nil {
		return err
	}
	seen := map[string]string{}
	for name, dir := range map[string]string{
		"posts_dir": l.PostsDir, "drafts_dir": l.DraftsDir,
		"pages_dir": l.PagesDir, "recycle_dir": l.RecycleDir,
	} {
		clean := path.Clean(dir)
		if other, dup := seen[clean]; dup {
			return fmt.Errorf("%s and %s must differ", other, name)
		}
		seen[clean] = name
	}
	return nil
}

// Path returns the file path of a document in the given state.
func (l Layout) Path(t models.DocType, state models.State, slug string) string {
	switch {
	case t == models.TypePage:
		return path.Join(l.PagesDir, slug+ext)
	case state == models.StateDraft:
		return path.Join(l.DraftsDir, slug+ext)
	}
	return path.Join(l.PostsDir, slug+ext)
}

// Candidates lists every path a document with this type and slug may occupy.
func (l Layout) Candidates(t models.DocType, slug string) []string {
	if t == models.TypePage {
		return []string{l.Path(t, models.StateActive, slug)}
	}
	return []string{
		l.Path(t, models.StatePublished, slug),
		l.Path(t, models.StateDraft, slug),
	}
}

// RecyclePath is where the file of a discarded document is kept.
func (l Layout) RecyclePath(entryID string) string {
	return path.Join(l.RecycleDir, entryID+ext)
}

// Location is a parsed document path.
type Location struct {
	Type    models.DocType
	Slug    string
	IsDraft bool
}

// ID returns the document identifier for loc.
func (loc Location) ID() string {
	return models.DocumentID(loc.Type, loc.Slug)
}

// State returns the lifecycle state implied by the directory.
func (loc Location) State() models.State {
	switch {
	case loc.Type == models.TypePage:
		return models.StateActive
	case loc.IsDraft:
		return models.StateDraft
	}
	return models.StatePublished
}

// Resolve maps a relative file path back to a document location. Paths
// outside the content directories, nested paths and non-Markdown files do
// not resolve.
func (l Layout) Resolve(rel string) (Location, bool) {
	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	dir, file := path.Split(rel)
	dir = strings.TrimSuffix(dir, "/")
	if !strings.HasSuffix(file, ext) || strings.HasPrefix(file, ".") {
		return Location{}, false
	}
	stem := strings.TrimSuffix(file, ext)
	if stem == "" {
		return Location{}, false
	}
	switch dir {
	case path.Clean(l.PostsDir):
		return Location{Type: models.TypePost, Slug: stem}, true
	case path.Clean(l.DraftsDir):
		return Location{Type: models.TypePost, Slug: stem, IsDraft: true}, true
	case path.Clean(l.PagesDir):
		return Location{Type: models.TypePage, Slug: stem}, true
	}
	return Location{}, false
}

// ContentDirs returns the directories that hold active documents.
func (l Layout) ContentDirs() []string {
	return []string{l.PostsDir, l.DraftsDir, l.PagesDir}
}

// IsRecycled reports whether rel is inside the recycle directory.
func (l Layout) IsRecycled(rel string) bool {
	rel = path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	dir := path.Clean(l.RecycleDir)
	return rel == dir || strings.HasPrefix(rel, dir+"/")
}

// DeriveSlug turns a title into a slug. Titles that normalise to nothing
// (for example only punctuation) yield ErrInvalidSlug.
func DeriveSlug(title string) (string, error) {
	s, err := slug.Normalize(title)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSlug, err)
	}
	if s == "" {
		return "", ErrInvalidSlug
	}
	return s, nil
}

// ParseName validates a caller-supplied file name or slug. A trailing
// ".md" is optional; directories are not allowed.
func ParseName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ext)
	if name == "" || strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSlug, name)
	}
	if !slug.IsValid(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSlug, name)
	}
	return name, nil
}

// WithSuffix returns the n-th disambiguated form of slug: "slug-2", "slug-3", ...
func WithSuffix(slug string, n int) string {
	if n < 2 {
		return slug
	}
	return fmt.Sprintf("%s-%d", slug, n)
}
