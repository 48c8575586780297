// Package storage defines the content-tree file-system abstraction.
package storage

import "time"

// FileInfo describes one Markdown file under the content root.
type FileInfo struct {
	Path     string
	Checksum string
	Size     int64
	ModTime  time.Time
}

// Provider is the interface for content file operations. All paths are
// relative to the content root; missing files yield errors wrapping
// os.ErrNotExist.
type Provider interface {
	// List returns every .md file under dir. A missing dir yields no files.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Stat returns metadata for the file at path.
	Stat(path string) (FileInfo, error)
	// Exists reports whether a file is present at path.
	Exists(path string) (bool, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, replacing any file at newPath.
	Move(oldPath, newPath string) error
}
