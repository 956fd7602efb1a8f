// Package storage gives the inbox importer rooted, traversal-safe access to
// a directory of Markdown files.
package storage

import "time"

// FileInfo describes one Markdown file in the inbox. Path uses forward slashes.
type FileInfo struct {
	Path     string
	Checksum string
	ModTime  time.Time
}

// Provider is the file access the importer needs. All paths are relative
// to the provider's root.
type Provider interface {
	// List returns every .md file under dir, oldest first, skipping hidden
	// directories and the named subdirectories of root.
	List(dir string, skip ...string) ([]FileInfo, error)
	Read(path string) ([]byte, error)
	// Write atomically replaces path.
	Write(path string, content []byte) error
	// Move renames oldPath, picking a free name near newPath when it is
	// taken, and returns the destination used.
	Move(oldPath, newPath string) (string, error)
}
