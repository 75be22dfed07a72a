// Package storage provides rooted file access over an afero file system.
package storage

import (
	"io/fs"

	"github.com/starford/notepub/internal/models"
)

// Provider is the interface for rooted file operations.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// EnsureRoot creates the root directory if it is missing.
	EnsureRoot() error
	// IsDir reports whether rel exists and is a directory.
	IsDir(rel string) (bool, error)
	// List returns metadata for every file under dir whose name ends with ext.
	// An empty ext matches every file.
	List(dir, ext string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at rel.
	Read(rel string) ([]byte, error)
	// Write atomically writes content to rel, replacing any existing file.
	Write(rel string, content []byte) error
	// WriteNew writes content to rel and fails with fs.ErrExist if rel exists.
	WriteNew(rel string, content []byte) error
}

var _ Provider = (*FS)(nil)

// ErrExist is returned by WriteNew when the target already exists.
var ErrExist = fs.ErrExist
