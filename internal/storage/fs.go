package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/starford/notepub/internal/models"
)

// FS implements Provider on top of an afero.Fs.
type FS struct {
	fs   afero.Fs
	root string // absolute path
}

// NewFS creates a provider rooted at root. The root does not have to exist yet;
// writes create it on demand.
func NewFS(fsys afero.Fs, root string) (*FS, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	return &FS{fs: fsys, root: abs}, nil
}

// NewOsFS creates a provider backed by the operating system file system.
func NewOsFS(root string) (*FS, error) {
	return NewFS(afero.NewOsFs(), root)
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.root }

// EnsureRoot creates the root directory (and parents) if missing.
func (f *FS) EnsureRoot() error {
	if err := f.fs.MkdirAll(f.root, 0o755); err != nil {
		return fmt.Errorf("storage: create root %s: %w", f.root, err)
	}
	return nil
}

// safePath resolves rel against the root and rejects results that escape it.
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" || rel == "." {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return abs, nil
}

// IsDir reports whether rel is an existing directory.
func (f *FS) IsDir(rel string) (bool, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return false, err
	}
	ok, err := afero.DirExists(f.fs, abs)
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", rel, err)
	}
	return ok, nil
}

// List walks dir and returns metadata for matching files, sorted by path.
// Temporary files left behind by Write are ignored.
func (f *FS) List(dir, ext string) ([]models.FileMeta, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.FileMeta
	err = afero.Walk(f.fs, base, func(p string, info fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), tmpPrefix) {
			return nil
		}
		if ext != "" && !strings.HasSuffix(info.Name(), ext) {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		out = append(out, models.FileMeta{
			Path:      rel,
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read returns the raw bytes of a file.
func (f *FS) Read(rel string) ([]byte, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(f.fs, abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

const tmpPrefix = ".notepub-tmp-"

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(rel string, content []byte) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := afero.TempFile(f.fs, dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := f.fs.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// WriteNew creates rel exclusively. An existing file is never touched.
func (f *FS) WriteNew(rel string, content []byte) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	file, err := f.fs.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("storage: %s: %w", rel, ErrExist)
		}
		return fmt.Errorf("storage: create %s: %w", rel, err)
	}
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		return fmt.Errorf("storage: write %s: %w", rel, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("storage: fsync %s: %w", rel, err)
	}
	return file.Close()
}
