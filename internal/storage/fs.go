package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/neuralos/internal/checksum"
)

// MaxFileSize bounds how much of a single inbox file is read.
const MaxFileSize = 4 << 20

// ErrTooLarge is returned by Read for files above MaxFileSize.
var ErrTooLarge = errors.New("storage: file too large")

var _ Provider = (*FS)(nil)

// FS is a Provider over a directory on the local disk.
type FS struct {
	root string
}

// NewFS opens the existing directory root.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute inbox directory.
func (f *FS) Root() string { return f.root }

// resolve maps rel onto the root, refusing absolute paths and anything
// that climbs out of it.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, filepath.Clean(rel))
	r, err := filepath.Rel(f.root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return abs, nil
}

// List returns the .md files under dir, oldest first.
func (f *FS) List(dir string, skip ...string) ([]FileInfo, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[filepath.Join(f.root, filepath.Clean(s))] = true
	}

	var out []FileInfo
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if p != base && (hidden || skipped[p]) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || filepath.Ext(d.Name()) != ".md" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, FileInfo{
			Path:     filepath.ToSlash(rel),
			Checksum: checksum.Sum(data),
			ModTime:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.Before(out[j].ModTime)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Read returns the content of path, or ErrTooLarge past MaxFileSize.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	defer fh.Close()

	data, err := io.ReadAll(io.LimitReader(fh, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, path)
	}
	return data, nil
}

// Write replaces path with content via a synced temp file and a rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".neuralos-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	name := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(name)
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
	if err := os.Rename(name, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	committed = true
	return nil
}

// Move renames oldPath to newPath. If newPath is taken, a numeric suffix is
// added before the extension. It returns the path actually used.
func (f *FS) Move(oldPath, newPath string) (string, error) {
	src, err := f.resolve(oldPath)
	if err != nil {
		return "", err
	}
	if _, err := f.resolve(newPath); err != nil {
		return "", err
	}
	dst, err := f.freeName(newPath)
	if err != nil {
		return "", err
	}
	abs := filepath.Join(f.root, filepath.FromSlash(dst))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(src, abs); err != nil {
		return "", fmt.Errorf("storage: move: %w", err)
	}
	return dst, nil
}

func (f *FS) freeName(rel string) (string, error) {
	rel = filepath.ToSlash(filepath.Clean(rel))
	ext := filepath.Ext(rel)
	stem := strings.TrimSuffix(rel, ext)
	candidate := rel
	for i := 1; ; i++ {
		_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(candidate)))
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("storage: stat %s: %w", candidate, err)
		}
		candidate = stem + "-" + strconv.Itoa(i) + ext
	}
}
