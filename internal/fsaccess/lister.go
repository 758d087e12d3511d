// Package fsaccess lists directory contents for the walkers.
//
// A Lister exposes the three operations the traversal needs: resolving a
// root path, listing the immediate subdirectories of a directory, and
// listing the immediate files of a directory whose names match a pattern.
// Listing failures are returned as *AccessError values so callers can record
// them and keep walking.
package fsaccess

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/harrison/treewalk/internal/models"
)

// MatchAll is the pattern used when none is given.
const MatchAll = "*"

// Lister is the filesystem collaborator used by the walkers.
type Lister interface {
	// Resolve turns a path into a directory reference.
	Resolve(path string) (models.DirectoryRef, error)
	// ListSubdirectories returns the immediate subdirectories of dir in listing order.
	ListSubdirectories(dir models.DirectoryRef) ([]models.DirectoryRef, error)
	// ListFiles returns the immediate files of dir whose names match pattern.
	ListFiles(dir models.DirectoryRef, pattern string) ([]models.FileRef, error)
}

// DirectoryLister is implemented by listers that produce the files and the
// subdirectories of a directory from one read. The walkers prefer it over
// separate ListFiles and ListSubdirectories calls.
type DirectoryLister interface {
	ListDirectory(dir models.DirectoryRef, pattern string) ([]models.FileRef, []models.DirectoryRef, error)
}

// AccessError reports that the contents of a directory could not be listed.
type AccessError struct {
	Path string
	Op   string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// ErrNotDirectory is returned by Resolve when the path exists but is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// ValidatePattern checks that pattern is a well-formed name pattern.
func ValidatePattern(pattern string) error {
	if _, err := filepath.Match(normalizePattern(pattern), ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return nil
}

func normalizePattern(pattern string) string {
	if pattern == "" {
		return MatchAll
	}
	return pattern
}

// BillyLister implements Lister on top of a go-billy filesystem.
type BillyLister struct {
	fs       billy.Filesystem
	absolute bool
}

// NewBillyLister wraps an existing billy filesystem. Paths are used as given.
func NewBillyLister(fsys billy.Filesystem) *BillyLister {
	return &BillyLister{fs: fsys}
}

// NewOSLister lists the native filesystem. Relative paths passed to Resolve
// are made absolute against the working directory.
func NewOSLister() *BillyLister {
	return &BillyLister{
		fs:       osfs.New("/"),
		absolute: true,
	}
}

// NewMemLister returns a lister over an empty in-memory filesystem.
func NewMemLister() *BillyLister {
	return &BillyLister{fs: memfs.New()}
}

// Filesystem returns the underlying billy filesystem.
func (l *BillyLister) Filesystem() billy.Filesystem {
	return l.fs
}

// Resolve implements Lister.Resolve.
func (l *BillyLister) Resolve(path string) (models.DirectoryRef, error) {
	if path == "" {
		return models.DirectoryRef{}, fmt.Errorf("directory path is empty")
	}

	if l.absolute {
		abs, err := filepath.Abs(path)
		if err != nil {
			return models.DirectoryRef{}, fmt.Errorf("resolve %q: %w", path, err)
		}
		path = abs
	}
	path = filepath.Clean(path)

	info, err := l.fs.Stat(path)
	if err != nil {
		return models.DirectoryRef{}, fmt.Errorf("stat %q: %w", path, err)
	}
	if !info.IsDir() {
		return models.DirectoryRef{}, fmt.Errorf("resolve %q: %w", path, ErrNotDirectory)
	}

	return models.DirectoryRef{
		Path: path,
		Name: filepath.Base(path),
		Mode: info.Mode(),
	}, nil
}

// ListSubdirectories implements Lister.ListSubdirectories.
// Symbolic links are not followed.
func (l *BillyLister) ListSubdirectories(dir models.DirectoryRef) ([]models.DirectoryRef, error) {
	entries, err := l.readDir(dir, "list subdirectories")
	if err != nil {
		return nil, err
	}
	return l.subdirectories(dir, entries), nil
}

// ListFiles implements Lister.ListFiles. Only regular files are matched.
func (l *BillyLister) ListFiles(dir models.DirectoryRef, pattern string) ([]models.FileRef, error) {
	entries, err := l.readDir(dir, "list files")
	if err != nil {
		return nil, err
	}
	return l.files(dir, entries, normalizePattern(pattern))
}

// ListDirectory implements DirectoryLister with a single read of dir.
func (l *BillyLister) ListDirectory(dir models.DirectoryRef, pattern string) ([]models.FileRef, []models.DirectoryRef, error) {
	entries, err := l.readDir(dir, "list directory")
	if err != nil {
		return nil, nil, err
	}
	files, err := l.files(dir, entries, normalizePattern(pattern))
	if err != nil {
		return nil, nil, err
	}
	return files, l.subdirectories(dir, entries), nil
}

func (l *BillyLister) subdirectories(dir models.DirectoryRef, entries []os.FileInfo) []models.DirectoryRef {
	dirs := make([]models.DirectoryRef, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || entry.Mode()&os.ModeSymlink != 0 {
			continue
		}
		dirs = append(dirs, models.DirectoryRef{
			Path: l.fs.Join(dir.Path, entry.Name()),
			Name: entry.Name(),
			Mode: entry.Mode(),
		})
	}
	return dirs
}

func (l *BillyLister) files(dir models.DirectoryRef, entries []os.FileInfo, pattern string) ([]models.FileRef, error) {
	files := make([]models.FileRef, 0, len(entries))
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		ok, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if !ok {
			continue
		}
		files = append(files, models.FileRef{
			Path: l.fs.Join(dir.Path, entry.Name()),
			Name: entry.Name(),
			Size: entry.Size(),
			Mode: entry.Mode(),
		})
	}
	return files, nil
}

func (l *BillyLister) readDir(dir models.DirectoryRef, op string) ([]os.FileInfo, error) {
	entries, err := l.fs.ReadDir(dir.Path)
	if err != nil {
		return nil, &AccessError{Path: dir.Path, Op: op, Err: err}
	}
	return entries, nil
}
