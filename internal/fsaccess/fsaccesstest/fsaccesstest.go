// Package fsaccesstest provides in-memory trees and fault-injecting listers
// for exercising code that depends on fsaccess.Lister.
//
// Example usage:
//
//	lister := fsaccesstest.NewTree(t, "/root", "a.txt", "sub/b.txt", "empty/")
//	denied := fsaccesstest.Deny(lister, "/root/sub")
package fsaccesstest

import (
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/util"

	"github.com/harrison/treewalk/internal/fsaccess"
	"github.com/harrison/treewalk/internal/models"
)

// NewTree builds an in-memory tree under root. Entries are relative slash
// paths; an entry ending in "/" creates an empty directory, any other entry
// creates a file whose content is its own path.
func NewTree(t testing.TB, root string, entries ...string) *fsaccess.BillyLister {
	t.Helper()

	lister := fsaccess.NewMemLister()
	fsys := lister.Filesystem()

	if err := fsys.MkdirAll(root, 0755); err != nil {
		t.Fatalf("MkdirAll(%s): setup failed: %v", root, err)
	}

	for _, entry := range entries {
		path := fsys.Join(root, entry)
		if strings.HasSuffix(entry, "/") {
			if err := fsys.MkdirAll(path, 0755); err != nil {
				t.Fatalf("MkdirAll(%s): setup failed: %v", path, err)
			}
			continue
		}
		if err := util.WriteFile(fsys, path, []byte(entry), 0644); err != nil {
			t.Fatalf("WriteFile(%s): setup failed: %v", path, err)
		}
	}

	return lister
}

// Lister decorates another lister with per-path failures and delays.
// It is safe for concurrent use.
type Lister struct {
	inner fsaccess.Lister

	mu        sync.Mutex
	denyFiles map[string]error
	denyDirs  map[string]error
	delays    map[string]time.Duration
	calls     map[string]int
}

// Wrap returns a decorator around inner with no faults configured.
func Wrap(inner fsaccess.Lister) *Lister {
	return &Lister{
		inner:     inner,
		denyFiles: make(map[string]error),
		denyDirs:  make(map[string]error),
		delays:    make(map[string]time.Duration),
		calls:     make(map[string]int),
	}
}

// Deny makes every listing of the given directories fail with fs.ErrPermission.
func Deny(inner fsaccess.Lister, paths ...string) *Lister {
	l := Wrap(inner)
	for _, p := range paths {
		l.DenyFiles(p, fs.ErrPermission)
		l.DenySubdirectories(p, fs.ErrPermission)
	}
	return l
}

// DenyFiles makes ListFiles fail for path.
func (l *Lister) DenyFiles(path string, err error) *Lister {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.denyFiles[path] = err
	return l
}

// DenySubdirectories makes ListSubdirectories fail for path.
func (l *Lister) DenySubdirectories(path string, err error) *Lister {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.denyDirs[path] = err
	return l
}

// Delay makes every listing of path sleep for d first.
func (l *Lister) Delay(path string, d time.Duration) *Lister {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delays[path] = d
	return l
}

// Calls returns how many listing calls reached path.
func (l *Lister) Calls(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[path]
}

// Resolve implements fsaccess.Lister.
func (l *Lister) Resolve(path string) (models.DirectoryRef, error) {
	return l.inner.Resolve(path)
}

// ListSubdirectories implements fsaccess.Lister.
func (l *Lister) ListSubdirectories(dir models.DirectoryRef) ([]models.DirectoryRef, error) {
	if err := l.before(dir.Path, l.denyDirs); err != nil {
		return nil, &fsaccess.AccessError{Path: dir.Path, Op: "list subdirectories", Err: err}
	}
	return l.inner.ListSubdirectories(dir)
}

// ListFiles implements fsaccess.Lister.
func (l *Lister) ListFiles(dir models.DirectoryRef, pattern string) ([]models.FileRef, error) {
	if err := l.before(dir.Path, l.denyFiles); err != nil {
		return nil, &fsaccess.AccessError{Path: dir.Path, Op: "list files", Err: err}
	}
	return l.inner.ListFiles(dir, pattern)
}

func (l *Lister) before(path string, deny map[string]error) error {
	l.mu.Lock()
	l.calls[path]++
	delay := l.delays[path]
	err := deny[path]
	l.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}
