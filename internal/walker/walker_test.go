package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/treewalk/internal/fsaccess"
	"github.com/harrison/treewalk/internal/fsaccess/fsaccesstest"
	"github.com/harrison/treewalk/internal/logger"
	"github.com/harrison/treewalk/internal/models"
)

type walkFunc func(w *Walker, ctx context.Context, root models.DirectoryRef, pattern string) (*models.TraversalResult, error)

var strategies = []struct {
	name string
	walk walkFunc
}{
	{name: "sequential", walk: (*Walker).Walk},
	{name: "parallel", walk: (*Walker).WalkParallel},
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	debug []string
}

func (l *recordingLogger) LogWarn(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, message)
}

func (l *recordingLogger) LogDebug(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = append(l.debug, message)
}

func resolve(t *testing.T, lister fsaccess.Lister, path string) models.DirectoryRef {
	t.Helper()
	ref, err := lister.Resolve(path)
	require.NoError(t, err)
	return ref
}

// wideTree returns entries for a tree of the given depth and fan-out with two
// files per directory.
func wideTree(depth, fanout int) []string {
	var entries []string
	var build func(prefix string, level int)
	build = func(prefix string, level int) {
		entries = append(entries, prefix+"f1.txt", prefix+"f2.log")
		if level == depth {
			return
		}
		for i := 0; i < fanout; i++ {
			build(fmt.Sprintf("%sd%d/", prefix, i), level+1)
		}
	}
	build("", 0)
	return entries
}

func TestWalk_BasicScenario(t *testing.T) {
	lister := fsaccesstest.NewTree(t, "/root", "a.txt", "sub/b.txt", "skip.md")
	root := resolve(t, lister, "/root")

	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			result, err := s.walk(New(lister), context.Background(), root, "*.txt")
			require.NoError(t, err)

			assert.Equal(t, []string{"/root/a.txt", "/root/sub/b.txt"}, result.FilePaths())
			assert.Equal(t, []string{"/root", "/root/sub"}, result.DirectoryPaths())
			assert.Empty(t, result.Inaccessible)
		})
	}
}

func TestWalk_EmptyDirectory(t *testing.T) {
	lister := fsaccesstest.NewTree(t, "/empty")
	root := resolve(t, lister, "/empty")

	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			result, err := s.walk(New(lister), context.Background(), root, "*")
			require.NoError(t, err)

			assert.Equal(t, []string{"/empty"}, result.DirectoryPaths())
			assert.Empty(t, result.Files)
			assert.Empty(t, result.Inaccessible)
		})
	}
}

func TestWalk_DeniedSubdirectory(t *testing.T) {
	inner := fsaccesstest.NewTree(t, "/root",
		"a.txt",
		"denied/secret.txt",
		"denied/deeper/hidden.txt",
		"open/c.txt",
	)
	lister := fsaccesstest.Deny(inner, "/root/denied")
	root := resolve(t, lister, "/root")

	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			rec := &recordingLogger{}
			result, err := s.walk(New(lister, WithLogger(rec)), context.Background(), root, "*")
			require.NoError(t, err)

			require.Len(t, result.Inaccessible, 1)
			failed := result.Inaccessible[0]
			assert.Equal(t, "/root/denied", failed.Dir.Path)
			assert.ErrorIs(t, failed.Err, fs.ErrPermission)

			var accessErr *fsaccess.AccessError
			assert.ErrorAs(t, failed.Err, &accessErr)

			assert.Equal(t, []string{"/root/a.txt", "/root/open/c.txt"}, result.FilePaths())
			assert.Equal(t, []string{"/root", "/root/denied", "/root/open"}, result.DirectoryPaths())
			for _, d := range result.DirectoryPaths() {
				assert.False(t, strings.HasPrefix(d, "/root/denied/"), "descendant %s of denied directory was visited", d)
			}

			require.Len(t, rec.warns, 1)
			assert.Contains(t, rec.warns[0], "/root/denied could not be accessed")
		})
	}
}

func TestWalk_DeniedRoot(t *testing.T) {
	inner := fsaccesstest.NewTree(t, "/root", "a.txt", "sub/b.txt")
	lister := fsaccesstest.Deny(inner, "/root")
	root := resolve(t, lister, "/root")

	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			result, err := s.walk(New(lister), context.Background(), root, "*")
			require.NoError(t, err)

			assert.Equal(t, []string{"/root"}, result.DirectoryPaths())
			assert.Equal(t, []string{"/root"}, result.InaccessiblePaths())
			assert.Empty(t, result.Files)
		})
	}
}

func TestWalk_SubdirectoryListingFailsAfterFiles(t *testing.T) {
	inner := fsaccesstest.NewTree(t, "/root", "a.txt", "half/b.txt", "half/child/c.txt", "z/d.txt")
	lister := fsaccesstest.Wrap(inner).DenySubdirectories("/root/half", fs.ErrPermission)
	root := resolve(t, lister, "/root")

	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			result, err := s.walk(New(lister), context.Background(), root, "*.txt")
			require.NoError(t, err)

			assert.Equal(t, []string{"/root/half"}, result.InaccessiblePaths())
			assert.Equal(t, []string{"/root/a.txt", "/root/z/d.txt"}, result.FilePaths(),
				"files of a directory whose listing failed are not reported")
			assert.Equal(t, []string{"/root", "/root/half", "/root/z"}, result.DirectoryPaths())
		})
	}
}

func TestWalk_StrategiesAgree(t *testing.T) {
	inner := fsaccesstest.NewTree(t, "/tree", wideTree(3, 4)...)
	lister := fsaccesstest.Deny(inner, "/tree/d1", "/tree/d3/d2", "/tree/d0/d0/d3")
	root := resolve(t, lister, "/tree")

	for _, pattern := range []string{"*", "*.txt", "f2.*", "nothing"} {
		t.Run(pattern, func(t *testing.T) {
			seq, err := New(lister).Walk(context.Background(), root, pattern)
			require.NoError(t, err)
			par, err := New(lister, WithMaxConcurrency(3)).WalkParallel(context.Background(), root, pattern)
			require.NoError(t, err)

			assert.Equal(t, seq.FilePaths(), par.FilePaths())
			assert.Equal(t, seq.DirectoryPaths(), par.DirectoryPaths())
			assert.Equal(t, seq.InaccessiblePaths(), par.InaccessiblePaths())
			assert.Len(t, seq.Inaccessible, 3)
		})
	}
}

func TestWalk_DirectoryCount(t *testing.T) {
	// 1 + 4 + 16 directories in a depth-2, fan-out-4 tree.
	lister := fsaccesstest.NewTree(t, "/tree", wideTree(2, 4)...)
	root := resolve(t, lister, "/tree")

	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			result, err := s.walk(New(lister), context.Background(), root, "*")
			require.NoError(t, err)
			assert.Len(t, result.Directories, 21)
			assert.Len(t, result.Files, 42)
		})
	}
}

func TestWalk_Idempotent(t *testing.T) {
	inner := fsaccesstest.NewTree(t, "/tree", wideTree(2, 3)...)
	lister := fsaccesstest.Deny(inner, "/tree/d2/d0")
	root := resolve(t, lister, "/tree")

	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			w := New(lister)
			first, err := s.walk(w, context.Background(), root, "*.txt")
			require.NoError(t, err)
			second, err := s.walk(w, context.Background(), root, "*.txt")
			require.NoError(t, err)

			assert.Equal(t, first, second)
		})
	}
}

func TestWalkParallel_OrderIndependentOfCompletion(t *testing.T) {
	inner := fsaccesstest.NewTree(t, "/root", "a/1.txt", "a/x/2.txt", "b/3.txt", "c/4.txt", "c/y/5.txt")
	root := resolve(t, inner, "/root")

	baseline, err := New(inner).WalkParallel(context.Background(), root, "*")
	require.NoError(t, err)

	for _, slow := range []string{"/root/a", "/root/a/x", "/root/b"} {
		t.Run(slow, func(t *testing.T) {
			lister := fsaccesstest.Wrap(inner).Delay(slow, 50*time.Millisecond)

			result, err := New(lister).WalkParallel(context.Background(), root, "*")
			require.NoError(t, err)

			assert.Equal(t, baseline.FilePaths(), result.FilePaths())
			assert.Equal(t, baseline.DirectoryPaths(), result.DirectoryPaths())
		})
	}
}

// concurrencyLister counts how many listings are in flight at once.
type concurrencyLister struct {
	fsaccess.Lister
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (c *concurrencyLister) ListSubdirectories(dir models.DirectoryRef) ([]models.DirectoryRef, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return c.Lister.ListSubdirectories(dir)
}

func TestWalkParallel_BoundedConcurrency(t *testing.T) {
	inner := fsaccesstest.NewTree(t, "/tree", wideTree(3, 5)...)
	lister := &concurrencyLister{Lister: inner}
	root := resolve(t, inner, "/tree")

	const limit = 2
	result, err := New(lister, WithMaxConcurrency(limit)).WalkParallel(context.Background(), root, "*")
	require.NoError(t, err)

	assert.Len(t, result.Directories, 1+5+25+125)
	// The calling goroutine plus one per slot.
	assert.LessOrEqual(t, int(lister.peak.Load()), limit+1)
	assert.GreaterOrEqual(t, int(lister.peak.Load()), 2, "subtree listings never overlapped")
}

// rendezvousLister blocks listings of the given directories until all of them
// have started, failing the listing if that never happens.
type rendezvousLister struct {
	fsaccess.Lister
	waitFor map[string]bool
	arrived sync.WaitGroup
	all     chan struct{}
	once    sync.Once
}

func newRendezvousLister(inner fsaccess.Lister, paths ...string) *rendezvousLister {
	r := &rendezvousLister{
		Lister:  inner,
		waitFor: make(map[string]bool),
		all:     make(chan struct{}),
	}
	for _, p := range paths {
		r.waitFor[p] = true
	}
	r.arrived.Add(len(paths))
	go func() {
		r.arrived.Wait()
		close(r.all)
	}()
	return r
}

func (r *rendezvousLister) ListSubdirectories(dir models.DirectoryRef) ([]models.DirectoryRef, error) {
	if r.waitFor[dir.Path] {
		r.arrived.Done()
		select {
		case <-r.all:
		case <-time.After(5 * time.Second):
			return nil, fmt.Errorf("%s listed alone", dir.Path)
		}
	}
	return r.Lister.ListSubdirectories(dir)
}

func TestWalkParallel_SiblingsListedConcurrently(t *testing.T) {
	inner := fsaccesstest.NewTree(t, "/root", "a/1.txt", "b/2.txt")
	root := resolve(t, inner, "/root")

	// With a single slot, one sibling runs on a new goroutine and the other
	// inline; both must be in flight at once.
	lister := newRendezvousLister(inner, "/root/a", "/root/b")
	result, err := New(lister, WithMaxConcurrency(1)).WalkParallel(context.Background(), root, "*")
	require.NoError(t, err)

	assert.Empty(t, result.Inaccessible)
	assert.Equal(t, []string{"/root", "/root/a", "/root/b"}, result.DirectoryPaths())
}

// countingLister records which listing methods a walk uses.
type countingLister struct {
	*fsaccess.BillyLister
	mu       sync.Mutex
	separate int
	combined int
}

func (c *countingLister) ListFiles(dir models.DirectoryRef, pattern string) ([]models.FileRef, error) {
	c.mu.Lock()
	c.separate++
	c.mu.Unlock()
	return c.BillyLister.ListFiles(dir, pattern)
}

func (c *countingLister) ListSubdirectories(dir models.DirectoryRef) ([]models.DirectoryRef, error) {
	c.mu.Lock()
	c.separate++
	c.mu.Unlock()
	return c.BillyLister.ListSubdirectories(dir)
}

func (c *countingLister) ListDirectory(dir models.DirectoryRef, pattern string) ([]models.FileRef, []models.DirectoryRef, error) {
	c.mu.Lock()
	c.combined++
	c.mu.Unlock()
	return c.BillyLister.ListDirectory(dir, pattern)
}

func TestWalk_ReadsEachDirectoryOnce(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			lister := &countingLister{BillyLister: fsaccesstest.NewTree(t, "/tree", wideTree(2, 3)...)}
			root := resolve(t, lister, "/tree")

			result, err := s.walk(New(lister, WithLogger(logger.NewNoOpLogger())), context.Background(), root, "*")
			require.NoError(t, err)

			assert.Equal(t, len(result.Directories), lister.combined)
			assert.Zero(t, lister.separate)
		})
	}
}

func TestWalk_Cancelled(t *testing.T) {
	lister := fsaccesstest.NewTree(t, "/tree", wideTree(2, 2)...)
	root := resolve(t, lister, "/tree")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			result, err := s.walk(New(lister), ctx, root, "*")
			assert.Nil(t, result)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestWalk_InvalidArguments(t *testing.T) {
	lister := fsaccesstest.NewTree(t, "/root", "a.txt")
	root := resolve(t, lister, "/root")

	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			_, err := s.walk(New(lister), context.Background(), root, "[unclosed")
			assert.ErrorIs(t, err, ErrInvalidPattern)

			_, err = s.walk(New(nil), context.Background(), root, "*")
			assert.ErrorIs(t, err, ErrNilLister)
		})
	}
}

func TestWalkPath_Resolution(t *testing.T) {
	lister := fsaccesstest.NewTree(t, "/root", "a.txt", "sub/b.txt")
	w := New(lister)

	pathStrategies := []struct {
		name string
		walk func(ctx context.Context, path, pattern string) (*models.TraversalResult, error)
	}{
		{name: "sequential", walk: w.WalkPath},
		{name: "parallel", walk: w.WalkParallelPath},
	}

	for _, s := range pathStrategies {
		t.Run(s.name, func(t *testing.T) {
			result, err := s.walk(context.Background(), "/root", "*.txt")
			require.NoError(t, err)
			assert.Equal(t, []string{"/root/a.txt", "/root/sub/b.txt"}, result.FilePaths())

			for _, bad := range []string{"/missing", "/root/a.txt", ""} {
				result, err := s.walk(context.Background(), bad, "*")
				assert.Nil(t, result)

				var resErr *ResolutionError
				require.ErrorAs(t, err, &resErr, "path %q", bad)
				assert.Equal(t, bad, resErr.Path)
			}
		})
	}

	_, err := New(nil).WalkPath(context.Background(), "/root", "*")
	assert.ErrorIs(t, err, ErrNilLister)
}

func TestWalk_LogsSummaryAtDebug(t *testing.T) {
	lister := fsaccesstest.NewTree(t, "/root", "a.txt")
	root := resolve(t, lister, "/root")

	rec := &recordingLogger{}
	_, err := New(lister, WithLogger(rec)).Walk(context.Background(), root, "*")
	require.NoError(t, err)

	require.Len(t, rec.debug, 1)
	assert.Equal(t, "sequential walk of /root: 1 files, 1 directories, 0 inaccessible", rec.debug[0])
	assert.Empty(t, rec.warns)
}

func TestWalk_OSFilesystem(t *testing.T) {
	tmpDir := t.TempDir()
	for _, f := range []string{"a.txt", "sub/b.txt", "sub/inner/c.txt", "other/d.md"} {
		path := filepath.Join(tmpDir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("test content"), 0644))
	}

	w := New(fsaccess.NewOSLister())

	seq, err := w.WalkPath(context.Background(), tmpDir, "*.txt")
	require.NoError(t, err)
	par, err := w.WalkParallelPath(context.Background(), tmpDir, "*.txt")
	require.NoError(t, err)

	want := []string{
		filepath.Join(tmpDir, "a.txt"),
		filepath.Join(tmpDir, "sub", "b.txt"),
		filepath.Join(tmpDir, "sub", "inner", "c.txt"),
	}
	assert.Equal(t, want, seq.FilePaths())
	assert.Equal(t, seq.FilePaths(), par.FilePaths())
	assert.Equal(t, seq.DirectoryPaths(), par.DirectoryPaths())
	assert.Len(t, seq.Directories, 4)
}

func TestWalk_OSPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	tmpDir := t.TempDir()
	locked := filepath.Join(tmpDir, "locked")
	require.NoError(t, os.MkdirAll(filepath.Join(locked, "inner"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ok.txt"), []byte("x"), 0644))
	require.NoError(t, os.Chmod(locked, 0000))
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	w := New(fsaccess.NewOSLister())
	for _, walk := range []func(context.Context, string, string) (*models.TraversalResult, error){w.WalkPath, w.WalkParallelPath} {
		result, err := walk(context.Background(), tmpDir, "*")
		require.NoError(t, err)
		assert.Equal(t, []string{locked}, result.InaccessiblePaths())
		assert.True(t, errors.Is(result.Inaccessible[0].Err, fs.ErrPermission))
		assert.Equal(t, []string{filepath.Join(tmpDir, "ok.txt")}, result.FilePaths())
	}
}
