package walker

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/harrison/treewalk/internal/fsaccess"
	"github.com/harrison/treewalk/internal/models"
)

// ErrNilLister is returned when a Walker has no filesystem lister.
var ErrNilLister = errors.New("walker: lister is nil")

// ErrInvalidPattern is returned when the name pattern is malformed.
var ErrInvalidPattern = errors.New("walker: invalid pattern")

// ResolutionError reports that the root path of a walk is not a usable directory.
// It is the only failure that aborts a walk before any result is produced.
type ResolutionError struct {
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("walker: cannot resolve %q: %v", e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Logger receives notices about directories that could not be listed.
// Implementations must be safe for concurrent use.
type Logger interface {
	LogWarn(message string)
	LogDebug(message string)
}

// Walker enumerates directory trees through a fsaccess.Lister.
type Walker struct {
	lister         fsaccess.Lister
	logger         Logger
	maxConcurrency int
}

// Option configures a Walker.
type Option func(*Walker)

// WithLogger sets the logger used for inaccessible directory notices.
func WithLogger(logger Logger) Option {
	return func(w *Walker) {
		w.logger = logger
	}
}

// WithMaxConcurrency bounds the number of subtree goroutines WalkParallel keeps
// running at once. Zero or negative selects DefaultConcurrency().
func WithMaxConcurrency(n int) Option {
	return func(w *Walker) {
		w.maxConcurrency = n
	}
}

// DefaultConcurrency is the parallel bound used when none is configured.
func DefaultConcurrency() int {
	return runtime.NumCPU() * 4
}

// New creates a Walker over lister.
func New(lister fsaccess.Lister, opts ...Option) *Walker {
	w := &Walker{lister: lister}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WalkPath resolves path and walks it sequentially.
func (w *Walker) WalkPath(ctx context.Context, path, pattern string) (*models.TraversalResult, error) {
	root, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	return w.Walk(ctx, root, pattern)
}

// WalkParallelPath resolves path and walks it with WalkParallel.
func (w *Walker) WalkParallelPath(ctx context.Context, path, pattern string) (*models.TraversalResult, error) {
	root, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	return w.WalkParallel(ctx, root, pattern)
}

func (w *Walker) resolve(path string) (models.DirectoryRef, error) {
	if w.lister == nil {
		return models.DirectoryRef{}, ErrNilLister
	}
	root, err := w.lister.Resolve(path)
	if err != nil {
		return models.DirectoryRef{}, &ResolutionError{Path: path, Err: err}
	}
	return root, nil
}

func (w *Walker) validate(pattern string) error {
	if w.lister == nil {
		return ErrNilLister
	}
	if err := fsaccess.ValidatePattern(pattern); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return nil
}

func (w *Walker) concurrency() int {
	if w.maxConcurrency > 0 {
		return w.maxConcurrency
	}
	return DefaultConcurrency()
}

// listDirectory lists the matched files and the subdirectories of dir.
// Both listings must succeed for dir to count as entered.
func (w *Walker) listDirectory(dir models.DirectoryRef, pattern string) ([]models.FileRef, []models.DirectoryRef, error) {
	if dl, ok := w.lister.(fsaccess.DirectoryLister); ok {
		return dl.ListDirectory(dir, pattern)
	}

	files, err := w.lister.ListFiles(dir, pattern)
	if err != nil {
		return nil, nil, err
	}
	subdirs, err := w.lister.ListSubdirectories(dir)
	if err != nil {
		return nil, nil, err
	}
	return files, subdirs, nil
}

func (w *Walker) recordInaccessible(result *models.TraversalResult, dir models.DirectoryRef, err error) {
	result.Inaccessible = append(result.Inaccessible, models.InaccessibleDir{Dir: dir, Err: err})
	if w.logger != nil {
		w.logger.LogWarn(fmt.Sprintf("directory %s could not be accessed: %v", dir.Path, err))
	}
}

func canceled(err error) error {
	return fmt.Errorf("walker: walk canceled: %w", err)
}

func formatSummary(mode string, root models.DirectoryRef, s models.TraversalSummary) string {
	return fmt.Sprintf("%s walk of %s: %d files, %d directories, %d inaccessible",
		mode, root.Path, s.Files, s.Directories, s.Inaccessible)
}
