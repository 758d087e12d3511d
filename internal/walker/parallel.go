package walker

import (
	"context"
	"sync"

	"github.com/harrison/treewalk/internal/models"
)

// WalkParallel enumerates root by walking every subdirectory as its own task
// and merging the task results once all of them have finished.
//
// At most the configured concurrency of extra goroutines runs at once; a
// subtree that finds no free slot is walked on the goroutine that scheduled
// it. Children are merged by scheduling index, so the result has exactly the
// order Walk produces regardless of which subtree finishes first.
func (w *Walker) WalkParallel(ctx context.Context, root models.DirectoryRef, pattern string) (*models.TraversalResult, error) {
	if err := w.validate(pattern); err != nil {
		return nil, err
	}

	// Slots for goroutines beyond the caller's own.
	slots := make(chan struct{}, w.concurrency())

	result, err := w.walkSubtree(ctx, root, pattern, slots)
	if err != nil {
		return nil, canceled(err)
	}

	if w.logger != nil {
		w.logger.LogDebug(formatSummary("parallel", root, result.Summary()))
	}
	return result, nil
}

func (w *Walker) walkSubtree(ctx context.Context, dir models.DirectoryRef, pattern string, slots chan struct{}) (*models.TraversalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	self := models.NewTraversalResult()
	self.Directories = append(self.Directories, dir)

	files, subdirs, err := w.listDirectory(dir, pattern)
	if err != nil {
		w.recordInaccessible(self, dir, err)
		return self, nil
	}
	self.Files = append(self.Files, files...)

	if len(subdirs) == 0 {
		return self, nil
	}

	children := make([]*models.TraversalResult, len(subdirs))
	errs := make([]error, len(subdirs))

	var wg sync.WaitGroup
	for i, sub := range subdirs {
		select {
		case slots <- struct{}{}:
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-slots }()
				children[i], errs[i] = w.walkSubtree(ctx, sub, pattern, slots)
			}()
		default:
			children[i], errs[i] = w.walkSubtree(ctx, sub, pattern, slots)
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	parts := make([]*models.TraversalResult, 0, len(children)+1)
	parts = append(parts, self)
	parts = append(parts, children...)
	return models.Merge(parts...), nil
}
