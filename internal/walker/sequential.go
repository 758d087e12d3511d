package walker

import (
	"context"

	"github.com/harrison/treewalk/internal/models"
)

// Walk enumerates root depth-first on the calling goroutine.
//
// root is recorded in Directories before its contents are listed, so a root
// that cannot be listed appears once in Directories and once in Inaccessible.
// Inaccessible directories are not descended into; their siblings are.
// Apart from a nil lister or a malformed pattern, the only error is a
// wrapped ctx.Err(), returned without a partial result.
func (w *Walker) Walk(ctx context.Context, root models.DirectoryRef, pattern string) (*models.TraversalResult, error) {
	if err := w.validate(pattern); err != nil {
		return nil, err
	}

	result := models.NewTraversalResult()
	if err := w.walkInto(ctx, root, pattern, result); err != nil {
		return nil, canceled(err)
	}

	if w.logger != nil {
		w.logger.LogDebug(formatSummary("sequential", root, result.Summary()))
	}
	return result, nil
}

func (w *Walker) walkInto(ctx context.Context, dir models.DirectoryRef, pattern string, result *models.TraversalResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result.Directories = append(result.Directories, dir)

	files, subdirs, err := w.listDirectory(dir, pattern)
	if err != nil {
		w.recordInaccessible(result, dir, err)
		return nil
	}
	result.Files = append(result.Files, files...)

	for _, sub := range subdirs {
		if err := w.walkInto(ctx, sub, pattern, result); err != nil {
			return err
		}
	}
	return nil
}
