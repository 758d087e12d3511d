// Package walker recursively enumerates the files and directories beneath a
// root, collecting directories that could not be listed instead of aborting.
//
// # Strategies
//
// Walk is a depth-first traversal on the calling goroutine. WalkParallel
// lists a directory, walks each of its subdirectories as an independent task,
// waits for all of them, and merges their results. Both return the same
// models.TraversalResult for the same tree:
//
//   - Directories holds every directory visited, parent before children,
//     siblings in listing order.
//   - Files holds the matched files of every directory that was listed
//     successfully, in the same order.
//   - Inaccessible holds one entry per directory whose listing failed.
//
// A directory is recorded in Directories before it is listed. When listing
// fails it is also recorded in Inaccessible and its subtree is skipped; its
// siblings are still walked.
//
// # Concurrency
//
// WalkParallel bounds the number of extra goroutines with a slot channel
// sized by WithMaxConcurrency. Scheduling a subtree never blocks: without a
// free slot the subtree runs on the scheduling goroutine, so nested waits
// cannot deadlock. Each task owns its result until it is merged, and results
// are merged by scheduling index rather than completion order.
//
// # Errors
//
// Path entry points return *ResolutionError when the root cannot be resolved.
// Listing failures never surface as errors; callers inspect
// TraversalResult.Inaccessible. A cancelled context stops the walk and
// returns the context error with no partial result.
//
// # Usage
//
//	w := walker.New(fsaccess.NewOSLister(), walker.WithLogger(log))
//	result, err := w.WalkParallelPath(ctx, "/var/data", "*.log")
//	if err != nil {
//	    return err
//	}
//	for _, failed := range result.Inaccessible {
//	    fmt.Printf("skipped %s: %v\n", failed.Dir.Path, failed.Err)
//	}
package walker
