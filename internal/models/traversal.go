package models

import "os"

// DirectoryRef identifies a directory node that can be listed again.
type DirectoryRef struct {
	Path string      // Absolute (or filesystem-rooted) path of the directory
	Name string      // Base name of the directory
	Mode os.FileMode // Mode bits reported when the directory was discovered
}

// FileRef identifies a file matched during a walk.
type FileRef struct {
	Path string      // Full path of the file
	Name string      // Base name of the file
	Size int64       // Size in bytes at listing time
	Mode os.FileMode // Mode bits reported at listing time
}

// InaccessibleDir pairs a directory with the error that prevented listing it.
type InaccessibleDir struct {
	Dir DirectoryRef
	Err error
}

// TraversalResult is the aggregate produced by a walk.
// Files and Directories are in traversal order; Inaccessible holds one entry
// per failed listing attempt. A result is owned by whoever receives it.
type TraversalResult struct {
	Files        []FileRef
	Directories  []DirectoryRef
	Inaccessible []InaccessibleDir
}

// TraversalSummary holds the counts derived from a TraversalResult.
type TraversalSummary struct {
	Files        int
	Directories  int
	Inaccessible int
	TotalBytes   int64
}

// NewTraversalResult returns an empty result with non-nil slices.
func NewTraversalResult() *TraversalResult {
	return &TraversalResult{
		Files:        make([]FileRef, 0),
		Directories:  make([]DirectoryRef, 0),
		Inaccessible: make([]InaccessibleDir, 0),
	}
}

// Merge concatenates results in argument order into a fresh aggregate.
// Nil inputs are skipped and no input is modified.
func Merge(results ...*TraversalResult) *TraversalResult {
	var files, dirs, failed int
	for _, r := range results {
		if r == nil {
			continue
		}
		files += len(r.Files)
		dirs += len(r.Directories)
		failed += len(r.Inaccessible)
	}

	merged := &TraversalResult{
		Files:        make([]FileRef, 0, files),
		Directories:  make([]DirectoryRef, 0, dirs),
		Inaccessible: make([]InaccessibleDir, 0, failed),
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		merged.Files = append(merged.Files, r.Files...)
		merged.Directories = append(merged.Directories, r.Directories...)
		merged.Inaccessible = append(merged.Inaccessible, r.Inaccessible...)
	}
	return merged
}

// Clone returns a copy that shares no slices with r.
func (r *TraversalResult) Clone() *TraversalResult {
	if r == nil {
		return NewTraversalResult()
	}
	return Merge(r)
}

// Summary counts the entries of r.
func (r *TraversalResult) Summary() TraversalSummary {
	if r == nil {
		return TraversalSummary{}
	}
	s := TraversalSummary{
		Files:        len(r.Files),
		Directories:  len(r.Directories),
		Inaccessible: len(r.Inaccessible),
	}
	for _, f := range r.Files {
		s.TotalBytes += f.Size
	}
	return s
}

// HasFailures reports whether any directory could not be listed.
func (r *TraversalResult) HasFailures() bool {
	return r != nil && len(r.Inaccessible) > 0
}

// FilePaths returns the paths of r.Files in order.
func (r *TraversalResult) FilePaths() []string {
	paths := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// DirectoryPaths returns the paths of r.Directories in order.
func (r *TraversalResult) DirectoryPaths() []string {
	paths := make([]string, 0, len(r.Directories))
	for _, d := range r.Directories {
		paths = append(paths, d.Path)
	}
	return paths
}

// InaccessiblePaths returns the directory paths of r.Inaccessible in order.
func (r *TraversalResult) InaccessiblePaths() []string {
	paths := make([]string, 0, len(r.Inaccessible))
	for _, d := range r.Inaccessible {
		paths = append(paths, d.Dir.Path)
	}
	return paths
}
