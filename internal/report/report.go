// Package report renders walk results for people and tools.
//
// A Document is the serializable form of a models.TraversalResult plus the
// parameters of the walk that produced it. Render writes a Document as plain
// text, JSON, YAML, Markdown, or HTML; WriteFile stores rendered output
// atomically while holding a lock file next to the target.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/harrison/treewalk/internal/models"
)

var markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.Table))

// Meta describes the walk that produced a result.
type Meta struct {
	RunID     string
	Root      string
	Pattern   string
	Mode      string
	StartedAt time.Time
	Duration  time.Duration
}

// Summary holds result counts.
type Summary struct {
	Files        int   `json:"files" yaml:"files"`
	Directories  int   `json:"directories" yaml:"directories"`
	Inaccessible int   `json:"inaccessible" yaml:"inaccessible"`
	TotalBytes   int64 `json:"total_bytes" yaml:"total_bytes"`
}

// FileEntry is a matched file.
type FileEntry struct {
	Path string `json:"path" yaml:"path"`
	Size int64  `json:"size" yaml:"size"`
}

// FailureEntry is a directory that could not be listed.
type FailureEntry struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// Document is the serializable form of a walk.
type Document struct {
	RunID        string         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Root         string         `json:"root" yaml:"root"`
	Pattern      string         `json:"pattern" yaml:"pattern"`
	Mode         string         `json:"mode" yaml:"mode"`
	StartedAt    time.Time      `json:"started_at" yaml:"started_at"`
	DurationMS   int64          `json:"duration_ms" yaml:"duration_ms"`
	Summary      Summary        `json:"summary" yaml:"summary"`
	Files        []FileEntry    `json:"files" yaml:"files"`
	Directories  []string       `json:"directories" yaml:"directories"`
	Inaccessible []FailureEntry `json:"inaccessible" yaml:"inaccessible"`
}

// NewDocument builds a Document from a walk result.
func NewDocument(meta Meta, result *models.TraversalResult) *Document {
	if result == nil {
		result = models.NewTraversalResult()
	}
	s := result.Summary()

	doc := &Document{
		RunID:      meta.RunID,
		Root:       meta.Root,
		Pattern:    meta.Pattern,
		Mode:       meta.Mode,
		StartedAt:  meta.StartedAt.UTC(),
		DurationMS: meta.Duration.Milliseconds(),
		Summary: Summary{
			Files:        s.Files,
			Directories:  s.Directories,
			Inaccessible: s.Inaccessible,
			TotalBytes:   s.TotalBytes,
		},
		Files:        make([]FileEntry, 0, len(result.Files)),
		Directories:  result.DirectoryPaths(),
		Inaccessible: make([]FailureEntry, 0, len(result.Inaccessible)),
	}
	for _, f := range result.Files {
		doc.Files = append(doc.Files, FileEntry{Path: f.Path, Size: f.Size})
	}
	for _, d := range result.Inaccessible {
		msg := ""
		if d.Err != nil {
			msg = d.Err.Error()
		}
		doc.Inaccessible = append(doc.Inaccessible, FailureEntry{Path: d.Dir.Path, Error: msg})
	}
	return doc
}

// Options control rendering.
type Options struct {
	// Color enables ANSI colors in the text format
	Color bool
}

// Render writes doc to w in the given format.
func Render(w io.Writer, format string, doc *Document, opts Options) error {
	switch format {
	case "text", "":
		return renderText(w, doc, opts)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return nil
	case "markdown":
		_, err := io.WriteString(w, Markdown(doc))
		return err
	case "html":
		return renderHTML(w, doc)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

func renderText(w io.Writer, doc *Document, opts Options) error {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)
	for _, c := range []*color.Color{bold, red, cyan} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s, pattern %s)\n", bold.Sprint("Root:"), doc.Root, doc.Mode, doc.Pattern)
	fmt.Fprintf(&b, "%s %d files, %d directories, %d inaccessible\n",
		bold.Sprint("Summary:"), doc.Summary.Files, doc.Summary.Directories, doc.Summary.Inaccessible)

	if len(doc.Files) > 0 {
		fmt.Fprintf(&b, "\n%s\n", cyan.Sprint("Files:"))
		for _, f := range doc.Files {
			fmt.Fprintf(&b, "  %s (%d bytes)\n", f.Path, f.Size)
		}
	}
	if len(doc.Inaccessible) > 0 {
		fmt.Fprintf(&b, "\n%s\n", red.Sprint("Inaccessible:"))
		for _, d := range doc.Inaccessible {
			fmt.Fprintf(&b, "  %s: %s\n", red.Sprint(d.Path), d.Error)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Markdown renders doc as a Markdown document.
func Markdown(doc *Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Walk of `%s`\n\n", doc.Root)
	fmt.Fprintf(&b, "- Mode: %s\n", doc.Mode)
	fmt.Fprintf(&b, "- Pattern: `%s`\n", doc.Pattern)
	if doc.RunID != "" {
		fmt.Fprintf(&b, "- Run: `%s`\n", doc.RunID)
	}
	fmt.Fprintf(&b, "- Files: %d\n", doc.Summary.Files)
	fmt.Fprintf(&b, "- Directories: %d\n", doc.Summary.Directories)
	fmt.Fprintf(&b, "- Inaccessible: %d\n", doc.Summary.Inaccessible)

	if len(doc.Files) > 0 {
		b.WriteString("\n## Files\n\n| Path | Size |\n| --- | ---: |\n")
		for _, f := range doc.Files {
			fmt.Fprintf(&b, "| `%s` | %d |\n", escapeCell(f.Path), f.Size)
		}
	}
	if len(doc.Inaccessible) > 0 {
		b.WriteString("\n## Inaccessible directories\n\n| Path | Error |\n| --- | --- |\n")
		for _, d := range doc.Inaccessible {
			fmt.Fprintf(&b, "| `%s` | %s |\n", escapeCell(d.Path), escapeCell(d.Error))
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func renderHTML(w io.Writer, doc *Document) error {
	var body bytes.Buffer
	if err := markdownRenderer.Convert([]byte(Markdown(doc)), &body); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>treewalk report</title></head>\n<body>\n%s</body>\n</html>\n", body.String())
	return err
}
