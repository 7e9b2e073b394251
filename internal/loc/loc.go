// Package loc counts lines of source code under a directory tree.
package loc

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Options selects the files to count.
type Options struct {
	// Pattern is matched case-insensitively against file base names.
	Pattern string
	// Excludes drops every file whose ./-prefixed path contains one of them.
	Excludes []string
}

// FileCount is the line count of one file.
type FileCount struct {
	Path  string
	Lines int
}

// Report holds per-file counts sorted ascending by line count.
type Report struct {
	Files []FileCount
	Total int
}

// Count walks root and counts newline characters in matching files.
func Count(root string, opts Options) (*Report, error) {
	pattern := strings.ToLower(opts.Pattern)
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", opts.Pattern, err)
	}

	report := &Report{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, strings.ToLower(d.Name())); !ok {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		display := "./" + filepath.ToSlash(rel)
		if lo.ContainsBy(opts.Excludes, func(ex string) bool { return strings.Contains(display, ex) }) {
			return nil
		}

		n, err := countLines(path)
		if err != nil {
			return err
		}
		report.Files = append(report.Files, FileCount{Path: display, Lines: n})
		report.Total += n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("counting lines: %w", err)
	}

	sort.SliceStable(report.Files, func(i, j int) bool {
		a, b := report.Files[i], report.Files[j]
		if a.Lines != b.Lines {
			return a.Lines < b.Lines
		}
		return a.Path < b.Path
	})
	return report, nil
}

// Write prints the report in wc -l layout with a trailing total line.
func (r *Report) Write(w io.Writer) error {
	for _, f := range r.Files {
		if _, err := fmt.Fprintf(w, "%8d %s\n", f.Lines, f.Path); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%8d total\n", r.Total)
	return err
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	n := 0
	for {
		c, err := f.Read(buf)
		n += bytes.Count(buf[:c], []byte{'\n'})
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}
