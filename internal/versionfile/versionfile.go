// Package versionfile reads and rewrites a Python-style version module whose
// last line is a __version__ assignment.
package versionfile

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrEmptyFile means the file has no line to rewrite.
	ErrEmptyFile = errors.New("version file is empty")
	// ErrNoVersion means no line of the file assigns __version__.
	ErrNoVersion = errors.New("no __version__ declaration found")
)

var declaration = regexp.MustCompile(`^\s*__version__\s*=\s*['"]([^'"]*)['"]`)

// Read returns the value of the last __version__ declaration in path.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading version file: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	version, found := "", false
	for _, line := range strings.Split(string(data), "\n") {
		if m := declaration.FindStringSubmatch(line); m != nil {
			version, found = m[1], true
		}
	}
	if !found {
		return "", fmt.Errorf("%s: %w", path, ErrNoVersion)
	}
	return version, nil
}

// Line renders the declaration written for version.
func Line(version string) string {
	return fmt.Sprintf("__version__ = %q\n", strings.TrimSpace(version))
}

// Rewrite replaces the last line of path with a declaration of version and
// keeps every other line byte for byte.
func Rewrite(path, version string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading version file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading version file: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	lines[len(lines)-1] = Line(version)

	if err := os.WriteFile(path, []byte(strings.Join(lines, "")), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing version file: %w", err)
	}
	return nil
}
