package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deepzoom/pyramid"

	homedir "github.com/mitchellh/go-homedir"
)

// stdinSource is the source argument that reads the image from stdin.
const stdinSource = "-"

// makeDir creates dir and its parents; an existing directory is fine.
func makeDir(dir string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("mkdir(%q): %v: %w", dir, err, pyramid.ErrIO)
	}
	return nil
}

// removeFile deletes path if it exists.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %v: %w", path, err, pyramid.ErrIO)
	}
	return nil
}

// expandPath resolves a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return homedir.Expand(path)
}

// sourceName is the output name for a source image: its base name without
// extension.
func sourceName(source string) string {
	if source == stdinSource {
		return "stdin"
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// relSource is target as referenced from a document written in dir.
func relSource(dir, target string) string {
	if rel, err := filepath.Rel(dir, target); err == nil {
		return filepath.ToSlash(rel)
	}
	if abs, err := filepath.Abs(target); err == nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(target)
}
