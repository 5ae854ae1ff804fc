// Package fs turns command-line paths into the list of local caption and
// video files to ingest.
package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"caprev/internal/naming"
)

// Collector expands files and directories into ingestable file paths.
type Collector struct {
	// Recursive descends into subdirectories.
	Recursive bool
}

// Collect resolves each path. Files named explicitly are kept whatever their
// extension so the ingest report can reject them; files found by walking a
// directory are kept only if they are captions or videos and not ignored.
// The result has no duplicates and keeps argument order.
func (c Collector) Collect(paths []string) ([]string, error) {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, raw := range paths {
		abs, info, err := resolve(raw)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(abs)
			continue
		}

		found, err := c.findFiles(abs)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			add(p)
		}
	}
	return out, nil
}

// resolve returns the absolute path and its info, rejecting anything that is
// not a regular file or directory.
func resolve(raw string) (string, os.FileInfo, error) {
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return "", nil, fmt.Errorf("symlinks not supported: %s", abs)
	case mode&os.ModeDevice != 0:
		return "", nil, fmt.Errorf("device files not supported: %s", abs)
	case mode&os.ModeNamedPipe != 0:
		return "", nil, fmt.Errorf("named pipes not supported: %s", abs)
	case mode&os.ModeSocket != 0:
		return "", nil, fmt.Errorf("sockets not supported: %s", abs)
	}
	return abs, info, nil
}

func (c Collector) findFiles(dir string) ([]string, error) {
	ignore, err := loadIgnoreMatcher(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	keep := func(p string, d fs.DirEntry) {
		rel, err := filepath.Rel(dir, p)
		if err != nil || ignore.Match(rel) || !d.Type().IsRegular() {
			return
		}
		if naming.IsCaption(d.Name()) || naming.IsVideo(d.Name()) {
			paths = append(paths, p)
		}
	}

	if !c.Recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading directory: %w", err)
		}
		for _, entry := range entries {
			keep(filepath.Join(dir, entry.Name()), entry)
		}
		return paths, nil
	}

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel, _ := filepath.Rel(dir, p); p != dir && ignore.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		keep(p, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return paths, nil
}
