/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package library discovers collections on disk and resolves selection paths
// back to files. A library is a two-level tree: top-level directories are
// collections, their regular files are items. Deeper nesting is ignored.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNotFound indicates a resolved path names no existing file.
var ErrNotFound = errors.New("media file not found")

// ScanResult maps collection names to their ordered item filenames.
type ScanResult map[string][]string

// Library provides scanning and path resolution over a media root.
type Library struct {
	rootDir string
	logger  zerolog.Logger
}

// New creates a library rooted at rootDir.
func New(rootDir string, logger zerolog.Logger) *Library {
	return &Library{rootDir: rootDir, logger: logger}
}

// Root returns the media root directory.
func (l *Library) Root() string {
	return l.rootDir
}

// CheckAccess verifies the media root exists and is a directory.
func (l *Library) CheckAccess() error {
	info, err := os.Stat(l.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("media root directory does not exist: %s", l.rootDir)
		}
		return fmt.Errorf("cannot access media root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root is not a directory: %s", l.rootDir)
	}
	return nil
}

// Scan walks the media root and returns the discovered collections. Item
// names are sorted so repeated scans of the same tree produce the same
// result.
func (l *Library) Scan() (ScanResult, error) {
	if err := l.CheckAccess(); err != nil {
		return nil, err
	}

	top, err := os.ReadDir(l.rootDir)
	if err != nil {
		return nil, fmt.Errorf("read media root: %w", err)
	}

	result := make(ScanResult)
	for _, entry := range top {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		items, err := l.scanCollection(entry.Name())
		if err != nil {
			return nil, err
		}
		result[entry.Name()] = items
	}

	l.logger.Info().
		Str("root", l.rootDir).
		Int("collections", len(result)).
		Msg("library scan complete")

	return result, nil
}

func (l *Library) scanCollection(name string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(l.rootDir, name))
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", name, err)
	}

	var items []string
	for _, entry := range entries {
		if entry.IsDir() {
			// Nested directories are unsupported; skip rather than fail.
			l.logger.Debug().
				Str("collection", name).
				Str("entry", entry.Name()).
				Msg("ignoring nested directory")
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") || !isMediaFile(entry.Name()) {
			continue
		}
		items = append(items, entry.Name())
	}

	sort.Strings(items)
	return items, nil
}

// Resolve maps a previously returned "collection/item" path to an absolute
// filesystem location. Anything that does not name exactly two known
// segments is rejected, which closes off path traversal.
func (l *Library) Resolve(relPath string) (string, error) {
	collection, item, ok := strings.Cut(relPath, "/")
	if !ok || collection == "" || item == "" {
		return "", fmt.Errorf("malformed media path %q", relPath)
	}
	if strings.Contains(item, "/") {
		return "", fmt.Errorf("malformed media path %q", relPath)
	}
	if !validSegment(collection) || !validSegment(item) {
		return "", fmt.Errorf("illegal media path %q", relPath)
	}

	full := filepath.Join(l.rootDir, collection, item)
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, relPath)
		}
		return "", fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("media path is a directory: %s", relPath)
	}

	return full, nil
}

func validSegment(seg string) bool {
	if seg == "." || seg == ".." {
		return false
	}
	return !strings.ContainsAny(seg, `/\`)
}

func isMediaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".audio", ".mp3", ".flac", ".ogg", ".m4a", ".aac", ".wav", ".wma", ".opus",
		".mp4", ".mkv", ".webm", ".avi", ".mov":
		return true
	default:
		return false
	}
}
