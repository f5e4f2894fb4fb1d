/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func buildTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	mustMkdir := func(parts ...string) {
		if err := os.MkdirAll(filepath.Join(parts...), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite := func(parts ...string) {
		path := filepath.Join(parts...)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mustMkdir(root, "music")
	mustWrite(root, "music", "b.mp3")
	mustWrite(root, "music", "a.flac")
	mustWrite(root, "music", "notes.txt") // not a media file
	mustWrite(root, "music", ".hidden.mp3")
	mustMkdir(root, "music", "nested") // deeper nesting unsupported
	mustWrite(root, "music", "nested", "deep.mp3")

	mustMkdir(root, "jingles")
	mustWrite(root, "jingles", "sting.ogg")

	mustMkdir(root, ".cache") // hidden top-level dir
	mustWrite(root, "stray.mp3")

	return root
}

func TestScan(t *testing.T) {
	lib := New(buildTestTree(t), zerolog.Nop())

	scan, err := lib.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := ScanResult{
		"music":   {"a.flac", "b.mp3"},
		"jingles": {"sting.ogg"},
	}
	if !reflect.DeepEqual(scan, want) {
		t.Errorf("Scan() = %v, want %v", scan, want)
	}
}

func TestScanMissingRoot(t *testing.T) {
	lib := New(filepath.Join(t.TempDir(), "nope"), zerolog.Nop())

	if _, err := lib.Scan(); err == nil {
		t.Fatal("expected error for missing media root")
	}
}

func TestResolve(t *testing.T) {
	root := buildTestTree(t)
	lib := New(root, zerolog.Nop())

	full, err := lib.Resolve("music/a.flac")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if full != filepath.Join(root, "music", "a.flac") {
		t.Errorf("Resolve() = %q", full)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	lib := New(buildTestTree(t), zerolog.Nop())

	tests := []struct {
		name string
		path string
	}{
		{"no separator", "music"},
		{"empty collection", "/a.flac"},
		{"empty item", "music/"},
		{"dotdot collection", "../music/a.flac"},
		{"dotdot item", "music/.."},
		{"extra segment", "music/nested/deep.mp3"},
		{"backslash", `music\..\a.flac`},
		{"absolute", "/etc/passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := lib.Resolve(tt.path); err == nil {
				t.Errorf("Resolve(%q) succeeded, want error", tt.path)
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	lib := New(buildTestTree(t), zerolog.Nop())

	_, err := lib.Resolve("music/missing.mp3")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve error = %v, want ErrNotFound", err)
	}
}

func TestResolveRejectsDirectory(t *testing.T) {
	lib := New(buildTestTree(t), zerolog.Nop())

	if _, err := lib.Resolve("music/nested"); err == nil {
		t.Fatal("expected error resolving a directory")
	}
}

func TestIsMediaFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"song.mp3", true},
		{"song.FLAC", true},
		{"clip.mkv", true},
		{"clip.webm", true},
		{"readme.txt", false},
		{"noext", false},
	}

	for _, tt := range tests {
		if got := isMediaFile(tt.name); got != tt.want {
			t.Errorf("isMediaFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
