// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	if err := os.WriteFile(first, []byte(`{
		// comment allowed
		"openLibraries": false,
		"libraryPaths": ["a.lua"],
	}`), 0o666); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte(`{"debug": true}`), 0o666); err != nil {
		t.Fatal(err)
	}

	g := defaultGlobalConfig()
	paths := slices.Values([]string{
		first,
		filepath.Join(dir, "missing.json"),
		second,
	})
	if err := g.mergeFiles(paths); err != nil {
		t.Fatal(err)
	}

	want := &globalConfig{
		Debug:         true,
		OpenLibraries: false,
		LibraryPaths:  []string{"a.lua"},
	}
	if diff := cmp.Diff(want, g); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestMergeFilesBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o666); err != nil {
		t.Fatal(err)
	}
	g := defaultGlobalConfig()
	if err := g.mergeFiles(slices.Values([]string{path})); err == nil {
		t.Error("mergeFiles did not return an error for malformed input")
	}
}
