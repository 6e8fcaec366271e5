// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/tailscale/hujson"
)

type globalConfig struct {
	Debug         bool     `json:"debug"`
	OpenLibraries bool     `json:"openLibraries"`
	LibraryPaths  []string `json:"libraryPaths"`
}

func defaultGlobalConfig() *globalConfig {
	return &globalConfig{
		OpenLibraries: true,
	}
}

// configPaths yields the configuration file locations
// in increasing order of precedence.
func configPaths() iter.Seq[string] {
	return func(yield func(string) bool) {
		if dir, err := os.UserConfigDir(); err == nil {
			if !yield(filepath.Join(dir, "sela", "sela.json")) {
				return
			}
		}
		yield("sela.json")
	}
}

// mergeFiles reads each existing configuration file in paths,
// later files overriding earlier ones.
// Files are HuJSON: JSON with comments and trailing commas.
func (g *globalConfig) mergeFiles(paths iter.Seq[string]) error {
	for path := range paths {
		huJSONData, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		jsonData, err := hujson.Standardize(huJSONData)
		if err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
		if err := jsonv2.Unmarshal(jsonData, g, jsonv2.RejectUnknownMembers(false)); err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
	}
	return nil
}
