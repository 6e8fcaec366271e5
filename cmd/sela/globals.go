// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newGlobalsCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "globals [FILE [...]]",
		Short:                 "list the global names of a session",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ArbitraryArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runGlobals(cmd.Context(), g, args)
	}
	return c
}

func runGlobals(ctx context.Context, g *globalConfig, files []string) error {
	s, err := newSession(g)
	if err != nil {
		return err
	}
	defer s.Close()

	var failure string
	s.HandleExceptionsWith(func(code int, msg string, ex error) {
		failure = msg
	})
	for _, file := range files {
		if !s.Load(file) {
			return fmt.Errorf("globals: %s", failure)
		}
	}
	names := s.GlobalNames()
	if len(names) > 0 {
		os.Stdout.WriteString(strings.Join(names, "\n") + "\n")
	}
	return nil
}
