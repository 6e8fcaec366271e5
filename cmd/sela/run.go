// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"zombiezen.com/go/log"
)

type runOptions struct {
	jobs  int
	files []string
}

func newRunCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "run [options] FILE [FILE [...]]",
		Short:                 "run script files",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(runOptions)
	c.Flags().IntVarP(&opts.jobs, "jobs", "j", 1, "number of files to run in parallel")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.files = args
		return runRun(cmd.Context(), g, opts)
	}
	return c
}

// runRun runs each file in its own session.
// Sessions are single-threaded,
// so parallelism is across sessions only.
func runRun(ctx context.Context, g *globalConfig, opts *runOptions) error {
	grp, ctx := errgroup.WithContext(ctx)
	if opts.jobs > 0 {
		grp.SetLimit(opts.jobs)
	}
	for _, file := range opts.files {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			log.Debugf(ctx, "running %s", file)
			s, err := newSession(g)
			if err != nil {
				return err
			}
			defer s.Close()

			var failure string
			s.HandleExceptionsWith(func(code int, msg string, ex error) {
				failure = msg
			})
			if !s.Load(file) {
				return fmt.Errorf("run %s: %s", file, failure)
			}
			return nil
		})
	}
	return grp.Wait()
}
