// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sela.dev/pkg/internal/lua"
)

type evalOptions struct {
	expr  string
	file  string
	print bool
}

func newEvalCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "eval [options]",
		Short:                 "evaluate an inline chunk",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(evalOptions)
	c.Flags().StringVar(&opts.expr, "expr", "", "evaluate the `code` string")
	c.Flags().StringVar(&opts.file, "file", "", "evaluate the code stored in `path`")
	c.Flags().BoolVar(&opts.print, "print", false, "print the chunk's results")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runEval(cmd.Context(), g, opts)
	}
	return c
}

func runEval(ctx context.Context, g *globalConfig, opts *evalOptions) error {
	if (opts.expr == "") == (opts.file == "") {
		return fmt.Errorf("eval: exactly one of --expr or --file must be given")
	}
	code := opts.expr
	if opts.file != "" {
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return err
		}
		code = string(data)
	}

	s, err := newSession(g)
	if err != nil {
		return err
	}
	defer s.Close()

	if !opts.print {
		var failure string
		s.HandleExceptionsWith(func(code int, msg string, ex error) {
			failure = msg
		})
		if !s.Do(code) {
			return fmt.Errorf("eval: %s", failure)
		}
		return nil
	}

	// To print results the chunk is evaluated as an expression first,
	// the way the standalone interpreter treats interactive lines.
	l := s.Handle()
	base := l.Top()
	defer l.SetTop(base)
	if err := lua.DoString(l, "return ("+code+")", "(eval)"); err != nil {
		l.SetTop(base)
		if err := lua.DoString(l, code, "(eval)"); err != nil {
			msg, _ := l.ToString(-1)
			return fmt.Errorf("eval: %s", msg)
		}
	}
	printValues(l, base)
	return nil
}
