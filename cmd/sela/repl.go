// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sela.dev/pkg/internal/lua"
)

func newREPLCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "repl",
		Short:                 "interactive session",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.Context(), g)
	}
	return c
}

func runREPL(ctx context.Context, g *globalConfig) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	s, err := newSession(g)
	if err != nil {
		return err
	}
	defer s.Close()

	if interactive {
		fmt.Fprintf(os.Stdout, "%s  (exit with ctrl-D)\n", lua.Version)
	}
	l := s.Handle()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if interactive {
			fmt.Fprint(os.Stdout, "> ")
		}
		if !scanner.Scan() {
			if interactive {
				fmt.Fprintln(os.Stdout)
			}
			return scanner.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		// Try the line as an expression first,
		// falling back to a statement.
		base := l.Top()
		if err := lua.DoString(l, "return ("+line+")", "(repl)"); err != nil {
			l.SetTop(base)
			if err := lua.DoString(l, line, "(repl)"); err != nil {
				msg, _ := l.ToString(-1)
				fmt.Fprintln(os.Stderr, msg)
				l.SetTop(base)
				continue
			}
		}
		printValues(l, base)
		l.SetTop(base)
	}
}
