// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

// sela is a host program for the sela scripting sessions:
// it runs script files, evaluates inline chunks,
// inspects the global namespace, and offers an interactive loop.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"zombiezen.com/go/bass/sigterm"
	"zombiezen.com/go/log"

	"sela.dev/pkg"
	"sela.dev/pkg/internal/lua"
)

func main() {
	rootCommand := &cobra.Command{
		Use:           "sela",
		Short:         "sela scripting host",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	g := defaultGlobalConfig()
	if err := g.mergeFiles(configPaths()); err != nil {
		initLogging(false)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}

	rootCommand.PersistentFlags().BoolVar(&g.OpenLibraries, "libs", g.OpenLibraries, "preload the standard libraries")
	showDebug := rootCommand.PersistentFlags().Bool("debug", g.Debug, "show debugging output")

	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(*showDebug)
		return nil
	}

	rootCommand.AddCommand(
		newRunCommand(g),
		newEvalCommand(g),
		newGlobalsCommand(g),
		newREPLCommand(g),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), sigterm.Signals()...)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(*showDebug)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

// newSession constructs a session configured by g,
// with the ext library opened on top of the standard set.
func newSession(g *globalConfig) (*sela.State, error) {
	s, err := sela.NewState(g.OpenLibraries)
	if err != nil {
		return nil, err
	}
	s.OpenLibrary("ext", openExt)
	if len(g.LibraryPaths) > 0 {
		for _, path := range g.LibraryPaths {
			s.Load(path)
		}
	}
	return s, nil
}

// printValues prints the values between base and the stack top,
// tab separated, the way the print built-in would.
func printValues(l *lua.State, base int) {
	n := l.Top() - base
	if n <= 0 {
		return
	}
	line := ""
	for i := base + 1; i <= base+n; i++ {
		if line != "" {
			line += "\t"
		}
		line += lua.ToStringAux(l, i)
	}
	os.Stdout.WriteString(line + "\n")
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "sela: ", log.StdFlags, nil),
		})
	})
}
