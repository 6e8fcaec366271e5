// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// DebugOptions holds the parameters for [NewOpenDebug].
type DebugOptions struct {
	// Input is the reader debug.debug reads commands from.
	// If nil, the process standard input is used.
	Input io.Reader
	// Output is the writer debug.debug prompts and errors go to.
	// If nil, the process standard error is used.
	Output io.Writer
}

// NewOpenDebug returns a [Function] that loads the debug library.
// debug.debug enters a line-by-line interactive loop:
// each line is run as a chunk in the caller's state,
// and the loop ends at the line "cont" or at end of input.
func NewOpenDebug(opts *DebugOptions) Function {
	if opts == nil {
		opts = new(DebugOptions)
	}
	input := opts.Input
	if input == nil {
		input = os.Stdin
	}
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	return func(l *State) (int, error) {
		funcs := map[string]Function{
			"debug":     newDebugDebug(input, output),
			"traceback": debugTraceback,
		}
		if err := NewLib(l, funcs); err != nil {
			return 0, err
		}
		return 1, nil
	}
}

func newDebugDebug(input io.Reader, output io.Writer) Function {
	return func(l *State) (int, error) {
		scanner := bufio.NewScanner(input)
		for {
			fmt.Fprint(output, "lua_debug> ")
			if !scanner.Scan() {
				return 0, nil
			}
			line := scanner.Text()
			if line == "cont" {
				return 0, nil
			}
			if line == "" {
				continue
			}
			if err := DoString(l, line, "(debug command)"); err != nil {
				msg, _ := l.ToString(-1)
				l.Pop(1)
				fmt.Fprintf(output, "%s\n", msg)
				continue
			}
			// Discard any results the command produced.
			l.SetTop(0)
		}
	}
}

func debugTraceback(l *State) (int, error) {
	msg, err := OptString(l, 1, "")
	if err != nil {
		return 0, err
	}
	l.PushString(Traceback(l, msg))
	return 1, nil
}
