// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"bufio"
	"io"
	"os"
	"strings"

	"sela.dev/pkg/internal/lualex"
)

// IOOptions holds the parameters for [NewOpenIO].
type IOOptions struct {
	// Stdin is the reader io.read consumes.
	// If nil, the process standard input is used.
	Stdin io.Reader
	// Stdout is the writer io.write sends output to.
	// If nil, the process standard output is used.
	Stdout io.Writer
}

// NewOpenIO returns a [Function] that loads the io library.
// Only stream access to the standard input and output is provided;
// there is no file handle type.
func NewOpenIO(opts *IOOptions) Function {
	if opts == nil {
		opts = new(IOOptions)
	}
	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	in := bufio.NewReader(stdin)

	return func(l *State) (int, error) {
		funcs := map[string]Function{
			"read":  newIORead(in),
			"write": newIOWrite(stdout),
		}
		if err := NewLib(l, funcs); err != nil {
			return 0, err
		}
		return 1, nil
	}
}

func newIOWrite(out io.Writer) Function {
	return func(l *State) (int, error) {
		n := l.Top()
		for i := 1; i <= n; i++ {
			s, err := CheckString(l, i)
			if err != nil {
				return 0, err
			}
			if _, err := io.WriteString(out, s); err != nil {
				l.PushNil()
				l.PushString(err.Error())
				return 2, nil
			}
		}
		return 0, nil
	}
}

func newIORead(in *bufio.Reader) Function {
	return func(l *State) (int, error) {
		format, err := OptString(l, 1, "l")
		if err != nil {
			return 0, err
		}
		format = strings.TrimPrefix(format, "*")
		switch format {
		case "l", "L":
			line, err := in.ReadString('\n')
			if err != nil && line == "" {
				l.PushNil()
				return 1, nil
			}
			if format == "l" {
				line = strings.TrimSuffix(line, "\n")
				line = strings.TrimSuffix(line, "\r")
			}
			l.PushString(line)
			return 1, nil
		case "a":
			data, err := io.ReadAll(in)
			if err != nil {
				l.PushNil()
				l.PushString(err.Error())
				return 2, nil
			}
			l.PushString(string(data))
			return 1, nil
		case "n":
			var f float64
			// A leading number in the input stream.
			if _, err := fscanNumber(in, &f); err != nil {
				l.PushNil()
				return 1, nil
			}
			if i := int64(f); float64(i) == f {
				l.PushInteger(i)
			} else {
				l.PushNumber(f)
			}
			return 1, nil
		default:
			return 0, NewArgError(l, 1, "invalid format")
		}
	}
}

func fscanNumber(in *bufio.Reader, f *float64) (int, error) {
	var sb strings.Builder
	for {
		b, err := in.ReadByte()
		if err != nil {
			break
		}
		if sb.Len() == 0 && (b == ' ' || b == '\t' || b == '\n' || b == '\r') {
			continue
		}
		if (b >= '0' && b <= '9') || b == '.' || b == '-' || b == '+' ||
			b == 'e' || b == 'E' || b == 'x' || b == 'X' ||
			(b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F') {
			sb.WriteByte(b)
			continue
		}
		in.UnreadByte()
		break
	}
	if sb.Len() == 0 {
		return 0, io.EOF
	}
	i, v, isInt, err := lualex.ParseValue(sb.String())
	if err != nil {
		return 0, err
	}
	if isInt {
		*f = float64(i)
	} else {
		*f = v
	}
	return 1, nil
}
