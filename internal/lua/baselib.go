// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"sela.dev/pkg/internal/lualex"
)

// BaseOptions holds the parameters for [NewOpenBase].
type BaseOptions struct {
	// Output is the writer print sends its output to.
	// If nil, print writes to stdout.
	Output io.Writer
}

// NewOpenBase returns a [Function] that loads the basic library.
// The resulting function is intended to be used
// as an argument to [Require].
func NewOpenBase(opts *BaseOptions) Function {
	if opts == nil {
		opts = new(BaseOptions)
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return func(l *State) (int, error) {
		funcs := map[string]Function{
			"assert":   baseAssert,
			"error":    baseError,
			"ipairs":   baseIpairs,
			"next":     baseNext,
			"pairs":    basePairs,
			"pcall":    basePCall,
			"print":    newPrint(out),
			"rawequal": baseRawEqual,
			"rawget":   baseRawGet,
			"rawlen":   baseRawLen,
			"rawset":   baseRawSet,
			"select":   baseSelect,
			"tonumber": baseToNumber,
			"tostring": baseToString,
			"type":     baseType,
		}
		l.PushGlobalTable()
		if err := SetFuncs(l, funcs); err != nil {
			return 0, err
		}
		l.PushValue(-1)
		if err := l.SetField(-2, "_G"); err != nil {
			return 0, err
		}
		l.PushString(Version)
		if err := l.SetField(-2, "_VERSION"); err != nil {
			return 0, err
		}
		return 1, nil
	}
}

func newPrint(out io.Writer) Function {
	return func(l *State) (int, error) {
		n := l.Top()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, ToStringAux(l, i))
		}
		if _, err := io.WriteString(out, strings.Join(parts, "\t")+"\n"); err != nil {
			return 0, err
		}
		return 0, nil
	}
}

func baseType(l *State) (int, error) {
	tp := l.Type(1)
	if tp == TypeNone {
		return 0, NewArgError(l, 1, "value expected")
	}
	l.PushString(tp.String())
	return 1, nil
}

func baseToString(l *State) (int, error) {
	if l.IsNone(1) {
		return 0, NewArgError(l, 1, "value expected")
	}
	l.PushString(ToStringAux(l, 1))
	return 1, nil
}

func baseToNumber(l *State) (int, error) {
	if !l.IsNoneOrNil(2) {
		base, err := CheckInteger(l, 2)
		if err != nil {
			return 0, err
		}
		if base < 2 || base > 36 {
			return 0, NewArgError(l, 2, "base out of range")
		}
		s, err := CheckString(l, 1)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), int(base), 64)
		if err != nil {
			l.PushNil()
			return 1, nil
		}
		l.PushInteger(n)
		return 1, nil
	}

	switch l.Type(1) {
	case TypeNumber:
		l.PushValue(1)
	case TypeString:
		s, _ := l.ToString(1)
		i, f, isInt, err := lualex.ParseValue(strings.TrimSpace(s))
		switch {
		case err != nil:
			l.PushNil()
		case isInt:
			l.PushInteger(i)
		default:
			l.PushNumber(f)
		}
	default:
		l.PushNil()
	}
	return 1, nil
}

func baseAssert(l *State) (int, error) {
	if l.IsNone(1) {
		return 0, NewArgError(l, 1, "value expected")
	}
	if !l.ToBoolean(1) {
		if !l.IsNoneOrNil(2) {
			v, _ := l.valueByIndex(2)
			return 0, &errorObject{value: v}
		}
		return 0, newRuntimeError("assertion failed!")
	}
	return l.Top(), nil
}

func baseError(l *State) (int, error) {
	v, _ := l.valueByIndex(1)
	return 0, &errorObject{value: v}
}

func basePCall(l *State) (int, error) {
	if l.IsNone(1) {
		return 0, NewArgError(l, 1, "value expected")
	}
	err := l.Call(l.Top()-1, MultipleReturns)
	if err != nil {
		// Call replaced the function and arguments
		// with the error message.
		l.PushBoolean(false)
		l.Insert(-2)
		var cbErr *CallbackError
		if errors.As(err, &cbErr) {
			// A Go panic is not contained by pcall.
			return 0, err
		}
		return 2, nil
	}
	l.PushBoolean(true)
	l.Insert(1)
	return l.Top(), nil
}

func baseNext(l *State) (int, error) {
	if err := CheckTable(l, 1); err != nil {
		return 0, err
	}
	l.SetTop(2)
	if !l.Next(1) {
		l.PushNil()
		return 1, nil
	}
	return 2, nil
}

func basePairs(l *State) (int, error) {
	if err := CheckTable(l, 1); err != nil {
		return 0, err
	}
	l.PushNamedFunction("next", baseNext)
	l.PushValue(1)
	l.PushNil()
	return 3, nil
}

func baseIpairs(l *State) (int, error) {
	if err := CheckTable(l, 1); err != nil {
		return 0, err
	}
	iter := func(l *State) (int, error) {
		i, err := CheckInteger(l, 2)
		if err != nil {
			return 0, err
		}
		i++
		l.PushInteger(i)
		if tp := l.RawIndex(1, i); tp == TypeNil {
			l.Pop(2)
			l.PushNil()
			return 1, nil
		}
		return 2, nil
	}
	l.PushNamedFunction("ipairs_iterator", iter)
	l.PushValue(1)
	l.PushInteger(0)
	return 3, nil
}

func baseSelect(l *State) (int, error) {
	if s, ok := l.ToString(1); ok && s == "#" {
		l.PushInteger(int64(l.Top() - 1))
		return 1, nil
	}
	n, err := CheckInteger(l, 1)
	if err != nil {
		return 0, err
	}
	top := int64(l.Top())
	if n < 0 {
		n = top + n
		if n < 1 {
			return 0, NewArgError(l, 1, "index out of range")
		}
	}
	if n == 0 {
		return 0, NewArgError(l, 1, "index out of range")
	}
	if n >= top {
		return 0, nil
	}
	return int(top - n), nil
}

func baseRawEqual(l *State) (int, error) {
	l.PushBoolean(l.RawEqual(1, 2))
	return 1, nil
}

func baseRawLen(l *State) (int, error) {
	tp := l.Type(1)
	if tp != TypeTable && tp != TypeString {
		return 0, NewArgError(l, 1, "table or string expected")
	}
	l.PushInteger(l.RawLen(1))
	return 1, nil
}

func baseRawGet(l *State) (int, error) {
	if err := CheckTable(l, 1); err != nil {
		return 0, err
	}
	l.SetTop(2)
	l.RawGet(1)
	return 1, nil
}

func baseRawSet(l *State) (int, error) {
	if err := CheckTable(l, 1); err != nil {
		return 0, err
	}
	l.SetTop(3)
	if err := l.RawSet(1); err != nil {
		return 0, err
	}
	return 1, nil
}
