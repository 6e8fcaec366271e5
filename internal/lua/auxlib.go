// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"
	"os"
	"strings"
)

// LoadedTable is the key in the registry
// that holds the table of loaded modules,
// used by [Require].
const LoadedTable = "_LOADED"

// Require loads the module with the given name if it is not already loaded,
// pushes the module's value onto the stack,
// and records it in the [LoadedTable] registry table.
// If global is true, the module value is also stored
// in a global variable with the module's name.
//
// openf is called with the module name as its sole argument
// and must return the module's value.
func Require(l *State, name string, global bool, openf Function) error {
	l.RegistryValue(LoadedTable)
	loadedIdx := l.AbsIndex(-1)
	if _, err := l.Field(loadedIdx, name); err != nil {
		l.Pop(1)
		return err
	}
	if l.IsNil(-1) {
		l.Pop(1)
		l.PushNamedFunction(name, openf)
		l.PushString(name)
		if err := l.Call(1, 1); err != nil {
			l.Pop(2)
			return err
		}
		l.PushValue(-1)
		if err := l.SetField(loadedIdx, name); err != nil {
			l.Pop(2)
			return err
		}
	}
	l.Remove(loadedIdx)
	if global {
		l.PushValue(-1)
		l.SetGlobal(name)
	}
	return nil
}

// NewLib creates a new table
// and registers there the functions in funcs,
// leaving the table on the top of the stack.
// A nil function stores a placeholder boolean false,
// reserving the name.
func NewLib(l *State, funcs map[string]Function) error {
	l.CreateTable(0, len(funcs))
	return SetFuncs(l, funcs)
}

// SetFuncs registers the functions in funcs
// into the table on the top of the stack.
func SetFuncs(l *State, funcs map[string]Function) error {
	for name, f := range funcs {
		if f == nil {
			l.PushBoolean(false)
		} else {
			l.PushNamedFunction(name, f)
		}
		if err := l.SetField(-2, name); err != nil {
			return err
		}
	}
	return nil
}

// NewArgError returns a new error reporting a problem
// with argument arg of the Go function that called it,
// using a standard message that includes extraMsg as a comment.
func NewArgError(l *State, arg int, extraMsg string) error {
	return newRuntimeError("bad argument #%d (%s)", arg, extraMsg)
}

// NewTypeError returns a new type error
// for the argument arg of the Go function that called it.
func NewTypeError(l *State, arg int, tname string) error {
	return NewArgError(l, arg, fmt.Sprintf("%s expected, got %v", tname, l.Type(arg)))
}

// CheckString checks whether the function argument arg
// is a string (or a number, which is always convertible)
// and returns it.
func CheckString(l *State, arg int) (string, error) {
	s, ok := l.ToString(arg)
	if !ok {
		return "", NewTypeError(l, arg, "string")
	}
	return s, nil
}

// CheckInteger checks whether the function argument arg is an integer
// (or convertible to one) and returns it.
func CheckInteger(l *State, arg int) (int64, error) {
	n, ok := l.ToInteger(arg)
	if !ok {
		if l.IsNumber(arg) {
			return 0, NewArgError(l, arg, "number has no integer representation")
		}
		return 0, NewTypeError(l, arg, "number")
	}
	return n, nil
}

// CheckNumber checks whether the function argument arg is a number
// and returns it.
func CheckNumber(l *State, arg int) (float64, error) {
	n, ok := l.ToNumber(arg)
	if !ok {
		return 0, NewTypeError(l, arg, "number")
	}
	return n, nil
}

// CheckTable checks whether the function argument arg is a table.
func CheckTable(l *State, arg int) error {
	if !l.IsTable(arg) {
		return NewTypeError(l, arg, "table")
	}
	return nil
}

// OptString returns the string at the function argument arg,
// or def if the argument is absent or nil.
func OptString(l *State, arg int, def string) (string, error) {
	if l.IsNoneOrNil(arg) {
		return def, nil
	}
	return CheckString(l, arg)
}

// OptInteger returns the integer at the function argument arg,
// or def if the argument is absent or nil.
func OptInteger(l *State, arg int, def int64) (int64, error) {
	if l.IsNoneOrNil(arg) {
		return def, nil
	}
	return CheckInteger(l, arg)
}

// ToStringAux converts any Lua value at the given index
// to a human-readable string, like the tostring built-in.
func ToStringAux(l *State, idx int) string {
	v, _ := l.valueByIndex(idx)
	if s, ok := toString(v); ok {
		return s
	}
	switch v := v.(type) {
	case nil:
		return "nil"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case *table:
		return fmt.Sprintf("table: 0x%08x", v.id)
	case function:
		return fmt.Sprintf("function: 0x%08x", v.functionID())
	default:
		return fmt.Sprintf("%v", v)
	}
}

// LoadFile loads the file as a Lua chunk without running it.
// On success the compiled chunk is pushed as a function.
// If the file cannot be read,
// LoadFile pushes an error message and returns an error
// with status [StatusFileError].
func LoadFile(l *State, path string) error {
	f, err := os.Open(path)
	if err != nil {
		msg := fmt.Sprintf("cannot open %s", path)
		l.PushString(msg)
		return &Error{Code: StatusFileError, Err: fmt.Errorf("%s: %w", msg, err)}
	}
	defer f.Close()
	return l.Load(f, path, "t")
}

// DoFile loads and runs the file in protected mode.
// On failure the error message is left on the top of the stack.
func DoFile(l *State, path string) error {
	if err := LoadFile(l, path); err != nil {
		return err
	}
	return l.Call(0, MultipleReturns)
}

// DoString loads and runs the given source in protected mode.
// On failure the error message is left on the top of the stack.
func DoString(l *State, src string, chunkName string) error {
	if err := l.LoadString(src, chunkName, "t"); err != nil {
		return err
	}
	return l.Call(0, MultipleReturns)
}

// Where returns a string identifying the current position
// of control for error messages, in the form "chunk:line: ".
// The current implementation does not track Go-side call locations
// and returns the empty string.
func Where(l *State, level int) string {
	return ""
}

// Traceback returns a short textual traceback of the message.
func Traceback(l *State, msg string) string {
	var sb strings.Builder
	if msg != "" {
		sb.WriteString(msg)
		sb.WriteString("\n")
	}
	sb.WriteString("stack traceback:\n\t[Go]: in ?")
	return sb.String()
}
