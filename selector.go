// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package sela

import (
	"fmt"

	"sela.dev/pkg/internal/lua"
)

// A Selector binds one global name to a session's VM handle,
// registry, and exception handler,
// for later read, write, and call access.
// Obtain one with [State.Index].
// Every Selector operation is stack balanced
// and funnels its errors through the session's handler,
// so none of them can corrupt the VM stack or throw.
type Selector struct {
	l        *lua.State
	registry *Registry
	handler  *ExceptionHandler
	name     string
}

// Name returns the global name the selector is bound to.
func (sel *Selector) Name() string { return sel.name }

// Exists reports whether the global resolves to a non-nil value.
func (sel *Selector) Exists() bool {
	if sel.l == nil {
		return false
	}
	defer SaveStack(sel.l).Restore()
	return sel.l.Global(sel.name) != lua.TypeNil
}

// Type returns the VM type of the global,
// or [lua.TypeNone] for an inert selector.
func (sel *Selector) Type() lua.Type {
	if sel.l == nil {
		return lua.TypeNone
	}
	defer SaveStack(sel.l).Restore()
	return sel.l.Global(sel.name)
}

// String reads the global as a string.
func (sel *Selector) String() (string, bool) {
	if sel.l == nil {
		return "", false
	}
	defer SaveStack(sel.l).Restore()
	sel.l.Global(sel.name)
	return sel.l.ToString(-1)
}

// Int reads the global as an integer.
func (sel *Selector) Int() (int64, bool) {
	if sel.l == nil {
		return 0, false
	}
	defer SaveStack(sel.l).Restore()
	sel.l.Global(sel.name)
	return sel.l.ToInteger(-1)
}

// Number reads the global as a floating point number.
func (sel *Selector) Number() (float64, bool) {
	if sel.l == nil {
		return 0, false
	}
	defer SaveStack(sel.l).Restore()
	sel.l.Global(sel.name)
	return sel.l.ToNumber(-1)
}

// Bool reads the global as a boolean,
// following the language's truthiness rules.
// The second result reports whether the global exists at all.
func (sel *Selector) Bool() (value, exists bool) {
	if sel.l == nil {
		return false, false
	}
	defer SaveStack(sel.l).Restore()
	tp := sel.l.Global(sel.name)
	return sel.l.ToBoolean(-1), tp != lua.TypeNil
}

// Set assigns a host value to the global.
// Supported types: nil, bool, integers, floats, strings,
// and [lua.Function].
// Unsupported types are reported to the exception handler.
func (sel *Selector) Set(value any) bool {
	if sel.l == nil {
		return false
	}
	defer SaveStack(sel.l).Restore()
	if err := pushHostValue(sel.l, value); err != nil {
		sel.handler.Handle(statuses.runtimeError, err.Error(), nil)
		return false
	}
	sel.l.SetGlobal(sel.name)
	return true
}

// Pin caches a registry reference to the global's current value
// under the selector's name,
// keeping it reachable even if the global is reassigned.
func (sel *Selector) Pin() {
	if sel.l == nil || sel.registry == nil {
		return
	}
	defer SaveStack(sel.l).Restore()
	sel.l.Global(sel.name)
	sel.registry.Intern(sel.name)
}

// Call calls the global as a function with the given host arguments
// and returns the results converted to host values
// (nil, bool, int64, float64, or string; other result types are
// returned as their printed form).
// Failures are forwarded to the exception handler
// and yield (nil, false).
func (sel *Selector) Call(args ...any) ([]any, bool) {
	if sel.l == nil {
		return nil, false
	}
	defer SaveStack(sel.l).Restore()

	base := sel.l.Top()
	if tp := sel.l.Global(sel.name); tp != lua.TypeFunction {
		sel.handler.Handle(statuses.runtimeError, fmt.Sprintf("attempt to call '%s', a %v value", sel.name, tp), nil)
		return nil, false
	}
	for _, arg := range args {
		if err := pushHostValue(sel.l, arg); err != nil {
			sel.handler.Handle(statuses.runtimeError, err.Error(), nil)
			return nil, false
		}
	}
	if err := sel.l.Call(len(args), lua.MultipleReturns); err != nil {
		sel.handler.HandleTopOfStack(classify(err), sel.l, capturedException(err))
		return nil, false
	}
	// Copy the results off the VM stack before the guard releases.
	n := sel.l.Top() - base
	results := make([]any, 0, n)
	for i := base + 1; i <= base+n; i++ {
		results = append(results, hostValue(sel.l, i))
	}
	return results, true
}

func pushHostValue(l *lua.State, v any) error {
	switch v := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(v)
	case int:
		l.PushInteger(int64(v))
	case int32:
		l.PushInteger(int64(v))
	case int64:
		l.PushInteger(v)
	case float32:
		l.PushNumber(float64(v))
	case float64:
		l.PushNumber(v)
	case string:
		l.PushString(v)
	case lua.Function:
		l.PushFunction(v)
	case func(*lua.State) (int, error):
		l.PushFunction(v)
	default:
		return fmt.Errorf("sela: cannot pass value of type %T to the VM", v)
	}
	return nil
}

func hostValue(l *lua.State, idx int) any {
	switch l.Type(idx) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return l.ToBoolean(idx)
	case lua.TypeNumber:
		if l.IsInteger(idx) {
			n, _ := l.ToInteger(idx)
			return n
		}
		n, _ := l.ToNumber(idx)
		return n
	case lua.TypeString:
		s, _ := l.ToString(idx)
		return s
	default:
		return lua.ToStringAux(l, idx)
	}
}
