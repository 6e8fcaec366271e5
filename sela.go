// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

/*
Package sela is an embedding layer over a Lua virtual machine.

A [State] is one VM session: it owns or borrows a VM handle,
funnels every error through a replaceable [ExceptionHandler],
and keeps the VM's evaluation stack balanced
around every operation with a [StackGuard].
Script loading, inline execution, library injection,
garbage collection, and global enumeration all go through the session;
named globals are read, written, and called through a [Selector].
*/
package sela

import (
	"fmt"

	"sela.dev/pkg/internal/lua"
)

// State is one VM session.
// It is created owning a fresh VM handle with [NewState]
// or borrowing an existing one with [Wrap].
// A State must not be copied; transfer it with [State.Move].
// A State is not safe for concurrent use.
type State struct {
	l        *lua.State
	owner    bool
	registry *Registry
	handler  *ExceptionHandler
}

// NewState creates a session that owns a freshly allocated VM handle.
// If openStandardLibraries is true,
// the standard libraries are preloaded once at construction.
// A failure to allocate or initialize the VM
// surfaces as a construction error,
// never through the exception handler.
//
// The default print-to-stdout handler is installed;
// see [State.HandleExceptionsWith] to replace it.
func NewState(openStandardLibraries bool) (*State, error) {
	l, err := lua.NewState()
	if err != nil {
		return nil, fmt.Errorf("sela: new state: %w", err)
	}
	if openStandardLibraries {
		if err := lua.OpenLibraries(l, nil); err != nil {
			return nil, fmt.Errorf("sela: new state: open libraries: %w", err)
		}
	}
	s := &State{
		l:       l,
		owner:   true,
		handler: NewPrintHandler(nil),
	}
	s.registry = NewRegistry(l)
	return s, nil
}

// Wrap creates a session borrowing an existing VM handle.
// No libraries are preloaded;
// the caller is responsible for the handle's prior configuration.
// Closing a borrowing session leaves the handle untouched.
func Wrap(l *lua.State) *State {
	return &State{
		l:        l,
		handler:  NewPrintHandler(nil),
		registry: NewRegistry(l),
	}
}

// Move transfers the VM handle, registry, and handler
// to a new session and returns it.
// The source session becomes inert:
// every operation on it is a no-op and [State.Size] reports 0.
// If the source owned its handle, the new session owns it.
func (s *State) Move() *State {
	moved := &State{
		l:        s.l,
		owner:    s.owner,
		registry: s.registry,
		handler:  s.handler,
	}
	s.l = nil
	s.owner = false
	s.registry = nil
	s.handler = nil
	return moved
}

// Close releases the session.
// An owning session forces a full garbage-collection pass
// and then releases the VM handle;
// a borrowing session leaves the handle untouched.
// Close is safe on inert sessions and is idempotent.
func (s *State) Close() error {
	if s.l == nil {
		return nil
	}
	if s.owner {
		s.l.GC()
		s.l.Close()
	}
	s.l = nil
	s.owner = false
	return nil
}

// String identifies the session by its VM handle.
// Inert sessions render as "sela.State(inert)".
func (s *State) String() string {
	if s.l == nil {
		return "sela.State(inert)"
	}
	return fmt.Sprintf("sela.State(%p)", s.l)
}

// Handle returns the underlying VM handle,
// or nil for an inert session.
// The handle is shared, not duplicated:
// the caller must respect the same single-threaded
// and stack-balance discipline as the session itself.
func (s *State) Handle() *lua.State {
	return s.l
}

// Load compiles and immediately runs the script at path.
// It reports whether the script ran to completion.
// On a syntax error, a file error, or a runtime error,
// the error message is forwarded to the exception handler
// and Load returns false.
// The VM stack is left at the depth it was found.
func (s *State) Load(path string) bool {
	if s.l == nil {
		return false
	}
	defer SaveStack(s.l).Restore()

	if err := lua.LoadFile(s.l, path); err != nil {
		code := classify(err)
		var fallback string
		switch code {
		case statuses.fileError:
			fallback = path + ": file error"
		default:
			fallback = path + ": syntax error"
		}
		s.handler.Handle(code, s.topMessage(fallback), capturedException(err))
		return false
	}
	if err := s.l.Call(0, lua.MultipleReturns); err != nil {
		s.handler.Handle(classify(err), s.topMessage(path+": dofile failed"), capturedException(err))
		return false
	}
	return true
}

// Do compiles and runs an inline chunk of code.
// It reports whether the chunk ran to completion.
// On failure the error is forwarded to the exception handler.
// The VM stack is left at the depth it was found.
func (s *State) Do(code string) bool {
	if s.l == nil {
		return false
	}
	defer SaveStack(s.l).Restore()

	if err := lua.DoString(s.l, code, "(inline)"); err != nil {
		s.handler.HandleTopOfStack(classify(err), s.l, capturedException(err))
		return false
	}
	return true
}

// OpenLibrary loads a named library module into the VM,
// calling loader and storing its result
// in the module table and as a global under name.
// Errors are forwarded to the exception handler.
func (s *State) OpenLibrary(name string, loader lua.Function) bool {
	if s.l == nil {
		return false
	}
	defer SaveStack(s.l).Restore()

	if err := lua.Require(s.l, name, true, loader); err != nil {
		s.handler.Handle(classify(err), err.Error(), capturedException(err))
		return false
	}
	return true
}

// HandleExceptionsPrintingToStdOut installs the default handler:
// print the message to standard output and continue.
func (s *State) HandleExceptionsPrintingToStdOut() {
	if s.l == nil {
		return
	}
	s.handler = NewPrintHandler(nil)
}

// HandleExceptionsWith installs fn as the exception handler,
// fully replacing the previous one.
func (s *State) HandleExceptionsWith(fn HandlerFunc) {
	if s.l == nil {
		return
	}
	s.handler = NewExceptionHandler(fn)
}

// ForceGC requests a full, blocking garbage-collection cycle.
// It is idempotent and safe to call at any time,
// including right before Close.
func (s *State) ForceGC() {
	if s.l == nil {
		return
	}
	s.l.GC()
}

// InteractiveDebug drops into the VM's interactive debug loop
// (debug.debug()) when the debug library is loaded.
// Best effort: errors are swallowed.
func (s *State) InteractiveDebug() {
	if s.l == nil {
		return
	}
	defer SaveStack(s.l).Restore()
	_ = lua.DoString(s.l, "debug.debug()", "(interactive)")
}

// Size returns the current depth of the VM evaluation stack,
// or 0 for an inert session.
// It exists mainly to observe the stack-balance invariant in tests.
func (s *State) Size() int {
	if s.l == nil {
		return 0
	}
	return s.l.Top()
}

// Index returns a [Selector] bound to the global with the given name.
// Index itself does not touch the VM stack.
func (s *State) Index(name string) *Selector {
	return &Selector{
		l:        s.l,
		registry: s.registry,
		handler:  s.handler,
		name:     name,
	}
}

// GlobalNames enumerates the VM's global namespace.
// String keys are collected as-is;
// numeric keys are formatted with the general floating-point format,
// which can lose precision for large integers
// (behavior kept for compatibility);
// keys of any other type are silently skipped.
// The VM stack is left exactly as found.
// An inert session yields an empty sequence.
func (s *State) GlobalNames() []string {
	if s.l == nil {
		return nil
	}
	defer SaveStack(s.l).Restore()

	var names []string
	s.l.PushGlobalTable()
	tableIndex := s.l.AbsIndex(-1)
	s.l.PushNil()
	for s.l.Next(tableIndex) {
		switch s.l.Type(-2) {
		case lua.TypeString:
			name, _ := s.l.ToString(-2)
			names = append(names, name)
		case lua.TypeNumber:
			n, _ := s.l.ToNumber(-2)
			names = append(names, fmt.Sprintf("%g", n))
		}
		s.l.Pop(1)
	}
	return names
}

// topMessage returns the string on top of the VM stack,
// or fallback if the top holds no string.
func (s *State) topMessage(fallback string) string {
	if s.l.Top() > 0 {
		if msg, ok := s.l.ToString(-1); ok {
			return msg
		}
	}
	return fallback
}
