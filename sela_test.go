// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package sela

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sela.dev/pkg/internal/lua"
)

// recordingHandler collects every handler invocation.
type recordingHandler struct {
	codes    []int
	messages []string
	captured []error
}

func (h *recordingHandler) fn(code int, msg string, ex error) {
	h.codes = append(h.codes, code)
	h.messages = append(h.messages, msg)
	h.captured = append(h.captured, ex)
}

func newTestSession(t *testing.T) (*State, *recordingHandler) {
	t.Helper()
	s, err := NewState(true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	h := new(recordingHandler)
	s.HandleExceptionsWith(h.fn)
	return s, h
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.lua")
	if err := os.WriteFile(path, []byte(content), 0o666); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStackBalance(t *testing.T) {
	s, _ := newTestSession(t)
	good := writeScript(t, "x = 1 return x")

	steps := []struct {
		name string
		op   func() bool
	}{
		{"DoSuccess", func() bool { return s.Do("y = 2") }},
		{"DoSyntaxError", func() bool { return s.Do("this is not valid syntax !!!") }},
		{"DoRuntimeError", func() bool { return s.Do("error('nope')") }},
		{"LoadSuccess", func() bool { return s.Load(good) }},
		{"LoadMissing", func() bool { return s.Load("does-not-exist.lua") }},
		{"OpenLibrary", func() bool {
			return s.OpenLibrary("stub", func(l *lua.State) (int, error) {
				l.CreateTable(0, 0)
				return 1, nil
			})
		}},
		{"GlobalNames", func() bool { s.GlobalNames(); return true }},
	}
	for _, step := range steps {
		before := s.Size()
		step.op()
		if after := s.Size(); after != before {
			t.Errorf("%s: Size() = %d, want %d", step.name, after, before)
		}
	}
}

func TestOpenStandardLibraries(t *testing.T) {
	withLibs, err := NewState(true)
	if err != nil {
		t.Fatal(err)
	}
	defer withLibs.Close()
	if !withLibs.Index("print").Exists() {
		t.Error("print does not resolve in a session with standard libraries")
	}

	bare, err := NewState(false)
	if err != nil {
		t.Fatal(err)
	}
	defer bare.Close()
	if bare.Index("print").Exists() {
		t.Error("print resolves in a session without standard libraries")
	}
}

func TestLoadMissingFile(t *testing.T) {
	s, h := newTestSession(t)
	before := s.Size()

	if s.Load("does-not-exist.lua") {
		t.Error("Load of a missing file returned true")
	}
	if len(h.codes) != 1 {
		t.Fatalf("handler ran %d times, want 1", len(h.codes))
	}
	if got := h.codes[0]; got != lua.StatusFileError {
		t.Errorf("handler code = %d, want %d", got, lua.StatusFileError)
	}
	if got := s.Size(); got != before {
		t.Errorf("Size() = %d, want %d", got, before)
	}
}

func TestDoSyntaxError(t *testing.T) {
	s, h := newTestSession(t)
	if s.Do("this is not valid syntax !!!") {
		t.Error("Do of invalid syntax returned true")
	}
	if len(h.codes) != 1 {
		t.Fatalf("handler ran %d times, want 1", len(h.codes))
	}
	if got := h.codes[0]; got != lua.StatusSyntaxError {
		t.Errorf("handler code = %d, want %d", got, lua.StatusSyntaxError)
	}
}

func TestDoSetsGlobal(t *testing.T) {
	s, _ := newTestSession(t)
	if !s.Do("x = 1") {
		t.Fatal("Do returned false")
	}
	names := s.GlobalNames()
	if !slices.Contains(names, "x") {
		t.Errorf("GlobalNames() = %q does not contain %q", names, "x")
	}
}

func TestLoadRunsScript(t *testing.T) {
	s, h := newTestSession(t)
	path := writeScript(t, "answer = 21 * 2")
	if !s.Load(path) {
		t.Fatalf("Load failed: %v", h.messages)
	}
	if n, ok := s.Index("answer").Int(); !ok || n != 42 {
		t.Errorf("answer = %d, %t; want 42, true", n, ok)
	}
}

func TestLoadRuntimeError(t *testing.T) {
	s, h := newTestSession(t)
	path := writeScript(t, "error('script failure')")
	if s.Load(path) {
		t.Error("Load returned true for a failing script")
	}
	if len(h.codes) != 1 {
		t.Fatalf("handler ran %d times, want 1", len(h.codes))
	}
	if got := h.codes[0]; got != lua.StatusRuntimeError {
		t.Errorf("handler code = %d, want %d", got, lua.StatusRuntimeError)
	}
	if got, want := h.messages[0], "script failure"; got != want {
		t.Errorf("handler message = %q, want %q", got, want)
	}
}

func TestHandlerReplacement(t *testing.T) {
	s, first := newTestSession(t)
	second := new(recordingHandler)

	s.Do("error('one')")
	s.HandleExceptionsWith(second.fn)
	s.Do("error('two')")

	if diff := cmp.Diff([]string{"one"}, first.messages); diff != "" {
		t.Errorf("first handler messages (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"two"}, second.messages); diff != "" {
		t.Errorf("second handler messages (-want +got):\n%s", diff)
	}

	// Reinstalling the default print handler
	// stops routing errors to the custom one.
	s.HandleExceptionsPrintingToStdOut()
	s.Do("error('three')")
	if len(second.messages) != 1 {
		t.Errorf("second handler ran %d times after replacement, want 1", len(second.messages))
	}
}

func TestString(t *testing.T) {
	s, _ := newTestSession(t)
	if got, want := s.String(), fmt.Sprintf("sela.State(%p)", s.Handle()); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	moved := s.Move()
	defer moved.Close()
	if got, want := s.String(), "sela.State(inert)"; got != want {
		t.Errorf("after Move, String() = %q, want %q", got, want)
	}
}

func TestMove(t *testing.T) {
	source, _ := newTestSession(t)
	if !source.Do("x = 7") {
		t.Fatal("Do failed")
	}

	dest := source.Move()
	defer dest.Close()

	if got := source.Size(); got != 0 {
		t.Errorf("moved-from Size() = %d, want 0", got)
	}
	if source.Do("y = 1") {
		t.Error("moved-from Do returned true")
	}
	if names := source.GlobalNames(); len(names) != 0 {
		t.Errorf("moved-from GlobalNames() = %q, want empty", names)
	}
	if source.Index("x").Exists() {
		t.Error("moved-from Index resolves globals")
	}
	if err := source.Close(); err != nil {
		t.Errorf("moved-from Close: %v", err)
	}

	if n, ok := dest.Index("x").Int(); !ok || n != 7 {
		t.Errorf("destination x = %d, %t; want 7, true", n, ok)
	}
}

func TestBorrowingCloseKeepsHandle(t *testing.T) {
	owner, _ := newTestSession(t)

	borrower := Wrap(owner.Handle())
	borrower.HandleExceptionsWith(func(code int, msg string, ex error) {
		t.Errorf("borrower handler: %d %q", code, msg)
	})
	if !borrower.Do("shared = 'yes'") {
		t.Fatal("borrower Do failed")
	}
	if err := borrower.Close(); err != nil {
		t.Fatal(err)
	}

	// The handle must survive the borrowing session.
	if v, ok := owner.Index("shared").String(); !ok || v != "yes" {
		t.Errorf("shared = %q, %t; want %q, true", v, ok, "yes")
	}

	second := Wrap(owner.Handle())
	defer second.Close()
	if !second.Do("shared = 'again'") {
		t.Error("second borrower Do failed")
	}
}

func TestGlobalNamesNumericKeys(t *testing.T) {
	s, _ := newTestSession(t)

	l := s.Handle()
	defer SaveStack(l).Restore()
	l.PushGlobalTable()
	l.PushInteger(2)
	l.PushString("numeric key")
	if err := l.RawSet(-3); err != nil {
		t.Fatal(err)
	}
	l.PushBoolean(true)
	l.PushString("boolean key")
	if err := l.RawSet(-3); err != nil {
		t.Fatal(err)
	}
	l.Pop(1)

	names := s.GlobalNames()
	if !slices.Contains(names, "2") {
		t.Errorf("GlobalNames() = %q does not contain the numeric key %q", names, "2")
	}
	for _, name := range names {
		if name == "true" {
			t.Error("GlobalNames() contains a boolean key")
		}
	}
}

func TestSelector(t *testing.T) {
	s, h := newTestSession(t)

	sel := s.Index("answer")
	if sel.Exists() {
		t.Error("unset global exists")
	}
	if !sel.Set(42) {
		t.Fatal("Set failed")
	}
	if n, ok := sel.Int(); !ok || n != 42 {
		t.Errorf("Int() = %d, %t; want 42, true", n, ok)
	}
	if got := sel.Type(); got != lua.TypeNumber {
		t.Errorf("Type() = %v, want %v", got, lua.TypeNumber)
	}

	if !s.Do("function double(n) return 2 * n end") {
		t.Fatal("Do failed")
	}
	results, ok := s.Index("double").Call(21)
	if !ok {
		t.Fatalf("Call failed: %v", h.messages)
	}
	if diff := cmp.Diff([]any{int64(42)}, results); diff != "" {
		t.Errorf("Call results (-want +got):\n%s", diff)
	}

	// A call on a non-function funnels through the handler.
	before := s.Size()
	if _, ok := s.Index("answer").Call(); ok {
		t.Error("Call on a number succeeded")
	}
	if len(h.codes) == 0 {
		t.Error("handler did not run for a bad call")
	}
	if got := s.Size(); got != before {
		t.Errorf("Size() = %d, want %d", got, before)
	}
}

func TestCrossBoundaryException(t *testing.T) {
	s, h := newTestSession(t)

	if !s.Index("explode").Set(lua.Function(func(l *lua.State) (int, error) {
		panic("host panic")
	})) {
		t.Fatal("Set failed")
	}
	if s.Do("explode()") {
		t.Error("Do returned true for a panicking callback")
	}
	if len(h.captured) != 1 {
		t.Fatalf("handler ran %d times, want 1", len(h.captured))
	}
	ex := h.captured[0]
	if ex == nil {
		t.Fatal("captured exception is nil")
	}
	var cbErr *lua.CallbackError
	if !errors.As(ex, &cbErr) {
		t.Fatalf("captured exception %v is not a *lua.CallbackError", ex)
	}
	if got, want := cbErr.Value, any("host panic"); got != want {
		t.Errorf("CallbackError.Value = %v, want %v", got, want)
	}

	// An ordinary VM error carries no captured exception.
	s.Do("error('plain')")
	if len(h.captured) != 2 || h.captured[1] != nil {
		t.Error("VM-originated error carried a captured exception")
	}
}

func TestHandlerRethrow(t *testing.T) {
	s, _ := newTestSession(t)
	s.HandleExceptionsWith(func(code int, msg string, ex error) {
		if ex != nil {
			panic(ex)
		}
	})
	if !s.Index("explode").Set(lua.Function(func(l *lua.State) (int, error) {
		panic("rethrown")
	})) {
		t.Fatal("Set failed")
	}

	defer func() {
		p := recover()
		if p == nil {
			t.Fatal("handler rethrow did not propagate")
		}
		if _, ok := p.(error); !ok {
			t.Errorf("recovered %T, want error", p)
		}
	}()
	s.Do("explode()")
}

func TestForceGC(t *testing.T) {
	s, _ := newTestSession(t)
	s.ForceGC()
	s.ForceGC()

	inert := s.Move()
	defer inert.Close()
	s.ForceGC()
}

func TestCloseIdempotent(t *testing.T) {
	s, err := NewState(false)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Do("x = 1") {
		t.Error("Do on a closed session returned true")
	}
}
