// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestState(tb testing.TB, output io.Writer) *State {
	tb.Helper()
	l, err := NewState()
	if err != nil {
		tb.Fatal(err)
	}
	if output == nil {
		output = io.Discard
	}
	opts := &StdlibOptions{
		Base: &BaseOptions{Output: output},
		IO:   &IOOptions{Stdin: strings.NewReader(""), Stdout: output},
	}
	if err := OpenLibraries(l, opts); err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { l.Close() })
	return l
}

// globalValue reads a global as a plain Go value
// without disturbing the stack.
func globalValue(l *State, name string) any {
	defer l.SetTop(l.Top())
	switch l.Global(name) {
	case TypeNil:
		l.Pop(1)
		return nil
	case TypeBoolean:
		defer l.Pop(1)
		return l.ToBoolean(-1)
	case TypeNumber:
		defer l.Pop(1)
		if l.IsInteger(-1) {
			n, _ := l.ToInteger(-1)
			return n
		}
		n, _ := l.ToNumber(-1)
		return n
	case TypeString:
		defer l.Pop(1)
		s, _ := l.ToString(-1)
		return s
	default:
		l.Pop(1)
		return nil
	}
}

func TestStackOps(t *testing.T) {
	l, err := NewState()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if got := l.Top(); got != 0 {
		t.Errorf("Top() = %d, want 0", got)
	}
	l.PushInteger(1)
	l.PushString("two")
	l.PushBoolean(true)
	if got := l.Top(); got != 3 {
		t.Errorf("Top() = %d, want 3", got)
	}
	if got := l.AbsIndex(-1); got != 3 {
		t.Errorf("AbsIndex(-1) = %d, want 3", got)
	}
	if s, _ := l.ToString(2); s != "two" {
		t.Errorf("ToString(2) = %q, want %q", s, "two")
	}

	l.PushValue(1)
	if n, _ := l.ToInteger(-1); n != 1 {
		t.Errorf("ToInteger(-1) = %d, want 1", n)
	}
	l.Insert(1)
	if n, _ := l.ToInteger(1); n != 1 {
		t.Errorf("after Insert(1), ToInteger(1) = %d, want 1", n)
	}
	l.Remove(1)
	if got := l.Top(); got != 3 {
		t.Errorf("after Remove(1), Top() = %d, want 3", got)
	}

	l.SetTop(1)
	if got := l.Top(); got != 1 {
		t.Errorf("after SetTop(1), Top() = %d, want 1", got)
	}
	l.Pop(1)
	if got := l.Top(); got != 0 {
		t.Errorf("after Pop(1), Top() = %d, want 0", got)
	}
}

func TestSetTopNegative(t *testing.T) {
	l, err := NewState()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	l.PushInteger(1)
	l.Pop(1)
	if got := l.Top(); got != 0 {
		t.Errorf("after popping the only element, Top() = %d, want 0", got)
	}

	l.PushInteger(1)
	l.PushInteger(2)
	l.PushInteger(3)
	l.SetTop(-1)
	if got := l.Top(); got != 3 {
		t.Errorf("after SetTop(-1), Top() = %d, want 3", got)
	}
	l.SetTop(-3)
	if got := l.Top(); got != 1 {
		t.Errorf("after SetTop(-3), Top() = %d, want 1", got)
	}
	l.Pop(l.Top())
	if got := l.Top(); got != 0 {
		t.Errorf("after Pop(Top()), Top() = %d, want 0", got)
	}

	// A callback frame must be able to empty itself
	// without touching its caller's slots.
	l.PushFunction(func(l *State) (int, error) {
		l.Pop(l.Top())
		if got := l.Top(); got != 0 {
			t.Errorf("inside callback, Top() = %d after full pop, want 0", got)
		}
		return 0, nil
	})
	l.PushInteger(10)
	l.PushInteger(20)
	if err := l.Call(2, 0); err != nil {
		t.Fatal(err)
	}
	if got := l.Top(); got != 0 {
		t.Errorf("after Call, Top() = %d, want 0", got)
	}
}

func TestDoString(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		globals map[string]any
	}{
		{
			name:    "Assignment",
			src:     "x = 1",
			globals: map[string]any{"x": int64(1)},
		},
		{
			name: "IntegerArithmetic",
			src:  "a = 7 // 2 b = 7 % 2 c = 2 * 3 - 1",
			globals: map[string]any{
				"a": int64(3), "b": int64(1), "c": int64(5),
			},
		},
		{
			name: "FloatArithmetic",
			src:  "a = 7 / 2 b = 2 ^ 10 c = -7 // 2",
			globals: map[string]any{
				"a": 3.5, "b": 1024.0, "c": int64(-4),
			},
		},
		{
			name:    "Concat",
			src:     "s = 'a' .. 1 .. '!'",
			globals: map[string]any{"s": "a1!"},
		},
		{
			name:    "Comparison",
			src:     "a = 1 < 2 b = 'x' >= 'y' c = 1 == 1.0",
			globals: map[string]any{"a": true, "b": false, "c": true},
		},
		{
			name:    "WhileLoop",
			src:     "s = 0 i = 1 while i <= 10 do s = s + i i = i + 1 end",
			globals: map[string]any{"s": int64(55)},
		},
		{
			name:    "NumericFor",
			src:     "s = 0 for i = 1, 10 do s = s + i end",
			globals: map[string]any{"s": int64(55)},
		},
		{
			name:    "NumericForStep",
			src:     "s = 0 for i = 10, 1, -2 do s = s + i end",
			globals: map[string]any{"s": int64(30)},
		},
		{
			name:    "RepeatBreak",
			src:     "n = 0 repeat n = n + 1 if n > 3 then break end until false",
			globals: map[string]any{"n": int64(4)},
		},
		{
			name:    "GenericFor",
			src:     "t = {10, 20, 30} s = 0 for _, v in ipairs(t) do s = s + v end",
			globals: map[string]any{"s": int64(60)},
		},
		{
			name:    "PairsCount",
			src:     "t = {a = 1, b = 2, c = 3} n = 0 for _ in pairs(t) do n = n + 1 end",
			globals: map[string]any{"n": int64(3)},
		},
		{
			name:    "MultipleReturns",
			src:     "function f() return 1, 2 end a, b = f()",
			globals: map[string]any{"a": int64(1), "b": int64(2)},
		},
		{
			name:    "Varargs",
			src:     "function f(...) return select('#', ...) end n = f(1, 2, 3)",
			globals: map[string]any{"n": int64(3)},
		},
		{
			name: "Closure",
			src: `local function counter()
				local n = 0
				return function() n = n + 1 return n end
			end
			local c = counter()
			c() c()
			x = c()`,
			globals: map[string]any{"x": int64(3)},
		},
		{
			name:    "MethodCall",
			src:     "t = {n = 5} function t:get() return self.n end x = t:get()",
			globals: map[string]any{"x": int64(5)},
		},
		{
			name:    "Length",
			src:     "a = #'hello' b = #{10, 20, 30}",
			globals: map[string]any{"a": int64(5), "b": int64(3)},
		},
		{
			name:    "TableIndexing",
			src:     "t = {} t[1] = 'x' t.k = 'y' a = t[1] b = t.k c = t[1.0]",
			globals: map[string]any{"a": "x", "b": "y", "c": "x"},
		},
		{
			name:    "StringLibrary",
			src:     "a = string.rep('ab', 3, '-') b = string.sub('hello', 2, 4) c = ('up'):upper()",
			globals: map[string]any{"a": "ab-ab-ab", "b": "ell", "c": "UP"},
		},
		{
			name:    "StringFind",
			src:     "a, b = string.find('hello world', 'world')",
			globals: map[string]any{"a": int64(7), "b": int64(11)},
		},
		{
			name:    "StringFormat",
			src:     "s = string.format('%d-%s-%.1f', 42, 'x', 1.25)",
			globals: map[string]any{"s": "42-x-1.2"},
		},
		{
			name:    "TableLibrary",
			src:     "t = {3, 1, 2} table.sort(t) s = table.concat(t, ',') table.insert(t, 1, 9) x = t[1]",
			globals: map[string]any{"s": "1,2,3", "x": int64(9)},
		},
		{
			name:    "MathLibrary",
			src:     "a = math.floor(3.7) b = math.max(1, 5, 3) c = math.type(1) d = math.type(1.0)",
			globals: map[string]any{"a": int64(3), "b": int64(5), "c": "integer", "d": "float"},
		},
		{
			name:    "ToNumber",
			src:     "a = tonumber('42') b = tonumber('3.5') c = tonumber('ff', 16) d = tonumber('nope')",
			globals: map[string]any{"a": int64(42), "b": 3.5, "c": int64(255), "d": nil},
		},
		{
			name:    "ToString",
			src:     "a = tostring(42) b = tostring(nil) c = tostring(true)",
			globals: map[string]any{"a": "42", "b": "nil", "c": "true"},
		},
		{
			name:    "PCallError",
			src:     "ok, err = pcall(function() error('boom') end)",
			globals: map[string]any{"ok": false, "err": "boom"},
		},
		{
			name:    "PCallSuccess",
			src:     "ok, v = pcall(function() return 7 end)",
			globals: map[string]any{"ok": true, "v": int64(7)},
		},
		{
			name:    "PCallRuntimeFault",
			src:     "ok = pcall(function() local t = nil return t.x end)",
			globals: map[string]any{"ok": false},
		},
		{
			name:    "JSONRoundTrip",
			src:     "local t = json.decode('{\"a\": [1, 2], \"b\": \"s\"}') x = t.a[2] y = t.b j = json.encode({1, 2, 3})",
			globals: map[string]any{"x": int64(2), "y": "s", "j": "[1,2,3]"},
		},
		{
			name:    "Version",
			src:     "v = _VERSION",
			globals: map[string]any{"v": Version},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			l := newTestState(t, nil)
			if err := DoString(l, test.src, "(test)"); err != nil {
				t.Fatalf("DoString(%q): %v", test.src, err)
			}
			got := make(map[string]any)
			for name := range test.globals {
				got[name] = globalValue(l, name)
			}
			if diff := cmp.Diff(test.globals, got); diff != "" {
				t.Errorf("globals after %q (-want +got):\n%s", test.src, diff)
			}
		})
	}
}

func TestPrint(t *testing.T) {
	out := new(strings.Builder)
	l := newTestState(t, out)
	if err := DoString(l, "print('a', 1, true)", "(test)"); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "a\t1\ttrue\n"; got != want {
		t.Errorf("print output = %q, want %q", got, want)
	}
}

func TestCallGoFunction(t *testing.T) {
	l := newTestState(t, nil)
	l.PushFunction(func(l *State) (int, error) {
		a, err := CheckInteger(l, 1)
		if err != nil {
			return 0, err
		}
		b, err := CheckInteger(l, 2)
		if err != nil {
			return 0, err
		}
		l.PushInteger(a + b)
		return 1, nil
	})
	l.SetGlobal("add")

	if err := DoString(l, "x = add(2, 3)", "(test)"); err != nil {
		t.Fatal(err)
	}
	if got := globalValue(l, "x"); got != int64(5) {
		t.Errorf("x = %v, want 5", got)
	}
}

func TestCallErrorLeavesMessage(t *testing.T) {
	l := newTestState(t, nil)
	top := l.Top()
	if err := l.LoadString("error('kaboom')", "(test)", "t"); err != nil {
		t.Fatal(err)
	}
	err := l.Call(0, MultipleReturns)
	if err == nil {
		t.Fatal("Call succeeded, want error")
	}
	if got := StatusCode(err); got != StatusRuntimeError {
		t.Errorf("StatusCode(err) = %d, want %d", got, StatusRuntimeError)
	}
	if got := l.Top(); got != top+1 {
		t.Fatalf("Top() = %d, want %d (the error message)", got, top+1)
	}
	if msg, _ := l.ToString(-1); msg != "kaboom" {
		t.Errorf("message = %q, want %q", msg, "kaboom")
	}
	l.Pop(1)
}

func TestCallbackPanic(t *testing.T) {
	l := newTestState(t, nil)
	l.PushFunction(func(l *State) (int, error) {
		panic("host failure")
	})
	l.SetGlobal("explode")

	if err := l.LoadString("explode()", "(test)", "t"); err != nil {
		t.Fatal(err)
	}
	err := l.Call(0, 0)
	if err == nil {
		t.Fatal("Call succeeded, want error")
	}
	var cbErr *CallbackError
	if !errors.As(err, &cbErr) {
		t.Fatalf("error %v does not wrap *CallbackError", err)
	}
	if got, want := cbErr.Value, any("host failure"); got != want {
		t.Errorf("CallbackError.Value = %v, want %v", got, want)
	}
	l.Pop(1)
}

func TestNextDeterministic(t *testing.T) {
	l := newTestState(t, nil)
	if err := DoString(l, "t = {b = 2, a = 1, [10] = 'x', c = 3}", "(test)"); err != nil {
		t.Fatal(err)
	}

	iterate := func() []string {
		var keys []string
		l.Global("t")
		tableIndex := l.AbsIndex(-1)
		l.PushNil()
		for l.Next(tableIndex) {
			keys = append(keys, ToStringAux(l, -2))
			l.Pop(1)
		}
		l.Pop(1)
		return keys
	}
	first := iterate()
	second := iterate()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("iteration order changed between runs (-first +second):\n%s", diff)
	}
	if len(first) != 4 {
		t.Errorf("len(keys) = %d, want 4", len(first))
	}
}

func TestLoadSyntaxError(t *testing.T) {
	l := newTestState(t, nil)
	top := l.Top()
	err := l.LoadString("this is not valid syntax !!!", "(test)", "t")
	if err == nil {
		t.Fatal("LoadString succeeded, want error")
	}
	if got := StatusCode(err); got != StatusSyntaxError {
		t.Errorf("StatusCode(err) = %d, want %d", got, StatusSyntaxError)
	}
	if got := l.Top(); got != top+1 {
		t.Fatalf("Top() = %d, want %d (the error message)", got, top+1)
	}
	if msg, _ := l.ToString(-1); msg == "" {
		t.Error("error message is empty")
	}
	l.Pop(1)
}

func TestLoadFileMissing(t *testing.T) {
	l := newTestState(t, nil)
	top := l.Top()
	err := LoadFile(l, "no/such/file.lua")
	if err == nil {
		t.Fatal("LoadFile succeeded, want error")
	}
	if got := StatusCode(err); got != StatusFileError {
		t.Errorf("StatusCode(err) = %d, want %d", got, StatusFileError)
	}
	if got := l.Top(); got != top+1 {
		t.Fatalf("Top() = %d, want %d (the error message)", got, top+1)
	}
	l.Pop(1)
}

func TestRef(t *testing.T) {
	l := newTestState(t, nil)
	l.PushString("pinned")
	ref := l.Ref()
	if got := l.Top(); got != 0 {
		t.Fatalf("Top() after Ref = %d, want 0", got)
	}
	l.PushRef(ref)
	if s, _ := l.ToString(-1); s != "pinned" {
		t.Errorf("PushRef value = %q, want %q", s, "pinned")
	}
	l.Pop(1)
	l.Unref(ref)

	// The released reference number may be reused.
	l.PushString("other")
	ref2 := l.Ref()
	if ref2 != ref {
		t.Logf("ref2 = %d (not reused from %d)", ref2, ref)
	}
	l.Unref(ref2)
}

func TestRequireCaches(t *testing.T) {
	l, err := NewState()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	calls := 0
	openf := func(l *State) (int, error) {
		calls++
		l.CreateTable(0, 0)
		return 1, nil
	}
	for i := 0; i < 2; i++ {
		if err := Require(l, "mod", false, openf); err != nil {
			t.Fatal(err)
		}
		if !l.IsTable(-1) {
			t.Fatalf("Require left a %v on the stack, want table", l.Type(-1))
		}
		l.Pop(1)
	}
	if calls != 1 {
		t.Errorf("loader ran %d times, want 1", calls)
	}
}

func TestStackOverflow(t *testing.T) {
	l := newTestState(t, nil)
	err := DoString(l, "local function f() return f() + 1 end f()", "(test)")
	if err == nil {
		t.Fatal("infinite recursion did not error")
	}
	if msg := err.Error(); !strings.Contains(msg, "stack overflow") {
		t.Errorf("error = %q, want it to mention stack overflow", msg)
	}
}
