// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

/*
Package lua implements an interpreter for a subset of Lua 5.4
behind the classic C-API-shaped embedding surface:
a value stack manipulated with Push and To methods,
chunk loading with [State.Load], protected calls with [State.Call],
and table traversal with [State.Next].

The subset excludes metatables, coroutines, goto, bitwise operators,
string patterns, and binary chunks.
*/
package lua

import (
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"

	"sela.dev/pkg/internal/luasyntax"
)

// Version information for the implemented language.
const (
	VersionNum = 504
	Version    = "Lua 5.4"
)

// MultipleReturns is the option for nResults in [State.Call]
// that accepts all results from the called function.
const MultipleReturns = -1

const maxStack = 1_000_000

// State is an opaque handle to one interpreter instance:
// a value stack, a global table, and a registry.
// A State is not safe for concurrent use.
type State struct {
	stack    []any
	bases    []int
	globals  *table
	registry *table
	refFree  []int64
	refNext  int64
	depth    int
	closed   bool
}

// NewState creates a fresh interpreter state with an empty global table.
// No standard libraries are opened; see [OpenLibraries] and [Require].
func NewState() (*State, error) {
	return &State{
		globals:  newTable(),
		registry: newTable(),
		refNext:  1,
	}, nil
}

// Close releases the state.
// After Close, the state must not be used.
// Close is idempotent.
func (l *State) Close() error {
	l.stack = nil
	l.bases = nil
	l.globals = nil
	l.registry = nil
	l.closed = true
	return nil
}

// base returns the stack index
// where the current frame's slot 1 lives.
func (l *State) base() int {
	if len(l.bases) == 0 {
		return 0
	}
	return l.bases[len(l.bases)-1]
}

func (l *State) stackIndex(idx int) (int, error) {
	base := l.base()
	switch {
	case idx == 0:
		return -1, fmt.Errorf("invalid index 0")
	case idx > 0:
		i := base + idx - 1
		if i >= base+maxStack {
			return -1, fmt.Errorf("unacceptable index %d", idx)
		}
		return i, nil
	default:
		i := len(l.stack) + idx
		if i < base {
			return -1, fmt.Errorf("invalid index %d (top = %d)", idx, l.Top())
		}
		return i, nil
	}
}

func (l *State) valueByIndex(idx int) (v any, valid bool) {
	i, err := l.stackIndex(idx)
	if err != nil {
		panic(err)
	}
	if i >= len(l.stack) {
		return nil, false
	}
	return l.stack[i], true
}

// Top returns the index of the top element in the stack.
// Because indices start at 1,
// this result is equal to the number of elements in the stack;
// in particular, 0 means an empty stack.
func (l *State) Top() int {
	if l.closed {
		return 0
	}
	return len(l.stack) - l.base()
}

// AbsIndex converts the acceptable index idx
// into an equivalent absolute index.
func (l *State) AbsIndex(idx int) int {
	i, err := l.stackIndex(idx)
	if err != nil {
		panic(err)
	}
	return i - l.base() + 1
}

// SetTop accepts any index, or 0, and sets the stack top to this index.
// If the new top is greater than the old one,
// the new elements are filled with nil.
// If idx is 0, all stack elements are removed.
func (l *State) SetTop(idx int) {
	if l.closed {
		return
	}
	var i int
	switch {
	case idx >= 0:
		i = l.base() + idx
	default:
		// Negative indices count down from the top;
		// -(top+1) empties the frame.
		i = len(l.stack) + idx + 1
		if i < l.base() {
			panic(fmt.Errorf("invalid new top %d (top = %d)", idx, l.Top()))
		}
	}
	l.setTop(i)
}

func (l *State) setTop(i int) {
	for len(l.stack) < i {
		l.stack = append(l.stack, nil)
	}
	clear(l.stack[i:])
	l.stack = l.stack[:i]
}

// Pop pops n elements from the stack.
func (l *State) Pop(n int) {
	l.SetTop(-n - 1)
}

// Rotate rotates the stack elements
// between the valid index idx and the top of the stack,
// n positions in the direction of the top for positive n.
func (l *State) Rotate(idx, n int) {
	i, err := l.stackIndex(idx)
	if err != nil {
		panic(err)
	}
	s := l.stack[i:]
	absN := n
	if n < 0 {
		absN = -n
	}
	if absN > len(s) {
		panic("invalid rotation")
	}
	var m int
	if n >= 0 {
		m = len(s) - n
	} else {
		m = -n
	}
	slices.Reverse(s[:m])
	slices.Reverse(s[m:])
	slices.Reverse(s)
}

// Insert moves the top element into the given valid index,
// shifting up the elements above this index to open space.
func (l *State) Insert(idx int) {
	l.Rotate(idx, 1)
}

// Remove removes the element at the given valid index,
// shifting down the elements above this index to fill the gap.
func (l *State) Remove(idx int) {
	l.Rotate(idx, -1)
	l.Pop(1)
}

// PushValue pushes a copy of the element at the given index onto the stack.
func (l *State) PushValue(idx int) {
	v, _ := l.valueByIndex(idx)
	l.push(v)
}

func (l *State) push(v any) {
	if len(l.stack) >= maxStack {
		panic(newRuntimeError("stack overflow"))
	}
	l.stack = append(l.stack, v)
}

// PushNil pushes a nil value onto the stack.
func (l *State) PushNil() { l.push(nil) }

// PushBoolean pushes a boolean onto the stack.
func (l *State) PushBoolean(b bool) { l.push(b) }

// PushInteger pushes an integer onto the stack.
func (l *State) PushInteger(i int64) { l.push(i) }

// PushNumber pushes a floating point number onto the stack.
func (l *State) PushNumber(n float64) { l.push(n) }

// PushString pushes a string onto the stack.
func (l *State) PushString(s string) { l.push(s) }

// PushFunction pushes a Go function onto the stack.
func (l *State) PushFunction(f Function) {
	l.push(&goFunction{id: nextID(), cb: f})
}

// PushNamedFunction pushes a Go function onto the stack,
// recording name for use in error messages.
func (l *State) PushNamedFunction(name string, f Function) {
	l.push(&goFunction{id: nextID(), name: name, cb: f})
}

// Type returns the type of the value in the given valid index,
// or [TypeNone] for a non-valid but acceptable index.
func (l *State) Type(idx int) Type {
	v, valid := l.valueByIndex(idx)
	if !valid {
		return TypeNone
	}
	return valueType(v)
}

// IsNil reports if the value at the given index is nil.
func (l *State) IsNil(idx int) bool { return l.Type(idx) == TypeNil }

// IsNone reports if the index is not valid.
func (l *State) IsNone(idx int) bool { return l.Type(idx) == TypeNone }

// IsNoneOrNil reports if the index is not valid
// or the value at this index is nil.
func (l *State) IsNoneOrNil(idx int) bool {
	tp := l.Type(idx)
	return tp == TypeNone || tp == TypeNil
}

// IsBoolean reports if the value at the given index is a boolean.
func (l *State) IsBoolean(idx int) bool { return l.Type(idx) == TypeBoolean }

// IsTable reports if the value at the given index is a table.
func (l *State) IsTable(idx int) bool { return l.Type(idx) == TypeTable }

// IsFunction reports if the value at the given index is a function.
func (l *State) IsFunction(idx int) bool { return l.Type(idx) == TypeFunction }

// IsNumber reports if the value at the given index is a number
// or a string convertible to a number.
func (l *State) IsNumber(idx int) bool {
	v, _ := l.valueByIndex(idx)
	_, ok := toNumber(v)
	return ok
}

// IsInteger reports if the value at the given index is a number
// represented as an integer.
func (l *State) IsInteger(idx int) bool {
	v, _ := l.valueByIndex(idx)
	_, ok := v.(int64)
	return ok
}

// IsString reports if the value at the given index is a string
// or a number (which is always convertible to a string).
func (l *State) IsString(idx int) bool {
	tp := l.Type(idx)
	return tp == TypeString || tp == TypeNumber
}

// ToBoolean converts the Lua value at the given index to a boolean.
// Like all tests in Lua, ToBoolean returns true
// for any value different from false and nil.
func (l *State) ToBoolean(idx int) bool {
	v, _ := l.valueByIndex(idx)
	return toBoolean(v)
}

// ToNumber converts the Lua value at the given index
// to a floating point number.
// The value must be a number or a string convertible to a number;
// otherwise, ToNumber returns (0, false).
func (l *State) ToNumber(idx int) (n float64, ok bool) {
	v, _ := l.valueByIndex(idx)
	return toNumber(v)
}

// ToInteger converts the Lua value at the given index
// to a signed 64-bit integer.
// The value must be an integer, a float with an integral value,
// or a string convertible to an integer;
// otherwise, ToInteger returns (0, false).
func (l *State) ToInteger(idx int) (n int64, ok bool) {
	v, _ := l.valueByIndex(idx)
	return toInteger(v)
}

// ToString converts the Lua value at the given index to a Go string.
// The value must be a string or a number;
// otherwise, ToString returns ("", false).
func (l *State) ToString(idx int) (s string, ok bool) {
	v, _ := l.valueByIndex(idx)
	return toString(v)
}

// ID returns a value identity for the table or function
// at the given index, or 0 for other types.
// Two values are identical if and only if their IDs are equal.
func (l *State) ID(idx int) uint64 {
	v, _ := l.valueByIndex(idx)
	switch v := v.(type) {
	case *table:
		return v.id
	case function:
		return v.functionID()
	default:
		return 0
	}
}

// RawEqual reports whether the values at the two given indices
// are primitively equal.
func (l *State) RawEqual(idx1, idx2 int) bool {
	v1, valid1 := l.valueByIndex(idx1)
	v2, valid2 := l.valueByIndex(idx2)
	return valid1 && valid2 && valuesEqual(v1, v2)
}

// RawLen returns the raw length of the string or table
// at the given index, or 0 for other types.
func (l *State) RawLen(idx int) int64 {
	v, _ := l.valueByIndex(idx)
	switch v := v.(type) {
	case string:
		return int64(len(v))
	case *table:
		return v.len()
	default:
		return 0
	}
}

// CreateTable creates a new empty table and pushes it onto the stack.
// The size hints are accepted for API compatibility and ignored.
func (l *State) CreateTable(nArr, nRec int) {
	l.push(newTable())
}

// PushGlobalTable pushes the global table onto the stack.
func (l *State) PushGlobalTable() {
	l.push(l.globals)
}

// Global pushes onto the stack the value of the global with the given name
// and returns the type of that value.
func (l *State) Global(name string) Type {
	if l.closed {
		return TypeNil
	}
	v := l.globals.get(name)
	l.push(v)
	return valueType(v)
}

// SetGlobal pops a value from the stack
// and sets it as the new value of the global with the given name.
func (l *State) SetGlobal(name string) {
	v := l.stack[len(l.stack)-1]
	l.Pop(1)
	l.globals.set(name, v)
}

// Field pushes onto the stack the value t[k],
// where t is the table at the given index,
// and returns the type of the pushed value.
func (l *State) Field(idx int, k string) (Type, error) {
	t, _ := l.valueByIndex(idx)
	tab, ok := t.(*table)
	if !ok {
		return TypeNil, newRuntimeError("attempt to index a %v value", valueType(t))
	}
	v := tab.get(k)
	l.push(v)
	return valueType(v), nil
}

// SetField does the equivalent of t[k] = v,
// where t is the table at the given index
// and v is the value on the top of the stack.
// The value is popped regardless of the outcome.
func (l *State) SetField(idx int, k string) error {
	t, _ := l.valueByIndex(idx)
	v := l.stack[len(l.stack)-1]
	l.Pop(1)
	tab, ok := t.(*table)
	if !ok {
		return newRuntimeError("attempt to index a %v value", valueType(t))
	}
	return tab.set(k, v)
}

// RawGet pushes t[k] onto the stack,
// where t is the table at the given index
// and k is the key on the top of the stack (which is popped),
// and returns the type of the pushed value.
func (l *State) RawGet(idx int) Type {
	t, _ := l.valueByIndex(idx)
	k := l.stack[len(l.stack)-1]
	l.Pop(1)
	tab, ok := t.(*table)
	if !ok {
		l.push(nil)
		return TypeNil
	}
	v := tab.get(k)
	l.push(v)
	return valueType(v)
}

// RawSet does the equivalent of t[k] = v,
// where t is the table at the given index,
// v is the value on the top of the stack,
// and k is the value just below the top.
// Both the key and the value are popped.
func (l *State) RawSet(idx int) error {
	t, _ := l.valueByIndex(idx)
	v := l.stack[len(l.stack)-1]
	k := l.stack[len(l.stack)-2]
	l.Pop(2)
	tab, ok := t.(*table)
	if !ok {
		return newRuntimeError("attempt to index a %v value", valueType(t))
	}
	return tab.set(k, v)
}

// RawIndex pushes t[n] onto the stack,
// where t is the table at the given index,
// and returns the type of the pushed value.
func (l *State) RawIndex(idx int, n int64) Type {
	t, _ := l.valueByIndex(idx)
	tab, ok := t.(*table)
	if !ok {
		l.push(nil)
		return TypeNil
	}
	v := tab.get(n)
	l.push(v)
	return valueType(v)
}

// RawSetIndex does the equivalent of t[n] = v,
// where t is the table at the given index
// and v is the value on the top of the stack (which is popped).
func (l *State) RawSetIndex(idx int, n int64) error {
	t, _ := l.valueByIndex(idx)
	v := l.stack[len(l.stack)-1]
	l.Pop(1)
	tab, ok := t.(*table)
	if !ok {
		return newRuntimeError("attempt to index a %v value", valueType(t))
	}
	return tab.set(n, v)
}

// Next pops a key from the stack
// and pushes a key-value pair from the table at the given index,
// the "next" pair after the given key.
// If there are no more elements in the table,
// Next returns false and pushes nothing.
// Start an iteration by pushing nil.
//
// Iteration order is the table's internal key order,
// which is deterministic for a given set of keys.
func (l *State) Next(idx int) bool {
	t, _ := l.valueByIndex(idx)
	k := l.stack[len(l.stack)-1]
	l.Pop(1)
	tab, ok := t.(*table)
	if !ok {
		return false
	}
	nextKey, value, ok := tab.next(k)
	if !ok {
		return false
	}
	l.push(nextKey)
	l.push(value)
	return true
}

// Concat concatenates the n values at the top of the stack,
// pops them, and leaves the result on the top.
// All values must be strings or numbers.
func (l *State) Concat(n int) error {
	if n == 0 {
		l.push("")
		return nil
	}
	parts := make([]string, 0, n)
	for i := len(l.stack) - n; i < len(l.stack); i++ {
		s, ok := toString(l.stack[i])
		if !ok {
			return newRuntimeError("attempt to concatenate a %v value", valueType(l.stack[i]))
		}
		parts = append(parts, s)
	}
	l.Pop(n)
	l.push(strings.Join(parts, ""))
	return nil
}

// Ref pops the value from the top of the stack,
// stores it in the registry,
// and returns the integer reference that names it.
// References remain valid until released with [State.Unref].
func (l *State) Ref() int64 {
	v := l.stack[len(l.stack)-1]
	l.Pop(1)
	var ref int64
	if n := len(l.refFree); n > 0 {
		ref = l.refFree[n-1]
		l.refFree = l.refFree[:n-1]
	} else {
		ref = l.refNext
		l.refNext++
	}
	l.registry.set(ref, v)
	return ref
}

// PushRef pushes the value named by a reference
// previously returned from [State.Ref].
func (l *State) PushRef(ref int64) {
	l.push(l.registry.get(ref))
}

// Unref releases a reference previously returned from [State.Ref].
// The reference number may be reused by later calls to Ref.
func (l *State) Unref(ref int64) {
	if l.closed || ref <= 0 {
		return
	}
	l.registry.set(ref, nil)
	l.refFree = append(l.refFree, ref)
}

// RegistryValue pushes the value stored in the registry
// under the given string key, creating a fresh table there
// if the key is unset, and returns whether the value existed.
func (l *State) RegistryValue(key string) bool {
	v := l.registry.get(key)
	if v == nil {
		t := newTable()
		l.registry.set(key, t)
		l.push(t)
		return false
	}
	l.push(v)
	return true
}

// GC runs a full garbage-collection cycle:
// the free list of released registry references is compacted
// and a collection of the host runtime is requested.
// GC is idempotent and safe to call at any time.
func (l *State) GC() {
	if l.closed {
		return
	}
	l.refFree = slices.Clip(l.refFree)
	runtime.GC()
}

// Load loads a Lua chunk without running it.
// If there are no errors,
// Load pushes the compiled chunk as a function on top of the stack.
// Otherwise, it pushes an error message
// and returns an error with status [StatusSyntaxError].
//
// The chunkName argument gives a name to the chunk
// for use in error messages.
// Only text chunks ("t" mode) are supported;
// the mode argument exists for API compatibility.
func (l *State) Load(r io.Reader, chunkName string, mode string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		msg := fmt.Sprintf("%s: %v", chunkName, err)
		l.push(msg)
		return &Error{Code: StatusSyntaxError, Err: err}
	}
	return l.LoadString(string(data), chunkName, mode)
}

// LoadString is like [State.Load], but reads from a string.
func (l *State) LoadString(s string, chunkName string, mode string) error {
	block, err := luasyntax.Parse(chunkName, s)
	if err != nil {
		l.push(err.Error())
		return &Error{Code: StatusSyntaxError, Err: err}
	}
	l.push(&luaFunction{
		id:    nextID(),
		chunk: chunkName,
		proto: &luasyntax.FunctionExpr{IsVararg: true, Body: *block},
	})
	return nil
}

// Call calls a function in protected mode.
//
// To do a call, push the function onto the stack
// followed by its arguments in direct order,
// then call Call with the number of arguments pushed.
// When the function returns,
// the function and its arguments are popped
// and the results are pushed,
// adjusted to nResults unless nResults is [MultipleReturns].
//
// If the call fails, the function and arguments are popped,
// the error message is pushed in their place,
// and Call returns an error with status [StatusRuntimeError].
// A Go panic that unwinds out of a Go function invoked by the chunk
// is captured as a [*CallbackError] in the returned error's chain.
func (l *State) Call(nArgs, nResults int) error {
	if l.closed {
		return &Error{Code: StatusRuntimeError, Err: newRuntimeError("state is closed")}
	}
	if l.Top() < nArgs+1 {
		return &Error{Code: StatusRuntimeError, Err: newRuntimeError("not enough elements in the stack")}
	}
	funcIndex := len(l.stack) - nArgs - 1
	fv := l.stack[funcIndex]
	args := slices.Clone(l.stack[funcIndex+1:])
	l.setTop(funcIndex)

	results, err := l.callValue(fv, args)
	if err != nil {
		l.setTop(funcIndex)
		l.push(errorToValue(err))
		return &Error{Code: StatusRuntimeError, Err: err}
	}
	if nResults != MultipleReturns {
		for len(results) < nResults {
			results = append(results, nil)
		}
		results = results[:nResults]
	}
	for _, v := range results {
		l.push(v)
	}
	return nil
}
