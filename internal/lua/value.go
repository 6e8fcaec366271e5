// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"

	"sela.dev/pkg/internal/lualex"
	"sela.dev/pkg/internal/luasyntax"
)

// Type is an enumeration of Lua data types.
type Type int

// TypeNone is the value returned from [State.Type]
// for a non-valid but acceptable index.
const TypeNone Type = -1

// Value types.
const (
	TypeNil      Type = 0
	TypeBoolean  Type = 1
	TypeNumber   Type = 3
	TypeString   Type = 4
	TypeTable    Type = 5
	TypeFunction Type = 6
)

// String returns the name of the type encoded by the value tp.
func (tp Type) String() string {
	switch tp {
	case TypeNone:
		return "no value"
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	default:
		return fmt.Sprintf("lua.Type(%d)", int(tp))
	}
}

// Values on the stack are represented as follows:
// nil, bool, int64, float64, string, *table, *goFunction, *luaFunction.
func valueType(v any) Type {
	switch v.(type) {
	case nil:
		return TypeNil
	case bool:
		return TypeBoolean
	case int64, float64:
		return TypeNumber
	case string:
		return TypeString
	case *table:
		return TypeTable
	case *goFunction, *luaFunction:
		return TypeFunction
	default:
		panic("unhandled type")
	}
}

// compareValues provides a total order over all values
// so that tables can keep their entries sorted.
// The order of values of different types is arbitrary but stable.
func compareValues(v1, v2 any) int {
	switch v1 := v1.(type) {
	case nil:
		return cmp.Compare(TypeNil, valueType(v2))
	case bool:
		b2, ok := v2.(bool)
		switch {
		case !ok:
			return cmp.Compare(TypeBoolean, valueType(v2))
		case v1 && !b2:
			return 1
		case !v1 && b2:
			return -1
		default:
			return 0
		}
	case int64:
		switch v2 := v2.(type) {
		case int64:
			return cmp.Compare(v1, v2)
		case float64:
			return cmp.Compare(float64(v1), v2)
		default:
			return cmp.Compare(TypeNumber, valueType(v2))
		}
	case float64:
		switch v2.(type) {
		case int64, float64:
			f2, _ := toNumber(v2)
			return cmp.Compare(v1, f2)
		default:
			return cmp.Compare(TypeNumber, valueType(v2))
		}
	case string:
		s2, ok := v2.(string)
		if !ok {
			return cmp.Compare(TypeString, valueType(v2))
		}
		return cmp.Compare(v1, s2)
	case *table:
		t2, ok := v2.(*table)
		if !ok {
			return cmp.Compare(TypeTable, valueType(v2))
		}
		return cmp.Compare(v1.id, t2.id)
	default:
		f1, ok := v1.(function)
		if !ok {
			panic("unhandled type")
		}
		f2, ok := v2.(function)
		if !ok {
			return cmp.Compare(TypeFunction, valueType(v2))
		}
		return cmp.Compare(f1.functionID(), f2.functionID())
	}
}

// valuesEqual implements the Lua "==" operator.
func valuesEqual(v1, v2 any) bool {
	switch v1 := v1.(type) {
	case int64:
		switch v2 := v2.(type) {
		case int64:
			return v1 == v2
		case float64:
			return float64(v1) == v2
		}
		return false
	case float64:
		switch v2 := v2.(type) {
		case int64:
			return v1 == float64(v2)
		case float64:
			return v1 == v2
		}
		return false
	default:
		return compareValues(v1, v2) == 0 && valueType(v1) == valueType(v2)
	}
}

func toNumber(v any) (_ float64, isNumber bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := lualex.ParseNumber(v)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toInteger(v any) (_ int64, isInteger bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case float64:
		i := int64(v)
		if float64(i) != v {
			return 0, false
		}
		return i, true
	case string:
		i, err := lualex.ParseInt(v)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func toBoolean(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		return true
	}
}

// toString converts a number or string to its string form.
func toString(v any) (_ string, ok bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return formatFloat(v), true
	default:
		return "", false
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', 14, 64)
	// Distinguish floats from integers the way Lua's %.14g does.
	if !hasFloatLook(s) {
		s += ".0"
	}
	return s
}

func hasFloatLook(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E', 'n', 'i':
			return true
		}
	}
	return false
}

// A table stores its entries as a slice
// sorted by [compareValues] over the keys.
// Sorted storage keeps iteration with [State.Next] deterministic.
type table struct {
	id      uint64
	entries []tableEntry
}

type tableEntry struct {
	key, value any
}

func newTable() *table {
	return &table{id: nextID()}
}

func (tab *table) get(key any) any {
	key = normalizeKey(key)
	i, found := findEntry(tab.entries, key)
	if !found {
		return nil
	}
	return tab.entries[i].value
}

func (tab *table) set(key, value any) error {
	switch k := key.(type) {
	case nil:
		return newRuntimeError("table index is nil")
	case float64:
		if math.IsNaN(k) {
			return newRuntimeError("table index is NaN")
		}
	}
	key = normalizeKey(key)

	i, found := findEntry(tab.entries, key)
	switch {
	case found && value != nil:
		tab.entries[i].value = value
	case found && value == nil:
		tab.entries = slices.Delete(tab.entries, i, i+1)
	case !found && value != nil:
		tab.entries = slices.Insert(tab.entries, i, tableEntry{key: key, value: value})
	}
	return nil
}

// normalizeKey converts float keys with integral values to integers,
// so that t[1] and t[1.0] are the same entry.
func normalizeKey(key any) any {
	if f, ok := key.(float64); ok {
		if i := int64(f); float64(i) == f {
			return i
		}
	}
	return key
}

// next returns the entry following the given key,
// or ok=false when iteration is complete.
// A nil key starts the iteration.
func (tab *table) next(key any) (nextKey, value any, ok bool) {
	var i int
	if key == nil {
		i = 0
	} else {
		j, found := findEntry(tab.entries, normalizeKey(key))
		if !found {
			return nil, nil, false
		}
		i = j + 1
	}
	if i >= len(tab.entries) {
		return nil, nil, false
	}
	return tab.entries[i].key, tab.entries[i].value, true
}

// len returns a border in the table,
// equivalent to the Lua length ("#") operator.
func (tab *table) len() int64 {
	var n int64
	for {
		if _, found := findEntry(tab.entries, n+1); !found {
			return n
		}
		n++
	}
}

func findEntry(entries []tableEntry, key any) (int, bool) {
	return slices.BinarySearchFunc(entries, key, func(e tableEntry, key any) int {
		return compareValues(e.key, key)
	})
}

// A Function is a callback for a Lua function implemented in Go.
// A Go function receives its arguments from Lua in its stack in direct order;
// when the function starts, [State.Top] returns the number of arguments
// and the first argument is at index 1.
// To return values to Lua, a Go function pushes them onto the stack
// in direct order and returns the number of results.
// To raise a Lua error, return a non-nil Go error.
type Function func(*State) (int, error)

type goFunction struct {
	id   uint64
	name string
	cb   Function
}

func (f *goFunction) functionID() uint64 { return f.id }

type luaFunction struct {
	id    uint64
	chunk string
	proto *luasyntax.FunctionExpr
	env   *env
}

func (f *luaFunction) functionID() uint64 { return f.id }

type function interface {
	functionID() uint64
}

var (
	_ function = (*goFunction)(nil)
	_ function = (*luaFunction)(nil)
)

var globalIDs struct {
	mu sync.Mutex
	n  uint64
}

func nextID() uint64 {
	globalIDs.mu.Lock()
	defer globalIDs.mu.Unlock()
	globalIDs.n++
	return globalIDs.n
}
