// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"
	"math"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// OpenJSON loads the json library,
// with encode and decode functions
// converting between Lua values and JSON text.
//
// Tables with consecutive integer keys starting at 1
// encode as JSON arrays; all other tables encode as objects
// and their keys must be strings or integers.
func OpenJSON(l *State) (int, error) {
	funcs := map[string]Function{
		"decode": jsonDecode,
		"encode": jsonEncode,
	}
	if err := NewLib(l, funcs); err != nil {
		return 0, err
	}
	return 1, nil
}

func jsonEncode(l *State) (int, error) {
	if l.IsNone(1) {
		return 0, NewArgError(l, 1, "value expected")
	}
	v, _ := l.valueByIndex(1)
	goValue, err := luaToGo(v, make(map[*table]struct{}))
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(goValue, json.Deterministic(true))
	if err != nil {
		return 0, newRuntimeError("encode: %v", err)
	}
	l.PushString(string(data))
	return 1, nil
}

func jsonDecode(l *State) (int, error) {
	s, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	var goValue any
	if err := json.Unmarshal([]byte(s), &goValue); err != nil {
		l.PushNil()
		l.PushString(err.Error())
		return 2, nil
	}
	l.push(goToLua(goValue))
	return 1, nil
}

// luaToGo converts a Lua value to the Go value model
// used by [json.Marshal].
// seen guards against reference cycles in tables.
func luaToGo(v any, seen map[*table]struct{}) (any, error) {
	switch v := v.(type) {
	case nil, bool, int64, float64, string:
		return v, nil
	case *table:
		if _, ok := seen[v]; ok {
			return nil, newRuntimeError("encode: table contains a cycle")
		}
		seen[v] = struct{}{}
		defer delete(seen, v)

		if n := v.len(); n > 0 && int64(len(v.entries)) == n {
			arr := make([]any, 0, n)
			for i := int64(1); i <= n; i++ {
				elem, err := luaToGo(v.get(i), seen)
				if err != nil {
					return nil, err
				}
				arr = append(arr, elem)
			}
			return arr, nil
		}
		obj := make(map[string]any, len(v.entries))
		for _, ent := range v.entries {
			var key string
			switch k := ent.key.(type) {
			case string:
				key = k
			case int64:
				key = fmt.Sprintf("%d", k)
			default:
				return nil, newRuntimeError("encode: unsupported key of type %v", valueType(ent.key))
			}
			elem, err := luaToGo(ent.value, seen)
			if err != nil {
				return nil, err
			}
			obj[key] = elem
		}
		return obj, nil
	default:
		return nil, newRuntimeError("encode: unsupported value of type %v", valueType(v))
	}
}

// goToLua converts a decoded JSON value to the Lua value model.
// JSON numbers with an integral value become Lua integers.
func goToLua(v any) any {
	switch v := v.(type) {
	case nil, bool, string:
		return v
	case float64:
		if i := int64(v); float64(i) == v && math.Abs(v) < 1e15 {
			return i
		}
		return v
	case []any:
		tab := newTable()
		for i, elem := range v {
			tab.set(int64(i)+1, goToLua(elem))
		}
		return tab
	case map[string]any:
		tab := newTable()
		for k, elem := range v {
			tab.set(k, goToLua(elem))
		}
		return tab
	case jsontext.Value:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
