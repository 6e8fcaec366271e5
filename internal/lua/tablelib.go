// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"sort"
	"strings"

	"sela.dev/pkg/internal/lualex"
)

// OpenTable loads the table library.
func OpenTable(l *State) (int, error) {
	funcs := map[string]Function{
		"concat": tableConcat,
		"insert": tableInsert,
		"pack":   tablePack,
		"remove": tableRemove,
		"sort":   tableSort,
		"unpack": tableUnpack,
	}
	if err := NewLib(l, funcs); err != nil {
		return 0, err
	}
	return 1, nil
}

func tableInsert(l *State) (int, error) {
	if err := CheckTable(l, 1); err != nil {
		return 0, err
	}
	n := l.RawLen(1)
	switch l.Top() {
	case 2:
		l.RawSetIndex(1, n+1)
		return 0, nil
	case 3:
		pos, err := CheckInteger(l, 2)
		if err != nil {
			return 0, err
		}
		if pos < 1 || pos > n+1 {
			return 0, NewArgError(l, 2, "position out of bounds")
		}
		for i := n; i >= pos; i-- {
			l.RawIndex(1, i)
			if err := l.RawSetIndex(1, i+1); err != nil {
				return 0, err
			}
		}
		l.PushValue(3)
		if err := l.RawSetIndex(1, pos); err != nil {
			return 0, err
		}
		return 0, nil
	default:
		return 0, newRuntimeError("wrong number of arguments to 'insert'")
	}
}

func tableRemove(l *State) (int, error) {
	if err := CheckTable(l, 1); err != nil {
		return 0, err
	}
	n := l.RawLen(1)
	pos, err := OptInteger(l, 2, n)
	if err != nil {
		return 0, err
	}
	if n == 0 && l.IsNoneOrNil(2) {
		l.PushNil()
		return 1, nil
	}
	if pos < 1 || pos > n+1 {
		return 0, NewArgError(l, 2, "position out of bounds")
	}
	l.RawIndex(1, pos)
	for i := pos; i < n; i++ {
		l.RawIndex(1, i+1)
		if err := l.RawSetIndex(1, i); err != nil {
			return 0, err
		}
	}
	l.PushNil()
	if err := l.RawSetIndex(1, n); err != nil {
		return 0, err
	}
	return 1, nil
}

func tableConcat(l *State) (int, error) {
	if err := CheckTable(l, 1); err != nil {
		return 0, err
	}
	sep, err := OptString(l, 2, "")
	if err != nil {
		return 0, err
	}
	i, err := OptInteger(l, 3, 1)
	if err != nil {
		return 0, err
	}
	j, err := OptInteger(l, 4, l.RawLen(1))
	if err != nil {
		return 0, err
	}
	var sb strings.Builder
	for ; i <= j; i++ {
		l.RawIndex(1, i)
		s, ok := l.ToString(-1)
		l.Pop(1)
		if !ok {
			return 0, newRuntimeError("invalid value (at index %d) in table for 'concat'", i)
		}
		sb.WriteString(s)
		if i < j {
			sb.WriteString(sep)
		}
	}
	l.PushString(sb.String())
	return 1, nil
}

func tablePack(l *State) (int, error) {
	n := l.Top()
	l.CreateTable(n, 1)
	l.Insert(1)
	for i := n; i >= 1; i-- {
		if err := l.RawSetIndex(1, int64(i)); err != nil {
			return 0, err
		}
	}
	l.PushInteger(int64(n))
	if err := l.SetField(1, "n"); err != nil {
		return 0, err
	}
	return 1, nil
}

func tableUnpack(l *State) (int, error) {
	if err := CheckTable(l, 1); err != nil {
		return 0, err
	}
	i, err := OptInteger(l, 2, 1)
	if err != nil {
		return 0, err
	}
	j, err := OptInteger(l, 3, l.RawLen(1))
	if err != nil {
		return 0, err
	}
	if j-i >= maxStack {
		return 0, newRuntimeError("too many results to unpack")
	}
	n := 0
	for ; i <= j; i++ {
		l.RawIndex(1, i)
		n++
	}
	return n, nil
}

func tableSort(l *State) (int, error) {
	if err := CheckTable(l, 1); err != nil {
		return 0, err
	}
	hasComparator := !l.IsNoneOrNil(2)
	if hasComparator && !l.IsFunction(2) {
		return 0, NewTypeError(l, 2, "function")
	}
	n := l.RawLen(1)
	values := make([]any, n)
	for i := int64(1); i <= n; i++ {
		l.RawIndex(1, i)
		values[i-1], _ = l.valueByIndex(-1)
		l.Pop(1)
	}

	var sortErr error
	if hasComparator {
		comparator, _ := l.valueByIndex(2)
		sort.SliceStable(values, func(a, b int) bool {
			if sortErr != nil {
				return false
			}
			results, err := l.callValue(comparator, []any{values[a], values[b]})
			if err != nil {
				sortErr = err
				return false
			}
			return len(results) > 0 && toBoolean(results[0])
		})
	} else {
		sort.SliceStable(values, func(a, b int) bool {
			if sortErr != nil {
				return false
			}
			ok, err := compare(lualex.LessToken, values[a], values[b])
			if err != nil {
				sortErr = err
				return false
			}
			return ok
		})
	}
	if sortErr != nil {
		return 0, sortErr
	}
	for i, v := range values {
		l.push(v)
		if err := l.RawSetIndex(1, int64(i)+1); err != nil {
			return 0, err
		}
	}
	return 0, nil
}
