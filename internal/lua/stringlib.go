// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"
	"strconv"
	"strings"
)

// OpenString loads the string library.
// Pattern matching is not implemented;
// string.find only supports plain searches.
func OpenString(l *State) (int, error) {
	funcs := map[string]Function{
		"byte":    stringByte,
		"char":    stringChar,
		"find":    stringFind,
		"format":  stringFormat,
		"len":     stringLen,
		"lower":   stringLower,
		"rep":     stringRep,
		"reverse": stringReverse,
		"sub":     stringSub,
		"upper":   stringUpper,
	}
	if err := NewLib(l, funcs); err != nil {
		return 0, err
	}
	return 1, nil
}

// strPosition converts a Lua string position to a 1-based position,
// resolving negative positions from the end of the string.
// The result may lie outside [1, length]; callers clip as needed.
func strPosition(pos int64, length int) int64 {
	if pos >= 0 {
		return pos
	}
	if -pos > int64(length) {
		return 0
	}
	return int64(length) + pos + 1
}

func stringLen(l *State) (int, error) {
	s, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	l.PushInteger(int64(len(s)))
	return 1, nil
}

func stringSub(l *State) (int, error) {
	s, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	i, err := OptInteger(l, 2, 1)
	if err != nil {
		return 0, err
	}
	j, err := OptInteger(l, 3, -1)
	if err != nil {
		return 0, err
	}
	start := strPosition(i, len(s))
	if start < 1 {
		start = 1
	}
	end := strPosition(j, len(s))
	if end > int64(len(s)) {
		end = int64(len(s))
	}
	if start > end {
		l.PushString("")
		return 1, nil
	}
	l.PushString(s[start-1 : end])
	return 1, nil
}

func stringUpper(l *State) (int, error) {
	s, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	l.PushString(strings.ToUpper(s))
	return 1, nil
}

func stringLower(l *State) (int, error) {
	s, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	l.PushString(strings.ToLower(s))
	return 1, nil
}

func stringRep(l *State) (int, error) {
	s, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	n, err := CheckInteger(l, 2)
	if err != nil {
		return 0, err
	}
	sep, err := OptString(l, 3, "")
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		l.PushString("")
		return 1, nil
	}
	if int64(len(s)+len(sep))*n >= maxStack {
		return 0, newRuntimeError("resulting string too large")
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s
	}
	l.PushString(strings.Join(parts, sep))
	return 1, nil
}

func stringReverse(l *State) (int, error) {
	s, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	l.PushString(string(b))
	return 1, nil
}

func stringByte(l *State) (int, error) {
	s, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	i, err := OptInteger(l, 2, 1)
	if err != nil {
		return 0, err
	}
	j, err := OptInteger(l, 3, i)
	if err != nil {
		return 0, err
	}
	start := strPosition(i, len(s))
	if start < 1 {
		start = 1
	}
	end := strPosition(j, len(s))
	if end > int64(len(s)) {
		end = int64(len(s))
	}
	n := 0
	for k := start; k <= end; k++ {
		l.PushInteger(int64(s[k-1]))
		n++
	}
	return n, nil
}

func stringChar(l *State) (int, error) {
	n := l.Top()
	b := make([]byte, n)
	for i := 1; i <= n; i++ {
		c, err := CheckInteger(l, i)
		if err != nil {
			return 0, err
		}
		if c < 0 || c > 255 {
			return 0, NewArgError(l, i, "value out of range")
		}
		b[i-1] = byte(c)
	}
	l.PushString(string(b))
	return 1, nil
}

func stringFind(l *State) (int, error) {
	s, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	pattern, err := CheckString(l, 2)
	if err != nil {
		return 0, err
	}
	init, err := OptInteger(l, 3, 1)
	if err != nil {
		return 0, err
	}
	// Lua patterns are not supported; only plain find.
	if !l.ToBoolean(4) && strings.ContainsAny(pattern, "^$*+?.([%-") {
		return 0, NewArgError(l, 4, "pattern matching not supported, pass plain=true")
	}
	start := strPosition(init, len(s))
	if start < 1 {
		start = 1
	}
	if start > int64(len(s))+1 {
		l.PushNil()
		return 1, nil
	}
	found := strings.Index(s[start-1:], pattern)
	if found < 0 {
		l.PushNil()
		return 1, nil
	}
	l.PushInteger(start + int64(found))
	l.PushInteger(start + int64(found) + int64(len(pattern)) - 1)
	return 2, nil
}

// stringFormat implements string.format
// with the directives d, i, u, o, x, X, c, f, F, e, E, g, G, q, s, and %.
func stringFormat(l *State) (int, error) {
	format, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	var sb strings.Builder
	arg := 1
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		// Scan flags, width, and precision.
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ #0", format[j]) >= 0 {
			j++
		}
		for j < len(format) && format[j] >= '0' && format[j] <= '9' {
			j++
		}
		if j < len(format) && format[j] == '.' {
			j++
			for j < len(format) && format[j] >= '0' && format[j] <= '9' {
				j++
			}
		}
		if j >= len(format) {
			return 0, newRuntimeError("invalid conversion '%s' to 'format'", format[i:])
		}
		spec := format[i : j+1]
		verb := format[j]
		i = j

		if verb == '%' {
			sb.WriteByte('%')
			continue
		}
		arg++
		switch verb {
		case 'd', 'i':
			n, err := CheckInteger(l, arg)
			if err != nil {
				return 0, err
			}
			fmt.Fprintf(&sb, spec[:len(spec)-1]+"d", n)
		case 'u', 'o', 'x', 'X', 'c':
			n, err := CheckInteger(l, arg)
			if err != nil {
				return 0, err
			}
			switch verb {
			case 'u':
				fmt.Fprintf(&sb, spec[:len(spec)-1]+"d", n)
			case 'c':
				sb.WriteByte(byte(n))
			default:
				fmt.Fprintf(&sb, spec, n)
			}
		case 'f', 'F', 'e', 'E', 'g', 'G':
			n, err := CheckNumber(l, arg)
			if err != nil {
				return 0, err
			}
			if verb == 'F' {
				spec = spec[:len(spec)-1] + "f"
			}
			fmt.Fprintf(&sb, spec, n)
		case 'q':
			sb.WriteString(strconv.Quote(ToStringAux(l, arg)))
		case 's':
			fmt.Fprintf(&sb, spec, ToStringAux(l, arg))
		default:
			return 0, newRuntimeError("invalid conversion '%%%c' to 'format'", verb)
		}
	}
	l.PushString(sb.String())
	return 1, nil
}
