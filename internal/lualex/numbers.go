// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lualex

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNotNumber is returned by [ParseInt] and [ParseNumber]
// when the string is not a valid Lua numeral.
var ErrNotNumber = errors.New("not a number")

// ParseInt converts a Lua numeral to an int64,
// failing on numerals with a fractional part.
func ParseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if hex, ok := cutHexPrefix(s); ok {
		i, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return 0, ErrNotNumber
		}
		return int64(i), nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrNotNumber
	}
	return i, nil
}

// ParseNumber converts a Lua numeral to a float64.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if hex, ok := cutHexPrefix(s); ok {
		i, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return 0, ErrNotNumber
		}
		return float64(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrNotNumber
	}
	return f, nil
}

// ParseValue converts a Lua numeral to an integer if it has
// integer syntax, or to a float otherwise.
// Exactly one of the results is meaningful, selected by isInt.
func ParseValue(s string) (i int64, f float64, isInt bool, err error) {
	if i, err := ParseInt(s); err == nil {
		return i, 0, true, nil
	}
	f, err = ParseNumber(s)
	if err != nil {
		return 0, 0, false, err
	}
	return 0, f, false, nil
}

func cutHexPrefix(s string) (rest string, ok bool) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if rest, ok = strings.CutPrefix(s, "0x"); !ok {
		if rest, ok = strings.CutPrefix(s, "0X"); !ok {
			return "", false
		}
	}
	if neg {
		// Negative hex literals do not appear in source
		// (the sign is a unary operator), so reject them here.
		return "", false
	}
	return rest, true
}
