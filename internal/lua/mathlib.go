// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"math"
	"math/rand/v2"

	"sela.dev/pkg/internal/lualex"
)

// OpenMath loads the math library.
func OpenMath(l *State) (int, error) {
	funcs := map[string]Function{
		"abs":        mathAbs,
		"ceil":       mathCeil,
		"cos":        newMathUnary(math.Cos),
		"exp":        newMathUnary(math.Exp),
		"floor":      mathFloor,
		"fmod":       mathFmod,
		"log":        mathLog,
		"max":        newMathMinMax(false),
		"min":        newMathMinMax(true),
		"random":     mathRandom,
		"randomseed": mathRandomSeed,
		"sin":        newMathUnary(math.Sin),
		"sqrt":       newMathUnary(math.Sqrt),
		"tan":        newMathUnary(math.Tan),
		"tointeger":  mathToInteger,
		"type":       mathType,
	}
	if err := NewLib(l, funcs); err != nil {
		return 0, err
	}
	l.PushNumber(math.Pi)
	if err := l.SetField(-2, "pi"); err != nil {
		return 0, err
	}
	l.PushNumber(math.Inf(1))
	if err := l.SetField(-2, "huge"); err != nil {
		return 0, err
	}
	l.PushInteger(math.MaxInt64)
	if err := l.SetField(-2, "maxinteger"); err != nil {
		return 0, err
	}
	l.PushInteger(math.MinInt64)
	if err := l.SetField(-2, "mininteger"); err != nil {
		return 0, err
	}
	return 1, nil
}

func newMathUnary(f func(float64) float64) Function {
	return func(l *State) (int, error) {
		x, err := CheckNumber(l, 1)
		if err != nil {
			return 0, err
		}
		l.PushNumber(f(x))
		return 1, nil
	}
}

func mathAbs(l *State) (int, error) {
	if n, ok := l.ToInteger(1); ok && l.IsInteger(1) {
		if n < 0 {
			n = -n
		}
		l.PushInteger(n)
		return 1, nil
	}
	x, err := CheckNumber(l, 1)
	if err != nil {
		return 0, err
	}
	l.PushNumber(math.Abs(x))
	return 1, nil
}

func mathFloor(l *State) (int, error) {
	if l.IsInteger(1) {
		l.PushValue(1)
		return 1, nil
	}
	x, err := CheckNumber(l, 1)
	if err != nil {
		return 0, err
	}
	f := math.Floor(x)
	if i := int64(f); float64(i) == f {
		l.PushInteger(i)
	} else {
		l.PushNumber(f)
	}
	return 1, nil
}

func mathCeil(l *State) (int, error) {
	if l.IsInteger(1) {
		l.PushValue(1)
		return 1, nil
	}
	x, err := CheckNumber(l, 1)
	if err != nil {
		return 0, err
	}
	f := math.Ceil(x)
	if i := int64(f); float64(i) == f {
		l.PushInteger(i)
	} else {
		l.PushNumber(f)
	}
	return 1, nil
}

func mathFmod(l *State) (int, error) {
	x, err := CheckNumber(l, 1)
	if err != nil {
		return 0, err
	}
	y, err := CheckNumber(l, 2)
	if err != nil {
		return 0, err
	}
	l.PushNumber(math.Mod(x, y))
	return 1, nil
}

func mathLog(l *State) (int, error) {
	x, err := CheckNumber(l, 1)
	if err != nil {
		return 0, err
	}
	if l.IsNoneOrNil(2) {
		l.PushNumber(math.Log(x))
		return 1, nil
	}
	base, err := CheckNumber(l, 2)
	if err != nil {
		return 0, err
	}
	l.PushNumber(math.Log(x) / math.Log(base))
	return 1, nil
}

func newMathMinMax(isMin bool) Function {
	return func(l *State) (int, error) {
		n := l.Top()
		if n == 0 {
			return 0, NewArgError(l, 1, "value expected")
		}
		best := 1
		for i := 2; i <= n; i++ {
			candidate, _ := l.valueByIndex(i)
			current, _ := l.valueByIndex(best)
			left, right := current, candidate
			if isMin {
				left, right = candidate, current
			}
			better, err := compare(lualex.LessToken, left, right)
			if err != nil {
				return 0, err
			}
			if better {
				best = i
			}
		}
		l.PushValue(best)
		return 1, nil
	}
}

func mathToInteger(l *State) (int, error) {
	if n, ok := l.ToInteger(1); ok && l.Type(1) == TypeNumber {
		l.PushInteger(n)
		return 1, nil
	}
	l.PushNil()
	return 1, nil
}

func mathType(l *State) (int, error) {
	switch v, _ := l.valueByIndex(1); v.(type) {
	case int64:
		l.PushString("integer")
	case float64:
		l.PushString("float")
	default:
		l.PushNil()
	}
	return 1, nil
}

func mathRandom(l *State) (int, error) {
	switch l.Top() {
	case 0:
		l.PushNumber(rand.Float64())
		return 1, nil
	case 1:
		m, err := CheckInteger(l, 1)
		if err != nil {
			return 0, err
		}
		if m < 1 {
			return 0, NewArgError(l, 1, "interval is empty")
		}
		l.PushInteger(1 + rand.Int64N(m))
		return 1, nil
	default:
		lo, err := CheckInteger(l, 1)
		if err != nil {
			return 0, err
		}
		hi, err := CheckInteger(l, 2)
		if err != nil {
			return 0, err
		}
		if lo > hi {
			return 0, NewArgError(l, 2, "interval is empty")
		}
		l.PushInteger(lo + rand.Int64N(hi-lo+1))
		return 1, nil
	}
}

func mathRandomSeed(l *State) (int, error) {
	// math/rand/v2 sources are seeded by the runtime.
	// The seed arguments are accepted and ignored.
	return 0, nil
}
