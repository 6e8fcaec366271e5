// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"os"
	"strings"
	"time"
)

// OpenOS loads the os library.
// Only the process-neutral functions are provided:
// clock, date, difftime, getenv, and time.
func OpenOS(l *State) (int, error) {
	start := time.Now()
	funcs := map[string]Function{
		"clock": func(l *State) (int, error) {
			l.PushNumber(time.Since(start).Seconds())
			return 1, nil
		},
		"date":     osDate,
		"difftime": osDiffTime,
		"getenv":   osGetenv,
		"time":     osTime,
	}
	if err := NewLib(l, funcs); err != nil {
		return 0, err
	}
	return 1, nil
}

func osTime(l *State) (int, error) {
	if !l.IsNoneOrNil(1) {
		if err := CheckTable(l, 1); err != nil {
			return 0, err
		}
		field := func(name string, def int64) (int64, error) {
			if _, err := l.Field(1, name); err != nil {
				return 0, err
			}
			defer l.Pop(1)
			if l.IsNil(-1) {
				if def < 0 {
					return 0, newRuntimeError("field '%s' missing in date table", name)
				}
				return def, nil
			}
			n, ok := l.ToInteger(-1)
			if !ok {
				return 0, newRuntimeError("field '%s' is not an integer", name)
			}
			return n, nil
		}
		year, err := field("year", -1)
		if err != nil {
			return 0, err
		}
		month, err := field("month", -1)
		if err != nil {
			return 0, err
		}
		day, err := field("day", -1)
		if err != nil {
			return 0, err
		}
		hour, err := field("hour", 12)
		if err != nil {
			return 0, err
		}
		minute, err := field("min", 0)
		if err != nil {
			return 0, err
		}
		sec, err := field("sec", 0)
		if err != nil {
			return 0, err
		}
		t := time.Date(int(year), time.Month(month), int(day), int(hour), int(minute), int(sec), 0, time.Local)
		l.PushInteger(t.Unix())
		return 1, nil
	}
	l.PushInteger(time.Now().Unix())
	return 1, nil
}

func osDiffTime(l *State) (int, error) {
	t2, err := CheckNumber(l, 1)
	if err != nil {
		return 0, err
	}
	t1, err := CheckNumber(l, 2)
	if err != nil {
		return 0, err
	}
	l.PushNumber(t2 - t1)
	return 1, nil
}

func osGetenv(l *State) (int, error) {
	name, err := CheckString(l, 1)
	if err != nil {
		return 0, err
	}
	if v, ok := os.LookupEnv(name); ok {
		l.PushString(v)
	} else {
		l.PushNil()
	}
	return 1, nil
}

func osDate(l *State) (int, error) {
	format, err := OptString(l, 1, "%c")
	if err != nil {
		return 0, err
	}
	when, err := OptInteger(l, 2, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	t := time.Unix(when, 0)
	if f, ok := strings.CutPrefix(format, "!"); ok {
		t = t.UTC()
		format = f
	} else {
		t = t.Local()
	}
	if format == "*t" {
		l.CreateTable(0, 8)
		setInt := func(name string, v int64) error {
			l.PushInteger(v)
			return l.SetField(-2, name)
		}
		for _, err := range []error{
			setInt("year", int64(t.Year())),
			setInt("month", int64(t.Month())),
			setInt("day", int64(t.Day())),
			setInt("hour", int64(t.Hour())),
			setInt("min", int64(t.Minute())),
			setInt("sec", int64(t.Second())),
			setInt("wday", int64(t.Weekday())+1),
			setInt("yday", int64(t.YearDay())),
		} {
			if err != nil {
				return 0, err
			}
		}
		l.PushBoolean(false)
		if err := l.SetField(-2, "isdst"); err != nil {
			return 0, err
		}
		return 1, nil
	}
	l.PushString(strftime(format, t))
	return 1, nil
}

// strftime formats t with a subset of C strftime directives.
// Unrecognized directives are passed through verbatim.
func strftime(format string, t time.Time) string {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch format[i] {
		case 'Y':
			sb.WriteString(t.Format("2006"))
		case 'y':
			sb.WriteString(t.Format("06"))
		case 'm':
			sb.WriteString(t.Format("01"))
		case 'd':
			sb.WriteString(t.Format("02"))
		case 'H':
			sb.WriteString(t.Format("15"))
		case 'M':
			sb.WriteString(t.Format("04"))
		case 'S':
			sb.WriteString(t.Format("05"))
		case 'c':
			sb.WriteString(t.Format("Mon Jan  2 15:04:05 2006"))
		case 'x':
			sb.WriteString(t.Format("01/02/06"))
		case 'X':
			sb.WriteString(t.Format("15:04:05"))
		case 'A':
			sb.WriteString(t.Format("Monday"))
		case 'a':
			sb.WriteString(t.Format("Mon"))
		case 'B':
			sb.WriteString(t.Format("January"))
		case 'b':
			sb.WriteString(t.Format("Jan"))
		case '%':
			sb.WriteByte('%')
		default:
			sb.WriteByte('%')
			sb.WriteByte(format[i])
		}
	}
	return sb.String()
}
