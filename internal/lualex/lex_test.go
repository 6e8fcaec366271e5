// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lualex

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScanAll(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Token
	}{
		{
			name: "Empty",
			src:  "",
			want: nil,
		},
		{
			name: "Assignment",
			src:  "x = 1",
			want: []Token{
				{Kind: IdentifierToken, Position: Position{Line: 1, Column: 1}, Value: "x"},
				{Kind: AssignToken, Position: Position{Line: 1, Column: 3}},
				{Kind: NumeralToken, Position: Position{Line: 1, Column: 5}, Value: "1"},
			},
		},
		{
			name: "Keywords",
			src:  "local function end",
			want: []Token{
				{Kind: LocalToken, Position: Position{Line: 1, Column: 1}},
				{Kind: FunctionToken, Position: Position{Line: 1, Column: 7}},
				{Kind: EndToken, Position: Position{Line: 1, Column: 16}},
			},
		},
		{
			name: "ShortString",
			src:  `s = "hello\nworld"`,
			want: []Token{
				{Kind: IdentifierToken, Position: Position{Line: 1, Column: 1}, Value: "s"},
				{Kind: AssignToken, Position: Position{Line: 1, Column: 3}},
				{Kind: StringToken, Position: Position{Line: 1, Column: 5}, Value: "hello\nworld"},
			},
		},
		{
			name: "LongString",
			src:  "s = [[two\nlines]]",
			want: []Token{
				{Kind: IdentifierToken, Position: Position{Line: 1, Column: 1}, Value: "s"},
				{Kind: AssignToken, Position: Position{Line: 1, Column: 3}},
				{Kind: StringToken, Position: Position{Line: 1, Column: 5}, Value: "two\nlines"},
			},
		},
		{
			name: "Comment",
			src:  "-- a comment\nx",
			want: []Token{
				{Kind: IdentifierToken, Position: Position{Line: 2, Column: 1}, Value: "x"},
			},
		},
		{
			name: "LongComment",
			src:  "--[[ spans\nlines ]]y",
			want: []Token{
				{Kind: IdentifierToken, Position: Position{Line: 2, Column: 9}, Value: "y"},
			},
		},
		{
			name: "HexNumeral",
			src:  "0xff",
			want: []Token{
				{Kind: NumeralToken, Position: Position{Line: 1, Column: 1}, Value: "0xff"},
			},
		},
		{
			name: "FloatNumeral",
			src:  "3.14 .5 1e3",
			want: []Token{
				{Kind: NumeralToken, Position: Position{Line: 1, Column: 1}, Value: "3.14"},
				{Kind: NumeralToken, Position: Position{Line: 1, Column: 6}, Value: ".5"},
				{Kind: NumeralToken, Position: Position{Line: 1, Column: 9}, Value: "1e3"},
			},
		},
		{
			name: "Operators",
			src:  "a // b .. c ~= ...",
			want: []Token{
				{Kind: IdentifierToken, Position: Position{Line: 1, Column: 1}, Value: "a"},
				{Kind: IntDivToken, Position: Position{Line: 1, Column: 3}},
				{Kind: IdentifierToken, Position: Position{Line: 1, Column: 6}, Value: "b"},
				{Kind: ConcatToken, Position: Position{Line: 1, Column: 8}},
				{Kind: IdentifierToken, Position: Position{Line: 1, Column: 11}, Value: "c"},
				{Kind: NotEqualToken, Position: Position{Line: 1, Column: 13}},
				{Kind: VarargToken, Position: Position{Line: 1, Column: 16}},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ScanAll(test.src)
			if err != nil {
				t.Fatalf("ScanAll(%q): %v", test.src, err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("ScanAll(%q) (-want +got):\n%s", test.src, diff)
			}
		})
	}
}

func TestScanErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "UnterminatedString", src: `s = "oops`},
		{name: "NewlineInString", src: "s = \"oops\nmore\""},
		{name: "UnterminatedLongString", src: "s = [[never ends"},
		{name: "BadEscape", src: `s = "\k"`},
		{name: "UnexpectedSymbol", src: "x = $"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ScanAll(test.src); err == nil {
				t.Errorf("ScanAll(%q) did not return an error", test.src)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		s       string
		i       int64
		f       float64
		isInt   bool
		wantErr bool
	}{
		{s: "42", i: 42, isInt: true},
		{s: "0x10", i: 16, isInt: true},
		{s: "3.5", f: 3.5},
		{s: "1e2", f: 100},
		{s: "nope", wantErr: true},
		{s: "", wantErr: true},
	}
	for _, test := range tests {
		i, f, isInt, err := ParseValue(test.s)
		if test.wantErr {
			if err == nil {
				t.Errorf("ParseValue(%q) did not return an error", test.s)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseValue(%q): %v", test.s, err)
			continue
		}
		if isInt != test.isInt || (isInt && i != test.i) || (!isInt && f != test.f) {
			t.Errorf("ParseValue(%q) = %d, %g, %t; want %d, %g, %t",
				test.s, i, f, isInt, test.i, test.f, test.isInt)
		}
	}
}
