// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package luasyntax

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "Empty", src: ""},
		{name: "Assignment", src: "x = 1"},
		{name: "MultipleAssignment", src: "a, b = 1, 2"},
		{name: "Local", src: "local a, b = f()"},
		{name: "Call", src: "print('hi', 42)"},
		{name: "MethodCall", src: "obj:method(1)"},
		{name: "StringCall", src: "print 'hi'"},
		{name: "TableCall", src: "f{1, 2}"},
		{name: "Do", src: "do local x = 1 end"},
		{name: "While", src: "while x < 10 do x = x + 1 end"},
		{name: "Repeat", src: "repeat x = x - 1 until x == 0"},
		{name: "If", src: "if a then b() elseif c then d() else e() end"},
		{name: "NumericFor", src: "for i = 1, 10, 2 do print(i) end"},
		{name: "GenericFor", src: "for k, v in pairs(t) do print(k, v) end"},
		{name: "Function", src: "function f(a, b, ...) return a + b end"},
		{name: "DottedFunction", src: "function m.n.f() end"},
		{name: "MethodFunction", src: "function m:f(x) return self, x end"},
		{name: "LocalFunction", src: "local function fact(n) if n <= 1 then return 1 end return n * fact(n - 1) end"},
		{name: "Break", src: "while true do break end"},
		{name: "TableConstructor", src: "t = {1, 2; x = 3, ['y'] = 4, f()}"},
		{name: "Operators", src: "v = -a ^ 2 .. 'x' .. #t and b or not c"},
		{name: "Vararg", src: "function f(...) return ... end"},
		{name: "Semicolons", src: ";; x = 1 ;;"},
		{name: "Comments", src: "-- leading\nx = 1 --[[ inline ]] + 2"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Parse("test", test.src); err != nil {
				t.Errorf("Parse(%q): %v", test.src, err)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "Garbage", src: "this is not valid syntax !!!"},
		{name: "UnclosedIf", src: "if x then y()"},
		{name: "UnclosedParen", src: "f(1, 2"},
		{name: "MissingExpr", src: "x = "},
		{name: "BreakName", src: "break me"},
		{name: "BadFor", src: "for do end"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Parse("test", test.src); err == nil {
				t.Errorf("Parse(%q) did not return an error", test.src)
			}
		})
	}
}

func TestParseErrorNamesChunk(t *testing.T) {
	_, err := Parse("myfile.lua", "x = ")
	if err == nil {
		t.Fatal("Parse did not return an error")
	}
	if got := err.Error(); !strings.HasPrefix(got, "myfile.lua:") {
		t.Errorf("error %q does not start with the chunk name", got)
	}
}

func TestParseShapes(t *testing.T) {
	t.Run("IfElseChain", func(t *testing.T) {
		block, err := Parse("test", "if a then x() elseif b then y() else z() end")
		if err != nil {
			t.Fatal(err)
		}
		stmt, ok := block.Stmts[0].(*IfStmt)
		if !ok {
			t.Fatalf("statement is %T, want *IfStmt", block.Stmts[0])
		}
		if stmt.Else == nil || len(stmt.Else.Stmts) != 1 {
			t.Fatal("elseif branch missing")
		}
		inner, ok := stmt.Else.Stmts[0].(*IfStmt)
		if !ok {
			t.Fatalf("elseif is %T, want nested *IfStmt", stmt.Else.Stmts[0])
		}
		if inner.Else == nil {
			t.Error("else branch missing from nested if")
		}
	})

	t.Run("MethodFunctionAddsSelf", func(t *testing.T) {
		block, err := Parse("test", "function m:f(x) end")
		if err != nil {
			t.Fatal(err)
		}
		stmt, ok := block.Stmts[0].(*FunctionStmt)
		if !ok {
			t.Fatalf("statement is %T, want *FunctionStmt", block.Stmts[0])
		}
		if !stmt.IsMethod {
			t.Error("IsMethod = false")
		}
		if len(stmt.Func.Params) != 2 || stmt.Func.Params[0] != "self" {
			t.Errorf("params = %q, want [self x]", stmt.Func.Params)
		}
	})

	t.Run("PowerRightAssociative", func(t *testing.T) {
		block, err := Parse("test", "v = 2 ^ 3 ^ 2")
		if err != nil {
			t.Fatal(err)
		}
		assign := block.Stmts[0].(*AssignStmt)
		outer, ok := assign.Values[0].(*BinaryExpr)
		if !ok {
			t.Fatalf("value is %T, want *BinaryExpr", assign.Values[0])
		}
		if _, ok := outer.Right.(*BinaryExpr); !ok {
			t.Errorf("right operand is %T, want *BinaryExpr (right associativity)", outer.Right)
		}
	})
}
