// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

// Package luasyntax parses Lua source chunks into syntax trees.
package luasyntax

import "sela.dev/pkg/internal/lualex"

// A Block is a sequence of statements.
type Block struct {
	Stmts []Stmt
}

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Pos() lualex.Position
	stmtNode()
}

// An AssignStmt assigns each value to the corresponding target,
// as in "x, y = 1, 2".
type AssignStmt struct {
	Position lualex.Position
	Targets  []Expr // NameExpr or IndexExpr
	Values   []Expr
}

// A LocalStmt declares local variables, as in "local x, y = 1".
type LocalStmt struct {
	Position lualex.Position
	Names    []string
	Values   []Expr
}

// A CallStmt is a function call used as a statement.
type CallStmt struct {
	Call *CallExpr
}

// A DoStmt is a "do ... end" block.
type DoStmt struct {
	Position lualex.Position
	Body     Block
}

// A WhileStmt is a "while cond do ... end" loop.
type WhileStmt struct {
	Position lualex.Position
	Cond     Expr
	Body     Block
}

// A RepeatStmt is a "repeat ... until cond" loop.
// The condition can see locals declared in the body.
type RepeatStmt struct {
	Position lualex.Position
	Body     Block
	Cond     Expr
}

// An IfStmt is an "if cond then ... end" conditional.
// An "elseif" clause is represented as an Else block
// containing a single nested IfStmt.
type IfStmt struct {
	Position lualex.Position
	Cond     Expr
	Then     Block
	Else     *Block
}

// A NumericForStmt is a "for i = start, limit[, step] do ... end" loop.
type NumericForStmt struct {
	Position lualex.Position
	Name     string
	Start    Expr
	Limit    Expr
	Step     Expr // nil means 1
	Body     Block
}

// A GenericForStmt is a "for a, b in explist do ... end" loop.
type GenericForStmt struct {
	Position lualex.Position
	Names    []string
	Exprs    []Expr
	Body     Block
}

// A FunctionStmt declares a function with a possibly dotted name,
// as in "function a.b.c(x)" or "function a:m(x)".
type FunctionStmt struct {
	Position lualex.Position
	Name     []string // the dotted path
	IsMethod bool     // name ends with ":method"; an implicit self parameter is added
	Func     *FunctionExpr
}

// A LocalFunctionStmt declares a local function;
// the name is in scope inside the function body.
type LocalFunctionStmt struct {
	Position lualex.Position
	Name     string
	Func     *FunctionExpr
}

// A ReturnStmt returns from the enclosing function.
type ReturnStmt struct {
	Position lualex.Position
	Exprs    []Expr
}

// A BreakStmt exits the innermost enclosing loop.
type BreakStmt struct {
	Position lualex.Position
}

func (s *AssignStmt) Pos() lualex.Position        { return s.Position }
func (s *LocalStmt) Pos() lualex.Position         { return s.Position }
func (s *CallStmt) Pos() lualex.Position          { return s.Call.Position }
func (s *DoStmt) Pos() lualex.Position            { return s.Position }
func (s *WhileStmt) Pos() lualex.Position         { return s.Position }
func (s *RepeatStmt) Pos() lualex.Position        { return s.Position }
func (s *IfStmt) Pos() lualex.Position            { return s.Position }
func (s *NumericForStmt) Pos() lualex.Position    { return s.Position }
func (s *GenericForStmt) Pos() lualex.Position    { return s.Position }
func (s *FunctionStmt) Pos() lualex.Position      { return s.Position }
func (s *LocalFunctionStmt) Pos() lualex.Position { return s.Position }
func (s *ReturnStmt) Pos() lualex.Position        { return s.Position }
func (s *BreakStmt) Pos() lualex.Position         { return s.Position }

func (*AssignStmt) stmtNode()        {}
func (*LocalStmt) stmtNode()         {}
func (*CallStmt) stmtNode()          {}
func (*DoStmt) stmtNode()            {}
func (*WhileStmt) stmtNode()         {}
func (*RepeatStmt) stmtNode()        {}
func (*IfStmt) stmtNode()            {}
func (*NumericForStmt) stmtNode()    {}
func (*GenericForStmt) stmtNode()    {}
func (*FunctionStmt) stmtNode()      {}
func (*LocalFunctionStmt) stmtNode() {}
func (*ReturnStmt) stmtNode()        {}
func (*BreakStmt) stmtNode()         {}

// Expr is implemented by all expression nodes.
type Expr interface {
	Pos() lualex.Position
	exprNode()
}

// A NilExpr is the literal nil.
type NilExpr struct {
	Position lualex.Position
}

// A BoolExpr is the literal true or false.
type BoolExpr struct {
	Position lualex.Position
	Value    bool
}

// A NumberExpr is a numeral.
// Exactly one of Int or Float is meaningful, selected by IsInt.
type NumberExpr struct {
	Position lualex.Position
	IsInt    bool
	Int      int64
	Float    float64
}

// A StringExpr is a string literal.
type StringExpr struct {
	Position lualex.Position
	Value    string
}

// A VarargExpr is the "..." expression.
type VarargExpr struct {
	Position lualex.Position
}

// A NameExpr is a bare identifier.
type NameExpr struct {
	Position lualex.Position
	Name     string
}

// An IndexExpr is "obj[key]"; field access "obj.name"
// is represented with a [StringExpr] key.
type IndexExpr struct {
	Position lualex.Position
	Object   Expr
	Key      Expr
}

// A CallExpr is a function or method call.
// For a method call "obj:m(args)", Method is "m"
// and Func is the object expression.
type CallExpr struct {
	Position lualex.Position
	Func     Expr
	Method   string
	Args     []Expr
}

// A FunctionExpr is a function literal.
type FunctionExpr struct {
	Position lualex.Position
	Params   []string
	IsVararg bool
	Body     Block
}

// A TableExpr is a table constructor.
type TableExpr struct {
	Position lualex.Position
	Fields   []TableField
}

// A TableField is one entry in a table constructor.
// A nil Key indicates a positional (array) entry.
type TableField struct {
	Key   Expr
	Value Expr
}

// A ParenExpr is a parenthesized expression;
// it truncates multiple values to one.
type ParenExpr struct {
	Position lualex.Position
	X        Expr
}

// A BinaryExpr applies a binary operator.
type BinaryExpr struct {
	Position lualex.Position
	Op       lualex.TokenKind
	Left     Expr
	Right    Expr
}

// A UnaryExpr applies a unary operator
// ([lualex.SubToken], [lualex.NotToken], or [lualex.LenToken]).
type UnaryExpr struct {
	Position lualex.Position
	Op       lualex.TokenKind
	X        Expr
}

func (e *NilExpr) Pos() lualex.Position      { return e.Position }
func (e *BoolExpr) Pos() lualex.Position     { return e.Position }
func (e *NumberExpr) Pos() lualex.Position   { return e.Position }
func (e *StringExpr) Pos() lualex.Position   { return e.Position }
func (e *VarargExpr) Pos() lualex.Position   { return e.Position }
func (e *NameExpr) Pos() lualex.Position     { return e.Position }
func (e *IndexExpr) Pos() lualex.Position    { return e.Position }
func (e *CallExpr) Pos() lualex.Position     { return e.Position }
func (e *FunctionExpr) Pos() lualex.Position { return e.Position }
func (e *TableExpr) Pos() lualex.Position    { return e.Position }
func (e *ParenExpr) Pos() lualex.Position    { return e.Position }
func (e *BinaryExpr) Pos() lualex.Position   { return e.Position }
func (e *UnaryExpr) Pos() lualex.Position    { return e.Position }

func (*NilExpr) exprNode()      {}
func (*BoolExpr) exprNode()     {}
func (*NumberExpr) exprNode()   {}
func (*StringExpr) exprNode()   {}
func (*VarargExpr) exprNode()   {}
func (*NameExpr) exprNode()     {}
func (*IndexExpr) exprNode()    {}
func (*CallExpr) exprNode()     {}
func (*FunctionExpr) exprNode() {}
func (*TableExpr) exprNode()    {}
func (*ParenExpr) exprNode()    {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}

// MultiValued reports whether the expression can expand to
// multiple values when it appears last in an expression list.
func MultiValued(e Expr) bool {
	switch e.(type) {
	case *CallExpr, *VarargExpr:
		return true
	default:
		return false
	}
}
