// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package luasyntax

import (
	"fmt"
	"io"

	"sela.dev/pkg/internal/lualex"
)

// Parse parses a source chunk into a [Block].
// The chunkName argument gives a name to the chunk,
// which is used in error messages.
func Parse(chunkName, src string) (*Block, error) {
	p := &parser{
		chunkName: chunkName,
		scanner:   lualex.NewScanner(src),
	}
	p.next()
	block, err := p.block()
	if err != nil {
		return nil, err
	}
	if !p.atEOF {
		return nil, p.errorf(p.tok.Position, "'<eof>' expected near '%v'", p.tok)
	}
	return block, nil
}

type parser struct {
	chunkName string
	scanner   *lualex.Scanner
	tok       lualex.Token
	atEOF     bool
	scanErr   error

	// One token of lookahead, filled by peekAssign.
	peeked  bool
	peekTok lualex.Token
	peekEOF bool
}

func (p *parser) next() {
	if p.atEOF || p.scanErr != nil {
		return
	}
	if p.peeked {
		p.tok, p.atEOF = p.peekTok, p.peekEOF
		p.peeked = false
		return
	}
	tok, err := p.scanner.Scan()
	switch {
	case err == io.EOF:
		p.atEOF = true
		p.tok = lualex.Token{}
	case err != nil:
		p.scanErr = err
		p.tok = tok
	default:
		p.tok = tok
	}
}

// peekAssign reports whether the token after the current one
// is "=", distinguishing the "name = expr" table field form
// from a bare expression field.
func (p *parser) peekAssign() bool {
	if p.atEOF || p.scanErr != nil {
		return false
	}
	if !p.peeked {
		tok, err := p.scanner.Scan()
		switch {
		case err == io.EOF:
			p.peekTok, p.peekEOF = lualex.Token{}, true
		case err != nil:
			p.scanErr = err
			return false
		default:
			p.peekTok, p.peekEOF = tok, false
		}
		p.peeked = true
	}
	return !p.peekEOF && p.peekTok.Kind == lualex.AssignToken
}

func (p *parser) errorf(pos lualex.Position, format string, args ...any) error {
	return fmt.Errorf("%s:%v: %s", p.chunkName, pos, fmt.Sprintf(format, args...))
}

// checkScan surfaces any pending scanner error.
func (p *parser) checkScan() error {
	if p.scanErr == nil {
		return nil
	}
	return fmt.Errorf("%s:%v", p.chunkName, p.scanErr)
}

func (p *parser) got(kind lualex.TokenKind) bool {
	if !p.atEOF && p.tok.Kind == kind {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind lualex.TokenKind) (lualex.Token, error) {
	if err := p.checkScan(); err != nil {
		return lualex.Token{}, err
	}
	if p.atEOF {
		return lualex.Token{}, fmt.Errorf("%s: '%v' expected near '<eof>'", p.chunkName, kind)
	}
	if p.tok.Kind != kind {
		return lualex.Token{}, p.errorf(p.tok.Position, "'%v' expected near '%v'", kind, p.tok)
	}
	tok := p.tok
	p.next()
	return tok, nil
}

// blockEnd reports whether the current token terminates a block.
func (p *parser) blockEnd() bool {
	if p.atEOF {
		return true
	}
	switch p.tok.Kind {
	case lualex.EndToken, lualex.ElseToken, lualex.ElseifToken, lualex.UntilToken:
		return true
	default:
		return false
	}
}

func (p *parser) block() (*Block, error) {
	block := new(Block)
	for !p.blockEnd() {
		if err := p.checkScan(); err != nil {
			return nil, err
		}
		if p.tok.Kind == lualex.ReturnToken {
			stmt, err := p.returnStmt()
			if err != nil {
				return nil, err
			}
			block.Stmts = append(block.Stmts, stmt)
			break
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
	return block, nil
}

func (p *parser) statement() (Stmt, error) {
	pos := p.tok.Position
	switch p.tok.Kind {
	case lualex.SemiToken:
		p.next()
		return nil, nil
	case lualex.BreakToken:
		p.next()
		return &BreakStmt{Position: pos}, nil
	case lualex.DoToken:
		p.next()
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.EndToken); err != nil {
			return nil, err
		}
		return &DoStmt{Position: pos, Body: *body}, nil
	case lualex.WhileToken:
		return p.whileStmt()
	case lualex.RepeatToken:
		return p.repeatStmt()
	case lualex.IfToken:
		return p.ifStmt()
	case lualex.ForToken:
		return p.forStmt()
	case lualex.FunctionToken:
		return p.functionStmt()
	case lualex.LocalToken:
		return p.localStmt()
	default:
		return p.exprStmt()
	}
}

func (p *parser) whileStmt() (Stmt, error) {
	pos := p.tok.Position
	p.next()
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.DoToken); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return &WhileStmt{Position: pos, Cond: cond, Body: *body}, nil
}

func (p *parser) repeatStmt() (Stmt, error) {
	pos := p.tok.Position
	p.next()
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.UntilToken); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &RepeatStmt{Position: pos, Body: *body, Cond: cond}, nil
}

func (p *parser) ifStmt() (Stmt, error) {
	pos := p.tok.Position
	p.next()
	stmt, err := p.ifClause(pos)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return stmt, nil
}

// ifClause parses "cond then block" followed by elseif/else clauses,
// leaving the final "end" for the caller.
func (p *parser) ifClause(pos lualex.Position) (*IfStmt, error) {
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.ThenToken); err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Position: pos, Cond: cond, Then: *then}
	switch {
	case p.got(lualex.ElseifToken):
		nested, err := p.ifClause(pos)
		if err != nil {
			return nil, err
		}
		stmt.Else = &Block{Stmts: []Stmt{nested}}
	case p.got(lualex.ElseToken):
		els, err := p.block()
		if err != nil {
			return nil, err
		}
		stmt.Else = els
	}
	return stmt, nil
}

func (p *parser) forStmt() (Stmt, error) {
	pos := p.tok.Position
	p.next()
	name, err := p.expect(lualex.IdentifierToken)
	if err != nil {
		return nil, err
	}
	if p.got(lualex.AssignToken) {
		// Numeric for.
		start, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.CommaToken); err != nil {
			return nil, err
		}
		limit, err := p.expr()
		if err != nil {
			return nil, err
		}
		var step Expr
		if p.got(lualex.CommaToken) {
			if step, err = p.expr(); err != nil {
				return nil, err
			}
		}
		body, err := p.loopBody()
		if err != nil {
			return nil, err
		}
		return &NumericForStmt{
			Position: pos,
			Name:     name.Value,
			Start:    start,
			Limit:    limit,
			Step:     step,
			Body:     *body,
		}, nil
	}

	names := []string{name.Value}
	for p.got(lualex.CommaToken) {
		n, err := p.expect(lualex.IdentifierToken)
		if err != nil {
			return nil, err
		}
		names = append(names, n.Value)
	}
	if _, err := p.expect(lualex.InToken); err != nil {
		return nil, err
	}
	exprs, err := p.exprList()
	if err != nil {
		return nil, err
	}
	body, err := p.loopBody()
	if err != nil {
		return nil, err
	}
	return &GenericForStmt{Position: pos, Names: names, Exprs: exprs, Body: *body}, nil
}

func (p *parser) loopBody() (*Block, error) {
	if _, err := p.expect(lualex.DoToken); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *parser) functionStmt() (Stmt, error) {
	pos := p.tok.Position
	p.next()
	name, err := p.expect(lualex.IdentifierToken)
	if err != nil {
		return nil, err
	}
	path := []string{name.Value}
	isMethod := false
	for p.got(lualex.DotToken) {
		part, err := p.expect(lualex.IdentifierToken)
		if err != nil {
			return nil, err
		}
		path = append(path, part.Value)
	}
	if p.got(lualex.ColonToken) {
		part, err := p.expect(lualex.IdentifierToken)
		if err != nil {
			return nil, err
		}
		path = append(path, part.Value)
		isMethod = true
	}
	fn, err := p.functionBody(pos, isMethod)
	if err != nil {
		return nil, err
	}
	return &FunctionStmt{Position: pos, Name: path, IsMethod: isMethod, Func: fn}, nil
}

func (p *parser) localStmt() (Stmt, error) {
	pos := p.tok.Position
	p.next()
	if p.got(lualex.FunctionToken) {
		name, err := p.expect(lualex.IdentifierToken)
		if err != nil {
			return nil, err
		}
		fn, err := p.functionBody(pos, false)
		if err != nil {
			return nil, err
		}
		return &LocalFunctionStmt{Position: pos, Name: name.Value, Func: fn}, nil
	}
	name, err := p.expect(lualex.IdentifierToken)
	if err != nil {
		return nil, err
	}
	names := []string{name.Value}
	for p.got(lualex.CommaToken) {
		n, err := p.expect(lualex.IdentifierToken)
		if err != nil {
			return nil, err
		}
		names = append(names, n.Value)
	}
	var values []Expr
	if p.got(lualex.AssignToken) {
		if values, err = p.exprList(); err != nil {
			return nil, err
		}
	}
	return &LocalStmt{Position: pos, Names: names, Values: values}, nil
}

func (p *parser) returnStmt() (Stmt, error) {
	pos := p.tok.Position
	p.next()
	stmt := &ReturnStmt{Position: pos}
	if !p.blockEnd() && p.tok.Kind != lualex.SemiToken {
		exprs, err := p.exprList()
		if err != nil {
			return nil, err
		}
		stmt.Exprs = exprs
	}
	p.got(lualex.SemiToken)
	return stmt, nil
}

// exprStmt parses a statement that starts with an expression:
// either a call statement or an assignment.
func (p *parser) exprStmt() (Stmt, error) {
	pos := p.tok.Position
	first, err := p.suffixedExpr()
	if err != nil {
		return nil, err
	}
	if !p.atEOF && (p.tok.Kind == lualex.AssignToken || p.tok.Kind == lualex.CommaToken) {
		targets := []Expr{first}
		for p.got(lualex.CommaToken) {
			t, err := p.suffixedExpr()
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
		}
		for _, t := range targets {
			switch t.(type) {
			case *NameExpr, *IndexExpr:
			default:
				return nil, p.errorf(t.Pos(), "cannot assign to this expression")
			}
		}
		if _, err := p.expect(lualex.AssignToken); err != nil {
			return nil, err
		}
		values, err := p.exprList()
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Position: pos, Targets: targets, Values: values}, nil
	}
	call, ok := first.(*CallExpr)
	if !ok {
		return nil, p.errorf(pos, "syntax error near '%v'", p.tok)
	}
	return &CallStmt{Call: call}, nil
}

func (p *parser) exprList() ([]Expr, error) {
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{e}
	for p.got(lualex.CommaToken) {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// Binary operator precedences, following the Lua reference manual.
var binaryPrecedence = map[lualex.TokenKind]struct{ left, right int }{
	lualex.OrToken:           {1, 1},
	lualex.AndToken:          {2, 2},
	lualex.LessToken:         {3, 3},
	lualex.GreaterToken:      {3, 3},
	lualex.LessEqualToken:    {3, 3},
	lualex.GreaterEqualToken: {3, 3},
	lualex.NotEqualToken:     {3, 3},
	lualex.EqualToken:        {3, 3},
	lualex.ConcatToken:       {5, 4}, // right associative
	lualex.AddToken:          {6, 6},
	lualex.SubToken:          {6, 6},
	lualex.MulToken:          {7, 7},
	lualex.DivToken:          {7, 7},
	lualex.IntDivToken:       {7, 7},
	lualex.ModToken:          {7, 7},
	lualex.PowToken:          {10, 9}, // right associative
}

const unaryPrecedence = 8

func (p *parser) expr() (Expr, error) {
	return p.subExpr(0)
}

func (p *parser) subExpr(limit int) (Expr, error) {
	if err := p.checkScan(); err != nil {
		return nil, err
	}
	var left Expr
	if !p.atEOF && (p.tok.Kind == lualex.NotToken || p.tok.Kind == lualex.SubToken || p.tok.Kind == lualex.LenToken) {
		op := p.tok.Kind
		pos := p.tok.Position
		p.next()
		x, err := p.subExpr(unaryPrecedence)
		if err != nil {
			return nil, err
		}
		left = &UnaryExpr{Position: pos, Op: op, X: x}
	} else {
		var err error
		left, err = p.simpleExpr()
		if err != nil {
			return nil, err
		}
	}
	for !p.atEOF {
		prec, isBinary := binaryPrecedence[p.tok.Kind]
		if !isBinary || prec.left <= limit {
			break
		}
		op := p.tok.Kind
		pos := p.tok.Position
		p.next()
		right, err := p.subExpr(prec.right)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Position: pos, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) simpleExpr() (Expr, error) {
	if err := p.checkScan(); err != nil {
		return nil, err
	}
	if p.atEOF {
		return nil, fmt.Errorf("%s: unexpected '<eof>'", p.chunkName)
	}
	pos := p.tok.Position
	switch p.tok.Kind {
	case lualex.NilToken:
		p.next()
		return &NilExpr{Position: pos}, nil
	case lualex.TrueToken:
		p.next()
		return &BoolExpr{Position: pos, Value: true}, nil
	case lualex.FalseToken:
		p.next()
		return &BoolExpr{Position: pos, Value: false}, nil
	case lualex.NumeralToken:
		i, f, isInt, err := lualex.ParseValue(p.tok.Value)
		if err != nil {
			return nil, p.errorf(pos, "malformed number near '%s'", p.tok.Value)
		}
		p.next()
		return &NumberExpr{Position: pos, IsInt: isInt, Int: i, Float: f}, nil
	case lualex.StringToken:
		value := p.tok.Value
		p.next()
		return &StringExpr{Position: pos, Value: value}, nil
	case lualex.VarargToken:
		p.next()
		return &VarargExpr{Position: pos}, nil
	case lualex.FunctionToken:
		p.next()
		return p.functionBody(pos, false)
	case lualex.LBraceToken:
		return p.tableExpr()
	default:
		return p.suffixedExpr()
	}
}

// primaryExpr parses a name or a parenthesized expression.
func (p *parser) primaryExpr() (Expr, error) {
	if err := p.checkScan(); err != nil {
		return nil, err
	}
	if p.atEOF {
		return nil, fmt.Errorf("%s: unexpected '<eof>'", p.chunkName)
	}
	pos := p.tok.Position
	switch p.tok.Kind {
	case lualex.IdentifierToken:
		name := p.tok.Value
		p.next()
		return &NameExpr{Position: pos, Name: name}, nil
	case lualex.LParenToken:
		p.next()
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.RParenToken); err != nil {
			return nil, err
		}
		return &ParenExpr{Position: pos, X: x}, nil
	default:
		return nil, p.errorf(pos, "unexpected symbol near '%v'", p.tok)
	}
}

// suffixedExpr parses a primary expression followed by
// any number of index, field, call, or method call suffixes.
func (p *parser) suffixedExpr() (Expr, error) {
	e, err := p.primaryExpr()
	if err != nil {
		return nil, err
	}
	for !p.atEOF {
		pos := p.tok.Position
		switch p.tok.Kind {
		case lualex.DotToken:
			p.next()
			name, err := p.expect(lualex.IdentifierToken)
			if err != nil {
				return nil, err
			}
			e = &IndexExpr{
				Position: pos,
				Object:   e,
				Key:      &StringExpr{Position: name.Position, Value: name.Value},
			}
		case lualex.LBracketToken:
			p.next()
			key, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.RBracketToken); err != nil {
				return nil, err
			}
			e = &IndexExpr{Position: pos, Object: e, Key: key}
		case lualex.ColonToken:
			p.next()
			name, err := p.expect(lualex.IdentifierToken)
			if err != nil {
				return nil, err
			}
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			e = &CallExpr{Position: pos, Func: e, Method: name.Value, Args: args}
		case lualex.LParenToken, lualex.StringToken, lualex.LBraceToken:
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			e = &CallExpr{Position: pos, Func: e, Args: args}
		default:
			return e, nil
		}
	}
	return e, nil
}

// callArgs parses call arguments: a parenthesized list,
// a single string literal, or a single table constructor.
func (p *parser) callArgs() ([]Expr, error) {
	if err := p.checkScan(); err != nil {
		return nil, err
	}
	if p.atEOF {
		return nil, fmt.Errorf("%s: function arguments expected near '<eof>'", p.chunkName)
	}
	switch p.tok.Kind {
	case lualex.StringToken:
		arg := &StringExpr{Position: p.tok.Position, Value: p.tok.Value}
		p.next()
		return []Expr{arg}, nil
	case lualex.LBraceToken:
		arg, err := p.tableExpr()
		if err != nil {
			return nil, err
		}
		return []Expr{arg}, nil
	case lualex.LParenToken:
		p.next()
		if p.got(lualex.RParenToken) {
			return nil, nil
		}
		args, err := p.exprList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lualex.RParenToken); err != nil {
			return nil, err
		}
		return args, nil
	default:
		return nil, p.errorf(p.tok.Position, "function arguments expected near '%v'", p.tok)
	}
}

// functionBody parses the parameter list and body of a function,
// after the "function" keyword and any name have been consumed.
func (p *parser) functionBody(pos lualex.Position, isMethod bool) (*FunctionExpr, error) {
	fn := &FunctionExpr{Position: pos}
	if isMethod {
		fn.Params = append(fn.Params, "self")
	}
	if _, err := p.expect(lualex.LParenToken); err != nil {
		return nil, err
	}
	if !p.got(lualex.RParenToken) {
		for {
			if err := p.checkScan(); err != nil {
				return nil, err
			}
			switch {
			case !p.atEOF && p.tok.Kind == lualex.IdentifierToken:
				fn.Params = append(fn.Params, p.tok.Value)
				p.next()
			case p.got(lualex.VarargToken):
				fn.IsVararg = true
			default:
				return nil, p.errorf(p.tok.Position, "<name> or '...' expected near '%v'", p.tok)
			}
			if fn.IsVararg || !p.got(lualex.CommaToken) {
				break
			}
		}
		if _, err := p.expect(lualex.RParenToken); err != nil {
			return nil, err
		}
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fn.Body = *body
	if _, err := p.expect(lualex.EndToken); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *parser) tableExpr() (Expr, error) {
	pos := p.tok.Position
	if _, err := p.expect(lualex.LBraceToken); err != nil {
		return nil, err
	}
	t := &TableExpr{Position: pos}
	for !p.got(lualex.RBraceToken) {
		if err := p.checkScan(); err != nil {
			return nil, err
		}
		if p.atEOF {
			return nil, fmt.Errorf("%s: '}' expected near '<eof>'", p.chunkName)
		}
		var field TableField
		switch {
		case p.tok.Kind == lualex.LBracketToken:
			p.next()
			key, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.RBracketToken); err != nil {
				return nil, err
			}
			if _, err := p.expect(lualex.AssignToken); err != nil {
				return nil, err
			}
			value, err := p.expr()
			if err != nil {
				return nil, err
			}
			field = TableField{Key: key, Value: value}
		case p.tok.Kind == lualex.IdentifierToken && p.peekAssign():
			key := &StringExpr{Position: p.tok.Position, Value: p.tok.Value}
			p.next() // name
			p.next() // =
			value, err := p.expr()
			if err != nil {
				return nil, err
			}
			field = TableField{Key: key, Value: value}
		default:
			value, err := p.expr()
			if err != nil {
				return nil, err
			}
			field = TableField{Value: value}
		}
		t.Fields = append(t.Fields, field)
		if !p.got(lualex.CommaToken) && !p.got(lualex.SemiToken) {
			if _, err := p.expect(lualex.RBraceToken); err != nil {
				return nil, err
			}
			return t, nil
		}
	}
	return t, nil
}
