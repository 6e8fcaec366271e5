// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"errors"
	"fmt"
	"math"

	"sela.dev/pkg/internal/lualex"
	"sela.dev/pkg/internal/luasyntax"
)

const maxCallDepth = 200

// env is one lexical scope.
// Variables are stored behind pointers
// so closures observe later assignments.
type env struct {
	parent  *env
	vars    map[string]*any
	varargs []any
	// funcRoot marks the outermost scope of a function body.
	// Vararg lookup stops here.
	funcRoot bool
}

func newEnv(parent *env) *env {
	return &env{parent: parent, vars: make(map[string]*any)}
}

func (e *env) lookup(name string) (*any, bool) {
	for s := e; s != nil; s = s.parent {
		if cell, ok := s.vars[name]; ok {
			return cell, true
		}
	}
	return nil, false
}

func (e *env) define(name string, v any) {
	cell := new(any)
	*cell = v
	e.vars[name] = cell
}

func (e *env) functionVarargs() []any {
	for s := e; s != nil; s = s.parent {
		if s.funcRoot {
			return s.varargs
		}
	}
	return nil
}

// breakSignal and returnSignal unwind the interpreter
// out of loops and function bodies.
// They never escape [State.callValue].
var breakSignal = errors.New("break outside loop")

type returnSignal struct {
	values []any
}

func (*returnSignal) Error() string { return "return outside function" }

func (l *State) runtimeError(chunk string, pos lualex.Position, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &errorObject{value: fmt.Sprintf("%s:%d: %s", chunk, pos.Line, msg)}
}

// callValue calls a Lua or Go function with the given arguments
// and returns its results.
// Errors raised during the call are returned, never panicked,
// except for panics out of Go callbacks,
// which are captured as a [*CallbackError].
func (l *State) callValue(fv any, args []any) ([]any, error) {
	if l.depth >= maxCallDepth {
		return nil, newRuntimeError("stack overflow")
	}
	l.depth++
	defer func() { l.depth-- }()

	switch f := fv.(type) {
	case *luaFunction:
		return l.callLua(f, args)
	case *goFunction:
		return l.callGo(f, args)
	default:
		return nil, newRuntimeError("attempt to call a %v value", valueType(fv))
	}
}

func (l *State) callLua(f *luaFunction, args []any) ([]any, error) {
	scope := newEnv(f.env)
	scope.funcRoot = true
	for i, name := range f.proto.Params {
		if i < len(args) {
			scope.define(name, args[i])
		} else {
			scope.define(name, nil)
		}
	}
	if f.proto.IsVararg && len(args) > len(f.proto.Params) {
		scope.varargs = args[len(f.proto.Params):]
	}
	err := l.exec(&f.proto.Body, scope, f.chunk)
	if err == nil {
		return nil, nil
	}
	var ret *returnSignal
	if errors.As(err, &ret) {
		return ret.values, nil
	}
	return nil, err
}

// callGo runs a Go callback inside a fresh stack frame:
// the arguments become stack slots 1..n for the callback,
// and the top results it leaves become the call's results.
func (l *State) callGo(f *goFunction, args []any) (results []any, err error) {
	frameBase := len(l.stack)
	for _, arg := range args {
		l.push(arg)
	}
	l.bases = append(l.bases, frameBase)
	defer func() {
		l.bases = l.bases[:len(l.bases)-1]
		l.setTop(frameBase)
		if p := recover(); p != nil {
			results = nil
			err = &CallbackError{Value: p}
		}
	}()

	n, err := f.cb(l)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if top := l.Top(); n > top {
		n = top
	}
	results = make([]any, n)
	copy(results, l.stack[len(l.stack)-n:])
	return results, nil
}

func (l *State) exec(block *luasyntax.Block, scope *env, chunk string) error {
	for _, stmt := range block.Stmts {
		if err := l.execStmt(stmt, scope, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (l *State) execStmt(stmt luasyntax.Stmt, scope *env, chunk string) error {
	switch stmt := stmt.(type) {
	case *luasyntax.LocalStmt:
		values, err := l.evalExprList(stmt.Values, scope, chunk, len(stmt.Names))
		if err != nil {
			return err
		}
		for i, name := range stmt.Names {
			scope.define(name, values[i])
		}
		return nil
	case *luasyntax.AssignStmt:
		values, err := l.evalExprList(stmt.Values, scope, chunk, len(stmt.Targets))
		if err != nil {
			return err
		}
		for i, target := range stmt.Targets {
			if err := l.assign(target, values[i], scope, chunk); err != nil {
				return err
			}
		}
		return nil
	case *luasyntax.CallStmt:
		_, err := l.evalCall(stmt.Call, scope, chunk)
		return err
	case *luasyntax.DoStmt:
		return l.exec(&stmt.Body, newEnv(scope), chunk)
	case *luasyntax.WhileStmt:
		for {
			cond, err := l.eval(stmt.Cond, scope, chunk)
			if err != nil {
				return err
			}
			if !toBoolean(cond) {
				return nil
			}
			err = l.exec(&stmt.Body, newEnv(scope), chunk)
			if err == breakSignal {
				return nil
			}
			if err != nil {
				return err
			}
		}
	case *luasyntax.RepeatStmt:
		for {
			// The until condition sees the body's locals.
			inner := newEnv(scope)
			err := l.exec(&stmt.Body, inner, chunk)
			if err == breakSignal {
				return nil
			}
			if err != nil {
				return err
			}
			cond, err := l.eval(stmt.Cond, inner, chunk)
			if err != nil {
				return err
			}
			if toBoolean(cond) {
				return nil
			}
		}
	case *luasyntax.IfStmt:
		cond, err := l.eval(stmt.Cond, scope, chunk)
		if err != nil {
			return err
		}
		if toBoolean(cond) {
			return l.exec(&stmt.Then, newEnv(scope), chunk)
		}
		if stmt.Else != nil {
			return l.exec(stmt.Else, newEnv(scope), chunk)
		}
		return nil
	case *luasyntax.NumericForStmt:
		return l.execNumericFor(stmt, scope, chunk)
	case *luasyntax.GenericForStmt:
		return l.execGenericFor(stmt, scope, chunk)
	case *luasyntax.FunctionStmt:
		f := &luaFunction{id: nextID(), chunk: chunk, proto: stmt.Func, env: scope}
		if len(stmt.Name) == 1 {
			return l.assign(&luasyntax.NameExpr{Position: stmt.Position, Name: stmt.Name[0]}, f, scope, chunk)
		}
		obj, err := l.eval(&luasyntax.NameExpr{Position: stmt.Position, Name: stmt.Name[0]}, scope, chunk)
		if err != nil {
			return err
		}
		for _, part := range stmt.Name[1 : len(stmt.Name)-1] {
			obj, err = l.index(obj, part, stmt.Position, chunk)
			if err != nil {
				return err
			}
		}
		return l.setIndex(obj, stmt.Name[len(stmt.Name)-1], f, stmt.Position, chunk)
	case *luasyntax.LocalFunctionStmt:
		// Define the name first so the function can call itself.
		scope.define(stmt.Name, nil)
		f := &luaFunction{id: nextID(), chunk: chunk, proto: stmt.Func, env: scope}
		cell, _ := scope.lookup(stmt.Name)
		*cell = f
		return nil
	case *luasyntax.ReturnStmt:
		values, err := l.evalMulti(stmt.Exprs, scope, chunk)
		if err != nil {
			return err
		}
		return &returnSignal{values: values}
	case *luasyntax.BreakStmt:
		return breakSignal
	default:
		return fmt.Errorf("internal error: unhandled statement %T", stmt)
	}
}

func (l *State) execNumericFor(stmt *luasyntax.NumericForStmt, scope *env, chunk string) error {
	start, err := l.eval(stmt.Start, scope, chunk)
	if err != nil {
		return err
	}
	limit, err := l.eval(stmt.Limit, scope, chunk)
	if err != nil {
		return err
	}
	var step any = int64(1)
	if stmt.Step != nil {
		step, err = l.eval(stmt.Step, scope, chunk)
		if err != nil {
			return err
		}
	}

	runBody := func(v any) (stop bool, err error) {
		inner := newEnv(scope)
		inner.define(stmt.Name, v)
		err = l.exec(&stmt.Body, inner, chunk)
		if err == breakSignal {
			return true, nil
		}
		return false, err
	}

	iStart, ok1 := start.(int64)
	iLimit, ok2 := limit.(int64)
	iStep, ok3 := step.(int64)
	if ok1 && ok2 && ok3 {
		if iStep == 0 {
			return l.runtimeError(chunk, stmt.Position, "'for' step is zero")
		}
		for i := iStart; (iStep > 0 && i <= iLimit) || (iStep < 0 && i >= iLimit); i += iStep {
			stop, err := runBody(i)
			if stop || err != nil {
				return err
			}
			// Guard against wraparound at the int64 edges.
			if iStep > 0 && i > iLimit-iStep {
				return nil
			}
			if iStep < 0 && i < iLimit-iStep {
				return nil
			}
		}
		return nil
	}

	fStart, ok1 := toNumber(start)
	fLimit, ok2 := toNumber(limit)
	fStep, ok3 := toNumber(step)
	if !ok1 || !ok2 || !ok3 {
		return l.runtimeError(chunk, stmt.Position, "'for' initial value must be a number")
	}
	if fStep == 0 {
		return l.runtimeError(chunk, stmt.Position, "'for' step is zero")
	}
	for f := fStart; (fStep > 0 && f <= fLimit) || (fStep < 0 && f >= fLimit); f += fStep {
		stop, err := runBody(f)
		if stop || err != nil {
			return err
		}
	}
	return nil
}

func (l *State) execGenericFor(stmt *luasyntax.GenericForStmt, scope *env, chunk string) error {
	ctrl, err := l.evalExprList(stmt.Exprs, scope, chunk, 3)
	if err != nil {
		return err
	}
	iterator, state, control := ctrl[0], ctrl[1], ctrl[2]
	for {
		values, err := l.callValue(iterator, []any{state, control})
		if err != nil {
			return err
		}
		for len(values) < len(stmt.Names) {
			values = append(values, nil)
		}
		if values[0] == nil {
			return nil
		}
		control = values[0]
		inner := newEnv(scope)
		for i, name := range stmt.Names {
			inner.define(name, values[i])
		}
		err = l.exec(&stmt.Body, inner, chunk)
		if err == breakSignal {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (l *State) assign(target luasyntax.Expr, v any, scope *env, chunk string) error {
	switch target := target.(type) {
	case *luasyntax.NameExpr:
		if cell, ok := scope.lookup(target.Name); ok {
			*cell = v
			return nil
		}
		return l.globals.set(target.Name, v)
	case *luasyntax.IndexExpr:
		obj, err := l.eval(target.Object, scope, chunk)
		if err != nil {
			return err
		}
		key, err := l.eval(target.Key, scope, chunk)
		if err != nil {
			return err
		}
		return l.setIndex(obj, key, v, target.Position, chunk)
	default:
		return l.runtimeError(chunk, target.Pos(), "cannot assign to this expression")
	}
}

func (l *State) index(obj, key any, pos lualex.Position, chunk string) (any, error) {
	tab, ok := obj.(*table)
	if !ok {
		if _, isString := obj.(string); isString {
			// Strings respond to the string library functions.
			if strlib, isTable := l.globals.get("string").(*table); isTable {
				return strlib.get(key), nil
			}
		}
		return nil, l.runtimeError(chunk, pos, "attempt to index a %v value", valueType(obj))
	}
	return tab.get(key), nil
}

func (l *State) setIndex(obj, key, v any, pos lualex.Position, chunk string) error {
	tab, ok := obj.(*table)
	if !ok {
		return l.runtimeError(chunk, pos, "attempt to index a %v value", valueType(obj))
	}
	if err := tab.set(key, v); err != nil {
		return l.runtimeError(chunk, pos, "%v", err)
	}
	return nil
}

// evalExprList evaluates an expression list,
// expanding a trailing call or vararg,
// and adjusts the result to exactly n values.
func (l *State) evalExprList(exprs []luasyntax.Expr, scope *env, chunk string, n int) ([]any, error) {
	values, err := l.evalMulti(exprs, scope, chunk)
	if err != nil {
		return nil, err
	}
	for len(values) < n {
		values = append(values, nil)
	}
	return values[:n], nil
}

// evalMulti evaluates an expression list,
// expanding a trailing function call or vararg expression
// to all of its values.
func (l *State) evalMulti(exprs []luasyntax.Expr, scope *env, chunk string) ([]any, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	values := make([]any, 0, len(exprs))
	for _, e := range exprs[:len(exprs)-1] {
		v, err := l.eval(e, scope, chunk)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	last := exprs[len(exprs)-1]
	if luasyntax.MultiValued(last) {
		tail, err := l.evalTail(last, scope, chunk)
		if err != nil {
			return nil, err
		}
		return append(values, tail...), nil
	}
	v, err := l.eval(last, scope, chunk)
	if err != nil {
		return nil, err
	}
	return append(values, v), nil
}

// evalTail evaluates a multi-valued expression
// (a call or a vararg) to all of its values.
func (l *State) evalTail(e luasyntax.Expr, scope *env, chunk string) ([]any, error) {
	switch e := e.(type) {
	case *luasyntax.CallExpr:
		return l.evalCall(e, scope, chunk)
	case *luasyntax.VarargExpr:
		return scope.functionVarargs(), nil
	default:
		v, err := l.eval(e, scope, chunk)
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	}
}

func (l *State) evalCall(e *luasyntax.CallExpr, scope *env, chunk string) ([]any, error) {
	fv, err := l.eval(e.Func, scope, chunk)
	if err != nil {
		return nil, err
	}
	var args []any
	if e.Method != "" {
		m, err := l.index(fv, e.Method, e.Position, chunk)
		if err != nil {
			return nil, err
		}
		args = append(args, fv)
		fv = m
	}
	rest, err := l.evalMulti(e.Args, scope, chunk)
	if err != nil {
		return nil, err
	}
	args = append(args, rest...)
	results, err := l.callValue(fv, args)
	if err != nil {
		var obj *errorObject
		var cbErr *CallbackError
		if errors.As(err, &obj) || errors.As(err, &cbErr) {
			return nil, err
		}
		// Anchor handler-less failures to the call site.
		return nil, l.runtimeError(chunk, e.Position, "%v", err)
	}
	return results, nil
}

func (l *State) eval(e luasyntax.Expr, scope *env, chunk string) (any, error) {
	switch e := e.(type) {
	case *luasyntax.NilExpr:
		return nil, nil
	case *luasyntax.BoolExpr:
		return e.Value, nil
	case *luasyntax.NumberExpr:
		if e.IsInt {
			return e.Int, nil
		}
		return e.Float, nil
	case *luasyntax.StringExpr:
		return e.Value, nil
	case *luasyntax.VarargExpr:
		varargs := scope.functionVarargs()
		if len(varargs) == 0 {
			return nil, nil
		}
		return varargs[0], nil
	case *luasyntax.NameExpr:
		if cell, ok := scope.lookup(e.Name); ok {
			return *cell, nil
		}
		return l.globals.get(e.Name), nil
	case *luasyntax.IndexExpr:
		obj, err := l.eval(e.Object, scope, chunk)
		if err != nil {
			return nil, err
		}
		key, err := l.eval(e.Key, scope, chunk)
		if err != nil {
			return nil, err
		}
		return l.index(obj, key, e.Position, chunk)
	case *luasyntax.CallExpr:
		results, err := l.evalCall(e, scope, chunk)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, nil
		}
		return results[0], nil
	case *luasyntax.FunctionExpr:
		return &luaFunction{id: nextID(), chunk: chunk, proto: e, env: scope}, nil
	case *luasyntax.TableExpr:
		return l.evalTable(e, scope, chunk)
	case *luasyntax.ParenExpr:
		return l.eval(e.X, scope, chunk)
	case *luasyntax.BinaryExpr:
		return l.evalBinary(e, scope, chunk)
	case *luasyntax.UnaryExpr:
		return l.evalUnary(e, scope, chunk)
	default:
		return nil, fmt.Errorf("internal error: unhandled expression %T", e)
	}
}

func (l *State) evalTable(e *luasyntax.TableExpr, scope *env, chunk string) (any, error) {
	tab := newTable()
	var arrayIndex int64 = 1
	for i, field := range e.Fields {
		if field.Key != nil {
			key, err := l.eval(field.Key, scope, chunk)
			if err != nil {
				return nil, err
			}
			value, err := l.eval(field.Value, scope, chunk)
			if err != nil {
				return nil, err
			}
			if err := tab.set(key, value); err != nil {
				return nil, l.runtimeError(chunk, field.Value.Pos(), "%v", err)
			}
			continue
		}
		// A trailing multi-valued field spreads into the array part.
		if i == len(e.Fields)-1 && luasyntax.MultiValued(field.Value) {
			tail, err := l.evalTail(field.Value, scope, chunk)
			if err != nil {
				return nil, err
			}
			for _, v := range tail {
				if v != nil {
					tab.set(arrayIndex, v)
				}
				arrayIndex++
			}
			continue
		}
		value, err := l.eval(field.Value, scope, chunk)
		if err != nil {
			return nil, err
		}
		if value != nil {
			tab.set(arrayIndex, value)
		}
		arrayIndex++
	}
	return tab, nil
}

func (l *State) evalUnary(e *luasyntax.UnaryExpr, scope *env, chunk string) (any, error) {
	v, err := l.eval(e.X, scope, chunk)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case lualex.SubToken:
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		if f, ok := toNumber(v); ok {
			return -f, nil
		}
		return nil, l.runtimeError(chunk, e.Position, "attempt to perform arithmetic on a %v value", valueType(v))
	case lualex.NotToken:
		return !toBoolean(v), nil
	case lualex.LenToken:
		switch v := v.(type) {
		case string:
			return int64(len(v)), nil
		case *table:
			return v.len(), nil
		}
		return nil, l.runtimeError(chunk, e.Position, "attempt to get length of a %v value", valueType(v))
	default:
		return nil, fmt.Errorf("internal error: unhandled unary operator %v", e.Op)
	}
}

func (l *State) evalBinary(e *luasyntax.BinaryExpr, scope *env, chunk string) (any, error) {
	// and/or evaluate their right operand lazily.
	switch e.Op {
	case lualex.AndToken:
		left, err := l.eval(e.Left, scope, chunk)
		if err != nil || !toBoolean(left) {
			return left, err
		}
		return l.eval(e.Right, scope, chunk)
	case lualex.OrToken:
		left, err := l.eval(e.Left, scope, chunk)
		if err != nil || toBoolean(left) {
			return left, err
		}
		return l.eval(e.Right, scope, chunk)
	}

	left, err := l.eval(e.Left, scope, chunk)
	if err != nil {
		return nil, err
	}
	right, err := l.eval(e.Right, scope, chunk)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case lualex.AddToken, lualex.SubToken, lualex.MulToken, lualex.DivToken,
		lualex.IntDivToken, lualex.ModToken, lualex.PowToken:
		v, err := arith(e.Op, left, right)
		if err != nil {
			return nil, l.runtimeError(chunk, e.Position, "%v", err)
		}
		return v, nil
	case lualex.ConcatToken:
		ls, ok1 := toString(left)
		rs, ok2 := toString(right)
		if !ok1 {
			return nil, l.runtimeError(chunk, e.Position, "attempt to concatenate a %v value", valueType(left))
		}
		if !ok2 {
			return nil, l.runtimeError(chunk, e.Position, "attempt to concatenate a %v value", valueType(right))
		}
		return ls + rs, nil
	case lualex.EqualToken:
		return valuesEqual(left, right), nil
	case lualex.NotEqualToken:
		return !valuesEqual(left, right), nil
	case lualex.LessToken, lualex.LessEqualToken, lualex.GreaterToken, lualex.GreaterEqualToken:
		v, err := compare(e.Op, left, right)
		if err != nil {
			return nil, l.runtimeError(chunk, e.Position, "%v", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("internal error: unhandled binary operator %v", e.Op)
	}
}

// arith applies a binary arithmetic operator
// with Lua's numeric promotion rules:
// integer operands stay integers except for /, ^,
// and any float operand promotes the operation to floats.
func arith(op lualex.TokenKind, left, right any) (any, error) {
	li, leftIsInt := left.(int64)
	ri, rightIsInt := right.(int64)
	if leftIsInt && rightIsInt {
		switch op {
		case lualex.AddToken:
			return li + ri, nil
		case lualex.SubToken:
			return li - ri, nil
		case lualex.MulToken:
			return li * ri, nil
		case lualex.IntDivToken:
			if ri == 0 {
				return nil, errors.New("attempt to perform 'n//0'")
			}
			return floorDivInt(li, ri), nil
		case lualex.ModToken:
			if ri == 0 {
				return nil, errors.New("attempt to perform 'n%0'")
			}
			return li - floorDivInt(li, ri)*ri, nil
		}
	}

	lf, ok1 := toNumber(left)
	rf, ok2 := toNumber(right)
	if !ok1 {
		return nil, fmt.Errorf("attempt to perform arithmetic on a %v value", valueType(left))
	}
	if !ok2 {
		return nil, fmt.Errorf("attempt to perform arithmetic on a %v value", valueType(right))
	}
	switch op {
	case lualex.AddToken:
		return lf + rf, nil
	case lualex.SubToken:
		return lf - rf, nil
	case lualex.MulToken:
		return lf * rf, nil
	case lualex.DivToken:
		return lf / rf, nil
	case lualex.IntDivToken:
		return math.Floor(lf / rf), nil
	case lualex.ModToken:
		m := math.Mod(lf, rf)
		if m != 0 && (m < 0) != (rf < 0) {
			m += rf
		}
		return m, nil
	case lualex.PowToken:
		return math.Pow(lf, rf), nil
	default:
		return nil, fmt.Errorf("internal error: unhandled arithmetic operator %v", op)
	}
}

// floorDivInt implements Lua's // on integers, rounding toward -inf.
func floorDivInt(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func compare(op lualex.TokenKind, left, right any) (bool, error) {
	// Normalize > and >= to their mirrored forms.
	switch op {
	case lualex.GreaterToken:
		return compare(lualex.LessToken, right, left)
	case lualex.GreaterEqualToken:
		return compare(lualex.LessEqualToken, right, left)
	}

	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return false, fmt.Errorf("attempt to compare string with %v", valueType(right))
		}
		if op == lualex.LessToken {
			return ls < rs, nil
		}
		return ls <= rs, nil
	}

	lf, ok1 := numberValue(left)
	rf, ok2 := numberValue(right)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("attempt to compare %v with %v", valueType(left), valueType(right))
	}
	if op == lualex.LessToken {
		return lf < rf, nil
	}
	return lf <= rf, nil
}

// numberValue is like toNumber but does not coerce strings:
// comparison in Lua never converts between strings and numbers.
func numberValue(v any) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
