// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

package lualex

import "fmt"

// Token represents a single lexical element in a Lua source chunk.
type Token struct {
	Kind     TokenKind
	Position Position
	// Value holds information for
	// an [IdentifierToken], a [StringToken], or a [NumeralToken].
	Value string
}

// String formats the token as it would appear in Lua source.
// String returns "<eof>" for [ErrorToken].
func (tok Token) String() string {
	switch tok.Kind {
	case ErrorToken:
		return "<eof>"
	case StringToken:
		return fmt.Sprintf("%q", tok.Value)
	case IdentifierToken, NumeralToken:
		return tok.Value
	default:
		return tok.Kind.String()
	}
}

// Position represents a position in a textual source chunk.
type Position struct {
	// Line is the 1-based line number.
	Line int
	// Column is the 1-based column number, in bytes.
	Column int
}

// IsValid reports whether pos has a positive line and column.
func (pos Position) IsValid() bool {
	return pos.Line >= 1 && pos.Column >= 1
}

// String formats the position as "line:col".
func (pos Position) String() string {
	if !pos.IsValid() {
		return "<invalid position>"
	}
	return fmt.Sprintf("%d:%d", pos.Line, pos.Column)
}

// TokenKind enumerates the kinds of lexical elements.
type TokenKind int

const (
	// ErrorToken is the kind of the zero Token
	// and of tokens that could not be scanned.
	ErrorToken TokenKind = iota

	// Value-carrying tokens.
	IdentifierToken
	StringToken
	NumeralToken

	// Keywords.
	AndToken
	BreakToken
	DoToken
	ElseToken
	ElseifToken
	EndToken
	FalseToken
	ForToken
	FunctionToken
	IfToken
	InToken
	LocalToken
	NilToken
	NotToken
	OrToken
	RepeatToken
	ReturnToken
	ThenToken
	TrueToken
	UntilToken
	WhileToken

	// Symbols.
	AddToken          // +
	SubToken          // -
	MulToken          // *
	DivToken          // /
	IntDivToken       // //
	ModToken          // %
	PowToken          // ^
	LenToken          // #
	EqualToken        // ==
	NotEqualToken     // ~=
	LessEqualToken    // <=
	GreaterEqualToken // >=
	LessToken         // <
	GreaterToken      // >
	AssignToken       // =
	LParenToken       // (
	RParenToken       // )
	LBraceToken       // {
	RBraceToken       // }
	LBracketToken     // [
	RBracketToken     // ]
	SemiToken         // ;
	ColonToken        // :
	CommaToken        // ,
	DotToken          // .
	ConcatToken       // ..
	VarargToken       // ...
)

var tokenStrings = map[TokenKind]string{
	ErrorToken:        "<error>",
	IdentifierToken:   "<name>",
	StringToken:       "<string>",
	NumeralToken:      "<number>",
	AndToken:          "and",
	BreakToken:        "break",
	DoToken:           "do",
	ElseToken:         "else",
	ElseifToken:       "elseif",
	EndToken:          "end",
	FalseToken:        "false",
	ForToken:          "for",
	FunctionToken:     "function",
	IfToken:           "if",
	InToken:           "in",
	LocalToken:        "local",
	NilToken:          "nil",
	NotToken:          "not",
	OrToken:           "or",
	RepeatToken:       "repeat",
	ReturnToken:       "return",
	ThenToken:         "then",
	TrueToken:         "true",
	UntilToken:        "until",
	WhileToken:        "while",
	AddToken:          "+",
	SubToken:          "-",
	MulToken:          "*",
	DivToken:          "/",
	IntDivToken:       "//",
	ModToken:          "%",
	PowToken:          "^",
	LenToken:          "#",
	EqualToken:        "==",
	NotEqualToken:     "~=",
	LessEqualToken:    "<=",
	GreaterEqualToken: ">=",
	LessToken:         "<",
	GreaterToken:      ">",
	AssignToken:       "=",
	LParenToken:       "(",
	RParenToken:       ")",
	LBraceToken:       "{",
	RBraceToken:       "}",
	LBracketToken:     "[",
	RBracketToken:     "]",
	SemiToken:         ";",
	ColonToken:        ":",
	CommaToken:        ",",
	DotToken:          ".",
	ConcatToken:       "..",
	VarargToken:       "...",
}

// String returns the source representation of the token kind,
// or a placeholder like "<name>" for value-carrying kinds.
func (kind TokenKind) String() string {
	if s, ok := tokenStrings[kind]; ok {
		return s
	}
	return fmt.Sprintf("lualex.TokenKind(%d)", int(kind))
}

var keywords = map[string]TokenKind{
	"and":      AndToken,
	"break":    BreakToken,
	"do":       DoToken,
	"else":     ElseToken,
	"elseif":   ElseifToken,
	"end":      EndToken,
	"false":    FalseToken,
	"for":      ForToken,
	"function": FunctionToken,
	"if":       IfToken,
	"in":       InToken,
	"local":    LocalToken,
	"nil":      NilToken,
	"not":      NotToken,
	"or":       OrToken,
	"repeat":   RepeatToken,
	"return":   ReturnToken,
	"then":     ThenToken,
	"true":     TrueToken,
	"until":    UntilToken,
	"while":    WhileToken,
}
