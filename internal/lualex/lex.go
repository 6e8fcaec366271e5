// Copyright 2025 The sela Authors
// SPDX-License-Identifier: MIT

// Package lualex provides a scanner to split a source chunk
// into [Lua lexical elements].
//
// [Lua lexical elements]: https://www.lua.org/manual/5.4/manual.html#3.1
package lualex

import (
	"fmt"
	"io"
	"strings"
)

// A Scanner parses Lua tokens from a source string.
type Scanner struct {
	src  string
	pos  int
	line int
	col  int
}

// NewScanner returns a [Scanner] that reads the given chunk.
func NewScanner(src string) *Scanner {
	return &Scanner{src: src, line: 1, col: 1}
}

// Error is a scan or parse error annotated with a source position.
type Error struct {
	Position Position
	Msg      string
}

func (e *Error) Error() string {
	if !e.Position.IsValid() {
		return e.Msg
	}
	return fmt.Sprintf("%v: %s", e.Position, e.Msg)
}

func errorf(pos Position, format string, args ...any) *Error {
	return &Error{Position: pos, Msg: fmt.Sprintf(format, args...)}
}

// Scan reads the next [Token] from the chunk.
// At the end of the chunk, Scan returns a zero token and [io.EOF].
// If Scan returns any other error,
// the returned token is an [ErrorToken]
// positioned at the approximate location of the error.
func (s *Scanner) Scan() (Token, error) {
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return Token{}, io.EOF
		}
		if !s.skipComment() {
			break
		}
	}

	pos := s.position()
	b := s.src[s.pos]
	switch {
	case isNameStart(b):
		value := s.takeWhile(isNameByte)
		if kind, isKeyword := keywords[value]; isKeyword {
			return Token{Kind: kind, Position: pos}, nil
		}
		return Token{Kind: IdentifierToken, Position: pos, Value: value}, nil
	case isDigit(b):
		value, err := s.numeral()
		if err != nil {
			return Token{Kind: ErrorToken, Position: pos}, err
		}
		return Token{Kind: NumeralToken, Position: pos, Value: value}, nil
	case b == '\'' || b == '"':
		value, err := s.shortString(b)
		if err != nil {
			return Token{Kind: ErrorToken, Position: pos}, err
		}
		return Token{Kind: StringToken, Position: pos, Value: value}, nil
	case b == '.' && s.pos+1 < len(s.src) && isDigit(s.src[s.pos+1]):
		value, err := s.numeral()
		if err != nil {
			return Token{Kind: ErrorToken, Position: pos}, err
		}
		return Token{Kind: NumeralToken, Position: pos, Value: value}, nil
	}

	if b == '[' {
		if level, ok := s.longOpenBracket(); ok {
			value, err := s.longString(level)
			if err != nil {
				return Token{Kind: ErrorToken, Position: pos}, err
			}
			return Token{Kind: StringToken, Position: pos, Value: value}, nil
		}
	}

	kind, err := s.symbol()
	if err != nil {
		return Token{Kind: ErrorToken, Position: pos}, err
	}
	return Token{Kind: kind, Position: pos}, nil
}

func (s *Scanner) symbol() (TokenKind, error) {
	pos := s.position()
	b := s.advance()
	switch b {
	case '+':
		return AddToken, nil
	case '-':
		return SubToken, nil
	case '*':
		return MulToken, nil
	case '/':
		if s.accept('/') {
			return IntDivToken, nil
		}
		return DivToken, nil
	case '%':
		return ModToken, nil
	case '^':
		return PowToken, nil
	case '#':
		return LenToken, nil
	case '=':
		if s.accept('=') {
			return EqualToken, nil
		}
		return AssignToken, nil
	case '~':
		if s.accept('=') {
			return NotEqualToken, nil
		}
		return 0, errorf(pos, "unexpected symbol near '~'")
	case '<':
		if s.accept('=') {
			return LessEqualToken, nil
		}
		return LessToken, nil
	case '>':
		if s.accept('=') {
			return GreaterEqualToken, nil
		}
		return GreaterToken, nil
	case '(':
		return LParenToken, nil
	case ')':
		return RParenToken, nil
	case '{':
		return LBraceToken, nil
	case '}':
		return RBraceToken, nil
	case '[':
		return LBracketToken, nil
	case ']':
		return RBracketToken, nil
	case ';':
		return SemiToken, nil
	case ':':
		return ColonToken, nil
	case ',':
		return CommaToken, nil
	case '.':
		if !s.accept('.') {
			return DotToken, nil
		}
		if s.accept('.') {
			return VarargToken, nil
		}
		return ConcatToken, nil
	default:
		return 0, errorf(pos, "unexpected symbol near %q", string(rune(b)))
	}
}

// ScanAll reads all tokens in the chunk until the end or the first error.
func ScanAll(src string) ([]Token, error) {
	s := NewScanner(src)
	var tokens []Token
	for {
		tok, err := s.Scan()
		if err == io.EOF {
			return tokens, nil
		}
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
	}
}

func (s *Scanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\r':
			s.pos++
			s.col++
		case '\n':
			s.pos++
			s.line++
			s.col = 1
		default:
			return
		}
	}
}

// skipComment consumes a comment if one starts at the current position
// and reports whether it did.
func (s *Scanner) skipComment() bool {
	if !strings.HasPrefix(s.src[s.pos:], "--") {
		return false
	}
	s.pos += 2
	s.col += 2
	if s.pos < len(s.src) && s.src[s.pos] == '[' {
		if level, ok := s.longOpenBracket(); ok {
			// Long comment: discard the bracketed text.
			s.longString(level)
			return true
		}
	}
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
		s.col++
	}
	return true
}

func (s *Scanner) position() Position {
	return Position{Line: s.line, Column: s.col}
}

func (s *Scanner) advance() byte {
	b := s.src[s.pos]
	s.pos++
	if b == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return b
}

func (s *Scanner) accept(b byte) bool {
	if s.pos < len(s.src) && s.src[s.pos] == b {
		s.advance()
		return true
	}
	return false
}

func (s *Scanner) takeWhile(pred func(byte) bool) string {
	start := s.pos
	for s.pos < len(s.src) && pred(s.src[s.pos]) {
		s.advance()
	}
	return s.src[start:s.pos]
}

// numeral scans a decimal or hexadecimal numeral.
// The numeral's source text is returned verbatim;
// conversion to a number value is left to the parser.
func (s *Scanner) numeral() (string, error) {
	pos := s.position()
	start := s.pos
	if strings.HasPrefix(s.src[s.pos:], "0x") || strings.HasPrefix(s.src[s.pos:], "0X") {
		s.advance()
		s.advance()
		digits := s.takeWhile(isHexDigit)
		if digits == "" {
			return "", errorf(pos, "malformed number near '%s'", s.src[start:s.pos])
		}
		return s.src[start:s.pos], nil
	}
	s.takeWhile(isDigit)
	if s.accept('.') {
		s.takeWhile(isDigit)
	}
	if s.pos < len(s.src) && (s.src[s.pos] == 'e' || s.src[s.pos] == 'E') {
		s.advance()
		if s.pos < len(s.src) && (s.src[s.pos] == '+' || s.src[s.pos] == '-') {
			s.advance()
		}
		if digits := s.takeWhile(isDigit); digits == "" {
			return "", errorf(pos, "malformed number near '%s'", s.src[start:s.pos])
		}
	}
	if s.pos < len(s.src) && isNameStart(s.src[s.pos]) {
		return "", errorf(pos, "malformed number near '%s'", s.src[start:s.pos+1])
	}
	return s.src[start:s.pos], nil
}

// shortString scans a single- or double-quoted string literal.
// The opening quote has not been consumed yet.
func (s *Scanner) shortString(quote byte) (string, error) {
	pos := s.position()
	s.advance()
	sb := new(strings.Builder)
	for {
		if s.pos >= len(s.src) {
			return "", errorf(pos, "unfinished string")
		}
		b := s.src[s.pos]
		switch b {
		case quote:
			s.advance()
			return sb.String(), nil
		case '\n':
			return "", errorf(pos, "unfinished string")
		case '\\':
			s.advance()
			if err := s.stringEscape(sb); err != nil {
				return "", err
			}
		default:
			sb.WriteByte(b)
			s.advance()
		}
	}
}

func (s *Scanner) stringEscape(sb *strings.Builder) error {
	pos := s.position()
	if s.pos >= len(s.src) {
		return errorf(pos, "unfinished string")
	}
	b := s.advance()
	switch b {
	case 'a':
		sb.WriteByte('\a')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case 'v':
		sb.WriteByte('\v')
	case '\\', '\'', '"':
		sb.WriteByte(b)
	case '\n':
		sb.WriteByte('\n')
	case 'x':
		var n byte
		for i := 0; i < 2; i++ {
			if s.pos >= len(s.src) || !isHexDigit(s.src[s.pos]) {
				return errorf(pos, "hexadecimal digit expected")
			}
			n = n<<4 | hexValue(s.advance())
		}
		sb.WriteByte(n)
	case 'z':
		s.skipSpace()
	default:
		if !isDigit(b) {
			return errorf(pos, "invalid escape sequence '\\%s'", string(rune(b)))
		}
		n := int(b - '0')
		for i := 0; i < 2 && s.pos < len(s.src) && isDigit(s.src[s.pos]); i++ {
			n = n*10 + int(s.advance()-'0')
		}
		if n > 0xff {
			return errorf(pos, "decimal escape too large")
		}
		sb.WriteByte(byte(n))
	}
	return nil
}

// longOpenBracket attempts to consume a long bracket opener like "[[" or "[==[".
// On failure nothing is consumed.
func (s *Scanner) longOpenBracket() (level int, ok bool) {
	save := *s
	if !s.accept('[') {
		return 0, false
	}
	for s.accept('=') {
		level++
	}
	if !s.accept('[') {
		*s = save
		return 0, false
	}
	return level, true
}

// longString scans the body of a long string after its opening bracket,
// up to and including the matching closing bracket.
func (s *Scanner) longString(level int) (string, error) {
	pos := s.position()
	// A newline immediately following the opening bracket is skipped.
	if s.pos < len(s.src) && s.src[s.pos] == '\n' {
		s.advance()
	}
	closing := "]" + strings.Repeat("=", level) + "]"
	start := s.pos
	for s.pos < len(s.src) {
		if strings.HasPrefix(s.src[s.pos:], closing) {
			value := s.src[start:s.pos]
			for range closing {
				s.advance()
			}
			return value, nil
		}
		s.advance()
	}
	return "", errorf(pos, "unfinished long string")
}

func isNameStart(b byte) bool {
	return b == '_' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

func isNameByte(b byte) bool {
	return isNameStart(b) || isDigit(b)
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || 'a' <= b && b <= 'f' || 'A' <= b && b <= 'F'
}

func hexValue(b byte) byte {
	switch {
	case isDigit(b):
		return b - '0'
	case 'a' <= b && b <= 'f':
		return b - 'a' + 10
	default:
		return b - 'A' + 10
	}
}
