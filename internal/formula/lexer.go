// Package formula implements the computed-column micro-language: field
// references in braces, numeric and string literals, the four arithmetic
// operators plus modulo, UPPER/LOWER/CONCAT, and a single IF conditional.
// Formulas are parsed into a small AST and evaluated by tree walking; no
// dynamic code execution is involved.
package formula

import (
	"fmt"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError
	TokenNumber
	TokenString
	TokenFieldRef // {name}
	TokenIdent    // function name

	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEq      // =
	TokenNe      // !=
	TokenLt      // <
	TokenGt      // >
	TokenComma   // ,
	TokenLParen  // (
	TokenRParen  // )
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

func (t Token) String() string {
	return fmt.Sprintf("Token{%d, %q, %d}", t.Type, t.Literal, t.Pos)
}

// Lexer tokenizes a formula string.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token in the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '+':
		l.pos++
		return Token{Type: TokenPlus, Literal: "+", Pos: start}
	case '-':
		l.pos++
		return Token{Type: TokenMinus, Literal: "-", Pos: start}
	case '*':
		l.pos++
		return Token{Type: TokenStar, Literal: "*", Pos: start}
	case '/':
		l.pos++
		return Token{Type: TokenSlash, Literal: "/", Pos: start}
	case '%':
		l.pos++
		return Token{Type: TokenPercent, Literal: "%", Pos: start}
	case '=':
		l.pos++
		return Token{Type: TokenEq, Literal: "=", Pos: start}
	case '<':
		l.pos++
		return Token{Type: TokenLt, Literal: "<", Pos: start}
	case '>':
		l.pos++
		return Token{Type: TokenGt, Literal: ">", Pos: start}
	case ',':
		l.pos++
		return Token{Type: TokenComma, Literal: ",", Pos: start}
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Literal: "(", Pos: start}
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Literal: ")", Pos: start}
	case '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return Token{Type: TokenNe, Literal: "!=", Pos: start}
		}
		l.pos++
		return Token{Type: TokenError, Literal: "!", Pos: start}
	case '{':
		return l.readFieldRef()
	case '\'', '"':
		return l.readString(ch)
	}

	if isDigit(ch) || (ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])) {
		return l.readNumber()
	}
	if isIdentStart(ch) {
		return l.readIdent()
	}

	l.pos++
	return Token{Type: TokenError, Literal: string(ch), Pos: start}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// readFieldRef reads a {name} reference. The name may contain any character
// except a closing brace, matching how column names are referenced in
// stored formulas.
func (l *Lexer) readFieldRef() Token {
	start := l.pos
	l.pos++ // consume '{'
	for l.pos < len(l.input) && l.input[l.pos] != '}' {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenError, Literal: l.input[start:], Pos: start}
	}
	name := l.input[start+1 : l.pos]
	l.pos++ // consume '}'
	return Token{Type: TokenFieldRef, Literal: name, Pos: start}
}

func (l *Lexer) readString(quote byte) Token {
	start := l.pos
	l.pos++ // consume opening quote
	for l.pos < len(l.input) && l.input[l.pos] != quote {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenError, Literal: l.input[start:], Pos: start}
	}
	value := l.input[start+1 : l.pos]
	l.pos++ // consume closing quote
	return Token{Type: TokenString, Literal: value, Pos: start}
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.') {
		l.pos++
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: start}
}

func (l *Lexer) readIdent() Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	return Token{Type: TokenIdent, Literal: l.input[start:l.pos], Pos: start}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
