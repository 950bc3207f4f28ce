package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for script source
// ---------------------------------------------------------------------------

// Lexer tokenizes script source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)
	prevNL  bool // previous character was a newline
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.prevNL {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		l.prevNL = false
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
	l.prevNL = r == '\n'
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the position of the current character.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}
	case l.ch == '"':
		return l.readString(pos)
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		return l.readNumber(pos)
	case isIdentStart(l.ch):
		return l.readIdentifier(pos)
	}

	if tt, ok := punctuation[l.ch]; ok {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: tt, Literal: lit, Pos: pos}
	}

	rest := l.input[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			for range op {
				l.readChar()
			}
			tt := TokenOperator
			if isAssignOp(op) {
				tt = TokenAssign
			}
			return Token{Type: tt, Literal: op, Pos: pos}
		}
	}

	ch := l.ch
	l.readChar()
	return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Pos: pos}
}

var punctuation = map[rune]TokenType{
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	'{': TokenLBrace,
	'}': TokenRBrace,
	',': TokenComma,
	';': TokenSemicolon,
	'.': TokenPeriod,
	'@': TokenAt,
}

// skipWhitespaceAndComments skips whitespace, // line comments and /* */
// block comments. An unterminated block comment yields an error token.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.position()
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					return Token{Type: TokenError, Literal: "unterminated comment", Pos: pos}, false
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
			continue
		}

		return Token{}, true
	}
}

// readString reads a double-quoted string, decoding \n \t \" and \\.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening quote
	var sb strings.Builder
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteString("    ")
			case 0:
				return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
			default:
				sb.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing quote
	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readNumber reads an integer (decimal or 0x hex) or a float.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos}
	}

	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '-' || next == '+' {
			isFloat = true
			l.readChar()
			if l.ch == '-' || l.ch == '+' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	// optional float suffix
	if isFloat && (l.ch == 'f' || l.ch == 'F') {
		l.readChar()
		return Token{Type: TokenFloat, Literal: l.input[start : l.pos-1], Pos: pos}
	}

	tt := TokenInteger
	if isFloat {
		tt = TokenFloat
	}
	return Token{Type: tt, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if tt, ok := reservedWords[lit]; ok {
		return Token{Type: tt, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: lit, Pos: pos}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}

// Tokenize returns every token up to and including EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens
}
