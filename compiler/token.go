package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types for the script lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42, 0x2A
	TokenFloat      // 3.14, 1e3, 2.
	TokenString     // "hello"
	TokenIdentifier // foo, llSay

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;
	TokenPeriod    // .
	TokenAt        // @

	// Operators
	TokenOperator // + - * / % & | ^ ~ ! < > << >> == != <= >= && || ++ --
	TokenAssign   // = += -= *= /= %= &= |= ^= <<= >>=

	// Keywords
	TokenTypeName // integer float string key list vector rotation array object
	TokenIf
	TokenElse
	TokenWhile
	TokenDo
	TokenFor
	TokenForeach
	TokenIn
	TokenJump
	TokenReturn
	TokenState
	TokenDefault
	TokenIs
	TokenUndef
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenSemicolon:  ";",
	TokenPeriod:     ".",
	TokenAt:         "@",
	TokenOperator:   "OPERATOR",
	TokenAssign:     "ASSIGN",
	TokenTypeName:   "TYPE",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenDo:         "do",
	TokenFor:        "for",
	TokenForeach:    "foreach",
	TokenIn:         "in",
	TokenJump:       "jump",
	TokenReturn:     "return",
	TokenState:      "state",
	TokenDefault:    "default",
	TokenIs:         "is",
	TokenUndef:      "undef",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text; the decoded value for strings
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Is reports whether the token is the given operator or punctuation text.
func (t Token) Is(lit string) bool {
	return (t.Type == TokenOperator || t.Type == TokenAssign) && t.Literal == lit
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"integer":  TokenTypeName,
	"float":    TokenTypeName,
	"string":   TokenTypeName,
	"key":      TokenTypeName,
	"list":     TokenTypeName,
	"vector":   TokenTypeName,
	"rotation": TokenTypeName,
	"array":    TokenTypeName,
	"object":   TokenTypeName,
	"if":       TokenIf,
	"else":     TokenElse,
	"while":    TokenWhile,
	"do":       TokenDo,
	"for":      TokenFor,
	"foreach":  TokenForeach,
	"in":       TokenIn,
	"jump":     TokenJump,
	"return":   TokenReturn,
	"state":    TokenState,
	"default":  TokenDefault,
	"is":       TokenIs,
	"undef":    TokenUndef,
}

// Keywords returns the reserved words in sorted order.
func Keywords() []string {
	words := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// operators lists multi-character operators longest first so the lexer
// can match greedily.
var operators = []string{
	"<<=", ">>=",
	"<<", ">>", "==", "!=", "<=", ">=", "&&", "||", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"+", "-", "*", "/", "%", "&", "|", "^", "~", "!", "<", ">", "=",
}

func isAssignOp(op string) bool {
	switch op {
	case "=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=":
		return true
	}
	return false
}
