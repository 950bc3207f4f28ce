package compiler

import (
	"math"
	"strconv"

	"github.com/chazu/xmr/pkg/lsl"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for script source
// ---------------------------------------------------------------------------

// Parser parses script source into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	diagSink
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token, reporting lexical errors.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	for p.peekToken.Type == TokenError {
		p.errorAt(p.peekToken.Pos, "%s", p.peekToken.Literal)
		p.peekToken = p.lexer.NextToken()
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken)
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorAt(p.curToken.Pos, format, args...)
}

// Diagnostics returns accumulated parse errors.
func (p *Parser) Diagnostics() Diagnostics {
	return p.diags
}

// span builds a span from start to the end of the previous token.
func (p *Parser) span(start Position) Span {
	return Span{Start: start, End: p.curToken.Pos}
}

// synchronize skips to the next statement boundary after an error.
func (p *Parser) synchronize() {
	for !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
			return
		}
		if p.curTokenIs(TokenRBrace) || p.curTokenIs(TokenLBrace) {
			return
		}
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseScript parses a whole script: globals and functions, then states.
// The default state must come first.
func (p *Parser) ParseScript() *Script {
	s := &Script{}

	for !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenDefault) && !p.curTokenIs(TokenState) {
		before := p.curToken
		p.parseGlobal(s)
		if p.curToken == before {
			p.errorf("unexpected %s at top level", p.curToken)
			p.nextToken()
		}
	}

	if !p.curTokenIs(TokenDefault) {
		p.errorf("missing default state")
	}
	for !p.curTokenIs(TokenEOF) {
		start := p.curToken.Pos
		var name string
		switch {
		case p.curTokenIs(TokenDefault):
			name = "default"
			if len(s.States) > 0 {
				p.errorf("default state must be first")
			}
			p.nextToken()
		case p.curTokenIs(TokenState) && p.peekTokenIs(TokenIdentifier):
			if len(s.States) == 0 {
				p.errorf("default state must be first")
			}
			p.nextToken()
			name = p.curToken.Literal
			p.nextToken()
		default:
			p.errorf("expected state declaration, got %s", p.curToken)
			p.nextToken()
			continue
		}
		st := &StateDecl{Name: name}
		st.Handlers = p.parseStateBody()
		st.SpanVal = p.span(start)
		s.States = append(s.States, st)
	}
	return s
}

func (p *Parser) parseGlobal(s *Script) {
	start := p.curToken.Pos
	ret := lsl.TagVoid
	if p.curTokenIs(TokenTypeName) {
		ret, _ = lsl.ParseTag(p.curToken.Literal)
		p.nextToken()
	}
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected identifier, got %s", p.curToken)
		p.synchronize()
		return
	}
	name := p.curToken.Literal
	p.nextToken()

	if p.curTokenIs(TokenLParen) {
		fn := p.parseFuncRest(start, ret, name)
		s.Funcs = append(s.Funcs, fn)
		return
	}
	if ret == lsl.TagVoid {
		p.errorf("expected type for global %s", name)
	}
	s.Globals = append(s.Globals, p.parseVarRest(start, ret, name))
}

func (p *Parser) parseVarRest(start Position, t lsl.Tag, name string) *VarDecl {
	d := &VarDecl{Type: t, Name: name}
	if p.curToken.Is("=") {
		p.nextToken()
		d.Init = p.parseAssign()
	}
	d.SpanVal = p.span(start)
	if !p.expect(TokenSemicolon) {
		p.synchronize()
	}
	return d
}

func (p *Parser) parseFuncRest(start Position, ret lsl.Tag, name string) *FuncDecl {
	fn := &FuncDecl{Ret: ret, Name: name}
	fn.Params = p.parseParams()
	fn.Body = p.parseBlock()
	fn.SpanVal = p.span(start)
	return fn
}

func (p *Parser) parseParams() []Param {
	var params []Param
	if !p.expect(TokenLParen) {
		return nil
	}
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) {
		start := p.curToken.Pos
		if !p.curTokenIs(TokenTypeName) {
			p.errorf("expected parameter type, got %s", p.curToken)
			p.synchronize()
			return params
		}
		t, _ := lsl.ParseTag(p.curToken.Literal)
		p.nextToken()
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected parameter name, got %s", p.curToken)
			return params
		}
		params = append(params, Param{SpanVal: p.span(start), Type: t, Name: p.curToken.Literal})
		p.nextToken()
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else {
			break
		}
	}
	p.expect(TokenRParen)
	return params
}

func (p *Parser) parseStateBody() []*FuncDecl {
	var handlers []*FuncDecl
	if !p.expect(TokenLBrace) {
		return nil
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		start := p.curToken.Pos
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected event handler, got %s", p.curToken)
			p.nextToken()
			continue
		}
		name := p.curToken.Literal
		p.nextToken()
		handlers = append(handlers, p.parseFuncRest(start, lsl.TagVoid, name))
	}
	p.expect(TokenRBrace)
	return handlers
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseBlock() *Block {
	start := p.curToken.Pos
	b := &Block{}
	if !p.expect(TokenLBrace) {
		b.SpanVal = p.span(start)
		return b
	}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		before := p.curToken
		if st := p.parseStatement(); st != nil {
			b.Stmts = append(b.Stmts, st)
		}
		if p.curToken == before {
			p.nextToken()
		}
	}
	p.expect(TokenRBrace)
	b.SpanVal = p.span(start)
	return b
}

// ParseStatement parses a single statement.
func (p *Parser) ParseStatement() Stmt {
	return p.parseStatement()
}

func (p *Parser) parseStatement() Stmt {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenLBrace:
		return p.parseBlock()
	case TokenSemicolon:
		p.nextToken()
		return &EmptyStmt{SpanVal: p.span(start)}
	case TokenTypeName:
		if p.peekTokenIs(TokenIdentifier) {
			t, _ := lsl.ParseTag(p.curToken.Literal)
			p.nextToken()
			name := p.curToken.Literal
			p.nextToken()
			d := p.parseVarRest(start, t, name)
			return &DeclStmt{SpanVal: d.SpanVal, Decl: d}
		}
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		p.nextToken()
		p.expect(TokenLParen)
		cond := p.ParseExpression()
		p.expect(TokenRParen)
		body := p.parseStatement()
		return &While{SpanVal: p.span(start), Cond: cond, Body: body}
	case TokenDo:
		p.nextToken()
		body := p.parseStatement()
		p.expect(TokenWhile)
		p.expect(TokenLParen)
		cond := p.ParseExpression()
		p.expect(TokenRParen)
		p.expect(TokenSemicolon)
		return &DoWhile{SpanVal: p.span(start), Body: body, Cond: cond}
	case TokenFor:
		return p.parseFor()
	case TokenForeach:
		return p.parseForeach()
	case TokenJump:
		p.nextToken()
		name := p.curToken.Literal
		p.expect(TokenIdentifier)
		p.expect(TokenSemicolon)
		return &Jump{SpanVal: p.span(start), Label: name}
	case TokenAt:
		p.nextToken()
		name := p.curToken.Literal
		p.expect(TokenIdentifier)
		p.expect(TokenSemicolon)
		return &Label{SpanVal: p.span(start), Name: name}
	case TokenReturn:
		p.nextToken()
		r := &Return{}
		if !p.curTokenIs(TokenSemicolon) {
			r.Value = p.ParseExpression()
		}
		r.SpanVal = p.span(start)
		p.expect(TokenSemicolon)
		return r
	case TokenState:
		p.nextToken()
		name := p.curToken.Literal
		if !p.curTokenIs(TokenIdentifier) && !p.curTokenIs(TokenDefault) {
			p.errorf("expected state name, got %s", p.curToken)
		}
		p.nextToken()
		p.expect(TokenSemicolon)
		return &StateChange{SpanVal: p.span(start), Name: name}
	}

	e := p.ParseExpression()
	if e == nil {
		p.synchronize()
		return nil
	}
	st := &ExprStmt{SpanVal: p.span(start), Expr: e}
	if !p.expect(TokenSemicolon) {
		p.synchronize()
	}
	return st
}

func (p *Parser) parseIf() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	p.expect(TokenLParen)
	cond := p.ParseExpression()
	p.expect(TokenRParen)
	n := &If{Cond: cond, Then: p.parseStatement()}
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		n.Else = p.parseStatement()
	}
	n.SpanVal = p.span(start)
	return n
}

func (p *Parser) parseFor() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	p.expect(TokenLParen)
	n := &For{}
	if !p.curTokenIs(TokenSemicolon) {
		n.Init = p.ParseExpression()
	}
	p.expect(TokenSemicolon)
	if !p.curTokenIs(TokenSemicolon) {
		n.Cond = p.ParseExpression()
	}
	p.expect(TokenSemicolon)
	if !p.curTokenIs(TokenRParen) {
		n.Incr = p.ParseExpression()
	}
	p.expect(TokenRParen)
	n.Body = p.parseStatement()
	n.SpanVal = p.span(start)
	return n
}

// parseForeach parses foreach (key, value in array) body.
func (p *Parser) parseForeach() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	p.expect(TokenLParen)
	n := &Foreach{}
	if !p.curTokenIs(TokenComma) {
		n.Key = p.parseUnary()
	}
	p.expect(TokenComma)
	if !p.curTokenIs(TokenIn) {
		n.Value = p.parseUnary()
	}
	p.expect(TokenIn)
	n.Array = p.ParseExpression()
	p.expect(TokenRParen)
	n.Body = p.parseStatement()
	n.SpanVal = p.span(start)
	return n
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// binaryPrec gives the binding power of each binary operator; higher binds
// tighter. "is" sits with the relational operators.
var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

const relationalPrec = 7

// ParseExpression parses a full expression, including the comma operator.
func (p *Parser) ParseExpression() Expr {
	start := p.curToken.Pos
	left := p.parseAssign()
	for left != nil && p.curTokenIs(TokenComma) {
		p.nextToken()
		right := p.parseAssign()
		if right == nil {
			return left
		}
		left = &Binary{SpanVal: p.span(start), Op: ",", Left: left, Right: right}
	}
	return left
}

// parseAssign parses right-associative assignment forms.
func (p *Parser) parseAssign() Expr {
	start := p.curToken.Pos
	left := p.parseBinary(1)
	if left == nil {
		return nil
	}
	if p.curTokenIs(TokenAssign) {
		op := p.curToken.Literal
		p.nextToken()
		right := p.parseAssign()
		if right == nil {
			return left
		}
		return &Binary{SpanVal: p.span(start), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBinary(minPrec int) Expr {
	start := p.curToken.Pos
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for {
		if p.curTokenIs(TokenIs) && minPrec <= relationalPrec {
			p.nextToken()
			pred := p.parseTypePred()
			left = &TypeTest{SpanVal: p.span(start), X: left, Pred: pred}
			continue
		}
		if !p.curTokenIs(TokenOperator) {
			return left
		}
		op := p.curToken.Literal
		prec, ok := binaryPrec[op]
		if !ok || prec < minPrec {
			return left
		}
		p.nextToken()
		right := p.parseBinary(prec + 1)
		if right == nil {
			return left
		}
		left = &Binary{SpanVal: p.span(start), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() Expr {
	start := p.curToken.Pos
	if p.curTokenIs(TokenOperator) {
		switch op := p.curToken.Literal; op {
		case "-", "!", "~":
			p.nextToken()
			x := p.parseUnary()
			if x == nil {
				return nil
			}
			return &Unary{SpanVal: p.span(start), Op: op, X: x}
		case "++", "--":
			p.nextToken()
			x := p.parseUnary()
			if x == nil {
				return nil
			}
			return &IncDec{SpanVal: p.span(start), Op: op, Prefix: true, X: x}
		}
	}
	if p.curTokenIs(TokenLParen) && p.peekTokenIs(TokenTypeName) {
		p.nextToken()
		t, _ := lsl.ParseTag(p.curToken.Literal)
		p.nextToken()
		p.expect(TokenRParen)
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		return &Cast{SpanVal: p.span(start), Type: t, X: x}
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(x Expr) Expr {
	if x == nil {
		return nil
	}
	start := x.Span().Start
	for {
		switch {
		case p.curTokenIs(TokenPeriod):
			p.nextToken()
			name := p.curToken.Literal
			if !p.expect(TokenIdentifier) {
				return x
			}
			if p.curTokenIs(TokenLParen) {
				args := p.parseArgs(TokenLParen, TokenRParen)
				x = &MethodCall{SpanVal: p.span(start), Recv: x, Name: name, Args: args}
			} else {
				x = &Field{SpanVal: p.span(start), X: x, Name: name}
			}
		case p.curTokenIs(TokenLBracket):
			p.nextToken()
			sub := p.ParseExpression()
			p.expect(TokenRBracket)
			x = &Index{SpanVal: p.span(start), X: x, Sub: sub}
		case p.curToken.Is("++") || p.curToken.Is("--"):
			op := p.curToken.Literal
			p.nextToken()
			x = &IncDec{SpanVal: p.span(start), Op: op, X: x}
		default:
			return x
		}
	}
}

func (p *Parser) parseArgs(open, close TokenType) []Expr {
	var args []Expr
	p.expect(open)
	for !p.curTokenIs(close) && !p.curTokenIs(TokenEOF) {
		a := p.parseAssign()
		if a == nil {
			break
		}
		args = append(args, a)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(close)
	return args
}

func (p *Parser) parsePrimary() Expr {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenInteger:
		return p.parseInteger()
	case TokenFloat:
		lit := p.curToken.Literal
		p.nextToken()
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			p.errorAt(start, "invalid float literal %s", lit)
		}
		return &FloatLit{SpanVal: p.span(start), Value: f}
	case TokenString:
		lit := p.curToken.Literal
		p.nextToken()
		return &StringLit{SpanVal: p.span(start), Value: lit}
	case TokenUndef:
		p.nextToken()
		return &UndefLit{SpanVal: p.span(start)}
	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()
		if p.curTokenIs(TokenLParen) {
			args := p.parseArgs(TokenLParen, TokenRParen)
			return &Call{SpanVal: p.span(start), Name: name, Args: args}
		}
		return &Ident{SpanVal: p.span(start), Name: name}
	case TokenLBracket:
		elems := p.parseArgs(TokenLBracket, TokenRBracket)
		return &ListLit{SpanVal: p.span(start), Elems: elems}
	case TokenLParen:
		p.nextToken()
		e := p.ParseExpression()
		p.expect(TokenRParen)
		return e
	case TokenOperator:
		if p.curToken.Literal == "<" {
			return p.parseVecOrRot()
		}
	}
	p.errorf("unexpected %s", p.curToken)
	return nil
}

func (p *Parser) parseInteger() Expr {
	start := p.curToken.Pos
	lit := p.curToken.Literal
	p.nextToken()
	var n uint64
	var err error
	if len(lit) > 2 && (lit[1] == 'x' || lit[1] == 'X') {
		n, err = strconv.ParseUint(lit[2:], 16, 64)
	} else {
		n, err = strconv.ParseUint(lit, 10, 64)
	}
	if err != nil || n > math.MaxUint32 {
		p.errorAt(start, "integer literal %s out of range", lit)
	}
	return &IntLit{SpanVal: p.span(start), Value: int32(uint32(n))}
}

// parseVecOrRot parses <x, y, z> or <x, y, z, s>. Components bind tighter
// than the relational operators so the closing '>' ends the literal.
func (p *Parser) parseVecOrRot() Expr {
	start := p.curToken.Pos
	p.nextToken()
	var comps []Expr
	for {
		c := p.parseBinary(relationalPrec + 1)
		if c == nil {
			return nil
		}
		comps = append(comps, c)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	if !p.curToken.Is(">") {
		p.errorf("expected > to close vector, got %s", p.curToken)
		return nil
	}
	p.nextToken()
	switch len(comps) {
	case 3:
		return &VecLit{SpanVal: p.span(start), X: comps[0], Y: comps[1], Z: comps[2]}
	case 4:
		return &RotLit{SpanVal: p.span(start), X: comps[0], Y: comps[1], Z: comps[2], S: comps[3]}
	}
	p.errorAt(start, "vector needs 3 components and rotation 4, got %d", len(comps))
	return nil
}

// ---------------------------------------------------------------------------
// Type predicates: pred := or; or := and ('||' and)*; and := unary ('&&' unary)*
// unary := '!' unary | '(' pred ')' | typename | undef
// ---------------------------------------------------------------------------

func (p *Parser) parseTypePred() TypePred {
	left := p.parseTypeAnd()
	for p.curToken.Is("||") {
		p.nextToken()
		left = OrPred{Left: left, Right: p.parseTypeAnd()}
	}
	return left
}

func (p *Parser) parseTypeAnd() TypePred {
	left := p.parseTypeUnary()
	for p.curToken.Is("&&") {
		p.nextToken()
		left = AndPred{Left: left, Right: p.parseTypeUnary()}
	}
	return left
}

func (p *Parser) parseTypeUnary() TypePred {
	switch {
	case p.curToken.Is("!"):
		p.nextToken()
		return NotPred{X: p.parseTypeUnary()}
	case p.curTokenIs(TokenLParen):
		p.nextToken()
		pred := p.parseTypePred()
		p.expect(TokenRParen)
		return pred
	case p.curTokenIs(TokenUndef):
		p.nextToken()
		return TypeName{Undef: true}
	case p.curTokenIs(TokenTypeName):
		t, _ := lsl.ParseTag(p.curToken.Literal)
		p.nextToken()
		return TypeName{Tag: t}
	}
	p.errorf("expected type name in type test, got %s", p.curToken)
	return TypeName{Tag: lsl.TagVoid}
}

// Parse parses a complete script.
func Parse(source string) (*Script, Diagnostics) {
	p := NewParser(source)
	s := p.ParseScript()
	return s, p.Diagnostics()
}
