package compiler

import "github.com/chazu/xmr/pkg/lsl"

// ---------------------------------------------------------------------------
// AST: typed syntax tree of a script
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Script is a whole compilation unit. The default state is always
// States[0].
type Script struct {
	Globals []*VarDecl
	Funcs   []*FuncDecl
	States  []*StateDecl
}

// VarDecl declares a global or local variable.
type VarDecl struct {
	SpanVal Span
	Type    lsl.Tag
	Name    string
	Init    Expr // may be nil
}

// Param is one function or handler parameter.
type Param struct {
	SpanVal Span
	Type    lsl.Tag
	Name    string
}

// FuncDecl is a script function or an event handler body.
type FuncDecl struct {
	SpanVal Span
	Ret     lsl.Tag
	Name    string
	Params  []Param
	Body    *Block
}

// StateDecl is a state and its handlers.
type StateDecl struct {
	SpanVal  Span
	Name     string
	Handlers []*FuncDecl
}

func (n *VarDecl) Span() Span   { return n.SpanVal }
func (n *FuncDecl) Span() Span  { return n.SpanVal }
func (n *StateDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()        {}
func (n *FuncDecl) node()       {}
func (n *StateDecl) node()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Block is a braced statement list with its own scope.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
}

// DeclStmt declares a local variable.
type DeclStmt struct {
	SpanVal Span
	Decl    *VarDecl
}

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

// EmptyStmt is a lone semicolon.
type EmptyStmt struct {
	SpanVal Span
}

// If is a conditional with an optional else.
type If struct {
	SpanVal Span
	Cond    Expr
	Then    Stmt
	Else    Stmt // may be nil
}

// While is a pre-tested loop.
type While struct {
	SpanVal Span
	Cond    Expr
	Body    Stmt
}

// DoWhile is a post-tested loop.
type DoWhile struct {
	SpanVal Span
	Body    Stmt
	Cond    Expr
}

// For is a C-style loop. Init and Incr may be comma expressions.
type For struct {
	SpanVal Span
	Init    Expr // may be nil
	Cond    Expr // may be nil
	Incr    Expr // may be nil
	Body    Stmt
}

// Foreach enumerates an array, assigning each key and value.
type Foreach struct {
	SpanVal Span
	Key     Expr // lval, may be nil
	Value   Expr // lval, may be nil
	Array   Expr
	Body    Stmt
}

// Jump transfers control to a label.
type Jump struct {
	SpanVal Span
	Label   string
}

// Label marks a jump target.
type Label struct {
	SpanVal Span
	Name    string
}

// Return leaves the current function or handler.
type Return struct {
	SpanVal Span
	Value   Expr // may be nil
}

// StateChange switches the script to another state.
type StateChange struct {
	SpanVal Span
	Name    string
}

func (n *Block) Span() Span       { return n.SpanVal }
func (n *DeclStmt) Span() Span    { return n.SpanVal }
func (n *ExprStmt) Span() Span    { return n.SpanVal }
func (n *EmptyStmt) Span() Span   { return n.SpanVal }
func (n *If) Span() Span          { return n.SpanVal }
func (n *While) Span() Span       { return n.SpanVal }
func (n *DoWhile) Span() Span     { return n.SpanVal }
func (n *For) Span() Span         { return n.SpanVal }
func (n *Foreach) Span() Span     { return n.SpanVal }
func (n *Jump) Span() Span        { return n.SpanVal }
func (n *Label) Span() Span       { return n.SpanVal }
func (n *Return) Span() Span      { return n.SpanVal }
func (n *StateChange) Span() Span { return n.SpanVal }

func (n *Block) node()       {}
func (n *DeclStmt) node()    {}
func (n *ExprStmt) node()    {}
func (n *EmptyStmt) node()   {}
func (n *If) node()          {}
func (n *While) node()       {}
func (n *DoWhile) node()     {}
func (n *For) node()         {}
func (n *Foreach) node()     {}
func (n *Jump) node()        {}
func (n *Label) node()       {}
func (n *Return) node()      {}
func (n *StateChange) node() {}

func (n *Block) stmt()       {}
func (n *DeclStmt) stmt()    {}
func (n *ExprStmt) stmt()    {}
func (n *EmptyStmt) stmt()   {}
func (n *If) stmt()          {}
func (n *While) stmt()       {}
func (n *DoWhile) stmt()     {}
func (n *For) stmt()         {}
func (n *Foreach) stmt()     {}
func (n *Jump) stmt()        {}
func (n *Label) stmt()       {}
func (n *Return) stmt()      {}
func (n *StateChange) stmt() {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntLit is an integer literal.
type IntLit struct {
	SpanVal Span
	Value   int32
}

// FloatLit is a float literal.
type FloatLit struct {
	SpanVal Span
	Value   float64
}

// StringLit is a string literal.
type StringLit struct {
	SpanVal Span
	Value   string
}

// UndefLit is the undef keyword.
type UndefLit struct {
	SpanVal Span
}

// Ident names a variable or a predefined constant.
type Ident struct {
	SpanVal Span
	Name    string
}

// ListLit is [a, b, ...].
type ListLit struct {
	SpanVal Span
	Elems   []Expr
}

// VecLit is <x, y, z>.
type VecLit struct {
	SpanVal Span
	X, Y, Z Expr
}

// RotLit is <x, y, z, s>.
type RotLit struct {
	SpanVal    Span
	X, Y, Z, S Expr
}

// Binary is a binary operator, including assignment forms ("=", "+=")
// and the comma operator.
type Binary struct {
	SpanVal Span
	Op      string
	Left    Expr
	Right   Expr
}

// Unary is -x, !x or ~x.
type Unary struct {
	SpanVal Span
	Op      string
	X       Expr
}

// IncDec is ++x, --x, x++ or x--.
type IncDec struct {
	SpanVal Span
	Op      string // "++" or "--"
	Prefix  bool
	X       Expr
}

// Call invokes a script function or an intrinsic by name.
type Call struct {
	SpanVal Span
	Name    string
	Args    []Expr
}

// MethodCall invokes a method on a built-in object, e.g. a.index(0).
type MethodCall struct {
	SpanVal Span
	Recv    Expr
	Name    string
	Args    []Expr
}

// Field is x.name.
type Field struct {
	SpanVal Span
	X       Expr
	Name    string
}

// Index is x[sub].
type Index struct {
	SpanVal Span
	X       Expr
	Sub     Expr
}

// Cast is (type)x.
type Cast struct {
	SpanVal Span
	Type    lsl.Tag
	X       Expr
}

// TypeTest is x is <pred>.
type TypeTest struct {
	SpanVal Span
	X       Expr
	Pred    TypePred
}

func (n *IntLit) Span() Span     { return n.SpanVal }
func (n *FloatLit) Span() Span   { return n.SpanVal }
func (n *StringLit) Span() Span  { return n.SpanVal }
func (n *UndefLit) Span() Span   { return n.SpanVal }
func (n *Ident) Span() Span      { return n.SpanVal }
func (n *ListLit) Span() Span    { return n.SpanVal }
func (n *VecLit) Span() Span     { return n.SpanVal }
func (n *RotLit) Span() Span     { return n.SpanVal }
func (n *Binary) Span() Span     { return n.SpanVal }
func (n *Unary) Span() Span      { return n.SpanVal }
func (n *IncDec) Span() Span     { return n.SpanVal }
func (n *Call) Span() Span       { return n.SpanVal }
func (n *MethodCall) Span() Span { return n.SpanVal }
func (n *Field) Span() Span      { return n.SpanVal }
func (n *Index) Span() Span      { return n.SpanVal }
func (n *Cast) Span() Span       { return n.SpanVal }
func (n *TypeTest) Span() Span   { return n.SpanVal }

func (n *IntLit) node()     {}
func (n *FloatLit) node()   {}
func (n *StringLit) node()  {}
func (n *UndefLit) node()   {}
func (n *Ident) node()      {}
func (n *ListLit) node()    {}
func (n *VecLit) node()     {}
func (n *RotLit) node()     {}
func (n *Binary) node()     {}
func (n *Unary) node()      {}
func (n *IncDec) node()     {}
func (n *Call) node()       {}
func (n *MethodCall) node() {}
func (n *Field) node()      {}
func (n *Index) node()      {}
func (n *Cast) node()       {}
func (n *TypeTest) node()   {}

func (n *IntLit) expr()     {}
func (n *FloatLit) expr()   {}
func (n *StringLit) expr()  {}
func (n *UndefLit) expr()   {}
func (n *Ident) expr()      {}
func (n *ListLit) expr()    {}
func (n *VecLit) expr()     {}
func (n *RotLit) expr()     {}
func (n *Binary) expr()     {}
func (n *Unary) expr()      {}
func (n *IncDec) expr()     {}
func (n *Call) expr()       {}
func (n *MethodCall) expr() {}
func (n *Field) expr()      {}
func (n *Index) expr()      {}
func (n *Cast) expr()       {}
func (n *TypeTest) expr()   {}

// ---------------------------------------------------------------------------
// Type predicates
// ---------------------------------------------------------------------------

// TypePred is the small predicate grammar on the right of "is".
type TypePred interface {
	typePred() // marker method
}

// TypeName matches values of one kind. Tag == TagObject matches any
// defined value; Undef matches only undef.
type TypeName struct {
	Tag   lsl.Tag
	Undef bool
}

// NotPred negates a predicate.
type NotPred struct {
	X TypePred
}

// AndPred is a conjunction.
type AndPred struct {
	Left, Right TypePred
}

// OrPred is a disjunction.
type OrPred struct {
	Left, Right TypePred
}

func (TypeName) typePred() {}
func (NotPred) typePred()  {}
func (AndPred) typePred()  {}
func (OrPred) typePred()   {}

// HasSideEffects reports whether evaluating e may write a variable or
// call out. Used to decide when an operand must be snapshotted.
func HasSideEffects(e Expr) bool {
	switch n := e.(type) {
	case nil:
		return false
	case *IntLit, *FloatLit, *StringLit, *UndefLit, *Ident:
		return false
	case *ListLit:
		for _, el := range n.Elems {
			if HasSideEffects(el) {
				return true
			}
		}
		return false
	case *VecLit:
		return HasSideEffects(n.X) || HasSideEffects(n.Y) || HasSideEffects(n.Z)
	case *RotLit:
		return HasSideEffects(n.X) || HasSideEffects(n.Y) || HasSideEffects(n.Z) || HasSideEffects(n.S)
	case *Binary:
		if isAssignOp(n.Op) {
			return true
		}
		return HasSideEffects(n.Left) || HasSideEffects(n.Right)
	case *Unary:
		return HasSideEffects(n.X)
	case *IncDec, *Call, *MethodCall:
		return true
	case *Field:
		return HasSideEffects(n.X)
	case *Index:
		return HasSideEffects(n.X) || HasSideEffects(n.Sub)
	case *Cast:
		return HasSideEffects(n.X)
	case *TypeTest:
		return HasSideEffects(n.X)
	}
	return true
}
