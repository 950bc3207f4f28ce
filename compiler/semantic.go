package compiler

// ---------------------------------------------------------------------------
// Function analysis: facts gathered before a body is lowered
// ---------------------------------------------------------------------------

// labelInfo describes one label of a function.
type labelInfo struct {
	decl     *Label
	block    *Block
	pos      int
	backward bool // some jump after the label targets it
}

// funcInfo is the side table for one function or handler body. The AST is
// never written to; everything the lowerer learns about the tree lives
// here.
type funcInfo struct {
	top         *Block
	parent      map[*Block]*Block
	depth       map[*Block]int
	blockLocals map[*Block][]*VarDecl
	locals      []*VarDecl
	labels      map[string]*labelInfo
	jumpBlock   map[*Jump]*Block
	calls       []string
	changes     bool // contains a state statement, or calls a function that may change state
}

// analyzer walks one body to build its funcInfo.
type analyzer struct {
	info   *funcInfo
	diags  *diagSink
	called map[string]bool
	pos    int
	jumps  []*Jump
	jpos   map[*Jump]int
}

// analyzeFunc gathers block nesting, locals, labels and calls of body.
func analyzeFunc(body *Block, diags *diagSink) *funcInfo {
	a := &analyzer{
		info: &funcInfo{
			top:         body,
			parent:      make(map[*Block]*Block),
			depth:       make(map[*Block]int),
			blockLocals: make(map[*Block][]*VarDecl),
			labels:      make(map[string]*labelInfo),
			jumpBlock:   make(map[*Jump]*Block),
		},
		diags:  diags,
		called: make(map[string]bool),
		jpos:   make(map[*Jump]int),
	}
	a.block(body, nil)
	for _, j := range a.jumps {
		if l, ok := a.info.labels[j.Label]; ok && l.pos < a.jpos[j] {
			l.backward = true
		}
	}
	return a.info
}

func (a *analyzer) block(b *Block, parent *Block) {
	a.info.parent[b] = parent
	if parent != nil {
		a.info.depth[b] = a.info.depth[parent] + 1
	}
	for _, st := range b.Stmts {
		a.stmt(st, b)
	}
}

func (a *analyzer) stmt(st Stmt, cur *Block) {
	a.pos++
	switch n := st.(type) {
	case nil:
	case *Block:
		a.block(n, cur)
	case *DeclStmt:
		a.info.locals = append(a.info.locals, n.Decl)
		a.info.blockLocals[cur] = append(a.info.blockLocals[cur], n.Decl)
		a.expr(n.Decl.Init)
	case *ExprStmt:
		a.expr(n.Expr)
	case *EmptyStmt:
	case *If:
		a.expr(n.Cond)
		a.stmt(n.Then, cur)
		a.stmt(n.Else, cur)
	case *While:
		a.expr(n.Cond)
		a.stmt(n.Body, cur)
	case *DoWhile:
		a.stmt(n.Body, cur)
		a.expr(n.Cond)
	case *For:
		a.expr(n.Init)
		a.expr(n.Cond)
		a.expr(n.Incr)
		a.stmt(n.Body, cur)
	case *Foreach:
		a.expr(n.Key)
		a.expr(n.Value)
		a.expr(n.Array)
		a.stmt(n.Body, cur)
	case *Jump:
		a.info.jumpBlock[n] = cur
		a.jumps = append(a.jumps, n)
		a.jpos[n] = a.pos
	case *Label:
		if _, dup := a.info.labels[n.Name]; dup {
			a.diags.errorAt(n.Span().Start, "duplicate label %s", n.Name)
			return
		}
		a.info.labels[n.Name] = &labelInfo{decl: n, block: cur, pos: a.pos}
	case *Return:
		a.expr(n.Value)
	case *StateChange:
		a.info.changes = true
	}
}

func (a *analyzer) expr(e Expr) {
	walkExpr(e, func(x Expr) {
		if c, ok := x.(*Call); ok && !a.called[c.Name] {
			a.called[c.Name] = true
			a.info.calls = append(a.info.calls, c.Name)
		}
	})
}

// walkExpr calls fn for e and every sub-expression.
func walkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case *ListLit:
		for _, el := range n.Elems {
			walkExpr(el, fn)
		}
	case *VecLit:
		walkExpr(n.X, fn)
		walkExpr(n.Y, fn)
		walkExpr(n.Z, fn)
	case *RotLit:
		walkExpr(n.X, fn)
		walkExpr(n.Y, fn)
		walkExpr(n.Z, fn)
		walkExpr(n.S, fn)
	case *Binary:
		walkExpr(n.Left, fn)
		walkExpr(n.Right, fn)
	case *Unary:
		walkExpr(n.X, fn)
	case *IncDec:
		walkExpr(n.X, fn)
	case *Call:
		for _, arg := range n.Args {
			walkExpr(arg, fn)
		}
	case *MethodCall:
		walkExpr(n.Recv, fn)
		for _, arg := range n.Args {
			walkExpr(arg, fn)
		}
	case *Field:
		walkExpr(n.X, fn)
	case *Index:
		walkExpr(n.X, fn)
		walkExpr(n.Sub, fn)
	case *Cast:
		walkExpr(n.X, fn)
	case *TypeTest:
		walkExpr(n.X, fn)
	}
}

// propagateStateChanges marks every function that can reach a state
// statement through calls, iterating until no flag changes.
func propagateStateChanges(funcs map[string]*funcInfo) {
	for changed := true; changed; {
		changed = false
		for _, fi := range funcs {
			if fi.changes {
				continue
			}
			for _, callee := range fi.calls {
				if ci, ok := funcs[callee]; ok && ci.changes {
					fi.changes = true
					changed = true
					break
				}
			}
		}
	}
}

// isAncestor reports whether outer is b or encloses it.
func (fi *funcInfo) isAncestor(outer, b *Block) bool {
	for ; b != nil; b = fi.parent[b] {
		if b == outer {
			return true
		}
	}
	return false
}
