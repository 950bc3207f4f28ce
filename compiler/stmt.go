package compiler

import (
	"fmt"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// ---------------------------------------------------------------------------
// Statement lowering
// ---------------------------------------------------------------------------

func (g *funcGen) stmt(st Stmt) {
	if st == nil {
		return
	}
	line := st.Span().Start.Line
	g.b.SetLine(line)

	switch n := st.(type) {
	case *Block:
		g.block(n)
	case *DeclStmt:
		g.declStmt(n)
	case *ExprStmt:
		g.expr(n.Expr)
	case *EmptyStmt:
	case *If:
		g.ifStmt(n)
	case *While:
		top, end := g.b.NewLabel(), g.b.NewLabel()
		g.b.Mark(top)
		g.checkRun(line)
		g.cond(n.Cond)
		g.b.EmitJump(objcode.OpJumpFalse, end)
		g.stmt(n.Body)
		g.b.EmitJump(objcode.OpJump, top)
		g.b.Mark(end)
	case *DoWhile:
		top := g.b.NewLabel()
		g.b.Mark(top)
		g.stmt(n.Body)
		g.b.SetLine(n.Cond.Span().Start.Line)
		g.checkRun(n.Cond.Span().Start.Line)
		g.cond(n.Cond)
		g.b.EmitJump(objcode.OpJumpTrue, top)
	case *For:
		g.forStmt(n)
	case *Foreach:
		g.foreachStmt(n)
	case *Jump:
		g.jumpStmt(n)
	case *Label:
		g.labelStmt(n)
	case *Return:
		g.returnStmt(n)
	case *StateChange:
		g.stateChange(n)
	default:
		panic(fmt.Sprintf("compiler: unhandled statement %T", st))
	}
}

// block lowers a braced block in its own scope. At its normal end the
// block's heap-tracked locals are released; the function body itself is
// left to the epilog.
func (g *funcGen) block(b *Block) {
	g.scopes.PushScope()
	for _, st := range b.Stmts {
		g.stmt(st)
	}
	if b != g.info.top {
		g.releaseBlock(b)
	}
	g.scopes.PopScope()
}

// declStmt stores the initial value of a local. Its slot was allocated in
// the header; the name becomes visible only here.
func (g *funcGen) declStmt(n *DeclStmt) {
	d := n.Decl
	l := g.locals[d]
	if d.Init != nil {
		v := g.expr(d.Init)
		g.pushAs(v, l.t, false, d.Init.Span().Start)
	} else {
		g.b.EmitU8(objcode.OpDefault, uint8(l.t))
	}
	l.storePost(g)
	g.onWrite(l, true)
	if err := g.scopes.DeclareLocal(d.Name, l); err != nil {
		g.errorAt(n.Span().Start, "%s", err)
	}
}

// cond pushes e converted to bool.
func (g *funcGen) cond(e Expr) {
	v := g.expr(e)
	g.pushAs(v, lsl.TagBool, false, e.Span().Start)
}

func (g *funcGen) ifStmt(n *If) {
	g.cond(n.Cond)
	elseL := g.b.NewLabel()
	g.b.EmitJump(objcode.OpJumpFalse, elseL)
	g.stmt(n.Then)
	if n.Else == nil {
		g.b.Mark(elseL)
		return
	}
	end := g.b.NewLabel()
	g.b.EmitJump(objcode.OpJump, end)
	g.b.Mark(elseL)
	g.stmt(n.Else)
	g.b.Mark(end)
}

func (g *funcGen) forStmt(n *For) {
	if n.Init != nil {
		g.expr(n.Init)
	}
	top, end := g.b.NewLabel(), g.b.NewLabel()
	g.b.Mark(top)
	g.checkRun(n.Span().Start.Line)
	if n.Cond != nil {
		g.cond(n.Cond)
		g.b.EmitJump(objcode.OpJumpFalse, end)
	}
	g.stmt(n.Body)
	if n.Incr != nil {
		g.b.SetLine(n.Incr.Span().Start.Line)
		g.expr(n.Incr)
	}
	g.b.EmitJump(objcode.OpJump, top)
	g.b.Mark(end)
}

// foreachStmt enumerates an array by position. ARRAY_FOREACH leaves the
// key, the value and a found flag; all three go to temps before the flag
// is tested.
func (g *funcGen) foreachStmt(n *Foreach) {
	line := n.Span().Start.Line
	arr := g.expr(n.Array)
	if arr.Type() != lsl.TagArray {
		if !isReported(arr) {
			g.errorAt(n.Array.Span().Start, "foreach requires an array, not %s", arr.Type())
		}
		g.stmt(n.Body)
		return
	}
	var keyLV, valLV lvalue
	if n.Key != nil {
		keyLV = g.lval(n.Key)
	}
	if n.Value != nil {
		valLV = g.lval(n.Value)
	}
	arrTmp := g.toTemp(arr)
	idx := g.newTemp(lsl.TagInt)
	g.b.EmitConst(lsl.Int(0))
	idx.storePost(g)
	key, val, ok := g.newTemp(lsl.TagObject), g.newTemp(lsl.TagObject), g.newTemp(lsl.TagBool)

	top, end := g.b.NewLabel(), g.b.NewLabel()
	g.b.Mark(top)
	arrTmp.push(g)
	idx.push(g)
	g.b.Emit(objcode.OpArrayForEach)
	ok.storePost(g)
	val.storePost(g)
	key.storePost(g)
	ok.push(g)
	g.b.EmitJump(objcode.OpJumpFalse, end)
	g.checkRun(line)

	for _, pair := range []struct {
		lv  lvalue
		src *localVal
	}{{keyLV, key}, {valLV, val}} {
		if pair.lv == nil {
			continue
		}
		pair.lv.storePre(g)
		g.pushAs(pair.src, pair.lv.Type(), true, n.Span().Start)
		pair.lv.storePost(g)
		g.onWrite(pair.lv, true)
	}

	idx.push(g)
	g.b.EmitConst(lsl.Int(1))
	g.b.Emit(objcode.OpAdd)
	idx.storePost(g)

	g.stmt(n.Body)
	g.b.EmitJump(objcode.OpJump, top)
	g.b.Mark(end)
}

// jumpStmt checks the target is in the jump's own block or an enclosing
// one and releases every block being left, innermost first.
func (g *funcGen) jumpStmt(n *Jump) {
	li, ok := g.info.labels[n.Label]
	if !ok {
		g.errorAt(n.Span().Start, "undefined label %s", n.Label)
		return
	}
	from := g.info.jumpBlock[n]
	if !g.info.isAncestor(li.block, from) {
		g.errorAt(n.Span().Start, "no lateral jumps allowed")
		return
	}
	for b := from; b != li.block; b = g.info.parent[b] {
		g.releaseBlock(b)
	}
	g.b.EmitJump(objcode.OpJump, g.labels[n.Label])
}

func (g *funcGen) labelStmt(n *Label) {
	li := g.info.labels[n.Name]
	if li == nil || li.decl != n {
		return
	}
	g.b.Mark(g.labels[n.Name])
	if li.backward {
		g.checkRun(n.Span().Start.Line)
	}
}

func (g *funcGen) returnStmt(n *Return) {
	pos := n.Span().Start
	switch {
	case n.Value != nil && g.ret == lsl.TagVoid:
		g.expr(n.Value)
		g.errorAt(pos, "return value not allowed in void function")
	case n.Value != nil:
		v := g.expr(n.Value)
		g.pushAs(v, g.ret, false, n.Value.Span().Start)
		g.retval.storePost(g)
	case g.ret != lsl.TagVoid:
		g.errorAt(pos, "return value of type %s required", g.ret)
	}
	g.b.EmitJump(objcode.OpJump, g.retLabel)
}

// stateChange records the new state and unwinds through the epilog. A
// state that does not exist is a runtime failure.
func (g *funcGen) stateChange(n *StateChange) {
	si, ok := g.c.states[n.Name]
	if !ok {
		g.b.EmitU16(objcode.OpThrowUndefState, g.b.AddName(n.Name))
		return
	}
	g.b.EmitConst(lsl.Int(int32(si)))
	g.b.EmitU8(objcode.OpStoreInst, objcode.InstStateCode)
	g.b.EmitConst(lsl.Int(1))
	g.b.EmitU8(objcode.OpStoreInst, objcode.InstStateChanged)
	g.b.EmitJump(objcode.OpJump, g.retLabel)
}
