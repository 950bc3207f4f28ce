package compiler

import (
	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// typeTest lowers x is <pred>. The operand is evaluated once into a temp
// and each type name in the predicate becomes a TYPE_IS test on it.
func (g *funcGen) typeTest(n *TypeTest) value {
	x := g.expr(n.X)
	if isReported(x) {
		return errVal{lsl.TagBool}
	}
	if _, isTemp := x.(*localVal); !isTemp || !x.final() {
		x = g.toTemp(x)
	}
	g.pred(x, n.Pred, n.Span().Start)
	return g.result(lsl.TagBool)
}

func (g *funcGen) pred(x value, p TypePred, pos Position) {
	switch p := p.(type) {
	case TypeName:
		tag := p.Tag
		switch {
		case p.Undef:
			tag = lsl.TagVoid
		case tag == lsl.TagVoid:
			g.b.EmitConst(lsl.Bool(false))
			return
		}
		x.push(g)
		g.b.EmitU8(objcode.OpTypeIs, uint8(tag))
	case NotPred:
		g.pred(x, p.X, pos)
		g.b.Emit(objcode.OpNot)
	case AndPred:
		g.pred(x, p.Left, pos)
		g.pred(x, p.Right, pos)
		g.b.Emit(objcode.OpAnd)
	case OrPred:
		g.pred(x, p.Left, pos)
		g.pred(x, p.Right, pos)
		g.b.Emit(objcode.OpOr)
	default:
		g.errorAt(pos, "invalid type predicate")
	}
}
