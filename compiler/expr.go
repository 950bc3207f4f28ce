package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// ---------------------------------------------------------------------------
// Expression lowering
//
// Every expression lowers to a value handle. Computed results land in
// temps, so the operand stack is empty between statements and at every
// checkpoint except the one after an intrinsic call.
// ---------------------------------------------------------------------------

func (g *funcGen) expr(e Expr) value {
	switch n := e.(type) {
	case *IntLit:
		return constVal{lsl.Int(n.Value)}
	case *FloatLit:
		return constVal{lsl.Float(n.Value)}
	case *StringLit:
		return constVal{lsl.String(n.Value)}
	case *UndefLit:
		return constVal{lsl.Undef}
	case *Ident:
		return g.ident(n)
	case *ListLit:
		return g.listLit(n)
	case *VecLit:
		return g.aggregate([]Expr{n.X, n.Y, n.Z}, objcode.OpVecNew, lsl.TagVector)
	case *RotLit:
		return g.aggregate([]Expr{n.X, n.Y, n.Z, n.S}, objcode.OpRotNew, lsl.TagRotation)
	case *Binary:
		return g.binary(n)
	case *Unary:
		return g.unary(n)
	case *IncDec:
		return g.incDec(n)
	case *Call:
		return g.call(n)
	case *MethodCall:
		return g.methodCall(n)
	case *Field:
		return g.field(n)
	case *Index:
		return g.index(n)
	case *Cast:
		return g.cast(n)
	case *TypeTest:
		return g.typeTest(n)
	}
	panic(fmt.Sprintf("compiler: unhandled expression %T", e))
}

// exprs lowers a left-to-right operand list. Before an operand with side
// effects is lowered, earlier operands that could still change are copied
// to temps.
func (g *funcGen) exprs(es []Expr) []value {
	vals := make([]value, len(es))
	for i, e := range es {
		if HasSideEffects(e) {
			for j := 0; j < i; j++ {
				if !vals[j].final() {
					vals[j] = g.toTemp(vals[j])
				}
			}
		}
		vals[i] = g.expr(e)
	}
	return vals
}

// pushAs pushes v converted to type to. Implicit conversions are always
// allowed; explicit ones only when explicit is set.
func (g *funcGen) pushAs(v value, to lsl.Tag, explicit bool, pos Position) {
	v.push(g)
	if isReported(v) || to == lsl.TagVoid {
		return
	}
	from := v.Type()
	switch lsl.ClassifyCast(from, to) {
	case lsl.CastIdentity:
	case lsl.CastImplicit:
		g.b.EmitU8(objcode.OpCast, uint8(to))
	case lsl.CastExplicit:
		if !explicit {
			g.errorAt(pos, "can't implicitly cast %s to %s", from, to)
			return
		}
		g.b.EmitU8(objcode.OpCast, uint8(to))
	default:
		g.errorAt(pos, "can't cast %s to %s", from, to)
	}
}

// pushOperand pushes an operator operand, converting it when the operator
// entry asks for it.
func (g *funcGen) pushOperand(v value, cast lsl.Tag) {
	v.push(g)
	if cast != lsl.TagVoid && cast != v.Type() {
		g.b.EmitU8(objcode.OpCast, uint8(cast))
	}
}

// pushKey pushes an array subscript.
func (g *funcGen) pushKey(k value) {
	g.pushOperand(k, keyCast(k.Type()))
}

func keyCast(t lsl.Tag) lsl.Tag {
	if t == lsl.TagBool {
		return lsl.TagInt
	}
	return lsl.TagVoid
}

// result stores the value on the stack into a new temp of type t.
func (g *funcGen) result(t lsl.Tag) *localVal {
	tmp := g.newTemp(t)
	tmp.storePost(g)
	return tmp
}

func (g *funcGen) ident(n *Ident) value {
	if v, ok := g.resolve(n.Name); ok {
		return v
	}
	if c, ok := g.c.tables.Constant(n.Name); ok {
		return constVal{c}
	}
	g.errorAt(n.Span().Start, "undefined variable %s", n.Name)
	return voidVal{reported: true}
}

// lval lowers an assignable expression.
func (g *funcGen) lval(e Expr) lvalue {
	switch n := e.(type) {
	case *Ident:
		if v, ok := g.resolve(n.Name); ok {
			if lv, ok := v.(lvalue); ok {
				return lv
			}
		} else if _, isConst := g.c.tables.Constant(n.Name); !isConst {
			g.errorAt(n.Span().Start, "undefined variable %s", n.Name)
			return errLVal{errVal{lsl.TagVoid}}
		}
	case *Field:
		base := g.lval(n.X)
		if isReported(base) {
			return base
		}
		m, ok := g.member(base.Type(), n.Name, n.Span().Start)
		if !ok {
			return errLVal{errVal{lsl.TagVoid}}
		}
		if m.method != nil || m.field == objcode.FieldCount {
			break
		}
		return &fieldLVal{fieldVal: fieldVal{base: base, field: m.field, t: m.t}, lv: base}
	case *Index:
		base := g.lval(n.X)
		if isReported(base) {
			g.expr(n.Sub)
			return base
		}
		if base.Type() != lsl.TagArray {
			g.errorAt(n.Span().Start, "taking subscript of non-array")
			g.expr(n.Sub)
			return errLVal{errVal{lsl.TagObject}}
		}
		key := g.expr(n.Sub)
		return &elemLVal{elemVal: elemVal{arr: base, key: key}, lv: base}
	default:
		g.expr(e)
	}
	g.errorAt(e.Span().Start, "invalid L-value")
	return errLVal{errVal{lsl.TagVoid}}
}

func (g *funcGen) binary(n *Binary) value {
	switch {
	case n.Op == "=":
		return g.assign(n)
	case n.Op == ",":
		g.expr(n.Left)
		return g.expr(n.Right)
	case isAssignOp(n.Op):
		return g.compound(n)
	}

	// Right to left: the right operand is computed first and kept in a
	// temp if the left one could change it.
	right := g.expr(n.Right)
	if HasSideEffects(n.Left) && !right.final() {
		right = g.toTemp(right)
	}
	left := g.expr(n.Left)
	if isReported(left) || isReported(right) {
		return voidVal{reported: true}
	}
	bo, ok := g.c.tables.Lookup(left.Type(), n.Op, right.Type())
	if !ok {
		g.errorAt(n.Span().Start, "op not defined: %s %s %s", left.Type(), n.Op, right.Type())
		return voidVal{reported: true}
	}
	g.pushOperand(left, bo.LCast)
	g.pushOperand(right, bo.RCast)
	g.b.Emit(bo.Op)
	return g.result(bo.Result)
}

func (g *funcGen) assign(n *Binary) value {
	lv := g.lval(n.Left)
	right := g.expr(n.Right)
	lv.storePre(g)
	g.pushAs(right, lv.Type(), false, n.Right.Span().Start)
	lv.storePost(g)
	g.onWrite(lv, true)
	return lv
}

// compound lowers op= through the plain operator. The entry must allow
// read-modify-write and yield the left operand's own type.
func (g *funcGen) compound(n *Binary) value {
	op := strings.TrimSuffix(n.Op, "=")
	right := g.expr(n.Right)
	if HasSideEffects(n.Left) && !right.final() {
		right = g.toTemp(right)
	}
	lv := g.lval(n.Left)
	if isReported(lv) || isReported(right) {
		return voidVal{reported: true}
	}
	bo, ok := g.c.tables.Lookup(lv.Type(), op, right.Type())
	if !ok || !bo.RMW || bo.Result != lv.Type() {
		g.errorAt(n.Span().Start, "op not defined: %s %s %s", lv.Type(), n.Op, right.Type())
		return voidVal{reported: true}
	}
	lv.storePre(g)
	g.pushOperand(lv, bo.LCast)
	g.pushOperand(right, bo.RCast)
	g.b.Emit(bo.Op)
	lv.storePost(g)
	g.onWrite(lv, true)
	return lv
}

func (g *funcGen) unary(n *Unary) value {
	x := g.expr(n.X)
	if isReported(x) {
		return x
	}
	t := x.Type()
	switch n.Op {
	case "-":
		switch t {
		case lsl.TagBool:
			g.pushOperand(x, lsl.TagInt)
			t = lsl.TagInt
		case lsl.TagInt, lsl.TagFloat, lsl.TagVector, lsl.TagRotation:
			x.push(g)
		default:
			g.errorAt(n.Span().Start, "can't negate a %s", t)
			return errVal{t}
		}
		g.b.Emit(objcode.OpNeg)
		return g.result(t)
	case "~":
		if t != lsl.TagInt && t != lsl.TagBool {
			g.errorAt(n.Span().Start, "can't complement a %s", t)
			return errVal{t}
		}
		g.pushOperand(x, lsl.TagInt)
		g.b.Emit(objcode.OpBNot)
		return g.result(lsl.TagInt)
	default: // "!"
		g.pushAs(x, lsl.TagBool, false, n.Span().Start)
		g.b.Emit(objcode.OpNot)
		g.b.EmitU8(objcode.OpCast, uint8(lsl.TagInt))
		return g.result(lsl.TagInt)
	}
}

// incDec lowers ++ and --; the expression's value is delivered in a temp.
func (g *funcGen) incDec(n *IncDec) value {
	lv := g.lval(n.X)
	if isReported(lv) {
		return lv
	}
	t := lv.Type()
	var one lsl.Value
	switch t {
	case lsl.TagInt:
		one = lsl.Int(1)
	case lsl.TagFloat:
		one = lsl.Float(1)
	default:
		verb := "increment"
		if n.Op == "--" {
			verb = "decrement"
		}
		g.errorAt(n.Span().Start, "can't %s a %s", verb, t)
		return errVal{t}
	}
	op := objcode.OpAdd
	if n.Op == "--" {
		op = objcode.OpSub
	}

	res := g.newTemp(t)
	if !n.Prefix {
		lv.push(g)
		res.storePost(g)
	}
	lv.storePre(g)
	lv.push(g)
	g.b.EmitConst(one)
	g.b.Emit(op)
	lv.storePost(g)
	if n.Prefix {
		lv.push(g)
		res.storePost(g)
	}
	return res
}

func (g *funcGen) cast(n *Cast) value {
	x := g.expr(n.X)
	if isReported(x) {
		return errVal{n.Type}
	}
	switch lsl.ClassifyCast(x.Type(), n.Type) {
	case lsl.CastIdentity:
		return x
	case lsl.CastIllegal:
		g.errorAt(n.Span().Start, "can't cast %s to %s", x.Type(), n.Type)
		return errVal{n.Type}
	}
	x.push(g)
	g.b.EmitU8(objcode.OpCast, uint8(n.Type))
	return g.result(n.Type)
}

func (g *funcGen) listLit(n *ListLit) value {
	vals := g.exprs(n.Elems)
	for i, v := range vals {
		switch t := v.Type(); t {
		case lsl.TagVoid, lsl.TagList, lsl.TagArray, lsl.TagMeth:
			if !isReported(v) {
				g.errorAt(n.Elems[i].Span().Start, "list cannot contain %s", t)
			}
		}
	}
	for _, v := range vals {
		g.pushOperand(v, keyCast(v.Type()))
	}
	g.b.EmitU16(objcode.OpListNew, uint16(len(vals)))
	return g.result(lsl.TagList)
}

// aggregate builds a vector or rotation from float components.
func (g *funcGen) aggregate(comps []Expr, op objcode.Opcode, t lsl.Tag) value {
	vals := g.exprs(comps)
	for i, v := range vals {
		g.pushAs(v, lsl.TagFloat, false, comps[i].Span().Start)
	}
	g.b.Emit(op)
	return g.result(t)
}

// ---------------------------------------------------------------------------
// Fields and subscripts
// ---------------------------------------------------------------------------

// memberInfo describes a field or method of a built-in type.
type memberInfo struct {
	field  uint8
	t      lsl.Tag
	method *lsl.Signature
}

var members = map[lsl.Tag]map[string]memberInfo{
	lsl.TagVector: {
		"x": {field: objcode.FieldX, t: lsl.TagFloat},
		"y": {field: objcode.FieldY, t: lsl.TagFloat},
		"z": {field: objcode.FieldZ, t: lsl.TagFloat},
	},
	lsl.TagRotation: {
		"x": {field: objcode.FieldX, t: lsl.TagFloat},
		"y": {field: objcode.FieldY, t: lsl.TagFloat},
		"z": {field: objcode.FieldZ, t: lsl.TagFloat},
		"s": {field: objcode.FieldS, t: lsl.TagFloat},
	},
	lsl.TagArray: {
		"count": {field: objcode.FieldCount, t: lsl.TagInt},
		"index": {t: lsl.TagMeth, method: &lsl.Signature{Name: "index", Params: []lsl.Tag{lsl.TagInt}, Ret: lsl.TagObject}},
		"value": {t: lsl.TagMeth, method: &lsl.Signature{Name: "value", Params: []lsl.Tag{lsl.TagInt}, Ret: lsl.TagObject}},
	},
}

func (g *funcGen) member(t lsl.Tag, name string, pos Position) (memberInfo, bool) {
	m, ok := members[t][name]
	if !ok {
		g.errorAt(pos, "type %s does not define field %s", t, name)
	}
	return m, ok
}

func (g *funcGen) field(n *Field) value {
	base := g.expr(n.X)
	if isReported(base) {
		return base
	}
	m, ok := g.member(base.Type(), n.Name, n.Span().Start)
	if !ok {
		return voidVal{reported: true}
	}
	if m.method != nil {
		g.errorAt(n.Span().Start, "method %s must be called", n.Name)
		return voidVal{reported: true}
	}
	return &fieldVal{base: base, field: m.field, t: m.t}
}

func (g *funcGen) index(n *Index) value {
	base := g.expr(n.X)
	key := g.expr(n.Sub)
	if isReported(base) {
		return errVal{lsl.TagObject}
	}
	if base.Type() != lsl.TagArray {
		g.errorAt(n.Span().Start, "taking subscript of non-array")
		return errVal{lsl.TagObject}
	}
	return &elemVal{arr: base, key: key}
}
