package compiler

import (
	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// BinOp is one operator table entry. Operands are converted to LCast and
// RCast (when not TagVoid) before Op runs.
type BinOp struct {
	Result lsl.Tag
	Op     objcode.Opcode
	LCast  lsl.Tag
	RCast  lsl.Tag
	RMW    bool // usable as the base of a compound assignment
}

type opKey struct {
	l  lsl.Tag
	op string
	r  lsl.Tag
}

var opcodes = map[string]objcode.Opcode{
	"+": objcode.OpAdd, "-": objcode.OpSub, "*": objcode.OpMul, "/": objcode.OpDiv, "%": objcode.OpMod,
	"&": objcode.OpBAnd, "|": objcode.OpBOr, "^": objcode.OpBXor, "<<": objcode.OpShl, ">>": objcode.OpShr,
	"==": objcode.OpEq, "!=": objcode.OpNe, "<": objcode.OpLt, "<=": objcode.OpLe, ">": objcode.OpGt, ">=": objcode.OpGe,
	"&&": objcode.OpAnd, "||": objcode.OpOr,
}

// BinaryOps lists every operator the table may contain.
var BinaryOps = []string{"+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>", "==", "!=", "<", "<=", ">", ">=", "&&", "||"}

type opTable map[opKey]BinOp

func (t opTable) def(l lsl.Tag, op string, r lsl.Tag, result lsl.Tag, lcast, rcast lsl.Tag) {
	t[opKey{l, op, r}] = BinOp{
		Result: result,
		Op:     opcodes[op],
		LCast:  lcast,
		RCast:  rcast,
		RMW:    result != lsl.TagBool,
	}
}

func (t opTable) same(l lsl.Tag, ops string, r, result lsl.Tag) {
	for _, op := range splitOps(ops) {
		t.def(l, op, r, result, lsl.TagVoid, lsl.TagVoid)
	}
}

func splitOps(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// defineBinOps builds the operator table. Mixed integer/float operations
// convert the integer side; everything combines with && and || by
// converting both sides to bool.
func defineBinOps() opTable {
	t := make(opTable)
	const (
		b = lsl.TagBool
		i = lsl.TagInt
		f = lsl.TagFloat
		s = lsl.TagString
		k = lsl.TagKey
		l = lsl.TagList
		v = lsl.TagVector
		r = lsl.TagRotation
		n = lsl.TagVoid
	)

	truthy := []lsl.Tag{b, i, f, s, k, l}
	for _, x := range truthy {
		for _, y := range truthy {
			t.def(x, "&&", y, b, b, b)
			t.def(x, "||", y, b, b, b)
		}
	}
	for _, x := range []lsl.Tag{b, i, f, s, k, l} {
		for _, op := range []string{"|", "^", "&", "==", "!="} {
			t.def(b, op, x, b, n, b)
			if x != b {
				t.def(x, op, b, b, b, n)
			}
		}
	}

	t.same(i, "+ - * / % & | ^ << >>", i, i)
	t.same(i, "== != < <= > >=", i, b)

	t.same(f, "+ - * /", f, f)
	t.same(f, "== != < <= > >=", f, b)
	for _, op := range splitOps("+ - * /") {
		t.def(f, op, i, f, n, f)
		t.def(i, op, f, f, f, n)
	}
	for _, op := range splitOps("== != < <= > >=") {
		t.def(f, op, i, b, n, f)
		t.def(i, op, f, b, f, n)
	}

	t.same(s, "+", s, s)
	t.same(s, "== != < <= > >=", s, b)
	for _, op := range []string{"==", "!="} {
		t.def(k, op, k, b, n, n)
		t.def(k, op, s, b, s, n)
		t.def(s, op, k, b, n, s)
	}

	for _, x := range []lsl.Tag{i, s, k, v, r} {
		t.def(l, "+", x, l, n, n)
		t.def(x, "+", l, l, n, n)
	}
	t.def(l, "+", f, l, n, n)
	t.def(f, "+", l, l, n, n)
	t.same(l, "+", l, l)
	t.same(l, "== !=", l, b)

	t.same(v, "+ - %", v, v)
	t.same(v, "*", v, f)
	t.same(v, "== !=", v, b)
	t.same(v, "* /", r, v)
	for _, x := range []lsl.Tag{f, i} {
		t.def(v, "*", x, v, n, f)
		t.def(v, "/", x, v, n, f)
		t.def(x, "*", v, v, f, n)
	}

	t.same(r, "+ - * /", r, r)
	t.same(r, "== !=", r, b)
	for _, x := range []lsl.Tag{f, i} {
		t.def(r, "*", x, r, n, f)
		t.def(r, "/", x, r, n, f)
		t.def(x, "*", r, r, f, n)
	}
	return t
}

// lookup finds the entry for l op r. Comparison results (bool) that have
// no entry of their own are retried as integers.
func (t opTable) lookup(l lsl.Tag, op string, r lsl.Tag) (BinOp, bool) {
	if bo, ok := t[opKey{l, op, r}]; ok {
		return bo, true
	}
	if l != lsl.TagBool && r != lsl.TagBool {
		return BinOp{}, false
	}
	li, ri := l, r
	if li == lsl.TagBool {
		li = lsl.TagInt
	}
	if ri == lsl.TagBool {
		ri = lsl.TagInt
	}
	bo, ok := t[opKey{li, op, ri}]
	if !ok {
		return BinOp{}, false
	}
	if l == lsl.TagBool && bo.LCast == lsl.TagVoid {
		bo.LCast = lsl.TagInt
	}
	if r == lsl.TagBool && bo.RCast == lsl.TagVoid {
		bo.RCast = lsl.TagInt
	}
	return bo, true
}
