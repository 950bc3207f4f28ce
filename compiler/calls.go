package compiler

import (
	"strings"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// ---------------------------------------------------------------------------
// Calls: script functions, intrinsics and built-in methods
// ---------------------------------------------------------------------------

func (g *funcGen) call(n *Call) value {
	if fn, ok := g.c.funcs[n.Name]; ok {
		return g.callFunction(n, fn)
	}
	return g.callIntrinsic(n)
}

// callFunction calls a script-defined function. If the callee may change
// state, the caller checks the flag right after and unwinds through its own
// epilog.
func (g *funcGen) callFunction(n *Call, fn *FuncDecl) value {
	args := g.exprs(n.Args)
	if len(args) != len(fn.Params) {
		g.errorAt(n.Span().Start, "%s has %d param(s), but call has %d", n.Name, len(fn.Params), len(args))
		return errVal{fn.Ret}
	}
	for i, a := range args {
		g.pushAs(a, fn.Params[i].Type, false, n.Args[i].Span().Start)
	}
	g.b.EmitCall(objcode.OpCall, objcode.FunctionName(n.Name), len(args))

	var res value = voidVal{}
	if fn.Ret != lsl.TagVoid {
		res = g.result(fn.Ret)
	}
	if info := g.c.infos[n.Name]; info != nil && info.changes {
		g.b.EmitU8(objcode.OpLoadInst, objcode.InstStateChanged)
		g.b.EmitJump(objcode.OpJumpTrue, g.retLabel)
	}
	return res
}

// callIntrinsic resolves an intrinsic by exact signature, then by a unique
// overload that accepts the arguments through implicit casts. Every
// intrinsic call is followed by a checkpoint.
func (g *funcGen) callIntrinsic(n *Call) value {
	args := g.exprs(n.Args)
	tags := make([]lsl.Tag, len(args))
	for i, a := range args {
		if isReported(a) {
			return voidVal{reported: true}
		}
		tags[i] = a.Type()
	}

	fn, ok := g.c.tables.Intrinsics().Exact(n.Name, tags)
	if !ok {
		fn, ok = g.resolveOverload(n.Name, tags)
	}
	if !ok {
		var msg strings.Builder
		msg.WriteString("undefined function " + n.Name + lsl.ArgSig(tags))
		for _, cand := range g.c.tables.Intrinsics().Named(n.Name) {
			msg.WriteString("\n  have " + cand.String())
		}
		g.errorAt(n.Span().Start, "%s", msg.String())
		return voidVal{reported: true}
	}

	for i, a := range args {
		g.pushAs(a, fn.Params[i], false, n.Args[i].Span().Start)
	}
	g.b.EmitCall(objcode.OpCallAPI, fn.Key(), len(args))
	g.checkRun(n.Span().Start.Line)
	if fn.Ret == lsl.TagVoid {
		return voidVal{}
	}
	return g.result(fn.Ret)
}

func (g *funcGen) resolveOverload(name string, args []lsl.Tag) (lsl.Intrinsic, bool) {
	var found []lsl.Intrinsic
	for _, cand := range g.c.tables.Intrinsics().Named(name) {
		if len(cand.Params) != len(args) {
			continue
		}
		fits := true
		for i, p := range cand.Params {
			if k := lsl.ClassifyCast(args[i], p); k != lsl.CastIdentity && k != lsl.CastImplicit {
				fits = false
				break
			}
		}
		if fits {
			found = append(found, cand)
		}
	}
	if len(found) != 1 {
		return lsl.Intrinsic{}, false
	}
	return found[0], true
}

// methodCall calls a method of a built-in type, such as an array's
// index(i) or value(i).
func (g *funcGen) methodCall(n *MethodCall) value {
	recv := g.expr(n.Recv)
	if isReported(recv) {
		g.exprs(n.Args)
		return voidVal{reported: true}
	}
	m, ok := members[recv.Type()][n.Name]
	if !ok || m.method == nil {
		g.errorAt(n.Span().Start, "type %s does not define method %s", recv.Type(), n.Name)
		g.exprs(n.Args)
		return voidVal{reported: true}
	}
	sig := m.method

	for _, a := range n.Args {
		if HasSideEffects(a) && !recv.final() {
			recv = g.toTemp(recv)
			break
		}
	}
	args := g.exprs(n.Args)
	if len(args) != len(sig.Params) {
		g.errorAt(n.Span().Start, "%s has %d param(s), but call has %d", n.Name, len(sig.Params), len(args))
		return errVal{sig.Ret}
	}
	recv.push(g)
	for i, a := range args {
		g.pushAs(a, sig.Params[i], false, n.Args[i].Span().Start)
	}
	g.b.EmitCall(objcode.OpCallMethod, n.Name, len(args))
	return g.result(sig.Ret)
}
