package compiler

import (
	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// ---------------------------------------------------------------------------
// Value handles: where a value lives and how to load or store it
// ---------------------------------------------------------------------------

// value is the result of lowering an expression.
type value interface {
	Type() lsl.Tag
	// push emits code leaving the value on the operand stack.
	push(g *funcGen)
	// final reports that later side effects cannot change the value, so it
	// may be pushed late without being copied to a temp first.
	final() bool
}

// lvalue is a value that can be assigned. A store is emitted as
// storePre, code pushing the new value, storePost.
type lvalue interface {
	value
	storePre(g *funcGen)
	storePost(g *funcGen)
	// heapTrack returns the tracker slot charged for writes through this
	// lvalue and the variable whose cost it records; h is nil when the
	// write is not heap accounted.
	heapTrack() (h lvalue, v value)
}

// constVal is a literal or predefined constant.
type constVal struct {
	v lsl.Value
}

func (c constVal) Type() lsl.Tag { return c.v.Kind }
func (c constVal) final() bool   { return true }

func (c constVal) push(g *funcGen) {
	if c.v.IsUndef() {
		g.b.Emit(objcode.OpUndef)
		return
	}
	g.b.EmitConst(c.v)
}

// localVal is a local slot: parameter, declared local, tracker or temp.
type localVal struct {
	slot uint16
	t    lsl.Tag
	name string
	heap *localVal
	temp bool
}

func (l *localVal) Type() lsl.Tag { return l.t }
func (l *localVal) final() bool   { return l.temp }

func (l *localVal) push(g *funcGen) {
	g.b.EmitU16(objcode.OpLoadLocal, l.slot)
}

func (l *localVal) storePre(g *funcGen) {}

func (l *localVal) storePost(g *funcGen) {
	g.b.EmitU16(objcode.OpStoreLocal, l.slot)
}

func (l *localVal) heapTrack() (lvalue, value) {
	if l.heap == nil {
		return nil, nil
	}
	return l.heap, l
}

// globalVal is a slot in one of the per-kind global arrays.
type globalVal struct {
	info objcode.GlobalInfo
	heap *globalVal
}

func (gv *globalVal) Type() lsl.Tag { return gv.info.Type }
func (gv *globalVal) final() bool   { return false }

func (gv *globalVal) push(g *funcGen) {
	g.b.EmitGlobal(objcode.OpLoadGlobal, gv.info.Kind, uint16(gv.info.Index))
}

func (gv *globalVal) storePre(g *funcGen) {}

func (gv *globalVal) storePost(g *funcGen) {
	g.b.EmitGlobal(objcode.OpStoreGlobal, gv.info.Kind, uint16(gv.info.Index))
}

func (gv *globalVal) heapTrack() (lvalue, value) {
	if gv.heap == nil {
		return nil, nil
	}
	return gv.heap, gv
}

// fieldVal is a component of a vector or rotation, or an array's count.
type fieldVal struct {
	base  value
	field uint8
	t     lsl.Tag
}

func (f *fieldVal) Type() lsl.Tag { return f.t }
func (f *fieldVal) final() bool   { return f.base.final() }

func (f *fieldVal) push(g *funcGen) {
	f.base.push(g)
	g.b.EmitU8(objcode.OpGetField, f.field)
}

// fieldLVal is a writable component of a vector or rotation variable.
type fieldLVal struct {
	fieldVal
	lv lvalue
}

func (f *fieldLVal) storePre(g *funcGen) {
	f.lv.storePre(g)
	f.lv.push(g)
}

func (f *fieldLVal) storePost(g *funcGen) {
	g.b.EmitU8(objcode.OpSetField, f.field)
	f.lv.storePost(g)
}

func (f *fieldLVal) heapTrack() (lvalue, value) { return nil, nil }

// elemVal is an array element, always of type object.
type elemVal struct {
	arr value
	key value
}

func (e *elemVal) Type() lsl.Tag { return lsl.TagObject }
func (e *elemVal) final() bool   { return false }

func (e *elemVal) push(g *funcGen) {
	e.arr.push(g)
	g.pushKey(e.key)
	g.b.Emit(objcode.OpArrayGet)
}

// elemLVal is a writable array element. Writes re-charge the array
// variable's tracker.
type elemLVal struct {
	elemVal
	lv lvalue
}

func (e *elemLVal) storePre(g *funcGen) {
	e.arr.push(g)
	g.pushKey(e.key)
}

func (e *elemLVal) storePost(g *funcGen) {
	g.b.Emit(objcode.OpArraySet)
}

func (e *elemLVal) heapTrack() (lvalue, value) {
	return e.lv.heapTrack()
}

// voidVal stands for no value: a void call result, or a placeholder after
// a diagnostic (reported) so that lowering can go on.
type voidVal struct {
	reported bool
}

func (voidVal) Type() lsl.Tag { return lsl.TagVoid }
func (voidVal) final() bool   { return true }

func (voidVal) push(g *funcGen) {
	g.b.Emit(objcode.OpUndef)
}

// errVal is a typed placeholder produced after a diagnostic.
type errVal struct {
	t lsl.Tag
}

func (e errVal) Type() lsl.Tag { return e.t }
func (e errVal) final() bool   { return true }

func (e errVal) push(g *funcGen) {
	switch e.t {
	case lsl.TagVoid, lsl.TagObject, lsl.TagMeth:
		g.b.Emit(objcode.OpUndef)
	default:
		g.b.EmitU8(objcode.OpDefault, uint8(e.t))
	}
}

// errLVal swallows a store after an invalid L-value diagnostic.
type errLVal struct {
	errVal
}

func (errLVal) storePre(g *funcGen) {}

func (errLVal) storePost(g *funcGen) {
	g.b.Emit(objcode.OpPop)
}

func (errLVal) heapTrack() (lvalue, value) { return nil, nil }

// isReported reports whether v is a placeholder for an error already
// diagnosed.
func isReported(v value) bool {
	switch x := v.(type) {
	case voidVal:
		return x.reported
	case errVal, errLVal:
		return true
	}
	return false
}
