package vm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// ---------------------------------------------------------------------------
// frame: execution state of one method invocation
// ---------------------------------------------------------------------------

type frame struct {
	Method *objcode.Method
	IP     int         // offset of the next instruction
	Locals []lsl.Value // parameters first, then declared locals and temps
	Base   int         // operand stack height when the frame was entered
}

func newFrame(m *objcode.Method, base int) *frame {
	f := &frame{Method: m, Locals: make([]lsl.Value, m.NumLocals), Base: base}
	for i := range f.Locals {
		f.Locals[i] = lsl.Undef
	}
	return f
}

// Sentinels returned by run for the intrinsics the VM handles itself.
var (
	errReset = errors.New("script reset")
	errDie   = errors.New("script died")
)

// hostIntrinsics indexes the catalog entries the VM does not implement.
var hostIntrinsics = func() map[string]lsl.Intrinsic {
	m := make(map[string]lsl.Intrinsic)
	for _, fn := range lsl.Intrinsics {
		if fn.Host {
			m[fn.Key()] = fn
		}
	}
	return m
}()

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

func (in *Instance) push(v lsl.Value) {
	in.stack = append(in.stack, v)
}

func (in *Instance) pop() lsl.Value {
	n := len(in.stack) - 1
	v := in.stack[n]
	in.stack[n] = lsl.Value{}
	in.stack = in.stack[:n]
	return v
}

// popN removes the top n values, returned in push order.
func (in *Instance) popN(n int) []lsl.Value {
	top := len(in.stack)
	out := append([]lsl.Value(nil), in.stack[top-n:]...)
	clear(in.stack[top-n:])
	in.stack = in.stack[:top-n]
	return out
}

func (in *Instance) top() *frame {
	return in.frames[len(in.frames)-1]
}

// ---------------------------------------------------------------------------
// Run loop
// ---------------------------------------------------------------------------

// run executes until the frame stack empties, the scheduler asks for a
// suspension (suspended is true) or an error occurs.
func (in *Instance) run(ctx context.Context) (suspended bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = in.fail("vm fault: %v", r)
		}
	}()

	for len(in.frames) > 0 {
		f := in.top()
		m := f.Method
		ins, derr := m.Decode(f.IP)
		if derr != nil {
			return false, in.fail("%s", derr)
		}
		f.IP += ins.Op.InstructionLen()

		switch ins.Op {
		case objcode.OpNop:

		case objcode.OpPop:
			in.pop()
		case objcode.OpDup:
			in.push(in.stack[len(in.stack)-1])
		case objcode.OpSwap:
			n := len(in.stack)
			in.stack[n-1], in.stack[n-2] = in.stack[n-2], in.stack[n-1]

		case objcode.OpConst:
			in.push(m.Constant(int(ins.A)))
		case objcode.OpDefault:
			in.push(lsl.Default(lsl.Tag(ins.A)))
		case objcode.OpUndef:
			in.push(lsl.Undef)

		case objcode.OpLoadLocal:
			in.push(f.Locals[ins.A])
		case objcode.OpStoreLocal:
			f.Locals[ins.A] = in.pop()
		case objcode.OpLoadGlobal:
			in.push(in.globals[ins.A][ins.B])
		case objcode.OpStoreGlobal:
			in.globals[ins.A][ins.B] = in.pop()
		case objcode.OpLoadInst:
			in.push(lsl.Int(in.fields[ins.A]))
		case objcode.OpStoreInst:
			in.fields[ins.A] = in.pop().I
		case objcode.OpLoadEhArg:
			if int(ins.A) < len(in.args) {
				in.push(in.args[ins.A])
			} else {
				in.push(lsl.Undef)
			}

		case objcode.OpListNew:
			in.push(lsl.List(in.popN(int(ins.A))...))
		case objcode.OpVecNew:
			c := in.popN(3)
			in.push(lsl.Vector(c[0].F, c[1].F, c[2].F))
		case objcode.OpRotNew:
			c := in.popN(4)
			in.push(lsl.Rotation(c[0].F, c[1].F, c[2].F, c[3].F))
		case objcode.OpGetField:
			v, err := getField(in.pop(), uint8(ins.A))
			if err != nil {
				return false, in.fail("%s", err)
			}
			in.push(v)
		case objcode.OpSetField:
			val, agg := in.pop(), in.pop()
			if (agg.Kind != lsl.TagVector && agg.Kind != lsl.TagRotation) || ins.A > uint32(objcode.FieldS) {
				return false, in.fail("cannot set %s of %s", objcode.FieldName(uint8(ins.A)), agg.Kind)
			}
			agg.V[ins.A] = val.F
			in.push(agg)
		case objcode.OpArrayGet:
			key, arr := in.pop(), in.pop()
			if arr.Kind != lsl.TagArray {
				return false, in.fail("%s is not an array", arr.Kind)
			}
			in.push(arr.A.Get(key))
		case objcode.OpArraySet:
			val, key, arr := in.pop(), in.pop(), in.pop()
			if arr.Kind != lsl.TagArray {
				return false, in.fail("%s is not an array", arr.Kind)
			}
			arr.A.Set(key, val)
		case objcode.OpArrayForEach:
			idx, arr := in.pop(), in.pop()
			if arr.Kind != lsl.TagArray {
				return false, in.fail("%s is not an array", arr.Kind)
			}
			k, v, ok := arr.A.ForEach(int(idx.I))
			if !ok {
				k, v = lsl.Undef, lsl.Undef
			}
			in.push(k)
			in.push(v)
			in.push(lsl.Bool(ok))

		case objcode.OpNeg, objcode.OpBNot, objcode.OpNot:
			r, err := unary(ins.Op, in.pop())
			if err != nil {
				return false, in.fail("%s", err)
			}
			in.push(r)
		case objcode.OpAdd, objcode.OpSub, objcode.OpMul, objcode.OpDiv, objcode.OpMod,
			objcode.OpBAnd, objcode.OpBOr, objcode.OpBXor, objcode.OpShl, objcode.OpShr,
			objcode.OpEq, objcode.OpNe, objcode.OpLt, objcode.OpLe, objcode.OpGt, objcode.OpGe,
			objcode.OpAnd, objcode.OpOr:
			b, a := in.pop(), in.pop()
			r, err := binary(ins.Op, a, b)
			if err != nil {
				return false, in.fail("%s", err)
			}
			in.push(r)
		case objcode.OpTypeIs:
			in.push(lsl.Bool(typeIs(in.pop(), lsl.Tag(ins.A))))

		case objcode.OpCast:
			v, err := lsl.Convert(in.pop(), lsl.Tag(ins.A))
			if err != nil {
				return false, in.failErr(err)
			}
			in.push(v)

		case objcode.OpJump:
			f.IP = int(ins.A)
		case objcode.OpJumpTrue:
			if in.pop().Truth() {
				f.IP = int(ins.A)
			}
		case objcode.OpJumpFalse:
			if !in.pop().Truth() {
				f.IP = int(ins.A)
			}

		case objcode.OpCall:
			name := m.ConstString(int(ins.A))
			callee, ok := in.Program.Functions[name]
			if !ok {
				return false, in.fail("undefined function %s", strings.TrimPrefix(name, "__fun_"))
			}
			args := in.popN(int(ins.B))
			nf := newFrame(callee, len(in.stack))
			copy(nf.Locals, args)
			in.frames = append(in.frames, nf)
		case objcode.OpCallAPI:
			if err := in.callAPI(ctx, m.ConstString(int(ins.A)), int(ins.B)); err != nil {
				return false, err
			}
		case objcode.OpCallMethod:
			args := in.popN(int(ins.B))
			r, err := callMethod(in.pop(), m.ConstString(int(ins.A)), args)
			if err != nil {
				return false, in.fail("%s", err)
			}
			in.push(r)

		case objcode.OpCheckRun:
			line := int(ins.A)
			if len(in.frames) > in.cfg.MaxFrames {
				return false, in.failErr(&OutOfStackError{Depth: len(in.frames), Line: line})
			}
			if err := ctx.Err(); err != nil {
				return true, err
			}
			if in.Scheduler != nil && in.Scheduler.Yield(in, line) {
				return true, nil
			}
		case objcode.OpHeapUpdate:
			val, old := in.pop(), in.pop()
			cost := int32(lsl.HeapCost(val))
			left := in.fields[objcode.InstHeapLeft] - (cost - intOf(old))
			if left < 0 {
				return false, in.failErr(&OutOfHeapError{
					Limit: int(in.fields[objcode.InstHeapLimit]),
					Left:  int(in.fields[objcode.InstHeapLeft]),
					Line:  in.line(),
				})
			}
			in.fields[objcode.InstHeapLeft] = left
			in.push(lsl.Int(cost))
		case objcode.OpHeapCredit:
			in.fields[objcode.InstHeapLeft] += intOf(in.pop())

		case objcode.OpRet:
			var res lsl.Value
			if m.Ret != lsl.TagVoid {
				res = in.pop()
			}
			clear(in.stack[f.Base:])
			in.stack = in.stack[:f.Base]
			in.frames = in.frames[:len(in.frames)-1]
			if len(in.frames) > 0 && m.Ret != lsl.TagVoid {
				in.push(res)
			}
		case objcode.OpThrowUndefState:
			return false, in.failErr(&UndefinedStateError{State: m.ConstString(int(ins.A))})

		default:
			return false, in.fail("unhandled opcode %s", ins.Op)
		}
	}
	return false, nil
}

// callAPI pops argc arguments and calls a pure builtin or the host.
func (in *Instance) callAPI(ctx context.Context, key string, argc int) error {
	args := in.popN(argc)
	if fn, ok := lookupBuiltin(key); ok {
		r, err := fn(args)
		if err != nil {
			return in.failErr(err)
		}
		in.push(r)
		return nil
	}
	fn, ok := hostIntrinsics[key]
	if !ok {
		return in.fail("undefined function %s", key)
	}
	switch fn.Name {
	case "llResetScript":
		return errReset
	case "llDie":
		return errDie
	}
	r, err := in.Host.CallHost(ctx, in, fn, args)
	if err != nil {
		return in.failErr(err)
	}
	if fn.Ret != lsl.TagVoid {
		if r, err = lsl.Convert(r, fn.Ret); err != nil {
			return in.failErr(err)
		}
		in.push(r)
	}
	return nil
}

func getField(v lsl.Value, field uint8) (lsl.Value, error) {
	switch v.Kind {
	case lsl.TagVector, lsl.TagRotation:
		if field <= objcode.FieldS {
			return lsl.Float(v.V[field]), nil
		}
	case lsl.TagArray:
		if field == objcode.FieldCount {
			return lsl.Int(int32(v.A.Count())), nil
		}
	}
	return lsl.Value{}, fmt.Errorf("%s has no field %s", v.Kind, objcode.FieldName(field))
}

// callMethod implements the methods of built-in types.
func callMethod(recv lsl.Value, name string, args []lsl.Value) (lsl.Value, error) {
	if recv.Kind == lsl.TagArray && len(args) == 1 {
		switch name {
		case "index":
			return recv.A.Index(int(args[0].I)), nil
		case "value":
			return recv.A.ValueAt(int(args[0].I)), nil
		}
	}
	return lsl.Value{}, fmt.Errorf("type %s does not define method %s", recv.Kind, name)
}

// typeIs implements TYPE_IS. The void tag tests for undef and the object
// tag for any defined value.
func typeIs(v lsl.Value, t lsl.Tag) bool {
	switch t {
	case lsl.TagVoid:
		return v.IsUndef()
	case lsl.TagObject:
		return !v.IsUndef()
	case lsl.TagInt:
		return v.Kind == lsl.TagInt || v.Kind == lsl.TagBool
	}
	return v.Kind == t
}

func intOf(v lsl.Value) int32 {
	if isInt(v) {
		return v.I
	}
	return 0
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// line is the source line of the instruction just executed.
func (in *Instance) line() int {
	if len(in.frames) == 0 {
		return 0
	}
	f := in.top()
	return f.Method.Line(max(f.IP-1, 0))
}

func (in *Instance) fail(format string, args ...any) error {
	return in.failErr(fmt.Errorf(format, args...))
}

// failErr wraps err with the current method and line. Quota, stack and
// state errors keep their own type.
func (in *Instance) failErr(err error) error {
	var (
		heap  *OutOfHeapError
		stack *OutOfStackError
		state *UndefinedStateError
	)
	if errors.As(err, &heap) || errors.As(err, &stack) || errors.As(err, &state) {
		return err
	}
	se := &ScriptError{Msg: err.Error(), Err: err}
	if len(in.frames) > 0 {
		se.Method = in.top().Method.Name
		se.Line = in.line()
	}
	return se
}

// unwind discards every frame after a runtime error, returning the charges
// of tracked locals so the quota stays balanced.
func (in *Instance) unwind() {
	for i := len(in.frames) - 1; i >= 0; i-- {
		f := in.frames[i]
		for slot, name := range f.Method.LocalNames {
			if strings.HasPrefix(name, "__heap_") && slot < len(f.Locals) {
				in.fields[objcode.InstHeapLeft] += intOf(f.Locals[slot])
			}
		}
	}
	in.frames = nil
	clear(in.stack)
	in.stack = in.stack[:0]
}
