package vm

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// ---------------------------------------------------------------------------
// Operator semantics
//
// The compiler has already converted the operands the operator table asks
// for, so these functions only dispatch on the operand kinds they receive.
// Bools behave as integers except that bitwise operations on two bools
// stay bools.
// ---------------------------------------------------------------------------

var errMath = errors.New(mathError)

func isInt(v lsl.Value) bool { return v.Kind == lsl.TagInt || v.Kind == lsl.TagBool }

func isText(v lsl.Value) bool { return v.Kind == lsl.TagString || v.Kind == lsl.TagKey }

// binary applies a two-operand opcode.
func binary(op objcode.Opcode, a, b lsl.Value) (lsl.Value, error) {
	switch op {
	case objcode.OpEq:
		return lsl.Bool(equal(a, b)), nil
	case objcode.OpNe:
		return lsl.Bool(!equal(a, b)), nil
	case objcode.OpAnd:
		return lsl.Bool(a.Truth() && b.Truth()), nil
	case objcode.OpOr:
		return lsl.Bool(a.Truth() || b.Truth()), nil
	}

	switch {
	case isInt(a) && isInt(b):
		return intOp(op, a, b)
	case a.Kind == lsl.TagFloat && b.Kind == lsl.TagFloat:
		return floatOp(op, a.F, b.F)
	case isText(a) && isText(b):
		return stringOp(op, a.S, b.S)
	case op == objcode.OpAdd && (a.Kind == lsl.TagList || b.Kind == lsl.TagList):
		return listAdd(a, b), nil
	case a.Kind == lsl.TagVector || a.Kind == lsl.TagRotation || b.Kind == lsl.TagVector || b.Kind == lsl.TagRotation:
		return geomOp(op, a, b)
	}
	return lsl.Value{}, fmt.Errorf("%s not defined for %s and %s", op, a.Kind, b.Kind)
}

// equal compares after folding bool into integer and key into string, the
// forms mixed comparisons are converted to.
func equal(a, b lsl.Value) bool {
	if isInt(a) && isInt(b) {
		return a.I == b.I
	}
	if isText(a) && isText(b) {
		return a.S == b.S
	}
	return lsl.Equal(a, b)
}

func intOp(op objcode.Opcode, a, b lsl.Value) (lsl.Value, error) {
	x, y := a.I, b.I
	bits := func(r int32) lsl.Value {
		if a.Kind == lsl.TagBool && b.Kind == lsl.TagBool {
			return lsl.Bool(r != 0)
		}
		return lsl.Int(r)
	}
	switch op {
	case objcode.OpAdd:
		return lsl.Int(x + y), nil
	case objcode.OpSub:
		return lsl.Int(x - y), nil
	case objcode.OpMul:
		return lsl.Int(x * y), nil
	case objcode.OpDiv:
		if y == 0 {
			return lsl.Value{}, errMath
		}
		return lsl.Int(x / y), nil
	case objcode.OpMod:
		if y == 0 {
			return lsl.Value{}, errMath
		}
		return lsl.Int(x % y), nil
	case objcode.OpBAnd:
		return bits(x & y), nil
	case objcode.OpBOr:
		return bits(x | y), nil
	case objcode.OpBXor:
		return bits(x ^ y), nil
	case objcode.OpShl:
		return lsl.Int(int32(uint32(x) << (uint32(y) & 31))), nil
	case objcode.OpShr:
		return lsl.Int(x >> (uint32(y) & 31)), nil
	case objcode.OpLt:
		return lsl.Bool(x < y), nil
	case objcode.OpLe:
		return lsl.Bool(x <= y), nil
	case objcode.OpGt:
		return lsl.Bool(x > y), nil
	case objcode.OpGe:
		return lsl.Bool(x >= y), nil
	}
	return lsl.Value{}, fmt.Errorf("%s not defined for integers", op)
}

func floatOp(op objcode.Opcode, x, y float64) (lsl.Value, error) {
	switch op {
	case objcode.OpAdd:
		return lsl.Float(x + y), nil
	case objcode.OpSub:
		return lsl.Float(x - y), nil
	case objcode.OpMul:
		return lsl.Float(x * y), nil
	case objcode.OpDiv:
		if y == 0 {
			return lsl.Value{}, errMath
		}
		return lsl.Float(x / y), nil
	case objcode.OpLt:
		return lsl.Bool(x < y), nil
	case objcode.OpLe:
		return lsl.Bool(x <= y), nil
	case objcode.OpGt:
		return lsl.Bool(x > y), nil
	case objcode.OpGe:
		return lsl.Bool(x >= y), nil
	}
	return lsl.Value{}, fmt.Errorf("%s not defined for floats", op)
}

func stringOp(op objcode.Opcode, x, y string) (lsl.Value, error) {
	switch op {
	case objcode.OpAdd:
		return lsl.String(x + y), nil
	case objcode.OpLt:
		return lsl.Bool(strings.Compare(x, y) < 0), nil
	case objcode.OpLe:
		return lsl.Bool(strings.Compare(x, y) <= 0), nil
	case objcode.OpGt:
		return lsl.Bool(strings.Compare(x, y) > 0), nil
	case objcode.OpGe:
		return lsl.Bool(strings.Compare(x, y) >= 0), nil
	}
	return lsl.Value{}, fmt.Errorf("%s not defined for strings", op)
}

// listAdd appends, prepends or concatenates. The result never shares
// backing storage with an operand.
func listAdd(a, b lsl.Value) lsl.Value {
	var out []lsl.Value
	switch {
	case a.Kind == lsl.TagList && b.Kind == lsl.TagList:
		out = make([]lsl.Value, 0, len(a.L)+len(b.L))
		out = append(append(out, a.L...), b.L...)
	case a.Kind == lsl.TagList:
		out = make([]lsl.Value, 0, len(a.L)+1)
		out = append(append(out, a.L...), b)
	default:
		out = make([]lsl.Value, 0, len(b.L)+1)
		out = append(append(out, a), b.L...)
	}
	return lsl.List(out...)
}

func geomOp(op objcode.Opcode, a, b lsl.Value) (lsl.Value, error) {
	av, bv := a.V, b.V
	switch {
	case a.Kind == lsl.TagVector && b.Kind == lsl.TagVector:
		switch op {
		case objcode.OpAdd:
			return lsl.Vector(av[0]+bv[0], av[1]+bv[1], av[2]+bv[2]), nil
		case objcode.OpSub:
			return lsl.Vector(av[0]-bv[0], av[1]-bv[1], av[2]-bv[2]), nil
		case objcode.OpMul:
			return lsl.Float(av[0]*bv[0] + av[1]*bv[1] + av[2]*bv[2]), nil
		case objcode.OpMod:
			c := cross(av, bv)
			return lsl.Vector(c[0], c[1], c[2]), nil
		}
	case a.Kind == lsl.TagVector && b.Kind == lsl.TagRotation:
		switch op {
		case objcode.OpMul:
			return vecValue(rotate(av, bv)), nil
		case objcode.OpDiv:
			return vecValue(rotate(av, conj(bv))), nil
		}
	case a.Kind == lsl.TagVector && b.Kind == lsl.TagFloat:
		switch op {
		case objcode.OpMul:
			return lsl.Vector(av[0]*b.F, av[1]*b.F, av[2]*b.F), nil
		case objcode.OpDiv:
			if b.F == 0 {
				return lsl.Value{}, errMath
			}
			return lsl.Vector(av[0]/b.F, av[1]/b.F, av[2]/b.F), nil
		}
	case a.Kind == lsl.TagFloat && b.Kind == lsl.TagVector && op == objcode.OpMul:
		return lsl.Vector(a.F*bv[0], a.F*bv[1], a.F*bv[2]), nil
	case a.Kind == lsl.TagRotation && b.Kind == lsl.TagRotation:
		switch op {
		case objcode.OpAdd:
			return lsl.Rotation(av[0]+bv[0], av[1]+bv[1], av[2]+bv[2], av[3]+bv[3]), nil
		case objcode.OpSub:
			return lsl.Rotation(av[0]-bv[0], av[1]-bv[1], av[2]-bv[2], av[3]-bv[3]), nil
		case objcode.OpMul:
			return rotValue(rotMul(av, bv)), nil
		case objcode.OpDiv:
			return rotValue(rotMul(av, conj(bv))), nil
		}
	case a.Kind == lsl.TagRotation && b.Kind == lsl.TagFloat:
		switch op {
		case objcode.OpMul:
			return lsl.Rotation(av[0]*b.F, av[1]*b.F, av[2]*b.F, av[3]*b.F), nil
		case objcode.OpDiv:
			if b.F == 0 {
				return lsl.Value{}, errMath
			}
			return lsl.Rotation(av[0]/b.F, av[1]/b.F, av[2]/b.F, av[3]/b.F), nil
		}
	case a.Kind == lsl.TagFloat && b.Kind == lsl.TagRotation && op == objcode.OpMul:
		return lsl.Rotation(a.F*bv[0], a.F*bv[1], a.F*bv[2], a.F*bv[3]), nil
	}
	return lsl.Value{}, fmt.Errorf("%s not defined for %s and %s", op, a.Kind, b.Kind)
}

// unary applies NEG, BNOT or NOT.
func unary(op objcode.Opcode, v lsl.Value) (lsl.Value, error) {
	switch op {
	case objcode.OpNot:
		return lsl.Bool(!v.Truth()), nil
	case objcode.OpBNot:
		if isInt(v) {
			return lsl.Int(^v.I), nil
		}
	case objcode.OpNeg:
		switch v.Kind {
		case lsl.TagInt, lsl.TagBool:
			return lsl.Int(-v.I), nil
		case lsl.TagFloat:
			return lsl.Float(-v.F), nil
		case lsl.TagVector:
			return lsl.Vector(-v.V[0], -v.V[1], -v.V[2]), nil
		case lsl.TagRotation:
			return lsl.Rotation(-v.V[0], -v.V[1], -v.V[2], -v.V[3]), nil
		}
	}
	return lsl.Value{}, fmt.Errorf("%s not defined for %s", op, v.Kind)
}

// ---------------------------------------------------------------------------
// Vector and rotation helpers. Rotations are quaternions <x, y, z, s>.
// ---------------------------------------------------------------------------

func cross(a, b [4]float64) [4]float64 {
	return [4]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// hamilton is the quaternion product a*b.
func hamilton(a, b [4]float64) [4]float64 {
	return [4]float64{
		a[3]*b[0] + a[0]*b[3] + a[1]*b[2] - a[2]*b[1],
		a[3]*b[1] + a[1]*b[3] + a[2]*b[0] - a[0]*b[2],
		a[3]*b[2] + a[2]*b[3] + a[0]*b[1] - a[1]*b[0],
		a[3]*b[3] - a[0]*b[0] - a[1]*b[1] - a[2]*b[2],
	}
}

// rotMul composes rotations: a applied first, then b.
func rotMul(a, b [4]float64) [4]float64 {
	return hamilton(b, a)
}

func conj(q [4]float64) [4]float64 {
	return [4]float64{-q[0], -q[1], -q[2], q[3]}
}

// rotate turns v by the rotation q.
func rotate(v, q [4]float64) [4]float64 {
	t := cross(q, v)
	for i := range 3 {
		t[i] *= 2
	}
	u := cross(q, t)
	return [4]float64{
		v[0] + q[3]*t[0] + u[0],
		v[1] + q[3]*t[1] + u[1],
		v[2] + q[3]*t[2] + u[2],
	}
}

func vecValue(v [4]float64) lsl.Value { return lsl.Vector(v[0], v[1], v[2]) }

func rotValue(q [4]float64) lsl.Value { return lsl.Rotation(q[0], q[1], q[2], q[3]) }

func magnitude(v [4]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
