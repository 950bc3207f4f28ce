package lsl

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a runtime value. Kind selects which payload field is live:
// I for Bool and Int, F for Float, S for String and Key, V for Vector
// (first three) and Rotation (x, y, z, s), L for List and A for Array.
// Kind == TagObject with no payload is undef; boxed values stored in an
// object slot keep their concrete kind.
type Value struct {
	Kind Tag        `cbor:"1,keyasint"`
	I    int32      `cbor:"2,keyasint,omitempty"`
	F    float64    `cbor:"3,keyasint,omitempty"`
	S    string     `cbor:"4,keyasint,omitempty"`
	V    [4]float64 `cbor:"5,keyasint,omitempty"`
	L    []Value    `cbor:"6,keyasint,omitempty"`
	A    *Array     `cbor:"7,keyasint,omitempty"`
}

// Undef is the null value of object-typed slots.
var Undef = Value{Kind: TagObject}

func Bool(b bool) Value {
	if b {
		return Value{Kind: TagBool, I: 1}
	}
	return Value{Kind: TagBool}
}

func Int(i int32) Value            { return Value{Kind: TagInt, I: i} }
func Float(f float64) Value        { return Value{Kind: TagFloat, F: f} }
func String(s string) Value        { return Value{Kind: TagString, S: s} }
func Key(s string) Value           { return Value{Kind: TagKey, S: s} }
func List(elems ...Value) Value    { return Value{Kind: TagList, L: elems} }
func Vector(x, y, z float64) Value { return Value{Kind: TagVector, V: [4]float64{x, y, z, 0}} }

func Rotation(x, y, z, s float64) Value {
	return Value{Kind: TagRotation, V: [4]float64{x, y, z, s}}
}

// ArrayValue wraps an array.
func ArrayValue(a *Array) Value { return Value{Kind: TagArray, A: a} }

// IsUndef reports whether v is the undefined object.
func (v Value) IsUndef() bool {
	return v.Kind == TagObject || v.Kind == TagVoid
}

// Truth is the boolean interpretation used by conditions.
func (v Value) Truth() bool {
	b, err := Convert(v, TagBool)
	return err == nil && b.I != 0
}

// Default returns the initial value of a slot of the given kind.
func Default(t Tag) Value {
	switch t {
	case TagBool:
		return Bool(false)
	case TagInt:
		return Int(0)
	case TagFloat:
		return Float(0)
	case TagString:
		return String("")
	case TagKey:
		return Key("")
	case TagList:
		return List()
	case TagVector:
		return Vector(0, 0, 0)
	case TagRotation:
		return Rotation(0, 0, 0, 1)
	case TagArray:
		return ArrayValue(NewArray())
	}
	return Undef
}

// Equal compares two values structurally. Lists compare by length, the way
// the language defines list equality.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TagBool, TagInt:
		return a.I == b.I
	case TagFloat:
		return a.F == b.F
	case TagString, TagKey:
		return a.S == b.S
	case TagVector, TagRotation:
		return a.V == b.V
	case TagList:
		return len(a.L) == len(b.L)
	case TagArray:
		return a.A == b.A
	}
	return true
}

// Same is deep equality; lists compare element by element.
func Same(a, b Value) bool {
	if a.Kind == TagList && b.Kind == TagList {
		if len(a.L) != len(b.L) {
			return false
		}
		for i := range a.L {
			if !Same(a.L[i], b.L[i]) {
				return false
			}
		}
		return true
	}
	return Equal(a, b)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func formatComponents(v []float64) string {
	parts := make([]string, len(v))
	for i, c := range v {
		parts[i] = strconv.FormatFloat(c, 'f', 5, 64)
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// String renders v the way a cast to string does.
func (v Value) String() string {
	switch v.Kind {
	case TagBool, TagInt:
		return strconv.Itoa(int(v.I))
	case TagFloat:
		return formatFloat(v.F)
	case TagString, TagKey:
		return v.S
	case TagVector:
		return formatComponents(v.V[:3])
	case TagRotation:
		return formatComponents(v.V[:])
	case TagList:
		var sb strings.Builder
		for _, e := range v.L {
			sb.WriteString(e.String())
		}
		return sb.String()
	case TagArray:
		return fmt.Sprintf("array[%d]", v.A.Count())
	case TagObject:
		return "undef"
	}
	return ""
}

// GoString is used by disassembly listings.
func (v Value) GoString() string {
	switch v.Kind {
	case TagString, TagKey:
		return fmt.Sprintf("%s %q", v.Kind, v.S)
	case TagObject:
		return "undef"
	}
	return fmt.Sprintf("%s %s", v.Kind, v.String())
}
