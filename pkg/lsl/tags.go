// Package lsl defines the value model of the scripting language: type tags,
// runtime values, conversions and the static catalogs (events, intrinsics,
// constants) shared by the compiler and the VM.
package lsl

import (
	"fmt"
	"strings"
)

// Tag is the closed set of value kinds.
type Tag uint8

const (
	TagVoid Tag = iota
	TagBool
	TagInt
	TagFloat
	TagString
	TagKey
	TagList
	TagVector
	TagRotation
	TagArray
	TagObject
	TagMeth

	NumTags
)

var tagNames = [NumTags]string{
	TagVoid:     "void",
	TagBool:     "bool",
	TagInt:      "integer",
	TagFloat:    "float",
	TagString:   "string",
	TagKey:      "key",
	TagList:     "list",
	TagVector:   "vector",
	TagRotation: "rotation",
	TagArray:    "array",
	TagObject:   "object",
	TagMeth:     "meth",
}

func (t Tag) String() string {
	if t < NumTags {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", t)
}

// ParseTag maps a source-level type name to its tag. "rot" and "vec" are
// not accepted; only the canonical names.
func ParseTag(name string) (Tag, bool) {
	switch name {
	case "integer":
		return TagInt, true
	case "float":
		return TagFloat, true
	case "string":
		return TagString, true
	case "key":
		return TagKey, true
	case "list":
		return TagList, true
	case "vector":
		return TagVector, true
	case "rotation":
		return TagRotation, true
	case "array":
		return TagArray, true
	case "object":
		return TagObject, true
	}
	return TagVoid, false
}

// HeapTracked reports whether variables of this kind are charged against
// the instance heap quota.
func (t Tag) HeapTracked() bool {
	return t == TagString || t == TagList || t == TagArray
}

// Signature is a callable shape: a script function, an intrinsic, or a
// method on a built-in object.
type Signature struct {
	Name   string
	Params []Tag
	Ret    Tag
}

// ArgSig formats an argument list the way signatures are keyed,
// e.g. "(integer,string)".
func ArgSig(params []Tag) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Key returns the lookup key "name(t1,t2)".
func (s Signature) Key() string {
	return s.Name + ArgSig(s.Params)
}

func (s Signature) String() string {
	return s.Ret.String() + " " + s.Key()
}

// Type is a compile-time type descriptor. Equality is by tag; Meth types
// carry the candidate signatures they may resolve to.
type Type struct {
	Tag  Tag
	Meth []Signature
}

// T builds a plain descriptor for tag.
func T(tag Tag) Type { return Type{Tag: tag} }

// Equal compares by tag.
func (t Type) Equal(o Type) bool { return t.Tag == o.Tag }

func (t Type) String() string { return t.Tag.String() }
