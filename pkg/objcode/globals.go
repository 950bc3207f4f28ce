package objcode

import (
	"fmt"

	"github.com/chazu/xmr/pkg/lsl"
)

// GlobalKind selects one of the per-type global arrays of an instance.
type GlobalKind uint8

const (
	GlobalArrays GlobalKind = iota
	GlobalFloats
	GlobalIntegers
	GlobalLists
	GlobalObjects
	GlobalRotations
	GlobalStrings
	GlobalVectors

	NumGlobalKinds
)

var globalKindNames = [NumGlobalKinds]string{
	"arrays", "floats", "integers", "lists", "objects", "rotations", "strings", "vectors",
}

func (k GlobalKind) String() string {
	if k < NumGlobalKinds {
		return globalKindNames[k]
	}
	return fmt.Sprintf("kind%d", k)
}

// KindFor returns the array a global of type t lives in. Bools share the
// integer array and keys share the string array.
func KindFor(t lsl.Tag) (GlobalKind, bool) {
	switch t {
	case lsl.TagArray:
		return GlobalArrays, true
	case lsl.TagFloat:
		return GlobalFloats, true
	case lsl.TagInt, lsl.TagBool:
		return GlobalIntegers, true
	case lsl.TagList:
		return GlobalLists, true
	case lsl.TagObject:
		return GlobalObjects, true
	case lsl.TagRotation:
		return GlobalRotations, true
	case lsl.TagString, lsl.TagKey:
		return GlobalStrings, true
	case lsl.TagVector:
		return GlobalVectors, true
	}
	return 0, false
}

// GlobalCounts holds the number of slots in each global array.
type GlobalCounts [NumGlobalKinds]int

var kindOverhead = [NumGlobalKinds]int{
	GlobalArrays:    lsl.ArrayOverhead,
	GlobalFloats:    lsl.FloatOverhead,
	GlobalIntegers:  lsl.IntegerOverhead,
	GlobalLists:     lsl.ListOverhead,
	GlobalObjects:   lsl.ObjectOverhead,
	GlobalRotations: lsl.RotationOverhead,
	GlobalStrings:   lsl.StringOverhead,
	GlobalVectors:   lsl.VectorOverhead,
}

// HeapLimit is the quota an instance starts with: half the stack size less
// a fixed overhead per global slot.
func (c GlobalCounts) HeapLimit(stackSize int) int {
	limit := stackSize / 2
	for k, n := range c {
		limit -= n * kindOverhead[k]
	}
	return limit
}

// GlobalInfo is one entry of the debug table: where a named global lives.
type GlobalInfo struct {
	Name  string
	Type  lsl.Tag
	Kind  GlobalKind
	Index int
}
