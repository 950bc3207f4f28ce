package lsl

import "unicode/utf8"

// Per-global overheads deducted from the heap limit, by global kind.
const (
	ArrayOverhead    = 16
	FloatOverhead    = 4
	IntegerOverhead  = 4
	ListOverhead     = 16
	ObjectOverhead   = 16
	RotationOverhead = 16
	StringOverhead   = 16
	VectorOverhead   = 12
)

// HeapCost is the number of quota bytes a value occupies when held in a
// heap-tracked slot.
func HeapCost(v Value) int {
	switch v.Kind {
	case TagString, TagKey:
		return utf8.RuneCountInString(v.S)*2 + 24
	case TagList:
		n := 0
		for _, e := range v.L {
			n += elemCost(e)
		}
		return n
	case TagArray:
		n := 0
		for _, e := range v.A.Entries() {
			n += elemCost(e.Key) + elemCost(e.Value)
		}
		return n
	}
	return 0
}

func elemCost(v Value) int {
	switch v.Kind {
	case TagBool, TagInt:
		return 4
	case TagFloat:
		return 8
	case TagVector:
		return 24
	case TagRotation:
		return 32
	}
	return HeapCost(v)
}
