package compiler

import "github.com/chazu/xmr/pkg/lsl"

// Tables holds the language tables a compilation consults: casts,
// operators, intrinsics, events and constants. It is built once by
// NewTables, never modified afterwards, and may be shared by concurrent
// compilations.
type Tables struct {
	ops        opTable
	intrinsics *lsl.IntrinsicIndex
	events     map[string]lsl.EventCode
	constants  map[string]lsl.Value
}

// NewTables builds the tables from the built-in catalogs.
func NewTables() *Tables {
	t := &Tables{
		ops:        defineBinOps(),
		intrinsics: lsl.NewIntrinsicIndex(lsl.Intrinsics),
		events:     make(map[string]lsl.EventCode, lsl.EventCount),
		constants:  make(map[string]lsl.Value, len(lsl.Constants)),
	}
	for i, ev := range lsl.Events {
		t.events[ev.Name] = lsl.EventCode(i)
	}
	for name, v := range lsl.Constants {
		t.constants[name] = v
	}
	return t
}

// Lookup returns the operator entry for l op r.
func (t *Tables) Lookup(l lsl.Tag, op string, r lsl.Tag) (BinOp, bool) {
	return t.ops.lookup(l, op, r)
}

// ClassifyCast classifies a conversion between two types.
func (t *Tables) ClassifyCast(from, to lsl.Tag) lsl.CastKind {
	return lsl.ClassifyCast(from, to)
}

// Event looks up an event handler by name.
func (t *Tables) Event(name string) (lsl.Event, lsl.EventCode, bool) {
	code, ok := t.events[name]
	if !ok {
		return lsl.Event{}, 0, false
	}
	return lsl.Events[code], code, true
}

// Constant looks up a predefined constant.
func (t *Tables) Constant(name string) (lsl.Value, bool) {
	v, ok := t.constants[name]
	return v, ok
}

// Intrinsics returns the intrinsic index.
func (t *Tables) Intrinsics() *lsl.IntrinsicIndex {
	return t.intrinsics
}
