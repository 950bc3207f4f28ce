package lsl

import (
	"github.com/fxamacker/cbor/v2"
)

// arrayKey is the comparable form of a value used to index an Array.
type arrayKey struct {
	kind Tag
	i    int32
	f    float64
	s    string
	v    [4]float64
}

func keyOf(v Value) arrayKey {
	switch v.Kind {
	case TagList, TagArray:
		// Aggregates index by their string rendering.
		return arrayKey{kind: TagString, s: v.String()}
	case TagBool:
		return arrayKey{kind: TagInt, i: v.I}
	}
	return arrayKey{kind: v.Kind, i: v.I, f: v.F, s: v.S, v: v.V}
}

// ArrayEntry is one key/value pair of an Array.
type ArrayEntry struct {
	Key   Value `cbor:"1,keyasint"`
	Value Value `cbor:"2,keyasint"`
}

// Array is an associative array that enumerates in insertion order, so
// position-based enumeration (foreach, index(), value()) is stable across
// snapshot and restore.
type Array struct {
	entries []ArrayEntry
	pos     map[arrayKey]int
}

// NewArray returns an empty array.
func NewArray() *Array {
	return &Array{pos: make(map[arrayKey]int)}
}

// Count returns the number of elements.
func (a *Array) Count() int {
	if a == nil {
		return 0
	}
	return len(a.entries)
}

// Get returns the element stored under key, or undef.
func (a *Array) Get(key Value) Value {
	if a == nil {
		return Undef
	}
	if i, ok := a.pos[keyOf(key)]; ok {
		return a.entries[i].Value
	}
	return Undef
}

// Set stores val under key. Storing undef removes the element.
func (a *Array) Set(key, val Value) {
	k := keyOf(key)
	i, ok := a.pos[k]
	if val.IsUndef() {
		if !ok {
			return
		}
		a.entries = append(a.entries[:i], a.entries[i+1:]...)
		delete(a.pos, k)
		for j := i; j < len(a.entries); j++ {
			a.pos[keyOf(a.entries[j].Key)] = j
		}
		return
	}
	if ok {
		a.entries[i].Value = val
		return
	}
	a.pos[k] = len(a.entries)
	a.entries = append(a.entries, ArrayEntry{Key: key, Value: val})
}

// ForEach fetches the element at position n. ok is false past the end.
func (a *Array) ForEach(n int) (key, val Value, ok bool) {
	if a == nil || n < 0 || n >= len(a.entries) {
		return Undef, Undef, false
	}
	e := a.entries[n]
	return e.Key, e.Value, true
}

// Index returns the key at position n, or undef.
func (a *Array) Index(n int) Value {
	k, _, _ := a.ForEach(n)
	return k
}

// ValueAt returns the value at position n, or undef.
func (a *Array) ValueAt(n int) Value {
	_, v, _ := a.ForEach(n)
	return v
}

// Clear removes every element.
func (a *Array) Clear() {
	a.entries = nil
	a.pos = make(map[arrayKey]int)
}

// Entries returns the elements in enumeration order.
func (a *Array) Entries() []ArrayEntry {
	if a == nil {
		return nil
	}
	return a.entries
}

// MarshalCBOR encodes the array as its ordered entry list.
func (a *Array) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(a.Entries())
}

// UnmarshalCBOR rebuilds the array and its index.
func (a *Array) UnmarshalCBOR(data []byte) error {
	var entries []ArrayEntry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return err
	}
	a.entries = nil
	a.pos = make(map[arrayKey]int, len(entries))
	for _, e := range entries {
		a.Set(e.Key, e.Value)
	}
	return nil
}
