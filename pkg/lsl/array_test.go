package lsl

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestArrayInsertionOrder(t *testing.T) {
	a := NewArray()
	a.Set(String("b"), Int(2))
	a.Set(Int(1), Int(1))
	a.Set(String("a"), Int(3))
	a.Set(Int(1), Int(10))

	if a.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", a.Count())
	}
	wantKeys := []string{"b", "1", "a"}
	for n, want := range wantKeys {
		if got := a.Index(n).String(); got != want {
			t.Errorf("Index(%d) = %q, want %q", n, got, want)
		}
	}
	if got := a.Get(Int(1)); got.I != 10 {
		t.Errorf("Get(1) = %v, want 10", got)
	}
	if _, _, ok := a.ForEach(3); ok {
		t.Error("ForEach(3) ok = true past end")
	}
}

func TestArraySetUndefDeletes(t *testing.T) {
	a := NewArray()
	a.Set(Int(1), String("x"))
	a.Set(Int(2), String("y"))
	a.Set(Int(1), Undef)

	if a.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", a.Count())
	}
	if !a.Get(Int(1)).IsUndef() {
		t.Error("deleted element still present")
	}
	if got := a.ValueAt(0).S; got != "y" {
		t.Errorf("ValueAt(0) = %q, want y", got)
	}
	// position index rebuilt after delete
	a.Set(Int(2), String("z"))
	if got := a.ValueAt(0).S; got != "z" {
		t.Errorf("ValueAt(0) after update = %q, want z", got)
	}
}

func TestArrayCBOR(t *testing.T) {
	a := NewArray()
	a.Set(String("k"), Vector(1, 2, 3))
	a.Set(Int(7), List(Int(1)))

	data, err := cbor.Marshal(ArrayValue(a))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var v Value
	if err := cbor.Unmarshal(data, &v); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if v.Kind != TagArray || v.A.Count() != 2 {
		t.Fatalf("decoded %#v, want array of 2", v)
	}
	if got := v.A.Get(String("k")); got.V != [4]float64{1, 2, 3, 0} {
		t.Errorf("Get(k) = %v, want <1,2,3>", got)
	}
}

func TestHeapCost(t *testing.T) {
	a := NewArray()
	a.Set(Int(1), String("ab"))
	tests := []struct {
		v    Value
		want int
	}{
		{String(""), 24},
		{String("abc"), 30},
		{Int(5), 0},
		{List(Int(1), Float(2), String("a")), 4 + 8 + 26},
		{ArrayValue(a), 4 + 28},
	}
	for _, tc := range tests {
		if got := HeapCost(tc.v); got != tc.want {
			t.Errorf("HeapCost(%#v) = %d, want %d", tc.v, got, tc.want)
		}
	}
}
