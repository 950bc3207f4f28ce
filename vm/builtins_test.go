package vm

import (
	"math"
	"testing"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

func call(t *testing.T, key string, args ...lsl.Value) lsl.Value {
	t.Helper()
	fn, ok := lookupBuiltin(key)
	if !ok {
		t.Fatalf("no builtin %s", key)
	}
	v, err := fn(args)
	if err != nil {
		t.Fatalf("%s: %v", key, err)
	}
	return v
}

func ints(xs ...int32) lsl.Value {
	l := make([]lsl.Value, len(xs))
	for i, x := range xs {
		l[i] = lsl.Int(x)
	}
	return lsl.List(l...)
}

func strs(xs ...string) lsl.Value {
	l := make([]lsl.Value, len(xs))
	for i, x := range xs {
		l[i] = lsl.String(x)
	}
	return lsl.List(l...)
}

func TestEveryPureIntrinsicImplemented(t *testing.T) {
	for _, fn := range lsl.Intrinsics {
		_, pure := lookupBuiltin(fn.Key())
		_, host := hostIntrinsics[fn.Key()]
		if fn.Host && (pure || !host) {
			t.Errorf("%s: host intrinsic routed wrong", fn.Key())
		}
		if !fn.Host && !pure {
			t.Errorf("%s has no builtin", fn.Key())
		}
	}
	if len(builtins) > len(lsl.Intrinsics) {
		t.Errorf("%d builtins for %d intrinsics", len(builtins), len(lsl.Intrinsics))
	}
}

func TestMathBuiltins(t *testing.T) {
	tests := []struct {
		key  string
		args []lsl.Value
		want lsl.Value
	}{
		{"llAbs(integer)", []lsl.Value{lsl.Int(-4)}, lsl.Int(4)},
		{"llFloor(float)", []lsl.Value{lsl.Float(-1.5)}, lsl.Int(-2)},
		{"llCeil(float)", []lsl.Value{lsl.Float(1.1)}, lsl.Int(2)},
		{"llRound(float)", []lsl.Value{lsl.Float(2.5)}, lsl.Int(3)},
		{"llRound(float)", []lsl.Value{lsl.Float(-2.5)}, lsl.Int(-2)},
		{"llPow(float,float)", []lsl.Value{lsl.Float(2), lsl.Float(10)}, lsl.Float(1024)},
		{"llModPow(integer,integer,integer)", []lsl.Value{lsl.Int(4), lsl.Int(13), lsl.Int(497)}, lsl.Int(445)},
		{"llModPow(integer,integer,integer)", []lsl.Value{lsl.Int(2), lsl.Int(5), lsl.Int(0)}, lsl.Int(0)},
		{"llVecMag(vector)", []lsl.Value{lsl.Vector(3, 4, 0)}, lsl.Float(5)},
		{"llVecNorm(vector)", []lsl.Value{lsl.Vector(0, 0, 2)}, lsl.Vector(0, 0, 1)},
		{"llVecDist(vector,vector)", []lsl.Value{lsl.Vector(1, 1, 1), lsl.Vector(1, 4, 5)}, lsl.Float(5)},
	}
	for _, tt := range tests {
		if got := call(t, tt.key, tt.args...); !lsl.Same(got, tt.want) {
			t.Errorf("%s%v = %#v, want %#v", tt.key, tt.args, got, tt.want)
		}
	}

	fn, _ := lookupBuiltin("llSqrt(float)")
	if _, err := fn([]lsl.Value{lsl.Float(-1)}); err != errMath {
		t.Errorf("llSqrt(-1) err = %v, want %v", err, errMath)
	}
	for range 100 {
		if f := call(t, "llFrand(float)", lsl.Float(2)).F; f < 0 || f >= 2 {
			t.Fatalf("llFrand(2) = %v, out of range", f)
		}
	}
}

func TestEulerRoundTrip(t *testing.T) {
	for _, e := range [][4]float64{
		{0, 0, 0},
		{0.3, 0, 0},
		{0, 0.4, 0},
		{0, 0, 1.2},
		{0.1, -0.7, 2.0},
	} {
		r := call(t, "llEuler2Rot(vector)", lsl.Vector(e[0], e[1], e[2]))
		back := call(t, "llRot2Euler(rotation)", r)
		if !near(back.V, e) {
			t.Errorf("llRot2Euler(llEuler2Rot(%v)) = %v", e, back.V)
		}
	}

	// A z rotation turns x into y.
	r := call(t, "llEuler2Rot(vector)", lsl.Vector(0, 0, math.Pi/2))
	v, _ := binary(objcode.OpMul, lsl.Vector(1, 0, 0), r)
	if !near(v.V, [4]float64{0, 1, 0}) {
		t.Errorf("<1,0,0> * llEuler2Rot(<0,0,PI/2>) = %v", v.V)
	}
}

func TestAxisAngle(t *testing.T) {
	r := call(t, "llAxisAngle2Rot(vector,float)", lsl.Vector(0, 0, 2), lsl.Float(1))
	if a := call(t, "llRot2Angle(rotation)", r).F; math.Abs(a-1) > 1e-9 {
		t.Errorf("llRot2Angle = %v, want 1", a)
	}
	if ax := call(t, "llRot2Axis(rotation)", r); !near(ax.V, [4]float64{0, 0, 1}) {
		t.Errorf("llRot2Axis = %v, want <0,0,1>", ax.V)
	}
}

func TestStringBuiltins(t *testing.T) {
	s := lsl.String("abcdef")
	tests := []struct {
		key  string
		args []lsl.Value
		want string
	}{
		{"llGetSubString(string,integer,integer)", []lsl.Value{s, lsl.Int(1), lsl.Int(3)}, "bcd"},
		{"llGetSubString(string,integer,integer)", []lsl.Value{s, lsl.Int(-3), lsl.Int(-1)}, "def"},
		{"llGetSubString(string,integer,integer)", []lsl.Value{s, lsl.Int(4), lsl.Int(1)}, "abef"},
		{"llGetSubString(string,integer,integer)", []lsl.Value{s, lsl.Int(2), lsl.Int(99)}, "cdef"},
		{"llDeleteSubString(string,integer,integer)", []lsl.Value{s, lsl.Int(1), lsl.Int(3)}, "aef"},
		{"llDeleteSubString(string,integer,integer)", []lsl.Value{s, lsl.Int(4), lsl.Int(1)}, "cd"},
		{"llInsertString(string,integer,string)", []lsl.Value{s, lsl.Int(2), lsl.String("XY")}, "abXYcdef"},
		{"llToUpper(string)", []lsl.Value{s}, "ABCDEF"},
		{"llStringTrim(string,integer)", []lsl.Value{lsl.String("  x "), lsl.Int(3)}, "x"},
		{"llStringTrim(string,integer)", []lsl.Value{lsl.String("  x "), lsl.Int(1)}, "x "},
		{"llSHA1String(string)", []lsl.Value{lsl.String("abc")}, "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{"llMD5String(string,integer)", []lsl.Value{lsl.String("abc"), lsl.Int(0)}, "cf4bab410c5a562ddef8587f22c939ca"},
		{"llStringToBase64(string)", []lsl.Value{lsl.String("hi")}, "aGk="},
		{"llBase64ToString(string)", []lsl.Value{lsl.String("aGk=")}, "hi"},
		{"llEscapeURL(string)", []lsl.Value{lsl.String("a b/é")}, "a%20b%2F%C3%A9"},
		{"llUnescapeURL(string)", []lsl.Value{lsl.String("a%20b%2F%C3%A9%")}, "a b/é%"},
		{"xmrStr(integer)", []lsl.Value{lsl.Int(7)}, "7"},
		{"xmrStr(float)", []lsl.Value{lsl.Float(0.5)}, "0.500000"},
		{"xmrStr(vector)", []lsl.Value{lsl.Vector(1, 2, 3)}, "<1.00000, 2.00000, 3.00000>"},
	}
	for _, tt := range tests {
		if got := call(t, tt.key, tt.args...).S; got != tt.want {
			t.Errorf("%s%v = %q, want %q", tt.key, tt.args, got, tt.want)
		}
	}
	if n := call(t, "llStringLength(string)", lsl.String("héllo")).I; n != 5 {
		t.Errorf("llStringLength(héllo) = %d, want 5", n)
	}
	if n := call(t, "llSubStringIndex(string,string)", lsl.String("héllo"), lsl.String("llo")).I; n != 2 {
		t.Errorf("llSubStringIndex = %d, want 2", n)
	}
	if n := call(t, "llSubStringIndex(string,string)", s, lsl.String("z")).I; n != -1 {
		t.Errorf("llSubStringIndex(missing) = %d, want -1", n)
	}
}

func TestListBuiltins(t *testing.T) {
	l := ints(1, 2, 3, 4, 5)
	tests := []struct {
		name string
		got  lsl.Value
		want lsl.Value
	}{
		{"List2List", call(t, "llList2List(list,integer,integer)", l, lsl.Int(1), lsl.Int(2)), ints(2, 3)},
		{"List2List negative", call(t, "llList2List(list,integer,integer)", l, lsl.Int(-2), lsl.Int(-1)), ints(4, 5)},
		{"List2List inverted", call(t, "llList2List(list,integer,integer)", l, lsl.Int(3), lsl.Int(1)), ints(1, 2, 4, 5)},
		{"DeleteSubList", call(t, "llDeleteSubList(list,integer,integer)", l, lsl.Int(1), lsl.Int(3)), ints(1, 5)},
		{"DeleteSubList inverted", call(t, "llDeleteSubList(list,integer,integer)", l, lsl.Int(3), lsl.Int(1)), ints(3)},
		{"InsertList", call(t, "llListInsertList(list,list,integer)", l, ints(9), lsl.Int(2)), ints(1, 2, 9, 3, 4, 5)},
		{"InsertList past end", call(t, "llListInsertList(list,list,integer)", l, ints(9), lsl.Int(10)), ints(1, 2, 3, 4, 5, 9)},
		{"ReplaceList", call(t, "llListReplaceList(list,list,integer,integer)", l, ints(8, 9), lsl.Int(1), lsl.Int(3)), ints(1, 8, 9, 5)},
		{"CSV2List", call(t, "llCSV2List(string)", lsl.String("a, <1,2,3>,b")), strs("a", "<1,2,3>", "b")},
		{"ParseString2List", call(t, "llParseString2List(string,list,list)",
			lsl.String("a,b;;c"), strs(","), strs(";")), strs("a", "b", ";", ";", "c")},
	}
	for _, tt := range tests {
		if !lsl.Same(tt.got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.name, tt.got.L, tt.want.L)
		}
	}

	mixed := lsl.List(lsl.Int(1), lsl.Float(2.5), lsl.String("3"), lsl.Key(lsl.NullKey), lsl.Vector(1, 2, 3))
	if v := call(t, "llList2Integer(list,integer)", mixed, lsl.Int(2)); v.I != 3 {
		t.Errorf("llList2Integer(\"3\") = %v, want 3", v)
	}
	if v := call(t, "llList2Float(list,integer)", mixed, lsl.Int(0)); v.F != 1 {
		t.Errorf("llList2Float(1) = %v, want 1", v)
	}
	if v := call(t, "llList2String(list,integer)", mixed, lsl.Int(-1)); v.S != "<1.00000, 2.00000, 3.00000>" {
		t.Errorf("llList2String(-1) = %q", v.S)
	}
	if v := call(t, "llList2Integer(list,integer)", mixed, lsl.Int(9)); v.I != 0 {
		t.Errorf("llList2Integer(out of range) = %v, want 0", v)
	}
	if v := call(t, "llList2Vector(list,integer)", mixed, lsl.Int(0)); !lsl.Same(v, lsl.Vector(0, 0, 0)) {
		t.Errorf("llList2Vector(integer) = %v, want ZERO_VECTOR", v)
	}
	if v := call(t, "llGetListEntryType(list,integer)", mixed, lsl.Int(3)); v.I != 4 {
		t.Errorf("llGetListEntryType(key) = %d, want 4", v.I)
	}
	if v := call(t, "llList2CSV(list)", ints(1, 2)); v.S != "1, 2" {
		t.Errorf("llList2CSV = %q", v.S)
	}
	if v := call(t, "llDumpList2String(list,string)", ints(1, 2), lsl.String("-")); v.S != "1-2" {
		t.Errorf("llDumpList2String = %q", v.S)
	}

	find := "llListFindList(list,list)"
	if v := call(t, find, l, ints(3, 4)); v.I != 2 {
		t.Errorf("llListFindList = %d, want 2", v.I)
	}
	if v := call(t, find, l, ints(4, 3)); v.I != -1 {
		t.Errorf("llListFindList(missing) = %d, want -1", v.I)
	}
	if v := call(t, find, l, lsl.List()); v.I != -1 {
		t.Errorf("llListFindList(empty) = %d, want -1", v.I)
	}
}
