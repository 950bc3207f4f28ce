package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

var testTables = NewTables()

func mustCompile(t *testing.T, src string) *objcode.ObjectCode {
	t.Helper()
	obj, diags := Compile(src, testTables)
	if len(diags) > 0 {
		t.Fatalf("compile errors:\n%s", diags.Error())
	}
	if obj == nil {
		t.Fatal("Compile returned nil object without diagnostics")
	}
	return obj
}

// withDefault appends a minimal default state to a script holding only
// globals and functions.
func withDefault(src string) string {
	return src + "\ndefault { state_entry() {} }\n"
}

func findMethod(t *testing.T, obj *objcode.ObjectCode, name string) *objcode.Method {
	t.Helper()
	for _, m := range obj.Methods {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("no method %s", name)
	return nil
}

func findHandler(t *testing.T, obj *objcode.ObjectCode, state, event string) *objcode.Method {
	t.Helper()
	code, ok := lsl.LookupEvent(event)
	if !ok {
		t.Fatalf("unknown event %s", event)
	}
	for si, name := range obj.States {
		if name == state {
			return findMethod(t, obj, objcode.HandlerName(si, code, state))
		}
	}
	t.Fatalf("no state %s", state)
	return nil
}

func decode(t *testing.T, m *objcode.Method) []objcode.Instr {
	t.Helper()
	ins, err := m.Instructions()
	if err != nil {
		t.Fatalf("decoding %s: %v\n%s", m.Name, err, m.Disassemble())
	}
	return ins
}

func slotOf(t *testing.T, m *objcode.Method, name string) uint32 {
	t.Helper()
	for i, n := range m.LocalNames {
		if n == name {
			return uint32(i)
		}
	}
	t.Fatalf("%s has no local %s", m.Name, name)
	return 0
}

// match is an instruction pattern. With anyA set the operand is not
// compared.
type match struct {
	op   objcode.Opcode
	a    uint32
	anyA bool
}

func op(o objcode.Opcode) match { return match{op: o, anyA: true} }

func opA(o objcode.Opcode, a uint32) match { return match{op: o, a: a} }

func opU8(o objcode.Opcode, a uint8) match { return match{op: o, a: uint32(a)} }

func opTag(o objcode.Opcode, t lsl.Tag) match { return match{op: o, a: uint32(t)} }

// indexOfSeq returns the position of the first run of ins matching want,
// or -1.
func indexOfSeq(ins []objcode.Instr, want ...match) int {
	for i := 0; i+len(want) <= len(ins); i++ {
		ok := true
		for j, w := range want {
			in := ins[i+j]
			if in.Op != w.op || (!w.anyA && in.A != w.a) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

func countOp(ins []objcode.Instr, o objcode.Opcode) int {
	n := 0
	for _, in := range ins {
		if in.Op == o {
			n++
		}
	}
	return n
}

// at returns the instruction at a code offset.
func at(t *testing.T, ins []objcode.Instr, off uint32) objcode.Instr {
	t.Helper()
	for _, in := range ins {
		if in.Offset == int(off) {
			return in
		}
	}
	t.Fatalf("no instruction at offset %04X", off)
	return objcode.Instr{}
}

func constAt(m *objcode.Method, in objcode.Instr) lsl.Value {
	return m.Constant(int(in.A))
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestCompileGlobalInit(t *testing.T) {
	obj := mustCompile(t, withDefault("integer x = 5 + 3;"))

	if got := obj.Counts[objcode.GlobalIntegers]; got != 1 {
		t.Errorf("Counts[integers] = %d, want 1", got)
	}
	want := objcode.GlobalInfo{Name: "x", Type: lsl.TagInt, Kind: objcode.GlobalIntegers, Index: 0}
	if len(obj.Globals) != 1 || obj.Globals[0] != want {
		t.Errorf("Globals = %+v, want [%+v]", obj.Globals, want)
	}

	m := findHandler(t, obj, "default", "state_entry")
	ins := decode(t, m)
	i := indexOfSeq(ins, op(objcode.OpConst), op(objcode.OpConst), op(objcode.OpAdd))
	if i < 0 {
		t.Fatalf("no CONST CONST ADD in\n%s", m.Disassemble())
	}
	if l, r := constAt(m, ins[i]), constAt(m, ins[i+1]); l.I != 5 || r.I != 3 {
		t.Errorf("operands = %v, %v, want 5, 3", l, r)
	}
	if indexOfSeq(ins, op(objcode.OpStoreGlobal)) < 0 {
		t.Errorf("x is never stored\n%s", m.Disassemble())
	}
	if n := countOp(ins, objcode.OpHeapUpdate); n != 0 {
		t.Errorf("HEAP_UPDATE count = %d, want 0 for an integer global", n)
	}

	// The initialiser runs once, guarded by doGblInit.
	guard := indexOfSeq(ins, opU8(objcode.OpLoadInst, objcode.InstDoGblInit), op(objcode.OpJumpFalse))
	if guard < 0 {
		t.Fatalf("no doGblInit guard\n%s", m.Disassemble())
	}
	if i < guard {
		t.Errorf("initialiser at %d precedes guard at %d", i, guard)
	}
	reset := indexOfSeq(ins, op(objcode.OpConst), opU8(objcode.OpStoreInst, objcode.InstDoGblInit))
	if reset < i {
		t.Errorf("doGblInit cleared at %d, before the initialiser at %d", reset, i)
	}
}

func TestCompileListAppendCharges(t *testing.T) {
	obj := mustCompile(t, withDefault(`f() { list l = []; l += "hi"; }`))
	m := findMethod(t, obj, "__fun_f")
	ins := decode(t, m)
	l := slotOf(t, m, "l")
	h := slotOf(t, m, "__heap_l")

	i := indexOfSeq(ins,
		op(objcode.OpAdd),
		opA(objcode.OpStoreLocal, l),
		opA(objcode.OpLoadLocal, h),
		opA(objcode.OpLoadLocal, l),
		op(objcode.OpHeapUpdate),
		opA(objcode.OpStoreLocal, h),
	)
	if i < 0 {
		t.Fatalf("append is not followed by a heap update\n%s", m.Disassemble())
	}

	credit := indexOfSeq(ins, opA(objcode.OpLoadLocal, h), op(objcode.OpHeapCredit), op(objcode.OpRet))
	if credit < 0 {
		t.Errorf("epilog does not credit l\n%s", m.Disassemble())
	}
}

func TestCompileStateChange(t *testing.T) {
	obj := mustCompile(t, `
default {
    state_entry() {
        state moving;
        llOwnerSay("unreachable");
    }
}
state moving {
    state_entry() {}
}
`)
	m := findHandler(t, obj, "default", "state_entry")
	ins := decode(t, m)
	i := indexOfSeq(ins,
		op(objcode.OpConst),
		opU8(objcode.OpStoreInst, objcode.InstStateCode),
		op(objcode.OpConst),
		opU8(objcode.OpStoreInst, objcode.InstStateChanged),
		op(objcode.OpJump),
	)
	if i < 0 {
		t.Fatalf("no state change sequence\n%s", m.Disassemble())
	}
	if code := constAt(m, ins[i]); code.I != 1 {
		t.Errorf("state code = %v, want 1", code)
	}
	if tgt := at(t, ins, ins[i+4].A); tgt.Op != objcode.OpRet {
		t.Errorf("state change jumps to %s, want the epilog RET", tgt.Op)
	}
}

func TestCompileUndefinedStateThrows(t *testing.T) {
	obj := mustCompile(t, `default { touch_start(integer n) { state nowhere; } }`)
	m := findHandler(t, obj, "default", "touch_start")
	ins := decode(t, m)
	i := indexOfSeq(ins, op(objcode.OpThrowUndefState))
	if i < 0 {
		t.Fatalf("no THROW_UNDEF_STATE\n%s", m.Disassemble())
	}
	if got := m.ConstString(int(ins[i].A)); got != "nowhere" {
		t.Errorf("thrown state = %q, want nowhere", got)
	}
}

// releasesBefore counts the block releases emitted right before the jump
// at ins[j]. A release is DEFAULT, STORE, LOAD, LOAD, HEAP_UPDATE, STORE.
func releasesBefore(ins []objcode.Instr, j int) int {
	n := 0
	for j-6 >= 0 &&
		ins[j-6].Op == objcode.OpDefault &&
		ins[j-5].Op == objcode.OpStoreLocal &&
		ins[j-2].Op == objcode.OpHeapUpdate &&
		ins[j-1].Op == objcode.OpStoreLocal {
		n++
		j -= 6
	}
	return n
}

func TestCompileJumpReleases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"same block", `@top; string s = "x"; jump top;`, 0},
		{"one level", `@top; { string s = "x"; jump top; }`, 1},
		{"two levels", `@top; { string a = "1"; { string b = "2"; jump top; } }`, 2},
		{"untracked local", `@top; { integer i = 1; jump top; }`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := mustCompile(t, withDefault("f() { "+tt.body+" }"))
			m := findMethod(t, obj, "__fun_f")
			ins := decode(t, m)

			top := -1
			for j, in := range ins {
				if in.Op == objcode.OpJump && at(t, ins, in.A).Op == objcode.OpCheckRun && int(in.A) < in.Offset {
					top = j
				}
			}
			if top < 0 {
				t.Fatalf("no backward jump to a checkpoint\n%s", m.Disassemble())
			}
			if got := releasesBefore(ins, top); got != tt.want {
				t.Errorf("releases before jump = %d, want %d\n%s", got, tt.want, m.Disassemble())
			}
		})
	}
}

func TestCompileUndefinedFunction(t *testing.T) {
	obj, diags := Compile(`default { state_entry() { foo(1, 2); } }`, testTables)
	if obj != nil {
		t.Error("Compile returned an object despite errors")
	}
	if len(diags) != 1 {
		t.Fatalf("len(diags) = %d, want 1: %v", len(diags), diags)
	}
	if want := "undefined function foo(integer,integer)"; diags[0].Msg != want {
		t.Errorf("diag = %q, want %q", diags[0].Msg, want)
	}
}

func TestObjectVersionMismatch(t *testing.T) {
	obj := mustCompile(t, withDefault(""))
	data, err := obj.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	data[len(objcode.Magic)+3]++
	_, err = objcode.Load(data)
	var verr *objcode.VersionError
	if !errors.As(err, &verr) {
		t.Fatalf("Load error = %v, want *VersionError", err)
	}
	if verr.Got != objcode.Version+1 {
		t.Errorf("VersionError.Got = %d, want %d", verr.Got, objcode.Version+1)
	}
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

var declarable = []lsl.Tag{
	lsl.TagInt, lsl.TagFloat, lsl.TagString, lsl.TagKey, lsl.TagList,
	lsl.TagVector, lsl.TagRotation, lsl.TagArray, lsl.TagObject,
}

func TestOperatorTotality(t *testing.T) {
	for _, l := range declarable {
		for _, r := range declarable {
			for _, o := range BinaryOps {
				src := withDefault("f(" + l.String() + " a, " + r.String() + " b) { a " + o + " b; }")
				obj, diags := Compile(src, testTables)
				_, defined := testTables.Lookup(l, o, r)
				if defined {
					if len(diags) > 0 {
						t.Errorf("%s %s %s: unexpected diagnostics %v", l, o, r, diags)
					}
					continue
				}
				if obj != nil {
					t.Errorf("%s %s %s: compiled, want an error", l, o, r)
				}
				want := "op not defined: " + l.String() + " " + o + " " + r.String()
				if len(diags) != 1 || diags[0].Msg != want {
					t.Errorf("%s %s %s: diags = %v, want [%s]", l, o, r, diags, want)
				}
			}
		}
	}
}

func TestBoolOperandsWidenToInteger(t *testing.T) {
	obj := mustCompile(t, withDefault("f() { integer i = (1 == 1) + 2; }"))
	m := findMethod(t, obj, "__fun_f")
	ins := decode(t, m)
	if indexOfSeq(ins, op(objcode.OpLoadLocal), opTag(objcode.OpCast, lsl.TagInt), op(objcode.OpConst), op(objcode.OpAdd)) < 0 {
		t.Errorf("bool operand not cast to integer\n%s", m.Disassemble())
	}
}

// Every backward jump must pass a checkpoint between its target and
// itself, and every intrinsic call is followed by one.
func TestCheckpointDensity(t *testing.T) {
	obj := mustCompile(t, `
integer n;
default {
    touch_start(integer k) {
        while (n < 10) n++;
        do { n--; } while (n > 0);
        for (n = 0; n < 3; n++) llOwnerSay("x");
        array a;
        object ky;
        object vl;
        a[1] = 2;
        foreach (ky, vl in a) n++;
        @again;
        if (n++ < 20) jump again;
        llSay(0, "done");
    }
}
`)
	for _, m := range obj.Methods {
		ins := decode(t, m)
		if countOp(ins, objcode.OpCheckRun) == 0 {
			t.Errorf("%s has no checkpoint", m.Name)
		}
		for j, in := range ins {
			if in.Op == objcode.OpCallAPI {
				if j+1 >= len(ins) || ins[j+1].Op != objcode.OpCheckRun {
					t.Errorf("%s: CALL_API at %04X not followed by CHECK_RUN", m.Name, in.Offset)
				}
			}
			if !in.Op.IsJump() || int(in.A) > in.Offset {
				continue
			}
			found := false
			for _, c := range ins {
				if c.Op == objcode.OpCheckRun && c.Offset >= int(in.A) && c.Offset < in.Offset {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("%s: backward %s at %04X to %04X skips every checkpoint\n%s", m.Name, in.Op, in.Offset, in.A, m.Disassemble())
			}
		}
	}
}

func TestDispatchTable(t *testing.T) {
	obj := mustCompile(t, `
default {
    touch_start(integer n) {}
}
state other {
    timer() {}
    state_exit() {}
}
`)
	data, err := obj.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	prog, err := objcode.Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// state_entry is synthesised for the default state.
	want := map[[2]int]bool{
		{0, int(lsl.EventStateEntry)}:         true,
		{0, int(mustEvent(t, "touch_start"))}: true,
		{1, int(mustEvent(t, "timer"))}:       true,
		{1, int(lsl.EventStateExit)}:          true,
	}
	for si := range prog.States {
		for ev := 0; ev < lsl.EventCount; ev++ {
			got := prog.Handler(si, lsl.EventCode(ev)) != nil
			if got != want[[2]int{si, ev}] {
				t.Errorf("Handler(%s, %s) present = %v, want %v", prog.States[si], lsl.EventCode(ev), got, !got)
			}
		}
	}
	if prog.SourceHash != obj.SourceHash || prog.CompileID != obj.CompileID {
		t.Errorf("trailer = %x/%v, want %x/%v", prog.SourceHash, prog.CompileID, obj.SourceHash, obj.CompileID)
	}
}

func mustEvent(t *testing.T, name string) lsl.EventCode {
	t.Helper()
	c, ok := lsl.LookupEvent(name)
	if !ok {
		t.Fatalf("unknown event %s", name)
	}
	return c
}

func TestStateChangePropagatesThroughCalls(t *testing.T) {
	// a and b only reach the state statement through later functions.
	obj := mustCompile(t, `
a() { b(); }
b() { c(); }
c() { state other; }
quiet() {}
default {
    state_entry() {
        a();
        quiet();
    }
}
state other { state_entry() {} }
`)
	m := findHandler(t, obj, "default", "state_entry")
	ins := decode(t, m)

	for j, in := range ins {
		if in.Op != objcode.OpCall {
			continue
		}
		callee := m.ConstString(int(in.A))
		checked := j+2 < len(ins) &&
			ins[j+1].Op == objcode.OpLoadInst && ins[j+1].A == uint32(objcode.InstStateChanged) &&
			ins[j+2].Op == objcode.OpJumpTrue
		switch callee {
		case "__fun_a":
			if !checked {
				t.Errorf("call to a not followed by a state check\n%s", m.Disassemble())
			} else if tgt := at(t, ins, ins[j+2].A); tgt.Op != objcode.OpRet {
				t.Errorf("state check jumps to %s, want the epilog", tgt.Op)
			}
		case "__fun_quiet":
			if checked {
				t.Errorf("call to quiet checks the state flag")
			}
		}
	}

	fa := decode(t, findMethod(t, obj, "__fun_a"))
	if indexOfSeq(fa, op(objcode.OpCall), opU8(objcode.OpLoadInst, objcode.InstStateChanged), op(objcode.OpJumpTrue)) < 0 {
		t.Error("a does not check the state flag after calling b")
	}
}

func TestEventArgsCopiedFirst(t *testing.T) {
	obj := mustCompile(t, `default { listen(integer ch, string name, key id, string msg) { llOwnerSay(msg); } }`)
	m := findHandler(t, obj, "default", "listen")
	ins := decode(t, m)
	for i := 0; i < 4; i++ {
		if ins[2*i].Op != objcode.OpLoadEhArg || ins[2*i].A != uint32(i) || ins[2*i+1].Op != objcode.OpStoreLocal {
			t.Fatalf("instruction %d is not the copy of event arg %d\n%s", 2*i, i, m.Disassemble())
		}
	}
}

func TestHeapTrackedParams(t *testing.T) {
	obj := mustCompile(t, withDefault("f(string s, integer i) {}"))
	m := findMethod(t, obj, "__fun_f")
	ins := decode(t, m)
	s := slotOf(t, m, "s")
	h := slotOf(t, m, "__heap_s")

	charge := indexOfSeq(ins, op(objcode.OpConst), opA(objcode.OpLoadLocal, s), op(objcode.OpHeapUpdate), opA(objcode.OpStoreLocal, h))
	if charge < 0 {
		t.Errorf("string parameter is not charged on entry\n%s", m.Disassemble())
	}
	if n := countOp(ins, objcode.OpHeapCredit); n != 1 {
		t.Errorf("HEAP_CREDIT count = %d, want 1", n)
	}
	for _, name := range m.LocalNames {
		if name == "__heap_i" {
			t.Error("integer parameter has a heap tracker")
		}
	}
}

func TestIntrinsicOverloads(t *testing.T) {
	tests := []struct {
		call    string
		wantKey string
		cast    bool
	}{
		{"xmrStr(2)", "xmrStr(integer)", false},
		{"xmrStr(2.5)", "xmrStr(float)", false},
		{"llFabs(2)", "llFabs(float)", true},
		{`llStringLength(llGetKey())`, "llStringLength(string)", true},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			obj := mustCompile(t, withDefault("f() { "+tt.call+"; }"))
			m := findMethod(t, obj, "__fun_f")
			ins := decode(t, m)
			var call objcode.Instr
			j := -1
			for k, in := range ins {
				if in.Op == objcode.OpCallAPI && m.ConstString(int(in.A)) == tt.wantKey {
					call, j = in, k
				}
			}
			if j < 0 {
				t.Fatalf("no CALL_API %s\n%s", tt.wantKey, m.Disassemble())
			}
			if call.B != 1 {
				t.Errorf("argc = %d, want 1", call.B)
			}
			if got := ins[j-1].Op == objcode.OpCast; got != tt.cast {
				t.Errorf("argument cast = %v, want %v", got, tt.cast)
			}
		})
	}
}

func TestAmbiguousOverload(t *testing.T) {
	_, diags := Compile(withDefault("f() { xmrStr(1 == 1); }"), testTables)
	if len(diags) != 1 {
		t.Fatalf("len(diags) = %d, want 1: %v", len(diags), diags)
	}
	msg := diags[0].Msg
	if !strings.HasPrefix(msg, "undefined function xmrStr(bool)") {
		t.Errorf("diag = %q", msg)
	}
	for _, want := range []string{"have string xmrStr(integer)", "have string xmrStr(float)", "have string xmrStr(rotation)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("diag %q lacks %q", msg, want)
		}
	}
}

func TestCompileDiagnostics(t *testing.T) {
	fn := func(body string) string { return withDefault("f() {\n" + body + "\n}") }
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"implicit key", fn(`key k = "abc";`), "can't implicitly cast string to key"},
		{"illegal cast", fn(`integer i = [1];`), "can't cast list to integer"},
		{"undefined variable", fn(`x = 1;`), "undefined variable x"},
		{"assign to literal", fn(`3 = 4;`), "invalid L-value"},
		{"increment string", fn(`string s; s++;`), "can't increment a string"},
		{"negate string", fn(`string s; -s;`), "can't negate a string"},
		{"complement float", fn(`float x; ~x;`), "can't complement a float"},
		{"subscript integer", fn(`integer i; i[0];`), "taking subscript of non-array"},
		{"no such field", fn(`vector v; v.s;`), "type vector does not define field s"},
		{"uncalled method", fn(`array a; a.index;`), "method index must be called"},
		{"method arity", fn(`array a; a.index(1, 2);`), "index has 1 param(s), but call has 2"},
		{"no such method", fn(`integer i; i.foo(1);`), "type integer does not define method foo"},
		{"compound op", fn(`string s; s -= "a";`), "op not defined: string -= string"},
		{"compare to list", fn(`integer i; i == [];`), "op not defined: integer == list"},
		{"nested list", fn(`list l = [[1]];`), "list cannot contain list"},
		{"foreach non-array", fn(`integer i; integer k; foreach (k, k in i) {}`), "foreach requires an array, not integer"},
		{"undefined label", fn(`jump nowhere;`), "undefined label nowhere"},
		{"lateral jump", fn(`{ @a; } { jump a; }`), "no lateral jumps allowed"},
		{"duplicate label", fn(`@a; @a;`), "duplicate label a"},
		{"duplicate local", fn(`integer i; integer i;`), "duplicate variable i"},
		{"local shadows param", withDefault(`f(integer x) { string x; }`), "duplicate variable x"},
		{"local shadows event arg", `default { touch_start(integer n) { integer n; } }`, "duplicate variable n"},
		{"return in void", fn(`return 1;`), "return value not allowed in void function"},
		{"missing return value", withDefault(`integer f() { return; }`), "return value of type integer required"},
		{"function arity", withDefault(`g(integer a, integer b) {} f() { g(1); }`), "g has 2 param(s), but call has 1"},
		{"duplicate global", withDefault(`integer x; float x;`), "duplicate global variable x"},
		{"duplicate function", withDefault(`f() {} f() {}`), "duplicate function f"},
		{"duplicate state", `default { state_entry() {} } state s { timer() {} } state s { timer() {} }`, "duplicate state s"},
		{"duplicate handler", `default { timer() {} timer() {} }`, "duplicate handler timer in state default"},
		{"unknown handler", `default { wibble() {} }`, "unknown event handler wibble"},
		{"handler arity", `default { touch_start() {} }`, "touch_start(...) supposed to have 1 arg(s), not 0"},
		{"handler arg type", `default { touch_start(string n) {} }`, "touch_start(...) argument 1 must be integer, not string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, diags := Compile(tt.src, testTables)
			if obj != nil {
				t.Error("Compile returned an object despite errors")
			}
			found := false
			for _, d := range diags {
				if d.Msg == tt.want {
					found = true
				}
			}
			if !found {
				t.Errorf("diags = %v, want %q", diags, tt.want)
			}
		})
	}
}

func TestDiagnosticsSorted(t *testing.T) {
	_, diags := Compile(`
default {
    state_entry() {
        a = 1;
        b = 2;
    }
}
`, testTables)
	if len(diags) != 2 {
		t.Fatalf("len(diags) = %d, want 2: %v", len(diags), diags)
	}
	if diags[0].Pos.Line >= diags[1].Pos.Line {
		t.Errorf("diags out of order: %v", diags)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	src := `
string greeting = "hi";
integer twice(integer n) { return n * 2; }
default {
    state_entry() { llOwnerSay(greeting + (string)twice(3)); }
}
`
	a := mustCompile(t, src)
	b := mustCompile(t, src)
	if a.SourceHash != b.SourceHash {
		t.Errorf("SourceHash differs: %x vs %x", a.SourceHash, b.SourceHash)
	}
	if a.CompileID == b.CompileID {
		t.Error("CompileID repeated across compilations")
	}
	if len(a.Methods) != len(b.Methods) {
		t.Fatalf("method counts differ: %d vs %d", len(a.Methods), len(b.Methods))
	}
	for i := range a.Methods {
		if x, y := a.Methods[i].Disassemble(), b.Methods[i].Disassemble(); x != y {
			t.Errorf("listings differ:\n%s\n---\n%s", x, y)
		}
	}
}
