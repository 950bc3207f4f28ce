package objcode

import (
	"strings"
	"testing"

	"github.com/chazu/xmr/pkg/lsl"
)

func TestOpcodeInfoComplete(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("opcode 0x%02X has no name", byte(op))
		}
	}
	if OpNop.String() != "NOP" {
		t.Errorf("OpNop.String() = %q, want NOP", OpNop.String())
	}
	if !OpJumpFalse.IsJump() || OpCall.IsJump() {
		t.Error("IsJump misclassifies jumps")
	}
}

func TestBuilderConstantsDedup(t *testing.T) {
	b := NewBuilder("f", nil, nil, lsl.TagVoid)
	a := b.AddConstant(lsl.Int(5))
	c := b.AddConstant(lsl.Float(5))
	d := b.AddConstant(lsl.Int(5))
	if a != d {
		t.Errorf("duplicate constant index = %d, want %d", d, a)
	}
	if a == c {
		t.Error("integer 5 and float 5 share a constant slot")
	}
	l1 := b.AddConstant(lsl.List())
	l2 := b.AddConstant(lsl.List())
	if l1 == l2 {
		t.Error("list constants were merged")
	}
}

func TestBuilderJumpsPatch(t *testing.T) {
	b := NewBuilder("loop", []lsl.Tag{lsl.TagInt}, []string{"n"}, lsl.TagVoid)
	top := b.NewLabel()
	done := b.NewLabel()
	b.Mark(top)
	b.EmitU32(OpCheckRun, 3)
	b.EmitU16(OpLoadLocal, 0)
	b.EmitJump(OpJumpFalse, done)
	b.EmitJump(OpJump, top)
	b.Mark(done)
	b.Emit(OpRet)

	m, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	ins, err := m.Instructions()
	if err != nil {
		t.Fatalf("Instructions error: %v", err)
	}
	if len(ins) != 5 {
		t.Fatalf("got %d instructions, want 5", len(ins))
	}
	if ins[2].Op != OpJumpFalse || int(ins[2].A) != ins[4].Offset {
		t.Errorf("JUMP_FALSE target = %04X, want %04X", ins[2].A, ins[4].Offset)
	}
	if ins[3].Op != OpJump || ins[3].A != 0 {
		t.Errorf("JUMP target = %04X, want 0000", ins[3].A)
	}
	if m.NumLocals != 1 || m.LocalNames[0] != "n" {
		t.Errorf("locals = %d %v, want 1 [n]", m.NumLocals, m.LocalNames)
	}
}

func TestBuilderUnplacedLabel(t *testing.T) {
	b := NewBuilder("bad", nil, nil, lsl.TagVoid)
	b.EmitJump(OpJump, b.NewLabel())
	if _, err := b.Finish(); err == nil {
		t.Error("Finish succeeded with an unplaced label")
	}
}

func TestDecodeOperands(t *testing.T) {
	b := NewBuilder("f", nil, nil, lsl.TagVoid)
	b.EmitGlobal(OpLoadGlobal, GlobalStrings, 300)
	b.EmitCall(OpCallAPI, "llSay", 2)
	m, _ := b.Finish()

	ins, err := m.Instructions()
	if err != nil {
		t.Fatalf("Instructions error: %v", err)
	}
	if ins[0].A != uint32(GlobalStrings) || ins[0].B != 300 {
		t.Errorf("LOAD_GLOBAL operands = %d,%d, want %d,300", ins[0].A, ins[0].B, GlobalStrings)
	}
	if m.ConstString(int(ins[1].A)) != "llSay" || ins[1].B != 2 {
		t.Errorf("CALL_API operands = %q/%d, want llSay/2", m.ConstString(int(ins[1].A)), ins[1].B)
	}
}

func TestDecodeTruncated(t *testing.T) {
	m := &Method{Name: "t", Code: []byte{byte(OpJump), 0, 0}}
	if _, err := m.Decode(0); err == nil {
		t.Error("Decode of truncated JUMP succeeded")
	}
	m.Code = []byte{0xEE}
	if _, err := m.Decode(0); err == nil {
		t.Error("Decode of invalid opcode succeeded")
	}
}

func TestLineTable(t *testing.T) {
	b := NewBuilder("f", nil, nil, lsl.TagVoid)
	b.SetLine(4)
	b.Emit(OpNop)
	b.SetLine(4)
	b.Emit(OpNop)
	b.SetLine(9)
	b.Emit(OpRet)
	m, _ := b.Finish()
	if len(m.Lines) != 2 {
		t.Fatalf("line entries = %d, want 2", len(m.Lines))
	}
	if m.Line(1) != 4 || m.Line(2) != 9 {
		t.Errorf("Line(1), Line(2) = %d, %d, want 4, 9", m.Line(1), m.Line(2))
	}
}

func TestDisassemble(t *testing.T) {
	b := NewBuilder("__fun_f", nil, nil, lsl.TagVoid)
	b.SetLine(2)
	b.EmitConst(lsl.String("hi"))
	b.EmitU16(OpStoreLocal, b.NewLocal("s"))
	b.EmitCall(OpCallAPI, "llOwnerSay", 1)
	b.EmitU32(OpCheckRun, 2)
	b.Emit(OpRet)
	m, _ := b.Finish()

	out := m.Disassemble()
	for _, want := range []string{"; === __fun_f ===", "CONST 0 ; string \"hi\"", "STORE_LOCAL 0 ; s", "CALL_API llOwnerSay/1", "; line 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Disassemble() missing %q:\n%s", want, out)
		}
	}
}
