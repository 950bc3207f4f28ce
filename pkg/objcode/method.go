package objcode

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/xmr/pkg/lsl"
)

// Method is one generated entry point: an event handler or a script
// function.
type Method struct {
	Name       string      `cbor:"1,keyasint"`
	Params     []lsl.Tag   `cbor:"2,keyasint,omitempty"`
	Ret        lsl.Tag     `cbor:"3,keyasint"`
	NumLocals  int         `cbor:"4,keyasint"`
	LocalNames []string    `cbor:"5,keyasint,omitempty"`
	Code       []byte      `cbor:"6,keyasint"`
	Constants  []lsl.Value `cbor:"7,keyasint,omitempty"`
	Lines      []LineEntry `cbor:"8,keyasint,omitempty"`
}

// LineEntry maps a code offset to the source line it was generated from.
type LineEntry struct {
	Offset uint32 `cbor:"1,keyasint"`
	Line   int32  `cbor:"2,keyasint"`
}

// Line returns the source line of the instruction at offset, or 0.
func (m *Method) Line(offset int) int {
	line := 0
	for _, e := range m.Lines {
		if int(e.Offset) > offset {
			break
		}
		line = int(e.Line)
	}
	return line
}

// Constant returns constant idx, or undef when out of range.
func (m *Method) Constant(idx int) lsl.Value {
	if idx < 0 || idx >= len(m.Constants) {
		return lsl.Undef
	}
	return m.Constants[idx]
}

// ConstString returns constant idx as a string (names of callees, states).
func (m *Method) ConstString(idx int) string {
	return m.Constant(idx).S
}

// Instr is one decoded instruction.
type Instr struct {
	Offset int
	Op     Opcode
	A      uint32 // first operand
	B      uint32 // second operand (kind/index and call forms)
}

// Decode reads the instruction at offset.
func (m *Method) Decode(offset int) (Instr, error) {
	code := m.Code
	if offset >= len(code) {
		return Instr{}, fmt.Errorf("offset %d past end of code (%d bytes)", offset, len(code))
	}
	op := Opcode(code[offset])
	if !op.Valid() {
		return Instr{}, fmt.Errorf("invalid opcode 0x%02X at %04X", byte(op), offset)
	}
	n := op.OperandLen()
	if offset+1+n > len(code) {
		return Instr{}, fmt.Errorf("unexpected end of code reading %s operands at %04X", op, offset)
	}
	in := Instr{Offset: offset, Op: op}
	b := code[offset+1 : offset+1+n]
	switch op {
	case OpLoadGlobal, OpStoreGlobal:
		in.A = uint32(b[0])
		in.B = uint32(binary.BigEndian.Uint16(b[1:]))
	case OpCall, OpCallAPI, OpCallMethod:
		in.A = uint32(binary.BigEndian.Uint16(b))
		in.B = uint32(b[2])
	default:
		switch n {
		case 1:
			in.A = uint32(b[0])
		case 2:
			in.A = uint32(binary.BigEndian.Uint16(b))
		case 4:
			in.A = binary.BigEndian.Uint32(b)
		}
	}
	return in, nil
}

// Instructions decodes the whole method. Decoding stops at the first
// malformed instruction.
func (m *Method) Instructions() ([]Instr, error) {
	var out []Instr
	for off := 0; off < len(m.Code); {
		in, err := m.Decode(off)
		if err != nil {
			return out, err
		}
		out = append(out, in)
		off += in.Op.InstructionLen()
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// Label is a forward-referencable code position inside one Builder.
type Label int

type fixup struct {
	at    int // offset of the u32 operand
	label Label
}

// Builder assembles a Method, resolving jump labels on Finish.
type Builder struct {
	m        *Method
	labels   []int
	fixups   []fixup
	lastLine int
	consts   map[string]uint16
}

// NewBuilder starts a method. Params occupy the first local slots.
func NewBuilder(name string, params []lsl.Tag, paramNames []string, ret lsl.Tag) *Builder {
	b := &Builder{
		m: &Method{
			Name:   name,
			Params: params,
			Ret:    ret,
		},
		consts: make(map[string]uint16),
	}
	for i := range params {
		pn := ""
		if i < len(paramNames) {
			pn = paramNames[i]
		}
		b.NewLocal(pn)
	}
	return b
}

// Name returns the method name.
func (b *Builder) Name() string { return b.m.Name }

// Offset is the position the next instruction is emitted at.
func (b *Builder) Offset() int { return len(b.m.Code) }

// NewLocal allocates a local slot.
func (b *Builder) NewLocal(name string) uint16 {
	slot := uint16(b.m.NumLocals)
	b.m.NumLocals++
	b.m.LocalNames = append(b.m.LocalNames, name)
	return slot
}

// AddConstant interns v in the constant pool.
func (b *Builder) AddConstant(v lsl.Value) uint16 {
	key := fmt.Sprintf("%d|%d|%v|%q|%v", v.Kind, v.I, v.F, v.S, v.V)
	if v.Kind == lsl.TagList || v.Kind == lsl.TagArray {
		key = ""
	}
	if idx, ok := b.consts[key]; ok && key != "" {
		return idx
	}
	idx := uint16(len(b.m.Constants))
	b.m.Constants = append(b.m.Constants, v)
	if key != "" {
		b.consts[key] = idx
	}
	return idx
}

// AddName interns a name (callee, state) as a string constant.
func (b *Builder) AddName(name string) uint16 {
	return b.AddConstant(lsl.String(name))
}

// SetLine records that subsequent code comes from source line.
func (b *Builder) SetLine(line int) {
	if line <= 0 || line == b.lastLine {
		return
	}
	b.lastLine = line
	off := uint32(b.Offset())
	if n := len(b.m.Lines); n > 0 && b.m.Lines[n-1].Offset == off {
		b.m.Lines[n-1].Line = int32(line)
		return
	}
	b.m.Lines = append(b.m.Lines, LineEntry{Offset: off, Line: int32(line)})
}

// Emit appends an operand-less instruction and returns its offset.
func (b *Builder) Emit(op Opcode) int {
	off := b.Offset()
	b.m.Code = append(b.m.Code, byte(op))
	return off
}

// EmitU8 appends an instruction with a one-byte operand.
func (b *Builder) EmitU8(op Opcode, x uint8) int {
	off := b.Emit(op)
	b.m.Code = append(b.m.Code, x)
	return off
}

// EmitU16 appends an instruction with a two-byte operand.
func (b *Builder) EmitU16(op Opcode, x uint16) int {
	off := b.Emit(op)
	b.m.Code = binary.BigEndian.AppendUint16(b.m.Code, x)
	return off
}

// EmitU32 appends an instruction with a four-byte operand.
func (b *Builder) EmitU32(op Opcode, x uint32) int {
	off := b.Emit(op)
	b.m.Code = binary.BigEndian.AppendUint32(b.m.Code, x)
	return off
}

// EmitGlobal appends a global load or store.
func (b *Builder) EmitGlobal(op Opcode, kind GlobalKind, index uint16) int {
	off := b.Emit(op)
	b.m.Code = append(b.m.Code, byte(kind))
	b.m.Code = binary.BigEndian.AppendUint16(b.m.Code, index)
	return off
}

// EmitCall appends one of the call forms.
func (b *Builder) EmitCall(op Opcode, name string, argc int) int {
	off := b.Emit(op)
	b.m.Code = binary.BigEndian.AppendUint16(b.m.Code, b.AddName(name))
	b.m.Code = append(b.m.Code, byte(argc))
	return off
}

// EmitConst pushes constant v.
func (b *Builder) EmitConst(v lsl.Value) int {
	return b.EmitU16(OpConst, b.AddConstant(v))
}

// NewLabel creates an unplaced label.
func (b *Builder) NewLabel() Label {
	b.labels = append(b.labels, -1)
	return Label(len(b.labels) - 1)
}

// Mark places l at the current offset.
func (b *Builder) Mark(l Label) {
	b.labels[l] = b.Offset()
}

// Marked reports whether l has been placed.
func (b *Builder) Marked(l Label) bool {
	return b.labels[l] >= 0
}

// EmitJump appends a jump to l, patched on Finish.
func (b *Builder) EmitJump(op Opcode, l Label) int {
	off := b.EmitU32(op, 0)
	b.fixups = append(b.fixups, fixup{at: off + 1, label: l})
	return off
}

// Finish patches jump targets and returns the method.
func (b *Builder) Finish() (*Method, error) {
	for _, f := range b.fixups {
		target := b.labels[f.label]
		if target < 0 {
			return nil, fmt.Errorf("%s: jump at %04X to unplaced label %d", b.m.Name, f.at-1, f.label)
		}
		binary.BigEndian.PutUint32(b.m.Code[f.at:], uint32(target))
	}
	return b.m, nil
}
