package objcode

import (
	"fmt"
	"strings"

	"github.com/chazu/xmr/pkg/lsl"
)

// Disassemble returns a human-readable listing of the method.
func (m *Method) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s ===\n", m.Name))
	sb.WriteString(fmt.Sprintf("; %s%s\n", m.Ret, lsl.ArgSig(m.Params)))
	if m.NumLocals > 0 {
		sb.WriteString(fmt.Sprintf("; Locals: %d slots\n", m.NumLocals))
	}

	if len(m.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range m.Constants {
			display := c.GoString()
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			display = strings.ReplaceAll(display, "\n", "\\n")
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, display))
		}
	}

	sb.WriteString("; Code:\n")
	for off := 0; off < len(m.Code); {
		in, err := m.Decode(off)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%04X  <%v>\n", off, err))
			break
		}
		text := m.formatInstr(in)
		if line := m.lineAt(off); line > 0 {
			sb.WriteString(fmt.Sprintf("%04X  %-36s ; line %d\n", off, text, line))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", off, text))
		}
		off += in.Op.InstructionLen()
	}
	return sb.String()
}

// lineAt returns the line only at offsets where a new line entry starts.
func (m *Method) lineAt(off int) int {
	for _, e := range m.Lines {
		if int(e.Offset) == off {
			return int(e.Line)
		}
	}
	return 0
}

func (m *Method) localName(slot uint32) string {
	if int(slot) < len(m.LocalNames) {
		return m.LocalNames[slot]
	}
	return ""
}

func (m *Method) formatInstr(in Instr) string {
	name := in.Op.String()
	switch in.Op {
	case OpConst:
		return fmt.Sprintf("%s %d ; %s", name, in.A, m.Constant(int(in.A)).GoString())
	case OpTypeIs:
		if lsl.Tag(in.A) == lsl.TagVoid {
			return name + " undef"
		}
		return fmt.Sprintf("%s %s", name, lsl.Tag(in.A))
	case OpDefault, OpCast:
		return fmt.Sprintf("%s %s", name, lsl.Tag(in.A))
	case OpLoadLocal, OpStoreLocal:
		if ln := m.localName(in.A); ln != "" {
			return fmt.Sprintf("%s %d ; %s", name, in.A, ln)
		}
		return fmt.Sprintf("%s %d", name, in.A)
	case OpLoadGlobal, OpStoreGlobal:
		return fmt.Sprintf("%s %s[%d]", name, GlobalKind(in.A), in.B)
	case OpLoadInst, OpStoreInst:
		return fmt.Sprintf("%s %s", name, InstFieldName(uint8(in.A)))
	case OpGetField, OpSetField:
		return fmt.Sprintf("%s %s", name, FieldName(uint8(in.A)))
	case OpJump, OpJumpTrue, OpJumpFalse:
		return fmt.Sprintf("%s %04X", name, in.A)
	case OpCall, OpCallAPI, OpCallMethod:
		return fmt.Sprintf("%s %s/%d", name, m.ConstString(int(in.A)), in.B)
	case OpThrowUndefState:
		return fmt.Sprintf("%s %s", name, m.ConstString(int(in.A)))
	}
	if in.Op.OperandLen() > 0 {
		return fmt.Sprintf("%s %d", name, in.A)
	}
	return name
}

// Disassemble lists every method of the object code, handlers first in
// table order.
func (o *ObjectCode) Disassemble() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; XMR object code v%d  compile %s\n", Version, o.CompileID))
	sb.WriteString("; Globals:")
	for k, n := range o.Counts {
		if n > 0 {
			sb.WriteString(fmt.Sprintf(" %s=%d", GlobalKind(k), n))
		}
	}
	sb.WriteString("\n; States: " + strings.Join(o.States, ", ") + "\n\n")
	for _, m := range o.Methods {
		sb.WriteString(m.Disassemble())
		sb.WriteString("\n")
	}
	return sb.String()
}
