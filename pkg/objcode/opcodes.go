package objcode

import "fmt"

// Opcode is a VM instruction. Opcodes are grouped into ranges by category.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop  Opcode = 0x00
	OpPop  Opcode = 0x01
	OpDup  Opcode = 0x02
	OpSwap Opcode = 0x03

	// ========================================================================
	// Constants (0x10-0x1F)
	// ========================================================================

	OpConst   Opcode = 0x10 // Push constant from pool: OpConst <index:u16>
	OpDefault Opcode = 0x11 // Push default value of a type: OpDefault <tag:u8>
	OpUndef   Opcode = 0x12 // Push undef

	// ========================================================================
	// Variables (0x20-0x2F)
	// ========================================================================

	OpLoadLocal   Opcode = 0x20 // OpLoadLocal <slot:u16>
	OpStoreLocal  Opcode = 0x21 // OpStoreLocal <slot:u16>
	OpLoadGlobal  Opcode = 0x22 // OpLoadGlobal <kind:u8> <index:u16>
	OpStoreGlobal Opcode = 0x23 // OpStoreGlobal <kind:u8> <index:u16>
	OpLoadInst    Opcode = 0x24 // Push instance field: OpLoadInst <field:u8>
	OpStoreInst   Opcode = 0x25 // OpStoreInst <field:u8>
	OpLoadEhArg   Opcode = 0x26 // Push event argument: OpLoadEhArg <index:u8>

	// ========================================================================
	// Aggregates (0x30-0x3F)
	// ========================================================================

	OpListNew      Opcode = 0x30 // Pop n elements, push list: OpListNew <n:u16>
	OpVecNew       Opcode = 0x31 // Pop x y z, push vector
	OpRotNew       Opcode = 0x32 // Pop x y z s, push rotation
	OpGetField     Opcode = 0x33 // OpGetField <field:u8>
	OpSetField     Opcode = 0x34 // Pop value, aggregate; push updated aggregate
	OpArrayGet     Opcode = 0x35 // Pop key, array; push element or undef
	OpArraySet     Opcode = 0x36 // Pop value, key, array; store in place
	OpArrayForEach Opcode = 0x37 // Pop index, array; push key value ok

	// ========================================================================
	// Arithmetic and bitwise (0x40-0x4F)
	// ========================================================================

	OpAdd  Opcode = 0x40
	OpSub  Opcode = 0x41
	OpMul  Opcode = 0x42
	OpDiv  Opcode = 0x43
	OpMod  Opcode = 0x44
	OpNeg  Opcode = 0x45
	OpBAnd Opcode = 0x46
	OpBOr  Opcode = 0x47
	OpBXor Opcode = 0x48
	OpBNot Opcode = 0x49
	OpShl  Opcode = 0x4A
	OpShr  Opcode = 0x4B

	// ========================================================================
	// Comparison and logic (0x50-0x5F)
	// ========================================================================

	OpEq     Opcode = 0x50
	OpNe     Opcode = 0x51
	OpLt     Opcode = 0x52
	OpLe     Opcode = 0x53
	OpGt     Opcode = 0x54
	OpGe     Opcode = 0x55
	OpAnd    Opcode = 0x56 // Pop two bools, push conjunction
	OpOr     Opcode = 0x57
	OpNot    Opcode = 0x58
	OpTypeIs Opcode = 0x59 // Pop value, push bool: OpTypeIs <tag:u8>

	// ========================================================================
	// Conversion (0x60-0x6F)
	// ========================================================================

	OpCast Opcode = 0x60 // Convert top of stack: OpCast <tag:u8>

	// ========================================================================
	// Control flow (0x70-0x7F)
	// ========================================================================

	OpJump      Opcode = 0x70 // OpJump <target:u32>
	OpJumpTrue  Opcode = 0x71 // Pop condition: OpJumpTrue <target:u32>
	OpJumpFalse Opcode = 0x72 // Pop condition: OpJumpFalse <target:u32>

	// ========================================================================
	// Calls (0x80-0x8F)
	// ========================================================================

	OpCall       Opcode = 0x80 // Script function: OpCall <name:u16> <argc:u8>
	OpCallAPI    Opcode = 0x81 // Intrinsic: OpCallAPI <name:u16> <argc:u8>
	OpCallMethod Opcode = 0x82 // Pops receiver + argc: OpCallMethod <name:u16> <argc:u8>

	// ========================================================================
	// Scheduler and quota (0x90-0x9F)
	// ========================================================================

	OpCheckRun   Opcode = 0x90 // Suspension point: OpCheckRun <line:u32>
	OpHeapUpdate Opcode = 0x91 // Pop value, old use; charge delta; push new use
	OpHeapCredit Opcode = 0x92 // Pop use, return it to the quota

	// ========================================================================
	// Return (0xF0-0xFF)
	// ========================================================================

	OpRet             Opcode = 0xF0 // Return; pops the result of non-void methods
	OpThrowUndefState Opcode = 0xF1 // OpThrowUndefState <name:u16>
)

// Instance fields reachable with OpLoadInst/OpStoreInst.
const (
	InstStateCode uint8 = iota
	InstStateChanged
	InstHeapLeft
	InstHeapLimit
	InstDoGblInit
)

var instFieldNames = [...]string{"stateCode", "stateChanged", "heapLeft", "heapLimit", "doGblInit"}

// InstFieldName names an instance field for listings.
func InstFieldName(f uint8) string {
	if int(f) < len(instFieldNames) {
		return instFieldNames[f]
	}
	return fmt.Sprintf("field%d", f)
}

// Aggregate fields reachable with OpGetField/OpSetField.
const (
	FieldX uint8 = iota
	FieldY
	FieldZ
	FieldS
	FieldCount
)

var fieldNames = [...]string{"x", "y", "z", "s", "count"}

// FieldName names an aggregate field.
func FieldName(f uint8) string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("field%d", f)
}

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack (-1 = variable)
	OperandLen int    // Number of operand bytes following the opcode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:  {"NOP", 0, 0, 0},
	OpPop:  {"POP", 1, 0, 0},
	OpDup:  {"DUP", 1, 2, 0},
	OpSwap: {"SWAP", 2, 2, 0},

	OpConst:   {"CONST", 0, 1, 2},
	OpDefault: {"DEFAULT", 0, 1, 1},
	OpUndef:   {"UNDEF", 0, 1, 0},

	OpLoadLocal:   {"LOAD_LOCAL", 0, 1, 2},
	OpStoreLocal:  {"STORE_LOCAL", 1, 0, 2},
	OpLoadGlobal:  {"LOAD_GLOBAL", 0, 1, 3},
	OpStoreGlobal: {"STORE_GLOBAL", 1, 0, 3},
	OpLoadInst:    {"LOAD_INST", 0, 1, 1},
	OpStoreInst:   {"STORE_INST", 1, 0, 1},
	OpLoadEhArg:   {"LOAD_EHARG", 0, 1, 1},

	OpListNew:      {"LIST_NEW", -1, 1, 2},
	OpVecNew:       {"VEC_NEW", 3, 1, 0},
	OpRotNew:       {"ROT_NEW", 4, 1, 0},
	OpGetField:     {"GET_FIELD", 1, 1, 1},
	OpSetField:     {"SET_FIELD", 2, 1, 1},
	OpArrayGet:     {"ARRAY_GET", 2, 1, 0},
	OpArraySet:     {"ARRAY_SET", 3, 0, 0},
	OpArrayForEach: {"ARRAY_FOREACH", 2, 3, 0},

	OpAdd:  {"ADD", 2, 1, 0},
	OpSub:  {"SUB", 2, 1, 0},
	OpMul:  {"MUL", 2, 1, 0},
	OpDiv:  {"DIV", 2, 1, 0},
	OpMod:  {"MOD", 2, 1, 0},
	OpNeg:  {"NEG", 1, 1, 0},
	OpBAnd: {"BAND", 2, 1, 0},
	OpBOr:  {"BOR", 2, 1, 0},
	OpBXor: {"BXOR", 2, 1, 0},
	OpBNot: {"BNOT", 1, 1, 0},
	OpShl:  {"SHL", 2, 1, 0},
	OpShr:  {"SHR", 2, 1, 0},

	OpEq:     {"EQ", 2, 1, 0},
	OpNe:     {"NE", 2, 1, 0},
	OpLt:     {"LT", 2, 1, 0},
	OpLe:     {"LE", 2, 1, 0},
	OpGt:     {"GT", 2, 1, 0},
	OpGe:     {"GE", 2, 1, 0},
	OpAnd:    {"AND", 2, 1, 0},
	OpOr:     {"OR", 2, 1, 0},
	OpNot:    {"NOT", 1, 1, 0},
	OpTypeIs: {"TYPE_IS", 1, 1, 1},

	OpCast: {"CAST", 1, 1, 1},

	OpJump:      {"JUMP", 0, 0, 4},
	OpJumpTrue:  {"JUMP_TRUE", 1, 0, 4},
	OpJumpFalse: {"JUMP_FALSE", 1, 0, 4},

	OpCall:       {"CALL", -1, -1, 3},
	OpCallAPI:    {"CALL_API", -1, -1, 3},
	OpCallMethod: {"CALL_METHOD", -1, 1, 3},

	OpCheckRun:   {"CHECK_RUN", 0, 0, 4},
	OpHeapUpdate: {"HEAP_UPDATE", 2, 1, 0},
	OpHeapCredit: {"HEAP_CREDIT", 1, 0, 0},

	OpRet:             {"RET", -1, 0, 0},
	OpThrowUndefState: {"THROW_UNDEF_STATE", 0, 0, 2},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpJumpFalse
}

// IsCall returns true for the three call forms.
func (op Opcode) IsCall() bool {
	return op >= OpCall && op <= OpCallMethod
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// AllOpcodes returns every defined opcode.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		ops = append(ops, op)
	}
	return ops
}
