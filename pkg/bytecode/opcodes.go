package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Constants and stack manipulation (0x00-0x0F)
	// ========================================================================

	OpConstI32  Opcode = 0x01 // Push Int immediate: OpConstI32 <value:i32>
	OpConstF32  Opcode = 0x02 // Push Float immediate: OpConstF32 <bits:u32>
	OpDup       Opcode = 0x03 // Duplicate top of stack
	OpPop       Opcode = 0x04 // Discard top of stack
	OpValueLoad Opcode = 0x06 // Pop Int index, push constant pool entry

	// ========================================================================
	// Node calls (0x10-0x1F)
	// ========================================================================

	OpCallNode Opcode = 0x10 // Evaluate a node on its inputs: OpCallNode <kind:u8>

	// ========================================================================
	// Control flow (0x20-0x2F)
	// ========================================================================

	OpJump    Opcode = 0x20 // Unconditional jump: OpJump <addr:u16>
	OpIfEqI32 Opcode = 0x21 // Pop two, jump if equal: OpIfEqI32 <addr:u16>

	// ========================================================================
	// Termination
	// ========================================================================

	OpEnd Opcode = 0xFF // Halt successfully
)

// Operand widths in bytes. All multi-byte operands are big-endian.
const (
	Int32OperandLen   = 4
	Float32OperandLen = 4
	AddressLen        = 2
	KindOperandLen    = 1
)

// MaxAddress is the highest code offset a jump operand can name.
const MaxAddress = 0xFFFF

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpConstI32:  {"CONST_I32", 0, 1, Int32OperandLen},
	OpConstF32:  {"CONST_F32", 0, 1, Float32OperandLen},
	OpDup:       {"DUP", 1, 2, 0},
	OpPop:       {"POP", 1, 0, 0},
	OpValueLoad: {"VALUE_LOAD", 1, 1, 0},

	OpCallNode: {"CALL_NODE", -1, 1, KindOperandLen}, // Pops one value per input port

	OpJump:    {"JMP", 0, 0, AddressLen},
	OpIfEqI32: {"IF_EQ_I32", 2, 0, AddressLen},

	OpEnd: {"END", 0, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Known reports whether op is a defined opcode.
func (op Opcode) Known() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
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
	return op == OpJump || op == OpIfEqI32
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
