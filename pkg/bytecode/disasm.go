package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/chazu/ndbx/pkg/network"
)

// Disassemble returns a human-readable bytecode listing for the program.
func (p *CompiledNetwork) Disassemble() string {
	return p.DisassembleWithLabels("", nil)
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (p *CompiledNetwork) DisassembleWithName(name string) string {
	return p.DisassembleWithLabels(name, nil)
}

// DisassembleWithLabels returns a listing that marks where each node's
// code begins. labels is the table returned by Compiler.Labels.
func (p *CompiledNetwork) DisassembleWithLabels(name string, labels map[string]int) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; Network Bytecode v%d\n", p.Version))
	sb.WriteString("\n")

	// Constants
	if len(p.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range p.Constants {
			display := v.String()
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, display))
		}
		sb.WriteString("\n")
	}

	// Offset -> node names starting there
	byOffset := make(map[int][]string)
	for node, offset := range labels {
		byOffset[offset] = append(byOffset[offset], node)
	}
	for _, names := range byOffset {
		sort.Strings(names)
	}

	// Code section
	sb.WriteString("; Code:\n")
	offset := 0
	for offset < len(p.Code) {
		for _, node := range byOffset[offset] {
			sb.WriteString(fmt.Sprintf("%s:\n", node))
		}
		line, instrLen := p.disassembleInstruction(offset)
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		offset += instrLen
	}

	return sb.String()
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (p *CompiledNetwork) disassembleInstruction(offset int) (string, int) {
	if offset >= len(p.Code) {
		return "<end of code>", 0
	}

	op := Opcode(p.Code[offset])
	info := GetOpcodeInfo(op)

	if !op.Known() {
		return info.Name, 1
	}
	if offset+op.InstructionLen() > len(p.Code) {
		return fmt.Sprintf("%s <truncated>", info.Name), len(p.Code) - offset
	}

	switch op {
	case OpConstI32:
		return fmt.Sprintf("CONST_I32 %d", int32(p.readUint32(offset+1))), 5

	case OpConstF32:
		return fmt.Sprintf("CONST_F32 %g", math.Float32frombits(p.readUint32(offset+1))), 5

	case OpCallNode:
		return fmt.Sprintf("CALL_NODE %s", network.Kind(p.Code[offset+1])), 2

	case OpJump, OpIfEqI32:
		return fmt.Sprintf("%s %04X", info.Name, p.readUint16(offset+1)), 3

	// Default: use info from table
	default:
		return info.Name, op.InstructionLen()
	}
}

// DisassembleInstruction returns a human-readable representation of a single instruction.
func (p *CompiledNetwork) DisassembleInstruction(offset int) string {
	line, _ := p.disassembleInstruction(offset)
	return line
}

// readUint16 reads a big-endian uint16 from the code at the given offset.
func (p *CompiledNetwork) readUint16(offset int) uint16 {
	return binary.BigEndian.Uint16(p.Code[offset:])
}

// readUint32 reads a big-endian uint32 from the code at the given offset.
func (p *CompiledNetwork) readUint32(offset int) uint32 {
	return binary.BigEndian.Uint32(p.Code[offset:])
}

// DisassembleToLines returns the disassembly as a slice of lines.
func (p *CompiledNetwork) DisassembleToLines() []string {
	var lines []string
	offset := 0
	for offset < len(p.Code) {
		line, instrLen := p.disassembleInstruction(offset)
		lines = append(lines, fmt.Sprintf("%04X  %s", offset, line))
		offset += instrLen
	}
	return lines
}

// InstructionCount returns the number of instructions in the program.
// Note: This iterates through all code, so it's O(n).
func (p *CompiledNetwork) InstructionCount() int {
	count := 0
	offset := 0
	for offset < len(p.Code) {
		_, instrLen := p.disassembleInstruction(offset)
		offset += instrLen
		count++
	}
	return count
}
