package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/ndbx/pkg/network"
	"github.com/chazu/ndbx/pkg/value"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// CompiledNetwork is the output of compiling a network: the instruction
// stream and the pool of values too large to inline. It holds no
// references back to the network it was compiled from.
type CompiledNetwork struct {
	Version uint16 `cbor:"version"`

	// Code section
	Code []byte `cbor:"code"`

	// Constant pool - values referenced by VALUE_LOAD
	Constants []value.Value `cbor:"constants"`
}

// NewCompiledNetwork creates a new empty program with the current version.
func NewCompiledNetwork() *CompiledNetwork {
	return &CompiledNetwork{
		Version:   BytecodeVersion,
		Code:      make([]byte, 0, 64),
		Constants: make([]value.Value, 0, 8),
	}
}

// AddConstant appends v to the pool and returns its index. No
// deduplication happens here; the compiler interns strings itself.
func (p *CompiledNetwork) AddConstant(v value.Value) int {
	p.Constants = append(p.Constants, v.Clone())
	return len(p.Constants) - 1
}

// GetConstant returns the constant at the given index.
func (p *CompiledNetwork) GetConstant(index int) (value.Value, bool) {
	if index < 0 || index >= len(p.Constants) {
		return value.Value{}, false
	}
	return p.Constants[index], true
}

// Emit appends a single-byte opcode to the code section.
func (p *CompiledNetwork) Emit(op Opcode) int {
	offset := len(p.Code)
	p.Code = append(p.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (p *CompiledNetwork) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(p.Code)
	p.Code = append(p.Code, byte(op))
	p.Code = append(p.Code, operands...)
	return offset
}

// EmitInt32 emits CONST_I32 with a big-endian immediate.
func (p *CompiledNetwork) EmitInt32(v int32) int {
	offset := p.Emit(OpConstI32)
	p.Code = binary.BigEndian.AppendUint32(p.Code, uint32(v))
	return offset
}

// EmitFloat32 emits CONST_F32 with the big-endian IEEE-754 bits of v.
func (p *CompiledNetwork) EmitFloat32(v float32) int {
	offset := p.Emit(OpConstF32)
	p.Code = binary.BigEndian.AppendUint32(p.Code, math.Float32bits(v))
	return offset
}

// EmitCallNode emits CALL_NODE tagged with kind.
func (p *CompiledNetwork) EmitCallNode(kind network.Kind) int {
	return p.EmitWithOperand(OpCallNode, byte(kind))
}

// EmitJump emits a jump instruction with a placeholder address.
// Returns the offset of the placeholder for later patching.
func (p *CompiledNetwork) EmitJump(op Opcode) int {
	offset := len(p.Code)
	p.Code = append(p.Code, byte(op), 0xFF, 0xFF) // Placeholder
	return offset + 1                              // Return offset of the placeholder bytes
}

// PatchAddress overwrites the 2-byte address operand at placeholderOffset
// with the absolute code offset target.
func (p *CompiledNetwork) PatchAddress(placeholderOffset int, target int) error {
	if target < 0 || target > MaxAddress {
		return fmt.Errorf("jump target %d outside addressable range 0..%d", target, MaxAddress)
	}
	if placeholderOffset < 0 || placeholderOffset+AddressLen > len(p.Code) {
		return fmt.Errorf("address operand at %d outside code of length %d", placeholderOffset, len(p.Code))
	}
	binary.BigEndian.PutUint16(p.Code[placeholderOffset:], uint16(target))
	return nil
}

// CurrentOffset returns the current offset in the code section.
func (p *CompiledNetwork) CurrentOffset() int {
	return len(p.Code)
}

// CodeLen returns the length of the code section.
func (p *CompiledNetwork) CodeLen() int {
	return len(p.Code)
}

// ConstantCount returns the number of constants in the pool.
func (p *CompiledNetwork) ConstantCount() int {
	return len(p.Constants)
}

// Equal reports whether two programs have identical code and equal pools.
func (p *CompiledNetwork) Equal(other *CompiledNetwork) bool {
	if p.Version != other.Version || string(p.Code) != string(other.Code) {
		return false
	}
	if len(p.Constants) != len(other.Constants) {
		return false
	}
	for i := range p.Constants {
		if !p.Constants[i].Equal(other.Constants[i]) {
			return false
		}
	}
	return true
}
