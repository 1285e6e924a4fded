package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/ndbx/pkg/network"
	"github.com/chazu/ndbx/pkg/value"
)

// DefaultFrame is the frame number the Frame node reports unless the
// caller sets VM.Frame.
const DefaultFrame int32 = 42

// VM executes a compiled network. A VM runs its program once; the caller
// reads the result from Stack after Run returns.
type VM struct {
	// Program, read-only
	code      []byte
	constants []value.Value

	// Current execution state
	ip    int           // Instruction pointer
	stack []value.Value // Operand stack
	steps int           // Instructions executed

	// Frame is the value pushed by Frame nodes.
	Frame int32

	// MaxSteps bounds the number of instructions Run executes. Zero means
	// no bound.
	MaxSteps int

	// Debug/trace mode
	Trace bool
}

// NewVM creates a VM for the given code and constant pool.
func NewVM(code []byte, constants []value.Value) *VM {
	return &VM{
		code:      code,
		constants: constants,
		stack:     make([]value.Value, 0, 64),
		Frame:     DefaultFrame,
	}
}

// NewVMFromProgram creates a VM for a compiled network.
func NewVMFromProgram(p *CompiledNetwork) *VM {
	return NewVM(p.Code, p.Constants)
}

// Stack returns a copy of the operand stack, bottom first.
func (vm *VM) Stack() []value.Value {
	return append([]value.Value(nil), vm.stack...)
}

// Top returns the value on top of the stack.
func (vm *VM) Top() (value.Value, bool) {
	if len(vm.stack) == 0 {
		return value.Value{}, false
	}
	return vm.stack[len(vm.stack)-1], true
}

// IP returns the instruction pointer.
func (vm *VM) IP() int { return vm.ip }

// Steps returns the number of instructions executed so far.
func (vm *VM) Steps() int { return vm.steps }

// Run executes until END or the first error. Errors are *RuntimeError;
// the stack is left as it was when the error occurred.
func (vm *VM) Run() error {
	for {
		if vm.ip >= len(vm.code) {
			return &RuntimeError{Kind: TruncatedCode, IP: vm.ip, Op: OpEnd, Message: "reached end of code without END"}
		}
		if vm.MaxSteps > 0 && vm.steps >= vm.MaxSteps {
			op := Opcode(vm.code[vm.ip])
			return &RuntimeError{Kind: StepLimitExceeded, IP: vm.ip, Op: op, Message: fmt.Sprintf("executed %d instructions", vm.steps)}
		}

		start := vm.ip
		op := Opcode(vm.code[vm.ip])
		vm.ip++
		vm.steps++

		if vm.Trace {
			log.Debugf("[%04X] %-10s depth=%d", start, op, len(vm.stack))
		}

		if !op.Known() {
			return &RuntimeError{Kind: UnknownOpcode, IP: start, Op: op, Message: fmt.Sprintf("byte 0x%02X is not an opcode", byte(op))}
		}
		if vm.ip+op.OperandLen() > len(vm.code) {
			return &RuntimeError{Kind: TruncatedCode, IP: start, Op: op, Message: fmt.Sprintf("missing %d operand bytes", op.OperandLen())}
		}

		var err *RuntimeError
		switch op {
		// ============ Constants ============
		case OpConstI32:
			vm.push(value.Int(int32(vm.readUint32())))

		case OpConstF32:
			vm.push(value.Float(math.Float32frombits(vm.readUint32())))

		case OpValueLoad:
			err = vm.valueLoad(start)

		// ============ Stack Operations ============
		case OpDup:
			var top value.Value
			if top, err = vm.peek(start, op); err == nil {
				vm.push(top)
			}

		case OpPop:
			_, err = vm.pop(start, op)

		// ============ Control Flow ============
		case OpJump:
			err = vm.jump(start, op, int(vm.readUint16()))

		case OpIfEqI32:
			target := int(vm.readUint16())
			err = vm.ifEq(start, target)

		// ============ Node Calls ============
		case OpCallNode:
			kind := network.Kind(vm.code[vm.ip])
			vm.ip++
			err = vm.callNode(start, kind)

		case OpEnd:
			return nil
		}

		if err != nil {
			return err
		}
	}
}

// ============ Helpers ============

func (vm *VM) push(v value.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop(ip int, op Opcode) (value.Value, *RuntimeError) {
	if len(vm.stack) == 0 {
		return value.Value{}, &RuntimeError{Kind: StackUnderflow, IP: ip, Op: op, Message: "pop from empty stack"}
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) peek(ip int, op Opcode) (value.Value, *RuntimeError) {
	if len(vm.stack) == 0 {
		return value.Value{}, &RuntimeError{Kind: StackUnderflow, IP: ip, Op: op, Message: "read from empty stack"}
	}
	return vm.stack[len(vm.stack)-1], nil
}

// readUint16 reads a big-endian uint16 operand and advances ip.
func (vm *VM) readUint16() uint16 {
	v := binary.BigEndian.Uint16(vm.code[vm.ip:])
	vm.ip += 2
	return v
}

// readUint32 reads a big-endian uint32 operand and advances ip.
func (vm *VM) readUint32() uint32 {
	v := binary.BigEndian.Uint32(vm.code[vm.ip:])
	vm.ip += 4
	return v
}

// popInt pops an Int-compatible operand: an Int, or a non-empty IntList
// read at element 0.
func (vm *VM) popInt(ip int, op Opcode) (int32, *RuntimeError) {
	v, err := vm.pop(ip, op)
	if err != nil {
		return 0, err
	}
	switch {
	case v.Kind() == value.KindInt, v.Kind() == value.KindIntList && v.Len() > 0:
		return v.GetInt(0), nil
	}
	return 0, &RuntimeError{
		Kind: TypeMismatch, IP: ip, Op: op,
		Expected: value.KindInt.String(), Actual: v.Kind(),
		Message: fmt.Sprintf("expected Int, got %s", v),
	}
}

// popNumeric pops an operand for arithmetic: Int, Float or a list of them.
func (vm *VM) popNumeric(ip int, kind network.Kind) (value.Value, *RuntimeError) {
	v, err := vm.pop(ip, OpCallNode)
	if err != nil {
		return value.Value{}, err
	}
	if !v.IsNumeric() {
		return value.Value{}, &RuntimeError{
			Kind: TypeMismatch, IP: ip, Op: OpCallNode,
			Expected: "Int", Actual: v.Kind(),
			Message: fmt.Sprintf("%s expects numeric input, got %s", kind, v),
		}
	}
	return v, nil
}

func (vm *VM) jump(ip int, op Opcode, target int) *RuntimeError {
	if target >= len(vm.code) {
		return &RuntimeError{Kind: TruncatedCode, IP: ip, Op: op, Message: fmt.Sprintf("jump target %04X outside code of length %d", target, len(vm.code))}
	}
	vm.ip = target
	return nil
}

// ============ Instructions ============

func (vm *VM) valueLoad(ip int) *RuntimeError {
	idx, err := vm.popInt(ip, OpValueLoad)
	if err != nil {
		return err
	}
	if idx < 0 || int(idx) >= len(vm.constants) {
		return &RuntimeError{Kind: InvalidConstantIndex, IP: ip, Op: OpValueLoad, Message: fmt.Sprintf("index %d outside pool of %d constants", idx, len(vm.constants))}
	}
	vm.push(vm.constants[idx].Clone())
	return nil
}

func (vm *VM) ifEq(ip int, target int) *RuntimeError {
	b, err := vm.popInt(ip, OpIfEqI32)
	if err != nil {
		return err
	}
	a, err := vm.popInt(ip, OpIfEqI32)
	if err != nil {
		return err
	}
	if a == b {
		return vm.jump(ip, OpIfEqI32, target)
	}
	return nil
}

// callNode evaluates a node on the inputs its kind declares. Inputs were
// pushed in port order, so the last port is on top.
func (vm *VM) callNode(ip int, kind network.Kind) *RuntimeError {
	switch kind {
	case network.KindInt:
		// The value was pushed by the constant that fed port v.
		return nil

	case network.KindAdd:
		b, err := vm.popNumeric(ip, kind)
		if err != nil {
			return err
		}
		a, err := vm.popNumeric(ip, kind)
		if err != nil {
			return err
		}
		vm.push(add(a, b))
		return nil

	case network.KindNegate:
		v, err := vm.popNumeric(ip, kind)
		if err != nil {
			return err
		}
		vm.push(negate(v))
		return nil

	case network.KindFrame:
		vm.push(value.Int(vm.Frame))
		return nil

	case network.KindSwitch:
		return &RuntimeError{Kind: InvalidNodeCall, IP: ip, Op: OpCallNode, Message: "Switch is compiled to branches and cannot be called"}
	}

	return &RuntimeError{Kind: UnknownNodeKind, IP: ip, Op: OpCallNode, Message: fmt.Sprintf("node kind tag %d", uint8(kind))}
}

// add sums a and b element-wise, broadcasting the shorter operand. The
// result has max(len(a), len(b)) elements, or none if either is empty.
func add(a, b value.Value) value.Value {
	n := max(a.Len(), b.Len())
	if a.Len() == 0 || b.Len() == 0 {
		n = 0
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = a.GetInt(i) + b.GetInt(i)
	}
	return value.IntList(out...)
}

func negate(v value.Value) value.Value {
	out := make([]int32, v.Len())
	for i := range out {
		out[i] = -v.GetInt(i)
	}
	return value.IntList(out...)
}
